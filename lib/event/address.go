// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// RepoAddress is a repository's durable address: the kind, the
// original announcement author, and the stable identifier scoped to
// that author. Ownership may move away from the original author, but
// the address never changes — it is how every transfer and deletion
// names its target.
type RepoAddress struct {
	// Kind is the announcement kind (KindRepoAnnouncement).
	Kind int
	// Owner is the original announcement author's pubkey, lowercase hex.
	Owner string
	// Identifier is the repository's "d" tag value.
	Identifier string
}

// NewRepoAddress returns the address for a repository announced by
// owner under identifier.
func NewRepoAddress(owner, identifier string) RepoAddress {
	return RepoAddress{Kind: KindRepoAnnouncement, Owner: owner, Identifier: identifier}
}

// String formats the address as the "a" tag value "kind:pubkey:identifier".
func (a RepoAddress) String() string {
	return strconv.Itoa(a.Kind) + ":" + a.Owner + ":" + a.Identifier
}

// IsZero reports whether the address is entirely unset.
func (a RepoAddress) IsZero() bool {
	return a.Kind == 0 && a.Owner == "" && a.Identifier == ""
}

// ParseRepoAddress parses a "kind:pubkey:identifier" address tag
// value. The identifier may itself contain colons; only the first two
// separators are structural.
func ParseRepoAddress(s string) (RepoAddress, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return RepoAddress{}, fmt.Errorf("repo address %q: want kind:pubkey:identifier", s)
	}
	kind, err := strconv.Atoi(parts[0])
	if err != nil {
		return RepoAddress{}, fmt.Errorf("repo address %q: kind is not an integer", s)
	}
	if err := validatePubkey(parts[1]); err != nil {
		return RepoAddress{}, fmt.Errorf("repo address %q: %w", s, err)
	}
	if parts[2] == "" {
		return RepoAddress{}, fmt.Errorf("repo address %q: empty identifier", s)
	}
	return RepoAddress{Kind: kind, Owner: parts[1], Identifier: parts[2]}, nil
}

// ValidatePubkey checks that s is a 32-byte lowercase hex public key.
func ValidatePubkey(s string) error {
	return validatePubkey(s)
}

// validatePubkey checks that s is a 32-byte lowercase hex public key.
func validatePubkey(s string) error {
	if len(s) != 64 {
		return fmt.Errorf("pubkey has length %d, want 64 hex characters", len(s))
	}
	if strings.ToLower(s) != s {
		return fmt.Errorf("pubkey must be lowercase hex")
	}
	if _, err := hex.DecodeString(s); err != nil {
		return fmt.Errorf("pubkey is not valid hex")
	}
	return nil
}
