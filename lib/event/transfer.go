// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"fmt"
	"strings"
)

// OwnershipTransfer is the typed view of an ownership-transfer event.
// The signer (Event.PubKey) is the party giving ownership away; the
// "p" tag names the recipient. A transfer is only meaningful if the
// signer was the repository's current owner at the time — that check
// belongs to ownership resolution, not to parsing.
type OwnershipTransfer struct {
	// Address is the target repository's durable address.
	Address RepoAddress
	// NewOwner is the recipient pubkey, lowercase hex.
	NewOwner string
	// Event is the underlying signed event.
	Event Event
}

// IsSelfTransfer reports whether the transfer names its own signer as
// the recipient. The first transfer for every repository is a
// self-transfer created at provisioning time, anchoring the chain.
func (t *OwnershipTransfer) IsSelfTransfer() bool {
	return t.Event.PubKey == t.NewOwner
}

// ParseOwnershipTransfer validates and converts a transfer event into
// its typed view. Structure only; signature and chain validity are the
// caller's concern.
func ParseOwnershipTransfer(ev Event) (*OwnershipTransfer, error) {
	if ev.Kind != KindOwnershipTransfer {
		return nil, fmt.Errorf("transfer: event %s has kind %d, want %d", truncate(ev.ID), ev.Kind, KindOwnershipTransfer)
	}
	addrValue := ev.TagValue("a")
	if addrValue == "" {
		return nil, fmt.Errorf("transfer: event %s is missing the repository address tag", truncate(ev.ID))
	}
	addr, err := ParseRepoAddress(addrValue)
	if err != nil {
		return nil, fmt.Errorf("transfer: event %s: %w", truncate(ev.ID), err)
	}
	newOwner := strings.ToLower(ev.TagValue("p"))
	if newOwner == "" {
		return nil, fmt.Errorf("transfer: event %s is missing the new-owner tag", truncate(ev.ID))
	}
	if err := validatePubkey(newOwner); err != nil {
		return nil, fmt.Errorf("transfer: event %s new owner: %w", truncate(ev.ID), err)
	}
	return &OwnershipTransfer{Address: addr, NewOwner: newOwner, Event: ev}, nil
}

// BuildOwnershipTransfer returns an unsigned transfer event template
// handing ownership of the repository at addr to newOwner. For the
// initial anchor, newOwner equals the signer.
func BuildOwnershipTransfer(addr RepoAddress, newOwner string, createdAt int64) (Event, error) {
	if err := validatePubkey(newOwner); err != nil {
		return Event{}, fmt.Errorf("transfer: new owner: %w", err)
	}
	if addr.Identifier == "" {
		return Event{}, fmt.Errorf("transfer: repository address is required")
	}
	return Event{
		Kind:      KindOwnershipTransfer,
		CreatedAt: createdAt,
		Tags: [][]string{
			{"a", addr.String()},
			{"p", newOwner},
		},
	}, nil
}
