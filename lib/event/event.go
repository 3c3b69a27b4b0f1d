// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Event is an immutable, signed, content-addressed record — the atomic
// unit of state in the system. Field names follow the relay wire
// format. Events are never mutated after signing; "updates" are new
// events that supersede prior ones by convention.
type Event struct {
	// ID is the lowercase hex sha256 of the canonical serialization.
	ID string `json:"id"`
	// PubKey is the author's x-only public key, lowercase hex.
	PubKey string `json:"pubkey"`
	// CreatedAt is the author-claimed creation time in unix seconds.
	// Relays cannot be trusted to enforce it; second resolution means
	// ties are real and must be broken deterministically by callers.
	CreatedAt int64 `json:"created_at"`
	// Kind is the integer discriminator for the event's meaning.
	Kind int `json:"kind"`
	// Tags is an ordered list of string arrays. Positionally
	// meaningful; use the typed views in this package instead of
	// indexing into it directly.
	Tags [][]string `json:"tags"`
	// Content is an opaque string whose interpretation depends on Kind.
	Content string `json:"content"`
	// Sig is the 64-byte schnorr signature over ID, lowercase hex.
	Sig string `json:"sig"`
}

// Serialize returns the canonical serialization whose sha256 is the
// event id: the compact JSON array [0,pubkey,created_at,kind,tags,content].
// This byte sequence feeds a cryptographic hash, so it is framed by
// hand — any serializer that reorders fields, inserts whitespace, or
// escapes differently would silently produce wrong ids.
func (e *Event) Serialize() []byte {
	var b strings.Builder
	b.WriteString(`[0,"`)
	b.WriteString(e.PubKey)
	b.WriteString(`",`)
	b.WriteString(strconv.FormatInt(e.CreatedAt, 10))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(e.Kind))
	b.WriteByte(',')
	writeTags(&b, e.Tags)
	b.WriteByte(',')
	writeEscapedString(&b, e.Content)
	b.WriteByte(']')
	return []byte(b.String())
}

// ComputeID returns the lowercase hex sha256 of the canonical
// serialization.
func (e *Event) ComputeID() string {
	digest := sha256.Sum256(e.Serialize())
	return hex.EncodeToString(digest[:])
}

// CheckID reports whether the event's declared id matches the hash of
// its canonical serialization.
func (e *Event) CheckID() bool {
	return e.ID == e.ComputeID()
}

// Verify checks the full validity invariant: the id is the correct
// hash of the canonical fields and the signature verifies against the
// author's public key for that id. Events from relays must pass Verify
// before anything downstream trusts them; relays are free to forward
// forgeries.
func (e *Event) Verify() error {
	if !e.CheckID() {
		return fmt.Errorf("event %s: id does not match canonical serialization", truncate(e.ID))
	}

	pubkeyBytes, err := hex.DecodeString(e.PubKey)
	if err != nil || len(pubkeyBytes) != 32 {
		return fmt.Errorf("event %s: pubkey is not 32 hex-encoded bytes", truncate(e.ID))
	}
	pubkey, err := schnorr.ParsePubKey(pubkeyBytes)
	if err != nil {
		return fmt.Errorf("event %s: parsing pubkey: %w", truncate(e.ID), err)
	}

	sigBytes, err := hex.DecodeString(e.Sig)
	if err != nil || len(sigBytes) != schnorr.SignatureSize {
		return fmt.Errorf("event %s: signature is not %d hex-encoded bytes", truncate(e.ID), schnorr.SignatureSize)
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("event %s: parsing signature: %w", truncate(e.ID), err)
	}

	idBytes, err := hex.DecodeString(e.ID)
	if err != nil || len(idBytes) != sha256.Size {
		return fmt.Errorf("event %s: id is not 32 hex-encoded bytes", truncate(e.ID))
	}
	if !sig.Verify(idBytes, pubkey) {
		return fmt.Errorf("event %s: signature does not verify against pubkey %s", truncate(e.ID), truncate(e.PubKey))
	}
	return nil
}

// TagValue returns the second element of the first tag whose first
// element equals name, or "" if no such tag exists.
func (e *Event) TagValue(name string) string {
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1]
		}
	}
	return ""
}

// TagValues returns the second elements of every tag whose first
// element equals name.
func (e *Event) TagValues(name string) []string {
	var values []string
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == name {
			values = append(values, tag[1])
		}
	}
	return values
}

// Tag returns the first tag whose first element equals name, or nil.
func (e *Event) Tag(name string) []string {
	for _, tag := range e.Tags {
		if len(tag) >= 1 && tag[0] == name {
			return tag
		}
	}
	return nil
}

func writeTags(b *strings.Builder, tags [][]string) {
	b.WriteByte('[')
	for i, tag := range tags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		for j, item := range tag {
			if j > 0 {
				b.WriteByte(',')
			}
			writeEscapedString(b, item)
		}
		b.WriteByte(']')
	}
	b.WriteByte(']')
}

// writeEscapedString writes s as a JSON string with exactly the seven
// mandated escapes: backslash, double quote, newline, carriage return,
// tab, backspace, and form feed. Every other byte passes through
// verbatim, including other control characters — and in particular no
// HTML-safety escaping of <, >, or &, which encoding/json would apply.
// Adding or removing an escape changes the hashed bytes, so ids would
// stop matching what other implementations compute.
func writeEscapedString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
}

// truncate shortens a hex identifier for log and error output. Full
// pubkeys and event ids are never emitted in user-visible failures.
func truncate(hexID string) string {
	if len(hexID) <= 8 {
		return hexID
	}
	return hexID[:8] + "…"
}
