// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Signer completes an unsigned event template: it sets the pubkey,
// computes the id, and produces the signature. Implementations may
// hold a local key or delegate to an external signing service — the
// rest of the system only ever sees this interface.
type Signer interface {
	// Sign fills in PubKey, ID, and Sig on ev. CreatedAt, Kind,
	// Tags, and Content must already be set.
	Sign(ctx context.Context, ev *Event) error

	// PublicKey returns the signer's x-only public key, lowercase hex.
	PublicKey() string
}

// LocalSigner signs events with an in-process secp256k1 secret key.
type LocalSigner struct {
	key    *btcec.PrivateKey
	pubkey string
}

// NewLocalSigner creates a LocalSigner from a 32-byte hex-encoded
// secret key.
func NewLocalSigner(secretKeyHex string) (*LocalSigner, error) {
	raw, err := hex.DecodeString(secretKeyHex)
	if err != nil {
		return nil, fmt.Errorf("secret key is not valid hex")
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("secret key has length %d, want 32 bytes", len(raw))
	}
	key, _ := btcec.PrivKeyFromBytes(raw)
	return &LocalSigner{
		key:    key,
		pubkey: hex.EncodeToString(schnorr.SerializePubKey(key.PubKey())),
	}, nil
}

// GenerateSigner creates a LocalSigner with a fresh random key.
func GenerateSigner() (*LocalSigner, error) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generating secp256k1 key: %w", err)
	}
	return &LocalSigner{
		key:    key,
		pubkey: hex.EncodeToString(schnorr.SerializePubKey(key.PubKey())),
	}, nil
}

// SecretKey returns the 32-byte hex-encoded secret key. Callers must
// never log it or include it in error messages.
func (s *LocalSigner) SecretKey() string {
	return hex.EncodeToString(s.key.Serialize())
}

// PublicKey returns the x-only public key, lowercase hex.
func (s *LocalSigner) PublicKey() string { return s.pubkey }

// Sign sets ev.PubKey to this signer's key, computes the canonical id,
// and signs it.
func (s *LocalSigner) Sign(_ context.Context, ev *Event) error {
	ev.PubKey = s.pubkey
	ev.ID = ev.ComputeID()

	idBytes, err := hex.DecodeString(ev.ID)
	if err != nil {
		return fmt.Errorf("decoding computed id: %w", err)
	}
	sig, err := schnorr.Sign(s.key, idBytes)
	if err != nil {
		return fmt.Errorf("signing event %s: %w", truncate(ev.ID), err)
	}
	ev.Sig = hex.EncodeToString(sig.Serialize())
	return nil
}
