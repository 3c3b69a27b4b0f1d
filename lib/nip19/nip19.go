// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package nip19 converts between raw hex keys/addresses and their
// portable bech32 human-readable encodings: npub for public keys,
// nsec for secret keys, and naddr for repository addresses. The
// platform stores repositories under npub-derived directory names and
// accepts naddr identifiers from callers.
package nip19

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"

	"github.com/nostrforge/nostrforge/lib/event"
)

// TLV types used inside naddr payloads.
const (
	tlvSpecial = 0 // the repository identifier (d tag)
	tlvRelay   = 1 // a relay hint, repeatable
	tlvAuthor  = 2 // the 32-byte original author key
	tlvKind    = 3 // the event kind, uint32 big-endian
)

// EncodePublicKey encodes a 32-byte hex public key as npub.
func EncodePublicKey(pubkeyHex string) (string, error) {
	return encodeKey("npub", pubkeyHex)
}

// DecodePublicKey decodes an npub into a lowercase hex public key.
func DecodePublicKey(npub string) (string, error) {
	return decodeKey("npub", npub)
}

// EncodeSecretKey encodes a 32-byte hex secret key as nsec.
func EncodeSecretKey(secretHex string) (string, error) {
	return encodeKey("nsec", secretHex)
}

// DecodeSecretKey decodes an nsec into a lowercase hex secret key.
func DecodeSecretKey(nsec string) (string, error) {
	return decodeKey("nsec", nsec)
}

// EncodeRepoAddress encodes a repository address (plus optional relay
// hints) as naddr.
func EncodeRepoAddress(addr event.RepoAddress, relays []string) (string, error) {
	author, err := hex.DecodeString(addr.Owner)
	if err != nil || len(author) != 32 {
		return "", fmt.Errorf("naddr: owner is not a 32-byte hex key")
	}
	if addr.Identifier == "" {
		return "", fmt.Errorf("naddr: empty identifier")
	}

	var payload []byte
	payload = appendTLV(payload, tlvSpecial, []byte(addr.Identifier))
	for _, relay := range relays {
		payload = appendTLV(payload, tlvRelay, []byte(relay))
	}
	payload = appendTLV(payload, tlvAuthor, author)
	kind := make([]byte, 4)
	binary.BigEndian.PutUint32(kind, uint32(addr.Kind))
	payload = appendTLV(payload, tlvKind, kind)

	converted, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("naddr: converting payload bits: %w", err)
	}
	encoded, err := bech32.Encode("naddr", converted)
	if err != nil {
		return "", fmt.Errorf("naddr: encoding: %w", err)
	}
	return encoded, nil
}

// DecodeRepoAddress decodes an naddr into the repository address and
// any relay hints it carries.
func DecodeRepoAddress(naddr string) (event.RepoAddress, []string, error) {
	hrp, data, err := bech32.DecodeNoLimit(naddr)
	if err != nil {
		return event.RepoAddress{}, nil, fmt.Errorf("naddr: decoding bech32: %w", err)
	}
	if hrp != "naddr" {
		return event.RepoAddress{}, nil, fmt.Errorf("naddr: prefix is %q, want naddr", hrp)
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return event.RepoAddress{}, nil, fmt.Errorf("naddr: converting payload bits: %w", err)
	}

	var addr event.RepoAddress
	var relays []string
	for len(payload) > 0 {
		if len(payload) < 2 {
			return event.RepoAddress{}, nil, fmt.Errorf("naddr: truncated TLV header")
		}
		typ, length := payload[0], int(payload[1])
		payload = payload[2:]
		if len(payload) < length {
			return event.RepoAddress{}, nil, fmt.Errorf("naddr: truncated TLV value")
		}
		value := payload[:length]
		payload = payload[length:]

		switch typ {
		case tlvSpecial:
			addr.Identifier = string(value)
		case tlvRelay:
			relays = append(relays, string(value))
		case tlvAuthor:
			if length != 32 {
				return event.RepoAddress{}, nil, fmt.Errorf("naddr: author TLV has %d bytes, want 32", length)
			}
			addr.Owner = hex.EncodeToString(value)
		case tlvKind:
			if length != 4 {
				return event.RepoAddress{}, nil, fmt.Errorf("naddr: kind TLV has %d bytes, want 4", length)
			}
			addr.Kind = int(binary.BigEndian.Uint32(value))
		default:
			// Unknown TLV types are skipped for forward compatibility.
		}
	}
	if addr.Identifier == "" || addr.Owner == "" || addr.Kind == 0 {
		return event.RepoAddress{}, nil, fmt.Errorf("naddr: missing identifier, author, or kind")
	}
	return addr, relays, nil
}

func encodeKey(hrp, keyHex string) (string, error) {
	raw, err := hex.DecodeString(keyHex)
	if err != nil || len(raw) != 32 {
		return "", fmt.Errorf("%s: key is not 32 hex-encoded bytes", hrp)
	}
	converted, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("%s: converting bits: %w", hrp, err)
	}
	encoded, err := bech32.Encode(hrp, converted)
	if err != nil {
		return "", fmt.Errorf("%s: encoding: %w", hrp, err)
	}
	return encoded, nil
}

func decodeKey(wantHRP, encoded string) (string, error) {
	hrp, data, err := bech32.DecodeNoLimit(encoded)
	if err != nil {
		return "", fmt.Errorf("%s: decoding bech32: %w", wantHRP, err)
	}
	if hrp != wantHRP {
		return "", fmt.Errorf("%s: prefix is %q", wantHRP, hrp)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", fmt.Errorf("%s: converting bits: %w", wantHRP, err)
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("%s: payload has %d bytes, want 32", wantHRP, len(raw))
	}
	return hex.EncodeToString(raw), nil
}

func appendTLV(payload []byte, typ byte, value []byte) []byte {
	payload = append(payload, typ, byte(len(value)))
	return append(payload, value...)
}
