// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package forge

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/nostrforge/nostrforge/lib/event"
)

// CompressionTag identifies the compression algorithm used for a
// papertrail record. Tags are stored in the record header (1 byte).
// These values are format constants — changing them breaks existing
// papertrails.
type CompressionTag uint8

const (
	// CompressionZstd indicates zstd at the default level. Event
	// JSON is text-like, so zstd is the default.
	CompressionZstd CompressionTag = 0

	// CompressionLZ4 indicates LZ4 block compression, selectable
	// for hosts where decode throughput matters more than ratio.
	CompressionLZ4 CompressionTag = 1

	// CompressionNone indicates an uncompressed record, used when
	// the payload did not shrink.
	CompressionNone CompressionTag = 2
)

// String returns the human-readable name of a compression tag.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	case CompressionNone:
		return "none"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// zstdEncoder and zstdDecoder are reused across calls. Both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("forge: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("forge: zstd decoder initialization failed: " + err.Error())
	}
}

// Papertrail mirrors provenance events into the repository directory
// on disk, beside the git object store. Records live under
// <bare repo>/papertrail/<event id>; they travel with filesystem
// copies and backups of the bare repository, though not with git
// clones, which only transfer refs and objects. The events themselves
// remain authoritative on relays — the papertrail is a local
// convenience copy.
//
// Record format: 1-byte compression tag, 4-byte big-endian
// uncompressed size, payload.
type Papertrail struct {
	// repoRoot is the directory that holds one subdirectory per
	// owner pubkey, each holding that owner's bare repositories.
	repoRoot string
	tag      CompressionTag
}

// NewPapertrail creates a Papertrail writing under repoRoot using the
// given compression.
func NewPapertrail(repoRoot string, tag CompressionTag) *Papertrail {
	return &Papertrail{repoRoot: repoRoot, tag: tag}
}

// Record stores a compressed copy of ev inside the repository the
// address names. Implements the provenance mirror hook of the
// ownership-transfer service.
func (p *Papertrail) Record(addr event.RepoAddress, ev event.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("forge: marshaling papertrail event: %w", err)
	}

	dir := filepath.Join(RepoPath(p.repoRoot, addr.Owner, addr.Identifier), "papertrail")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("forge: creating papertrail dir: %w", err)
	}

	record, err := encodeRecord(payload, p.tag)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, ev.ID)
	if err := os.WriteFile(path, record, 0644); err != nil {
		return fmt.Errorf("forge: writing papertrail record: %w", err)
	}
	return nil
}

// ReadRecord loads and decompresses a papertrail record.
func (p *Papertrail) ReadRecord(addr event.RepoAddress, eventID string) (event.Event, error) {
	path := filepath.Join(RepoPath(p.repoRoot, addr.Owner, addr.Identifier), "papertrail", eventID)
	record, err := os.ReadFile(path)
	if err != nil {
		return event.Event{}, fmt.Errorf("forge: reading papertrail record: %w", err)
	}
	payload, err := decodeRecord(record)
	if err != nil {
		return event.Event{}, err
	}
	var ev event.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return event.Event{}, fmt.Errorf("forge: unmarshaling papertrail event: %w", err)
	}
	return ev, nil
}

var errIncompressible = errors.New("forge: data is incompressible")

func encodeRecord(payload []byte, tag CompressionTag) ([]byte, error) {
	compressed, err := compress(payload, tag)
	if errors.Is(err, errIncompressible) {
		tag, compressed = CompressionNone, payload
	} else if err != nil {
		return nil, err
	}

	record := make([]byte, 5, 5+len(compressed))
	record[0] = byte(tag)
	binary.BigEndian.PutUint32(record[1:5], uint32(len(payload)))
	return append(record, compressed...), nil
}

func decodeRecord(record []byte) ([]byte, error) {
	if len(record) < 5 {
		return nil, fmt.Errorf("forge: papertrail record truncated (%d bytes)", len(record))
	}
	tag := CompressionTag(record[0])
	size := int(binary.BigEndian.Uint32(record[1:5]))
	return decompress(record[5:], tag, size)
}

func compress(data []byte, tag CompressionTag) ([]byte, error) {
	switch tag {
	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return nil, errIncompressible
		}
		return compressed, nil

	case CompressionLZ4:
		bound := lz4.CompressBlockBound(len(data))
		destination := make([]byte, bound)
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return nil, fmt.Errorf("forge: lz4 compress: %w", err)
		}
		if written == 0 || written >= len(data) {
			return nil, errIncompressible
		}
		return destination[:written], nil

	case CompressionNone:
		return data, nil

	default:
		return nil, fmt.Errorf("forge: unsupported compression tag: %d", tag)
	}
}

func decompress(compressed []byte, tag CompressionTag, uncompressedSize int) ([]byte, error) {
	switch tag {
	case CompressionZstd:
		result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, fmt.Errorf("forge: zstd decompress: %w", err)
		}
		if len(result) != uncompressedSize {
			return nil, fmt.Errorf("forge: zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
		}
		return result, nil

	case CompressionLZ4:
		destination := make([]byte, uncompressedSize)
		read, err := lz4.UncompressBlock(compressed, destination)
		if err != nil {
			return nil, fmt.Errorf("forge: lz4 decompress: %w", err)
		}
		if read != uncompressedSize {
			return nil, fmt.Errorf("forge: lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
		}
		return destination, nil

	case CompressionNone:
		if len(compressed) != uncompressedSize {
			return nil, fmt.Errorf("forge: uncompressed record: size %d does not match expected %d", len(compressed), uncompressedSize)
		}
		return compressed, nil

	default:
		return nil, fmt.Errorf("forge: unsupported compression tag: %d", tag)
	}
}
