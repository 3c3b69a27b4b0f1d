// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package forge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nostrforge/nostrforge/lib/event"
)

func papertrailEvent(t *testing.T) (event.RepoAddress, event.Event) {
	t.Helper()
	signer, err := event.GenerateSigner()
	if err != nil {
		t.Fatalf("GenerateSigner: %v", err)
	}
	addr := event.NewRepoAddress(signer.PublicKey(), "widgets")
	ev, err := event.BuildOwnershipTransfer(addr, signer.PublicKey(), 100)
	if err != nil {
		t.Fatalf("BuildOwnershipTransfer: %v", err)
	}
	if err := signer.Sign(context.Background(), &ev); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return addr, ev
}

func TestPapertrailRoundtrip(t *testing.T) {
	t.Parallel()

	for _, tag := range []CompressionTag{CompressionZstd, CompressionLZ4, CompressionNone} {
		t.Run(tag.String(), func(t *testing.T) {
			addr, ev := papertrailEvent(t)
			trail := NewPapertrail(t.TempDir(), tag)

			if err := trail.Record(addr, ev); err != nil {
				t.Fatalf("Record: %v", err)
			}
			got, err := trail.ReadRecord(addr, ev.ID)
			if err != nil {
				t.Fatalf("ReadRecord: %v", err)
			}
			if got.ID != ev.ID || got.Sig != ev.Sig {
				t.Error("record does not round-trip")
			}
			if err := got.Verify(); err != nil {
				t.Errorf("recovered event fails verification: %v", err)
			}
		})
	}
}

// A record that does not shrink falls back to the uncompressed tag
// instead of growing on disk.
func TestPapertrailIncompressibleFallback(t *testing.T) {
	t.Parallel()

	payload := []byte{0x01}
	record, err := encodeRecord(payload, CompressionZstd)
	if err != nil {
		t.Fatalf("encodeRecord: %v", err)
	}
	if CompressionTag(record[0]) != CompressionNone {
		t.Errorf("tag = %s, want fallback to none", CompressionTag(record[0]))
	}
	decoded, err := decodeRecord(record)
	if err != nil {
		t.Fatalf("decodeRecord: %v", err)
	}
	if string(decoded) != string(payload) {
		t.Error("fallback record does not round-trip")
	}
}

func TestPapertrailRejectsTruncatedRecord(t *testing.T) {
	t.Parallel()

	if _, err := decodeRecord([]byte{0x00, 0x00}); err == nil {
		t.Fatal("expected error for truncated record")
	}
}

func TestLimitsCounting(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	const owner = "abc123"
	for _, name := range []string{"one.git", "two.git"} {
		if err := os.MkdirAll(filepath.Join(root, owner, name), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	// Non-repository entries do not count.
	if err := os.WriteFile(filepath.Join(root, owner, ".provision.lock"), nil, 0644); err != nil {
		t.Fatalf("write lock: %v", err)
	}

	limits := NewLimits(root, 3)
	count, err := limits.Count(owner)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	if ok, _ := limits.Allow(owner); !ok {
		t.Error("Allow = false below the limit")
	}
	if ok, _ := NewLimits(root, 2).Allow(owner); ok {
		t.Error("Allow = true at the limit")
	}
	if ok, _ := NewLimits(root, 0).Allow(owner); !ok {
		t.Error("Allow = false with limits disabled")
	}
	if count, err := limits.Count("unknown-owner"); err != nil || count != 0 {
		t.Errorf("Count(unknown) = %d, %v; want 0, nil", count, err)
	}
}

func TestRepoPathLayout(t *testing.T) {
	t.Parallel()

	got := RepoPath("/var/repos", "abc", "widgets")
	if got != "/var/repos/abc/widgets.git" {
		t.Errorf("RepoPath = %q", got)
	}
	if strings.Contains(got, "..") {
		t.Error("path contains traversal")
	}
}
