// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nostrforge/nostrforge/lib/secret"
)

const testKeyHex = "67dea2ed018072d675f5415ecfaed7d2597555e202d85b3d65ea4e58d2d92ffa"

func sealTestKey(t *testing.T, passphrase string) string {
	t.Helper()
	key, err := secret.NewFromBytes([]byte(testKeyHex))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer key.Close()

	path := filepath.Join(t.TempDir(), "signing.key.age")
	if err := SealKey(path, key, passphrase); err != nil {
		t.Fatalf("SealKey: %v", err)
	}
	return path
}

func TestSealUnsealRoundtrip(t *testing.T) {
	path := sealTestKey(t, "correct horse battery staple")

	key, err := UnsealKey(path, "correct horse battery staple")
	if err != nil {
		t.Fatalf("UnsealKey: %v", err)
	}
	defer key.Close()

	if key.String() != testKeyHex {
		t.Error("unsealed key does not match sealed input")
	}
}

func TestUnsealWrongPassphrase(t *testing.T) {
	path := sealTestKey(t, "correct horse battery staple")

	if _, err := UnsealKey(path, "wrong"); err == nil {
		t.Fatal("expected error for wrong passphrase")
	}
}

func TestSealedFileIsOpaque(t *testing.T) {
	path := sealTestKey(t, "correct horse battery staple")

	ciphertext, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.Contains(string(ciphertext), testKeyHex) {
		t.Error("key material visible in sealed file")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("key file mode = %o, want 0600", info.Mode().Perm())
	}
}

func TestUnsealMissingFile(t *testing.T) {
	if _, err := UnsealKey("/nonexistent/signing.key.age", "x"); err == nil {
		t.Fatal("expected error for missing key file")
	}
}
