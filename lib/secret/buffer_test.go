// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"testing"
)

func TestNewZeroFilled(t *testing.T) {
	t.Parallel()

	buf, err := New(64)
	if err != nil {
		t.Fatalf("New(64): %v", err)
	}
	defer buf.Close()

	if buf.Len() != 64 {
		t.Fatalf("Len() = %d, want 64", buf.Len())
	}
	if !bytes.Equal(buf.Bytes(), make([]byte, 64)) {
		t.Error("fresh buffer is not zero-filled")
	}
}

func TestNewRejectsNonPositiveSize(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, -1, -64} {
		if _, err := New(size); err == nil {
			t.Errorf("New(%d) succeeded, want error", size)
		}
	}
}

func TestNewFromBytesZeroesSource(t *testing.T) {
	t.Parallel()

	source := []byte("nsec-material-here")
	want := string(source)

	buf, err := NewFromBytes(source)
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer buf.Close()

	if got := buf.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	for i, b := range source {
		if b != 0 {
			t.Fatalf("source[%d] = %d after NewFromBytes, want 0", i, b)
		}
	}
}

func TestNewFromBytesEmpty(t *testing.T) {
	t.Parallel()

	if _, err := NewFromBytes(nil); err == nil {
		t.Fatal("NewFromBytes(nil) succeeded, want error")
	}
}

func TestCloseZeroesAndIsIdempotent(t *testing.T) {
	t.Parallel()

	buf, err := New(32)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	copy(buf.Bytes(), "residue that must not survive")

	if err := buf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if buf.region != nil {
		t.Error("region still mapped after Close")
	}
	if err := buf.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestAccessAfterClosePanics(t *testing.T) {
	t.Parallel()

	buf, err := New(16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	buf.Close()

	for name, access := range map[string]func(){
		"Bytes":  func() { buf.Bytes() },
		"String": func() { _ = buf.String() },
	} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("%s after Close did not panic", name)
				}
			}()
			access()
		}()
	}
}

func TestZero(t *testing.T) {
	t.Parallel()

	data := []byte{1, 2, 3, 4}
	Zero(data)
	if !bytes.Equal(data, []byte{0, 0, 0, 0}) {
		t.Errorf("Zero left %v", data)
	}
}
