// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer holds key material in an anonymous mmap region outside the Go
// heap. The region is mlocked so it cannot reach swap, and marked
// MADV_DONTDUMP so it is absent from core dumps. Close zeroes and
// unmaps the region; after Close every accessor panics.
type Buffer struct {
	mu     sync.Mutex
	region []byte
	closed bool
}

// New allocates a zero-filled protected buffer of size bytes.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: invalid buffer size %d", size)
	}

	region, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap: %w", err)
	}
	if err := unix.Mlock(region); err != nil {
		unix.Munmap(region)
		return nil, fmt.Errorf("secret: mlock: %w", err)
	}
	// Older kernels lack MADV_DONTDUMP. The buffer is still pinned
	// out of swap, so treat failure as acceptable degradation.
	_ = unix.Madvise(region, unix.MADV_DONTDUMP)

	return &Buffer{region: region}, nil
}

// NewFromBytes copies source into a protected buffer and zeroes source
// in place, so the secret no longer lives in the caller's heap slice.
func NewFromBytes(source []byte) (*Buffer, error) {
	buf, err := New(len(source))
	if err != nil {
		return nil, err
	}
	copy(buf.region, source)
	Zero(source)
	return buf, nil
}

// Bytes returns the protected region itself, not a copy. Callers must
// not retain the slice past the buffer's lifetime.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("secret: use of closed buffer")
	}
	return b.region
}

// String copies the contents into an ordinary Go string. The copy is
// heap-allocated and outlives the buffer, so reserve String for API
// boundaries that insist on string arguments.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("secret: use of closed buffer")
	}
	return string(b.region)
}

// Len reports the buffer size in bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.region)
}

// Close zeroes, munlocks, and unmaps the region. Calling Close more
// than once is harmless.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	Zero(b.region)

	var first error
	if err := unix.Munlock(b.region); err != nil {
		first = fmt.Errorf("secret: munlock: %w", err)
	}
	if err := unix.Munmap(b.region); err != nil && first == nil {
		first = fmt.Errorf("secret: munmap: %w", err)
	}
	b.region = nil
	return first
}

// Zero overwrites data with zero bytes. Use it on transient copies of
// key material once they are no longer needed.
func Zero(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
