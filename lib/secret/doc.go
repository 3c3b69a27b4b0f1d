// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret keeps unsealed key material off the Go heap.
//
// A [Buffer] is backed by an anonymous mmap region that is mlocked
// (never swapped) and excluded from core dumps where the kernel
// supports it. Because the region is invisible to the garbage
// collector it is never copied or relocated, so zeroing it on [Buffer.Close]
// genuinely destroys the secret.
//
// Construct with [New] or [NewFromBytes] (which zeroes its source).
// Read through [Buffer.Bytes], or [Buffer.String] when an API boundary
// demands a string. [Zero] scrubs transient plain slices.
//
// lib/sealed returns the platform signing key in a Buffer after
// decrypting it from disk.
package secret
