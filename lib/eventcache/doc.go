// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package eventcache provides the in-process, TTL-based cache of
// signed events that sits in front of relay fetches. Entries are keyed
// by a normalized fingerprint of the query filters, so semantically
// identical queries collide regardless of submission order. The cache
// understands replaceable-event compression (latest per author) and
// deletion-event purging.
//
// The cache is best-effort: a miss or an invalidation race costs a
// relay round-trip, never correctness. Callers must always be prepared
// to fall through to the authoritative event client.
package eventcache
