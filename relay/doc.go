// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay implements the event client: fetching and publishing
// signed events against a configurable set of relay endpoints. Relays
// are untrusted — they may be offline, drop events, or forward
// forgeries — so the pool verifies every fetched event's signature at
// the ingestion boundary, deduplicates by id across relays, and
// reports publishes as per-relay partial results rather than a single
// pass/fail.
//
// The package also provides the one retry combinator used by every
// publish, fetch, and push path in the system: bounded attempts with
// exponential backoff, retrying only errors marked transient.
package relay
