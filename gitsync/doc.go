// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package gitsync keeps local bare repositories synchronized with the
// clone URLs announced on relays. It wraps the git CLI for repository
// operations and provides a multi-remote sync engine with per-remote
// failure isolation, bounded retries, and proxy-scoped transport for
// anonymizing-network remotes.
package gitsync
