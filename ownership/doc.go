// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package ownership derives who legitimately owns and maintains a
// repository from the public event stream, and nothing else. The
// stream is eventually consistent and partially adversarial: relays
// may withhold events, reorder them, or forward forgeries, so every
// conclusion here is drawn from verified signatures chained back to
// the repository's original announcement author.
//
// Three concerns live here: chain resolution (who owns the repository
// now), the transfer protocol (how ownership moves, and why a forged
// transfer cannot move it), and access resolution (the maintainer set
// and private-repository visibility derived from the announcement
// plus the current owner).
package ownership
