// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package forge provisions repositories on the platform: the fork
// workflow that clones a source repository, announces the fork, and
// anchors its ownership chain, with compensating cleanup when a step
// fails partway. It also keeps the per-repository papertrail and the
// per-identity provisioning limits.
package forge
