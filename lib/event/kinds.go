// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package event

// Event kind constants. These values are protocol constants — changing
// them breaks interoperability with relays and other clients.
const (
	// KindProfileMetadata is the replaceable per-author profile event.
	KindProfileMetadata = 0

	// KindDeletion requests that relays and clients disregard the
	// events it references, by id ("e" tags) or by replaceable
	// address ("a" tags). Only the author of the referenced events
	// may delete them.
	KindDeletion = 5

	// KindRelayList is the replaceable per-author relay list: the
	// relays an identity reads from and writes to. Used to resolve
	// an identity's outbox relays before publishing events that
	// concern it.
	KindRelayList = 10002

	// KindOwnershipTransfer records a change of repository ownership.
	// Valid only when signed by the repository's then-current owner.
	// A regular (non-replaceable) kind: the whole chain of transfers
	// must be retained to validate any link, so replaceable
	// semantics would be incorrect.
	KindOwnershipTransfer = 1641

	// KindRepoAnnouncement declares a repository's existence,
	// location, and metadata. Parameterized-replaceable: the "d" tag
	// scopes the identifier to the author, and the latest event per
	// (author, d) wins.
	KindRepoAnnouncement = 30617
)

// IsReplaceable reports whether only the latest event of this kind per
// author is semantically meaningful.
func IsReplaceable(kind int) bool {
	return kind == KindProfileMetadata || kind == 3 ||
		(kind >= 10000 && kind < 20000)
}

// IsParamReplaceable reports whether the kind is replaceable per
// (author, d-tag) pair rather than per author alone.
func IsParamReplaceable(kind int) bool {
	return kind >= 30000 && kind < 40000
}
