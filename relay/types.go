// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"

	"github.com/nostrforge/nostrforge/lib/event"
)

// Fetcher fetches events matching a filter set. Implementations may
// consult multiple relays; the returned slice is deduplicated by event
// id and every event has a verified signature.
type Fetcher interface {
	FetchEvents(ctx context.Context, filters []event.Filter) ([]event.Event, error)
}

// Publisher publishes a signed event to a set of relays. An empty
// relay list means the implementation's default set. The result
// carries per-relay detail; the error is non-nil only when no relay
// accepted.
type Publisher interface {
	PublishEvent(ctx context.Context, ev event.Event, relayURLs []string) (PublishResult, error)
}

// Client is the combined event transport contract consumed by
// ownership resolution and the provisioning workflow.
type Client interface {
	Fetcher
	Publisher
}

// PublishResult summarizes a multi-relay publish. Fan-out rarely fails
// uniformly, so callers get counts and per-relay reasons instead of a
// boolean.
type PublishResult struct {
	// Accepted lists the relay URLs that acknowledged the event.
	Accepted []string
	// Failed lists the relays that rejected the event or could not
	// be reached.
	Failed []PublishFailure
}

// Ok reports whether at least one relay accepted the event — the
// durability bar for every publish in the system.
func (r PublishResult) Ok() bool { return len(r.Accepted) > 0 }

// PublishFailure describes one relay's rejection.
type PublishFailure struct {
	// Relay is the relay URL.
	Relay string
	// Reason is the relay's rejection message or the transport error.
	Reason string
	// Transient marks failures worth retrying (connection errors,
	// relay overload) as opposed to rejections (invalid event,
	// policy refusal).
	Transient bool
}
