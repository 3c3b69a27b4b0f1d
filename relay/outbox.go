// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"

	"github.com/nostrforge/nostrforge/lib/event"
)

// OutboxRelays returns the write relays from a pubkey's latest
// relay-list event, or nil when the identity has published none.
// Publishing events that concern an identity to its outbox maximizes
// the chance they are seen; callers union the result with the
// platform defaults.
func OutboxRelays(ctx context.Context, fetcher Fetcher, pubkey string) ([]string, error) {
	filters := []event.Filter{{
		Authors: []string{pubkey},
		Kinds:   []int{event.KindRelayList},
		Limit:   1,
	}}
	events, err := fetcher.FetchEvents(ctx, filters)
	if err != nil {
		return nil, err
	}
	// FetchEvents orders newest first; the first parseable relay
	// list is the current one.
	for _, ev := range events {
		list, err := event.ParseRelayList(ev)
		if err != nil {
			continue
		}
		return list.Write, nil
	}
	return nil, nil
}

// UnionRelays merges relay URL lists, dropping duplicates while
// preserving first-seen order.
func UnionRelays(lists ...[]string) []string {
	seen := make(map[string]bool)
	var union []string
	for _, list := range lists {
		for _, url := range list {
			if url == "" || seen[url] {
				continue
			}
			seen[url] = true
			union = append(union, url)
		}
	}
	return union
}
