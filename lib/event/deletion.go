// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package event

import "fmt"

// Deletion is the typed view of a deletion event: a request that
// relays and caches disregard the referenced events. References are by
// event id ("e" tags) and by replaceable address ("a" tags).
type Deletion struct {
	// EventIDs are the ids of the deleted events.
	EventIDs []string
	// Addresses are the deleted kind:pubkey:identifier triples.
	Addresses []RepoAddress
	// Event is the underlying signed event.
	Event Event
}

// ParseDeletion validates and converts a deletion event into its
// typed view. A deletion with no references is rejected.
func ParseDeletion(ev Event) (*Deletion, error) {
	if ev.Kind != KindDeletion {
		return nil, fmt.Errorf("deletion: event %s has kind %d, want %d", truncate(ev.ID), ev.Kind, KindDeletion)
	}
	del := &Deletion{Event: ev}
	del.EventIDs = append(del.EventIDs, ev.TagValues("e")...)
	for _, value := range ev.TagValues("a") {
		addr, err := ParseRepoAddress(value)
		if err != nil {
			continue // malformed address references are ignored, not fatal
		}
		del.Addresses = append(del.Addresses, addr)
	}
	if len(del.EventIDs) == 0 && len(del.Addresses) == 0 {
		return nil, fmt.Errorf("deletion: event %s references nothing", truncate(ev.ID))
	}
	return del, nil
}

// BuildDeletion returns an unsigned deletion event template naming the
// given event ids and addresses. The reason is carried in the content.
func BuildDeletion(eventIDs []string, addresses []RepoAddress, reason string, createdAt int64) (Event, error) {
	if len(eventIDs) == 0 && len(addresses) == 0 {
		return Event{}, fmt.Errorf("deletion: at least one event id or address is required")
	}
	var tags [][]string
	for _, id := range eventIDs {
		tags = append(tags, []string{"e", id})
	}
	for _, addr := range addresses {
		tags = append(tags, []string{"a", addr.String()})
	}
	return Event{
		Kind:      KindDeletion,
		CreatedAt: createdAt,
		Tags:      tags,
		Content:   reason,
	}, nil
}
