// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package event

import "fmt"

// RelayList is the typed view of an identity's replaceable relay-list
// event: where the identity reads from and writes to. Write relays are
// the identity's outbox — publishing events that concern the identity
// to its outbox maximizes the chance its followers see them.
type RelayList struct {
	// Read are relays the identity reads from.
	Read []string
	// Write are relays the identity writes to (the outbox).
	Write []string
	// Event is the underlying signed event.
	Event Event
}

// ParseRelayList converts a relay-list event into its typed view. An
// "r" tag with no marker counts as both read and write.
func ParseRelayList(ev Event) (*RelayList, error) {
	if ev.Kind != KindRelayList {
		return nil, fmt.Errorf("relay list: event %s has kind %d, want %d", truncate(ev.ID), ev.Kind, KindRelayList)
	}
	list := &RelayList{Event: ev}
	for _, tag := range ev.Tags {
		if len(tag) < 2 || tag[0] != "r" || tag[1] == "" {
			continue
		}
		url := tag[1]
		marker := ""
		if len(tag) >= 3 {
			marker = tag[2]
		}
		switch marker {
		case "read":
			list.Read = append(list.Read, url)
		case "write":
			list.Write = append(list.Write, url)
		default:
			list.Read = append(list.Read, url)
			list.Write = append(list.Write, url)
		}
	}
	return list, nil
}
