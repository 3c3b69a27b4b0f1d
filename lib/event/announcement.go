// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"fmt"
	"strings"
)

// RepoAnnouncement is the typed view of a repository announcement
// event: the durable address plus the metadata the announcement
// carries. Multiple announcements may exist over time for the same
// address; the latest by created_at supersedes the rest.
type RepoAnnouncement struct {
	// Address is (kind, author, identifier) — the repository's
	// durable address.
	Address RepoAddress
	// Name is the display name, falling back to the identifier.
	Name string
	// Description is the human-readable description.
	Description string
	// CloneURLs are the claimed git clone locations.
	CloneURLs []string
	// Relays are the relay hints where repository events are published.
	Relays []string
	// Maintainers are additional pubkeys granted write access, as
	// listed by the announcement author. The resolved owner is not
	// necessarily among them.
	Maintainers []string
	// Private marks the repository as private: reads require owner
	// or maintainer identity.
	Private bool
	// ForkOrigin is the address of the repository this one was forked
	// from, zero for original repositories.
	ForkOrigin RepoAddress
	// Event is the underlying signed event.
	Event Event
}

// ParseRepoAnnouncement validates and converts an announcement event
// into its typed view. It checks structure, not signatures — callers
// verify signatures at the ingestion boundary.
func ParseRepoAnnouncement(ev Event) (*RepoAnnouncement, error) {
	if ev.Kind != KindRepoAnnouncement {
		return nil, fmt.Errorf("announcement: event %s has kind %d, want %d", truncate(ev.ID), ev.Kind, KindRepoAnnouncement)
	}
	identifier := ev.TagValue("d")
	if identifier == "" {
		return nil, fmt.Errorf("announcement: event %s is missing the d tag", truncate(ev.ID))
	}
	if err := validatePubkey(ev.PubKey); err != nil {
		return nil, fmt.Errorf("announcement: event %s: %w", truncate(ev.ID), err)
	}

	ann := &RepoAnnouncement{
		Address:     NewRepoAddress(ev.PubKey, identifier),
		Name:        ev.TagValue("name"),
		Description: ev.TagValue("description"),
		Event:       ev,
	}
	if ann.Name == "" {
		ann.Name = identifier
	}

	// Multi-value tags: every element after the tag name counts.
	if tag := ev.Tag("clone"); tag != nil {
		ann.CloneURLs = append(ann.CloneURLs, tag[1:]...)
	}
	if tag := ev.Tag("relays"); tag != nil {
		ann.Relays = append(ann.Relays, tag[1:]...)
	}
	if tag := ev.Tag("maintainers"); tag != nil {
		for _, pk := range tag[1:] {
			if validatePubkey(strings.ToLower(pk)) == nil {
				ann.Maintainers = append(ann.Maintainers, strings.ToLower(pk))
			}
		}
	}
	if ev.Tag("private") != nil {
		ann.Private = true
	}
	if origin := ev.TagValue("fork"); origin != "" {
		addr, err := ParseRepoAddress(origin)
		if err != nil {
			return nil, fmt.Errorf("announcement: event %s fork tag: %w", truncate(ev.ID), err)
		}
		ann.ForkOrigin = addr
	}
	return ann, nil
}

// AnnouncementTemplate carries the fields needed to build an unsigned
// repository announcement event.
type AnnouncementTemplate struct {
	Identifier  string
	Name        string
	Description string
	CloneURLs   []string
	Relays      []string
	Maintainers []string
	Private     bool
	ForkOrigin  RepoAddress
	CreatedAt   int64
}

// BuildRepoAnnouncement returns an unsigned announcement event for the
// template. The caller signs and publishes it.
func BuildRepoAnnouncement(tpl AnnouncementTemplate) (Event, error) {
	if tpl.Identifier == "" {
		return Event{}, fmt.Errorf("announcement: identifier is required")
	}
	tags := [][]string{{"d", tpl.Identifier}}
	if tpl.Name != "" {
		tags = append(tags, []string{"name", tpl.Name})
	}
	if tpl.Description != "" {
		tags = append(tags, []string{"description", tpl.Description})
	}
	if len(tpl.CloneURLs) > 0 {
		tags = append(tags, append([]string{"clone"}, tpl.CloneURLs...))
	}
	if len(tpl.Relays) > 0 {
		tags = append(tags, append([]string{"relays"}, tpl.Relays...))
	}
	if len(tpl.Maintainers) > 0 {
		tags = append(tags, append([]string{"maintainers"}, tpl.Maintainers...))
	}
	if tpl.Private {
		tags = append(tags, []string{"private"})
	}
	if !tpl.ForkOrigin.IsZero() {
		tags = append(tags, []string{"fork", tpl.ForkOrigin.String()})
	}
	return Event{
		Kind:      KindRepoAnnouncement,
		CreatedAt: tpl.CreatedAt,
		Tags:      tags,
	}, nil
}
