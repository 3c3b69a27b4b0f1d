// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"encoding/json"
	"slices"
)

// Filter is an order-insensitive, array-valued event query. Within a
// criterion the values are alternatives (OR); across criteria the
// conditions all apply (AND). A zero criterion matches everything.
type Filter struct {
	// IDs matches events whose id is listed.
	IDs []string
	// Authors matches events whose pubkey is listed.
	Authors []string
	// Kinds matches events whose kind is listed.
	Kinds []int
	// Tags maps a single-letter tag name (without the "#" prefix) to
	// accepted values for that tag.
	Tags map[string][]string
	// Since matches events with created_at >= Since when non-zero.
	Since int64
	// Until matches events with created_at <= Until when non-zero.
	Until int64
	// Limit caps how many events a relay should return. Zero means
	// no explicit cap.
	Limit int
}

// Matches reports whether ev satisfies every criterion of the filter.
func (f *Filter) Matches(ev *Event) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, ev.ID) {
		return false
	}
	if len(f.Authors) > 0 && !slices.Contains(f.Authors, ev.PubKey) {
		return false
	}
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, ev.Kind) {
		return false
	}
	if f.Since != 0 && ev.CreatedAt < f.Since {
		return false
	}
	if f.Until != 0 && ev.CreatedAt > f.Until {
		return false
	}
	for name, accepted := range f.Tags {
		if len(accepted) == 0 {
			continue
		}
		found := false
		for _, value := range ev.TagValues(name) {
			if slices.Contains(accepted, value) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// MarshalJSON writes the relay wire form: tag criteria appear as
// "#<name>" keys alongside the fixed fields, and empty criteria are
// omitted entirely.
func (f Filter) MarshalJSON() ([]byte, error) {
	wire := make(map[string]any)
	if len(f.IDs) > 0 {
		wire["ids"] = f.IDs
	}
	if len(f.Authors) > 0 {
		wire["authors"] = f.Authors
	}
	if len(f.Kinds) > 0 {
		wire["kinds"] = f.Kinds
	}
	for name, values := range f.Tags {
		if len(values) > 0 {
			wire["#"+name] = values
		}
	}
	if f.Since != 0 {
		wire["since"] = f.Since
	}
	if f.Until != 0 {
		wire["until"] = f.Until
	}
	if f.Limit != 0 {
		wire["limit"] = f.Limit
	}
	return json.Marshal(wire)
}
