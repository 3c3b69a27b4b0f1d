// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package eventcache

import (
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/nostrforge/nostrforge/lib/event"
)

// Fingerprint returns a deterministic hash key for a filter set.
// Filters are order-insensitive, as are the values within every
// array-valued criterion, so semantically identical queries always
// produce the same key.
func Fingerprint(filters []event.Filter) string {
	canonical := make([]string, 0, len(filters))
	for _, f := range filters {
		canonical = append(canonical, canonicalFilter(&f))
	}
	sort.Strings(canonical)

	digest := blake3.Sum256([]byte(strings.Join(canonical, "\n")))
	return hex.EncodeToString(digest[:])
}

// canonicalFilter renders one filter as a sorted, unambiguous string.
// Criterion names are fixed and values are sorted copies, so the
// output is independent of construction order.
func canonicalFilter(f *event.Filter) string {
	var parts []string

	if len(f.IDs) > 0 {
		parts = append(parts, "ids="+joinSorted(f.IDs))
	}
	if len(f.Authors) > 0 {
		parts = append(parts, "authors="+joinSorted(f.Authors))
	}
	if len(f.Kinds) > 0 {
		kinds := make([]string, len(f.Kinds))
		for i, kind := range f.Kinds {
			kinds[i] = strconv.Itoa(kind)
		}
		sort.Strings(kinds)
		parts = append(parts, "kinds="+strings.Join(kinds, ","))
	}
	if len(f.Tags) > 0 {
		names := make([]string, 0, len(f.Tags))
		for name, values := range f.Tags {
			if len(values) > 0 {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			parts = append(parts, "#"+name+"="+joinSorted(f.Tags[name]))
		}
	}
	if f.Since != 0 {
		parts = append(parts, "since="+strconv.FormatInt(f.Since, 10))
	}
	if f.Until != 0 {
		parts = append(parts, "until="+strconv.FormatInt(f.Until, 10))
	}
	if f.Limit != 0 {
		parts = append(parts, "limit="+strconv.Itoa(f.Limit))
	}
	return strings.Join(parts, "&")
}

func joinSorted(values []string) string {
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
