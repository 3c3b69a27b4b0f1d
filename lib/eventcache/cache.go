// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package eventcache

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nostrforge/nostrforge/lib/clock"
	"github.com/nostrforge/nostrforge/lib/event"
)

// Config holds construction parameters for a Cache.
type Config struct {
	// MaxEntries caps the number of cache entries. When the cap is
	// reached, the oldest 10% of entries are evicted. Default 1024.
	MaxEntries int
	// DefaultTTL applies to Set calls that pass a zero TTL.
	// Default 60 seconds.
	DefaultTTL time.Duration
	// Clock supplies time. If nil, clock.Real() is used.
	Clock clock.Clock
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Cache is a process-wide, mutex-guarded event cache. One instance is
// constructed at startup and passed by reference to every component
// that needs it; there is no package-level shared instance.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	maxEntries int
	defaultTTL time.Duration
	clock      clock.Clock
	logger     *slog.Logger
}

type cacheEntry struct {
	events   []event.Event
	storedAt time.Time
	ttl      time.Duration
}

func (e *cacheEntry) expired(now time.Time) bool {
	return now.After(e.storedAt.Add(e.ttl))
}

// New creates an empty Cache.
func New(config Config) *Cache {
	if config.MaxEntries <= 0 {
		config.MaxEntries = 1024
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 60 * time.Second
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Cache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: config.MaxEntries,
		defaultTTL: config.DefaultTTL,
		clock:      config.Clock,
		logger:     config.Logger,
	}
}

// Get returns the cached events for the filter set, or ok=false on a
// miss or an expired entry. Expired entries are dropped on access.
func (c *Cache) Get(filters []event.Filter) ([]event.Event, bool) {
	key := Fingerprint(filters)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, found := c.entries[key]
	if !found {
		return nil, false
	}
	if entry.expired(c.clock.Now()) {
		delete(c.entries, key)
		return nil, false
	}

	// Return a copy so callers cannot mutate the cached snapshot.
	events := make([]event.Event, len(entry.events))
	copy(events, entry.events)
	return events, true
}

// Set stores a snapshot of events for the filter set. A zero ttl uses
// the default. Filter sets that ask for "latest replaceable event per
// author" (replaceable kinds plus an author list) are compressed to
// one event per author, keeping the greatest created_at.
func (c *Cache) Set(filters []event.Filter, events []event.Event, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if isLatestPerAuthorQuery(filters) {
		events = compressLatestPerAuthor(events)
	}

	stored := make([]event.Event, len(events))
	copy(stored, events)

	key := Fingerprint(filters)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = &cacheEntry{
		events:   stored,
		storedAt: c.clock.Now(),
		ttl:      ttl,
	}
}

// Invalidate drops the entry for the filter set, if present.
func (c *Cache) Invalidate(filters []event.Filter) {
	key := Fingerprint(filters)
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidateEvent drops every entry containing an event with the given
// id. Linear in entries times events per entry; entries are capped, so
// the scan stays cheap.
func (c *Cache) InvalidateEvent(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		for i := range entry.events {
			if entry.events[i].ID == id {
				delete(c.entries, key)
				break
			}
		}
	}
}

// InvalidatePubkey drops every entry containing an event authored by
// the given pubkey.
func (c *Cache) InvalidatePubkey(pubkey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		for i := range entry.events {
			if entry.events[i].PubKey == pubkey {
				delete(c.entries, key)
				break
			}
		}
	}
}

// ProcessDeletions removes every cached event a deletion references,
// synchronously. References match by event id or by replaceable
// address triple, and only when the deletion author matches the
// deleted event's author — a deletion cannot purge someone else's
// events. Entries that become empty are dropped; surviving entries
// have their timestamp touched because their content changed.
func (c *Cache) ProcessDeletions(deletions []*event.Deletion) {
	type addressKey struct {
		address string
		author  string
	}
	deletedIDs := make(map[string]string)       // event id -> deletion author
	deletedAddrs := make(map[addressKey]bool)
	for _, del := range deletions {
		for _, id := range del.EventIDs {
			deletedIDs[id] = del.Event.PubKey
		}
		for _, addr := range del.Addresses {
			deletedAddrs[addressKey{address: addr.String(), author: del.Event.PubKey}] = true
		}
	}
	if len(deletedIDs) == 0 && len(deletedAddrs) == 0 {
		return
	}

	matches := func(ev *event.Event) bool {
		if author, ok := deletedIDs[ev.ID]; ok && author == ev.PubKey {
			return true
		}
		if event.IsParamReplaceable(ev.Kind) {
			key := addressKey{
				address: event.RepoAddress{Kind: ev.Kind, Owner: ev.PubKey, Identifier: ev.TagValue("d")}.String(),
				author:  ev.PubKey,
			}
			if deletedAddrs[key] {
				return true
			}
		}
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	for key, entry := range c.entries {
		kept := entry.events[:0]
		removed := 0
		for i := range entry.events {
			if matches(&entry.events[i]) {
				removed++
				continue
			}
			kept = append(kept, entry.events[i])
		}
		if removed == 0 {
			continue
		}
		if len(kept) == 0 {
			delete(c.entries, key)
			continue
		}
		entry.events = kept
		entry.storedAt = now
		c.logger.Debug("purged deleted events from cache entry",
			"removed", removed,
			"remaining", len(kept),
		)
	}
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictOldestLocked removes the oldest 10% of entries (at least one)
// by storage timestamp. Caller holds the mutex.
func (c *Cache) evictOldestLocked() {
	type aged struct {
		key      string
		storedAt time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for key, entry := range c.entries {
		all = append(all, aged{key: key, storedAt: entry.storedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].storedAt.Before(all[j].storedAt) })

	count := len(all) / 10
	if count < 1 {
		count = 1
	}
	for _, victim := range all[:count] {
		delete(c.entries, victim.key)
	}
	c.logger.Debug("evicted oldest cache entries", "count", count)
}

// isLatestPerAuthorQuery reports whether every filter in the set asks
// for replaceable kinds scoped to explicit authors — the profile-style
// query shape where only the latest event per author matters.
// Parameterized-replaceable kinds are excluded: their d-tag is part of
// their identity, so per-author compression would discard live data.
func isLatestPerAuthorQuery(filters []event.Filter) bool {
	if len(filters) == 0 {
		return false
	}
	for _, f := range filters {
		if len(f.Kinds) == 0 || len(f.Authors) == 0 {
			return false
		}
		for _, kind := range f.Kinds {
			if !event.IsReplaceable(kind) {
				return false
			}
		}
	}
	return true
}

// compressLatestPerAuthor keeps one event per author: the greatest
// created_at, ties broken by the lexicographically smaller id so the
// result is deterministic.
func compressLatestPerAuthor(events []event.Event) []event.Event {
	latest := make(map[string]event.Event)
	for _, ev := range events {
		current, found := latest[ev.PubKey]
		if !found || ev.CreatedAt > current.CreatedAt ||
			(ev.CreatedAt == current.CreatedAt && ev.ID < current.ID) {
			latest[ev.PubKey] = ev
		}
	}
	compressed := make([]event.Event, 0, len(latest))
	for _, ev := range latest {
		compressed = append(compressed, ev)
	}
	sort.Slice(compressed, func(i, j int) bool {
		if compressed[i].CreatedAt != compressed[j].CreatedAt {
			return compressed[i].CreatedAt > compressed[j].CreatedAt
		}
		return compressed[i].ID < compressed[j].ID
	})
	return compressed
}
