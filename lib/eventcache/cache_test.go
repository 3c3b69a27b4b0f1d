// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package eventcache

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nostrforge/nostrforge/lib/clock"
	"github.com/nostrforge/nostrforge/lib/event"
)

func testCache(t *testing.T, maxEntries int) (*Cache, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake()
	cache := New(Config{
		MaxEntries: maxEntries,
		DefaultTTL: time.Minute,
		Clock:      fake,
	})
	return cache, fake
}

func makeEvent(id byte, author byte, kind int, createdAt int64) event.Event {
	return event.Event{
		ID:        strings.Repeat(fmt.Sprintf("%02x", id), 32),
		PubKey:    strings.Repeat(fmt.Sprintf("%02x", author), 32),
		Kind:      kind,
		CreatedAt: createdAt,
		Tags:      [][]string{},
	}
}

func transferFilter(addr string) []event.Filter {
	return []event.Filter{{
		Kinds: []int{event.KindOwnershipTransfer},
		Tags:  map[string][]string{"a": {addr}},
	}}
}

func TestFingerprintOrderInsensitive(t *testing.T) {
	a := []event.Filter{
		{Kinds: []int{1, 2}, Authors: []string{"x", "y"}},
		{IDs: []string{"p", "q"}},
	}
	b := []event.Filter{
		{IDs: []string{"q", "p"}},
		{Authors: []string{"y", "x"}, Kinds: []int{2, 1}},
	}
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("reordered filter sets produced different fingerprints")
	}

	c := []event.Filter{{Kinds: []int{1, 2}, Authors: []string{"x"}}}
	if Fingerprint(a) == Fingerprint(c) {
		t.Error("different filter sets produced the same fingerprint")
	}
}

func TestRoundTripAndTTLExpiry(t *testing.T) {
	cache, fake := testCache(t, 16)
	filters := transferFilter("30617:aa:repo")
	events := []event.Event{makeEvent(1, 1, event.KindOwnershipTransfer, 100)}

	cache.Set(filters, events, 30*time.Second)

	got, ok := cache.Get(filters)
	if !ok || len(got) != 1 || got[0].ID != events[0].ID {
		t.Fatalf("Get after Set = %v, %v", got, ok)
	}

	// A semantically identical query built in a different order hits
	// the same entry.
	reordered := []event.Filter{{
		Tags:  map[string][]string{"a": {"30617:aa:repo"}},
		Kinds: []int{event.KindOwnershipTransfer},
	}}
	if _, ok := cache.Get(reordered); !ok {
		t.Error("reordered filter missed the cache")
	}

	fake.Advance(31 * time.Second)
	if _, ok := cache.Get(filters); ok {
		t.Error("Get served an entry past its TTL")
	}
	if cache.Len() != 0 {
		t.Error("expired entry was not dropped on access")
	}
}

func TestZeroTTLUsesDefault(t *testing.T) {
	cache, fake := testCache(t, 16)
	filters := transferFilter("30617:aa:repo")
	cache.Set(filters, []event.Event{makeEvent(1, 1, event.KindOwnershipTransfer, 100)}, 0)

	fake.Advance(59 * time.Second)
	if _, ok := cache.Get(filters); !ok {
		t.Error("entry expired before the default TTL")
	}
	fake.Advance(2 * time.Second)
	if _, ok := cache.Get(filters); ok {
		t.Error("entry survived past the default TTL")
	}
}

func TestReplaceableCompression(t *testing.T) {
	cache, _ := testCache(t, 16)
	authorA := strings.Repeat("01", 32)
	authorB := strings.Repeat("02", 32)
	filters := []event.Filter{{
		Kinds:   []int{event.KindProfileMetadata},
		Authors: []string{authorA, authorB},
	}}
	events := []event.Event{
		makeEvent(1, 1, event.KindProfileMetadata, 100),
		makeEvent(2, 1, event.KindProfileMetadata, 200), // newer, same author
		makeEvent(3, 2, event.KindProfileMetadata, 150),
	}

	cache.Set(filters, events, 0)
	got, ok := cache.Get(filters)
	if !ok {
		t.Fatal("miss after Set")
	}
	if len(got) != 2 {
		t.Fatalf("compressed to %d events, want 2 (one per author)", len(got))
	}
	for _, ev := range got {
		if ev.PubKey == authorA && ev.CreatedAt != 200 {
			t.Errorf("kept created_at %d for author A, want the newest (200)", ev.CreatedAt)
		}
	}
}

func TestParamReplaceableNotCompressed(t *testing.T) {
	cache, _ := testCache(t, 16)
	author := strings.Repeat("01", 32)
	filters := []event.Filter{{
		Kinds:   []int{event.KindRepoAnnouncement},
		Authors: []string{author},
	}}
	events := []event.Event{
		makeEvent(1, 1, event.KindRepoAnnouncement, 100),
		makeEvent(2, 1, event.KindRepoAnnouncement, 200),
	}
	cache.Set(filters, events, 0)
	got, _ := cache.Get(filters)
	if len(got) != 2 {
		t.Fatalf("parameterized-replaceable query was compressed to %d events", len(got))
	}
}

func TestProcessDeletionsByID(t *testing.T) {
	cache, _ := testCache(t, 16)
	target := makeEvent(1, 1, event.KindOwnershipTransfer, 100)
	bystander := makeEvent(2, 1, event.KindOwnershipTransfer, 200)

	containing := transferFilter("30617:aa:repo")
	unrelated := transferFilter("30617:bb:other")
	cache.Set(containing, []event.Event{target, bystander}, 0)
	cache.Set(unrelated, []event.Event{bystander}, 0)

	deletion := &event.Deletion{
		EventIDs: []string{target.ID},
		Event:    event.Event{PubKey: target.PubKey, Kind: event.KindDeletion},
	}
	cache.ProcessDeletions([]*event.Deletion{deletion})

	got, ok := cache.Get(containing)
	if !ok || len(got) != 1 || got[0].ID != bystander.ID {
		t.Fatalf("entry after deletion = %v, %v", got, ok)
	}
	if got, ok := cache.Get(unrelated); !ok || len(got) != 1 {
		t.Error("entry not containing the deleted event was touched")
	}
}

func TestProcessDeletionsDropsEmptyEntries(t *testing.T) {
	cache, _ := testCache(t, 16)
	target := makeEvent(1, 1, event.KindOwnershipTransfer, 100)
	filters := transferFilter("30617:aa:repo")
	cache.Set(filters, []event.Event{target}, 0)

	deletion := &event.Deletion{
		EventIDs: []string{target.ID},
		Event:    event.Event{PubKey: target.PubKey, Kind: event.KindDeletion},
	}
	cache.ProcessDeletions([]*event.Deletion{deletion})

	if cache.Len() != 0 {
		t.Error("entry that became empty was not dropped")
	}
}

func TestProcessDeletionsRequiresMatchingAuthor(t *testing.T) {
	cache, _ := testCache(t, 16)
	target := makeEvent(1, 1, event.KindOwnershipTransfer, 100)
	filters := transferFilter("30617:aa:repo")
	cache.Set(filters, []event.Event{target}, 0)

	// A deletion signed by someone else must not purge the event.
	forged := &event.Deletion{
		EventIDs: []string{target.ID},
		Event:    event.Event{PubKey: strings.Repeat("ff", 32), Kind: event.KindDeletion},
	}
	cache.ProcessDeletions([]*event.Deletion{forged})

	if got, ok := cache.Get(filters); !ok || len(got) != 1 {
		t.Error("deletion by a non-author purged the event")
	}
}

func TestProcessDeletionsByAddress(t *testing.T) {
	cache, _ := testCache(t, 16)
	author := strings.Repeat("01", 32)
	announcement := event.Event{
		ID:        strings.Repeat("03", 32),
		PubKey:    author,
		Kind:      event.KindRepoAnnouncement,
		CreatedAt: 100,
		Tags:      [][]string{{"d", "repo"}},
	}
	filters := []event.Filter{{Kinds: []int{event.KindRepoAnnouncement}, Authors: []string{author}}}
	cache.Set(filters, []event.Event{announcement}, 0)

	deletion := &event.Deletion{
		Addresses: []event.RepoAddress{event.NewRepoAddress(author, "repo")},
		Event:     event.Event{PubKey: author, Kind: event.KindDeletion},
	}
	cache.ProcessDeletions([]*event.Deletion{deletion})

	if cache.Len() != 0 {
		t.Error("address-based deletion did not purge the announcement")
	}
}

func TestInvalidateEventAndPubkey(t *testing.T) {
	cache, _ := testCache(t, 16)
	ev := makeEvent(1, 1, event.KindOwnershipTransfer, 100)
	other := makeEvent(2, 2, event.KindOwnershipTransfer, 100)

	cache.Set(transferFilter("30617:aa:repo"), []event.Event{ev}, 0)
	cache.Set(transferFilter("30617:bb:other"), []event.Event{other}, 0)

	cache.InvalidateEvent(ev.ID)
	if _, ok := cache.Get(transferFilter("30617:aa:repo")); ok {
		t.Error("InvalidateEvent left a containing entry")
	}
	if _, ok := cache.Get(transferFilter("30617:bb:other")); !ok {
		t.Error("InvalidateEvent dropped an unrelated entry")
	}

	cache.InvalidatePubkey(other.PubKey)
	if cache.Len() != 0 {
		t.Error("InvalidatePubkey left a containing entry")
	}
}

func TestEvictionDropsOldestTenth(t *testing.T) {
	cache, fake := testCache(t, 20)

	for i := 0; i < 20; i++ {
		filters := transferFilter(fmt.Sprintf("30617:aa:repo-%d", i))
		cache.Set(filters, []event.Event{makeEvent(byte(i+1), 1, event.KindOwnershipTransfer, 100)}, time.Hour)
		fake.Advance(time.Second)
	}
	if cache.Len() != 20 {
		t.Fatalf("Len = %d, want 20", cache.Len())
	}

	// The next insert hits the cap: the oldest 10% (2 entries) go.
	cache.Set(transferFilter("30617:aa:overflow"), []event.Event{makeEvent(99, 1, event.KindOwnershipTransfer, 100)}, time.Hour)

	if cache.Len() != 19 {
		t.Fatalf("Len after eviction = %d, want 19", cache.Len())
	}
	if _, ok := cache.Get(transferFilter("30617:aa:repo-0")); ok {
		t.Error("oldest entry survived eviction")
	}
	if _, ok := cache.Get(transferFilter("30617:aa:repo-19")); !ok {
		t.Error("newest entry was evicted")
	}
}
