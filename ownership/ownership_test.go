// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package ownership

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/nostrforge/nostrforge/lib/event"
	"github.com/nostrforge/nostrforge/relay"
)

// fakeRelay is an in-memory relay.Fetcher/Publisher. With
// ignoreFilters set it returns its whole store regardless of the
// query, imitating a malicious or sloppy relay that the resolver must
// defend against.
type fakeRelay struct {
	mu            sync.Mutex
	events        []event.Event
	ignoreFilters bool
	fetchCalls    int
	publishErr    error
	published     []event.Event
}

func (f *fakeRelay) FetchEvents(_ context.Context, filters []event.Filter) ([]event.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++

	var out []event.Event
	for _, ev := range f.events {
		if f.ignoreFilters {
			out = append(out, ev)
			continue
		}
		for i := range filters {
			if filters[i].Matches(&ev) {
				out = append(out, ev)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeRelay) PublishEvent(_ context.Context, ev event.Event, _ []string) (relay.PublishResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, ev)
	if f.publishErr != nil {
		return relay.PublishResult{Failed: []relay.PublishFailure{{Relay: "wss://fake", Reason: f.publishErr.Error(), Transient: relay.IsTransient(f.publishErr)}}}, f.publishErr
	}
	f.events = append(f.events, ev)
	return relay.PublishResult{Accepted: []string{"wss://fake"}}, nil
}

func (f *fakeRelay) add(events ...event.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, events...)
}

func newSigner(t *testing.T) *event.LocalSigner {
	t.Helper()
	signer, err := event.GenerateSigner()
	if err != nil {
		t.Fatalf("GenerateSigner: %v", err)
	}
	return signer
}

// signedTransfer builds and signs a transfer of the repository at addr
// to newOwner.
func signedTransfer(t *testing.T, signer *event.LocalSigner, addr event.RepoAddress, newOwner string, createdAt int64) event.Event {
	t.Helper()
	ev, err := event.BuildOwnershipTransfer(addr, newOwner, createdAt)
	if err != nil {
		t.Fatalf("BuildOwnershipTransfer: %v", err)
	}
	if err := signer.Sign(context.Background(), &ev); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return ev
}

// signedAnnouncement builds and signs an announcement from tpl.
func signedAnnouncement(t *testing.T, signer *event.LocalSigner, tpl event.AnnouncementTemplate) event.Event {
	t.Helper()
	ev, err := event.BuildRepoAnnouncement(tpl)
	if err != nil {
		t.Fatalf("BuildRepoAnnouncement: %v", err)
	}
	if err := signer.Sign(context.Background(), &ev); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return ev
}

func newResolver(t *testing.T, fetcher relay.Fetcher) *Resolver {
	t.Helper()
	resolver, err := NewResolver(ResolverConfig{Fetcher: fetcher})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return resolver
}
