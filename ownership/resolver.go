// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package ownership

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/nostrforge/nostrforge/lib/event"
	"github.com/nostrforge/nostrforge/lib/eventcache"
	"github.com/nostrforge/nostrforge/relay"
)

// ResolverConfig holds configuration for creating a Resolver.
type ResolverConfig struct {
	// Fetcher is the authoritative event source. Required.
	Fetcher relay.Fetcher
	// Cache, when non-nil, fronts transfer-event fetches with a
	// short TTL. The cache is best-effort: resolution is correct
	// with or without it.
	Cache *eventcache.Cache
	// TransferTTL is the cache TTL for transfer-event fetches.
	// Default 30 seconds — ownership changes must become visible
	// quickly, and explicit invalidation on publish covers the
	// common case.
	TransferTTL time.Duration
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Resolver determines a repository's current legitimate owner by
// walking its chain of ownership-transfer events.
type Resolver struct {
	fetcher     relay.Fetcher
	cache       *eventcache.Cache
	transferTTL time.Duration
	logger      *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	if config.Fetcher == nil {
		return nil, fmt.Errorf("ownership: Fetcher is required")
	}
	if config.TransferTTL <= 0 {
		config.TransferTTL = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Resolver{
		fetcher:     config.Fetcher,
		cache:       config.Cache,
		transferTTL: config.TransferTTL,
		logger:      config.Logger,
	}, nil
}

// TransferRecord is one valid link in a repository's ownership chain.
type TransferRecord struct {
	// From is the pubkey that gave ownership away.
	From string
	// To is the pubkey that received it.
	To string
	// EventID is the transfer event's id.
	EventID string
	// Timestamp is the transfer event's created_at.
	Timestamp int64
}

// Info is the resolved ownership state of a repository.
type Info struct {
	// Owner is the current legitimate owner's pubkey.
	Owner string
	// Transferred reports whether ownership has moved beyond the
	// initial self-transfer anchor.
	Transferred bool
	// History is the valid chain, oldest first. Forged or orphaned
	// transfers do not appear.
	History []TransferRecord
}

// CurrentOwner returns the repository's current legitimate owner. With
// no valid transfers the owner is the original announcement author.
func (r *Resolver) CurrentOwner(ctx context.Context, originalOwner, repoID string) (string, error) {
	info, err := r.Resolve(ctx, originalOwner, repoID)
	if err != nil {
		return "", err
	}
	return info.Owner, nil
}

// Resolve returns the full ownership state: current owner, whether a
// transfer has occurred, and the valid chain.
//
// Candidate transfers are applied oldest to newest. A transfer counts
// only if its signer is the owner implied by the valid chain before
// it; anything else is a forgery relays failed to exclude, and it is
// ignored entirely rather than merely distrusted. Equal created_at
// values (second resolution, forgeable) are ordered by lexicographic
// event id, so the smaller id claims the chain and competing
// same-second transfers deterministically lose.
func (r *Resolver) Resolve(ctx context.Context, originalOwner, repoID string) (Info, error) {
	const op = "ownership resolution"

	if err := event.ValidatePubkey(originalOwner); err != nil {
		return Info{}, &ValidationError{Op: op, Field: "owner pubkey", Reason: err.Error()}
	}
	if repoID == "" {
		return Info{}, &ValidationError{Op: op, Field: "repository identifier", Reason: "empty"}
	}
	addr := event.NewRepoAddress(originalOwner, repoID)

	transfers, err := r.fetchTransfers(ctx, addr)
	if err != nil {
		return Info{}, fmt.Errorf("%s for %s: %w", op, addr, err)
	}
	return r.walkChain(addr, transfers), nil
}

// InvalidateRepo drops the cached transfer set for a repository. Call
// after successfully publishing a new transfer so subsequent reads see
// the new owner immediately.
func (r *Resolver) InvalidateRepo(originalOwner, repoID string) {
	if r.cache == nil {
		return
	}
	r.cache.Invalidate(transferFilters(event.NewRepoAddress(originalOwner, repoID)))
}

// transferFilters is the canonical query for a repository's transfer
// events. Resolution and invalidation must build the identical filter
// set or the cache keys will not collide.
func transferFilters(addr event.RepoAddress) []event.Filter {
	return []event.Filter{{
		Kinds: []int{event.KindOwnershipTransfer},
		Tags:  map[string][]string{"a": {addr.String()}},
	}}
}

func (r *Resolver) fetchTransfers(ctx context.Context, addr event.RepoAddress) ([]event.Event, error) {
	filters := transferFilters(addr)
	if r.cache != nil {
		if events, ok := r.cache.Get(filters); ok {
			return events, nil
		}
	}
	events, err := r.fetcher.FetchEvents(ctx, filters)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Set(filters, events, r.transferTTL)
	}
	return events, nil
}

// walkChain applies the chained-signature check over the candidate
// transfer events and returns the resolved ownership state.
func (r *Resolver) walkChain(addr event.RepoAddress, candidates []event.Event) Info {
	type link struct {
		transfer *event.OwnershipTransfer
	}
	var links []link
	for _, ev := range candidates {
		transfer, err := event.ParseOwnershipTransfer(ev)
		if err != nil {
			r.logger.Debug("skipping malformed transfer event", "error", err)
			continue
		}
		if transfer.Address != addr {
			// Valid signature, wrong repository: a replay attempt.
			// It must not affect this repository's resolution.
			r.logger.Warn("transfer event addresses a different repository",
				"event", truncateKey(ev.ID),
				"address", transfer.Address.String(),
				"expected", addr.String(),
				"security", true,
			)
			continue
		}
		if err := ev.Verify(); err != nil {
			r.logger.Warn("transfer event fails signature verification",
				"event", truncateKey(ev.ID),
				"error", err,
				"security", true,
			)
			continue
		}
		links = append(links, link{transfer: transfer})
	}

	// Oldest first; same-second ties by ascending event id. This
	// ordering is part of the protocol contract, not an iteration
	// accident.
	sort.Slice(links, func(i, j int) bool {
		a, b := links[i].transfer.Event, links[j].transfer.Event
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.ID < b.ID
	})

	info := Info{Owner: addr.Owner}
	for _, l := range links {
		ev := l.transfer.Event
		if ev.PubKey != info.Owner {
			r.logger.Warn("ignoring transfer signed by non-owner",
				"event", truncateKey(ev.ID),
				"signer", truncateKey(ev.PubKey),
				"owner", truncateKey(info.Owner),
				"security", true,
			)
			continue
		}
		info.History = append(info.History, TransferRecord{
			From:      ev.PubKey,
			To:        l.transfer.NewOwner,
			EventID:   ev.ID,
			Timestamp: ev.CreatedAt,
		})
		if !l.transfer.IsSelfTransfer() {
			info.Transferred = true
		}
		info.Owner = l.transfer.NewOwner
	}
	return info
}
