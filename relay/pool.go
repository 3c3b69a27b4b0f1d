// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nostrforge/nostrforge/lib/event"
)

// PoolConfig holds configuration for creating a Pool.
type PoolConfig struct {
	// Relays are the default relay URLs consulted by fetches and
	// publishes. At least one is required.
	Relays []string
	// Timeout bounds every single-relay operation. Default 10 seconds.
	Timeout time.Duration
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Pool is the multi-relay event client. Fetches fan out over all
// configured relays and merge results by event id; publishes fan out
// and report per-relay outcomes. Every fetched event's signature is
// verified before it leaves the pool — relays are untrusted and may
// forward forgeries.
type Pool struct {
	relays  []string
	conn    connector
	timeout time.Duration
	logger  *slog.Logger
}

// NewPool creates a Pool over the configured relay set.
func NewPool(config PoolConfig) (*Pool, error) {
	if len(config.Relays) == 0 {
		return nil, fmt.Errorf("relay: at least one relay URL is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Pool{
		relays:  append([]string(nil), config.Relays...),
		conn:    &wsConnector{timeout: config.Timeout, logger: config.Logger},
		timeout: config.Timeout,
		logger:  config.Logger,
	}, nil
}

// Relays returns the pool's default relay set.
func (p *Pool) Relays() []string {
	return append([]string(nil), p.relays...)
}

// FetchEvents queries every configured relay concurrently, merges the
// results by event id, and drops events that fail signature
// verification. Individual relay failures are logged and tolerated;
// the call only errors when every relay failed.
func (p *Pool) FetchEvents(ctx context.Context, filters []event.Filter) ([]event.Event, error) {
	var (
		mu     sync.Mutex
		byID   = make(map[string]event.Event)
		failed int
	)

	group := new(errgroup.Group)
	for _, relayURL := range p.relays {
		group.Go(func() error {
			events, err := p.conn.fetch(ctx, relayURL, filters)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				p.logger.Warn("relay fetch failed", "relay", relayURL, "error", err)
				return nil // isolated: other relays proceed
			}
			for _, ev := range events {
				if _, seen := byID[ev.ID]; seen {
					continue
				}
				if err := ev.Verify(); err != nil {
					p.logger.Warn("dropping event failing verification",
						"relay", relayURL,
						"error", err,
						"security", true,
					)
					continue
				}
				byID[ev.ID] = ev
			}
			return nil
		})
	}
	_ = group.Wait()

	if failed == len(p.relays) {
		return nil, Transient(fmt.Errorf("all %d relays failed", len(p.relays)))
	}

	merged := make([]event.Event, 0, len(byID))
	for _, ev := range byID {
		merged = append(merged, ev)
	}
	// Deterministic order: newest first, ties by id.
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].CreatedAt != merged[j].CreatedAt {
			return merged[i].CreatedAt > merged[j].CreatedAt
		}
		return merged[i].ID < merged[j].ID
	})
	return merged, nil
}

// PublishEvent publishes ev to the given relays (the pool's default
// set when relayURLs is empty) and reports per-relay outcomes. The
// error is non-nil only when no relay accepted; it carries the
// transient marker when at least one failure was transient, since a
// retry may then succeed.
func (p *Pool) PublishEvent(ctx context.Context, ev event.Event, relayURLs []string) (PublishResult, error) {
	targets := relayURLs
	if len(targets) == 0 {
		targets = p.relays
	}

	var (
		mu     sync.Mutex
		result PublishResult
	)
	group := new(errgroup.Group)
	for _, relayURL := range targets {
		group.Go(func() error {
			err := p.conn.publish(ctx, relayURL, ev)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, PublishFailure{
					Relay:     relayURL,
					Reason:    err.Error(),
					Transient: IsTransient(err),
				})
				return nil
			}
			result.Accepted = append(result.Accepted, relayURL)
			return nil
		})
	}
	_ = group.Wait()

	sort.Strings(result.Accepted)
	sort.Slice(result.Failed, func(i, j int) bool { return result.Failed[i].Relay < result.Failed[j].Relay })

	if !result.Ok() {
		err := fmt.Errorf("publish of event %s rejected by all %d relays", shortID(ev.ID), len(targets))
		for _, failure := range result.Failed {
			if failure.Transient {
				return result, Transient(err)
			}
		}
		return result, err
	}
	return result, nil
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "…"
}
