// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package ownership

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nostrforge/nostrforge/lib/event"
	"github.com/nostrforge/nostrforge/lib/eventcache"
	"github.com/nostrforge/nostrforge/relay"
)

// AccessConfig holds configuration for creating an Access service.
type AccessConfig struct {
	// Resolver resolves current ownership. Required.
	Resolver *Resolver
	// Fetcher fetches repository announcements. Required.
	Fetcher relay.Fetcher
	// Cache, when non-nil, fronts announcement fetches. Shares
	// invalidation triggers with ownership resolution: any new
	// transfer or announcement edit must drop the derived state.
	Cache *eventcache.Cache
	// AnnouncementTTL is the cache TTL for announcement fetches.
	// Default 60 seconds.
	AnnouncementTTL time.Duration
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Access derives the maintainer set and visibility of a repository
// from its announcement plus the resolved current owner. All checks
// here gate reads and writes on the platform; they are read-mostly and
// cache-friendly.
type Access struct {
	resolver        *Resolver
	fetcher         relay.Fetcher
	cache           *eventcache.Cache
	announcementTTL time.Duration
	logger          *slog.Logger
}

// NewAccess creates an Access service.
func NewAccess(config AccessConfig) (*Access, error) {
	if config.Resolver == nil {
		return nil, fmt.Errorf("ownership: Resolver is required")
	}
	if config.Fetcher == nil {
		return nil, fmt.Errorf("ownership: Fetcher is required")
	}
	if config.AnnouncementTTL <= 0 {
		config.AnnouncementTTL = 60 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Access{
		resolver:        config.Resolver,
		fetcher:         config.Fetcher,
		cache:           config.Cache,
		announcementTTL: config.AnnouncementTTL,
		logger:          config.Logger,
	}, nil
}

// MaintainerSet is a repository's resolved write-access set.
type MaintainerSet struct {
	// Owner is the current owner's pubkey.
	Owner string
	// Maintainers is the full set with the owner always first,
	// deduplicated case-insensitively.
	Maintainers []string
}

// Contains reports whether pubkey is in the set (case-insensitive).
func (m MaintainerSet) Contains(pubkey string) bool {
	needle := strings.ToLower(pubkey)
	for _, member := range m.Maintainers {
		if member == needle {
			return true
		}
	}
	return false
}

// Maintainers returns the repository's maintainer set: the resolved
// current owner first, then the pubkeys listed in the announcement's
// maintainer tag.
func (a *Access) Maintainers(ctx context.Context, originalOwner, repoID string) (MaintainerSet, error) {
	owner, err := a.resolver.CurrentOwner(ctx, originalOwner, repoID)
	if err != nil {
		return MaintainerSet{}, err
	}
	ann, err := a.Announcement(ctx, originalOwner, repoID)
	if err != nil {
		return MaintainerSet{}, err
	}

	set := MaintainerSet{Owner: owner, Maintainers: []string{strings.ToLower(owner)}}
	seen := map[string]bool{strings.ToLower(owner): true}
	for _, pk := range ann.Maintainers {
		lowered := strings.ToLower(pk)
		if seen[lowered] {
			continue
		}
		seen[lowered] = true
		set.Maintainers = append(set.Maintainers, lowered)
	}
	return set, nil
}

// IsMaintainer reports whether pubkey is the owner or a listed
// maintainer of the repository.
func (a *Access) IsMaintainer(ctx context.Context, pubkey, originalOwner, repoID string) (bool, error) {
	set, err := a.Maintainers(ctx, originalOwner, repoID)
	if err != nil {
		return false, err
	}
	return set.Contains(pubkey), nil
}

// CanView reports whether requester may read the repository. Public
// repositories are visible to everyone, including anonymous callers
// (empty requester). Private repositories require the requester to be
// the owner or a maintainer. This is the core authorization rule;
// any presentation-layer relaxation (bookmarked-repo listings) must
// not reuse it to gate writes.
func (a *Access) CanView(ctx context.Context, requester, originalOwner, repoID string) (bool, error) {
	ann, err := a.Announcement(ctx, originalOwner, repoID)
	if err != nil {
		return false, err
	}
	if !ann.Private {
		return true, nil
	}
	if requester == "" {
		return false, nil
	}
	return a.IsMaintainer(ctx, requester, originalOwner, repoID)
}

// AuthorizeView is CanView shaped as an error: nil on allow, a typed
// denial otherwise. For private repositories the denial is neutral —
// it does not confirm or deny that the repository exists.
func (a *Access) AuthorizeView(ctx context.Context, requester, originalOwner, repoID string) error {
	const op = "repository read"
	allowed, err := a.CanView(ctx, requester, originalOwner, repoID)
	if err != nil {
		return err
	}
	if !allowed {
		return &AuthorizationError{Op: op, Reason: "repository not found or access denied"}
	}
	return nil
}

// Announcement returns the repository's current (latest) announcement.
func (a *Access) Announcement(ctx context.Context, originalOwner, repoID string) (*event.RepoAnnouncement, error) {
	const op = "announcement lookup"

	if err := event.ValidatePubkey(originalOwner); err != nil {
		return nil, &ValidationError{Op: op, Field: "owner pubkey", Reason: err.Error()}
	}
	if repoID == "" {
		return nil, &ValidationError{Op: op, Field: "repository identifier", Reason: "empty"}
	}

	filters := []event.Filter{{
		Kinds:   []int{event.KindRepoAnnouncement},
		Authors: []string{originalOwner},
		Tags:    map[string][]string{"d": {repoID}},
	}}
	events, err := a.fetchAnnouncements(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("%s for %s: %w", op, repoID, err)
	}

	// Latest created_at wins; same-second ties by ascending id, the
	// same deterministic rule ownership resolution uses.
	var best *event.RepoAnnouncement
	for i := range events {
		ann, err := event.ParseRepoAnnouncement(events[i])
		if err != nil {
			a.logger.Debug("skipping malformed announcement", "error", err)
			continue
		}
		if best == nil ||
			ann.Event.CreatedAt > best.Event.CreatedAt ||
			(ann.Event.CreatedAt == best.Event.CreatedAt && ann.Event.ID < best.Event.ID) {
			best = ann
		}
	}
	if best == nil {
		return nil, &NotFoundError{Op: op, Resource: "repository " + repoID}
	}
	return best, nil
}

func (a *Access) fetchAnnouncements(ctx context.Context, filters []event.Filter) ([]event.Event, error) {
	if a.cache != nil {
		if events, ok := a.cache.Get(filters); ok {
			return events, nil
		}
	}
	events, err := a.fetcher.FetchEvents(ctx, filters)
	if err != nil {
		return nil, err
	}
	if a.cache != nil {
		a.cache.Set(filters, events, a.announcementTTL)
	}
	return events, nil
}
