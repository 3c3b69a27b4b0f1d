// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package ownership

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nostrforge/nostrforge/lib/clock"
	"github.com/nostrforge/nostrforge/lib/event"
	"github.com/nostrforge/nostrforge/relay"
)

// PapertrailWriter records an offline copy of a provenance event
// inside the repository itself. Best-effort: relay publication is
// authoritative, the in-repo copy is a convenience mirror.
type PapertrailWriter interface {
	Record(addr event.RepoAddress, ev event.Event) error
}

// TransfersConfig holds configuration for creating a Transfers service.
type TransfersConfig struct {
	// Resolver resolves current ownership. Required.
	Resolver *Resolver
	// Fetcher resolves the new owner's outbox relays. Required.
	Fetcher relay.Fetcher
	// Publisher publishes accepted transfer events. Required.
	Publisher relay.Publisher
	// DefaultRelays are the platform's relays, always unioned with
	// the new owner's outbox for publishes.
	DefaultRelays []string
	// Retry parameterizes publish retries.
	Retry relay.RetryConfig
	// Papertrail, when non-nil, mirrors accepted transfers into the
	// repository. Failures are logged, never fatal.
	Papertrail PapertrailWriter
	// Clock supplies event timestamps. If nil, clock.Real() is used.
	Clock clock.Clock
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Transfers implements the ownership-transfer protocol: building the
// initial anchor, checking transfer authority, and validating and
// publishing submitted transfer events.
type Transfers struct {
	resolver   *Resolver
	fetcher    relay.Fetcher
	publisher  relay.Publisher
	defaults   []string
	retry      relay.RetryConfig
	papertrail PapertrailWriter
	clock      clock.Clock
	logger     *slog.Logger
}

// NewTransfers creates a Transfers service.
func NewTransfers(config TransfersConfig) (*Transfers, error) {
	if config.Resolver == nil {
		return nil, fmt.Errorf("ownership: Resolver is required")
	}
	if config.Fetcher == nil {
		return nil, fmt.Errorf("ownership: Fetcher is required")
	}
	if config.Publisher == nil {
		return nil, fmt.Errorf("ownership: Publisher is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Transfers{
		resolver:   config.Resolver,
		fetcher:    config.Fetcher,
		publisher:  config.Publisher,
		defaults:   config.DefaultRelays,
		retry:      config.Retry,
		papertrail: config.Papertrail,
		clock:      config.Clock,
		logger:     config.Logger,
	}, nil
}

// CreateInitialEvent builds the unsigned self-transfer anchor for a
// newly provisioned repository: from, to, and announcement author are
// all the creator. The caller signs and publishes it.
func (t *Transfers) CreateInitialEvent(ownerPubkey, repoID string) (event.Event, error) {
	if err := event.ValidatePubkey(ownerPubkey); err != nil {
		return event.Event{}, &ValidationError{Op: "initial ownership event", Field: "owner pubkey", Reason: err.Error()}
	}
	addr := event.NewRepoAddress(ownerPubkey, repoID)
	return event.BuildOwnershipTransfer(addr, ownerPubkey, t.clock.Now().Unix())
}

// CanTransfer reports whether requester may transfer the repository:
// true iff requester is the current owner at the time of the check,
// which is the original author only until the first real transfer.
func (t *Transfers) CanTransfer(ctx context.Context, requester, originalOwner, repoID string) (bool, error) {
	current, err := t.resolver.CurrentOwner(ctx, originalOwner, repoID)
	if err != nil {
		return false, err
	}
	return requester == current, nil
}

// Submit validates a pre-signed transfer event and publishes it. The
// checks run in a fixed order — signature, kind, address, authority —
// and any failure rejects the whole submission; there is no partial
// application. On acceptance the ownership cache for the repository is
// invalidated immediately so subsequent reads see the new owner.
func (t *Transfers) Submit(ctx context.Context, ev event.Event) (relay.PublishResult, error) {
	const op = "transfer submission"

	if err := ev.Verify(); err != nil {
		violation := &InvariantViolation{Op: op, Reason: "signature verification failed", EventID: ev.ID}
		t.logger.Warn("rejected transfer with invalid signature",
			"event", truncateKey(ev.ID),
			"error", err,
			"security", true,
		)
		return relay.PublishResult{}, violation
	}
	if ev.Kind != event.KindOwnershipTransfer {
		return relay.PublishResult{}, &ValidationError{
			Op: op, Field: "kind",
			Reason: fmt.Sprintf("got %d, want %d", ev.Kind, event.KindOwnershipTransfer),
		}
	}
	transfer, err := event.ParseOwnershipTransfer(ev)
	if err != nil {
		return relay.PublishResult{}, &ValidationError{Op: op, Field: "tags", Reason: err.Error()}
	}

	allowed, err := t.CanTransfer(ctx, ev.PubKey, transfer.Address.Owner, transfer.Address.Identifier)
	if err != nil {
		return relay.PublishResult{}, fmt.Errorf("%s: checking authority: %w", op, err)
	}
	if !allowed {
		t.logger.Warn("rejected transfer signed by non-owner",
			"event", truncateKey(ev.ID),
			"signer", truncateKey(ev.PubKey),
			"repo", transfer.Address.String(),
			"security", true,
		)
		return relay.PublishResult{}, &AuthorizationError{
			Op:     op,
			Reason: fmt.Sprintf("signer %s is not the current owner of %s", truncateKey(ev.PubKey), transfer.Address.Identifier),
		}
	}
	// The signer-matches-pubkey requirement is enforced by Verify
	// above: a schnorr signature only verifies against the event's
	// declared pubkey.

	targets := t.publishTargets(ctx, transfer.NewOwner)
	var result relay.PublishResult
	err = relay.Retry(ctx, t.retry, op, func(ctx context.Context) error {
		var publishErr error
		result, publishErr = t.publisher.PublishEvent(ctx, ev, targets)
		return publishErr
	})
	if err != nil {
		return result, fmt.Errorf("%s for %s: %w", op, transfer.Address.Identifier, err)
	}

	t.resolver.InvalidateRepo(transfer.Address.Owner, transfer.Address.Identifier)

	if t.papertrail != nil {
		if err := t.papertrail.Record(transfer.Address, ev); err != nil {
			t.logger.Warn("papertrail record failed",
				"repo", transfer.Address.Identifier,
				"error", err,
			)
		}
	}

	t.logger.Info("ownership transferred",
		"repo", transfer.Address.Identifier,
		"from", truncateKey(ev.PubKey),
		"to", truncateKey(transfer.NewOwner),
		"relays_accepted", len(result.Accepted),
	)
	return result, nil
}

// publishTargets unions the new owner's outbox relays with the
// platform defaults. Outbox resolution failure is tolerated — the
// defaults alone satisfy the durability bar.
func (t *Transfers) publishTargets(ctx context.Context, newOwner string) []string {
	outbox, err := relay.OutboxRelays(ctx, t.fetcher, newOwner)
	if err != nil {
		t.logger.Debug("outbox resolution failed, using defaults",
			"pubkey", truncateKey(newOwner),
			"error", err,
		)
	}
	return relay.UnionRelays(outbox, t.defaults)
}
