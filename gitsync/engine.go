// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package gitsync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nostrforge/nostrforge/relay"
)

// EngineConfig holds configuration for creating a sync Engine.
type EngineConfig struct {
	// AllowForcePush permits force pushes unconditionally. Without
	// it a force push happens only when the safe-to-force check
	// proves the remote would not lose commits.
	AllowForcePush bool
	// Retry parameterizes per-remote retry. Remote failures are
	// treated as transient: relays and mirrors come and go.
	Retry relay.RetryConfig
	// Transport supplies proxy rules for special-network remotes.
	// If nil, no remote gets proxy configuration.
	Transport *TransportRules
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Engine synchronizes a local bare repository with the clone URLs a
// repository announcement lists. Remotes are independent: each one
// succeeds or fails on its own, and one unreachable mirror never
// blocks the rest.
type Engine struct {
	allowForce bool
	retry      relay.RetryConfig
	transport  *TransportRules
	logger     *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(config EngineConfig) *Engine {
	if config.Transport == nil {
		config.Transport = NoTransportRules()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Engine{
		allowForce: config.AllowForcePush,
		retry:      config.Retry,
		transport:  config.Transport,
		logger:     config.Logger,
	}
}

// RemoteFailure describes one remote that could not be synchronized.
type RemoteFailure struct {
	// Remote is the clone URL that failed.
	Remote string
	// Reason is the final error after retries.
	Reason string
}

// SyncSummary reports per-remote outcomes of a sync pass. Zero
// successes is not an error for the call: the summary carries the
// whole picture and the caller decides what total failure means.
type SyncSummary struct {
	// Succeeded lists the clone URLs that synchronized.
	Succeeded []string
	// Failed lists the clone URLs that did not, with reasons.
	Failed []RemoteFailure
}

// Ok reports whether at least one remote synchronized.
func (s SyncSummary) Ok() bool {
	return len(s.Succeeded) > 0
}

// SyncFromRemotes fetches from every remote URL into repo, in
// parallel. Each remote is registered under a name derived from its
// URL, repointed if the URL changed, and fetched with retry.
func (e *Engine) SyncFromRemotes(ctx context.Context, repo *Repository, remotes []string) SyncSummary {
	return e.fanOut(ctx, repo, remotes, "fetch", e.fetchRemote)
}

// SyncToRemotes pushes all branches and tags to every remote URL, in
// parallel with per-remote retry. A non-fast-forward rejection is
// force-pushed only under an explicit configuration opt-in or when the
// safe-to-force check proves the remote's head is already contained in
// the local history. Any uncertainty means no force.
func (e *Engine) SyncToRemotes(ctx context.Context, repo *Repository, remotes []string) SyncSummary {
	return e.fanOut(ctx, repo, remotes, "push", e.pushRemote)
}

func (e *Engine) fanOut(ctx context.Context, repo *Repository, remotes []string, op string, syncFn func(context.Context, *Repository, string) error) SyncSummary {
	var (
		mu      sync.Mutex
		summary SyncSummary
	)
	group, ctx := errgroup.WithContext(ctx)
	for _, remote := range remotes {
		group.Go(func() error {
			err := relay.Retry(ctx, e.retry, op+" "+remote, func(ctx context.Context) error {
				return syncFn(ctx, repo, remote)
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.logger.Warn("remote sync failed",
					"op", op,
					"remote", remote,
					"error", err,
				)
				summary.Failed = append(summary.Failed, RemoteFailure{Remote: remote, Reason: err.Error()})
			} else {
				summary.Succeeded = append(summary.Succeeded, remote)
			}
			return nil
		})
	}
	group.Wait()

	sort.Strings(summary.Succeeded)
	sort.Slice(summary.Failed, func(i, j int) bool {
		return summary.Failed[i].Remote < summary.Failed[j].Remote
	})
	return summary
}

func (e *Engine) fetchRemote(ctx context.Context, repo *Repository, remote string) error {
	name, err := e.ensureRemote(ctx, repo, remote)
	if err != nil {
		return relay.Transient(err)
	}
	args := append(e.transport.GitArgs(remote),
		"fetch", "--prune", "--tags", name,
		"+refs/heads/*:refs/remotes/"+name+"/*",
	)
	if _, err := repo.Run(ctx, args...); err != nil {
		return relay.Transient(err)
	}
	return nil
}

func (e *Engine) pushRemote(ctx context.Context, repo *Repository, remote string) error {
	name, err := e.ensureRemote(ctx, repo, remote)
	if err != nil {
		return relay.Transient(err)
	}
	base := e.transport.GitArgs(remote)
	_, err = repo.Run(ctx, append(base, "push", "--tags", name, "refs/heads/*:refs/heads/*")...)
	if err == nil {
		return nil
	}
	if !isNonFastForward(err) {
		return relay.Transient(err)
	}
	if !e.allowForce && !e.safeToForce(ctx, repo, name, remote) {
		// Divergence with no proof of containment. Overwriting the
		// remote could lose commits, so the rejection stands.
		return fmt.Errorf("gitsync: push to %s rejected (non-fast-forward, force not permitted): %w", remote, err)
	}
	e.logger.Info("force pushing after non-fast-forward rejection",
		"remote", remote,
		"opt_in", e.allowForce,
	)
	if _, err := repo.Run(ctx, append(base, "push", "--force", "--tags", name, "refs/heads/*:refs/heads/*")...); err != nil {
		return relay.Transient(err)
	}
	return nil
}

// ensureRemote registers remote under its derived name, repointing the
// name if a previous announcement used a different URL.
func (e *Engine) ensureRemote(ctx context.Context, repo *Repository, remote string) (string, error) {
	name := remoteName(remote)
	current, err := repo.RemoteURL(ctx, name)
	switch {
	case err != nil:
		if err := repo.AddRemote(ctx, name, remote); err != nil {
			return "", err
		}
	case current != remote:
		if err := repo.SetRemoteURL(ctx, name, remote); err != nil {
			return "", err
		}
	}
	return name, nil
}

// safeToForce proves that every branch the remote has right now is
// already contained in the local history, so a force push cannot drop
// remote commits. The tracking refs are re-fetched first: a ref left
// over from an earlier sync proves containment of state the remote may
// have moved past. Missing tracking refs or any git failure report
// false.
func (e *Engine) safeToForce(ctx context.Context, repo *Repository, name, remote string) bool {
	fetchArgs := append(e.transport.GitArgs(remote),
		"fetch", "--prune", name,
		"+refs/heads/*:refs/remotes/"+name+"/*",
	)
	if _, err := repo.Run(ctx, fetchArgs...); err != nil {
		return false
	}
	output, err := repo.Run(ctx, "for-each-ref", "--format=%(refname)", "refs/remotes/"+name+"/")
	if err != nil {
		return false
	}
	refs := strings.Fields(output)
	if len(refs) == 0 {
		return false
	}
	for _, ref := range refs {
		branch := strings.TrimPrefix(ref, "refs/remotes/"+name+"/")
		if !repo.IsAncestor(ctx, ref, "refs/heads/"+branch) {
			return false
		}
	}
	return true
}

func isNonFastForward(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "non-fast-forward") ||
		strings.Contains(msg, "fetch first") ||
		strings.Contains(msg, "[rejected]")
}

// remoteName derives a stable git remote name from a clone URL. URLs
// are not valid remote names, so the name is a digest prefix.
func remoteName(remote string) string {
	sum := sha256.Sum256([]byte(remote))
	return "mirror-" + hex.EncodeToString(sum[:6])
}
