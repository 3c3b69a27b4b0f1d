// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

// nostrforge-daemon is the platform's long-running host process. It
// keeps the local bare repositories in sync with the clone URLs their
// relay announcements list, and keeps the event cache honest against
// deletion events.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nostrforge/nostrforge/forge"
	"github.com/nostrforge/nostrforge/gitsync"
	"github.com/nostrforge/nostrforge/lib/config"
	"github.com/nostrforge/nostrforge/lib/event"
	"github.com/nostrforge/nostrforge/lib/eventcache"
	"github.com/nostrforge/nostrforge/lib/version"
	"github.com/nostrforge/nostrforge/ownership"
	"github.com/nostrforge/nostrforge/relay"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		showVersion bool
		configPath  string
		oneShot     bool
	)
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.StringVar(&configPath, "config", "", "path to nostrforge.yaml (default: NOSTRFORGE_CONFIG)")
	flag.BoolVar(&oneShot, "one-shot", false, "run a single mirror pass and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("nostrforge-daemon %s\n", version.Info())
		return nil
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	daemon, err := newDaemon(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("nostrforge-daemon starting",
		"version", version.Short(),
		"relays", cfg.Relays.Defaults,
		"repo_root", cfg.Paths.RepoRoot,
		"sync_interval", cfg.Sync.Interval().String(),
	)

	if oneShot {
		daemon.mirrorPass(ctx)
		return nil
	}

	ticker := time.NewTicker(cfg.Sync.Interval())
	defer ticker.Stop()
	daemon.mirrorPass(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("nostrforge-daemon shutting down")
			return nil
		case <-ticker.C:
			daemon.mirrorPass(ctx)
		}
	}
}

// daemon holds the wired services. Everything is constructed once in
// newDaemon and injected; there are no package-level singletons.
type daemon struct {
	cfg    *config.Config
	pool   *relay.Pool
	cache  *eventcache.Cache
	access *ownership.Access
	engine *gitsync.Engine
	logger *slog.Logger
}

func newDaemon(cfg *config.Config, logger *slog.Logger) (*daemon, error) {
	pool, err := relay.NewPool(relay.PoolConfig{
		Relays:  cfg.Relays.Defaults,
		Timeout: cfg.Relays.Timeout(),
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	cache := eventcache.New(eventcache.Config{
		MaxEntries: cfg.Limits.CacheMaxEntries,
		DefaultTTL: cfg.Limits.CacheTTL(),
		Logger:     logger,
	})

	resolver, err := ownership.NewResolver(ownership.ResolverConfig{
		Fetcher: pool,
		Cache:   cache,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	access, err := ownership.NewAccess(ownership.AccessConfig{
		Resolver: resolver,
		Fetcher:  pool,
		Cache:    cache,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	transport := gitsync.NoTransportRules()
	if cfg.Paths.TransportRules != "" {
		transport, err = gitsync.LoadTransportRules(cfg.Paths.TransportRules)
		if err != nil {
			return nil, err
		}
	}
	engine := gitsync.NewEngine(gitsync.EngineConfig{
		AllowForcePush: cfg.Sync.AllowForcePush,
		Retry:          relay.RetryConfig{Attempts: cfg.Sync.RetryAttempts},
		Transport:      transport,
		Logger:         logger,
	})

	return &daemon{
		cfg:    cfg,
		pool:   pool,
		cache:  cache,
		access: access,
		engine: engine,
		logger: logger,
	}, nil
}

// mirrorPass walks the hosted repositories, re-reads each one's
// announcement, and fetches from every external clone URL it lists.
// Afterwards it applies any deletion events the hosted owners have
// published to the event cache.
func (d *daemon) mirrorPass(ctx context.Context) {
	owners, err := os.ReadDir(d.cfg.Paths.RepoRoot)
	if err != nil {
		d.logger.Error("reading repo root", "error", err)
		return
	}

	var ownerKeys []string
	repos, failures := 0, 0
	for _, ownerEntry := range owners {
		if !ownerEntry.IsDir() {
			continue
		}
		owner := ownerEntry.Name()
		if err := event.ValidatePubkey(owner); err != nil {
			continue
		}
		ownerKeys = append(ownerKeys, owner)

		entries, err := os.ReadDir(d.cfg.Paths.RepoRoot + "/" + owner)
		if err != nil {
			d.logger.Error("reading owner dir", "owner", owner, "error", err)
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() || !strings.HasSuffix(entry.Name(), ".git") {
				continue
			}
			repoID := strings.TrimSuffix(entry.Name(), ".git")
			if d.syncRepo(ctx, owner, repoID) {
				repos++
			} else {
				failures++
			}
			if ctx.Err() != nil {
				return
			}
		}
	}

	d.applyDeletions(ctx, ownerKeys)
	d.logger.Info("mirror pass complete", "repos", repos, "failures", failures)
}

// syncRepo fetches one hosted repository from its announced external
// clone URLs. Reports success when the repository needed no sync or at
// least one remote synced.
func (d *daemon) syncRepo(ctx context.Context, owner, repoID string) bool {
	ann, err := d.access.Announcement(ctx, owner, repoID)
	if err != nil {
		d.logger.Warn("announcement lookup failed, skipping repository",
			"owner", shortKey(owner),
			"repo", repoID,
			"error", err,
		)
		return false
	}

	var remotes []string
	for _, cloneURL := range ann.CloneURLs {
		if strings.HasPrefix(cloneURL, d.cfg.Paths.CloneURLBase) {
			continue
		}
		remotes = append(remotes, cloneURL)
	}
	if len(remotes) == 0 {
		return true
	}

	repo := gitsync.NewRepository(forge.RepoPath(d.cfg.Paths.RepoRoot, owner, repoID))
	summary := d.engine.SyncFromRemotes(ctx, repo, remotes)
	if !summary.Ok() {
		d.logger.Warn("all remotes failed for repository",
			"repo", repoID,
			"owner", shortKey(owner),
			"failures", len(summary.Failed),
		)
		return false
	}
	return true
}

// applyDeletions fetches deletion events authored by the hosted
// owners and drops the cache entries they retract.
func (d *daemon) applyDeletions(ctx context.Context, owners []string) {
	if len(owners) == 0 {
		return
	}
	events, err := d.pool.FetchEvents(ctx, []event.Filter{{
		Kinds:   []int{event.KindDeletion},
		Authors: owners,
	}})
	if err != nil {
		d.logger.Warn("fetching deletion events", "error", err)
		return
	}
	var deletions []*event.Deletion
	for _, ev := range events {
		deletion, err := event.ParseDeletion(ev)
		if err != nil {
			continue
		}
		deletions = append(deletions, deletion)
	}
	if len(deletions) > 0 {
		d.cache.ProcessDeletions(deletions)
		d.logger.Info("applied deletion events", "count", len(deletions))
	}
}

func shortKey(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:8] + "…"
}
