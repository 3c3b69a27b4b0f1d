// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package gitsync

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nostrforge/nostrforge/relay"
)

// fastEngine builds an Engine whose retries do not sleep.
func fastEngine(t *testing.T, force bool) *Engine {
	t.Helper()
	return NewEngine(EngineConfig{
		AllowForcePush: force,
		Retry:          relay.RetryConfig{Attempts: 2, BaseDelay: time.Nanosecond},
	})
}

func TestSyncFromRemotes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	source := initWorkRepo(t)
	local, err := InitBare(ctx, filepath.Join(t.TempDir(), "local.git"))
	if err != nil {
		t.Fatalf("InitBare: %v", err)
	}

	summary := fastEngine(t, false).SyncFromRemotes(ctx, local, []string{source})
	if !summary.Ok() {
		t.Fatalf("sync failed: %+v", summary.Failed)
	}
	if len(summary.Succeeded) != 1 || summary.Succeeded[0] != source {
		t.Errorf("succeeded = %v, want [%s]", summary.Succeeded, source)
	}

	name := remoteName(source)
	if _, err := local.HeadRef(ctx, "refs/remotes/"+name+"/main"); err != nil {
		t.Errorf("tracking ref missing after fetch: %v", err)
	}
}

func TestSyncFromRemotesPartialFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	good1 := initWorkRepo(t)
	good2 := initWorkRepo(t)
	bad := filepath.Join(t.TempDir(), "does-not-exist")
	local, err := InitBare(ctx, filepath.Join(t.TempDir(), "local.git"))
	if err != nil {
		t.Fatalf("InitBare: %v", err)
	}

	summary := fastEngine(t, false).SyncFromRemotes(ctx, local, []string{good1, bad, good2})
	if len(summary.Succeeded) != 2 {
		t.Errorf("succeeded = %v, want both reachable remotes", summary.Succeeded)
	}
	if len(summary.Failed) != 1 || summary.Failed[0].Remote != bad {
		t.Fatalf("failed = %+v, want only the unreachable remote", summary.Failed)
	}
	if summary.Failed[0].Reason == "" {
		t.Error("failure carries no reason")
	}
}

func TestSyncFromRemotesRepointsChangedURL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	source := initWorkRepo(t)
	local, err := InitBare(ctx, filepath.Join(t.TempDir(), "local.git"))
	if err != nil {
		t.Fatalf("InitBare: %v", err)
	}
	engine := fastEngine(t, false)

	if summary := engine.SyncFromRemotes(ctx, local, []string{source}); !summary.Ok() {
		t.Fatalf("first sync failed: %+v", summary.Failed)
	}
	// Same URL again must reuse the registered remote, not error on
	// a duplicate add.
	if summary := engine.SyncFromRemotes(ctx, local, []string{source}); !summary.Ok() {
		t.Fatalf("second sync failed: %+v", summary.Failed)
	}
	names, err := local.ListRemotes(ctx)
	if err != nil {
		t.Fatalf("ListRemotes: %v", err)
	}
	if len(names) != 1 {
		t.Errorf("remotes = %v, want exactly one", names)
	}
}

func TestSyncToRemotes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	source := initWorkRepo(t)
	local, err := CloneBare(ctx, source, filepath.Join(t.TempDir(), "local.git"))
	if err != nil {
		t.Fatalf("CloneBare: %v", err)
	}
	target, err := InitBare(ctx, filepath.Join(t.TempDir(), "target.git"))
	if err != nil {
		t.Fatalf("InitBare: %v", err)
	}

	summary := fastEngine(t, false).SyncToRemotes(ctx, local, []string{target.Dir()})
	if !summary.Ok() {
		t.Fatalf("push failed: %+v", summary.Failed)
	}

	localHead, err := local.HeadRef(ctx, "refs/heads/main")
	if err != nil {
		t.Fatalf("local HeadRef: %v", err)
	}
	targetHead, err := target.HeadRef(ctx, "refs/heads/main")
	if err != nil {
		t.Fatalf("target HeadRef: %v", err)
	}
	if localHead != targetHead {
		t.Errorf("target head = %s, want %s", targetHead, localHead)
	}
}

func TestSyncToRemotesRefusesDivergedWithoutOptIn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// Local and target carry unrelated histories, so the push is a
	// genuine non-fast-forward and force would drop target commits.
	local, err := CloneBare(ctx, initWorkRepo(t), filepath.Join(t.TempDir(), "local.git"))
	if err != nil {
		t.Fatalf("CloneBare local: %v", err)
	}
	target, err := CloneBare(ctx, initWorkRepo(t), filepath.Join(t.TempDir(), "target.git"))
	if err != nil {
		t.Fatalf("CloneBare target: %v", err)
	}
	targetHead, err := target.HeadRef(ctx, "refs/heads/main")
	if err != nil {
		t.Fatalf("target HeadRef: %v", err)
	}

	summary := fastEngine(t, false).SyncToRemotes(ctx, local, []string{target.Dir()})
	if summary.Ok() {
		t.Fatal("diverged push succeeded without force opt-in")
	}
	if !strings.Contains(summary.Failed[0].Reason, "force not permitted") {
		t.Errorf("reason = %q, want force refusal", summary.Failed[0].Reason)
	}

	after, err := target.HeadRef(ctx, "refs/heads/main")
	if err != nil {
		t.Fatalf("target HeadRef after: %v", err)
	}
	if after != targetHead {
		t.Error("target history was rewritten despite refusal")
	}
}

func TestSyncToRemotesStaleTrackingRefsDoNotPermitForce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// Target and local start from the same base commit.
	work := initWorkRepo(t)
	target, err := CloneBare(ctx, work, filepath.Join(t.TempDir(), "target.git"))
	if err != nil {
		t.Fatalf("CloneBare target: %v", err)
	}
	local, err := CloneBare(ctx, work, filepath.Join(t.TempDir(), "local.git"))
	if err != nil {
		t.Fatalf("CloneBare local: %v", err)
	}

	engine := fastEngine(t, false)
	// Record tracking refs for the target at the base commit.
	if summary := engine.SyncFromRemotes(ctx, local, []string{target.Dir()}); !summary.Ok() {
		t.Fatalf("initial fetch failed: %+v", summary.Failed)
	}

	// Target advances past the tracked state.
	commitFile(t, work, "advance")
	gitCmd(t, work, "push", target.Dir(), "main:main")
	targetHead, err := target.HeadRef(ctx, "refs/heads/main")
	if err != nil {
		t.Fatalf("target HeadRef: %v", err)
	}

	// Local diverges from the base commit. The stale tracking ref
	// still points at the base, which is contained in local history,
	// so a check against it would wrongly clear a force push that
	// drops the target's newest commit.
	scratch := t.TempDir()
	gitCmd(t, scratch, "clone", local.Dir(), "work")
	divergent := filepath.Join(scratch, "work")
	commitFile(t, divergent, "diverge")
	gitCmd(t, divergent, "push", "origin", "main:main")

	summary := engine.SyncToRemotes(ctx, local, []string{target.Dir()})
	if summary.Ok() {
		t.Fatal("diverged push succeeded against an advanced remote")
	}
	if !strings.Contains(summary.Failed[0].Reason, "force not permitted") {
		t.Errorf("reason = %q, want force refusal", summary.Failed[0].Reason)
	}

	after, err := target.HeadRef(ctx, "refs/heads/main")
	if err != nil {
		t.Fatalf("target HeadRef after: %v", err)
	}
	if after != targetHead {
		t.Errorf("target head = %s, want %s retained", after, targetHead)
	}
}

func TestSyncToRemotesForcePushOptIn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	local, err := CloneBare(ctx, initWorkRepo(t), filepath.Join(t.TempDir(), "local.git"))
	if err != nil {
		t.Fatalf("CloneBare local: %v", err)
	}
	target, err := CloneBare(ctx, initWorkRepo(t), filepath.Join(t.TempDir(), "target.git"))
	if err != nil {
		t.Fatalf("CloneBare target: %v", err)
	}

	summary := fastEngine(t, true).SyncToRemotes(ctx, local, []string{target.Dir()})
	if !summary.Ok() {
		t.Fatalf("forced push failed: %+v", summary.Failed)
	}

	localHead, err := local.HeadRef(ctx, "refs/heads/main")
	if err != nil {
		t.Fatalf("local HeadRef: %v", err)
	}
	targetHead, err := target.HeadRef(ctx, "refs/heads/main")
	if err != nil {
		t.Fatalf("target HeadRef: %v", err)
	}
	if localHead != targetHead {
		t.Errorf("target head = %s, want forced to %s", targetHead, localHead)
	}
}

func TestRemoteNameStable(t *testing.T) {
	t.Parallel()

	a := remoteName("https://example.com/a.git")
	if a != remoteName("https://example.com/a.git") {
		t.Error("remote name is not deterministic")
	}
	if a == remoteName("https://example.com/b.git") {
		t.Error("distinct URLs collide")
	}
	if !strings.HasPrefix(a, "mirror-") {
		t.Errorf("name = %q, want mirror- prefix", a)
	}
}
