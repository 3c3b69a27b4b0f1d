// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package forge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/nostrforge/nostrforge/gitsync"
	"github.com/nostrforge/nostrforge/lib/clock"
	"github.com/nostrforge/nostrforge/lib/event"
	"github.com/nostrforge/nostrforge/ownership"
	"github.com/nostrforge/nostrforge/relay"
)

// AccessProver answers whether an identity holds the elevated access
// level that fork provisioning requires.
type AccessProver interface {
	HasUnlimited(ctx context.Context, pubkey string) (bool, error)
}

// WorkflowConfig holds configuration for creating a fork Workflow.
type WorkflowConfig struct {
	// Prover gates provisioning on access level. Required.
	Prover AccessProver
	// Access resolves the source repository's announcement and
	// visibility. Required.
	Access *ownership.Access
	// Publisher publishes the fork's announcement and anchor.
	// Required.
	Publisher relay.Publisher
	// Limits caps repositories per identity. Required.
	Limits *Limits
	// RepoRoot is where bare repositories live. Required.
	RepoRoot string
	// CloneURLBase is the public URL prefix under which provisioned
	// repositories are served, e.g. "https://forge.example/repos".
	// Required.
	CloneURLBase string
	// PublishRelays are the relays the fork's events go to.
	PublishRelays []string
	// Retry parameterizes publish retries.
	Retry relay.RetryConfig
	// Papertrail, when non-nil, mirrors the fork's events into the
	// new repository during finalize.
	Papertrail *Papertrail
	// Clock supplies event timestamps. If nil, clock.Real() is used.
	Clock clock.Clock
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Workflow runs the fork provisioning state machine. Steps run
// strictly in order; a failed step undoes what earlier steps created
// before reporting, so a failed fork leaves no half-provisioned
// repository behind.
type Workflow struct {
	prover     AccessProver
	access     *ownership.Access
	publisher  relay.Publisher
	limits     *Limits
	repoRoot   string
	cloneBase  string
	relays     []string
	retry      relay.RetryConfig
	papertrail *Papertrail
	clock      clock.Clock
	logger     *slog.Logger
}

// NewWorkflow creates a Workflow.
func NewWorkflow(config WorkflowConfig) (*Workflow, error) {
	if config.Prover == nil {
		return nil, fmt.Errorf("forge: Prover is required")
	}
	if config.Access == nil {
		return nil, fmt.Errorf("forge: Access is required")
	}
	if config.Publisher == nil {
		return nil, fmt.Errorf("forge: Publisher is required")
	}
	if config.Limits == nil {
		return nil, fmt.Errorf("forge: Limits is required")
	}
	if config.RepoRoot == "" {
		return nil, fmt.Errorf("forge: RepoRoot is required")
	}
	if config.CloneURLBase == "" {
		return nil, fmt.Errorf("forge: CloneURLBase is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Workflow{
		prover:     config.Prover,
		access:     config.Access,
		publisher:  config.Publisher,
		limits:     config.Limits,
		repoRoot:   config.RepoRoot,
		cloneBase:  strings.TrimRight(config.CloneURLBase, "/"),
		relays:     config.PublishRelays,
		retry:      config.Retry,
		papertrail: config.Papertrail,
		clock:      config.Clock,
		logger:     config.Logger,
	}, nil
}

// ForkRequest describes one fork to provision.
type ForkRequest struct {
	// Source is the repository being forked.
	Source event.RepoAddress
	// ForkName is the new repository's identifier under the
	// requester's namespace.
	ForkName string
	// Signer signs the fork's announcement and ownership anchor.
	// Its public key is the fork's owner.
	Signer event.Signer
}

// ForkResult describes a provisioned fork.
type ForkResult struct {
	// Address is the new repository's address.
	Address event.RepoAddress
	// AnnouncementID and AnchorID are the published event ids.
	// Empty when AlreadyExists.
	AnnouncementID string
	AnchorID       string
	// AnnouncementAccepted and AnchorAccepted count the relays that
	// accepted each event.
	AnnouncementAccepted int
	AnchorAccepted       int
	// AlreadyExists reports that the repository was provisioned by
	// an earlier or concurrent request and this call changed
	// nothing.
	AlreadyExists bool
}

// Fork workflow step names, reported in ForkError.
const (
	StepAuthorize = "authorize"
	StepClone     = "clone"
	StepAnnounce  = "announce"
	StepAnchor    = "anchor"
)

// ForkError reports which step failed and what compensation ran.
type ForkError struct {
	// Step is the workflow step that failed.
	Step string
	// Err is the underlying failure.
	Err error
	// CloneDeleted reports that the provisioned clone was removed.
	CloneDeleted bool
	// DeletionPublished reports that a deletion request for the
	// already-published announcement reached at least one relay.
	DeletionPublished bool
}

func (e *ForkError) Error() string {
	msg := fmt.Sprintf("forge: fork step %s: %v", e.Step, e.Err)
	if e.CloneDeleted {
		msg += " (clone removed)"
	}
	if e.DeletionPublished {
		msg += " (announcement retraction published)"
	}
	return msg
}

func (e *ForkError) Unwrap() error { return e.Err }

// Fork provisions a fork of the source repository for the requester.
//
// Concurrent requests for the same fork are safe: provisioning holds a
// file lock per owner directory, and finding the repository already on
// disk is a success no-op rather than an error.
func (w *Workflow) Fork(ctx context.Context, request ForkRequest) (ForkResult, error) {
	requester := request.Signer.PublicKey()
	if err := validForkName(request.ForkName); err != nil {
		return ForkResult{}, &ownership.ValidationError{Op: "fork", Field: "fork name", Reason: err.Error()}
	}
	forkAddr := event.NewRepoAddress(requester, request.ForkName)

	// Step 1: authorize.
	allowed, err := w.prover.HasUnlimited(ctx, requester)
	if err != nil {
		return ForkResult{}, &ForkError{Step: StepAuthorize, Err: err}
	}
	if !allowed {
		w.logger.Warn("fork denied for access level",
			"requester", shortKey(requester),
			"security", true,
		)
		return ForkResult{}, &ForkError{Step: StepAuthorize, Err: &ownership.AuthorizationError{
			Op: "fork", Reason: "requester lacks provisioning access",
		}}
	}
	withinLimit, err := w.limits.Allow(requester)
	if err != nil {
		return ForkResult{}, &ForkError{Step: StepAuthorize, Err: err}
	}
	if !withinLimit {
		return ForkResult{}, &ForkError{Step: StepAuthorize, Err: &ownership.AuthorizationError{
			Op: "fork", Reason: "repository limit reached",
		}}
	}

	source, err := w.access.Announcement(ctx, request.Source.Owner, request.Source.Identifier)
	if err != nil {
		return ForkResult{}, &ForkError{Step: StepAuthorize, Err: err}
	}
	if err := w.access.AuthorizeView(ctx, requester, request.Source.Owner, request.Source.Identifier); err != nil {
		return ForkResult{}, &ForkError{Step: StepAuthorize, Err: err}
	}
	if len(source.CloneURLs) == 0 {
		return ForkResult{}, &ForkError{Step: StepAuthorize, Err: fmt.Errorf("source %s lists no clone URLs", request.Source)}
	}

	// Step 2: clone under the per-owner provisioning lock.
	dest := RepoPath(w.repoRoot, requester, request.ForkName)
	alreadyExists, err := w.provisionClone(ctx, requester, source.CloneURLs[0], dest)
	if err != nil {
		return ForkResult{}, &ForkError{Step: StepClone, Err: err}
	}
	if alreadyExists {
		w.logger.Info("fork already provisioned",
			"repo", request.ForkName,
			"owner", shortKey(requester),
		)
		return ForkResult{Address: forkAddr, AlreadyExists: true}, nil
	}

	now := w.clock.Now().Unix()
	cloneURL := w.cloneBase + "/" + requester + "/" + request.ForkName + ".git"

	// Step 3: announce the fork.
	announcement, err := event.BuildRepoAnnouncement(event.AnnouncementTemplate{
		Identifier:  request.ForkName,
		Name:        request.ForkName,
		Description: "Fork of " + source.Name,
		CloneURLs:   []string{cloneURL},
		Relays:      w.relays,
		Private:     source.Private,
		ForkOrigin:  request.Source,
		CreatedAt:   now,
	})
	if err == nil {
		err = request.Signer.Sign(ctx, &announcement)
	}
	if err != nil {
		w.removeClone(dest)
		return ForkResult{}, &ForkError{Step: StepAnnounce, Err: err, CloneDeleted: true}
	}
	announceResult, err := w.publish(ctx, "fork announcement", announcement)
	if err != nil {
		w.removeClone(dest)
		return ForkResult{}, &ForkError{Step: StepAnnounce, Err: err, CloneDeleted: true}
	}

	// Step 4: anchor the ownership chain. The announcement is
	// already on relays, so failure here must retract it too.
	anchor, err := event.BuildOwnershipTransfer(forkAddr, requester, now)
	if err == nil {
		err = request.Signer.Sign(ctx, &anchor)
	}
	var anchorResult relay.PublishResult
	if err == nil {
		anchorResult, err = w.publish(ctx, "fork ownership anchor", anchor)
	}
	if err != nil {
		w.removeClone(dest)
		retracted := w.retractAnnouncement(ctx, request.Signer, announcement.ID, forkAddr)
		return ForkResult{}, &ForkError{
			Step:              StepAnchor,
			Err:               err,
			CloneDeleted:      true,
			DeletionPublished: retracted,
		}
	}

	// Step 5: finalize. Best-effort: the fork is durable once the
	// anchor is on relays.
	w.finalize(forkAddr, dest, announcement, anchor)

	w.logger.Info("fork provisioned",
		"repo", request.ForkName,
		"owner", shortKey(requester),
		"source", request.Source.String(),
		"announcement_relays", len(announceResult.Accepted),
		"anchor_relays", len(anchorResult.Accepted),
	)
	return ForkResult{
		Address:              forkAddr,
		AnnouncementID:       announcement.ID,
		AnchorID:             anchor.ID,
		AnnouncementAccepted: len(announceResult.Accepted),
		AnchorAccepted:       len(anchorResult.Accepted),
	}, nil
}

// provisionClone clones source into dest while holding the owner's
// provisioning lock. Returns alreadyExists=true when dest was created
// by someone else, before or during this call.
func (w *Workflow) provisionClone(ctx context.Context, owner, source, dest string) (alreadyExists bool, err error) {
	ownerDir := filepath.Join(w.repoRoot, owner)
	if err := os.MkdirAll(ownerDir, 0755); err != nil {
		return false, fmt.Errorf("forge: creating owner dir: %w", err)
	}

	lockFile, err := os.OpenFile(filepath.Join(ownerDir, ".provision.lock"), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return false, fmt.Errorf("forge: opening provisioning lock: %w", err)
	}
	defer lockFile.Close()
	if err := unix.Flock(int(lockFile.Fd()), unix.LOCK_EX); err != nil {
		return false, fmt.Errorf("forge: acquiring provisioning lock: %w", err)
	}
	defer unix.Flock(int(lockFile.Fd()), unix.LOCK_UN)

	// Re-check under the lock: a concurrent request may have won.
	if _, err := os.Stat(dest); err == nil {
		return true, nil
	}

	if _, err := gitsync.CloneBare(ctx, source, dest); err != nil {
		return false, err
	}
	return false, nil
}

func (w *Workflow) publish(ctx context.Context, operation string, ev event.Event) (relay.PublishResult, error) {
	var result relay.PublishResult
	err := relay.Retry(ctx, w.retry, operation, func(ctx context.Context) error {
		var publishErr error
		result, publishErr = w.publisher.PublishEvent(ctx, ev, w.relays)
		return publishErr
	})
	return result, err
}

// retractAnnouncement publishes a deletion request for an
// announcement that must not stand because provisioning failed after
// it went out. Reports whether any relay took the retraction.
func (w *Workflow) retractAnnouncement(ctx context.Context, signer event.Signer, announcementID string, addr event.RepoAddress) bool {
	deletion, err := event.BuildDeletion(
		[]string{announcementID},
		[]event.RepoAddress{addr},
		"fork provisioning failed",
		w.clock.Now().Unix(),
	)
	if err == nil {
		err = signer.Sign(ctx, &deletion)
	}
	if err == nil {
		_, err = w.publish(ctx, "announcement retraction", deletion)
	}
	if err != nil {
		w.logger.Error("announcement retraction failed, stale announcement remains on relays",
			"announcement", shortKey(announcementID),
			"error", err,
		)
		return false
	}
	return true
}

func (w *Workflow) removeClone(dest string) {
	if err := os.RemoveAll(dest); err != nil {
		w.logger.Error("removing failed fork clone", "path", dest, "error", err)
	}
}

// finalize writes the verification marker and papertrail records.
// Failures are logged, never fatal.
func (w *Workflow) finalize(addr event.RepoAddress, dest string, announcement, anchor event.Event) {
	marker := fmt.Sprintf("%s\nannouncement %s\nanchor %s\n", addr, announcement.ID, anchor.ID)
	if err := os.WriteFile(filepath.Join(dest, "nostrforge-origin"), []byte(marker), 0644); err != nil {
		w.logger.Warn("writing verification file failed", "repo", addr.Identifier, "error", err)
	}
	if w.papertrail == nil {
		return
	}
	for _, ev := range []event.Event{announcement, anchor} {
		if err := w.papertrail.Record(addr, ev); err != nil {
			w.logger.Warn("papertrail record failed", "repo", addr.Identifier, "error", err)
		}
	}
}

func validForkName(name string) error {
	if name == "" {
		return fmt.Errorf("empty")
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return fmt.Errorf("must be a plain directory name")
	}
	return nil
}

func shortKey(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:8] + "…"
}
