// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package gitsync

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Repository represents a git repository at a specific directory. All
// operations target this directory via "git -C <dir>". There is no
// default directory — callers must always specify which repository
// they mean.
type Repository struct {
	dir string
}

// NewRepository returns a Repository targeting the given directory.
// The directory should be a bare repository or a working tree.
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// Dir returns the repository directory.
func (r *Repository) Dir() string {
	return r.dir
}

// Run executes a git command targeting this repository and returns
// stdout. Stderr is captured separately and included in error messages
// on failure. Arguments are passed as a vector, never through a shell.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	return r.RunEnv(ctx, nil, args...)
}

// RunEnv is Run with additional environment variables scoped to this
// single invocation. Proxy configuration for anonymizing-network
// remotes goes through here so it never leaks into other commands.
func (r *Repository) RunEnv(ctx context.Context, env []string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", r.dir}, args...)
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", fullArgs...)
	command.Stdout = &stdout
	command.Stderr = &stderr
	if len(env) > 0 {
		command.Env = append(command.Environ(), env...)
	}

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("git %s in %s: %w (stderr: %s)",
			strings.Join(args, " "), r.dir, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Command returns an *exec.Cmd for a git command without running it.
// The caller gets full control over Stdin, Stdout, Stderr, and
// SysProcAttr before starting the process. The -C flag targeting
// this repository is automatically prepended.
func (r *Repository) Command(ctx context.Context, args ...string) *exec.Cmd {
	fullArgs := append([]string{"-C", r.dir}, args...)
	return exec.CommandContext(ctx, "git", fullArgs...)
}

// AddRemote registers a named remote. Adding a name that already
// exists is an error; use SetRemoteURL to repoint one.
func (r *Repository) AddRemote(ctx context.Context, name, url string) error {
	_, err := r.Run(ctx, "remote", "add", name, url)
	return err
}

// SetRemoteURL repoints an existing named remote.
func (r *Repository) SetRemoteURL(ctx context.Context, name, url string) error {
	_, err := r.Run(ctx, "remote", "set-url", name, url)
	return err
}

// ListRemotes returns the configured remote names.
func (r *Repository) ListRemotes(ctx context.Context) ([]string, error) {
	output, err := r.Run(ctx, "remote")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// RemoteURL returns the fetch URL of a named remote.
func (r *Repository) RemoteURL(ctx context.Context, name string) (string, error) {
	output, err := r.Run(ctx, "remote", "get-url", name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// HeadRef returns the commit id the given ref points at.
func (r *Repository) HeadRef(ctx context.Context, ref string) (string, error) {
	output, err := r.Run(ctx, "rev-parse", "--verify", ref)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// IsAncestor reports whether ancestor is reachable from descendant.
// Any git failure (unknown ref, shallow history) reports false.
func (r *Repository) IsAncestor(ctx context.Context, ancestor, descendant string) bool {
	_, err := r.Run(ctx, "merge-base", "--is-ancestor", ancestor, descendant)
	return err == nil
}

// InitBare creates a new bare repository at dir.
func InitBare(ctx context.Context, dir string) (*Repository, error) {
	var stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", "init", "--bare", dir)
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return nil, fmt.Errorf("git init --bare %s: %w (stderr: %s)",
			dir, err, strings.TrimSpace(stderr.String()))
	}
	return NewRepository(dir), nil
}

// CloneBare clones source into a new bare repository at dir.
func CloneBare(ctx context.Context, source, dir string) (*Repository, error) {
	var stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", "clone", "--bare", source, dir)
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return nil, fmt.Errorf("git clone --bare %s: %w (stderr: %s)",
			source, err, strings.TrimSpace(stderr.String()))
	}
	return NewRepository(dir), nil
}
