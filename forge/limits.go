// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package forge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RepoPath returns the on-disk location of a bare repository: one
// directory per owner pubkey, one ".git" suffixed directory per
// repository identifier.
func RepoPath(repoRoot, owner, identifier string) string {
	return filepath.Join(repoRoot, owner, identifier+".git")
}

// Limits enforces the per-identity repository cap by counting the
// bare repositories provisioned under an owner's directory.
type Limits struct {
	repoRoot string
	maxRepos int
}

// NewLimits creates a Limits over repoRoot. maxRepos <= 0 means
// unlimited.
func NewLimits(repoRoot string, maxRepos int) *Limits {
	return &Limits{repoRoot: repoRoot, maxRepos: maxRepos}
}

// Count returns the number of repositories provisioned for owner.
func (l *Limits) Count(owner string) (int, error) {
	entries, err := os.ReadDir(filepath.Join(l.repoRoot, owner))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("forge: counting repositories for owner: %w", err)
	}
	count := 0
	for _, entry := range entries {
		if entry.IsDir() && strings.HasSuffix(entry.Name(), ".git") {
			count++
		}
	}
	return count, nil
}

// Allow reports whether owner may provision one more repository.
func (l *Limits) Allow(owner string) (bool, error) {
	if l.maxRepos <= 0 {
		return true, nil
	}
	count, err := l.Count(owner)
	if err != nil {
		return false, err
	}
	return count < l.maxRepos, nil
}
