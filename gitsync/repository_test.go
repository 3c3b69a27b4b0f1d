// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package gitsync

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// gitCmd runs a git command for test setup, failing the test on error.
func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	command := exec.Command("git", append([]string{"-C", dir}, args...)...)
	command.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test",
		"GIT_AUTHOR_EMAIL=test@test.local",
		"GIT_COMMITTER_NAME=Test",
		"GIT_COMMITTER_EMAIL=test@test.local",
	)
	output, err := command.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, output)
	}
	return string(output)
}

// initWorkRepo creates a working repository with one commit on main
// and returns its path.
func initWorkRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	gitCmd(t, dir, "init", "--initial-branch=main", ".")
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("test\n"), 0644); err != nil {
		t.Fatalf("write README: %v", err)
	}
	gitCmd(t, dir, "add", "README")
	gitCmd(t, dir, "commit", "-m", "initial")
	return dir
}

// commitFile adds a commit touching name to the working repository.
func commitFile(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(name+"\n"), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	gitCmd(t, dir, "add", name)
	gitCmd(t, dir, "commit", "-m", "add "+name)
}

func TestRepositoryRun(t *testing.T) {
	t.Parallel()

	repo := NewRepository(initWorkRepo(t))
	output, err := repo.Run(context.Background(), "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		t.Fatalf("Run(rev-parse): %v", err)
	}
	if strings.TrimSpace(output) != "main" {
		t.Errorf("current branch = %q, want main", strings.TrimSpace(output))
	}
}

func TestRepositoryRunErrorIncludesDir(t *testing.T) {
	t.Parallel()

	dir := initWorkRepo(t)
	repo := NewRepository(dir)

	_, err := repo.Run(context.Background(), "not-a-real-command")
	if err == nil {
		t.Fatal("expected error for invalid git subcommand")
	}
	if !strings.Contains(err.Error(), dir) {
		t.Errorf("error = %v, want to contain repository dir %q", err, dir)
	}
}

func TestRepositoryRunNonexistentDirectory(t *testing.T) {
	t.Parallel()

	repo := NewRepository("/tmp/nonexistent-gitsync-repo-abcxyz")
	if _, err := repo.Run(context.Background(), "status"); err == nil {
		t.Fatal("expected error for nonexistent directory")
	}
}

func TestRepositoryRunEnvScoped(t *testing.T) {
	t.Parallel()

	repo := NewRepository(initWorkRepo(t))
	output, err := repo.RunEnv(context.Background(),
		[]string{"GIT_AUTHOR_NAME=Scoped", "GIT_AUTHOR_EMAIL=scoped@test.local"},
		"var", "GIT_AUTHOR_IDENT")
	if err != nil {
		t.Fatalf("RunEnv(var): %v", err)
	}
	if !strings.Contains(output, "Scoped") {
		t.Errorf("author ident = %q, want scoped env applied", output)
	}
}

func TestRepositoryCommand(t *testing.T) {
	t.Parallel()

	repo := NewRepository("/some/dir")
	cmd := repo.Command(context.Background(), "status", "--porcelain")

	expectedArgs := []string{"git", "-C", "/some/dir", "status", "--porcelain"}
	if len(cmd.Args) != len(expectedArgs) {
		t.Fatalf("cmd.Args = %v, want %v", cmd.Args, expectedArgs)
	}
	for i, want := range expectedArgs {
		if cmd.Args[i] != want {
			t.Errorf("cmd.Args[%d] = %q, want %q", i, cmd.Args[i], want)
		}
	}
}

func TestInitBareAndCloneBare(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	source := initWorkRepo(t)
	cloneDir := filepath.Join(t.TempDir(), "clone.git")
	clone, err := CloneBare(ctx, source, cloneDir)
	if err != nil {
		t.Fatalf("CloneBare: %v", err)
	}
	head, err := clone.HeadRef(ctx, "refs/heads/main")
	if err != nil {
		t.Fatalf("HeadRef: %v", err)
	}
	if len(head) != 40 {
		t.Errorf("head = %q, want a commit id", head)
	}

	bareDir := filepath.Join(t.TempDir(), "empty.git")
	bare, err := InitBare(ctx, bareDir)
	if err != nil {
		t.Fatalf("InitBare: %v", err)
	}
	if _, err := bare.Run(ctx, "rev-parse", "--is-bare-repository"); err != nil {
		t.Errorf("init result is not a repository: %v", err)
	}
}

func TestRemoteManagement(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := NewRepository(initWorkRepo(t))
	if err := repo.AddRemote(ctx, "upstream", "https://example.com/a.git"); err != nil {
		t.Fatalf("AddRemote: %v", err)
	}
	if err := repo.SetRemoteURL(ctx, "upstream", "https://example.com/b.git"); err != nil {
		t.Fatalf("SetRemoteURL: %v", err)
	}
	url, err := repo.RemoteURL(ctx, "upstream")
	if err != nil {
		t.Fatalf("RemoteURL: %v", err)
	}
	if url != "https://example.com/b.git" {
		t.Errorf("remote url = %q after repoint", url)
	}
	names, err := repo.ListRemotes(ctx)
	if err != nil {
		t.Fatalf("ListRemotes: %v", err)
	}
	if len(names) != 1 || names[0] != "upstream" {
		t.Errorf("remotes = %v, want [upstream]", names)
	}
}
