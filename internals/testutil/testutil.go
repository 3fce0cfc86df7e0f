// Package testutil holds helpers shared by the package test suites:
// a seeded local git remote to clone from, and poll-based waits.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/orcalabs/orcad/internals/schemas"
	"github.com/orcalabs/orcad/internals/sessions"
)

// SeedRemote builds a bare repository with one commit and returns its
// path. A local path clones and pushes without credentials, which is
// all the pipeline needs under test.
func SeedRemote(t *testing.T) string {
	t.Helper()
	remoteDir := t.TempDir()
	if _, err := git.PlainInit(remoteDir, true); err != nil {
		t.Fatalf("initializing bare remote: %v", err)
	}

	seedDir := t.TempDir()
	repo, err := git.PlainInit(seedDir, false)
	if err != nil {
		t.Fatalf("initializing seed repo: %v", err)
	}
	if err := os.WriteFile(filepath.Join(seedDir, "README.md"), []byte("# widgets\n"), 0o644); err != nil {
		t.Fatalf("writing seed file: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("opening seed worktree: %v", err)
	}
	if _, err := wt.Add("README.md"); err != nil {
		t.Fatalf("staging seed file: %v", err)
	}
	_, err = wt.Commit("seed", &git.CommitOptions{
		Author: &object.Signature{Name: "seed", Email: "seed@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("committing seed: %v", err)
	}
	if _, err := repo.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{remoteDir}}); err != nil {
		t.Fatalf("adding seed remote: %v", err)
	}
	err = repo.Push(&git.PushOptions{
		RefSpecs: []config.RefSpec{"refs/heads/master:refs/heads/master"},
	})
	if err != nil {
		t.Fatalf("seeding remote: %v", err)
	}
	return remoteDir
}

// WaitForStatus polls the store until the session reaches the wanted
// status or the deadline passes.
func WaitForStatus(t *testing.T, store sessions.Store, id string, want schemas.SessionStatus, timeout time.Duration) *schemas.Session {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		session, err := store.Get(id)
		if err == nil && session.Status == want {
			return session
		}
		if time.Now().After(deadline) {
			if err != nil {
				t.Fatalf("session %s never reached %q: %v", id, want, err)
			}
			t.Fatalf("session %s never reached %q, last status %q", id, want, session.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
