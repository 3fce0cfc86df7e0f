// Package gitops wraps the git operations the agent pipeline needs:
// clone into a scratch directory, branch, commit everything, push, and
// report which files the commit touched.
package gitops

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	"github.com/orcalabs/orcad/internals/schemas"
)

const (
	identityName  = "Orca Agent"
	identityEmail = "agent@orcalabs.dev"
	githubPrefix  = "https://github.com/"
)

// AuthURL embeds the credential into github https URLs. Every other
// URL shape (ssh, other hosts, already-authenticated) passes through
// untouched and relies on ambient credentials.
func AuthURL(repoURL, credential string) string {
	if credential == "" || !strings.HasPrefix(repoURL, githubPrefix) {
		return repoURL
	}
	return "https://" + credential + "@" + strings.TrimPrefix(repoURL, githubPrefix)
}

// Workspace is one cloned checkout under a scratch directory. It is
// owned by a single pipeline goroutine and is not safe for concurrent
// use.
type Workspace struct {
	repo   *git.Repository
	wt     *git.Worktree
	dir    string
	branch string
}

// Clone checks the repository out into dir. The credential, when set,
// is applied through AuthURL so the later push reuses it via the
// origin remote.
func Clone(ctx context.Context, dir, repoURL, credential string) (*Workspace, error) {
	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL: AuthURL(repoURL, credential),
	})
	if err != nil {
		return nil, fmt.Errorf("cloning %s: %w", repoURL, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening worktree: %w", err)
	}
	ws := &Workspace{repo: repo, wt: wt, dir: dir}
	if err := ws.setIdentity(); err != nil {
		return nil, err
	}
	return ws, nil
}

// Open attaches to an existing checkout. Used by tests.
func Open(dir string) (*Workspace, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", dir, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening worktree: %w", err)
	}
	ws := &Workspace{repo: repo, wt: wt, dir: dir}
	if err := ws.setIdentity(); err != nil {
		return nil, err
	}
	return ws, nil
}

func (w *Workspace) Dir() string { return w.dir }

// setIdentity writes the synthetic author into the checkout's config
// so anything that shells into the scratch dir sees the same identity
// the commits carry.
func (w *Workspace) setIdentity() error {
	cfg, err := w.repo.Config()
	if err != nil {
		return fmt.Errorf("reading repo config: %w", err)
	}
	cfg.User.Name = identityName
	cfg.User.Email = identityEmail
	if err := w.repo.SetConfig(cfg); err != nil {
		return fmt.Errorf("writing repo config: %w", err)
	}
	return nil
}

// CreateBranch creates the branch off the current HEAD and checks it
// out.
func (w *Workspace) CreateBranch(name string) error {
	err := w.wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
	})
	if err != nil {
		return fmt.Errorf("creating branch %s: %w", name, err)
	}
	w.branch = name
	return nil
}

// CommitAll stages the whole worktree and commits it. Returns false
// without committing when the worktree is clean.
func (w *Workspace) CommitAll(message string) (bool, error) {
	if err := w.wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return false, fmt.Errorf("staging changes: %w", err)
	}
	status, err := w.wt.Status()
	if err != nil {
		return false, fmt.Errorf("reading worktree status: %w", err)
	}
	if status.IsClean() {
		return false, nil
	}
	_, err = w.wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  identityName,
			Email: identityEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return false, fmt.Errorf("committing changes: %w", err)
	}
	return true, nil
}

// ChangedFiles reports what the HEAD commit changed relative to its
// parent. Created and modified files carry their content up to
// maxBytes; larger files and deletions carry none.
func (w *Workspace) ChangedFiles(maxBytes int64) ([]schemas.FileChange, error) {
	ref, err := w.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}
	commit, err := w.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("reading HEAD commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("reading commit tree: %w", err)
	}
	var parentTree *object.Tree
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("reading parent commit: %w", err)
		}
		parentTree, err = parent.Tree()
		if err != nil {
			return nil, fmt.Errorf("reading parent tree: %w", err)
		}
	}

	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return nil, fmt.Errorf("diffing trees: %w", err)
	}

	out := []schemas.FileChange{}
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			return nil, fmt.Errorf("resolving change action: %w", err)
		}
		switch action {
		case merkletrie.Insert:
			fc := schemas.FileChange{Path: change.To.Name, ChangeType: schemas.FileCreated}
			fc.Content, err = readCapped(tree, change.To.Name, maxBytes)
			if err != nil {
				return nil, err
			}
			out = append(out, fc)
		case merkletrie.Modify:
			fc := schemas.FileChange{Path: change.To.Name, ChangeType: schemas.FileModified}
			fc.Content, err = readCapped(tree, change.To.Name, maxBytes)
			if err != nil {
				return nil, err
			}
			out = append(out, fc)
		case merkletrie.Delete:
			out = append(out, schemas.FileChange{Path: change.From.Name, ChangeType: schemas.FileDeleted})
		}
	}
	return out, nil
}

func readCapped(tree *object.Tree, path string, maxBytes int64) (string, error) {
	file, err := tree.File(path)
	if err != nil {
		return "", fmt.Errorf("reading %s from commit: %w", path, err)
	}
	if file.Size > maxBytes {
		return "", nil
	}
	contents, err := file.Contents()
	if err != nil {
		return "", fmt.Errorf("reading %s from commit: %w", path, err)
	}
	return contents, nil
}

// Push pushes the working branch to origin. The remote URL already
// carries the credential when one was supplied at clone time.
func (w *Workspace) Push(ctx context.Context) error {
	refspec := fmt.Sprintf("refs/heads/%s:refs/heads/%s", w.branch, w.branch)
	err := w.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{config.RefSpec(refspec)},
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("pushing %s: %w", w.branch, err)
	}
	return nil
}

// Remove deletes the scratch checkout.
func (w *Workspace) Remove() error {
	return os.RemoveAll(w.dir)
}
