package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/uuid"

	"github.com/orcalabs/orcad/internals/conf"
	"github.com/orcalabs/orcad/internals/schemas"
	"github.com/orcalabs/orcad/internals/sessions"
	"github.com/orcalabs/orcad/internals/testutil"
)

type stubGen struct {
	output string
	err    error
	block  chan struct{}

	mu      sync.Mutex
	lastEnv string
}

func (g *stubGen) Generate(ctx context.Context, environment, model, system, prompt string) (string, error) {
	g.mu.Lock()
	g.lastEnv = environment
	g.mu.Unlock()
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return g.output, g.err
}

func testConfig() *conf.Config {
	return &conf.Config{
		Agent: conf.AgentConfig{
			DefaultModel: "claude-3-5-sonnet-20241022",
			MaxTokens:    4096,
			SampleFiles:  10,
			SampleBytes:  4096,
		},
	}
}

func newTestRunner(t *testing.T, gen *stubGen) (*Runner, sessions.Store, *sessions.Broker) {
	t.Helper()
	store := sessions.NewMemoryStore(0)
	t.Cleanup(func() { store.Close() })
	broker := sessions.NewBroker()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, broker, gen, logger, testConfig()), store, broker
}

func launch(t *testing.T, r *Runner, store sessions.Store, repoURL string) *schemas.Session {
	t.Helper()
	session := &schemas.Session{
		ID:            uuid.NewString(),
		Task:          "add a greeting file",
		RepositoryURL: repoURL,
		BranchName:    schemas.DefaultBranchName(time.Now()),
		Model:         "claude-3-5-sonnet-20241022",
		Environment:   "STAGING",
		Status:        schemas.SessionStatusRunning,
		Progress:      []string{},
		Files:         []schemas.FileChange{},
		CreatedAt:     schemas.Timestamp(time.Now()),
	}
	if err := store.Create(session); err != nil {
		t.Fatalf("creating session: %v", err)
	}
	r.Launch(session, "")
	return session
}

func TestRunCompletesAndPushes(t *testing.T) {
	remote := testutil.SeedRemote(t)
	gen := &stubGen{output: `{"edits": [{"path": "hello.txt", "content": "hi\n"}]}`}
	r, store, _ := newTestRunner(t, gen)

	session := launch(t, r, store, remote)
	final := testutil.WaitForStatus(t, store, session.ID, schemas.SessionStatusCompleted, 10*time.Second)

	if !final.GitState.Cloned || !final.GitState.BranchCreated || !final.GitState.Committed || !final.GitState.Pushed {
		t.Fatalf("expected all git milestones, got %+v", final.GitState)
	}
	if len(final.Files) != 1 || final.Files[0].Path != "hello.txt" || final.Files[0].ChangeType != schemas.FileCreated {
		t.Fatalf("unexpected files: %+v", final.Files)
	}
	if final.Error != "" {
		t.Fatalf("unexpected error on completed run: %q", final.Error)
	}
	if final.CompletedAt == "" {
		t.Fatalf("completedAt not set on terminal session")
	}

	remoteRepo, err := git.PlainOpen(remote)
	if err != nil {
		t.Fatalf("opening remote: %v", err)
	}
	if _, err := remoteRepo.Reference(plumbing.NewBranchReferenceName(session.BranchName), true); err != nil {
		t.Fatalf("agent branch missing on remote: %v", err)
	}
}

func TestRunForwardsSessionEnvironmentToModel(t *testing.T) {
	remote := testutil.SeedRemote(t)
	gen := &stubGen{output: `{"edits": []}`}
	r, store, _ := newTestRunner(t, gen)

	session := &schemas.Session{
		ID:            uuid.NewString(),
		Task:          "add a greeting file",
		RepositoryURL: remote,
		BranchName:    schemas.DefaultBranchName(time.Now()),
		Model:         "claude-3-5-sonnet-20241022",
		Environment:   "PRODUCTION",
		Status:        schemas.SessionStatusRunning,
		Progress:      []string{},
		Files:         []schemas.FileChange{},
		CreatedAt:     schemas.Timestamp(time.Now()),
	}
	if err := store.Create(session); err != nil {
		t.Fatalf("creating session: %v", err)
	}
	r.Launch(session, "")
	testutil.WaitForStatus(t, store, session.ID, schemas.SessionStatusCompleted, 10*time.Second)

	gen.mu.Lock()
	defer gen.mu.Unlock()
	if gen.lastEnv != "PRODUCTION" {
		t.Fatalf("model call used environment %q, want the session's PRODUCTION", gen.lastEnv)
	}
}

func TestRunNoEditsCompletesWithoutCommit(t *testing.T) {
	remote := testutil.SeedRemote(t)
	gen := &stubGen{output: `{"edits": []}`}
	r, store, _ := newTestRunner(t, gen)

	session := launch(t, r, store, remote)
	final := testutil.WaitForStatus(t, store, session.ID, schemas.SessionStatusCompleted, 10*time.Second)

	if final.GitState.Committed || final.GitState.Pushed {
		t.Fatalf("expected no commit for an empty edit list, got %+v", final.GitState)
	}
	if len(final.Files) != 0 {
		t.Fatalf("expected no files, got %+v", final.Files)
	}
	if !hasProgress(final, "no changes were made") {
		t.Fatalf("missing no-change progress line: %v", final.Progress)
	}
}

func TestRunModelFailureIsSoftWarning(t *testing.T) {
	remote := testutil.SeedRemote(t)
	gen := &stubGen{err: errors.New("backend down")}
	r, store, _ := newTestRunner(t, gen)

	session := launch(t, r, store, remote)
	final := testutil.WaitForStatus(t, store, session.ID, schemas.SessionStatusCompleted, 10*time.Second)

	if !hasProgress(final, "Warning: model call failed") {
		t.Fatalf("missing model warning: %v", final.Progress)
	}
	if !hasProgress(final, "no changes were made") {
		t.Fatalf("expected a no-change completion: %v", final.Progress)
	}
}

// brokenCommitWorkspace behaves like a real checkout until the commit,
// which always fails.
type brokenCommitWorkspace struct {
	dir string
}

func (w *brokenCommitWorkspace) Dir() string                { return w.dir }
func (w *brokenCommitWorkspace) CreateBranch(string) error  { return nil }
func (w *brokenCommitWorkspace) Push(context.Context) error { return nil }

func (w *brokenCommitWorkspace) CommitAll(string) (bool, error) {
	return false, errors.New("index locked")
}
func (w *brokenCommitWorkspace) ChangedFiles(int64) ([]schemas.FileChange, error) {
	return nil, nil
}

func TestRunCommitFailureIsSoftWarning(t *testing.T) {
	gen := &stubGen{output: `{"edits": [{"path": "hello.txt", "content": "hi\n"}]}`}
	r, store, _ := newTestRunner(t, gen)
	r.clone = func(ctx context.Context, dir, repoURL, credential string) (workspace, error) {
		return &brokenCommitWorkspace{dir: dir}, nil
	}

	session := launch(t, r, store, "ignored")
	final := testutil.WaitForStatus(t, store, session.ID, schemas.SessionStatusCompleted, 10*time.Second)

	if !hasProgress(final, "Warning: commit failed") {
		t.Fatalf("missing commit warning: %v", final.Progress)
	}
	if hasProgress(final, "no changes were made") {
		t.Fatalf("commit failure reported as a clean tree: %v", final.Progress)
	}
	if final.GitState.Committed || final.GitState.Pushed {
		t.Fatalf("git milestones set after a failed commit: %+v", final.GitState)
	}
}

func TestRunUnreachableRepoIsError(t *testing.T) {
	gen := &stubGen{output: `{"edits": []}`}
	r, store, _ := newTestRunner(t, gen)

	session := launch(t, r, store, t.TempDir()+"/does-not-exist")
	final := testutil.WaitForStatus(t, store, session.ID, schemas.SessionStatusError, 10*time.Second)

	if final.GitState.Cloned {
		t.Fatalf("cloned flag set on a failed clone")
	}
	if !strings.Contains(final.Error, "cloning repository") {
		t.Fatalf("unexpected error message: %q", final.Error)
	}
}

func TestStopCancelsInFlightRun(t *testing.T) {
	remote := testutil.SeedRemote(t)
	gen := &stubGen{output: `{"edits": []}`, block: make(chan struct{})}
	r, store, _ := newTestRunner(t, gen)

	session := launch(t, r, store, remote)

	// Wait for the pipeline to reach the blocked model call.
	deadline := time.Now().Add(10 * time.Second)
	for {
		snap, err := store.Get(session.ID)
		if err == nil && hasProgress(snap, "Running agent on task") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("pipeline never reached the model call")
		}
		time.Sleep(10 * time.Millisecond)
	}

	stopped, err := r.Stop(session.ID)
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if stopped.Status != schemas.SessionStatusStopped {
		t.Fatalf("expected stopped status, got %q", stopped.Status)
	}

	// The cancelled pipeline finishes soon after, and its completion
	// write must not overwrite the stopped status.
	time.Sleep(200 * time.Millisecond)
	final, err := store.Get(session.ID)
	if err != nil {
		t.Fatalf("get after stop failed: %v", err)
	}
	if final.Status != schemas.SessionStatusStopped {
		t.Fatalf("stopped status was overwritten: %q", final.Status)
	}
}

func TestStopUnknownSession(t *testing.T) {
	r, _, _ := newTestRunner(t, &stubGen{})
	if _, err := r.Stop("missing"); err != sessions.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStopAfterTerminalIsIdempotent(t *testing.T) {
	remote := testutil.SeedRemote(t)
	gen := &stubGen{output: `{"edits": []}`}
	r, store, _ := newTestRunner(t, gen)

	session := launch(t, r, store, remote)
	testutil.WaitForStatus(t, store, session.ID, schemas.SessionStatusCompleted, 10*time.Second)

	stopped, err := r.Stop(session.ID)
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if stopped.Status != schemas.SessionStatusCompleted {
		t.Fatalf("stop flipped a completed session to %q", stopped.Status)
	}
}

func TestRunPublishesProgressAndTerminalSnapshot(t *testing.T) {
	remote := testutil.SeedRemote(t)
	gen := &stubGen{output: `{"edits": []}`}
	r, store, broker := newTestRunner(t, gen)

	session := &schemas.Session{
		ID:            uuid.NewString(),
		Task:          "noop",
		RepositoryURL: remote,
		BranchName:    schemas.DefaultBranchName(time.Now()),
		Status:        schemas.SessionStatusRunning,
		Progress:      []string{},
		Files:         []schemas.FileChange{},
		CreatedAt:     schemas.Timestamp(time.Now()),
	}
	if err := store.Create(session); err != nil {
		t.Fatalf("creating session: %v", err)
	}
	events, cancel := broker.Subscribe(session.ID)
	defer cancel()

	r.Launch(session, "")

	sawProgress := false
	deadline := time.After(10 * time.Second)
	for {
		select {
		case event := <-events:
			if event.Type == schemas.EventProgress {
				sawProgress = true
			}
			if event.Type == schemas.EventSnapshot {
				if !sawProgress {
					t.Fatalf("terminal snapshot arrived before any progress event")
				}
				if event.Session == nil || !event.Session.Status.Terminal() {
					t.Fatalf("terminal snapshot event missing session: %+v", event)
				}
				return
			}
		case <-deadline:
			t.Fatalf("never received the terminal snapshot event")
		}
	}
}

func writeFile(dir, name, content string) error {
	return os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)
}

func TestCommitMessageTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("héllo ", 20)
	got := commitMessage(long)
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune: %q", got)
	}
	if len(got) > len("Agent changes: ")+72 {
		t.Fatalf("message not truncated: %d bytes", len(got))
	}
	short := commitMessage("fix the thing")
	if short != "Agent changes: fix the thing" {
		t.Fatalf("unexpected message for a short task: %q", short)
	}
}

func hasProgress(s *schemas.Session, substr string) bool {
	for _, line := range s.Progress {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func TestBuildPromptBoundedSample(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 15; i++ {
		name := fmt.Sprintf("file%02d.txt", i)
		if err := writeFile(dir, name, "content\n"); err != nil {
			t.Fatalf("writing sample file: %v", err)
		}
	}
	if err := writeFile(dir, "huge.txt", strings.Repeat("x", 5000)); err != nil {
		t.Fatalf("writing huge file: %v", err)
	}
	if err := writeFile(dir, ".hidden", "secret"); err != nil {
		t.Fatalf("writing hidden file: %v", err)
	}

	prompt := BuildPrompt(dir, "do the thing", 10, 4096)
	if !strings.HasPrefix(prompt, "Task: do the thing") {
		t.Fatalf("prompt missing task: %q", prompt)
	}
	if got := strings.Count(prompt, "--- "); got != 10 {
		t.Fatalf("expected 10 quoted files, got %d", got)
	}
	if strings.Contains(prompt, "huge.txt") {
		t.Fatalf("oversized file quoted in prompt")
	}
	if strings.Contains(prompt, ".hidden") {
		t.Fatalf("dotfile quoted in prompt")
	}
}
