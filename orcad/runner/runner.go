// Package runner executes agent sessions: clone, branch, generate,
// apply, commit, push. One goroutine per session.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/orcalabs/orcad/internals/conf"
	"github.com/orcalabs/orcad/internals/genai"
	"github.com/orcalabs/orcad/internals/gitops"
	"github.com/orcalabs/orcad/internals/schemas"
	"github.com/orcalabs/orcad/internals/sessions"
	"github.com/orcalabs/orcad/internals/timeouts"
)

const systemPrompt = `You are a coding agent operating on a checked-out git repository.
Reply with a JSON object of the form {"edits": [{"path": "relative/path", "content": "full file content"}]}.
Each edit replaces the whole file. Reply with {"edits": []} when no change is needed.`

// workspace is the slice of gitops.Workspace the pipeline drives.
type workspace interface {
	Dir() string
	CreateBranch(name string) error
	CommitAll(message string) (bool, error)
	ChangedFiles(maxBytes int64) ([]schemas.FileChange, error)
	Push(ctx context.Context) error
}

type cloneFunc func(ctx context.Context, dir, repoURL, credential string) (workspace, error)

func gitClone(ctx context.Context, dir, repoURL, credential string) (workspace, error) {
	ws, err := gitops.Clone(ctx, dir, repoURL, credential)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

type Runner struct {
	store  sessions.Store
	broker *sessions.Broker
	gen    genai.Generator
	logger *slog.Logger
	cfg    *conf.Config
	clone  cloneFunc

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func New(store sessions.Store, broker *sessions.Broker, gen genai.Generator, logger *slog.Logger, cfg *conf.Config) *Runner {
	return &Runner{
		store:   store,
		broker:  broker,
		gen:     gen,
		logger:  logger,
		cfg:     cfg,
		clone:   gitClone,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Launch starts the pipeline goroutine for a freshly created session.
// The credential never enters the store; it lives only in the
// goroutine's stack.
func (r *Runner) Launch(session *schemas.Session, credential string) {
	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancels[session.ID] = cancel
	r.mu.Unlock()
	go r.run(ctx, session.ID, credential)
}

// Stop marks the session stopped and cancels its in-flight work. A
// session that already reached a terminal status is left as is.
func (r *Runner) Stop(id string) (*schemas.Session, error) {
	snapshot, err := r.store.Mutate(id, func(s *schemas.Session) {
		if s.Status.Terminal() {
			return
		}
		s.Status = schemas.SessionStatusStopped
		s.CompletedAt = schemas.Timestamp(time.Now())
		s.AddProgress("Session stopped by user")
	})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	cancel, ok := r.cancels[id]
	delete(r.cancels, id)
	r.mu.Unlock()
	if ok {
		cancel()
	}

	if snapshot.Status == schemas.SessionStatusStopped {
		r.broker.Publish(schemas.Event{
			SessionID: id,
			Type:      schemas.EventSnapshot,
			Session:   snapshot,
		})
	}
	return snapshot, nil
}

func (r *Runner) release(id string) {
	r.mu.Lock()
	cancel, ok := r.cancels[id]
	delete(r.cancels, id)
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

// progress appends one line to the session log and fans it out.
func (r *Runner) progress(id, message string) {
	snapshot, err := r.store.Mutate(id, func(s *schemas.Session) {
		s.AddProgress(message)
	})
	if err != nil {
		r.logger.Error("recording progress", "sessionId", id, "err", err)
		return
	}
	r.broker.Publish(schemas.Event{
		SessionID: id,
		Type:      schemas.EventProgress,
		Message:   snapshot.Progress[len(snapshot.Progress)-1],
	})
}

func (r *Runner) mutate(id string, fn func(*schemas.Session)) {
	if _, err := r.store.Mutate(id, fn); err != nil {
		r.logger.Error("updating session", "sessionId", id, "err", err)
	}
}

// finish records the terminal status and publishes the final snapshot.
// The store's terminal guard makes this a no-op when a stop already
// landed.
func (r *Runner) finish(id string, status schemas.SessionStatus, errMessage string) {
	snapshot, err := r.store.Mutate(id, func(s *schemas.Session) {
		s.Status = status
		s.Error = errMessage
		s.CompletedAt = schemas.Timestamp(time.Now())
	})
	if err != nil {
		r.logger.Error("finishing session", "sessionId", id, "err", err)
		return
	}
	r.broker.Publish(schemas.Event{
		SessionID: id,
		Type:      schemas.EventSnapshot,
		Session:   snapshot,
	})
	r.logger.Info("session finished", "sessionId", id, "status", snapshot.Status)
}

func (r *Runner) run(ctx context.Context, id, credential string) {
	defer r.release(id)

	session, err := r.store.Get(id)
	if err != nil {
		r.logger.Error("launched with unknown session", "sessionId", id, "err", err)
		return
	}

	scratch, err := os.MkdirTemp("", "orcad-"+id+"-")
	if err != nil {
		r.finish(id, schemas.SessionStatusError, fmt.Sprintf("creating workspace: %v", err))
		return
	}
	// The checkout lingers after the run so a human can inspect it,
	// then goes away on its own. Removal errors are ignored.
	defer time.AfterFunc(timeouts.WorkspaceLinger, func() {
		os.RemoveAll(scratch)
	})

	r.progress(id, "Cloning repository...")
	ws, err := r.clone(ctx, scratch, session.RepositoryURL, credential)
	if err != nil {
		r.finish(id, schemas.SessionStatusError, fmt.Sprintf("cloning repository: %v", err))
		return
	}
	r.mutate(id, func(s *schemas.Session) { s.GitState.Cloned = true })
	r.progress(id, "Repository cloned")

	r.progress(id, fmt.Sprintf("Creating branch %s", session.BranchName))
	if err := ws.CreateBranch(session.BranchName); err != nil {
		r.finish(id, schemas.SessionStatusError, fmt.Sprintf("creating branch: %v", err))
		return
	}
	r.mutate(id, func(s *schemas.Session) { s.GitState.BranchCreated = true })

	r.progress(id, "Running agent on task...")
	output := r.generate(ctx, id, session, ws.Dir())

	edits := genai.ParseEdits(output)
	if len(edits) > 0 {
		r.progress(id, fmt.Sprintf("Applying %d edit(s)", len(edits)))
		if err := genai.ApplyEdits(ws.Dir(), edits); err != nil {
			r.progress(id, fmt.Sprintf("Warning: applying edits failed: %v", err))
		}
	}

	committed, err := ws.CommitAll(commitMessage(session.Task))
	if err != nil {
		r.progress(id, fmt.Sprintf("Warning: commit failed: %v", err))
		r.finish(id, schemas.SessionStatusCompleted, "")
		return
	}
	if !committed {
		r.progress(id, "no changes were made")
		r.finish(id, schemas.SessionStatusCompleted, "")
		return
	}
	r.mutate(id, func(s *schemas.Session) { s.GitState.Committed = true })

	files, err := ws.ChangedFiles(int64(r.cfg.Agent.SampleBytes))
	if err != nil {
		r.progress(id, fmt.Sprintf("Warning: reading changed files failed: %v", err))
	} else {
		r.mutate(id, func(s *schemas.Session) { s.Files = files })
	}
	r.progress(id, fmt.Sprintf("Committed %d file change(s)", len(files)))

	r.progress(id, fmt.Sprintf("Pushing branch %s", session.BranchName))
	if err := ws.Push(ctx); err != nil {
		r.progress(id, fmt.Sprintf("Warning: push failed: %v", err))
	} else {
		r.mutate(id, func(s *schemas.Session) { s.GitState.Pushed = true })
		r.progress(id, "Branch pushed")
	}

	r.finish(id, schemas.SessionStatusCompleted, "")
}

// generate runs the model call under its own deadline. Failure is a
// soft warning; the pipeline continues with empty output.
func (r *Runner) generate(ctx context.Context, id string, session *schemas.Session, dir string) string {
	prompt := BuildPrompt(dir, session.Task, r.cfg.Agent.SampleFiles, int64(r.cfg.Agent.SampleBytes))
	callCtx, cancel := context.WithTimeout(ctx, timeouts.GenerateCall)
	defer cancel()

	output, err := r.gen.Generate(callCtx, session.Environment, session.Model, systemPrompt, prompt)
	if err != nil {
		r.progress(id, fmt.Sprintf("Warning: model call failed: %v", err))
		return ""
	}
	return output
}

func commitMessage(task string) string {
	const limit = 72
	if len(task) > limit {
		// Back up to a rune boundary so the cut never splits a
		// multi-byte character.
		cut := limit
		for cut > 0 && !utf8.RuneStart(task[cut]) {
			cut--
		}
		task = task[:cut]
	}
	return "Agent changes: " + task
}
