package schemas

import (
	"fmt"
	"time"
)

type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusError     SessionStatus = "error"
	SessionStatusStopped   SessionStatus = "stopped"
)

// Terminal reports whether the status is final. A session reaches a
// terminal status exactly once and never leaves it.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionStatusCompleted, SessionStatusError, SessionStatusStopped:
		return true
	}
	return false
}

type FileChangeType string

const (
	FileCreated  FileChangeType = "created"
	FileModified FileChangeType = "modified"
	FileDeleted  FileChangeType = "deleted"
)

type FileChange struct {
	Path       string         `json:"path"`
	ChangeType FileChangeType `json:"changeType"`
	Content    string         `json:"content,omitempty"`
}

// GitState tracks the pipeline's git milestones. Each flag flips from
// false to true at most once and never reverts.
type GitState struct {
	Cloned        bool `json:"cloned"`
	BranchCreated bool `json:"branchCreated"`
	Committed     bool `json:"committed"`
	Pushed        bool `json:"pushed"`
}

// Session is the record tracking one agent task from submission to a
// terminal status. It is mutated only by the runner goroutine that owns
// it; everything else reads copies through the store.
type Session struct {
	ID            string        `json:"sessionId"`
	Task          string        `json:"task"`
	RepositoryURL string        `json:"repositoryUrl"`
	BranchName    string        `json:"branchName"`
	Model         string        `json:"model,omitempty"`
	Environment   string        `json:"environment,omitempty"`
	Status        SessionStatus `json:"status"`
	Progress      []string      `json:"progress"`
	GitState      GitState      `json:"gitState"`
	Files         []FileChange  `json:"files"`
	Error         string        `json:"error,omitempty"`
	CreatedAt     string        `json:"createdAt"`
	CompletedAt   string        `json:"completedAt,omitempty"`
}

// AddProgress appends a timestamped line to the progress log.
func (s *Session) AddProgress(message string) {
	stamp := time.Now().UTC().Format(time.RFC3339)
	s.Progress = append(s.Progress, fmt.Sprintf("[%s] %s", stamp, message))
}

// Copy returns a deep copy safe to hand to readers while the runner
// keeps mutating the original.
func (s *Session) Copy() *Session {
	dup := *s
	dup.Progress = append([]string(nil), s.Progress...)
	dup.Files = append([]FileChange(nil), s.Files...)
	return &dup
}

// Timestamp formats t the way session timestamps are stored.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// DefaultBranchName derives the branch used when the caller does not
// supply one.
func DefaultBranchName(t time.Time) string {
	return "orca/agent-" + t.UTC().Format("20060102-150405")
}
