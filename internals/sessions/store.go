// Package sessions holds the authoritative state for agent sessions and
// the fan-out channel that delivers their progress to listeners.
package sessions

import (
	"errors"

	"github.com/orcalabs/orcad/internals/schemas"
)

var ErrNotFound = errors.New("session not found")

// Store keeps session records keyed by id. One runner goroutine is the
// writer for a given session's pipeline; the request surface reads
// snapshots and flips the status on stop. Both paths go through Mutate
// so the terminal-state guard below always applies.
type Store interface {
	Create(session *schemas.Session) error
	Get(id string) (*schemas.Session, error)
	// Mutate applies fn to the session record and returns a snapshot of
	// the result. Status writes after a terminal status are discarded,
	// and git milestones never revert.
	Mutate(id string, fn func(*schemas.Session)) (*schemas.Session, error)
	List() ([]*schemas.Session, error)
	Close() error
}

// applyGuarded runs fn against the record and then re-asserts the
// invariants that no caller may break: a terminal status is never
// overwritten, CompletedAt is never cleared, and gitState booleans only
// move from false to true.
func applyGuarded(record *schemas.Session, fn func(*schemas.Session)) {
	prevStatus := record.Status
	prevCompleted := record.CompletedAt
	prevError := record.Error
	prevGit := record.GitState

	fn(record)

	if prevStatus.Terminal() && record.Status != prevStatus {
		record.Status = prevStatus
		record.CompletedAt = prevCompleted
		record.Error = prevError
	}
	if prevGit.Cloned {
		record.GitState.Cloned = true
	}
	if prevGit.BranchCreated {
		record.GitState.BranchCreated = true
	}
	if prevGit.Committed {
		record.GitState.Committed = true
	}
	if prevGit.Pushed {
		record.GitState.Pushed = true
	}
}
