package sessions

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/orcalabs/orcad/internals/schemas"
)

const sessionsSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	created_at TEXT NOT NULL,
	completed_at TEXT NOT NULL DEFAULT '',
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions (status);
`

// SQLiteStore persists sessions so a daemon restart does not lose the
// record of what ran. The full session is stored as a JSON payload;
// status and timestamps are lifted into columns for the janitor query.
type SQLiteStore struct {
	// sqlite gives us durability, not isolation for read-modify-write,
	// so Mutate still serializes through this lock.
	mu     sync.Mutex
	db     *sql.DB
	ttl    time.Duration
	done   chan struct{}
	closed sync.Once
}

func NewSQLiteStore(dataDir string, ttl time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", filepath.Join(dataDir, "orcad.db"))
	if err != nil {
		return nil, fmt.Errorf("opening sessions db: %w", err)
	}
	if _, err := db.Exec(sessionsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sessions table: %w", err)
	}
	s := &SQLiteStore{db: db, ttl: ttl, done: make(chan struct{})}
	if ttl > 0 {
		go s.janitor()
	}
	return s, nil
}

func (s *SQLiteStore) Create(session *schemas.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO sessions (id, status, created_at, completed_at, payload) VALUES (?, ?, ?, ?, ?)`,
		session.ID, string(session.Status), session.CreatedAt, session.CompletedAt, string(payload),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(id string) (*schemas.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

func (s *SQLiteStore) get(id string) (*schemas.Session, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM sessions WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	session := &schemas.Session{}
	if err := json.Unmarshal([]byte(payload), session); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return session, nil
}

func (s *SQLiteStore) Mutate(id string, fn func(*schemas.Session)) (*schemas.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.get(id)
	if err != nil {
		return nil, err
	}
	applyGuarded(record, fn)
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}
	_, err = s.db.Exec(
		`UPDATE sessions SET status = ?, completed_at = ?, payload = ? WHERE id = ?`,
		string(record.Status), record.CompletedAt, string(payload), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating session: %w", err)
	}
	return record.Copy(), nil
}

func (s *SQLiteStore) List() ([]*schemas.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT payload FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()
	out := []*schemas.Session{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		session := &schemas.Session{}
		if err := json.Unmarshal([]byte(payload), session); err != nil {
			return nil, fmt.Errorf("decoding session: %w", err)
		}
		out = append(out, session)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.closed.Do(func() { close(s.done) })
	return s.db.Close()
}

func (s *SQLiteStore) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.evictExpired(now)
		}
	}
}

func (s *SQLiteStore) evictExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl).Format(time.RFC3339Nano)
	s.db.Exec(
		`DELETE FROM sessions WHERE status != ? AND completed_at != '' AND completed_at < ?`,
		string(schemas.SessionStatusRunning), cutoff,
	)
}
