package sessions

import (
	"sync"
	"time"

	"github.com/orcalabs/orcad/internals/schemas"
)

const janitorInterval = time.Minute

// MemoryStore keeps sessions in a map. Reads hand out deep copies so
// callers can never alias the record the runner is still writing to.
// A janitor goroutine evicts terminal sessions once they outlive ttl;
// running sessions are never evicted.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*schemas.Session
	ttl      time.Duration
	done     chan struct{}
	closed   sync.Once
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*schemas.Session),
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	if ttl > 0 {
		go s.janitor()
	}
	return s
}

func (s *MemoryStore) Create(session *schemas.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Copy()
	return nil
}

func (s *MemoryStore) Get(id string) (*schemas.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return record.Copy(), nil
}

func (s *MemoryStore) Mutate(id string, fn func(*schemas.Session)) (*schemas.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	applyGuarded(record, fn)
	return record.Copy(), nil
}

func (s *MemoryStore) List() ([]*schemas.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*schemas.Session, 0, len(s.sessions))
	for _, record := range s.sessions {
		out = append(out, record.Copy())
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.closed.Do(func() { close(s.done) })
	return nil
}

func (s *MemoryStore) janitor() {
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

func (s *MemoryStore) evictExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, record := range s.sessions {
		if !record.Status.Terminal() || record.CompletedAt == "" {
			continue
		}
		completed, err := time.Parse(time.RFC3339Nano, record.CompletedAt)
		if err != nil {
			continue
		}
		if now.Sub(completed) > s.ttl {
			delete(s.sessions, id)
		}
	}
}
