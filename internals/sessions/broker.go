package sessions

import (
	"sync"

	"github.com/orcalabs/orcad/internals/schemas"
)

// eventBuffer is the per-subscriber channel depth. A subscriber that
// falls more than this far behind starts losing events; the session
// record in the store remains the complete history.
const eventBuffer = 64

// Broker fans session events out to subscribers keyed by session id.
// It knows nothing about transports; the SSE handler and the TUI both
// sit on the same Subscribe call.
type Broker struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan schemas.Event
	nextID int
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[int]chan schemas.Event)}
}

// Subscribe registers a listener for one session. The returned cancel
// func is idempotent and must be called to release the channel.
func (b *Broker) Subscribe(sessionID string) (<-chan schemas.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[int]chan schemas.Event)
	}
	id := b.nextID
	b.nextID++
	ch := make(chan schemas.Event, eventBuffer)
	b.subs[sessionID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[sessionID], id)
			if len(b.subs[sessionID]) == 0 {
				delete(b.subs, sessionID)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber of its session. Sends
// never block; a full subscriber drops the event.
func (b *Broker) Publish(event schemas.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[event.SessionID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Listeners reports the subscriber count for a session.
func (b *Broker) Listeners(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[sessionID])
}
