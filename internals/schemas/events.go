package schemas

type EventType string

const (
	// EventSnapshot carries the full session state. Sent once on
	// subscribe and again on every terminal status change.
	EventSnapshot EventType = "snapshot"
	// EventProgress carries a single appended progress line.
	EventProgress EventType = "progress"
)

// Event is one message on a session's notification channel.
type Event struct {
	SessionID string    `json:"sessionId"`
	Type      EventType `json:"type"`
	Message   string    `json:"message,omitempty"`
	Session   *Session  `json:"session,omitempty"`
}
