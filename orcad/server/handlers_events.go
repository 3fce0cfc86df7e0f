package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/orcalabs/orcad/internals/schemas"
	"github.com/orcalabs/orcad/internals/sessions"
)

// HandlerEvents streams a session's events over SSE: one snapshot of
// the current state, then live events until the session reaches a
// terminal status or the client goes away.
func (s *Server) HandlerEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	// Subscribe before the snapshot read so nothing published in
	// between is lost. A duplicate progress line is harmless.
	events, cancel := s.broker.Subscribe(sessionID)
	defer cancel()

	session, err := s.store.Get(sessionID)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeNotFound, "session not found", nil), Render.Status(http.StatusNotFound))
			return
		}
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeInternal, "Failed to read session", nil), Render.Status(http.StatusInternalServerError))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeInternal, "streaming unsupported", nil), Render.Status(http.StatusInternalServerError))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeSSE(w, schemas.Event{
		SessionID: sessionID,
		Type:      schemas.EventSnapshot,
		Session:   session,
	})
	flusher.Flush()
	if session.Status.Terminal() {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			writeSSE(w, event)
			flusher.Flush()
			if event.Type == schemas.EventSnapshot && event.Session != nil && event.Session.Status.Terminal() {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, event schemas.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n\n"))
}
