package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	z "github.com/Oudwins/zog"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/orcalabs/orcad/internals/schemas"
	"github.com/orcalabs/orcad/internals/sessions"
)

func (s *Server) HandlerExecute(w http.ResponseWriter, r *http.Request) {
	var request schemas.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeInvalidJson, "Invalid JSON", nil), Render.Status(http.StatusBadRequest))
		return
	}

	if issues := schemas.SubmitSchema.Validate(&request); len(issues) > 0 {
		payload := JsonResponseError(JsonResponseErrorCodeValidationFailed, "Schema validation failed", z.Issues.Flatten(issues))
		RenderJSON(w, r, payload, Render.Status(http.StatusBadRequest))
		return
	}

	now := time.Now()
	if request.BranchName == "" {
		request.BranchName = schemas.DefaultBranchName(now)
	}
	if request.Model == "" {
		request.Model = s.Config.Agent.DefaultModel
	}
	if request.Environment == "" {
		request.Environment = s.Env.ENVIRONMENT
	}
	credential := request.Credential
	if credential == "" {
		credential = s.Env.GIT_TOKEN
	}

	session := &schemas.Session{
		ID:            uuid.NewString(),
		Task:          request.Task,
		RepositoryURL: request.RepositoryURL,
		BranchName:    request.BranchName,
		Model:         request.Model,
		Environment:   request.Environment,
		Status:        schemas.SessionStatusRunning,
		Progress:      []string{},
		Files:         []schemas.FileChange{},
		CreatedAt:     schemas.Timestamp(now),
	}
	if err := s.store.Create(session); err != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeInternal, "Failed to create session", nil), Render.Status(http.StatusInternalServerError))
		return
	}
	s.runner.Launch(session, credential)

	RenderJSON(w, r, schemas.SubmitResponse{
		SessionID:  session.ID,
		Status:     session.Status,
		BranchName: session.BranchName,
	}, Render.Status(http.StatusAccepted))
}

func (s *Server) HandlerStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	session, err := s.store.Get(sessionID)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeNotFound, "session not found", nil), Render.Status(http.StatusNotFound))
			return
		}
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeInternal, "Failed to read session", nil), Render.Status(http.StatusInternalServerError))
		return
	}
	RenderJSON(w, r, session)
}

func (s *Server) HandlerStop(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	session, err := s.runner.Stop(sessionID)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeNotFound, "session not found", nil), Render.Status(http.StatusNotFound))
			return
		}
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeInternal, "Failed to stop session", nil), Render.Status(http.StatusInternalServerError))
		return
	}

	message := "session stopped"
	if session.Status != schemas.SessionStatusStopped {
		message = "session already " + string(session.Status)
	}
	RenderJSON(w, r, schemas.StopResponse{
		SessionID: session.ID,
		Status:    session.Status,
		Message:   message,
	})
}

func (s *Server) HandlerSessions(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.List()
	if err != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeInternal, "Failed to list sessions", nil), Render.Status(http.StatusInternalServerError))
		return
	}
	RenderJSON(w, r, schemas.SessionListResponse{Sessions: all})
}
