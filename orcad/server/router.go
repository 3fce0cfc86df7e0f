package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.MiddlewareLogger)
	r.Get("/health", s.HandlerHealth)
	r.Get("/version", s.HandlerVersion)
	r.Post("/shutdown", s.HandlerShutdown)
	r.Post("/api/agent/execute", s.HandlerExecute)
	r.Get("/api/agent/status/{id}", s.HandlerStatus)
	r.Get("/api/agent/events/{id}", s.HandlerEvents)
	r.Post("/api/agent/stop/{id}", s.HandlerStop)
	r.Get("/api/agent/sessions", s.HandlerSessions)
	return r
}
