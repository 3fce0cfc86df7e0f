package server

import (
	"net/http"

	"github.com/orcalabs/orcad/internals/schemas"
)

type healthResponse struct {
	Status         string `json:"status"`
	Service        string `json:"service"`
	Version        string `json:"version"`
	ActiveSessions int    `json:"activeSessions"`
}

func (s *Server) HandlerHealth(w http.ResponseWriter, r *http.Request) {
	active := 0
	if all, err := s.store.List(); err == nil {
		for _, session := range all {
			if session.Status == schemas.SessionStatusRunning {
				active++
			}
		}
	}
	RenderJSON(w, r, healthResponse{
		Status:         "healthy",
		Service:        "orcad",
		Version:        s.Config.Version,
		ActiveSessions: active,
	})
}

func (s *Server) HandlerVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.Config.Version))
}

func (s *Server) HandlerShutdown(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("shutting down"))
	s.Shutdown()
}
