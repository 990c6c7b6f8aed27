// Package ops serves the local inspection surface: health, the carrier
// inventory, raw model JSON, and rendered reports. It is intended for the
// edge gateway's maintenance port, not for line traffic.
package ops

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gomarkdown/markdown"

	"screwdiag/domain/core"
	"screwdiag/internal"
	"screwdiag/internal/engine"
	"screwdiag/internal/report"
)

// Server is the chi-backed inspection server
type Server struct {
	router *chi.Mux
	engine *engine.Engine
	log    *internal.Logger
}

// NewServer creates an inspection server over a running engine
func NewServer(eng *engine.Engine, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	s := &Server{
		router: chi.NewRouter(),
		engine: eng,
		log:    logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/carriers", s.handleCarriers)
	s.router.Get("/carriers/{carrierID}", s.handleModel)
	s.router.Get("/carriers/{carrierID}/report", s.handleReport)
}

// Handler exposes the router for embedding in another mux
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks serving the inspection surface on addr
func (s *Server) ListenAndServe(addr string) error {
	s.log.Info("ops server listening on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCarriers(w http.ResponseWriter, r *http.Request) {
	ids, err := s.engine.Carriers(r.Context())
	if err != nil {
		s.log.Error("list carriers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"carriers": ids})
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	carrierID := core.CarrierID(chi.URLParam(r, "carrierID"))
	model, err := s.engine.ModelSnapshot(r.Context(), carrierID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, model)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	carrierID := core.CarrierID(chi.URLParam(r, "carrierID"))
	model, err := s.engine.ModelSnapshot(r.Context(), carrierID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	md := report.BuildMarkdown(model)
	body := markdown.ToHTML([]byte(md), nil, nil)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "<!DOCTYPE html><html><body>%s</body></html>", body)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
