// Package server exposes the observer to remote pipelines and operators.
//
// DESIGN: Two surfaces on one listener:
//   - /ws/ingest:  websocket endpoint a pipeline streams frame envelopes to
//   - /api/*:      read-only summary and archived-run endpoints for operators
//
// The server owns no statistics; it translates envelopes into OnFrame calls
// and snapshots into JSON. The observer stays usable fully in-process
// without this package.
//
// FILES:
//   - server.go: HTTP server, routes, summary/runs handlers
//   - ingest.go: websocket frame envelope ingestion
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxlab/pipescope/internal/config"
	"github.com/voxlab/pipescope/internal/monitoring"
	"github.com/voxlab/pipescope/internal/observer"
	"github.com/voxlab/pipescope/internal/store"
)

// Server serves the ingest websocket and the operator API.
type Server struct {
	cfg     config.ServerConfig
	obs     *observer.Observer
	runs    *store.RunStore // nil when persistence is disabled
	runID   string
	httpSrv *http.Server
}

// New creates a server for the given observer. runs may be nil. runID tags
// every request log line and ingest connection with the process run.
func New(cfg config.ServerConfig, obs *observer.Observer, runs *store.RunStore, runID string) *Server {
	s := &Server{cfg: cfg, obs: obs, runs: runs, runID: runID}
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Start blocks serving until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Int("port", s.cfg.Port).Msg("server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("/ws/ingest", s.handleIngest)
	return s.withRunID(requestLogger(mux))
}

// withRunID stamps the process run ID into every request context so handlers
// and log lines can tie activity to the observed run.
func (s *Server) withRunID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := monitoring.WithRunIDContext(r.Context(), s.runID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger logs API requests at debug level. Websocket upgrades are
// long-lived, so duration is only meaningful for the REST endpoints.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("run_id", monitoring.RunIDFromContext(r.Context())).
			Dur("took", time.Since(start)).
			Msg("http")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.obs.Summary())
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotImplemented, "run persistence is disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = parsed
	}

	records, err := s.runs.ListRuns(limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list runs")
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if records == nil {
		records = []store.RunRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotImplemented, "run persistence is disabled")
		return
	}

	rec, err := s.runs.GetRun(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		log.Error().Err(err).Msg("failed to load run")
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
