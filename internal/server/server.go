// Package server exposes sync over HTTP: a manual trigger endpoint, a
// status report of the last run, and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/morepork/akasync/internal/aggregator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SyncFunc runs one full aggregation-and-persist cycle.
type SyncFunc func(ctx context.Context) (*aggregator.Result, error)

// RunStatus summarizes the most recent sync run.
type RunStatus struct {
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Records    int               `json:"records"`
	Failures   map[string]string `json:"failures"`
	Error      string            `json:"error,omitempty"`
}

// Server serves the sync trigger and status endpoints.
type Server struct {
	syncFn   SyncFunc
	logger   *slog.Logger
	registry *prometheus.Registry
	addr     string

	mu      sync.Mutex
	running bool
	lastRun *RunStatus
}

// New creates a server. The registry backs the /metrics endpoint.
func New(addr string, syncFn SyncFunc, registry *prometheus.Registry) *Server {
	return &Server{
		syncFn:   syncFn,
		logger:   slog.Default().With("component", "server"),
		registry: registry,
		addr:     addr,
	}
}

// ListenAndServe serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /sync", s.handleSync)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	s.logger.Info("Listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]string{"error": "sync already running"})
		return
	}
	s.running = true
	s.mu.Unlock()

	status := &RunStatus{
		StartedAt: time.Now().UTC(),
		Failures:  make(map[string]string),
	}

	result, err := s.syncFn(r.Context())
	status.FinishedAt = time.Now().UTC()
	if err != nil {
		status.Error = err.Error()
	} else {
		status.Records = len(result.Transactions)
		for accountID, failure := range result.Failures {
			status.Failures[accountID] = failure.Error()
		}
	}

	s.mu.Lock()
	s.running = false
	s.lastRun = status
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Sync run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, status)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	lastRun := s.lastRun
	running := s.running
	s.mu.Unlock()

	if lastRun == nil {
		writeJSON(w, http.StatusOK, map[string]any{"running": running, "last_run": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"running": running, "last_run": lastRun})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
