// Package server exposes a read-only HTTP view of a running simulation:
// health, Prometheus metrics, progress, the latest checkpoint and a live
// progress websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/particle-dynamics/internal/checkpoint"
	"github.com/onnwee/particle-dynamics/internal/diagnostics"
	"github.com/onnwee/particle-dynamics/internal/logger"
	"github.com/onnwee/particle-dynamics/internal/middleware"
)

// Snapshots is the read side of the checkpoint store.
type Snapshots interface {
	Latest() (checkpoint.Checkpoint, error)
	LatestRaw() (uint64, []byte, error)
}

// Options configures the status server.
type Options struct {
	Addr           string
	RateLimit      float64
	RateLimitBurst int
}

// Server is the status HTTP server.
type Server struct {
	hub       *Hub
	snapshots Snapshots
	http      *http.Server
}

// New creates a server. snapshots may be nil when checkpoints are disabled.
func New(opts Options, hub *Hub, snapshots Snapshots) *Server {
	s := &Server{hub: hub, snapshots: snapshots}
	limiter := middleware.NewRateLimiter(opts.RateLimit, opts.RateLimitBurst)
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           middleware.Recover(limiter.Limit(s.Router())),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router builds the route table without middleware.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/progress", s.progress).Methods(http.MethodGet)
	r.HandleFunc("/snapshot", s.snapshot).Methods(http.MethodGet)
	r.HandleFunc("/snapshot/summary", s.summary).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.hub.ServeWS).Methods(http.MethodGet)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() { errc <- s.http.ListenAndServe() }()
	logger.Info("Status server listening", "addr", s.http.Addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type progressResponse struct {
	Running  bool        `json:"running"`
	Report   interface{} `json:"report,omitempty"`
	Finished interface{} `json:"finished,omitempty"`
}

func (s *Server) progress(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.hub.Latest()
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "NO_PROGRESS", "no progress reported yet")
		return
	}
	resp := progressResponse{Running: true, Report: rep}
	if sum, done := s.hub.Finished(); done {
		resp.Running = false
		resp.Finished = sum
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		middleware.WriteError(w, http.StatusNotFound, "CHECKPOINTS_DISABLED", "checkpoints are disabled")
		return
	}
	step, blob, err := s.snapshots.LatestRaw()
	if err != nil {
		writeSnapshotError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Checkpoint-Step", strconv.FormatUint(step, 10))
	w.Header().Add("Vary", "Accept-Encoding")
	if acceptsBrotli(r) {
		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(blob)
		return
	}
	plain, err := checkpoint.DecodeJSON(blob)
	if err != nil {
		writeSnapshotError(w, err)
		return
	}
	_, _ = w.Write(plain)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		middleware.WriteError(w, http.StatusNotFound, "CHECKPOINTS_DISABLED", "checkpoints are disabled")
		return
	}
	cp, err := s.snapshots.Latest()
	if err != nil {
		writeSnapshotError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"step":        cp.Step,
		"time":        cp.Time,
		"diagnostics": diagnostics.Summarize(cp.Snapshot),
	})
}

func writeSnapshotError(w http.ResponseWriter, err error) {
	if errors.Is(err, checkpoint.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "NO_CHECKPOINT", "no checkpoint available")
		return
	}
	logger.Error("Failed to read checkpoint", "error", err)
	middleware.WriteError(w, http.StatusInternalServerError, "CHECKPOINT_UNREADABLE", "checkpoint could not be read")
}

func acceptsBrotli(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		enc := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if enc == "br" {
			return true
		}
	}
	return false
}
