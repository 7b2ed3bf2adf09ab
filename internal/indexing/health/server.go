package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/ethwatch/internal/core/domain"
)

// DefaultMaxChunks bounds /priority-ops when max_chunks is not given.
const DefaultMaxChunks = 100

// PriorityOpsSource answers priority queue queries.
type PriorityOpsSource interface {
	PriorityQueueOps(ctx context.Context, startID uint64, maxChunks int) ([]domain.PriorityOp, error)
}

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	monitor *Monitor
	ops     PriorityOpsSource
	server  *http.Server
	log     *slog.Logger
}

// NewServer creates a new health server.
func NewServer(monitor *Monitor, ops PriorityOpsSource, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor: monitor,
		ops:     ops,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: slog.Default().With("component", "health_server"),
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.HandleFunc("/priority-ops", s.handlePriorityOps)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())

	response := map[string]string{"status": string(report.SystemStatus)}
	if report.SystemStatus == StatusCritical {
		writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.CheckHealth(r.Context()))
}

func (s *Server) handlePriorityOps(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
	}
	w.Header().Set("X-Request-ID", requestID)

	q := r.URL.Query()
	startID, err := strconv.ParseUint(q.Get("start_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_id"})
		return
	}
	maxChunks := DefaultMaxChunks
	if raw := q.Get("max_chunks"); raw != "" {
		maxChunks, err = strconv.Atoi(raw)
		if err != nil || maxChunks < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid max_chunks"})
			return
		}
	}

	ops, err := s.ops.PriorityQueueOps(r.Context(), startID, maxChunks)
	if err != nil {
		s.log.Error("Priority ops query failed", "request_id", requestID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	if ops == nil {
		ops = []domain.PriorityOp{}
	}

	s.log.Debug("Priority ops query",
		"request_id", requestID,
		"start_id", startID,
		"max_chunks", maxChunks,
		"count", len(ops),
	)
	writeJSON(w, http.StatusOK, map[string]any{"priority_ops": ops})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
