// Package httpserver hosts the HTTP surface around the signaling transport:
// health and status endpoints, the ICE server list for browsers, Prometheus
// counters, and the middleware stack (panic recovery, request ids, request
// logging, origin policy) that everything runs behind.
package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sparkchat/spark-signaling/internal/config"
	"github.com/sparkchat/spark-signaling/internal/hub"
	"github.com/sparkchat/spark-signaling/internal/metrics"
	"github.com/sparkchat/spark-signaling/internal/turnrest"
)

const appName = "spark-signaling"

// StatusSource reports live session counters for /status.
type StatusSource interface {
	Status() hub.Status
}

type Server struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	cfg     config.Config
	status  StatusSource
	turnGen *turnrest.Generator
	version string
	ready   atomic.Bool
}

// New assembles the HTTP surface. turnGen may be nil when TURN REST
// credentials are not configured.
func New(logger *slog.Logger, m *metrics.Metrics, cfg config.Config, status StatusSource, turnGen *turnrest.Generator, version string) *Server {
	return &Server{
		logger:  logger,
		metrics: m,
		cfg:     cfg,
		status:  status,
		turnGen: turnGen,
		version: version,
	}
}

// Handler builds the full route table. Extra registrars (the WebSocket
// endpoint) are applied to the same mux so they share the middleware stack.
func (s *Server) Handler(register ...func(*http.ServeMux)) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /webrtc/ice", s.handleICEServers)
	mux.Handle("GET /metrics", metrics.PrometheusHandler(s.metrics))

	for _, r := range register {
		r(mux)
	}

	var handler http.Handler = mux
	handler = s.withOriginPolicy(handler)
	handler = s.withRequestLogger(handler)
	handler = s.withRequestID(handler)
	handler = s.withRecover(handler)
	return handler
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SetReady flips /readyz to positive. Called once the listener is accepting
// connections.
func (s *Server) SetReady() {
	s.ready.Store(true)
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	if err := s.cfg.ICEConfigError(); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"reason": "ice configuration invalid",
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     appName,
		"version": s.version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.status.Status()
	s.writeJSON(w, http.StatusOK, struct {
		App               string `json:"app"`
		Status            string `json:"status"`
		ActiveConnections int    `json:"active_connections"`
		WaitingQueue      int    `json:"waiting_queue"`
		ActiveMatches     int    `json:"active_matches"`
	}{appName, "running", st.ActiveConnections, st.WaitingQueue, st.ActiveMatches})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("writing response body failed", "err", err)
	}
}

func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic in handler", "path", r.URL.Path, "panic", rec)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// WebSocket upgrades hijack the connection; the wrapped writer would
		// hide the Hijacker interface from the upgrader.
		if r.Header.Get("Upgrade") != "" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", w.Header().Get("X-Request-Id"),
		)
	})
}
