package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/liamashdown/launchwatch/internal/dispatch"
	"github.com/liamashdown/launchwatch/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// StatusProvider exposes the dispatcher state
type StatusProvider interface {
	Status() dispatch.Status
	Ready() bool
}

// Pinger checks a backing store, e.g. the database
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves health, readiness, metrics and quota status
type Server struct {
	router  *mux.Router
	server  *http.Server
	status  StatusProvider
	pingers map[string]Pinger
	log     *logrus.Logger
}

// NewServer creates the HTTP server. pingers are checked by /ready.
func NewServer(port int, status StatusProvider, pingers map[string]Pinger, log *logrus.Logger) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		status:  status,
		pingers: pingers,
		log:     log,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/status/hours/{hour:[0-9]+}", s.handleHour).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
}

// Handler returns the router, for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until Shutdown is called
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.server.Addr).Info("Starting HTTP server (health + metrics + status)")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	metrics.RecordHealthCheck(true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.pingers)+1)
	ready := s.status.Ready()
	checks["dispatcher"] = "ok"
	if !ready {
		checks["dispatcher"] = "not ready"
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for name, p := range s.pingers {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	metrics.RecordHealthCheck(ready)
	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{"status": status, "checks": checks})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Status())
}

func (s *Server) handleHour(w http.ResponseWriter, r *http.Request) {
	hour, err := strconv.Atoi(mux.Vars(r)["hour"])
	st := s.status.Status()
	if err != nil || hour < 0 || hour >= len(st.PerHour) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "hour must be within 0-23"})
		return
	}
	writeJSON(w, http.StatusOK, st.PerHour[hour])
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()[:8]
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		s.log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.status,
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  w.Header().Get("X-Request-ID"),
		}).Debug("HTTP request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
