package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/same-codec/internal/codec"
	"github.com/couchcryptid/same-codec/internal/same"
)

// ReadinessChecker reports whether the decoder is ready to accept audio.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// AlertLog exposes recently decoded alerts for the /v1/alerts endpoint.
type AlertLog interface {
	Recent() []same.Alert
}

// Server exposes health, readiness, metrics, and alert query endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates the HTTP server. alerts may be nil, in which case
// /v1/alerts always returns an empty list.
func NewServer(addr string, ready ReadinessChecker, alerts AlertLog, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/alerts", handleAlerts(alerts))
	mux.HandleFunc("POST /v1/headers/validate", s.handleValidate)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func handleAlerts(log AlertLog) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		alerts := []same.Alert{}
		if log != nil {
			alerts = log.Recent()
		}
		writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
	}
}

// handleValidate checks a header posted as JSON against the protocol rules
// and the code registry without producing audio.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var h same.Header
	if err := json.NewDecoder(r.Body).Decode(&h); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed JSON body"})
		return
	}

	if err := codec.ValidateHeader(h); err != nil {
		resp := map[string]string{"status": "invalid", "error": err.Error()}
		var verr *same.ValidationError
		if errors.As(err, &verr) {
			resp["field"] = verr.Field
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "valid",
		"wire":   h.WireString(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
