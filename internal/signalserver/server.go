// Package signalserver exposes the push-signal HTTP endpoint that lets
// external watchers nudge the coalescer about a changed page.
package signalserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/lessuselesss/bounty-crawl/internal/common"
	"github.com/lessuselesss/bounty-crawl/internal/config"
	"github.com/lessuselesss/bounty-crawl/internal/urlhandler"
)

// SignalSink is the coalescer-facing half of the server.
type SignalSink interface {
	Signal(resourceID string)
}

// Server accepts change signals over HTTP and forwards the mapped resource
// ids to the coalescer. Unmappable URLs are answered with 422 and an error
// body, never dropped without a trace.
type Server struct {
	cfg      config.SignalConfig
	logger   zerolog.Logger
	resolver *urlhandler.ResourceResolver
	sink     SignalSink
	httpSrv  *http.Server
}

// NewServer creates the signal server.
func NewServer(cfg config.SignalConfig, resolver *urlhandler.ResourceResolver, sink SignalSink, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger.With().Str("component", "SignalServer").Logger(),
		resolver: resolver,
		sink:     sink,
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(10 * time.Second))
	router.Post("/signal", s.handleSignal)
	router.Get("/healthz", s.handleHealth)

	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving. It blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info().Msg("Signal server is disabled in config")
		return nil
	}
	s.logger.Info().Str("listen_addr", s.cfg.ListenAddr).Msg("Signal server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return common.WrapError(err, "signal server failed")
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

type signalRequest struct {
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	var req signalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.URL == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "url is required"})
		return
	}

	resourceID, err := s.resolver.Resolve(req.URL)
	if err != nil {
		s.logger.Warn().Str("url", req.URL).Err(err).Msg("Signal URL does not map to a watched resource")
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}

	s.sink.Signal(resourceID)
	s.logger.Debug().Str("url", req.URL).Str("resource_id", resourceID).Msg("Accepted change signal")
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response body")
	}
}
