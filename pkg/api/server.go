// Package api exposes the engine's operational HTTP surface: health,
// navigation status, predictions and cache invalidation.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/prenav/prenav/internal/cache"
	"github.com/prenav/prenav/internal/metrics"
	"github.com/prenav/prenav/internal/navigator"
	"github.com/prenav/prenav/pkg/types"
)

// ServerConfig configures the operational API server
type ServerConfig struct {
	// Address to bind the server to (e.g., "localhost:8080")
	Address string `yaml:"address" json:"address"`

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// WriteTimeout is the maximum duration for writing the response
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// IdleTimeout is the maximum duration to wait for the next request
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// EnableCORS enables Cross-Origin Resource Sharing
	EnableCORS bool `yaml:"enable_cors" json:"enable_cors"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:      "localhost:8080",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		EnableCORS:   true,
	}
}

// Server provides HTTP endpoints for monitoring and controlling the
// navigation engine.
type Server struct {
	httpServer   *http.Server
	orchestrator *navigator.Orchestrator
	renders      *cache.RenderCache
	collector    *metrics.Collector
	config       ServerConfig
	logger       *zap.Logger
	startedAt    time.Time
}

// NewServer creates the operational API server.
func NewServer(config ServerConfig, orchestrator *navigator.Orchestrator, renders *cache.RenderCache, collector *metrics.Collector, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		orchestrator: orchestrator,
		renders:      renders,
		collector:    collector,
		config:       config,
		logger:       logger,
		startedAt:    time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/predictions", s.handlePredictions)
	mux.HandleFunc("/navigate", s.handleNavigate)
	mux.HandleFunc("/invalidate", s.handleInvalidate)
	if collector != nil {
		mux.Handle("/metrics", collector.Handler())
	}

	var handler http.Handler = mux
	if config.EnableCORS {
		handler = s.corsMiddleware(mux)
	}

	s.httpServer = &http.Server{
		Addr:         config.Address,
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s
}

// Handler returns the server's root handler, used by embedding servers and
// tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.logger.Info("api server starting", zap.String("address", s.config.Address))
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("api server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"navigation": s.orchestrator.GetState(),
		"caches":     s.orchestrator.GetCacheStats(),
	})
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	route := r.URL.Query().Get("route")
	if route == "" {
		route = s.orchestrator.GetState().Current
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"route":       route,
		"predictions": s.orchestrator.Predict(route),
	})
}

type navigateRequest struct {
	Target  string `json:"target"`
	Replace bool   `json:"replace"`
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Target == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var opts []navigator.NavigateOption
	if req.Replace {
		opts = append(opts, navigator.WithReplace())
	}

	if err := s.orchestrator.Navigate(r.Context(), req.Target, opts...); err != nil {
		s.writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, s.orchestrator.GetState())
}

type invalidateRequest struct {
	Routes []types.Route `json:"routes"`
}

// handleInvalidate marks speculative renders stale, typically called by a
// content webhook after a publish.
func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.renders == nil {
		http.Error(w, "render cache not configured", http.StatusServiceUnavailable)
		return
	}

	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.renders.Invalidate(req.Routes...)
	s.logger.Info("render cache invalidated", zap.Int("routes", len(req.Routes)))

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"invalidated": len(req.Routes),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("response encode failed", zap.Error(err))
		fmt.Fprintln(w, "{}")
	}
}
