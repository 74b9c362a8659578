// Package server exposes the extraction pipeline over HTTP and WebSocket.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/docext/internal/pipeline"
)

// Extractor is what the server needs from a pipeline.
type Extractor interface {
	Extract(ctx context.Context, path string, opts pipeline.Options) (*pipeline.ExtractionResult, error)
	Info() map[string]any
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	extractor   Extractor
	corsOrigin  string
	maxUploadMB int64
	timeout     time.Duration
	defaults    pipeline.Options
	newID       func() string
}

// Config holds server configuration.
type Config struct {
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	Defaults    pipeline.Options // applied to requests that leave a field unset
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// ExtractResponse wraps one extraction.
type ExtractResponse struct {
	Success   bool                       `json:"success"`
	RequestID string                     `json:"request_id,omitempty"`
	Result    *pipeline.ExtractionResult `json:"result,omitempty"`
	Error     string                     `json:"error,omitempty"`
}

// NewServer creates a server around an extractor. The caller keeps ownership
// of the extractor.
func NewServer(cfg Config, ex Extractor) *Server {
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 50
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = 120
	}
	if cfg.Defaults.Level == 0 {
		cfg.Defaults = pipeline.DefaultOptions()
	}
	return &Server{
		extractor:   ex,
		corsOrigin:  cfg.CORSOrigin,
		maxUploadMB: cfg.MaxUploadMB,
		timeout:     time.Duration(cfg.TimeoutSec) * time.Second,
		defaults:    cfg.Defaults,
		newID:       uuid.NewString,
	}
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/v1/info", s.corsMiddleware(s.infoHandler))
	mux.HandleFunc("/v1/extract", s.corsMiddleware(s.extractHandler))
	mux.HandleFunc("/ws/extract", s.extractWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
