// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/patternwatch/pkg/logger"
)

// Trigger paths. The functions/v1 prefix keeps existing callers working.
const (
	DetectPath       = "/detect-patterns"
	DetectLegacyPath = "/functions/v1/detect-patterns"
)

// Server wires HTTP routes for the detection service.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	detectHandler *DetectHandler
	log           logger.Logger
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	log  logger.Logger
	auth *Authenticator
}

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(o *serverOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// WithAuthenticator requires bearer tokens on the trigger endpoint.
func WithAuthenticator(a *Authenticator) Option {
	return func(o *serverOptions) { o.auth = a }
}

// NewServer creates a new API server with all handlers.
func NewServer(runner Runner, statsProvider StatsProvider, opts ...Option) *Server {
	o := serverOptions{log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log.Named("api")
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		detectHandler: NewDetectHandler(runner, o.auth, log),
		log:           log,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	detect := MetricsMiddleware(RecoverMiddleware(s.detectHandler.HandleDetect, s.log), "detect_patterns")
	mux.HandleFunc(DetectPath, detect)
	mux.HandleFunc(DetectLegacyPath, detect)

	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/stats", MetricsMiddleware(RecoverMiddleware(s.statsHandler.HandleStats, s.log), "stats"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
