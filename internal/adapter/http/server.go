package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/climate-point-etl/internal/domain"
	"github.com/couchcryptid/climate-point-etl/internal/pipeline"
)

// Runner runs extractions and reports readiness. *pipeline.Pipeline
// implements it.
type Runner interface {
	Run(ctx context.Context, sel domain.Selection, opts domain.AssembleOptions) (*pipeline.Result, error)
	Probe(ctx context.Context, sel domain.Selection) (*pipeline.ProbeResult, error)
	CheckReadiness(ctx context.Context) error
}

// Resolver turns a point or place query into a location.
// *pipeline.PlaceResolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, req domain.LocationRequest) (domain.Location, error)
}

// Server exposes the extraction API alongside health, readiness, and
// metrics endpoints.
type Server struct {
	httpServer *http.Server
	runner     Runner
	resolver   Resolver
	collection string
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /v1/extractions and /v1/probe routes.
func NewServer(addr string, runner Runner, resolver Resolver, collection string, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			// A cold extraction over many units can take minutes.
			WriteTimeout: 15 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		runner:     runner,
		resolver:   resolver,
		collection: collection,
		logger:     logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(runner))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/extractions", s.handleExtraction)
	mux.HandleFunc("POST /v1/probe", s.handleProbe)

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

type errorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
