package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/food-risk-etl/internal/observability"
	"github.com/couchcryptid/food-risk-etl/internal/pipeline"
	"github.com/couchcryptid/food-risk-etl/internal/report"
	"github.com/couchcryptid/food-risk-etl/internal/store"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scorer runs the scoring pipeline.
type Scorer interface {
	sharedobs.ReadinessChecker
	ScoreRows(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	ScoreCounties(ctx context.Context, req pipeline.CountyRequest) (*pipeline.Result, error)
}

// RunLister lists recorded runs.
type RunLister interface {
	Recent(ctx context.Context, n int) ([]store.Run, error)
}

// SubmissionStore appends and counts community submissions.
type SubmissionStore interface {
	Append(sub store.Submission) error
	RegionCounts() ([]store.RegionCount, error)
}

// Deps are the collaborators behind the API routes.
type Deps struct {
	Pipeline    Scorer
	Renderer    *report.Renderer
	Submissions SubmissionStore
	// Runs is nil when run history is disabled.
	Runs    RunLister
	Metrics *observability.Metrics
	// DefaultVariant applies when /v1/score has no variant parameter.
	DefaultVariant string
	// DefaultBanding applies when /v1/score has no banding parameter; empty
	// selects the variant default.
	DefaultBanding string
	// OverridesPath is the local overrides file consulted when an upload
	// carries an overrides document that cannot be used.
	OverridesPath string
	// MaxUploadBytes bounds request bodies; zero means 32 MiB.
	MaxUploadBytes int64
}

// Server exposes the scoring API alongside health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the probe, metrics, and /v1 routes.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 32 << 20
	}
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		deps:   deps,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(deps.Pipeline))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/score", s.handleScore)
	mux.HandleFunc("POST /v1/counties", s.handleCounties)
	mux.HandleFunc("POST /v1/counties/export.csv", s.handleCountiesCSV)
	mux.HandleFunc("POST /v1/counties/report.pdf", s.handleCountiesPDF)
	mux.HandleFunc("GET /v1/dashboard", s.handleDashboard)
	mux.HandleFunc("POST /v1/submissions", s.handleSubmit)
	mux.HandleFunc("GET /v1/submissions/regions", s.handleRegionCounts)
	mux.HandleFunc("GET /v1/runs", s.handleRuns)

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
