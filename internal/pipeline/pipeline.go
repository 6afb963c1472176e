package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/food-risk-etl/internal/domain"
	"github.com/couchcryptid/food-risk-etl/internal/loader"
	"github.com/couchcryptid/food-risk-etl/internal/observability"
	"github.com/google/uuid"
)

// ResultSink receives every completed run. Sinks must not modify the result.
type ResultSink interface {
	Name() string
	Publish(ctx context.Context, r *Result) error
}

// Pipeline runs one scoring strategy and one banding table over a table and
// hands the result to the configured sinks.
type Pipeline struct {
	loader    *loader.Loader
	overrides domain.Overrides
	sinks     []ResultSink
	topN      int
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// New creates a Pipeline. overrides is the session default used when a request
// carries none; topN bounds the ranked recommendations in each result.
func New(l *loader.Loader, overrides domain.Overrides, logger *slog.Logger, metrics *observability.Metrics, topN int, sinks ...ResultSink) *Pipeline {
	if overrides == nil {
		overrides = domain.Overrides{}
	}
	return &Pipeline{
		loader:    l,
		overrides: overrides,
		sinks:     sinks,
		topN:      topN,
		logger:    logger,
		metrics:   metrics,
	}
}

// Ready reports whether at least one run has completed.
func (p *Pipeline) Ready() bool { return p.ready.Load() }

// CheckReadiness returns nil once a run has completed, or an error describing
// why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a scoring run yet")
	}
	return nil
}

// Request is a row-level scoring request for the mean or weighted variant.
type Request struct {
	Table   domain.Table
	Variant domain.Variant
	// Banding names the banding table; empty selects the variant default.
	Banding string
	// Overrides replaces the session overrides when non-nil.
	Overrides domain.Overrides
}

// CountyRequest scores the county tables resolved by the loader.
type CountyRequest struct {
	Uploads loader.Uploads
	// Banding names the banding table; empty selects the probability table.
	Banding   string
	Overrides domain.Overrides
}

// ScoreRows validates the table against the variant's schema, scores and bands
// every row, attaches recommendations when the table has a County or Region
// column, and publishes the result. A schema mismatch returns a
// *domain.MissingColumnsError and nothing is scored.
func (p *Pipeline) ScoreRows(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := p.scoreRows(ctx, req)
	p.finish(ctx, KindRows, string(req.Variant), start, res, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) scoreRows(_ context.Context, req Request) (*Result, error) {
	scorer, err := domain.NewRowScorer(req.Variant)
	if err != nil {
		return nil, err
	}
	banding, err := resolveBanding(req.Banding, domain.DefaultBanding(req.Variant))
	if err != nil {
		return nil, err
	}

	scored, err := domain.ScoreRows(req.Table, scorer, banding)
	if err != nil {
		var missing *domain.MissingColumnsError
		if errors.As(err, &missing) {
			p.metrics.ValidationFailures.Inc()
		}
		return nil, fmt.Errorf("score rows: %w", err)
	}

	overrides := p.overridesFor(req.Overrides)
	if col := recommendColumn(scored); col != "" {
		domain.RecommendRows(&scored, overrides, col, domain.ColRiskBand)
	}
	groupCol := domain.ColRegion
	if !scored.Has(groupCol) {
		groupCol = domain.ColCounty
	}

	summary := domain.Summarize(scored, banding, domain.ColRiskScore, domain.ColRiskBand, groupCol, p.topN)
	return &Result{
		RunID:           uuid.NewString(),
		Kind:            KindRows,
		RanAt:           domain.Now(),
		AsOf:            domain.Now(),
		Variant:         req.Variant,
		Banding:         banding,
		Table:           scored,
		ScoreColumn:     domain.ColRiskScore,
		BandColumn:      domain.ColRiskBand,
		Summary:         summary,
		Recommendations: topRecommendations(summary, overrides),
	}, nil
}

// ScoreCounties loads the county tables, bands each county's spike
// probability, attaches the RAG badge and recommended actions, and publishes
// the result. Absent data never fails the run; the result carries notices instead.
func (p *Pipeline) ScoreCounties(ctx context.Context, req CountyRequest) (*Result, error) {
	start := time.Now()
	res, err := p.scoreCounties(ctx, req)
	p.finish(ctx, KindCounties, string(domain.VariantZLogistic), start, res, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) scoreCounties(ctx context.Context, req CountyRequest) (*Result, error) {
	banding, err := resolveBanding(req.Banding, domain.ProbabilityBanding)
	if err != nil {
		return nil, err
	}
	tables, err := p.loader.LoadAll(ctx, req.Uploads)
	if err != nil {
		return nil, fmt.Errorf("load county tables: %w", err)
	}

	overrides := p.overridesFor(req.Overrides)
	scored, _ := domain.BandCounties(tables.Latest, banding, overrides)
	summary := domain.Summarize(scored, banding, domain.ColProbSpike8w, domain.ColRAGStatus, "", p.topN)

	now := domain.Now()
	asOf := tables.AsOf
	if asOf.IsZero() {
		asOf = now
	}
	return &Result{
		RunID:           uuid.NewString(),
		Kind:            KindCounties,
		RanAt:           now,
		AsOf:            asOf,
		Variant:         domain.VariantZLogistic,
		Banding:         banding,
		Table:           scored,
		ScoreColumn:     domain.ColProbSpike8w,
		BandColumn:      domain.ColRAGStatus,
		Tables:          &tables,
		Summary:         summary,
		Recommendations: topRecommendations(summary, overrides),
		Notices:         tables.Notices,
	}, nil
}

// finish records run metrics, publishes successful results to every sink, and
// marks the pipeline ready.
func (p *Pipeline) finish(ctx context.Context, kind Kind, variant string, start time.Time, res *Result, err error) {
	if err != nil {
		p.metrics.Runs.WithLabelValues(string(kind), variant, "error").Inc()
		p.logger.Warn("scoring run failed", "kind", kind, "variant", variant, "error", err)
		return
	}

	p.metrics.RowsScored.Add(float64(res.Summary.Scored))
	p.metrics.RowsUnscored.Add(float64(res.Summary.Unscored))
	for band, n := range res.Summary.BandCounts {
		if n > 0 {
			p.metrics.BandAssignments.WithLabelValues(res.Banding.Name, band).Add(float64(n))
		}
	}

	p.publish(ctx, res)

	p.metrics.Runs.WithLabelValues(string(kind), variant, "success").Inc()
	p.metrics.RunDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	p.metrics.PipelineReady.Set(1)
	p.ready.Store(true)

	p.logger.Info("scoring run complete",
		"run_id", res.RunID,
		"kind", kind,
		"variant", res.Variant,
		"banding", res.Banding.Name,
		"rows", res.Summary.Rows,
		"unscored", res.Summary.Unscored,
	)
}

// publish hands the result to each sink. A failing sink is logged and counted;
// it never fails the run or stops the remaining sinks.
func (p *Pipeline) publish(ctx context.Context, res *Result) {
	for _, s := range p.sinks {
		if err := s.Publish(ctx, res); err != nil {
			p.metrics.SinkFailures.WithLabelValues(s.Name()).Inc()
			p.logger.Error("result sink failed", "sink", s.Name(), "run_id", res.RunID, "error", err)
		}
	}
}

func (p *Pipeline) overridesFor(o domain.Overrides) domain.Overrides {
	if o != nil {
		return o
	}
	return p.overrides
}

func resolveBanding(name string, fallback domain.Banding) (domain.Banding, error) {
	if strings.TrimSpace(name) == "" {
		return fallback, nil
	}
	return domain.LookupBanding(name)
}

func recommendColumn(t domain.Table) string {
	for _, c := range []string{domain.ColCounty, domain.ColRegion} {
		if t.Has(c) {
			return c
		}
	}
	return ""
}

func topRecommendations(s domain.Summary, overrides domain.Overrides) []domain.Recommendation {
	out := make([]domain.Recommendation, 0, len(s.Top))
	for _, e := range s.Top {
		if e.Band == "" {
			continue
		}
		out = append(out, overrides.Recommend(e.Entity, e.Band))
	}
	return out
}
