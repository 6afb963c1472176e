package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "food_risk"

// Metrics holds the Prometheus counters, histograms, and gauges for scoring runs.
type Metrics struct {
	Runs               *prometheus.CounterVec // labels: kind={rows,counties}, variant, outcome={success,error}
	RowsScored         prometheus.Counter
	RowsUnscored       prometheus.Counter
	ValidationFailures prometheus.Counter
	BandAssignments    *prometheus.CounterVec // labels: banding, band
	RunDuration        *prometheus.HistogramVec
	PipelineReady      prometheus.Gauge

	// Data source metrics.
	SourceResolutions *prometheus.CounterVec // labels: table, origin={upload,configured,cwd,derived,synthetic,default,absent}
	TableCache        *prometheus.CounterVec // labels: result={hit,miss}

	// Output metrics.
	ReportAssetFailures *prometheus.CounterVec // labels: asset
	SinkFailures        *prometheus.CounterVec // labels: sink
	Submissions         prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Runs,
		m.RowsScored,
		m.RowsUnscored,
		m.ValidationFailures,
		m.BandAssignments,
		m.RunDuration,
		m.PipelineReady,
		m.SourceResolutions,
		m.TableCache,
		m.ReportAssetFailures,
		m.SinkFailures,
		m.Submissions,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Scoring runs by kind, variant, and outcome.",
		}, []string{"kind", "variant", "outcome"}),
		RowsScored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_scored_total",
			Help:      "Rows that received a score.",
		}),
		RowsUnscored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_unscored_total",
			Help:      "Rows left unscored because an input was missing.",
		}),
		ValidationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Tables rejected for missing required columns.",
		}),
		BandAssignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "band_assignments_total",
			Help:      "Rows assigned to each band.",
		}, []string{"banding", "band"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete scoring run including sinks.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"kind"}),
		PipelineReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_ready",
			Help:      "1 once a scoring run has completed, 0 before.",
		}),
		SourceResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_resolutions_total",
			Help:      "Table loads by table and the source that satisfied them.",
		}, []string{"table", "origin"}),
		TableCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_cache_total",
			Help:      "Parsed table cache lookups by result.",
		}, []string{"result"}),
		ReportAssetFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_asset_failures_total",
			Help:      "Charts that could not be rendered into a report.",
		}, []string{"asset"}),
		SinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_failures_total",
			Help:      "Result sink failures by sink.",
		}, []string{"sink"}),
		Submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Community submissions appended.",
		}),
	}
}
