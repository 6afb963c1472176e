package report

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/food-risk-etl/internal/domain"
	"github.com/couchcryptid/food-risk-etl/internal/loader"
	"github.com/couchcryptid/food-risk-etl/internal/observability"
	"github.com/couchcryptid/food-risk-etl/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func rowResult(t *testing.T) *pipeline.Result {
	t.Helper()
	tbl := domain.Table{
		Columns: []string{domain.ColRegion, domain.ColUnemployment, domain.ColFoodExpenseBurden, domain.ColShutoffNotices, domain.ColEvictionNotices},
		Rows: []domain.Row{
			{domain.ColRegion: "North", domain.ColUnemployment: "80", domain.ColFoodExpenseBurden: "90", domain.ColShutoffNotices: "70", domain.ColEvictionNotices: "100"},
			{domain.ColRegion: "South", domain.ColUnemployment: "10", domain.ColFoodExpenseBurden: "20", domain.ColShutoffNotices: "30", domain.ColEvictionNotices: "40"},
		},
	}
	scored, err := domain.ScoreRows(tbl, domain.MeanScorer{Columns: domain.MeanColumns}, domain.ScoreCutBanding)
	require.NoError(t, err)
	summary := domain.Summarize(scored, domain.ScoreCutBanding, domain.ColRiskScore, domain.ColRiskBand, domain.ColRegion, 5)
	return &pipeline.Result{
		RunID:       "run-1",
		Kind:        pipeline.KindRows,
		AsOf:        asOf,
		Variant:     domain.VariantMean,
		Banding:     domain.ScoreCutBanding,
		Table:       scored,
		ScoreColumn: domain.ColRiskScore,
		BandColumn:  domain.ColRiskBand,
		Summary:     summary,
		Recommendations: []domain.Recommendation{
			domain.Overrides{}.Recommend("North", domain.BandRed),
			domain.Overrides{}.Recommend("South", domain.BandYellow),
		},
	}
}

func countyResult(t *testing.T) *pipeline.Result {
	t.Helper()
	series := domain.GenerateWeekly(domain.SyntheticOptions{Seed: 42, Weeks: 12, Counties: []string{"Ramsey", "Anoka"}, End: asOf})
	scorer := domain.NewSpikeScorer(domain.ColSNAPApplications, 8)
	overview := domain.DeriveOverview(series, scorer, domain.ProbabilityBanding)
	latest := domain.DeriveLatest(series, overview)
	scored, recs := domain.BandCounties(latest, domain.ProbabilityBanding, domain.Overrides{})
	return &pipeline.Result{
		RunID:           "run-2",
		Kind:            pipeline.KindCounties,
		AsOf:            asOf,
		Variant:         domain.VariantZLogistic,
		Banding:         domain.ProbabilityBanding,
		Table:           scored,
		ScoreColumn:     domain.ColProbSpike8w,
		BandColumn:      domain.ColRAGStatus,
		Tables:          &loader.Tables{Series: series},
		Summary:         domain.Summarize(scored, domain.ProbabilityBanding, domain.ColProbSpike8w, domain.ColRAGStatus, "", 5),
		Recommendations: recs,
	}
}

func TestBandChart_IsPNG(t *testing.T) {
	img, err := BandChart(rowResult(t))
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Positive(t, cfg.Width)
}

func TestTrendChart(t *testing.T) {
	img, err := TrendChart(countyResult(t), domain.ColSNAPApplications)
	require.NoError(t, err)
	_, err = png.DecodeConfig(bytes.NewReader(img))
	require.NoError(t, err)

	_, err = TrendChart(rowResult(t), domain.ColSNAPApplications)
	assert.ErrorIs(t, err, ErrNoChartData)
}

func TestGroupChart(t *testing.T) {
	_, err := GroupChart(rowResult(t))
	require.NoError(t, err)

	res := rowResult(t)
	res.Summary.Groups = nil
	_, err = GroupChart(res)
	assert.ErrorIs(t, err, ErrNoChartData)
}

func TestRenderPDF(t *testing.T) {
	for name, res := range map[string]*pipeline.Result{"rows": rowResult(t), "counties": countyResult(t)} {
		t.Run(name, func(t *testing.T) {
			metrics := observability.NewMetricsForTesting()
			r := NewRenderer(Options{Title: "Brief", Branding: "Metro Food Council"}, testLogger(), metrics)

			var buf bytes.Buffer
			require.NoError(t, r.RenderPDF(&buf, res))
			assert.True(t, strings.HasPrefix(buf.String(), "%PDF-"))
			assert.InDelta(t, 0, testutil.ToFloat64(metrics.ReportAssetFailures.WithLabelValues("bands")), 0)
		})
	}
}

func TestRenderPDF_ChartFailureRendersPlaceholder(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	broken := Chart{Name: "broken", Title: "Broken chart", Render: func(*pipeline.Result) ([]byte, error) {
		return nil, errors.New("font cache unavailable")
	}}
	garbage := Chart{Name: "garbage", Title: "Not a PNG", Render: func(*pipeline.Result) ([]byte, error) {
		return []byte("not an image"), nil
	}}
	r := NewRenderer(Options{Charts: []Chart{broken, garbage, {Name: "bands", Title: "Bands", Render: BandChart}}}, testLogger(), metrics)

	var buf bytes.Buffer
	require.NoError(t, r.RenderPDF(&buf, rowResult(t)))
	assert.True(t, strings.HasPrefix(buf.String(), "%PDF-"))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ReportAssetFailures.WithLabelValues("broken")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ReportAssetFailures.WithLabelValues("garbage")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.ReportAssetFailures.WithLabelValues("bands")), 0)
}

func TestRenderPDF_Paginates(t *testing.T) {
	res := rowResult(t)
	res.Recommendations = nil
	for i := 0; i < 40; i++ {
		res.Recommendations = append(res.Recommendations, domain.Overrides{}.Recommend(fmt.Sprintf("County %d", i), domain.BandRed))
	}
	r := NewRenderer(Options{Charts: []Chart{}}, testLogger(), observability.NewMetricsForTesting())

	b := r.build(res)
	require.NoError(t, b.pdf.Error())
	assert.Greater(t, b.pdf.PageCount(), 1)

	few := NewRenderer(Options{Charts: []Chart{}, TopN: 2}, testLogger(), observability.NewMetricsForTesting())
	assert.Equal(t, 1, few.build(res).pdf.PageCount())
}

func TestRenderPDF_ActionListLongerThanAPageFlowsOntoNextPages(t *testing.T) {
	actions := make(domain.ActionList, 200)
	for i := range actions {
		actions[i] = fmt.Sprintf("Step %d: call the county food shelf coordinator", i+1)
	}
	res := rowResult(t)
	res.Recommendations = []domain.Recommendation{{County: "Cook", Band: domain.BandRed, Actions: actions}}
	r := NewRenderer(Options{Charts: []Chart{}}, testLogger(), observability.NewMetricsForTesting())

	b := r.build(res)
	require.NoError(t, b.pdf.Error())
	// 200 lines at 5.5mm need at least four Letter pages of content.
	assert.GreaterOrEqual(t, b.pdf.PageCount(), 5)

	var buf bytes.Buffer
	require.NoError(t, r.RenderPDF(&buf, res))
}

func TestDefaultCharts_MatchRunKind(t *testing.T) {
	titles := func(kind pipeline.Kind) []string {
		var out []string
		for _, c := range DefaultCharts(domain.ColSNAPApplications) {
			if c.For(kind) {
				out = append(out, c.Title)
			}
		}
		return out
	}
	assert.Equal(t, []string{"Band distribution", "Average risk score by group"}, titles(pipeline.KindRows))
	assert.Equal(t, []string{"Band distribution", "Weekly trend"}, titles(pipeline.KindCounties))
}

func TestRenderPDF_SkipsChartsForOtherKinds(t *testing.T) {
	var drawn []string
	record := func(name string, kinds ...pipeline.Kind) Chart {
		return Chart{Name: name, Title: name, Kinds: kinds, Render: func(res *pipeline.Result) ([]byte, error) {
			drawn = append(drawn, name)
			return BandChart(res)
		}}
	}
	metrics := observability.NewMetricsForTesting()
	r := NewRenderer(Options{Charts: []Chart{
		record("all"),
		record("rows-only", pipeline.KindRows),
		record("counties-only", pipeline.KindCounties),
	}}, testLogger(), metrics)

	var buf bytes.Buffer
	require.NoError(t, r.RenderPDF(&buf, rowResult(t)))
	assert.Equal(t, []string{"all", "rows-only"}, drawn)

	drawn = nil
	require.NoError(t, NewRenderer(Options{}, testLogger(), metrics).RenderPDF(&buf, rowResult(t)))
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.ReportAssetFailures.WithLabelValues("groups")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.ReportAssetFailures.WithLabelValues("trend")), 0)
}

func TestRenderDashboard(t *testing.T) {
	r := NewRenderer(Options{Title: "County Dashboard"}, testLogger(), observability.NewMetricsForTesting())

	var buf bytes.Buffer
	require.NoError(t, r.RenderDashboard(&buf, countyResult(t)))
	html := buf.String()
	assert.Contains(t, html, "<title>County Dashboard</title>")
	assert.Contains(t, html, "Rows per band")
	assert.Contains(t, html, "Ramsey")

	buf.Reset()
	require.NoError(t, r.RenderDashboard(&buf, rowResult(t)))
	assert.Contains(t, buf.String(), "by group")
}
