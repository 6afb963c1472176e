package httpadapter_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/food-risk-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/food-risk-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/food-risk-etl/internal/domain"
	"github.com/couchcryptid/food-risk-etl/internal/loader"
	"github.com/couchcryptid/food-risk-etl/internal/observability"
	"github.com/couchcryptid/food-risk-etl/internal/pipeline"
	"github.com/couchcryptid/food-risk-etl/internal/report"
	"github.com/couchcryptid/food-risk-etl/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRuns struct {
	runs  []store.Run
	limit int
}

func (s *stubRuns) Recent(_ context.Context, n int) ([]store.Run, error) {
	s.limit = n
	return s.runs, nil
}

type notReady struct{ httpadapter.Scorer }

func (notReady) CheckReadiness(context.Context) error { return errors.New("not ready yet") }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	srv     *httpadapter.Server
	metrics *observability.Metrics
	runs    *stubRuns
}

func newFixture(t *testing.T, mutate ...func(*httpadapter.Deps)) fixture {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	l := loader.New(loader.Options{WorkDir: t.TempDir(), Synthetic: true, Seed: 42, Weeks: 12, CacheSize: 8}, discardLogger(), metrics)
	runs := &stubRuns{}
	deps := httpadapter.Deps{
		Pipeline:       pipeline.New(l, domain.Overrides{}, discardLogger(), metrics, 5),
		Renderer:       report.NewRenderer(report.Options{Title: "Test Brief"}, discardLogger(), metrics),
		Submissions:    store.NewSubmissions(filepath.Join(t.TempDir(), "subs.csv")),
		Runs:           runs,
		Metrics:        metrics,
		DefaultVariant: "mean",
	}
	for _, m := range mutate {
		m(&deps)
	}
	return fixture{srv: httpadapter.NewServer(":0", deps, discardLogger()), metrics: metrics, runs: runs}
}

func (f fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

const meanCSV = "Household_ID,Region,Unemployment,Food_Expense_Burden,Shutoff_Notices,Eviction_Notices\n" +
	"H-1,North,80,90,70,100\n" +
	"H-2,South,10,20,30,40\n"

func TestHealthzReturns200(t *testing.T) {
	rec := newFixture(t).do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns503BeforeFirstRun(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodPost, "/v1/counties", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReportsCheckerError(t *testing.T) {
	f := newFixture(t, func(d *httpadapter.Deps) { d.Pipeline = notReady{d.Pipeline} })
	rec := f.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := newFixture(t).do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestScore_ReturnsScoredCSV(t *testing.T) {
	rec := newFixture(t).do(httptest.NewRequest(http.MethodPost, "/v1/score", strings.NewReader(meanCSV)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Run-ID"))

	out, err := csvfile.Parse(rec.Body.Bytes())
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, "85", out.Rows[0][domain.ColRiskScore])
	assert.Equal(t, domain.BandRed, out.Rows[0][domain.ColRiskBand])
	assert.Equal(t, "25", out.Rows[1][domain.ColRiskScore])
	assert.Equal(t, domain.BandYellow, out.Rows[1][domain.ColRiskBand])
}

func TestScore_JSONWithBanding(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/score?variant=mean&banding=threshold", strings.NewReader(meanCSV))
	req.Header.Set("Accept", "application/json")
	rec := newFixture(t).do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Banding string         `json:"banding"`
		Summary domain.Summary `json:"summary"`
		Rows    []domain.Row   `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.BandingThreshold, body.Banding)
	assert.Equal(t, 2, body.Summary.Scored)
	assert.Equal(t, domain.BandHigh, body.Rows[0][domain.ColRiskBand])
	assert.Equal(t, domain.BandLow, body.Rows[1][domain.ColRiskBand])
}

func TestScore_JSONWithInfiniteCellLeavesRowUnscored(t *testing.T) {
	body := meanCSV + "H-3,North,inf,10,10,10\n"
	req := httptest.NewRequest(http.MethodPost, "/v1/score", strings.NewReader(body))
	req.Header.Set("Accept", "application/json")
	rec := newFixture(t).do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got struct {
		Summary domain.Summary `json:"summary"`
		Rows    []domain.Row   `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Rows, 3)
	assert.Equal(t, 2, got.Summary.Scored)
	assert.Equal(t, 1, got.Summary.Unscored)
	assert.Empty(t, got.Rows[2][domain.ColRiskScore])
	assert.Empty(t, got.Rows[2][domain.ColRiskBand])
}

func TestScore_MissingColumnsReturns422(t *testing.T) {
	body := "Household_ID,Unemployment\nH-1,10\n"
	rec := newFixture(t).do(httptest.NewRequest(http.MethodPost, "/v1/score", strings.NewReader(body)))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var got struct {
		Missing []string `json:"missing_columns"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{domain.ColFoodExpenseBurden, domain.ColShutoffNotices, domain.ColEvictionNotices}, got.Missing)
}

func TestScore_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		url  string
		body string
	}{
		{"unknown variant", "/v1/score?variant=median", meanCSV},
		{"series variant", "/v1/score?variant=zlogistic", meanCSV},
		{"unknown banding", "/v1/score?banding=quartile", meanCSV},
		{"empty body", "/v1/score", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newFixture(t).do(httptest.NewRequest(http.MethodPost, tt.url, strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestCounties_SyntheticFallback(t *testing.T) {
	rec := newFixture(t).do(httptest.NewRequest(http.MethodPost, "/v1/counties", nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Kind            string            `json:"kind"`
		Origins         map[string]string `json:"origins"`
		Summary         domain.Summary    `json:"summary"`
		Recommendations []json.RawMessage `json:"recommendations"`
		Rows            []domain.Row      `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "counties", body.Kind)
	assert.Equal(t, string(loader.OriginSynthetic), body.Origins[string(loader.TableWeekly)])
	assert.Len(t, body.Rows, len(domain.DefaultCounties))
	assert.Equal(t, len(domain.DefaultCounties), body.Summary.Scored)
	assert.NotEmpty(t, body.Recommendations)
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, content := range files {
		part, err := mw.CreateFormFile(field, field+".csv")
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCountiesExport_UsesUploadedLatest(t *testing.T) {
	body, contentType := multipartBody(t, map[string]string{
		"latest":    "County,Prob_Spike_8w\nAitkin,0.9\nCook,0.05\n",
		"overrides": "Aitkin:\n  Red:\n    - Open the county hub\n",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/counties/export.csv", body)
	req.Header.Set("Content-Type", contentType)
	rec := newFixture(t).do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out, err := csvfile.Parse(rec.Body.Bytes())
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, domain.BandRed, out.Rows[0][domain.ColRAGStatus])
	assert.Equal(t, "Open the county hub", out.Rows[0][domain.ColActionSummary])
	assert.Equal(t, domain.BandGreen, out.Rows[1][domain.ColRAGStatus])
}

func TestCounties_UnknownUploadField(t *testing.T) {
	body, contentType := multipartBody(t, map[string]string{"households": "a,b\n1,2\n"})
	req := httptest.NewRequest(http.MethodPost, "/v1/counties", body)
	req.Header.Set("Content-Type", contentType)
	rec := newFixture(t).do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCountiesReport_PDF(t *testing.T) {
	rec := newFixture(t).do(httptest.NewRequest(http.MethodPost, "/v1/counties/report.pdf", nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
}

func TestDashboard(t *testing.T) {
	rec := newFixture(t).do(httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<title>Test Brief</title>")
}

func TestSubmissions(t *testing.T) {
	f := newFixture(t)

	for _, region := range []string{"North", "North", "East"} {
		body := `{"worker":"Dana","region":"` + region + `","date":"2025-03-03","frl":50,"attendance":85,"unemployment":8,"evictions":25,"food_scarcity":20,"shutoffs":15,"notes":"ok"}`
		rec := f.do(httptest.NewRequest(http.MethodPost, "/v1/submissions", strings.NewReader(body)))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	assert.InDelta(t, 3, testutil.ToFloat64(f.metrics.Submissions), 0)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/v1/submissions/regions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var counts []store.RegionCount
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	assert.Equal(t, []store.RegionCount{{Region: "North", Reports: 2}, {Region: "East", Reports: 1}}, counts)
}

func TestSubmissions_Invalid(t *testing.T) {
	f := newFixture(t)
	for name, body := range map[string]string{
		"bad region":    `{"region":"Midwest","date":"2025-03-03"}`,
		"bad date":      `{"region":"North","date":"someday"}`,
		"unknown field": `{"region":"North","score":10}`,
		"not json":      `region=North`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := f.do(httptest.NewRequest(http.MethodPost, "/v1/submissions", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
	assert.InDelta(t, 0, testutil.ToFloat64(f.metrics.Submissions), 0)
}

func TestRegionCounts_EmptyIsArray(t *testing.T) {
	rec := newFixture(t).do(httptest.NewRequest(http.MethodGet, "/v1/submissions/regions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestRuns(t *testing.T) {
	f := newFixture(t)
	f.runs.runs = []store.Run{{RunID: "r1", RanAt: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)}}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/v1/runs?limit=5000", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 200, f.runs.limit)
	assert.Contains(t, rec.Body.String(), `"run_id":"r1"`)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/v1/runs?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRuns_Disabled(t *testing.T) {
	f := newFixture(t, func(d *httpadapter.Deps) { d.Runs = nil })
	rec := f.do(httptest.NewRequest(http.MethodGet, "/v1/runs", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
