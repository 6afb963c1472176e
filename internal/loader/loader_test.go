package loader

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/food-risk-etl/internal/domain"
	"github.com/couchcryptid/food-risk-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	overviewCSV = "County,As_Of_Date,Prob_Spike_8w,RAG_Status,Lead_Time_Weeks\nRamsey,2025-03-03,0.72,Red,8\nAnoka,2025-03-03,0.12,Green,8\n"
	weeklyCSV   = "date,county,SNAP_Applications\n2025-02-24,Ramsey,100\n2025-03-03,Ramsey,140\n2025-03-03,Anoka,80\n"
	malformed   = "County,\"Prob\n1,2"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLoader(t *testing.T, opts Options) (*Loader, *observability.Metrics) {
	t.Helper()
	if opts.WorkDir == "" {
		opts.WorkDir = t.TempDir()
	}
	if opts.Weeks == 0 {
		opts.Weeks = 12
	}
	m := observability.NewMetricsForTesting()
	return New(opts, testLogger(), m), m
}

func writeFile(t *testing.T, dir string, name TableName, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name.FileName()), []byte(content), 0o600))
}

func TestResolve_Precedence(t *testing.T) {
	dataDir := t.TempDir()
	workDir := t.TempDir()
	writeFile(t, dataDir, TableOverview, "County,RAG_Status\nConfigured,Red\n")
	writeFile(t, workDir, TableOverview, "County,RAG_Status\nWorkDir,Green\n")
	l, _ := newTestLoader(t, Options{DataDir: dataDir, WorkDir: workDir})
	ctx := context.Background()

	tbl, origin, err := l.Resolve(ctx, TableOverview, l.Sources(TableOverview, Uploads{TableOverview: []byte("County,RAG_Status\nUploaded,Amber\n")})...)
	require.NoError(t, err)
	assert.Equal(t, OriginUpload, origin)
	assert.Equal(t, "Uploaded", tbl.Rows[0][domain.ColCounty])

	tbl, origin, err = l.Resolve(ctx, TableOverview, l.Sources(TableOverview, nil)...)
	require.NoError(t, err)
	assert.Equal(t, OriginConfigured, origin)
	assert.Equal(t, "Configured", tbl.Rows[0][domain.ColCounty])

	require.NoError(t, os.Remove(filepath.Join(dataDir, TableOverview.FileName())))
	tbl, origin, err = l.Resolve(ctx, TableOverview, l.Sources(TableOverview, nil)...)
	require.NoError(t, err)
	assert.Equal(t, OriginWorkDir, origin)
	assert.Equal(t, "WorkDir", tbl.Rows[0][domain.ColCounty])
}

func TestResolve_UnparseableFallsThrough(t *testing.T) {
	dataDir := t.TempDir()
	writeFile(t, dataDir, TableOverview, overviewCSV)
	l, _ := newTestLoader(t, Options{DataDir: dataDir})

	tbl, origin, err := l.Resolve(context.Background(), TableOverview,
		l.Sources(TableOverview, Uploads{TableOverview: []byte(malformed)})...)
	require.NoError(t, err)
	assert.Equal(t, OriginConfigured, origin)
	assert.Equal(t, 2, tbl.Len())
}

func TestResolve_HeaderOnlyIsAbsent(t *testing.T) {
	l, _ := newTestLoader(t, Options{})
	_, origin, err := l.Resolve(context.Background(), TableLatest, Upload([]byte("County,RAG_Status\n")))
	require.ErrorIs(t, err, ErrSourceAbsent)
	assert.Equal(t, OriginAbsent, origin)
}

func TestResolve_CachesByContent(t *testing.T) {
	l, m := newTestLoader(t, Options{})
	ctx := context.Background()
	src := Upload([]byte(overviewCSV))

	first, _, err := l.Resolve(ctx, TableOverview, src)
	require.NoError(t, err)
	first.Rows[0][domain.ColCounty] = "mutated"

	second, _, err := l.Resolve(ctx, TableOverview, Upload([]byte(overviewCSV)))
	require.NoError(t, err)

	assert.Equal(t, "Ramsey", second.Rows[0][domain.ColCounty], "cached tables are copied on read")
	assert.InDelta(t, 1, testutil.ToFloat64(m.TableCache.WithLabelValues("miss")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TableCache.WithLabelValues("hit")), 0)
	assert.Equal(t, 1, l.cache.len())
}

func TestResolve_CancelledContext(t *testing.T) {
	l, _ := newTestLoader(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := l.Resolve(ctx, TableLatest, Upload([]byte(overviewCSV)))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = l.LoadAll(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadAll_SyntheticFallbackFillsEveryTable(t *testing.T) {
	l, m := newTestLoader(t, Options{Synthetic: true, Seed: 42})

	tables, err := l.LoadAll(context.Background(), nil)
	require.NoError(t, err)

	assert.Empty(t, tables.Notices)
	assert.Equal(t, map[TableName]Origin{
		TableWeekly:   OriginSynthetic,
		TableOverview: OriginDerived,
		TableLatest:   OriginDerived,
		TableMetrics:  OriginDefault,
		TablePlaybook: OriginDerived,
	}, tables.Origins)

	for name, tbl := range map[TableName]domain.Table{
		TableWeekly:   tables.Weekly,
		TableOverview: tables.Overview,
		TableLatest:   tables.Latest,
		TableMetrics:  tables.Metrics,
		TablePlaybook: tables.Playbook,
	} {
		assert.False(t, tbl.Empty(), name)
	}
	assert.Equal(t, len(domain.DefaultCounties), tables.Latest.Len())
	assert.True(t, tables.Latest.Has(domain.ColProbSpike8w))
	assert.False(t, tables.AsOf.IsZero())
	assert.InDelta(t, 1, testutil.ToFloat64(m.SourceResolutions.WithLabelValues("weekly", "synthetic")), 0)
}

func TestLoadAll_SyntheticDisabledReportsEmptyState(t *testing.T) {
	l, _ := newTestLoader(t, Options{Synthetic: false})

	tables, err := l.LoadAll(context.Background(), nil)
	require.NoError(t, err)

	assert.True(t, tables.Latest.Empty())
	assert.True(t, tables.Overview.Empty())
	assert.Equal(t, OriginAbsent, tables.Origins[TableLatest])
	assert.Equal(t, OriginDefault, tables.Origins[TableMetrics])
	assert.NotEmpty(t, tables.Notices)
	assert.True(t, tables.AsOf.IsZero())
}

func TestLoadAll_UploadedWeeklyDrivesDerivations(t *testing.T) {
	l, _ := newTestLoader(t, Options{Synthetic: true})

	tables, err := l.LoadAll(context.Background(), Uploads{TableWeekly: []byte(weeklyCSV)})
	require.NoError(t, err)

	assert.Equal(t, OriginUpload, tables.Origins[TableWeekly])
	assert.Equal(t, OriginDerived, tables.Origins[TableOverview])
	require.Equal(t, 2, tables.Latest.Len())
	assert.Equal(t, "Anoka", tables.Latest.Rows[0][domain.ColCounty])
	assert.Equal(t, "140", tables.Latest.Rows[1][domain.ColSNAPApplications])
	assert.Equal(t, "2025-03-03", tables.AsOf.Format(domain.DateLayout))
}

func TestLoadAll_UploadedLatestJoinsOverview(t *testing.T) {
	dataDir := t.TempDir()
	writeFile(t, dataDir, TableOverview, overviewCSV)
	l, _ := newTestLoader(t, Options{DataDir: dataDir, Synthetic: true})

	tables, err := l.LoadAll(context.Background(), Uploads{
		TableLatest: []byte("County,SNAP_Applications\nRamsey,150\n"),
	})
	require.NoError(t, err)

	assert.Equal(t, OriginUpload, tables.Origins[TableLatest])
	assert.Equal(t, OriginConfigured, tables.Origins[TableOverview])
	assert.Equal(t, "0.72", tables.Latest.Rows[0][domain.ColProbSpike8w])
	assert.Equal(t, "Red", tables.Latest.Rows[0][domain.ColRAGStatus])
}

func TestLoadAll_WeeklyWithoutDatesFallsBackToSynthetic(t *testing.T) {
	l, _ := newTestLoader(t, Options{Synthetic: true})

	tables, err := l.LoadAll(context.Background(), Uploads{TableWeekly: []byte("county,SNAP_Applications\nRamsey,1\n")})
	require.NoError(t, err)
	assert.Equal(t, OriginSynthetic, tables.Origins[TableWeekly])
}

func TestParseTableName(t *testing.T) {
	n, err := ParseTableName("county_weekly.csv")
	require.NoError(t, err)
	assert.Equal(t, TableWeekly, n)

	n, err = ParseTableName("overview")
	require.NoError(t, err)
	assert.Equal(t, TableOverview, n)

	_, err = ParseTableName("households")
	require.Error(t, err)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache[int](2)
	c.put("a", 1)
	c.put("b", 2)
	_, _ = c.get("a")
	c.put("c", 3) // evicts "b"

	_, ok := c.get("b")
	assert.False(t, ok)
	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.len())
}
