// Package loader resolves the county tables from uploads, a configured data
// directory, or the working directory, and fills gaps by derivation or
// synthetic generation so that the county view always has something to show.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/couchcryptid/food-risk-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/food-risk-etl/internal/domain"
	"github.com/couchcryptid/food-risk-etl/internal/observability"
)

// ErrSourceAbsent is returned by Resolve when no source produced a usable table.
var ErrSourceAbsent = errors.New("table source absent")

// TableName identifies one of the county tables.
type TableName string

const (
	TableLatest   TableName = "latest"
	TableOverview TableName = "overview"
	TableMetrics  TableName = "metrics"
	TableWeekly   TableName = "weekly"
	TablePlaybook TableName = "playbook"
)

// TableNames lists the tables in load order. Later tables derive from earlier ones.
var TableNames = []TableName{TableWeekly, TableOverview, TableLatest, TableMetrics, TablePlaybook}

var fileNames = map[TableName]string{
	TableLatest:   "county_latest.csv",
	TableOverview: "county_overview.csv",
	TableMetrics:  "metrics_reference.csv",
	TableWeekly:   "county_weekly.csv",
	TablePlaybook: "county_playbook.csv",
}

// FileName is the table's file name inside a data directory.
func (n TableName) FileName() string { return fileNames[n] }

// ParseTableName maps a table name or its file name to a TableName.
func ParseTableName(s string) (TableName, error) {
	for _, n := range TableNames {
		if s == string(n) || s == n.FileName() {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown table %q", s)
}

// Uploads maps a table to the bytes uploaded for it in this request.
type Uploads map[TableName][]byte

// Options configures the source chain and fallbacks.
type Options struct {
	DataDir   string // configured local directory; empty skips it
	WorkDir   string // working-directory fallback; empty means "."
	Synthetic bool
	Seed      int64
	Weeks     int
	Spike     domain.SpikeScorer
	CacheSize int
}

// Loader resolves tables through the upload -> configured -> cwd chain.
type Loader struct {
	opts    Options
	cache   *lruCache[domain.Table]
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Loader with a parsed-table cache of opts.CacheSize entries.
func New(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Loader {
	if opts.WorkDir == "" {
		opts.WorkDir = "."
	}
	if opts.Spike.Indicator == "" {
		opts.Spike = domain.NewSpikeScorer(domain.ColSNAPApplications, domain.DefaultSpikeWindow)
	}
	return &Loader{
		opts:    opts,
		cache:   newLRUCache[domain.Table](opts.CacheSize),
		logger:  logger,
		metrics: metrics,
	}
}

// Tables is the outcome of LoadAll. Origins records where each table came from;
// Notices carries the informational empty-state messages for absent tables.
type Tables struct {
	Latest   domain.Table
	Overview domain.Table
	Metrics  domain.Table
	Weekly   domain.Table
	Playbook domain.Table
	Series   domain.WeeklySeries
	Origins  map[TableName]Origin
	Notices  []string
	// AsOf is the most recent week in the series, zero when there is none.
	AsOf time.Time
}

// Sources returns the candidate sources for name in priority order.
func (l *Loader) Sources(name TableName, uploads Uploads) []Source {
	srcs := []Source{Upload(uploads[name])}
	if l.opts.DataDir != "" {
		srcs = append(srcs, File(OriginConfigured, filepath.Join(l.opts.DataDir, name.FileName())))
	}
	return append(srcs, File(OriginWorkDir, filepath.Join(l.opts.WorkDir, name.FileName())))
}

// Resolve returns the first source that parses into a non-empty table. Missing,
// unparseable, and empty sources fall through to the next one.
func (l *Loader) Resolve(ctx context.Context, name TableName, sources ...Source) (domain.Table, Origin, error) {
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return domain.Table{}, OriginAbsent, err
		}
		if !src.present() {
			continue
		}
		t, err := l.parse(src)
		if err != nil {
			l.logger.Warn("table source unreadable, trying next",
				"table", name, "source", src.String(), "error", err)
			continue
		}
		if t.Empty() {
			l.logger.Info("table source has no rows, trying next", "table", name, "source", src.String())
			continue
		}
		return t, src.Origin, nil
	}
	return domain.Table{}, OriginAbsent, ErrSourceAbsent
}

func (l *Loader) parse(src Source) (domain.Table, error) {
	key, err := src.identity()
	if err != nil {
		return domain.Table{}, err
	}
	if t, ok := l.cache.get(key); ok {
		l.metrics.TableCache.WithLabelValues("hit").Inc()
		return t.Clone(), nil
	}
	l.metrics.TableCache.WithLabelValues("miss").Inc()

	data, err := src.read()
	if err != nil {
		return domain.Table{}, err
	}
	t, err := csvfile.Parse(data)
	if err != nil {
		return domain.Table{}, err
	}
	l.cache.put(key, t.Clone())
	return t, nil
}

// LoadAll resolves the five county tables. The weekly series falls back to
// synthetic data, the overview and playbook derive from what was loaded, the
// latest snapshot derives from the series joined with the overview, and the
// metrics reference falls back to the built-in definitions. Only context
// cancellation is returned as an error.
func (l *Loader) LoadAll(ctx context.Context, uploads Uploads) (Tables, error) {
	out := Tables{Origins: make(map[TableName]Origin, len(TableNames))}

	if err := l.loadWeekly(ctx, uploads, &out); err != nil {
		return Tables{}, err
	}
	if err := l.loadOverview(ctx, uploads, &out); err != nil {
		return Tables{}, err
	}
	if err := l.loadLatest(ctx, uploads, &out); err != nil {
		return Tables{}, err
	}

	metrics, origin, err := l.Resolve(ctx, TableMetrics, l.Sources(TableMetrics, uploads)...)
	if err != nil && !errors.Is(err, ErrSourceAbsent) {
		return Tables{}, err
	}
	if origin == OriginAbsent {
		metrics, origin = domain.DefaultMetrics(), OriginDefault
	}
	out.Metrics = metrics
	l.record(&out, TableMetrics, origin)

	playbook, origin, err := l.Resolve(ctx, TablePlaybook, l.Sources(TablePlaybook, uploads)...)
	if err != nil && !errors.Is(err, ErrSourceAbsent) {
		return Tables{}, err
	}
	if origin == OriginAbsent && !out.Overview.Empty() {
		playbook, origin = domain.DerivePlaybook(out.Overview), OriginDerived
	}
	if origin == OriginAbsent {
		out.Notices = append(out.Notices, "No playbook available. Upload "+TablePlaybook.FileName()+" to show lead agencies and cadence.")
	}
	out.Playbook = playbook
	l.record(&out, TablePlaybook, origin)

	if len(out.Series) > 0 {
		out.AsOf = out.Series.Latest()
	}
	return out, nil
}

func (l *Loader) loadWeekly(ctx context.Context, uploads Uploads, out *Tables) error {
	weekly, origin, err := l.Resolve(ctx, TableWeekly, l.Sources(TableWeekly, uploads)...)
	if err != nil && !errors.Is(err, ErrSourceAbsent) {
		return err
	}
	if origin != OriginAbsent {
		series, skipped, perr := domain.WeeklyFromTable(weekly)
		switch {
		case perr != nil:
			l.logger.Warn("weekly series unusable", "origin", origin, "error", perr)
			origin = OriginAbsent
		case len(series) == 0:
			l.logger.Warn("weekly series has no dated rows", "origin", origin, "skipped", skipped)
			origin = OriginAbsent
		default:
			if skipped > 0 {
				l.logger.Warn("weekly rows skipped", "origin", origin, "skipped", skipped)
			}
			out.Weekly, out.Series = weekly, series
		}
	}

	if origin == OriginAbsent {
		if l.opts.Synthetic {
			out.Series = domain.GenerateWeekly(domain.SyntheticOptions{Seed: l.opts.Seed, Weeks: l.opts.Weeks})
			out.Weekly = out.Series.Table()
			origin = OriginSynthetic
			l.logger.Info("using synthetic weekly series", "seed", l.opts.Seed, "weeks", l.opts.Weeks)
		} else {
			out.Notices = append(out.Notices, "No weekly series found and synthetic data is disabled. Upload "+TableWeekly.FileName()+" to see trends.")
		}
	}
	l.record(out, TableWeekly, origin)
	return nil
}

func (l *Loader) loadOverview(ctx context.Context, uploads Uploads, out *Tables) error {
	overview, origin, err := l.Resolve(ctx, TableOverview, l.Sources(TableOverview, uploads)...)
	if err != nil && !errors.Is(err, ErrSourceAbsent) {
		return err
	}
	if origin == OriginAbsent && len(out.Series) > 0 {
		overview = domain.DeriveOverview(out.Series, l.opts.Spike, domain.ProbabilityBanding)
		origin = OriginDerived
		l.logger.Info("derived county overview from weekly series",
			"indicator", l.opts.Spike.Indicator, "window", l.opts.Spike.Window)
	}
	if origin == OriginAbsent {
		out.Notices = append(out.Notices, "No county overview available. Upload "+TableOverview.FileName()+".")
	}
	out.Overview = overview
	l.record(out, TableOverview, origin)
	return nil
}

func (l *Loader) loadLatest(ctx context.Context, uploads Uploads, out *Tables) error {
	latest, origin, err := l.Resolve(ctx, TableLatest, l.Sources(TableLatest, uploads)...)
	if err != nil && !errors.Is(err, ErrSourceAbsent) {
		return err
	}
	switch {
	case origin != OriginAbsent:
		if !out.Overview.Empty() && latest.Has(domain.ColCounty) {
			latest = domain.JoinOverview(latest, out.Overview)
		}
	case len(out.Series) > 0:
		latest = domain.DeriveLatest(out.Series, out.Overview)
		origin = OriginDerived
	case !out.Overview.Empty():
		latest = out.Overview.Clone()
		origin = OriginDerived
	default:
		out.Notices = append(out.Notices, "No county data available. Upload "+TableLatest.FileName()+" or "+TableWeekly.FileName()+".")
	}
	out.Latest = latest
	l.record(out, TableLatest, origin)
	return nil
}

func (l *Loader) record(out *Tables, name TableName, origin Origin) {
	out.Origins[name] = origin
	l.metrics.SourceResolutions.WithLabelValues(string(name), string(origin)).Inc()
}
