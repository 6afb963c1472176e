// Package store persists run history in sqlite and community submissions in
// an append-only CSV file.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/food-risk-etl/internal/domain"
	"github.com/couchcryptid/food-risk-etl/internal/pipeline"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ranAtLayout is fixed-width so that ran_at sorts lexically in time order.
const ranAtLayout = "2006-01-02T15:04:05.000000000Z"

// Run is one recorded scoring run.
type Run struct {
	RunID      string               `json:"run_id"`
	Kind       pipeline.Kind        `json:"kind"`
	Variant    domain.Variant       `json:"variant"`
	Banding    string               `json:"banding"`
	RanAt      time.Time            `json:"ran_at"`
	AsOf       time.Time            `json:"as_of"`
	Rows       int                  `json:"rows"`
	Scored     int                  `json:"scored"`
	Unscored   int                  `json:"unscored"`
	MeanScore  float64              `json:"mean_score"`
	BandCounts map[string]int       `json:"band_counts"`
	Top        []domain.EntityScore `json:"top,omitempty"`
}

// RunStore records a summary of every run in a sqlite database.
type RunStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenRunStore opens (or creates) the database at path and applies pending migrations.
func OpenRunStore(ctx context.Context, path string, logger *slog.Logger) (*RunStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping run store: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &RunStore{db: db, logger: logger}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *RunStore) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	m.Log = migrateLogger{logger: s.logger}

	// m is not closed: that would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate run store: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// Name identifies the store as a result sink.
func (s *RunStore) Name() string { return "runstore" }

// Publish records res; it lets the store run as a pipeline sink.
func (s *RunStore) Publish(ctx context.Context, res *pipeline.Result) error {
	return s.Record(ctx, res)
}

// Record stores the run summary and its top-ranked entities in one transaction.
func (s *RunStore) Record(ctx context.Context, res *pipeline.Result) error {
	counts, err := json.Marshal(res.Summary.BandCounts)
	if err != nil {
		return fmt.Errorf("encode band counts: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, kind, variant, banding, ran_at, as_of,
			row_count, scored, unscored, mean_score, band_counts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, string(res.Kind), string(res.Variant), res.Banding.Name,
		res.RanAt.UTC().Format(ranAtLayout), res.AsOf.UTC().Format(time.RFC3339),
		res.Summary.Rows, res.Summary.Scored, res.Summary.Unscored, res.Summary.MeanScore, string(counts))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", res.RunID, err)
	}

	for i, e := range res.Summary.Top {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_entities (run_id, rank, entity, score, band) VALUES (?, ?, ?, ?, ?)`,
			res.RunID, i+1, e.Entity, e.Score, e.Band); err != nil {
			return fmt.Errorf("insert run entity: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", res.RunID, err)
	}
	s.logger.Debug("run recorded", "run_id", res.RunID, "top", len(res.Summary.Top))
	return nil
}

// Recent returns up to n runs, newest first.
func (s *RunStore) Recent(ctx context.Context, n int) ([]Run, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, kind, variant, banding, ran_at, as_of,
			row_count, scored, unscored, mean_score, band_counts
		FROM runs ORDER BY ran_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r             Run
			kind, variant string
			ranAt, asOf   string
			counts        string
		)
		if err := rows.Scan(&r.RunID, &kind, &variant, &r.Banding, &ranAt, &asOf,
			&r.Rows, &r.Scored, &r.Unscored, &r.MeanScore, &counts); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Kind = pipeline.Kind(kind)
		r.Variant = domain.Variant(variant)
		if r.RanAt, err = time.Parse(ranAtLayout, ranAt); err != nil {
			return nil, fmt.Errorf("parse ran_at of %s: %w", r.RunID, err)
		}
		if r.AsOf, err = time.Parse(time.RFC3339, asOf); err != nil {
			return nil, fmt.Errorf("parse as_of of %s: %w", r.RunID, err)
		}
		if err := json.Unmarshal([]byte(counts), &r.BandCounts); err != nil {
			return nil, fmt.Errorf("decode band counts of %s: %w", r.RunID, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	rows.Close()

	for i := range runs {
		top, err := s.topEntities(ctx, runs[i].RunID)
		if err != nil {
			return nil, err
		}
		runs[i].Top = top
	}
	return runs, nil
}

func (s *RunStore) topEntities(ctx context.Context, runID string) ([]domain.EntityScore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity, score, band FROM run_entities WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run entities: %w", err)
	}
	defer rows.Close()

	var top []domain.EntityScore
	for rows.Next() {
		var e domain.EntityScore
		if err := rows.Scan(&e.Entity, &e.Score, &e.Band); err != nil {
			return nil, fmt.Errorf("scan run entity: %w", err)
		}
		top = append(top, e)
	}
	return top, rows.Err()
}

// migrateLogger routes golang-migrate output to slog.
type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (l migrateLogger) Verbose() bool { return false }
