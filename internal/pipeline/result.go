package pipeline

import (
	"time"

	"github.com/couchcryptid/food-risk-etl/internal/domain"
	"github.com/couchcryptid/food-risk-etl/internal/loader"
)

// Kind distinguishes row-level runs from county runs.
type Kind string

const (
	KindRows     Kind = "rows"
	KindCounties Kind = "counties"
)

// Result is the context threaded from scoring through every output stage.
// Nothing downstream reads global state; renderers and sinks take a Result.
type Result struct {
	RunID   string
	Kind    Kind
	RanAt   time.Time
	AsOf    time.Time
	Variant domain.Variant
	Banding domain.Banding

	// Table is the scored table. ScoreColumn and BandColumn name its derived
	// score and band columns.
	Table       domain.Table
	ScoreColumn string
	BandColumn  string

	// Tables holds the loaded county tables; nil for row runs.
	Tables *loader.Tables

	Summary         domain.Summary
	Recommendations []domain.Recommendation
	Notices         []string
}

// EntityColumn names the column that identifies each row of the scored table.
func (r *Result) EntityColumn() string {
	return domain.EntityColumn(r.Table)
}

// Series returns the weekly series behind a county run, or nil.
func (r *Result) Series() domain.WeeklySeries {
	if r.Tables == nil {
		return nil
	}
	return r.Tables.Series
}
