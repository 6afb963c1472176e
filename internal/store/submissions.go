package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/food-risk-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/food-risk-etl/internal/domain"
)

// Submission columns, in file order.
const (
	ColWorker       = "Worker"
	ColRegion       = "Region"
	ColDate         = "Date"
	ColFRL          = "FRL"
	ColAttendance   = "Attendance"
	ColUnemployment = "Unemployment"
	ColEvictions    = "Evictions"
	ColFoodScarcity = "Food Scarcity"
	ColShutoffs     = "Shutoffs"
	ColNotes        = "Notes"
)

// SubmissionColumns is the header of the submissions file.
var SubmissionColumns = []string{
	ColWorker, ColRegion, ColDate, ColFRL, ColAttendance, ColUnemployment,
	ColEvictions, ColFoodScarcity, ColShutoffs, ColNotes,
}

// Regions lists the regions a community worker can report for.
var Regions = []string{"North", "South", "East", "West", "Central"}

// ErrInvalidSubmission is returned for a submission outside the accepted ranges.
var ErrInvalidSubmission = errors.New("invalid submission")

// Submission is one community worker report.
type Submission struct {
	Worker       string    `json:"worker"`
	Region       string    `json:"region"`
	Date         time.Time `json:"date"`
	FRL          float64   `json:"frl"`
	Attendance   float64   `json:"attendance"`
	Unemployment float64   `json:"unemployment"`
	Evictions    int       `json:"evictions"`
	FoodScarcity int       `json:"food_scarcity"`
	Shutoffs     int       `json:"shutoffs"`
	Notes        string    `json:"notes"`
}

// Validate checks the region and the range of each measure. Percentages are
// 0-100 except unemployment (0-30); counts are 0-100.
func (s Submission) Validate() error {
	var problems []string
	if !containsFold(Regions, s.Region) {
		problems = append(problems, fmt.Sprintf("region %q is not one of %s", s.Region, strings.Join(Regions, ", ")))
	}
	if s.Date.IsZero() {
		problems = append(problems, "date is required")
	}
	checkRange := func(name string, v, hi float64) {
		if v < 0 || v > hi {
			problems = append(problems, fmt.Sprintf("%s %v is outside 0-%v", name, v, hi))
		}
	}
	checkRange(ColFRL, s.FRL, 100)
	checkRange(ColAttendance, s.Attendance, 100)
	checkRange(ColUnemployment, s.Unemployment, 30)
	checkRange(ColEvictions, float64(s.Evictions), 100)
	checkRange(ColFoodScarcity, float64(s.FoodScarcity), 100)
	checkRange(ColShutoffs, float64(s.Shutoffs), 100)

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSubmission, strings.Join(problems, "; "))
	}
	return nil
}

func (s Submission) row() domain.Row {
	return domain.Row{
		ColWorker:       strings.TrimSpace(s.Worker),
		ColRegion:       canonicalRegion(s.Region),
		ColDate:         s.Date.Format(domain.DateLayout),
		ColFRL:          domain.FormatFloat(s.FRL),
		ColAttendance:   domain.FormatFloat(s.Attendance),
		ColUnemployment: domain.FormatFloat(s.Unemployment),
		ColEvictions:    strconv.Itoa(s.Evictions),
		ColFoodScarcity: strconv.Itoa(s.FoodScarcity),
		ColShutoffs:     strconv.Itoa(s.Shutoffs),
		ColNotes:        s.Notes,
	}
}

// RegionCount is the number of submissions for one region.
type RegionCount struct {
	Region  string `json:"region"`
	Reports int    `json:"reports"`
}

// Submissions is an append-only CSV log of community reports. Existing rows
// are never rewritten.
type Submissions struct {
	path string
	mu   sync.Mutex
}

// NewSubmissions returns a store backed by the file at path, created on first append.
func NewSubmissions(path string) *Submissions {
	return &Submissions{path: path}
}

// Path returns the backing file.
func (s *Submissions) Path() string { return s.path }

// Append validates sub and appends it as one row, writing the header first
// when the file is new or empty.
func (s *Submissions) Append(sub Submission) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec // operator-configured path
	if err != nil {
		return fmt.Errorf("open submissions: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat submissions: %w", err)
	}

	t := domain.Table{Columns: SubmissionColumns, Rows: []domain.Row{sub.row()}}
	if info.Size() == 0 {
		err = csvfile.Write(f, t)
	} else {
		err = csvfile.WriteRows(f, t)
	}
	if err != nil {
		return fmt.Errorf("append submission: %w", err)
	}
	return f.Sync()
}

// All returns every stored submission as a table in file order. A missing
// file reads as an empty table with the submission header.
func (s *Submissions) All() (domain.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := csvfile.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, csvfile.ErrNoHeader):
		return domain.Table{Columns: append([]string(nil), SubmissionColumns...)}, nil
	case err != nil:
		return domain.Table{}, fmt.Errorf("read submissions: %w", err)
	}
	return t, nil
}

// RegionCounts returns the number of submissions per region, most reports
// first and ties by name.
func (s *Submissions) RegionCounts() ([]RegionCount, error) {
	t, err := s.All()
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, r := range t.Rows {
		region := strings.TrimSpace(r[ColRegion])
		if region == "" {
			continue
		}
		counts[region]++
	}

	out := make([]RegionCount, 0, len(counts))
	for region, n := range counts {
		out = append(out, RegionCount{Region: region, Reports: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Reports != out[j].Reports {
			return out[i].Reports > out[j].Reports
		}
		return out[i].Region < out[j].Region
	})
	return out, nil
}

func containsFold(values []string, s string) bool {
	return canonicalOf(values, s) != ""
}

func canonicalRegion(s string) string {
	if c := canonicalOf(Regions, s); c != "" {
		return c
	}
	return strings.TrimSpace(s)
}

func canonicalOf(values []string, s string) string {
	s = strings.TrimSpace(s)
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return v
		}
	}
	return ""
}
