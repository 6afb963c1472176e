package domain

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"
)

// DateLayout is the canonical date format for exported tables.
const DateLayout = "2006-01-02"

// WeeklyEntry is one county's indicator readings for one week.
type WeeklyEntry struct {
	Date   time.Time
	County string
	Values map[string]float64
}

// WeeklySeries is an append-only list of weekly entries.
type WeeklySeries []WeeklyEntry

// Counties returns the distinct counties in first-seen order.
func (s WeeklySeries) Counties() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range s {
		if _, ok := seen[e.County]; ok {
			continue
		}
		seen[e.County] = struct{}{}
		out = append(out, e.County)
	}
	return out
}

// ForCounty returns the county's entries sorted by date.
func (s WeeklySeries) ForCounty(county string) WeeklySeries {
	var out WeeklySeries
	for _, e := range s {
		if e.County == county {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Values returns one indicator in entry order.
func (s WeeklySeries) Values(indicator string) []float64 {
	out := make([]float64, len(s))
	for i, e := range s {
		v, ok := e.Values[indicator]
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}

// Latest returns the most recent date in the series.
func (s WeeklySeries) Latest() time.Time {
	var latest time.Time
	for _, e := range s {
		if e.Date.After(latest) {
			latest = e.Date
		}
	}
	return latest
}

// Table renders the series with the weekly schema, ordered by date then county.
func (s WeeklySeries) Table() Table {
	sorted := append(WeeklySeries(nil), s...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].County < sorted[j].County
	})

	t := Table{Columns: append([]string{ColDate, ColCountyLower}, WeeklyIndicators...)}
	for _, e := range sorted {
		r := Row{ColDate: e.Date.Format(DateLayout), ColCountyLower: e.County}
		for _, ind := range WeeklyIndicators {
			if v, ok := e.Values[ind]; ok {
				r[ind] = FormatFloat(v)
			}
		}
		t.Rows = append(t.Rows, r)
	}
	return t
}

// WeeklyFromTable parses a weekly series table. Rows with an unparseable date or
// an empty county are skipped and counted.
func WeeklyFromTable(t Table) (WeeklySeries, int, error) {
	if err := ValidateColumns(t, []string{ColDate, ColCountyLower}); err != nil {
		return nil, 0, fmt.Errorf("parse weekly series: %w", err)
	}
	var (
		series  WeeklySeries
		skipped int
	)
	for _, r := range t.Rows {
		date, err := ParseDate(r[ColDate])
		county := strings.TrimSpace(r[ColCountyLower])
		if err != nil || county == "" {
			skipped++
			continue
		}
		e := WeeklyEntry{Date: date, County: county, Values: make(map[string]float64)}
		for _, col := range t.Columns {
			if col == ColDate || col == ColCountyLower {
				continue
			}
			if v := Float(r, col); !math.IsNaN(v) {
				e.Values[col] = v
			}
		}
		series = append(series, e)
	}
	return series, skipped, nil
}

// ParseDate accepts the date layouts seen in uploaded county files.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty date")
	}
	layouts := []string{
		DateLayout,
		"2006/01/02",
		"01/02/2006",
		"1/2/2006",
		"01-02-2006",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		time.RFC3339,
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format: %s", value)
}

// DefaultCounties are the counties covered by the synthetic demo series.
var DefaultCounties = []string{
	"Hennepin",
	"Ramsey",
	"Dakota",
	"Anoka",
	"Washington",
	"St. Louis",
	"Olmsted",
	"Stearns",
}

// indicatorProfile describes how one synthetic indicator behaves. Seasonal and
// Noise are fractions of the county baseline.
type indicatorProfile struct {
	Column   string
	BaseMin  float64
	BaseMax  float64
	Seasonal float64
	Noise    float64
}

var syntheticProfiles = []indicatorProfile{
	{ColSNAPApplications, 150, 1200, 0.12, 0.08},
	{ColSNAPActiveCases, 4000, 45000, 0.03, 0.01},
	{ColNSLPSBPParticipation, 2000, 30000, 0.25, 0.04},
	{ColFoodShelfVisits, 500, 9000, 0.15, 0.07},
	{ColUnemploymentClaims, 80, 1500, 0.20, 0.10},
	{ColCPIFoodAtHomeIndex, 300, 320, 0.01, 0.002},
	{ColEvictionFilings, 5, 120, 0.10, 0.15},
	{ColUtilityShutoffs, 10, 200, 0.30, 0.12},
	{ColDroughtSeverityIndex, 0.5, 2.5, 0.40, 0.10},
	{ColHouseholdPulseInsuffPct, 6, 14, 0.08, 0.05},
}

// SyntheticOptions controls GenerateWeekly.
type SyntheticOptions struct {
	Seed     int64
	Weeks    int
	Counties []string
	// End is the last week in the series; zero means the Monday of the current week.
	End time.Time
}

// GenerateWeekly produces a reproducible demo series: for each county and
// indicator, a baseline drawn once, a yearly sinusoid over the week index, and
// Gaussian noise. The same options always produce the same values.
func GenerateWeekly(opts SyntheticOptions) WeeklySeries {
	weeks := opts.Weeks
	if weeks <= 0 {
		weeks = 52
	}
	counties := opts.Counties
	if len(counties) == 0 {
		counties = DefaultCounties
	}
	end := opts.End
	if end.IsZero() {
		end = weekStart(clock.Now())
	}
	start := end.AddDate(0, 0, -7*(weeks-1))

	rng := rand.New(rand.NewSource(opts.Seed)) //nolint:gosec // deterministic demo data
	series := make(WeeklySeries, 0, weeks*len(counties))

	for _, county := range counties {
		baselines := make([]float64, len(syntheticProfiles))
		for i, p := range syntheticProfiles {
			baselines[i] = p.BaseMin + rng.Float64()*(p.BaseMax-p.BaseMin)
		}
		for w := 0; w < weeks; w++ {
			season := math.Sin(2 * math.Pi * float64(w) / 52)
			values := make(map[string]float64, len(syntheticProfiles))
			for i, p := range syntheticProfiles {
				base := baselines[i]
				v := base*(1+p.Seasonal*season) + rng.NormFloat64()*p.Noise*base
				values[p.Column] = round2(math.Max(v, 0))
			}
			series = append(series, WeeklyEntry{
				Date:   start.AddDate(0, 0, 7*w),
				County: county,
				Values: values,
			})
		}
	}
	return series
}

// weekStart returns midnight UTC of the Monday on or before t.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
