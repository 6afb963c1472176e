package report

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/couchcryptid/food-risk-etl/internal/domain"
	"github.com/couchcryptid/food-risk-etl/internal/pipeline"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoChartData is returned when a chart has nothing to draw.
var ErrNoChartData = errors.New("no data to chart")

// Chart renders one PNG figure of the brief.
type Chart struct {
	Name   string
	Title  string
	Render func(res *pipeline.Result) ([]byte, error)
	// Kinds limits the chart to these run kinds; empty means every kind.
	Kinds []pipeline.Kind
}

// For reports whether c is drawn for a run of the given kind.
func (c Chart) For(kind pipeline.Kind) bool {
	return len(c.Kinds) == 0 || slices.Contains(c.Kinds, kind)
}

const (
	chartWidth  = 7 * vg.Inch
	chartHeight = 3 * vg.Inch
)

var bandColors = map[string]color.RGBA{
	domain.BandGreen:    {R: 46, G: 125, B: 50, A: 255},
	domain.BandLow:      {R: 46, G: 125, B: 50, A: 255},
	domain.BandYellow:   {R: 249, G: 168, B: 37, A: 255},
	domain.BandMedium:   {R: 249, G: 168, B: 37, A: 255},
	domain.BandAmber:    {R: 239, G: 108, B: 0, A: 255},
	domain.BandOrange:   {R: 239, G: 108, B: 0, A: 255},
	domain.BandHigh:     {R: 239, G: 108, B: 0, A: 255},
	domain.BandRed:      {R: 198, G: 40, B: 40, A: 255},
	domain.BandCritical: {R: 198, G: 40, B: 40, A: 255},
}

// DefaultCharts returns the band distribution chart, the weekly trend of
// indicator for county runs, and the per-group average for row runs.
func DefaultCharts(indicator string) []Chart {
	return []Chart{
		{Name: "bands", Title: "Band distribution", Render: BandChart},
		{Name: "trend", Title: "Weekly trend", Kinds: []pipeline.Kind{pipeline.KindCounties},
			Render: func(res *pipeline.Result) ([]byte, error) { return TrendChart(res, indicator) }},
		{Name: "groups", Title: "Average risk score by group", Kinds: []pipeline.Kind{pipeline.KindRows}, Render: GroupChart},
	}
}

// BandChart draws one bar per band label, coloured by severity.
func BandChart(res *pipeline.Result) ([]byte, error) {
	labels := res.Summary.BandOrder
	if len(labels) == 0 || res.Summary.Scored == 0 {
		return nil, ErrNoChartData
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Rows per band (%s)", res.Banding.Name)
	p.Y.Label.Text = "Rows"
	p.Y.Min = 0

	for i, label := range labels {
		bar, err := plotter.NewBarChart(plotter.Values{float64(res.Summary.BandCounts[label])}, vg.Points(40))
		if err != nil {
			return nil, fmt.Errorf("band chart: %w", err)
		}
		bar.XMin = float64(i)
		bar.Color = bandColor(label)
		bar.LineStyle.Width = 0
		p.Add(bar)
	}
	p.NominalX(labels...)
	return renderPNG(p)
}

// GroupChart draws the mean score per region or county group.
func GroupChart(res *pipeline.Result) ([]byte, error) {
	groups := res.Summary.Groups
	if len(groups) == 0 {
		return nil, ErrNoChartData
	}

	values := make(plotter.Values, len(groups))
	names := make([]string, len(groups))
	for i, g := range groups {
		values[i] = g.MeanScore
		names[i] = g.Group
	}
	bar, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return nil, fmt.Errorf("group chart: %w", err)
	}
	bar.Color = color.RGBA{R: 21, G: 101, B: 192, A: 255}

	p := plot.New()
	p.Title.Text = "Average risk score by group"
	p.Y.Label.Text = res.ScoreColumn
	p.Y.Min = 0
	p.Add(bar)
	p.NominalX(names...)
	return renderPNG(p)
}

// TrendChart draws the weekly total of indicator across all counties.
func TrendChart(res *pipeline.Result, indicator string) ([]byte, error) {
	points := weeklyTotals(res.Series(), indicator)
	if len(points) < 2 {
		return nil, ErrNoChartData
	}

	line, err := plotter.NewLine(points)
	if err != nil {
		return nil, fmt.Errorf("trend chart: %w", err)
	}
	line.Width = vg.Points(1.5)
	line.Color = color.RGBA{R: 21, G: 101, B: 192, A: 255}

	p := plot.New()
	p.Title.Text = indicator + " (all counties, weekly)"
	p.Y.Label.Text = indicator
	p.X.Tick.Marker = plot.TimeTicks{Format: "Jan 02"}
	p.Add(line)
	return renderPNG(p)
}

func weeklyTotals(series domain.WeeklySeries, indicator string) plotter.XYs {
	totals := make(map[time.Time]float64)
	for _, e := range series {
		v, ok := e.Values[indicator]
		if !ok || math.IsNaN(v) {
			continue
		}
		totals[e.Date] += v
	}
	dates := make([]time.Time, 0, len(totals))
	for d := range totals {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	xys := make(plotter.XYs, len(dates))
	for i, d := range dates {
		xys[i] = plotter.XY{X: float64(d.Unix()), Y: totals[d]}
	}
	return xys
}

func renderPNG(p *plot.Plot) ([]byte, error) {
	wt, err := p.WriterTo(chartWidth, chartHeight, "png")
	if err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

func bandColor(label string) color.RGBA {
	if c, ok := bandColors[label]; ok {
		return c
	}
	return color.RGBA{R: 120, G: 120, B: 120, A: 255}
}
