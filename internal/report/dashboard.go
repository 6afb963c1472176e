package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/couchcryptid/food-risk-etl/internal/domain"
	"github.com/couchcryptid/food-risk-etl/internal/pipeline"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderDashboard writes an HTML page with the band distribution, the
// per-group or per-county scores, and for county runs the weekly trend.
func (r *Renderer) RenderDashboard(w io.Writer, res *pipeline.Result) error {
	page := components.NewPage()
	page.SetPageTitle(r.opts.Title)
	page.AddCharts(r.bandBar(res), r.scoreBar(res))
	if res.Kind == pipeline.KindCounties {
		if line := r.trendLine(res); line != nil {
			page.AddCharts(line)
		}
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	return nil
}

func (r *Renderer) bandBar(res *pipeline.Result) *charts.Bar {
	labels := res.Summary.BandOrder
	data := make([]opts.BarData, len(labels))
	for i, label := range labels {
		c := bandColor(label)
		data[i] = opts.BarData{
			Name:      label,
			Value:     res.Summary.BandCounts[label],
			ItemStyle: &opts.ItemStyle{Color: fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)},
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Rows per band",
			Subtitle: fmt.Sprintf("%s | %s | as of %s", res.Variant, res.Banding.Name, res.AsOf.Format(domain.DateLayout)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).AddSeries("rows", data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)
	return bar
}

// scoreBar shows group averages for row runs and the score of each county for
// county runs.
func (r *Renderer) scoreBar(res *pipeline.Result) *charts.Bar {
	var (
		names []string
		data  []opts.BarData
		title string
	)
	if res.Kind == pipeline.KindCounties {
		title = res.ScoreColumn + " by county"
		entity := res.EntityColumn()
		for _, row := range res.Table.Rows {
			names = append(names, row[entity])
			data = append(data, opts.BarData{Value: row[res.ScoreColumn]})
		}
	} else {
		title = "Average " + res.ScoreColumn + " by group"
		for _, g := range res.Summary.Groups {
			names = append(names, g.Group)
			data = append(data, opts.BarData{Value: g.MeanScore})
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).AddSeries(res.ScoreColumn, data)
	return bar
}

func (r *Renderer) trendLine(res *pipeline.Result) *charts.Line {
	series := res.Series()
	if len(series) == 0 {
		return nil
	}
	counties := series.Counties()
	sort.Strings(counties)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: r.opts.Indicator + " by week"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
	)

	var dates []string
	for i, county := range counties {
		entries := series.ForCounty(county)
		data := make([]opts.LineData, len(entries))
		for j, e := range entries {
			if i == 0 {
				dates = append(dates, e.Date.Format(domain.DateLayout))
			}
			data[j] = opts.LineData{Value: e.Values[r.opts.Indicator]}
		}
		line.AddSeries(county, data)
	}
	line.SetXAxis(dates)
	return line
}
