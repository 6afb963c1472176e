// Package report renders scoring results as a paginated PDF brief and an
// HTML chart dashboard.
package report

import (
	"bytes"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"github.com/couchcryptid/food-risk-etl/internal/domain"
	"github.com/couchcryptid/food-risk-etl/internal/observability"
	"github.com/couchcryptid/food-risk-etl/internal/pipeline"
)

// Unavailable is printed in place of a chart that failed to render.
const Unavailable = "(unavailable)"

// Options configures the brief.
type Options struct {
	Title    string
	Branding string
	// TopN bounds the per-entity action list; zero lists every recommendation in the result.
	TopN int
	// Charts overrides DefaultCharts.
	Charts []Chart
	// Indicator is the weekly column drawn by the trend chart.
	Indicator string
}

// Renderer produces the PDF brief and the HTML dashboard.
type Renderer struct {
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewRenderer creates a Renderer, filling unset options with defaults.
func NewRenderer(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Renderer {
	if opts.Title == "" {
		opts.Title = "Food Insecurity Risk Brief"
	}
	if opts.Indicator == "" {
		opts.Indicator = domain.ColSNAPApplications
	}
	if opts.Charts == nil {
		opts.Charts = DefaultCharts(opts.Indicator)
	}
	return &Renderer{opts: opts, logger: logger, metrics: metrics}
}

// Page geometry in millimetres (US Letter).
const (
	margin       = 15.0
	headerHeight = 30.0
	lineHeight   = 5.5
	chartHeightM = 75.0
)

type brief struct {
	pdf      *fpdf.Fpdf
	tr       func(string) string
	pageW    float64
	pageH    float64
	contentW float64
}

func newBrief() *brief {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	w, h := pdf.GetPageSize()
	return &brief{
		pdf:      pdf,
		tr:       pdf.UnicodeTranslatorFromDescriptor(""),
		pageW:    w,
		pageH:    h,
		contentW: w - 2*margin,
	}
}

// ensure starts a new page when a block of height h does not fit below the cursor.
func (b *brief) ensure(h float64) {
	if b.pdf.GetY()+h > b.pageH-margin {
		b.pdf.AddPage()
	}
}

func (b *brief) text(style string, size float64, s string) {
	b.pdf.SetFont("Helvetica", style, size)
	b.ensure(lineHeight)
	b.pdf.MultiCell(b.contentW, lineHeight, b.tr(s), "", "L", false)
}

// wrappedHeight estimates the height of s wrapped into width w at the current font.
func (b *brief) wrappedHeight(s string, w float64) float64 {
	return float64(len(b.pdf.SplitLines([]byte(b.tr(s)), w))) * lineHeight
}

// RenderPDF writes the brief: a header band with title, branding and as-of
// date, the KPI summary, one image per chart, and the recommended actions for
// the top entities. Blocks that do not fit on the current page move to the
// next. A chart that fails to render is replaced by Unavailable.
func (r *Renderer) RenderPDF(w io.Writer, res *pipeline.Result) error {
	b := r.build(res)
	if err := b.pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	r.logger.Debug("pdf brief rendered", "run_id", res.RunID, "pages", b.pdf.PageCount())
	return nil
}

func (r *Renderer) build(res *pipeline.Result) *brief {
	b := newBrief()
	b.pdf.SetTitle(r.opts.Title, true)
	b.pdf.SetCreator("food-risk-etl", true)
	b.pdf.AddPage()

	r.header(b, res)
	r.kpis(b, res)
	for _, c := range r.opts.Charts {
		if c.For(res.Kind) {
			r.chart(b, res, c)
		}
	}
	r.actions(b, res)
	return b
}

func (r *Renderer) header(b *brief, res *pipeline.Result) {
	pdf := b.pdf
	pdf.SetFillColor(27, 94, 32)
	pdf.Rect(0, 0, b.pageW, headerHeight, "F")
	pdf.SetTextColor(255, 255, 255)

	pdf.SetXY(margin, 8)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(b.contentW, 8, b.tr(r.opts.Title), "", 1, "L", false, 0, "")

	sub := "As of " + res.AsOf.Format("January 2, 2006")
	if r.opts.Branding != "" {
		sub = r.opts.Branding + "  |  " + sub
	}
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(b.contentW, 6, b.tr(sub), "", 1, "L", false, 0, "")

	pdf.SetTextColor(0, 0, 0)
	pdf.SetY(headerHeight + 6)
}

func (r *Renderer) kpis(b *brief, res *pipeline.Result) {
	s := res.Summary
	b.text("B", 13, "Summary")
	b.text("", 10, fmt.Sprintf("Variant: %s    Banding: %s    Run: %s", res.Variant, res.Banding.Name, res.RunID))
	b.text("", 10, fmt.Sprintf("Rows: %d    Scored: %d    Unscored: %d    Mean %s: %s",
		s.Rows, s.Scored, s.Unscored, res.ScoreColumn, strconv.FormatFloat(s.MeanScore, 'f', 2, 64)))

	counts := make([]string, 0, len(s.BandOrder))
	for _, label := range s.BandOrder {
		counts = append(counts, fmt.Sprintf("%s %d", label, s.BandCounts[label]))
	}
	b.text("", 10, "Bands: "+strings.Join(counts, "  /  "))

	for _, n := range res.Notices {
		b.text("I", 9, n)
	}
	b.pdf.Ln(3)
}

func (r *Renderer) chart(b *brief, res *pipeline.Result, c Chart) {
	img, err := c.Render(res)
	if err == nil {
		_, err = png.DecodeConfig(bytes.NewReader(img))
	}

	b.ensure(lineHeight + chartHeightM)
	b.text("B", 11, c.Title)
	if err != nil {
		r.metrics.ReportAssetFailures.WithLabelValues(c.Name).Inc()
		r.logger.Warn("chart unavailable", "chart", c.Name, "run_id", res.RunID, "error", err)
		b.text("I", 10, Unavailable)
		b.pdf.Ln(2)
		return
	}

	name := "chart-" + c.Name
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	b.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img))
	y := b.pdf.GetY()
	b.pdf.ImageOptions(name, margin, y, b.contentW, chartHeightM, false, opts, 0, "")
	b.pdf.SetY(y + chartHeightM + 3)
}

func (r *Renderer) actions(b *brief, res *pipeline.Result) {
	recs := res.Recommendations
	if r.opts.TopN > 0 && len(recs) > r.opts.TopN {
		recs = recs[:r.opts.TopN]
	}

	// A single entity's list can outgrow a page, so fpdf breaks inside blocks here.
	b.pdf.SetAutoPageBreak(true, margin)
	defer b.pdf.SetAutoPageBreak(false, margin)

	b.ensure(2 * lineHeight)
	b.text("B", 13, "Recommended actions")
	if len(recs) == 0 {
		b.text("I", 10, "No banded entities in this run.")
		return
	}

	for _, rec := range recs {
		heading := fmt.Sprintf("%s  (%s)", rec.County, rec.Band)
		if rec.Customized {
			heading += "  - county plan"
		}
		b.pdf.SetFont("Helvetica", "", 10)
		block := lineHeight
		for _, a := range rec.Actions {
			block += b.wrappedHeight("- "+a, b.contentW-5)
		}
		if block > b.pageH-2*margin {
			// Keep the heading with its first action and let the rest flow.
			block = 2 * lineHeight
		}
		b.ensure(block)

		b.text("B", 11, heading)
		b.pdf.SetFont("Helvetica", "", 10)
		for _, a := range rec.Actions {
			b.pdf.SetX(margin + 5)
			b.pdf.MultiCell(b.contentW-5, lineHeight, b.tr("- "+a), "", "L", false)
		}
		b.pdf.Ln(2)
	}
}
