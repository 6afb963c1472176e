package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/couchcryptid/food-risk-etl/internal/domain"
	"github.com/couchcryptid/food-risk-etl/internal/pipeline"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1B5E20"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#757575"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	noticeStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#EF6C00"))

	bandStyles = map[string]lipgloss.Style{
		domain.BandGreen:    lipgloss.NewStyle().Foreground(lipgloss.Color("#2E7D32")).Bold(true),
		domain.BandLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("#2E7D32")).Bold(true),
		domain.BandYellow:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F9A825")).Bold(true),
		domain.BandMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F9A825")).Bold(true),
		domain.BandAmber:    lipgloss.NewStyle().Foreground(lipgloss.Color("#EF6C00")).Bold(true),
		domain.BandOrange:   lipgloss.NewStyle().Foreground(lipgloss.Color("#EF6C00")).Bold(true),
		domain.BandHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("#EF6C00")).Bold(true),
		domain.BandRed:      lipgloss.NewStyle().Foreground(lipgloss.Color("#C62828")).Bold(true),
		domain.BandCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("#C62828")).Bold(true),
	}
)

func band(label string) string {
	if s, ok := bandStyles[label]; ok {
		return s.Render(label)
	}
	return label
}

// renderSummary formats the KPI block printed after every scoring command.
func renderSummary(res *pipeline.Result) string {
	s := res.Summary
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("%s run %s", res.Kind, res.RunID)))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("variant %s · banding %s · as of %s",
		res.Variant, res.Banding.Name, res.AsOf.Format(domain.DateLayout))))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "rows %d  scored %d  unscored %d  mean %s %s\n",
		s.Rows, s.Scored, s.Unscored, res.ScoreColumn, strconv.FormatFloat(s.MeanScore, 'f', 2, 64))

	counts := make([]string, 0, len(s.BandOrder))
	for _, label := range s.BandOrder {
		counts = append(counts, fmt.Sprintf("%s %d", band(label), s.BandCounts[label]))
	}
	b.WriteString(strings.Join(counts, "   "))
	b.WriteString("\n")

	if len(s.Groups) > 0 {
		b.WriteString("\n")
		rows := make([][]string, 0, len(s.Groups))
		for _, g := range s.Groups {
			rows = append(rows, []string{g.Group, strconv.FormatFloat(g.MeanScore, 'f', 2, 64), strconv.Itoa(g.Count)})
		}
		b.WriteString(renderTable([]string{"group", "mean", "rows"}, rows))
	}

	if len(s.Top) > 0 {
		b.WriteString("\n")
		rows := make([][]string, 0, len(s.Top))
		for _, e := range s.Top {
			rows = append(rows, []string{e.Entity, domain.FormatFloat(e.Score), band(e.Band)})
		}
		b.WriteString(renderTable([]string{"entity", res.ScoreColumn, "band"}, rows))
	}

	for _, n := range res.Notices {
		b.WriteString(noticeStyle.Render(n))
		b.WriteString("\n")
	}
	return b.String()
}

// renderTable aligns cells by their rendered width so styled cells line up.
func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	var b strings.Builder
	line := func(cells []string, style *lipgloss.Style) {
		for i, cell := range cells {
			if style != nil {
				cell = style.Render(cell)
			}
			b.WriteString(cell)
			if i < len(cells)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2))
			}
		}
		b.WriteString("\n")
	}
	line(headers, &headerStyle)
	for _, row := range rows {
		line(row, nil)
	}
	return b.String()
}
