package domain

import (
	"math"
	"sort"
	"strconv"

	"github.com/samber/lo"
)

// GroupScore is the mean score of one region or county group.
type GroupScore struct {
	Group     string  `json:"group"`
	MeanScore float64 `json:"mean_score"`
	Count     int     `json:"count"`
}

// EntityScore is one ranked row of a scored table.
type EntityScore struct {
	Entity string  `json:"entity"`
	Score  float64 `json:"score"`
	Band   string  `json:"band"`
}

// Summary holds the KPIs shown above scored tables and in the report header.
type Summary struct {
	Rows       int            `json:"rows"`
	Scored     int            `json:"scored"`
	Unscored   int            `json:"unscored"`
	BandOrder  []string       `json:"band_order"`
	BandCounts map[string]int `json:"band_counts"`
	MeanScore  float64        `json:"mean_score"`
	Groups     []GroupScore   `json:"groups,omitempty"`
	Top        []EntityScore  `json:"top,omitempty"`
}

type scoredRow struct {
	entity string
	group  string
	score  float64
	band   string
}

// Summarize counts bands, averages scores overall and per groupCol, and ranks
// the topN highest-scoring entities. Unscored rows are counted but excluded
// from every average; MeanScore is zero when nothing was scored.
func Summarize(t Table, banding Banding, scoreCol, bandCol, groupCol string, topN int) Summary {
	entityCol := EntityColumn(t)
	rows := lo.Map(t.Rows, func(r Row, i int) scoredRow {
		entity := r[entityCol]
		if entity == "" {
			entity = "row " + strconv.Itoa(i+1)
		}
		return scoredRow{entity: entity, group: r[groupCol], score: Float(r, scoreCol), band: r[bandCol]}
	})
	scored := lo.Filter(rows, func(s scoredRow, _ int) bool { return !math.IsNaN(s.score) })

	sum := Summary{
		Rows:       len(rows),
		Scored:     len(scored),
		Unscored:   len(rows) - len(scored),
		BandOrder:  banding.Labels(),
		BandCounts: make(map[string]int),
	}
	for _, label := range sum.BandOrder {
		sum.BandCounts[label] = 0
	}
	for _, s := range scored {
		if s.band != "" {
			sum.BandCounts[s.band]++
		}
	}
	if len(scored) > 0 {
		sum.MeanScore = meanScore(scored)
	}

	if groupCol != "" && t.Has(groupCol) {
		groups := lo.GroupBy(scored, func(s scoredRow) string { return s.group })
		names := lo.Keys(groups)
		sort.Strings(names)
		for _, g := range names {
			sum.Groups = append(sum.Groups, GroupScore{Group: g, MeanScore: meanScore(groups[g]), Count: len(groups[g])})
		}
	}

	ranked := append([]scoredRow(nil), scored...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	sum.Top = lo.Map(ranked, func(s scoredRow, _ int) EntityScore {
		return EntityScore{Entity: s.entity, Score: s.score, Band: s.band}
	})
	return sum
}

func meanScore(rows []scoredRow) float64 {
	total := lo.SumBy(rows, func(s scoredRow) float64 { return s.score })
	return total / float64(len(rows))
}
