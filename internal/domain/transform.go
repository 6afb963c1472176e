package domain

import (
	"math"
	"strconv"
	"strings"
)

// ScoreRows validates t against the scorer's schema, then returns a copy with
// Risk_Score, Risk_Band, and Attention_Flag appended. A validation failure
// scores nothing. Rows whose inputs are missing keep empty derived cells.
func ScoreRows(t Table, scorer RowScorer, banding Banding) (Table, error) {
	if err := ValidateColumns(t, scorer.RequiredColumns()); err != nil {
		return Table{}, err
	}

	out := t.Clone()
	out.AddColumn(ColRiskScore)
	out.AddColumn(ColRiskBand)
	out.AddColumn(ColAttentionFlag)

	for _, r := range out.Rows {
		score := scorer.ScoreRow(r)
		if math.IsInf(score, 0) {
			// Finite inputs can still overflow the sum.
			score = math.NaN()
		}
		r[ColRiskScore] = FormatFloat(score)
		r[ColRiskBand] = ""
		if band, ok := banding.Assign(score); ok {
			r[ColRiskBand] = band.Label
		}
		r[ColAttentionFlag] = AttentionFlag(score)
	}
	return out, nil
}

// RecommendRows attaches the recommendation summary for each row keyed by
// entityCol and bandCol, and returns the resolved recommendations in row order.
func RecommendRows(t *Table, overrides Overrides, entityCol, bandCol string) []Recommendation {
	t.AddColumn(ColActionSummary)
	t.AddColumn(ColActionsCustomized)

	recs := make([]Recommendation, 0, len(t.Rows))
	for _, r := range t.Rows {
		band := r[bandCol]
		if band == "" {
			r[ColActionSummary] = ""
			r[ColActionsCustomized] = ""
			continue
		}
		rec := overrides.Recommend(strings.TrimSpace(r[entityCol]), band)
		r[ColActionSummary] = rec.Actions.Summary()
		r[ColActionsCustomized] = strconv.FormatBool(rec.Customized)
		recs = append(recs, rec)
	}
	return recs
}

// BandCounties assigns RAG_Status from Prob_Spike_8w using banding, adds the
// badge column, and attaches recommended actions per county. Rows without a
// parseable probability keep any status they already carry.
func BandCounties(latest Table, banding Banding, overrides Overrides) (Table, []Recommendation) {
	out := latest.Clone()
	out.AddColumn(ColProbSpike8w)
	out.AddColumn(ColRAGStatus)
	out.AddColumn(ColRAGBadge)

	for _, r := range out.Rows {
		if band, ok := banding.Assign(Float(r, ColProbSpike8w)); ok {
			r[ColRAGStatus] = band.Label
		}
		r[ColRAGBadge] = Badge(r[ColRAGStatus])
	}

	recs := RecommendRows(&out, overrides, ColCounty, ColRAGStatus)
	return out, recs
}
