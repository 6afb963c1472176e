package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Band labels across all banding tables.
const (
	BandGreen    = "Green"
	BandYellow   = "Yellow"
	BandOrange   = "Orange"
	BandRed      = "Red"
	BandAmber    = "Amber"
	BandLow      = "Low"
	BandMedium   = "Medium"
	BandHigh     = "High"
	BandCritical = "Critical"
)

// Banding table names.
const (
	BandingScoreCut    = "score-cut"
	BandingThreshold   = "threshold"
	BandingProbability = "probability"
)

// ErrUnknownBanding is returned for a banding name outside the registered set.
var ErrUnknownBanding = errors.New("unknown banding table")

// Band is an ordinal risk category. Severity starts at 0 for the least severe label.
type Band struct {
	Label    string
	Severity int
}

// Cut is a lower bound for a band. Inclusive cuts match score >= Min,
// exclusive cuts match score > Min.
type Cut struct {
	Min       float64
	Inclusive bool
	Label     string
}

func (c Cut) matches(score float64) bool {
	if c.Inclusive {
		return score >= c.Min
	}
	return score > c.Min
}

// Banding maps a score to a band. Cuts are ordered by increasing severity;
// scores below every cut receive Base.
type Banding struct {
	Name string
	Base string
	Cuts []Cut
}

// Assign returns the band for score, checking the most severe cut first.
// NaN scores are not banded.
func (b Banding) Assign(score float64) (Band, bool) {
	if math.IsNaN(score) {
		return Band{}, false
	}
	for i := len(b.Cuts) - 1; i >= 0; i-- {
		if b.Cuts[i].matches(score) {
			return Band{Label: b.Cuts[i].Label, Severity: i + 1}, true
		}
	}
	return Band{Label: b.Base, Severity: 0}, true
}

// Labels returns band labels in increasing severity.
func (b Banding) Labels() []string {
	out := make([]string, 0, len(b.Cuts)+1)
	out = append(out, b.Base)
	for _, c := range b.Cuts {
		out = append(out, c.Label)
	}
	return out
}

// Severity returns the ordinal of label within b, or -1 when b has no such label.
func (b Banding) Severity(label string) int {
	for i, l := range b.Labels() {
		if l == label {
			return i
		}
	}
	return -1
}

// ScoreCutBanding buckets a 0–100 mean score into four colours. A score on an
// edge belongs to the more severe band: 25 is Yellow, 75 is Red.
var ScoreCutBanding = Banding{
	Name: BandingScoreCut,
	Base: BandGreen,
	Cuts: []Cut{
		{Min: 25, Inclusive: true, Label: BandYellow},
		{Min: 50, Inclusive: true, Label: BandOrange},
		{Min: 75, Inclusive: true, Label: BandRed},
	},
}

// ThresholdBanding is the weighted-sum household scale.
var ThresholdBanding = Banding{
	Name: BandingThreshold,
	Base: BandLow,
	Cuts: []Cut{
		{Min: 40, Inclusive: true, Label: BandMedium},
		{Min: 70, Inclusive: true, Label: BandHigh},
		{Min: 90, Inclusive: true, Label: BandCritical},
	},
}

// ProbabilityBanding is the RAG scale for spike probabilities.
var ProbabilityBanding = Banding{
	Name: BandingProbability,
	Base: BandGreen,
	Cuts: []Cut{
		{Min: 0.30, Inclusive: true, Label: BandAmber},
		{Min: 0.60, Inclusive: false, Label: BandRed},
	},
}

var bandings = map[string]Banding{
	BandingScoreCut:    ScoreCutBanding,
	BandingThreshold:   ThresholdBanding,
	BandingProbability: ProbabilityBanding,
}

// LookupBanding returns the named banding table.
func LookupBanding(name string) (Banding, error) {
	b, ok := bandings[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Banding{}, fmt.Errorf("%w: %q", ErrUnknownBanding, name)
	}
	return b, nil
}

// BandingNames lists the registered banding tables in sorted order.
func BandingNames() []string {
	names := make([]string, 0, len(bandings))
	for n := range bandings {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultBanding returns the banding table each variant was calibrated against.
func DefaultBanding(v Variant) Banding {
	switch v {
	case VariantWeighted:
		return ThresholdBanding
	case VariantZLogistic:
		return ProbabilityBanding
	default:
		return ScoreCutBanding
	}
}

// Attention flags for 0–100 scores.
const (
	FlagImmediate = "Immediate Attention"
	FlagFollowUp  = "Follow-Up Needed"
	FlagStable    = "Stable"
)

// AttentionFlag triages a 0–100 score for case workers. NaN scores get no flag.
func AttentionFlag(score float64) string {
	switch {
	case math.IsNaN(score):
		return ""
	case score > 75:
		return FlagImmediate
	case score > 50:
		return FlagFollowUp
	default:
		return FlagStable
	}
}

// Badge renders a band label as a coloured badge for tables and exports.
func Badge(label string) string {
	switch label {
	case BandRed, BandCritical:
		return "🔴 " + label
	case BandOrange, BandHigh, BandAmber:
		return "🟠 " + label
	case BandYellow, BandMedium:
		return "🟡 " + label
	case BandGreen, BandLow:
		return "🟢 " + label
	case "":
		return ""
	default:
		return "⚪ " + label
	}
}
