package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Variant selects a scoring strategy.
type Variant string

const (
	VariantMean      Variant = "mean"
	VariantWeighted  Variant = "weighted"
	VariantZLogistic Variant = "zlogistic"
)

// WeightedMultiplier scales the indicator sum so that all six indicators present
// lands exactly on the Critical floor (6 × 15 = 90).
const WeightedMultiplier = 15.0

// DefaultSpikeWindow is the number of weekly values the spike scorer looks back over.
const DefaultSpikeWindow = 8

// ErrUnknownVariant is returned for a variant name outside the registered set.
var ErrUnknownVariant = errors.New("unknown scoring variant")

// MeanColumns are the inputs of the mean strategy, each on a 0–100 scale.
var MeanColumns = []string{ColUnemployment, ColFoodExpenseBurden, ColShutoffNotices, ColEvictionNotices}

// WeightedColumns are the 0/1 indicator inputs of the weighted-sum strategy.
var WeightedColumns = []string{ColFRLStatus, ColSNAPUse, ColUnemployed, ColPantryUse, ColUtilityShutoffRisk, ColHousingInstability}

// ParseVariant validates a variant name. Matching is case-insensitive.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case VariantMean, VariantWeighted, VariantZLogistic:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
	}
}

// RowScorer scores one record of a household table.
type RowScorer interface {
	Variant() Variant
	RequiredColumns() []string
	// ScoreRow returns NaN when the row cannot be scored.
	ScoreRow(r Row) float64
}

// NewRowScorer returns the row strategy for v. The series variant has no row form.
func NewRowScorer(v Variant) (RowScorer, error) {
	switch v {
	case VariantMean:
		return MeanScorer{Columns: MeanColumns}, nil
	case VariantWeighted:
		return WeightedSumScorer{Columns: WeightedColumns, Multiplier: WeightedMultiplier}, nil
	default:
		return nil, fmt.Errorf("%w: %q is not a row variant", ErrUnknownVariant, v)
	}
}

// MeanScorer averages a fixed column set.
type MeanScorer struct {
	Columns []string
}

func (MeanScorer) Variant() Variant { return VariantMean }

func (s MeanScorer) RequiredColumns() []string { return s.Columns }

func (s MeanScorer) ScoreRow(r Row) float64 {
	values, ok := rowValues(r, s.Columns)
	if !ok {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}

// WeightedSumScorer sums binary indicators and scales by Multiplier.
type WeightedSumScorer struct {
	Columns    []string
	Multiplier float64
}

func (WeightedSumScorer) Variant() Variant { return VariantWeighted }

func (s WeightedSumScorer) RequiredColumns() []string { return s.Columns }

func (s WeightedSumScorer) ScoreRow(r Row) float64 {
	values, ok := rowValues(r, s.Columns)
	if !ok {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum * s.Multiplier
}

func rowValues(r Row, cols []string) ([]float64, bool) {
	values := make([]float64, len(cols))
	for i, c := range cols {
		v := Float(r, c)
		if math.IsNaN(v) {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}

// MissingColumnsError lists every required column absent from a table schema.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Columns, ", ")
}

// ValidateColumns checks that t carries every column in required. It runs
// before scoring; a non-nil result means no row of t may be scored.
func ValidateColumns(t Table, required []string) error {
	var missing []string
	for _, c := range required {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Columns: missing}
	}
	return nil
}

// SpikeScorer turns the tail of a weekly indicator series into an
// 8-week spike probability via a logistic transform of its z-score.
type SpikeScorer struct {
	Indicator string
	Window    int
}

// NewSpikeScorer returns a scorer over indicator with the given window,
// falling back to DefaultSpikeWindow when window is not positive.
func NewSpikeScorer(indicator string, window int) SpikeScorer {
	if window <= 0 {
		window = DefaultSpikeWindow
	}
	return SpikeScorer{Indicator: indicator, Window: window}
}

func (SpikeScorer) Variant() Variant { return VariantZLogistic }

// Score evaluates the last Window values of a time-ordered series.
// NaN readings are skipped. An empty series yields NaN.
func (s SpikeScorer) Score(series []float64) float64 {
	values := make([]float64, 0, len(series))
	for _, v := range series {
		if !math.IsNaN(v) {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return math.NaN()
	}
	if len(values) > s.Window {
		values = values[len(values)-s.Window:]
	}
	return SpikeProbability(values)
}

// SpikeProbability computes 1/(1+e^-z) where z is the latest value's distance
// from the window mean in sample standard deviations. σ is 1 when the window
// has fewer than two values or no spread.
func SpikeProbability(window []float64) float64 {
	if len(window) == 0 {
		return math.NaN()
	}
	mean, sd := stat.MeanStdDev(window, nil)
	if len(window) < 2 || sd == 0 || math.IsNaN(sd) {
		sd = 1.0
	}
	z := (window[len(window)-1] - mean) / sd
	return 1 / (1 + math.Exp(-z))
}
