package domain

import (
	"math"
	"strconv"
	"strings"
)

// Mean-scoring schema.
const (
	ColUnemployment      = "Unemployment"
	ColFoodExpenseBurden = "Food_Expense_Burden"
	ColShutoffNotices    = "Shutoff_Notices"
	ColEvictionNotices   = "Eviction_Notices"
	ColRegion            = "Region"
)

// Weighted-sum schema.
const (
	ColHouseholdID        = "Household_ID"
	ColZipCode            = "Zip_Code"
	ColFRLStatus          = "FRL_Status"
	ColSNAPUse            = "SNAP_Use"
	ColUnemployed         = "Unemployed"
	ColPantryUse          = "Pantry_Use"
	ColUtilityShutoffRisk = "Utility_Shutoff_Risk"
	ColHousingInstability = "Housing_Instability"
)

// Weekly series schema.
const (
	ColDate                    = "date"
	ColCountyLower             = "county"
	ColSNAPApplications        = "SNAP_Applications"
	ColSNAPActiveCases         = "SNAP_Active_Cases"
	ColNSLPSBPParticipation    = "NSLP_SBP_Participation"
	ColFoodShelfVisits         = "Food_Shelf_Visits"
	ColUnemploymentClaims      = "Unemployment_Claims"
	ColCPIFoodAtHomeIndex      = "CPI_Food_At_Home_Index"
	ColEvictionFilings         = "Eviction_Filings"
	ColUtilityShutoffs         = "Utility_Shutoffs"
	ColDroughtSeverityIndex    = "Drought_Severity_Index"
	ColHouseholdPulseInsuffPct = "Household_Pulse_Food_Insufficiency_Pct"
)

// Overview and playbook schemas.
const (
	ColCounty            = "County"
	ColAsOfDate          = "As_Of_Date"
	ColProbSpike8w       = "Prob_Spike_8w"
	ColRAGStatus         = "RAG_Status"
	ColLeadTimeWeeks     = "Lead_Time_Weeks"
	ColLeadAgency        = "Lead Agency"
	ColGovernanceCadence = "Governance Cadence"
	ColOutreachFocus     = "Outreach Focus"
)

// Derived columns.
const (
	ColRiskScore         = "Risk_Score"
	ColRiskBand          = "Risk_Band"
	ColAttentionFlag     = "Attention_Flag"
	ColRAGBadge          = "RAG_Badge"
	ColActionSummary     = "Recommended_Action_Summary"
	ColActionsCustomized = "Actions_Customized"
)

// WeeklyIndicators lists the numeric columns of the weekly series in file order.
var WeeklyIndicators = []string{
	ColSNAPApplications,
	ColSNAPActiveCases,
	ColNSLPSBPParticipation,
	ColFoodShelfVisits,
	ColUnemploymentClaims,
	ColCPIFoodAtHomeIndex,
	ColEvictionFilings,
	ColUtilityShutoffs,
	ColDroughtSeverityIndex,
	ColHouseholdPulseInsuffPct,
}

// Row is a single record keyed by column name. Cells keep their source text.
type Row map[string]string

// Table is an ordered set of columns and the rows that carry them.
type Table struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Empty reports whether the table has no rows.
func (t Table) Empty() bool { return len(t.Rows) == 0 }

// Has reports whether col is part of the schema.
func (t Table) Has(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// AddColumn appends col to the schema unless it is already present. Re-scoring
// a previously exported table therefore overwrites the derived values in place.
func (t *Table) AddColumn(col string) {
	if !t.Has(col) {
		t.Columns = append(t.Columns, col)
	}
}

// Clone returns a deep copy so derived columns never leak into the input table.
func (t Table) Clone() Table {
	out := Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		nr := make(Row, len(r))
		for k, v := range r {
			nr[k] = v
		}
		out.Rows[i] = nr
	}
	return out
}

// Column returns the cells of col in row order.
func (t Table) Column(col string) []string {
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[col]
	}
	return out
}

// Float parses a cell as float64. Empty, missing, non-numeric and infinite
// cells read as NaN.
func Float(r Row, col string) float64 {
	s := strings.TrimSpace(r[col])
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

// FormatFloat renders a derived value so that re-reading it yields the same float.
// NaN renders as an empty cell, matching how unscored rows are exported.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// EntityColumn returns the first identifying column present in t, used to
// label rows in summaries and published messages.
func EntityColumn(t Table) string {
	for _, c := range []string{ColCounty, ColCountyLower, ColRegion, ColHouseholdID} {
		if t.Has(c) {
			return c
		}
	}
	return ""
}
