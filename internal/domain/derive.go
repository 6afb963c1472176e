package domain

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// SpikeProbabilities scores every county in the series, keyed by county.
func SpikeProbabilities(series WeeklySeries, scorer SpikeScorer) map[string]float64 {
	out := make(map[string]float64)
	for _, county := range series.Counties() {
		entries := series.ForCounty(county)
		out[county] = roundProb(scorer.Score(entries.Values(scorer.Indicator)))
	}
	return out
}

// DeriveOverview builds the county overview from the weekly series when no
// overview table was supplied. Each row carries the spike probability of the
// scorer's indicator and its band.
func DeriveOverview(series WeeklySeries, scorer SpikeScorer, banding Banding) Table {
	t := Table{Columns: []string{ColCounty, ColAsOfDate, ColProbSpike8w, ColRAGStatus, ColLeadTimeWeeks}}
	probs := SpikeProbabilities(series, scorer)

	counties := series.Counties()
	sort.Strings(counties)
	for _, county := range counties {
		entries := series.ForCounty(county)
		p := probs[county]
		band, _ := banding.Assign(p)
		t.Rows = append(t.Rows, Row{
			ColCounty:        county,
			ColAsOfDate:      entries.Latest().Format(DateLayout),
			ColProbSpike8w:   FormatFloat(p),
			ColRAGStatus:     band.Label,
			ColLeadTimeWeeks: strconv.Itoa(scorer.Window),
		})
	}
	return t
}

// DeriveLatest takes the most recent week per county from the series and
// left-joins the overview's probability and status columns by county.
func DeriveLatest(series WeeklySeries, overview Table) Table {
	cols := append([]string{ColCounty, ColDate}, WeeklyIndicators...)
	cols = append(cols, ColProbSpike8w, ColRAGStatus)
	t := Table{Columns: cols}

	byCounty := make(map[string]Row, overview.Len())
	for _, r := range overview.Rows {
		byCounty[normalizeCounty(r[ColCounty])] = r
	}

	counties := series.Counties()
	sort.Strings(counties)
	for _, county := range counties {
		entries := series.ForCounty(county)
		last := entries[len(entries)-1]
		r := Row{ColCounty: county, ColDate: last.Date.Format(DateLayout)}
		for _, ind := range WeeklyIndicators {
			if v, ok := last.Values[ind]; ok {
				r[ind] = FormatFloat(v)
			}
		}
		if ov, ok := byCounty[normalizeCounty(county)]; ok {
			r[ColProbSpike8w] = ov[ColProbSpike8w]
			r[ColRAGStatus] = ov[ColRAGStatus]
		}
		t.Rows = append(t.Rows, r)
	}
	return t
}

// JoinOverview copies probability and status from overview into latest rows
// that lack them. Existing values in latest win.
func JoinOverview(latest, overview Table) Table {
	out := latest.Clone()
	byCounty := make(map[string]Row, overview.Len())
	for _, r := range overview.Rows {
		byCounty[normalizeCounty(r[ColCounty])] = r
	}
	out.AddColumn(ColProbSpike8w)
	out.AddColumn(ColRAGStatus)
	for _, r := range out.Rows {
		ov, ok := byCounty[normalizeCounty(r[ColCounty])]
		if !ok {
			continue
		}
		if strings.TrimSpace(r[ColProbSpike8w]) == "" {
			r[ColProbSpike8w] = ov[ColProbSpike8w]
		}
		if strings.TrimSpace(r[ColRAGStatus]) == "" {
			r[ColRAGStatus] = ov[ColRAGStatus]
		}
	}
	return out
}

type playbookDefaults struct {
	LeadAgency string
	Cadence    string
	Outreach   string
}

var defaultPlaybook = map[string]playbookDefaults{
	BandRed:   {"County Emergency Management", "Weekly", "Emergency distribution and benefit surge staffing"},
	BandAmber: {"County Human Services", "Biweekly", "SNAP enrollment drives and food shelf restocking"},
	BandGreen: {"Public Health", "Monthly", "Routine monitoring and partner check-ins"},
}

// DerivePlaybook builds one playbook row per overview county from the default
// agency, cadence, and outreach guidance for its status.
func DerivePlaybook(overview Table) Table {
	t := Table{Columns: []string{ColCounty, ColRAGStatus, ColLeadAgency, ColGovernanceCadence, ColOutreachFocus}}
	for _, r := range overview.Rows {
		status := r[ColRAGStatus]
		d, ok := defaultPlaybook[status]
		if !ok {
			d = defaultPlaybook[BandGreen]
		}
		t.Rows = append(t.Rows, Row{
			ColCounty:            r[ColCounty],
			ColRAGStatus:         status,
			ColLeadAgency:        d.LeadAgency,
			ColGovernanceCadence: d.Cadence,
			ColOutreachFocus:     d.Outreach,
		})
	}
	return t
}

// Metrics reference columns.
const (
	ColMetric      = "Metric"
	ColDescription = "Description"
	ColSource      = "Source"
	ColFrequency   = "Frequency"
)

// DefaultMetrics describes each weekly indicator.
func DefaultMetrics() Table {
	defs := []struct{ metric, desc, source string }{
		{ColSNAPApplications, "New SNAP applications received", "State human services"},
		{ColSNAPActiveCases, "Active SNAP cases", "State human services"},
		{ColNSLPSBPParticipation, "School lunch and breakfast participation", "Department of Education"},
		{ColFoodShelfVisits, "Food shelf visits", "Food bank network"},
		{ColUnemploymentClaims, "Initial unemployment insurance claims", "Department of Labor"},
		{ColCPIFoodAtHomeIndex, "CPI food at home index", "Bureau of Labor Statistics"},
		{ColEvictionFilings, "Eviction case filings", "State court system"},
		{ColUtilityShutoffs, "Residential utility disconnections", "Public utilities commission"},
		{ColDroughtSeverityIndex, "Drought severity and coverage index", "US Drought Monitor"},
		{ColHouseholdPulseInsuffPct, "Adults in food-insufficient households (%)", "Census Household Pulse"},
	}
	t := Table{Columns: []string{ColMetric, ColDescription, ColSource, ColFrequency}}
	for _, d := range defs {
		t.Rows = append(t.Rows, Row{
			ColMetric:      d.metric,
			ColDescription: d.desc,
			ColSource:      d.source,
			ColFrequency:   "Weekly",
		})
	}
	return t
}

func normalizeCounty(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func roundProb(p float64) float64 {
	if math.IsNaN(p) {
		return p
	}
	return math.Round(p*1e4) / 1e4
}
