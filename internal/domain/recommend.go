package domain

import (
	"sort"
	"strings"
)

// AnyBand is the override wildcard matching every band of a county.
const AnyBand = "Any"

// OverrideKey identifies a county-specific action list. Band is a band label or AnyBand.
type OverrideKey struct {
	County string
	Band   string
}

// ActionList is an ordered sequence of recommended actions.
type ActionList []string

// Summary joins the actions into a single export cell.
func (a ActionList) Summary() string {
	return strings.Join(a, "; ")
}

// Overrides holds county customizations that take precedence over DefaultActions.
type Overrides map[OverrideKey]ActionList

// Recommendation is the resolved action list for one (county, band) pair.
type Recommendation struct {
	County     string
	Band       string
	Actions    ActionList
	Customized bool
}

// Recommend resolves actions for county and band: an exact override first, then
// the county's AnyBand override, then the band-only default.
func (o Overrides) Recommend(county, band string) Recommendation {
	rec := Recommendation{County: county, Band: band}
	if actions, ok := o[OverrideKey{County: county, Band: band}]; ok && len(actions) > 0 {
		rec.Actions = actions
		rec.Customized = true
		return rec
	}
	if actions, ok := o[OverrideKey{County: county, Band: AnyBand}]; ok && len(actions) > 0 {
		rec.Actions = actions
		rec.Customized = true
		return rec
	}
	rec.Actions = DefaultActions[band]
	return rec
}

// Counties lists counties with at least one override, sorted.
func (o Overrides) Counties() []string {
	seen := make(map[string]struct{})
	for k := range o {
		seen[k.County] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// DefaultActions is the band-only action table covering every label of every banding.
var DefaultActions = map[string]ActionList{
	BandGreen: {
		"Maintain routine monitoring of weekly indicators",
		"Keep pantry and school meal partners on the standard reporting cadence",
	},
	BandYellow: {
		"Share SNAP and WIC enrollment information with flagged households",
		"Schedule a follow-up check-in within 30 days",
	},
	BandOrange: {
		"Connect households to local food shelves and meal programs",
		"Screen for utility and rent assistance eligibility",
		"Follow up within two weeks",
	},
	BandRed: {
		"Activate emergency food distribution with county partners",
		"Escalate utility shutoff and eviction cases to assistance programs",
		"Increase outreach cadence to weekly",
	},
	BandAmber: {
		"Brief county human services leadership on rising indicators",
		"Pre-position food shelf inventory and volunteer capacity",
		"Expand SNAP application assistance hours",
	},
	BandLow: {
		"No immediate action; continue standard outreach",
	},
	BandMedium: {
		"Share benefit enrollment resources",
		"Offer referral to community food programs",
	},
	BandHigh: {
		"Refer to case management within one week",
		"Enroll in pantry delivery or school weekend backpack program",
		"Screen for housing and utility assistance",
	},
	BandCritical: {
		"Immediate case manager contact",
		"Emergency food box delivery",
		"Coordinate housing stabilization and utility shutoff protection",
	},
}
