// Package domain models food insecurity risk data: household and county tables,
// risk scoring strategies, banding tables, and recommended actions.
//
// # Data Sources
//
// Household tables are uploaded by schools, community centers, and food access
// teams. County tables come from a weekly indicator feed (SNAP, school meals,
// food shelf visits, unemployment claims, CPI, evictions, shutoffs, drought,
// Household Pulse) plus a per-county overview and an operational playbook.
// When no feed is available the synthetic generator produces a demo series.
//
// # Tables
//
// A [Table] keeps every cell as the original string so that scored output can be
// written back with the input schema intact. Derived columns are appended:
//
//	Risk_Score, Risk_Band, Attention_Flag              (row variants)
//	Prob_Spike_8w, RAG_Status, RAG_Badge,
//	Recommended_Action_Summary, Actions_Customized     (county variant)
//
// Numeric cells are parsed on demand with [Float]; empty or non-numeric cells
// read as NaN.
//
// # Scoring Strategies
//
//	mean:      mean(Unemployment, Food_Expense_Burden, Shutoff_Notices, Eviction_Notices)
//	           inputs already on a 0–100 scale; any missing input -> unscored row
//	weighted:  15 × (FRL_Status + SNAP_Use + Unemployed + Pantry_Use +
//	           Utility_Shutoff_Risk + Housing_Instability); all six present = 90
//	zlogistic: z = (latest − μ) / σ over the last 8 weekly values of one indicator,
//	           σ = 1 when the window has no spread; p = 1 / (1 + e^−z)
//
// The weighted strategy refuses the whole table when a required column is
// absent and names every missing column in a [MissingColumnsError].
//
// # Banding Tables
//
// Each banding table is named configuration, not a canonical truth:
//
//	score-cut:   <25 Green | <50 Yellow | <75 Orange | ≥75 Red
//	threshold:   <40 Low   | <70 Medium | <90 High   | ≥90 Critical
//	probability: <0.30 Green | ≤0.60 Amber | >0.60 Red
//
// Thresholds are checked from most to least severe and the first match wins, so
// every table is monotonic in score. NaN scores are never banded.
//
// # Recommended Actions
//
// Overrides are keyed by (county, band) with "Any" as the band wildcard. Lookup
// order is exact band, then wildcard, then the band-only default table.
package domain
