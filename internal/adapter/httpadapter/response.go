package httpadapter

import (
	"github.com/couchcryptid/food-risk-etl/internal/domain"
	"github.com/couchcryptid/food-risk-etl/internal/loader"
	"github.com/couchcryptid/food-risk-etl/internal/pipeline"
)

type recommendationResponse struct {
	County     string   `json:"county"`
	Band       string   `json:"band"`
	Actions    []string `json:"actions"`
	Customized bool     `json:"customized"`
}

type resultResponse struct {
	RunID           string                      `json:"run_id"`
	Kind            pipeline.Kind               `json:"kind"`
	AsOf            string                      `json:"as_of"`
	Variant         domain.Variant              `json:"variant"`
	Banding         string                      `json:"banding"`
	ScoreColumn     string                      `json:"score_column"`
	BandColumn      string                      `json:"band_column"`
	Summary         domain.Summary              `json:"summary"`
	Origins         map[loader.TableName]string `json:"origins,omitempty"`
	Notices         []string                    `json:"notices,omitempty"`
	Recommendations []recommendationResponse    `json:"recommendations"`
	Columns         []string                    `json:"columns"`
	Rows            []domain.Row                `json:"rows"`
}

func newResultResponse(res *pipeline.Result) resultResponse {
	out := resultResponse{
		RunID:           res.RunID,
		Kind:            res.Kind,
		AsOf:            res.AsOf.Format(domain.DateLayout),
		Variant:         res.Variant,
		Banding:         res.Banding.Name,
		ScoreColumn:     res.ScoreColumn,
		BandColumn:      res.BandColumn,
		Summary:         res.Summary,
		Notices:         res.Notices,
		Recommendations: make([]recommendationResponse, 0, len(res.Recommendations)),
		Columns:         res.Table.Columns,
		Rows:            res.Table.Rows,
	}
	if res.Tables != nil {
		out.Origins = make(map[loader.TableName]string, len(res.Tables.Origins))
		for name, origin := range res.Tables.Origins {
			out.Origins[name] = string(origin)
		}
	}
	for _, rec := range res.Recommendations {
		out.Recommendations = append(out.Recommendations, recommendationResponse{
			County:     rec.County,
			Band:       rec.Band,
			Actions:    rec.Actions,
			Customized: rec.Customized,
		})
	}
	if out.Rows == nil {
		out.Rows = []domain.Row{}
	}
	return out
}
