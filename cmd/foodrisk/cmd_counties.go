package main

import (
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/food-risk-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/food-risk-etl/internal/loader"
	"github.com/couchcryptid/food-risk-etl/internal/overrides"
	"github.com/couchcryptid/food-risk-etl/internal/pipeline"
	"github.com/spf13/cobra"
)

func (c *cli) countiesCmd() *cobra.Command {
	var (
		uploads      map[string]string
		banding      string
		overridesDoc string
		csvOut       string
		pdfOut       string
		htmlOut      string
	)
	cmd := &cobra.Command{
		Use:   "counties",
		Short: "Band counties by spike probability and recommend actions",
		Long: `Resolves the county tables (--table, then --data-dir, then the working
directory, then derived or synthetic fallbacks), bands every county by its
8-week spike probability, and attaches recommended actions.

  foodrisk counties --table weekly=county_weekly.csv --pdf brief.pdf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := pipeline.CountyRequest{Banding: banding, Uploads: loader.Uploads{}}
			for key, path := range uploads {
				name, err := loader.ParseTableName(key)
				if err != nil {
					return err
				}
				data, err := os.ReadFile(path) //nolint:gosec // operator-supplied input path
				if err != nil {
					return fmt.Errorf("read %s table: %w", name, err)
				}
				req.Uploads[name] = data
			}
			if overridesDoc != "" {
				data, err := os.ReadFile(overridesDoc) //nolint:gosec // operator-supplied input path
				if err != nil {
					return fmt.Errorf("read overrides: %w", err)
				}
				req.Overrides = overrides.Load(data, c.cfg.OverridesPath, c.logger).Overrides
			}

			a, err := c.app(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Pipeline.ScoreCounties(cmd.Context(), req)
			if err != nil {
				return err
			}

			if csvOut != "" {
				if err := writeFile(csvOut, func(f *os.File) error { return csvfile.Write(f, res.Table) }); err != nil {
					return fmt.Errorf("write county csv: %w", err)
				}
			}
			if pdfOut != "" {
				if err := writeFile(pdfOut, func(f *os.File) error { return a.Renderer.RenderPDF(f, res) }); err != nil {
					return fmt.Errorf("write brief: %w", err)
				}
			}
			if htmlOut != "" {
				if err := writeFile(htmlOut, func(f *os.File) error { return a.Renderer.RenderDashboard(f, res) }); err != nil {
					return fmt.Errorf("write dashboard: %w", err)
				}
			}

			_, err = io.WriteString(cmd.OutOrStdout(), renderSummary(res))
			return err
		},
	}
	cmd.Flags().StringToStringVar(&uploads, "table", nil, "table=path pairs (latest, overview, metrics, weekly, playbook)")
	cmd.Flags().StringVar(&banding, "banding", "", "banding table; empty uses the probability table")
	cmd.Flags().StringVar(&overridesDoc, "overrides", "", "overrides YAML used for this run only")
	cmd.Flags().StringVar(&csvOut, "csv", "", "write the banded county table to this path")
	cmd.Flags().StringVar(&pdfOut, "pdf", "", "write the PDF brief to this path")
	cmd.Flags().StringVar(&htmlOut, "html", "", "write the chart dashboard to this path")
	return cmd
}
