package main

import (
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/food-risk-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/food-risk-etl/internal/domain"
	"github.com/couchcryptid/food-risk-etl/internal/pipeline"
	"github.com/spf13/cobra"
)

func (c *cli) scoreCmd() *cobra.Command {
	var (
		variant string
		banding string
		out     string
		pdf     string
	)
	cmd := &cobra.Command{
		Use:   "score [file.csv|-]",
		Short: "Score household or region rows with the mean or weighted variant",
		Long: `Reads a CSV table, validates it against the variant's required columns,
and writes the table with Risk_Score, Risk_Band and Attention_Flag appended.

Reads stdin when the file is "-" or omitted. The scored CSV goes to --out
or stdout; the summary goes to stderr.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := domain.ParseVariant(variant)
			if err != nil {
				return err
			}

			var table domain.Table
			if len(args) == 0 || args[0] == "-" {
				table, err = csvfile.Read(cmd.InOrStdin())
			} else {
				table, err = csvfile.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			a, err := c.app(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Pipeline.ScoreRows(cmd.Context(), pipeline.Request{Table: table, Variant: v, Banding: banding})
			if err != nil {
				return err
			}

			if out == "" {
				err = csvfile.Write(cmd.OutOrStdout(), res.Table)
			} else {
				err = writeFile(out, func(f *os.File) error { return csvfile.Write(f, res.Table) })
			}
			if err != nil {
				return fmt.Errorf("write scored csv: %w", err)
			}
			if pdf != "" {
				if err := writeFile(pdf, func(f *os.File) error { return a.Renderer.RenderPDF(f, res) }); err != nil {
					return fmt.Errorf("write brief: %w", err)
				}
			}

			_, err = io.WriteString(cmd.ErrOrStderr(), renderSummary(res))
			return err
		},
	}
	cmd.Flags().StringVar(&variant, "variant", string(c.cfg.Variant), "scoring variant (mean or weighted)")
	cmd.Flags().StringVar(&banding, "banding", c.cfg.Banding, "banding table (score-cut, threshold, probability); empty uses the variant default")
	cmd.Flags().StringVarP(&out, "out", "o", "", "scored CSV path (default stdout)")
	cmd.Flags().StringVar(&pdf, "pdf", "", "also write the PDF brief to this path")
	return cmd
}
