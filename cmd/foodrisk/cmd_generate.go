package main

import (
	"fmt"
	"os"

	"github.com/couchcryptid/food-risk-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/food-risk-etl/internal/domain"
	"github.com/spf13/cobra"
)

func (c *cli) generateCmd() *cobra.Command {
	var (
		out      string
		end      string
		counties []string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a reproducible synthetic weekly county series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := domain.SyntheticOptions{
				Seed:     c.cfg.SyntheticSeed,
				Weeks:    c.cfg.SyntheticWeeks,
				Counties: counties,
			}
			if end != "" {
				d, err := domain.ParseDate(end)
				if err != nil {
					return fmt.Errorf("--end: %w", err)
				}
				opts.End = d
			}
			t := domain.GenerateWeekly(opts).Table()

			if out == "" || out == "-" {
				return csvfile.Write(cmd.OutOrStdout(), t)
			}
			if err := writeFile(out, func(f *os.File) error { return csvfile.Write(f, t) }); err != nil {
				return fmt.Errorf("write series: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d rows to %s\n", t.Len(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default stdout)")
	cmd.Flags().StringVar(&end, "end", "", "last week of the series (default the Monday of the current week)")
	cmd.Flags().StringSliceVar(&counties, "county", nil, "counties to generate (default the built-in list)")
	return cmd
}
