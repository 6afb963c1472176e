package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/couchcryptid/food-risk-etl/internal/overrides"
	"github.com/couchcryptid/food-risk-etl/internal/store"
	"github.com/spf13/cobra"
)

func (c *cli) runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded scoring runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.RunStorePath == "" {
				return errors.New("run history is disabled: set RUN_STORE_PATH or --run-store")
			}
			runs, err := store.OpenRunStore(cmd.Context(), c.cfg.RunStorePath, c.logger)
			if err != nil {
				return err
			}
			defer runs.Close()

			recent, err := runs.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(recent))
			for _, r := range recent {
				top := ""
				if len(r.Top) > 0 {
					top = r.Top[0].Entity + " " + band(r.Top[0].Band)
				}
				rows = append(rows, []string{
					r.RanAt.Local().Format("2006-01-02 15:04"),
					string(r.Kind),
					string(r.Variant),
					strconv.Itoa(r.Scored) + "/" + strconv.Itoa(r.Rows),
					strconv.FormatFloat(r.MeanScore, 'f', 2, 64),
					top,
					r.RunID,
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"ran", "kind", "variant", "scored", "mean", "top", "run"}, rows))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "runs to show")
	return cmd
}

func (c *cli) overridesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overrides",
		Short: "Print the effective county overrides as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded := overrides.Load(nil, c.cfg.OverridesPath, c.logger)
			data, err := overrides.Marshal(loaded.Overrides)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "# source: %s, %d entries\n", loaded.Source, len(loaded.Overrides))
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
