package main

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/food-risk-etl/internal/domain"
	"github.com/couchcryptid/food-risk-etl/internal/store"
	"github.com/spf13/cobra"
)

func (c *cli) submitCmd() *cobra.Command {
	var (
		sub  store.Submission
		date string
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Append a community worker report to the submissions file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sub.Date = domain.Now()
			if date != "" {
				d, err := domain.ParseDate(date)
				if err != nil {
					return fmt.Errorf("--date: %w", err)
				}
				sub.Date = d
			}
			subs := store.NewSubmissions(c.cfg.SubmissionsPath)
			if err := subs.Append(sub); err != nil {
				return err
			}
			c.metrics.Submissions.Inc()
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s report for %s to %s\n", sub.Region, sub.Date.Format(domain.DateLayout), subs.Path())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&sub.Worker, "worker", "", "community worker name")
	f.StringVar(&sub.Region, "region", "", "region ("+strings.Join(store.Regions, ", ")+")")
	f.StringVar(&date, "date", "", "report date (default today)")
	f.Float64Var(&sub.FRL, "frl", 50, "free/reduced lunch %")
	f.Float64Var(&sub.Attendance, "attendance", 85, "attendance rate %")
	f.Float64Var(&sub.Unemployment, "unemployment", 8, "unemployment rate % (0-30)")
	f.IntVar(&sub.Evictions, "evictions", 25, "eviction notices per 100 households")
	f.IntVar(&sub.FoodScarcity, "food-scarcity", 20, "food scarcity reports")
	f.IntVar(&sub.Shutoffs, "shutoffs", 15, "utility shutoffs")
	f.StringVar(&sub.Notes, "notes", "", "additional notes")
	_ = cmd.MarkFlagRequired("region")
	return cmd
}

func (c *cli) submissionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submissions",
		Short: "Show report counts per region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			subs := store.NewSubmissions(c.cfg.SubmissionsPath)
			counts, err := subs.RegionCounts()
			if err != nil {
				return err
			}
			if len(counts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("no submissions yet"))
				return nil
			}
			rows := make([][]string, 0, len(counts))
			for _, rc := range counts {
				rows = append(rows, []string{rc.Region, fmt.Sprint(rc.Reports)})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"region", "reports"}, rows))
			return nil
		},
	}
}
