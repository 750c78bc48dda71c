package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"taller/internal/cli"
	"taller/internal/engine"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Compute and print a report",
	Long: `Compute the period totals, metrics, receivables and wallet balances for
one month, optionally narrowed to a week and a division.`,
	Example: `  # Current month, whole shop
  tallerctl report

  # Second week of March for the laser division, as JSON
  tallerctl report --month 2025-03 --week 2 --division laser --json`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().String("month", "", "Month to report (YYYY-MM, default current)")
	reportCmd.Flags().Int("week", 0, "Week of the month (1-5, 0 for the whole month)")
	reportCmd.Flags().String("division", "", "Division (general, printing, laser, design)")
	reportCmd.Flags().Bool("json", false, "Print the raw result as JSON")
	reportCmd.Flags().Duration("timeout", 30*time.Second, "Timeout for loading the data")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	month, _ := cmd.Flags().GetString("month")
	week, _ := cmd.Flags().GetInt("week")
	division, _ := cmd.Flags().GetString("division")
	asJSON, _ := cmd.Flags().GetBool("json")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	cfg, logger := app.cfg, app.logger
	loc := cfg.Location()
	q, err := engine.ParseQuery(month, week, division, time.Now().In(loc), loc)
	if err != nil {
		return err
	}

	eng, err := cli.InitEngine(logger, cfg)
	if err != nil {
		return err
	}
	backend, err := cli.InitBackend(logger, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	res := eng.Compute(cli.NewLoader(logger, cfg, backend).Load(ctx), q)

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), renderReport(res))
	return err
}
