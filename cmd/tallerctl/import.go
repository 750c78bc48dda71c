package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taller/internal/amqp"
	"taller/internal/cli"
	"taller/internal/sheets"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import employees, expenses and payroll from Google Sheets",
	Long: `Read the employees, expenses and payroll sheets and store them in the
configured backend. Rows that cannot be parsed are reported and skipped.
When AMQP_URL is set the worker is asked to recompute afterwards.`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, logger := app.cfg, app.logger
	ctx := cmd.Context()

	reader, err := cli.NewSheetReader(ctx, cfg)
	if err != nil {
		return err
	}
	backend, err := cli.InitBackend(logger, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	res, err := sheets.Import(ctx, reader, backend.Writer)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderImport(res))
	notify(ctx, amqp.ReasonImport)
	return nil
}
