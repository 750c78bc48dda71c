package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"taller/internal/amqp"
	"taller/internal/cli"
)

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Fetch today's exchange rates and store them",
	RunE:  runRates,
}

func init() {
	rootCmd.AddCommand(ratesCmd)
}

func runRates(cmd *cobra.Command, args []string) error {
	cfg, logger := app.cfg, app.logger
	if cfg.RatesURL == "" {
		return errors.New("RATES_URL is not set")
	}
	ctx := cmd.Context()

	backend, err := cli.InitBackend(logger, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	r, err := cli.NewRatesProvider(logger, cfg, backend.Rates).Fetch(ctx)
	if err != nil {
		return err
	}
	if err := backend.Rates.SaveRates(ctx, r); err != nil {
		return fmt.Errorf("save rates: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "primary %s  secondary %s  (%s)\n",
		r.Primary.StringFixed(2), r.Secondary.StringFixed(2), r.Source)
	notify(ctx, amqp.ReasonRates)
	return nil
}
