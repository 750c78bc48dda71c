package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"taller/internal/amqp"
)

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Ask the worker to recompute and store a report",
	RunE:  runRecompute,
}

func init() {
	recomputeCmd.Flags().String("month", "", "Month (YYYY-MM, default current)")
	recomputeCmd.Flags().Int("week", 0, "Week of the month (1-5, 0 for the whole month)")
	recomputeCmd.Flags().String("division", "", "Division")
	rootCmd.AddCommand(recomputeCmd)
}

func runRecompute(cmd *cobra.Command, args []string) error {
	if app.cfg.AMQPURL == "" {
		return errors.New("AMQP_URL is not set")
	}
	month, _ := cmd.Flags().GetString("month")
	week, _ := cmd.Flags().GetInt("week")
	division, _ := cmd.Flags().GetString("division")

	req := amqp.NewRecomputeRequest(month, week, division, amqp.ReasonManual)
	// Same checks the worker applies on receipt.
	body, err := req.ToJSON()
	if err != nil {
		return err
	}
	if _, err := amqp.RecomputeRequestFromJSON(body); err != nil {
		return err
	}

	client, err := amqp.NewClient(app.cfg.AMQPURL, app.cfg.AMQPExchange, app.cfg.AMQPQueue)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.PublishRecompute(cmd.Context(), req); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "recompute queued")
	return nil
}
