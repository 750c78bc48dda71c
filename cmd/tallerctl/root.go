package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"taller/internal/amqp"
	"taller/internal/cli"
	"taller/internal/config"
	"taller/internal/log"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "tallerctl",
	Short: "Reports and maintenance for the taller engine",
	Long: `tallerctl computes shop reports from the configured backend, imports
the expense and payroll spreadsheet and refreshes exchange rates.

Configuration comes from the environment (and .env when present), the same
variables the server and worker read.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cli.LoadEnvFile()
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			return err
		}
		app.cfg = cfg
		// Logs go to stderr so report output stays clean.
		app.logger = log.New(log.Config{
			Output:    os.Stderr,
			Format:    cfg.LogFormat,
			Level:     log.ParseLevel(cfg.LogLevel),
			Component: log.ComponentCLI,
		})
		log.SetDefault(app.logger)
		return nil
	},
}

// app carries what PersistentPreRunE resolved for the subcommands.
var app struct {
	cfg    *config.Config
	logger *log.Logger
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// notify publishes a recompute request when a broker is configured. Failing
// to publish is logged: the stored data is already updated.
func notify(ctx context.Context, reason string) {
	if app.cfg.AMQPURL == "" {
		return
	}
	client, err := amqp.NewClient(app.cfg.AMQPURL, app.cfg.AMQPExchange, app.cfg.AMQPQueue)
	if err != nil {
		app.logger.Warn("Recompute not queued", log.FieldError, err.Error())
		return
	}
	defer client.Close()
	if err := client.PublishRecompute(ctx, amqp.NewRecomputeRequest("", 0, "", reason)); err != nil {
		app.logger.Warn("Recompute not queued", log.FieldError, err.Error())
	}
}
