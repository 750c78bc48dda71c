// Package cli holds the process bootstrap shared by cmd/taller,
// cmd/taller-worker and cmd/tallerctl.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"taller/internal/classify"
	"taller/internal/config"
	"taller/internal/engine"
	"taller/internal/ledger"
	"taller/internal/log"
	"taller/internal/rates"
	ports "taller/internal/sheets"
	"taller/internal/sheets/google"
	"taller/internal/sheets/memory"
	"taller/internal/snapshot"
	"taller/internal/storage"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config) *log.Logger {
	c := log.DefaultConfig()
	if cfg != nil {
		c.Level = log.ParseLevel(cfg.LogLevel)
		c.Format = cfg.LogFormat
	}
	logger := log.New(c)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg
}

// InitSQLite initializes a SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath, storage.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err.Error(), "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// Backend is the record source selected by DATA_BACKEND.
type Backend struct {
	Source ports.Source
	Writer ports.RecordWriter
	Rates  rates.Store
	// Repo is nil for the memory backend.
	Repo  *storage.SQLiteRepository
	close func() error
}

func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// Ping reports whether the backend can serve reads.
func (b *Backend) Ping(ctx context.Context) error {
	if b.Repo == nil {
		return nil
	}
	return b.Repo.Ping(ctx)
}

func InitBackend(logger *log.Logger, cfg *config.Config) (*Backend, error) {
	switch cfg.DataBackend {
	case config.BackendMemory:
		st, err := memory.NewFromFiles(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("load seed data: %w", err)
		}
		logger.Info("Using in-memory backend", "dir", cfg.DataDir)
		return &Backend{Source: st, Writer: st, Rates: st}, nil
	default:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, storage.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		logger.Info("Using SQLite backend", "path", cfg.SQLiteDBPath)
		return &Backend{Source: repo, Writer: repo, Rates: repo, Repo: repo, close: repo.Close}, nil
	}
}

// InitEngine loads the keyword tables and wallet configuration.
func InitEngine(logger *log.Logger, cfg *config.Config) (*engine.Engine, error) {
	tables, err := classify.LoadTables(cfg.TablesFile)
	if err != nil {
		return nil, err
	}
	wallets, err := config.LoadWallets(cfg.WalletsFile, ledger.DefaultWallets())
	if err != nil {
		return nil, err
	}
	logger.Info("Engine ready",
		"table_version", tables.Version,
		"wallets", len(wallets))
	return engine.New(tables, wallets), nil
}

// NewRatesProvider returns a provider backed by the store. With no RATES_URL
// it only reads stored rates.
func NewRatesProvider(logger *log.Logger, cfg *config.Config, store rates.Store) *rates.Provider {
	return rates.NewProvider(cfg.RatesURL, store, cfg.RatesTimeout, cfg.RatesMaxRetries, rates.WithLogger(logger))
}

// NewLoader wires the snapshot loader with the rates provider in front of
// the backend's stored rates.
func NewLoader(logger *log.Logger, cfg *config.Config, b *Backend) *snapshot.Loader {
	return snapshot.NewLoader(b.Source,
		snapshot.WithRates(NewRatesProvider(logger, cfg, b.Rates)),
		snapshot.WithLogger(logger),
		snapshot.WithClock(func() time.Time { return time.Now().In(cfg.Location()) }),
	)
}

// NewSheetReader opens the Google Sheets client used by imports.
func NewSheetReader(ctx context.Context, cfg *config.Config) (*google.Client, error) {
	if !cfg.HasSheets() {
		return nil, fmt.Errorf("google sheets import is not configured: set GOOGLE_SPREADSHEET_ID")
	}
	return google.New(ctx, google.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		ExpensesSheet:   cfg.GoogleExpensesSheet,
		PayrollSheet:    cfg.GooglePayrollSheet,
		EmployeesSheet:  cfg.GoogleEmployeesSheet,
		CredentialsJSON: cfg.GoogleCredentialsJSON,
		CredentialsFile: cfg.GoogleCredentialsFile,
	})
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
