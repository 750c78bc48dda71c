package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Data backends accepted by DATA_BACKEND.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets import
	GoogleSpreadsheetID   string
	GoogleExpensesSheet   string
	GooglePayrollSheet    string
	GoogleEmployeesSheet  string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string

	// Exchange rates
	RatesURL        string
	RatesTimeout    time.Duration
	RatesMaxRetries int

	// Worker
	RecomputeInterval time.Duration
	ReportRetention   time.Duration
	// WorkerMetricsAddr exposes the worker's /metrics when set, e.g. ":9091".
	WorkerMetricsAddr string

	// Result cache
	CacheTTL  time.Duration
	CacheSize int

	// Classification tables and wallets
	TablesFile  string
	WalletsFile string

	Timezone string

	// Backend selection
	DataBackend string
	DataDir     string

	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/taller.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "taller"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "recompute"),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleExpensesSheet:   getEnv("GOOGLE_EXPENSES_SHEET", "Gastos"),
		GooglePayrollSheet:    getEnv("GOOGLE_PAYROLL_SHEET", "Nomina"),
		GoogleEmployeesSheet:  getEnv("GOOGLE_EMPLOYEES_SHEET", "Empleados"),
		GoogleCredentialsFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
		GoogleCredentialsJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		RatesURL:        getEnv("RATES_URL", ""),
		RatesTimeout:    getEnvDuration("RATES_TIMEOUT", 10*time.Second),
		RatesMaxRetries: getEnvInt("RATES_MAX_RETRIES", 3),

		RecomputeInterval: getEnvDuration("RECOMPUTE_INTERVAL", 15*time.Minute),
		ReportRetention:   getEnvDuration("REPORT_RETENTION", 30*24*time.Hour),
		WorkerMetricsAddr: getEnv("WORKER_METRICS_ADDR", ""),

		CacheTTL:  getEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheSize: getEnvInt("CACHE_SIZE", 256),

		TablesFile:  getEnv("TABLES_FILE", ""),
		WalletsFile: getEnv("WALLETS_FILE", ""),

		Timezone: getEnv("TIMEZONE", "America/Caracas"),

		DataBackend: getEnv("DATA_BACKEND", BackendSQLite),
		DataDir:     getEnv("DATA_DIR", "./data/seed"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil || c.Timezone == "" {
		return time.UTC
	}
	return loc
}

// HasSheets reports whether a spreadsheet import is configured.
func (c *Config) HasSheets() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{BackendMemory, BackendSQLite}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.DataBackend == BackendMemory && c.DataDir == "" {
		errors = append(errors, "data directory cannot be empty when using memory backend")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleCredentialsFile != "" {
		if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
		}
	}

	if c.RatesURL != "" {
		if u, err := url.Parse(c.RatesURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid rates URL '%s': must be http or https", c.RatesURL))
		}
	}
	if c.RatesTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rates timeout %v: must be positive", c.RatesTimeout))
	}
	if c.RatesMaxRetries < 0 || c.RatesMaxRetries > 10 {
		errors = append(errors, fmt.Sprintf("invalid rates max retries %d: must be between 0 and 10", c.RatesMaxRetries))
	}

	if c.RecomputeInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid recompute interval %v: must be at least 1 second", c.RecomputeInterval))
	} else if c.RecomputeInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid recompute interval %v: must be at most 24 hours", c.RecomputeInterval))
	}

	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be positive", c.CacheTTL))
	}

	for _, f := range []struct{ name, path string }{{"tables", c.TablesFile}, {"wallets", c.WalletsFile}} {
		if f.path == "" {
			continue
		}
		if _, err := os.Stat(f.path); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("%s file does not exist: %s", f.name, f.path))
		}
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
		}
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json", "console":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text, json or console", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
