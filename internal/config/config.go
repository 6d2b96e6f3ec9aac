package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	HistoryMemory = "memory"
	HistoryFile   = "file"
	HistorySQLite = "sqlite"
)

var (
	historyBackends = []string{HistoryMemory, HistoryFile, HistorySQLite}
	logLevels       = []string{"debug", "info", "warn", "error"}
)

type Config struct {
	// HTTP Server
	Port string
	// TrustedProxies are CIDRs whose X-Forwarded-For header is believed.
	TrustedProxies []string

	// Calculation
	ReferenceYear int

	// History storage
	HistoryBackend string
	HistoryFile    string
	SQLiteDBPath   string

	// AMQP event feed; disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets archive
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Result cache
	ResultCacheSize int
	ResultCacheTTL  time.Duration

	LogLevel        string
	ShutdownTimeout time.Duration
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),
		ReferenceYear:  getEnvInt("REFERENCE_YEAR", 2024),

		HistoryBackend: getEnv("HISTORY_BACKEND", HistoryFile),
		HistoryFile:    getEnv("HISTORY_FILE", "./data/nebenkosten_history.json"),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/nebenkosten.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "nebenkosten"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "calculations"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Nebenkosten"),

		ResultCacheSize: getEnvInt("RESULT_CACHE_SIZE", 128),
		ResultCacheTTL:  getEnvDuration("RESULT_CACHE_TTL", 10*time.Minute),

		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	if c.ReferenceYear < 1901 || c.ReferenceYear > 2099 {
		errors = append(errors, fmt.Sprintf("invalid reference year %d: must be between 1901 and 2099", c.ReferenceYear))
	}

	if !slices.Contains(historyBackends, c.HistoryBackend) {
		errors = append(errors, fmt.Sprintf("invalid history backend '%s': must be one of %v", c.HistoryBackend, historyBackends))
	}
	if c.HistoryBackend == HistoryFile && c.HistoryFile == "" {
		errors = append(errors, "history file path cannot be empty when using file backend")
	}
	if c.HistoryBackend == HistorySQLite && c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
	}

	errors = append(errors, c.validateAMQP()...)

	if c.ResultCacheSize < 0 || c.ResultCacheSize > 10000 {
		errors = append(errors, fmt.Sprintf("invalid result cache size %d: must be between 0 and 10000", c.ResultCacheSize))
	}
	if c.ResultCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid result cache TTL %v: must not be negative", c.ResultCacheTTL))
	}

	if !slices.Contains(logLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, logLevels))
	}
	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	return combine(errors)
}

// ValidateArchiver checks the settings the archive consumer cannot run without.
func (c *Config) ValidateArchiver() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required for the archiver")
	}
	errors = append(errors, c.validateAMQP()...)
	if !slices.Contains(logLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, logLevels))
	}
	return combine(errors)
}

// AMQPEnabled reports whether calculation events should be published.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

func (c *Config) validateAMQP() []string {
	if c.AMQPURL == "" {
		return nil
	}
	var errors []string
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
	return errors
}

func combine(errors []string) error {
	if len(errors) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
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
