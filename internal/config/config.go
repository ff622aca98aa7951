package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"bankroll/internal/core"

	"github.com/shopspring/decimal"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Storage
	DataBackend  string
	SQLiteDBPath string
	PostgresDSN  string
	StoreTimeout time.Duration

	// Cache
	CacheBackend   string
	CacheSize      int
	RecordsTTL     time.Duration
	SubmitDebounce time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	// Ledger
	InitialBank string
	Timezone    string

	// Auth
	SessionTTL              time.Duration
	AuthMinPassword         int
	AuthRequireConfirmation bool
	AuthSignupEnabled       bool

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export (worker)
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Worker
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string
}

var (
	validDataBackends  = []string{"memory", "sqlite", "postgres"}
	validCacheBackends = []string{"memory", "redis"}
	validLogFormats    = []string{"text", "json"}
)

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/bankroll.db"),
		PostgresDSN:  getEnv("POSTGRES_DSN", ""),
		StoreTimeout: getEnvDuration("STORE_TIMEOUT", 7*time.Second),

		CacheBackend:   getEnv("CACHE_BACKEND", "memory"),
		CacheSize:      getEnvInt("CACHE_SIZE", 1000),
		RecordsTTL:     getEnvDuration("RECORDS_CACHE_TTL", 5*time.Minute),
		SubmitDebounce: getEnvDuration("SUBMIT_DEBOUNCE", 2*time.Second),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),

		InitialBank: getEnv("INITIAL_BANK", core.DefaultInitialBank.StringFixed(2)),
		Timezone:    getEnv("TIMEZONE", "UTC"),

		SessionTTL:              getEnvDuration("SESSION_TTL", 24*time.Hour),
		AuthMinPassword:         getEnvInt("AUTH_MIN_PASSWORD", 6),
		AuthRequireConfirmation: getEnvBool("AUTH_REQUIRE_CONFIRMATION", false),
		AuthSignupEnabled:       getEnvBool("AUTH_SIGNUP_ENABLED", true),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "bankroll"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "export_records"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Bets"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate checks the settings shared by both binaries and returns every
// problem found in one error.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validDataBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validDataBackends))
	}
	switch c.DataBackend {
	case "sqlite":
		if strings.TrimSpace(c.SQLiteDBPath) == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case "postgres":
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errors = append(errors, "POSTGRES_DSN is required when using postgres backend")
		}
	}
	if c.StoreTimeout < 100*time.Millisecond || c.StoreTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid store timeout %v: must be between 100ms and 1m", c.StoreTimeout))
	}

	if !slices.Contains(validCacheBackends, c.CacheBackend) {
		errors = append(errors, fmt.Sprintf("invalid cache backend '%s': must be one of %v", c.CacheBackend, validCacheBackends))
	}
	if c.CacheBackend == "redis" && strings.TrimSpace(c.RedisAddr) == "" {
		errors = append(errors, "REDIS_ADDR is required when using redis cache backend")
	}
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.SubmitDebounce < 0 {
		errors = append(errors, fmt.Sprintf("invalid submit debounce %v: must not be negative", c.SubmitDebounce))
	}

	if bank, err := core.ParseAmount(c.InitialBank); err != nil {
		errors = append(errors, fmt.Sprintf("invalid initial bank '%s': must be a decimal amount", c.InitialBank))
	} else if bank.IsNegative() {
		errors = append(errors, fmt.Sprintf("invalid initial bank %s: must not be negative", bank.StringFixed(2)))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.AuthMinPassword < 1 || c.AuthMinPassword > 72 {
		errors = append(errors, fmt.Sprintf("invalid minimum password length %d: must be between 1 and 72", c.AuthMinPassword))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
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

	if !slices.Contains(validLogFormats, strings.ToLower(c.LogFormat)) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateWorker adds the checks only the export worker needs.
func (c *Config) ValidateWorker() error {
	var errors []string
	if err := c.Validate(); err != nil {
		errors = append(errors, err.Error())
	}
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the export worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for the export worker")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Bank returns the configured initial bank. Call Validate first.
func (c *Config) Bank() decimal.Decimal {
	d, err := core.ParseAmount(c.InitialBank)
	if err != nil {
		return core.DefaultInitialBank
	}
	return d
}

// Location returns the configured timezone, UTC when invalid.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
