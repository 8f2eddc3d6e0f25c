// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Reference timezone for "today" and month partitioning.
	TimezoneName string

	// Duplicate suppression window per sender.
	DuplicateWindow time.Duration

	// Backend selection: memory, sheets or sqlite.
	DataBackend string

	// Database
	SQLiteDBPath string

	// AMQP. Empty URL disables the queue; budget accumulation then runs
	// inline on the request path.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID string

	// Remote store retry
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration

	// Budget targets cache
	TargetsCacheTTL time.Duration

	// Per-sender request limit per minute.
	SenderRateLimit int
}

func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8080"),
		TimezoneName:    getEnv("TIMEZONE", "Asia/Kolkata"),
		DuplicateWindow: getEnvDuration("DUPLICATE_WINDOW", 30*time.Second),
		DataBackend:     getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath:    getEnv("SQLITE_DB_PATH", "./data/kharcha.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "kharcha"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "budget_accumulate"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),

		RetryMaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 4),
		RetryBaseDelay:   getEnvDuration("RETRY_BASE_DELAY", 250*time.Millisecond),
		RetryMaxDelay:    getEnvDuration("RETRY_MAX_DELAY", 4*time.Second),

		TargetsCacheTTL: getEnvDuration("TARGETS_CACHE_TTL", 5*time.Minute),
		SenderRateLimit: getEnvInt("SENDER_RATE_LIMIT", 60),
	}
}

// Validate checks the configuration, collecting all problems into one error.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := time.LoadLocation(c.TimezoneName); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.TimezoneName, err))
	}

	if c.DuplicateWindow <= 0 {
		errors = append(errors, fmt.Sprintf("invalid duplicate window %v: must be positive", c.DuplicateWindow))
	}

	validBackends := []string{"memory", "sheets", "sqlite"}
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

	if c.DataBackend == "sqlite" {
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

	if c.DataBackend == "sheets" && c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
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

	if c.RetryMaxAttempts < 1 || c.RetryMaxAttempts > 10 {
		errors = append(errors, fmt.Sprintf("invalid retry max attempts %d: must be between 1 and 10", c.RetryMaxAttempts))
	}
	if c.RetryBaseDelay <= 0 || c.RetryBaseDelay > c.RetryMaxDelay {
		errors = append(errors, fmt.Sprintf("invalid retry delays base=%v max=%v", c.RetryBaseDelay, c.RetryMaxDelay))
	}

	if c.TargetsCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid targets cache TTL %v: must be positive", c.TargetsCacheTTL))
	}
	if c.SenderRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid sender rate limit %d: must be at least 1", c.SenderRateLimit))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Location resolves the configured timezone. Call Validate first.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimezoneName)
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
