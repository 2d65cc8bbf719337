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

	// Upstream expense persistence API
	APIBaseURL    string
	APITimeout    time.Duration
	MonthCacheTTL time.Duration

	// Preferences database
	PrefsDBPath string

	// AMQP mutation events (optional; empty URL disables publishing)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Backend selection: "rest" talks to APIBaseURL, "memory" runs an
	// in-process store for demos and tests.
	DataBackend string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		APIBaseURL:    getEnv("API_BASE_URL", "https://localhost:7008/api/Expenses"),
		APITimeout:    getEnvDuration("API_TIMEOUT", 10*time.Second),
		MonthCacheTTL: getEnvDuration("MONTH_CACHE_TTL", 15*time.Second),

		PrefsDBPath: getEnv("PREFS_DB_PATH", "./data/kharcha.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "kharcha"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "expense_events"),

		DataBackend: getEnv("DATA_BACKEND", "rest"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case "rest", "memory":
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [rest memory]", c.DataBackend))
	}

	if c.DataBackend == "rest" {
		if c.APIBaseURL == "" {
			errors = append(errors, "API base URL cannot be empty when using rest backend")
		} else if parsed, err := url.Parse(c.APIBaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid API base URL '%s': %v", c.APIBaseURL, err))
		} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", parsed.Scheme))
		}
	}

	if c.APITimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be at least 1 second", c.APITimeout))
	}
	if c.MonthCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid month cache TTL %v: must not be negative", c.MonthCacheTTL))
	}

	if c.PrefsDBPath == "" {
		errors = append(errors, "preferences database path cannot be empty")
	} else {
		dir := filepath.Dir(c.PrefsDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create preferences database directory '%s': %v", dir, err))
				}
			}
		}
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
