// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RateLimitConfig controls the per-caller request limiter.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// Config holds all application configuration.
type Config struct {
	Port           string
	DBPath         string
	CatalogPath    string // empty = embedded default catalog
	SessionTimeout time.Duration
	SweepInterval  time.Duration
	MaxPINAttempts int
	DefaultPIN     string // PIN fallback for unknown callers; empty fails closed
	InterestRate   decimal.Decimal
	PageSize       int
	HistoryLimit   int
	SeedDemoData   bool
	RateLimit      RateLimitConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	rate, err := decimal.NewFromString(getEnv("INTEREST_RATE", "0.08"))
	if err != nil {
		return nil, fmt.Errorf("invalid INTEREST_RATE: %w", err)
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		DBPath:         getEnv("DB_PATH", "./data/microloan.db"),
		CatalogPath:    getEnv("CATALOG_PATH", ""),
		SessionTimeout: getEnvDuration("SESSION_TIMEOUT", 5*time.Minute),
		SweepInterval:  getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		MaxPINAttempts: getEnvInt("MAX_PIN_ATTEMPTS", 3),
		DefaultPIN:     getEnv("DEFAULT_PIN", "1234"),
		InterestRate:   rate,
		PageSize:       getEnvInt("PAGE_SIZE", 2),
		HistoryLimit:   getEnvInt("HISTORY_LIMIT", 5),
		SeedDemoData:   getEnvBool("SEED_DEMO_DATA", true),
		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", true),
			RPS:     getEnvFloat("RATE_LIMIT_RPS", 5),
			Burst:   getEnvInt("RATE_LIMIT_BURST", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be > 0")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be > 0")
	}
	if c.MaxPINAttempts <= 0 {
		return fmt.Errorf("MAX_PIN_ATTEMPTS must be > 0")
	}
	if c.DefaultPIN != "" && !isFourDigits(c.DefaultPIN) {
		return fmt.Errorf("DEFAULT_PIN must be empty or exactly 4 digits")
	}
	if c.InterestRate.IsNegative() {
		return fmt.Errorf("INTEREST_RATE cannot be negative")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be > 0")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be > 0")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be > 0 when enabled")
	}
	return nil
}

func isFourDigits(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
