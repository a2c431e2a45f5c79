// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the simulator backend.
type Config struct {
	Port        int
	LogLevel    string
	DatabaseURL string
	RedisURL    string

	AlphaVantageKey string
	AlphaVantageURL string
	QuoteTimeout    time.Duration
	QuoteTTL        time.Duration

	JWTSecret string
	TokenTTL  time.Duration

	SnapshotSchedule string
	MarketTimezone   string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	quoteTimeout, err := getDuration("QUOTE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid QUOTE_TIMEOUT: %w", err)
	}

	quoteTTL, err := getDuration("QUOTE_TTL", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid QUOTE_TTL: %w", err)
	}

	tokenTTL, err := getDuration("TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}

	marketTZ := getStr("MARKET_TIMEZONE", "America/New_York")
	if _, err := time.LoadLocation(marketTZ); err != nil {
		return nil, fmt.Errorf("invalid MARKET_TIMEZONE: %w", err)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:             port,
		LogLevel:         logLevel,
		DatabaseURL:      getStr("DATABASE_URL", ""),
		RedisURL:         getStr("REDIS_URL", ""),
		AlphaVantageKey:  getStr("ALPHA_VANTAGE_API_KEY", ""),
		AlphaVantageURL:  getStr("ALPHA_VANTAGE_URL", ""),
		QuoteTimeout:     quoteTimeout,
		QuoteTTL:         quoteTTL,
		JWTSecret:        getStr("JWT_SECRET", ""),
		TokenTTL:         tokenTTL,
		SnapshotSchedule: getStr("SNAPSHOT_SCHEDULE", "30 9 * * 1-5"),
		MarketTimezone:   marketTZ,
		ReadTimeout:      readTimeout,
		WriteTimeout:     writeTimeout,
		IdleTimeout:      idleTimeout,
		ShutdownTimeout:  shutdownTimeout,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
