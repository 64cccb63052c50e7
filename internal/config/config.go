package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the application-level settings read from the
// environment. Engine parameters live in YAML strategy files instead.
type AppConfig struct {
	APIBaseURL      string
	APIKey          string
	FallbackBaseURL string
	FallbackAPIKey  string

	Symbol         string
	Interval       string
	BacktestDays   int
	InitialCapital float64
	FeeRate        float64
	SessionKey     string

	StrategyFile string

	DatabaseURL string
	LogLevel    string

	RequestTimeout time.Duration
	PollInterval   time.Duration
}

// Load initializes configuration from environment variables
func Load() (*AppConfig, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := &AppConfig{
		APIBaseURL:      getEnvWithDefault("API_BASE_URL", "https://api.twelvedata.com"),
		APIKey:          os.Getenv("API_KEY"),
		FallbackBaseURL: os.Getenv("FALLBACK_API_BASE_URL"),
		FallbackAPIKey:  os.Getenv("FALLBACK_API_KEY"),
		Symbol:          getEnvWithDefault("SYMBOL", "EUR/USD"),
		Interval:        getEnvWithDefault("INTERVAL", "1h"),
		BacktestDays:    getEnvIntWithDefault("BACKTEST_DAYS", 30),
		InitialCapital:  getEnvFloatWithDefault("INITIAL_CAPITAL", 10000),
		FeeRate:         getEnvFloatWithDefault("FEE_RATE", 0.001),
		SessionKey:      getEnvWithDefault("SESSION_KEY", "default"),
		StrategyFile:    os.Getenv("STRATEGY_FILE"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		LogLevel:        getEnvWithDefault("LOG_LEVEL", "info"),
		RequestTimeout:  time.Duration(getEnvIntWithDefault("REQUEST_TIMEOUT", 30)) * time.Second,
		PollInterval:    time.Duration(getEnvIntWithDefault("POLL_INTERVAL_SEC", 300)) * time.Second,
	}
	return cfg, nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
