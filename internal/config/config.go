// Package config handles loading and validating configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the tokenmind agent.
type Config struct {
	// Event ingestion
	EventWSURL        string
	EventRESTURL      string
	EventAPIKey       string
	EventPollInterval time.Duration
	TrackedTokens     []string

	// Signal engine
	WindowSize     time.Duration
	DecayHalfLife  time.Duration
	MinConfidence  float64
	DecayRate      float64
	ReinforceBoost float64

	// Decision engine
	MinSignalConfidence float64
	IntentCooldown      time.Duration

	// Risk guardrails
	MaxPositionSizePct  float64
	MaxTotalExposurePct float64
	MaxDailyLossPct     float64
	DailyTradeLimit     int

	// Paper execution
	InitialCapital float64
	SlippagePct    float64

	// Loop
	TickInterval time.Duration

	// Database
	DBPath string

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables with fallback to .env file.
// Priority order: Environment variables > .env file > hardcoded defaults
func Load() (*Config, error) {
	// Attempt to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		// Ingestion
		EventWSURL:        getEnv("EVENT_WS_URL", ""),
		EventRESTURL:      getEnv("EVENT_REST_URL", ""),
		EventAPIKey:       getEnv("EVENT_API_KEY", ""),
		EventPollInterval: time.Duration(getEnvInt("EVENT_POLL_INTERVAL_SECONDS", 5)) * time.Second,
		TrackedTokens:     getEnvList("TRACKED_TOKENS"),

		// Signal engine
		WindowSize:     time.Duration(getEnvInt("SIGNAL_WINDOW_SECONDS", 300)) * time.Second,
		DecayHalfLife:  time.Duration(getEnvInt("DECAY_HALF_LIFE_SECONDS", 120)) * time.Second,
		MinConfidence:  getEnvFloat("MIN_CONFIDENCE", 0.3),
		DecayRate:      getEnvFloat("DECAY_RATE", 0.5),
		ReinforceBoost: getEnvFloat("REINFORCE_BOOST", 0.1),

		// Decision engine
		MinSignalConfidence: getEnvFloat("MIN_SIGNAL_CONFIDENCE", 0.5),
		IntentCooldown:      time.Duration(getEnvInt("INTENT_COOLDOWN_SECONDS", 60)) * time.Second,

		// Risk
		MaxPositionSizePct:  getEnvFloat("MAX_POSITION_SIZE_PCT", 10),
		MaxTotalExposurePct: getEnvFloat("MAX_TOTAL_EXPOSURE_PCT", 50),
		MaxDailyLossPct:     getEnvFloat("MAX_DAILY_LOSS_PCT", 5),
		DailyTradeLimit:     getEnvInt("DAILY_TRADE_LIMIT", 10),

		// Paper execution
		InitialCapital: getEnvFloat("INITIAL_CAPITAL", 1000),
		SlippagePct:    getEnvFloat("SLIPPAGE_PCT", 0.5),

		// Loop
		TickInterval: time.Duration(getEnvInt("TICK_INTERVAL_SECONDS", 30)) * time.Second,

		// Database
		DBPath: getEnv("DB_PATH", "./data/agent.db"),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "INFO"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set and valid.
func (c *Config) Validate() error {
	if c.WindowSize <= 0 {
		return fmt.Errorf("SIGNAL_WINDOW_SECONDS must be positive")
	}

	if c.DecayHalfLife <= 0 {
		return fmt.Errorf("DECAY_HALF_LIFE_SECONDS must be positive")
	}

	if c.MinConfidence < 0 || c.MinConfidence >= 1 {
		return fmt.Errorf("MIN_CONFIDENCE must be in [0, 1)")
	}

	if c.DecayRate <= 0 || c.DecayRate >= 1 {
		return fmt.Errorf("DECAY_RATE must be in (0, 1)")
	}

	if c.InitialCapital <= 0 {
		return fmt.Errorf("INITIAL_CAPITAL must be positive")
	}

	if c.MaxPositionSizePct <= 0 || c.MaxPositionSizePct > 100 {
		return fmt.Errorf("MAX_POSITION_SIZE_PCT must be in (0, 100]")
	}

	if c.MaxTotalExposurePct <= 0 || c.MaxTotalExposurePct > 100 {
		return fmt.Errorf("MAX_TOTAL_EXPOSURE_PCT must be in (0, 100]")
	}

	if c.MaxDailyLossPct <= 0 {
		return fmt.Errorf("MAX_DAILY_LOSS_PCT must be positive")
	}

	if c.SlippagePct < 0 {
		return fmt.Errorf("SLIPPAGE_PCT must not be negative")
	}

	return nil
}

// MaskedEventAPIKey returns the API key with most characters hidden for logging.
func (c *Config) MaskedEventAPIKey() string {
	return maskSecret(c.EventAPIKey)
}

// maskSecret hides all but the first and last 4 characters of a secret.
func maskSecret(s string) string {
	if len(s) <= 8 {
		if len(s) == 0 {
			return "(not set)"
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat retrieves an environment variable as a float64 or returns a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvList retrieves a comma-separated environment variable as a string slice.
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
