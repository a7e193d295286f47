// Package config provides configuration for the script tuner.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/voicelab/scriptloop/internal/domain"
)

// Config holds the process-wide configuration, set once at run start.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Text-generation provider
	LLMBaseURL  string
	LLMAPIKey   string
	LLMModel    string
	LLMTimeout  time.Duration
	LLMRetryMax int

	// Loop budgets
	MaxRounds           int
	PersonaCount        int
	MaxTurns            int
	SimConcurrency      int
	ImprovementPatience int
	FailureTolerance    int

	// Quality thresholds and ranking
	Thresholds          domain.Thresholds
	Weights             domain.Weights
	RegressionTolerance float64

	// Logging
	LogLevel string
}

// Load loads configuration from the environment (and .env, when present).
func Load() *Config {
	// Missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	return &Config{
		HTTPPort:    getEnvInt("HTTP_PORT", 8080),
		DatabaseURL: getEnv("DATABASE_URL", "file:scriptloop.db?cache=shared&mode=rwc"),

		LLMBaseURL:  getEnv("LLM_BASE_URL", "http://localhost:4000"),
		LLMAPIKey:   getEnv("LLM_API_KEY", ""),
		LLMModel:    getEnv("LLM_MODEL", "gpt-4o"),
		LLMTimeout:  time.Duration(getEnvInt("LLM_TIMEOUT_MS", 30000)) * time.Millisecond,
		LLMRetryMax: getEnvInt("LLM_RETRY_MAX", 2),

		MaxRounds:           getEnvInt("MAX_ROUNDS", 10),
		PersonaCount:        getEnvInt("PERSONA_COUNT", 5),
		MaxTurns:            getEnvInt("MAX_TURNS", 10),
		SimConcurrency:      getEnvInt("SIM_CONCURRENCY", 3),
		ImprovementPatience: getEnvInt("IMPROVEMENT_PATIENCE", 3),
		FailureTolerance:    getEnvInt("FAILURE_TOLERANCE", 2),

		Thresholds: domain.Thresholds{
			MaxRepetitionRate:           getEnvFloat("THRESHOLD_REPETITION", 0.2),
			MinNegotiationEffectiveness: getEnvFloat("THRESHOLD_NEGOTIATION", 0.7),
			MinResolutionRate:           getEnvFloat("THRESHOLD_RESOLUTION", 0.5),
			MinComplianceScore:          getEnvFloat("THRESHOLD_COMPLIANCE", 0.9),
		},
		Weights: domain.Weights{
			Repetition:  getEnvFloat("COMPOSITE_WEIGHT_REPETITION", 0.25),
			Negotiation: getEnvFloat("COMPOSITE_WEIGHT_NEGOTIATION", 0.25),
			Resolution:  getEnvFloat("COMPOSITE_WEIGHT_RESOLUTION", 0.25),
			Compliance:  getEnvFloat("COMPOSITE_WEIGHT_COMPLIANCE", 0.25),
		},
		RegressionTolerance: getEnvFloat("ACCEPT_REGRESSION_TOLERANCE", 0.05),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks budgets and thresholds before any round executes.
func (c *Config) Validate() error {
	if c.MaxRounds < 0 {
		return &domain.ConfigError{Field: "max_rounds", Reason: "must be >= 0"}
	}
	if c.PersonaCount <= 0 {
		return &domain.ConfigError{Field: "persona_count", Reason: "must be positive"}
	}
	if c.MaxTurns <= 0 {
		return &domain.ConfigError{Field: "max_turns", Reason: "must be positive"}
	}
	if c.SimConcurrency <= 0 {
		return &domain.ConfigError{Field: "sim_concurrency", Reason: "must be positive"}
	}
	if c.ImprovementPatience <= 0 {
		return &domain.ConfigError{Field: "improvement_patience", Reason: "must be positive"}
	}
	if c.FailureTolerance <= 0 {
		return &domain.ConfigError{Field: "failure_tolerance", Reason: "must be positive"}
	}
	if c.RegressionTolerance < 0 || c.RegressionTolerance > 1 {
		return &domain.ConfigError{Field: "accept_regression_tolerance", Reason: "must be within [0,1]"}
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	return c.Weights.Validate()
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
