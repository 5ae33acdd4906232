package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// LoadTestConfig loads the configuration from the .env file or environment variables for integration tests
// If TEST_DB_* variables are not set, returns a Config with empty database values
// which allows tests to use a fallback DSN
func LoadTestConfig() (*Config, error) {
	// Try to load .env file from the project root (optional)
	_ = godotenv.Load("../../.env")
	_ = godotenv.Load()

	cfg := &Config{}
	if err := loadDatabase(cfg, "TEST_"); err != nil {
		// Return empty config to allow fallback DSN in tests
		return &Config{}, nil
	}

	cfg.JWT.Secret = stringEnv("TEST_JWT_SECRET", "test-secret")
	cfg.JWT.AccessTokenExpiry = time.Hour
	cfg.Mastery.SufficiencyThreshold = 0.7

	if expiry := os.Getenv("TEST_JWT_ACCESS_TOKEN_EXPIRY"); expiry != "" {
		d, err := time.ParseDuration(expiry)
		if err != nil {
			return nil, fmt.Errorf("invalid TEST_JWT_ACCESS_TOKEN_EXPIRY: %w", err)
		}
		cfg.JWT.AccessTokenExpiry = d
	}

	return cfg, nil
}
