// Package config provides configuration for the application
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Logging  LoggingConfig
	CORS     CORSConfig
	JWT      JWTConfig
	SMTP     SMTPConfig
	OpenAI   OpenAIConfig
	Mastery  MasteryConfig
	APIKey   string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	UserCacheTTL time.Duration
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port int
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// JWTConfig holds JWT token configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// SMTPConfig holds SMTP server configuration
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// OpenAIConfig holds settings of the AI evaluator and question generator
type OpenAIConfig struct {
	APIKey        string
	Model         string
	FallbackModel string
	Timeout       time.Duration
}

// MasteryConfig holds answer grading settings
type MasteryConfig struct {
	// SufficiencyThreshold is the score at or above which an answer is sufficient.
	SufficiencyThreshold float64
	// RebuildCron is the cron expression of the periodic reading level rebuild.
	RebuildCron string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	godotenv.Load()

	cfg := &Config{}

	if err := loadDatabase(cfg, ""); err != nil {
		return nil, err
	}

	// Server configuration
	serverPort, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	cfg.Server.Port = serverPort

	// Logging configuration
	cfg.Logging.Level = stringEnv("LOG_LEVEL", "info")

	// CORS configuration
	cfg.CORS.AllowedOrigins = parseOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"))

	// JWT configuration
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	cfg.JWT.Secret = jwtSecret

	// Access token expiry (default: 7 days)
	accessExpiry, err := durationEnv("JWT_ACCESS_TOKEN_EXPIRY", 168*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.JWT.AccessTokenExpiry = accessExpiry

	// API Key configuration (optional, protects admin endpoints)
	cfg.APIKey = os.Getenv("API_KEY")

	// OpenAI configuration
	cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAI.Model = stringEnv("OPENAI_MODEL", "gpt-4o")
	cfg.OpenAI.FallbackModel = stringEnv("OPENAI_FALLBACK_MODEL", "gpt-3.5-turbo")
	openAITimeout, err := durationEnv("OPENAI_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.OpenAI.Timeout = openAITimeout

	// Mastery configuration
	threshold := 0.7
	if thresholdStr := os.Getenv("SUFFICIENCY_THRESHOLD"); thresholdStr != "" {
		threshold, err = strconv.ParseFloat(thresholdStr, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid SUFFICIENCY_THRESHOLD: %w", err)
		}
	}
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("SUFFICIENCY_THRESHOLD must be between 0 and 1, got %v", threshold)
	}
	cfg.Mastery.SufficiencyThreshold = threshold
	cfg.Mastery.RebuildCron = stringEnv("READING_LEVEL_REBUILD_CRON", "0 3 * * *")

	// Redis configuration
	cfg.Redis.Host = stringEnv("REDIS_HOST", "localhost")
	redisPort, err := intEnv("REDIS_PORT", 6379)
	if err != nil {
		return nil, err
	}
	cfg.Redis.Port = redisPort
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD") // optional
	redisDB, err := intEnv("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	cfg.Redis.DB = redisDB
	cacheTTL, err := durationEnv("USER_CACHE_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.Redis.UserCacheTTL = cacheTTL

	// SMTP configuration (used by the worker)
	cfg.SMTP.Host = stringEnv("SMTP_HOST", "localhost")
	smtpPort, err := intEnv("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}
	cfg.SMTP.Port = smtpPort
	cfg.SMTP.Username = os.Getenv("SMTP_USERNAME") // optional
	cfg.SMTP.Password = os.Getenv("SMTP_PASSWORD") // optional
	cfg.SMTP.From = stringEnv("SMTP_FROM", "noreply@lunareading.app")

	return cfg, nil
}

// DSN returns the database connection string
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
	)
}

// RedisAddr returns the host:port address of Redis
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// loadDatabase reads the required database settings, each variable prefixed with "prefix"
func loadDatabase(cfg *Config, prefix string) error {
	dbHost := os.Getenv(prefix + "DB_HOST")
	if dbHost == "" {
		return fmt.Errorf("%sDB_HOST is required", prefix)
	}
	cfg.Database.Host = dbHost

	dbPortStr := os.Getenv(prefix + "DB_PORT")
	if dbPortStr == "" {
		return fmt.Errorf("%sDB_PORT is required", prefix)
	}
	dbPort, err := strconv.Atoi(dbPortStr)
	if err != nil {
		return fmt.Errorf("invalid %sDB_PORT: %w", prefix, err)
	}
	cfg.Database.Port = dbPort

	dbUser := os.Getenv(prefix + "DB_USER")
	if dbUser == "" {
		return fmt.Errorf("%sDB_USER is required", prefix)
	}
	cfg.Database.User = dbUser

	dbPassword := os.Getenv(prefix + "DB_PASSWORD")
	if dbPassword == "" {
		return fmt.Errorf("%sDB_PASSWORD is required", prefix)
	}
	cfg.Database.Password = dbPassword

	dbName := os.Getenv(prefix + "DB_NAME")
	if dbName == "" {
		return fmt.Errorf("%sDB_NAME is required", prefix)
	}
	cfg.Database.DBName = dbName

	return nil
}

// parseOrigins splits a comma-separated origin list, defaulting to all origins
func parseOrigins(raw string) []string {
	if raw == "" {
		// Default to allow all origins if not specified (for development)
		return []string{"*"}
	}

	origins := make([]string, 0)
	for _, origin := range strings.Split(raw, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func stringEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
