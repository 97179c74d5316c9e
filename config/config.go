package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	ServerPort string
	ServerHost string

	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisURL      string

	// Free-text parser collaborator (Gemini-compatible REST API)
	ParserAPIKey string
	ParserAPIURL string
	ParserModel  string

	// Nutrition data providers
	USDAAPIKey             string
	FatSecretClientID      string
	FatSecretClientSecret  string
	OpenFoodFactsUserAgent string
}

// LoadConfig creates a new Config instance from environment variables, with
// file-based secret fallback for credentials (VAR_FILE convention).
func LoadConfig() (*Config, error) {
	env := GetEnvironment()

	cfg := &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		ServerHost: getEnv("SERVER_HOST", "0.0.0.0"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     envOrFile("DB_USER"),
		DBPassword: envOrFile("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "nutriparse"),
		DBSSLMode:  getEnv("DB_SSL_MODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: envOrFile("REDIS_PASSWORD"),
		RedisURL:      getEnv("REDIS_URL", ""),

		ParserAPIKey: envOrFile("PARSER_API_KEY"),
		ParserAPIURL: getEnv("PARSER_API_URL", "https://generativelanguage.googleapis.com/v1beta/models"),
		ParserModel:  getEnv("PARSER_MODEL", "gemini-2.0-flash"),

		USDAAPIKey:             envOrFile("USDA_API_KEY"),
		FatSecretClientID:      envOrFile("FATSECRET_CLIENT_ID"),
		FatSecretClientSecret:  envOrFile("FATSECRET_CLIENT_SECRET"),
		OpenFoodFactsUserAgent: getEnv("OPENFOODFACTS_USER_AGENT", "nutriparse/1.0"),
	}

	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			cfg.RedisDB = db
		}
	}

	if err := ValidateConfig(cfg, env); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// getEnv reads an environment variable with a default fallback.
func getEnv(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envOrFile reads a credential from the environment, falling back to the
// contents of the file named by VAR_FILE (Docker secrets convention).
func envOrFile(name string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	if path := os.Getenv(name + "_FILE"); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return ""
}
