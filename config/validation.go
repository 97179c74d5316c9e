package config

import (
	"fmt"
	"log"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig checks that the configuration is usable for the given
// environment. Database credentials are required in production; missing
// provider credentials only disable the corresponding connector, so they are
// logged rather than rejected.
func ValidateConfig(cfg *Config, env Environment) error {
	var errs []string

	if cfg.ServerPort == "" {
		errs = append(errs, ValidationError{Field: "SERVER_PORT", Message: "must not be empty"}.Error())
	}

	if env == Production {
		required := map[string]string{
			"DB_HOST":     cfg.DBHost,
			"DB_USER":     cfg.DBUser,
			"DB_PASSWORD": cfg.DBPassword,
			"DB_NAME":     cfg.DBName,
		}
		for field, value := range required {
			if value == "" {
				errs = append(errs, ValidationError{Field: field, Message: "required in production"}.Error())
			}
		}
	}

	if cfg.ParserAPIKey == "" {
		log.Printf("config: PARSER_API_KEY not set, free-text parsing will be unavailable")
	}
	if cfg.USDAAPIKey == "" {
		log.Printf("config: USDA_API_KEY not set, USDA lookups will be skipped")
	}
	if cfg.FatSecretClientID == "" || cfg.FatSecretClientSecret == "" {
		log.Printf("config: FatSecret credentials not set, FatSecret lookups will be skipped")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}
