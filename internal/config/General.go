package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// ReferenceSymbol is the reference asset for market analysis (e.g., "SOL").
	ReferenceSymbol string
	// ReferenceFeedID is the oracle price feed ID for the reference asset.
	ReferenceFeedID string

	// WebPort is the port for the JSON API server.
	WebPort string

	// RedisAddr is the address of the last-known-good cache. Optional; the
	// engine degrades to in-memory behavior when unset.
	RedisAddr string

	// ArchiveEnabled toggles the Postgres cycle/alert archive.
	ArchiveEnabled bool

	// WebhookURL is the alert notification webhook. Optional; notifications
	// fall back to the structured log when unset.
	WebhookURL string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// Core variables are required; optional collaborators (cache, archive) may be unset.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	ReferenceSymbol, err = getEnv("REFERENCE_SYMBOL")
	if err != nil {
		return err
	}

	ReferenceFeedID, err = getEnv("REFERENCE_FEED_ID")
	if err != nil {
		return err
	}

	WebPort = getEnvOptional("WEB_PORT", "8080")
	RedisAddr = getEnvOptional("REDIS_ADDR", "")
	ArchiveEnabled = getEnvOptional("ARCHIVE_ENABLED", "false") == "true"
	WebhookURL = getEnvOptional("WEBHOOK_URL", "")

	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("ReferenceSymbol", ReferenceSymbol).
		Str("WebPort", WebPort).
		Bool("ArchiveEnabled", ArchiveEnabled).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOptional retrieves a string environment variable with a fallback.
func getEnvOptional(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an int with a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valueStr).Msg("Invalid integer environment variable, using fallback")
		return fallback
	}
	return value
}
