package config

import (
	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// OracleAPI is the base URL of the price oracle HTTP source.
	OracleAPI string
	// LendingAPI is the base URL of the lending market data source.
	LendingAPI string
	// StakingAPI is the base URL of the staking market data source.
	StakingAPI string
	// ChainAPI is the base URL of the chain indexer (positions, transaction
	// history, historical prices, submission).
	ChainAPI string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	var err error

	OracleAPI, err = getEnv("ORACLE_API")
	if err != nil {
		return err
	}

	LendingAPI, err = getEnv("LENDING_API")
	if err != nil {
		return err
	}

	StakingAPI, err = getEnv("STAKING_API")
	if err != nil {
		return err
	}

	ChainAPI, err = getEnv("CHAIN_API")
	if err != nil {
		return err
	}

	log.Debug().
		Str("OracleAPI", OracleAPI).
		Str("LendingAPI", LendingAPI).
		Str("StakingAPI", StakingAPI).
		Str("ChainAPI", ChainAPI).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}

// DBConfigFromEnv builds the archive database settings from environment
// variables. Only consulted when ARCHIVE_ENABLED is true.
type DBSettings struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func DBConfigFromEnv() DBSettings {
	return DBSettings{
		Host:     getEnvOptional("DB_HOST", "localhost"),
		Port:     getEnvAsInt("DB_PORT", 5432),
		User:     getEnvOptional("DB_USER", "riskengine"),
		Password: getEnvOptional("DB_PASSWORD", ""),
		DBName:   getEnvOptional("DB_NAME", "riskengine"),
		SSLMode:  getEnvOptional("DB_SSLMODE", "disable"),
	}
}
