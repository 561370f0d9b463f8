// ./internal/state/db.go
package state

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// TestDBConnection verifies the archive database is reachable.
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection not initialized")
	}
	return DB.Ping()
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS monitor_cycles (
			cycle_id BIGSERIAL PRIMARY KEY,
			owner_address VARCHAR(128) NOT NULL,
			cycle_number INTEGER NOT NULL,
			cycle_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			portfolio_value_usd DECIMAL(20, 4) NOT NULL,
			position_count INTEGER NOT NULL,
			unread_alerts INTEGER NOT NULL,
			market_trend VARCHAR(16) NOT NULL,
			volatility_index DECIMAL(10, 4) NOT NULL,
			reference_price_usd DECIMAL(20, 8) NOT NULL,
			positions JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_monitor_cycles_owner ON monitor_cycles (owner_address, cycle_number);

		CREATE TABLE IF NOT EXISTS alert_history (
			alert_id VARCHAR(64) PRIMARY KEY,
			owner_address VARCHAR(128) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			severity VARCHAR(16) NOT NULL,
			alert_type VARCHAR(32) NOT NULL,
			strategy_id VARCHAR(128),
			message TEXT NOT NULL,
			details JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_alert_history_owner ON alert_history (owner_address, created_at);

		CREATE TABLE IF NOT EXISTS owner_cycle_counter (
			owner_address VARCHAR(128) PRIMARY KEY,
			current_cycle INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Info().Msg("Database schema ensured")
	return nil
}
