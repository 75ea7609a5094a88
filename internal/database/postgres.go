package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/adyen/pricemonitor/internal/config"
	_ "github.com/lib/pq"
)

var DB *sql.DB

// Connect establishes a connection to the PostgreSQL progress database
func Connect(getenv func(string) string) error {
	pgConfig, err := config.LoadPostgresConfig(getenv)
	if err != nil {
		return fmt.Errorf("failed to load postgres config: %w", err)
	}

	DB, err = sql.Open("postgres", pgConfig.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Progress writes are small and serialized per target.
	DB.SetMaxOpenConns(8)
	DB.SetMaxIdleConns(4)
	DB.SetConnMaxLifetime(5 * time.Minute)

	if err = DB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
