package database

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// Schema holds the progress tables. Units are ordered by position so a
// record reads back in the order its units passed.
const Schema = `
	CREATE TABLE IF NOT EXISTS progress_records (
		identity VARCHAR(512) PRIMARY KEY,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS progress_units (
		identity VARCHAR(512) NOT NULL REFERENCES progress_records(identity) ON DELETE CASCADE,
		unit_key VARCHAR(64) NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (identity, unit_key)
	);

	CREATE INDEX IF NOT EXISTS idx_progress_units_position ON progress_units(identity, position);
`

// RunMigrations creates the progress tables on the shared connection
func RunMigrations(logger *zap.Logger) error {
	if DB == nil {
		return fmt.Errorf("database connection not initialized")
	}
	if err := Migrate(DB); err != nil {
		return err
	}
	logger.Info("database migrations completed")
	return nil
}

// Migrate creates the progress tables on db
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create progress tables: %w", err)
	}
	return nil
}
