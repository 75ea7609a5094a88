package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/adyen/pricemonitor/internal/database"
	"github.com/adyen/pricemonitor/internal/models"
)

// PostgresProgressRepository stores progress records in PostgreSQL so that
// runners on different hosts share them
type PostgresProgressRepository struct {
	db *sql.DB
}

// NewPostgresProgressRepository creates a repository on the shared connection
func NewPostgresProgressRepository() *PostgresProgressRepository {
	return &PostgresProgressRepository{
		db: database.DB,
	}
}

// NewPostgresProgressRepositoryWithDB creates a repository with a specific database connection
func NewPostgresProgressRepositoryWithDB(db *sql.DB) *PostgresProgressRepository {
	return &PostgresProgressRepository{
		db: db,
	}
}

// LoadProgress retrieves the record for identity
func (r *PostgresProgressRepository) LoadProgress(ctx context.Context, identity string) (*models.ProgressRecord, error) {
	record := &models.ProgressRecord{Identity: identity, PassedUnits: []string{}}

	err := r.db.QueryRowContext(ctx,
		`SELECT updated_at FROM progress_records WHERE identity = $1`,
		identity,
	).Scan(&record.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT unit_key
		FROM progress_units
		WHERE identity = $1
		ORDER BY position
	`, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to get passed units: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan passed unit: %w", err)
		}
		record.PassedUnits = append(record.PassedUnits, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read passed units: %w", err)
	}

	record.Timestamp = record.Timestamp.UTC()
	return record, nil
}

// SaveProgress replaces the stored record in one transaction
func (r *PostgresProgressRepository) SaveProgress(ctx context.Context, record *models.ProgressRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ts := record.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO progress_records (identity, updated_at)
		VALUES ($1, $2)
		ON CONFLICT (identity) DO UPDATE SET updated_at = EXCLUDED.updated_at
	`, record.Identity, ts); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM progress_units WHERE identity = $1`, record.Identity); err != nil {
		return fmt.Errorf("failed to reset passed units: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO progress_units (identity, unit_key, position)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity, unit_key) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare unit insert: %w", err)
	}
	defer stmt.Close()

	for i, key := range record.PassedUnits {
		if _, err := stmt.ExecContext(ctx, record.Identity, key, i); err != nil {
			return fmt.Errorf("failed to save passed unit %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit progress: %w", err)
	}
	return nil
}

// DeleteProgress removes the record and its units
func (r *PostgresProgressRepository) DeleteProgress(ctx context.Context, identity string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM progress_records WHERE identity = $1`, identity); err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	return nil
}

// ListIdentities returns the identities that have a record, sorted
func (r *PostgresProgressRepository) ListIdentities(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT identity FROM progress_records ORDER BY identity`)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var identities []string
	for rows.Next() {
		var identity string
		if err := rows.Scan(&identity); err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		identities = append(identities, identity)
	}
	return identities, rows.Err()
}
