package testutil

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/adyen/pricemonitor/internal/config"
	"github.com/adyen/pricemonitor/internal/database"
)

// localDefaults match the docker postgres used for integration runs.
var localDefaults = map[string]string{
	"POSTGRES_USER":     "postgres",
	"POSTGRES_PASSWORD": "postgres",
	"POSTGRES_DB":       "postgres",
	"POSTGRES_HOSTNAME": "localhost",
}

// ProgressDatabase is a migrated progress schema private to one test
type ProgressDatabase struct {
	DB         *sql.DB
	SchemaName string
	admin      *sql.DB
}

// SetupProgressDatabase creates a fresh schema, migrates the progress table
// into it and drops it when the test ends.
func SetupProgressDatabase(t *testing.T) *ProgressDatabase {
	t.Helper()

	pgConfig, err := config.LoadPostgresConfig(func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return localDefaults[key]
	})
	if err != nil {
		t.Fatalf("Failed to load postgres config: %v", err)
	}

	admin, err := open(pgConfig.ConnectionString())
	if err != nil {
		t.Fatalf("Failed to connect to postgres: %v", err)
	}

	pdb := &ProgressDatabase{
		SchemaName: "progress_test_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		admin:      admin,
	}
	t.Cleanup(func() { pdb.teardown(t) })

	if _, err := admin.Exec(fmt.Sprintf("CREATE SCHEMA %s", pdb.SchemaName)); err != nil {
		t.Fatalf("Failed to create schema %s: %v", pdb.SchemaName, err)
	}

	pdb.DB, err = open(fmt.Sprintf("%s search_path=%s", pgConfig.ConnectionString(), pdb.SchemaName))
	if err != nil {
		t.Fatalf("Failed to connect to schema %s: %v", pdb.SchemaName, err)
	}
	pdb.DB.SetMaxOpenConns(5)
	pdb.DB.SetConnMaxLifetime(time.Minute)

	if err := database.Migrate(pdb.DB); err != nil {
		t.Fatalf("Failed to migrate progress schema: %v", err)
	}
	return pdb
}

func open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (p *ProgressDatabase) teardown(t *testing.T) {
	if p.DB != nil {
		p.DB.Close()
	}
	if _, err := p.admin.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", p.SchemaName)); err != nil {
		t.Logf("Warning: failed to drop schema %s: %v", p.SchemaName, err)
	}
	p.admin.Close()
}
