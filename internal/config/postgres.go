package config

import "fmt"

// PostgresConfig holds configuration for the PostgreSQL progress store
type PostgresConfig struct {
	User     string
	Password string
	Database string
	Host     string
	Port     string
	SSLMode  string
}

// LoadPostgresConfig loads PostgreSQL configuration from environment variables
func LoadPostgresConfig(getenv func(string) string) (*PostgresConfig, error) {
	config := &PostgresConfig{
		User:     getenv("POSTGRES_USER"),
		Password: getenv("POSTGRES_PASSWORD"),
		Database: getenv("POSTGRES_DB"),
		Host:     getenv("POSTGRES_HOSTNAME"),
		Port:     stringOr(getenv, "POSTGRES_PORT", "5432"),
		SSLMode:  stringOr(getenv, "POSTGRES_SSLMODE", "disable"),
	}

	for _, req := range []struct{ key, value string }{
		{"POSTGRES_USER", config.User},
		{"POSTGRES_PASSWORD", config.Password},
		{"POSTGRES_DB", config.Database},
		{"POSTGRES_HOSTNAME", config.Host},
	} {
		if req.value == "" {
			return nil, fmt.Errorf("%s is required for the postgres progress backend", req.key)
		}
	}

	return config, nil
}

// ConnectionString returns a PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}
