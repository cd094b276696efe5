package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
)

// DB represents a PostgreSQL database connection
type DB struct {
	client *sql.DB
	config *Config
}

// GetConfig returns the original DB connection settings
func (d *DB) GetConfig() *Config {
	return d.config
}

// Config holds PostgreSQL connection configuration
type Config struct {
	Host         string        // Database host
	Port         string        // Database port
	User         string        // Database user
	Password     string        // Database password
	Database     string        // Database name
	SSLMode      string        // SSL mode (disable, require, verify-ca, verify-full)
	MaxIdleConns int           // Maximum number of idle connections
	MaxOpenConns int           // Maximum number of open connections
	MaxLifetime  time.Duration // Maximum lifetime of a connection
	DatabaseURL  string        // Original DATABASE_URL if used
	StatementMs  int           // statement_timeout applied to every session
}

// ConnectionString returns the PostgreSQL connection string
func (c *Config) ConnectionString() string {
	if c.DatabaseURL != "" {
		return AugmentDSN(c.DatabaseURL, c.StatementMs, applicationName)
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
	return AugmentDSN(dsn, c.StatementMs, applicationName)
}

func (c *Config) applyDefaults() {
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 2
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 5
	}
	if c.MaxLifetime == 0 {
		c.MaxLifetime = 20 * time.Minute
	}
}

func (c *Config) validate() error {
	if c.DatabaseURL != "" {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Port == "" {
		return fmt.Errorf("database port is required")
	}
	if c.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}
	return nil
}

// New opens a connection pool, verifies it and creates the tables the scraper uses.
func New(config *Config) (*DB, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	client, err := sql.Open("pgx", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	client.SetMaxOpenConns(config.MaxOpenConns)
	client.SetMaxIdleConns(config.MaxIdleConns)
	client.SetConnMaxLifetime(config.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.PingContext(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	if err := setupSchema(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to setup schema: %w", err)
	}

	log.Info().
		Int("max_open_conns", config.MaxOpenConns).
		Msg("Connected to PostgreSQL")

	return &DB{client: client, config: config}, nil
}

// NewWithClient wraps an existing connection without touching the schema.
func NewWithClient(client *sql.DB) *DB {
	return &DB{client: client, config: &Config{}}
}

// InitFromEnv creates a PostgreSQL connection using environment variables
func InitFromEnv() (*DB, error) {
	config := ConfigFromEnv()
	if config == nil {
		return nil, fmt.Errorf("DATABASE_URL or POSTGRES_HOST must be set")
	}
	return New(config)
}

// ConfigFromEnv reads DATABASE_URL, falling back to the POSTGRES_* variables.
// It returns nil when neither is set.
func ConfigFromEnv() *Config {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return &Config{DatabaseURL: url, StatementMs: 60000}
	}

	if os.Getenv("POSTGRES_HOST") == "" {
		return nil
	}

	config := &Config{
		Host:        os.Getenv("POSTGRES_HOST"),
		Port:        os.Getenv("POSTGRES_PORT"),
		User:        os.Getenv("POSTGRES_USER"),
		Password:    os.Getenv("POSTGRES_PASSWORD"),
		Database:    os.Getenv("POSTGRES_DB"),
		SSLMode:     os.Getenv("POSTGRES_SSL_MODE"),
		StatementMs: 60000,
	}

	if config.Port == "" {
		config.Port = "5432"
	}
	if config.User == "" {
		config.User = "postgres"
	}
	if config.Database == "" {
		config.Database = "competitor_prices"
	}

	return config
}

// setupSchema creates the necessary tables in PostgreSQL
func setupSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS private_label_matches (
			sku TEXT NOT NULL,
			competitor TEXT NOT NULL,
			url TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (sku, competitor)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create private_label_matches table: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS competitor_prices (
			run_id TEXT NOT NULL,
			competitor TEXT NOT NULL,
			sku TEXT NOT NULL,
			status TEXT NOT NULL,
			competitor_sku TEXT,
			name TEXT,
			brand TEXT,
			main_category TEXT,
			sub_category TEXT,
			price NUMERIC(12,2),
			url TEXT NOT NULL,
			status_code INTEGER,
			failure_kind TEXT,
			reason TEXT,
			scraped_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (run_id, competitor, sku)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create competitor_prices table: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_competitor_prices_sku_scraped
		ON competitor_prices(sku, scraped_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create competitor_prices index: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.client.Close()
}

// GetDB returns the underlying database connection
func (db *DB) GetDB() *sql.DB {
	return db.client
}
