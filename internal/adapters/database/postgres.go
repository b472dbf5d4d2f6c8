package database

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds database configuration
type Config struct {
	Enabled          bool          `mapstructure:"enabled"`
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	User             string        `mapstructure:"user"`
	Password         string        `mapstructure:"password"`
	Database         string        `mapstructure:"database"`
	SSLMode          string        `mapstructure:"ssl_mode"`
	ConnectionString string        `mapstructure:"connection_string"`
	MaxConns         int           `mapstructure:"max_conns"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	MaxLifetime      time.Duration `mapstructure:"max_lifetime"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
}

// DB interface for database operations
type DB interface {
	Close() error
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	Exec(ctx context.Context, query string, args ...interface{}) error
}

// Row interface for database row operations
type Row interface {
	Scan(dest ...interface{}) error
}

// Rows interface for multi-row results
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close()
}

// postgresDB implements DB interface
type postgresDB struct {
	pool *pgxpool.Pool
}

// Close closes the database connection pool
func (p *postgresDB) Close() error {
	p.pool.Close()
	return nil
}

// Ping verifies the database connection
func (p *postgresDB) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// QueryRow executes a query that returns at most one row
func (p *postgresDB) QueryRow(ctx context.Context, query string, args ...interface{}) Row {
	return p.pool.QueryRow(ctx, query, args...)
}

// Query executes a query that returns rows
func (p *postgresDB) Query(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Exec executes a query without returning any rows
func (p *postgresDB) Exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := p.pool.Exec(ctx, query, args...)
	return err
}

// DSN validates the configuration and returns the connection string
func (c Config) DSN() (string, error) {
	if c.ConnectionString != "" {
		return c.ConnectionString, nil
	}
	if c.Host == "" {
		return "", fmt.Errorf("host is required")
	}
	if c.Port == 0 {
		return "", fmt.Errorf("invalid port")
	}
	if c.User == "" {
		return "", fmt.Errorf("user is required")
	}
	if c.Password == "" {
		return "", fmt.Errorf("password is required")
	}
	if c.Database == "" {
		return "", fmt.Errorf("database is required")
	}

	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode,
	), nil
}

// NewPostgresConnection creates a new PostgreSQL connection. The first
// ping is retried with exponential backoff until ConnectTimeout elapses,
// so the service can start alongside a database that is still booting.
func NewPostgresConnection(ctx context.Context, config Config) (DB, error) {
	dsn, err := config.DSN()
	if err != nil {
		return nil, err
	}

	// Configure pool
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if config.MaxConns > 0 {
		poolConfig.MaxConns = int32(config.MaxConns)
	}
	if config.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(config.MaxIdleConns)
	}
	if config.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = config.ConnectTimeout
	if strategy.MaxElapsedTime <= 0 {
		strategy.MaxElapsedTime = 30 * time.Second
	}

	ping := func() error { return pool.Ping(ctx) }
	if err := backoff.Retry(ping, backoff.WithContext(strategy, ctx)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &postgresDB{pool: pool}, nil
}
