package database

import (
	"context"
	"fmt"
)

type migration struct {
	version int64
	up      string
	down    string
}

var migrations = []migration{
	{
		version: 1,
		up: `CREATE TABLE IF NOT EXISTS backtest_reports (
			id UUID PRIMARY KEY,
			symbol VARCHAR(64) NOT NULL DEFAULT '',
			confidence DOUBLE PRECISION NOT NULL,
			threshold DOUBLE PRECISION NOT NULL,
			observations INT NOT NULL,
			exceedances INT NOT NULL,
			kupiec_p_value DOUBLE PRECISION NOT NULL,
			independence_p_value DOUBLE PRECISION NOT NULL,
			conditional_p_value DOUBLE PRECISION NOT NULL,
			degenerate BOOLEAN NOT NULL DEFAULT false,
			report JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		down: `DROP TABLE IF EXISTS backtest_reports`,
	},
	{
		version: 2,
		up:      `CREATE INDEX IF NOT EXISTS idx_backtest_reports_symbol_created ON backtest_reports(symbol, created_at DESC)`,
		down:    `DROP INDEX IF EXISTS idx_backtest_reports_symbol_created`,
	},
	{
		version: 3,
		up:      `CREATE INDEX IF NOT EXISTS idx_backtest_reports_created_at ON backtest_reports(created_at DESC)`,
		down:    `DROP INDEX IF EXISTS idx_backtest_reports_created_at`,
	},
	{
		// independence and conditional p-values are NULL when every period breached
		version: 4,
		up: `ALTER TABLE backtest_reports
			ALTER COLUMN independence_p_value DROP NOT NULL,
			ALTER COLUMN conditional_p_value DROP NOT NULL`,
		down: `ALTER TABLE backtest_reports
			ALTER COLUMN independence_p_value SET NOT NULL,
			ALTER COLUMN conditional_p_value SET NOT NULL`,
	},
}

// MigrationRunner applies the schema in version order and records each
// applied version in schema_migrations.
type MigrationRunner struct {
	db DB
}

// NewMigrationRunner creates a new migration runner
func NewMigrationRunner(db DB) *MigrationRunner {
	return &MigrationRunner{db: db}
}

// Up runs all pending migrations
func (m *MigrationRunner) Up(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version BIGINT PRIMARY KEY,
			dirty BOOLEAN NOT NULL DEFAULT FALSE
		)
	`
	if err := m.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	for _, mig := range migrations {
		applied, err := m.applied(ctx, mig.version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		if err := m.db.Exec(ctx, mig.up); err != nil {
			return fmt.Errorf("migration %d failed: %w", mig.version, err)
		}
		if err := m.db.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, mig.version); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", mig.version, err)
		}
	}

	return nil
}

// Down rolls back up to steps applied migrations, newest first
func (m *MigrationRunner) Down(ctx context.Context, steps int) error {
	for i := len(migrations) - 1; i >= 0 && steps > 0; i-- {
		mig := migrations[i]
		applied, err := m.applied(ctx, mig.version)
		if err != nil {
			return err
		}
		if !applied {
			continue
		}

		if err := m.db.Exec(ctx, mig.down); err != nil {
			return fmt.Errorf("rollback %d failed: %w", mig.version, err)
		}
		if err := m.db.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, mig.version); err != nil {
			return fmt.Errorf("failed to unrecord migration %d: %w", mig.version, err)
		}
		steps--
	}
	return nil
}

func (m *MigrationRunner) applied(ctx context.Context, version int64) (bool, error) {
	var exists bool
	err := m.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check migration %d: %w", version, err)
	}
	return exists, nil
}
