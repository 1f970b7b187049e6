package migration

import (
	"context"

	"fieldload/internal/errors"

	"github.com/jmoiron/sqlx"
)

// MigrationRunner handles the run ledger schema
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.1.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in order. Every step is idempotent.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createLoadRunsTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create load_runs table", err)
	}

	if err := r.addLatencyColumns(ctx, db); err != nil {
		return errors.DatabaseError("failed to add load_runs latency columns", err)
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.DatabaseError("failed to create indexes", err)
	}

	return nil
}

func (r *MigrationRunner) createLoadRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS load_runs (
			run_id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			environment_id VARCHAR(64) NOT NULL,
			field_name TEXT NOT NULL,
			rows_seen BIGINT NOT NULL DEFAULT 0,
			unique_sent BIGINT NOT NULL DEFAULT 0,
			duplicates_skipped BIGINT NOT NULL DEFAULT 0,
			skipped_empty BIGINT NOT NULL DEFAULT 0,
			errors BIGINT NOT NULL DEFAULT 0,
			parse_errors BIGINT NOT NULL DEFAULT 0,
			source_error TEXT,
			started_at TIMESTAMP WITH TIME ZONE NOT NULL,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

// latency columns arrived after the first ledger version
func (r *MigrationRunner) addLatencyColumns(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'load_runs' AND column_name = 'calls'
			) THEN
				ALTER TABLE load_runs ADD COLUMN calls INTEGER NOT NULL DEFAULT 0;
			END IF;

			IF NOT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'load_runs' AND column_name = 'latency_mean_ms'
			) THEN
				ALTER TABLE load_runs ADD COLUMN latency_mean_ms DOUBLE PRECISION NOT NULL DEFAULT 0;
			END IF;

			IF NOT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'load_runs' AND column_name = 'latency_p95_ms'
			) THEN
				ALTER TABLE load_runs ADD COLUMN latency_p95_ms DOUBLE PRECISION NOT NULL DEFAULT 0;
			END IF;
		END $$;
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_load_runs_started_at ON load_runs(started_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_load_runs_env_field ON load_runs(environment_id, field_name)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
