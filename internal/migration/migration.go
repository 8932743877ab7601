package migration

import (
	"context"

	"datawhisperer/internal/errors"

	"github.com/jmoiron/sqlx"
)

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createDatasetsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create datasets table")
	}

	if err := r.createAnalysisRunsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create analysis_runs table")
	}

	if err := r.createUserPreferencesTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create user_preferences table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createDatasetsTable(ctx context.Context, db *sqlx.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS datasets (
		dataset_id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		ingested_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		n_rows INTEGER NOT NULL DEFAULT 0,
		n_columns INTEGER NOT NULL DEFAULT 0,
		columns JSONB NOT NULL DEFAULT '[]',
		column_types JSONB NOT NULL DEFAULT '{}',
		parent_dataset_id TEXT,
		transformation_note TEXT,
		storage_path TEXT
	)`
	_, err := db.ExecContext(ctx, query)
	return err
}

func (r *MigrationRunner) createAnalysisRunsTable(ctx context.Context, db *sqlx.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS analysis_runs (
		run_id TEXT PRIMARY KEY,
		dataset_id TEXT NOT NULL,
		user_question TEXT NOT NULL DEFAULT '',
		run_type TEXT NOT NULL DEFAULT 'descriptive',
		structured_results JSONB NOT NULL DEFAULT '{}',
		readiness_score JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		session_id TEXT
	)`
	_, err := db.ExecContext(ctx, query)
	return err
}

func (r *MigrationRunner) createUserPreferencesTable(ctx context.Context, db *sqlx.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS user_preferences (
		user_id TEXT PRIMARY KEY,
		writing_style TEXT NOT NULL DEFAULT 'technical',
		default_alpha DOUBLE PRECISION NOT NULL DEFAULT 0.05,
		plot_density TEXT NOT NULL DEFAULT 'comprehensive',
		auto_quality_check BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`
	_, err := db.ExecContext(ctx, query)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_datasets_parent ON datasets(parent_dataset_id)`,
		`CREATE INDEX IF NOT EXISTS idx_datasets_ingested_at ON datasets(ingested_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_dataset ON analysis_runs(dataset_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON analysis_runs(created_at DESC)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
