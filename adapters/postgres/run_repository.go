package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"datawhisperer/domain/core"
	"datawhisperer/domain/quality"
	"datawhisperer/domain/run"
	"datawhisperer/internal/errors"
	"datawhisperer/ports"

	"github.com/jmoiron/sqlx"
)

// runRepository implements the RunRepository interface
type runRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new analysis run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &runRepository{db: db}
}

// Save upserts a run record keyed by run_id
func (r *runRepository) Save(ctx context.Context, record *run.AnalysisRun) error {
	resultsJSON, err := json.Marshal(record.StructuredResults)
	if err != nil {
		return errors.DatabaseError("failed to marshal structured results", err)
	}
	var readinessJSON []byte
	if record.ReadinessScore != nil {
		readinessJSON, err = json.Marshal(record.ReadinessScore)
		if err != nil {
			return errors.DatabaseError("failed to marshal readiness score", err)
		}
	}

	query := `INSERT INTO analysis_runs (
		run_id, dataset_id, user_question, run_type,
		structured_results, readiness_score, created_at, session_id
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8
	) ON CONFLICT (run_id) DO UPDATE SET
		user_question = EXCLUDED.user_question,
		run_type = EXCLUDED.run_type,
		structured_results = EXCLUDED.structured_results,
		readiness_score = EXCLUDED.readiness_score,
		session_id = EXCLUDED.session_id`

	_, err = r.db.ExecContext(ctx, query,
		record.RunID, record.DatasetID, record.UserQuestion, record.RunType,
		resultsJSON, readinessJSON, record.CreatedAt.Time(), record.SessionID,
	)
	if err != nil {
		return errors.DatabaseError("failed to save run record", err)
	}
	return nil
}

// GetByID retrieves a run by id. Unknown ids yield (nil, nil).
func (r *runRepository) GetByID(ctx context.Context, id core.RunID) (*run.AnalysisRun, error) {
	query := runSelect + ` WHERE run_id = $1`

	record, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.DatabaseError("failed to get run record", err)
	}
	return record, nil
}

// ListForDataset returns runs against one dataset, newest first
func (r *runRepository) ListForDataset(ctx context.Context, datasetID core.DatasetID, limit int) ([]*run.AnalysisRun, error) {
	query := runSelect + ` WHERE dataset_id = $1 ORDER BY created_at DESC`
	args := []any{datasetID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return r.queryRuns(ctx, query, args...)
}

// Recent returns the most recent runs across all datasets
func (r *runRepository) Recent(ctx context.Context, limit int) ([]*run.AnalysisRun, error) {
	query := runSelect + ` ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	return r.queryRuns(ctx, query, args...)
}

const runSelect = `SELECT
	run_id, dataset_id, user_question, run_type,
	structured_results, readiness_score, created_at, COALESCE(session_id, '') as session_id
FROM analysis_runs`

func (r *runRepository) queryRuns(ctx context.Context, query string, args ...any) ([]*run.AnalysisRun, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.DatabaseError("failed to query run records", err)
	}
	defer rows.Close()

	var out []*run.AnalysisRun
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, errors.DatabaseError("failed to scan run record", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func scanRun(row rowScanner) (*run.AnalysisRun, error) {
	var record run.AnalysisRun
	var resultsJSON, readinessJSON []byte

	err := row.Scan(
		&record.RunID, &record.DatasetID, &record.UserQuestion, &record.RunType,
		&resultsJSON, &readinessJSON, &record.CreatedAt, &record.SessionID,
	)
	if err != nil {
		return nil, err
	}
	if len(resultsJSON) > 0 {
		if err := json.Unmarshal(resultsJSON, &record.StructuredResults); err != nil {
			return nil, err
		}
	}
	if len(readinessJSON) > 0 {
		var score quality.ReadinessScore
		if err := json.Unmarshal(readinessJSON, &score); err != nil {
			return nil, err
		}
		record.ReadinessScore = &score
	}
	return &record, nil
}

// preferenceRepository implements the PreferenceRepository interface
type preferenceRepository struct {
	db *sqlx.DB
}

// NewPreferenceRepository creates a new user preference repository
func NewPreferenceRepository(db *sqlx.DB) ports.PreferenceRepository {
	return &preferenceRepository{db: db}
}

// Save upserts preferences keyed by user_id
func (r *preferenceRepository) Save(ctx context.Context, prefs *run.UserPreferences) error {
	query := `INSERT INTO user_preferences (
		user_id, writing_style, default_alpha, plot_density, auto_quality_check, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, NOW()
	) ON CONFLICT (user_id) DO UPDATE SET
		writing_style = EXCLUDED.writing_style,
		default_alpha = EXCLUDED.default_alpha,
		plot_density = EXCLUDED.plot_density,
		auto_quality_check = EXCLUDED.auto_quality_check,
		updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		prefs.UserID, prefs.WritingStyle, prefs.DefaultAlpha, prefs.PlotDensity, prefs.AutoQualityCheck,
	)
	if err != nil {
		return errors.DatabaseError("failed to save preferences", err)
	}
	return nil
}

// Get retrieves preferences, falling back to defaults for unknown users
func (r *preferenceRepository) Get(ctx context.Context, userID string) (*run.UserPreferences, error) {
	query := `SELECT user_id, writing_style, default_alpha, plot_density, auto_quality_check, updated_at
	FROM user_preferences WHERE user_id = $1`

	var prefs run.UserPreferences
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&prefs.UserID, &prefs.WritingStyle, &prefs.DefaultAlpha, &prefs.PlotDensity, &prefs.AutoQualityCheck, &prefs.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			defaults := run.DefaultPreferences(userID)
			return &defaults, nil
		}
		return nil, errors.DatabaseError("failed to get preferences", err)
	}
	return &prefs, nil
}
