package ports

import (
	"context"

	"datawhisperer/domain/core"
	"datawhisperer/domain/run"
)

// RunRepository persists analysis-run records. Save is an idempotent
// upsert keyed by run_id; records are otherwise append-only.
type RunRepository interface {
	Save(ctx context.Context, record *run.AnalysisRun) error

	// GetByID returns (nil, nil) when the run is unknown.
	GetByID(ctx context.Context, id core.RunID) (*run.AnalysisRun, error)

	// ListForDataset returns up to limit runs for a dataset, newest first.
	ListForDataset(ctx context.Context, datasetID core.DatasetID, limit int) ([]*run.AnalysisRun, error)

	// Recent returns up to limit runs across all datasets, newest first.
	Recent(ctx context.Context, limit int) ([]*run.AnalysisRun, error)
}

// PreferenceRepository persists user preferences. Lookups for unknown
// users return defaults, never an error.
type PreferenceRepository interface {
	Save(ctx context.Context, prefs *run.UserPreferences) error
	Get(ctx context.Context, userID string) (*run.UserPreferences, error)
}
