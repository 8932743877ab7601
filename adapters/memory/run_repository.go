package memory

import (
	"context"
	"sort"
	"sync"

	"datawhisperer/domain/core"
	"datawhisperer/domain/run"
	"datawhisperer/ports"
)

type runRepository struct {
	mu      sync.RWMutex
	records map[core.RunID]*run.AnalysisRun
}

// NewRunRepository creates an in-memory run repository
func NewRunRepository() ports.RunRepository {
	return &runRepository{records: make(map[core.RunID]*run.AnalysisRun)}
}

func (r *runRepository) Save(ctx context.Context, record *run.AnalysisRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *record
	r.records[record.RunID] = &cp
	return nil
}

func (r *runRepository) GetByID(ctx context.Context, id core.RunID) (*run.AnalysisRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *runRepository) ListForDataset(ctx context.Context, datasetID core.DatasetID, limit int) ([]*run.AnalysisRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*run.AnalysisRun
	for _, rec := range r.records {
		if rec.DatasetID == datasetID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sortNewestFirst(out)
	return clip(out, limit), nil
}

func (r *runRepository) Recent(ctx context.Context, limit int) ([]*run.AnalysisRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*run.AnalysisRun, 0, len(r.records))
	for _, rec := range r.records {
		cp := *rec
		out = append(out, &cp)
	}
	sortNewestFirst(out)
	return clip(out, limit), nil
}

func sortNewestFirst(runs []*run.AnalysisRun) {
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[j].CreatedAt.Before(runs[i].CreatedAt)
	})
}

func clip(runs []*run.AnalysisRun, limit int) []*run.AnalysisRun {
	if limit > 0 && len(runs) > limit {
		return runs[:limit]
	}
	return runs
}

type preferenceRepository struct {
	mu      sync.RWMutex
	records map[string]*run.UserPreferences
}

// NewPreferenceRepository creates an in-memory preference repository
func NewPreferenceRepository() ports.PreferenceRepository {
	return &preferenceRepository{records: make(map[string]*run.UserPreferences)}
}

func (r *preferenceRepository) Save(ctx context.Context, prefs *run.UserPreferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *prefs
	cp.UpdatedAt = core.Now()
	r.records[prefs.UserID] = &cp
	return nil
}

func (r *preferenceRepository) Get(ctx context.Context, userID string) (*run.UserPreferences, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rec, ok := r.records[userID]; ok {
		cp := *rec
		return &cp, nil
	}
	defaults := run.DefaultPreferences(userID)
	return &defaults, nil
}
