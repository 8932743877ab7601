// Package ledger records analysis runs and compares them. Records are
// append-only; saving an existing run_id replaces the record wholesale.
package ledger

import (
	"context"

	"datawhisperer/domain/core"
	"datawhisperer/domain/run"
	"datawhisperer/internal"
	"datawhisperer/internal/errors"
	"datawhisperer/ports"
)

// DefaultListLimit bounds run listings when the caller gives none.
const DefaultListLimit = 20

// Service is the analysis-run ledger.
type Service struct {
	repo ports.RunRepository
	log  *internal.Logger
}

// NewService creates a ledger over the given run repository.
func NewService(repo ports.RunRepository, log *internal.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Save upserts a run record by run_id and returns the stored record.
func (s *Service) Save(ctx context.Context, record run.AnalysisRun) (*run.AnalysisRun, error) {
	if record.RunID == "" {
		return nil, errors.ValidationError("run_id cannot be empty")
	}
	if record.DatasetID == "" {
		return nil, errors.ValidationError("dataset_id cannot be empty")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = core.Now()
	}
	if err := s.repo.Save(ctx, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// SaveBestEffort saves a run and swallows any failure after logging
// it. Used when the save rides along with an analysis whose result
// must not be lost to a ledger hiccup.
func (s *Service) SaveBestEffort(ctx context.Context, record run.AnalysisRun) {
	if _, err := s.Save(ctx, record); err != nil {
		s.log.Warn("ledger save for run %s failed, result not recorded: %v", record.RunID, err)
	}
}

// Get fetches a run by id.
func (s *Service) Get(ctx context.Context, id core.RunID) (*run.AnalysisRun, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, errors.RunNotFound(id.String())
	}
	return record, nil
}

// ListForDataset returns the dataset's runs, newest first.
func (s *Service) ListForDataset(ctx context.Context, datasetID core.DatasetID, limit int) ([]*run.AnalysisRun, error) {
	if datasetID == "" {
		return nil, errors.ValidationError("dataset_id cannot be empty")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.repo.ListForDataset(ctx, datasetID, limit)
}

// Recent returns the latest runs across all datasets.
func (s *Service) Recent(ctx context.Context, limit int) ([]*run.AnalysisRun, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.repo.Recent(ctx, limit)
}

// Compare diffs two runs: the readiness delta when both carry a score,
// and per-test p-value pairs over the union of test names. A test
// absent from one run keeps a nil side rather than a fabricated zero.
func (s *Service) Compare(ctx context.Context, idA, idB core.RunID) (*run.Comparison, error) {
	a, err := s.Get(ctx, idA)
	if err != nil {
		return nil, err
	}
	b, err := s.Get(ctx, idB)
	if err != nil {
		return nil, err
	}

	cmp := &run.Comparison{
		RunA:          run.RunRef{RunID: a.RunID, CreatedAt: a.CreatedAt},
		RunB:          run.RunRef{RunID: b.RunID, CreatedAt: b.CreatedAt},
		SameDataset:   a.DatasetID == b.DatasetID,
		PValueChanges: make(map[string]run.PValuePair),
	}

	if a.ReadinessScore != nil && b.ReadinessScore != nil {
		delta := b.ReadinessScore.Overall - a.ReadinessScore.Overall
		cmp.ReadinessDelta = &delta
	}

	for name, p := range a.StructuredResults.PValues {
		v := p
		pair := cmp.PValueChanges[name]
		pair.RunA = &v
		cmp.PValueChanges[name] = pair
	}
	for name, p := range b.StructuredResults.PValues {
		v := p
		pair := cmp.PValueChanges[name]
		pair.RunB = &v
		cmp.PValueChanges[name] = pair
	}
	return cmp, nil
}
