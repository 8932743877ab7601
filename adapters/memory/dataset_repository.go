// Package memory provides in-memory repository implementations, used
// when no DATABASE_URL is configured and as test doubles.
package memory

import (
	"context"
	"sort"
	"sync"

	"datawhisperer/domain/core"
	"datawhisperer/domain/dataset"
	"datawhisperer/ports"
)

type datasetRepository struct {
	mu      sync.RWMutex
	records map[core.DatasetID]*dataset.Metadata
	order   []core.DatasetID
}

// NewDatasetRepository creates an in-memory dataset metadata repository
func NewDatasetRepository() ports.DatasetRepository {
	return &datasetRepository{records: make(map[core.DatasetID]*dataset.Metadata)}
}

func (r *datasetRepository) Create(ctx context.Context, meta *dataset.Metadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[meta.DatasetID]; !exists {
		r.order = append(r.order, meta.DatasetID)
	}
	cp := *meta
	r.records[meta.DatasetID] = &cp
	return nil
}

func (r *datasetRepository) GetByID(ctx context.Context, id core.DatasetID) (*dataset.Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	cp := *meta
	return &cp, nil
}

func (r *datasetRepository) List(ctx context.Context) ([]*dataset.Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*dataset.Metadata, 0, len(r.order))
	for _, id := range r.order {
		cp := *r.records[id]
		out = append(out, &cp)
	}
	// Newest first, matching the SQL-backed repository's ordering.
	sort.SliceStable(out, func(i, j int) bool {
		return out[j].IngestedAt.Before(out[i].IngestedAt)
	})
	return out, nil
}

func (r *datasetRepository) KnownIDs(ctx context.Context) ([]core.DatasetID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.DatasetID, len(r.order))
	copy(out, r.order)
	return out, nil
}
