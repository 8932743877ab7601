package ports

import (
	"context"

	"datawhisperer/domain/core"
	"datawhisperer/domain/dataset"
)

// DatasetRepository defines the interface for dataset metadata storage.
// Implementations must be safe for concurrent use; writes to the same
// backing store are serialized by the implementation.
type DatasetRepository interface {
	// Create inserts or replaces the metadata record for a dataset.
	Create(ctx context.Context, meta *dataset.Metadata) error

	// GetByID retrieves metadata by handle. Returns (nil, nil) when
	// the handle is unknown so callers can distinguish absence from
	// storage failure.
	GetByID(ctx context.Context, id core.DatasetID) (*dataset.Metadata, error)

	// List returns all known metadata, newest first.
	List(ctx context.Context) ([]*dataset.Metadata, error)

	// KnownIDs returns the handles currently on record, used for
	// not-found hints.
	KnownIDs(ctx context.Context) ([]core.DatasetID, error)
}
