package ports

import (
	"context"

	"datawhisperer/domain/core"
	"datawhisperer/domain/dataset"
)

// FrameStore persists the immutable columnar payload of a dataset,
// one file per handle.
type FrameStore interface {
	// Save writes the frame and returns its storage path.
	Save(ctx context.Context, id core.DatasetID, frame *dataset.Frame) (string, error)

	// Load reads the frame previously stored for the handle.
	Load(ctx context.Context, id core.DatasetID) (*dataset.Frame, error)

	// Exists reports whether a payload is stored for the handle.
	Exists(ctx context.Context, id core.DatasetID) (bool, error)
}
