package ports

import (
	"context"

	"datawhisperer/domain/dataset"
	"datawhisperer/domain/viz"
)

// Renderer turns a validated spec plus its dataset payload into an
// artifact file and returns the artifact path.
type Renderer interface {
	Render(ctx context.Context, spec viz.Spec, frame *dataset.Frame) (string, error)
}
