package ports

import (
	"math/rand"
)

// RNG provides seeded random number generation for the resampling
// simulations, so runs are reproducible under a fixed seed.
type RNG interface {
	// Stream creates a deterministic generator for a named operation.
	Stream(name string) *rand.Rand
}
