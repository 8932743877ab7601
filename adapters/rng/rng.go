// Package rng provides the seeded random source behind the resampling
// simulations.
package rng

import (
	"hash/fnv"
	"math/rand"
	"time"

	"datawhisperer/ports"
)

// Source implements ports.RNG. A non-zero base seed makes every named
// stream deterministic across runs; a zero seed falls back to wall
// clock time.
type Source struct {
	seed int64
}

// NewSource creates a random source from the configured seed.
func NewSource(seed int64) *Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Source{seed: seed}
}

var _ ports.RNG = (*Source)(nil)

// Stream derives an independent generator for a named operation, so
// two simulations in one process do not perturb each other's draws.
func (s *Source) Stream(name string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(name))
	return rand.New(rand.NewSource(s.seed ^ int64(h.Sum64())))
}
