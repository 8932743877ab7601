package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// SpecKey is the canonical cache key for a normalized render spec.
type SpecKey Hash

func (k SpecKey) String() string { return Hash(k).String() }

// NewSpecKey hashes an ordered list of spec fields into a cache key.
// Fields must already be normalized; the separator keeps adjacent
// fields from colliding ("ab","c" vs "a","bc").
func NewSpecKey(fields ...string) SpecKey {
	return SpecKey(NewHash([]byte(strings.Join(fields, "\x1f"))))
}
