package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	DatasetID ID
	RunID     ID
	UserID    ID
)

// NewDatasetID creates a dataset handle with the ds_ prefix.
// The prefix keeps handles recognizable in logs and error hints.
func NewDatasetID() DatasetID {
	return DatasetID("ds_" + uuid.New().String())
}

// NewRunID creates an analysis-run identifier (run_ + 12 hex chars).
func NewRunID() RunID {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return RunID("run_" + raw[:12])
}

// String conversions for domain IDs
func (id DatasetID) String() string { return ID(id).String() }
func (id RunID) String() string     { return ID(id).String() }
func (id UserID) String() string    { return ID(id).String() }

func (id DatasetID) IsEmpty() bool { return id == "" }
func (id RunID) IsEmpty() bool     { return id == "" }

// ParseDatasetID parses a string into DatasetID
func ParseDatasetID(s string) (DatasetID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("dataset ID cannot be empty")
	}
	return DatasetID(s), nil
}

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	return RunID(s), nil
}
