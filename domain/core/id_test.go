package core

import (
	"strings"
	"testing"
)

func TestNewDatasetID_Prefix(t *testing.T) {
	id := NewDatasetID()
	if !strings.HasPrefix(id.String(), "ds_") {
		t.Errorf("dataset ID should carry ds_ prefix, got %s", id)
	}
	if id.IsEmpty() {
		t.Error("fresh dataset ID should not be empty")
	}
}

func TestNewDatasetID_Unique(t *testing.T) {
	seen := make(map[DatasetID]bool)
	for i := 0; i < 100; i++ {
		id := NewDatasetID()
		if seen[id] {
			t.Fatalf("duplicate dataset ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestNewRunID_Format(t *testing.T) {
	id := NewRunID()
	if !strings.HasPrefix(id.String(), "run_") {
		t.Errorf("run ID should carry run_ prefix, got %s", id)
	}
	if len(id.String()) != len("run_")+12 {
		t.Errorf("run ID should be run_ plus 12 hex chars, got %s", id)
	}
}

func TestParseDatasetID_Empty(t *testing.T) {
	if _, err := ParseDatasetID("   "); err == nil {
		t.Error("expected error for blank dataset ID")
	}
}

func TestNewSpecKey_SeparatorSafety(t *testing.T) {
	a := NewSpecKey("ab", "c")
	b := NewSpecKey("a", "bc")
	if a == b {
		t.Error("adjacent fields must not collide")
	}
	if a != NewSpecKey("ab", "c") {
		t.Error("spec key must be deterministic")
	}
}
