// Package run defines the analysis-run ledger records and user
// preference types.
package run

import (
	"datawhisperer/domain/core"
	"datawhisperer/domain/quality"
)

// Type classifies an analysis run.
type Type string

const (
	TypeQualityCheck Type = "quality_check"
	TypeDescriptive  Type = "descriptive"
	TypeInference    Type = "inference"
	TypeFull         Type = "full"
)

// StructuredResults is the compact machine-readable outcome of a run,
// keyed by test name.
type StructuredResults struct {
	PValues               map[string]float64   `json:"p_values"`
	ConfidenceIntervals   map[string][]float64 `json:"confidence_intervals"`
	EffectSizes           map[string]float64   `json:"effect_sizes"`
	DescriptiveHighlights map[string]any       `json:"descriptive_highlights"`
	PlotPaths             []string             `json:"plot_paths"`
}

// NewStructuredResults returns an empty, non-nil result set.
func NewStructuredResults() StructuredResults {
	return StructuredResults{
		PValues:               map[string]float64{},
		ConfidenceIntervals:   map[string][]float64{},
		EffectSizes:           map[string]float64{},
		DescriptiveHighlights: map[string]any{},
	}
}

// AnalysisRun is one append-only ledger record. Runs are never
// mutated after save; re-saving the same run_id replaces the record
// wholesale (idempotent upsert).
type AnalysisRun struct {
	RunID             core.RunID              `json:"run_id"`
	DatasetID         core.DatasetID          `json:"dataset_id"`
	UserQuestion      string                  `json:"user_question"`
	RunType           Type                    `json:"run_type"`
	StructuredResults StructuredResults       `json:"structured_results"`
	ReadinessScore    *quality.ReadinessScore `json:"readiness_score,omitempty"`
	CreatedAt         core.Timestamp          `json:"created_at"`
	SessionID         string                  `json:"session_id,omitempty"`
}

// NewAnalysisRun builds a run record with a fresh id and timestamp.
func NewAnalysisRun(datasetID core.DatasetID, question string, runType Type) AnalysisRun {
	return AnalysisRun{
		RunID:             core.NewRunID(),
		DatasetID:         datasetID,
		UserQuestion:      question,
		RunType:           runType,
		StructuredResults: NewStructuredResults(),
		CreatedAt:         core.Now(),
	}
}

// RunRef identifies one side of a comparison.
type RunRef struct {
	RunID     core.RunID     `json:"run_id"`
	CreatedAt core.Timestamp `json:"created_at"`
}

// PValuePair holds a test's p-value in each run; a nil side means the
// test was absent from that run, which is reported rather than
// defaulted to zero.
type PValuePair struct {
	RunA *float64 `json:"run_a"`
	RunB *float64 `json:"run_b"`
}

// Comparison is the delta between two runs.
type Comparison struct {
	RunA           RunRef                `json:"run_a"`
	RunB           RunRef                `json:"run_b"`
	SameDataset    bool                  `json:"same_dataset"`
	ReadinessDelta *float64              `json:"readiness_delta"`
	PValueChanges  map[string]PValuePair `json:"p_value_changes"`
}

// WritingStyle is the preferred report style.
type WritingStyle string

const (
	StyleExecutive WritingStyle = "executive"
	StyleTechnical WritingStyle = "technical"
)

// PlotDensity is the preferred plot verbosity.
type PlotDensity string

const (
	DensityMinimal       PlotDensity = "minimal"
	DensityComprehensive PlotDensity = "comprehensive"
)

// UserPreferences personalizes analysis defaults. Persistence is
// best-effort; failures never fail the operation they ride along with.
type UserPreferences struct {
	UserID           string         `json:"user_id"`
	WritingStyle     WritingStyle   `json:"writing_style"`
	DefaultAlpha     float64        `json:"default_alpha"`
	PlotDensity      PlotDensity    `json:"plot_density"`
	AutoQualityCheck bool           `json:"auto_quality_check"`
	UpdatedAt        core.Timestamp `json:"updated_at"`
}

// DefaultPreferences returns the defaults for an unknown user.
func DefaultPreferences(userID string) UserPreferences {
	if userID == "" {
		userID = "default"
	}
	return UserPreferences{
		UserID:           userID,
		WritingStyle:     StyleTechnical,
		DefaultAlpha:     0.05,
		PlotDensity:      DensityComprehensive,
		AutoQualityCheck: true,
		UpdatedAt:        core.Now(),
	}
}
