// Package quality defines the readiness score and its tunable weights.
package quality

// Weights holds the penalty multipliers and advisory-note thresholds
// of the readiness formula. The defaults reproduce the historical
// behavior; they are configuration, not derivation.
type Weights struct {
	MissingnessPenalty float64 `json:"missingness_penalty"`
	DuplicatesPenalty  float64 `json:"duplicates_penalty"`
	ConstantsPenalty   float64 `json:"constants_penalty"`
	HighMissingPenalty float64 `json:"high_missing_penalty"`
	OutliersPenalty    float64 `json:"outliers_penalty"`

	// Column missingness above this fraction counts as "high missing".
	HighMissingColumnCutoff float64 `json:"high_missing_column_cutoff"`

	// Advisory-note thresholds. Notes never change the score.
	NoteAvgMissing     float64 `json:"note_avg_missing"`
	NoteDuplicates     float64 `json:"note_duplicates"`
	NoteConstantRatio  float64 `json:"note_constant_ratio"`
	NoteHighMissing    float64 `json:"note_high_missing"`
	NoteOutlierDensity float64 `json:"note_outlier_density"`
}

// DefaultWeights returns the historical multipliers.
func DefaultWeights() Weights {
	return Weights{
		MissingnessPenalty:      1.2,
		DuplicatesPenalty:       1.5,
		ConstantsPenalty:        2.0,
		HighMissingPenalty:      2.5,
		OutliersPenalty:         0.8,
		HighMissingColumnCutoff: 0.4,
		NoteAvgMissing:          0.3,
		NoteDuplicates:          0.05,
		NoteConstantRatio:       0.1,
		NoteHighMissing:         0.2,
		NoteOutlierDensity:      0.15,
	}
}

// ReadinessScore is the 0-100 heuristic summary of dataset fitness.
type ReadinessScore struct {
	Overall    float64            `json:"overall"`
	Components map[string]float64 `json:"components"`
	Notes      []string           `json:"notes"`
}

// Component names used in ReadinessScore.Components.
const (
	ComponentMissingness = "missingness"
	ComponentDuplicates  = "duplicates"
	ComponentConstants   = "constants"
	ComponentHighMissing = "high_missing_columns"
	ComponentOutliers    = "outliers"
)
