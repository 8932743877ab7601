// Package quality computes readiness scores from column profiles.
package quality

import (
	"math"

	"datawhisperer/domain/profile"
	"datawhisperer/domain/quality"
)

// Scorer turns a quality report into a readiness score.
type Scorer struct {
	weights quality.Weights
}

// NewScorer creates a scorer with the given weights.
func NewScorer(weights quality.Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Score computes the readiness score for a profiled dataset. Each
// component starts at 100 and is penalized by its weighted defect
// fraction; the overall score is the component mean, clamped to
// [0, 100] and rounded to two decimals.
func (s *Scorer) Score(report *profile.QualityReport) quality.ReadinessScore {
	return s.score(report.NumRows, report.DuplicateRows.Pct, report.Columns)
}

func (s *Scorer) score(nRows int, duplicatePct float64, columns []profile.ColumnProfile) quality.ReadinessScore {
	if nRows <= 0 {
		return quality.ReadinessScore{
			Overall:    0,
			Components: map[string]float64{},
			Notes:      []string{"Empty dataset"},
		}
	}

	totalCols := len(columns)
	if totalCols == 0 {
		totalCols = 1
	}

	var missingSum float64
	constantFlags := 0
	highMissingFlags := 0
	outlierCounts := 0
	numericValueCounts := 0
	for _, col := range columns {
		missingSum += col.MissingPct
		if col.IsConstant {
			constantFlags++
		}
		if col.MissingPct > s.weights.HighMissingColumnCutoff {
			highMissingFlags++
		}
		if col.NumericSummary != nil {
			outlierCounts += col.NumericSummary.OutlierCount
			// The +1 per numeric column keeps the density denominator
			// non-zero.
			numericValueCounts += col.NumericSummary.OutlierCount + 1
		}
	}

	avgMissing := 0.0
	if len(columns) > 0 {
		avgMissing = missingSum / float64(len(columns))
	}
	missingScore := penalized(avgMissing, s.weights.MissingnessPenalty)
	duplicateScore := penalized(duplicatePct, s.weights.DuplicatesPenalty)

	constantRatio := float64(constantFlags) / float64(totalCols)
	constantScore := penalized(constantRatio, s.weights.ConstantsPenalty)

	highMissingRatio := float64(highMissingFlags) / float64(totalCols)
	highMissingScore := penalized(highMissingRatio, s.weights.HighMissingPenalty)

	outlierDensity := 0.0
	if numericValueCounts > 0 {
		outlierDensity = float64(outlierCounts) / float64(numericValueCounts)
	}
	outlierScore := penalized(outlierDensity, s.weights.OutliersPenalty)

	components := map[string]float64{
		quality.ComponentMissingness: round2(missingScore),
		quality.ComponentDuplicates:  round2(duplicateScore),
		quality.ComponentConstants:   round2(constantScore),
		quality.ComponentHighMissing: round2(highMissingScore),
		quality.ComponentOutliers:    round2(outlierScore),
	}
	var sum float64
	for _, v := range components {
		sum += v
	}
	overall := math.Max(0, math.Min(100, round2(sum/float64(len(components)))))

	var notes []string
	if avgMissing > s.weights.NoteAvgMissing {
		notes = append(notes, "High average missingness; consider aggressive cleaning.")
	}
	if duplicatePct > s.weights.NoteDuplicates {
		notes = append(notes, "Notable duplicate rows present.")
	}
	if constantRatio > s.weights.NoteConstantRatio {
		notes = append(notes, "Several constant columns provide no variance.")
	}
	if highMissingRatio > s.weights.NoteHighMissing {
		notes = append(notes, "Multiple columns with >40% missing values.")
	}
	if outlierDensity > s.weights.NoteOutlierDensity {
		notes = append(notes, "High outlier density in numeric columns.")
	}

	return quality.ReadinessScore{
		Overall:    overall,
		Components: components,
		Notes:      notes,
	}
}

func penalized(fraction, weight float64) float64 {
	return math.Max(0, 100-fraction*100*weight)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
