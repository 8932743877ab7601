// Package profiling computes per-column quality profiles: semantic
// types, missingness, uniqueness, and numeric outlier scans.
package profiling

import (
	"fmt"
	"math"

	"datawhisperer/domain/dataset"
	"datawhisperer/domain/profile"
	"datawhisperer/internal/errors"

	"github.com/montanaflynn/stats"
)

// Profiler analyzes frames into quality reports.
type Profiler struct{}

// NewProfiler creates a profiler.
func NewProfiler() *Profiler {
	return &Profiler{}
}

// ProfileDataset profiles every column of the frame using the given
// outlier method.
func (p *Profiler) ProfileDataset(datasetID string, frame *dataset.Frame, method profile.OutlierMethod) (*profile.QualityReport, error) {
	if !method.Valid() {
		return nil, errors.InvalidParameter("outlier_method",
			fmt.Sprintf("must be one of iqr, zscore, both; got %q", method))
	}

	nRows := frame.NumRows()
	dupCount := frame.DuplicateRowCount()
	dupPct := float64(dupCount) / float64(max(1, nRows))

	report := &profile.QualityReport{
		DatasetID:  datasetID,
		NumRows:    nRows,
		NumColumns: frame.NumCols(),
		DuplicateRows: profile.DuplicateRows{
			Count: dupCount,
			Pct:   dupPct,
		},
	}
	if dupCount > 0 {
		report.DatasetIssues = append(report.DatasetIssues,
			fmt.Sprintf("Dataset has %d duplicate rows (%.1f%% of all rows).", dupCount, dupPct*100))
	}

	for _, col := range frame.Columns() {
		report.Columns = append(report.Columns, p.profileColumn(col, nRows, method))
	}
	return report, nil
}

func (p *Profiler) profileColumn(col dataset.Column, nRows int, method profile.OutlierMethod) profile.ColumnProfile {
	missing := col.MissingCount()
	missingPct := float64(missing) / float64(max(1, nRows))
	unique := col.UniqueCount()

	cp := profile.ColumnProfile{
		Name:         col.Name,
		DType:        string(col.DType),
		SemanticType: inferSemanticType(col.DType, unique, nRows),
		MissingCount: missing,
		MissingPct:   missingPct,
		UniqueCount:  unique,
		IsConstant:   unique <= 1,
		IsAllUnique:  unique == nRows-missing,
	}

	if missingPct > 0.3 {
		cp.Issues = append(cp.Issues,
			fmt.Sprintf("High missingness: %.1f%% of values are missing.", missingPct*100))
	} else if missingPct > 0 {
		cp.Issues = append(cp.Issues,
			fmt.Sprintf("Some missing values: %.1f%% of values are missing.", missingPct*100))
	}
	if cp.IsConstant {
		cp.Issues = append(cp.Issues, "Column is constant (only one unique non-null value).")
	}

	if cp.SemanticType == profile.SemanticNumeric || cp.SemanticType == profile.SemanticNumericCategorical {
		cp.NumericSummary = NumericSummary(col.Floats(), method)
	}
	return cp
}

// inferSemanticType applies unique-count heuristics on top of the raw
// storage dtype.
func inferSemanticType(dtype dataset.DType, nUnique, nRows int) profile.SemanticType {
	switch dtype {
	case dataset.DTypeDatetime:
		return profile.SemanticDatetime
	case dataset.DTypeInt, dataset.DTypeFloat:
		if nUnique <= 20 || float64(nUnique) <= 0.05*float64(nRows) {
			return profile.SemanticNumericCategorical
		}
		return profile.SemanticNumeric
	case dataset.DTypeBool:
		return profile.SemanticBoolean
	case dataset.DTypeString:
		if nUnique <= 50 && float64(nUnique) <= 0.1*float64(nRows) {
			return profile.SemanticCategorical
		}
		return profile.SemanticText
	default:
		return profile.SemanticUnknown
	}
}

// NumericSummary computes descriptive statistics and the outlier scan
// over the non-missing values of one column. Returns nil when no
// summary can be computed.
func NumericSummary(values []float64, method profile.OutlierMethod) *profile.NumericSummary {
	if len(values) == 0 {
		return nil
	}

	mean, err := stats.Mean(values)
	if err != nil {
		return nil
	}
	min, err := stats.Min(values)
	if err != nil {
		return nil
	}
	max, err := stats.Max(values)
	if err != nil {
		return nil
	}
	quartiles, err := stats.Quartile(values)
	if err != nil {
		return nil
	}
	q1, median, q3 := quartiles.Q1, quartiles.Q2, quartiles.Q3
	iqr := q3 - q1

	var std *float64
	if len(values) >= 2 {
		if sd, err := stats.StandardDeviationSample(values); err == nil && !math.IsNaN(sd) {
			std = &sd
		}
	}

	lowerBound := q1 - 1.5*iqr
	upperBound := q3 + 1.5*iqr

	var outliers []float64
	for _, v := range values {
		flagged := false
		if method == profile.OutlierIQR || method == profile.OutlierBoth {
			if v < lowerBound || v > upperBound {
				flagged = true
			}
		}
		if !flagged && (method == profile.OutlierZScore || method == profile.OutlierBoth) {
			if std != nil && *std > 0 {
				if math.Abs((v-mean)/(*std)) > 3 {
					flagged = true
				}
			}
		}
		if flagged {
			outliers = append(outliers, v)
		}
	}

	preview := outliers
	truncated := false
	if len(outliers) > profile.OutlierPreviewLimit {
		preview = outliers[:profile.OutlierPreviewLimit]
		truncated = true
	}

	return &profile.NumericSummary{
		Mean:              mean,
		Std:               std,
		Min:               min,
		Q1:                q1,
		Median:            median,
		Q3:                q3,
		Max:               max,
		IQR:               iqr,
		OutlierCount:      len(outliers),
		Outliers:          preview,
		OutliersTruncated: truncated,
		OutlierMethod:     method,
		LowerBound:        lowerBound,
		UpperBound:        upperBound,
	}
}
