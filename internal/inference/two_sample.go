package inference

import (
	"fmt"
	"math"

	"datawhisperer/domain/dataset"
	"datawhisperer/domain/inference"
	"datawhisperer/internal/errors"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// TwoSampleParams configures a two-group mean comparison. Greater
// means the alternative mean(group A) > mean(group B).
type TwoSampleParams struct {
	Column      string
	GroupColumn string
	GroupA      string
	GroupB      string
	TestType    inference.TestKind
	Alternative inference.Alternative
	Alpha       float64
}

// TwoSample compares the means of two groups with a Welch t test or a
// large-sample z approximation.
func (s *Service) TwoSample(datasetID string, frame *dataset.Frame, p TwoSampleParams) (*inference.TwoSampleResult, error) {
	if err := validateAlpha(p.Alpha); err != nil {
		return nil, err
	}
	if err := validateAlternative(p.Alternative); err != nil {
		return nil, err
	}
	if err := validateTestKind(p.TestType); err != nil {
		return nil, err
	}

	xs, ys, err := splitGroups(frame, p.Column, p.GroupColumn, p.GroupA, p.GroupB)
	if err != nil {
		return nil, err
	}
	nA, nB := len(xs), len(ys)
	if nA < 2 || nB < 2 {
		return nil, errors.InferenceError(
			fmt.Sprintf("both groups need at least 2 non-missing values, got %d and %d", nA, nB))
	}

	meanA, _ := stats.Mean(xs)
	meanB, _ := stats.Mean(ys)
	stdA, _ := stats.StandardDeviationSample(xs)
	stdB, _ := stats.StandardDeviationSample(ys)
	diff := meanA - meanB

	seA2 := stdA * stdA / float64(nA)
	seB2 := stdB * stdB / float64(nB)
	seDiff := math.Sqrt(seA2 + seB2)
	if seDiff == 0 {
		return nil, errors.InferenceError(
			fmt.Sprintf("both groups of %q have zero variance, test statistic is undefined", p.Column))
	}

	// Cohen's d over the pooled standard deviation.
	pooledVar := (float64(nA-1)*stdA*stdA + float64(nB-1)*stdB*stdB) / float64(nA+nB-2)
	pooledSD := math.Sqrt(pooledVar)
	cohenD := 0.0
	if pooledSD > 0 {
		cohenD = diff / pooledSD
	}

	result := &inference.TwoSampleResult{
		Common: inference.Common{
			Family:          inference.FamilyTwoSample,
			Alpha:           p.Alpha,
			ConfidenceLevel: 1 - p.Alpha,
			Target:          fmt.Sprintf("mean(%s) - mean(%s) on %s", p.GroupA, p.GroupB, p.Column),
			Alternative:     p.Alternative,
			EffectSize:      ptr(cohenD),
		},
		DatasetID:         datasetID,
		Column:            p.Column,
		GroupColumn:       p.GroupColumn,
		GroupA:            p.GroupA,
		GroupB:            p.GroupB,
		NA:                nA,
		NB:                nB,
		MeanA:             meanA,
		MeanB:             meanB,
		StdA:              stdA,
		StdB:              stdB,
		MeanDiff:          diff,
		StandardErrorDiff: seDiff,
		CohenD:            cohenD,
	}

	statistic := diff / seDiff
	result.Statistic = ptr(statistic)

	var pValue float64
	var crit float64
	if p.TestType == inference.TestT {
		// Welch-Satterthwaite degrees of freedom.
		dfNum := (seA2 + seB2) * (seA2 + seB2)
		dfDen := seA2*seA2/float64(nA-1) + seB2*seB2/float64(nB-1)
		df := float64(nA + nB - 2)
		if dfDen > 0 {
			df = dfNum / dfDen
		}
		tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
		pTwo := 2 * (1 - tDist.CDF(math.Abs(statistic)))
		pValue = directionalP(pTwo, statistic, p.Alternative)
		crit = tDist.Quantile(1 - p.Alpha/2)
		result.TestType = "two_sample_t"
		result.DF = ptr(df)
	} else {
		switch p.Alternative {
		case inference.Greater:
			pValue = 1 - stdNormal.CDF(statistic)
		case inference.Less:
			pValue = stdNormal.CDF(statistic)
		default:
			pValue = 2 * (1 - stdNormal.CDF(math.Abs(statistic)))
		}
		crit = stdNormal.Quantile(1 - p.Alpha/2)
		result.TestType = "two_sample_z"
	}

	result.PValue = ptr(pValue)
	result.RejectNull = ptr(rejectNull(pValue, p.Alpha))
	result.Interval = &inference.Interval{
		Low:  diff - crit*seDiff,
		High: diff + crit*seDiff,
	}
	return result, nil
}

// splitGroups extracts the non-missing numeric values of column for
// the two named levels of the group column.
func splitGroups(frame *dataset.Frame, column, groupColumn, groupA, groupB string) ([]float64, []float64, error) {
	col, ok := frame.Column(column)
	if !ok {
		return nil, nil, errors.ColumnNotFound(column, frame.ColumnNames())
	}
	if !col.IsNumeric() {
		return nil, nil, errors.InferenceError(
			fmt.Sprintf("column %q must be numeric for this test, got %s", column, col.DType))
	}
	gcol, ok := frame.Column(groupColumn)
	if !ok {
		return nil, nil, errors.ColumnNotFound(groupColumn, frame.ColumnNames())
	}

	var xs, ys []float64
	for i := 0; i < col.Len(); i++ {
		v, g := col.Values[i], gcol.Values[i]
		if !v.Valid || !g.Valid {
			continue
		}
		switch g.Render(gcol.DType) {
		case groupA:
			xs = append(xs, v.Num)
		case groupB:
			ys = append(ys, v.Num)
		}
	}
	if len(xs) == 0 || len(ys) == 0 {
		return nil, nil, errors.InferenceError(
			fmt.Sprintf("group %q or %q has no data in column %q", groupA, groupB, groupColumn)).
			WithHint("check that both group values exist in the group column")
	}
	return xs, ys, nil
}
