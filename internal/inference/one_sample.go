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

// OneSampleParams configures a one-sample mean test.
type OneSampleParams struct {
	Column      string
	TestType    inference.TestKind
	Mu          float64
	Alternative inference.Alternative
	Alpha       float64
}

// OneSample tests whether the column mean differs from a hypothesized
// value, with a t test or a large-sample z approximation.
func (s *Service) OneSample(datasetID string, frame *dataset.Frame, p OneSampleParams) (*inference.OneSampleResult, error) {
	if err := validateAlpha(p.Alpha); err != nil {
		return nil, err
	}
	if err := validateAlternative(p.Alternative); err != nil {
		return nil, err
	}
	if err := validateTestKind(p.TestType); err != nil {
		return nil, err
	}

	values, err := numericValues(frame, p.Column)
	if err != nil {
		return nil, err
	}
	n := len(values)
	if n < 2 {
		return nil, errors.InferenceError(
			fmt.Sprintf("column %q needs at least 2 non-missing values, got %d", p.Column, n))
	}

	mean, _ := stats.Mean(values)
	sd, err := stats.StandardDeviationSample(values)
	if err != nil || math.IsNaN(sd) || sd == 0 {
		return nil, errors.InferenceError(
			fmt.Sprintf("column %q has zero variance, test statistic is undefined", p.Column))
	}
	se := sd / math.Sqrt(float64(n))

	result := &inference.OneSampleResult{
		Common: inference.Common{
			Family:          inference.FamilyOneSample,
			Alpha:           p.Alpha,
			ConfidenceLevel: 1 - p.Alpha,
			Target:          fmt.Sprintf("mean(%s)", p.Column),
			Alternative:     p.Alternative,
		},
		DatasetID:        datasetID,
		Column:           p.Column,
		N:                n,
		SampleMean:       mean,
		SampleStd:        sd,
		HypothesizedMean: p.Mu,
		StandardError:    se,
	}

	statistic := (mean - p.Mu) / se
	result.Statistic = ptr(statistic)

	var pValue float64
	var crit float64
	if p.TestType == inference.TestT {
		df := float64(n - 1)
		tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
		pTwo := 2 * (1 - tDist.CDF(math.Abs(statistic)))
		pValue = directionalP(pTwo, statistic, p.Alternative)
		crit = tDist.Quantile(1 - p.Alpha/2)
		result.TestType = "one_sample_t"
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
		result.TestType = "one_sample_z"
	}

	result.PValue = ptr(pValue)
	result.RejectNull = ptr(rejectNull(pValue, p.Alpha))
	result.Interval = &inference.Interval{
		Low:  mean - crit*se,
		High: mean + crit*se,
	}
	return result, nil
}
