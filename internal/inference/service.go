// Package inference runs the hypothesis-test families: one-sample and
// two-sample mean tests, exact binomial proportion tests, and
// sampling-distribution simulations.
package inference

import (
	"fmt"

	"datawhisperer/domain/dataset"
	"datawhisperer/domain/inference"
	"datawhisperer/internal/errors"
	"datawhisperer/ports"

	"gonum.org/v1/gonum/stat/distuv"
)

// Service runs hypothesis tests. The injected RNG drives the
// resampling simulations.
type Service struct {
	rng ports.RNG
}

// NewService creates an inference service.
func NewService(rng ports.RNG) *Service {
	return &Service{rng: rng}
}

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

func validateAlpha(alpha float64) error {
	if alpha <= 0 || alpha >= 1 {
		return errors.InvalidParameter("alpha", fmt.Sprintf("must be in (0, 1), got %v", alpha))
	}
	return nil
}

func validateAlternative(alt inference.Alternative) error {
	if !alt.Valid() {
		return errors.InvalidParameter("alternative",
			fmt.Sprintf("must be two-sided, less, or greater; got %q", alt))
	}
	return nil
}

func validateTestKind(kind inference.TestKind) error {
	if kind != inference.TestT && kind != inference.TestZ {
		return errors.InvalidParameter("test_type", fmt.Sprintf("must be t or z, got %q", kind))
	}
	return nil
}

// numericValues pulls the non-missing values of a column, enforcing
// that it exists, is numeric, and is non-empty.
func numericValues(frame *dataset.Frame, column string) ([]float64, error) {
	col, ok := frame.Column(column)
	if !ok {
		return nil, errors.ColumnNotFound(column, frame.ColumnNames())
	}
	if !col.IsNumeric() {
		return nil, errors.InferenceError(
			fmt.Sprintf("column %q must be numeric for this test, got %s", column, col.DType))
	}
	values := col.Floats()
	if len(values) == 0 {
		return nil, errors.InferenceError(
			fmt.Sprintf("column %q has no non-missing values", column))
	}
	return values, nil
}

// directionalP converts a two-sided p-value into the requested
// one-sided p-value based on the sign of the statistic.
func directionalP(pTwo, statistic float64, alt inference.Alternative) float64 {
	switch alt {
	case inference.Greater:
		if statistic > 0 {
			return pTwo / 2
		}
		return 1 - pTwo/2
	case inference.Less:
		if statistic < 0 {
			return pTwo / 2
		}
		return 1 - pTwo/2
	default:
		return pTwo
	}
}

// rejectNull applies the decision rule p <= alpha.
func rejectNull(p, alpha float64) bool {
	return p <= alpha
}

func ptr[T any](v T) *T {
	return &v
}
