package inference

import (
	"fmt"
	"math"

	"datawhisperer/domain/inference"
	"datawhisperer/internal/errors"

	"gonum.org/v1/gonum/stat/distuv"
)

// BinomialParams configures an exact binomial proportion test.
type BinomialParams struct {
	Successes   int
	N           int
	P0          float64
	Alternative inference.Alternative
	Alpha       float64
}

// Binomial runs an exact binomial test of the observed proportion
// against a hypothesized one, with a Wilson confidence interval.
func (s *Service) Binomial(p BinomialParams) (*inference.BinomialResult, error) {
	if p.N <= 0 {
		return nil, errors.InvalidParameter("n", "must be positive")
	}
	if p.Successes < 0 || p.Successes > p.N {
		return nil, errors.InvalidParameter("successes",
			fmt.Sprintf("must be between 0 and n=%d, got %d", p.N, p.Successes))
	}
	if p.P0 <= 0 || p.P0 >= 1 {
		return nil, errors.InvalidParameter("p0", fmt.Sprintf("must be in (0, 1), got %v", p.P0))
	}
	if err := validateAlpha(p.Alpha); err != nil {
		return nil, err
	}
	if err := validateAlternative(p.Alternative); err != nil {
		return nil, err
	}

	pValue := binomialP(p.Successes, p.N, p.P0, p.Alternative)
	low, high := wilsonInterval(p.Successes, p.N, p.Alpha)

	return &inference.BinomialResult{
		Common: inference.Common{
			Family:          inference.FamilyBinomial,
			TestType:        "binomial",
			Target:          "proportion",
			PValue:          ptr(pValue),
			Alpha:           p.Alpha,
			RejectNull:      ptr(rejectNull(pValue, p.Alpha)),
			ConfidenceLevel: 1 - p.Alpha,
			Interval:        &inference.Interval{Low: low, High: high},
			Alternative:     p.Alternative,
		},
		Successes:              p.Successes,
		N:                      p.N,
		ObservedProportion:     float64(p.Successes) / float64(p.N),
		HypothesizedProportion: p.P0,
	}, nil
}

// binomialP computes the exact p-value. The two-sided value sums the
// probability of every outcome no more likely than the observed one.
func binomialP(k, n int, p0 float64, alt inference.Alternative) float64 {
	dist := distuv.Binomial{N: float64(n), P: p0}

	switch alt {
	case inference.Less:
		return clampP(dist.CDF(float64(k)))
	case inference.Greater:
		if k == 0 {
			return 1
		}
		return clampP(1 - dist.CDF(float64(k-1)))
	default:
		pObs := dist.Prob(float64(k))
		// Small relative slack absorbs floating point noise when
		// comparing tail probabilities to the observed one.
		threshold := pObs * (1 + 1e-7)
		sum := 0.0
		for i := 0; i <= n; i++ {
			if pi := dist.Prob(float64(i)); pi <= threshold {
				sum += pi
			}
		}
		return clampP(sum)
	}
}

// wilsonInterval is the Wilson score interval for a proportion at
// confidence level 1-alpha.
func wilsonInterval(k, n int, alpha float64) (float64, float64) {
	z := stdNormal.Quantile(1 - alpha/2)
	nf := float64(n)
	phat := float64(k) / nf

	denom := 1 + z*z/nf
	center := (phat + z*z/(2*nf)) / denom
	half := z * math.Sqrt(phat*(1-phat)/nf+z*z/(4*nf*nf)) / denom

	return math.Max(0, center-half), math.Min(1, center+half)
}

func clampP(p float64) float64 {
	return math.Max(0, math.Min(1, p))
}
