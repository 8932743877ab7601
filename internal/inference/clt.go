package inference

import (
	"fmt"
	"math"
	"sort"

	"datawhisperer/domain/dataset"
	"datawhisperer/domain/inference"
	"datawhisperer/internal/errors"

	"github.com/montanaflynn/stats"
)

// CLTParams configures a sampling-distribution simulation.
type CLTParams struct {
	Column     string
	SampleSize int
	NSamples   int
}

// CLTSampling resamples the column with replacement and summarizes
// the distribution of sample means.
func (s *Service) CLTSampling(datasetID string, frame *dataset.Frame, p CLTParams) (*inference.CLTSamplingResult, error) {
	if p.SampleSize <= 0 {
		return nil, errors.InvalidParameter("sample_size", "must be positive")
	}
	if p.NSamples <= 0 {
		return nil, errors.InvalidParameter("n_samples", "must be positive")
	}

	values, err := numericValues(frame, p.Column)
	if err != nil {
		return nil, err
	}
	popN := len(values)

	popMean, _ := stats.Mean(values)
	popStd := 0.0
	if popN >= 2 {
		if sd, err := stats.StandardDeviationSample(values); err == nil && !math.IsNaN(sd) {
			popStd = sd
		}
	}

	rng := s.rng.Stream("clt_sampling")
	sampleMeans := make([]float64, p.NSamples)
	for i := range sampleMeans {
		sum := 0.0
		for j := 0; j < p.SampleSize; j++ {
			sum += values[rng.Intn(popN)]
		}
		sampleMeans[i] = sum / float64(p.SampleSize)
	}

	meanOfMeans, _ := stats.Mean(sampleMeans)
	stdOfMeans := 0.0
	if len(sampleMeans) >= 2 {
		if sd, err := stats.StandardDeviationSample(sampleMeans); err == nil && !math.IsNaN(sd) {
			stdOfMeans = sd
		}
	}

	sorted := append([]float64(nil), sampleMeans...)
	sort.Float64s(sorted)
	percentiles := map[string]float64{
		"2.5":  quantile(sorted, 0.025),
		"25":   quantile(sorted, 0.25),
		"50":   quantile(sorted, 0.50),
		"75":   quantile(sorted, 0.75),
		"97.5": quantile(sorted, 0.975),
	}

	preview := sampleMeans
	if len(preview) > inference.SampleMeansPreviewLimit {
		preview = preview[:inference.SampleMeansPreviewLimit]
	}

	return &inference.CLTSamplingResult{
		Common: inference.Common{
			Family:   inference.FamilyCLTSampling,
			TestType: "clt_sampling_demo",
			Target:   fmt.Sprintf("sampling distribution of mean(%s)", p.Column),
		},
		DatasetID: datasetID,
		Column:    p.Column,
		PopulationEstimate: inference.PopulationEstimate{
			Mean: popMean,
			Std:  popStd,
			N:    popN,
		},
		SamplingParameters: inference.SamplingParameters{
			SampleSize: p.SampleSize,
			NSamples:   p.NSamples,
		},
		SamplingDistribution: inference.SamplingDistribution{
			MeanOfSampleMeans:        meanOfMeans,
			StdOfSampleMeans:         stdOfMeans,
			TheoreticalStandardError: popStd / math.Sqrt(float64(p.SampleSize)),
			Percentiles:              percentiles,
		},
		SampleMeansPreview: preview,
	}, nil
}

// quantile linearly interpolates the q-th quantile of a sorted slice.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
