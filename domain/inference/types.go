// Package inference defines the closed result types for the
// statistical test families.
package inference

// TestKind selects the test statistic family.
type TestKind string

const (
	TestT TestKind = "t"
	TestZ TestKind = "z"
)

// Alternative is the alternative hypothesis direction.
type Alternative string

const (
	TwoSided Alternative = "two-sided"
	Less     Alternative = "less"
	Greater  Alternative = "greater"
)

// Valid reports whether the alternative is one of the closed set.
func (a Alternative) Valid() bool {
	return a == TwoSided || a == Less || a == Greater
}

// Family tags the result union.
type Family string

const (
	FamilyOneSample   Family = "one_sample"
	FamilyTwoSample   Family = "two_sample"
	FamilyBinomial    Family = "binomial"
	FamilyCLTSampling Family = "clt_sampling"
)

// DefaultAlpha is the significance level used when none is given.
const DefaultAlpha = 0.05

// Interval is an ordered [low, high] confidence interval.
type Interval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Common carries the fields shared by every test result. Nullable
// fields are pointers: a binomial test has no statistic, a CLT
// simulation has no p-value.
type Common struct {
	Family          Family      `json:"test_family"`
	TestType        string      `json:"test_type"`
	Target          string      `json:"target"`
	Statistic       *float64    `json:"statistic"`
	PValue          *float64    `json:"p_value"`
	Alpha           float64     `json:"alpha"`
	RejectNull      *bool       `json:"reject_null"`
	ConfidenceLevel float64     `json:"confidence_level,omitempty"`
	Interval        *Interval   `json:"confidence_interval"`
	EffectSize      *float64    `json:"effect_size"`
	Alternative     Alternative `json:"alternative,omitempty"`
}

// OneSampleResult is the outcome of a one-sample t or z test.
type OneSampleResult struct {
	Common
	DatasetID        string   `json:"dataset_id"`
	Column           string   `json:"column"`
	N                int      `json:"n"`
	SampleMean       float64  `json:"sample_mean"`
	SampleStd        float64  `json:"sample_std"`
	HypothesizedMean float64  `json:"hypothesized_mean"`
	StandardError    float64  `json:"standard_error"`
	DF               *float64 `json:"df,omitempty"`
}

// TwoSampleResult is the outcome of a two-sample (Welch) t or z test.
type TwoSampleResult struct {
	Common
	DatasetID         string   `json:"dataset_id"`
	Column            string   `json:"column"`
	GroupColumn       string   `json:"group_col"`
	GroupA            string   `json:"group_a"`
	GroupB            string   `json:"group_b"`
	NA                int      `json:"n_a"`
	NB                int      `json:"n_b"`
	MeanA             float64  `json:"mean_a"`
	MeanB             float64  `json:"mean_b"`
	StdA              float64  `json:"std_a"`
	StdB              float64  `json:"std_b"`
	MeanDiff          float64  `json:"mean_diff"`
	StandardErrorDiff float64  `json:"standard_error_diff"`
	CohenD            float64  `json:"cohen_d"`
	DF                *float64 `json:"df,omitempty"`
}

// BinomialResult is the outcome of an exact binomial proportion test.
type BinomialResult struct {
	Common
	Successes              int     `json:"successes"`
	N                      int     `json:"n"`
	ObservedProportion     float64 `json:"observed_proportion"`
	HypothesizedProportion float64 `json:"hypothesized_proportion"`
}

// PopulationEstimate summarizes the observed values a CLT simulation
// resamples from.
type PopulationEstimate struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	N    int     `json:"n"`
}

// SamplingParameters are the bootstrap dimensions.
type SamplingParameters struct {
	SampleSize int `json:"sample_size"`
	NSamples   int `json:"n_samples"`
}

// SamplingDistribution summarizes the simulated sample means.
type SamplingDistribution struct {
	MeanOfSampleMeans        float64            `json:"mean_of_sample_means"`
	StdOfSampleMeans         float64            `json:"std_of_sample_means"`
	TheoreticalStandardError float64            `json:"theoretical_standard_error"`
	Percentiles              map[string]float64 `json:"percentiles"`
}

// SampleMeansPreviewLimit bounds the preview of simulated means.
const SampleMeansPreviewLimit = 50

// CLTSamplingResult is the outcome of a sampling-distribution
// simulation. It carries no hypothesis decision.
type CLTSamplingResult struct {
	Common
	DatasetID            string               `json:"dataset_id"`
	Column               string               `json:"column"`
	PopulationEstimate   PopulationEstimate   `json:"population_estimate"`
	SamplingParameters   SamplingParameters   `json:"sampling_parameters"`
	SamplingDistribution SamplingDistribution `json:"sampling_distribution"`
	SampleMeansPreview   []float64            `json:"sample_means_preview"`
}
