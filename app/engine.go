// Package app exposes the analysis engine as one typed facade plus the
// response envelope callers serialize over their transport of choice.
package app

import (
	"context"
	"io"

	"datawhisperer/domain/core"
	"datawhisperer/domain/dataset"
	"datawhisperer/domain/inference"
	"datawhisperer/domain/profile"
	"datawhisperer/domain/quality"
	"datawhisperer/domain/run"
	dviz "datawhisperer/domain/viz"
	dwrangle "datawhisperer/domain/wrangle"
	"datawhisperer/internal"
	"datawhisperer/internal/describe"
	svcinference "datawhisperer/internal/inference"
	"datawhisperer/internal/ingest"
	"datawhisperer/internal/ledger"
	"datawhisperer/internal/profiling"
	svcquality "datawhisperer/internal/quality"
	"datawhisperer/internal/registry"
	svcviz "datawhisperer/internal/viz"
	svcwrangle "datawhisperer/internal/wrangle"
	"datawhisperer/ports"
)

// Engine is the single entry point for every analysis operation.
type Engine struct {
	registry  *registry.Service
	ingest    *ingest.Service
	profiler  *profiling.Profiler
	scorer    *svcquality.Scorer
	describe  *describe.Service
	inference *svcinference.Service
	wrangle   *svcwrangle.Service
	viz       *svcviz.Service
	ledger    *ledger.Service
	prefs     ports.PreferenceRepository
	log       *internal.Logger

	defaultAlpha float64
}

// Deps wires an Engine. Every field is required except DefaultAlpha,
// which falls back to the conventional 0.05.
type Deps struct {
	Registry     *registry.Service
	Ingest       *ingest.Service
	Profiler     *profiling.Profiler
	Scorer       *svcquality.Scorer
	Describe     *describe.Service
	Inference    *svcinference.Service
	Wrangle      *svcwrangle.Service
	Viz          *svcviz.Service
	Ledger       *ledger.Service
	Prefs        ports.PreferenceRepository
	Log          *internal.Logger
	DefaultAlpha float64
}

// NewEngine assembles the facade from already-constructed services.
func NewEngine(d Deps) *Engine {
	alpha := d.DefaultAlpha
	if alpha <= 0 || alpha >= 1 {
		alpha = inference.DefaultAlpha
	}
	return &Engine{
		registry:     d.Registry,
		ingest:       d.Ingest,
		profiler:     d.Profiler,
		scorer:       d.Scorer,
		describe:     d.Describe,
		inference:    d.Inference,
		wrangle:      d.Wrangle,
		viz:          d.Viz,
		ledger:       d.Ledger,
		prefs:        d.Prefs,
		log:          d.Log,
		defaultAlpha: alpha,
	}
}

// ---- ingestion and registry ----

// IngestCSV loads a CSV file and registers it as a new dataset.
func (e *Engine) IngestCSV(ctx context.Context, path string) (*ingest.Result, error) {
	return e.ingest.IngestCSV(ctx, path)
}

// IngestCSVReader loads CSV content from a reader.
func (e *Engine) IngestCSVReader(ctx context.Context, r io.Reader, filename string) (*ingest.Result, error) {
	return e.ingest.IngestCSVReader(ctx, r, filename)
}

// IngestExcel loads one sheet of a workbook; an empty sheet name means
// the first sheet.
func (e *Engine) IngestExcel(ctx context.Context, path, sheet string) (*ingest.Result, error) {
	return e.ingest.IngestExcel(ctx, path, sheet)
}

// GetDataset returns a dataset's metadata.
func (e *Engine) GetDataset(ctx context.Context, id core.DatasetID) (*dataset.Metadata, error) {
	return e.registry.GetMetadata(ctx, id)
}

// ListDatasets returns every known dataset, newest first.
func (e *Engine) ListDatasets(ctx context.Context) ([]*dataset.Metadata, error) {
	return e.registry.List(ctx)
}

// Lineage returns the ancestry chain from the dataset back to its root
// ingestion, the dataset itself first.
func (e *Engine) Lineage(ctx context.Context, id core.DatasetID) ([]*dataset.Metadata, error) {
	return e.registry.Lineage(ctx, id)
}

// CacheStats reports registry cache behavior.
func (e *Engine) CacheStats() registry.CacheStats {
	return e.registry.Stats()
}

// ---- profiling and readiness ----

// QualityCheckResult pairs the column profiles with the readiness
// score derived from them.
type QualityCheckResult struct {
	Report         *profile.QualityReport `json:"report"`
	ReadinessScore quality.ReadinessScore `json:"readiness_score"`
}

// CheckQuality profiles every column and scores dataset readiness. The
// run is recorded in the ledger best-effort.
func (e *Engine) CheckQuality(ctx context.Context, id core.DatasetID, method profile.OutlierMethod) (*QualityCheckResult, error) {
	frame, _, err := e.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	report, err := e.profiler.ProfileDataset(id.String(), frame, method)
	if err != nil {
		return nil, err
	}
	score := e.scorer.Score(report)

	record := run.NewAnalysisRun(id, "", run.TypeQualityCheck)
	record.ReadinessScore = &score
	e.ledger.SaveBestEffort(ctx, record)

	return &QualityCheckResult{Report: report, ReadinessScore: score}, nil
}

// ---- descriptive statistics ----

// Univariate summarizes the named columns, or all columns when the
// list is empty.
func (e *Engine) Univariate(ctx context.Context, id core.DatasetID, columns []string) (*describe.UnivariateResult, error) {
	frame, _, err := e.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.describe.Univariate(id.String(), frame, columns)
}

// Bivariate summarizes the relationship between two columns.
func (e *Engine) Bivariate(ctx context.Context, id core.DatasetID, x, y string) (*describe.BivariateResult, error) {
	frame, _, err := e.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.describe.Bivariate(id.String(), frame, x, y)
}

// CorrelationMatrix computes pairwise correlations over the named
// numeric columns, or all numeric columns when the list is empty.
func (e *Engine) CorrelationMatrix(ctx context.Context, id core.DatasetID, columns []string) (*describe.CorrelationResult, error) {
	frame, _, err := e.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.describe.CorrelationMatrix(id.String(), frame, columns)
}

// ---- inference ----

func (e *Engine) alphaOrDefault(alpha float64) float64 {
	if alpha == 0 {
		return e.defaultAlpha
	}
	return alpha
}

// OneSample tests a column mean against a hypothesized value.
func (e *Engine) OneSample(ctx context.Context, id core.DatasetID, p svcinference.OneSampleParams) (*inference.OneSampleResult, error) {
	frame, _, err := e.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Alpha = e.alphaOrDefault(p.Alpha)
	result, err := e.inference.OneSample(id.String(), frame, p)
	if err != nil {
		return nil, err
	}
	e.recordTest(ctx, id, result.Common)
	return result, nil
}

// TwoSample compares the means of two groups.
func (e *Engine) TwoSample(ctx context.Context, id core.DatasetID, p svcinference.TwoSampleParams) (*inference.TwoSampleResult, error) {
	frame, _, err := e.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Alpha = e.alphaOrDefault(p.Alpha)
	result, err := e.inference.TwoSample(id.String(), frame, p)
	if err != nil {
		return nil, err
	}
	e.recordTest(ctx, id, result.Common)
	return result, nil
}

// Binomial runs an exact proportion test. It needs no dataset; the
// counts are supplied directly.
func (e *Engine) Binomial(ctx context.Context, p svcinference.BinomialParams) (*inference.BinomialResult, error) {
	p.Alpha = e.alphaOrDefault(p.Alpha)
	return e.inference.Binomial(p)
}

// CLTSampling simulates the sampling distribution of a column's mean.
func (e *Engine) CLTSampling(ctx context.Context, id core.DatasetID, p svcinference.CLTParams) (*inference.CLTSamplingResult, error) {
	frame, _, err := e.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.inference.CLTSampling(id.String(), frame, p)
}

// recordTest appends an inference run to the ledger best-effort.
func (e *Engine) recordTest(ctx context.Context, id core.DatasetID, c inference.Common) {
	record := run.NewAnalysisRun(id, "", run.TypeInference)
	if c.PValue != nil {
		record.StructuredResults.PValues[c.TestType] = *c.PValue
	}
	if c.Interval != nil {
		record.StructuredResults.ConfidenceIntervals[c.TestType] = []float64{c.Interval.Low, c.Interval.High}
	}
	if c.EffectSize != nil {
		record.StructuredResults.EffectSizes[c.TestType] = *c.EffectSize
	}
	e.ledger.SaveBestEffort(ctx, record)
}

// ---- wrangle ----

// Filter keeps rows matching a boolean condition, registering the
// result as a new dataset.
func (e *Engine) Filter(ctx context.Context, id core.DatasetID, condition string) (*dwrangle.FilterResult, error) {
	return e.wrangle.Filter(ctx, id, condition)
}

// SelectColumns projects the dataset onto the named columns.
func (e *Engine) SelectColumns(ctx context.Context, id core.DatasetID, columns []string) (*dwrangle.SelectResult, error) {
	return e.wrangle.Select(ctx, id, columns)
}

// Mutate assigns computed columns from expressions.
func (e *Engine) Mutate(ctx context.Context, id core.DatasetID, expressions map[string]string) (*dwrangle.MutateResult, error) {
	return e.wrangle.Mutate(ctx, id, expressions)
}

// RemoveOutliers drops rows outside the profiler's IQR bounds for the
// named numeric columns (all numeric columns when the list is empty).
// The bounds come from a fresh profile of the source dataset; the
// removal itself never recomputes statistics.
func (e *Engine) RemoveOutliers(ctx context.Context, id core.DatasetID, columns []string) (*dwrangle.RemoveOutliersResult, error) {
	frame, _, err := e.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	report, err := e.profiler.ProfileDataset(id.String(), frame, profile.OutlierIQR)
	if err != nil {
		return nil, err
	}

	bounds := make(dwrangle.OutlierBounds)
	for _, col := range report.Columns {
		if col.NumericSummary == nil {
			continue
		}
		bounds[col.Name] = dwrangle.Bounds{
			Lower: col.NumericSummary.LowerBound,
			Upper: col.NumericSummary.UpperBound,
		}
	}
	return e.wrangle.RemoveOutliers(ctx, id, bounds, columns)
}

// ---- visualization ----

// ResolveChart validates a chart request without rendering it.
func (e *Engine) ResolveChart(ctx context.Context, raw svcviz.RawSpec) (dviz.Spec, error) {
	return e.viz.Resolve(ctx, raw)
}

// RenderChart renders a chart, reusing a cached artifact when an
// identical request was rendered before.
func (e *Engine) RenderChart(ctx context.Context, raw svcviz.RawSpec) (*dviz.Result, error) {
	return e.viz.Render(ctx, raw)
}

// ---- run ledger ----

// SaveRun upserts an analysis run by run_id.
func (e *Engine) SaveRun(ctx context.Context, record run.AnalysisRun) (*run.AnalysisRun, error) {
	return e.ledger.Save(ctx, record)
}

// GetRun fetches a run by id.
func (e *Engine) GetRun(ctx context.Context, id core.RunID) (*run.AnalysisRun, error) {
	return e.ledger.Get(ctx, id)
}

// ListRuns returns a dataset's runs, newest first.
func (e *Engine) ListRuns(ctx context.Context, id core.DatasetID, limit int) ([]*run.AnalysisRun, error) {
	return e.ledger.ListForDataset(ctx, id, limit)
}

// RecentRuns returns the latest runs across all datasets.
func (e *Engine) RecentRuns(ctx context.Context, limit int) ([]*run.AnalysisRun, error) {
	return e.ledger.Recent(ctx, limit)
}

// CompareRuns diffs two saved runs.
func (e *Engine) CompareRuns(ctx context.Context, a, b core.RunID) (*run.Comparison, error) {
	return e.ledger.Compare(ctx, a, b)
}

// ---- preferences ----

// GetPreferences returns the user's stored preferences, or defaults
// for an unknown user.
func (e *Engine) GetPreferences(ctx context.Context, userID string) (*run.UserPreferences, error) {
	if userID == "" {
		userID = "default"
	}
	return e.prefs.Get(ctx, userID)
}

// SavePreferences stores preferences best-effort: a storage failure is
// logged and the submitted preferences are returned unchanged, so the
// caller's flow never breaks on a preference write.
func (e *Engine) SavePreferences(ctx context.Context, prefs run.UserPreferences) *run.UserPreferences {
	if prefs.UserID == "" {
		prefs.UserID = "default"
	}
	if prefs.DefaultAlpha <= 0 || prefs.DefaultAlpha >= 1 {
		prefs.DefaultAlpha = e.defaultAlpha
	}
	prefs.UpdatedAt = core.Now()
	if err := e.prefs.Save(ctx, &prefs); err != nil {
		e.log.Warn("preference save for user %s failed: %v", prefs.UserID, err)
	}
	return &prefs
}
