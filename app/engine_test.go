package app

import (
	"context"
	"os"
	"strings"
	"testing"

	"datawhisperer/adapters/columnar"
	"datawhisperer/adapters/memory"
	"datawhisperer/adapters/rng"
	"datawhisperer/domain/core"
	"datawhisperer/domain/dataset"
	"datawhisperer/domain/inference"
	"datawhisperer/domain/profile"
	dquality "datawhisperer/domain/quality"
	"datawhisperer/domain/run"
	dviz "datawhisperer/domain/viz"
	"datawhisperer/internal"
	"datawhisperer/internal/describe"
	"datawhisperer/internal/errors"
	svcinference "datawhisperer/internal/inference"
	"datawhisperer/internal/ingest"
	"datawhisperer/internal/ledger"
	"datawhisperer/internal/profiling"
	svcquality "datawhisperer/internal/quality"
	"datawhisperer/internal/registry"
	"datawhisperer/internal/testkit"
	svcviz "datawhisperer/internal/viz"
	svcwrangle "datawhisperer/internal/wrangle"
)

// stubRenderer avoids pulling chart rendering into facade tests.
type stubRenderer struct {
	dir string
	n   int
}

func (r *stubRenderer) Render(_ context.Context, _ dviz.Spec, _ *dataset.Frame) (string, error) {
	r.n++
	path := r.dir + "/chart.html"
	if err := os.WriteFile(path, []byte("stub"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	log := internal.NewLogger(internal.LogLevelError)
	reg := registry.NewService(
		memory.NewDatasetRepository(),
		columnar.NewLocalStore(t.TempDir()),
		log,
	)
	plots := t.TempDir()
	return NewEngine(Deps{
		Registry:  reg,
		Ingest:    ingest.NewService(reg, log),
		Profiler:  profiling.NewProfiler(),
		Scorer:    svcquality.NewScorer(dquality.DefaultWeights()),
		Describe:  describe.NewService(),
		Inference: svcinference.NewService(rng.NewSource(7)),
		Wrangle:   svcwrangle.NewService(reg, log),
		Viz:       svcviz.NewService(reg, &stubRenderer{dir: plots}, plots, log),
		Ledger:    ledger.NewService(memory.NewRunRepository(), log),
		Prefs:     memory.NewPreferenceRepository(),
		Log:       log,
	})
}

func ingestCustomers(t *testing.T, e *Engine, cfg testkit.CustomerConfig) core.DatasetID {
	t.Helper()
	text, err := testkit.CustomersCSV(cfg)
	if err != nil {
		t.Fatalf("generating csv: %v", err)
	}
	res, err := e.IngestCSVReader(context.Background(), strings.NewReader(text), "customers.csv")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	return res.DatasetID
}

func TestTransformationChainLineage(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// A -> filter -> B -> select -> C; lineage of C walks back to A.
	a := ingestCustomers(t, e, testkit.DefaultCustomerConfig())
	filtered, err := e.Filter(ctx, a, "spend > 90")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	b := filtered.NewDatasetID
	selected, err := e.SelectColumns(ctx, b, []string{"spend", "group"})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	c := selected.NewDatasetID

	chain, err := e.Lineage(ctx, c)
	if err != nil {
		t.Fatalf("lineage: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("chain length = %d, want 3", len(chain))
	}
	if chain[0].DatasetID != c || chain[1].DatasetID != b || chain[2].DatasetID != a {
		t.Errorf("chain order wrong: %s, %s, %s", chain[0].DatasetID, chain[1].DatasetID, chain[2].DatasetID)
	}
	if chain[2].ParentDatasetID != "" {
		t.Errorf("root parent = %q, want empty", chain[2].ParentDatasetID)
	}
	if chain[1].TransformationNote == "" {
		t.Error("derived dataset should carry a transformation note")
	}
}

func TestCheckQualityRecordsRun(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	cfg := testkit.DefaultCustomerConfig()
	cfg.DuplicateRows = 10
	cfg.MissingAgeRate = 0.3
	id := ingestCustomers(t, e, cfg)

	res, err := e.CheckQuality(ctx, id, profile.OutlierIQR)
	if err != nil {
		t.Fatalf("quality check: %v", err)
	}
	if res.ReadinessScore.Overall >= 100 {
		t.Errorf("overall = %v, defects should cost points", res.ReadinessScore.Overall)
	}
	if res.Report.DuplicateRows.Count < 10 {
		t.Errorf("duplicate count = %d, want at least the 10 planted", res.Report.DuplicateRows.Count)
	}

	runs, err := e.ListRuns(ctx, id, 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("ledger holds %d runs, want the quality check", len(runs))
	}
	if runs[0].RunType != run.TypeQualityCheck {
		t.Errorf("run type = %q", runs[0].RunType)
	}
	if runs[0].ReadinessScore == nil {
		t.Error("quality run should snapshot the readiness score")
	}
}

func TestInferenceThroughFacade(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	cfg := testkit.DefaultCustomerConfig()
	cfg.Rows = 400
	cfg.GroupEffect = 20
	id := ingestCustomers(t, e, cfg)

	two, err := e.TwoSample(ctx, id, svcinference.TwoSampleParams{
		Column:      "spend",
		GroupColumn: "group",
		GroupA:      "treatment",
		GroupB:      "control",
		TestType:    inference.TestT,
		Alternative: inference.Greater,
	})
	if err != nil {
		t.Fatalf("two sample: %v", err)
	}
	// Alpha was omitted, the facade default applies.
	if two.Alpha != 0.05 {
		t.Errorf("alpha = %v, want default 0.05", two.Alpha)
	}
	if two.RejectNull == nil || !*two.RejectNull {
		t.Error("planted effect of 20 should reject the null")
	}

	runs, err := e.ListRuns(ctx, id, 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunType != run.TypeInference {
		t.Fatalf("inference run not recorded: %+v", runs)
	}
	if _, ok := runs[0].StructuredResults.PValues["two_sample_t"]; !ok {
		t.Error("recorded run should carry the test's p-value")
	}
}

func TestRemoveOutliersUsesProfilerBounds(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	cfg := testkit.DefaultCustomerConfig()
	cfg.SpendOutliers = []float64{1000, 1200, -400}
	id := ingestCustomers(t, e, cfg)

	res, err := e.RemoveOutliers(ctx, id, []string{"spend"})
	if err != nil {
		t.Fatalf("remove outliers: %v", err)
	}
	if res.NoOp {
		t.Fatal("numeric column with bounds must not be a no-op")
	}
	if res.RowsRemoved < 3 {
		t.Errorf("rows removed = %d, want at least the 3 planted extremes", res.RowsRemoved)
	}
	if _, ok := res.BoundsApplied["spend"]; !ok {
		t.Error("spend bounds missing from the result")
	}
}

func TestRenderChartDedupe(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	id := ingestCustomers(t, e, testkit.DefaultCustomerConfig())

	raw := svcviz.RawSpec{DatasetID: id.String(), ChartType: "histogram", X: "spend"}
	first, err := e.RenderChart(ctx, raw)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	second, err := e.RenderChart(ctx, raw)
	if err != nil {
		t.Fatalf("render again: %v", err)
	}
	if !second.Reused || second.FilePath != first.FilePath {
		t.Error("identical chart request should reuse the artifact")
	}
}

func TestCompareRunsThroughFacade(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	id := ingestCustomers(t, e, testkit.DefaultCustomerConfig())

	a := run.NewAnalysisRun(id, "", run.TypeInference)
	a.StructuredResults.PValues["one_sample_t"] = 0.2
	if _, err := e.SaveRun(ctx, a); err != nil {
		t.Fatalf("save a: %v", err)
	}
	b := run.NewAnalysisRun(id, "", run.TypeInference)
	b.StructuredResults.PValues["one_sample_t"] = 0.01
	if _, err := e.SaveRun(ctx, b); err != nil {
		t.Fatalf("save b: %v", err)
	}

	cmp, err := e.CompareRuns(ctx, a.RunID, b.RunID)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !cmp.SameDataset {
		t.Error("both runs target one dataset")
	}
	pair := cmp.PValueChanges["one_sample_t"]
	if pair.RunA == nil || pair.RunB == nil {
		t.Fatalf("pair = %+v", pair)
	}
	if *pair.RunA != 0.2 || *pair.RunB != 0.01 {
		t.Errorf("pair values = %v, %v", *pair.RunA, *pair.RunB)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// Unknown users get defaults, never an error.
	got, err := e.GetPreferences(ctx, "nobody")
	if err != nil {
		t.Fatalf("get defaults: %v", err)
	}
	if got.DefaultAlpha != 0.05 {
		t.Errorf("default alpha = %v", got.DefaultAlpha)
	}

	saved := e.SavePreferences(ctx, run.UserPreferences{
		UserID:       "alex",
		WritingStyle: run.StyleExecutive,
		DefaultAlpha: 0.01,
	})
	if saved.WritingStyle != run.StyleExecutive {
		t.Errorf("style = %q", saved.WritingStyle)
	}

	got, err = e.GetPreferences(ctx, "alex")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DefaultAlpha != 0.01 {
		t.Errorf("stored alpha = %v, want 0.01", got.DefaultAlpha)
	}
}

func TestFacadeErrorsKeepTheirCodes(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.GetDataset(ctx, "ds_missing"); !errors.IsCode(err, errors.CodeDatasetNotFound) {
		t.Errorf("unknown dataset: got %v", err)
	}
	if _, err := e.GetRun(ctx, "run_missing"); !errors.IsCode(err, errors.CodeRunNotFound) {
		t.Errorf("unknown run: got %v", err)
	}

	id := ingestCustomers(t, e, testkit.DefaultCustomerConfig())
	if _, err := e.Filter(ctx, id, "spend >"); !errors.IsCode(err, errors.CodeExpressionError) {
		t.Errorf("bad expression: got %v", err)
	}
	if _, err := e.OneSample(ctx, id, svcinference.OneSampleParams{
		Column: "group", TestType: inference.TestT, Mu: 0, Alternative: inference.TwoSided,
	}); !errors.IsCode(err, errors.CodeInferenceError) {
		t.Errorf("non-numeric column: got %v", err)
	}
}
