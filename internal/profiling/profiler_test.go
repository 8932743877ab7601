package profiling

import (
	"math/rand"
	"testing"

	"datawhisperer/domain/dataset"
	"datawhisperer/domain/profile"
	"datawhisperer/internal/errors"
)

func numericColumn(name string, values []float64) dataset.Column {
	col := dataset.Column{Name: name, DType: dataset.DTypeFloat}
	for _, v := range values {
		col.Values = append(col.Values, dataset.Number(v))
	}
	return col
}

func TestProfileDatasetBasics(t *testing.T) {
	frame, err := dataset.NewFrame(
		dataset.Column{Name: "city", DType: dataset.DTypeString, Values: []dataset.Value{
			dataset.String("oslo"), dataset.String("lima"), dataset.String("oslo"), dataset.Null,
		}},
		dataset.Column{Name: "flag", DType: dataset.DTypeString, Values: []dataset.Value{
			dataset.String("x"), dataset.String("x"), dataset.String("x"), dataset.String("x"),
		}},
		numericColumn("score", []float64{1, 2, 3, 4}),
	)
	if err != nil {
		t.Fatalf("building frame: %v", err)
	}

	report, err := NewProfiler().ProfileDataset("ds_test", frame, profile.OutlierBoth)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if report.NumRows != 4 || report.NumColumns != 3 {
		t.Errorf("report shape = %dx%d, want 4x3", report.NumRows, report.NumColumns)
	}

	byName := map[string]profile.ColumnProfile{}
	for _, cp := range report.Columns {
		byName[cp.Name] = cp
	}

	city := byName["city"]
	if city.MissingCount != 1 {
		t.Errorf("city missing = %d, want 1", city.MissingCount)
	}
	if city.UniqueCount != 2 {
		t.Errorf("city unique = %d, want 2", city.UniqueCount)
	}
	if len(city.Issues) == 0 {
		t.Error("city should report its missing values")
	}

	flag := byName["flag"]
	if !flag.IsConstant {
		t.Error("flag should be constant")
	}

	score := byName["score"]
	if score.NumericSummary == nil {
		t.Fatal("score should have a numeric summary")
	}
	if score.NumericSummary.Median != 2.5 {
		t.Errorf("score median = %v, want 2.5", score.NumericSummary.Median)
	}
	if !score.IsAllUnique {
		t.Error("score should be all unique")
	}
}

func TestOutlierScanFlagsExtremes(t *testing.T) {
	// A tight normal population plus five clear extremes.
	rng := rand.New(rand.NewSource(7))
	values := make([]float64, 0, 205)
	for i := 0; i < 200; i++ {
		values = append(values, 50+rng.NormFloat64()*10)
	}
	values = append(values, 0, 5, 150, 180, 200)

	iqrSummary := NumericSummary(values, profile.OutlierIQR)
	if iqrSummary == nil {
		t.Fatal("summary should not be nil")
	}
	if iqrSummary.OutlierCount < 3 {
		t.Errorf("iqr outlier count = %d, want at least 3", iqrSummary.OutlierCount)
	}

	zSummary := NumericSummary(values, profile.OutlierZScore)
	bothSummary := NumericSummary(values, profile.OutlierBoth)
	if bothSummary.OutlierCount < iqrSummary.OutlierCount || bothSummary.OutlierCount < zSummary.OutlierCount {
		t.Errorf("both (%d) should flag at least as many as iqr (%d) and zscore (%d)",
			bothSummary.OutlierCount, iqrSummary.OutlierCount, zSummary.OutlierCount)
	}
	if iqrSummary.LowerBound >= iqrSummary.UpperBound {
		t.Errorf("bounds inverted: [%v, %v]", iqrSummary.LowerBound, iqrSummary.UpperBound)
	}
}

func TestOutlierPreviewTruncation(t *testing.T) {
	// 30 extremes against a flat population: preview caps at the limit.
	values := make([]float64, 0, 530)
	for i := 0; i < 500; i++ {
		values = append(values, 10)
	}
	for i := 0; i < 30; i++ {
		values = append(values, 1000+float64(i))
	}

	summary := NumericSummary(values, profile.OutlierIQR)
	if summary.OutlierCount != 30 {
		t.Fatalf("outlier count = %d, want 30", summary.OutlierCount)
	}
	if len(summary.Outliers) != profile.OutlierPreviewLimit {
		t.Errorf("preview length = %d, want %d", len(summary.Outliers), profile.OutlierPreviewLimit)
	}
	if !summary.OutliersTruncated {
		t.Error("preview should be marked truncated")
	}
}

func TestNumericSummaryDegenerate(t *testing.T) {
	if s := NumericSummary(nil, profile.OutlierBoth); s != nil {
		t.Error("empty input should yield nil summary")
	}
	s := NumericSummary([]float64{42}, profile.OutlierBoth)
	if s == nil {
		t.Fatal("single value should still summarize")
	}
	if s.Std != nil {
		t.Error("single value has no sample standard deviation")
	}
}

func TestSemanticTypeHeuristics(t *testing.T) {
	cases := []struct {
		dtype  dataset.DType
		unique int
		rows   int
		want   profile.SemanticType
	}{
		{dataset.DTypeInt, 5, 1000, profile.SemanticNumericCategorical},
		{dataset.DTypeFloat, 900, 1000, profile.SemanticNumeric},
		{dataset.DTypeFloat, 40, 1000, profile.SemanticNumericCategorical},
		{dataset.DTypeBool, 2, 100, profile.SemanticBoolean},
		{dataset.DTypeDatetime, 90, 100, profile.SemanticDatetime},
		{dataset.DTypeString, 3, 100, profile.SemanticCategorical},
		{dataset.DTypeString, 95, 100, profile.SemanticText},
	}
	for _, tc := range cases {
		got := inferSemanticType(tc.dtype, tc.unique, tc.rows)
		if got != tc.want {
			t.Errorf("inferSemanticType(%s, %d, %d) = %s, want %s",
				tc.dtype, tc.unique, tc.rows, got, tc.want)
		}
	}
}

func TestProfileRejectsUnknownMethod(t *testing.T) {
	frame, _ := dataset.NewFrame(numericColumn("x", []float64{1, 2, 3}))
	_, err := NewProfiler().ProfileDataset("ds_test", frame, profile.OutlierMethod("median"))
	if err == nil {
		t.Fatal("unknown method should be rejected")
	}
	if errors.GetCode(err) != errors.CodeInvalidParameter {
		t.Errorf("expected INVALID_PARAMETER, got %s", errors.GetCode(err))
	}
}
