package describe

import (
	"math"
	"testing"

	"datawhisperer/domain/dataset"
	"datawhisperer/internal/errors"
)

func buildFrame(t *testing.T, cols ...dataset.Column) *dataset.Frame {
	t.Helper()
	frame, err := dataset.NewFrame(cols...)
	if err != nil {
		t.Fatalf("building frame: %v", err)
	}
	return frame
}

func floatCol(name string, values ...float64) dataset.Column {
	col := dataset.Column{Name: name, DType: dataset.DTypeFloat}
	for _, v := range values {
		col.Values = append(col.Values, dataset.Number(v))
	}
	return col
}

func stringCol(name string, values ...string) dataset.Column {
	col := dataset.Column{Name: name, DType: dataset.DTypeString}
	for _, v := range values {
		col.Values = append(col.Values, dataset.String(v))
	}
	return col
}

func TestUnivariateNumeric(t *testing.T) {
	frame := buildFrame(t, floatCol("x", 1, 2, 3, 4, 100))

	res, err := NewService().Univariate("ds_test", frame, nil)
	if err != nil {
		t.Fatalf("univariate: %v", err)
	}
	if len(res.Summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(res.Summaries))
	}
	item := res.Summaries[0]
	if item.Kind != KindNumeric {
		t.Fatalf("kind = %s, want numeric", item.Kind)
	}
	if item.Mean == nil || *item.Mean != 22 {
		t.Errorf("mean = %v, want 22", item.Mean)
	}
	if item.Median == nil || *item.Median != 3 {
		t.Errorf("median = %v, want 3", item.Median)
	}
	if item.NOutliers == nil || *item.NOutliers != 1 {
		t.Errorf("n_outliers = %v, want 1 (the value 100)", item.NOutliers)
	}
	if item.Min == nil || *item.Min != 1 || item.Max == nil || *item.Max != 100 {
		t.Errorf("range = [%v, %v], want [1, 100]", item.Min, item.Max)
	}
}

func TestUnivariateCategorical(t *testing.T) {
	frame := buildFrame(t, stringCol("city", "oslo", "lima", "oslo", "oslo"))

	res, err := NewService().Univariate("ds_test", frame, []string{"city"})
	if err != nil {
		t.Fatalf("univariate: %v", err)
	}
	item := res.Summaries[0]
	if item.Kind != KindCategorical {
		t.Fatalf("kind = %s, want categorical", item.Kind)
	}
	if item.Counts["oslo"] != 3 || item.Counts["lima"] != 1 {
		t.Errorf("counts = %v", item.Counts)
	}
	if item.Proportions["oslo"] != 0.75 {
		t.Errorf("oslo proportion = %v, want 0.75", item.Proportions["oslo"])
	}
	if len(item.Mode) != 1 || item.Mode[0] != "oslo" {
		t.Errorf("mode = %v, want [oslo]", item.Mode)
	}
}

func TestUnivariateUnknownColumn(t *testing.T) {
	frame := buildFrame(t, floatCol("x", 1, 2))
	_, err := NewService().Univariate("ds_test", frame, []string{"missing"})
	if err == nil {
		t.Fatal("unknown column should fail")
	}
	if errors.GetCode(err) != errors.CodeColumnNotFound {
		t.Errorf("expected COLUMN_NOT_FOUND, got %s", errors.GetCode(err))
	}
}

func TestBivariateNumericNumeric(t *testing.T) {
	frame := buildFrame(t,
		floatCol("x", 1, 2, 3, 4, 5),
		floatCol("y", 2, 4, 6, 8, 10),
	)

	res, err := NewService().Bivariate("ds_test", frame, "x", "y")
	if err != nil {
		t.Fatalf("bivariate: %v", err)
	}
	if res.Kind != BivarNumericNumeric || res.NumericNumeric == nil {
		t.Fatalf("kind = %s, payload nil = %v", res.Kind, res.NumericNumeric == nil)
	}
	if math.Abs(res.NumericNumeric.Correlation-1) > 1e-12 {
		t.Errorf("correlation = %v, want 1", res.NumericNumeric.Correlation)
	}
	if res.NumericNumeric.NComplete != 5 {
		t.Errorf("n_complete = %d, want 5", res.NumericNumeric.NComplete)
	}
}

func TestBivariateNumericCategoricalEitherOrder(t *testing.T) {
	frame := buildFrame(t,
		floatCol("income", 10, 20, 30, 40),
		stringCol("region", "a", "a", "b", "b"),
	)
	svc := NewService()

	res, err := svc.Bivariate("ds_test", frame, "region", "income")
	if err != nil {
		t.Fatalf("bivariate: %v", err)
	}
	if res.Kind != BivarNumericCategorical || res.NumericCategorical == nil {
		t.Fatalf("kind = %s", res.Kind)
	}
	if res.NumericCategorical.Numeric != "income" || res.NumericCategorical.Categorical != "region" {
		t.Errorf("roles = %s/%s, want income/region",
			res.NumericCategorical.Numeric, res.NumericCategorical.Categorical)
	}
	if len(res.NumericCategorical.GroupSummary) != 2 {
		t.Fatalf("groups = %d, want 2", len(res.NumericCategorical.GroupSummary))
	}
	a := res.NumericCategorical.GroupSummary[0]
	if a.Group != "a" || a.Mean != 15 {
		t.Errorf("group a mean = %v, want 15", a.Mean)
	}
}

func TestBivariateCategoricalCategorical(t *testing.T) {
	frame := buildFrame(t,
		stringCol("color", "red", "red", "blue", "blue"),
		stringCol("size", "s", "l", "s", "l"),
	)

	res, err := NewService().Bivariate("ds_test", frame, "color", "size")
	if err != nil {
		t.Fatalf("bivariate: %v", err)
	}
	if res.Kind != BivarCategoricalCategorical || res.CategoricalCategorical == nil {
		t.Fatalf("kind = %s", res.Kind)
	}
	ct := res.CategoricalCategorical
	if ct.Counts["red"]["s"] != 1 {
		t.Errorf("counts[red][s] = %d, want 1", ct.Counts["red"]["s"])
	}
	// Uniform 2x2 table: every expected count is 1.
	if ct.ExpectedCounts["red"]["s"] != 1 {
		t.Errorf("expected[red][s] = %v, want 1", ct.ExpectedCounts["red"]["s"])
	}
	if ct.Proportions["red"]["s"] != 0.25 {
		t.Errorf("proportions[red][s] = %v, want 0.25", ct.Proportions["red"]["s"])
	}
}

func TestCorrelationMatrix(t *testing.T) {
	frame := buildFrame(t,
		floatCol("a", 1, 2, 3, 4),
		floatCol("b", 4, 3, 2, 1),
		stringCol("label", "w", "x", "y", "z"),
	)

	res, err := NewService().CorrelationMatrix("ds_test", frame, nil)
	if err != nil {
		t.Fatalf("correlation: %v", err)
	}
	if len(res.Columns) != 2 {
		t.Fatalf("numeric columns = %v, want [a b]", res.Columns)
	}
	if res.Matrix["a"]["a"] != 1 {
		t.Errorf("diagonal = %v, want 1", res.Matrix["a"]["a"])
	}
	if math.Abs(res.Matrix["a"]["b"]+1) > 1e-12 {
		t.Errorf("matrix[a][b] = %v, want -1", res.Matrix["a"]["b"])
	}
	if res.Matrix["a"]["b"] != res.Matrix["b"]["a"] {
		t.Error("matrix should be symmetric")
	}
}
