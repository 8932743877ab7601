package wrangle

import (
	"context"
	"testing"

	"datawhisperer/adapters/columnar"
	"datawhisperer/adapters/memory"
	"datawhisperer/domain/core"
	"datawhisperer/domain/dataset"
	wr "datawhisperer/domain/wrangle"
	"datawhisperer/internal"
	"datawhisperer/internal/errors"
	"datawhisperer/internal/registry"
)

func newTestEnv(t *testing.T) (*registry.Service, *Service) {
	t.Helper()
	log := internal.NewLogger(internal.LogLevelError)
	reg := registry.NewService(
		memory.NewDatasetRepository(),
		columnar.NewLocalStore(t.TempDir()),
		log,
	)
	return reg, NewService(reg, log)
}

func registerPeople(t *testing.T, reg *registry.Service) core.DatasetID {
	t.Helper()
	ages := make([]dataset.Value, 100)
	names := make([]dataset.Value, 100)
	for i := range ages {
		// Ages 1..100, so exactly 40 rows satisfy age > 60.
		ages[i] = dataset.Number(float64(i + 1))
		names[i] = dataset.String("p")
	}
	frame, err := dataset.NewFrame(
		dataset.Column{Name: "age", DType: dataset.DTypeInt, Values: ages},
		dataset.Column{Name: "name", DType: dataset.DTypeString, Values: names},
	)
	if err != nil {
		t.Fatalf("building frame: %v", err)
	}
	meta, err := reg.Register(context.Background(), frame, "people.csv", "", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return meta.DatasetID
}

func TestFilterKeepsMatchingRowsAndSource(t *testing.T) {
	reg, svc := newTestEnv(t)
	ctx := context.Background()
	id := registerPeople(t, reg)

	res, err := svc.Filter(ctx, id, "age > 60")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if res.NRowsBefore != 100 || res.NRowsAfter != 40 {
		t.Errorf("rows = %d -> %d, want 100 -> 40", res.NRowsBefore, res.NRowsAfter)
	}
	if res.NewDatasetID == id {
		t.Error("filter must register a new dataset, not reuse the source handle")
	}
	if res.NColumns != 2 {
		t.Errorf("columns = %d, want 2", res.NColumns)
	}

	// Source dataset is untouched.
	source, _, err := reg.Get(ctx, id)
	if err != nil {
		t.Fatalf("get source: %v", err)
	}
	if source.NumRows() != 100 {
		t.Errorf("source rows = %d, want 100", source.NumRows())
	}

	// New dataset carries the source as parent.
	meta, err := reg.GetMetadata(ctx, res.NewDatasetID)
	if err != nil {
		t.Fatalf("get new metadata: %v", err)
	}
	if meta.ParentDatasetID != id {
		t.Errorf("parent = %s, want %s", meta.ParentDatasetID, id)
	}
}

func TestFilterExpressionForms(t *testing.T) {
	reg, svc := newTestEnv(t)
	ctx := context.Background()
	id := registerPeople(t, reg)

	cases := []struct {
		condition string
		want      int
	}{
		{"age > 60 and age <= 70", 10},
		{"age < 5 or age >= 99", 6},
		{"not (age > 10)", 10},
		{"age % 2 == 0", 50},
		{"age * 2 > 180", 10},
		{"name == 'p'", 100},
		{"name != 'p'", 0},
		{"age >= 100", 1},
	}
	for _, tc := range cases {
		res, err := svc.Filter(ctx, id, tc.condition)
		if err != nil {
			t.Errorf("filter %q: %v", tc.condition, err)
			continue
		}
		if res.NRowsAfter != tc.want {
			t.Errorf("filter %q kept %d rows, want %d", tc.condition, res.NRowsAfter, tc.want)
		}
	}
}

func TestFilterMissingComparesFalse(t *testing.T) {
	reg, svc := newTestEnv(t)
	ctx := context.Background()

	frame, err := dataset.NewFrame(
		dataset.Column{Name: "score", DType: dataset.DTypeFloat, Values: []dataset.Value{
			dataset.Number(10), dataset.Null, dataset.Number(30),
		}},
	)
	if err != nil {
		t.Fatalf("building frame: %v", err)
	}
	meta, err := reg.Register(ctx, frame, "scores.csv", "", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := svc.Filter(ctx, meta.DatasetID, "score < 100")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if res.NRowsAfter != 2 {
		t.Errorf("missing cell should not satisfy the predicate, kept %d rows", res.NRowsAfter)
	}
}

func TestFilterErrors(t *testing.T) {
	reg, svc := newTestEnv(t)
	ctx := context.Background()
	id := registerPeople(t, reg)

	if _, err := svc.Filter(ctx, id, "age >"); !errors.IsCode(err, errors.CodeExpressionError) {
		t.Errorf("malformed expression: got %v, want %s", err, errors.CodeExpressionError)
	}
	if _, err := svc.Filter(ctx, id, "height > 10"); !errors.IsCode(err, errors.CodeColumnNotFound) {
		t.Errorf("unknown column: got %v, want %s", err, errors.CodeColumnNotFound)
	}
	if _, err := svc.Filter(ctx, "nope", "age > 10"); !errors.IsCode(err, errors.CodeDatasetNotFound) {
		t.Errorf("unknown dataset: got %v, want %s", err, errors.CodeDatasetNotFound)
	}
}

func TestSelectAtomic(t *testing.T) {
	reg, svc := newTestEnv(t)
	ctx := context.Background()
	id := registerPeople(t, reg)

	res, err := svc.Select(ctx, id, []string{"age"})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if res.NColumnsBefore != 2 || res.NColumnsAfter != 1 {
		t.Errorf("columns = %d -> %d, want 2 -> 1", res.NColumnsBefore, res.NColumnsAfter)
	}
	if res.NRows != 100 {
		t.Errorf("rows = %d, want 100", res.NRows)
	}

	before, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := svc.Select(ctx, id, []string{"age", "height"}); !errors.IsCode(err, errors.CodeColumnNotFound) {
		t.Fatalf("partial match must be rejected, got %v", err)
	}
	after, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(after) != len(before) {
		t.Error("rejected select must not register a dataset")
	}
}

func TestMutateTracksCreatedAndOverwritten(t *testing.T) {
	reg, svc := newTestEnv(t)
	ctx := context.Background()
	id := registerPeople(t, reg)

	res, err := svc.Mutate(ctx, id, map[string]string{
		"age":        "age + 1",
		"age_months": "age * 12",
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if len(res.NewColumnsCreated) != 1 || res.NewColumnsCreated[0] != "age_months" {
		t.Errorf("created = %v, want [age_months]", res.NewColumnsCreated)
	}
	if len(res.ColumnsOverwritten) != 1 || res.ColumnsOverwritten[0] != "age" {
		t.Errorf("overwritten = %v, want [age]", res.ColumnsOverwritten)
	}
	if res.NColumnsBefore != 2 || res.NColumnsAfter != 3 {
		t.Errorf("columns = %d -> %d, want 2 -> 3", res.NColumnsBefore, res.NColumnsAfter)
	}

	frame, _, err := reg.Get(ctx, res.NewDatasetID)
	if err != nil {
		t.Fatalf("get mutated: %v", err)
	}
	// Targets apply in name order, so age_months sees the incremented
	// age column.
	col, ok := frame.Column("age_months")
	if !ok {
		t.Fatal("age_months column missing")
	}
	if got := col.Values[0].Num; got != 24 {
		t.Errorf("age_months[0] = %v, want 24", got)
	}

	// Source still has the original values.
	source, _, _ := reg.Get(ctx, id)
	ageCol, _ := source.Column("age")
	if got := ageCol.Values[0].Num; got != 1 {
		t.Errorf("source age[0] = %v, want 1", got)
	}
}

func TestMutateBadExpressionLeavesNoState(t *testing.T) {
	reg, svc := newTestEnv(t)
	ctx := context.Background()
	id := registerPeople(t, reg)

	before, _ := reg.List(ctx)
	_, err := svc.Mutate(ctx, id, map[string]string{
		"a": "age + 1",
		"b": "height * 2",
	})
	if !errors.IsCode(err, errors.CodeColumnNotFound) {
		t.Fatalf("got %v, want %s", err, errors.CodeColumnNotFound)
	}
	after, _ := reg.List(ctx)
	if len(after) != len(before) {
		t.Error("failed mutate must not register a dataset")
	}
}

func TestRemoveOutliers(t *testing.T) {
	reg, svc := newTestEnv(t)
	ctx := context.Background()

	vals := []dataset.Value{
		dataset.Number(10), dataset.Number(12), dataset.Number(11),
		dataset.Number(200), dataset.Null, dataset.Number(9),
	}
	frame, err := dataset.NewFrame(
		dataset.Column{Name: "amount", DType: dataset.DTypeFloat, Values: vals},
	)
	if err != nil {
		t.Fatalf("building frame: %v", err)
	}
	meta, err := reg.Register(ctx, frame, "amounts.csv", "", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	bounds := wr.OutlierBounds{"amount": {Lower: 5, Upper: 20}}
	res, err := svc.RemoveOutliers(ctx, meta.DatasetID, bounds, []string{"amount"})
	if err != nil {
		t.Fatalf("remove outliers: %v", err)
	}
	if res.NoOp {
		t.Fatal("bounds were supplied, result must not be a no-op")
	}
	if res.RowsRemoved != 1 {
		t.Errorf("rows removed = %d, want 1", res.RowsRemoved)
	}
	// The missing cell survives the bound check.
	if res.NRowsAfter != 5 {
		t.Errorf("rows after = %d, want 5", res.NRowsAfter)
	}
	if got := res.BoundsApplied["amount"]; got != (wr.Bounds{Lower: 5, Upper: 20}) {
		t.Errorf("bounds applied = %+v", got)
	}
}

func TestRemoveOutliersNoOp(t *testing.T) {
	reg, svc := newTestEnv(t)
	ctx := context.Background()
	id := registerPeople(t, reg)

	before, _ := reg.List(ctx)
	res, err := svc.RemoveOutliers(ctx, id, wr.OutlierBounds{}, []string{"age"})
	if err != nil {
		t.Fatalf("no bounds must still succeed, got %v", err)
	}
	if !res.NoOp {
		t.Error("result should be flagged as a no-op")
	}
	if res.NewDatasetID != "" {
		t.Error("no-op must not register a new dataset")
	}
	if res.NRowsBefore != 100 || res.NRowsAfter != 100 {
		t.Errorf("rows = %d -> %d, want 100 -> 100", res.NRowsBefore, res.NRowsAfter)
	}
	after, _ := reg.List(ctx)
	if len(after) != len(before) {
		t.Error("no-op must not register a dataset")
	}
}

func TestExpressionEvaluator(t *testing.T) {
	row := func(name string) (value, error) {
		switch name {
		case "x":
			return numberValue(4), nil
		case "label":
			return stringValue("abc"), nil
		case "gap":
			return missingValue, nil
		}
		return missingValue, nil
	}

	cases := []struct {
		expr string
		want bool
	}{
		{"x ** 2 == 16", true},
		{"-x < 0", true},
		{"(x + 1) * 2 == 10", true},
		{"label == \"abc\"", true},
		{"label < 'abd'", true},
		{"gap == gap", false},
		{"gap > 0 or x > 0", true},
		{"true and x == 4", true},
		{"x != 4 or false", false},
		{"`x` >= 4", true},
	}
	for _, tc := range cases {
		node, err := parseExpr(tc.expr)
		if err != nil {
			t.Errorf("parse %q: %v", tc.expr, err)
			continue
		}
		v, err := node.eval(row)
		if err != nil {
			t.Errorf("eval %q: %v", tc.expr, err)
			continue
		}
		if v.truthy() != tc.want {
			t.Errorf("eval %q = %v, want %v", tc.expr, v.truthy(), tc.want)
		}
	}

	for _, bad := range []string{"", "x +", "(x > 1", "x >> 2", "'open"} {
		if _, err := parseExpr(bad); err == nil {
			t.Errorf("parse %q should fail", bad)
		}
	}
}
