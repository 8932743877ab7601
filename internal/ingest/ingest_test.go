package ingest

import (
	"context"
	"strings"
	"testing"

	"datawhisperer/adapters/columnar"
	"datawhisperer/adapters/memory"
	"datawhisperer/domain/dataset"
	"datawhisperer/internal"
	"datawhisperer/internal/registry"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	reg := registry.NewService(
		memory.NewDatasetRepository(),
		columnar.NewLocalStore(t.TempDir()),
		internal.NewLogger(internal.LogLevelError),
	)
	return NewService(reg, internal.NewLogger(internal.LogLevelError))
}

func TestIngestCSVReader(t *testing.T) {
	svc := newTestService(t)
	csvData := strings.Join([]string{
		"age,score,city,active,joined",
		"31,1.5,oslo,true,2024-03-01",
		"45,,lima,false,2024-05-10",
		"28,2.25,oslo,yes,2025-01-02",
	}, "\n")

	res, err := svc.IngestCSVReader(context.Background(), strings.NewReader(csvData), "people.csv")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.DatasetID == "" {
		t.Fatal("ingest should assign a handle")
	}
	if res.NumRows != 3 || res.NumColumns != 5 {
		t.Errorf("shape = %dx%d, want 3x5", res.NumRows, res.NumColumns)
	}

	types := map[string]string{}
	for _, col := range res.Columns {
		types[col.Name] = col.DType
	}
	want := map[string]string{
		"age":    "int64",
		"score":  "float64",
		"city":   "string",
		"active": "bool",
		"joined": "datetime64",
	}
	for name, dtype := range want {
		if types[name] != dtype {
			t.Errorf("column %q dtype = %q, want %q", name, types[name], dtype)
		}
	}

	if len(res.SampleRows) != 3 {
		t.Errorf("sample rows = %d, want 3", len(res.SampleRows))
	}
}

func TestIngestMissingValueWarnings(t *testing.T) {
	svc := newTestService(t)
	csvData := strings.Join([]string{
		"a,b",
		"1,",
		"2,NA",
		"3,null",
		"4,9",
	}, "\n")

	res, err := svc.IngestCSVReader(context.Background(), strings.NewReader(csvData), "gaps.csv")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one for column b", res.Warnings)
	}
	if !strings.Contains(res.Warnings[0], `"b"`) {
		t.Errorf("warning should name column b, got %q", res.Warnings[0])
	}
	for _, col := range res.Columns {
		if col.Name == "b" && col.MissingCount != 3 {
			t.Errorf("column b missing count = %d, want 3", col.MissingCount)
		}
	}
}

func TestIngestRejectsHeaderOnly(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.IngestCSVReader(context.Background(), strings.NewReader("a,b\n"), "empty.csv")
	if err == nil {
		t.Fatal("header-only file should be rejected")
	}
}

func TestBuildFrameTypeFallbacks(t *testing.T) {
	frame, err := BuildFrame(
		[]string{"mixed", "blank"},
		[][]string{
			{"1", ""},
			{"2.5", ""},
			{"abc", ""},
		},
	)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	mixed, _ := frame.Column("mixed")
	if mixed.DType != dataset.DTypeString {
		t.Errorf("mixed column should fall back to string, got %s", mixed.DType)
	}
	blank, _ := frame.Column("blank")
	if blank.DType != dataset.DTypeString {
		t.Errorf("all-missing column should default to string, got %s", blank.DType)
	}
	if blank.MissingCount() != 3 {
		t.Errorf("all-missing column missing count = %d, want 3", blank.MissingCount())
	}
}

func TestNormalizeHeaders(t *testing.T) {
	got := normalizeHeaders([]string{" age ", "", "age", "score"})
	want := []string{"age", "column_2", "age_2", "score"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("header[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
