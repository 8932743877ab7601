package registry

import (
	"context"
	"testing"

	"datawhisperer/adapters/columnar"
	"datawhisperer/adapters/memory"
	"datawhisperer/domain/core"
	"datawhisperer/domain/dataset"
	"datawhisperer/internal"
	"datawhisperer/internal/errors"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(
		memory.NewDatasetRepository(),
		columnar.NewLocalStore(t.TempDir()),
		internal.NewLogger(internal.LogLevelError),
	)
}

func sampleFrame(t *testing.T) *dataset.Frame {
	t.Helper()
	frame, err := dataset.NewFrame(
		dataset.Column{Name: "age", DType: dataset.DTypeInt, Values: []dataset.Value{
			dataset.Number(25), dataset.Number(40), dataset.Number(61),
		}},
	)
	if err != nil {
		t.Fatalf("building frame: %v", err)
	}
	return frame
}

func TestRegisterAndGet(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	meta, err := svc.Register(ctx, sampleFrame(t), "people.csv", "", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if meta.DatasetID == "" {
		t.Fatal("register should assign a handle")
	}
	if meta.NumRows != 3 || meta.NumColumns != 1 {
		t.Errorf("metadata shape wrong: %d rows, %d columns", meta.NumRows, meta.NumColumns)
	}
	if meta.StoragePath == "" {
		t.Error("register should record a storage path")
	}
	if meta.ColumnTypes["age"] != "int64" {
		t.Errorf("column type not recorded, got %q", meta.ColumnTypes["age"])
	}

	frame, got, err := svc.Get(ctx, meta.DatasetID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if frame.NumRows() != 3 {
		t.Errorf("frame rows = %d, want 3", frame.NumRows())
	}
	if got.DatasetID != meta.DatasetID {
		t.Errorf("metadata handle mismatch: %s vs %s", got.DatasetID, meta.DatasetID)
	}
}

func TestGetUnknownHandle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	known, err := svc.Register(ctx, sampleFrame(t), "people.csv", "", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	_, _, err = svc.Get(ctx, core.DatasetID("ds_does_not_exist"))
	if err == nil {
		t.Fatal("unknown handle should fail")
	}
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.CodeDatasetNotFound {
		t.Fatalf("expected DATASET_NOT_FOUND, got %v", err)
	}
	handles, ok := appErr.Context["known_dataset_ids"].([]string)
	if !ok {
		t.Fatalf("error context should carry known handles, got %v", appErr.Context)
	}
	found := false
	for _, h := range handles {
		if h == known.DatasetID.String() {
			found = true
		}
	}
	if !found {
		t.Errorf("known handles %v should include %s", handles, known.DatasetID)
	}
}

func TestCacheStatsAndHydration(t *testing.T) {
	repo := memory.NewDatasetRepository()
	store := columnar.NewLocalStore(t.TempDir())
	log := internal.NewLogger(internal.LogLevelError)
	svc := NewService(repo, store, log)
	ctx := context.Background()

	meta, err := svc.Register(ctx, sampleFrame(t), "people.csv", "", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, err := svc.Get(ctx, meta.DatasetID); err != nil {
		t.Fatalf("get: %v", err)
	}
	stats := svc.Stats()
	if stats.Hits != 1 || stats.Misses != 0 {
		t.Errorf("after cached get: hits=%d misses=%d, want 1/0", stats.Hits, stats.Misses)
	}

	// A fresh registry over the same stores simulates a restart: the
	// first lookup misses and hydrates from the durable payload.
	svc2 := NewService(repo, store, log)
	frame, _, err := svc2.Get(ctx, meta.DatasetID)
	if err != nil {
		t.Fatalf("get after restart: %v", err)
	}
	if frame.NumRows() != 3 {
		t.Errorf("hydrated frame rows = %d, want 3", frame.NumRows())
	}
	stats = svc2.Stats()
	if stats.Misses != 1 {
		t.Errorf("hydration should count as a miss, got %d", stats.Misses)
	}
	if stats.CachedDatasets != 1 {
		t.Errorf("hydrated frame should be cached, got %d", stats.CachedDatasets)
	}
}

func TestLineageSelfFirst(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.Register(ctx, sampleFrame(t), "people.csv", "", "")
	if err != nil {
		t.Fatalf("register a: %v", err)
	}
	b, err := svc.Register(ctx, sampleFrame(t), "people.csv", a.DatasetID, "filter_rows: age > 30")
	if err != nil {
		t.Fatalf("register b: %v", err)
	}
	c, err := svc.Register(ctx, sampleFrame(t), "people.csv", b.DatasetID, "select_columns")
	if err != nil {
		t.Fatalf("register c: %v", err)
	}

	chain, err := svc.Lineage(ctx, c.DatasetID)
	if err != nil {
		t.Fatalf("lineage: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("chain length = %d, want 3", len(chain))
	}
	want := []core.DatasetID{c.DatasetID, b.DatasetID, a.DatasetID}
	for i, meta := range chain {
		if meta.DatasetID != want[i] {
			t.Errorf("chain[%d] = %s, want %s", i, meta.DatasetID, want[i])
		}
	}
	if chain[2].ParentDatasetID != "" {
		t.Error("root of the chain should have no parent")
	}
}

func TestListNewestFirst(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, sampleFrame(t), "a.csv", "", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	second, err := svc.Register(ctx, sampleFrame(t), "b.csv", "", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	all, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("list length = %d, want 2", len(all))
	}
	// Registered in the same instant both orders are valid, so just
	// check membership.
	ids := map[core.DatasetID]bool{all[0].DatasetID: true, all[1].DatasetID: true}
	if !ids[first.DatasetID] || !ids[second.DatasetID] {
		t.Errorf("list should contain both handles, got %v", ids)
	}
}
