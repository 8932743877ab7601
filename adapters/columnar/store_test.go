package columnar

import (
	"context"
	"testing"
	"time"

	"datawhisperer/domain/core"
	"datawhisperer/domain/dataset"
	"datawhisperer/internal/errors"
)

func testFrame(t *testing.T) *dataset.Frame {
	t.Helper()
	frame, err := dataset.NewFrame(
		dataset.Column{Name: "age", DType: dataset.DTypeInt, Values: []dataset.Value{
			dataset.Number(31), dataset.Number(45), dataset.Null,
		}},
		dataset.Column{Name: "score", DType: dataset.DTypeFloat, Values: []dataset.Value{
			dataset.Number(1.5), dataset.Null, dataset.Number(-2.25),
		}},
		dataset.Column{Name: "city", DType: dataset.DTypeString, Values: []dataset.Value{
			dataset.String("oslo"), dataset.String("lima"), dataset.String("oslo"),
		}},
		dataset.Column{Name: "active", DType: dataset.DTypeBool, Values: []dataset.Value{
			dataset.Bool(true), dataset.Bool(false), dataset.Null,
		}},
		dataset.Column{Name: "joined", DType: dataset.DTypeDatetime, Values: []dataset.Value{
			dataset.Time(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)), dataset.Null, dataset.Time(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)),
		}},
	)
	if err != nil {
		t.Fatalf("building frame: %v", err)
	}
	return frame
}

func TestLocalStore_RoundTrip(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()
	id := core.NewDatasetID()
	frame := testFrame(t)

	path, err := store.Save(ctx, id, frame)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if path == "" {
		t.Fatal("save should return a storage path")
	}

	exists, err := store.Exists(ctx, id)
	if err != nil || !exists {
		t.Fatalf("payload should exist after save, exists=%v err=%v", exists, err)
	}

	loaded, err := store.Load(ctx, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.NumRows() != frame.NumRows() || loaded.NumCols() != frame.NumCols() {
		t.Fatalf("shape changed on round trip: got %dx%d", loaded.NumRows(), loaded.NumCols())
	}

	age, _ := loaded.Column("age")
	if age.DType != dataset.DTypeInt {
		t.Errorf("dtype should survive round trip, got %s", age.DType)
	}
	if age.Values[2].Valid {
		t.Error("missing cell should stay missing")
	}
	if age.Values[0].Num != 31 {
		t.Errorf("value changed on round trip: %v", age.Values[0].Num)
	}

	joined, _ := loaded.Column("joined")
	if !joined.Values[0].Time.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("datetime changed on round trip: %v", joined.Values[0].Time)
	}
}

func TestLocalStore_LoadMissing(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	_, err := store.Load(context.Background(), core.NewDatasetID())
	if err == nil {
		t.Fatal("loading an unknown handle should fail")
	}
	if errors.GetCode(err) != errors.CodeFileIOError {
		t.Errorf("expected FILE_IO_ERROR, got %s", errors.GetCode(err))
	}
}

func TestLocalStore_ExistsMissing(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	exists, err := store.Exists(context.Background(), core.NewDatasetID())
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Error("unknown handle should not exist")
	}
}
