// Package columnar persists dataset payloads as one columnar JSON
// file per handle under a base directory.
package columnar

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"datawhisperer/domain/core"
	"datawhisperer/domain/dataset"
	"datawhisperer/internal/errors"
	"datawhisperer/ports"
)

// LocalStore implements ports.FrameStore on the local filesystem.
type LocalStore struct {
	baseDir string
}

// NewLocalStore creates a frame store rooted at baseDir.
func NewLocalStore(baseDir string) *LocalStore {
	return &LocalStore{baseDir: baseDir}
}

var _ ports.FrameStore = (*LocalStore)(nil)

type fileColumn struct {
	Name   string        `json:"name"`
	DType  dataset.DType `json:"dtype"`
	Values []any         `json:"values"`
}

type fileFrame struct {
	NumRows int          `json:"n_rows"`
	Columns []fileColumn `json:"columns"`
}

// Path returns the storage path for a handle.
func (s *LocalStore) Path(id core.DatasetID) string {
	return filepath.Join(s.baseDir, id.String()+".json")
}

// Save writes the frame and returns its storage path. The write goes
// through a temp file plus rename so a crash never leaves a partial
// payload behind the handle.
func (s *LocalStore) Save(ctx context.Context, id core.DatasetID, frame *dataset.Frame) (string, error) {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return "", errors.FileIO("failed to create dataset storage directory", err)
	}

	ff := fileFrame{NumRows: frame.NumRows()}
	for _, col := range frame.Columns() {
		fc := fileColumn{Name: col.Name, DType: col.DType, Values: make([]any, len(col.Values))}
		for i, v := range col.Values {
			fc.Values[i] = encodeValue(col.DType, v)
		}
		ff.Columns = append(ff.Columns, fc)
	}

	data, err := json.Marshal(ff)
	if err != nil {
		return "", errors.FileIO("failed to encode dataset payload", err)
	}

	path := s.Path(id)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", errors.FileIO(fmt.Sprintf("failed to write dataset file for %s", id), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", errors.FileIO(fmt.Sprintf("failed to finalize dataset file for %s", id), err)
	}
	return path, nil
}

// Load reads the frame previously stored for the handle.
func (s *LocalStore) Load(ctx context.Context, id core.DatasetID) (*dataset.Frame, error) {
	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		return nil, errors.FileIO(fmt.Sprintf("failed to read dataset file for %s", id), err)
	}

	var ff fileFrame
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, errors.FileIO(fmt.Sprintf("corrupt dataset file for %s", id), err)
	}

	cols := make([]dataset.Column, 0, len(ff.Columns))
	for _, fc := range ff.Columns {
		col := dataset.Column{Name: fc.Name, DType: fc.DType, Values: make([]dataset.Value, len(fc.Values))}
		for i, raw := range fc.Values {
			v, err := decodeValue(fc.DType, raw)
			if err != nil {
				return nil, errors.FileIO(fmt.Sprintf("corrupt cell in dataset file for %s, column %q", id, fc.Name), err)
			}
			col.Values[i] = v
		}
		cols = append(cols, col)
	}
	frame, err := dataset.NewFrame(cols...)
	if err != nil {
		return nil, errors.FileIO(fmt.Sprintf("inconsistent dataset file for %s", id), err)
	}
	return frame, nil
}

// Exists reports whether a payload is stored for the handle.
func (s *LocalStore) Exists(ctx context.Context, id core.DatasetID) (bool, error) {
	_, err := os.Stat(s.Path(id))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.FileIO(fmt.Sprintf("failed to stat dataset file for %s", id), err)
	}
	return true, nil
}

func encodeValue(dtype dataset.DType, v dataset.Value) any {
	if !v.Valid {
		return nil
	}
	switch dtype {
	case dataset.DTypeInt:
		return int64(v.Num)
	case dataset.DTypeFloat:
		return v.Num
	case dataset.DTypeBool:
		return v.Bool
	case dataset.DTypeDatetime:
		return v.Time.Format(time.RFC3339Nano)
	default:
		return v.Str
	}
}

func decodeValue(dtype dataset.DType, raw any) (dataset.Value, error) {
	if raw == nil {
		return dataset.Null, nil
	}
	switch dtype {
	case dataset.DTypeInt, dataset.DTypeFloat:
		num, ok := raw.(float64)
		if !ok {
			return dataset.Null, fmt.Errorf("expected number, got %T", raw)
		}
		return dataset.Number(num), nil
	case dataset.DTypeBool:
		b, ok := raw.(bool)
		if !ok {
			return dataset.Null, fmt.Errorf("expected bool, got %T", raw)
		}
		return dataset.Bool(b), nil
	case dataset.DTypeDatetime:
		s, ok := raw.(string)
		if !ok {
			return dataset.Null, fmt.Errorf("expected timestamp string, got %T", raw)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return dataset.Null, err
		}
		return dataset.Time(t), nil
	default:
		s, ok := raw.(string)
		if !ok {
			return dataset.Null, fmt.Errorf("expected string, got %T", raw)
		}
		return dataset.String(s), nil
	}
}
