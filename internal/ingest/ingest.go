// Package ingest turns CSV and Excel files into registered datasets.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"datawhisperer/domain/core"
	"datawhisperer/domain/dataset"
	"datawhisperer/internal"
	"datawhisperer/internal/errors"
	"datawhisperer/internal/registry"

	"github.com/xuri/excelize/v2"
)

const (
	// ExampleValueLimit caps per-column example values in the result.
	ExampleValueLimit = 5
	// SampleRowLimit caps preview rows in the result.
	SampleRowLimit = 20
	// HighMissingWarnPct is the missingness fraction above which a
	// column gets an ingestion warning.
	HighMissingWarnPct = 0.3
)

// ColumnInfo summarizes one ingested column.
type ColumnInfo struct {
	Name          string   `json:"name"`
	DType         string   `json:"dtype"`
	MissingCount  int      `json:"missing_count"`
	ExampleValues []string `json:"example_values"`
}

// Result describes a completed ingestion.
type Result struct {
	DatasetID  core.DatasetID   `json:"dataset_id"`
	Filename   string           `json:"filename"`
	NumRows    int              `json:"n_rows"`
	NumColumns int              `json:"n_columns"`
	Columns    []ColumnInfo     `json:"columns"`
	SampleRows []map[string]any `json:"sample_rows"`
	Warnings   []string         `json:"warnings,omitempty"`
}

// Service ingests tabular files and registers the resulting frames.
type Service struct {
	registry *registry.Service
	log      *internal.Logger
}

// NewService creates an ingestion service.
func NewService(reg *registry.Service, log *internal.Logger) *Service {
	return &Service{registry: reg, log: log}
}

// IngestCSV reads a CSV file and registers it as a new dataset.
func (s *Service) IngestCSV(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.FileIO(fmt.Sprintf("failed to open CSV file %q", path), err)
	}
	defer f.Close()
	return s.ingestCSVReader(ctx, f, filepath.Base(path))
}

// IngestCSVReader registers CSV content from an arbitrary reader under
// the given filename.
func (s *Service) IngestCSVReader(ctx context.Context, r io.Reader, filename string) (*Result, error) {
	return s.ingestCSVReader(ctx, r, filename)
}

func (s *Service) ingestCSVReader(ctx context.Context, r io.Reader, filename string) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.FileIO(fmt.Sprintf("failed to parse CSV file %q", filename), err)
	}
	return s.ingestRows(ctx, rows, filename)
}

// IngestExcel reads one sheet of an Excel workbook and registers it as
// a new dataset. An empty sheet name means the first sheet.
func (s *Service) IngestExcel(ctx context.Context, path, sheet string) (*Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.FileIO(fmt.Sprintf("failed to open Excel file %q", path), err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.ValidationError("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.FileIO(fmt.Sprintf("failed to read sheet %q", sheet), err)
	}
	return s.ingestRows(ctx, rows, filepath.Base(path))
}

func (s *Service) ingestRows(ctx context.Context, rows [][]string, filename string) (*Result, error) {
	if len(rows) < 2 {
		return nil, errors.ValidationError("file must have a header row and at least one data row")
	}

	headers := normalizeHeaders(rows[0])
	data := rows[1:]

	frame, err := BuildFrame(headers, data)
	if err != nil {
		return nil, err
	}

	meta, err := s.registry.Register(ctx, frame, filename, "", "")
	if err != nil {
		return nil, err
	}
	s.log.Info("ingested %s as %s (%d rows, %d columns)", filename, meta.DatasetID, frame.NumRows(), frame.NumCols())

	return buildResult(meta.DatasetID, filename, frame), nil
}

func buildResult(id core.DatasetID, filename string, frame *dataset.Frame) *Result {
	res := &Result{
		DatasetID:  id,
		Filename:   filename,
		NumRows:    frame.NumRows(),
		NumColumns: frame.NumCols(),
		SampleRows: frame.SampleRows(SampleRowLimit),
	}
	for _, col := range frame.Columns() {
		missing := col.MissingCount()
		res.Columns = append(res.Columns, ColumnInfo{
			Name:          col.Name,
			DType:         string(col.DType),
			MissingCount:  missing,
			ExampleValues: col.ExampleValues(ExampleValueLimit),
		})
		if frame.NumRows() > 0 {
			pct := float64(missing) / float64(frame.NumRows())
			if pct > HighMissingWarnPct {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("column %q is %.0f%% missing", col.Name, pct*100))
			}
		}
	}
	return res
}

// normalizeHeaders trims whitespace and fills in names for blank or
// duplicate headers so every column is addressable.
func normalizeHeaders(raw []string) []string {
	seen := make(map[string]int)
	out := make([]string, len(raw))
	for i, h := range raw {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		}
		seen[name]++
		out[i] = name
	}
	return out
}

// BuildFrame infers a dtype per column and converts raw string cells
// into a typed frame. The inference ladder tries int64, then float64,
// then bool, then datetime, and falls back to string.
func BuildFrame(headers []string, rows [][]string) (*dataset.Frame, error) {
	nRows := len(rows)
	cols := make([]dataset.Column, len(headers))
	for ci, name := range headers {
		raw := make([]string, nRows)
		for ri, row := range rows {
			if ci < len(row) {
				raw[ri] = strings.TrimSpace(row[ci])
			}
		}
		dtype := inferDType(raw)
		values := make([]dataset.Value, nRows)
		for ri, cell := range raw {
			values[ri] = parseCell(cell, dtype)
		}
		cols[ci] = dataset.Column{Name: name, DType: dtype, Values: values}
	}
	frame, err := dataset.NewFrame(cols...)
	if err != nil {
		return nil, errors.ValidationError(err.Error())
	}
	return frame, nil
}

var missingTokens = map[string]bool{
	"": true, "na": true, "n/a": true, "null": true, "none": true, "nan": true,
}

func isMissing(cell string) bool {
	return missingTokens[strings.ToLower(cell)]
}

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

func inferDType(cells []string) dataset.DType {
	isInt, isFloat, isBool, isDatetime := true, true, true, true
	sawValue := false
	for _, cell := range cells {
		if isMissing(cell) {
			continue
		}
		sawValue = true
		if isInt {
			if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			if !isBoolToken(cell) {
				isBool = false
			}
		}
		if isDatetime {
			if _, ok := parseDatetime(cell); !ok {
				isDatetime = false
			}
		}
	}
	switch {
	case !sawValue:
		return dataset.DTypeString
	case isInt:
		return dataset.DTypeInt
	case isFloat:
		return dataset.DTypeFloat
	case isBool:
		return dataset.DTypeBool
	case isDatetime:
		return dataset.DTypeDatetime
	default:
		return dataset.DTypeString
	}
}

func isBoolToken(cell string) bool {
	switch strings.ToLower(cell) {
	case "true", "false", "yes", "no":
		return true
	}
	return false
}

func parseBool(cell string) bool {
	switch strings.ToLower(cell) {
	case "true", "yes":
		return true
	}
	return false
}

func parseDatetime(cell string) (time.Time, bool) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseCell(cell string, dtype dataset.DType) dataset.Value {
	if isMissing(cell) {
		return dataset.Null
	}
	switch dtype {
	case dataset.DTypeInt, dataset.DTypeFloat:
		num, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return dataset.Null
		}
		return dataset.Number(num)
	case dataset.DTypeBool:
		return dataset.Bool(parseBool(cell))
	case dataset.DTypeDatetime:
		t, ok := parseDatetime(cell)
		if !ok {
			return dataset.Null
		}
		return dataset.Time(t)
	default:
		return dataset.String(cell)
	}
}
