// Package wrangle implements the non-destructive transformation
// operations. Every operation reads its source dataset through the
// registry, builds a new frame, and registers it with the source as
// parent. The source frame is never touched.
package wrangle

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"datawhisperer/domain/core"
	"datawhisperer/domain/dataset"
	"datawhisperer/domain/wrangle"
	"datawhisperer/internal"
	"datawhisperer/internal/errors"
	"datawhisperer/internal/registry"
)

// Service applies transformations and registers their results.
type Service struct {
	registry *registry.Service
	log      *internal.Logger
}

// NewService creates a wrangle service over the dataset registry.
func NewService(reg *registry.Service, log *internal.Logger) *Service {
	return &Service{registry: reg, log: log}
}

// Filter keeps rows where the boolean condition holds. Rows where the
// condition evaluates to missing are dropped.
func (s *Service) Filter(ctx context.Context, id core.DatasetID, condition string) (*wrangle.FilterResult, error) {
	frame, meta, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	node, err := compileAgainst(frame, condition)
	if err != nil {
		return nil, err
	}

	rows := frame.NumRows()
	mask := make([]bool, rows)
	reader := frameReader(frame)
	for r := 0; r < rows; r++ {
		v, err := node.eval(reader(r))
		if err != nil {
			return nil, errors.ExpressionError(condition, err)
		}
		mask[r] = v.truthy()
	}

	filtered := frame.FilterRows(mask)
	note := fmt.Sprintf("filter_rows: %s", condition)
	newMeta, err := s.registry.Register(ctx, filtered, meta.Filename, id, note)
	if err != nil {
		return nil, err
	}

	s.log.Info("filter %s -> %s: %d of %d rows kept", id, newMeta.DatasetID, filtered.NumRows(), rows)
	return &wrangle.FilterResult{
		Result: wrangle.Result{
			Operation:         wrangle.OpFilterRows,
			OriginalDatasetID: id,
			NewDatasetID:      newMeta.DatasetID,
			Message:           fmt.Sprintf("Kept %d of %d rows.", filtered.NumRows(), rows),
		},
		Condition:   condition,
		NRowsBefore: rows,
		NRowsAfter:  filtered.NumRows(),
		NColumns:    filtered.NumCols(),
	}, nil
}

// Select projects the dataset onto the named columns. The request is
// atomic: one unknown column rejects the whole operation.
func (s *Service) Select(ctx context.Context, id core.DatasetID, columns []string) (*wrangle.SelectResult, error) {
	if len(columns) == 0 {
		return nil, errors.ValidationError("columns cannot be empty")
	}

	frame, meta, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, name := range columns {
		if !frame.HasColumn(name) {
			return nil, errors.ColumnNotFound(name, frame.ColumnNames())
		}
	}

	selected, err := frame.Select(columns)
	if err != nil {
		return nil, errors.ValidationError(err.Error())
	}

	note := fmt.Sprintf("select_columns: %s", strings.Join(columns, ", "))
	newMeta, err := s.registry.Register(ctx, selected, meta.Filename, id, note)
	if err != nil {
		return nil, err
	}

	return &wrangle.SelectResult{
		Result: wrangle.Result{
			Operation:         wrangle.OpSelectColumns,
			OriginalDatasetID: id,
			NewDatasetID:      newMeta.DatasetID,
			Message:           fmt.Sprintf("Selected %d of %d columns.", selected.NumCols(), frame.NumCols()),
		},
		SelectedColumns: append([]string(nil), columns...),
		NRows:           selected.NumRows(),
		NColumnsBefore:  frame.NumCols(),
		NColumnsAfter:   selected.NumCols(),
	}, nil
}

// Mutate assigns one computed column per expression. Expressions are
// applied in target-name order, each seeing the columns produced by
// the previous one. All expressions are compiled and checked before
// any is applied, so a bad expression leaves no partial state.
func (s *Service) Mutate(ctx context.Context, id core.DatasetID, expressions map[string]string) (*wrangle.MutateResult, error) {
	if len(expressions) == 0 {
		return nil, errors.ValidationError("expressions cannot be empty")
	}

	frame, meta, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	targets := make([]string, 0, len(expressions))
	for name := range expressions {
		targets = append(targets, name)
	}
	sort.Strings(targets)

	// Compile and resolve every expression up front. Later targets may
	// reference earlier ones.
	available := make(map[string]bool, frame.NumCols())
	for _, name := range frame.ColumnNames() {
		available[name] = true
	}
	compiled := make(map[string]exprNode, len(targets))
	for _, target := range targets {
		node, err := parseExpr(expressions[target])
		if err != nil {
			return nil, errors.ExpressionError(expressions[target], err)
		}
		refs := make(map[string]bool)
		collectColumns(node, refs)
		for ref := range refs {
			if !available[ref] {
				return nil, errors.ColumnNotFound(ref, frame.ColumnNames())
			}
		}
		compiled[target] = node
		available[target] = true
	}

	working := frame
	var created, overwritten []string
	for _, target := range targets {
		col, err := evaluateColumn(working, target, compiled[target])
		if err != nil {
			return nil, errors.ExpressionError(expressions[target], err)
		}
		if frame.HasColumn(target) {
			overwritten = append(overwritten, target)
		} else {
			created = append(created, target)
		}
		working, err = working.WithColumn(col)
		if err != nil {
			return nil, errors.ValidationError(err.Error())
		}
	}

	var parts []string
	for _, target := range targets {
		parts = append(parts, fmt.Sprintf("%s = %s", target, expressions[target]))
	}
	note := fmt.Sprintf("mutate_columns: %s", strings.Join(parts, "; "))
	newMeta, err := s.registry.Register(ctx, working, meta.Filename, id, note)
	if err != nil {
		return nil, err
	}

	return &wrangle.MutateResult{
		Result: wrangle.Result{
			Operation:         wrangle.OpMutateColumns,
			OriginalDatasetID: id,
			NewDatasetID:      newMeta.DatasetID,
			Message:           fmt.Sprintf("Applied %d expressions: %d new, %d overwritten.", len(targets), len(created), len(overwritten)),
		},
		Expressions:        expressions,
		NRows:              working.NumRows(),
		NColumnsBefore:     frame.NumCols(),
		NColumnsAfter:      working.NumCols(),
		NewColumnsCreated:  created,
		ColumnsOverwritten: overwritten,
	}, nil
}

// RemoveOutliers drops rows falling outside previously computed
// per-column bounds. Bounds come from a profile run, not recomputed
// here. Missing cells never disqualify a row. When no bounds cover
// the requested columns the call succeeds as a no-op without
// registering a new dataset.
func (s *Service) RemoveOutliers(ctx context.Context, id core.DatasetID, bounds wrangle.OutlierBounds, columns []string) (*wrangle.RemoveOutliersResult, error) {
	frame, meta, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Empty column list means every column with bounds.
	if len(columns) == 0 {
		for name := range bounds {
			columns = append(columns, name)
		}
		sort.Strings(columns)
	}
	for _, name := range columns {
		if !frame.HasColumn(name) {
			return nil, errors.ColumnNotFound(name, frame.ColumnNames())
		}
	}

	applied := make(map[string]wrangle.Bounds)
	var processed []string
	for _, name := range columns {
		b, ok := bounds[name]
		if !ok {
			continue
		}
		col, _ := frame.Column(name)
		if !col.IsNumeric() {
			continue
		}
		applied[name] = b
		processed = append(processed, name)
	}

	rows := frame.NumRows()
	if len(applied) == 0 {
		return &wrangle.RemoveOutliersResult{
			Result: wrangle.Result{
				Operation:         wrangle.OpRemoveOutliers,
				OriginalDatasetID: id,
				Message:           "No outlier bounds available for the requested columns; nothing to remove.",
			},
			ColumnsProcessed: []string{},
			BoundsApplied:    applied,
			NRowsBefore:      rows,
			NRowsAfter:       rows,
			NoOp:             true,
		}, nil
	}

	mask := make([]bool, rows)
	for r := 0; r < rows; r++ {
		keep := true
		for _, name := range processed {
			col, _ := frame.Column(name)
			v := col.Values[r]
			if !v.Valid {
				continue
			}
			b := applied[name]
			if v.Num < b.Lower || v.Num > b.Upper {
				keep = false
				break
			}
		}
		mask[r] = keep
	}

	filtered := frame.FilterRows(mask)
	removed := rows - filtered.NumRows()
	note := fmt.Sprintf("remove_outliers: %s", strings.Join(processed, ", "))
	newMeta, err := s.registry.Register(ctx, filtered, meta.Filename, id, note)
	if err != nil {
		return nil, err
	}

	s.log.Info("remove_outliers %s -> %s: %d rows removed", id, newMeta.DatasetID, removed)
	return &wrangle.RemoveOutliersResult{
		Result: wrangle.Result{
			Operation:         wrangle.OpRemoveOutliers,
			OriginalDatasetID: id,
			NewDatasetID:      newMeta.DatasetID,
			Message:           fmt.Sprintf("Removed %d rows outside the bounds of %d columns.", removed, len(processed)),
		},
		ColumnsProcessed: processed,
		BoundsApplied:    applied,
		NRowsBefore:      rows,
		NRowsAfter:       filtered.NumRows(),
		RowsRemoved:      removed,
	}, nil
}

// compileAgainst parses an expression and checks every referenced
// column against the frame.
func compileAgainst(frame *dataset.Frame, expr string) (exprNode, error) {
	node, err := parseExpr(expr)
	if err != nil {
		return nil, errors.ExpressionError(expr, err)
	}
	refs := make(map[string]bool)
	collectColumns(node, refs)
	for name := range refs {
		if !frame.HasColumn(name) {
			return nil, errors.ColumnNotFound(name, frame.ColumnNames())
		}
	}
	return node, nil
}

// frameReader builds per-row readers over a frame.
func frameReader(frame *dataset.Frame) func(row int) rowReader {
	return func(row int) rowReader {
		return func(name string) (value, error) {
			col, ok := frame.Column(name)
			if !ok {
				return missingValue, fmt.Errorf("unknown column %q", name)
			}
			return cellValue(*col, row), nil
		}
	}
}

// evaluateColumn runs an expression over every row and packs the
// results into a typed column. Numbers win over bools when kinds mix;
// any string result makes the column a string column.
func evaluateColumn(frame *dataset.Frame, name string, node exprNode) (dataset.Column, error) {
	rows := frame.NumRows()
	reader := frameReader(frame)
	results := make([]value, rows)
	sawNumber, sawString, sawBool := false, false, false
	for r := 0; r < rows; r++ {
		v, err := node.eval(reader(r))
		if err != nil {
			return dataset.Column{}, err
		}
		results[r] = v
		switch v.kind {
		case kindNumber:
			sawNumber = true
		case kindString:
			sawString = true
		case kindBool:
			sawBool = true
		}
	}

	var dtype dataset.DType
	switch {
	case sawString:
		dtype = dataset.DTypeString
	case sawNumber:
		dtype = dataset.DTypeFloat
	case sawBool:
		dtype = dataset.DTypeBool
	default:
		dtype = dataset.DTypeFloat
	}

	vals := make([]dataset.Value, rows)
	for r, v := range results {
		if v.kind == kindMissing {
			vals[r] = dataset.Null
			continue
		}
		switch dtype {
		case dataset.DTypeString:
			vals[r] = dataset.String(renderValue(v))
		case dataset.DTypeFloat:
			switch v.kind {
			case kindNumber:
				vals[r] = dataset.Number(v.num)
			case kindBool:
				if v.b {
					vals[r] = dataset.Number(1)
				} else {
					vals[r] = dataset.Number(0)
				}
			}
		case dataset.DTypeBool:
			vals[r] = dataset.Bool(v.b)
		}
	}
	return dataset.Column{Name: name, DType: dtype, Values: vals}, nil
}

func renderValue(v value) string {
	switch v.kind {
	case kindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case kindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.str
	}
}
