package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"datawhisperer/domain/core"
)

// DType is the raw storage type of a column.
type DType string

const (
	DTypeInt      DType = "int64"
	DTypeFloat    DType = "float64"
	DTypeBool     DType = "bool"
	DTypeDatetime DType = "datetime64"
	DTypeString   DType = "string"
)

// IsNumeric reports whether the dtype holds numbers.
func (d DType) IsNumeric() bool {
	return d == DTypeInt || d == DTypeFloat
}

// Value is a single cell. Missing cells have Valid=false; the payload
// field that applies is determined by the owning column's dtype.
type Value struct {
	Valid bool
	Num   float64
	Str   string
	Bool  bool
	Time  time.Time
}

// Null is the missing-value cell.
var Null = Value{}

// Number builds a numeric cell. NaN is treated as missing.
func Number(v float64) Value {
	if math.IsNaN(v) {
		return Null
	}
	return Value{Valid: true, Num: v}
}

// String builds a string cell.
func String(s string) Value { return Value{Valid: true, Str: s} }

// Bool builds a boolean cell.
func Bool(b bool) Value { return Value{Valid: true, Bool: b} }

// Time builds a datetime cell.
func Time(t time.Time) Value { return Value{Valid: true, Time: t} }

// Render returns a stable string form of the cell, used for unique
// counts, duplicate detection, and example values.
func (v Value) Render(dtype DType) string {
	if !v.Valid {
		return ""
	}
	switch dtype {
	case DTypeInt:
		return strconv.FormatInt(int64(v.Num), 10)
	case DTypeFloat:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case DTypeBool:
		return strconv.FormatBool(v.Bool)
	case DTypeDatetime:
		return v.Time.Format(time.RFC3339)
	default:
		return v.Str
	}
}

// Column is one named, typed column of cells.
type Column struct {
	Name   string
	DType  DType
	Values []Value
}

// Len returns the number of cells including missing ones.
func (c *Column) Len() int { return len(c.Values) }

// IsNumeric reports whether the column stores numbers.
func (c *Column) IsNumeric() bool { return c.DType.IsNumeric() }

// MissingCount returns the number of missing cells.
func (c *Column) MissingCount() int {
	n := 0
	for _, v := range c.Values {
		if !v.Valid {
			n++
		}
	}
	return n
}

// Floats returns the non-missing numeric values in order.
func (c *Column) Floats() []float64 {
	out := make([]float64, 0, len(c.Values))
	for _, v := range c.Values {
		if v.Valid {
			out = append(out, v.Num)
		}
	}
	return out
}

// UniqueCount returns the number of distinct non-missing values.
func (c *Column) UniqueCount() int {
	seen := make(map[string]struct{}, len(c.Values))
	for _, v := range c.Values {
		if v.Valid {
			seen[v.Render(c.DType)] = struct{}{}
		}
	}
	return len(seen)
}

// ExampleValues returns up to limit rendered non-missing values.
func (c *Column) ExampleValues(limit int) []string {
	out := make([]string, 0, limit)
	for _, v := range c.Values {
		if !v.Valid {
			continue
		}
		out = append(out, v.Render(c.DType))
		if len(out) == limit {
			break
		}
	}
	return out
}

// ValueCounts returns rendered value -> occurrence count, missing
// included under the empty key, plus the insertion-ordered keys.
func (c *Column) ValueCounts() (map[string]int, []string) {
	counts := make(map[string]int)
	var order []string
	for _, v := range c.Values {
		key := v.Render(c.DType)
		if _, ok := counts[key]; !ok {
			order = append(order, key)
		}
		counts[key]++
	}
	return counts, order
}

// Clone deep-copies the column.
func (c *Column) Clone() Column {
	vals := make([]Value, len(c.Values))
	copy(vals, c.Values)
	return Column{Name: c.Name, DType: c.DType, Values: vals}
}

// Frame is an immutable-by-convention columnar table. Transformations
// build new frames; nothing in the engine mutates a registered frame.
type Frame struct {
	cols  []Column
	index map[string]int
}

// NewFrame builds a frame from columns, validating equal lengths and
// unique names.
func NewFrame(cols ...Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(cols))}
	rows := -1
	for _, c := range cols {
		if _, dup := f.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", c.Name)
		}
		if rows >= 0 && c.Len() != rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), rows)
		}
		rows = c.Len()
		f.index[c.Name] = len(f.cols)
		f.cols = append(f.cols, c)
	}
	return f, nil
}

// NumRows returns the row count (0 for a frame with no columns).
func (f *Frame) NumRows() int {
	if len(f.cols) == 0 {
		return 0
	}
	return f.cols[0].Len()
}

// NumCols returns the column count.
func (f *Frame) NumCols() int { return len(f.cols) }

// ColumnNames returns the ordered column names.
func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return &f.cols[i], true
}

// HasColumn reports whether the column exists.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Columns returns the backing columns in order.
func (f *Frame) Columns() []Column { return f.cols }

// Select builds a new frame restricted to the given columns, which
// must all exist.
func (f *Frame) Select(names []string) (*Frame, error) {
	cols := make([]Column, 0, len(names))
	for _, name := range names {
		c, ok := f.Column(name)
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		cols = append(cols, c.Clone())
	}
	return NewFrame(cols...)
}

// FilterRows builds a new frame keeping rows where mask is true.
func (f *Frame) FilterRows(mask []bool) *Frame {
	kept := 0
	for _, m := range mask {
		if m {
			kept++
		}
	}
	cols := make([]Column, len(f.cols))
	for i, c := range f.cols {
		vals := make([]Value, 0, kept)
		for r, v := range c.Values {
			if mask[r] {
				vals = append(vals, v)
			}
		}
		cols[i] = Column{Name: c.Name, DType: c.DType, Values: vals}
	}
	out, _ := NewFrame(cols...)
	return out
}

// WithColumn returns a new frame with col replacing an existing column
// of the same name, or appended if the name is new.
func (f *Frame) WithColumn(col Column) (*Frame, error) {
	if f.NumCols() > 0 && col.Len() != f.NumRows() {
		return nil, fmt.Errorf("column %q has %d rows, want %d", col.Name, col.Len(), f.NumRows())
	}
	cols := make([]Column, 0, len(f.cols)+1)
	replaced := false
	for _, c := range f.cols {
		if c.Name == col.Name {
			cols = append(cols, col)
			replaced = true
		} else {
			cols = append(cols, c.Clone())
		}
	}
	if !replaced {
		cols = append(cols, col)
	}
	return NewFrame(cols...)
}

// Clone deep-copies the frame.
func (f *Frame) Clone() *Frame {
	cols := make([]Column, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.Clone()
	}
	out, _ := NewFrame(cols...)
	return out
}

// DuplicateRowCount counts rows identical to an earlier row across
// all columns, missing cells included.
func (f *Frame) DuplicateRowCount() int {
	rows := f.NumRows()
	if rows == 0 {
		return 0
	}
	seen := make(map[string]struct{}, rows)
	var sb strings.Builder
	dups := 0
	for r := 0; r < rows; r++ {
		sb.Reset()
		for i := range f.cols {
			v := f.cols[i].Values[r]
			if v.Valid {
				sb.WriteByte('v')
				sb.WriteString(v.Render(f.cols[i].DType))
			} else {
				sb.WriteByte('n')
			}
			sb.WriteByte('\x1f')
		}
		sig := sb.String()
		if _, ok := seen[sig]; ok {
			dups++
		} else {
			seen[sig] = struct{}{}
		}
	}
	return dups
}

// SampleRows returns up to limit rows as column name -> rendered value
// maps, preserving row order. Missing cells map to nil.
func (f *Frame) SampleRows(limit int) []map[string]any {
	rows := f.NumRows()
	if rows > limit {
		rows = limit
	}
	out := make([]map[string]any, rows)
	for r := 0; r < rows; r++ {
		rec := make(map[string]any, len(f.cols))
		for i := range f.cols {
			c := &f.cols[i]
			v := c.Values[r]
			if !v.Valid {
				rec[c.Name] = nil
				continue
			}
			switch c.DType {
			case DTypeInt:
				rec[c.Name] = int64(v.Num)
			case DTypeFloat:
				rec[c.Name] = v.Num
			case DTypeBool:
				rec[c.Name] = v.Bool
			default:
				rec[c.Name] = v.Render(c.DType)
			}
		}
		out[r] = rec
	}
	return out
}

// Metadata is the durable record for a registered dataset.
type Metadata struct {
	DatasetID          core.DatasetID    `json:"dataset_id" db:"dataset_id"`
	Filename           string            `json:"filename" db:"filename"`
	IngestedAt         core.Timestamp    `json:"ingested_at" db:"ingested_at"`
	NumRows            int               `json:"n_rows" db:"n_rows"`
	NumColumns         int               `json:"n_columns" db:"n_columns"`
	Columns            []string          `json:"columns"`
	ColumnTypes        map[string]string `json:"column_types"`
	ParentDatasetID    core.DatasetID    `json:"parent_dataset_id,omitempty" db:"parent_dataset_id"`
	TransformationNote string            `json:"transformation_note,omitempty" db:"transformation_note"`
	StoragePath        string            `json:"storage_path,omitempty" db:"storage_path"`
}
