// Package wrangle defines the result types of the non-destructive
// transformation operations. Every operation registers a new dataset;
// the source is never changed.
package wrangle

import "datawhisperer/domain/core"

// Operation names the transformation applied.
type Operation string

const (
	OpFilterRows     Operation = "filter_rows"
	OpSelectColumns  Operation = "select_columns"
	OpMutateColumns  Operation = "mutate_columns"
	OpRemoveOutliers Operation = "remove_outliers"
)

// Result carries the fields shared by every wrangle outcome.
type Result struct {
	Operation         Operation      `json:"operation"`
	OriginalDatasetID core.DatasetID `json:"original_dataset_id"`
	NewDatasetID      core.DatasetID `json:"new_dataset_id"`
	Message           string         `json:"message,omitempty"`
}

// FilterResult reports a row-filter transformation.
type FilterResult struct {
	Result
	Condition   string `json:"condition"`
	NRowsBefore int    `json:"n_rows_before"`
	NRowsAfter  int    `json:"n_rows_after"`
	NColumns    int    `json:"n_columns"`
}

// SelectResult reports a column-projection transformation.
type SelectResult struct {
	Result
	SelectedColumns []string `json:"selected_columns"`
	NRows           int      `json:"n_rows"`
	NColumnsBefore  int      `json:"n_columns_before"`
	NColumnsAfter   int      `json:"n_columns_after"`
}

// MutateResult reports a column-mutation transformation, tracking
// which result columns were created versus overwritten.
type MutateResult struct {
	Result
	Expressions        map[string]string `json:"expressions"`
	NRows              int               `json:"n_rows"`
	NColumnsBefore     int               `json:"n_columns_before"`
	NColumnsAfter      int               `json:"n_columns_after"`
	NewColumnsCreated  []string          `json:"new_columns_created"`
	ColumnsOverwritten []string          `json:"columns_overwritten"`
}

// Bounds is one column's keep-range for outlier removal.
type Bounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// OutlierBounds maps column name to previously computed bounds,
// typically taken from a quality profile's numeric summaries.
type OutlierBounds map[string]Bounds

// RemoveOutliersResult reports an outlier-removal transformation.
// NoOp is true when no bounds applied to the requested columns; that
// is a valid terminal state, not an error.
type RemoveOutliersResult struct {
	Result
	ColumnsProcessed []string          `json:"columns_processed"`
	BoundsApplied    map[string]Bounds `json:"bounds_applied"`
	NRowsBefore      int               `json:"n_rows_before"`
	NRowsAfter       int               `json:"n_rows_after"`
	RowsRemoved      int               `json:"rows_removed"`
	NoOp             bool              `json:"no_op"`
}
