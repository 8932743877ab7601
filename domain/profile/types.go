// Package profile defines the column-profiling result types shared by
// quality scoring and wrangling.
package profile

// SemanticType is the inferred role of a column, distinct from its raw
// storage dtype.
type SemanticType string

const (
	SemanticNumeric            SemanticType = "numeric"
	SemanticNumericCategorical SemanticType = "numeric_categorical"
	SemanticCategorical        SemanticType = "categorical"
	SemanticDatetime           SemanticType = "datetime"
	SemanticBoolean            SemanticType = "boolean"
	SemanticText               SemanticType = "text"
	SemanticUnknown            SemanticType = "unknown"
)

// OutlierMethod selects how numeric outliers are flagged.
type OutlierMethod string

const (
	OutlierIQR    OutlierMethod = "iqr"
	OutlierZScore OutlierMethod = "zscore"
	// OutlierBoth flags a value when either method flags it.
	OutlierBoth OutlierMethod = "both"
)

// Valid reports whether the method is one of the closed set.
func (m OutlierMethod) Valid() bool {
	return m == OutlierIQR || m == OutlierZScore || m == OutlierBoth
}

// OutlierPreviewLimit bounds the outlier value list carried on a
// NumericSummary so payloads stay small regardless of dataset size.
const OutlierPreviewLimit = 20

// NumericSummary carries the descriptive statistics and outlier scan
// for one numeric column.
type NumericSummary struct {
	Mean              float64       `json:"mean"`
	Std               *float64      `json:"std"`
	Min               float64       `json:"min"`
	Q1                float64       `json:"q1"`
	Median            float64       `json:"median"`
	Q3                float64       `json:"q3"`
	Max               float64       `json:"max"`
	IQR               float64       `json:"iqr"`
	OutlierCount      int           `json:"outlier_count"`
	Outliers          []float64     `json:"outliers"`
	OutliersTruncated bool          `json:"outliers_truncated"`
	OutlierMethod     OutlierMethod `json:"outlier_method"`
	// IQR-rule bounds, retained so outlier removal can reuse them
	// without recomputing quartiles.
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
}

// ColumnProfile is the per-column quality profile. NumericSummary is
// nil for non-numeric columns and for numeric columns whose summary
// computation failed (empty after dropping missing values).
type ColumnProfile struct {
	Name           string          `json:"name"`
	DType          string          `json:"dtype"`
	SemanticType   SemanticType    `json:"semantic_type"`
	MissingCount   int             `json:"n_missing"`
	MissingPct     float64         `json:"missing_pct"`
	UniqueCount    int             `json:"n_unique"`
	IsConstant     bool            `json:"is_constant"`
	IsAllUnique    bool            `json:"is_all_unique"`
	Issues         []string        `json:"issues"`
	NumericSummary *NumericSummary `json:"numeric_summary,omitempty"`
}

// QualityReport is the dataset-level profiling result.
type QualityReport struct {
	DatasetID     string          `json:"dataset_id"`
	NumRows       int             `json:"n_rows"`
	NumColumns    int             `json:"n_columns"`
	DuplicateRows DuplicateRows   `json:"duplicate_rows"`
	Columns       []ColumnProfile `json:"columns"`
	DatasetIssues []string        `json:"dataset_issues"`
}

// DuplicateRows summarizes exact duplicate rows.
type DuplicateRows struct {
	Count int     `json:"count"`
	Pct   float64 `json:"pct"`
}
