// Package describe builds univariate, bivariate, and correlation
// summaries over registered datasets.
package describe

import (
	"fmt"
	"math"
	"sort"

	"datawhisperer/domain/dataset"
	"datawhisperer/internal/errors"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// VariableKind tags a univariate summary as numeric or categorical.
type VariableKind string

const (
	KindNumeric     VariableKind = "numeric"
	KindCategorical VariableKind = "categorical"
)

// UnivariateItem is one column's descriptive summary. Numeric fields
// are nil for categorical columns and vice versa; a numeric column
// with no non-missing values keeps everything nil.
type UnivariateItem struct {
	Name       string       `json:"name"`
	DType      string       `json:"dtype"`
	Kind       VariableKind `json:"type"`
	N          int          `json:"n"`
	NMissing   int          `json:"n_missing"`
	MissingPct float64      `json:"missing_pct"`

	Mean      *float64  `json:"mean,omitempty"`
	Median    *float64  `json:"median,omitempty"`
	Mode      []string  `json:"mode"`
	Std       *float64  `json:"std,omitempty"`
	Q1        *float64  `json:"q1,omitempty"`
	Q3        *float64  `json:"q3,omitempty"`
	IQR       *float64  `json:"iqr,omitempty"`
	Min       *float64  `json:"min,omitempty"`
	Max       *float64  `json:"max,omitempty"`
	NOutliers *int      `json:"n_outliers,omitempty"`

	UniqueValues []string           `json:"unique_values,omitempty"`
	Counts       map[string]int     `json:"counts,omitempty"`
	Proportions  map[string]float64 `json:"proportions,omitempty"`
}

// UnivariateResult summarizes a set of columns.
type UnivariateResult struct {
	DatasetID string           `json:"dataset_id"`
	Summaries []UnivariateItem `json:"summaries"`
}

// BivariateKind is the closed set of column-pair relationships.
type BivariateKind string

const (
	BivarNumericNumeric         BivariateKind = "numeric-numeric"
	BivarNumericCategorical     BivariateKind = "numeric-categorical"
	BivarCategoricalCategorical BivariateKind = "categorical-categorical"
)

// NumericNumeric carries correlation and covariance over complete
// cases of two numeric columns.
type NumericNumeric struct {
	X           string  `json:"x"`
	Y           string  `json:"y"`
	NComplete   int     `json:"n_complete"`
	Correlation float64 `json:"correlation"`
	Covariance  float64 `json:"covariance"`
}

// GroupStat is one group's numeric summary in a numeric-categorical
// breakdown.
type GroupStat struct {
	Group  string   `json:"group"`
	Count  int      `json:"count"`
	Mean   float64  `json:"mean"`
	Median float64  `json:"median"`
	Std    *float64 `json:"std"`
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
}

// NumericCategorical carries per-group summaries of a numeric column
// split by a categorical one.
type NumericCategorical struct {
	Numeric      string      `json:"numeric"`
	Categorical  string      `json:"categorical"`
	GroupSummary []GroupStat `json:"group_summary"`
}

// CategoricalCategorical carries the contingency table of two
// categorical columns with proportions and independence-expected
// counts.
type CategoricalCategorical struct {
	X              string                        `json:"x"`
	Y              string                        `json:"y"`
	Counts         map[string]map[string]int     `json:"contingency_counts"`
	Proportions    map[string]map[string]float64 `json:"proportions"`
	ExpectedCounts map[string]map[string]float64 `json:"expected_counts"`
}

// BivariateResult is a tagged union over the three pair kinds; exactly
// one payload field is non-nil.
type BivariateResult struct {
	DatasetID              string                  `json:"dataset_id"`
	Kind                   BivariateKind           `json:"type"`
	NumericNumeric         *NumericNumeric         `json:"numeric_numeric,omitempty"`
	NumericCategorical     *NumericCategorical     `json:"numeric_categorical,omitempty"`
	CategoricalCategorical *CategoricalCategorical `json:"categorical_categorical,omitempty"`
}

// CorrelationResult is the pairwise Pearson matrix over numeric
// columns.
type CorrelationResult struct {
	DatasetID string                        `json:"dataset_id"`
	Columns   []string                      `json:"columns"`
	Matrix    map[string]map[string]float64 `json:"correlation_matrix"`
}

// Service computes descriptive summaries.
type Service struct{}

// NewService creates a describe service.
func NewService() *Service {
	return &Service{}
}

// Univariate summarizes the named columns, or every column when the
// list is empty.
func (s *Service) Univariate(datasetID string, frame *dataset.Frame, columns []string) (*UnivariateResult, error) {
	if len(columns) == 0 {
		columns = frame.ColumnNames()
	}
	result := &UnivariateResult{DatasetID: datasetID}
	for _, name := range columns {
		col, ok := frame.Column(name)
		if !ok {
			return nil, errors.ColumnNotFound(name, frame.ColumnNames())
		}
		result.Summaries = append(result.Summaries, summarizeColumn(col))
	}
	return result, nil
}

func summarizeColumn(col *dataset.Column) UnivariateItem {
	n := col.Len()
	missing := col.MissingCount()
	item := UnivariateItem{
		Name:       col.Name,
		DType:      string(col.DType),
		N:          n,
		NMissing:   missing,
		MissingPct: float64(missing) / float64(max(1, n)),
		Mode:       []string{},
	}

	if col.IsNumeric() {
		item.Kind = KindNumeric
		values := col.Floats()
		if len(values) == 0 {
			return item
		}
		if mean, err := stats.Mean(values); err == nil {
			item.Mean = &mean
		}
		if median, err := stats.Median(values); err == nil {
			item.Median = &median
		}
		if modes, err := stats.Mode(values); err == nil {
			for _, m := range modes {
				item.Mode = append(item.Mode, fmt.Sprintf("%g", m))
			}
		}
		if len(values) >= 2 {
			if sd, err := stats.StandardDeviationSample(values); err == nil && !math.IsNaN(sd) {
				item.Std = &sd
			}
		}
		if quartiles, err := stats.Quartile(values); err == nil {
			q1, q3 := quartiles.Q1, quartiles.Q3
			iqr := q3 - q1
			item.Q1, item.Q3, item.IQR = &q1, &q3, &iqr

			lower, upper := q1-1.5*iqr, q3+1.5*iqr
			outliers := 0
			for _, v := range values {
				if v < lower || v > upper {
					outliers++
				}
			}
			item.NOutliers = &outliers
		}
		if min, err := stats.Min(values); err == nil {
			item.Min = &min
		}
		if max, err := stats.Max(values); err == nil {
			item.Max = &max
		}
		return item
	}

	item.Kind = KindCategorical
	counts, order := col.ValueCounts()
	item.UniqueValues = order
	item.Counts = counts
	item.Proportions = make(map[string]float64, len(counts))
	for k, c := range counts {
		item.Proportions[k] = float64(c) / float64(max(1, n))
	}
	item.Mode = categoricalModes(counts, order)
	return item
}

// categoricalModes returns every value tied for the highest count.
func categoricalModes(counts map[string]int, order []string) []string {
	best := 0
	for _, c := range counts {
		if c > best {
			best = c
		}
	}
	var modes []string
	for _, v := range order {
		if counts[v] == best {
			modes = append(modes, v)
		}
	}
	sort.Strings(modes)
	if modes == nil {
		modes = []string{}
	}
	return modes
}

// Bivariate summarizes the relationship between two columns, choosing
// the analysis from their types.
func (s *Service) Bivariate(datasetID string, frame *dataset.Frame, x, y string) (*BivariateResult, error) {
	xcol, ok := frame.Column(x)
	if !ok {
		return nil, errors.ColumnNotFound(x, frame.ColumnNames())
	}
	ycol, ok := frame.Column(y)
	if !ok {
		return nil, errors.ColumnNotFound(y, frame.ColumnNames())
	}

	switch {
	case xcol.IsNumeric() && ycol.IsNumeric():
		payload, err := numericNumeric(xcol, ycol)
		if err != nil {
			return nil, err
		}
		return &BivariateResult{DatasetID: datasetID, Kind: BivarNumericNumeric, NumericNumeric: payload}, nil
	case xcol.IsNumeric():
		payload, err := numericCategorical(xcol, ycol)
		if err != nil {
			return nil, err
		}
		return &BivariateResult{DatasetID: datasetID, Kind: BivarNumericCategorical, NumericCategorical: payload}, nil
	case ycol.IsNumeric():
		payload, err := numericCategorical(ycol, xcol)
		if err != nil {
			return nil, err
		}
		return &BivariateResult{DatasetID: datasetID, Kind: BivarNumericCategorical, NumericCategorical: payload}, nil
	default:
		return &BivariateResult{
			DatasetID:              datasetID,
			Kind:                   BivarCategoricalCategorical,
			CategoricalCategorical: crosstab(xcol, ycol),
		}, nil
	}
}

func numericNumeric(xcol, ycol *dataset.Column) (*NumericNumeric, error) {
	var xs, ys []float64
	for i := 0; i < xcol.Len(); i++ {
		xv, yv := xcol.Values[i], ycol.Values[i]
		if xv.Valid && yv.Valid {
			xs = append(xs, xv.Num)
			ys = append(ys, yv.Num)
		}
	}
	if len(xs) < 2 {
		return nil, errors.InferenceError(
			fmt.Sprintf("need at least 2 complete rows across %q and %q, got %d", xcol.Name, ycol.Name, len(xs)))
	}
	return &NumericNumeric{
		X:           xcol.Name,
		Y:           ycol.Name,
		NComplete:   len(xs),
		Correlation: stat.Correlation(xs, ys, nil),
		Covariance:  stat.Covariance(xs, ys, nil),
	}, nil
}

func numericCategorical(numeric, categorical *dataset.Column) (*NumericCategorical, error) {
	groups := map[string][]float64{}
	var order []string
	for i := 0; i < numeric.Len(); i++ {
		nv, cv := numeric.Values[i], categorical.Values[i]
		if !nv.Valid || !cv.Valid {
			continue
		}
		key := cv.Render(categorical.DType)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], nv.Num)
	}
	if len(groups) == 0 {
		return nil, errors.InferenceError(
			fmt.Sprintf("no complete rows across %q and %q", numeric.Name, categorical.Name))
	}
	sort.Strings(order)

	payload := &NumericCategorical{Numeric: numeric.Name, Categorical: categorical.Name}
	for _, key := range order {
		values := groups[key]
		gs := GroupStat{Group: key, Count: len(values)}
		gs.Mean, _ = stats.Mean(values)
		gs.Median, _ = stats.Median(values)
		gs.Min, _ = stats.Min(values)
		gs.Max, _ = stats.Max(values)
		if len(values) >= 2 {
			if sd, err := stats.StandardDeviationSample(values); err == nil && !math.IsNaN(sd) {
				gs.Std = &sd
			}
		}
		payload.GroupSummary = append(payload.GroupSummary, gs)
	}
	return payload, nil
}

func crosstab(xcol, ycol *dataset.Column) *CategoricalCategorical {
	counts := map[string]map[string]int{}
	rowSums := map[string]int{}
	colSums := map[string]int{}
	total := 0
	for i := 0; i < xcol.Len(); i++ {
		xk := renderOrMissing(xcol, i)
		yk := renderOrMissing(ycol, i)
		if counts[xk] == nil {
			counts[xk] = map[string]int{}
		}
		counts[xk][yk]++
		rowSums[xk]++
		colSums[yk]++
		total++
	}

	proportions := map[string]map[string]float64{}
	expected := map[string]map[string]float64{}
	for xk, row := range counts {
		proportions[xk] = map[string]float64{}
		expected[xk] = map[string]float64{}
		for yk := range colSums {
			proportions[xk][yk] = float64(row[yk]) / float64(max(1, total))
			expected[xk][yk] = float64(rowSums[xk]) * float64(colSums[yk]) / float64(max(1, total))
		}
	}
	return &CategoricalCategorical{
		X:              xcol.Name,
		Y:              ycol.Name,
		Counts:         counts,
		Proportions:    proportions,
		ExpectedCounts: expected,
	}
}

// renderOrMissing keeps missing cells as an explicit category, the way
// a contingency table without row dropping behaves.
func renderOrMissing(col *dataset.Column, i int) string {
	v := col.Values[i]
	if !v.Valid {
		return "(missing)"
	}
	return v.Render(col.DType)
}

// CorrelationMatrix computes pairwise Pearson correlations over the
// numeric subset of the named columns (all columns when the list is
// empty). Each pair uses its own complete cases.
func (s *Service) CorrelationMatrix(datasetID string, frame *dataset.Frame, columns []string) (*CorrelationResult, error) {
	if len(columns) == 0 {
		columns = frame.ColumnNames()
	}
	var numeric []*dataset.Column
	for _, name := range columns {
		col, ok := frame.Column(name)
		if !ok {
			return nil, errors.ColumnNotFound(name, frame.ColumnNames())
		}
		if col.IsNumeric() {
			numeric = append(numeric, col)
		}
	}

	result := &CorrelationResult{
		DatasetID: datasetID,
		Matrix:    map[string]map[string]float64{},
	}
	for _, col := range numeric {
		result.Columns = append(result.Columns, col.Name)
		result.Matrix[col.Name] = map[string]float64{}
	}
	for i, a := range numeric {
		for j, b := range numeric {
			if j < i {
				if r, ok := result.Matrix[b.Name][a.Name]; ok {
					result.Matrix[a.Name][b.Name] = r
				}
				continue
			}
			// Undefined pairs (under 2 complete cases, or zero
			// variance) are omitted rather than carried as NaN.
			if r, ok := pairwiseCorrelation(a, b); ok {
				result.Matrix[a.Name][b.Name] = r
			}
		}
	}
	return result, nil
}

func pairwiseCorrelation(a, b *dataset.Column) (float64, bool) {
	var xs, ys []float64
	for i := 0; i < a.Len(); i++ {
		av, bv := a.Values[i], b.Values[i]
		if av.Valid && bv.Valid {
			xs = append(xs, av.Num)
			ys = append(ys, bv.Num)
		}
	}
	if len(xs) < 2 {
		return 0, false
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return 0, false
	}
	return r, true
}
