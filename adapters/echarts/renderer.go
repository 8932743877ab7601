// Package echarts renders chart specs to standalone HTML artifacts.
package echarts

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"datawhisperer/domain/dataset"
	"datawhisperer/domain/viz"
	"datawhisperer/internal/errors"
	"datawhisperer/ports"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
)

// Renderer implements ports.Renderer, writing one HTML file per chart
// under a plots directory.
type Renderer struct {
	plotsDir string
}

// NewRenderer creates a chart renderer rooted at plotsDir.
func NewRenderer(plotsDir string) *Renderer {
	return &Renderer{plotsDir: plotsDir}
}

var _ ports.Renderer = (*Renderer)(nil)

// Render draws the chart described by spec from frame and returns the
// artifact path. The spec is assumed to be validated already.
func (r *Renderer) Render(ctx context.Context, spec viz.Spec, frame *dataset.Frame) (string, error) {
	if err := os.MkdirAll(r.plotsDir, 0o755); err != nil {
		return "", errors.FileIO("failed to create plots directory", err)
	}

	var chart components.Charter
	var err error
	switch spec.ChartType {
	case viz.ChartHistogram:
		chart, err = r.histogram(spec, frame)
	case viz.ChartBox:
		chart, err = r.boxplot(spec, frame)
	case viz.ChartScatter:
		chart, err = r.scatter(spec, frame)
	case viz.ChartBar:
		chart, err = r.bar(spec, frame)
	case viz.ChartLine:
		chart, err = r.line(spec, frame)
	case viz.ChartPie:
		chart, err = r.pie(spec, frame)
	default:
		return "", errors.InvalidParameter("chart_type", fmt.Sprintf("unsupported chart type %q", spec.ChartType))
	}
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s_%s.html", strings.ReplaceAll(uuid.New().String(), "-", "")[:12], spec.ChartType)
	path := filepath.Join(r.plotsDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", errors.FileIO("failed to create chart file", err)
	}
	defer f.Close()

	page := components.NewPage()
	page.AddCharts(chart)
	if err := page.Render(f); err != nil {
		os.Remove(path)
		return "", errors.FileIO("failed to render chart", err)
	}
	return path, nil
}

func (r *Renderer) histogram(spec viz.Spec, frame *dataset.Frame) (components.Charter, error) {
	values, err := numericValues(frame, spec.X)
	if err != nil {
		return nil, err
	}
	bins := spec.Bins
	if bins <= 0 {
		bins = viz.DefaultBins
	}
	labels, counts := binCounts(values, bins)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Distribution of %s", spec.X)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Frequency"}),
	)
	data := make([]opts.BarData, len(counts))
	for i, c := range counts {
		data[i] = opts.BarData{Value: c}
	}
	bar.SetXAxis(labels).AddSeries(spec.X, data)
	return bar, nil
}

func (r *Renderer) boxplot(spec viz.Spec, frame *dataset.Frame) (components.Charter, error) {
	groups, order, err := groupedNumeric(frame, spec.X, spec.Hue)
	if err != nil {
		return nil, err
	}

	bp := charts.NewBoxPlot()
	bp.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Box plot of %s", spec.X)}),
	)
	data := make([]opts.BoxPlotData, 0, len(order))
	for _, key := range order {
		five, err := fiveNumber(groups[key])
		if err != nil {
			return nil, err
		}
		data = append(data, opts.BoxPlotData{Name: key, Value: five})
	}
	bp.SetXAxis(order).AddSeries(spec.X, data)
	return bp, nil
}

func (r *Renderer) scatter(spec viz.Spec, frame *dataset.Frame) (components.Charter, error) {
	xcol, ok := frame.Column(spec.X)
	if !ok {
		return nil, errors.ColumnNotFound(spec.X, frame.ColumnNames())
	}
	if !xcol.IsNumeric() {
		return nil, errors.TypeMismatch(spec.X, "numeric", string(xcol.DType))
	}

	sc := charts.NewScatter()
	sc.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("%s vs %s", spec.Y, spec.X)}),
		charts.WithXAxisOpts(opts.XAxis{Name: spec.X, Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: spec.Y}),
	)

	ycol, ok := frame.Column(spec.Y)
	if !ok {
		return nil, errors.ColumnNotFound(spec.Y, frame.ColumnNames())
	}
	if !ycol.IsNumeric() {
		return nil, errors.TypeMismatch(spec.Y, "numeric", string(ycol.DType))
	}

	series := map[string][]opts.ScatterData{}
	var order []string
	var hueCol *dataset.Column
	hasHue := spec.Hue != ""
	if hasHue {
		hueCol, ok = frame.Column(spec.Hue)
		if !ok {
			return nil, errors.ColumnNotFound(spec.Hue, frame.ColumnNames())
		}
	}
	for i := 0; i < xcol.Len(); i++ {
		xv, yv := xcol.Values[i], ycol.Values[i]
		if !xv.Valid || !yv.Valid {
			continue
		}
		key := spec.Y
		if hasHue {
			hv := hueCol.Values[i]
			if !hv.Valid {
				continue
			}
			key = hv.Render(hueCol.DType)
		}
		if _, seen := series[key]; !seen {
			order = append(order, key)
		}
		series[key] = append(series[key], opts.ScatterData{Value: []any{xv.Num, yv.Num}})
	}
	sort.Strings(order)
	for _, key := range order {
		sc.AddSeries(key, series[key])
	}
	return sc, nil
}

func (r *Renderer) bar(spec viz.Spec, frame *dataset.Frame) (components.Charter, error) {
	col, ok := frame.Column(spec.X)
	if !ok {
		return nil, errors.ColumnNotFound(spec.X, frame.ColumnNames())
	}

	bar := charts.NewBar()
	if spec.Y == "" {
		// Category counts of x.
		counts, order := col.ValueCounts()
		bar.SetGlobalOptions(
			charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Counts of %s", spec.X)}),
			charts.WithYAxisOpts(opts.YAxis{Name: "Count"}),
		)
		data := make([]opts.BarData, len(order))
		for i, key := range order {
			data[i] = opts.BarData{Value: counts[key]}
		}
		bar.SetXAxis(order).AddSeries(spec.X, data)
		return bar, nil
	}

	// Mean of y per category of x.
	groups, order, err := groupedNumericBy(frame, spec.Y, spec.X)
	if err != nil {
		return nil, err
	}
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Mean %s by %s", spec.Y, spec.X)}),
		charts.WithYAxisOpts(opts.YAxis{Name: fmt.Sprintf("mean(%s)", spec.Y)}),
	)
	data := make([]opts.BarData, 0, len(order))
	for _, key := range order {
		mean, err := stats.Mean(groups[key])
		if err != nil {
			return nil, errors.InferenceError(fmt.Sprintf("failed to aggregate %q for group %q", spec.Y, key))
		}
		data = append(data, opts.BarData{Value: mean})
	}
	bar.SetXAxis(order).AddSeries(spec.Y, data)
	return bar, nil
}

func (r *Renderer) line(spec viz.Spec, frame *dataset.Frame) (components.Charter, error) {
	xcol, ok := frame.Column(spec.X)
	if !ok {
		return nil, errors.ColumnNotFound(spec.X, frame.ColumnNames())
	}
	ycol, ok := frame.Column(spec.Y)
	if !ok {
		return nil, errors.ColumnNotFound(spec.Y, frame.ColumnNames())
	}
	if !ycol.IsNumeric() {
		return nil, errors.TypeMismatch(spec.Y, "numeric", string(ycol.DType))
	}

	type point struct {
		label string
		sort  float64
		value float64
	}
	var points []point
	for i := 0; i < xcol.Len(); i++ {
		xv, yv := xcol.Values[i], ycol.Values[i]
		if !xv.Valid || !yv.Valid {
			continue
		}
		p := point{label: xv.Render(xcol.DType), value: yv.Num}
		switch {
		case xcol.IsNumeric():
			p.sort = xv.Num
		case xcol.DType == dataset.DTypeDatetime:
			p.sort = float64(xv.Time.UnixNano())
		default:
			p.sort = float64(i)
		}
		points = append(points, p)
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].sort < points[j].sort })

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("%s over %s", spec.Y, spec.X)}),
		charts.WithYAxisOpts(opts.YAxis{Name: spec.Y}),
	)
	labels := make([]string, len(points))
	data := make([]opts.LineData, len(points))
	for i, p := range points {
		labels[i] = p.label
		data[i] = opts.LineData{Value: p.value}
	}
	line.SetXAxis(labels).AddSeries(spec.Y, data)
	return line, nil
}

func (r *Renderer) pie(spec viz.Spec, frame *dataset.Frame) (components.Charter, error) {
	col, ok := frame.Column(spec.X)
	if !ok {
		return nil, errors.ColumnNotFound(spec.X, frame.ColumnNames())
	}
	counts, order := col.ValueCounts()

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Composition of %s", spec.X)}),
	)
	data := make([]opts.PieData, len(order))
	for i, key := range order {
		data[i] = opts.PieData{Name: key, Value: counts[key]}
	}
	pie.AddSeries(spec.X, data)
	return pie, nil
}

func numericValues(frame *dataset.Frame, name string) ([]float64, error) {
	col, ok := frame.Column(name)
	if !ok {
		return nil, errors.ColumnNotFound(name, frame.ColumnNames())
	}
	if !col.IsNumeric() {
		return nil, errors.TypeMismatch(name, "numeric", string(col.DType))
	}
	values := col.Floats()
	if len(values) == 0 {
		return nil, errors.InferenceError(fmt.Sprintf("column %q has no non-missing values to plot", name))
	}
	return values, nil
}

// groupedNumeric splits the numeric column by the hue column, or
// returns a single group named after the column when hue is empty.
func groupedNumeric(frame *dataset.Frame, name, hue string) (map[string][]float64, []string, error) {
	if hue == "" {
		values, err := numericValues(frame, name)
		if err != nil {
			return nil, nil, err
		}
		return map[string][]float64{name: values}, []string{name}, nil
	}
	return groupedNumericBy(frame, name, hue)
}

func groupedNumericBy(frame *dataset.Frame, valueCol, groupCol string) (map[string][]float64, []string, error) {
	vcol, ok := frame.Column(valueCol)
	if !ok {
		return nil, nil, errors.ColumnNotFound(valueCol, frame.ColumnNames())
	}
	if !vcol.IsNumeric() {
		return nil, nil, errors.TypeMismatch(valueCol, "numeric", string(vcol.DType))
	}
	gcol, ok := frame.Column(groupCol)
	if !ok {
		return nil, nil, errors.ColumnNotFound(groupCol, frame.ColumnNames())
	}

	groups := map[string][]float64{}
	var order []string
	for i := 0; i < vcol.Len(); i++ {
		vv, gv := vcol.Values[i], gcol.Values[i]
		if !vv.Valid || !gv.Valid {
			continue
		}
		key := gv.Render(gcol.DType)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], vv.Num)
	}
	if len(groups) == 0 {
		return nil, nil, errors.InferenceError(fmt.Sprintf("no complete rows across %q and %q to plot", valueCol, groupCol))
	}
	sort.Strings(order)
	return groups, order, nil
}

func binCounts(values []float64, bins int) ([]string, []int) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return []string{fmt.Sprintf("%.4g", lo)}, []int{len(values)}
	}
	width := (hi - lo) / float64(bins)
	counts := make([]int, bins)
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	labels := make([]string, bins)
	for i := range labels {
		labels[i] = fmt.Sprintf("%.4g to %.4g", lo+float64(i)*width, lo+float64(i+1)*width)
	}
	return labels, counts
}

// fiveNumber returns [min, Q1, median, Q3, max] in echarts box order.
func fiveNumber(values []float64) ([]float64, error) {
	if len(values) == 0 {
		return nil, errors.InferenceError("cannot compute a box plot over an empty group")
	}
	min, _ := stats.Min(values)
	max, _ := stats.Max(values)
	quartiles, err := stats.Quartile(values)
	if err != nil {
		return nil, errors.InferenceError("failed to compute quartiles for box plot")
	}
	return []float64{min, quartiles.Q1, quartiles.Q2, quartiles.Q3, max}, nil
}
