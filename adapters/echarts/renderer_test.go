package echarts

import (
	"context"
	"os"
	"strings"
	"testing"

	"datawhisperer/domain/dataset"
	"datawhisperer/domain/viz"
	"datawhisperer/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(t *testing.T) *dataset.Frame {
	t.Helper()
	frame, err := dataset.NewFrame(
		dataset.Column{Name: "score", DType: dataset.DTypeFloat, Values: []dataset.Value{
			dataset.Number(10), dataset.Number(20), dataset.Number(30),
			dataset.Number(40), dataset.Null, dataset.Number(25),
		}},
		dataset.Column{Name: "size", DType: dataset.DTypeFloat, Values: []dataset.Value{
			dataset.Number(1), dataset.Number(2), dataset.Number(3),
			dataset.Number(4), dataset.Number(5), dataset.Number(6),
		}},
		dataset.Column{Name: "kind", DType: dataset.DTypeString, Values: []dataset.Value{
			dataset.String("a"), dataset.String("b"), dataset.String("a"),
			dataset.String("b"), dataset.String("a"), dataset.String("b"),
		}},
	)
	require.NoError(t, err)
	return frame
}

func TestRenderAllChartTypes(t *testing.T) {
	r := NewRenderer(t.TempDir())
	frame := testFrame(t)
	ctx := context.Background()

	cases := []viz.Spec{
		{ChartType: viz.ChartHistogram, X: "score", Bins: 5},
		{ChartType: viz.ChartBox, X: "score"},
		{ChartType: viz.ChartBox, X: "score", Hue: "kind"},
		{ChartType: viz.ChartScatter, X: "size", Y: "score"},
		{ChartType: viz.ChartScatter, X: "size", Y: "score", Hue: "kind"},
		{ChartType: viz.ChartBar, X: "kind"},
		{ChartType: viz.ChartBar, X: "kind", Y: "score"},
		{ChartType: viz.ChartLine, X: "size", Y: "score"},
		{ChartType: viz.ChartPie, X: "kind"},
	}
	for _, spec := range cases {
		path, err := r.Render(ctx, spec, frame)
		require.NoError(t, err, "chart %s", spec.ChartType)
		assert.FileExists(t, path)
		assert.True(t, strings.HasSuffix(path, string(spec.ChartType)+".html"))

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "echarts")
	}
}

func TestRenderDistinctArtifactsPerCall(t *testing.T) {
	r := NewRenderer(t.TempDir())
	frame := testFrame(t)
	spec := viz.Spec{ChartType: viz.ChartHistogram, X: "score", Bins: 5}

	first, err := r.Render(context.Background(), spec, frame)
	require.NoError(t, err)
	second, err := r.Render(context.Background(), spec, frame)
	require.NoError(t, err)
	// Dedup is the cache layer's job; the renderer itself always
	// produces a fresh file.
	assert.NotEqual(t, first, second)
}

func TestRenderTypeErrors(t *testing.T) {
	r := NewRenderer(t.TempDir())
	frame := testFrame(t)
	ctx := context.Background()

	_, err := r.Render(ctx, viz.Spec{ChartType: viz.ChartHistogram, X: "kind"}, frame)
	assert.True(t, errors.IsCode(err, errors.CodeTypeMismatch), "got %v", err)

	_, err = r.Render(ctx, viz.Spec{ChartType: viz.ChartScatter, X: "kind", Y: "score"}, frame)
	assert.True(t, errors.IsCode(err, errors.CodeTypeMismatch), "got %v", err)

	_, err = r.Render(ctx, viz.Spec{ChartType: viz.ChartHistogram, X: "ghost"}, frame)
	assert.True(t, errors.IsCode(err, errors.CodeColumnNotFound), "got %v", err)
}

func TestBinCounts(t *testing.T) {
	labels, counts := binCounts([]float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 10}, 5)
	require.Len(t, labels, 5)
	require.Len(t, counts, 5)

	total := 0
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, 10, total)

	// A constant column collapses to a single bin.
	labels, counts = binCounts([]float64{3, 3, 3}, 5)
	require.Len(t, counts, 1)
	assert.Equal(t, 3, counts[0])
	assert.Equal(t, "3", labels[0])
}

func TestFiveNumber(t *testing.T) {
	five, err := fiveNumber([]float64{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)
	assert.Equal(t, 1.0, five[0])
	assert.Equal(t, 8.0, five[4])
	assert.InDelta(t, 4.5, five[2], 1e-9)

	_, err = fiveNumber(nil)
	assert.Error(t, err)
}
