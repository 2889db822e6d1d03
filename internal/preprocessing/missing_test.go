package preprocessing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantprep/preprocessing-go/internal/models"
)

func hourlySeries(values []float64) *models.TimeSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	timestamps := make([]time.Time, len(values))
	for i := range values {
		timestamps[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return models.NewTimeSeries(timestamps, values, map[string]interface{}{"series_id": "test"})
}

func TestHandleMissing_LinearInterior(t *testing.T) {
	filler := NewInterpolatingFiller()
	nan := math.NaN()

	series := hourlySeries([]float64{1, nan, nan, 4, 5})
	result := filler.HandleMissing(series, models.InterpolationLinear)

	assert.Equal(t, []float64{1, 2, 3, 4, 5}, result.Values)
	assert.Equal(t, 5, result.Len())
	// Input untouched
	assert.True(t, math.IsNaN(series.Values[1]))
}

func TestHandleMissing_LinearEdges(t *testing.T) {
	filler := NewInterpolatingFiller()
	nan := math.NaN()

	series := hourlySeries([]float64{nan, nan, 3, nan, 5, nan})
	result := filler.HandleMissing(series, models.InterpolationLinear)

	// Leading gaps backward-filled, trailing forward-filled
	assert.Equal(t, []float64{3, 3, 3, 4, 5, 5}, result.Values)
	assert.Zero(t, result.MissingCount())
}

func TestHandleMissing_ForwardFill(t *testing.T) {
	filler := NewInterpolatingFiller()
	nan := math.NaN()

	series := hourlySeries([]float64{nan, 2, nan, nan, 8})
	result := filler.HandleMissing(series, models.InterpolationForwardFill)

	// Leading gap closed by the backward-fill edge pass.
	assert.Equal(t, []float64{2, 2, 2, 2, 8}, result.Values)
}

func TestHandleMissing_BackwardFill(t *testing.T) {
	filler := NewInterpolatingFiller()
	nan := math.NaN()

	series := hourlySeries([]float64{1, nan, nan, 8, nan})
	result := filler.HandleMissing(series, models.InterpolationBackwardFill)

	assert.Equal(t, []float64{1, 8, 8, 8, 8}, result.Values)
}

func TestHandleMissing_SplineFallsBackToLinear(t *testing.T) {
	filler := NewInterpolatingFiller()
	nan := math.NaN()

	// Only 3 known points, spline requires 4.
	series := hourlySeries([]float64{0, nan, 2, nan, 4})
	result := filler.HandleMissing(series, models.InterpolationSpline)

	assert.InDelta(t, 1, result.Values[1], 1e-9)
	assert.InDelta(t, 3, result.Values[3], 1e-9)
}

func TestHandleMissing_SplineOnLinearData(t *testing.T) {
	filler := NewInterpolatingFiller()
	nan := math.NaN()

	// Collinear known points: the natural cubic spline reduces to the line.
	series := hourlySeries([]float64{0, 10, nan, 30, 40, nan, 60})
	result := filler.HandleMissing(series, models.InterpolationSpline)

	assert.InDelta(t, 20, result.Values[2], 1e-9)
	assert.InDelta(t, 50, result.Values[5], 1e-9)
	assert.Zero(t, result.MissingCount())
}

func TestHandleMissing_PolynomialRecoversQuadratic(t *testing.T) {
	filler := NewInterpolatingFiller()
	nan := math.NaN()

	// y = x^2 with two interior gaps.
	series := hourlySeries([]float64{0, 1, nan, 9, 16, nan, 36})
	result := filler.HandleMissing(series, models.InterpolationPolynomial)

	assert.InDelta(t, 4, result.Values[2], 1e-6)
	assert.InDelta(t, 25, result.Values[5], 1e-6)
}

func TestHandleMissing_PolynomialFallsBackToLinear(t *testing.T) {
	filler := NewInterpolatingFiller()
	nan := math.NaN()

	series := hourlySeries([]float64{0, nan, 4})
	result := filler.HandleMissing(series, models.InterpolationPolynomial)

	assert.InDelta(t, 2, result.Values[1], 1e-9)
}

func TestHandleMissing_AllMissingStaysMissing(t *testing.T) {
	filler := NewInterpolatingFiller()
	nan := math.NaN()

	series := hourlySeries([]float64{nan, nan, nan})
	result := filler.HandleMissing(series, models.InterpolationLinear)

	assert.Equal(t, 3, result.MissingCount())
}

func TestHandleMissing_OHLCVFillsAllColumns(t *testing.T) {
	filler := NewInterpolatingFiller()
	nan := math.NaN()

	series := hourlySeries([]float64{0, 0, 0})
	series.Open = []float64{10, nan, 12}
	series.High = []float64{11, nan, 13}
	series.Low = []float64{9, nan, 11}
	series.Close = []float64{10.5, nan, 12.5}
	series.Volume = []float64{100, nan, 200}

	result := filler.HandleMissing(series, models.InterpolationLinear)

	require.True(t, result.IsOHLCV())
	assert.InDelta(t, 11, result.Open[1], 1e-9)
	assert.InDelta(t, 11.5, result.Close[1], 1e-9)
	assert.InDelta(t, 150, result.Volume[1], 1e-9)
	// Values tracks close for OHLCV series
	assert.Equal(t, result.Close, result.Values)
}
