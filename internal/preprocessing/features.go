package preprocessing

import (
	"fmt"
	"math"

	"github.com/quantprep/preprocessing-go/internal/models"
	"github.com/quantprep/preprocessing-go/internal/utils"
)

// FeatureEngineer derives feature columns aligned row-for-row with the input
// series. Rows are never reordered; positions that a feature cannot be
// computed for (sequence boundaries) hold NaN.
type FeatureEngineer interface {
	LagFeatures(series *models.TimeSeries, column string, lags []int) (*models.FeatureMatrix, error)
	RollingFeatures(series *models.TimeSeries, column string, windows []int) (*models.FeatureMatrix, error)
	CalendarFeatures(series *models.TimeSeries) *models.FeatureMatrix
	CandleFeatures(series *models.TimeSeries) (*models.FeatureMatrix, error)
	IndicatorFeatures(series *models.TimeSeries, windows []int) (*models.FeatureMatrix, error)
}

// CandleFeatureEngineer is the default FeatureEngineer, covering lag,
// rolling-window, calendar and candle-derived features plus the optional
// indicator columns.
type CandleFeatureEngineer struct{}

// NewCandleFeatureEngineer creates the default feature engineer.
func NewCandleFeatureEngineer() *CandleFeatureEngineer {
	return &CandleFeatureEngineer{}
}

// LagFeatures appends one lag_L column per requested lag, where
// lag_L[i] = column[i-L] and the first L rows are NaN.
func (e *CandleFeatureEngineer) LagFeatures(series *models.TimeSeries, column string, lags []int) (*models.FeatureMatrix, error) {
	src := series.Column(column)
	if src == nil {
		return nil, utils.NewInvalidColumnError(column)
	}

	matrix := models.NewFeatureMatrix(series.Timestamps)
	for _, lag := range lags {
		col := nanSlice(len(src))
		for i := lag; i < len(src); i++ {
			col[i] = src[i-lag]
		}
		if err := matrix.AddColumn(fmt.Sprintf("lag_%d", lag), col); err != nil {
			return nil, err
		}
	}
	return matrix, nil
}

// RollingFeatures appends rolling mean/std/min/max columns per window,
// computed over the trailing W rows ending at each position. The first W-1
// rows are NaN; std is the sample standard deviation.
func (e *CandleFeatureEngineer) RollingFeatures(series *models.TimeSeries, column string, windows []int) (*models.FeatureMatrix, error) {
	src := series.Column(column)
	if src == nil {
		return nil, utils.NewInvalidColumnError(column)
	}

	matrix := models.NewFeatureMatrix(series.Timestamps)
	for _, w := range windows {
		mean := nanSlice(len(src))
		std := nanSlice(len(src))
		min := nanSlice(len(src))
		max := nanSlice(len(src))

		for i := w - 1; i < len(src); i++ {
			window := src[i-w+1 : i+1]
			if hasNaN(window) {
				// A gap anywhere in the window poisons the statistic.
				continue
			}
			m, s := meanStd(window)
			mean[i] = m
			std[i] = s
			min[i] = aggregate(window, models.AggregationMin)
			max[i] = aggregate(window, models.AggregationMax)
		}

		for _, c := range []struct {
			name   string
			values []float64
		}{
			{fmt.Sprintf("rolling_mean_%d", w), mean},
			{fmt.Sprintf("rolling_std_%d", w), std},
			{fmt.Sprintf("rolling_min_%d", w), min},
			{fmt.Sprintf("rolling_max_%d", w), max},
		} {
			if err := matrix.AddColumn(c.name, c.values); err != nil {
				return nil, err
			}
		}
	}
	return matrix, nil
}

// CalendarFeatures derives per-row time features from the timestamps:
// hour, day_of_week (0 = Monday), day_of_month, month, quarter, year,
// is_weekend, and cyclical sin/cos encodings for month (period 12) and
// day of week (period 7). The cyclical pair keeps December and January
// adjacent instead of twelve units apart.
func (e *CandleFeatureEngineer) CalendarFeatures(series *models.TimeSeries) *models.FeatureMatrix {
	n := series.Len()
	hour := make([]float64, n)
	dow := make([]float64, n)
	dom := make([]float64, n)
	month := make([]float64, n)
	quarter := make([]float64, n)
	year := make([]float64, n)
	weekend := make([]float64, n)
	monthSin := make([]float64, n)
	monthCos := make([]float64, n)
	dowSin := make([]float64, n)
	dowCos := make([]float64, n)

	for i, ts := range series.Timestamps {
		d := (int(ts.Weekday()) + 6) % 7
		m := int(ts.Month())

		hour[i] = float64(ts.Hour())
		dow[i] = float64(d)
		dom[i] = float64(ts.Day())
		month[i] = float64(m)
		quarter[i] = float64((m-1)/3 + 1)
		year[i] = float64(ts.Year())
		if d >= 5 {
			weekend[i] = 1
		}
		monthSin[i] = math.Sin(2 * math.Pi * float64(m) / 12)
		monthCos[i] = math.Cos(2 * math.Pi * float64(m) / 12)
		dowSin[i] = math.Sin(2 * math.Pi * float64(d) / 7)
		dowCos[i] = math.Cos(2 * math.Pi * float64(d) / 7)
	}

	matrix := models.NewFeatureMatrix(series.Timestamps)
	for _, c := range []struct {
		name   string
		values []float64
	}{
		{"hour", hour},
		{"day_of_week", dow},
		{"day_of_month", dom},
		{"month", month},
		{"quarter", quarter},
		{"year", year},
		{"is_weekend", weekend},
		{"month_sin", monthSin},
		{"month_cos", monthCos},
		{"day_of_week_sin", dowSin},
		{"day_of_week_cos", dowCos},
	} {
		_ = matrix.AddColumn(c.name, c.values)
	}
	return matrix
}

// CandleFeatures derives the OHLCV ratio features. The series must carry
// candle columns.
func (e *CandleFeatureEngineer) CandleFeatures(series *models.TimeSeries) (*models.FeatureMatrix, error) {
	if !series.IsOHLCV() {
		return nil, utils.NewInvalidColumnError("close")
	}

	n := series.Len()
	open, high, low, close, volume := series.Open, series.High, series.Low, series.Close, series.Volume

	priceRange := make([]float64, n)
	priceRangePct := make([]float64, n)
	body := make([]float64, n)
	bodyPct := make([]float64, n)
	upperWick := make([]float64, n)
	lowerWick := make([]float64, n)
	closePosition := make([]float64, n)
	vwap := make([]float64, n)
	closeChange := nanSlice(n)
	closePctChange := nanSlice(n)
	volumeChange := nanSlice(n)
	volumePctChange := nanSlice(n)
	volumePriceTrend := nanSlice(n)
	trueRange := make([]float64, n)
	gap := nanSlice(n)
	gapPct := nanSlice(n)

	for i := 0; i < n; i++ {
		priceRange[i] = high[i] - low[i]
		priceRangePct[i] = priceRange[i] / open[i]
		body[i] = close[i] - open[i]
		bodyPct[i] = body[i] / open[i]
		upperWick[i] = high[i] - math.Max(open[i], close[i])
		lowerWick[i] = math.Min(open[i], close[i]) - low[i]

		if priceRange[i] == 0 {
			// Degenerate candle: high == low, position is indeterminate.
			closePosition[i] = 0.5
		} else {
			closePosition[i] = (close[i] - low[i]) / priceRange[i]
		}

		typical := (high[i] + low[i] + close[i]) / 3
		vwap[i] = typical * volume[i]

		if i == 0 {
			trueRange[i] = priceRange[i]
			continue
		}
		prevClose := close[i-1]
		closeChange[i] = close[i] - prevClose
		closePctChange[i] = closeChange[i] / prevClose
		volumeChange[i] = volume[i] - volume[i-1]
		volumePctChange[i] = volumeChange[i] / volume[i-1]
		volumePriceTrend[i] = volume[i] * closePctChange[i]
		trueRange[i] = math.Max(priceRange[i],
			math.Max(math.Abs(high[i]-prevClose), math.Abs(low[i]-prevClose)))
		gap[i] = open[i] - prevClose
		gapPct[i] = gap[i] / prevClose
	}

	matrix := models.NewFeatureMatrix(series.Timestamps)
	for _, c := range []struct {
		name   string
		values []float64
	}{
		{"price_range", priceRange},
		{"price_range_pct", priceRangePct},
		{"body", body},
		{"body_pct", bodyPct},
		{"upper_wick", upperWick},
		{"lower_wick", lowerWick},
		{"close_position", closePosition},
		{"vwap", vwap},
		{"close_change", closeChange},
		{"close_pct_change", closePctChange},
		{"volume_change", volumeChange},
		{"volume_pct_change", volumePctChange},
		{"volume_price_trend", volumePriceTrend},
		{"true_range", trueRange},
		{"gap", gap},
		{"gap_pct", gapPct},
	} {
		_ = matrix.AddColumn(c.name, c.values)
	}
	return matrix, nil
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
