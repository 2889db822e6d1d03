package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantprep/preprocessing-go/internal/models"
	"github.com/quantprep/preprocessing-go/internal/preprocessing"
	"github.com/quantprep/preprocessing-go/internal/utils"
)

type fakeRepository struct {
	raw          map[string]*models.TimeSeries
	preprocessed map[string]*models.TimeSeries
	saveErr      error
	saveCalls    int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		raw:          make(map[string]*models.TimeSeries),
		preprocessed: make(map[string]*models.TimeSeries),
	}
}

func (r *fakeRepository) GetRawData(_ context.Context, seriesID string) (*models.TimeSeries, error) {
	data, ok := r.raw[seriesID]
	if !ok {
		return nil, utils.NewNotFoundError("series", seriesID)
	}
	return data.Clone(), nil
}

func (r *fakeRepository) GetPreprocessedData(_ context.Context, seriesID string) (*models.TimeSeries, error) {
	data, ok := r.preprocessed[seriesID]
	if !ok {
		return nil, utils.NewNotFoundError("preprocessed series", seriesID)
	}
	return data.Clone(), nil
}

func (r *fakeRepository) SavePreprocessedData(_ context.Context, seriesID string, data *models.TimeSeries) error {
	r.saveCalls++
	if r.saveErr != nil {
		return r.saveErr
	}
	r.preprocessed[seriesID] = data.Clone()
	return nil
}

func newTestService(repo *fakeRepository) *PreprocessingService {
	return NewPreprocessingService(
		repo,
		preprocessing.NewInterpolatingFiller(),
		preprocessing.NewStatisticalDetector(),
		preprocessing.NewBucketResampler(),
		preprocessing.NewCandleFeatureEngineer(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

// rawHourly builds 100 hourly points around 100 with a 5-point gap at
// indices 20-24 and a spike at index 50.
func rawHourly() *models.TimeSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	timestamps := make([]time.Time, 100)
	values := make([]float64, 100)
	for i := range values {
		timestamps[i] = start.Add(time.Duration(i) * time.Hour)
		values[i] = 100 + float64(i%5)
	}
	for i := 20; i <= 24; i++ {
		values[i] = math.NaN()
	}
	values[50] = 1000
	return models.NewTimeSeries(timestamps, values, map[string]interface{}{"series_id": "btc-hourly"})
}

func TestPreprocess_EndToEnd(t *testing.T) {
	repo := newFakeRepository()
	repo.raw["btc-hourly"] = rawHourly()
	service := newTestService(repo)

	cfg, err := models.NewPreprocessingConfig(models.PreprocessingConfig{
		InterpolationMethod: models.InterpolationLinear,
		OutlierMethod:       models.OutlierZScore,
		OutlierThreshold:    3.0,
	})
	require.NoError(t, err)

	result, err := service.Preprocess(context.Background(), "btc-hourly", cfg)
	require.NoError(t, err)
	require.True(t, result.Saved)

	// Gap filled, spike removed.
	assert.Equal(t, 99, result.Series.Len())
	assert.Zero(t, result.Series.MissingCount())
	for _, v := range result.Series.Values {
		assert.Less(t, v, 200.0)
	}

	// Persisted under the preprocessed key.
	saved, err := repo.GetPreprocessedData(context.Background(), "btc-hourly")
	require.NoError(t, err)
	assert.Equal(t, 99, saved.Len())
}

func TestPreprocess_Idempotent(t *testing.T) {
	repo := newFakeRepository()
	repo.raw["s1"] = rawHourly()
	service := newTestService(repo)

	cfg, err := models.NewPreprocessingConfig(models.PreprocessingConfig{OutlierThreshold: models.DefaultOutlierThreshold})
	require.NoError(t, err)

	first, err := service.Preprocess(context.Background(), "s1", cfg)
	require.NoError(t, err)
	second, err := service.Preprocess(context.Background(), "s1", cfg)
	require.NoError(t, err)

	assert.Equal(t, first.Series.Values, second.Series.Values)
	assert.Equal(t, first.Series.Timestamps, second.Series.Timestamps)
}

func TestPreprocess_WithResample(t *testing.T) {
	repo := newFakeRepository()
	repo.raw["s1"] = rawHourly()
	service := newTestService(repo)

	cfg, err := models.NewPreprocessingConfig(models.PreprocessingConfig{
		OutlierThreshold:  models.DefaultOutlierThreshold,
		ResampleFrequency: "D",
	})
	require.NoError(t, err)

	result, err := service.Preprocess(context.Background(), "s1", cfg)
	require.NoError(t, err)

	// 100 hourly points span 5 calendar days.
	assert.Equal(t, 5, result.Series.Len())
}

func TestPreprocess_UnknownSeries(t *testing.T) {
	service := newTestService(newFakeRepository())

	cfg, err := models.NewPreprocessingConfig(models.PreprocessingConfig{OutlierThreshold: models.DefaultOutlierThreshold})
	require.NoError(t, err)

	_, err = service.Preprocess(context.Background(), "missing", cfg)
	require.Error(t, err)
	assert.True(t, utils.IsNotFound(err))
}

func TestPreprocess_BadFrequency(t *testing.T) {
	repo := newFakeRepository()
	repo.raw["s1"] = rawHourly()
	service := newTestService(repo)

	cfg, err := models.NewPreprocessingConfig(models.PreprocessingConfig{OutlierThreshold: models.DefaultOutlierThreshold})
	require.NoError(t, err)
	cfg.ResampleFrequency = "Q"

	_, err = service.Preprocess(context.Background(), "s1", cfg)
	require.Error(t, err)
	assert.True(t, utils.IsValidationError(err))
	assert.Zero(t, repo.saveCalls)
}

func TestPreprocess_SaveFailureReported(t *testing.T) {
	repo := newFakeRepository()
	repo.raw["s1"] = rawHourly()
	repo.saveErr = errors.New("connection reset")
	service := newTestService(repo)

	cfg, err := models.NewPreprocessingConfig(models.PreprocessingConfig{OutlierThreshold: models.DefaultOutlierThreshold})
	require.NoError(t, err)

	result, err := service.Preprocess(context.Background(), "s1", cfg)
	require.NoError(t, err)
	assert.False(t, result.Saved)
	assert.Equal(t, 99, result.Series.Len())
}

func TestCreateFeatures_PlainSeries(t *testing.T) {
	repo := newFakeRepository()
	repo.raw["s1"] = rawHourly()
	service := newTestService(repo)

	cfg, err := models.NewPreprocessingConfig(models.PreprocessingConfig{
		OutlierThreshold:   models.DefaultOutlierThreshold,
		LagFeatures:        []int{1, 7},
		RollingWindowSizes: []int{7},
	})
	require.NoError(t, err)

	matrix, err := service.CreateFeatures(context.Background(), "s1", cfg, false)
	require.NoError(t, err)

	assert.Equal(t, 100, matrix.Rows())
	assert.Equal(t, "value", matrix.Columns[0])
	assert.Contains(t, matrix.Columns, "lag_1")
	assert.Contains(t, matrix.Columns, "lag_7")
	assert.Contains(t, matrix.Columns, "rolling_mean_7")
	assert.Contains(t, matrix.Columns, "day_of_week")
	assert.NotContains(t, matrix.Columns, "close_position")
	assert.NotContains(t, matrix.Columns, "rsi_14")
}

func TestCreateFeatures_PrefersPreprocessed(t *testing.T) {
	repo := newFakeRepository()
	repo.raw["s1"] = rawHourly()
	service := newTestService(repo)

	cfg, err := models.NewPreprocessingConfig(models.PreprocessingConfig{OutlierThreshold: models.DefaultOutlierThreshold})
	require.NoError(t, err)

	_, err = service.Preprocess(context.Background(), "s1", cfg)
	require.NoError(t, err)

	matrix, err := service.CreateFeatures(context.Background(), "s1", cfg, false)
	require.NoError(t, err)

	// The preprocessed series lost the removed outlier row.
	assert.Equal(t, 99, matrix.Rows())
}

func TestCreateFeatures_OHLCVWithIndicators(t *testing.T) {
	repo := newFakeRepository()

	series := rawHourly()
	n := series.Len()
	series.Open = make([]float64, n)
	series.High = make([]float64, n)
	series.Low = make([]float64, n)
	series.Close = make([]float64, n)
	series.Volume = make([]float64, n)
	for i := 0; i < n; i++ {
		base := 100 + float64(i%5)
		series.Open[i] = base
		series.High[i] = base + 2
		series.Low[i] = base - 1
		series.Close[i] = base + 1
		series.Volume[i] = 1000
	}
	series.Values = series.Close
	repo.raw["ohlcv"] = series
	service := newTestService(repo)

	cfg, err := models.NewPreprocessingConfig(models.PreprocessingConfig{
		OutlierThreshold:   models.DefaultOutlierThreshold,
		RollingWindowSizes: []int{7},
	})
	require.NoError(t, err)

	matrix, err := service.CreateFeatures(context.Background(), "ohlcv", cfg, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"open", "high", "low", "close", "volume"}, matrix.Columns[:5])
	assert.Contains(t, matrix.Columns, "close_position")
	assert.Contains(t, matrix.Columns, "true_range")
	assert.Contains(t, matrix.Columns, "rsi_14")
	assert.Contains(t, matrix.Columns, "sma_7")
	assert.Contains(t, matrix.Columns, "ema_7")
}

func TestValidateData(t *testing.T) {
	repo := newFakeRepository()
	repo.raw["s1"] = rawHourly()
	service := newTestService(repo)

	report, err := service.ValidateData(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, 100, report.TotalPoints)
	assert.Equal(t, 5, report.MissingValues)
	assert.InDelta(t, 5.0, report.MissingPercentage, 1e-9)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), report.DateRange.Start)
	assert.Equal(t, time.Date(2024, 1, 5, 3, 0, 0, 0, time.UTC), report.DateRange.End)
	assert.InDelta(t, 1000, report.ValueStats.Max, 1e-9)
	assert.InDelta(t, 100, report.ValueStats.Min, 1e-9)
	assert.Greater(t, report.ValueStats.Std, 0.0)
}

func TestValidateData_UnknownSeries(t *testing.T) {
	service := newTestService(newFakeRepository())

	_, err := service.ValidateData(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, utils.IsNotFound(err))
}
