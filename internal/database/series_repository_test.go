package database

import (
	"context"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantprep/preprocessing-go/internal/models"
	"github.com/quantprep/preprocessing-go/internal/utils"
)

const selectPattern = `SELECT timestamp, open, high, low, close, volume, features`

func TestGetRawData(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ts1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ts2 := ts1.Add(time.Hour)

	mock.ExpectQuery(selectPattern).
		WithArgs("btc-hourly").
		WillReturnRows(pgxmock.NewRows(
			[]string{"timestamp", "open", "high", "low", "close", "volume", "features"}).
			AddRow(ts1, 100.0, 102.0, 99.0, 101.0, 1000.0, []byte(`{"sma_7":100.5}`)).
			AddRow(ts2, 101.0, 103.0, 100.0, nil, 1100.0, nil))

	repo := NewSeriesRepository(mock)
	series, err := repo.GetRawData(context.Background(), "btc-hourly")
	require.NoError(t, err)

	require.Equal(t, 2, series.Len())
	assert.Equal(t, ts1, series.Timestamps[0])
	assert.Equal(t, 101.0, series.Close[0])
	// NULL close arrives as a missing value.
	assert.True(t, math.IsNaN(series.Close[1]))
	assert.True(t, math.IsNaN(series.Values[1]))
	assert.Equal(t, 100.5, series.FeatureRows[0]["sma_7"])
	assert.Empty(t, series.FeatureRows[1])
	assert.Equal(t, "btc-hourly", series.Metadata["series_id"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRawData_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(selectPattern).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(
			[]string{"timestamp", "open", "high", "low", "close", "volume", "features"}))

	repo := NewSeriesRepository(mock)
	_, err = repo.GetRawData(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, utils.IsNotFound(err))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePreprocessedData_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data := models.NewTimeSeries([]time.Time{ts}, []float64{101.0}, nil)
	data.Open = []float64{100}
	data.High = []float64{102}
	data.Low = []float64{99}
	data.Close = []float64{101}
	data.Volume = []float64{1000}
	data.FeatureRows = []map[string]float64{{"lag_1": 99.5, "gap": math.NaN()}}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO time_series_preprocessed")).
		WithArgs("btc-hourly", ts, 100.0, 102.0, 99.0, 101.0, 1000.0, []byte(`{"lag_1":99.5}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewSeriesRepository(mock)
	require.NoError(t, repo.SavePreprocessedData(context.Background(), "btc-hourly", data))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePreprocessedData_NaNBecomesNull(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data := models.NewTimeSeries([]time.Time{ts}, []float64{math.NaN()}, nil)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO time_series_preprocessed")).
		WithArgs("s1", ts, nil, nil, nil, nil, 0.0, []byte(`{}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewSeriesRepository(mock)
	require.NoError(t, repo.SavePreprocessedData(context.Background(), "s1", data))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePreprocessedData_ExecFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data := models.NewTimeSeries([]time.Time{ts}, []float64{1}, nil)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO time_series_preprocessed")).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(assert.AnError)

	repo := NewSeriesRepository(mock)
	err = repo.SavePreprocessedData(context.Background(), "s1", data)
	require.Error(t, err)
	assert.True(t, utils.IsPersistenceError(err))
}

func TestGetDateRange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	earliest := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	latest := time.Date(2024, 1, 5, 3, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT MIN(timestamp), MAX(timestamp)")).
		WithArgs("s1").
		WillReturnRows(pgxmock.NewRows([]string{"min", "max"}).AddRow(earliest, latest))

	repo := NewSeriesRepository(mock)
	start, end, err := repo.GetDateRange(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, earliest, start)
	assert.Equal(t, latest, end)
}

func TestGetDateRange_NoRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT MIN(timestamp), MAX(timestamp)")).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"min", "max"}).AddRow(nil, nil))

	repo := NewSeriesRepository(mock)
	_, _, err = repo.GetDateRange(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, utils.IsNotFound(err))
}

func TestGetSeriesCount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("s1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))

	repo := NewSeriesRepository(mock)
	count, err := repo.GetSeriesCount(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
}

func TestGetFeatureNames(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT jsonb_object_keys(features)")).
		WithArgs("s1").
		WillReturnRows(pgxmock.NewRows([]string{"name"}).AddRow("lag_1").AddRow("rolling_mean_7"))

	repo := NewSeriesRepository(mock)
	names, err := repo.GetFeatureNames(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"lag_1", "rolling_mean_7"}, names)
}
