package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quantprep/preprocessing-go/internal/models"
	"github.com/quantprep/preprocessing-go/internal/utils"
)

// DatabasePool defines the pool operations the repository needs. Both
// pgxpool.Pool and pgxmock satisfy it.
type DatabasePool interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// SeriesRepository reads raw OHLCV series and persists preprocessed ones.
// Raw data lives in time_series_raw and is owned by the ingestion service;
// preprocessed data is upserted into time_series_preprocessed keyed by
// (series_id, timestamp).
type SeriesRepository struct {
	pool DatabasePool
}

// NewSeriesRepository creates a new series repository.
func NewSeriesRepository(pool DatabasePool) *SeriesRepository {
	return &SeriesRepository{
		pool: pool,
	}
}

const seriesSelect = `
	SELECT timestamp, open, high, low, close, volume, features
	FROM %s
	WHERE series_id = $1
	ORDER BY timestamp`

// GetRawData retrieves the raw series, failing with NotFound when no rows
// exist. NULL value columns map to NaN.
func (r *SeriesRepository) GetRawData(ctx context.Context, seriesID string) (*models.TimeSeries, error) {
	return r.getSeries(ctx, "time_series_raw", seriesID)
}

// GetPreprocessedData retrieves the previously preprocessed series, failing
// with NotFound when no run has been persisted yet.
func (r *SeriesRepository) GetPreprocessedData(ctx context.Context, seriesID string) (*models.TimeSeries, error) {
	return r.getSeries(ctx, "time_series_preprocessed", seriesID)
}

func (r *SeriesRepository) getSeries(ctx context.Context, table, seriesID string) (*models.TimeSeries, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(seriesSelect, table), seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	series := &models.TimeSeries{
		Metadata: map[string]interface{}{"series_id": seriesID},
	}
	for rows.Next() {
		var ts time.Time
		var open, high, low, close, volume sql.NullFloat64
		var featuresJSON []byte

		if err := rows.Scan(&ts, &open, &high, &low, &close, &volume, &featuresJSON); err != nil {
			return nil, fmt.Errorf("failed to scan series row: %w", err)
		}

		series.Timestamps = append(series.Timestamps, ts)
		series.Open = append(series.Open, nullToNaN(open))
		series.High = append(series.High, nullToNaN(high))
		series.Low = append(series.Low, nullToNaN(low))
		series.Close = append(series.Close, nullToNaN(close))
		series.Volume = append(series.Volume, nullToNaN(volume))

		featureRow := map[string]float64{}
		if len(featuresJSON) > 0 {
			if err := json.Unmarshal(featuresJSON, &featureRow); err != nil {
				return nil, fmt.Errorf("failed to decode features for %s: %w", seriesID, err)
			}
		}
		series.FeatureRows = append(series.FeatureRows, featureRow)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read series rows: %w", err)
	}
	if series.Len() == 0 {
		return nil, utils.NewNotFoundError("series", seriesID)
	}

	series.Values = append([]float64(nil), series.Close...)
	return series, nil
}

const preprocessedUpsert = `
	INSERT INTO time_series_preprocessed
		(series_id, timestamp, open, high, low, close, volume, features)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (series_id, timestamp) DO UPDATE
	SET open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume,
		features = EXCLUDED.features`

// SavePreprocessedData upserts the series row by row. Rerunning with the
// same series overwrites prior results; NaN maps back to NULL.
func (r *SeriesRepository) SavePreprocessedData(ctx context.Context, seriesID string, data *models.TimeSeries) error {
	for i, ts := range data.Timestamps {
		features := map[string]float64{}
		if i < len(data.FeatureRows) && data.FeatureRows[i] != nil {
			for k, v := range data.FeatureRows[i] {
				if !math.IsNaN(v) {
					features[k] = v
				}
			}
		}
		featuresJSON, err := json.Marshal(features)
		if err != nil {
			return utils.NewPersistenceError("save_preprocessed", err)
		}

		_, err = r.pool.Exec(ctx, preprocessedUpsert,
			seriesID,
			ts,
			nanToNull(column(data.Open, i, data.Values[i])),
			nanToNull(column(data.High, i, data.Values[i])),
			nanToNull(column(data.Low, i, data.Values[i])),
			nanToNull(column(data.Close, i, data.Values[i])),
			nanToNull(column(data.Volume, i, 0)),
			featuresJSON,
		)
		if err != nil {
			return utils.NewPersistenceError("save_preprocessed", err)
		}
	}
	return nil
}

// GetDateRange returns the earliest and latest raw timestamps for a series.
func (r *SeriesRepository) GetDateRange(ctx context.Context, seriesID string) (time.Time, time.Time, error) {
	var earliest, latest sql.NullTime
	err := r.pool.QueryRow(ctx,
		`SELECT MIN(timestamp), MAX(timestamp) FROM time_series_raw WHERE series_id = $1`,
		seriesID,
	).Scan(&earliest, &latest)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("failed to read date range: %w", err)
	}
	if !earliest.Valid {
		return time.Time{}, time.Time{}, utils.NewNotFoundError("series", seriesID)
	}
	return earliest.Time, latest.Time, nil
}

// GetSeriesCount returns the number of raw rows stored for a series.
func (r *SeriesRepository) GetSeriesCount(ctx context.Context, seriesID string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM time_series_raw WHERE series_id = $1`,
		seriesID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count series rows: %w", err)
	}
	return count, nil
}

// GetFeatureNames returns the distinct feature keys stored with the
// preprocessed series.
func (r *SeriesRepository) GetFeatureNames(ctx context.Context, seriesID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT jsonb_object_keys(features)
		 FROM time_series_preprocessed
		 WHERE series_id = $1`,
		seriesID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read feature names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan feature name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func nullToNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func nanToNull(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// column returns col[i] when the column exists, otherwise the fallback.
// Plain single-value series persist their value into all four price columns
// so the stored shape stays uniform.
func column(col []float64, i int, fallback float64) float64 {
	if i < len(col) {
		return col[i]
	}
	return fallback
}
