package services

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/quantprep/preprocessing-go/internal/models"
	"github.com/quantprep/preprocessing-go/internal/preprocessing"
	"github.com/quantprep/preprocessing-go/internal/utils"
)

// SeriesRepository is the storage contract the orchestrator depends on.
// Reads fail with a NotFoundError when the series does not exist; the
// preprocessed write is an upsert keyed by (series_id, timestamp).
type SeriesRepository interface {
	GetRawData(ctx context.Context, seriesID string) (*models.TimeSeries, error)
	SavePreprocessedData(ctx context.Context, seriesID string, data *models.TimeSeries) error
	GetPreprocessedData(ctx context.Context, seriesID string) (*models.TimeSeries, error)
}

// PreprocessingService sequences the transform stages into one deterministic
// pipeline: load raw, fill missing, remove outliers, optionally resample,
// persist. All collaborators are injected; the service holds no state
// between runs.
type PreprocessingService struct {
	repository SeriesRepository
	missing    preprocessing.MissingValueHandler
	outliers   preprocessing.OutlierDetector
	resampler  preprocessing.Resampler
	features   preprocessing.FeatureEngineer
	logger     *slog.Logger
}

// NewPreprocessingService wires the orchestrator with its collaborators.
func NewPreprocessingService(
	repository SeriesRepository,
	missing preprocessing.MissingValueHandler,
	outliers preprocessing.OutlierDetector,
	resampler preprocessing.Resampler,
	features preprocessing.FeatureEngineer,
	logger *slog.Logger,
) *PreprocessingService {
	return &PreprocessingService{
		repository: repository,
		missing:    missing,
		outliers:   outliers,
		resampler:  resampler,
		features:   features,
		logger:     logger,
	}
}

// PreprocessResult carries the preprocessed series and whether the persist
// step completed. A failed write is reported here rather than aborting the
// already-computed result.
type PreprocessResult struct {
	Series *models.TimeSeries
	Saved  bool
}

// ValidationReport summarizes raw data quality for one series.
type ValidationReport struct {
	TotalPoints       int        `json:"total_points"`
	MissingValues     int        `json:"missing_values"`
	MissingPercentage float64    `json:"missing_percentage"`
	DateRange         DateRange  `json:"date_range"`
	ValueStats        ValueStats `json:"value_stats"`
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type ValueStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Preprocess runs the full pipeline for one series. Any failure before the
// persist step aborts the run with nothing written; a failed persist is
// logged and reported via Saved=false.
func (s *PreprocessingService) Preprocess(ctx context.Context, seriesID string, cfg models.PreprocessingConfig) (*PreprocessResult, error) {
	log := s.logger.With("series_id", seriesID, "operation", "preprocess", "run_id", uuid.NewString())
	log.Info("starting preprocessing")

	data, err := s.repository.GetRawData(ctx, seriesID)
	if err != nil {
		log.Error("failed to load raw data", "error", err)
		return nil, err
	}
	originalCount := data.Len()
	log.Info("retrieved raw data", "data_points", originalCount)

	data = s.missing.HandleMissing(data, cfg.InterpolationMethod)
	log.Info("missing values handled", "method", cfg.InterpolationMethod)

	data = s.outliers.DetectAndRemove(data, cfg.OutlierMethod, cfg.OutlierThreshold)
	log.Info("outliers processed",
		"method", cfg.OutlierMethod,
		"removed", originalCount-data.Len())

	if cfg.ResampleFrequency != "" {
		data, err = s.resampler.Resample(data, cfg.ResampleFrequency, cfg.AggregationMethod)
		if err != nil {
			log.Error("resample failed", "frequency", cfg.ResampleFrequency, "error", err)
			if utils.IsValidationError(err) {
				return nil, err
			}
			return nil, utils.NewTransformError("resample", err)
		}
		log.Info("resampled",
			"frequency", cfg.ResampleFrequency,
			"aggregation", cfg.AggregationMethod)
	}

	saved := true
	if err := s.repository.SavePreprocessedData(ctx, seriesID, data); err != nil {
		saved = false
		log.Error("failed to save preprocessed data", "error", utils.NewPersistenceError("save_preprocessed", err))
	} else {
		log.Info("preprocessing completed", "data_points", data.Len())
	}

	return &PreprocessResult{Series: data, Saved: saved}, nil
}

// CreateFeatures builds the feature matrix for a series, preferring the
// preprocessed data and falling back to raw when none exists yet. Columns
// are appended in a fixed order: base columns, lags, rolling statistics,
// calendar features (always), candle features when the series carries OHLCV
// columns, and indicator columns when requested.
func (s *PreprocessingService) CreateFeatures(ctx context.Context, seriesID string, cfg models.PreprocessingConfig, withIndicators bool) (*models.FeatureMatrix, error) {
	log := s.logger.With("series_id", seriesID, "operation", "create_features")

	data, err := s.repository.GetPreprocessedData(ctx, seriesID)
	if err != nil {
		if !utils.IsNotFound(err) {
			return nil, err
		}
		data, err = s.repository.GetRawData(ctx, seriesID)
		if err != nil {
			log.Error("failed to load series", "error", err)
			return nil, err
		}
		log.Info("no preprocessed data, using raw series")
	}

	matrix := baseMatrix(data)

	if len(cfg.LagFeatures) > 0 {
		lags, err := s.features.LagFeatures(data, "value", cfg.LagFeatures)
		if err != nil {
			return nil, err
		}
		if err := mergeMatrix(matrix, lags); err != nil {
			return nil, utils.NewTransformError("lag_features", err)
		}
		log.Info("created lag features", "count", len(cfg.LagFeatures))
	}

	if len(cfg.RollingWindowSizes) > 0 {
		rolling, err := s.features.RollingFeatures(data, "value", cfg.RollingWindowSizes)
		if err != nil {
			return nil, err
		}
		if err := mergeMatrix(matrix, rolling); err != nil {
			return nil, utils.NewTransformError("rolling_features", err)
		}
		log.Info("created rolling features", "windows", len(cfg.RollingWindowSizes))
	}

	if err := mergeMatrix(matrix, s.features.CalendarFeatures(data)); err != nil {
		return nil, utils.NewTransformError("calendar_features", err)
	}

	if data.IsOHLCV() {
		candle, err := s.features.CandleFeatures(data)
		if err != nil {
			return nil, err
		}
		if err := mergeMatrix(matrix, candle); err != nil {
			return nil, utils.NewTransformError("candle_features", err)
		}
	}

	if withIndicators {
		indicators, err := s.features.IndicatorFeatures(data, cfg.RollingWindowSizes)
		if err != nil {
			return nil, err
		}
		if err := mergeMatrix(matrix, indicators); err != nil {
			return nil, utils.NewTransformError("indicator_features", err)
		}
	}

	log.Info("feature creation completed", "columns", len(matrix.Columns), "rows", matrix.Rows())
	return matrix, nil
}

// ValidateData loads the raw series and reports row counts, missing values
// and the value distribution.
func (s *PreprocessingService) ValidateData(ctx context.Context, seriesID string) (*ValidationReport, error) {
	data, err := s.repository.GetRawData(ctx, seriesID)
	if err != nil {
		s.logger.Error("validation failed", "series_id", seriesID, "error", err)
		return nil, err
	}

	values := data.Column("value")
	missing := data.MissingCount()
	mean, std := valueMoments(values)
	min, max := valueBounds(values)

	report := &ValidationReport{
		TotalPoints:       data.Len(),
		MissingValues:     missing,
		MissingPercentage: float64(missing) / float64(data.Len()) * 100,
		ValueStats:        ValueStats{Mean: mean, Std: std, Min: min, Max: max},
	}
	if data.Len() > 0 {
		report.DateRange = DateRange{
			Start: data.Timestamps[0],
			End:   data.Timestamps[data.Len()-1],
		}
	}
	return report, nil
}

// baseMatrix seeds the feature matrix with the series' own columns.
func baseMatrix(data *models.TimeSeries) *models.FeatureMatrix {
	matrix := models.NewFeatureMatrix(data.Timestamps)
	if data.IsOHLCV() {
		_ = matrix.AddColumn("open", data.Open)
		_ = matrix.AddColumn("high", data.High)
		_ = matrix.AddColumn("low", data.Low)
		_ = matrix.AddColumn("close", data.Close)
		_ = matrix.AddColumn("volume", data.Volume)
	} else {
		_ = matrix.AddColumn("value", data.Values)
	}
	return matrix
}

func mergeMatrix(dst, src *models.FeatureMatrix) error {
	for _, name := range src.Columns {
		if err := dst.AddColumn(name, src.Data[name]); err != nil {
			return err
		}
	}
	return nil
}

func valueMoments(values []float64) (float64, float64) {
	var sum float64
	n := 0
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN(), math.NaN()
	}
	mean := sum / float64(n)
	if n < 2 {
		return mean, 0
	}
	var ss float64
	for _, v := range values {
		if !math.IsNaN(v) {
			d := v - mean
			ss += d * d
		}
	}
	return mean, math.Sqrt(ss / float64(n-1))
}

func valueBounds(values []float64) (float64, float64) {
	min, max := math.NaN(), math.NaN()
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(min) || v < min {
			min = v
		}
		if math.IsNaN(max) || v > max {
			max = v
		}
	}
	return min, max
}
