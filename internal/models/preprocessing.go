package models

import (
	"github.com/quantprep/preprocessing-go/internal/utils"
)

// InterpolationMethod selects how missing values are filled.
type InterpolationMethod string

const (
	InterpolationLinear       InterpolationMethod = "linear"
	InterpolationForwardFill  InterpolationMethod = "forward_fill"
	InterpolationBackwardFill InterpolationMethod = "backward_fill"
	InterpolationSpline       InterpolationMethod = "spline"
	InterpolationPolynomial   InterpolationMethod = "polynomial"
)

// OutlierMethod selects the outlier detection strategy.
type OutlierMethod string

const (
	OutlierZScore          OutlierMethod = "zscore"
	OutlierIQR             OutlierMethod = "iqr"
	OutlierIsolationForest OutlierMethod = "isolation_forest"
)

// AggregationMethod selects how resample buckets are aggregated.
type AggregationMethod string

const (
	AggregationMean   AggregationMethod = "mean"
	AggregationSum    AggregationMethod = "sum"
	AggregationMin    AggregationMethod = "min"
	AggregationMax    AggregationMethod = "max"
	AggregationMedian AggregationMethod = "median"
)

// DefaultOutlierThreshold is the threshold callers apply when their input
// format can tell an absent threshold apart from an explicit zero.
const DefaultOutlierThreshold = 3.0

// PreprocessingConfig is the immutable configuration for one pipeline run.
// Construct via NewPreprocessingConfig, which validates fail-fast.
type PreprocessingConfig struct {
	InterpolationMethod InterpolationMethod `json:"interpolation_method"`
	OutlierMethod       OutlierMethod       `json:"outlier_method"`
	OutlierThreshold    float64             `json:"outlier_threshold"`
	ResampleFrequency   string              `json:"resample_frequency,omitempty"`
	AggregationMethod   AggregationMethod   `json:"aggregation_method"`
	LagFeatures         []int               `json:"lag_features,omitempty"`
	RollingWindowSizes  []int               `json:"rolling_window_sizes,omitempty"`
}

// PreprocessingOverride carries optional per-request configuration. The
// threshold is a pointer so an explicit zero is rejected instead of being
// mistaken for an omitted field.
type PreprocessingOverride struct {
	InterpolationMethod InterpolationMethod `json:"interpolation_method,omitempty"`
	OutlierMethod       OutlierMethod       `json:"outlier_method,omitempty"`
	OutlierThreshold    *float64            `json:"outlier_threshold,omitempty"`
	ResampleFrequency   string              `json:"resample_frequency,omitempty"`
	AggregationMethod   AggregationMethod   `json:"aggregation_method,omitempty"`
	LagFeatures         []int               `json:"lag_features,omitempty"`
	RollingWindowSizes  []int               `json:"rolling_window_sizes,omitempty"`
}

// ApplyTo overlays the set fields onto base and validates the result.
func (o *PreprocessingOverride) ApplyTo(base PreprocessingConfig) (PreprocessingConfig, error) {
	if o != nil {
		if o.InterpolationMethod != "" {
			base.InterpolationMethod = o.InterpolationMethod
		}
		if o.OutlierMethod != "" {
			base.OutlierMethod = o.OutlierMethod
		}
		if o.OutlierThreshold != nil {
			base.OutlierThreshold = *o.OutlierThreshold
		}
		if o.ResampleFrequency != "" {
			base.ResampleFrequency = o.ResampleFrequency
		}
		if o.AggregationMethod != "" {
			base.AggregationMethod = o.AggregationMethod
		}
		if o.LagFeatures != nil {
			base.LagFeatures = o.LagFeatures
		}
		if o.RollingWindowSizes != nil {
			base.RollingWindowSizes = o.RollingWindowSizes
		}
	}
	return NewPreprocessingConfig(base)
}

// NewPreprocessingConfig builds a validated config. Empty method names fall
// back to linear interpolation, zscore detection and mean aggregation. The
// threshold is never defaulted here: zero is invalid and fails validation,
// since a plain float cannot distinguish "absent" from an explicit zero.
func NewPreprocessingConfig(cfg PreprocessingConfig) (PreprocessingConfig, error) {
	if cfg.InterpolationMethod == "" {
		cfg.InterpolationMethod = InterpolationLinear
	}
	if cfg.OutlierMethod == "" {
		cfg.OutlierMethod = OutlierZScore
	}
	if cfg.AggregationMethod == "" {
		cfg.AggregationMethod = AggregationMean
	}
	if err := cfg.Validate(); err != nil {
		return PreprocessingConfig{}, err
	}
	return cfg, nil
}

// Validate enforces the construction invariants: positive threshold, lags at
// least 1, window sizes at least 2, known method names.
func (c PreprocessingConfig) Validate() error {
	switch c.InterpolationMethod {
	case InterpolationLinear, InterpolationForwardFill, InterpolationBackwardFill,
		InterpolationSpline, InterpolationPolynomial:
	default:
		return utils.NewValidationErrorf("unknown interpolation method: %s", c.InterpolationMethod)
	}

	switch c.OutlierMethod {
	case OutlierZScore, OutlierIQR, OutlierIsolationForest:
	default:
		return utils.NewValidationErrorf("unknown outlier method: %s", c.OutlierMethod)
	}

	switch c.AggregationMethod {
	case AggregationMean, AggregationSum, AggregationMin, AggregationMax, AggregationMedian:
	default:
		return utils.NewValidationErrorf("unknown aggregation method: %s", c.AggregationMethod)
	}

	if c.OutlierThreshold <= 0 {
		return utils.NewValidationError("outlier threshold must be positive")
	}
	for _, lag := range c.LagFeatures {
		if lag < 1 {
			return utils.NewValidationErrorf("lag values must be positive integers, got %d", lag)
		}
	}
	for _, w := range c.RollingWindowSizes {
		if w < 2 {
			return utils.NewValidationErrorf("rolling window sizes must be at least 2, got %d", w)
		}
	}
	return nil
}
