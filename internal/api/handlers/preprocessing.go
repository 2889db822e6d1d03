package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quantprep/preprocessing-go/internal/cache"
	"github.com/quantprep/preprocessing-go/internal/models"
	"github.com/quantprep/preprocessing-go/internal/services"
	"github.com/quantprep/preprocessing-go/internal/utils"
)

// PipelineService is the orchestrator surface the HTTP layer depends on.
type PipelineService interface {
	Preprocess(ctx context.Context, seriesID string, cfg models.PreprocessingConfig) (*services.PreprocessResult, error)
	CreateFeatures(ctx context.Context, seriesID string, cfg models.PreprocessingConfig, withIndicators bool) (*models.FeatureMatrix, error)
	ValidateData(ctx context.Context, seriesID string) (*services.ValidationReport, error)
}

// PreprocessingHandler exposes the pipeline synchronously.
type PreprocessingHandler struct {
	service PipelineService
	reports *cache.ReportCache
}

// NewPreprocessingHandler creates the handler. reports may be nil when no
// cache is configured.
func NewPreprocessingHandler(service PipelineService, reports *cache.ReportCache) *PreprocessingHandler {
	return &PreprocessingHandler{
		service: service,
		reports: reports,
	}
}

// PreprocessRequest mirrors PreprocessingConfig plus the series to run on.
// The threshold is a pointer so a request carrying an explicit zero is
// rejected rather than silently defaulted.
type PreprocessRequest struct {
	SeriesID            string   `json:"series_id" binding:"required"`
	InterpolationMethod string   `json:"interpolation_method"`
	OutlierMethod       string   `json:"outlier_method"`
	OutlierThreshold    *float64 `json:"outlier_threshold"`
	ResampleFrequency   string   `json:"resample_frequency"`
	AggregationMethod   string   `json:"aggregation_method"`
}

// PreprocessResponse reports the outcome of a synchronous run.
type PreprocessResponse struct {
	Status     string                 `json:"status"`
	SeriesID   string                 `json:"series_id"`
	DataPoints int                    `json:"data_points"`
	Saved      bool                   `json:"saved"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// FeatureRequest selects the engineered features to build.
type FeatureRequest struct {
	SeriesID           string `json:"series_id" binding:"required"`
	LagFeatures        []int  `json:"lag_features"`
	RollingWindowSizes []int  `json:"rolling_window_sizes"`
	Indicators         bool   `json:"indicators"`
}

// FeatureResponse lists the created feature columns.
type FeatureResponse struct {
	Status   string   `json:"status"`
	SeriesID string   `json:"series_id"`
	Features []string `json:"features"`
	Rows     int      `json:"rows"`
}

// Preprocess handles POST /api/v1/preprocess.
func (h *PreprocessingHandler) Preprocess(c *gin.Context) {
	var req PreprocessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	threshold := models.DefaultOutlierThreshold
	if req.OutlierThreshold != nil {
		threshold = *req.OutlierThreshold
	}
	cfg, err := models.NewPreprocessingConfig(models.PreprocessingConfig{
		InterpolationMethod: models.InterpolationMethod(req.InterpolationMethod),
		OutlierMethod:       models.OutlierMethod(req.OutlierMethod),
		OutlierThreshold:    threshold,
		ResampleFrequency:   req.ResampleFrequency,
		AggregationMethod:   models.AggregationMethod(req.AggregationMethod),
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Preprocess(c.Request.Context(), req.SeriesID, cfg)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	if h.reports != nil && result.Saved {
		h.reports.Invalidate(c.Request.Context(), req.SeriesID)
	}

	c.JSON(http.StatusOK, PreprocessResponse{
		Status:     "success",
		SeriesID:   req.SeriesID,
		DataPoints: result.Series.Len(),
		Saved:      result.Saved,
		Metadata:   result.Series.Metadata,
	})
}

// CreateFeatures handles POST /api/v1/features.
func (h *PreprocessingHandler) CreateFeatures(c *gin.Context) {
	var req FeatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := models.NewPreprocessingConfig(models.PreprocessingConfig{
		OutlierThreshold:   models.DefaultOutlierThreshold,
		LagFeatures:        req.LagFeatures,
		RollingWindowSizes: req.RollingWindowSizes,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	matrix, err := h.service.CreateFeatures(c.Request.Context(), req.SeriesID, cfg, req.Indicators)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, FeatureResponse{
		Status:   "success",
		SeriesID: req.SeriesID,
		Features: matrix.Columns,
		Rows:     matrix.Rows(),
	})
}

// Validate handles GET /api/v1/validate/:series_id.
func (h *PreprocessingHandler) Validate(c *gin.Context) {
	seriesID := c.Param("series_id")

	if h.reports != nil {
		if report, ok := h.reports.Get(c.Request.Context(), seriesID); ok {
			c.JSON(http.StatusOK, report)
			return
		}
	}

	report, err := h.service.ValidateData(c.Request.Context(), seriesID)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	if h.reports != nil {
		h.reports.Set(c.Request.Context(), seriesID, report)
	}
	c.JSON(http.StatusOK, report)
}

// statusFromError maps the error taxonomy onto HTTP statuses.
func statusFromError(err error) int {
	switch {
	case utils.IsValidationError(err) || utils.IsInvalidColumn(err):
		return http.StatusBadRequest
	case utils.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
