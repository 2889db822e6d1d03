package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// SeriesInfoProvider is the repository surface behind the series metadata
// endpoint.
type SeriesInfoProvider interface {
	GetSeriesCount(ctx context.Context, seriesID string) (int64, error)
	GetDateRange(ctx context.Context, seriesID string) (time.Time, time.Time, error)
	GetFeatureNames(ctx context.Context, seriesID string) ([]string, error)
}

// SeriesHandler serves stored-series metadata without loading the rows.
type SeriesHandler struct {
	repository SeriesInfoProvider
}

// NewSeriesHandler creates the series metadata handler.
func NewSeriesHandler(repository SeriesInfoProvider) *SeriesHandler {
	return &SeriesHandler{
		repository: repository,
	}
}

// SeriesInfoResponse describes a stored series.
type SeriesInfoResponse struct {
	SeriesID     string    `json:"series_id"`
	DataPoints   int64     `json:"data_points"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	FeatureNames []string  `json:"feature_names"`
}

// Info handles GET /api/v1/series/:series_id.
func (h *SeriesHandler) Info(c *gin.Context) {
	seriesID := c.Param("series_id")
	ctx := c.Request.Context()

	start, end, err := h.repository.GetDateRange(ctx, seriesID)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	count, err := h.repository.GetSeriesCount(ctx, seriesID)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	features, err := h.repository.GetFeatureNames(ctx, seriesID)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, SeriesInfoResponse{
		SeriesID:     seriesID,
		DataPoints:   count,
		Start:        start,
		End:          end,
		FeatureNames: features,
	})
}
