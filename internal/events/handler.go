package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/quantprep/preprocessing-go/internal/models"
	"github.com/quantprep/preprocessing-go/internal/services"
)

// Preprocessor is the slice of the orchestrator the event path needs.
type Preprocessor interface {
	Preprocess(ctx context.Context, seriesID string, cfg models.PreprocessingConfig) (*services.PreprocessResult, error)
	CreateFeatures(ctx context.Context, seriesID string, cfg models.PreprocessingConfig, withIndicators bool) (*models.FeatureMatrix, error)
}

// IngestionHandler turns ingestion-completed events into pipeline runs. Every
// failure is converted into a failure event; Handle never propagates an
// error, so one bad message cannot halt consumption.
type IngestionHandler struct {
	service   Preprocessor
	publisher EventPublisher
	defaults  models.PreprocessingConfig
	logger    *slog.Logger
}

// NewIngestionHandler wires the handler with the orchestrator, the outbound
// publisher and the configured pipeline defaults.
func NewIngestionHandler(service Preprocessor, publisher EventPublisher, defaults models.PreprocessingConfig, logger *slog.Logger) *IngestionHandler {
	return &IngestionHandler{
		service:   service,
		publisher: publisher,
		defaults:  defaults,
		logger:    logger,
	}
}

// Handle processes one raw message from the ingestion topic.
func (h *IngestionHandler) Handle(ctx context.Context, payload []byte) {
	var event models.IngestionCompletedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		// Without series and job identifiers there is no failure event to
		// address; log and move on.
		h.logger.Error("failed to decode ingestion event", "error", err)
		return
	}

	log := h.logger.With("series_id", event.SeriesID, "job_id", event.JobID)

	if event.SeriesID == "" || event.JobID == "" {
		log.Error("ingestion event missing required fields")
		h.publishFailure(ctx, event, "validation", "missing required fields: series_id or job_id")
		return
	}

	cfg, err := h.buildConfig(event.PreprocessingConfig)
	if err != nil {
		log.Error("invalid preprocessing config on event", "error", err)
		h.publishFailure(ctx, event, "validation", err.Error())
		return
	}

	result, err := h.service.Preprocess(ctx, event.SeriesID, cfg)
	if err != nil {
		log.Error("preprocessing failed", "error", err)
		h.publishFailure(ctx, event, "preprocessing", err.Error())
		return
	}

	matrix, err := h.service.CreateFeatures(ctx, event.SeriesID, cfg, false)
	if err != nil {
		log.Error("feature creation failed", "error", err)
		h.publishFailure(ctx, event, "feature_engineering", err.Error())
		return
	}

	completed := models.PreprocessingCompletedEvent{
		SeriesID:        event.SeriesID,
		JobID:           event.JobID,
		DataPoints:      result.Series.Len(),
		FeaturesCreated: matrix.Columns,
		Metadata:        result.Series.Metadata,
	}
	if err := h.publisher.PublishPreprocessingCompleted(ctx, completed); err != nil {
		log.Error("failed to publish completion event", "error", err)
		return
	}
	log.Info("ingestion event processed", "data_points", result.Series.Len())
}

// buildConfig overlays the event's config onto the service defaults and
// validates the result. The override keeps a pointer threshold, so an
// explicit zero on the wire fails validation instead of falling back to the
// default.
func (h *IngestionHandler) buildConfig(override *models.PreprocessingOverride) (models.PreprocessingConfig, error) {
	return override.ApplyTo(h.defaults)
}

func (h *IngestionHandler) publishFailure(ctx context.Context, event models.IngestionCompletedEvent, stage, message string) {
	failed := models.ProcessingFailedEvent{
		SeriesID: event.SeriesID,
		JobID:    event.JobID,
		Stage:    stage,
		Error:    message,
	}
	if err := h.publisher.PublishProcessingFailed(ctx, failed); err != nil {
		h.logger.Error("failed to publish failure event",
			"series_id", event.SeriesID,
			"job_id", event.JobID,
			"error", err)
	}
}
