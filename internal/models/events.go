package models

import "time"

// Event type identifiers published on the bus.
const (
	EventTypePreprocessingCompleted = "preprocessing.completed"
	EventTypeProcessingFailed       = "processing.failed"
)

// IngestionCompletedEvent is the inbound trigger payload consumed from the
// ingestion topic. PreprocessingConfig is optional; fields it leaves unset
// fall back to the service defaults.
type IngestionCompletedEvent struct {
	SeriesID            string                 `json:"series_id"`
	JobID               string                 `json:"job_id"`
	PreprocessingConfig *PreprocessingOverride `json:"preprocessing_config,omitempty"`
}

// PreprocessingCompletedEvent is published after a successful pipeline run.
type PreprocessingCompletedEvent struct {
	EventType       string                 `json:"event_type"`
	Timestamp       time.Time              `json:"timestamp"`
	SeriesID        string                 `json:"series_id"`
	JobID           string                 `json:"job_id"`
	DataPoints      int                    `json:"data_points"`
	FeaturesCreated []string               `json:"features_created"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// ProcessingFailedEvent is published when a pipeline run or its trigger
// validation fails.
type ProcessingFailedEvent struct {
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	SeriesID  string    `json:"series_id"`
	JobID     string    `json:"job_id"`
	Stage     string    `json:"stage"`
	Error     string    `json:"error"`
}
