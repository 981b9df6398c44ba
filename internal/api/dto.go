package api

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nathanbogale/CrediSynth/internal/ai"
	"github.com/nathanbogale/CrediSynth/internal/store"
)

// ErrorBody is the failure description inside an error response.
type ErrorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// ErrorResponse is returned for every failed analysis.
type ErrorResponse struct {
	Error         ErrorBody `json:"error"`
	AnalysisID    string    `json:"analysis_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// AnalysisRecordDTO is the API representation of a stored analysis.
type AnalysisRecordDTO struct {
	AnalysisID    string          `json:"analysis_id"`
	CorrelationID string          `json:"correlation_id"`
	Shape         string          `json:"shape,omitempty"`
	Status        string          `json:"status"`
	Error         string          `json:"error,omitempty"`
	Response      json.RawMessage `json:"response,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// AnalysisRecordFromModel converts the audit row into its DTO.
func AnalysisRecordFromModel(rec store.AnalysisRecord) AnalysisRecordDTO {
	dto := AnalysisRecordDTO{
		AnalysisID:    rec.ID,
		CorrelationID: rec.CorrelationID,
		Shape:         rec.Shape,
		Status:        rec.Status,
		Error:         rec.Error,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
		CompletedAt:   rec.CompletedAt,
	}
	if body := strings.TrimSpace(rec.ResponseJSON); body != "" && json.Valid([]byte(body)) {
		dto.Response = json.RawMessage(body)
	}
	return dto
}

// JobDTO describes an asynchronous analysis.
type JobDTO struct {
	JobID         string     `json:"job_id"`
	AnalysisID    string     `json:"analysis_id"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	Status        string     `json:"status"`
	Outcome       string     `json:"outcome,omitempty"`
	Error         *ErrorBody `json:"error,omitempty"`
	QueuedAt      time.Time  `json:"queued_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// HealthResponse reports liveness with degrade-aware details.
type HealthResponse struct {
	Status  string        `json:"status"`
	Version string        `json:"version"`
	Details HealthDetails `json:"details"`
}

// HealthDetails lists the optional collaborators and their state.
type HealthDetails struct {
	DB         string           `json:"db"`
	Generation string           `json:"generation"`
	Breaker    string           `json:"breaker,omitempty"`
	Audit      map[string]int64 `json:"audit,omitempty"`
	Streams    int              `json:"stream_clients"`
	LastEvent  *AnalysisEvent   `json:"last_event,omitempty"`
}

// ModelsResponse describes the active generation model.
type ModelsResponse struct {
	ActiveModel       string              `json:"active_model"`
	GenerationEnabled bool                `json:"generation_enabled"`
	Health            string              `json:"health"`
	Breaker           *ai.BreakerSnapshot `json:"breaker,omitempty"`
}
