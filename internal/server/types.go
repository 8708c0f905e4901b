// Package server provides the HTTP server for the generation API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// CreateGenerationRequest is the HTTP request body for starting a generation.
type CreateGenerationRequest struct {
	// Prompt is the text description of the asset.
	Prompt string `json:"prompt" validate:"required,max=4000"`
	// Type is the generation modality: image or video.
	Type string `json:"type" validate:"required,oneof=image video"`
	// ModelID selects the model; empty picks the configured default.
	ModelID string `json:"model_id,omitempty" validate:"omitempty,max=128"`
	// AspectRatio such as 1:1 or 16:9.
	AspectRatio string `json:"aspect_ratio,omitempty" validate:"omitempty,max=8"`
	// OwnerID partitions history and stored assets.
	OwnerID string `json:"owner_id,omitempty" validate:"omitempty,max=128,excludesall=/"`
	// SampleSize is the image size class (1K, 2K, 4K).
	SampleSize string `json:"sample_size,omitempty" validate:"omitempty,oneof=1K 2K 4K"`
	// ReferenceImages are data URLs or plain base64. Only the first one is
	// sent to the model.
	ReferenceImages []string `json:"reference_images,omitempty" validate:"max=4,dive,required"`
	// DurationSeconds is the video length (4, 6 or 8).
	DurationSeconds int `json:"duration_seconds,omitempty" validate:"omitempty,oneof=4 6 8"`
	// WithAudio asks for a soundtrack. Defaults to true.
	WithAudio *bool `json:"with_audio,omitempty"`
}

// CreateGenerationResponse is the HTTP response after submitting a generation.
type CreateGenerationResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// ResultResponse is the normalized outcome of a generation.
type ResultResponse struct {
	Success              bool   `json:"success"`
	AssetURL             string `json:"asset_url"`
	MimeType             string `json:"mime_type,omitempty"`
	IsDurable            bool   `json:"is_durable"`
	ShouldPersistHistory bool   `json:"should_persist_history"`
	ErrorMessage         string `json:"error_message,omitempty"`
	ErrorKind            string `json:"error_kind,omitempty"`
	Attempts             int    `json:"attempts"`
}

// GenerationResponse is the HTTP response for getting generation details.
type GenerationResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Type is the generation modality.
	Type string `json:"type"`
	// ModelID is the model the generation runs on.
	ModelID string `json:"model_id"`
	// Prompt is the submitted prompt.
	Prompt string `json:"prompt"`
	// Error contains the error message if the job did not complete.
	Error string `json:"error,omitempty"`
	// Result is set once the job has finished.
	Result *ResultResponse `json:"result,omitempty"`
	// HistoryID is the history record written for this generation.
	HistoryID string `json:"history_id,omitempty"`
	// CreatedAt is when the job was submitted.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the job finished.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// HistorySettings echoes the generation parameters of a record.
type HistorySettings struct {
	AspectRatio     string `json:"aspect_ratio,omitempty"`
	SampleSize      string `json:"sample_size,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	WithAudio       bool   `json:"with_audio,omitempty"`
}

// HistoryRecordResponse is one history entry.
type HistoryRecordResponse struct {
	ID                  string          `json:"id"`
	OwnerID             string          `json:"owner_id"`
	Type                string          `json:"type"`
	ModelID             string          `json:"model_id"`
	Prompt              string          `json:"prompt"`
	URL                 string          `json:"url"`
	IsDurable           bool            `json:"is_durable"`
	CreatedAt           time.Time       `json:"created_at"`
	Settings            HistorySettings `json:"settings"`
	ReferenceImageCount int             `json:"reference_image_count"`
}

// HistoryListResponse is the HTTP response for listing history.
type HistoryListResponse struct {
	Records []HistoryRecordResponse `json:"records"`
	Count   int                     `json:"count"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
