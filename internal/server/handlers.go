package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/genspace-api/internal/generator"
	"github.com/maauso/genspace-api/internal/history"
	"github.com/maauso/genspace-api/internal/job"
	"github.com/maauso/genspace-api/internal/media"
)

// maxBodyBytes bounds request bodies; reference images arrive inline.
const maxBodyBytes = 32 << 20

// JobService is the job use case the handlers drive.
type JobService interface {
	Submit(ctx context.Context, req generator.Request) (*job.Job, error)
	Run(ctx context.Context, req generator.Request) (*job.Job, error)
	Get(ctx context.Context, id string) (*job.Job, error)
	Cancel(ctx context.Context, id string) (*job.Job, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	jobs      JobService
	history   history.Repository
	images    media.Processor
	validator *validator.Validate
	logger    *slog.Logger
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithImageProcessor sets the reference image normalizer.
func WithImageProcessor(p media.Processor) HandlerOption {
	return func(h *Handlers) {
		h.images = p
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(jobs JobService, hist history.Repository, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		jobs:      jobs,
		history:   hist,
		validator: validator.New(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.images == nil {
		p, _ := media.NewImageProcessor(media.DefaultMaxDimension)
		h.images = p
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateGeneration handles POST /generations requests. The generation
// runs in the background; the response carries the job to poll.
func (h *Handlers) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeGeneration(w, r)
	if !ok {
		return
	}

	created, err := h.jobs.Submit(r.Context(), req)
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}

	h.logger.Info("generation submitted",
		slog.String("job_id", created.ID),
		slog.String("type", string(req.Modality)),
		slog.String("request_id", RequestIDFromContext(r.Context())),
	)

	writeJSON(w, http.StatusAccepted, CreateGenerationResponse{
		ID:     created.ID,
		Status: string(created.Status),
	})
}

// CreateGenerationSync handles POST /generations/sync requests. It blocks
// until the generation finishes; a client disconnect cancels it.
func (h *Handlers) CreateGenerationSync(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeGeneration(w, r)
	if !ok {
		return
	}

	finished, err := h.jobs.Run(r.Context(), req)
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toGenerationResponse(finished))
}

// GetGeneration handles GET /generations/{id} requests.
func (h *Handlers) GetGeneration(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	found, err := h.jobs.Get(r.Context(), jobID)
	if err != nil {
		h.writeJobError(w, jobID, err, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, toGenerationResponse(found))
}

// CancelGeneration handles DELETE /generations/{id} requests.
func (h *Handlers) CancelGeneration(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	cancelled, err := h.jobs.Cancel(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobFinished) {
			writeError(w, http.StatusConflict, "job already finished", "JOB_FINISHED")
			return
		}
		h.writeJobError(w, jobID, err, "failed to cancel job", "JOB_CANCEL_FAILED")
		return
	}

	h.logger.Info("generation cancel requested", slog.String("job_id", jobID))
	writeJSON(w, http.StatusAccepted, toGenerationResponse(cancelled))
}

// ListHistory handles GET /history requests.
func (h *Handlers) ListHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	ownerID := q.Get("owner_id")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required", "MISSING_OWNER_ID")
		return
	}

	var filter history.Filter
	switch t := q.Get("type"); t {
	case "", "all":
	case string(generator.ModalityImage), string(generator.ModalityVideo):
		filter.Modality = generator.Modality(t)
	default:
		writeError(w, http.StatusBadRequest, "type must be image, video or all", "INVALID_TYPE")
		return
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer", "INVALID_LIMIT")
			return
		}
		filter.Limit = limit
	}

	records, err := h.history.ListByOwner(r.Context(), ownerID, filter)
	if err != nil {
		h.logger.Error("failed to list history",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list history", "HISTORY_FETCH_FAILED")
		return
	}

	resp := HistoryListResponse{Records: make([]HistoryRecordResponse, 0, len(records))}
	for _, rec := range records {
		resp.Records = append(resp.Records, toHistoryRecordResponse(rec))
	}
	resp.Count = len(resp.Records)

	writeJSON(w, http.StatusOK, resp)
}

// DeleteHistory handles DELETE /history/{id} requests.
func (h *Handlers) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	recordID := r.PathValue("id")
	ownerID := r.URL.Query().Get("owner_id")
	if recordID == "" || ownerID == "" {
		writeError(w, http.StatusBadRequest, "record ID and owner_id are required", "MISSING_RECORD_ID")
		return
	}

	if err := h.history.Delete(r.Context(), ownerID, recordID); err != nil {
		if errors.Is(err, history.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "history record not found", "RECORD_NOT_FOUND")
			return
		}
		h.logger.Error("failed to delete history record",
			slog.String("record_id", recordID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete history record", "HISTORY_DELETE_FAILED")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodeGeneration reads, validates and converts a generation request. It
// writes the error response itself and reports whether to continue.
func (h *Handlers) decodeGeneration(w http.ResponseWriter, r *http.Request) (generator.Request, bool) {
	var body CreateGenerationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return generator.Request{}, false
	}

	if err := h.validator.Struct(body); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return generator.Request{}, false
	}

	req, err := h.toDomain(body)
	if err != nil {
		h.logger.Warn("invalid reference image",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_REFERENCE_IMAGE")
		return generator.Request{}, false
	}
	return req, true
}

func (h *Handlers) toDomain(body CreateGenerationRequest) (generator.Request, error) {
	withAudio := true
	if body.WithAudio != nil {
		withAudio = *body.WithAudio
	}

	req := generator.Request{
		Prompt:          body.Prompt,
		Modality:        generator.Modality(body.Type),
		ModelID:         body.ModelID,
		AspectRatio:     body.AspectRatio,
		OwnerID:         body.OwnerID,
		SampleSize:      generator.SampleSize(body.SampleSize),
		DurationSeconds: body.DurationSeconds,
		WithAudio:       withAudio,
	}

	for i, encoded := range body.ReferenceImages {
		data, err := media.DecodeInput(encoded)
		if err != nil {
			return generator.Request{}, fmt.Errorf("reference image %d: %w", i, err)
		}
		img, err := h.images.NormalizeImage(data)
		if err != nil {
			return generator.Request{}, fmt.Errorf("reference image %d: %w", i, err)
		}
		req.ReferenceImages = append(req.ReferenceImages, generator.ReferenceImage{
			Data:     img.Data,
			MimeType: img.MimeType,
		})
	}
	return req, nil
}

func (h *Handlers) writeSubmitError(w http.ResponseWriter, err error) {
	if errors.Is(err, generator.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	h.logger.Error("failed to create job",
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
}

func (h *Handlers) writeJobError(w http.ResponseWriter, jobID string, err error, msg, code string) {
	if errors.Is(err, job.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
		return
	}
	h.logger.Error(msg,
		slog.String("job_id", jobID),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, msg, code)
}

func toGenerationResponse(j *job.Job) GenerationResponse {
	resp := GenerationResponse{
		ID:        j.ID,
		Status:    string(j.Status),
		Type:      string(j.Request.Modality),
		ModelID:   j.Request.ModelID,
		Prompt:    j.Request.Prompt,
		Error:     j.Error,
		HistoryID: j.HistoryID,
		CreatedAt: j.CreatedAt,
	}
	if !j.CompletedAt.IsZero() {
		completed := j.CompletedAt
		resp.CompletedAt = &completed
	}
	if res := j.Result; res != nil {
		resp.Result = &ResultResponse{
			Success:              res.Success,
			AssetURL:             res.AssetURL,
			MimeType:             res.MimeType,
			IsDurable:            res.IsDurable,
			ShouldPersistHistory: res.ShouldPersistHistory,
			ErrorMessage:         res.ErrorMessage,
			ErrorKind:            string(res.ErrorKind),
			Attempts:             res.Attempts,
		}
	}
	return resp
}

func toHistoryRecordResponse(rec history.Record) HistoryRecordResponse {
	return HistoryRecordResponse{
		ID:        rec.ID,
		OwnerID:   rec.OwnerID,
		Type:      string(rec.Modality),
		ModelID:   rec.ModelID,
		Prompt:    rec.Prompt,
		URL:       rec.AssetURL,
		IsDurable: rec.IsDurable,
		CreatedAt: rec.CreatedAt,
		Settings: HistorySettings{
			AspectRatio:     rec.Settings.AspectRatio,
			SampleSize:      rec.Settings.SampleSize,
			DurationSeconds: rec.Settings.DurationSeconds,
			WithAudio:       rec.Settings.WithAudio,
		},
		ReferenceImageCount: rec.ReferenceImageCount,
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
