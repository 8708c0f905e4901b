// Package history keeps the generation history shown to users: one record
// per successful, persistable generation.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/maauso/genspace-api/internal/generator"
)

// Static errors for history operations.
var (
	// ErrRecordNotFound is returned when a record does not exist for the owner.
	ErrRecordNotFound = errors.New("history: record not found")
	// ErrNotPersistable is returned when a result must not be written to history.
	ErrNotPersistable = errors.New("history: result is not persistable")
)

// Settings are the generation parameters echoed back in the history view.
type Settings struct {
	AspectRatio     string `json:"aspectRatio,omitempty"`
	SampleSize      string `json:"sampleSize,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	WithAudio       bool   `json:"withAudio,omitempty"`
}

// Record is one history entry.
type Record struct {
	ID                  string             `json:"id"`
	OwnerID             string             `json:"ownerId"`
	Modality            generator.Modality `json:"type"`
	ModelID             string             `json:"modelId"`
	Prompt              string             `json:"prompt"`
	AssetURL            string             `json:"url"`
	IsDurable           bool               `json:"isDurable"`
	CreatedAt           time.Time          `json:"createdAt"`
	Settings            Settings           `json:"settings"`
	ReferenceImageCount int                `json:"referenceImageCount"`
}

// NewRecord builds the record for a finished generation. It returns
// ErrNotPersistable unless res passed the persistence gate.
func NewRecord(req generator.Request, res generator.Result, referenceImageCount int, now time.Time) (Record, error) {
	if !res.Success || !res.ShouldPersistHistory {
		return Record{}, ErrNotPersistable
	}

	settings := Settings{AspectRatio: req.AspectRatio}
	switch req.Modality {
	case generator.ModalityImage:
		settings.SampleSize = string(req.SampleSize)
	case generator.ModalityVideo:
		settings.DurationSeconds = req.DurationSeconds
		settings.WithAudio = req.WithAudio
	}

	return Record{
		ID:                  uuid.NewString(),
		OwnerID:             req.Owner(),
		Modality:            req.Modality,
		ModelID:             req.ModelID,
		Prompt:              req.Prompt,
		AssetURL:            res.AssetURL,
		IsDurable:           res.IsDurable,
		CreatedAt:           now.UTC(),
		Settings:            settings,
		ReferenceImageCount: referenceImageCount,
	}, nil
}

// Filter narrows a listing.
type Filter struct {
	// Modality keeps only records of that kind; empty means all.
	Modality generator.Modality
	// Limit caps the number of records; zero means no limit.
	Limit int
}

// Repository is the history persistence port.
type Repository interface {
	// Add stores a record.
	Add(ctx context.Context, rec Record) error

	// ListByOwner returns the owner's records, newest first.
	ListByOwner(ctx context.Context, ownerID string, f Filter) ([]Record, error)

	// Delete removes one of the owner's records.
	// Returns ErrRecordNotFound if the owner has no such record.
	Delete(ctx context.Context, ownerID, id string) error
}
