package job

import (
	"context"
	"errors"
	"time"
)

// Static errors for job persistence.
var (
	// ErrJobNotFound is returned when a job cannot be found by ID.
	ErrJobNotFound = errors.New("job: not found")
	// ErrStatusConflict is returned by SaveIfStatus when the stored job is
	// no longer in the expected status.
	ErrStatusConflict = errors.New("job: status changed")
)

// Repository defines the interface for job persistence.
// It acts as a port in the hexagonal architecture pattern.
type Repository interface {
	// Save persists a job to the storage.
	// If the job already exists, it should be updated.
	Save(ctx context.Context, job *Job) error

	// SaveIfStatus updates a stored job only while its stored status still
	// equals expected. Returns ErrStatusConflict otherwise.
	SaveIfStatus(ctx context.Context, job *Job, expected Status) error

	// FindByID retrieves a job by its unique identifier.
	// Returns ErrJobNotFound if the job does not exist.
	FindByID(ctx context.Context, id string) (*Job, error)

	// List returns all jobs.
	List(ctx context.Context) ([]*Job, error)

	// Delete removes a job from storage.
	// Returns ErrJobNotFound if the job does not exist.
	Delete(ctx context.Context, id string) error

	// PruneFinished removes terminal jobs that completed before the given
	// time and returns how many were removed.
	PruneFinished(ctx context.Context, before time.Time) (int, error)
}
