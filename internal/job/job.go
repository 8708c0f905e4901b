// Package job runs generations as background jobs. A Job tracks one
// dispatch from submission to its terminal state and keeps the normalized
// result for later retrieval.
package job

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/maauso/genspace-api/internal/generator"
	"github.com/maauso/genspace-api/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job was accepted and has not started yet.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the dispatch is in flight.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the generation produced an asset.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the generation failed.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the caller abandoned the job.
	StatusCancelled Status = "CANCELLED"
	// StatusTimedOut indicates the long-running operation exceeded its poll budget.
	StatusTimedOut Status = "TIMED_OUT"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("job: invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
	StatusTimedOut:  {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// Job is a generation job aggregate.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Request is the generation input. Reference image bytes are released
	// once the dispatch has finished.
	Request generator.Request
	// ReferenceImageCount is the number of reference images submitted.
	ReferenceImageCount int
	// Result is set once the job reaches a terminal state through a dispatch.
	Result *generator.Result
	// Error contains the error message if the job did not complete.
	Error string
	// HistoryID is the history record written for this job, if any.
	HistoryID string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when the dispatch started.
	StartedAt time.Time
	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New(req generator.Request) *Job {
	return NewWithID(id.Generate(), req)
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string, req generator.Request) *Job {
	now := time.Now()
	return &Job{
		ID:                  jobID,
		Status:              StatusInQueue,
		Request:             req,
		ReferenceImageCount: len(req.ReferenceImages),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	// Set timestamps based on state
	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Finish records the dispatch result and moves the job to the terminal
// state matching it: COMPLETED on success, CANCELLED or TIMED_OUT for those
// error kinds, FAILED otherwise.
func (j *Job) Finish(res generator.Result) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	target := StatusCompleted
	if !res.Success {
		switch res.ErrorKind {
		case generator.KindCancelled:
			target = StatusCancelled
		case generator.KindTimeout:
			target = StatusTimedOut
		default:
			target = StatusFailed
		}
	}

	if err := j.transitionLocked(target); err != nil {
		return err
	}

	j.Result = &res
	j.Error = res.ErrorMessage
	j.Request.ReferenceImages = nil
	return nil
}

// Cancel transitions the job to CANCELLED state without a result.
func (j *Job) Cancel() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusCancelled); err != nil {
		return err
	}
	j.Error = "cancelled"
	j.Request.ReferenceImages = nil
	return nil
}

// SetHistoryID links the job to its history record.
func (j *Job) SetHistoryID(historyID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.HistoryID = historyID
	j.UpdatedAt = time.Now()
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(validTransitions[j.Status]) == 0
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	req := j.Request
	req.ReferenceImages = slices.Clone(j.Request.ReferenceImages)

	var res *generator.Result
	if j.Result != nil {
		r := *j.Result
		res = &r
	}

	return &Job{
		ID:                  j.ID,
		Status:              j.Status,
		Request:             req,
		ReferenceImageCount: j.ReferenceImageCount,
		Result:              res,
		Error:               j.Error,
		HistoryID:           j.HistoryID,
		CreatedAt:           j.CreatedAt,
		UpdatedAt:           j.UpdatedAt,
		StartedAt:           j.StartedAt,
		CompletedAt:         j.CompletedAt,
	}
}
