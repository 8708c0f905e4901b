package job

import (
	"strings"
	"sync"
	"testing"

	"github.com/maauso/genspace-api/internal/generator"
	"github.com/maauso/genspace-api/internal/job/id"
)

func imageRequest() generator.Request {
	return generator.Request{
		Prompt:   "a lighthouse at dusk",
		Modality: generator.ModalityImage,
		OwnerID:  "user-1",
		ReferenceImages: []generator.ReferenceImage{
			{Data: []byte{0x89, 'P', 'N', 'G'}, MimeType: "image/png"},
		},
	}
}

func TestNew(t *testing.T) {
	job := New(imageRequest())

	if !strings.HasPrefix(job.ID, id.Prefix) {
		t.Errorf("expected ID with prefix %q, got %q", id.Prefix, job.ID)
	}
	if job.Status != StatusInQueue {
		t.Errorf("expected status %s, got %s", StatusInQueue, job.Status)
	}
	if job.CreatedAt.IsZero() || job.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
	if job.ReferenceImageCount != 1 {
		t.Errorf("expected 1 reference image, got %d", job.ReferenceImageCount)
	}
	if job.Result != nil {
		t.Error("expected no result before dispatch")
	}
}

func TestNewWithID(t *testing.T) {
	job := NewWithID("gen-test", imageRequest())

	if job.ID != "gen-test" {
		t.Errorf("expected ID gen-test, got %s", job.ID)
	}
	if job.Request.Prompt != "a lighthouse at dusk" {
		t.Errorf("unexpected prompt %q", job.Request.Prompt)
	}
}

func TestJob_ValidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{"IN_QUEUE to RUNNING", StatusInQueue, StatusRunning, false},
		{"IN_QUEUE to CANCELLED", StatusInQueue, StatusCancelled, false},
		{"RUNNING to COMPLETED", StatusRunning, StatusCompleted, false},
		{"RUNNING to FAILED", StatusRunning, StatusFailed, false},
		{"RUNNING to CANCELLED", StatusRunning, StatusCancelled, false},
		{"RUNNING to TIMED_OUT", StatusRunning, StatusTimedOut, false},
		{"IN_QUEUE to COMPLETED", StatusInQueue, StatusCompleted, true},
		{"IN_QUEUE to TIMED_OUT", StatusInQueue, StatusTimedOut, true},
		{"COMPLETED to RUNNING", StatusCompleted, StatusRunning, true},
		{"FAILED to COMPLETED", StatusFailed, StatusCompleted, true},
		{"CANCELLED to RUNNING", StatusCancelled, StatusRunning, true},
		{"TIMED_OUT to RUNNING", StatusTimedOut, StatusRunning, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewWithID("test", imageRequest())
			job.Status = tt.from

			err := job.TransitionTo(tt.to)

			if tt.wantErr && err == nil {
				t.Errorf("expected error for transition %s -> %s", tt.from, tt.to)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for transition %s -> %s: %v", tt.from, tt.to, err)
			}
		})
	}
}

func TestJob_Start(t *testing.T) {
	job := New(imageRequest())

	if err := job.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != StatusRunning {
		t.Errorf("expected status %s, got %s", StatusRunning, job.Status)
	}
	if job.StartedAt.IsZero() {
		t.Error("expected StartedAt to be set")
	}
}

func TestJob_Finish(t *testing.T) {
	tests := []struct {
		name string
		res  generator.Result
		want Status
	}{
		{
			name: "success",
			res:  generator.Result{Success: true, AssetURL: "https://cdn.example.com/a.png"},
			want: StatusCompleted,
		},
		{
			name: "auth failure",
			res:  generator.Failure(generator.ModalityImage, generator.ErrAuthFailure, 2),
			want: StatusFailed,
		},
		{
			name: "timeout",
			res:  generator.Failure(generator.ModalityVideo, generator.ErrTimeout, 1),
			want: StatusTimedOut,
		},
		{
			name: "cancelled",
			res:  generator.Failure(generator.ModalityVideo, generator.ErrCancelled, 1),
			want: StatusCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := New(imageRequest())
			if err := job.Start(); err != nil {
				t.Fatalf("start: %v", err)
			}

			if err := job.Finish(tt.res); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if job.Status != tt.want {
				t.Errorf("expected status %s, got %s", tt.want, job.Status)
			}
			if job.Result == nil {
				t.Fatal("expected result to be recorded")
			}
			if job.Error != tt.res.ErrorMessage {
				t.Errorf("expected error %q, got %q", tt.res.ErrorMessage, job.Error)
			}
			if job.CompletedAt.IsZero() {
				t.Error("expected CompletedAt to be set")
			}
			if job.Request.ReferenceImages != nil {
				t.Error("expected reference image bytes to be released")
			}
			if job.ReferenceImageCount != 1 {
				t.Errorf("expected reference count to survive, got %d", job.ReferenceImageCount)
			}
		})
	}
}

func TestJob_Finish_RequiresRunning(t *testing.T) {
	job := New(imageRequest())

	err := job.Finish(generator.Result{Success: true})
	if err != ErrInvalidTransition {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
	if job.Result != nil {
		t.Error("expected no result on rejected finish")
	}
}

func TestJob_Cancel(t *testing.T) {
	job := New(imageRequest())

	if err := job.Cancel(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != StatusCancelled {
		t.Errorf("expected status %s, got %s", StatusCancelled, job.Status)
	}
	if job.Error != "cancelled" {
		t.Errorf("expected error 'cancelled', got %q", job.Error)
	}
	if err := job.Cancel(); err != ErrInvalidTransition {
		t.Errorf("expected ErrInvalidTransition on second cancel, got %v", err)
	}
}

func TestJob_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusInQueue, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusCancelled, true},
		{StatusTimedOut, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			job := NewWithID("test", imageRequest())
			job.Status = tt.status

			if job.IsTerminal() != tt.terminal {
				t.Errorf("expected IsTerminal() = %v for %s", tt.terminal, tt.status)
			}
		})
	}
}

func TestJob_SetHistoryID(t *testing.T) {
	job := New(imageRequest())
	before := job.UpdatedAt

	job.SetHistoryID("rec-1")

	if job.HistoryID != "rec-1" {
		t.Errorf("expected history id rec-1, got %q", job.HistoryID)
	}
	if job.UpdatedAt.Before(before) {
		t.Error("expected UpdatedAt to move forward")
	}
}

func TestJob_Clone(t *testing.T) {
	job := New(imageRequest())
	_ = job.Start()
	_ = job.Finish(generator.Result{Success: true, AssetURL: "https://cdn.example.com/a.png"})
	job.Request.ReferenceImages = []generator.ReferenceImage{{Data: []byte{1}}}

	clone := job.Clone()

	if clone.ID != job.ID || clone.Status != job.Status {
		t.Fatal("expected clone to carry the same identity and status")
	}

	clone.Result.AssetURL = "changed"
	if job.Result.AssetURL == "changed" {
		t.Error("modifying the clone's result should not affect the original")
	}

	clone.Request.ReferenceImages[0].MimeType = "image/jpeg"
	if job.Request.ReferenceImages[0].MimeType == "image/jpeg" {
		t.Error("modifying the clone's reference images should not affect the original")
	}
}

func TestJob_GetStatus_ThreadSafe(t *testing.T) {
	job := New(imageRequest())
	_ = job.Start()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = job.GetStatus()
		}()
		go func() {
			defer wg.Done()
			_ = job.Clone()
		}()
	}
	wg.Wait()
}
