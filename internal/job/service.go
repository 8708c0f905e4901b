package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maauso/genspace-api/internal/generator"
	"github.com/maauso/genspace-api/internal/history"
)

// ErrJobFinished is returned when cancelling a job that already reached a
// terminal state.
var ErrJobFinished = errors.New("job: already finished")

// Dispatcher runs a single generation to completion.
type Dispatcher interface {
	Dispatch(ctx context.Context, req generator.Request) generator.Result
}

// Service runs generation jobs. Submitted jobs execute in the background
// and outlive the request that created them; each keeps its own cancel
// func so it can be abandoned later.
type Service struct {
	repo       Repository
	dispatcher Dispatcher
	history    history.Repository
	defaults   generator.Defaults
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// ServiceOption is a function that configures a Service.
type ServiceOption func(*Service)

// WithHistory sets the repository that receives persistable results.
func WithHistory(h history.Repository) ServiceOption {
	return func(s *Service) {
		s.history = h
	}
}

// WithDefaults sets the models applied to requests that name none.
func WithDefaults(d generator.Defaults) ServiceOption {
	return func(s *Service) {
		s.defaults = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces the time source used for history records.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a job Service.
func NewService(repo Repository, dispatcher Dispatcher, opts ...ServiceOption) *Service {
	s := &Service{
		repo:       repo,
		dispatcher: dispatcher,
		logger:     slog.Default(),
		now:        time.Now,
		cancels:    make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates req, stores a queued job and starts the dispatch in the
// background. The returned job is a snapshot taken before it starts.
func (s *Service) Submit(ctx context.Context, req generator.Request) (*Job, error) {
	job, err := s.create(ctx, req)
	if err != nil {
		return nil, err
	}
	snapshot := job.Clone()

	// The job must survive the HTTP request that submitted it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.track(job.ID, cancel)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(runCtx, job)
	}()

	return snapshot, nil
}

// Run validates req and executes it on the caller's goroutine. Cancelling
// ctx abandons the generation.
func (s *Service) Run(ctx context.Context, req generator.Request) (*Job, error) {
	job, err := s.create(ctx, req)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.track(job.ID, cancel)

	s.execute(runCtx, job)
	return job.Clone(), nil
}

// Get returns a snapshot of the job.
func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// Cancel abandons a queued or running job. A running job settles in the
// CANCELLED state once its dispatch returns.
func (s *Service) Cancel(ctx context.Context, id string) (*Job, error) {
	// execute saves the final state before it untracks the job, so a job
	// that is not tracked here is read in its settled state.
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.IsTerminal() {
		return job, ErrJobFinished
	}

	if cancel, ok := s.cancels[id]; ok {
		s.logger.Info("cancelling job", slog.String("job_id", id))
		cancel()
		return job, nil
	}

	expected := job.GetStatus()
	if err := job.Cancel(); err != nil {
		return job, fmt.Errorf("cancel job %s: %w", id, err)
	}
	if err := s.repo.SaveIfStatus(ctx, job, expected); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return s.settled(ctx, id)
		}
		return nil, err
	}
	return job, nil
}

// settled returns the stored job after a lost cancel race.
func (s *Service) settled(ctx context.Context, id string) (*Job, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return job, ErrJobFinished
}

// Shutdown waits for background jobs to finish. When ctx expires first the
// remaining jobs are cancelled and ctx's error is returned.
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()

	<-done
	return ctx.Err()
}

// RunJanitor removes finished jobs older than retention every interval
// until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.repo.PruneFinished(ctx, s.now().Add(-retention))
			if err != nil {
				s.logger.Warn("failed to prune jobs", slog.String("error", err.Error()))
				continue
			}
			if removed > 0 {
				s.logger.Debug("pruned finished jobs", slog.Int("count", removed))
			}
		}
	}
}

func (s *Service) create(ctx context.Context, req generator.Request) (*Job, error) {
	req = req.WithDefaults(s.defaults)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	job := New(req)
	s.logger.Info("creating job",
		slog.String("job_id", job.ID),
		slog.String("modality", string(req.Modality)),
		slog.String("model", req.ModelID),
		slog.Int("reference_images", len(req.ReferenceImages)),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return job, nil
}

func (s *Service) track(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancels[id] = cancel
	s.mu.Unlock()
}

func (s *Service) untrack(id string) {
	s.mu.Lock()
	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
	s.mu.Unlock()
}

// execute drives job from IN_QUEUE to a terminal state.
func (s *Service) execute(ctx context.Context, job *Job) {
	defer s.untrack(job.ID)

	logger := s.logger.With(slog.String("job_id", job.ID))

	if ctx.Err() != nil {
		if err := job.Cancel(); err == nil {
			s.save(ctx, job, logger)
		}
		logger.Info("job cancelled before start")
		return
	}

	if err := job.Start(); err != nil {
		logger.Error("failed to start job", slog.String("error", err.Error()))
		return
	}
	s.save(ctx, job, logger)

	res := s.dispatcher.Dispatch(ctx, job.Request)

	// The request is read before Finish releases the reference image bytes.
	req := job.Request
	if err := job.Finish(res); err != nil {
		logger.Error("failed to finish job", slog.String("error", err.Error()))
		return
	}

	if res.ShouldPersistHistory {
		s.recordHistory(ctx, job, req, res, logger)
	}
	s.save(ctx, job, logger)

	logger.Info("job finished",
		slog.String("status", string(job.GetStatus())),
		slog.Bool("success", res.Success),
		slog.Int("attempts", res.Attempts),
	)
}

func (s *Service) recordHistory(ctx context.Context, job *Job, req generator.Request, res generator.Result, logger *slog.Logger) {
	if s.history == nil {
		return
	}

	rec, err := history.NewRecord(req, res, job.ReferenceImageCount, s.now())
	if err != nil {
		logger.Warn("result not recorded", slog.String("error", err.Error()))
		return
	}
	// Writes happen even when the job was cancelled after the asset was made.
	if err := s.history.Add(context.WithoutCancel(ctx), rec); err != nil {
		logger.Error("failed to write history", slog.String("error", err.Error()))
		return
	}
	job.SetHistoryID(rec.ID)
}

func (s *Service) save(ctx context.Context, job *Job, logger *slog.Logger) {
	if err := s.repo.Save(context.WithoutCancel(ctx), job); err != nil {
		logger.Error("failed to save job", slog.String("error", err.Error()))
	}
}
