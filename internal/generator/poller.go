package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/maauso/genspace-api/internal/vertex"
)

// Default poll cadence for long-running operations.
const (
	DefaultPollInterval    = 5 * time.Second
	DefaultPollMaxAttempts = 60
	// DefaultPollGrace is added to interval x maxAttempts to bound the wall
	// time of one Wait, fetch retries included.
	DefaultPollGrace = 30 * time.Second
)

// FetchFunc reads the current state of one operation.
type FetchFunc func(ctx context.Context) (vertex.Operation, error)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Poller waits for a long-running operation on a fixed cadence. It holds
// no state between calls and is safe for concurrent use.
type Poller struct {
	interval    time.Duration
	maxAttempts int
	grace       time.Duration
	sleep       SleepFunc
}

// PollerOption is a function that configures a Poller.
type PollerOption func(*Poller)

// WithSleep replaces the wait between ticks.
func WithSleep(fn SleepFunc) PollerOption {
	return func(p *Poller) {
		p.sleep = fn
	}
}

// WithGrace sets the slack allowed past interval x maxAttempts.
func WithGrace(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d >= 0 {
			p.grace = d
		}
	}
}

// NewPoller creates a poller. Non-positive values select the defaults.
func NewPoller(interval time.Duration, maxAttempts int, opts ...PollerOption) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultPollMaxAttempts
	}
	p := &Poller{
		interval:    interval,
		maxAttempts: maxAttempts,
		grace:       DefaultPollGrace,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait polls until the operation is done, fails, or the attempt budget is
// spent. Each tick waits one interval and then fetches once. onTick, when
// set, is called after every fetch.
//
// A done operation with an error yields an *OperationError with the
// server's message. Exhausting the budget yields ErrTimeout and no further
// fetch is issued. The whole wait is also bounded to interval x maxAttempts
// plus the grace period; running past it yields ErrTimeout as well.
func (p *Poller) Wait(ctx context.Context, fetch FetchFunc, onTick func()) (vertex.OperationDone, error) {
	budget := p.interval*time.Duration(p.maxAttempts) + p.grace
	waitCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := p.sleep(waitCtx, p.interval); err != nil {
			return vertex.OperationDone{}, p.interrupted(ctx, budget, err)
		}

		op, err := fetch(waitCtx)
		if onTick != nil {
			onTick()
		}
		if err != nil {
			if waitCtx.Err() != nil {
				return vertex.OperationDone{}, p.interrupted(ctx, budget, waitCtx.Err())
			}
			return vertex.OperationDone{}, err
		}

		switch o := op.(type) {
		case vertex.OperationPending:
			continue
		case vertex.OperationFailed:
			return vertex.OperationDone{}, &OperationError{Code: o.Code, Message: o.Message}
		case vertex.OperationDone:
			return o, nil
		default:
			return vertex.OperationDone{}, fmt.Errorf("%w: unexpected operation state %T", ErrMalformedResponse, op)
		}
	}

	return vertex.OperationDone{}, fmt.Errorf("%w after %d polls", ErrTimeout, p.maxAttempts)
}

// interrupted tells a caller cancellation apart from the wall-time budget
// running out.
func (p *Poller) interrupted(parent context.Context, budget time.Duration, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, parent.Err())
	}
	return fmt.Errorf("%w after %s: %w", ErrTimeout, budget, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
