package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maauso/genspace-api/internal/credential"
	"github.com/maauso/genspace-api/internal/vertex"
)

// RetryPolicy decides which send failures rotate to the next credential.
type RetryPolicy string

// Supported retry policies.
const (
	// RetryAny rotates on every send failure.
	RetryAny RetryPolicy = "any"
	// RetryQuota rotates only on 429 and quota 403 responses.
	RetryQuota RetryPolicy = "quota"
)

// Policy groups the rotation decisions of a Dispatcher.
type Policy struct {
	Retry RetryPolicy
	// RotateOnMalformed rotates when a 2xx response carries no asset.
	// Otherwise the call ends there.
	RotateOnMalformed bool
	// RestartFailedOperations submits a fresh operation on the next
	// credential when one reports done with an error.
	RestartFailedOperations bool
}

// Attempt outcomes reported to an Observer.
const (
	OutcomeSuccess = "success"
	OutcomeRotate  = "rotate"
	OutcomeAbort   = "abort"
)

// Observer receives dispatch instrumentation.
type Observer interface {
	ObserveAttempt(m Modality, outcome string)
	ObservePollTick(m Modality)
	ObserveResult(res Result, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(Modality, string)     {}
func (nopObserver) ObservePollTick(Modality)            {}
func (nopObserver) ObserveResult(Result, time.Duration) {}

type attemptKind int

const (
	attemptSuccess attemptKind = iota
	attemptRotate
	attemptAbort
)

func (k attemptKind) String() string {
	switch k {
	case attemptSuccess:
		return OutcomeSuccess
	case attemptRotate:
		return OutcomeRotate
	default:
		return OutcomeAbort
	}
}

// attemptResult is what a single credential produced.
type attemptResult struct {
	kind  attemptKind
	asset Asset
	err   error
}

func succeeded(a Asset) attemptResult { return attemptResult{kind: attemptSuccess, asset: a} }
func rotate(err error) attemptResult  { return attemptResult{kind: attemptRotate, err: err} }
func abort(err error) attemptResult   { return attemptResult{kind: attemptAbort, err: err} }

// Dispatcher runs one generation across the credential pool. Credentials
// are tried one at a time in a fresh random order; each is tried at most
// once per call.
type Dispatcher struct {
	pool       *credential.Pool
	broker     credential.Broker
	api        vertex.API
	builder    *PayloadBuilder
	poller     *Poller
	normalizer *Normalizer
	defaults   Defaults
	policy     Policy
	observer   Observer
	logger     *slog.Logger
}

// DispatcherOption is a function that configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPolicy sets the rotation policy.
func WithPolicy(p Policy) DispatcherOption {
	return func(d *Dispatcher) {
		if p.Retry == "" {
			p.Retry = RetryAny
		}
		d.policy = p
	}
}

// WithPoller sets the long-running operation poller.
func WithPoller(p *Poller) DispatcherOption {
	return func(d *Dispatcher) {
		d.poller = p
	}
}

// WithPayloadBuilder sets the request builder.
func WithPayloadBuilder(b *PayloadBuilder) DispatcherOption {
	return func(d *Dispatcher) {
		d.builder = b
	}
}

// WithNormalizer sets the result normalizer.
func WithNormalizer(n *Normalizer) DispatcherOption {
	return func(d *Dispatcher) {
		d.normalizer = n
	}
}

// WithDefaults sets the default models.
func WithDefaults(def Defaults) DispatcherOption {
	return func(d *Dispatcher) {
		d.defaults = def
	}
}

// WithObserver sets the instrumentation hook.
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) {
		if o != nil {
			d.observer = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates a Dispatcher. The pool may be empty; every
// dispatch then fails with ErrConfiguration.
func NewDispatcher(pool *credential.Pool, broker credential.Broker, api vertex.API, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		pool:     pool,
		broker:   broker,
		api:      api,
		builder:  NewPayloadBuilder(""),
		poller:   NewPoller(DefaultPollInterval, DefaultPollMaxAttempts),
		policy:   Policy{Retry: RetryAny},
		observer: nopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.normalizer == nil {
		d.normalizer = NewNormalizer(nil, d.logger)
	}
	return d
}

// Dispatch generates one asset. It always returns a Result; failures carry
// the last observed error and the modality's fallback asset.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Result {
	start := time.Now()
	res := d.dispatch(ctx, req)
	d.observer.ObserveResult(res, time.Since(start))
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) Result {
	req = req.WithDefaults(d.defaults)
	if err := req.Validate(); err != nil {
		return Failure(req.Modality, err, 0)
	}

	if d.pool.Len() == 0 {
		d.logger.Error("dispatch without credentials", slog.String("modality", string(req.Modality)))
		return Failure(req.Modality, ErrConfiguration, 0)
	}

	order := d.pool.ShuffledOrder()
	var lastErr error

	for i, cred := range order {
		if err := ctx.Err(); err != nil {
			return Failure(req.Modality, fmt.Errorf("%w: %w", ErrCancelled, err), i)
		}

		logger := d.logger.With(
			slog.String("modality", string(req.Modality)),
			slog.String("model", req.ModelID),
			slog.String("credential", cred.ID()),
			slog.Int("attempt", i+1),
			slog.Int("credentials", len(order)),
		)

		out := d.attempt(ctx, req, cred, logger)
		d.observer.ObserveAttempt(req.Modality, out.kind.String())

		switch out.kind {
		case attemptSuccess:
			logger.Info("generation succeeded")
			res := d.normalizer.Normalize(ctx, req, out.asset)
			res.Attempts = i + 1
			return res

		case attemptAbort:
			logger.Error("generation failed", slog.String("error", out.err.Error()))
			return Failure(req.Modality, out.err, i+1)

		case attemptRotate:
			lastErr = out.err
			logger.Warn("attempt failed, trying next credential", slog.String("error", out.err.Error()))
		}
	}

	d.logger.Error("all credentials exhausted",
		slog.String("modality", string(req.Modality)),
		slog.Int("credentials", len(order)),
		slog.String("error", lastErr.Error()),
	)
	return Failure(req.Modality, lastErr, len(order))
}

// attempt runs the whole call with a single credential.
func (d *Dispatcher) attempt(ctx context.Context, req Request, cred credential.Credential, logger *slog.Logger) attemptResult {
	token, err := d.broker.Mint(ctx, cred)
	if err != nil {
		if ctx.Err() != nil {
			return abort(fmt.Errorf("%w: %w", ErrCancelled, ctx.Err()))
		}
		return rotate(fmt.Errorf("%w: %w", ErrAuthFailure, err))
	}

	call, err := d.builder.Build(req, cred.ProjectID)
	if err != nil {
		return abort(err)
	}

	if !call.LongRunning {
		resp, err := d.api.Predict(ctx, call.Target, token.Value, call.Body)
		if err != nil {
			return d.callFailure(ctx, err)
		}
		asset, err := extractPrediction(resp)
		if err != nil {
			return d.malformed(err)
		}
		return succeeded(asset)
	}

	opName, err := d.api.PredictLongRunning(ctx, call.Target, token.Value, call.Body)
	if err != nil {
		return d.callFailure(ctx, err)
	}
	logger.Info("operation started", slog.String("operation", opName))

	done, err := d.poller.Wait(ctx, func(ctx context.Context) (vertex.Operation, error) {
		return d.api.FetchOperation(ctx, call.Target, token.Value, opName)
	}, func() {
		d.observer.ObservePollTick(req.Modality)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrCancelled), errors.Is(err, ErrTimeout):
			return abort(err)
		case errors.Is(err, ErrOperationFailed):
			if d.policy.RestartFailedOperations {
				return rotate(err)
			}
			return abort(err)
		case errors.Is(err, ErrMalformedResponse):
			return d.malformed(err)
		default:
			return d.callFailure(ctx, err)
		}
	}

	asset, err := extractVideo(done)
	if err != nil {
		return d.malformed(err)
	}
	return succeeded(asset)
}

// callFailure routes a provider error: a 2xx body that could not be read
// is a malformed response, anything else a send failure.
func (d *Dispatcher) callFailure(ctx context.Context, err error) attemptResult {
	if errors.Is(err, vertex.ErrDecodeResponse) || errors.Is(err, vertex.ErrNoOperationName) {
		return d.malformed(fmt.Errorf("%w: %w", ErrMalformedResponse, err))
	}
	return d.sendFailure(ctx, err)
}

// sendFailure classifies a failed provider call according to the retry
// policy.
func (d *Dispatcher) sendFailure(ctx context.Context, err error) attemptResult {
	if ctx.Err() != nil {
		return abort(fmt.Errorf("%w: %w", ErrCancelled, ctx.Err()))
	}

	wrapped := fmt.Errorf("%w: %w", ErrTransientCall, err)
	if d.policy.Retry == RetryQuota && !vertex.IsQuotaError(err) {
		return abort(wrapped)
	}
	return rotate(wrapped)
}

func (d *Dispatcher) malformed(err error) attemptResult {
	if d.policy.RotateOnMalformed {
		return rotate(err)
	}
	return abort(err)
}
