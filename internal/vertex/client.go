package vertex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Static errors for Vertex client operations.
var (
	// ErrLocationRequired is returned when no location is provided.
	ErrLocationRequired = errors.New("vertex: location is required")
	// ErrTokenRequired is returned when a call is attempted without a bearer token.
	ErrTokenRequired = errors.New("vertex: access token is required")
	// ErrOperationNameRequired is returned when fetching an operation without a name.
	ErrOperationNameRequired = errors.New("vertex: operation name is required")
	// ErrNoOperationName is returned when predictLongRunning returns no operation name.
	ErrNoOperationName = errors.New("vertex: predictLongRunning returned no operation name")
	// ErrTransport is returned when the request could not be completed.
	ErrTransport = errors.New("vertex: transport error")
	// ErrDecodeResponse is returned when a 2xx body cannot be decoded.
	ErrDecodeResponse = errors.New("vertex: decode response")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("vertex: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("vertex: rate limited")
	// ErrQuotaExceeded is returned for a 403 whose message mentions quota.
	ErrQuotaExceeded = errors.New("vertex: quota exceeded")
	// ErrRequestFailed is returned when the request fails with any other non-2xx status code.
	ErrRequestFailed = errors.New("vertex: request failed")
)

// maxErrorBody bounds how much of an error body ends up in error messages.
const maxErrorBody = 512

// API is the set of Vertex calls the dispatcher needs.
type API interface {
	// Predict issues a synchronous prediction.
	Predict(ctx context.Context, target Target, token string, req PredictRequest) (PredictResponse, error)

	// PredictLongRunning submits an asynchronous prediction and returns the operation name.
	PredictLongRunning(ctx context.Context, target Target, token string, req PredictRequest) (string, error)

	// FetchOperation reads the current state of a long-running operation.
	FetchOperation(ctx context.Context, target Target, token, operationName string) (Operation, error)
}

// StatusError describes a non-2xx response. It unwraps to one of
// ErrServerError, ErrRateLimited, ErrQuotaExceeded or ErrRequestFailed.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s (status %d): %s", e.Unwrap().Error(), e.StatusCode, e.Message)
}

// Unwrap classifies the response by status code. A 403 counts as quota
// exhaustion only when its message says so.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode >= 500:
		return ErrServerError
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode == http.StatusForbidden && strings.Contains(strings.ToLower(e.Message), "quota"):
		return ErrQuotaExceeded
	default:
		return ErrRequestFailed
	}
}

// IsQuotaError reports whether err signals rate limiting or quota exhaustion.
func IsQuotaError(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrQuotaExceeded)
}

// HTTPClient is the HTTP implementation of API.
type HTTPClient struct {
	location    string
	baseURL     string
	httpClient  *http.Client
	pollRetries int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL, replacing the regional endpoint.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) {
		if url != "" {
			hc.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithPollRetries sets how many times a single operation fetch is retried on
// transient failures before the error is returned.
func WithPollRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.pollRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for fetch retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a Vertex client for the given location (e.g. us-central1).
func NewClient(location string, opts ...ClientOption) (*HTTPClient, error) {
	if location == "" {
		return nil, ErrLocationRequired
	}

	c := &HTTPClient{
		location:    location,
		baseURL:     fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1", location),
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		pollRetries: 2,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// endpoint builds the publisher model URL for a method such as "predict".
func (c *HTTPClient) endpoint(target Target, method string) string {
	return fmt.Sprintf("%s/projects/%s/locations/%s/publishers/google/models/%s:%s",
		c.baseURL, target.ProjectID, c.location, target.Model, method)
}

// Predict issues a synchronous prediction.
func (c *HTTPClient) Predict(ctx context.Context, target Target, token string, req PredictRequest) (PredictResponse, error) {
	var resp predictWireResponse
	if err := c.doRequest(ctx, c.endpoint(target, "predict"), token, req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Predictions) == 0 {
		return EmptyPredictions{}, nil
	}
	return Predictions{Items: resp.Predictions}, nil
}

// PredictLongRunning submits an asynchronous prediction and returns the operation name.
func (c *HTTPClient) PredictLongRunning(ctx context.Context, target Target, token string, req PredictRequest) (string, error) {
	var resp operationStartResponse
	if err := c.doRequest(ctx, c.endpoint(target, "predictLongRunning"), token, req, &resp); err != nil {
		return "", err
	}

	if resp.Name == "" {
		return "", ErrNoOperationName
	}
	return resp.Name, nil
}

// FetchOperation reads the state of a long-running operation. Transient
// failures of a single fetch are retried with exponential backoff.
func (c *HTTPClient) FetchOperation(ctx context.Context, target Target, token, operationName string) (Operation, error) {
	if operationName == "" {
		return nil, ErrOperationNameRequired
	}

	var resp operationWireResponse
	body := fetchOperationRequest{OperationName: operationName}
	if err := c.doRequestWithRetry(ctx, c.endpoint(target, "fetchPredictOperation"), token, body, &resp); err != nil {
		return nil, err
	}

	name := resp.Name
	if name == "" {
		name = operationName
	}

	if !resp.Done {
		return OperationPending{Name: name}, nil
	}

	if len(resp.Error) > 0 && string(resp.Error) != "null" {
		var status statusPayload
		failed := OperationFailed{Name: name}
		if err := json.Unmarshal(resp.Error, &status); err == nil && status.Message != "" {
			failed.Code = status.Code
			failed.Message = status.Message
		} else {
			failed.Code = status.Code
			failed.Message = string(resp.Error)
		}
		return failed, nil
	}

	done := OperationDone{Name: name}
	if resp.Response != nil {
		done.Videos = resp.Response.Videos
		done.FilteredCount = resp.Response.RAIMediaFilteredCount
		done.FilteredReasons = resp.Response.RAIMediaFilteredReasons
	}
	return done, nil
}

// doRequestWithRetry performs a request with exponential backoff retry on
// transient failures.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, url, token string, body, result any) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.pollRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("vertex: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := c.doRequest(ctx, url, token, body, result)
		if err == nil {
			return nil
		}

		if !isRetryable(err) || ctx.Err() != nil {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("vertex: max retries exceeded: %w", lastErr)
}

// doRequest performs a single authenticated JSON POST.
func (c *HTTPClient) doRequest(ctx context.Context, url, token string, body, result any) error {
	if token == "" {
		return ErrTokenRequired
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("vertex: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("vertex: create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("%w: %w", ErrTransport, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("%w: read response: %w", ErrTransport, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := newStatusError(resp.StatusCode, respBody)
		// 5xx and 429 are worth retrying within a poll
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: statusErr}
		}
		return statusErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w: %w", ErrDecodeResponse, err)
		}
	}

	return nil
}

// newStatusError extracts the message of a non-2xx response.
func newStatusError(status int, body []byte) *StatusError {
	message := strings.TrimSpace(string(body))
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}
	if len(message) > maxErrorBody {
		message = message[:maxErrorBody]
	}
	return &StatusError{StatusCode: status, Message: message}
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Compile-time check that HTTPClient implements API.
var _ API = (*HTTPClient)(nil)
