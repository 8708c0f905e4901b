package generator

import (
	"context"
	"errors"
)

// Error taxonomy of a dispatch. Every failure that reaches a caller wraps
// exactly one of these.
var (
	// ErrConfiguration is returned when no credential is available at all.
	ErrConfiguration = errors.New("generator: no credentials available")
	// ErrAuthFailure is returned when a credential cannot be exchanged for a token.
	ErrAuthFailure = errors.New("generator: authentication failed")
	// ErrTransientCall is returned when the provider call itself fails.
	ErrTransientCall = errors.New("generator: provider call failed")
	// ErrMalformedResponse is returned when a successful call carries no usable asset.
	ErrMalformedResponse = errors.New("generator: no asset in provider response")
	// ErrTimeout is returned when a long-running operation exceeds its poll budget.
	ErrTimeout = errors.New("generator: timed out waiting for operation")
	// ErrOperationFailed is returned when a long-running operation reports an error.
	ErrOperationFailed = errors.New("generator: operation failed")
	// ErrStorageRelay is returned when the durable relay rejects an upload.
	ErrStorageRelay = errors.New("generator: storage relay failed")
	// ErrInvalidRequest is returned when a request fails validation.
	ErrInvalidRequest = errors.New("generator: invalid request")
	// ErrCancelled is returned when the caller abandons the dispatch.
	ErrCancelled = errors.New("generator: cancelled")
)

// ErrorKind is the stable, provider-neutral code of a failed Result.
type ErrorKind string

// Error kinds carried by Result.ErrorKind.
const (
	KindConfiguration     ErrorKind = "configuration"
	KindAuthFailure       ErrorKind = "auth_failure"
	KindTransientCall     ErrorKind = "transient_call"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindTimeout           ErrorKind = "timeout"
	KindOperationFailed   ErrorKind = "operation_failed"
	KindInvalidRequest    ErrorKind = "invalid_request"
	KindCancelled         ErrorKind = "cancelled"
)

// OperationError carries the error a long-running operation reported.
// Its message is the server's message, unchanged.
type OperationError struct {
	Code    int
	Message string
}

func (e *OperationError) Error() string {
	return e.Message
}

func (e *OperationError) Unwrap() error {
	return ErrOperationFailed
}

// kindOf maps an error onto its ErrorKind. Unknown errors count as
// transient call failures.
func kindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrAuthFailure):
		return KindAuthFailure
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrOperationFailed):
		return KindOperationFailed
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformedResponse
	default:
		return KindTransientCall
	}
}
