package errors

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for client-side usage failures. These are raised before any
// network activity and are never retried. All can be checked with errors.Is().
var (
	// ErrStateConflict is returned when an operation is invoked on a pipeline
	// whose state does not permit it (e.g. push after close).
	ErrStateConflict = errors.New("pipeline state conflict")

	// ErrDuplicateChunk is returned when a push resubmits a chunk id already
	// recorded by the pipeline and the duplicate policy demands failure.
	ErrDuplicateChunk = errors.New("duplicate chunk id")

	// ErrMissingHeader is returned when a dataset must be split into chunks
	// but no header row can be derived and none was supplied.
	ErrMissingHeader = errors.New("missing chunk header")

	// ErrNoData is returned when a push provides none of the accepted input
	// forms (chunks, inline data, raw records, serialized payload).
	ErrNoData = errors.New("no input data provided")

	// ErrInvalidInput is returned when provided input is malformed
	// (e.g. an unparsable raw payload or an empty batch id).
	ErrInvalidInput = errors.New("invalid input")

	// ErrCancelled is returned when an in-flight call is aborted through the
	// caller's context. It is never retried and never classified as a server
	// error.
	ErrCancelled = errors.New("request cancelled")
)

// RequestSnapshot captures the outgoing request at the time of failure.
// Authorization material is redacted before capture, so the snapshot is safe
// to log verbatim.
type RequestSnapshot struct {
	Method  string              `json:"method"`
	URL     string              `json:"url"`
	Headers map[string][]string `json:"headers,omitempty"`
	Body    string              `json:"body,omitempty"`
}

// ResponseSnapshot captures the server response at the time of failure.
type ResponseSnapshot struct {
	Status  int                 `json:"status"`
	Headers map[string][]string `json:"headers,omitempty"`
	Body    string              `json:"body,omitempty"`
}

// Cause pairs the request and response snapshots that produced an APIError,
// carrying enough context to diagnose a failure without re-running it.
type Cause struct {
	Request  *RequestSnapshot  `json:"request,omitempty"`
	Response *ResponseSnapshot `json:"response,omitempty"`
	Err      error             `json:"-"`
}

// APIError is a typed transport/API error. Every failed call yields exactly
// one APIError whose Code is derived from the response status via
// CodeForStatus.
type APIError struct {
	// Code classifies the failure (closed, status-keyed set).
	Code Code

	// Status is the originating HTTP status; 0 for connectivity failures.
	Status int

	// Message is a human-readable description of the failure.
	Message string

	// RequestID is the correlation id extracted from the response headers
	// when available, used for support escalation.
	RequestID string

	// Cause holds the request/response snapshots for diagnostics.
	Cause *Cause
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("spark: %s (%d): %s [request id: %s]", e.Code, e.Status, e.Message, e.RequestID)
	}
	return fmt.Sprintf("spark: %s (%d): %s", e.Code, e.Status, e.Message)
}

// Unwrap returns the underlying transport error, if any.
func (e *APIError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause.Err
	}
	return nil
}

// FromStatus constructs an APIError classified from the given HTTP status.
// The message defaults to a status-appropriate description when empty.
func FromStatus(status int, message string) *APIError {
	if message == "" {
		message = messageForStatus(status)
	}
	return &APIError{
		Code:    CodeForStatus(status),
		Status:  status,
		Message: message,
	}
}

// WithRequestID attaches the server-reported request id.
func (e *APIError) WithRequestID(id string) *APIError {
	e.RequestID = id
	return e
}

// WithCause attaches the request/response snapshots.
func (e *APIError) WithCause(cause *Cause) *APIError {
	e.Cause = cause
	return e
}

// RetryTimeoutError is raised when a bounded polling loop exhausts its retry
// budget without reaching a terminal state. It is distinct from APIError: the
// last-seen response was not itself an error, just "still not done".
type RetryTimeoutError struct {
	// Attempts is the number of polls performed before giving up.
	Attempts int

	// Interval is the base interval between polls.
	Interval time.Duration
}

// Error implements the error interface.
func (e *RetryTimeoutError) Error() string {
	return fmt.Sprintf("spark: operation still incomplete after %d attempts (interval %s)", e.Attempts, e.Interval)
}

// IsRateLimited reports whether err is an APIError caused by rate limiting.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeRateLimited
}

// IsUnauthorized reports whether err is an APIError caused by missing or
// expired credentials.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeUnauthorized
}

// IsNotFound reports whether err is an APIError for a missing resource.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeNotFound
}

// IsConflict reports whether err is an APIError for a resource state conflict.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeConflict
}

// IsConnection reports whether err is an APIError for a network-level
// connectivity failure.
func IsConnection(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeConnection
}

// IsRetryTimeout reports whether err indicates an exhausted polling budget.
func IsRetryTimeout(err error) bool {
	var rte *RetryTimeoutError
	return errors.As(err, &rte)
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not an
// APIError.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
