// Package rest implements the resilient request execution layer shared by
// every network-touching operation in the SDK. It owns auth header injection,
// request/response interceptors, retry with jittered backoff, and typed error
// classification. Callers describe one logical call; the executor decides how
// many wire attempts that takes.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	sparkerrors "github.com/Coherent-Partners/spark-go-sdk/errors"
)

// Header names consumed or produced by the executor.
const (
	HeaderRequestID    = "x-request-id"
	HeaderTenant       = "x-tenant-name"
	HeaderRetryAfter   = "x-retry-after"
	HeaderSyntheticKey = "x-synthetic-key"
)

// Authorizer supplies credentials for outgoing requests. Implementations that
// can obtain fresh credentials (OAuth) report Refreshable() == true, which
// lets the executor retry a 401 after a refresh. Static schemes return false
// and a 401 is terminal on first occurrence.
type Authorizer interface {
	// Apply injects the auth header into the outgoing request.
	Apply(req *http.Request) error

	// Refreshable reports whether Refresh can obtain new credentials.
	Refreshable() bool

	// Refresh obtains fresh credentials, replacing any cached token.
	Refresh(ctx context.Context) error
}

// RequestInterceptor is a pure transform applied to the outgoing request
// before auth injection and transport.
type RequestInterceptor func(req *http.Request) error

// ResponseInterceptor is applied to the raw response before classification.
type ResponseInterceptor func(res *http.Response) error

// Request describes one logical API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header

	// Body is JSON-encoded when non-nil. A []byte body is sent as-is.
	Body any
}

// Response is the outcome of a successful call. The body is fully read and
// the underlying connection released before Response is returned.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

// RequestID returns the correlation id reported by the server, if any.
func (r *Response) RequestID() string {
	return r.Header.Get(HeaderRequestID)
}

// Config holds the executor's immutable wiring. All fields are set at client
// construction and never mutated afterwards.
type Config struct {
	BaseURL       *url.URL
	Tenant        string
	HTTPClient    *http.Client
	Auth          Authorizer
	Logger        *slog.Logger
	MaxRetries    int
	RetryInterval time.Duration
	RetryJitter   float64
	Before        []RequestInterceptor
	After         []ResponseInterceptor
}

// Executor issues logical HTTP calls against the configured base URL.
//
// Thread safety: Executor is immutable after construction and safe for
// concurrent use, provided the Authorizer and interceptors are.
type Executor struct {
	cfg Config
}

// New creates an Executor, applying defaults for any unset tuning fields.
func New(cfg Config) *Executor {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = time.Second
	}
	if cfg.RetryJitter <= 0 {
		cfg.RetryJitter = DefaultRetryJitter
	}
	return &Executor{cfg: cfg}
}

// Do performs one logical call: interceptors, auth injection, transport,
// classification, and the retry policy. Retries are sequential and bounded;
// the attempt counter is carried by an explicit loop so stack depth and
// cancellation behavior stay predictable.
//
// Only two transient conditions are retried: an expired OAuth token (401 with
// a refreshable Authorizer) and rate limiting (429). Everything else at or
// above 400 is terminal on first occurrence.
func (e *Executor) Do(ctx context.Context, req Request) (*Response, error) {
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; {
		httpReq, err := e.build(ctx, req, body)
		if err != nil {
			return nil, err
		}

		res, err := e.cfg.HTTPClient.Do(httpReq)
		if err != nil {
			// A caller-initiated abort is surfaced as a distinct outcome,
			// never retried and never classified as a server error.
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s %s", sparkerrors.ErrCancelled, req.Method, req.Path)
			}
			// Network-level connectivity failure: retrying a dead network
			// rarely helps within request scope, so surface immediately.
			apiErr := sparkerrors.FromStatus(0, "")
			apiErr.Cause = &sparkerrors.Cause{Request: snapshotRequest(httpReq, body), Err: err}
			return nil, apiErr
		}

		resBody, readErr := io.ReadAll(res.Body)
		res.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("reading response body: %w", readErr)
		}

		for _, intercept := range e.cfg.After {
			if err := intercept(res); err != nil {
				return nil, err
			}
		}

		switch {
		case res.StatusCode == http.StatusUnauthorized &&
			e.cfg.Auth != nil && e.cfg.Auth.Refreshable() && attempt < e.cfg.MaxRetries:
			e.log(ctx, slog.LevelWarn, "access token rejected, refreshing",
				"method", req.Method, "path", req.Path, "attempt", attempt)
			if err := e.cfg.Auth.Refresh(ctx); err != nil {
				return nil, fmt.Errorf("refreshing access token: %w", err)
			}
			attempt++
			continue

		case res.StatusCode == http.StatusTooManyRequests && attempt < e.cfg.MaxRetries:
			delay := e.retryAfter(res, attempt+1)
			e.log(ctx, slog.LevelWarn, "rate limited, backing off",
				"method", req.Method, "path", req.Path, "attempt", attempt, "delay", delay)
			if err := sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("%w: %s %s", sparkerrors.ErrCancelled, req.Method, req.Path)
			}
			attempt++
			continue

		case res.StatusCode >= 400:
			return nil, e.classify(ctx, httpReq, body, res, resBody)
		}

		return &Response{Status: res.StatusCode, Header: res.Header, Body: resBody}, nil
	}
}

// build constructs the wire request for one attempt: interceptors first, then
// auth and correlation headers.
func (e *Executor) build(ctx context.Context, req Request, body []byte) (*http.Request, error) {
	target := e.cfg.BaseURL.JoinPath(strings.Split(req.Path, "/")...)
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	for key, values := range req.Header {
		httpReq.Header[key] = values
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	for _, intercept := range e.cfg.Before {
		if err := intercept(httpReq); err != nil {
			return nil, err
		}
	}

	// One client-generated correlation id per wire attempt.
	httpReq.Header.Set(HeaderRequestID, uuid.NewString())
	if e.cfg.Tenant != "" {
		httpReq.Header.Set(HeaderTenant, e.cfg.Tenant)
	}
	if e.cfg.Auth != nil {
		if err := e.cfg.Auth.Apply(httpReq); err != nil {
			return nil, fmt.Errorf("applying credentials: %w", err)
		}
	}
	return httpReq, nil
}

// retryAfter resolves the delay before the given retry: a server-supplied
// x-retry-after hint (seconds) wins over the computed backoff.
func (e *Executor) retryAfter(res *http.Response, attempt int) time.Duration {
	if hint := res.Header.Get(HeaderRetryAfter); hint != "" {
		if seconds, err := strconv.ParseFloat(hint, 64); err == nil && seconds >= 0 {
			return time.Duration(seconds * float64(time.Second))
		}
	}
	return RetryDelay(attempt, e.cfg.RetryInterval, e.cfg.RetryJitter)
}

// classify turns a terminal error response into a typed APIError carrying the
// redacted request/response snapshots.
func (e *Executor) classify(ctx context.Context, httpReq *http.Request, reqBody []byte, res *http.Response, resBody []byte) error {
	message := serverMessage(resBody)
	apiErr := sparkerrors.FromStatus(res.StatusCode, message)
	apiErr.RequestID = res.Header.Get(HeaderRequestID)
	apiErr.Cause = &sparkerrors.Cause{
		Request: snapshotRequest(httpReq, reqBody),
		Response: &sparkerrors.ResponseSnapshot{
			Status:  res.StatusCode,
			Headers: res.Header,
			Body:    string(resBody),
		},
	}
	e.log(ctx, slog.LevelError, "request failed",
		"method", httpReq.Method, "url", httpReq.URL.String(),
		"status", res.StatusCode, "code", string(apiErr.Code), "request_id", apiErr.RequestID)
	return apiErr
}

func (e *Executor) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if e.cfg.Logger != nil {
		e.cfg.Logger.Log(ctx, level, msg, args...)
	}
}

// encodeBody renders the request body once; retries reuse the same bytes.
func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		return encoded, nil
	}
}

// serverMessage extracts a human-readable message from an error response
// body. Both {"error": {"message": …}} and {"message": …} shapes are
// recognized; anything else falls back to the status-derived default.
func serverMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var envelope struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return envelope.Message
}

// snapshotRequest captures the outgoing request with credentials redacted, so
// the resulting error is safe to log verbatim.
func snapshotRequest(req *http.Request, body []byte) *sparkerrors.RequestSnapshot {
	headers := make(map[string][]string, len(req.Header))
	for key, values := range req.Header {
		if strings.EqualFold(key, "Authorization") || strings.EqualFold(key, HeaderSyntheticKey) {
			headers[key] = []string{"[redacted]"}
			continue
		}
		headers[key] = values
	}
	return &sparkerrors.RequestSnapshot{
		Method:  req.Method,
		URL:     req.URL.String(),
		Headers: headers,
		Body:    string(body),
	}
}
