// Package errors provides the error handling system for the Spark SDK.
// It extends Go's standard error handling with status-keyed error codes,
// request/response diagnostics capture, and sentinel errors for client-side
// usage failures.
package errors

import "fmt"

// Code represents a specific API error condition, keyed by the HTTP status
// code of the response that produced it. Codes are string-based for
// debuggability and natural JSON serialization.
type Code string

const (
	// Transport errors.

	// CodeConnection indicates the request never reached the server
	// (DNS failure, connection refused, unreachable network).
	CodeConnection Code = "CONNECTION_ERROR"

	// Client errors.

	// CodeBadRequest indicates the request payload or parameters were invalid.
	CodeBadRequest Code = "BAD_REQUEST"

	// CodeUnauthorized indicates the request lacked valid credentials.
	CodeUnauthorized Code = "UNAUTHORIZED"

	// CodeForbidden indicates the credentials lack permission for the operation.
	CodeForbidden Code = "FORBIDDEN"

	// CodeNotFound indicates the requested resource does not exist.
	CodeNotFound Code = "NOT_FOUND"

	// CodeConflict indicates a resource state conflict prevented the operation.
	CodeConflict Code = "CONFLICT"

	// CodeUnsupportedMedia indicates the server rejected the content type.
	CodeUnsupportedMedia Code = "UNSUPPORTED_MEDIA_TYPE"

	// CodeUnprocessable indicates the server understood but could not process
	// the request entity.
	CodeUnprocessable Code = "UNPROCESSABLE_ENTITY"

	// CodeRateLimited indicates the request rate limit has been exceeded.
	CodeRateLimited Code = "RATE_LIMIT_EXCEEDED"

	// Server errors.

	// CodeInternal indicates an internal server error occurred.
	CodeInternal Code = "INTERNAL_SERVER_ERROR"

	// CodeUnavailable indicates the service is temporarily unavailable.
	CodeUnavailable Code = "SERVICE_UNAVAILABLE"

	// CodeGatewayTimeout indicates an upstream gateway timed out.
	CodeGatewayTimeout Code = "GATEWAY_TIMEOUT"

	// Generic errors.

	// CodeUnknown indicates an unclassified error occurred.
	CodeUnknown Code = "UNKNOWN"
)

// CodeForStatus maps an HTTP status code to an error Code. The mapping is
// total: every status maps to some code, defaulting to CodeUnknown, so
// classification itself can never fail.
func CodeForStatus(status int) Code {
	switch status {
	case 0:
		return CodeConnection
	case 400:
		return CodeBadRequest
	case 401:
		return CodeUnauthorized
	case 403:
		return CodeForbidden
	case 404:
		return CodeNotFound
	case 409:
		return CodeConflict
	case 415:
		return CodeUnsupportedMedia
	case 422:
		return CodeUnprocessable
	case 429:
		return CodeRateLimited
	case 500:
		return CodeInternal
	case 503:
		return CodeUnavailable
	case 504:
		return CodeGatewayTimeout
	default:
		return CodeUnknown
	}
}

// messageForStatus returns the default human-readable message for a status.
func messageForStatus(status int) string {
	switch CodeForStatus(status) {
	case CodeConnection:
		return "connection error: the request never reached the server"
	case CodeBadRequest:
		return "the request was invalid"
	case CodeUnauthorized:
		return "the request lacked valid authentication credentials"
	case CodeForbidden:
		return "insufficient permission for the requested operation"
	case CodeNotFound:
		return "the requested resource was not found"
	case CodeConflict:
		return "the request conflicts with the current resource state"
	case CodeUnsupportedMedia:
		return "the request content type is not supported"
	case CodeUnprocessable:
		return "the request entity could not be processed"
	case CodeRateLimited:
		return "the request rate limit has been exceeded"
	case CodeInternal:
		return "the server encountered an internal error"
	case CodeUnavailable:
		return "the service is temporarily unavailable"
	case CodeGatewayTimeout:
		return "an upstream gateway timed out"
	default:
		return fmt.Sprintf("unexpected response status %d", status)
	}
}
