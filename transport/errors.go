package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed request.
type Kind int

const (
	// KindNetwork means no response was obtained (connection refused, DNS
	// failure, broken pipe).
	KindNetwork Kind = iota
	// KindTimeout means the request deadline elapsed before a response.
	KindTimeout
	// KindAPI means a response arrived with a non-2xx status.
	KindAPI
	// KindAuth means the backend rejected the credentials (401 semantics).
	KindAuth
	// KindValidation means the caller supplied malformed input; no request
	// was issued.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindAPI:
		return "api"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is the terminal failure for a request. Exactly one Kind applies.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	// Body holds the raw response payload for API/Auth errors and the
	// structured validation detail for Validation errors.
	Body []byte
	// Retryable reports whether the failure is transient (network, timeout,
	// 5xx).
	Retryable bool
	// Suggestion optionally carries a remediation hint for the caller.
	Suggestion string

	cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "request failed"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s error: %s (status %d)", e.Kind, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// NetworkError wraps a connection-level failure where no response arrived.
func NetworkError(cause error) *Error {
	return &Error{
		Kind:       KindNetwork,
		Message:    cause.Error(),
		Retryable:  true,
		Suggestion: "check connectivity and the configured base URL",
		cause:      cause,
	}
}

// TimeoutError wraps a request that exceeded its deadline.
func TimeoutError(cause error) *Error {
	return &Error{
		Kind:       KindTimeout,
		Message:    "request timed out",
		Retryable:  true,
		Suggestion: "increase the configured timeout or retry later",
		cause:      cause,
	}
}

// APIError translates a non-2xx response. 401 responses become Auth errors.
func APIError(statusCode int, status string, body []byte) *Error {
	if statusCode == http.StatusUnauthorized {
		return AuthError(status)
	}
	return &Error{
		Kind:       KindAPI,
		StatusCode: statusCode,
		Message:    status,
		Body:       body,
		Retryable:  statusCode >= 500,
	}
}

// AuthError marks a request rejected for credential reasons; the status is
// fixed at 401.
func AuthError(message string) *Error {
	return &Error{
		Kind:       KindAuth,
		StatusCode: http.StatusUnauthorized,
		Message:    message,
		Suggestion: "log in again or refresh the session",
	}
}

// ValidationError marks malformed caller input; the status is fixed at 400
// and no request is issued.
func ValidationError(message string, detail []byte) *Error {
	return &Error{
		Kind:       KindValidation,
		StatusCode: http.StatusBadRequest,
		Message:    message,
		Body:       detail,
	}
}

// IsAuth reports whether err is an authorization failure.
func IsAuth(err error) bool {
	var terr *Error
	if !errors.As(err, &terr) {
		return false
	}
	return terr.Kind == KindAuth
}

// IsRetryable reports whether err is transient per the error taxonomy.
func IsRetryable(err error) bool {
	var terr *Error
	if !errors.As(err, &terr) {
		return false
	}
	return terr.Retryable
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	var terr *Error
	if !errors.As(err, &terr) {
		return false
	}
	return terr.Kind == kind
}
