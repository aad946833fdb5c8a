package apiclient

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed call so callers can react without string
// matching.
type ErrorKind string

const (
	// KindNetworkUnreachable is a transport-level failure (DNS, connection
	// refused). Usually means the endpoint is misconfigured, not that the
	// session is bad.
	KindNetworkUnreachable ErrorKind = "network_unreachable"
	// KindAuthExpired is a 401 that survived one refresh attempt, or a
	// failed refresh exchange. The session has been cleared.
	KindAuthExpired ErrorKind = "auth_expired"
	// KindHTTP is any other non-2xx response.
	KindHTTP ErrorKind = "http_error"
	// KindUnexpectedNonJSON means structured data was expected but the
	// server returned markup. Strong signal of a misrouted proxy rather
	// than a business error.
	KindUnexpectedNonJSON ErrorKind = "unexpected_non_json"
	// KindValidation is a client-side precondition failure; nothing was
	// sent to the network.
	KindValidation ErrorKind = "validation"
)

// APIError is the error type returned by the client.
type APIError struct {
	Kind   ErrorKind
	Status int    // HTTP status, when one was received
	Detail string // human-readable message
	err    error  // underlying cause, when any
}

func (e *APIError) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("[%d] %s", e.Status, e.Detail)
	case KindNetworkUnreachable:
		return fmt.Sprintf("backend unreachable: %s", e.Detail)
	default:
		return e.Detail
	}
}

func (e *APIError) Unwrap() error { return e.err }

// ErrAuthExpired can be matched with errors.Is against any auth-expired
// APIError.
var ErrAuthExpired = &APIError{Kind: KindAuthExpired, Detail: "session expired"}

// Is treats two APIErrors with the same Kind as equivalent, so sentinel
// matching works regardless of detail text.
func (e *APIError) Is(target error) bool {
	var other *APIError
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// KindOf returns the classification of err, or "" for a nil or foreign error.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

func validationError(format string, args ...any) *APIError {
	return &APIError{Kind: KindValidation, Detail: fmt.Sprintf(format, args...)}
}

func networkError(err error) *APIError {
	return &APIError{Kind: KindNetworkUnreachable, Detail: err.Error(), err: err}
}

func authExpiredError(cause error) *APIError {
	detail := "session expired"
	if cause != nil {
		detail = fmt.Sprintf("session expired: %v", cause)
	}
	return &APIError{Kind: KindAuthExpired, Detail: detail, err: cause}
}

func httpError(status int, detail string) *APIError {
	return &APIError{Kind: KindHTTP, Status: status, Detail: detail}
}

func nonJSONError(status int) *APIError {
	return &APIError{
		Kind:   KindUnexpectedNonJSON,
		Status: status,
		Detail: "expected JSON but received a document response; the endpoint is likely misrouted",
	}
}
