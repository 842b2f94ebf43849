package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels an APIError matches with errors.Is, so callers need not know
// the wire codes.
var (
	ErrNotFound     = errors.New("annotation not found")
	ErrConflict     = errors.New("conflicting annotation state")
	ErrUnauthorized = errors.New("not authorized")
	ErrUnavailable  = errors.New("server unavailable")
)

// APIError is a failed request as reported by a linenotes server. Code is
// the symbolic class and ErrorCode the numeric code within it.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Message   string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d", e.Status)
	}
	if e.Code == "" {
		return msg
	}
	return e.Code + ": " + msg
}

// Is maps the server's codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrNotFound:
		return e.Code == "not_found"
	case ErrConflict:
		return e.Code == "conflict"
	case ErrUnauthorized:
		return e.Code == "unauthorized" || e.Code == "forbidden"
	case ErrUnavailable:
		return e.Status == http.StatusServiceUnavailable || e.Code == "resource_exhausted"
	}
	return false
}

// FromServer reports whether the body came from a linenotes server. A bare
// status without a code usually means something else answered the URL.
func (e *APIError) FromServer() bool {
	return e != nil && e.Code != ""
}

// Retryable reports whether repeating the request later may succeed.
func (e *APIError) Retryable() bool {
	if e == nil {
		return false
	}
	return errors.Is(e, ErrUnavailable) || e.Status == http.StatusTooManyRequests
}
