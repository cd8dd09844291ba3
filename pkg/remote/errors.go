package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingBaseURL is returned when a client is created without a base URL
var ErrMissingBaseURL = errors.New("remote backend: base URL is required")

// StatusError is returned for a non-2xx response
type StatusError struct {
	Method     string
	Endpoint   string
	StatusCode int
	// Message is the "error" member of the response, or a prefix of the raw body
	Message   string
	RequestID string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// NotFound reports a 404 response
func (e *StatusError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

// Temporary reports a response worth retrying
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsNotFound reports whether err wraps a 404 StatusError
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.NotFound()
}

// truncateForError keeps error messages short when a body is not an envelope
func truncateForError(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		return s[:200] + "... (truncated)"
	}
	return s
}
