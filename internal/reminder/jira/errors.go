package jira

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized matches HTTP errors caused by rejected credentials (401, 403)
var ErrUnauthorized = errors.New("JIRA rejected the credentials")

// HTTPError is returned when JIRA answers with a non-2xx status
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: HTTP %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Is makes errors.Is(err, ErrUnauthorized) work for 401 and 403 responses
func (e *HTTPError) Is(target error) bool {
	return target == ErrUnauthorized && (e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}

// fallbackAllowed reports whether the search may be retried with the GET shape
func (e *HTTPError) fallbackAllowed() bool {
	return e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusMethodNotAllowed
}

// TransportError is returned when JIRA could not be reached at all (network
// failure, timeout, cancelled context)
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a 2xx response body cannot be understood
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode JIRA search response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
