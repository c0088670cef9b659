package client

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// HTTPError represents a non-2xx HTTP response from the API.
// Message holds the server's error field and is empty when the body had none.
type HTTPError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

// IsAuth reports whether err means the bearer token was rejected.
// The API answers 401 for missing or expired tokens and 422 for malformed ones.
func IsAuth(err error) bool {
	return IsStatus(err, http.StatusUnauthorized) || IsStatus(err, http.StatusUnprocessableEntity)
}

// IsLimitExceeded reports whether a send was refused by the per-match message cap.
// The API signals every messaging refusal with 403.
func IsLimitExceeded(err error) bool {
	return IsStatus(err, http.StatusForbidden)
}

// IsTransient reports whether err is a transport failure or a server-side
// error, i.e. the request may succeed if sent again.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// Message returns the server-reported error text carried by err, or fallback
// when err is a transport failure or the server sent no error field.
func Message(err error, fallback string) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Message != "" {
		return httpErr.Message
	}
	return fallback
}
