package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes. Every failure produced by this package carries exactly one.
const (
	CodeTimeout        = "timeout"
	CodeNetwork        = "network"
	CodeSessionExpired = "session_expired"
)

// ErrNoContent is returned by Response.JSON for a 204 response, where the
// absence of a body is intentional rather than an error to hide.
var ErrNoContent = errors.New("api: response has no content")

// Error is the single failure type for backend calls. Status is the HTTP
// status (0 for transport failures, 408 for client-side timeouts), Code a
// stable machine slug and Detail the backend's message when one was parsed.
type Error struct {
	Status int
	Code   string
	Detail string
	Path   string
	cause  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("api: %s %s (status %d)", e.Code, e.Path, e.Status)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

// IsTimeout reports whether err is a client-side deadline expiry.
func IsTimeout(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == CodeTimeout
}

// IsSessionExpired reports whether err is the terminal session-expiry error.
// Pollers treat it as a stop signal rather than a transient failure.
func IsSessionExpired(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == CodeSessionExpired
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not an
// api error.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// DetailOf returns the backend detail message carried by err, if any.
func DetailOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

// statusSlug converts an HTTP status into a stable error code, e.g.
// 404 -> "not_found".
func statusSlug(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return fmt.Sprintf("http_%d", status)
	}
	slug := strings.ToLower(text)
	slug = strings.ReplaceAll(slug, " ", "_")
	slug = strings.ReplaceAll(slug, "-", "_")
	return slug
}
