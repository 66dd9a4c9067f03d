// Package transport implements the HTTP request pipeline for the
// broadband backend: endpoint resolution, bearer authentication,
// response-envelope decoding, a minimum visible-latency floor, and a
// fixed error taxonomy that callers can branch on.
package transport

import (
	"errors"
	"fmt"
)

// Kind classifies a failed request. Every error returned by the client
// carries exactly one Kind; callers choose behavior (and the UI layer
// chooses wording) by Kind, never by string matching.
type Kind string

const (
	// KindNetwork means no HTTP response was received at all.
	KindNetwork Kind = "network"
	// KindHTTP is a catch-all for status codes with no dedicated kind.
	KindHTTP Kind = "http"
	// KindAuthExpired is a 401. Observing it clears the session.
	KindAuthExpired Kind = "auth_expired"
	// KindForbidden is a 403.
	KindForbidden Kind = "forbidden"
	// KindNotFound is a 404.
	KindNotFound Kind = "not_found"
	// KindServer is any 5xx.
	KindServer Kind = "server"
	// KindBusiness is a well-formed HTTP 200 whose envelope reports
	// failure at the business level.
	KindBusiness Kind = "business"
)

// Error is the typed failure value for all transport outcomes.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.StatusCode > 0:
		return fmt.Sprintf("transport: %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	case e.Message != "":
		return fmt.Sprintf("transport: %s: %s", e.Kind, e.Message)
	case e.StatusCode > 0:
		return fmt.Sprintf("transport: %s (status %d)", e.Kind, e.StatusCode)
	default:
		return fmt.Sprintf("transport: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the Kind from err, or "" if err is not a transport
// error.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// IsAuthExpired reports whether err is a 401 classification.
func IsAuthExpired(err error) bool {
	return KindOf(err) == KindAuthExpired
}

func networkError(err error) *Error {
	return &Error{Kind: KindNetwork, Message: "request failed", Err: err}
}

func statusError(status int) *Error {
	switch {
	case status == 401:
		return &Error{Kind: KindAuthExpired, StatusCode: status}
	case status == 403:
		return &Error{Kind: KindForbidden, StatusCode: status}
	case status == 404:
		return &Error{Kind: KindNotFound, StatusCode: status}
	case status >= 500:
		return &Error{Kind: KindServer, StatusCode: status}
	default:
		return &Error{Kind: KindHTTP, StatusCode: status}
	}
}

func businessError(message string) *Error {
	return &Error{Kind: KindBusiness, StatusCode: 200, Message: message}
}
