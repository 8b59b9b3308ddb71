package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRepeatedAuthFailure is returned when a request is rejected as
	// unauthorized again after one refresh-and-retry cycle.
	ErrRepeatedAuthFailure = errors.New("repeated authentication failure")

	// ErrSessionExpired is returned when the refresh token was rejected and
	// the session has been logged out.
	ErrSessionExpired = errors.New("session expired")

	// ErrNotLoggedIn is returned for authenticated requests without a session.
	ErrNotLoggedIn = errors.New("not logged in")
)

// ValidationError is a non-2xx response other than an authentication
// failure. Message is the backend's text, verbatim when it sent one.
type ValidationError struct {
	Status    int
	Message   string
	RequestID string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
}

// NetworkError is a transport failure or a response that could not be decoded.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	if e.Err == nil {
		return e.Op + " failed"
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsStatus reports whether err is a ValidationError with the given status.
func IsStatus(err error, status int) bool {
	var verr *ValidationError
	return errors.As(err, &verr) && verr.Status == status
}
