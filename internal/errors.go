package internal

import (
	"errors"
	"fmt"
)

// LoginError is returned when the wiki refuses the bot credentials
type LoginError struct {
	User   string
	Result string // login.result from the API, e.g. "Failed"
	Reason string
}

func (e *LoginError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("login failed for %q: %s (%s)", e.User, e.Result, e.Reason)
	}
	return fmt.Sprintf("login failed for %q: %s", e.User, e.Result)
}

// APIError represents an error object (or non-2xx status) returned by the wiki API
type APIError struct {
	Action string // "login", "query", "edit"
	Code   string
	Info   string
	Status int
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error [%s]: http status %d", e.Action, e.Status)
	}
	return fmt.Sprintf("api error [%s] %s: %s", e.Action, e.Code, e.Info)
}

// IsEditConflict reports whether err is the server rejecting an edit whose
// base revision is no longer the latest.
func IsEditConflict(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == "editconflict"
	}
	return false
}

// MarkerNotFoundError means the summary could not be inserted into the log
// page because the insertion marker is absent.
type MarkerNotFoundError struct {
	Page   string
	Marker string
}

func (e *MarkerNotFoundError) Error() string {
	return fmt.Sprintf("no changes: marker %q not found on %s", e.Marker, e.Page)
}

// RetryExhaustedError wraps the last failure of an operation that ran out of attempts
type RetryExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// ConfigError represents an invalid or incomplete configuration
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error [%s]: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
