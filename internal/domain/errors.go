package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedJSON marks payloads that are not a JSON object at all.
	ErrMalformedJSON = errors.New("malformed json")
	// ErrMissingField marks payloads lacking a required field.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidField marks required or typed fields holding an unusable value.
	ErrInvalidField = errors.New("invalid field value")
)

// ValidationError reports the field that made a status payload unusable.
// Field is a dotted path such as "state.open" or "location.lat"; "$" is the document root.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validate %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func missing(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "required field is missing", Err: ErrMissingField}
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Err: ErrInvalidField}
}

// FetchErrorKind classifies why a fetch failed.
type FetchErrorKind string

const (
	FetchNetwork   FetchErrorKind = "network"
	FetchTimeout   FetchErrorKind = "timeout"
	FetchHTTP      FetchErrorKind = "http"
	FetchMalformed FetchErrorKind = "malformed"
)

// Sentinels matched by FetchError.Is so callers can use errors.Is on the kind alone.
var (
	ErrNetwork       = errors.New("network failure")
	ErrTimeout       = errors.New("request timed out")
	ErrHTTPStatus    = errors.New("unexpected http status")
	ErrMalformedBody = errors.New("malformed response body")
)

// FetchError is returned by the client once all attempts for a URL are spent,
// or immediately for failures that retrying cannot fix.
type FetchError struct {
	URL        string
	Kind       FetchErrorKind
	StatusCode int // set for FetchHTTP
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FetchHTTP {
		return fmt.Sprintf("fetch %s: http status %d after %d attempt(s)", e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("fetch %s: %s error after %d attempt(s): %v", e.URL, e.Kind, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == FetchNetwork
	case ErrTimeout:
		return e.Kind == FetchTimeout
	case ErrHTTPStatus:
		return e.Kind == FetchHTTP
	case ErrMalformedBody:
		return e.Kind == FetchMalformed
	}
	return false
}
