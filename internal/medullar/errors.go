package medullar

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ValidationError is raised before any network call when caller input is
// missing or inconsistent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// APIError wraps any transport or non-2xx failure from the Medullar API.
// Payload holds the upstream error body when one was returned.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Payload    json.RawMessage
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("medullar api error: %s %s returned status %d: %v", e.Method, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("medullar api error: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// SemanticError reports a well-formed response that does not satisfy what the
// operation needs (no company on the user, no uuid on a created chat).
type SemanticError struct {
	Message string
}

func (e *SemanticError) Error() string {
	return e.Message
}

// StatusError is returned by transports for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, string(e.Body))
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsSemantic(err error) bool {
	var se *SemanticError
	return errors.As(err, &se)
}

func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func required(field string) error {
	return &ValidationError{Field: field, Message: "is required"}
}
