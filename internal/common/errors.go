// Package common defines the error taxonomy shared by the storage, service
// and transport layers of lexisync. Callers should use errors.Is / errors.As
// to match these values; HTTPStatus maps any error to a response code.
package common

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")
	ErrorStoreWrite    = errors.New("store write error")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Upstream API errors.
	ErrorUpstream = errors.New("upstream error")
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError returns a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrorValidation }

// UpstreamError is a failed call to an external API. Status is the upstream
// HTTP status, or 0 when the request never got a response.
type UpstreamError struct {
	Service string
	Status  int
	Detail  string
	Err     error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s upstream: %v", e.Service, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s upstream status %d: %s", e.Service, e.Status, e.Detail)
	default:
		return fmt.Sprintf("%s upstream status %d", e.Service, e.Status)
	}
}

func (e *UpstreamError) Is(target error) bool { return target == ErrorUpstream }

func (e *UpstreamError) Unwrap() error { return e.Err }

// StoreWriteError is a failed write to a remote storage backend.
type StoreWriteError struct {
	Backend string
	Key     string
	Err     error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("%s store: write %s: %v", e.Backend, e.Key, e.Err)
}

func (e *StoreWriteError) Is(target error) bool { return target == ErrorStoreWrite }

func (e *StoreWriteError) Unwrap() error { return e.Err }

// HTTPStatus maps err onto the status code returned to the client.
func HTTPStatus(err error) int {
	var upstream *UpstreamError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrorValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrorUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrorAlreadyExists):
		return http.StatusConflict
	case errors.As(err, &upstream):
		if upstream.Status >= 400 && upstream.Status <= 599 {
			return upstream.Status
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
