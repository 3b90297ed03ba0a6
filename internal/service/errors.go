// Package service implements the application's use cases on top of the
// store, artifact and queue abstractions: user registration and login,
// job submission, job queries, and the reconciliation sweep that
// republishes lost work.
package service

import (
	"errors"
	"fmt"

	"github.com/visionforge/detect-api/internal/store"
)

// Common sentinel errors for the service layer
var (
	// ErrJobNotFound indicates the job does not exist or is not visible
	// to the requesting user
	ErrJobNotFound = errors.New("job not found")

	// ErrUnsupportedImage indicates the upload is not an accepted image type
	ErrUnsupportedImage = errors.New("unsupported image type")

	// ErrInvalidCredentials indicates a failed login attempt
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailExists indicates registration with an already-registered email
	ErrEmailExists = errors.New("email address already registered")
)

// ServiceError wraps errors from the service layer with operation context.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "submit_job", "register_user")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError. Store-level sentinels are
// mapped to their service-level equivalents and returned directly.
func NewServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrJobNotFound), errors.Is(err, store.ErrJobNotFound):
		return ErrJobNotFound
	case errors.Is(err, ErrEmailExists), errors.Is(err, store.ErrEmailExists):
		return ErrEmailExists
	case errors.Is(err, ErrUnsupportedImage), errors.Is(err, ErrInvalidCredentials):
		return err
	}

	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
