// Package shared contains common domain types and errors used across all
// domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// ErrPrecondition marks malformed or missing upstream data that makes a
	// student impossible to evaluate. Never retried.
	ErrPrecondition = errors.New("precondition violated")

	// ErrUpstreamQuery marks a failed query against an external collaborator
	// whose result can be replaced by a conservative default.
	ErrUpstreamQuery = errors.New("upstream query failed")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrAlreadyProcessed = errors.New("already processed")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progress", "notification", "placement"
	Op      string // Operation that failed, e.g., "Validate", "Evaluate"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// NewPreconditionError reports unusable snapshot data.
func NewPreconditionError(domain, op, format string, args ...any) *DomainError {
	return NewDomainError(domain, op, ErrPrecondition, fmt.Sprintf(format, args...))
}

// NewUpstreamQueryError wraps a collaborator failure.
func NewUpstreamQueryError(domain, op string, err error) *DomainError {
	return WrapError(domain, op, ErrUpstreamQuery, "upstream query failed", err)
}

// Progress domain errors
var (
	ErrNoRegistrations    = NewDomainError("progress", "Validate", ErrPrecondition, "student has no course registrations")
	ErrMissingSchedule    = NewDomainError("progress", "Validate", ErrPrecondition, "milestone schedule is missing")
	ErrScheduleOutOfOrder = NewDomainError("progress", "Validate", ErrPrecondition, "milestone due dates are not in curriculum order")
	ErrMissingToday       = NewDomainError("progress", "Validate", ErrPrecondition, "evaluation date is not set")
	ErrStudentNotFound    = NewDomainError("progress", "Load", ErrNotFound, "student not found")
)

// Notification domain errors
var (
	ErrOutboxMessageNotFound = NewDomainError("notification", "RecordDelivery", ErrNotFound, "outbox message not found")
	ErrAlreadyDelivered      = NewDomainError("notification", "RecordDelivery", ErrAlreadyProcessed, "message already recorded as delivered")
)

// External service errors
var (
	ErrPlacementUnavailable = NewDomainError("placement", "Request", ErrServiceUnavailable, "placement service is unavailable")
	ErrPlacementTimeout     = NewDomainError("placement", "Request", ErrTimeout, "placement service request timeout")
	ErrPlacementRateLimited = NewDomainError("placement", "Request", ErrRateLimited, "placement service rate limit exceeded")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsPrecondition checks if the error is a precondition violation.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrPrecondition)
}

// IsUpstreamQuery checks if the error came from a degradable collaborator query.
func IsUpstreamQuery(err error) bool {
	return errors.Is(err, ErrUpstreamQuery)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	if IsPrecondition(err) {
		return false
	}
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}
