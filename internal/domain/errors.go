package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSourceUnavailable indicates that an external literature source
	// returned a non-retryable error.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrRateLimited indicates that retries against a rate-limited source
	// were exhausted.
	ErrRateLimited = errors.New("rate limited")

	// ErrVocabularyLookupFailed indicates that an external vocabulary fetch failed.
	ErrVocabularyLookupFailed = errors.New("vocabulary lookup failed")

	// ErrAllSourcesFailed indicates that every literature source failed for a search.
	ErrAllSourcesFailed = errors.New("all sources failed")

	// ErrInvalidStructuredQuery indicates that a PICO/PCC query has no usable clause.
	ErrInvalidStructuredQuery = errors.New("invalid structured query")

	// ErrInvalidTransition indicates an illegal session phase transition.
	ErrInvalidTransition = errors.New("invalid phase transition")

	// ErrCancelled indicates that an operation was cancelled.
	ErrCancelled = errors.New("cancelled")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// SourceUnavailableError provides details about a non-retryable upstream failure.
type SourceUnavailableError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *SourceUnavailableError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s unavailable (status %d): %s", e.Source, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s unavailable: %s", e.Source, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *SourceUnavailableError) Unwrap() error {
	return ErrSourceUnavailable
}

// RateLimitedError provides details about exhausted retries against a
// rate-limited source.
type RateLimitedError struct {
	Source     string
	Attempts   int
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited by %s after %d attempts", e.Source, e.Attempts)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitedError) Unwrap() error {
	return ErrRateLimited
}

// VocabularyLookupFailedError provides details about a failed MeSH fetch.
// Query building proceeds without the term's expansion.
type VocabularyLookupFailedError struct {
	Term  string
	Cause error
}

// Error implements the error interface.
func (e *VocabularyLookupFailedError) Error() string {
	return fmt.Sprintf("vocabulary lookup failed for %q: %v", e.Term, e.Cause)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *VocabularyLookupFailedError) Unwrap() error {
	return ErrVocabularyLookupFailed
}

// AllSourcesFailedError is the session-level error raised when no literature
// source returned any results.
type AllSourcesFailedError struct {
	Failures map[SourceType]error
}

// Error implements the error interface.
func (e *AllSourcesFailedError) Error() string {
	return fmt.Sprintf("all %d sources failed", len(e.Failures))
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *AllSourcesFailedError) Unwrap() error {
	return ErrAllSourcesFailed
}

// InvalidStructuredQueryError indicates a structured query with no non-empty clause.
type InvalidStructuredQueryError struct {
	Message string
}

// Error implements the error interface.
func (e *InvalidStructuredQueryError) Error() string {
	return fmt.Sprintf("invalid structured query: %s", e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *InvalidStructuredQueryError) Unwrap() error {
	return ErrInvalidStructuredQuery
}

// AlreadyExistsError provides details about a duplicate entity.
type AlreadyExistsError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *AlreadyExistsError) Unwrap() error {
	return ErrAlreadyExists
}

// InvalidTransitionError provides details about an illegal phase transition.
type InvalidTransitionError struct {
	From SessionPhase
	To   SessionPhase
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid phase transition from %s to %s", e.From, e.To)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewSourceUnavailableError creates a new SourceUnavailableError.
func NewSourceUnavailableError(source string, statusCode int, message string, cause error) *SourceUnavailableError {
	return &SourceUnavailableError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// NewRateLimitedError creates a new RateLimitedError.
func NewRateLimitedError(source string, attempts int, retryAfter time.Duration) *RateLimitedError {
	return &RateLimitedError{
		Source:     source,
		Attempts:   attempts,
		RetryAfter: retryAfter,
	}
}

// NewVocabularyLookupFailedError creates a new VocabularyLookupFailedError.
func NewVocabularyLookupFailedError(term string, cause error) *VocabularyLookupFailedError {
	return &VocabularyLookupFailedError{
		Term:  term,
		Cause: cause,
	}
}

// NewInvalidStructuredQueryError creates a new InvalidStructuredQueryError.
func NewInvalidStructuredQueryError(message string) *InvalidStructuredQueryError {
	return &InvalidStructuredQueryError{Message: message}
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(entity, id string) *AlreadyExistsError {
	return &AlreadyExistsError{
		Entity: entity,
		ID:     id,
	}
}

// NewInvalidTransitionError creates a new InvalidTransitionError.
func NewInvalidTransitionError(from, to SessionPhase) *InvalidTransitionError {
	return &InvalidTransitionError{
		From: from,
		To:   to,
	}
}
