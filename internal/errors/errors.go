// Package errors provides the error types shared by the plaza components.
// Callers check them with errors.Is / errors.As or the IsX helpers below.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// New is an alias for the standard library errors.New.
var New = errors.New

// Sentinel errors
var (
	// ErrNotFound indicates an id-based lookup found nothing
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates a draft or form failed validation
	ErrInvalidInput = errors.New("invalid input")

	// ErrStore indicates the persistent store rejected a write
	ErrStore = errors.New("store write failed")

	// ErrQuotaExceeded indicates the store rejected a write for size reasons
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrUnauthorized indicates the admin session flag is not set
	ErrUnauthorized = errors.New("unauthorized")
)

// NotFoundError represents a failed id lookup for update/delete
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// FieldError is a single failed field check.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Field, e.Message, e.Code)
}

// ValidationError collects every failing field of one form submission.
type ValidationError struct {
	Fields []FieldError `json:"errors"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Field returns the error for the named field, if any.
func (e *ValidationError) Field(name string) (FieldError, bool) {
	for _, f := range e.Fields {
		if f.Field == name {
			return f, true
		}
	}
	return FieldError{}, false
}

// NewValidationError creates a ValidationError from field errors
func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

// StoreErrorKind classifies a failed write.
type StoreErrorKind string

const (
	QuotaExceeded StoreErrorKind = "QuotaExceeded"
	WriteFailure  StoreErrorKind = "WriteFailure"
)

// StoreError represents a save that did not persist
type StoreError struct {
	Kind StoreErrorKind
	Key  string
	Err  error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store %s for key %s: %v", e.Kind, e.Key, e.Err)
	}
	return fmt.Sprintf("store %s for key %s", e.Kind, e.Key)
}

// Unwrap implements errors.Unwrap
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *StoreError) Is(target error) bool {
	if target == ErrStore {
		return true
	}
	return target == ErrQuotaExceeded && e.Kind == QuotaExceeded
}

// UserMessage is the text shown to the admin when a save did not persist.
func (e *StoreError) UserMessage() string {
	if e.Kind == QuotaExceeded {
		return "Storage quota exceeded. Please delete some old events."
	}
	return "Failed to save events. Please try again."
}

// NewStoreError creates a StoreError, classifying err by its chain
func NewStoreError(key string, err error) *StoreError {
	kind := WriteFailure
	if errors.Is(err, ErrQuotaExceeded) {
		kind = QuotaExceeded
	}
	return &StoreError{Kind: kind, Key: key, Err: err}
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStoreError checks if an error is a failed store write
func IsStoreError(err error) bool {
	return errors.Is(err, ErrStore)
}

// IsQuotaExceeded checks if an error is a quota failure
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// Is, As and Join re-export the standard library helpers so callers
// only need one errors import.
var (
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
)
