package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a DomainError so callers can decide how to surface it
type ErrorKind string

const (
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindValidation         ErrorKind = "VALIDATION"
	KindConflict           ErrorKind = "CONFLICT"
	KindExternalDependency ErrorKind = "EXTERNAL_DEPENDENCY"
	KindInternal           ErrorKind = "INTERNAL"
)

// DomainError represents a domain-level error
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying cause
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError by code, so wrapped instances compare equal to the sentinels below
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error.
// Kind is derived from the code when it is one of the common codes, otherwise it is a conflict
// (business rule violation).
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Kind:    kindForCode(code),
		Code:    code,
		Message: message,
	}
}

// NewNotFoundError creates a NotFound error for the named entity
func NewNotFoundError(entity string, id any) *DomainError {
	return &DomainError{
		Kind:    KindNotFound,
		Code:    ErrNotFound.Code,
		Message: fmt.Sprintf("%s %v not found", entity, id),
	}
}

// NewValidationError creates a Validation error
func NewValidationError(code, message string) *DomainError {
	return &DomainError{Kind: KindValidation, Code: code, Message: message}
}

// NewConflictError creates a Conflict (business rule) error
func NewConflictError(code, message string) *DomainError {
	return &DomainError{Kind: KindConflict, Code: code, Message: message}
}

// NewExternalError wraps a failure of storage or a delivery channel
func NewExternalError(message string, err error) *DomainError {
	return &DomainError{
		Kind:    KindExternalDependency,
		Code:    ErrExternalDependency.Code,
		Message: message,
		Err:     err,
	}
}

// Common domain errors
var (
	ErrNotFound            = &DomainError{Kind: KindNotFound, Code: "NOT_FOUND", Message: "Resource not found"}
	ErrAlreadyExists       = &DomainError{Kind: KindConflict, Code: "ALREADY_EXISTS", Message: "Resource already exists"}
	ErrInvalidInput        = &DomainError{Kind: KindValidation, Code: "INVALID_INPUT", Message: "Invalid input provided"}
	ErrConcurrencyConflict = &DomainError{Kind: KindConflict, Code: "CONCURRENCY_CONFLICT", Message: "Resource was modified by another process"}
	ErrInvalidState        = &DomainError{Kind: KindConflict, Code: "INVALID_STATE", Message: "Operation not allowed in current state"}
	ErrImmutable           = &DomainError{Kind: KindConflict, Code: "IMMUTABLE", Message: "Resource is sealed and cannot be modified"}
	ErrExternalDependency  = &DomainError{Kind: KindExternalDependency, Code: "EXTERNAL_DEPENDENCY", Message: "External dependency failed"}
)

func kindForCode(code string) ErrorKind {
	switch code {
	case ErrNotFound.Code:
		return KindNotFound
	case ErrInvalidInput.Code:
		return KindValidation
	case ErrExternalDependency.Code:
		return KindExternalDependency
	default:
		return KindConflict
	}
}

// KindOf returns the kind of the first DomainError in the chain, or KindInternal
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsNotFound reports whether err is a NotFound domain error
func IsNotFound(err error) bool { return err != nil && KindOf(err) == KindNotFound }

// IsValidation reports whether err is a Validation domain error
func IsValidation(err error) bool { return err != nil && KindOf(err) == KindValidation }

// IsConflict reports whether err is a Conflict domain error
func IsConflict(err error) bool { return err != nil && KindOf(err) == KindConflict }

// IsExternal reports whether err is an ExternalDependency domain error
func IsExternal(err error) bool { return err != nil && KindOf(err) == KindExternalDependency }
