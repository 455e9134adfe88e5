package apperror

import (
	"errors"
	"fmt"
)

// AppError is implemented by every error the use-case layer returns on purpose.
type AppError interface {
	error
	Category() string
}

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string    { return "validation: " + e.Msg }
func (e *ValidationError) Category() string { return "VALIDATION_ERROR" }

func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// InsufficientStockError means a depleting movement would drive stock below zero.
// Callers may recover (reject the order line, offer a backorder).
type InsufficientStockError struct {
	SizeID       string
	SubProductID string
	Requested    int64
	Available    int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for size %s of %s: requested %d, available %d",
		e.SizeID, e.SubProductID, e.Requested, e.Available)
}
func (e *InsufficientStockError) Category() string { return "INSUFFICIENT_STOCK" }

type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string    { return "not found: " + e.Msg }
func (e *NotFoundError) Category() string { return "NOT_FOUND" }

func NewNotFoundError(format string, args ...interface{}) error {
	return &NotFoundError{Msg: fmt.Sprintf(format, args...)}
}

type InvalidStateError struct {
	Msg string
}

func (e *InvalidStateError) Error() string    { return "invalid state: " + e.Msg }
func (e *InvalidStateError) Category() string { return "INVALID_STATE" }

func NewInvalidStateError(format string, args ...interface{}) error {
	return &InvalidStateError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError reports a lost optimistic-concurrency race. The write did not happen; retrying is safe.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string    { return "conflict: " + e.Msg }
func (e *ConflictError) Category() string { return "CONFLICT" }

func NewConflictError(format string, args ...interface{}) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

type InternalError struct {
	Msg string
	Err error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return "internal: " + e.Msg
	}
	return fmt.Sprintf("internal: %s: %v", e.Msg, e.Err)
}
func (e *InternalError) Category() string { return "INTERNAL_ERROR" }
func (e *InternalError) Unwrap() error    { return e.Err }

func NewInternalError(msg string, err error) error {
	return &InternalError{Msg: msg, Err: err}
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// CategoryOf returns the category of a typed error, or UNKNOWN_ERROR.
func CategoryOf(err error) string {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.Category()
	}
	return "UNKNOWN_ERROR"
}
