// Package apperrors defines the typed outcomes of the voucher lifecycle.
// Business-rule violations are expected results, not control flow: callers
// branch on the error kind and relay the specific reason to the operator.
package apperrors

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or missing required input. No state was
// changed.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Validation builds a ValidationError from a format string.
func Validation(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports that a referenced record does not exist.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

// NotFound builds a NotFoundError.
func NotFound(entity, key string) error {
	return &NotFoundError{Entity: entity, Key: key}
}

// ConflictError reports a lost concurrent race or a duplicate pending
// request. Distinct from NotFound so the caller can explain "already used"
// versus "does not exist".
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string {
	return e.Msg
}

// Conflict builds a ConflictError from a format string.
func Conflict(format string, args ...interface{}) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

// LimitExceededError reports that the download ceiling was reached. Used and
// Ceiling let the caller explain exhaustion rather than a generic failure.
type LimitExceededError struct {
	Used    int
	Ceiling int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("download limit reached (%d/%d)", e.Used, e.Ceiling)
}

// PersistenceError wraps an underlying store failure. Fatal for the current
// operation; the core never retries on its own.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Persistence wraps err as a PersistenceError for the named operation.
func Persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

// IsLimitExceeded reports whether err is a LimitExceededError.
func IsLimitExceeded(err error) bool {
	var e *LimitExceededError
	return errors.As(err, &e)
}
