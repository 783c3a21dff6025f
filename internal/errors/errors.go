// Package errors defines the application error taxonomy. The data layer maps
// database failures into these codes and the HTTP layer translates them onto
// response statuses, so neither side needs to know the other's vocabulary.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes an application error.
type ErrorCode string

const (
	// ErrCodeNotFound marks a lookup that matched nothing.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict marks a write rejected by a uniqueness rule.
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeValidation marks input the database or domain rules rejected.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeForeignKey marks a reference to a missing or still-used record.
	ErrCodeForeignKey ErrorCode = "foreign_key"
	// ErrCodeInternal marks an unexpected failure.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout marks a deadline that expired mid-operation.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled marks an operation abandoned by its caller.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError is a coded error with a user-presentable message. Field names the
// offending input field when one can be determined. Cause keeps the original
// error for logs; it never reaches API clients.
type AppError struct {
	Code    ErrorCode
	Message string
	Field   string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New builds an AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf builds an AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// FieldError builds an AppError attributed to a single input field.
func FieldError(code ErrorCode, field, message string) *AppError {
	return &AppError{Code: code, Message: message, Field: field}
}

// Wrap attaches a code and message to an existing error. Returns nil when err
// is nil so call sites can wrap unconditionally.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// HasCode reports whether err is, or wraps, an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// CodeOf returns the code carried by err, or "" for non-AppError chains.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// FieldOf returns the field attribution carried by err, if any.
func FieldOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
