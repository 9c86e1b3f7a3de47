// Package apperr defines the error taxonomy shared by stores, services and
// handlers.
//
// Stores return the sentinels (optionally wrapped). Services translate them
// into *Error values carrying a Code, which handlers map to HTTP statuses.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors for storage facts.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

// Code classifies a failure for the caller.
type Code string

const (
	CodeValidation   Code = "validation"
	CodeNotFound     Code = "not_found"
	CodeAccessDenied Code = "access_denied"
	CodeDuplicate    Code = "duplicate"
	CodeUnauthorized Code = "unauthorized"
	CodeInternal     Code = "internal"
)

// Error is a classified application error. Fields maps form field names to
// messages for validation failures that concern specific inputs.
type Error struct {
	Code    Code
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates an Error that keeps err in its chain.
func Wrap(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// Validation reports a single invalid field.
func Validation(field, msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg, Fields: map[string]string{field: msg}}
}

// FieldError reports err as a validation failure of field, keeping err in
// the chain so callers can match the underlying sentinel.
func FieldError(field string, err error) *Error {
	return &Error{Code: CodeValidation, Message: err.Error(), Fields: map[string]string{field: err.Error()}, Err: err}
}

// Invalid reports several invalid fields at once.
func Invalid(fields map[string]string) *Error {
	msg := "invalid input"
	if len(fields) == 1 {
		for _, m := range fields {
			msg = m
		}
	}
	return &Error{Code: CodeValidation, Message: msg, Fields: fields}
}

// Duplicate reports a uniqueness clash on field.
func Duplicate(field, msg string, err error) *Error {
	return &Error{Code: CodeDuplicate, Message: msg, Fields: map[string]string{field: msg}, Err: err}
}

// NotFound hides whether the record exists at all.
func NotFound(what string) *Error {
	return &Error{Code: CodeNotFound, Message: what + " not found"}
}

// AccessDenied discloses that the record exists but withholds it.
func AccessDenied(msg string) *Error {
	return &Error{Code: CodeAccessDenied, Message: msg}
}

// Unauthorized means the caller must authenticate first.
func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// CodeOf returns the code of the first *Error in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// FieldsOf returns the field messages of a validation error, if any.
func FieldsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
