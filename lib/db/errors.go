package db

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Engine Errors
// --------------------------------------------------------------------------

// ErrCode classifies an engine failure. Every code maps to exactly one response code
// in the wire protocol, none of them is fatal to the process.
type ErrCode uint8

const (
	CodeNotFound        ErrCode = iota + 1 // keyspace, table or key does not exist
	CodeAlreadyExists                      // keyspace or table name is taken
	CodeTypeMismatch                       // key or value violates the table model
	CodeProtectedObject                    // default or system object cannot be changed
	CodeNotEmpty                           // keyspace still holds tables
	CodeBadName                            // container name fails validation
	CodeUnknownModel                       // model or type name is not known
	CodeBadExpression                      // model or entity expression is malformed
)

func (c ErrCode) String() string {
	switch c {
	case CodeNotFound:
		return "NotFound"
	case CodeAlreadyExists:
		return "AlreadyExists"
	case CodeTypeMismatch:
		return "TypeMismatch"
	case CodeProtectedObject:
		return "ProtectedObject"
	case CodeNotEmpty:
		return "NotEmpty"
	case CodeBadName:
		return "BadName"
	case CodeUnknownModel:
		return "UnknownModel"
	case CodeBadExpression:
		return "BadExpression"
	default:
		return fmt.Sprintf("ErrCode(%d)", uint8(c))
	}
}

// Error wraps an ErrCode and a message naming the affected object
type Error struct {
	Code ErrCode
	Msg  string
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Is matches any *Error with the same code, so errors.Is(err, ErrNotFound) works for
// every not found error regardless of its message.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// NewError creates an engine error with a formatted message
func NewError(code ErrCode, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is
var (
	ErrNotFound        = &Error{Code: CodeNotFound}
	ErrAlreadyExists   = &Error{Code: CodeAlreadyExists}
	ErrTypeMismatch    = &Error{Code: CodeTypeMismatch}
	ErrProtectedObject = &Error{Code: CodeProtectedObject}
	ErrNotEmpty        = &Error{Code: CodeNotEmpty}
	ErrBadName         = &Error{Code: CodeBadName}
	ErrUnknownModel    = &Error{Code: CodeUnknownModel}
	ErrBadExpression   = &Error{Code: CodeBadExpression}
)

// CodeOf returns the code of an engine error or 0 if err is not one
func CodeOf(err error) ErrCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}
