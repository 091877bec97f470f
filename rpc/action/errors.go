package action

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/sKV/lib/db"
	"github.com/ValentinKolb/sKV/lib/persist"
	"github.com/ValentinKolb/sKV/rpc/protocol"
)

// ErrKind classifies a failure detected by the dispatcher before the engine is touched
type ErrKind uint8

const (
	WrongArity ErrKind = iota + 1
	TypeMismatch
	UnknownAction
	BadExpression
	DefaultUnset
)

func (k ErrKind) String() string {
	switch k {
	case WrongArity:
		return "WrongArity"
	case TypeMismatch:
		return "TypeMismatch"
	case UnknownAction:
		return "UnknownAction"
	case BadExpression:
		return "BadExpression"
	case DefaultUnset:
		return "DefaultUnset"
	default:
		return fmt.Sprintf("ErrKind(%d)", uint8(k))
	}
}

// Error is a validation failure of a query
type Error struct {
	Kind ErrKind
	Msg  string
}

func (e *Error) Error() string { return e.Kind.String() + ": " + e.Msg }

func newError(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

var actionCodes = map[ErrKind]protocol.Code{
	WrongArity:    protocol.CodeActionError,
	TypeMismatch:  protocol.CodeWrongType,
	UnknownAction: protocol.CodeUnknownAction,
	BadExpression: protocol.CodeBadExpression,
	DefaultUnset:  protocol.CodeDefaultUnset,
}

var engineCodes = map[db.ErrCode]protocol.Code{
	db.CodeNotFound:        protocol.CodeNil,
	db.CodeAlreadyExists:   protocol.CodeOverwrite,
	db.CodeTypeMismatch:    protocol.CodeWrongType,
	db.CodeProtectedObject: protocol.CodeProtectedObject,
	db.CodeNotEmpty:        protocol.CodeNotEmpty,
	db.CodeBadName:         protocol.CodeBadContainerName,
	db.CodeUnknownModel:    protocol.CodeUnknownModel,
	db.CodeBadExpression:   protocol.CodeBadExpression,
}

// ErrorResponse translates any error produced while handling a query into an error
// response. Unknown errors become ServerError.
func ErrorResponse(err error) protocol.Response {
	var (
		aerr *Error
		eerr *db.Error
	)
	switch {
	case errors.As(err, &aerr):
		return protocol.Errorf(actionCodes[aerr.Kind], "%s", aerr.Msg)
	case errors.As(err, &eerr):
		if code, ok := engineCodes[eerr.Code]; ok {
			return protocol.Errorf(code, "%s", eerr.Msg)
		}
	case errors.Is(err, persist.ErrSnapshotBusy):
		return protocol.Errorf(protocol.CodeSnapshotBusy, "a snapshot is already running")
	case errors.Is(err, persist.ErrSnapshotDisabled):
		return protocol.Errorf(protocol.CodeSnapshotDisabled, "persistence is disabled")
	}
	Logger.Errorf("unexpected error while handling query: %v", err)
	return protocol.Errorf(protocol.CodeServerError, "internal server error")
}
