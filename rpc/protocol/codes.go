package protocol

import "strconv"

// Code is the error code of an error response
type Code uint16

const (
	CodeNil              Code = iota + 1 // key, table or keyspace not found
	CodeOverwrite                        // object already exists
	CodeWrongType                        // key or value does not match the table model
	CodeActionError                      // wrong number of arguments
	CodeUnknownAction                    // action name is not in the dispatch table
	CodeProtectedObject                  // default or system object
	CodeBadExpression                    // argument cannot be interpreted (entity, limit, option)
	CodeEncodingError                    // element of a well formed frame failed to decode
	CodeServerError                      // unexpected internal failure
	CodeUnknownModel                     // model expression cannot be parsed
	CodeNotEmpty                         // keyspace still holds tables
	CodeDefaultUnset                     // the session has no table selected
	CodeSnapshotBusy                     // a snapshot is already running
	CodeSnapshotDisabled                 // persistence is disabled
	CodeMalformedQuery                   // unreadable header, sent right before closing
	CodeBadContainerName                 // keyspace or table name fails validation
)

var codeNames = map[Code]string{
	CodeNil:              "Nil",
	CodeOverwrite:        "Overwrite",
	CodeWrongType:        "WrongType",
	CodeActionError:      "ActionError",
	CodeUnknownAction:    "UnknownAction",
	CodeProtectedObject:  "ProtectedObject",
	CodeBadExpression:    "BadExpression",
	CodeEncodingError:    "EncodingError",
	CodeServerError:      "ServerError",
	CodeUnknownModel:     "UnknownModel",
	CodeNotEmpty:         "NotEmpty",
	CodeDefaultUnset:     "DefaultUnset",
	CodeSnapshotBusy:     "SnapshotBusy",
	CodeSnapshotDisabled: "SnapshotDisabled",
	CodeMalformedQuery:   "MalformedQuery",
	CodeBadContainerName: "BadContainerName",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "Code(" + strconv.Itoa(int(c)) + ")"
}
