package protocol

import (
	"fmt"

	"github.com/ValentinKolb/sKV/lib/value"
)

// Query is one decoded client request: an action name and its arguments.
// It is built from one frame and consumed once by the dispatcher.
type Query struct {
	Action string
	Args   []value.Value
}

// ParseQuery interprets a query frame. The first element must be a non empty str
// holding the action name.
func ParseQuery(f Frame) (Query, error) {
	if len(f.Elements) == 0 {
		return Query{}, fmt.Errorf("%w: no action", ErrMalformedQuery)
	}
	action, ok := f.Elements[0].AsString()
	if !ok || action == "" {
		return Query{}, fmt.Errorf("%w: action must be a non empty str, got %s", ErrMalformedQuery, f.Elements[0].Kind())
	}
	return Query{Action: action, Args: f.Elements[1:]}, nil
}

// Elements returns the wire elements of q
func (q Query) Elements() []value.Value {
	elems := make([]value.Value, 0, len(q.Args)+1)
	elems = append(elems, value.String(q.Action))
	return append(elems, q.Args...)
}

// AppendQuery appends the wire form of a query to dst
func AppendQuery(dst []byte, action string, args ...value.Value) []byte {
	return AppendFrame(dst, MarkerQuery, KindValue, Query{Action: action, Args: args}.Elements())
}

// EncodeQuery returns the wire form of a query
func EncodeQuery(action string, args ...value.Value) []byte {
	return AppendQuery(nil, action, args...)
}

func (q Query) String() string {
	return fmt.Sprintf("%s %v", q.Action, q.Args)
}
