package protocol

import (
	"fmt"

	"github.com/ValentinKolb/sKV/lib/value"
)

// Response is the result of one query: a single value, a list of values or an error.
// Errors travel as the two elements [uint16 code, str message].
type Response struct {
	Kind   Kind
	Values []value.Value // one element for KindValue
	Code   Code          // KindError only
	Msg    string        // KindError only
}

// Single creates a single value response
func Single(v value.Value) Response {
	return Response{Kind: KindValue, Values: []value.Value{v}}
}

// ListOf creates a list response
func ListOf(vs []value.Value) Response {
	return Response{Kind: KindList, Values: vs}
}

// Errorf creates an error response
func Errorf(code Code, format string, args ...any) Response {
	return Response{Kind: KindError, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// IsError reports whether r is an error response
func (r Response) IsError() bool { return r.Kind == KindError }

// Value returns the single value of a KindValue response
func (r Response) Value() value.Value {
	if r.Kind != KindValue || len(r.Values) == 0 {
		return value.Null()
	}
	return r.Values[0]
}

func (r Response) elements() []value.Value {
	if r.Kind == KindError {
		return []value.Value{value.Uint16(uint16(r.Code)), value.String(r.Msg)}
	}
	return r.Values
}

// Append appends the wire form of r to dst
func (r Response) Append(dst []byte) []byte {
	return AppendFrame(dst, MarkerResponse, r.Kind, r.elements())
}

// Encode returns the wire form of r
func (r Response) Encode() []byte {
	return r.Append(make([]byte, 0, FrameSize(r.elements())))
}

// ParseResponse interprets a response frame
func ParseResponse(f Frame) (Response, error) {
	switch f.Kind {
	case KindValue:
		if len(f.Elements) != 1 {
			return Response{}, fmt.Errorf("%w: value response with %d elements", ErrMalformedHeader, len(f.Elements))
		}
		return Single(f.Elements[0]), nil
	case KindList:
		return ListOf(f.Elements), nil
	case KindError:
		if len(f.Elements) != 2 {
			return Response{}, fmt.Errorf("%w: error response with %d elements", ErrMalformedHeader, len(f.Elements))
		}
		code, ok := f.Elements[0].AsUint()
		msg, ok2 := f.Elements[1].AsString()
		if !ok || !ok2 || f.Elements[0].Kind() != value.KindUint16 {
			return Response{}, fmt.Errorf("%w: error response must be [uint16, str]", ErrMalformedHeader)
		}
		return Response{Kind: KindError, Code: Code(code), Msg: msg}, nil
	}
	return Response{}, fmt.Errorf("%w: frame kind %d", ErrMalformedHeader, f.Kind)
}

func (r Response) String() string {
	switch r.Kind {
	case KindError:
		return fmt.Sprintf("(error) %s: %s", r.Code, r.Msg)
	case KindList:
		return value.List(r.Values...).String()
	default:
		return r.Value().String()
	}
}
