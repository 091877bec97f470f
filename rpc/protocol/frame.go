// Package protocol implements the sKV wire grammar shared by queries and responses.
//
// Every frame is a metaframe followed by a dataframe:
//
//	metaframe  marker(1) | version(1) | kind(1) | count(uint32) | size(uint32) * count
//	dataframe  value encoding * count, element i spans exactly size[i] bytes
//
// All integers are big endian, values use the encoding of package value. Queries use the
// '*' marker and carry the action name as their first (str) element. Responses use the
// '+' marker and one of three kinds: a single value, a list of values or an error.
//
// The Parser is incremental and holds no state beyond the current frame, so one parser
// is created per connection and reused for every frame on it.
package protocol

import (
	"encoding/binary"
	"errors"

	"github.com/ValentinKolb/sKV/lib/value"
)

const (
	MarkerQuery    byte = '*'
	MarkerResponse byte = '+'

	// Version is the wire protocol version carried in every metaframe
	Version byte = 1

	// HeaderSize is the fixed part of the metaframe
	HeaderSize = 7

	// DefaultMaxQuerySize bounds the declared size of a single frame (metaframe + dataframe)
	DefaultMaxQuerySize = 16 << 20

	// MaxElements bounds the element count of a frame independent of its byte size
	MaxElements = 1 << 20
)

// Kind is the frame kind byte. Queries always use KindValue.
type Kind byte

const (
	KindValue Kind = iota
	KindList
	KindError
)

var (
	// ErrIncomplete means the parser needs more input, it is not a failure
	ErrIncomplete = errors.New("incomplete frame")

	// ErrMalformedHeader is returned for metaframes with a bad marker, version or kind,
	// inconsistent size fields or a declared size above the configured maximum.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrUnexpectedEOF means the stream ended in the middle of a frame
	ErrUnexpectedEOF = errors.New("unexpected eof inside frame")

	// ErrMalformedQuery is returned when a complete frame holds something other than a
	// valid query (undecodable element, missing action name)
	ErrMalformedQuery = errors.New("malformed query")
)

// Frame is one fully received frame
type Frame struct {
	Kind     Kind
	Elements []value.Value
}

// AppendFrame appends the wire form of a frame to dst
func AppendFrame(dst []byte, marker byte, kind Kind, elems []value.Value) []byte {
	dst = append(dst, marker, Version, byte(kind))
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(elems)))
	for _, e := range elems {
		dst = binary.BigEndian.AppendUint32(dst, uint32(e.SizeBytes()))
	}
	for _, e := range elems {
		dst = value.AppendEncode(dst, e)
	}
	return dst
}

// FrameSize returns the number of bytes AppendFrame writes
func FrameSize(elems []value.Value) int {
	n := HeaderSize + 4*len(elems)
	for _, e := range elems {
		n += e.SizeBytes()
	}
	return n
}
