// Package value implements the tagged union stored in sKV tables and carried on the wire.
//
// A Value is immutable once constructed. Scalars are held inline, strings and binary blobs
// share one string-backed field (so copies never alias caller memory) and lists hold
// independently tagged elements, which means heterogeneous lists are valid.
package value

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// --------------------------------------------------------------------------
// Kinds
// --------------------------------------------------------------------------

// Kind is the type tag of a Value. The numeric values are part of the wire and
// snapshot format and must never be reordered.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindString
	KindBinary
	KindList

	kindCount // sentinel, not a valid tag
)

var kindNames = [...]string{
	KindNull:   "null",
	KindBool:   "bool",
	KindInt8:   "int8",
	KindInt16:  "int16",
	KindInt32:  "int32",
	KindInt64:  "int64",
	KindUint8:  "uint8",
	KindUint16: "uint16",
	KindUint32: "uint32",
	KindUint64: "uint64",
	KindString: "str",
	KindBinary: "binstr",
	KindList:   "list",
}

// String returns the type name used in models and error messages
func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return "unknown(" + strconv.Itoa(int(k)) + ")"
}

// Valid reports whether k is a known tag
func (k Kind) Valid() bool { return k < kindCount }

// IsSigned reports whether k is one of the signed integer kinds
func (k Kind) IsSigned() bool { return k >= KindInt8 && k <= KindInt64 }

// IsUnsigned reports whether k is one of the unsigned integer kinds
func (k Kind) IsUnsigned() bool { return k >= KindUint8 && k <= KindUint64 }

// IsScalar reports whether k is neither a list nor null
func (k Kind) IsScalar() bool { return k != KindNull && k != KindList && k.Valid() }

// width returns the encoded byte width of fixed-size kinds
func (k Kind) width() int {
	switch k {
	case KindBool, KindInt8, KindUint8:
		return 1
	case KindInt16, KindUint16:
		return 2
	case KindInt32, KindUint32:
		return 4
	case KindInt64, KindUint64:
		return 8
	default:
		return 0
	}
}

// --------------------------------------------------------------------------
// Value
// --------------------------------------------------------------------------

// Value is a tagged union over null, bool, fixed width integers, UTF-8 strings,
// binary blobs and lists of values. The zero Value is Null.
type Value struct {
	kind Kind
	num  uint64  // bool (0/1) and all integers, signed ones stored two's complement
	raw  string  // str and binstr payload
	list []Value // list elements, never shared with callers
}

// Null returns the null value
func Null() Value { return Value{} }

// Bool wraps a boolean
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

func Int8(i int8) Value   { return Value{kind: KindInt8, num: uint64(int64(i))} }
func Int16(i int16) Value { return Value{kind: KindInt16, num: uint64(int64(i))} }
func Int32(i int32) Value { return Value{kind: KindInt32, num: uint64(int64(i))} }
func Int64(i int64) Value { return Value{kind: KindInt64, num: uint64(i)} }

func Uint8(u uint8) Value   { return Value{kind: KindUint8, num: uint64(u)} }
func Uint16(u uint16) Value { return Value{kind: KindUint16, num: uint64(u)} }
func Uint32(u uint32) Value { return Value{kind: KindUint32, num: uint64(u)} }
func Uint64(u uint64) Value { return Value{kind: KindUint64, num: u} }

// String wraps a UTF-8 string. Invalid UTF-8 is rejected by the codec, so callers holding
// arbitrary bytes should use Binary instead.
func String(s string) Value { return Value{kind: KindString, raw: s} }

// Binary copies b into a binary blob value
func Binary(b []byte) Value { return Value{kind: KindBinary, raw: string(b)} }

// BinaryString wraps s as a binary blob without copying
func BinaryString(s string) Value { return Value{kind: KindBinary, raw: s} }

// List builds a list from the given elements. The slice is copied.
func List(elems ...Value) Value {
	l := make([]Value, len(elems))
	copy(l, elems)
	return Value{kind: KindList, list: l}
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Kind returns the tag of v
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload; ok is false for other kinds
func (v Value) AsBool() (b bool, ok bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.num == 1, true
}

// AsInt returns any signed integer widened to int64
func (v Value) AsInt() (int64, bool) {
	if !v.kind.IsSigned() {
		return 0, false
	}
	return int64(v.num), true
}

// AsUint returns any unsigned integer widened to uint64
func (v Value) AsUint() (uint64, bool) {
	if !v.kind.IsUnsigned() {
		return 0, false
	}
	return v.num, true
}

// AsString returns the payload of a str value
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.raw, true
}

// AsBinary returns a copy of the payload of a binstr value
func (v Value) AsBinary() ([]byte, bool) {
	if v.kind != KindBinary {
		return nil, false
	}
	return []byte(v.raw), true
}

// AsBytes returns the payload of either a str or binstr value as a string, used wherever
// both are accepted as raw bytes (keys, names, echo payloads).
func (v Value) AsBytes() (string, bool) {
	if v.kind != KindString && v.kind != KindBinary {
		return "", false
	}
	return v.raw, true
}

// Len returns the element count of a list, the byte length of str/binstr and 0 otherwise
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindString, KindBinary:
		return len(v.raw)
	default:
		return 0
	}
}

// Index returns the i-th element of a list. It panics if v is not a list or i is out of range.
func (v Value) Index(i int) Value {
	if v.kind != KindList {
		panic("value: Index on " + v.kind.String())
	}
	return v.list[i]
}

// Elems returns a copy of the list elements (nil for non lists)
func (v Value) Elems() []Value {
	if v.kind != KindList {
		return nil
	}
	out := make([]Value, len(v.list))
	copy(out, v.list)
	return out
}

// WithKind returns v re-tagged as k. Only str<->binstr conversion is supported, any other
// combination returns v unchanged and false.
func (v Value) WithKind(k Kind) (Value, bool) {
	if v.kind == k {
		return v, true
	}
	if (v.kind == KindString || v.kind == KindBinary) && (k == KindString || k == KindBinary) {
		if k == KindString && !utf8.ValidString(v.raw) {
			return v, false
		}
		return Value{kind: k, raw: v.raw}, true
	}
	return v, false
}

// --------------------------------------------------------------------------
// Equality and size
// --------------------------------------------------------------------------

// Equal reports whether a and b have the same kind and payload. Integers of different
// widths are never equal, lists compare element-wise.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString, KindBinary:
		return v.raw == o.raw
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	default:
		return v.num == o.num
	}
}

// SizeBytes returns the exact number of bytes Encode produces for v
func (v Value) SizeBytes() int {
	switch v.kind {
	case KindNull:
		return 1
	case KindString, KindBinary:
		return 1 + 4 + len(v.raw)
	case KindList:
		n := 1 + 4
		for _, e := range v.list {
			n += e.SizeBytes()
		}
		return n
	default:
		return 1 + v.kind.width()
	}
}

// String renders v for logs and the command line client
func (v Value) String() string {
	var sb strings.Builder
	v.format(&sb)
	return sb.String()
}

func (v Value) format(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString("(nil)")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.num == 1))
	case KindInt8, KindInt16, KindInt32, KindInt64:
		sb.WriteString(strconv.FormatInt(int64(v.num), 10))
	case KindUint8, KindUint16, KindUint32, KindUint64:
		sb.WriteString(strconv.FormatUint(v.num, 10))
	case KindString:
		sb.WriteString(strconv.Quote(v.raw))
	case KindBinary:
		if utf8.ValidString(v.raw) {
			sb.WriteString("b" + strconv.Quote(v.raw))
		} else {
			fmt.Fprintf(sb, "0x%x", v.raw)
		}
	case KindList:
		sb.WriteByte('[')
		for i, e := range v.list {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.format(sb)
		}
		sb.WriteByte(']')
	}
}
