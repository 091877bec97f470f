package value

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Encoding layout (all integers big endian):
//
//	null            tag
//	bool, intN/uN   tag | fixed width payload
//	str, binstr     tag | uint32 length | bytes
//	list            tag | uint32 count  | element...
//
// The encoding is canonical: every Value has exactly one encoding.

// MaxDepth bounds list nesting so that a hostile payload cannot exhaust the stack
const MaxDepth = 64

// ErrMalformedValue is returned for truncated input, unknown tags, length fields that
// point past the buffer and invalid UTF-8 in str values.
var ErrMalformedValue = errors.New("malformed value")

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// Encode returns the canonical encoding of v
func Encode(v Value) []byte {
	return AppendEncode(make([]byte, 0, v.SizeBytes()), v)
}

// AppendEncode appends the encoding of v to dst and returns the extended buffer
func AppendEncode(dst []byte, v Value) []byte {
	dst = append(dst, byte(v.kind))
	switch v.kind {
	case KindNull:
	case KindBool, KindInt8, KindUint8:
		dst = append(dst, byte(v.num))
	case KindInt16, KindUint16:
		dst = binary.BigEndian.AppendUint16(dst, uint16(v.num))
	case KindInt32, KindUint32:
		dst = binary.BigEndian.AppendUint32(dst, uint32(v.num))
	case KindInt64, KindUint64:
		dst = binary.BigEndian.AppendUint64(dst, v.num)
	case KindString, KindBinary:
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(v.raw)))
		dst = append(dst, v.raw...)
	case KindList:
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(v.list)))
		for _, e := range v.list {
			dst = AppendEncode(dst, e)
		}
	}
	return dst
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

// Decode decodes exactly one value that must span all of data
func Decode(data []byte) (Value, error) {
	v, n, err := DecodePrefix(data)
	if err != nil {
		return Value{}, err
	}
	if n != len(data) {
		return Value{}, fmt.Errorf("%w: %d trailing bytes", ErrMalformedValue, len(data)-n)
	}
	return v, nil
}

// DecodePrefix decodes one value from the start of data and returns it together with
// the number of bytes consumed.
func DecodePrefix(data []byte) (Value, int, error) {
	return decode(data, 0)
}

func decode(data []byte, depth int) (Value, int, error) {
	if len(data) < 1 {
		return Value{}, 0, fmt.Errorf("%w: data too short for tag", ErrMalformedValue)
	}
	kind := Kind(data[0])
	if !kind.Valid() {
		return Value{}, 0, fmt.Errorf("%w: unknown tag %d", ErrMalformedValue, data[0])
	}
	pos := 1

	switch kind {
	case KindNull:
		return Value{}, pos, nil

	case KindString, KindBinary:
		if len(data) < pos+4 {
			return Value{}, 0, fmt.Errorf("%w: data too short for %s length", ErrMalformedValue, kind)
		}
		n := int(binary.BigEndian.Uint32(data[pos:]))
		pos += 4
		if n < 0 || len(data)-pos < n {
			return Value{}, 0, fmt.Errorf("%w: %s length %d exceeds buffer", ErrMalformedValue, kind, n)
		}
		raw := string(data[pos : pos+n])
		if kind == KindString && !utf8.ValidString(raw) {
			return Value{}, 0, fmt.Errorf("%w: str is not valid UTF-8", ErrMalformedValue)
		}
		return Value{kind: kind, raw: raw}, pos + n, nil

	case KindList:
		if depth >= MaxDepth {
			return Value{}, 0, fmt.Errorf("%w: list nesting exceeds %d", ErrMalformedValue, MaxDepth)
		}
		if len(data) < pos+4 {
			return Value{}, 0, fmt.Errorf("%w: data too short for list count", ErrMalformedValue)
		}
		count := int(binary.BigEndian.Uint32(data[pos:]))
		pos += 4
		// every element takes at least one byte
		if count < 0 || len(data)-pos < count {
			return Value{}, 0, fmt.Errorf("%w: list count %d exceeds buffer", ErrMalformedValue, count)
		}
		elems := make([]Value, count)
		for i := range elems {
			e, n, err := decode(data[pos:], depth+1)
			if err != nil {
				return Value{}, 0, err
			}
			elems[i] = e
			pos += n
		}
		return Value{kind: KindList, list: elems}, pos, nil
	}

	// fixed width scalars
	w := kind.width()
	if len(data) < pos+w {
		return Value{}, 0, fmt.Errorf("%w: data too short for %s", ErrMalformedValue, kind)
	}
	b := data[pos : pos+w]
	v := Value{kind: kind}
	switch kind {
	case KindBool:
		if b[0] > 1 {
			return Value{}, 0, fmt.Errorf("%w: bool byte %d", ErrMalformedValue, b[0])
		}
		v.num = uint64(b[0])
	case KindInt8:
		v.num = uint64(int64(int8(b[0])))
	case KindInt16:
		v.num = uint64(int64(int16(binary.BigEndian.Uint16(b))))
	case KindInt32:
		v.num = uint64(int64(int32(binary.BigEndian.Uint32(b))))
	case KindInt64:
		v.num = binary.BigEndian.Uint64(b)
	case KindUint8:
		v.num = uint64(b[0])
	case KindUint16:
		v.num = uint64(binary.BigEndian.Uint16(b))
	case KindUint32:
		v.num = uint64(binary.BigEndian.Uint32(b))
	case KindUint64:
		v.num = binary.BigEndian.Uint64(b)
	}
	return v, pos + w, nil
}
