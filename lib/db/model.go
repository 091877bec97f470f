package db

import (
	"strings"

	"github.com/ValentinKolb/sKV/lib/value"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Type is a column type usable in a model expression
type Type uint8

const (
	TypeAny Type = iota
	TypeStr
	TypeBinstr
	TypeBool
	TypeInt
	TypeUint
	TypeList
)

var typeNames = map[string]Type{
	"any":    TypeAny,
	"str":    TypeStr,
	"binstr": TypeBinstr,
	"bool":   TypeBool,
	"int":    TypeInt,
	"uint":   TypeUint,
	"list":   TypeList,
}

func (t Type) String() string {
	for name, tt := range typeNames {
		if tt == t {
			return name
		}
	}
	return "invalid"
}

// accepts reports whether v can be stored in a column of type t. binstr accepts str
// values as raw bytes, integer types accept every width of their signedness.
func (t Type) accepts(v value.Value) bool {
	k := v.Kind()
	switch t {
	case TypeAny:
		return true
	case TypeStr:
		return k == value.KindString
	case TypeBinstr:
		return k == value.KindBinary || k == value.KindString
	case TypeBool:
		return k == value.KindBool
	case TypeInt:
		return k.IsSigned()
	case TypeUint:
		return k.IsUnsigned()
	case TypeList:
		return k == value.KindList
	}
	return false
}

// --------------------------------------------------------------------------
// Model
// --------------------------------------------------------------------------

// Model is the fixed type declaration of a table. Two forms exist:
//
//	keymap(K,V)  key/value-pair model, K is str or binstr
//	keymap(V)    single-type model, keys are raw bytes
//
// V may be any Type, `list<T>` additionally constrains every element to the scalar T.
type Model struct {
	Key    Type
	Value  Type
	Elem   Type // element type when Value is TypeList, TypeAny means unconstrained
	Single bool // declared as keymap(V)
}

// ParseModel parses a model expression. Malformed syntax (unbalanced parentheses,
// empty or surplus type arguments) fails with BadExpression, a model or type name
// that does not exist fails with UnknownModel.
func ParseModel(expr string) (Model, error) {
	s := strings.ReplaceAll(expr, " ", "")
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return Model{}, NewError(CodeBadExpression, "expected name(types...), got %q", expr)
	}
	if name := s[:open]; name != "keymap" {
		return Model{}, NewError(CodeUnknownModel, "unknown model %q", name)
	}
	inner := s[open+1 : len(s)-1]
	if inner == "" {
		return Model{}, NewError(CodeBadExpression, "keymap takes one or two types")
	}
	args := strings.Split(inner, ",")
	for _, a := range args {
		if a == "" {
			return Model{}, NewError(CodeBadExpression, "empty type argument in %q", expr)
		}
	}

	var m Model
	switch len(args) {
	case 1:
		m.Single = true
		m.Key = TypeBinstr
	case 2:
		k, ok := typeNames[args[0]]
		if !ok || (k != TypeStr && k != TypeBinstr) {
			return Model{}, NewError(CodeUnknownModel, "key type must be str or binstr, got %q", args[0])
		}
		m.Key = k
	default:
		return Model{}, NewError(CodeBadExpression, "keymap takes one or two types, got %d", len(args))
	}

	vt := args[len(args)-1]
	if inner, ok := strings.CutPrefix(vt, "list<"); ok {
		elem, found := strings.CutSuffix(inner, ">")
		if !found || elem == "" {
			return Model{}, NewError(CodeBadExpression, "unterminated list type %q", vt)
		}
		t, known := typeNames[elem]
		if !known || t == TypeList || t == TypeAny {
			return Model{}, NewError(CodeUnknownModel, "invalid list element type in %q", vt)
		}
		m.Value, m.Elem = TypeList, t
		return m, nil
	}
	t, ok := typeNames[vt]
	if !ok {
		return Model{}, NewError(CodeUnknownModel, "unknown type %q", vt)
	}
	m.Value = t
	return m, nil
}

// MustParseModel is ParseModel for constant expressions
func MustParseModel(expr string) Model {
	m, err := ParseModel(expr)
	if err != nil {
		panic(err)
	}
	return m
}

// String renders the model in canonical form, ParseModel(m.String()) == m
func (m Model) String() string {
	v := m.Value.String()
	if m.Value == TypeList && m.Elem != TypeAny {
		v = "list<" + m.Elem.String() + ">"
	}
	if m.Single {
		return "keymap(" + v + ")"
	}
	return "keymap(" + m.Key.String() + "," + v + ")"
}

// CheckKey validates a key and returns its raw bytes
func (m Model) CheckKey(key value.Value) (string, error) {
	if !m.Key.accepts(key) {
		return "", NewError(CodeTypeMismatch, "key of type %s does not match %s", key.Kind(), m.Key)
	}
	raw, _ := key.AsBytes()
	return raw, nil
}

// KeyValue converts stored raw key bytes back into a Value of the model's key type
func (m Model) KeyValue(raw string) value.Value {
	if m.Key == TypeStr {
		return value.String(raw)
	}
	return value.BinaryString(raw)
}

// CheckValue validates v against the model and returns the value as it is stored.
// Values for binstr columns are normalized to binary.
func (m Model) CheckValue(v value.Value) (value.Value, error) {
	if !m.Value.accepts(v) {
		return value.Value{}, NewError(CodeTypeMismatch, "value of type %s does not match %s", v.Kind(), m.Value)
	}
	switch m.Value {
	case TypeBinstr:
		v, _ = v.WithKind(value.KindBinary)
	case TypeList:
		if m.Elem != TypeAny {
			for i := 0; i < v.Len(); i++ {
				if e := v.Index(i); !m.Elem.accepts(e) {
					return value.Value{}, NewError(CodeTypeMismatch, "list element %d of type %s does not match %s", i, e.Kind(), m.Elem)
				}
			}
		}
	}
	return v, nil
}
