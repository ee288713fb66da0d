package node

import (
	"encoding/base64"
	"fmt"
	"strconv"
)

type Kind int

const (
	KindNone Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindBytes
	KindReference
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindBytes:
		return "bytes"
	case KindReference:
		return "reference"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is the scalar carried by a Node. The zero Value is None.
type Value struct {
	kind Kind
	str  string // String and Reference
	i    int64
	f    float64
	b    bool
	raw  []byte
}

var None = Value{}

func String(s string) Value { return Value{kind: KindString, str: s} }
func Int(i int64) Value { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Bytes(b []byte) Value { return Value{kind: KindBytes, raw: b} }
func Reference(expr string) Value { return Value{kind: KindReference, str: expr} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNone() bool { return v.kind == KindNone }
func (v Value) IsReference() bool { return v.kind == KindReference }

func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

func (v Value) Int64() (int64, bool) {
	return v.i, v.kind == KindInt
}

func (v Value) Float64() (float64, bool) {
	return v.f, v.kind == KindFloat
}

func (v Value) Boolean() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) Raw() ([]byte, bool) {
	return v.raw, v.kind == KindBytes
}

// Expr returns the unevaluated expression of a Reference value.
func (v Value) Expr() (string, bool) {
	return v.str, v.kind == KindReference
}

// Text renders the value as a string. Bytes are returned verbatim, references
// as their expression text and None as the empty string.
func (v Value) Text() string {
	switch v.kind {
	case KindString, KindReference:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindBytes:
		return string(v.raw)
	default:
		return ""
	}
}

// Truthy reports whether the value reads as true: Bool(true), a non-zero
// number, or the strings "true", "1" and "yes".
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		return v.str == "true" || v.str == "1" || v.str == "yes"
	default:
		return false
	}
}

// Any converts the value into a plain Go value (string, int64, float64, bool,
// []byte or nil).
func (v Value) Any() any {
	switch v.kind {
	case KindString, KindReference:
		return v.str
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindBytes:
		return v.raw
	default:
		return nil
	}
}

// FromAny wraps a plain Go value. Unknown types are rendered with fmt.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return None
	case Value:
		return t
	case string:
		return String(t)
	case []byte:
		return Bytes(t)
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint:
		return Int(int64(t))
	case uint32:
		return Int(int64(t))
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString, KindReference:
		return v.str == o.str
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindBool:
		return v.b == o.b
	case KindBytes:
		return string(v.raw) == string(o.raw)
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNone:
		return "<none>"
	case KindBytes:
		return "bytes:" + base64.StdEncoding.EncodeToString(v.raw)
	case KindReference:
		return "ref:" + v.str
	case KindString:
		return strconv.Quote(v.str)
	default:
		return v.Text()
	}
}
