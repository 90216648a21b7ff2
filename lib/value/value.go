package value

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// --------------------------------------------------------------------------
// Kind
// --------------------------------------------------------------------------

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindEmpty   Kind = iota // No value (null).
	KindInteger             // Signed 64 bit integer.
	KindString              // UTF-8 string.
	KindBytes               // Raw byte slice.
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindInteger:
		return "integer"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

// ErrType is matched (errors.Is) by every *TypeError.
var ErrType = errors.New("value type mismatch")

// TypeError is returned by the conversion functions when the Value holds a
// different variant than the one requested.
type TypeError struct {
	Want Kind
	Got  Kind
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("value type mismatch: want %s, got %s", e.Want, e.Got)
}

func (e *TypeError) Is(target error) bool {
	return target == ErrType
}

// --------------------------------------------------------------------------
// Value
// --------------------------------------------------------------------------

// Value is a tagged variant for the scalar values a record bin or a user key
// can hold. The zero Value is Empty.
type Value struct {
	kind Kind
	i    int64
	s    string
	b    []byte
}

// EmptyValue returns the Empty variant.
func EmptyValue() Value { return Value{} }

// IntegerValue wraps an int64.
func IntegerValue(i int64) Value { return Value{kind: KindInteger, i: i} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// BytesValue wraps a byte slice. The slice is copied.
func BytesValue(b []byte) Value {
	c := make([]byte, len(b))
	copy(c, b)
	return Value{kind: KindBytes, b: c}
}

// FromObject converts a dynamically typed Go value into a Value.
// nil maps to Empty. All Go integer types map to Integer; unsigned values that
// do not fit into an int64 are rejected.
func FromObject(obj interface{}) (Value, error) {
	switch v := obj.(type) {
	case nil:
		return EmptyValue(), nil
	case Value:
		return v, nil
	case *Value:
		if v == nil {
			return EmptyValue(), nil
		}
		return *v, nil
	case int:
		return IntegerValue(int64(v)), nil
	case int8:
		return IntegerValue(int64(v)), nil
	case int16:
		return IntegerValue(int64(v)), nil
	case int32:
		return IntegerValue(int64(v)), nil
	case int64:
		return IntegerValue(v), nil
	case uint8:
		return IntegerValue(int64(v)), nil
	case uint16:
		return IntegerValue(int64(v)), nil
	case uint32:
		return IntegerValue(int64(v)), nil
	case uint:
		if uint64(v) > 1<<63-1 {
			return Value{}, fmt.Errorf("unsigned value %d overflows int64", v)
		}
		return IntegerValue(int64(v)), nil
	case uint64:
		if v > 1<<63-1 {
			return Value{}, fmt.Errorf("unsigned value %d overflows int64", v)
		}
		return IntegerValue(int64(v)), nil
	case string:
		return StringValue(v), nil
	case []byte:
		return BytesValue(v), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", obj)
	}
}

// Kind returns the variant of the value.
func (v Value) Kind() Kind { return v.kind }

// IsEmpty reports whether the value is the Empty variant.
func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// AsInteger returns the integer or a *TypeError.
func (v Value) AsInteger() (int64, error) {
	if v.kind != KindInteger {
		return 0, &TypeError{Want: KindInteger, Got: v.kind}
	}
	return v.i, nil
}

// AsString returns the string or a *TypeError.
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", &TypeError{Want: KindString, Got: v.kind}
	}
	return v.s, nil
}

// AsBytes returns a copy of the byte slice or a *TypeError.
func (v Value) AsBytes() ([]byte, error) {
	if v.kind != KindBytes {
		return nil, &TypeError{Want: KindBytes, Got: v.kind}
	}
	c := make([]byte, len(v.b))
	copy(c, v.b)
	return c, nil
}

// Object returns the dynamically typed Go value: nil, int64, string or []byte.
func (v Value) Object() interface{} {
	switch v.kind {
	case KindInteger:
		return v.i
	case KindString:
		return v.s
	case KindBytes:
		return v.b
	default:
		return nil
	}
}

// Equal reports whether both values hold the same variant and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInteger:
		return v.i == o.i
	case KindString:
		return v.s == o.s
	case KindBytes:
		return bytes.Equal(v.b, o.b)
	default:
		return true
	}
}

// String formats the value for log output. Empty renders as "null".
func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindString:
		return v.s
	case KindBytes:
		return fmt.Sprintf("%x", v.b)
	default:
		return "null"
	}
}

// keyBytes returns the bytes hashed into a record digest.
func (v Value) keyBytes() []byte {
	switch v.kind {
	case KindInteger:
		b := make([]byte, 8)
		putUint64(b, uint64(v.i))
		return b
	case KindString:
		return []byte(v.s)
	case KindBytes:
		return v.b
	default:
		return nil
	}
}

// DigestInput returns the kind byte followed by the canonical key bytes.
// It is the value part of a record digest.
func (v Value) DigestInput() []byte {
	kb := v.keyBytes()
	out := make([]byte, 0, 1+len(kb))
	out = append(out, byte(v.kind))
	return append(out, kb...)
}
