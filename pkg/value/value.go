// Package value provides the tagged runtime values of the script runtime and the
// shape shared by every native component.
package value

import (
	"math"
	"strconv"
)

// Kind identifies the variant of a Value.
// Dynamic and Void only appear in signatures.
type Kind int

const (
	KindInvalid Kind = iota
	KindBoolean
	KindString
	KindInt32
	KindFloat
	KindDouble
	KindObject
	KindDynamic
	KindVoid
)

// String returns the script-facing name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "Invalid"
	case KindBoolean:
		return "Boolean"
	case KindString:
		return "String"
	case KindInt32:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindDouble:
		return "Double"
	case KindObject:
		return "Object"
	case KindDynamic:
		return "Dynamic"
	case KindVoid:
		return "Void"
	default:
		return "Unknown"
	}
}

// IsNumeric reports whether the kind is Int32, Float or Double.
func (k Kind) IsNumeric() bool {
	return k == KindInt32 || k == KindFloat || k == KindDouble
}

// Value is a runtime value.
type Value interface {
	Kind() Kind
	String() string
	Equal(other Value) bool
}

type invalid struct{}

// Invalid is the single Invalid value. It is also the sentinel returned by
// constructors that could not build a component.
var Invalid Value = invalid{}

func (invalid) Kind() Kind     { return KindInvalid }
func (invalid) String() string { return "invalid" }
func (invalid) Equal(other Value) bool {
	return other != nil && other.Kind() == KindInvalid
}

// IsInvalid reports whether v is nil or Invalid.
func IsInvalid(v Value) bool {
	return v == nil || v.Kind() == KindInvalid
}

// Bool is a Boolean value.
type Bool bool

func (b Bool) Kind() Kind { return KindBoolean }

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

func (b Bool) Equal(other Value) bool {
	o, ok := other.(Bool)
	return ok && o == b
}

// String is a String value.
type String string

func (s String) Kind() Kind     { return KindString }
func (s String) String() string { return string(s) }

func (s String) Equal(other Value) bool {
	o, ok := other.(String)
	return ok && o == s
}

// Int32 is an Integer value.
type Int32 int32

func (i Int32) Kind() Kind     { return KindInt32 }
func (i Int32) String() string { return strconv.FormatInt(int64(i), 10) }
func (i Int32) Equal(other Value) bool {
	return numericEqual(i, other)
}

// Float is a single precision value.
type Float float32

func (f Float) Kind() Kind     { return KindFloat }
func (f Float) String() string { return strconv.FormatFloat(float64(f), 'g', 7, 32) }
func (f Float) Equal(other Value) bool {
	return numericEqual(f, other)
}

// Double is a double precision value.
type Double float64

func (d Double) Kind() Kind     { return KindDouble }
func (d Double) String() string { return strconv.FormatFloat(float64(d), 'g', -1, 64) }
func (d Double) Equal(other Value) bool {
	return numericEqual(d, other)
}

// ToFloat64 converts a numeric value. ok is false for non-numeric values.
func ToFloat64(v Value) (f float64, ok bool) {
	switch n := v.(type) {
	case Int32:
		return float64(n), true
	case Float:
		return float64(n), true
	case Double:
		return float64(n), true
	default:
		return 0, false
	}
}

// ToInt32 converts a numeric value, truncating fractions.
func ToInt32(v Value) (i int32, ok bool) {
	if n, isInt := v.(Int32); isInt {
		return int32(n), true
	}
	f, ok := ToFloat64(v)
	return FloatToInt32(f), ok
}

// FloatToInt32 truncates f toward zero, saturating at the int32 range.
// NaN becomes 0.
func FloatToInt32(f float64) int32 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}

// Truthy reports the boolean meaning of a condition value.
// Numbers are true when non-zero; everything else but Bool is an error
// for the caller to report, signalled through ok.
func Truthy(v Value) (result bool, ok bool) {
	if b, isBool := v.(Bool); isBool {
		return bool(b), true
	}
	if f, isNum := ToFloat64(v); isNum {
		return f != 0, true
	}
	return false, false
}

// Coerce converts v to the numeric kind k. Values already of kind k, and
// every non-numeric conversion, are returned unchanged with ok reporting
// whether the result has kind k.
func Coerce(v Value, k Kind) (Value, bool) {
	if v.Kind() == k {
		return v, true
	}
	f, isNum := ToFloat64(v)
	if !isNum {
		return v, false
	}
	switch k {
	case KindInt32:
		return Int32(FloatToInt32(f)), true
	case KindFloat:
		return Float(float32(f)), true
	case KindDouble:
		return Double(f), true
	default:
		return v, false
	}
}

func numericEqual(a Value, b Value) bool {
	if b == nil {
		return false
	}
	af, _ := ToFloat64(a)
	bf, ok := ToFloat64(b)
	return ok && af == bf
}
