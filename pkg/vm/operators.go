package vm

import (
	"math"
	"strings"

	"github.com/zurustar/brsrt/pkg/value"
)

// evalBinary applies a non-logical binary operator. op is lower-cased.
func evalBinary(op string, left, right value.Value) (value.Value, error) {
	switch op {
	case "=", "==":
		return value.Bool(equalValues(left, right)), nil
	case "<>", "!=":
		return value.Bool(!equalValues(left, right)), nil
	}

	if ls, ok := left.(value.String); ok {
		rs, ok := right.(value.String)
		if !ok {
			return nil, mismatch(op, left, right)
		}
		return stringOp(op, string(ls), string(rs))
	}

	if !left.Kind().IsNumeric() || !right.Kind().IsNumeric() {
		return nil, mismatch(op, left, right)
	}
	switch op {
	case "<", "<=", ">", ">=":
		l, _ := value.ToFloat64(left)
		r, _ := value.ToFloat64(right)
		return value.Bool(compare(op, l, r)), nil
	}
	return arithmetic(op, left, right)
}

// equalValues: Invalid equals only Invalid, components are never equal and
// mixed primitive kinds other than numbers are unequal.
func equalValues(left, right value.Value) bool {
	return left.Equal(right)
}

func mismatch(op string, left, right value.Value) *RuntimeError {
	return NewRuntimeError(ErrorTypeMismatch, "operator %s on %s and %s", op, left.Kind(), right.Kind())
}

func stringOp(op, l, r string) (value.Value, error) {
	switch op {
	case "+":
		return value.String(l + r), nil
	case "<":
		return value.Bool(l < r), nil
	case "<=":
		return value.Bool(l <= r), nil
	case ">":
		return value.Bool(l > r), nil
	case ">=":
		return value.Bool(l >= r), nil
	}
	return nil, NewRuntimeError(ErrorTypeMismatch, "operator %s is not defined on strings", op)
}

func compare(op string, l, r float64) bool {
	switch op {
	case "<":
		return l < r
	case "<=":
		return l <= r
	case ">":
		return l > r
	default:
		return l >= r
	}
}

// resultKind picks the wider of two numeric kinds.
func resultKind(a, b value.Kind) value.Kind {
	if a == value.KindDouble || b == value.KindDouble {
		return value.KindDouble
	}
	if a == value.KindFloat || b == value.KindFloat {
		return value.KindFloat
	}
	return value.KindInt32
}

func arithmetic(op string, left, right value.Value) (value.Value, error) {
	kind := resultKind(left.Kind(), right.Kind())

	if kind == value.KindInt32 {
		l, _ := value.ToInt32(left)
		r, _ := value.ToInt32(right)
		switch op {
		case "+":
			return value.Int32(l + r), nil
		case "-":
			return value.Int32(l - r), nil
		case "*":
			return value.Int32(l * r), nil
		case "\\":
			if r == 0 {
				return nil, NewRuntimeError(ErrorDivisionByZero, "integer division by zero")
			}
			return value.Int32(l / r), nil
		case "mod", "%":
			if r == 0 {
				return nil, NewRuntimeError(ErrorDivisionByZero, "mod by zero")
			}
			return value.Int32(l % r), nil
		case "/":
			// integer division yields a float
			kind = value.KindFloat
		}
	}

	l, _ := value.ToFloat64(left)
	r, _ := value.ToFloat64(right)
	var f float64
	switch op {
	case "+":
		f = l + r
	case "-":
		f = l - r
	case "*":
		f = l * r
	case "/":
		if r == 0 {
			return nil, NewRuntimeError(ErrorDivisionByZero, "division by zero")
		}
		f = l / r
	case "\\":
		if r == 0 {
			return nil, NewRuntimeError(ErrorDivisionByZero, "integer division by zero")
		}
		return value.Int32(value.FloatToInt32(l / r)), nil
	case "mod", "%":
		if r == 0 {
			return nil, NewRuntimeError(ErrorDivisionByZero, "mod by zero")
		}
		f = math.Mod(l, r)
	case "^":
		f = math.Pow(l, r)
	default:
		return nil, NewRuntimeError(ErrorInvalidOperation, "unknown operator %s", op)
	}
	v, _ := value.Coerce(value.Double(f), kind)
	return v, nil
}

func evalPrefix(operator string, right value.Value) (value.Value, error) {
	switch strings.ToLower(operator) {
	case "-":
		switch n := right.(type) {
		case value.Int32:
			return -n, nil
		case value.Float:
			return -n, nil
		case value.Double:
			return -n, nil
		}
		return nil, NewRuntimeError(ErrorTypeMismatch, "cannot negate %s", right.Kind())
	case "not", "!":
		b, ok := value.Truthy(right)
		if !ok {
			return nil, NewRuntimeError(ErrorTypeMismatch, "not on %s", right.Kind())
		}
		return value.Bool(!b), nil
	}
	return nil, NewRuntimeError(ErrorInvalidOperation, "unknown unary operator %s", operator)
}
