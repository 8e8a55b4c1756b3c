package value

import (
	"fmt"
)

// Param is one declared parameter of a Signature.
type Param struct {
	Name    string
	Kind    Kind
	Default Value // nil when the parameter is required
}

// Optional reports whether the parameter has a default value.
func (p Param) Optional() bool {
	return p.Default != nil
}

// Arg declares a required parameter.
func Arg(name string, kind Kind) Param {
	return Param{Name: name, Kind: kind}
}

// OptionalArg declares a parameter filled with def when the caller omits it.
func OptionalArg(name string, kind Kind, def Value) Param {
	return Param{Name: name, Kind: kind, Default: def}
}

// Signature is the parameter list and return kind of a callable.
type Signature struct {
	Params  []Param
	Returns Kind
}

// NewSignature builds a signature and checks that defaults only appear on a
// contiguous trailing suffix of the parameter list.
func NewSignature(returns Kind, params ...Param) (Signature, error) {
	seenOptional := false
	for _, p := range params {
		if p.Optional() {
			seenOptional = true
			continue
		}
		if seenOptional {
			return Signature{}, fmt.Errorf("required parameter %q follows an optional parameter", p.Name)
		}
	}
	return Signature{Params: params, Returns: returns}, nil
}

// MustSignature is NewSignature for static method tables.
func MustSignature(returns Kind, params ...Param) Signature {
	sig, err := NewSignature(returns, params...)
	if err != nil {
		panic(err)
	}
	return sig
}

// Required returns the number of parameters without defaults.
func (s Signature) Required() int {
	n := 0
	for _, p := range s.Params {
		if !p.Optional() {
			n++
		}
	}
	return n
}

// Bind matches positional args against the parameter list. Omitted trailing
// parameters take their declared defaults; numeric arguments are coerced to
// the declared numeric kind.
func (s Signature) Bind(name string, args []Value) ([]Value, error) {
	if len(args) < s.Required() || len(args) > len(s.Params) {
		return nil, &ArityError{
			Callable: name,
			Min:      s.Required(),
			Max:      len(s.Params),
			Got:      len(args),
		}
	}

	bound := make([]Value, len(s.Params))
	for i, p := range s.Params {
		if i >= len(args) {
			bound[i] = p.Default
			continue
		}
		arg := args[i]
		if arg == nil {
			arg = Invalid
		}
		if p.Kind == KindDynamic || arg.Kind() == p.Kind {
			bound[i] = arg
			continue
		}
		if p.Kind.IsNumeric() {
			if coerced, ok := Coerce(arg, p.Kind); ok {
				bound[i] = coerced
				continue
			}
		}
		return nil, &TypeMismatchError{
			Callable: name,
			Param:    p.Name,
			Want:     p.Kind,
			Got:      arg.Kind(),
		}
	}
	return bound, nil
}

// ArityError reports a call whose argument count does not fit the signature.
type ArityError struct {
	Callable string
	Min      int
	Max      int
	Got      int
}

func (e *ArityError) Error() string {
	if e.Min == e.Max {
		return fmt.Sprintf("%s: expected %d arguments, got %d", e.Callable, e.Min, e.Got)
	}
	return fmt.Sprintf("%s: expected %d to %d arguments, got %d", e.Callable, e.Min, e.Max, e.Got)
}

// TypeMismatchError reports an argument whose kind does not match its parameter.
type TypeMismatchError struct {
	Callable string
	Param    string
	Want     Kind
	Got      Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: argument %q must be %s, got %s", e.Callable, e.Param, e.Want, e.Got)
}
