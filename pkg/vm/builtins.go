package vm

import (
	"strconv"
	"time"

	"github.com/zurustar/brsrt/pkg/value"
)

// BuiltinFunc implements a builtin. args are already bound to the signature.
type BuiltinFunc func(in *Interpreter, args []value.Value) (value.Value, error)

// Builtin is a global function provided by the runtime.
type Builtin struct {
	Name      string
	Signature value.Signature
	// Variadic builtins receive arguments past the declared ones unchanged.
	Variadic bool
	Fn       BuiltinFunc
}

// Call binds args and runs the builtin.
func (b *Builtin) Call(in *Interpreter, args []value.Value) (value.Value, error) {
	var extra []value.Value
	if b.Variadic && len(args) > len(b.Signature.Params) {
		extra = args[len(b.Signature.Params):]
		args = args[:len(b.Signature.Params)]
	}
	bound, err := b.Signature.Bind(b.Name, args)
	if err != nil {
		return nil, err
	}
	result, err := b.Fn(in, append(bound, extra...))
	if err != nil {
		return nil, err
	}
	if result == nil || b.Signature.Returns == value.KindVoid {
		return value.Invalid, nil
	}
	return result, nil
}

// RegisterBuiltin adds or replaces a builtin. Names are case-insensitive.
func (in *Interpreter) RegisterBuiltin(b *Builtin) {
	in.builtins[value.Normalize(b.Name)] = b
}

func (in *Interpreter) registerDefaultBuiltins() {
	in.RegisterBuiltin(&Builtin{
		Name:      "CreateObject",
		Signature: value.MustSignature(value.KindDynamic, value.Arg("type", value.KindString)),
		Variadic:  true,
		Fn:        builtinCreateObject,
	})
	in.RegisterBuiltin(&Builtin{
		Name: "Wait",
		Signature: value.MustSignature(value.KindDynamic,
			value.Arg("timeout", value.KindInt32),
			value.Arg("port", value.KindDynamic),
		),
		Fn: builtinWait,
	})
	in.RegisterBuiltin(&Builtin{
		Name:      "Type",
		Signature: value.MustSignature(value.KindString, value.Arg("variable", value.KindDynamic)),
		Fn: func(_ *Interpreter, args []value.Value) (value.Value, error) {
			return value.String(TypeName(args[0])), nil
		},
	})
	in.RegisterBuiltin(&Builtin{
		Name:      "Str",
		Signature: value.MustSignature(value.KindString, value.Arg("value", value.KindDouble)),
		Fn: func(_ *Interpreter, args []value.Value) (value.Value, error) {
			return value.String(formatStr(args[0])), nil
		},
	})
	in.RegisterBuiltin(&Builtin{
		Name:      "UpTime",
		Signature: value.MustSignature(value.KindFloat, value.OptionalArg("dummy", value.KindInt32, value.Int32(0))),
		Fn: func(in *Interpreter, _ []value.Value) (value.Value, error) {
			return value.Float(time.Since(in.start).Seconds()), nil
		},
	})
}

func builtinCreateObject(in *Interpreter, args []value.Value) (value.Value, error) {
	typeName := args[0].String()
	if in.factory == nil {
		in.log.Warn("CreateObject: no object factory configured", "type", typeName)
		return value.Invalid, nil
	}
	return in.factory.Create(typeName, args[1:])
}

// builtinWait blocks on a message port. Anything without ifMessagePort is a
// type mismatch.
func builtinWait(in *Interpreter, args []value.Value) (value.Value, error) {
	port, ok := args[1].(value.Component)
	if !ok || !port.Implements("ifMessagePort") {
		return nil, &value.TypeMismatchError{
			Callable: "Wait",
			Param:    "port",
			Want:     value.KindObject,
			Got:      args[1].Kind(),
		}
	}
	return port.CallMethod(in, "waitMessage", args[:1])
}

// TypeName is the name the Type builtin reports for v.
func TypeName(v value.Value) string {
	if c, ok := v.(value.Component); ok {
		return c.TypeName()
	}
	switch v.Kind() {
	case value.KindBoolean:
		return "Boolean"
	case value.KindString:
		return "String"
	case value.KindInt32:
		return "Integer"
	case value.KindFloat:
		return "Float"
	case value.KindDouble:
		return "Double"
	default:
		return "Invalid"
	}
}

// formatStr renders a number the way Str does: non-negative values get a
// leading space where the sign would go.
func formatStr(v value.Value) string {
	f, _ := value.ToFloat64(v)
	var s string
	if f == float64(int64(f)) {
		s = strconv.FormatInt(int64(f), 10)
	} else {
		s = strconv.FormatFloat(f, 'g', 7, 64)
	}
	if f >= 0 {
		return " " + s
	}
	return s
}
