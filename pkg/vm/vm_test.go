package vm

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/zurustar/brsrt/pkg/ast"
	"github.com/zurustar/brsrt/pkg/bridge"
	"github.com/zurustar/brsrt/pkg/native"
	"github.com/zurustar/brsrt/pkg/value"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestInterpreter(opts ...Option) (*Interpreter, *bytes.Buffer) {
	var out bytes.Buffer
	opts = append([]Option{WithLogger(quietLogger()), WithOutput(&out)}, opts...)
	return New(opts...), &out
}

// Tree builders.

func lit(v value.Value) ast.Expression { return &ast.Literal{Value: v} }
func num(n int32) ast.Expression       { return lit(value.Int32(n)) }
func str(s string) ast.Expression      { return lit(value.String(s)) }
func id(name string) ast.Expression    { return &ast.Identifier{Name: name} }

func infix(l ast.Expression, op string, r ast.Expression) ast.Expression {
	return &ast.InfixExpression{Left: l, Operator: op, Right: r}
}

func call(name string, args ...ast.Expression) ast.Expression {
	return &ast.CallExpression{Function: name, Arguments: args}
}

func method(recv ast.Expression, name string, args ...ast.Expression) ast.Expression {
	return &ast.MethodCallExpression{Receiver: recv, Method: name, Arguments: args}
}

func assign(name string, v ast.Expression) ast.Statement {
	return &ast.AssignStatement{Name: name, Value: v}
}

func incr(name string) ast.Statement {
	return assign(name, infix(id(name), "+", num(1)))
}

func forLoop(counter string, start, end int32, body ...ast.Statement) *ast.ForStatement {
	return &ast.ForStatement{Counter: counter, Start: num(start), End: num(end), Body: body}
}

func ret(e ast.Expression) ast.Statement { return &ast.ReturnStatement{Value: e} }

func fn(name string, body ...ast.Statement) *ast.Function {
	return &ast.Function{Name: name, Body: body}
}

func program(fns ...*ast.Function) *ast.Program {
	return &ast.Program{Functions: fns}
}

func TestExecBlockStopsAtFirstSignal(t *testing.T) {
	in, _ := newTestInterpreter()
	env := NewScope(nil)

	sig := in.ExecBlock(env, []ast.Statement{
		assign("a", num(1)),
		&ast.ExitWhileStatement{},
		assign("b", num(2)),
	})
	if sig.Kind != SignalExitWhile {
		t.Fatalf("signal = %v, want ExitWhile", sig)
	}
	if !env.Has("a") || env.Has("b") {
		t.Error("statements after the signal must not run")
	}

	if sig := in.ExecBlock(env, nil); !sig.IsNone() {
		t.Errorf("empty block = %v, want None", sig)
	}
}

func TestForLoop(t *testing.T) {
	tests := []struct {
		name  string
		loop  *ast.ForStatement
		count int32
		last  value.Value
	}{
		{
			name:  "ascending",
			loop:  forLoop("i", 1, 5, incr("n")),
			count: 5,
			last:  value.Int32(6),
		},
		{
			name: "descending step",
			loop: &ast.ForStatement{
				Counter: "i", Start: num(10), End: num(1), Step: num(-3),
				Body: []ast.Statement{incr("n")},
			},
			count: 4,
			last:  value.Int32(-2),
		},
		{
			name:  "empty range",
			loop:  forLoop("i", 5, 1, incr("n")),
			count: 0,
		},
		{
			name: "exit for is consumed",
			loop: forLoop("i", 1, 10,
				incr("n"),
				&ast.IfStatement{
					Condition:   infix(id("i"), "=", num(3)),
					Consequence: []ast.Statement{&ast.ExitForStatement{}},
				},
			),
			count: 3,
			last:  value.Int32(3),
		},
		{
			name: "zero step counts as positive",
			loop: &ast.ForStatement{
				Counter: "i", Start: num(1), End: num(2), Step: num(0),
				Body: []ast.Statement{
					incr("n"),
					&ast.IfStatement{
						Condition:   infix(id("n"), ">=", num(4)),
						Consequence: []ast.Statement{&ast.ExitForStatement{}},
					},
				},
			},
			count: 4,
			last:  value.Int32(1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, _ := newTestInterpreter()
			env := NewScope(nil)
			env.Set("n", value.Int32(0))

			if sig := in.Exec(env, tt.loop); !sig.IsNone() {
				t.Fatalf("for = %v, want None", sig)
			}
			n, _ := env.Get("n")
			if !n.Equal(value.Int32(tt.count)) {
				t.Errorf("body ran %v times, want %d", n, tt.count)
			}
			if tt.last != nil {
				i, _ := env.Get("i")
				if !i.Equal(tt.last) {
					t.Errorf("counter = %v, want %v", i, tt.last)
				}
			}
		})
	}
}

func TestWhileLoop(t *testing.T) {
	in, _ := newTestInterpreter()
	env := NewScope(nil)
	env.Set("n", value.Int32(0))

	sig := in.Exec(env, &ast.WhileStatement{
		Condition: lit(value.Bool(true)),
		Body: []ast.Statement{
			incr("n"),
			&ast.IfStatement{
				Condition:   infix(id("n"), "=", num(7)),
				Consequence: []ast.Statement{&ast.ExitWhileStatement{}},
			},
		},
	})
	if !sig.IsNone() {
		t.Fatalf("while = %v, want None", sig)
	}
	n, _ := env.Get("n")
	if !n.Equal(value.Int32(7)) {
		t.Errorf("n = %v, want 7", n)
	}
}

func TestExitSignalsPassThroughOtherLoops(t *testing.T) {
	in, _ := newTestInterpreter()
	env := NewScope(nil)
	env.Set("n", value.Int32(0))

	// exit for inside a while ends the enclosing for, not the while
	sig := in.Exec(env, forLoop("i", 1, 3,
		&ast.WhileStatement{
			Condition: lit(value.Bool(true)),
			Body:      []ast.Statement{incr("n"), &ast.ExitForStatement{}},
		},
		incr("n"),
	))
	if !sig.IsNone() {
		t.Fatalf("for = %v, want None", sig)
	}
	n, _ := env.Get("n")
	if !n.Equal(value.Int32(1)) {
		t.Errorf("n = %v, want 1", n)
	}

	// with no enclosing for the signal surfaces unchanged
	sig = in.Exec(env, &ast.WhileStatement{
		Condition: lit(value.Bool(true)),
		Body:      []ast.Statement{&ast.ExitForStatement{}},
	})
	if sig.Kind != SignalExitFor {
		t.Errorf("while = %v, want ExitFor", sig)
	}
}

func TestReturnFromNestedLoops(t *testing.T) {
	in, _ := newTestInterpreter()
	f := &ast.Function{
		Name:    "find",
		Returns: value.KindInt32,
		Body: []ast.Statement{
			forLoop("i", 1, 10,
				forLoop("j", 1, 10,
					&ast.IfStatement{
						Condition:   infix(infix(id("i"), "*", id("j")), "=", num(12)),
						Consequence: []ast.Statement{ret(infix(infix(id("i"), "*", num(100)), "+", id("j")))},
					},
				),
			),
			ret(num(-1)),
		},
	}
	got, err := in.CallFunction(f, nil)
	if err != nil {
		t.Fatalf("CallFunction: %v", err)
	}
	if !got.Equal(value.Int32(206)) {
		t.Errorf("result = %v, want 206", got)
	}
}

func TestFunctionCallBinding(t *testing.T) {
	in, _ := newTestInterpreter()
	add := &ast.Function{
		Name: "add",
		Params: []ast.Param{
			{Name: "a", Kind: value.KindInt32},
			{Name: "b", Kind: value.KindInt32, Default: value.Int32(10)},
		},
		Returns: value.KindInt32,
		Body:    []ast.Statement{ret(infix(id("a"), "+", id("b")))},
	}
	if err := in.Load(program(add)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	env := NewScope(nil)

	got, err := in.Eval(env, call("ADD", num(1), num(2)))
	if err != nil || !got.Equal(value.Int32(3)) {
		t.Errorf("add(1, 2) = %v, %v", got, err)
	}
	got, err = in.Eval(env, call("add", num(1)))
	if err != nil || !got.Equal(value.Int32(11)) {
		t.Errorf("add(1) = %v, %v, want default applied", got, err)
	}

	_, err = in.Eval(env, call("add"))
	var arity *value.ArityError
	if !errors.As(err, &arity) {
		t.Fatalf("add() error = %v, want ArityError", err)
	}
	if arity.Min != 1 || arity.Max != 2 || arity.Got != 0 {
		t.Errorf("arity = %+v", arity)
	}

	_, err = in.Eval(env, call("add", str("x")))
	var mismatch *value.TypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Errorf("add(\"x\") error = %v, want TypeMismatchError", err)
	}

	sig := in.Exec(env, &ast.ExpressionStatement{Expression: call("add")})
	if sig.Kind != SignalError || sig.Err.Type != ErrorArity {
		t.Errorf("statement signal = %v, want arity runtime error", sig)
	}
}

func TestDanglingExit(t *testing.T) {
	in, _ := newTestInterpreter()
	bad := fn("bad", &ast.ExitForStatement{})
	main := fn("main",
		forLoop("i", 1, 3, &ast.ExpressionStatement{Expression: call("bad")}),
	)

	err := in.Run(context.Background(), program(bad, main), "")
	var rt *RuntimeError
	if !errors.As(err, &rt) {
		t.Fatalf("Run error = %v, want RuntimeError", err)
	}
	if rt.Type != ErrorDanglingExit {
		t.Errorf("type = %s, want %s", rt.Type, ErrorDanglingExit)
	}
	if rt.Function != "main" {
		t.Errorf("error raised in %q, want the caller main", rt.Function)
	}
	var dangling *DanglingExitError
	if !errors.As(err, &dangling) || dangling.Function != "bad" || dangling.Kind != SignalExitFor {
		t.Errorf("dangling = %+v", dangling)
	}
}

func TestRunEntryPoints(t *testing.T) {
	t.Run("fallback entry", func(t *testing.T) {
		in, out := newTestInterpreter()
		p := program(fn("RunUserInterface", &ast.PrintStatement{Values: []ast.Expression{str("hello"), num(3)}}))
		if err := in.Run(context.Background(), p, ""); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if got := out.String(); got != "hello 3\n" {
			t.Errorf("output = %q", got)
		}
	})

	t.Run("missing entry", func(t *testing.T) {
		in, _ := newTestInterpreter()
		err := in.Run(context.Background(), program(fn("helper")), "")
		if !errors.Is(err, ErrNoEntry) {
			t.Errorf("Run error = %v, want ErrNoEntry", err)
		}
	})

	t.Run("throw terminates", func(t *testing.T) {
		in, out := newTestInterpreter()
		p := program(fn("main",
			&ast.ThrowStatement{Message: str("boom")},
			&ast.PrintStatement{Values: []ast.Expression{str("unreachable")}},
		))
		err := in.Run(context.Background(), p, "main")
		var rt *RuntimeError
		if !errors.As(err, &rt) || rt.Type != ErrorThrown || rt.Message != "boom" {
			t.Errorf("Run error = %v", err)
		}
		if out.Len() != 0 {
			t.Errorf("statements after throw ran: %q", out.String())
		}
	})
}

func TestStackOverflow(t *testing.T) {
	in, _ := newTestInterpreter()
	p := program(fn("main", ret(call("main"))))
	err := in.Run(context.Background(), p, "")
	var rt *RuntimeError
	if !errors.As(err, &rt) || rt.Type != ErrorStackOverflow {
		t.Fatalf("Run error = %v, want stack overflow", err)
	}
	if in.StackDepth() != 0 {
		t.Errorf("stack depth after run = %d", in.StackDepth())
	}
}

func TestCancellation(t *testing.T) {
	in, _ := newTestInterpreter()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	p := program(fn("main", &ast.WhileStatement{Condition: lit(value.Bool(true))}))
	err := in.Run(ctx, p, "")
	var rt *RuntimeError
	if !errors.As(err, &rt) || rt.Type != ErrorCancelled {
		t.Fatalf("Run error = %v, want cancellation", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("cancellation should wrap the context error")
	}
}

func TestOperators(t *testing.T) {
	tests := []struct {
		expr ast.Expression
		want value.Value
	}{
		{infix(num(7), "+", num(5)), value.Int32(12)},
		{infix(num(7), "/", num(2)), value.Float(3.5)},
		{infix(num(7), "\\", num(2)), value.Int32(3)},
		{infix(num(7), "MOD", num(4)), value.Int32(3)},
		{infix(num(2), "*", lit(value.Double(1.5))), value.Double(3)},
		{infix(str("ab"), "+", str("cd")), value.String("abcd")},
		{infix(str("ab"), "<", str("b")), value.Bool(true)},
		{infix(num(1), "=", lit(value.Double(1))), value.Bool(true)},
		{infix(lit(value.Invalid), "=", lit(value.Invalid)), value.Bool(true)},
		{infix(num(1), "<>", str("1")), value.Bool(true)},
		{infix(lit(value.Bool(false)), "and", id("undefined")), value.Bool(false)},
		{infix(lit(value.Bool(true)), "or", id("undefined")), value.Bool(true)},
		{&ast.PrefixExpression{Operator: "not", Right: lit(value.Bool(false))}, value.Bool(true)},
		{&ast.PrefixExpression{Operator: "-", Right: num(4)}, value.Int32(-4)},
		{infix(num(2), "^", num(40)), value.Int32(math.MaxInt32)},
		{infix(lit(value.Double(1e12)), "\\", num(1)), value.Int32(math.MaxInt32)},
		{infix(lit(value.Double(-1e12)), "\\", num(1)), value.Int32(math.MinInt32)},
	}
	in, _ := newTestInterpreter()
	env := NewScope(nil)
	for _, tt := range tests {
		t.Run(tt.expr.String(), func(t *testing.T) {
			got, err := in.Eval(env, tt.expr)
			if err != nil {
				t.Fatalf("Eval: %v", err)
			}
			if got.Kind() != tt.want.Kind() || !got.Equal(tt.want) {
				t.Errorf("got %v (%s), want %v (%s)", got, got.Kind(), tt.want, tt.want.Kind())
			}
		})
	}
}

func TestOperatorErrors(t *testing.T) {
	tests := []struct {
		expr ast.Expression
		want ErrorType
	}{
		{infix(num(1), "+", str("a")), ErrorTypeMismatch},
		{infix(num(1), "/", num(0)), ErrorDivisionByZero},
		{infix(str("a"), "-", str("b")), ErrorTypeMismatch},
		{id("nope"), ErrorUndefinedVar},
		{call("nope"), ErrorUndefinedFunc},
		{method(num(1), "foo"), ErrorInvalidOperation},
	}
	in, _ := newTestInterpreter()
	env := NewScope(nil)
	for _, tt := range tests {
		t.Run(tt.expr.String(), func(t *testing.T) {
			sig := in.Exec(env, &ast.ExpressionStatement{Expression: tt.expr})
			if sig.Kind != SignalError {
				t.Fatalf("signal = %v, want RuntimeError", sig)
			}
			if sig.Err.Type != tt.want {
				t.Errorf("type = %s, want %s", sig.Err.Type, tt.want)
			}
		})
	}
}

func TestBuiltins(t *testing.T) {
	in, _ := newTestInterpreter()
	env := NewScope(nil)

	tests := []struct {
		expr ast.Expression
		want value.Value
	}{
		{call("type", num(1)), value.String("Integer")},
		{call("Type", lit(value.Invalid)), value.String("Invalid")},
		{call("TYPE", str("x")), value.String("String")},
		{call("Str", num(42)), value.String(" 42")},
		{call("Str", num(-3)), value.String("-3")},
		{call("Str", lit(value.Double(1.5))), value.String(" 1.5")},
	}
	for _, tt := range tests {
		got, err := in.Eval(env, tt.expr)
		if err != nil {
			t.Errorf("%s: %v", tt.expr, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("%s = %q, want %q", tt.expr, got, tt.want)
		}
	}

	up, err := in.Eval(env, call("UpTime", num(0)))
	if err != nil || up.Kind() != value.KindFloat {
		t.Errorf("UpTime = %v, %v", up, err)
	}
}

func TestCreateObjectAndWait(t *testing.T) {
	buf := bridge.NewEventBuffer()
	rec := &bridge.Recorder{}
	factory := native.NewFactory(buf, rec, nil, native.WithFactoryLogger(quietLogger()))
	in, out := newTestInterpreter(WithFactory(factory))

	p := program(fn("main",
		assign("port", call("CreateObject", str("roMessagePort"))),
		assign("sound", call("CreateObject", str("roAudioResource"), str("select"))),
		&ast.ExpressionStatement{Expression: method(id("sound"), "setMessagePort", id("port"))},
		&ast.ExpressionStatement{Expression: method(id("sound"), "trigger", num(75))},
		assign("msg", call("wait", num(0), id("port"))),
		&ast.PrintStatement{Values: []ast.Expression{
			call("type", id("msg")),
			method(id("msg"), "isRequestSucceeded"),
		}},
	))

	go func() {
		time.Sleep(10 * time.Millisecond)
		buf.PublishSound(bridge.SoundFinished, 0)
	}()

	if err := in.Run(context.Background(), p, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := out.String(); got != "roAudioPlayerEvent true\n" {
		t.Errorf("output = %q", got)
	}
	msgs := rec.Messages()
	if len(msgs) != 1 || msgs[0] != "trigger,select,75,0" {
		t.Errorf("commands = %v", msgs)
	}
}

func TestWaitRejectsNonPort(t *testing.T) {
	in, _ := newTestInterpreter()
	sig := in.Exec(NewScope(nil), &ast.ExpressionStatement{Expression: call("Wait", num(0), str("port"))})
	if sig.Kind != SignalError || sig.Err.Type != ErrorTypeMismatch {
		t.Errorf("signal = %v, want type mismatch", sig)
	}
}

func TestKeyEventTiming(t *testing.T) {
	buf := bridge.NewEventBuffer()
	port := native.NewMessagePort(buf, nil, native.WithPortLogger(quietLogger()))
	port.EnableKeys(true)
	in, _ := newTestInterpreter(WithGlobal("port", port))

	if !in.CurrentKeyTime().IsZero() {
		t.Fatal("no key yet")
	}
	env := NewScope(in.Globals())

	buf.PublishKey(6, 0)
	if _, err := in.Eval(env, method(id("port"), "getMessage")); err != nil {
		t.Fatalf("getMessage: %v", err)
	}
	first := in.CurrentKeyTime()
	if first.IsZero() || !in.LastKeyTime().IsZero() {
		t.Fatalf("after one key: current %v last %v", first, in.LastKeyTime())
	}

	buf.PublishKey(106, 0)
	if _, err := in.Eval(env, method(id("port"), "getMessage")); err != nil {
		t.Fatalf("getMessage: %v", err)
	}
	if !in.LastKeyTime().Equal(first) {
		t.Error("last key time should be the previous current time")
	}
}

func TestSignalString(t *testing.T) {
	tests := map[string]Signal{
		"None":      None,
		"ExitFor":   exitForSignal,
		"Return(5)": ReturnSignal(value.Int32(5)),
	}
	for want, sig := range tests {
		if got := sig.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
	if got := ErrorSignal(NewRuntimeError(ErrorThrown, "x")).String(); !strings.HasPrefix(got, "RuntimeError(") {
		t.Errorf("error signal = %q", got)
	}
}
