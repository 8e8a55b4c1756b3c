package vm

import (
	"fmt"
	"strings"

	"github.com/zurustar/brsrt/pkg/ast"
	"github.com/zurustar/brsrt/pkg/value"
)

// ExecBlock executes stmts in order and returns the first signal that is not
// None. An empty block yields None.
func (in *Interpreter) ExecBlock(env *Scope, stmts []ast.Statement) Signal {
	for _, stmt := range stmts {
		if err := in.ctx.Err(); err != nil {
			return in.errorSignal(&RuntimeError{Type: ErrorCancelled, Message: "execution cancelled", Err: err})
		}
		if sig := in.Exec(env, stmt); !sig.IsNone() {
			return sig
		}
	}
	return None
}

// Exec executes a single statement.
func (in *Interpreter) Exec(env *Scope, stmt ast.Statement) Signal {
	switch s := stmt.(type) {
	case *ast.AssignStatement:
		v, err := in.Eval(env, s.Value)
		if err != nil {
			return in.errorSignal(err)
		}
		env.Set(s.Name, v)
		return None

	case *ast.ExpressionStatement:
		if _, err := in.Eval(env, s.Expression); err != nil {
			return in.errorSignal(err)
		}
		return None

	case *ast.PrintStatement:
		return in.execPrint(env, s)

	case *ast.IfStatement:
		cond, err := in.evalCondition(env, s.Condition)
		if err != nil {
			return in.errorSignal(err)
		}
		if cond {
			return in.ExecBlock(env, s.Consequence)
		}
		return in.ExecBlock(env, s.Alternative)

	case *ast.ForStatement:
		return in.execFor(env, s)

	case *ast.WhileStatement:
		return in.execWhile(env, s)

	case *ast.ExitForStatement:
		return exitForSignal

	case *ast.ExitWhileStatement:
		return exitWhileSignal

	case *ast.ReturnStatement:
		if s.Value == nil {
			return ReturnSignal(value.Invalid)
		}
		v, err := in.Eval(env, s.Value)
		if err != nil {
			return in.errorSignal(err)
		}
		return ReturnSignal(v)

	case *ast.ThrowStatement:
		msg, err := in.Eval(env, s.Message)
		if err != nil {
			return in.errorSignal(err)
		}
		return in.errorSignal(NewRuntimeError(ErrorThrown, "%s", msg.String()))

	default:
		return in.errorSignal(NewRuntimeError(ErrorInvalidOperation, "unsupported statement %T", stmt))
	}
}

// errorSignal wraps err and tags it with the executing function.
func (in *Interpreter) errorSignal(err error) Signal {
	rt := wrapError(err)
	if rt.Function == "" {
		rt.Function = in.currentFunction()
	}
	return ErrorSignal(rt)
}

func (in *Interpreter) execPrint(env *Scope, s *ast.PrintStatement) Signal {
	parts := make([]string, len(s.Values))
	for i, expr := range s.Values {
		v, err := in.Eval(env, expr)
		if err != nil {
			return in.errorSignal(err)
		}
		parts[i] = v.String()
	}
	fmt.Fprintln(in.out, strings.Join(parts, " "))
	return None
}

// execFor runs a counted loop. The counter lives in env, so the body can
// read and change it. ExitFor from the body ends the loop; every other
// non-None signal propagates.
func (in *Interpreter) execFor(env *Scope, s *ast.ForStatement) Signal {
	start, err := in.evalNumber(env, s.Start, "for start")
	if err != nil {
		return in.errorSignal(err)
	}
	end, err := in.evalNumber(env, s.End, "for end")
	if err != nil {
		return in.errorSignal(err)
	}
	step := value.Value(value.Int32(1))
	if s.Step != nil {
		if step, err = in.evalNumber(env, s.Step, "for step"); err != nil {
			return in.errorSignal(err)
		}
	}

	counterKind := value.KindInt32
	if start.Kind() != value.KindInt32 || step.Kind() != value.KindInt32 {
		counterKind = value.KindDouble
	}
	endF, _ := value.ToFloat64(end)
	stepF, _ := value.ToFloat64(step)
	cur, _ := value.ToFloat64(start)

	for {
		counter, _ := value.Coerce(value.Double(cur), counterKind)
		env.Set(s.Counter, counter)

		if stepF < 0 {
			if cur < endF {
				return None
			}
		} else if cur > endF {
			return None
		}
		if err := in.ctx.Err(); err != nil {
			return in.errorSignal(&RuntimeError{Type: ErrorCancelled, Message: "execution cancelled", Err: err})
		}

		sig := in.ExecBlock(env, s.Body)
		switch sig.Kind {
		case SignalNone:
		case SignalExitFor:
			return None
		default:
			return sig
		}

		v, _ := env.Get(s.Counter)
		f, ok := value.ToFloat64(v)
		if !ok {
			return in.errorSignal(NewRuntimeError(ErrorTypeMismatch, "for counter %s is no longer numeric", s.Counter))
		}
		cur = f + stepF
	}
}

// execWhile runs the body while the condition holds. ExitWhile from the body
// ends the loop; every other non-None signal propagates.
func (in *Interpreter) execWhile(env *Scope, s *ast.WhileStatement) Signal {
	for {
		if err := in.ctx.Err(); err != nil {
			return in.errorSignal(&RuntimeError{Type: ErrorCancelled, Message: "execution cancelled", Err: err})
		}
		cond, err := in.evalCondition(env, s.Condition)
		if err != nil {
			return in.errorSignal(err)
		}
		if !cond {
			return None
		}
		sig := in.ExecBlock(env, s.Body)
		switch sig.Kind {
		case SignalNone:
		case SignalExitWhile:
			return None
		default:
			return sig
		}
	}
}

// CallFunction binds args to fn's parameters and runs its body in a fresh
// scope. A loop exit escaping the body is a *DanglingExitError; a runtime
// error is returned as its *RuntimeError.
func (in *Interpreter) CallFunction(fn *ast.Function, args []value.Value) (value.Value, error) {
	sig, err := fn.Signature()
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", fn.Name, err)
	}
	bound, err := sig.Bind(fn.Name, args)
	if err != nil {
		return nil, err
	}

	scope := NewScope(in.globals)
	for i, p := range fn.Params {
		scope.SetLocal(p.Name, bound[i])
	}

	if err := in.pushFrame(fn.Name, scope); err != nil {
		return nil, err
	}
	result := in.ExecBlock(scope, fn.Body)
	in.popFrame()

	switch result.Kind {
	case SignalReturn:
		if fn.IsSub {
			return value.Invalid, nil
		}
		if fn.Returns.IsNumeric() {
			if v, ok := value.Coerce(result.Value, fn.Returns); ok {
				return v, nil
			}
		}
		return result.Value, nil
	case SignalExitFor, SignalExitWhile:
		return nil, &DanglingExitError{Function: fn.Name, Kind: result.Kind}
	case SignalError:
		return nil, result.Err
	default:
		return value.Invalid, nil
	}
}

// Eval evaluates an expression.
func (in *Interpreter) Eval(env *Scope, expr ast.Expression) (value.Value, error) {
	switch e := expr.(type) {
	case *ast.Literal:
		if e.Value == nil {
			return value.Invalid, nil
		}
		return e.Value, nil

	case *ast.Identifier:
		v, ok := env.Get(e.Name)
		if !ok {
			return nil, NewRuntimeError(ErrorUndefinedVar, "use of uninitialized variable %s", e.Name)
		}
		return v, nil

	case *ast.InfixExpression:
		return in.evalInfix(env, e)

	case *ast.PrefixExpression:
		right, err := in.Eval(env, e.Right)
		if err != nil {
			return nil, err
		}
		return evalPrefix(e.Operator, right)

	case *ast.CallExpression:
		args, err := in.evalArgs(env, e.Arguments)
		if err != nil {
			return nil, err
		}
		return in.call(e.Function, args)

	case *ast.MethodCallExpression:
		recv, err := in.Eval(env, e.Receiver)
		if err != nil {
			return nil, err
		}
		comp, ok := recv.(value.Component)
		if !ok {
			return nil, NewRuntimeError(ErrorInvalidOperation, "'dot' operator on %s value calling %s", recv.Kind(), e.Method)
		}
		args, err := in.evalArgs(env, e.Arguments)
		if err != nil {
			return nil, err
		}
		return comp.CallMethod(in, e.Method, args)

	case nil:
		return value.Invalid, nil

	default:
		return nil, NewRuntimeError(ErrorInvalidOperation, "unsupported expression %T", expr)
	}
}

func (in *Interpreter) evalArgs(env *Scope, exprs []ast.Expression) ([]value.Value, error) {
	args := make([]value.Value, len(exprs))
	for i, expr := range exprs {
		v, err := in.Eval(env, expr)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// call resolves name against the builtins first, then the program.
func (in *Interpreter) call(name string, args []value.Value) (value.Value, error) {
	key := value.Normalize(name)
	if b, ok := in.builtins[key]; ok {
		return b.Call(in, args)
	}
	if fn, ok := in.functions[key]; ok {
		return in.CallFunction(fn, args)
	}
	return nil, NewRuntimeError(ErrorUndefinedFunc, "function %s is not defined", name)
}

func (in *Interpreter) evalCondition(env *Scope, expr ast.Expression) (bool, error) {
	v, err := in.Eval(env, expr)
	if err != nil {
		return false, err
	}
	b, ok := value.Truthy(v)
	if !ok {
		return false, NewRuntimeError(ErrorTypeMismatch, "condition must be boolean, got %s", v.Kind())
	}
	return b, nil
}

func (in *Interpreter) evalNumber(env *Scope, expr ast.Expression, what string) (value.Value, error) {
	v, err := in.Eval(env, expr)
	if err != nil {
		return nil, err
	}
	if !v.Kind().IsNumeric() {
		return nil, NewRuntimeError(ErrorTypeMismatch, "%s must be numeric, got %s", what, v.Kind())
	}
	return v, nil
}

func (in *Interpreter) evalInfix(env *Scope, e *ast.InfixExpression) (value.Value, error) {
	op := strings.ToLower(e.Operator)
	left, err := in.Eval(env, e.Left)
	if err != nil {
		return nil, err
	}

	// and/or short-circuit
	if op == "and" || op == "&&" || op == "or" || op == "||" {
		l, ok := value.Truthy(left)
		if !ok {
			return nil, NewRuntimeError(ErrorTypeMismatch, "operator %s on %s", e.Operator, left.Kind())
		}
		isAnd := op == "and" || op == "&&"
		if isAnd != l {
			return value.Bool(l), nil
		}
		right, err := in.Eval(env, e.Right)
		if err != nil {
			return nil, err
		}
		r, ok := value.Truthy(right)
		if !ok {
			return nil, NewRuntimeError(ErrorTypeMismatch, "operator %s on %s", e.Operator, right.Kind())
		}
		return value.Bool(r), nil
	}

	right, err := in.Eval(env, e.Right)
	if err != nil {
		return nil, err
	}
	return evalBinary(op, left, right)
}
