package vm

import (
	"github.com/zurustar/brsrt/pkg/value"
)

// SignalKind tells how a statement finished.
type SignalKind int

const (
	SignalNone SignalKind = iota
	SignalExitFor
	SignalExitWhile
	SignalReturn
	SignalError
)

func (k SignalKind) String() string {
	switch k {
	case SignalNone:
		return "None"
	case SignalExitFor:
		return "ExitFor"
	case SignalExitWhile:
		return "ExitWhile"
	case SignalReturn:
		return "Return"
	case SignalError:
		return "RuntimeError"
	default:
		return "Unknown"
	}
}

// Signal is the outcome of executing a statement or block. Value is set only
// for SignalReturn and Err only for SignalError.
type Signal struct {
	Kind  SignalKind
	Value value.Value
	Err   *RuntimeError
}

// None is the signal of a statement that completed normally.
var None = Signal{Kind: SignalNone}

var (
	exitForSignal   = Signal{Kind: SignalExitFor}
	exitWhileSignal = Signal{Kind: SignalExitWhile}
)

// ReturnSignal carries a function result. A nil v returns Invalid.
func ReturnSignal(v value.Value) Signal {
	if v == nil {
		v = value.Invalid
	}
	return Signal{Kind: SignalReturn, Value: v}
}

// ErrorSignal carries a runtime error.
func ErrorSignal(err *RuntimeError) Signal {
	return Signal{Kind: SignalError, Err: err}
}

// IsNone reports whether execution should continue with the next statement.
func (s Signal) IsNone() bool {
	return s.Kind == SignalNone
}

func (s Signal) String() string {
	switch s.Kind {
	case SignalReturn:
		return "Return(" + s.Value.String() + ")"
	case SignalError:
		return "RuntimeError(" + s.Err.Error() + ")"
	default:
		return s.Kind.String()
	}
}
