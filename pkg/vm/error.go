package vm

import (
	"errors"
	"fmt"

	"github.com/zurustar/brsrt/pkg/value"
)

// ErrorType classifies a runtime error.
type ErrorType string

const (
	ErrorStackOverflow    ErrorType = "STACK_OVERFLOW"
	ErrorUndefinedVar     ErrorType = "UNDEFINED_VARIABLE"
	ErrorUndefinedFunc    ErrorType = "UNDEFINED_FUNCTION"
	ErrorTypeMismatch     ErrorType = "TYPE_MISMATCH"
	ErrorArity            ErrorType = "WRONG_NUMBER_OF_ARGUMENTS"
	ErrorDanglingExit     ErrorType = "EXIT_OUTSIDE_LOOP"
	ErrorDivisionByZero   ErrorType = "DIVISION_BY_ZERO"
	ErrorInvalidOperation ErrorType = "INVALID_OPERATION"
	ErrorMemberNotFound   ErrorType = "MEMBER_FUNCTION_NOT_FOUND"
	ErrorThrown           ErrorType = "THROWN"
	ErrorCancelled        ErrorType = "CANCELLED"
)

// RuntimeError is the payload of a RuntimeError signal. It becomes the Go
// error returned by Interpreter.Run when it reaches the entry point.
type RuntimeError struct {
	Type     ErrorType
	Message  string
	Function string // function executing when the error was raised, if known
	Err      error  // underlying cause, if any
}

func (e *RuntimeError) Error() string {
	if e.Function != "" {
		return fmt.Sprintf("[%s] %s in %s", e.Type, e.Message, e.Function)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a RuntimeError with no underlying cause.
func NewRuntimeError(errType ErrorType, format string, args ...any) *RuntimeError {
	return &RuntimeError{Type: errType, Message: fmt.Sprintf(format, args...)}
}

// wrapError converts err into a RuntimeError, classifying the errors the
// value and vm packages define.
func wrapError(err error) *RuntimeError {
	var rt *RuntimeError
	if errors.As(err, &rt) {
		return rt
	}
	errType := ErrorInvalidOperation
	var (
		arity    *value.ArityError
		mismatch *value.TypeMismatchError
		dangling *DanglingExitError
		unknown  *value.UnknownMethodError
	)
	switch {
	case errors.As(err, &arity):
		errType = ErrorArity
	case errors.As(err, &mismatch):
		errType = ErrorTypeMismatch
	case errors.As(err, &dangling):
		errType = ErrorDanglingExit
	case errors.As(err, &unknown):
		errType = ErrorMemberNotFound
	}
	return &RuntimeError{Type: errType, Message: err.Error(), Err: err}
}

// DanglingExitError reports an exit-for or exit-while that left a function
// body without a matching loop.
type DanglingExitError struct {
	Function string
	Kind     SignalKind
}

func (e *DanglingExitError) Error() string {
	return fmt.Sprintf("%s escaped function %s without an enclosing loop", e.Kind, e.Function)
}
