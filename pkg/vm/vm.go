// Package vm executes statement trees. Every statement reports how it finished
// through a Signal: normal completion, a loop exit, a function return or a
// runtime error. Signals are returned explicitly; nothing unwinds through
// panics.
//
// The interpreter runs on a single goroutine. The only point where it blocks
// is a message port wait, reached through the Wait builtin or waitMessage.
package vm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/zurustar/brsrt/pkg/ast"
	"github.com/zurustar/brsrt/pkg/logger"
	"github.com/zurustar/brsrt/pkg/value"
)

// MaxCallDepth is the maximum call stack depth before stack overflow.
const MaxCallDepth = 1000

// Entry points tried by Run when no entry name is given.
const (
	DefaultEntry  = "main"
	FallbackEntry = "RunUserInterface"
)

// ErrNoEntry is returned by Run when the program has no entry function.
var ErrNoEntry = errors.New("no entry function")

// ObjectFactory builds native components for the CreateObject builtin.
type ObjectFactory interface {
	Create(typeName string, args []value.Value) (value.Value, error)
}

// StackFrame is one active function call.
type StackFrame struct {
	FunctionName string
	Scope        *Scope
}

// Interpreter executes a program. It is also the value.Context handed to
// native methods.
type Interpreter struct {
	functions map[string]*ast.Function
	globals   *Scope
	callStack []*StackFrame
	builtins  map[string]*Builtin
	factory   ObjectFactory

	out   io.Writer
	start time.Time

	keyMu       sync.Mutex
	lastKeyTime time.Time
	currKeyTime time.Time

	ctx context.Context
	log *slog.Logger
}

// Option is a functional option for configuring the Interpreter.
type Option func(*Interpreter)

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(in *Interpreter) {
		in.log = log
	}
}

// WithOutput sets where print statements write. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(in *Interpreter) {
		in.out = w
	}
}

// WithFactory sets the factory used by CreateObject.
func WithFactory(f ObjectFactory) Option {
	return func(in *Interpreter) {
		in.factory = f
	}
}

// WithGlobal predefines a variable visible to every function.
func WithGlobal(name string, v value.Value) Option {
	return func(in *Interpreter) {
		in.globals.SetLocal(name, v)
	}
}

// New creates an interpreter with the default builtins registered.
func New(opts ...Option) *Interpreter {
	in := &Interpreter{
		functions: make(map[string]*ast.Function),
		globals:   NewScope(nil),
		callStack: make([]*StackFrame, 0, 64),
		builtins:  make(map[string]*Builtin),
		out:       os.Stdout,
		start:     time.Now(),
		ctx:       context.Background(),
		log:       logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(in)
	}
	in.registerDefaultBuiltins()
	return in
}

// Load makes the functions of program callable. Later definitions replace
// earlier ones with the same name.
func (in *Interpreter) Load(program *ast.Program) error {
	for _, fn := range program.Functions {
		if _, err := fn.Signature(); err != nil {
			return fmt.Errorf("function %s: %w", fn.Name, err)
		}
		in.functions[value.Normalize(fn.Name)] = fn
	}
	return nil
}

// Run loads program and calls its entry function. An empty entry tries
// main, then RunUserInterface. A runtime error reaching the entry point is
// returned as a *RuntimeError.
func (in *Interpreter) Run(ctx context.Context, program *ast.Program, entry string) error {
	if err := in.Load(program); err != nil {
		return err
	}

	fn, err := in.entryFunction(entry)
	if err != nil {
		return err
	}

	in.ctx = ctx
	defer func() { in.ctx = context.Background() }()

	in.log.Info("Interpreter started", "entry", fn.Name, "functions", len(in.functions))
	if _, err := in.CallFunction(fn, nil); err != nil {
		rt := wrapError(err)
		in.log.Error("Script terminated", "error", rt)
		return rt
	}
	in.log.Info("Interpreter finished", "entry", fn.Name)
	return nil
}

func (in *Interpreter) entryFunction(entry string) (*ast.Function, error) {
	names := []string{entry}
	if entry == "" {
		names = []string{DefaultEntry, FallbackEntry}
	}
	for _, name := range names {
		if fn, ok := in.functions[value.Normalize(name)]; ok {
			return fn, nil
		}
	}
	return nil, fmt.Errorf("%w: tried %v", ErrNoEntry, names)
}

// Logger implements value.Context.
func (in *Interpreter) Logger() *slog.Logger {
	return in.log
}

// RecordKeyEvent implements value.Context. The previous current time becomes
// the last key time.
func (in *Interpreter) RecordKeyEvent(at time.Time) {
	in.keyMu.Lock()
	defer in.keyMu.Unlock()
	in.lastKeyTime = in.currKeyTime
	in.currKeyTime = at
}

// LastKeyTime is the time of the control event before the current one.
func (in *Interpreter) LastKeyTime() time.Time {
	in.keyMu.Lock()
	defer in.keyMu.Unlock()
	return in.lastKeyTime
}

// CurrentKeyTime is the time of the latest control event.
func (in *Interpreter) CurrentKeyTime() time.Time {
	in.keyMu.Lock()
	defer in.keyMu.Unlock()
	return in.currKeyTime
}

// Globals returns the scope shared by all functions.
func (in *Interpreter) Globals() *Scope {
	return in.globals
}

// StackDepth returns the current call stack depth.
func (in *Interpreter) StackDepth() int {
	return len(in.callStack)
}

func (in *Interpreter) pushFrame(name string, scope *Scope) error {
	if len(in.callStack) >= MaxCallDepth {
		return NewRuntimeError(ErrorStackOverflow, "maximum call depth %d exceeded", MaxCallDepth)
	}
	in.callStack = append(in.callStack, &StackFrame{FunctionName: name, Scope: scope})
	in.log.Debug("Stack frame pushed", "function", name, "depth", len(in.callStack))
	return nil
}

func (in *Interpreter) popFrame() {
	frame := in.callStack[len(in.callStack)-1]
	in.callStack = in.callStack[:len(in.callStack)-1]
	in.log.Debug("Stack frame popped", "function", frame.FunctionName, "depth", len(in.callStack))
}

func (in *Interpreter) currentFunction() string {
	if len(in.callStack) == 0 {
		return ""
	}
	return in.callStack[len(in.callStack)-1].FunctionName
}
