package value

import (
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/cases"
)

// Context is what a native method sees of the running interpreter.
type Context interface {
	Logger() *slog.Logger
	// RecordKeyEvent is called whenever a control event is handed to the script.
	RecordKeyEvent(at time.Time)
}

// Component is a native object exposed to scripts.
type Component interface {
	Value
	TypeName() string
	Interfaces() []string
	Implements(iface string) bool
	HasMethod(name string) bool
	CallMethod(ctx Context, name string, args []Value) (Value, error)
}

// Implements reports whether v is a component carrying capability iface.
func Implements(v Value, iface string) bool {
	c, ok := v.(Component)
	return ok && c.Implements(iface)
}

// Normalize folds a method, interface or type name for case-insensitive lookup.
// A Caser is stateful, so each call gets its own.
func Normalize(name string) string {
	return cases.Fold().String(name)
}

// Base carries the identity every component shares. Embed it by value.
type Base struct {
	typeName   string
	interfaces []string
}

// NewBase returns the identity of a component named typeName implementing ifaces.
func NewBase(typeName string, ifaces ...string) Base {
	return Base{typeName: typeName, interfaces: ifaces}
}

func (b Base) Kind() Kind       { return KindObject }
func (b Base) TypeName() string { return b.typeName }
func (b Base) String() string   { return fmt.Sprintf("<Component: %s>", b.typeName) }

// Equal is always false: components have reference semantics and no
// structural comparison.
func (b Base) Equal(Value) bool { return false }

func (b Base) Interfaces() []string {
	out := make([]string, len(b.interfaces))
	copy(out, b.interfaces)
	return out
}

func (b Base) Implements(iface string) bool {
	want := Normalize(iface)
	for _, i := range b.interfaces {
		if Normalize(i) == want {
			return true
		}
	}
	return false
}

// Method is a native method of component type T.
type Method[T any] struct {
	Name      string
	Interface string
	Signature Signature
	Impl      func(ctx Context, recv T, args []Value) Value
}

// MethodTable is the static dispatch table of one component type, keyed by
// normalized method name.
type MethodTable[T any] struct {
	typeName string
	methods  map[string]*Method[T]
}

// NewMethodTable registers methods for typeName. A name registered twice
// panics: tables are built once at package initialisation.
func NewMethodTable[T any](typeName string, methods ...*Method[T]) *MethodTable[T] {
	t := &MethodTable[T]{
		typeName: typeName,
		methods:  make(map[string]*Method[T], len(methods)),
	}
	for _, m := range methods {
		key := Normalize(m.Name)
		if _, dup := t.methods[key]; dup {
			panic(fmt.Sprintf("%s: method %q registered twice", typeName, m.Name))
		}
		t.methods[key] = m
	}
	return t
}

// Lookup finds a method by case-insensitive name.
func (t *MethodTable[T]) Lookup(name string) (*Method[T], bool) {
	m, ok := t.methods[Normalize(name)]
	return m, ok
}

// Len returns the number of registered methods.
func (t *MethodTable[T]) Len() int {
	return len(t.methods)
}

// Call binds args against the method signature and runs it synchronously.
// Void methods yield Invalid.
func (t *MethodTable[T]) Call(ctx Context, recv T, name string, args []Value) (Value, error) {
	m, ok := t.Lookup(name)
	if !ok {
		return nil, &UnknownMethodError{TypeName: t.typeName, Method: name}
	}
	bound, err := m.Signature.Bind(t.typeName+"."+m.Name, args)
	if err != nil {
		return nil, err
	}
	result := m.Impl(ctx, recv, bound)
	if m.Signature.Returns == KindVoid || result == nil {
		return Invalid, nil
	}
	return result, nil
}

// UnknownMethodError reports a call to a method the component does not have.
type UnknownMethodError struct {
	TypeName string
	Method   string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("%s has no method %q", e.TypeName, e.Method)
}
