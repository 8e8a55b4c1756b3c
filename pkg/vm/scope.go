package vm

import (
	"sync"

	"github.com/zurustar/brsrt/pkg/value"
)

// Scope is a variable scope. Names are case-insensitive; lookups fall back
// to the parent scope.
type Scope struct {
	variables map[string]value.Value
	parent    *Scope
	mu        sync.RWMutex
}

// NewScope creates a new scope with an optional parent scope.
func NewScope(parent *Scope) *Scope {
	return &Scope{
		variables: make(map[string]value.Value),
		parent:    parent,
	}
}

// Get retrieves a variable, searching this scope first and then its parents.
func (s *Scope) Get(name string) (value.Value, bool) {
	return s.get(value.Normalize(name))
}

func (s *Scope) get(key string) (value.Value, bool) {
	s.mu.RLock()
	v, ok := s.variables[key]
	s.mu.RUnlock()
	if ok {
		return v, true
	}
	if s.parent != nil {
		return s.parent.get(key)
	}
	return nil, false
}

// Set updates the nearest scope that already holds name, or creates the
// variable in this scope.
func (s *Scope) Set(name string, v value.Value) {
	key := value.Normalize(name)
	for sc := s; sc != nil; sc = sc.parent {
		sc.mu.Lock()
		if _, ok := sc.variables[key]; ok {
			sc.variables[key] = v
			sc.mu.Unlock()
			return
		}
		sc.mu.Unlock()
	}
	s.SetLocal(name, v)
}

// SetLocal sets a variable in this scope only. Used for parameters.
func (s *Scope) SetLocal(name string, v value.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variables[value.Normalize(name)] = v
}

// Has checks if a variable exists in this scope or any parent scope.
func (s *Scope) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Parent returns the parent scope, or nil for the root scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Size returns the number of variables in this scope, not counting parents.
func (s *Scope) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.variables)
}
