// Package ast defines the statement tree the interpreter executes. Trees are
// produced outside this repository and arrive through pkg/program.
package ast

import (
	"bytes"
	"strings"

	"github.com/zurustar/brsrt/pkg/value"
)

type Node interface {
	String() string
}

type Statement interface {
	Node
	statementNode()
}

type Expression interface {
	Node
	expressionNode()
}

// Program is the root node: a set of named functions.
type Program struct {
	Functions []*Function
}

// Function looks up a function by case-insensitive name.
func (p *Program) Function(name string) (*Function, bool) {
	for _, f := range p.Functions {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return nil, false
}

func (p *Program) String() string {
	var out bytes.Buffer
	for _, f := range p.Functions {
		out.WriteString(f.String())
		out.WriteString("\n")
	}
	return out.String()
}

// Param is a declared function parameter. A nil Default marks it required.
type Param struct {
	Name    string
	Kind    value.Kind
	Default value.Value
}

// Function is a function or sub declaration.
type Function struct {
	Name    string
	Params  []Param
	Returns value.Kind
	Body    []Statement
	IsSub   bool
}

// Signature converts the declared parameters into a callable signature.
func (f *Function) Signature() (value.Signature, error) {
	params := make([]value.Param, len(f.Params))
	for i, p := range f.Params {
		kind := p.Kind
		if kind == value.KindInvalid {
			kind = value.KindDynamic
		}
		params[i] = value.Param{Name: p.Name, Kind: kind, Default: p.Default}
	}
	returns := f.Returns
	if f.IsSub {
		returns = value.KindVoid
	}
	return value.NewSignature(returns, params...)
}

func (f *Function) String() string {
	keyword := "function"
	if f.IsSub {
		keyword = "sub"
	}
	names := make([]string, len(f.Params))
	for i, p := range f.Params {
		names[i] = p.Name
	}
	return keyword + " " + f.Name + "(" + strings.Join(names, ", ") + ")"
}

// AssignStatement: name = value
type AssignStatement struct {
	Name  string
	Value Expression
}

func (s *AssignStatement) statementNode() {}
func (s *AssignStatement) String() string { return s.Name + " = " + s.Value.String() }

// ExpressionStatement evaluates an expression for its side effects.
type ExpressionStatement struct {
	Expression Expression
}

func (s *ExpressionStatement) statementNode() {}
func (s *ExpressionStatement) String() string {
	if s.Expression != nil {
		return s.Expression.String()
	}
	return ""
}

// PrintStatement writes its values separated by spaces.
type PrintStatement struct {
	Values []Expression
}

func (s *PrintStatement) statementNode() {}
func (s *PrintStatement) String() string { return "print " + joinExpressions(s.Values) }

// IfStatement
type IfStatement struct {
	Condition   Expression
	Consequence []Statement
	Alternative []Statement
}

func (s *IfStatement) statementNode() {}
func (s *IfStatement) String() string { return "if " + s.Condition.String() }

// ForStatement: for counter = start to end [step step]. Step may be nil.
type ForStatement struct {
	Counter string
	Start   Expression
	End     Expression
	Step    Expression
	Body    []Statement
}

func (s *ForStatement) statementNode() {}
func (s *ForStatement) String() string {
	out := "for " + s.Counter + " = " + s.Start.String() + " to " + s.End.String()
	if s.Step != nil {
		out += " step " + s.Step.String()
	}
	return out
}

// WhileStatement
type WhileStatement struct {
	Condition Expression
	Body      []Statement
}

func (s *WhileStatement) statementNode() {}
func (s *WhileStatement) String() string { return "while " + s.Condition.String() }

type ExitForStatement struct{}

func (s *ExitForStatement) statementNode() {}
func (s *ExitForStatement) String() string { return "exit for" }

type ExitWhileStatement struct{}

func (s *ExitWhileStatement) statementNode() {}
func (s *ExitWhileStatement) String() string { return "exit while" }

// ReturnStatement. Value may be nil.
type ReturnStatement struct {
	Value Expression
}

func (s *ReturnStatement) statementNode() {}
func (s *ReturnStatement) String() string {
	if s.Value == nil {
		return "return"
	}
	return "return " + s.Value.String()
}

// ThrowStatement raises a runtime error carrying Message.
type ThrowStatement struct {
	Message Expression
}

func (s *ThrowStatement) statementNode() {}
func (s *ThrowStatement) String() string { return "throw " + s.Message.String() }

// Literal wraps a constant value.
type Literal struct {
	Value value.Value
}

func (e *Literal) expressionNode() {}
func (e *Literal) String() string {
	if s, ok := e.Value.(value.String); ok {
		return `"` + string(s) + `"`
	}
	return e.Value.String()
}

// Identifier
type Identifier struct {
	Name string
}

func (e *Identifier) expressionNode() {}
func (e *Identifier) String() string { return e.Name }

// InfixExpression: left op right
type InfixExpression struct {
	Left     Expression
	Operator string
	Right    Expression
}

func (e *InfixExpression) expressionNode() {}
func (e *InfixExpression) String() string {
	return "(" + e.Left.String() + " " + e.Operator + " " + e.Right.String() + ")"
}

// PrefixExpression: op right
type PrefixExpression struct {
	Operator string
	Right    Expression
}

func (e *PrefixExpression) expressionNode() {}
func (e *PrefixExpression) String() string {
	return "(" + e.Operator + " " + e.Right.String() + ")"
}

// CallExpression calls a builtin or a program function by name.
type CallExpression struct {
	Function  string
	Arguments []Expression
}

func (e *CallExpression) expressionNode() {}
func (e *CallExpression) String() string {
	return e.Function + "(" + joinExpressions(e.Arguments) + ")"
}

// MethodCallExpression calls a method on a component.
type MethodCallExpression struct {
	Receiver  Expression
	Method    string
	Arguments []Expression
}

func (e *MethodCallExpression) expressionNode() {}
func (e *MethodCallExpression) String() string {
	return e.Receiver.String() + "." + e.Method + "(" + joinExpressions(e.Arguments) + ")"
}

func joinExpressions(exprs []Expression) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
