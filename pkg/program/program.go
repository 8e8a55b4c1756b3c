// Package program decodes a pre-parsed statement tree from YAML.
//
// A document holds a list of functions. Every statement and expression is a
// mapping with exactly one key naming its variant:
//
//	functions:
//	  - name: main
//	    sub: true
//	    body:
//	      - assign: {name: port, value: {call: {name: CreateObject, args: [{str: roMessagePort}]}}}
//	      - print: [{str: ready}]
//	      - for:
//	          counter: i
//	          from: {int: 1}
//	          to: {int: 3}
//	          body:
//	            - if:
//	                cond: {binary: {op: "=", left: {var: i}, right: {int: 2}}}
//	                then: [exitFor: ~]
package program

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zurustar/brsrt/pkg/ast"
	"github.com/zurustar/brsrt/pkg/value"
)

// ErrUnknownNode is returned for a node whose variant key is not recognised.
var ErrUnknownNode = errors.New("unknown node")

// DecodeError locates a malformed node in the source document.
type DecodeError struct {
	Line   int
	Column int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("line %d, column %d: %v", e.Line, e.Column, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type fileNode struct {
	Functions []functionNode `yaml:"functions"`
}

type functionNode struct {
	Name    string      `yaml:"name"`
	Sub     bool        `yaml:"sub"`
	Params  []paramNode `yaml:"params"`
	Returns string      `yaml:"returns"`
	Body    []yaml.Node `yaml:"body"`
}

type paramNode struct {
	Name    string    `yaml:"name"`
	Type    string    `yaml:"type"`
	Default yaml.Node `yaml:"default"`
}

// Load reads and decodes the program at path.
func Load(path string) (*ast.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open program: %w", err)
	}
	defer f.Close()

	prog, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}

// Decode reads one YAML document from r.
func Decode(r io.Reader) (*ast.Program, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var raw fileNode
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty program")
		}
		return nil, fmt.Errorf("failed to parse program: %w", err)
	}

	prog := &ast.Program{}
	seen := make(map[string]bool, len(raw.Functions))
	for i := range raw.Functions {
		fn, err := decodeFunction(&raw.Functions[i])
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(fn.Name)
		if seen[key] {
			return nil, fmt.Errorf("function %q declared twice", fn.Name)
		}
		seen[key] = true
		prog.Functions = append(prog.Functions, fn)
	}
	return prog, nil
}

func decodeFunction(raw *functionNode) (*ast.Function, error) {
	if raw.Name == "" {
		return nil, errors.New("function without a name")
	}
	returns, err := parseKind(raw.Returns)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", raw.Name, err)
	}
	fn := &ast.Function{Name: raw.Name, Returns: returns, IsSub: raw.Sub}

	for _, p := range raw.Params {
		kind, err := parseKind(p.Type)
		if err != nil {
			return nil, fmt.Errorf("function %s: parameter %s: %w", raw.Name, p.Name, err)
		}
		param := ast.Param{Name: p.Name, Kind: kind}
		if p.Default.Kind != 0 {
			def, err := expression(&p.Default)
			if err != nil {
				return nil, fmt.Errorf("function %s: parameter %s: %w", raw.Name, p.Name, err)
			}
			lit, ok := def.(*ast.Literal)
			if !ok {
				return nil, fmt.Errorf("function %s: parameter %s: default must be a literal", raw.Name, p.Name)
			}
			param.Default = lit.Value
		}
		fn.Params = append(fn.Params, param)
	}

	// rejects a required parameter after an optional one
	if _, err := fn.Signature(); err != nil {
		return nil, fmt.Errorf("function %s: %w", raw.Name, err)
	}

	fn.Body, err = statements(raw.Body)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", raw.Name, err)
	}
	return fn, nil
}

func parseKind(s string) (value.Kind, error) {
	switch strings.ToLower(s) {
	case "", "dynamic":
		return value.KindDynamic, nil
	case "integer", "int":
		return value.KindInt32, nil
	case "float":
		return value.KindFloat, nil
	case "double":
		return value.KindDouble, nil
	case "string":
		return value.KindString, nil
	case "boolean", "bool":
		return value.KindBoolean, nil
	case "object":
		return value.KindObject, nil
	case "void":
		return value.KindVoid, nil
	}
	return value.KindInvalid, fmt.Errorf("unknown type %q", s)
}

func statements(nodes []yaml.Node) ([]ast.Statement, error) {
	out := make([]ast.Statement, 0, len(nodes))
	for i := range nodes {
		stmt, err := statement(&nodes[i])
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}
	return out, nil
}

// variant splits a single-key mapping into its key and body.
func variant(n *yaml.Node) (string, *yaml.Node, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return "", nil, nodeError(n, errors.New("expected a mapping with a single key"))
	}
	return n.Content[0].Value, n.Content[1], nil
}

func nodeError(n *yaml.Node, err error) error {
	return &DecodeError{Line: n.Line, Column: n.Column, Err: err}
}

func isNull(n *yaml.Node) bool {
	return n.Kind == 0 || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

func statement(n *yaml.Node) (ast.Statement, error) {
	key, body, err := variant(n)
	if err != nil {
		return nil, err
	}

	switch key {
	case "assign":
		var raw struct {
			Name  string    `yaml:"name"`
			Value yaml.Node `yaml:"value"`
		}
		if err := body.Decode(&raw); err != nil {
			return nil, nodeError(body, err)
		}
		if raw.Name == "" {
			return nil, nodeError(body, errors.New("assign without a name"))
		}
		v, err := expression(&raw.Value)
		if err != nil {
			return nil, err
		}
		return &ast.AssignStatement{Name: raw.Name, Value: v}, nil

	case "expr":
		e, err := expression(body)
		if err != nil {
			return nil, err
		}
		return &ast.ExpressionStatement{Expression: e}, nil

	case "print":
		var items []yaml.Node
		if !isNull(body) {
			if err := body.Decode(&items); err != nil {
				return nil, nodeError(body, err)
			}
		}
		values, err := expressions(items)
		if err != nil {
			return nil, err
		}
		return &ast.PrintStatement{Values: values}, nil

	case "if":
		var raw struct {
			Cond yaml.Node   `yaml:"cond"`
			Then []yaml.Node `yaml:"then"`
			Else []yaml.Node `yaml:"else"`
		}
		if err := body.Decode(&raw); err != nil {
			return nil, nodeError(body, err)
		}
		stmt := &ast.IfStatement{}
		if stmt.Condition, err = expression(&raw.Cond); err != nil {
			return nil, err
		}
		if stmt.Consequence, err = statements(raw.Then); err != nil {
			return nil, err
		}
		if stmt.Alternative, err = statements(raw.Else); err != nil {
			return nil, err
		}
		return stmt, nil

	case "for":
		var raw struct {
			Counter string      `yaml:"counter"`
			From    yaml.Node   `yaml:"from"`
			To      yaml.Node   `yaml:"to"`
			Step    yaml.Node   `yaml:"step"`
			Body    []yaml.Node `yaml:"body"`
		}
		if err := body.Decode(&raw); err != nil {
			return nil, nodeError(body, err)
		}
		if raw.Counter == "" {
			return nil, nodeError(body, errors.New("for without a counter"))
		}
		stmt := &ast.ForStatement{Counter: raw.Counter}
		if stmt.Start, err = expression(&raw.From); err != nil {
			return nil, err
		}
		if stmt.End, err = expression(&raw.To); err != nil {
			return nil, err
		}
		if !isNull(&raw.Step) {
			if stmt.Step, err = expression(&raw.Step); err != nil {
				return nil, err
			}
		}
		if stmt.Body, err = statements(raw.Body); err != nil {
			return nil, err
		}
		return stmt, nil

	case "while":
		var raw struct {
			Cond yaml.Node   `yaml:"cond"`
			Body []yaml.Node `yaml:"body"`
		}
		if err := body.Decode(&raw); err != nil {
			return nil, nodeError(body, err)
		}
		stmt := &ast.WhileStatement{}
		if stmt.Condition, err = expression(&raw.Cond); err != nil {
			return nil, err
		}
		if stmt.Body, err = statements(raw.Body); err != nil {
			return nil, err
		}
		return stmt, nil

	case "exitFor":
		return &ast.ExitForStatement{}, nil

	case "exitWhile":
		return &ast.ExitWhileStatement{}, nil

	case "return":
		if isNull(body) {
			return &ast.ReturnStatement{}, nil
		}
		v, err := expression(body)
		if err != nil {
			return nil, err
		}
		return &ast.ReturnStatement{Value: v}, nil

	case "throw":
		// a bare scalar is shorthand for a string message
		if body.Kind == yaml.ScalarNode && !isNull(body) {
			return &ast.ThrowStatement{Message: &ast.Literal{Value: value.String(body.Value)}}, nil
		}
		msg, err := expression(body)
		if err != nil {
			return nil, err
		}
		return &ast.ThrowStatement{Message: msg}, nil
	}

	return nil, nodeError(n, fmt.Errorf("%w: statement %q", ErrUnknownNode, key))
}

func expressions(nodes []yaml.Node) ([]ast.Expression, error) {
	out := make([]ast.Expression, 0, len(nodes))
	for i := range nodes {
		e, err := expression(&nodes[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func expression(n *yaml.Node) (ast.Expression, error) {
	if n.Kind == 0 {
		return nil, errors.New("missing expression")
	}
	key, body, err := variant(n)
	if err != nil {
		return nil, err
	}

	switch key {
	case "int":
		var v int32
		if err := body.Decode(&v); err != nil {
			return nil, nodeError(body, err)
		}
		return &ast.Literal{Value: value.Int32(v)}, nil

	case "float":
		var v float32
		if err := body.Decode(&v); err != nil {
			return nil, nodeError(body, err)
		}
		return &ast.Literal{Value: value.Float(v)}, nil

	case "double":
		var v float64
		if err := body.Decode(&v); err != nil {
			return nil, nodeError(body, err)
		}
		return &ast.Literal{Value: value.Double(v)}, nil

	case "str":
		var v string
		if err := body.Decode(&v); err != nil {
			return nil, nodeError(body, err)
		}
		return &ast.Literal{Value: value.String(v)}, nil

	case "bool":
		var v bool
		if err := body.Decode(&v); err != nil {
			return nil, nodeError(body, err)
		}
		return &ast.Literal{Value: value.Bool(v)}, nil

	case "invalid":
		return &ast.Literal{Value: value.Invalid}, nil

	case "var":
		if body.Kind != yaml.ScalarNode || body.Value == "" {
			return nil, nodeError(body, errors.New("var needs a name"))
		}
		return &ast.Identifier{Name: body.Value}, nil

	case "call":
		var raw struct {
			Name string      `yaml:"name"`
			Args []yaml.Node `yaml:"args"`
		}
		if err := body.Decode(&raw); err != nil {
			return nil, nodeError(body, err)
		}
		if raw.Name == "" {
			return nil, nodeError(body, errors.New("call without a name"))
		}
		args, err := expressions(raw.Args)
		if err != nil {
			return nil, err
		}
		return &ast.CallExpression{Function: raw.Name, Arguments: args}, nil

	case "method":
		var raw struct {
			Recv yaml.Node   `yaml:"recv"`
			Name string      `yaml:"name"`
			Args []yaml.Node `yaml:"args"`
		}
		if err := body.Decode(&raw); err != nil {
			return nil, nodeError(body, err)
		}
		if raw.Name == "" {
			return nil, nodeError(body, errors.New("method without a name"))
		}
		recv, err := expression(&raw.Recv)
		if err != nil {
			return nil, err
		}
		args, err := expressions(raw.Args)
		if err != nil {
			return nil, err
		}
		return &ast.MethodCallExpression{Receiver: recv, Method: raw.Name, Arguments: args}, nil

	case "binary":
		var raw struct {
			Op    string    `yaml:"op"`
			Left  yaml.Node `yaml:"left"`
			Right yaml.Node `yaml:"right"`
		}
		if err := body.Decode(&raw); err != nil {
			return nil, nodeError(body, err)
		}
		left, err := expression(&raw.Left)
		if err != nil {
			return nil, err
		}
		right, err := expression(&raw.Right)
		if err != nil {
			return nil, err
		}
		return &ast.InfixExpression{Left: left, Operator: raw.Op, Right: right}, nil

	case "unary":
		var raw struct {
			Op      string    `yaml:"op"`
			Operand yaml.Node `yaml:"operand"`
		}
		if err := body.Decode(&raw); err != nil {
			return nil, nodeError(body, err)
		}
		operand, err := expression(&raw.Operand)
		if err != nil {
			return nil, err
		}
		return &ast.PrefixExpression{Operator: raw.Op, Right: operand}, nil
	}

	return nil, nodeError(n, fmt.Errorf("%w: expression %q", ErrUnknownNode, key))
}
