package vm

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/zurustar/brsrt/pkg/ast"
	"github.com/zurustar/brsrt/pkg/value"
)

// nestedFor builds depth nested loops 1..width whose innermost body counts
// one iteration and exits.
func nestedFor(depth int, width int32) ast.Statement {
	body := []ast.Statement{incr("hits"), &ast.ExitForStatement{}}
	for d := depth; d >= 1; d-- {
		body = []ast.Statement{forLoop(fmt.Sprintf("i%d", d), 1, width, body...)}
	}
	return body[0]
}

func TestProperty_ExitForEndsOnlyInnermostLoop(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("exit for consumed by the innermost loop at any depth", prop.ForAll(
		func(depth int, width int32) bool {
			in, _ := newTestInterpreter()
			env := NewScope(nil)
			env.Set("hits", value.Int32(0))

			if sig := in.Exec(env, nestedFor(depth, width)); !sig.IsNone() {
				return false
			}

			// every loop but the innermost runs to completion
			want := int32(1)
			for d := 1; d < depth; d++ {
				want *= width
			}
			hits, _ := env.Get("hits")
			return hits.Equal(value.Int32(want))
		},
		gen.IntRange(1, 5),
		gen.Int32Range(1, 4),
	))

	properties.Property("statement after a signal never runs", prop.ForAll(
		func(before int, kind int) bool {
			in, _ := newTestInterpreter()
			env := NewScope(nil)
			env.Set("n", value.Int32(0))

			var stop ast.Statement
			switch kind {
			case 0:
				stop = &ast.ExitForStatement{}
			case 1:
				stop = &ast.ExitWhileStatement{}
			case 2:
				stop = ret(num(1))
			default:
				stop = &ast.ThrowStatement{Message: str("stop")}
			}

			stmts := make([]ast.Statement, 0, before+2)
			for i := 0; i < before; i++ {
				stmts = append(stmts, incr("n"))
			}
			stmts = append(stmts, stop, incr("n"))

			sig := in.ExecBlock(env, stmts)
			n, _ := env.Get("n")
			return !sig.IsNone() && n.Equal(value.Int32(int32(before)))
		},
		gen.IntRange(0, 10),
		gen.IntRange(0, 3),
	))

	properties.TestingRun(t)
}
