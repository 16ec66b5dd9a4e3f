// Package compute builds types.PropertyGetter values from declarative
// expr-lang expressions, grounded on the teacher's compile-once
// vm.Program pattern
// (bittoy-rule/components/transform/expr_filter_node.go) — see
// DESIGN.md's §F entry. Repurposed from "evaluate a boolean filter over a
// message" to "compute a derived value from the owning subject's other
// properties".
package compute

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/bittoy/reactor/types"
)

// ExprGetter evaluates a compiled expr-lang program against a
// subject-scoped environment (one entry per readable property, read
// through the subject's own context so the read still participates in
// dependency auto-discovery — see engine.BeginRecording).
type ExprGetter struct {
	program *vm.Program
}

// NewExprGetter compiles script once. The expression's environment is a
// map[string]any built fresh from the subject's properties on every
// evaluation (see Getter), so the expression may reference any property
// by name.
func NewExprGetter(script string) (*ExprGetter, error) {
	program, err := expr.Compile(script, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("reactor: compile derived expression %q: %w", script, err)
	}
	return &ExprGetter{program: program}, nil
}

// Getter returns a types.PropertyGetter closing over g. The environment
// exposes "self" (the subject's type tag) plus one entry per non-derived
// property, read via subject.Context().Read so each access is recorded
// exactly like a hand-written derived getter's reads would be. Derived
// properties are left out of the environment: including them would read
// them through the very getter that is still being evaluated, recursing
// forever the moment an expression's own property is in scope.
func (g *ExprGetter) Getter() types.PropertyGetter {
	return func(subject types.Subject) any {
		props := subject.Properties()
		env := make(map[string]any, len(props)+1)
		env["self"] = types.TypeTag(subject)
		ctx := subject.Context()
		if ctx != nil {
			for name, meta := range props {
				if meta.IsDerived {
					continue
				}
				env[name] = ctx.Read(subject, name)
			}
		}
		out, err := expr.Run(g.program, env)
		if err != nil {
			return nil
		}
		return out
	}
}
