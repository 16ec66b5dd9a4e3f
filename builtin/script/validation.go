// Package script provides a JavaScript-expression write interceptor for
// validating candidate property values, grounded line-for-line on the
// teacher's pooled-goja.Runtime filter node
// (bittoy-rule/components/transform/js_filter_node.go) — see DESIGN.md's
// §C entry. Repurposed from "filter a RuleMsg" to "validate a candidate
// property value".
package script

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/bittoy/reactor/types"
)

const validateFuncTemplate = "function validate(value, current, subject) { %s }"

// ValidationInterceptor rejects a candidate write when its compiled script
// returns false (or throws). The script sees the candidate value, the
// current value, and the owning subject's type tag as "value", "current"
// and "subject" respectively, and must return a boolean.
type ValidationInterceptor struct {
	order    int
	property string
	pool     *sync.Pool
}

// NewValidationInterceptor compiles script once and returns an
// interceptor that only ever applies to writes on the named property.
// order lets callers place several validators (for different properties)
// relative to each other and to the built-in interceptors.
func NewValidationInterceptor(order int, property, script string) (*ValidationInterceptor, error) {
	src := fmt.Sprintf(validateFuncTemplate, script)
	program, err := goja.Compile("validate.js", src, true)
	if err != nil {
		return nil, fmt.Errorf("reactor: compile validation script for %q: %w", property, err)
	}

	pool := &sync.Pool{
		New: func() any {
			vm := goja.New()
			if _, err := vm.RunProgram(program); err != nil {
				panic(fmt.Sprintf("reactor: failed to run validation program in new VM: %v", err))
			}
			return vm
		},
	}

	return &ValidationInterceptor{order: order, property: property, pool: pool}, nil
}

func (v *ValidationInterceptor) Order() int { return v.order }

func (v *ValidationInterceptor) Write(wctx *types.WriteContext, next types.WriteNext) error {
	if wctx.Property != v.property {
		return next()
	}

	vm := v.pool.Get().(*goja.Runtime)
	defer v.pool.Put(vm)

	fnVal := vm.Get("validate")
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return errors.New("reactor: validate is not a function")
	}

	res, err := fn(goja.Undefined(), vm.ToValue(wctx.New), vm.ToValue(wctx.Current), vm.ToValue(types.TypeTag(wctx.Subject)))
	if err != nil {
		return types.NewError(types.ValidationFailed, wctx.Subject, wctx.Property, err)
	}

	passed, ok := res.Export().(bool)
	if !ok {
		return types.NewError(types.ValidationFailed, wctx.Subject, wctx.Property, errors.New("validation script did not return a boolean"))
	}
	if !passed {
		return types.NewError(types.ValidationFailed, wctx.Subject, wctx.Property, nil)
	}
	return next()
}

var _ types.WriteInterceptor = (*ValidationInterceptor)(nil)
