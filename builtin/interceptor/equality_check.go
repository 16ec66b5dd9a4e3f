package interceptor

import (
	"reflect"

	"github.com/bittoy/reactor/types"
)

// EqualityCheck short-circuits a write whose candidate value equals the
// property's current value, so untouched properties in a partial update
// never fan out a change or invalidate dependents (spec §4.G/§4.H).
// Mirrors the teacher's validator aspect's before-hook veto shape
// (builtin/aspect/chain_validator_aspect.go): decline to call next rather
// than erroring.
type EqualityCheck struct{}

func (EqualityCheck) Order() int { return OrderEqualityCheck }

func (EqualityCheck) Write(wctx *types.WriteContext, next types.WriteNext) error {
	if valuesEqual(wctx.Current, wctx.New) {
		wctx.Final = wctx.Current
		return nil
	}
	return next()
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if comparable, ok := a.(interface{ Equal(any) bool }); ok {
		return comparable.Equal(b)
	}
	av := reflect.ValueOf(a)
	bv := reflect.ValueOf(b)
	if av.Type() != bv.Type() {
		return false
	}
	if av.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

var _ types.WriteInterceptor = EqualityCheck{}
