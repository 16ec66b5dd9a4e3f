package interceptor

import "github.com/bittoy/reactor/types"

// Invalidator is the subset of engine.DerivedGraph this interceptor needs.
type Invalidator interface {
	Invalidate(ref types.PropertyReference, onStale func(types.PropertyReference))
}

// DerivedChange notifies the derived-property graph after an accepted
// write so every transitively dependent derived property is recomputed
// (spec §4.F: "a write to a dependency recomputes every dependent, which
// may itself be a recorded dependency of another"). Its work runs after the
// setter returns; ChangeObservable sits closer to the setter, so the
// dependency's own change is published first and a derived property's
// recompute (and any change it in turn publishes) follows it.
type DerivedChange struct {
	Graph     Invalidator
	Recompute func(ref types.PropertyReference)
}

func (DerivedChange) Order() int { return OrderDerivedChange }

func (d DerivedChange) Write(wctx *types.WriteContext, next types.WriteNext) error {
	if err := next(); err != nil {
		return err
	}
	if d.Graph == nil || d.Recompute == nil {
		return nil
	}
	ref := types.PropertyReference{Subject: wctx.Subject, Property: wctx.Property}
	d.Graph.Invalidate(ref, d.Recompute)
	return nil
}

var _ types.WriteInterceptor = DerivedChange{}
