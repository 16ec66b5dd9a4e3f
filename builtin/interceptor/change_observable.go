package interceptor

import "github.com/bittoy/reactor/types"

// ChangePublisher is the subset of types.ChangeObservable this interceptor
// needs; satisfied by engine.ChangeObservable.
type ChangePublisher interface {
	Publish(types.PropertyChange)
}

// NewChangeFunc builds the PropertyChange to publish for one accepted
// write; engine.NewPropertyChange supplies this (this package does not
// import engine, to avoid a cycle).
type NewChangeFunc func(subject types.Subject, property string, old, new any) types.PropertyChange

// ChangeObservable publishes an accepted write to Publisher after the
// setter runs, stamped via NewChange. Runs last among the built-ins so it
// only ever sees writes that survived equality checking and the setter
// itself (spec §4.G).
type ChangeObservable struct {
	Publisher ChangePublisher
	NewChange NewChangeFunc
}

func (ChangeObservable) Order() int { return OrderChangeObservable }

func (c ChangeObservable) Write(wctx *types.WriteContext, next types.WriteNext) error {
	if err := next(); err != nil {
		return err
	}
	if c.Publisher != nil && c.NewChange != nil {
		c.Publisher.Publish(c.NewChange(wctx.Subject, wctx.Property, wctx.Current, wctx.Final))
	}
	return nil
}

var _ types.WriteInterceptor = ChangeObservable{}
