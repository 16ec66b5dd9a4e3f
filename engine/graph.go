package engine

import (
	"github.com/bittoy/reactor/builtin/interceptor"
	"github.com/bittoy/reactor/types"
)

const derivedLastValueKey = "lastValue"

// Graph bundles one root Context with the tracker, registry, derived graph
// and change observable the default interceptor set needs, wired together
// the way a caller building a subject graph from scratch wants them (spec
// §2 "System Overview" ties components A-I together at this level; no
// single teacher file does this wiring since RuleGo has no equivalent
// composition root).
type Graph struct {
	Context  *Context
	Tracker  *Tracker
	Registry *Registry
	Derived  *DerivedGraph
	Changes  *ChangeObservable
}

// NewGraph constructs a Context via opts and installs the default
// interceptor chain (Lifecycle, ReadRecorder, EqualityCheck,
// DerivedChange, ChangeObservable); their Order values run a write through
// equality checking, lifecycle, derived-change and change publishing, in
// that order. Equality checking happens before the setter runs; change
// publishing, derived invalidation and lifecycle attach/detach happen
// after it returns, innermost first.
func NewGraph(opts ...types.ContextOption) (*Graph, error) {
	ctx, err := NewContext(opts...)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		Context:  ctx,
		Tracker:  NewTracker(),
		Registry: nil,
		Derived:  NewDerivedGraph(),
		Changes:  NewChangeObservable(),
	}
	g.Registry = NewRegistry(g.Tracker)

	ctx.AddWriteInterceptor(interceptor.Lifecycle{Tracker: g.Tracker})
	ctx.AddWriteInterceptor(interceptor.EqualityCheck{})
	ctx.AddWriteInterceptor(interceptor.DerivedChange{
		Graph:     g.Derived,
		Recompute: g.recomputeDerived,
	})
	ctx.AddWriteInterceptor(interceptor.ChangeObservable{
		Publisher: g.Changes,
		NewChange: NewPropertyChange,
	})
	ctx.AddReadInterceptor(interceptor.ReadRecorder{Record: recordRead})
	ctx.TryAddService(types.ServiceRoleDerivedRecorder, g)

	return g, nil
}

// RecordRead implements types.DerivedRecorder: it is the single place that
// turns a derived property's freshly-discovered dependency set and value
// into updated graph edges and, when warranted, a synthetic change event
// (spec §4.F). Context.Read calls this on every read of a derived
// property; recomputeDerived below calls it on every write-triggered
// recompute, so both paths share one definition of "did this change".
func (g *Graph) RecordRead(ref types.PropertyReference, deps []types.PropertyReference, value any) {
	g.Derived.Record(ref, deps)

	key := types.PropertyKey(ref.Property, derivedLastValueKey)
	oldValue, hadOld := ref.Subject.Data().Get(key)
	ref.Subject.Data().Set(key, value)

	if hadOld && oldValue == value {
		return
	}
	g.Changes.Publish(NewPropertyChange(ref.Subject, ref.Property, oldValue, value))
}

// recomputeDerived re-reads ref's getter under a fresh recording frame (so
// the dependency graph stays current as the derived computation's own
// reads shift over time) and hands the result to RecordRead. Derived
// properties have no setter, so this bypasses Context.Write entirely
// rather than recursing through the write pipeline.
func (g *Graph) recomputeDerived(ref types.PropertyReference) {
	meta, ok := ref.Subject.Properties()[ref.Property]
	if !ok || !meta.IsDerived {
		return
	}

	end := BeginRecording()
	newValue := meta.Get(ref.Subject)
	deps := end()
	g.RecordRead(ref, deps, newValue)
}

// InitDerived runs subject's derived property named property once to
// establish its initial dependency edges and cached value, without
// publishing a change (there is no prior value to differ from). Kept for
// callers that want dependency edges established eagerly at construction
// time rather than waiting for the property's first read or a write to one
// of its dependencies — both of which now establish the same edges via
// RecordRead, so calling this is an optimization, not a requirement.
func (g *Graph) InitDerived(subject types.Subject, property string) {
	meta, ok := subject.Properties()[property]
	if !ok || !meta.IsDerived {
		return
	}
	ref := types.PropertyReference{Subject: subject, Property: property}
	end := BeginRecording()
	value := meta.Get(subject)
	deps := end()
	g.Derived.Record(ref, deps)
	subject.Data().Set(types.PropertyKey(property, derivedLastValueKey), value)
}
