package engine

import (
	"fmt"

	"github.com/bittoy/reactor/types"
)

// Read drives subject's property through the read interception chain,
// terminating in the property's own getter (spec §4.C). Grounded on the
// teacher's onBefore/onAfter fold in bittoy-rule/engine/chain.go, collapsed
// from a fixed before/after pair into a single next()-style fold matching
// the spec's one-continuation interceptor contract.
func (c *Context) Read(subject types.Subject, property string) any {
	meta, ok := subject.Properties()[property]
	if !ok {
		panic(fmt.Sprintf("reactor: unknown property %q on %s", property, types.TypeTag(subject)))
	}

	interceptors := c.ReadInterceptors()
	var chain types.ReadNext
	chain = func() any { return meta.Get(subject) }
	for i := len(interceptors) - 1; i >= 0; i-- {
		ic := interceptors[i]
		next := chain
		chain = func() any { return ic.Read(subject, property, next) }
	}

	if !meta.IsDerived {
		return chain()
	}

	// A derived property establishes its dependency edges on every read,
	// not only when a write to an already-known dependency triggers a
	// recompute (spec §4.F): wrap the chain in its own recording frame so
	// a property read before any triggering write, or one whose subject
	// constructor never called InitDerived, still discovers what it reads
	// and reports it to whatever service is recording dependency edges.
	end := BeginRecording()
	value := chain()
	deps := end()

	if recorder, ok := c.GetService(types.ServiceRoleDerivedRecorder); ok {
		if dr, ok := recorder.(types.DerivedRecorder); ok {
			dr.RecordRead(types.PropertyReference{Subject: subject, Property: property}, deps, value)
		}
	}
	return value
}

// Write drives a candidate value through the write interception chain,
// terminating in the property's own setter. An interceptor that declines
// to call next short-circuits the remaining chain and the setter itself —
// used by the equality-check interceptor to suppress no-op writes.
func (c *Context) Write(subject types.Subject, property string, value any) error {
	meta, ok := subject.Properties()[property]
	if !ok {
		return types.NewError(types.UnknownProperty, subject, property, nil)
	}
	if meta.Set == nil {
		return types.NewError(types.ReadOnlyProperty, subject, property, nil)
	}

	wctx := &types.WriteContext{
		Subject:  subject,
		Property: property,
		Current:  meta.Get(subject),
		New:      value,
	}

	interceptors := c.WriteInterceptors()
	var chain types.WriteNext
	chain = func() error {
		wctx.Final = wctx.New
		return meta.Set(subject, wctx.Final)
	}
	for i := len(interceptors) - 1; i >= 0; i-- {
		ic := interceptors[i]
		next := chain
		chain = func() error { return ic.Write(wctx, next) }
	}
	return chain()
}
