// Package interceptor holds the built-in ordered read/write interceptors
// engine.NewGraph installs on its root context: equality checking, derived-property
// invalidation, change publishing and read-dependency recording. Grounded
// on the shape of the teacher's built-in aspects
// (bittoy-rule/builtin/aspect/chain_validator_aspect.go,
// chain_debug_aspect.go) — see DESIGN.md's §C entry.
package interceptor

import (
	"github.com/bittoy/reactor/types"
)

// Order constants fix the default install order; lower runs first (for
// reads, closest to the caller; for writes, closest to the caller before
// the setter). Declared here, not computed, so independently-authored
// interceptors can slot in between built-ins deliberately.
const (
	OrderReadRecorder = 100

	OrderEqualityCheck    = 100
	OrderDerivedChange    = 200
	OrderChangeObservable = 300
)

// RecordFunc is called with every (subject, property) pair read through
// the pipeline while a derived-property recording frame is active;
// no-ops otherwise. Decoupled from engine's concrete recorder via a plain
// function value so this package never imports engine (avoiding an import
// cycle — engine installs these interceptors and depends on this
// package, not the reverse).
type RecordFunc func(types.PropertyReference)

// ReadRecorder is a types.ReadInterceptor that reports every read to
// Record, used by the derived-property engine to auto-discover a derived
// getter's dependencies (spec §4.F).
type ReadRecorder struct {
	Record RecordFunc
}

func (r ReadRecorder) Order() int { return OrderReadRecorder }

func (r ReadRecorder) Read(subject types.Subject, property string, next types.ReadNext) any {
	if r.Record != nil {
		r.Record(types.PropertyReference{Subject: subject, Property: property})
	}
	return next()
}

var _ types.ReadInterceptor = ReadRecorder{}
