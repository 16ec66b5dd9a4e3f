package engine

import (
	"sync"

	"github.com/bittoy/reactor/internal/glocal"
	"github.com/bittoy/reactor/types"
)

var recordingStack = glocal.NewStack("reactor.derived.recording")

// recordRead appends ref to the current goroutine's top recording frame, if
// one is active. Called by builtin/interceptor.ReadRecorder on every read,
// regardless of whether a derived computation is in progress.
func recordRead(ref types.PropertyReference) {
	top, ok := recordingStack.Peek()
	if !ok {
		return
	}
	frame := top.(*[]types.PropertyReference)
	*frame = append(*frame, ref)
}

// BeginRecording pushes a new empty frame, returning a function that pops
// it and returns every property read while it was on top. Nested
// recordings (a derived property reading another derived property) only
// add to the innermost frame; the returned end function restores the outer frame so its
// caller keeps seeing its own reads, unaffected by the nested computation.
func BeginRecording() (end func() []types.PropertyReference) {
	frame := new([]types.PropertyReference)
	recordingStack.Push(frame)
	return func() []types.PropertyReference {
		recordingStack.Pop()
		return *frame
	}
}

// DerivedGraph is the reverse dependency map the derived-property engine
// maintains by auto-discovery (spec §4.F): each derived property's getter
// is run once under BeginRecording, and every concrete property it reads
// becomes an edge dependency -> dependent. A write to any recorded
// dependency invalidates (and, by default, eagerly recomputes) everything
// transitively reachable from it.
type DerivedGraph struct {
	mu         sync.Mutex
	dependents map[types.PropertyReference]map[types.PropertyReference]struct{}
	// lastDeps remembers the most recent dependency set recorded for a
	// derived property, so re-recording (after that property's own
	// recompute) can drop edges for dependencies it no longer reads.
	lastDeps map[types.PropertyReference][]types.PropertyReference
}

func NewDerivedGraph() *DerivedGraph {
	return &DerivedGraph{
		dependents: make(map[types.PropertyReference]map[types.PropertyReference]struct{}),
		lastDeps:   make(map[types.PropertyReference][]types.PropertyReference),
	}
}

// Record replaces dependent's dependency set with deps, discovered from one
// BeginRecording/end() pair around dependent's getter.
func (g *DerivedGraph) Record(dependent types.PropertyReference, deps []types.PropertyReference) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, old := range g.lastDeps[dependent] {
		if set, ok := g.dependents[old]; ok {
			delete(set, dependent)
			if len(set) == 0 {
				delete(g.dependents, old)
			}
		}
	}

	stored := make([]types.PropertyReference, 0, len(deps))
	for _, dep := range deps {
		if dep.Equal(dependent) {
			continue // a derived property reading itself is not a dependency edge
		}
		set, ok := g.dependents[dep]
		if !ok {
			set = make(map[types.PropertyReference]struct{})
			g.dependents[dep] = set
		}
		set[dependent] = struct{}{}
		stored = append(stored, dep)
	}
	g.lastDeps[dependent] = stored
}

// DependentsOf returns every derived property currently depending on ref,
// directly (not transitively — callers needing the full closure call this
// repeatedly in Invalidate's worklist loop).
func (g *DerivedGraph) DependentsOf(ref types.PropertyReference) []types.PropertyReference {
	g.mu.Lock()
	defer g.mu.Unlock()
	set := g.dependents[ref]
	out := make([]types.PropertyReference, 0, len(set))
	for dep := range set {
		out = append(out, dep)
	}
	return out
}

// Forget drops every edge touching subject, called on detach so a removed
// subject's derived properties stop being tracked and stop holding other
// subjects' properties as dependents.
func (g *DerivedGraph) Forget(subject types.Subject) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for dep := range g.lastDeps {
		if dep.Subject == subject {
			for _, old := range g.lastDeps[dep] {
				if set, ok := g.dependents[old]; ok {
					delete(set, dep)
					if len(set) == 0 {
						delete(g.dependents, old)
					}
				}
			}
			delete(g.lastDeps, dep)
		}
	}
	delete(g.dependents, types.PropertyReference{Subject: subject})
	for dep, set := range g.dependents {
		if dep.Subject == subject {
			delete(g.dependents, dep)
			continue
		}
		for d := range set {
			if d.Subject == subject {
				delete(set, d)
			}
		}
	}
}

// Invalidate walks the transitive closure of ref's dependents and invokes
// onStale for each, in breadth-first discovery order, visiting each
// dependent at most once even under a diamond dependency shape.
func (g *DerivedGraph) Invalidate(ref types.PropertyReference, onStale func(types.PropertyReference)) {
	seen := map[types.PropertyReference]struct{}{ref: {}}
	queue := g.DependentsOf(ref)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if _, ok := seen[next]; ok {
			continue
		}
		seen[next] = struct{}{}
		onStale(next)
		queue = append(queue, g.DependentsOf(next)...)
	}
}
