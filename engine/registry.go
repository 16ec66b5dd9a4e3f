package engine

import (
	"sync"

	"github.com/bittoy/reactor/types"
)

// Registry is the default types.Registry, grounded on the teacher's
// RuleComponentRegistry (engine/registry.go): an RWMutex-guarded map,
// adapted here from "component type -> prototype" to "subject ->
// RegisteredSubject", answered by reading Tracker's reference counts and
// parent lists instead of explicit Register calls; it does not subscribe to
// lifecycle events itself (spec §4.E).
type Registry struct {
	tracker *Tracker

	mu       sync.RWMutex
	dynamics map[types.Subject][]string
}

// NewRegistry builds a Registry backed by tracker. It registers no
// lifecycle handler; the registry's own state is simply a read-through view
// of tracker plus dynamically-added property names.
func NewRegistry(tracker *Tracker) *Registry {
	return &Registry{tracker: tracker, dynamics: make(map[types.Subject][]string)}
}

func (r *Registry) Get(subject types.Subject) (types.RegisteredSubject, bool) {
	refCount, parents, ok := r.tracker.Get(subject)
	if !ok {
		return types.RegisteredSubject{}, false
	}
	_ = refCount
	return types.RegisteredSubject{
		Subject:    subject,
		Properties: r.propertyNames(subject),
		Parents:    parents,
	}, true
}

func (r *Registry) All() []types.RegisteredSubject {
	subjects := r.tracker.All()
	out := make([]types.RegisteredSubject, 0, len(subjects))
	for _, s := range subjects {
		rs, ok := r.Get(s)
		if ok {
			out = append(out, rs)
		}
	}
	return out
}

func (r *Registry) AddDynamicProperty(subject types.Subject, meta *types.PropertyMetadata) error {
	if meta == nil || meta.Name == "" {
		return types.NewError(types.InternalInvariant, subject, "", nil)
	}
	subject.Properties()[meta.Name] = meta

	r.mu.Lock()
	r.dynamics[subject] = append(r.dynamics[subject], meta.Name)
	r.mu.Unlock()
	return nil
}

func (r *Registry) propertyNames(subject types.Subject) []string {
	props := subject.Properties()
	out := make([]string, 0, len(props))
	for name := range props {
		out = append(out, name)
	}
	return out
}

var _ types.Registry = (*Registry)(nil)
