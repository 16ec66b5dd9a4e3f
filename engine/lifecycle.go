package engine

import (
	"reflect"
	"sync"

	"github.com/bittoy/reactor/types"
)

// Tracker is the reference-counted lifecycle tracker (spec §4.D). No
// teacher precedent exists for this component (RuleGo has no attach/detach
// graph); built from spec.md §4.D directly. Pooled scratch collections for
// the two traversal walks reuse the sync.Pool idiom the teacher applies to
// goja.Runtime pooling (components/transform/js_filter_node.go) — see
// DESIGN.md's §D entry.
type Tracker struct {
	mu    sync.Mutex
	state map[types.Subject]*subjectState
}

type subjectState struct {
	refCount int
	parents  []types.ParentReference
}

func NewTracker() *Tracker {
	return &Tracker{state: make(map[types.Subject]*subjectState)}
}

var touchedSetPool = sync.Pool{
	New: func() any { return make(map[types.Subject]struct{}) },
}

func getTouchedSet() map[types.Subject]struct{} {
	return touchedSetPool.Get().(map[types.Subject]struct{})
}

func putTouchedSet(m map[types.Subject]struct{}) {
	for k := range m {
		delete(m, k)
	}
	touchedSetPool.Put(m)
}

// Attach connects child under parent's property (and index, for a
// collection/dictionary element), incrementing its reference count and
// recursing into child's own subject-valued properties. Phase 1 (this
// structural walk) completes before phase 2 (per-property attach
// notifications) fires, batched across the whole transitive attach.
func (t *Tracker) Attach(parent types.Subject, property string, index any, child types.Subject) {
	if child == nil {
		return
	}
	touched := getTouchedSet()
	defer putTouchedSet(touched)

	var phase2 []types.Subject
	t.attachStructural(parent, property, index, child, touched, &phase2)

	for _, s := range phase2 {
		t.dispatchPropertyAttach(s)
	}
}

func (t *Tracker) attachStructural(parent types.Subject, property string, index any, child types.Subject, touched map[types.Subject]struct{}, phase2 *[]types.Subject) {
	// A subject already touched in this enumeration is skipped entirely,
	// not merely left unrecursed: this is what keeps a cycle (A.Child=B;
	// B.Child=A) a finite closure with {A:1, B:1} rather than an
	// ever-incrementing reference count as the traversal loops back.
	if _, seen := touched[child]; seen {
		return
	}
	touched[child] = struct{}{}

	t.mu.Lock()
	st, ok := t.state[child]
	if !ok {
		st = &subjectState{}
		t.state[child] = st
	}
	st.refCount++
	isFirst := st.refCount == 1
	st.parents = append(st.parents, types.ParentReference{Parent: parent, Property: property, Index: index})
	t.mu.Unlock()

	if parent != nil && parent.Context() != nil {
		child.SetContext(withFallback(child.Context(), parent.Context()))
	}

	if isFirst {
		*phase2 = append(*phase2, child)
	}
	t.dispatchAttach(types.LifecycleChange{
		Subject: child, Property: property, Index: index,
		ReferenceCount: st.refCount, IsFirstAttach: isFirst,
	})

	for name, meta := range child.Properties() {
		if !meta.IsSubjectValued() {
			continue
		}
		for _, c := range childrenOf(meta, child) {
			t.attachStructural(child, name, c.Index, c.Subject, touched, phase2)
		}
	}
}

// Detach disconnects child from parent's property, decrementing its
// reference count, and recurses into its own children (whatever the
// remaining count). Phase-2 property-detach notifications for subjects that
// reached zero fire after the whole structural walk completes, in reverse
// of the order those subjects were reached (spec §4.D: "reverse-order
// detach").
func (t *Tracker) Detach(parent types.Subject, property string, index any, child types.Subject) {
	if child == nil {
		return
	}
	touched := getTouchedSet()
	defer putTouchedSet(touched)

	var phase2 []types.Subject
	t.detachStructural(parent, property, index, child, touched, &phase2)

	for i := len(phase2) - 1; i >= 0; i-- {
		t.dispatchPropertyDetach(phase2[i])
	}
}

func (t *Tracker) detachStructural(parent types.Subject, property string, index any, child types.Subject, touched map[types.Subject]struct{}, phase2 *[]types.Subject) {
	if _, seen := touched[child]; seen {
		return
	}
	touched[child] = struct{}{}

	t.mu.Lock()
	st, ok := t.state[child]
	if !ok {
		t.mu.Unlock()
		return
	}
	st.refCount--
	for i, pr := range st.parents {
		if pr.Parent == parent && pr.Property == property && indexEqual(pr.Index, index) {
			st.parents = append(st.parents[:i], st.parents[i+1:]...)
			break
		}
	}
	isLast := st.refCount <= 0
	if isLast {
		delete(t.state, child)
	}
	t.mu.Unlock()

	t.dispatchDetach(types.LifecycleChange{
		Subject: child, Property: property, Index: index,
		ReferenceCount: maxInt(st.refCount, 0), IsLastDetach: isLast,
	})

	for name, meta := range child.Properties() {
		if !meta.IsSubjectValued() {
			continue
		}
		for _, c := range childrenOf(meta, child) {
			t.detachStructural(child, name, c.Index, c.Subject, touched, phase2)
		}
	}

	if isLast {
		*phase2 = append(*phase2, child)
	}
}

func (t *Tracker) dispatchAttach(change types.LifecycleChange) {
	for _, h := range handlersFor[types.LifecycleHandler](change.Subject, types.ServiceRoleLifecycleHandler) {
		h.OnAttach(change)
	}
	if h, ok := change.Subject.(types.LifecycleHandler); ok {
		h.OnAttach(change)
	}
}

func (t *Tracker) dispatchDetach(change types.LifecycleChange) {
	for _, h := range handlersFor[types.LifecycleHandler](change.Subject, types.ServiceRoleLifecycleHandler) {
		h.OnDetach(change)
	}
	if h, ok := change.Subject.(types.LifecycleHandler); ok {
		h.OnDetach(change)
	}
}

func (t *Tracker) dispatchPropertyAttach(subject types.Subject) {
	for name := range subject.Properties() {
		change := types.PropertyLifecycleChange{Subject: subject, Property: name}
		for _, h := range handlersFor[types.PropertyLifecycleHandler](subject, types.ServiceRolePropertyLifecycleHandler) {
			h.OnPropertyAttach(change)
		}
		if h, ok := subject.(types.PropertyLifecycleHandler); ok {
			h.OnPropertyAttach(change)
		}
	}
}

func (t *Tracker) dispatchPropertyDetach(subject types.Subject) {
	for name := range subject.Properties() {
		change := types.PropertyLifecycleChange{Subject: subject, Property: name}
		for _, h := range handlersFor[types.PropertyLifecycleHandler](subject, types.ServiceRolePropertyLifecycleHandler) {
			h.OnPropertyDetach(change)
		}
		if h, ok := subject.(types.PropertyLifecycleHandler); ok {
			h.OnPropertyDetach(change)
		}
	}
}

func handlersFor[T any](subject types.Subject, role string) []T {
	ctx := subject.Context()
	if ctx == nil {
		return nil
	}
	var out []T
	for _, svc := range ctx.GetServices(role) {
		if h, ok := svc.(T); ok {
			out = append(out, h)
		}
	}
	return out
}

// Get returns the registry-visible state of subject: its reference count
// and parent references, mirroring types.RegisteredSubject without the
// Properties slice (that projection lives in engine/registry.go).
func (t *Tracker) Get(subject types.Subject) (refCount int, parents []types.ParentReference, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.state[subject]
	if !ok {
		return 0, nil, false
	}
	return st.refCount, append([]types.ParentReference(nil), st.parents...), true
}

// All returns every subject currently tracked with a positive reference
// count.
func (t *Tracker) All() []types.Subject {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.Subject, 0, len(t.state))
	for s := range t.state {
		out = append(out, s)
	}
	return out
}

func childrenOf(meta *types.PropertyMetadata, owner types.Subject) []types.SubjectPropertyChild {
	v := meta.Get(owner)
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case meta.IsSubjectReference:
		if s, ok := v.(types.Subject); ok && s != nil {
			return []types.SubjectPropertyChild{{Subject: s}}
		}
		return nil
	case meta.IsSubjectCollection:
		if rv.Kind() != reflect.Slice {
			return nil
		}
		out := make([]types.SubjectPropertyChild, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if s, ok := rv.Index(i).Interface().(types.Subject); ok && s != nil {
				out = append(out, types.SubjectPropertyChild{Subject: s, Index: i})
			}
		}
		return out
	case meta.IsSubjectDictionary:
		if rv.Kind() != reflect.Map {
			return nil
		}
		out := make([]types.SubjectPropertyChild, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			if s, ok := rv.MapIndex(k).Interface().(types.Subject); ok && s != nil {
				out = append(out, types.SubjectPropertyChild{Subject: s, Index: k.Interface()})
			}
		}
		return out
	default:
		return nil
	}
}

func indexEqual(a, b any) bool {
	return a == b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// withFallback returns child unchanged if it already has parentCtx as a
// fallback, else adds parentCtx to child's own fallbacks and returns child.
// Subjects created standalone (without a Context) attach parentCtx directly.
func withFallback(child types.Context, parentCtx types.Context) types.Context {
	if child == nil {
		return parentCtx
	}
	for _, f := range child.FallbackContexts() {
		if f == parentCtx {
			return child
		}
	}
	child.AddFallbackContext(parentCtx)
	return child
}
