package interceptor

import (
	"reflect"

	"github.com/bittoy/reactor/types"
)

// GraphTracker is the subset of engine.Tracker a write to a subject-valued
// property needs: detach whatever was there before, attach whatever is
// there after.
type GraphTracker interface {
	Attach(parent types.Subject, property string, index any, child types.Subject)
	Detach(parent types.Subject, property string, index any, child types.Subject)
}

// Lifecycle keeps the reference-counted tracker in sync with writes to any
// subject-valued property — single reference, ordered collection or keyed
// dictionary alike (spec §4.D). A write runs the two-set diff generically:
// every subject reachable from the pre-value and the post-value is
// enumerated as a (subject, property, index) tuple, subjects present only
// in the old set are detached in reverse enumeration order, subjects
// present only in the new set are attached in enumeration order. This
// package cannot import engine (engine/graph.go imports this package), so
// the enumeration below is a local, reflect-based equivalent of
// engine.childrenOf/attachStructural rather than a shared helper.
type Lifecycle struct {
	Tracker GraphTracker
}

// Order places Lifecycle right after EqualityCheck and ahead of
// DerivedChange and ChangeObservable, so a no-op write that EqualityCheck
// short-circuits never reaches the tracker.
func (Lifecycle) Order() int { return OrderEqualityCheck + 10 }

func (l Lifecycle) Write(wctx *types.WriteContext, next types.WriteNext) error {
	meta, ok := wctx.Subject.Properties()[wctx.Property]
	if !ok || !meta.IsSubjectValued() {
		return next()
	}

	oldValue := wctx.Current
	if err := next(); err != nil {
		return err
	}
	newValue := wctx.Final

	if l.Tracker == nil {
		return nil
	}

	oldRefs := enumerateSubjectRefs(wctx.Property, oldValue, make(map[types.Subject]struct{}))
	newRefs := enumerateSubjectRefs(wctx.Property, newValue, make(map[types.Subject]struct{}))
	if len(oldRefs) == 0 && len(newRefs) == 0 {
		return nil
	}

	oldSet := make(map[types.Subject]struct{}, len(oldRefs))
	for _, r := range oldRefs {
		oldSet[r.subject] = struct{}{}
	}
	newSet := make(map[types.Subject]struct{}, len(newRefs))
	for _, r := range newRefs {
		newSet[r.subject] = struct{}{}
	}

	for i := len(oldRefs) - 1; i >= 0; i-- {
		r := oldRefs[i]
		if _, stillPresent := newSet[r.subject]; stillPresent {
			continue
		}
		l.Tracker.Detach(wctx.Subject, r.property, r.index, r.subject)
	}
	for _, r := range newRefs {
		if _, alreadyPresent := oldSet[r.subject]; alreadyPresent {
			continue
		}
		l.Tracker.Attach(wctx.Subject, r.property, r.index, r.subject)
	}
	return nil
}

// subjectRef is one (subject, owning-property, index) tuple discovered
// while enumerating a subject-valued property's current value. index is
// nil for a single reference, an int for an ordered collection entry, and
// a dictionary's key type for a keyed entry.
type subjectRef struct {
	subject  types.Subject
	property string
	index    any
}

// enumerateSubjectRefs walks value — a single subject reference, an
// ordered collection, or a keyed dictionary — into its subjectRef tuples
// in enumeration order, skipping nil entries and breaking cycles with an
// identity-based touched set (spec §4.D).
func enumerateSubjectRefs(property string, value any, touched map[types.Subject]struct{}) []subjectRef {
	if single, ok := value.(types.Subject); ok {
		if isNilSubject(single) {
			return nil
		}
		if _, seen := touched[single]; seen {
			return nil
		}
		touched[single] = struct{}{}
		return []subjectRef{{subject: single, property: property, index: nil}}
	}

	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		return nil
	}

	var out []subjectRef
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			child, ok := rv.Index(i).Interface().(types.Subject)
			if !ok || isNilSubject(child) {
				continue
			}
			if _, seen := touched[child]; seen {
				continue
			}
			touched[child] = struct{}{}
			out = append(out, subjectRef{subject: child, property: property, index: i})
		}
	case reflect.Map:
		for _, k := range rv.MapKeys() {
			child, ok := rv.MapIndex(k).Interface().(types.Subject)
			if !ok || isNilSubject(child) {
				continue
			}
			if _, seen := touched[child]; seen {
				continue
			}
			touched[child] = struct{}{}
			out = append(out, subjectRef{subject: child, property: property, index: k.Interface()})
		}
	}
	return out
}

// isNilSubject reports whether s is either an untyped nil interface or a
// typed nil (a nil *Tire stored in a types.Subject variable, say) — the
// latter compares != nil as an interface, so a plain "s == nil" check
// would treat it as a live subject and try to attach/detach it.
func isNilSubject(s types.Subject) bool {
	if s == nil {
		return true
	}
	rv := reflect.ValueOf(s)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}

var _ types.WriteInterceptor = Lifecycle{}
