package types

import "reflect"

// Subject is a user-defined composite entity with tracked properties. A
// subject has stable identity (reference equality — two Subject values are
// the same subject iff they are the same pointer), belongs to exactly one
// Context, and carries a concurrent, untyped DataBag used by the engine for
// extension state (derived bookkeeping; see DataBag).
//
// Generated (or hand-written) property accessors dispatch reads and writes
// through Context(), never touching backing fields directly — that
// indirection is what lets the interception pipeline observe every access.
type Subject interface {
	// Context returns the context this subject was created in. Mutable:
	// attaching a subject into a parent adds the parent's context as a
	// fallback (see Context.AddFallbackContext), it does not replace this
	// value.
	Context() Context
	SetContext(Context)

	// Properties returns the live property metadata map for this subject,
	// keyed by property name. Dynamic properties (attributes, late-bound
	// fields added via Registry) appear here once added.
	Properties() map[string]*PropertyMetadata

	// Data is the subject's concurrent extension-state bag.
	Data() *DataBag
}

// TypeTagged lets a subject type declare a stable type tag, the Go
// equivalent of the reflection-based `typeof(value).Name` emission a
// reflective host would use (see spec §9). Generated subject types should
// implement this; TypeTag falls back to the Go reflect type name when they
// don't.
type TypeTagged interface {
	TypeTag() string
}

// TypeTag returns s's declared type tag, or its Go reflect type name as a
// fallback for subjects that don't implement TypeTagged.
func TypeTag(s Subject) string {
	if tt, ok := s.(TypeTagged); ok {
		return tt.TypeTag()
	}
	t := reflect.TypeOf(s)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return "<nil>"
	}
	return t.Name()
}

// PropertyReference is a value-typed (subject, property-name) pair — the
// fundamental addressing unit inside the core. Equality is structural:
// same subject pointer and same property name.
type PropertyReference struct {
	Subject  Subject
	Property string
}

func (r PropertyReference) Equal(other PropertyReference) bool {
	return r.Subject == other.Subject && r.Property == other.Property
}

// SubjectPropertyChild identifies one element of a container-valued
// property: Index is nil for a single-reference property, an int for a
// sequence element, or a string for a dictionary entry.
type SubjectPropertyChild struct {
	Subject Subject
	Index   any // nil | int | string
}
