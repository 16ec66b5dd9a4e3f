package types

import "reflect"

// PropertyGetter reads the current value of a property off a subject. For a
// derived property this is the user-supplied (or expr-compiled, see
// builtin/compute) computation; for a plain property it reads a backing
// field.
type PropertyGetter func(subject Subject) any

// PropertySetter writes a new value into a property's backing field. Never
// set for derived properties (spec invariant: derived properties never
// appear as writable targets on the public write path).
type PropertySetter func(subject Subject, value any) error

// Attribute is a role-carrying metadata annotation. The derived engine,
// registry, and source adapters inspect attributes rather than hard-coding
// behavior per property: "derived", "source-path", and "attribute-of" are
// the roles this repo defines; callers may add their own.
type Attribute struct {
	Role  string
	Value any
}

const (
	AttributeRoleDerived     = "derived"
	AttributeRoleSourcePath  = "source-path"
	AttributeRoleAttributeOf = "attribute-of"
)

// AttributeOf is the payload of an AttributeRoleAttributeOf attribute: it
// identifies the root property an attribute property annotates, and the
// attribute's name nested under that root (spec §3 "Attribute properties").
type AttributeOf struct {
	RootProperty  string
	AttributeName string
}

// PropertyMetadata is an immutable record describing one (subject-type,
// property-name) pair. It may be supplied by a compile-time generator, a
// reflective dynamic factory (see package metadata), or added to a live
// subject at runtime through the registry — the core treats all three
// uniformly.
type PropertyMetadata struct {
	Name  string
	Type  reflect.Type
	Get   PropertyGetter
	Set   PropertySetter

	IsDerived           bool
	IsIntercepted       bool
	IsSubjectReference  bool
	IsSubjectCollection bool
	IsSubjectDictionary bool
	IsAttribute         bool

	Attributes []Attribute
}

// Attribute looks up the first attribute with the given role.
func (m *PropertyMetadata) Attribute(role string) (Attribute, bool) {
	for _, a := range m.Attributes {
		if a.Role == role {
			return a, true
		}
	}
	return Attribute{}, false
}

// IsSubjectValued reports whether this property's value (directly or
// through a collection/dictionary) can hold subject references, i.e.
// whether the lifecycle tracker must enumerate it on write.
func (m *PropertyMetadata) IsSubjectValued() bool {
	return m.IsSubjectReference || m.IsSubjectCollection || m.IsSubjectDictionary
}
