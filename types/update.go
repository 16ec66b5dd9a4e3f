package types

// SubjectPropertyUpdate is one property's contribution to a SubjectUpdate
// tree (spec §4.H). Exactly one of Value, Subject or Collection is
// meaningful for a given property, decided by the property's metadata
// (IsSubjectValued / collection / dictionary).
type SubjectPropertyUpdate struct {
	Name     string
	HasValue bool
	Value    any

	// HasItem marks this property as a subject-reference entry, distinct
	// from the property being merely absent (a partial update's omitted
	// property). Subject is nil for an explicit null reference and
	// non-nil otherwise — both are only meaningful when HasItem is true.
	HasItem bool
	Subject *SubjectUpdate

	Collection []CollectionEntry
	Dictionary map[string]*SubjectUpdate

	// Attributes carries this property's attribute properties (spec §3,
	// §8 S6), keyed by attribute name ("MaxLength" for a property whose
	// backing field is conventionally named "Name_MaxLength"), nested
	// here rather than emitted as sibling top-level properties.
	Attributes map[string]*SubjectPropertyUpdate
}

// CollectionEntry is one element of a subject-collection property's update,
// keeping the element's position so a partial update can patch it in place.
type CollectionEntry struct {
	Index   int
	Subject *SubjectUpdate
}

// SubjectUpdate is a structural snapshot or patch of one subject and
// (recursively) its subject-valued properties (spec §4.H). A complete
// update carries every property; a partial update carries only properties
// that changed since the update it is diffed against.
type SubjectUpdate struct {
	Type       string
	Properties []SubjectPropertyUpdate
	// Partial is true when this update only carries a subset of
	// Properties — produced by DiffUpdate, consumed by ApplyUpdate.
	Partial bool
}

// Property looks up one named entry, returning ok=false if absent (always
// the case for a property a partial update chose to omit).
func (u *SubjectUpdate) Property(name string) (SubjectPropertyUpdate, bool) {
	for _, p := range u.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return SubjectPropertyUpdate{}, false
}

// UpdateProcessor is the extension point for custom serialization or
// transport framing layered over a SubjectUpdate tree (spec §4.H, mirrors
// the teacher's node-processor shape). ProcessUpdate runs on each node
// BuildUpdate/BuildPartialUpdate produce, before it is emitted; ApplyUpdate
// runs no processors. Implementations may mutate and must return the
// (possibly modified) update to continue, or an error to abort.
type UpdateProcessor interface {
	ProcessUpdate(update *SubjectUpdate) (*SubjectUpdate, error)
}

const ServiceRoleUpdateProcessor = "update-processor"

// SubjectFactory constructs a new, unattached subject instance for the
// given type tag (types.TypeTag's output for the subject being applied
// onto), used by ApplyUpdate to materialize children an inbound update
// references that the live graph does not yet have: a nil-targeted Item,
// or a collection/dictionary entry at an index or key the live property
// doesn't hold yet (spec §4.H). A nil factory leaves ApplyUpdate unable to
// construct such children; it still applies everything the live graph
// already has a subject for.
type SubjectFactory func(typeTag string) (Subject, error)
