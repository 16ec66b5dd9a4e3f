package types

// ParentReference is one (parent-property, index) tuple anchoring a subject
// in the graph. Index is nil for a single-reference property, an int for a
// sequence element, or a string for a dictionary entry.
type ParentReference struct {
	Parent   Subject
	Property string
	Index    any
}

// RegisteredSubject is the registry's view of one live subject: the subject
// itself, its known property names (including dynamically added ones), and
// an immutable snapshot of its parent references. Invariant: len(Parents)
// always equals the subject's reference count outside of a lifecycle
// transition.
type RegisteredSubject struct {
	Subject    Subject
	Properties []string
	Parents    []ParentReference
}

// Registry is the authoritative index of attached subjects and their
// parent references (spec §4.E).
type Registry interface {
	Get(subject Subject) (RegisteredSubject, bool)
	All() []RegisteredSubject
	// AddDynamicProperty adds a property to an already-registered subject;
	// it becomes part of the subject's Properties() map immediately.
	AddDynamicProperty(subject Subject, meta *PropertyMetadata) error
}

// PathProvider translates between a textual path (e.g.
// "Tires[1].Pressure") and a PropertyReference. Parsing is total: it
// returns a failure rather than throwing.
type PathProvider interface {
	// Parse resolves a path rooted at root to a PropertyReference.
	Parse(root Subject, path string) (PropertyReference, error)
	// Format computes the path from the registry root down to ref by
	// walking RegisteredSubject.Parents.
	Format(reg Registry, ref PropertyReference) (string, error)
}

const ServiceRolePathProvider = "path-provider"
