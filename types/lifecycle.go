package types

// LifecycleChange is dispatched on every attach and detach of a subject
// under one parent-property reference (spec §4.D/§6).
type LifecycleChange struct {
	Subject        Subject
	Property       string
	Index          any // nil | int | string, mirrors SubjectPropertyChild.Index
	ReferenceCount int
	IsFirstAttach  bool
	IsLastDetach   bool
}

// LifecycleHandler receives LifecycleChange on attach and on detach. May
// read and write subjects freely; must not block (spec §6).
type LifecycleHandler interface {
	OnAttach(change LifecycleChange)
	OnDetach(change LifecycleChange)
}

// PropertyLifecycleChange is dispatched during phase 2 of attach (after the
// full structural batch has settled) and symmetrically on detach.
type PropertyLifecycleChange struct {
	Subject  Subject
	Property string
}

// PropertyLifecycleHandler receives PropertyLifecycleChange during phase 2
// of attach and on detach.
type PropertyLifecycleHandler interface {
	OnPropertyAttach(change PropertyLifecycleChange)
	OnPropertyDetach(change PropertyLifecycleChange)
}

// ServiceRoleLifecycleHandler and ServiceRolePropertyLifecycleHandler are
// the Context service roles lifecycle handlers register under — the
// tracker dispatches to every service found under these roles (local and
// fallback), plus the subject itself if it implements the interface.
const (
	ServiceRoleLifecycleHandler         = "lifecycle-handler"
	ServiceRolePropertyLifecycleHandler = "property-lifecycle-handler"
)
