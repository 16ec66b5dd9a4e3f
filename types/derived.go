package types

// DerivedRecorder is the dependency-discovery sink a Context consults
// whenever a derived property is read (spec §4.F). Engine-level code
// registers one as a service (ServiceRoleDerivedRecorder) so Context.Read,
// which otherwise knows nothing about the derived-property graph, can
// establish and refresh dependency edges on every read rather than only
// when a write to an already-known dependency triggers a recompute, or a
// subject constructor remembers to call an explicit init step.
type DerivedRecorder interface {
	// RecordRead is called after a derived property's getter has run under
	// a fresh recording frame, with every property reference it touched
	// and the value it produced. Implementations update dependency edges
	// and publish a synthetic change event when this is the property's
	// first recorded read or the value differs from the last one.
	RecordRead(ref PropertyReference, deps []PropertyReference, value any)
}

const ServiceRoleDerivedRecorder = "derived-recorder"
