package types

// ReadNext is the continuation a ReadInterceptor calls to run the rest of
// the read chain (ultimately the property's getter).
type ReadNext func() any

// ReadInterceptor is one link of the read pipeline (spec §4.C). The
// canonical read chain is a single read-recorder wrapping the terminal
// getter.
type ReadInterceptor interface {
	Order() int
	Read(subject Subject, property string, next ReadNext) any
}

// WriteContext is the mutable record passed down a write chain. Current is
// the value before this write; New is the candidate value, mutable by
// interceptors before they call next(); Final is populated once the chain
// completes (interceptors observe it after next() returns for any
// post-processing).
type WriteContext struct {
	Subject Subject
	Property string
	Current  any
	New      any
	Final    any

	// Source, if non-empty, names the external source (if any) on whose
	// behalf this write is being applied. Context.Write leaves it empty and
	// no built-in interceptor reads it; the source name on a published
	// change comes from the ambient SubjectChangeContext, and the source
	// coordinator's echo suppression tracks property references instead.
	Source string
}

// WriteNext is the continuation a WriteInterceptor calls to run the rest of
// the write chain. It returns the same error a Write call would.
type WriteNext func() error

// WriteInterceptor is one link of the write pipeline. It may short-circuit
// by not calling next (e.g. an equality check aborting a no-op write),
// mutate wctx.New before calling next, or act after next returns.
type WriteInterceptor interface {
	Order() int
	Write(wctx *WriteContext, next WriteNext) error
}

// Context is the per-subject container of services and interceptors (spec
// §4.B). A child subject inherits a parent's tracking configuration by
// adding the parent's context as a fallback, not by copying interceptors —
// AddReadInterceptor/AddWriteInterceptor only ever affect calls routed
// through this exact context.
type Context interface {
	// GetService returns the first service registered under role, first
	// checking this context, then fallback contexts in order.
	GetService(role string) (any, bool)
	// GetServices returns every service registered under role across this
	// context and its fallbacks, local hits first, de-duplicated by
	// identity.
	GetServices(role string) []any
	// TryAddService registers svc under role iff no service is already
	// registered locally under that role (idempotent try-add). Returns
	// whether it was added.
	TryAddService(role string, svc any) bool

	AddReadInterceptor(i ReadInterceptor)
	AddWriteInterceptor(i WriteInterceptor)
	ReadInterceptors() []ReadInterceptor
	WriteInterceptors() []WriteInterceptor

	AddFallbackContext(c Context)
	RemoveFallbackContext(c Context)
	FallbackContexts() []Context

	Logger() Logger

	// Read and Write drive the interception pipeline for one property
	// access; generated accessors call these, never a backing field
	// directly.
	Read(subject Subject, property string) any
	Write(subject Subject, property string, value any) error
}
