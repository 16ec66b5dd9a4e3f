package types

import "context"

// Source is the contract an external system (MQTT broker, websocket peer,
// database, in-memory fixture) implements to participate in two-way sync
// with a subject graph (spec §4.I). The coordinator owns calling these
// methods; a Source implementation should not assume anything about when
// or how often they run beyond the ordering documented per method.
type Source interface {
	// IsPropertyIncluded decides whether this source tracks a property at
	// all. The coordinator calls it for every non-echo change it is asked to
	// queue; a false result keeps that change out of the outbound batch.
	IsPropertyIncluded(subject Subject, property string) bool

	// StartListening begins pushing externally-originated changes for the
	// given root subject. Implementations should respect ctx cancellation
	// and stop pushing once it fires.
	StartListening(ctx context.Context, root Subject, onChange func(PropertyChange)) error

	// LoadInitialState returns a complete SubjectUpdate reflecting this
	// source's current view of root, applied once at startup before
	// StartListening's stream takes over.
	LoadInitialState(ctx context.Context, root Subject) (*SubjectUpdate, error)

	// WriteChangesAsync pushes locally-originated changes outward. The
	// coordinator batches up to WriteBatchSize changes per call.
	WriteChangesAsync(ctx context.Context, changes []PropertyChange) error

	// WriteBatchSize caps how many changes WriteChangesAsync receives at
	// once; <= 0 means unbounded (a single call per flush).
	WriteBatchSize() int
}

const ServiceRoleSource = "source"
