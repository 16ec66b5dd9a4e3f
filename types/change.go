package types

import "time"

// PropertyChange is one record on the process-wide change stream (spec
// §4.G). ReceivedTimestamp is set only for changes that originated from an
// external source (the time the source's value was received).
// ChangedTimestamp is the time the write was applied locally, unless an
// ambient SubjectChangeContext supplies a ReceivedTimestamp, which then
// stands in for it.
type PropertyChange struct {
	Subject           Subject
	Property          string
	OldValue          any
	NewValue          any
	Source            string
	ChangedTimestamp  time.Time
	ReceivedTimestamp *time.Time
}

func (c PropertyChange) Ref() PropertyReference {
	return PropertyReference{Subject: c.Subject, Property: c.Property}
}

// ChangeObservable is the publish side of the change stream. Subscribers
// receive changes synchronously on the writer's goroutine; there is no
// backpressure at this layer (spec §4.G) — use a buffering subscriber (see
// engine.BufferChanges) if that matters to you.
type ChangeObservable interface {
	Subscribe(fn func(PropertyChange)) (unsubscribe func())
	Publish(change PropertyChange)
}

const ServiceRoleChangeObservable = "change-observable"

// SubjectChangeContext is the ambient (goroutine-local) override a caller
// propagating a change from an external source uses to stamp a write with
// that source's name and, optionally, the timestamp the source reported
// rather than now().
type SubjectChangeContext struct {
	Source            string
	ReceivedTimestamp *time.Time
}
