package engine

import (
	"sync"
	"time"

	"github.com/bittoy/reactor/internal/glocal"
	"github.com/bittoy/reactor/types"
)

const changeContextKey = "reactor.change.context"

// WithChangeContext runs fn with ctxOverride installed as the ambient
// SubjectChangeContext for the calling goroutine, restoring whatever was
// there before on return (spec §4.G: "a caller propagating from an
// external source may override the timestamp/source by providing it in
// the ambient SubjectChangeContext"). Safe to nest.
func WithChangeContext(ctxOverride types.SubjectChangeContext, fn func()) {
	prev, had := glocal.Get(changeContextKey)
	glocal.Set(changeContextKey, ctxOverride)
	defer func() {
		if had {
			glocal.Set(changeContextKey, prev)
		} else {
			glocal.Delete(changeContextKey)
		}
	}()
	fn()
}

// currentChangeContext returns the ambient override for the calling
// goroutine, or the zero value if none is installed.
func currentChangeContext() types.SubjectChangeContext {
	v, ok := glocal.Get(changeContextKey)
	if !ok {
		return types.SubjectChangeContext{}
	}
	return v.(types.SubjectChangeContext)
}

// ChangeObservable is the default types.ChangeObservable: a synchronous
// fan-out to subscribers, each write stamped with changed-timestamp = now
// (or the ambient override's ReceivedTimestamp/Source when one is
// installed). Grounded on spec.md §4.G directly.
type ChangeObservable struct {
	mu   sync.RWMutex
	subs map[int]func(types.PropertyChange)
	next int
}

func NewChangeObservable() *ChangeObservable {
	return &ChangeObservable{subs: make(map[int]func(types.PropertyChange))}
}

func (o *ChangeObservable) Subscribe(fn func(types.PropertyChange)) (unsubscribe func()) {
	o.mu.Lock()
	id := o.next
	o.next++
	o.subs[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

func (o *ChangeObservable) Publish(change types.PropertyChange) {
	o.mu.RLock()
	subs := make([]func(types.PropertyChange), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.mu.RUnlock()

	for _, fn := range subs {
		fn(change)
	}
}

// NewPropertyChange stamps a PropertyChange for subject/property with the
// ambient change context's Source/ReceivedTimestamp when one is installed,
// else defaults Source to "" and leaves ReceivedTimestamp nil.
// ChangedTimestamp is now(), or the ambient ReceivedTimestamp when one is
// set.
func NewPropertyChange(subject types.Subject, property string, old, new any) types.PropertyChange {
	cc := currentChangeContext()
	changed := time.Now()
	if cc.ReceivedTimestamp != nil {
		changed = *cc.ReceivedTimestamp
	}
	return types.PropertyChange{
		Subject:           subject,
		Property:          property,
		OldValue:          old,
		NewValue:          new,
		Source:            cc.Source,
		ChangedTimestamp:  changed,
		ReceivedTimestamp: cc.ReceivedTimestamp,
	}
}

var _ types.ChangeObservable = (*ChangeObservable)(nil)

// BufferChanges subscribes to obs and groups changes by (subject,
// property), keeping only the latest value seen, flushing the accumulated
// batch to onFlush every interval. Generalized from the teacher's
// collect-then-flush debug aspect (builtin/aspect/chain_debug_aspect.go)
// from "collect debug events" to "collect property changes" (spec §4.G).
type BufferChanges struct {
	mu       sync.Mutex
	pending  map[types.PropertyReference]types.PropertyChange
	order    []types.PropertyReference
	stopC    chan struct{}
	unsub    func()
	wg       sync.WaitGroup
}

func NewBufferChanges(obs types.ChangeObservable, interval time.Duration, onFlush func([]types.PropertyChange)) *BufferChanges {
	b := &BufferChanges{
		pending: make(map[types.PropertyReference]types.PropertyChange),
		stopC:   make(chan struct{}),
	}
	b.unsub = obs.Subscribe(b.collect)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				b.flush(onFlush)
			case <-b.stopC:
				b.flush(onFlush)
				return
			}
		}
	}()
	return b
}

func (b *BufferChanges) collect(change types.PropertyChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ref := change.Ref()
	if _, exists := b.pending[ref]; !exists {
		b.order = append(b.order, ref)
	}
	b.pending[ref] = change
}

func (b *BufferChanges) flush(onFlush func([]types.PropertyChange)) {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	batch := make([]types.PropertyChange, 0, len(b.order))
	for _, ref := range b.order {
		batch = append(batch, b.pending[ref])
	}
	b.pending = make(map[types.PropertyReference]types.PropertyChange)
	b.order = nil
	b.mu.Unlock()

	onFlush(batch)
}

// Stop unsubscribes and flushes any remaining pending changes.
func (b *BufferChanges) Stop() {
	b.unsub()
	close(b.stopC)
	b.wg.Wait()
}
