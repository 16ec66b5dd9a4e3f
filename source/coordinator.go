package source

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/bittoy/reactor/engine"
	"github.com/bittoy/reactor/types"
)

// Coordinator wires one types.Source to a live subject graph: it loads
// initial state, starts the source's change stream, batches and flushes
// locally-originated writes, and wraps outbound flushes in a breaker so a
// source having a bad day doesn't back up the whole write pipeline (spec
// §4.I).
type Coordinator struct {
	name    string
	src     types.Source
	root    types.Subject
	ctx     types.Context
	factory types.SubjectFactory
	breaker *gobreaker.CircuitBreaker

	loadGroup singleflight.Group

	mu      sync.Mutex
	pending []types.PropertyChange
	echoing map[types.PropertyReference]struct{}
}

// NewCoordinator builds a Coordinator named name (used as the metrics and
// breaker label) for src against root, driven through ctx's write
// pipeline for inbound changes. factory constructs subjects an inbound
// update references that root's graph doesn't already have a live subject
// for (a new collection element, a new dictionary entry); a nil factory is
// fine for a source whose updates never introduce new subjects.
func NewCoordinator(name string, src types.Source, root types.Subject, ctx types.Context, factory types.SubjectFactory) *Coordinator {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(_ string, _, to gobreaker.State) {
			breakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return &Coordinator{
		name:    name,
		src:     src,
		root:    root,
		ctx:     ctx,
		factory: factory,
		breaker: breaker,
		echoing: make(map[types.PropertyReference]struct{}),
	}
}

// LoadInitialState pulls src's current view of root and applies it. Calls
// from multiple goroutines within the same process collapse into one
// underlying load via singleflight.
func (c *Coordinator) LoadInitialState(ctx context.Context) error {
	_, err, _ := c.loadGroup.Do(c.name, func() (any, error) {
		update, err := c.src.LoadInitialState(ctx, c.root)
		if err != nil {
			return nil, err
		}
		if update == nil {
			return nil, nil
		}
		return nil, c.applyWithEchoSuppression(update)
	})
	return err
}

// Start begins listening for remote changes and runs until ctx is
// cancelled. The remote change stream and the local write-flush loop run
// concurrently under a shared errgroup so either's fatal error stops both.
func (c *Coordinator) Start(ctx context.Context, flushInterval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.src.StartListening(ctx, c.root, c.onRemoteChange)
	})

	g.Go(func() error {
		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				c.flush(context.Background())
				return ctx.Err()
			case <-ticker.C:
				c.flush(ctx)
			}
		}
	})

	return g.Wait()
}

// QueueChange enqueues a locally-originated change for the next flush,
// skipping it if it is the echo of a change this coordinator itself just
// applied from the remote side.
func (c *Coordinator) QueueChange(change types.PropertyChange) {
	ref := change.Ref()

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, echo := c.echoing[ref]; echo {
		delete(c.echoing, ref)
		return
	}
	if !c.src.IsPropertyIncluded(change.Subject, change.Property) {
		return
	}
	c.pending = append(c.pending, change)
}

func (c *Coordinator) flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	batchSize := c.src.WriteBatchSize()
	for len(batch) > 0 {
		n := len(batch)
		if batchSize > 0 && n > batchSize {
			n = batchSize
		}
		chunk := batch[:n]
		batch = batch[n:]

		timer := prometheus.NewTimer(writeDuration.WithLabelValues(c.name))
		_, err := c.breaker.Execute(func() (any, error) {
			return nil, c.src.WriteChangesAsync(ctx, chunk)
		})
		timer.ObserveDuration()

		outcome := "ok"
		if err != nil {
			outcome = "error"
			c.ctx.Logger().Errorf("reactor: source %s flush failed: %v", c.name, err)
		}
		writesTotal.WithLabelValues(c.name, outcome).Inc()
	}
}

// onRemoteChange applies one remote change through the write pipeline,
// marking it for echo suppression first so the resulting local change
// notification is not queued straight back out to the same source.
func (c *Coordinator) onRemoteChange(change types.PropertyChange) {
	ref := change.Ref()
	c.mu.Lock()
	c.echoing[ref] = struct{}{}
	c.mu.Unlock()

	if err := c.ctx.Write(change.Subject, change.Property, change.NewValue); err != nil {
		c.ctx.Logger().Warnf("reactor: source %s remote change rejected: %v", c.name, err)
		c.mu.Lock()
		delete(c.echoing, ref)
		c.mu.Unlock()
	}
}

// applyWithEchoSuppression marks the root's own properties named in the
// update for echo suppression before applying it, so the ChangeObservable
// notifications those writes trigger don't get queued straight back out to
// the same source that just sent them. Properties of nested subjects the
// update reaches are not marked.
func (c *Coordinator) applyWithEchoSuppression(update *types.SubjectUpdate) error {
	c.mu.Lock()
	for _, p := range update.Properties {
		c.echoing[types.PropertyReference{Subject: c.root, Property: p.Name}] = struct{}{}
	}
	c.mu.Unlock()
	return engine.ApplyUpdate(c.ctx, c.root, update, c.factory)
}
