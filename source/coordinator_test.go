package source

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bittoy/reactor/example/car"
	"github.com/bittoy/reactor/types"
)

type fakeSource struct {
	mu           sync.Mutex
	writes       [][]types.PropertyChange
	writeErr     error
	batchSize    int
	included     map[string]bool
	initial      *types.SubjectUpdate
	initialErr   error
	listenCalled chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{included: make(map[string]bool), listenCalled: make(chan struct{}, 1)}
}

func (f *fakeSource) IsPropertyIncluded(subject types.Subject, property string) bool {
	if f.included == nil {
		return true
	}
	included, ok := f.included[property]
	if !ok {
		return true
	}
	return included
}

func (f *fakeSource) StartListening(ctx context.Context, root types.Subject, onChange func(types.PropertyChange)) error {
	select {
	case f.listenCalled <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeSource) LoadInitialState(ctx context.Context, root types.Subject) (*types.SubjectUpdate, error) {
	return f.initial, f.initialErr
}

func (f *fakeSource) WriteChangesAsync(ctx context.Context, changes []types.PropertyChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, changes)
	return f.writeErr
}

func (f *fakeSource) WriteBatchSize() int { return f.batchSize }

var _ types.Source = (*fakeSource)(nil)

func TestCoordinatorQueueChangeSkipsExcludedProperties(t *testing.T) {
	c, graph, err := car.New()
	require.NoError(t, err)

	src := newFakeSource()
	src.included["Name"] = false

	coord := NewCoordinator("test", src, c, graph.Context, nil)
	coord.QueueChange(types.PropertyChange{Subject: c, Property: "Name"})
	coord.QueueChange(types.PropertyChange{Subject: c, Property: "Tires"})

	require.Len(t, coord.pending, 1)
	require.Equal(t, "Tires", coord.pending[0].Property)
}

func TestCoordinatorQueueChangeSuppressesEcho(t *testing.T) {
	c, graph, err := car.New()
	require.NoError(t, err)

	src := newFakeSource()
	coord := NewCoordinator("test", src, c, graph.Context, nil)

	ref := types.PropertyReference{Subject: c, Property: "Name"}
	coord.mu.Lock()
	coord.echoing[ref] = struct{}{}
	coord.mu.Unlock()

	coord.QueueChange(types.PropertyChange{Subject: c, Property: "Name"})
	require.Empty(t, coord.pending, "a change marked as an echo must not be queued for write-back")

	// the echo marker is consumed on the first encounter
	coord.QueueChange(types.PropertyChange{Subject: c, Property: "Name"})
	require.Len(t, coord.pending, 1)
}

func TestCoordinatorFlushBatchesByWriteBatchSize(t *testing.T) {
	c, graph, err := car.New()
	require.NoError(t, err)

	src := newFakeSource()
	src.batchSize = 2
	coord := NewCoordinator("test", src, c, graph.Context, nil)

	for i := 0; i < 5; i++ {
		coord.QueueChange(types.PropertyChange{Subject: c, Property: "Name"})
	}

	coord.flush(context.Background())

	src.mu.Lock()
	defer src.mu.Unlock()
	require.Len(t, src.writes, 3, "5 changes at batch size 2 must flush as 3 chunks")
	require.Len(t, src.writes[0], 2)
	require.Len(t, src.writes[1], 2)
	require.Len(t, src.writes[2], 1)
}

func TestCoordinatorOnRemoteChangeAppliesAndMarksEcho(t *testing.T) {
	c, graph, err := car.New()
	require.NoError(t, err)

	src := newFakeSource()
	coord := NewCoordinator("test", src, c, graph.Context, nil)

	coord.onRemoteChange(types.PropertyChange{Subject: c, Property: "Name", NewValue: "Imported"})

	require.Equal(t, "Imported", c.Properties()["Name"].Get(c))

	ref := types.PropertyReference{Subject: c, Property: "Name"}
	coord.mu.Lock()
	_, echo := coord.echoing[ref]
	coord.mu.Unlock()
	require.True(t, echo)
}

func TestCoordinatorOnRemoteChangeUnmarksEchoOnRejectedWrite(t *testing.T) {
	c, graph, err := car.New()
	require.NoError(t, err)

	src := newFakeSource()
	coord := NewCoordinator("test", src, c, graph.Context, nil)

	// "NoSuchProperty" has no metadata, so ctx.Write returns an error and
	// the echo marker set before the write must be rolled back.
	coord.onRemoteChange(types.PropertyChange{Subject: c, Property: "NoSuchProperty", NewValue: 1})

	ref := types.PropertyReference{Subject: c, Property: "NoSuchProperty"}
	coord.mu.Lock()
	_, echo := coord.echoing[ref]
	coord.mu.Unlock()
	require.False(t, echo)
}

func TestCoordinatorLoadInitialStateAppliesUpdate(t *testing.T) {
	c, graph, err := car.New()
	require.NoError(t, err)

	src := newFakeSource()
	src.initial = &types.SubjectUpdate{
		Type:    "Car",
		Partial: true,
		Properties: []types.SubjectPropertyUpdate{
			{Name: "Name", HasValue: true, Value: "Loaded"},
		},
	}
	coord := NewCoordinator("test", src, c, graph.Context, nil)

	err = coord.LoadInitialState(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Loaded", c.Properties()["Name"].Get(c))
}

func TestCoordinatorStartStopsOnContextCancel(t *testing.T) {
	c, graph, err := car.New()
	require.NoError(t, err)

	src := newFakeSource()
	coord := NewCoordinator("test", src, c, graph.Context, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- coord.Start(ctx, 10*time.Millisecond) }()

	select {
	case <-src.listenCalled:
	case <-time.After(time.Second):
		t.Fatal("StartListening was never called")
	}

	cancel()
	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
}
