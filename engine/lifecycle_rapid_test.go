package engine_test

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/bittoy/reactor/engine"
	"github.com/bittoy/reactor/example/car"
)

// TestTrackerRefCountNeverNegative exercises spec §4.D's core invariant
// under randomized attach/detach sequences: the reference count tracked
// for a subject always equals the number of attaches minus detaches
// applied to it, and is never observed negative or out of sync.
func TestTrackerRefCountNeverNegative(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		_, graph, err := car.New()
		if err != nil {
			rt.Fatal(err)
		}
		child := car.NewTire(0)
		parent := car.NewTire(0)

		expected := 0
		steps := rapid.IntRange(1, 50).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			attach := rapid.Bool().Draw(rt, "attach")
			if attach || expected == 0 {
				graph.Tracker.Attach(parent, "Spare", nil, child)
				expected++
			} else {
				graph.Tracker.Detach(parent, "Spare", nil, child)
				expected--
			}

			count, _, found := graph.Tracker.Get(child)
			if expected == 0 {
				if found {
					rt.Fatalf("expected child to be untracked at refcount 0, got count=%d", count)
				}
				continue
			}
			if !found {
				rt.Fatalf("expected child to be tracked at refcount %d, got untracked", expected)
			}
			if count != expected {
				rt.Fatalf("refcount mismatch: want %d, got %d", expected, count)
			}
			if count < 0 {
				rt.Fatalf("refcount went negative: %d", count)
			}
		}
	})
}
