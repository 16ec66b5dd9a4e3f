package interceptor_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bittoy/reactor/builtin/interceptor"
	"github.com/bittoy/reactor/example/car"
	"github.com/bittoy/reactor/types"
)

func TestEqualityCheckShortCircuitsOnEqualValue(t *testing.T) {
	eq := interceptor.EqualityCheck{}
	wctx := &types.WriteContext{Current: 32.0, New: 32.0}

	called := false
	err := eq.Write(wctx, func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	require.False(t, called, "equal values must short-circuit before reaching the setter")
	require.Equal(t, 32.0, wctx.Final)
}

func TestEqualityCheckPassesThroughOnDifference(t *testing.T) {
	eq := interceptor.EqualityCheck{}
	wctx := &types.WriteContext{Current: 32.0, New: 29.0}

	called := false
	err := eq.Write(wctx, func() error {
		called = true
		wctx.Final = wctx.New
		return nil
	})
	require.NoError(t, err)
	require.True(t, called)
	require.Equal(t, 29.0, wctx.Final)
}

func TestChangeObservablePublishesOnlyAfterSuccess(t *testing.T) {
	var published []types.PropertyChange
	pub := fakePublisher(func(c types.PropertyChange) { published = append(published, c) })

	co := interceptor.ChangeObservable{
		Publisher: pub,
		NewChange: func(subject types.Subject, property string, old, new any) types.PropertyChange {
			return types.PropertyChange{Subject: subject, Property: property, OldValue: old, NewValue: new}
		},
	}

	tire := car.NewTire(30)
	wctx := &types.WriteContext{Subject: tire, Property: "Pressure", Current: 30.0, New: 31.0}
	err := co.Write(wctx, func() error {
		wctx.Final = wctx.New
		return nil
	})
	require.NoError(t, err)
	require.Len(t, published, 1)
	require.Equal(t, 31.0, published[0].NewValue)
}

func TestChangeObservableDoesNotPublishOnError(t *testing.T) {
	var published []types.PropertyChange
	pub := fakePublisher(func(c types.PropertyChange) { published = append(published, c) })

	co := interceptor.ChangeObservable{
		Publisher: pub,
		NewChange: func(subject types.Subject, property string, old, new any) types.PropertyChange {
			return types.PropertyChange{Subject: subject, Property: property, OldValue: old, NewValue: new}
		},
	}

	wctx := &types.WriteContext{}
	err := co.Write(wctx, func() error {
		return errors.New("setter failed")
	})
	require.Error(t, err)
	require.Empty(t, published)
}

func TestDerivedChangeInvalidatesAfterSuccessfulWrite(t *testing.T) {
	var invalidated types.PropertyReference
	var recomputed types.PropertyReference

	dc := interceptor.DerivedChange{
		Graph: fakeInvalidator(func(ref types.PropertyReference, onStale func(types.PropertyReference)) {
			invalidated = ref
			onStale(ref)
		}),
		Recompute: func(ref types.PropertyReference) { recomputed = ref },
	}

	tire := car.NewTire(30)
	wctx := &types.WriteContext{Subject: tire, Property: "Pressure"}
	err := dc.Write(wctx, func() error { return nil })
	require.NoError(t, err)
	require.Equal(t, types.PropertyReference{Subject: tire, Property: "Pressure"}, invalidated)
	require.Equal(t, invalidated, recomputed)
}

func TestDerivedChangeSkipsInvalidationOnError(t *testing.T) {
	called := false
	dc := interceptor.DerivedChange{
		Graph: fakeInvalidator(func(types.PropertyReference, func(types.PropertyReference)) { called = true }),
	}
	wctx := &types.WriteContext{}
	err := dc.Write(wctx, func() error { return errors.New("fail") })
	require.Error(t, err)
	require.False(t, called)
}

func TestReadRecorderRecordsAndDelegates(t *testing.T) {
	var recorded types.PropertyReference
	rr := interceptor.ReadRecorder{
		Record: func(ref types.PropertyReference) { recorded = ref },
	}

	tire := car.NewTire(30)
	result := rr.Read(tire, "Pressure", func() any { return 30.0 })
	require.Equal(t, 30.0, result)
	require.Equal(t, types.PropertyReference{Subject: tire, Property: "Pressure"}, recorded)
}

func TestLifecycleAttachesAndDetachesOnSubjectReferenceChange(t *testing.T) {
	var attached, detached []types.Subject
	tracker := fakeTracker{
		attach: func(parent types.Subject, property string, index any, child types.Subject) {
			attached = append(attached, child)
		},
		detach: func(parent types.Subject, property string, index any, child types.Subject) {
			detached = append(detached, child)
		},
	}

	owner := car.NewTire(0)
	oldChild := car.NewTire(1)
	newChild := car.NewTire(2)

	lc := interceptor.Lifecycle{Tracker: tracker}
	owner.Properties()["Spare"] = &types.PropertyMetadata{
		IsSubjectReference: true,
		Get:                func(types.Subject) any { return nil },
	}

	wctx := &types.WriteContext{Subject: owner, Property: "Spare", Current: oldChild, New: newChild}
	err := lc.Write(wctx, func() error {
		wctx.Final = wctx.New
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []types.Subject{oldChild}, detached)
	require.Equal(t, []types.Subject{newChild}, attached)
}

func TestLifecycleSkipsAttachDetachWhenReferenceUnchanged(t *testing.T) {
	var attached, detached []types.Subject
	tracker := fakeTracker{
		attach: func(parent types.Subject, property string, index any, child types.Subject) {
			attached = append(attached, child)
		},
		detach: func(parent types.Subject, property string, index any, child types.Subject) {
			detached = append(detached, child)
		},
	}

	owner := car.NewTire(0)
	same := car.NewTire(1)

	lc := interceptor.Lifecycle{Tracker: tracker}
	owner.Properties()["Spare"] = &types.PropertyMetadata{
		IsSubjectReference: true,
		Get:                func(types.Subject) any { return nil },
	}

	wctx := &types.WriteContext{Subject: owner, Property: "Spare", Current: same, New: same}
	err := lc.Write(wctx, func() error {
		wctx.Final = wctx.New
		return nil
	})
	require.NoError(t, err)
	require.Empty(t, attached, "writing the same subject identity back must not fire an attach")
	require.Empty(t, detached, "writing the same subject identity back must not fire a detach")
}

func TestLifecycleDetachesOnlyWhenReferenceSetToNull(t *testing.T) {
	var attached, detached []types.Subject
	tracker := fakeTracker{
		attach: func(parent types.Subject, property string, index any, child types.Subject) {
			attached = append(attached, child)
		},
		detach: func(parent types.Subject, property string, index any, child types.Subject) {
			detached = append(detached, child)
		},
	}

	owner := car.NewTire(0)
	oldChild := car.NewTire(1)

	lc := interceptor.Lifecycle{Tracker: tracker}
	owner.Properties()["Spare"] = &types.PropertyMetadata{
		IsSubjectReference: true,
		Get:                func(types.Subject) any { return nil },
	}

	wctx := &types.WriteContext{Subject: owner, Property: "Spare", Current: oldChild, New: nil}
	err := lc.Write(wctx, func() error {
		wctx.Final = wctx.New
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []types.Subject{oldChild}, detached, "must detach exactly the prior referent")
	require.Empty(t, attached, "a null target must attach nothing")
}

func TestLifecycleDiffsCollectionWritesByIndex(t *testing.T) {
	var attached, detached []types.Subject
	tracker := fakeTracker{
		attach: func(parent types.Subject, property string, index any, child types.Subject) {
			attached = append(attached, child)
		},
		detach: func(parent types.Subject, property string, index any, child types.Subject) {
			detached = append(detached, child)
		},
	}

	owner := car.NewTire(0)
	kept := car.NewTire(1)
	removed := car.NewTire(2)
	added := car.NewTire(3)

	lc := interceptor.Lifecycle{Tracker: tracker}
	owner.Properties()["Siblings"] = &types.PropertyMetadata{
		IsSubjectCollection: true,
		Get:                 func(types.Subject) any { return nil },
	}

	wctx := &types.WriteContext{
		Subject:  owner,
		Property: "Siblings",
		Current:  []*car.Tire{kept, removed},
		New:      []*car.Tire{kept, added},
	}
	err := lc.Write(wctx, func() error {
		wctx.Final = wctx.New
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []types.Subject{removed}, detached, "an index present in both old and new must not be detached")
	require.Equal(t, []types.Subject{added}, attached, "only the newly introduced index must be attached")
}

func TestLifecycleDiffsDictionaryWritesByKey(t *testing.T) {
	var attached, detached []types.Subject
	tracker := fakeTracker{
		attach: func(parent types.Subject, property string, index any, child types.Subject) {
			attached = append(attached, child)
		},
		detach: func(parent types.Subject, property string, index any, child types.Subject) {
			detached = append(detached, child)
		},
	}

	owner := car.NewTire(0)
	kept := car.NewTire(1)
	removed := car.NewTire(2)
	added := car.NewTire(3)

	lc := interceptor.Lifecycle{Tracker: tracker}
	owner.Properties()["Registry"] = &types.PropertyMetadata{
		IsSubjectDictionary: true,
		Get:                 func(types.Subject) any { return nil },
	}

	wctx := &types.WriteContext{
		Subject:  owner,
		Property: "Registry",
		Current:  map[string]*car.Tire{"a": kept, "b": removed},
		New:      map[string]*car.Tire{"a": kept, "c": added},
	}
	err := lc.Write(wctx, func() error {
		wctx.Final = wctx.New
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []types.Subject{removed}, detached, "a key dropped from the dictionary must be detached")
	require.Equal(t, []types.Subject{added}, attached, "a key newly present in the dictionary must be attached")
}

type fakePublisher func(types.PropertyChange)

func (f fakePublisher) Publish(c types.PropertyChange) { f(c) }

type fakeInvalidator func(ref types.PropertyReference, onStale func(types.PropertyReference))

func (f fakeInvalidator) Invalidate(ref types.PropertyReference, onStale func(types.PropertyReference)) {
	f(ref, onStale)
}

type fakeTracker struct {
	attach func(parent types.Subject, property string, index any, child types.Subject)
	detach func(parent types.Subject, property string, index any, child types.Subject)
}

func (f fakeTracker) Attach(parent types.Subject, property string, index any, child types.Subject) {
	f.attach(parent, property, index, child)
}

func (f fakeTracker) Detach(parent types.Subject, property string, index any, child types.Subject) {
	f.detach(parent, property, index, child)
}
