package car_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bittoy/reactor/engine"
	"github.com/bittoy/reactor/example/car"
	"github.com/bittoy/reactor/types"
)

// TestScenarioS1ArrayDerivedAggregate mirrors spec.md §8 S1: writing one
// tire's pressure fires a change for that property and a synthetic change
// for the cross-tree derived aggregate depending on it.
func TestScenarioS1ArrayDerivedAggregate(t *testing.T) {
	c, graph, err := car.New()
	require.NoError(t, err)

	var changes []types.PropertyChange
	unsubscribe := graph.Changes.Subscribe(func(ch types.PropertyChange) {
		changes = append(changes, ch)
	})
	defer unsubscribe()

	tires, ok := c.Properties()["Tires"].Get(c).([]*car.Tire)
	require.True(t, ok)

	err = graph.Context.Write(tires[2], "Pressure", 40.0)
	require.NoError(t, err)

	var sawPressure, sawAverage bool
	for _, ch := range changes {
		if ch.Subject == types.Subject(tires[2]) && ch.Property == "Pressure" {
			sawPressure = true
		}
		if ch.Subject == types.Subject(c) && ch.Property == "AveragePressure" {
			sawAverage = true
		}
	}
	require.True(t, sawPressure, "must fire a change for the written property itself")
	require.True(t, sawAverage, "must fire a synthetic change for the dependent derived property")
}

// TestScenarioS2ReplaceSubjectReference mirrors spec.md §8 S2: replacing
// Car.Engine detaches the old engine, attaches the new one, and fires
// exactly one change event for the Engine property (none for Horsepower).
func TestScenarioS2ReplaceSubjectReference(t *testing.T) {
	c, graph, err := car.New()
	require.NoError(t, err)

	oldEngine, ok := c.Properties()["Engine"].Get(c).(types.Subject)
	require.True(t, ok)
	newEngine, err := car.NewEnginePart(500)
	require.NoError(t, err)

	var engineChanges int
	var horsepowerChanges int
	unsubscribe := graph.Changes.Subscribe(func(ch types.PropertyChange) {
		if ch.Property == "Engine" {
			engineChanges++
		}
		if ch.Property == "Horsepower" {
			horsepowerChanges++
		}
	})
	defer unsubscribe()

	err = graph.Context.Write(c, "Engine", newEngine)
	require.NoError(t, err)

	require.Equal(t, 1, engineChanges)
	require.Equal(t, 0, horsepowerChanges)

	_, found := graph.Tracker.Get(oldEngine)
	require.False(t, found, "the replaced engine must be fully detached")

	count, _, found := graph.Tracker.Get(newEngine)
	require.True(t, found)
	require.Equal(t, 1, count)
}

// TestInvariantSameValueWriteFiresNoSyntheticEvent mirrors spec.md §8's
// quantified invariant 2: writing a property's own current value back must
// not fire any change event, synthetic or otherwise — the equality check
// short-circuits before the derived engine or the change observable ever
// see the write.
func TestInvariantSameValueWriteFiresNoSyntheticEvent(t *testing.T) {
	c, graph, err := car.New()
	require.NoError(t, err)

	tires, ok := c.Properties()["Tires"].Get(c).([]*car.Tire)
	require.True(t, ok)
	current := tires[0].Properties()["Pressure"].Get(tires[0])

	var changes []types.PropertyChange
	unsubscribe := graph.Changes.Subscribe(func(ch types.PropertyChange) {
		changes = append(changes, ch)
	})
	defer unsubscribe()

	err = graph.Context.Write(tires[0], "Pressure", current)
	require.NoError(t, err)
	require.Empty(t, changes, "writing a property's current value back must not fire any change, including a synthetic derived one")
}

// dictHolder is a minimal subject exercising a subject-dictionary property
// for spec.md §8 S3, not otherwise part of the Car/Tire/Engine demo graph.
type dictHolder struct {
	ctx      types.Context
	data     *types.DataBag
	props    map[string]*types.PropertyMetadata
	machines map[string]*dictMachine
}

func newDictHolder() *dictHolder {
	h := &dictHolder{data: types.NewDataBag(), machines: make(map[string]*dictMachine)}
	h.props = map[string]*types.PropertyMetadata{
		"Machines": {
			Name:                "Machines",
			IsSubjectDictionary: true,
			Get:                 func(s types.Subject) any { return s.(*dictHolder).machines },
			Set: func(s types.Subject, v any) error {
				s.(*dictHolder).machines = v.(map[string]*dictMachine)
				return nil
			},
		},
	}
	return h
}

func (h *dictHolder) Context() types.Context                        { return h.ctx }
func (h *dictHolder) SetContext(ctx types.Context)                  { h.ctx = ctx }
func (h *dictHolder) Properties() map[string]*types.PropertyMetadata { return h.props }
func (h *dictHolder) Data() *types.DataBag                           { return h.data }
func (h *dictHolder) TypeTag() string                                { return "Root" }

var _ types.Subject = (*dictHolder)(nil)

type dictMachine struct {
	ctx          types.Context
	data         *types.DataBag
	props        map[string]*types.PropertyMetadata
	serialNumber string
}

func newDictMachine(serial string) *dictMachine {
	m := &dictMachine{data: types.NewDataBag(), serialNumber: serial}
	m.props = map[string]*types.PropertyMetadata{
		"SerialNumber": {
			Name: "SerialNumber",
			Get:  func(s types.Subject) any { return s.(*dictMachine).serialNumber },
		},
	}
	return m
}

func (m *dictMachine) Context() types.Context                        { return m.ctx }
func (m *dictMachine) SetContext(ctx types.Context)                  { m.ctx = ctx }
func (m *dictMachine) Properties() map[string]*types.PropertyMetadata { return m.props }
func (m *dictMachine) Data() *types.DataBag                           { return m.data }
func (m *dictMachine) TypeTag() string                                { return "Machine" }

var _ types.Subject = (*dictMachine)(nil)

// TestScenarioS3DictionaryInsertion mirrors spec.md §8 S3: inserting a new
// key into a subject-dictionary property attaches the new entry (with its
// string index) and fires no detach, and the path provider addresses the
// new entry's nested property.
func TestScenarioS3DictionaryInsertion(t *testing.T) {
	graph, err := engine.NewGraph()
	require.NoError(t, err)

	root := newDictHolder()
	root.SetContext(graph.Context)
	m1 := newDictMachine("SN-001")
	graph.Tracker.Attach(root, "Machines", "m1", m1)
	root.machines["m1"] = m1

	m2 := newDictMachine("SN-002")

	// The write itself drives the lifecycle tracker: Context.Write runs the
	// property through the Lifecycle interceptor, which diffs the old and
	// new dictionary values and attaches m2 without any caller help.
	next := map[string]*dictMachine{"m1": m1, "m2": m2}
	err = graph.Context.Write(root, "Machines", next)
	require.NoError(t, err)

	count1, _, found1 := graph.Tracker.Get(m1)
	require.True(t, found1)
	require.Equal(t, 1, count1, "the untouched existing entry must not be re-attached")

	count, parents, found := graph.Tracker.Get(m2)
	require.True(t, found)
	require.Equal(t, 1, count)
	require.Equal(t, "m2", parents[0].Index)

	path := engine.NewPath()
	ref, err := path.Parse(root, `Machines["m2"].SerialNumber`)
	require.NoError(t, err)
	require.Equal(t, "SN-002", ref.Subject.Properties()["SerialNumber"].Get(ref.Subject))
}

// TestScenarioS4CompleteUpdateApply mirrors spec.md §8 S4: applying a
// SubjectUpdate tree touching Name and two Tires' Pressure publishes one
// Name change and one Pressure change per touched tire (alongside the
// derived AveragePressure and Tires-truncation changes the apply also
// triggers).
func TestScenarioS4CompleteUpdateApply(t *testing.T) {
	c, graph, err := car.New()
	require.NoError(t, err)

	tires, ok := c.Properties()["Tires"].Get(c).([]*car.Tire)
	require.True(t, ok)

	var changes []types.PropertyChange
	unsubscribe := graph.Changes.Subscribe(func(ch types.PropertyChange) {
		changes = append(changes, ch)
	})
	defer unsubscribe()

	update := &types.SubjectUpdate{
		Type: "Car",
		Properties: []types.SubjectPropertyUpdate{
			{Name: "Name", HasValue: true, Value: "new"},
			{
				Name: "Tires",
				Collection: []types.CollectionEntry{
					{Index: 0, Subject: &types.SubjectUpdate{Type: "Tire", Properties: []types.SubjectPropertyUpdate{
						{Name: "Pressure", HasValue: true, Value: 3.0},
					}}},
					{Index: 1, Subject: &types.SubjectUpdate{Type: "Tire", Properties: []types.SubjectPropertyUpdate{
						{Name: "Pressure", HasValue: true, Value: 4.0},
					}}},
				},
			},
		},
	}

	err = engine.ApplyUpdate(graph.Context, c, update, nil)
	require.NoError(t, err)

	require.Equal(t, "new", c.Properties()["Name"].Get(c))
	require.Equal(t, 3.0, tires[0].Properties()["Pressure"].Get(tires[0]))
	require.Equal(t, 4.0, tires[1].Properties()["Pressure"].Get(tires[1]))

	// Name + Tires[0].Pressure + Tires[1].Pressure, plus AveragePressure's
	// synthetic recompute from the pressure writes.
	var nameChanges, pressureChanges int
	for _, ch := range changes {
		switch {
		case ch.Subject == types.Subject(c) && ch.Property == "Name":
			nameChanges++
		case ch.Property == "Pressure":
			pressureChanges++
		}
	}
	require.Equal(t, 1, nameChanges)
	require.Equal(t, 2, pressureChanges)
}

// TestScenarioS6AttributePropagation mirrors spec.md §8 S6: a complete
// update nests Name's MaxLength attribute under Properties.Name.Attributes
// rather than as a sibling top-level property, and applying that shape
// writes to the Name_MaxLength backing property.
func TestScenarioS6AttributePropagation(t *testing.T) {
	c, _, err := car.New()
	require.NoError(t, err)

	update, err := engine.BuildUpdate(c, nil)
	require.NoError(t, err)

	nameUpdate, ok := update.Property("Name")
	require.True(t, ok)
	require.NotNil(t, nameUpdate.Attributes)
	maxLength, ok := nameUpdate.Attributes["MaxLength"]
	require.True(t, ok)
	require.Equal(t, 64, maxLength.Value)

	_, isSibling := update.Property("Name_MaxLength")
	require.False(t, isSibling, "an attribute property must not appear as its own top-level entry")

	inbound := &types.SubjectUpdate{
		Type: "Car",
		Properties: []types.SubjectPropertyUpdate{
			{
				Name:     "Name",
				HasValue: true,
				Value:    c.Properties()["Name"].Get(c),
				Attributes: map[string]*types.SubjectPropertyUpdate{
					"MaxLength": {Name: "Name_MaxLength", HasValue: true, Value: 128},
				},
			},
		},
	}

	target, _, err := car.New()
	require.NoError(t, err)

	err = engine.ApplyUpdate(target.Context(), target, inbound, nil)
	require.NoError(t, err)
	require.Equal(t, 128, target.Properties()["Name_MaxLength"].Get(target))
}
