// Package car is the demo subject graph from spec.md §8's seed scenarios:
// a Car with a Name (carrying a Name_MaxLength attribute property, S6), an
// Engine (S2's reference-replacement target), and a collection of Tires,
// plus one cross-tree derived property (AveragePressure, S1) exercising
// the derived engine's dependency auto-discovery over a subject-collection
// property.
package car

import (
	"github.com/bittoy/reactor/engine"
	"github.com/bittoy/reactor/types"
)

type Car struct {
	ctx   types.Context
	data  *types.DataBag
	props map[string]*types.PropertyMetadata

	name          string
	nameMaxLength int
	tires         []*Tire
	eng           *EnginePart
}

func (c *Car) Context() types.Context                        { return c.ctx }
func (c *Car) SetContext(ctx types.Context)                  { c.ctx = ctx }
func (c *Car) Properties() map[string]*types.PropertyMetadata { return c.props }
func (c *Car) Data() *types.DataBag                           { return c.data }
func (c *Car) TypeTag() string                                { return "Car" }

var _ types.Subject = (*Car)(nil)

// New builds a fully-wired Car (with four tires and an engine already
// attached) plus the engine.Graph it lives in. Writes to Tires[i].Pressure
// automatically recompute AveragePressure through the derived engine's
// auto-discovered dependency edges.
func New() (*Car, *engine.Graph, error) {
	graph, err := engine.NewGraph()
	if err != nil {
		return nil, nil, err
	}

	c := &Car{ctx: graph.Context, data: types.NewDataBag()}
	tires := []*Tire{NewTire(32.0), NewTire(32.0), NewTire(31.5), NewTire(31.5)}
	eng, err := NewEnginePart(180)
	if err != nil {
		return nil, nil, err
	}

	c.nameMaxLength = 64
	c.props = map[string]*types.PropertyMetadata{
		"Name": {
			Name: "Name",
			Get:  func(s types.Subject) any { return s.(*Car).name },
			Set: func(s types.Subject, v any) error {
				s.(*Car).name = v.(string)
				return nil
			},
		},
		// Name_MaxLength is an attribute property of Name (spec §3, §8
		// S6): it never appears as its own top-level update property,
		// only nested under Properties.Name.Attributes.MaxLength.
		"Name_MaxLength": {
			Name:        "Name_MaxLength",
			IsAttribute: true,
			Get:         func(s types.Subject) any { return s.(*Car).nameMaxLength },
			Set: func(s types.Subject, v any) error {
				s.(*Car).nameMaxLength = v.(int)
				return nil
			},
			Attributes: []types.Attribute{
				{Role: types.AttributeRoleAttributeOf, Value: types.AttributeOf{RootProperty: "Name", AttributeName: "MaxLength"}},
			},
		},
		"Tires": {
			Name:                "Tires",
			IsSubjectCollection: true,
			Get:                 func(s types.Subject) any { return s.(*Car).tires },
			Set: func(s types.Subject, v any) error {
				s.(*Car).tires = v.([]*Tire)
				return nil
			},
		},
		"Engine": {
			Name:               "Engine",
			IsSubjectReference: true,
			Get: func(s types.Subject) any {
				e := s.(*Car).eng
				if e == nil {
					return nil
				}
				return e
			},
			Set: func(s types.Subject, v any) error {
				e, _ := v.(*EnginePart)
				s.(*Car).eng = e
				return nil
			},
		},
		"AveragePressure": {
			Name:      "AveragePressure",
			IsDerived: true,
			Get:       averagePressure,
			Attributes: []types.Attribute{
				{Role: types.AttributeRoleDerived, Value: "mean(Tires[*].Pressure)"},
			},
		},
	}

	c.tires = tires
	c.eng = eng

	for i, t := range tires {
		graph.Tracker.Attach(c, "Tires", i, t)
	}
	graph.Tracker.Attach(c, "Engine", nil, eng)
	graph.InitDerived(eng, "IsPowerful")
	graph.InitDerived(c, "AveragePressure")

	return c, graph, nil
}

// averagePressure reads every tire's Pressure through the owning car's
// context (so each read is recorded for dependency auto-discovery) and
// returns their arithmetic mean, or 0 for a car with no tires.
func averagePressure(subject types.Subject) any {
	c := subject.(*Car)
	ctx := c.Context()
	if ctx == nil || len(c.tires) == 0 {
		return 0.0
	}
	var sum float64
	for _, t := range c.tires {
		v := ctx.Read(t, "Pressure")
		f, _ := v.(float64)
		sum += f
	}
	return sum / float64(len(c.tires))
}
