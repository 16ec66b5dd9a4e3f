package car

import (
	"github.com/bittoy/reactor/builtin/compute"
	"github.com/bittoy/reactor/types"
)

// EnginePart exercises a derived boolean property computed from a plain
// one via builtin/compute.ExprGetter (named to avoid colliding with
// package engine).
type EnginePart struct {
	ctx   types.Context
	data  *types.DataBag
	props map[string]*types.PropertyMetadata

	horsepower int
}

func NewEnginePart(horsepower int) (*EnginePart, error) {
	e := &EnginePart{data: types.NewDataBag(), horsepower: horsepower}

	isPowerful, err := compute.NewExprGetter("Horsepower > 300")
	if err != nil {
		return nil, err
	}

	e.props = map[string]*types.PropertyMetadata{
		"Horsepower": {
			Name: "Horsepower",
			Get:  func(s types.Subject) any { return s.(*EnginePart).horsepower },
			Set: func(s types.Subject, v any) error {
				s.(*EnginePart).horsepower = v.(int)
				return nil
			},
		},
		"IsPowerful": {
			Name:      "IsPowerful",
			IsDerived: true,
			Get:       isPowerful.Getter(),
			Attributes: []types.Attribute{
				{Role: types.AttributeRoleDerived, Value: "Horsepower > 300"},
			},
		},
	}
	return e, nil
}

func (e *EnginePart) Context() types.Context                       { return e.ctx }
func (e *EnginePart) SetContext(ctx types.Context)                  { e.ctx = ctx }
func (e *EnginePart) Properties() map[string]*types.PropertyMetadata { return e.props }
func (e *EnginePart) Data() *types.DataBag                          { return e.data }
func (e *EnginePart) TypeTag() string                               { return "Engine" }

var _ types.Subject = (*EnginePart)(nil)
