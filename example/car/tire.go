package car

import "github.com/bittoy/reactor/types"

// Tire is the spec §8 S1/S2 scenario's simplest subject: one plain
// property, no children, used to exercise the collection-attach and
// equality-check paths.
type Tire struct {
	ctx   types.Context
	data  *types.DataBag
	props map[string]*types.PropertyMetadata

	pressure float64
}

func NewTire(pressure float64) *Tire {
	t := &Tire{data: types.NewDataBag()}
	t.props = map[string]*types.PropertyMetadata{
		"Pressure": {
			Name: "Pressure",
			Get:  func(s types.Subject) any { return s.(*Tire).pressure },
			Set: func(s types.Subject, v any) error {
				s.(*Tire).pressure = v.(float64)
				return nil
			},
		},
	}
	t.pressure = pressure
	return t
}

func (t *Tire) Context() types.Context              { return t.ctx }
func (t *Tire) SetContext(ctx types.Context)         { t.ctx = ctx }
func (t *Tire) Properties() map[string]*types.PropertyMetadata { return t.props }
func (t *Tire) Data() *types.DataBag                 { return t.data }
func (t *Tire) TypeTag() string                      { return "Tire" }

var _ types.Subject = (*Tire)(nil)
