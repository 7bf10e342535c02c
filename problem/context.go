// Package problem ties a mesh, its work-pieces, the DOF numbering, the
// state vectors and the driver settings into one explicit context.
package problem

import (
	"fmt"

	"github.com/notargets/FEMKernel/element"
	"github.com/notargets/FEMKernel/mesh"
	"github.com/notargets/FEMKernel/tensor"
	"github.com/notargets/FEMKernel/weakform"
)

// WorkPiece pairs a body with the weak form governing it.
type WorkPiece struct {
	Body   *mesh.Body
	Form   *weakform.WeakForm
	Params map[string]float64 // coefficients bound at kernel compile time
	Order  int                // Gauss points per direction, 0 for the scheme default
}

// Rule returns the quadrature rule used on cells of scheme s.
func (w *WorkPiece) Rule(s element.Scheme) (element.Rule, error) {
	if w.Order == 0 {
		return element.DefaultRule(s), nil
	}
	return element.GaussRule(s, w.Order)
}

type Context struct {
	Mesh      *mesh.Mesh
	Pieces    []*WorkPiece
	Fields    []*tensor.Field // numbering order, first appearance over the pieces
	DOFs      *mesh.DOFMap
	State     *State
	Config    *Config
	Schedules []*Schedule
}

// NewContext registers the bodies of the pieces, numbers the DOFs and
// allocates the state. A nil cfg selects the defaults.
func NewContext(m *mesh.Mesh, cfg *Config, pieces ...*WorkPiece) (*Context, error) {
	if cfg == nil {
		cfg = new(Config)
		cfg.SetDefault()
	}
	if len(pieces) == 0 {
		return nil, fmt.Errorf("problem has no work-pieces")
	}
	c := &Context{Mesh: m, Pieces: pieces, Config: cfg}
	seen := map[string]bool{}
	for _, w := range pieces {
		if w.Form == nil {
			return nil, fmt.Errorf("body %s has no weak form", w.Body.Name)
		}
		for _, region := range w.Form.Regions() {
			if w.Body.Region(region) == nil {
				return nil, fmt.Errorf("weak form %s: body %s has no region %s", w.Form.Name, w.Body.Name, region)
			}
		}
		if err := m.AddBody(w.Body); err != nil {
			return nil, fmt.Errorf("work-piece %s: %w", w.Body.Name, err)
		}
		for _, f := range w.Body.Fields {
			if !seen[f.Name] {
				seen[f.Name] = true
				c.Fields = append(c.Fields, f)
			}
		}
	}
	dofs, err := m.Number(c.Fields...)
	if err != nil {
		return nil, fmt.Errorf("numbering: %w", err)
	}
	c.DOFs = dofs
	c.State = NewState(dofs.NumDOF)
	return c, nil
}

// Fill sets a field component of the current iterate at every point that
// carries it.
func (c *Context) Fill(field string, comp int, fcn func(x []float64) float64) {
	for p := range c.Mesh.Points {
		if i, ok := c.DOFs.Index(p, field, comp); ok {
			c.State.X[i] = fcn(c.Mesh.Points[p].X)
		}
	}
}

// FieldDOFs lists every global DOF of a field, all components.
func (c *Context) FieldDOFs(field string) []int {
	var out []int
	for p := range c.Mesh.Points {
		for comp := 0; ; comp++ {
			i, ok := c.DOFs.Index(p, field, comp)
			if !ok {
				break
			}
			out = append(out, i)
		}
	}
	return out
}

// AddSchedule registers schedules applied before every step.
func (c *Context) AddSchedule(s ...*Schedule) { c.Schedules = append(c.Schedules, s...) }

// ApplySchedules evaluates every schedule at time t.
func (c *Context) ApplySchedules(t float64) {
	for _, s := range c.Schedules {
		s.Apply(c.Mesh, t)
	}
}
