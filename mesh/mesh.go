// Package mesh holds the control-point arena shared by all bodies, the
// bodies' elements and boundary regions, and the global DOF numbering.
package mesh

import (
	"errors"
	"fmt"

	"github.com/notargets/FEMKernel/element"
	"github.com/notargets/FEMKernel/kernel"
	"github.com/notargets/FEMKernel/tensor"
)

// ErrFrozen is returned when the mesh is changed after DOF numbering.
var ErrFrozen = errors.New("mesh is numbered and frozen")

// ControlPoint is one node of the arena. Elements and facets refer to
// points by index only.
type ControlPoint struct {
	X        []float64
	External []float64 // prescribed values, one slot per external component
	refs     int
}

// Occupancy is the number of elements using the point.
func (c *ControlPoint) Occupancy() int { return c.refs }

// Region is a named set of facets sharing one boundary form.
type Region struct {
	Name   string
	Scheme element.Scheme
	Facets [][]int
}

// Body is a set of elements of one scheme solving for Fields, with
// boundary regions on its facets.
type Body struct {
	Name     string
	Scheme   element.Scheme
	Elements [][]int
	Fields   []*tensor.Field // active internal fields, in layout order
	Regions  []*Region
}

// Region returns the named region or nil.
func (b *Body) Region(name string) *Region {
	for _, r := range b.Regions {
		if r.Name == name {
			return r
		}
	}
	return nil
}

type Mesh struct {
	Dim       int
	Points    []ControlPoint
	Bodies    []*Body
	Externals []*tensor.Field

	extOffset map[string]int
	NExt      int // external slots per point
	dofs      *DOFMap
}

// New builds the arena from point positions. Every point gets storage for
// all components of the external fields.
func New(dim int, positions [][]float64, externals ...*tensor.Field) (*Mesh, error) {
	if dim < 1 || dim > 3 {
		return nil, fmt.Errorf("mesh dimension %d not in [1,3]", dim)
	}
	m := &Mesh{Dim: dim, Externals: externals, extOffset: map[string]int{}}
	for _, f := range externals {
		if f.Kind != tensor.External {
			return nil, fmt.Errorf("field %s is not external", f.Name)
		}
		m.extOffset[f.Name] = m.NExt
		m.NExt += f.Components(dim)
	}
	m.Points = make([]ControlPoint, len(positions))
	for i, x := range positions {
		if len(x) != dim {
			return nil, fmt.Errorf("point %d has %d coordinates, mesh is %d-dimensional", i, len(x), dim)
		}
		m.Points[i] = ControlPoint{X: append([]float64(nil), x...), External: make([]float64, m.NExt)}
	}
	return m, nil
}

// AddBody registers a body and counts its element references. Point indices
// are checked here; DOF coverage of facets is checked by Number.
func (m *Mesh) AddBody(b *Body) error {
	if m.dofs != nil {
		return ErrFrozen
	}
	for _, o := range m.Bodies {
		if o.Name == b.Name {
			return fmt.Errorf("body %s is already registered", b.Name)
		}
	}
	np := b.Scheme.Properties().Np
	if dim := int(b.Scheme.Properties().Dimensions); dim != m.Dim {
		return fmt.Errorf("body %s: %d-dimensional scheme in a %d-dimensional mesh", b.Name, dim, m.Dim)
	}
	for _, f := range b.Fields {
		if f.Kind != tensor.Internal {
			return fmt.Errorf("body %s: active field %s must be internal", b.Name, f.Name)
		}
	}
	for c, el := range b.Elements {
		if len(el) != np {
			return fmt.Errorf("body %s: element %d has %d points, scheme needs %d", b.Name, c, len(el), np)
		}
		for _, p := range el {
			if p < 0 || p >= len(m.Points) {
				return &AssemblyError{Body: b.Name, Cell: c, Point: p, Reason: "point out of range"}
			}
		}
	}
	for _, r := range b.Regions {
		if fd := int(r.Scheme.Properties().Dimensions); fd != m.Dim-1 {
			return fmt.Errorf("body %s region %s: facet scheme has dimension %d", b.Name, r.Name, fd)
		}
		nf := r.Scheme.Properties().Np
		for c, fc := range r.Facets {
			if len(fc) != nf {
				return fmt.Errorf("body %s region %s: facet %d has %d points, scheme needs %d",
					b.Name, r.Name, c, len(fc), nf)
			}
			for _, p := range fc {
				if p < 0 || p >= len(m.Points) {
					return &AssemblyError{Body: b.Name, Region: r.Name, Cell: c, Point: p, Reason: "point out of range"}
				}
			}
		}
	}
	for _, el := range b.Elements {
		for _, p := range el {
			m.Points[p].refs++
		}
	}
	m.Bodies = append(m.Bodies, b)
	return nil
}

// Layout is the local arrangement of body b's unknowns and all external
// fields, as consumed by the kernel compiler.
func (m *Mesh) Layout(b *Body) kernel.Layout {
	fields := append(append([]*tensor.Field(nil), b.Fields...), m.Externals...)
	return kernel.NewLayout(m.Dim, fields...)
}

func (m *Mesh) slot(field string, comp int) int {
	off, ok := m.extOffset[field]
	if !ok {
		panic(fmt.Sprintf("no external field %s", field))
	}
	return off + comp
}

// External reads the prescribed value of an external field component.
func (m *Mesh) External(p int, field string, comp int) float64 {
	return m.Points[p].External[m.slot(field, comp)]
}

// SetExternal writes the prescribed value of an external field component.
func (m *Mesh) SetExternal(p int, field string, comp int, v float64) {
	m.Points[p].External[m.slot(field, comp)] = v
}

// DOFs returns the numbering, or nil before Number.
func (m *Mesh) DOFs() *DOFMap { return m.dofs }
