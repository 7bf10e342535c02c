package mesh

import (
	"fmt"

	"github.com/notargets/FEMKernel/tensor"
)

// AssemblyError names an element or facet that refers to a point without
// a DOF for one of the body's active fields, or to a point outside the arena.
type AssemblyError struct {
	Body   string
	Region string // empty for domain elements
	Cell   int
	Point  int
	Field  string
	Reason string
}

func (e *AssemblyError) Error() string {
	where := fmt.Sprintf("body %s element %d", e.Body, e.Cell)
	if e.Region != "" {
		where = fmt.Sprintf("body %s region %s facet %d", e.Body, e.Region, e.Cell)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: point %d has no DOF for field %s", where, e.Point, e.Field)
	}
	return fmt.Sprintf("%s: point %d: %s", where, e.Point, e.Reason)
}

// DOFMap numbers the unknowns of occupied points, point by point and field
// by field within a point.
type DOFMap struct {
	Dim    int
	Fields []*tensor.Field
	NumDOF int

	first []int // [point*len(Fields)+field] first DOF of the field, -1 if inactive
}

// Number assigns global DOFs and freezes the mesh. fields fixes the order
// of fields within a point; every body field must be listed.
func (m *Mesh) Number(fields ...*tensor.Field) (*DOFMap, error) {
	if m.dofs != nil {
		return nil, ErrFrozen
	}
	fi := map[string]int{}
	for i, f := range fields {
		if f.Kind != tensor.Internal {
			return nil, fmt.Errorf("field %s is not internal", f.Name)
		}
		fi[f.Name] = i
	}
	nf := len(fields)
	active := make([]bool, len(m.Points)*nf)
	for _, b := range m.Bodies {
		idx := make([]int, len(b.Fields))
		for k, f := range b.Fields {
			i, ok := fi[f.Name]
			if !ok {
				return nil, fmt.Errorf("body %s: field %s missing from the numbering", b.Name, f.Name)
			}
			idx[k] = i
		}
		for _, el := range b.Elements {
			for _, p := range el {
				for _, i := range idx {
					active[p*nf+i] = true
				}
			}
		}
	}

	d := &DOFMap{Dim: m.Dim, Fields: fields, first: make([]int, len(active))}
	for p := range m.Points {
		for i, f := range fields {
			d.first[p*nf+i] = -1
			if m.Points[p].refs > 0 && active[p*nf+i] {
				d.first[p*nf+i] = d.NumDOF
				d.NumDOF += f.Components(m.Dim)
			}
		}
	}
	m.dofs = d
	for _, b := range m.Bodies {
		for _, r := range b.Regions {
			if _, err := m.FacetDOFs(b, r); err != nil {
				m.dofs = nil
				return nil, err
			}
		}
	}
	return d, nil
}

func (d *DOFMap) field(name string) int {
	for i, f := range d.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Index returns the global DOF of a field component at a point.
func (d *DOFMap) Index(p int, field string, comp int) (int, bool) {
	i := d.field(field)
	if i < 0 || p < 0 || p*len(d.Fields) >= len(d.first) || comp < 0 || comp >= d.Fields[i].Components(d.Dim) {
		return 0, false
	}
	first := d.first[p*len(d.Fields)+i]
	if first < 0 {
		return 0, false
	}
	return first + comp, true
}

// Value reads a field component at a point out of a global vector.
func (d *DOFMap) Value(x []float64, p int, field string, comp int) (float64, bool) {
	i, ok := d.Index(p, field, comp)
	if !ok {
		return 0, false
	}
	return x[i], true
}

// ElementDOFs maps every local unknown of every element of b to its global
// DOF, following the body layout.
func (m *Mesh) ElementDOFs(b *Body) ([][]int, error) {
	return m.cellDOFs(b, "", b.Elements)
}

// FacetDOFs is ElementDOFs for the facets of region r.
func (m *Mesh) FacetDOFs(b *Body, r *Region) ([][]int, error) {
	return m.cellDOFs(b, r.Name, r.Facets)
}

func (m *Mesh) cellDOFs(b *Body, region string, cells [][]int) ([][]int, error) {
	d := m.dofs
	if d == nil {
		return nil, fmt.Errorf("body %s: mesh is not numbered", b.Name)
	}
	layout := m.Layout(b)
	out := make([][]int, len(cells))
	for c, points := range cells {
		dofs := make([]int, len(points)*layout.NComp)
		for a, p := range points {
			for _, fs := range layout.Internal {
				for comp := 0; comp < fs.NComp; comp++ {
					g, ok := d.Index(p, fs.Name, comp)
					if !ok {
						return nil, &AssemblyError{Body: b.Name, Region: region, Cell: c, Point: p, Field: fs.Name}
					}
					dofs[a*layout.NComp+fs.Offset+comp] = g
				}
			}
		}
		out[c] = dofs
	}
	return out, nil
}
