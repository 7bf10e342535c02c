// Package element provides nodal reference cells: shape functions, their
// reference derivatives, outward-ordered facets and quadrature rules.
package element

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

type Dimensionality uint8

const (
	D0 Dimensionality = iota
	D1
	D2
	D3
)

type ElementGeometry uint8

const (
	Point ElementGeometry = iota
	Line
	Tri
	Rectangle
	Tet
	Hex
)

func (g ElementGeometry) String() string {
	switch g {
	case Point:
		return "Point"
	case Line:
		return "Line"
	case Tri:
		return "Triangle"
	case Rectangle:
		return "Rectangle"
	case Tet:
		return "Tetrahedron"
	case Hex:
		return "Hexahedron"
	}
	return fmt.Sprintf("ElementGeometry(%d)", uint8(g))
}

// Dimensions is the reference dimension of the geometry.
func (g ElementGeometry) Dimensions() Dimensionality {
	switch g {
	case Line:
		return D1
	case Tri, Rectangle:
		return D2
	case Tet, Hex:
		return D3
	}
	return D0
}

type ElementProperties struct {
	Name       string
	ShortName  string
	Type       ElementGeometry
	Order      int
	Np         int // Number of nodes
	NVp        int // Number of vertex nodes
	NFp        int // Nodes per face
	NFaces     int
	Dimensions Dimensionality
}

// Scheme is a nodal reference cell. Node i sits at Nodes()[i] and carries
// shape function N_i with N_i(node j) = δ_ij.
type Scheme interface {
	Properties() ElementProperties

	// Nodes returns the reference coordinates, one row of Dimensions
	// entries per node.
	Nodes() [][]float64

	// Eval writes the shape values at r into N (len Np) and the reference
	// derivatives into dN (Np rows of Dimensions entries).
	Eval(r []float64, N []float64, dN [][]float64)

	// Faces lists the local nodes of each facet, ordered so that the
	// facet's own parametrization yields an outward normal.
	Faces() [][]int

	// FaceScheme is the reference cell of every facet, nil for points.
	FaceScheme() Scheme
}

// New returns the scheme for a geometry and polynomial order. Simplices are
// only available at order 1.
func New(g ElementGeometry, order int) (Scheme, error) {
	switch g {
	case Point:
		return PointScheme{}, nil
	case Line, Rectangle, Hex:
		if order < 1 {
			return nil, fmt.Errorf("lagrange %s needs order >= 1, got %d", g, order)
		}
		return NewLagrange(g, order), nil
	case Tri:
		if order != 1 {
			return nil, fmt.Errorf("triangle order %d not supported", order)
		}
		return Tri3{}, nil
	case Tet:
		if order != 1 {
			return nil, fmt.Errorf("tetrahedron order %d not supported", order)
		}
		return Tet4{}, nil
	}
	return nil, fmt.Errorf("unknown geometry %s", g)
}

// Tabulate evaluates a scheme at a set of points. N is [npts x Np] and
// dN[d] is [npts x Np] for each reference direction d.
func Tabulate(s Scheme, pts [][]float64) (N *mat.Dense, dN []*mat.Dense) {
	p := s.Properties()
	np, dim := p.Np, int(p.Dimensions)
	N = mat.NewDense(len(pts), np, nil)
	dN = make([]*mat.Dense, dim)
	for d := range dN {
		dN[d] = mat.NewDense(len(pts), np, nil)
	}
	vals := make([]float64, np)
	ders := newRows(np, dim)
	for q, r := range pts {
		s.Eval(r, vals, ders)
		N.SetRow(q, vals)
		for a := 0; a < np; a++ {
			for d := 0; d < dim; d++ {
				dN[d].Set(q, a, ders[a][d])
			}
		}
	}
	return
}

func newRows(n, m int) [][]float64 {
	buf := make([]float64, n*m)
	out := make([][]float64, n)
	for i := range out {
		out[i] = buf[i*m : (i+1)*m : (i+1)*m]
	}
	return out
}

// PointScheme is the facet of a line.
type PointScheme struct{}

func (PointScheme) Properties() ElementProperties {
	return ElementProperties{Name: "Point", ShortName: "P1", Type: Point, Np: 1, NVp: 1}
}
func (PointScheme) Nodes() [][]float64 { return [][]float64{{}} }
func (PointScheme) Eval(r []float64, N []float64, dN [][]float64) {
	N[0] = 1
}
func (PointScheme) Faces() [][]int     { return nil }
func (PointScheme) FaceScheme() Scheme { return nil }
