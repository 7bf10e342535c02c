package utils

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/FEMKernel/element"
	"github.com/notargets/FEMKernel/mesh"
)

// FaceConnector matches element faces through their control points
type FaceConnector struct {
	K      int // Total elements
	Nfaces int // Faces per element

	// Connectivity, -1 where a face lies on the boundary
	EToE [][]int // [elem][face] → neighbor element
	EToF [][]int // [elem][face] → neighbor face

	elements [][]int
	faces    [][]int // local node lists of the scheme's faces
}

// faceKey is the sorted point list of a face, independent of orientation
func faceKey(points []int) string {
	s := append([]int(nil), points...)
	sort.Ints(s)
	var b strings.Builder
	for i, p := range s {
		if i > 0 {
			b.WriteByte('-')
		}
		fmt.Fprintf(&b, "%d", p)
	}
	return b.String()
}

// NewFaceConnector builds face adjacency for elements of scheme s. A face
// shared by more than two elements is an error.
func NewFaceConnector(elements [][]int, s element.Scheme) (*FaceConnector, error) {
	faces := s.Faces()
	if len(faces) == 0 {
		return nil, fmt.Errorf("scheme %s has no faces", s.Properties().Name)
	}
	fc := &FaceConnector{
		K:        len(elements),
		Nfaces:   len(faces),
		EToE:     make([][]int, len(elements)),
		EToF:     make([][]int, len(elements)),
		elements: elements,
		faces:    faces,
	}

	type faceRef struct{ elem, face int }
	seen := make(map[string]faceRef)
	for e := range elements {
		fc.EToE[e] = make([]int, fc.Nfaces)
		fc.EToF[e] = make([]int, fc.Nfaces)
		for f := 0; f < fc.Nfaces; f++ {
			fc.EToE[e][f], fc.EToF[e][f] = -1, -1
			key := faceKey(fc.Face(e, f))
			other, ok := seen[key]
			if !ok {
				seen[key] = faceRef{e, f}
				continue
			}
			if fc.EToE[other.elem][other.face] >= 0 {
				return nil, fmt.Errorf("face %s of element %d is shared by more than two elements", key, e)
			}
			fc.EToE[e][f], fc.EToF[e][f] = other.elem, other.face
			fc.EToE[other.elem][other.face], fc.EToF[other.elem][other.face] = e, f
		}
	}
	return fc, nil
}

// Face returns the control points of face f of element e, in the outward
// orientation of the scheme.
func (fc *FaceConnector) Face(e, f int) []int {
	local := fc.faces[f]
	out := make([]int, len(local))
	for i, a := range local {
		out[i] = fc.elements[e][a]
	}
	return out
}

// BoundaryFacets lists every unmatched face, element by element.
func (fc *FaceConnector) BoundaryFacets() [][]int {
	var out [][]int
	for e := 0; e < fc.K; e++ {
		for f := 0; f < fc.Nfaces; f++ {
			if fc.EToE[e][f] < 0 {
				out = append(out, fc.Face(e, f))
			}
		}
	}
	return out
}

// BoundaryFacets is a shortcut for the boundary of one body.
func BoundaryFacets(b *mesh.Body) ([][]int, error) {
	fc, err := NewFaceConnector(b.Elements, b.Scheme)
	if err != nil {
		return nil, fmt.Errorf("body %s: %w", b.Name, err)
	}
	return fc.BoundaryFacets(), nil
}

// SelectFacets keeps the facets whose centroid satisfies pred.
func SelectFacets(m *mesh.Mesh, facets [][]int, pred func(x []float64) bool) [][]int {
	var out [][]int
	c := make([]float64, m.Dim)
	for _, f := range facets {
		if len(f) == 0 {
			continue
		}
		for i := range c {
			c[i] = 0
		}
		for _, p := range f {
			floats.Add(c, m.Points[p].X)
		}
		floats.Scale(1/float64(len(f)), c)
		if pred(c) {
			out = append(out, f)
		}
	}
	return out
}

// FacetPoints returns the distinct points of facets in ascending order.
func FacetPoints(facets [][]int) []int {
	seen := map[int]bool{}
	var out []int
	for _, f := range facets {
		for _, p := range f {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	sort.Ints(out)
	return out
}
