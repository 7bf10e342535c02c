package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/FEMKernel/element"
	"github.com/notargets/FEMKernel/mesh"
)

func TestGrid_Counts(t *testing.T) {
	pos, els, s := Brick(10, 1, 1, 10, 1, 1, 1)
	assert.Len(t, pos, 44)
	assert.Len(t, els, 10)
	assert.Equal(t, 8, s.Properties().Np)
	// second cell, lexicographic nodes
	assert.Equal(t, []int{1, 2, 12, 13, 23, 24, 34, 35}, els[1])
	assert.Equal(t, []float64{2, 1, 1}, pos[35])

	pos, els, _ = Grid([]int{2, 1}, []float64{2, 1}, 2)
	assert.Len(t, pos, 15)
	assert.Equal(t, []int{2, 3, 4, 7, 8, 9, 12, 13, 14}, els[1])
	assert.InDelta(t, 1.5, pos[3][0], 1e-15)
	assert.InDelta(t, 0.5, pos[7][1], 1e-15)

	assert.Panics(t, func() { Grid([]int{1, 1}, []float64{1}, 1) })
}

// outward checks that the face normal points away from the element centroid
func outward(pos [][]float64, el, face []int) bool {
	center := func(pts []int) []float64 {
		c := make([]float64, len(pos[0]))
		for _, p := range pts {
			for d := range c {
				c[d] += pos[p][d] / float64(len(pts))
			}
		}
		return c
	}
	ce, cf := center(el), center(face)
	var n []float64
	switch len(pos[0]) {
	case 2:
		t := []float64{pos[face[1]][0] - pos[face[0]][0], pos[face[1]][1] - pos[face[0]][1]}
		n = []float64{t[1], -t[0]}
	case 3:
		a, b := make([]float64, 3), make([]float64, 3)
		for d := 0; d < 3; d++ {
			a[d] = pos[face[1]][d] - pos[face[0]][d]
			b[d] = pos[face[2]][d] - pos[face[0]][d]
		}
		n = []float64{a[1]*b[2] - a[2]*b[1], a[2]*b[0] - a[0]*b[2], a[0]*b[1] - a[1]*b[0]}
	}
	var dot float64
	for d := range n {
		dot += n[d] * (cf[d] - ce[d])
	}
	return dot > 0
}

func TestFaceConnector_Brick(t *testing.T) {
	pos, els, s := Brick(2, 1, 1, 2, 1, 1, 1)
	fc, err := NewFaceConnector(els, s)
	require.NoError(t, err)
	// +x face of cell 0 meets the -x face of cell 1
	assert.Equal(t, 1, fc.EToE[0][1])
	assert.Equal(t, 0, fc.EToF[0][1])
	assert.Equal(t, 0, fc.EToE[1][0])
	assert.Equal(t, -1, fc.EToE[0][0])

	assert.Len(t, fc.BoundaryFacets(), 10)
	for e := range els {
		for f := 0; f < fc.Nfaces; f++ {
			assert.True(t, outward(pos, els[e], fc.Face(e, f)), "element %d face %d", e, f)
		}
	}
}

func TestFaceConnector_QuadOutward(t *testing.T) {
	pos, els, s := Grid([]int{2, 2}, []float64{2, 2}, 1)
	fc, err := NewFaceConnector(els, s)
	require.NoError(t, err)
	n := 0
	for e := range els {
		for f := 0; f < fc.Nfaces; f++ {
			if fc.EToE[e][f] < 0 {
				n++
				assert.True(t, outward(pos, els[e], fc.Face(e, f)), "element %d face %d", e, f)
			}
		}
	}
	assert.Equal(t, 8, n)
}

func TestFaceConnector_NonManifold(t *testing.T) {
	s := element.NewLagrange(element.Line, 1)
	_, err := NewFaceConnector([][]int{{0, 1}, {1, 2}, {3, 1}}, s)
	assert.Error(t, err)
	_, err = NewFaceConnector([][]int{{0}}, element.PointScheme{})
	assert.Error(t, err)
}

func TestSelectFacets(t *testing.T) {
	pos, els, s := Brick(3, 1, 1, 3, 1, 1, 1)
	m, err := mesh.New(3, pos)
	require.NoError(t, err)
	body := &mesh.Body{Name: "bar", Scheme: s, Elements: els}
	facets, err := BoundaryFacets(body)
	require.NoError(t, err)
	assert.Len(t, facets, 14)

	left := SelectFacets(m, facets, func(x []float64) bool { return x[0] == 0 })
	require.Len(t, left, 1)
	assert.Equal(t, []int{0, 4, 8, 12}, FacetPoints(left))

	top := SelectFacets(m, facets, func(x []float64) bool { return x[2] == 1 })
	assert.Len(t, top, 3)
	assert.Len(t, FacetPoints(top), 8)

	// side faces of the first cell straddle x = 0.75 but their centroids do not
	near := SelectFacets(m, facets, func(x []float64) bool { return x[0] < 0.75 })
	assert.Len(t, near, 5)
	assert.Equal(t, []int{0, 1, 4, 5, 8, 9, 12, 13}, FacetPoints(near))
}

func TestNewDevice_UnknownMode(t *testing.T) {
	_, err := NewDevice("Quantum")
	assert.Error(t, err)
}
