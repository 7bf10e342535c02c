package element

import (
	"math"
	"sort"
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/integrate/quad"
)

func allSchemes(t *testing.T) []Scheme {
	var out []Scheme
	for _, c := range []struct {
		g     ElementGeometry
		order int
	}{{Line, 1}, {Line, 3}, {Rectangle, 1}, {Rectangle, 2}, {Hex, 1}, {Hex, 2}, {Tri, 1}, {Tet, 1}} {
		s, err := New(c.g, c.order)
		require.NoError(t, err)
		out = append(out, s)
	}
	return out
}

func TestJacobiGQ_MatchesGonumLegendre(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		x, w := JacobiGQ(0, 0, n-1)
		chk.Array(t, "sum w", 1e-14, []float64{sum(w)}, []float64{2})
		if n >= 2 {
			var q float64
			for i := range x {
				q += w[i] * x[i] * x[i]
			}
			assert.InDelta(t, 2./3, q, 1e-13)
		}
		gx, gw := make([]float64, n), make([]float64, n)
		quad.Legendre{}.FixedLocations(gx, gw, -1, 1)
		sort.Float64s(gx)
		sort.Float64s(gw)
		sort.Float64s(w)
		chk.Array(t, "x", 1e-13, x, gx)
		chk.Array(t, "w", 1e-13, w, gw)
	}
	chk.Array(t, "GL3", 1e-14, JacobiGL(0, 0, 2), []float64{-1, 0, 1})
	chk.Array(t, "GL4", 1e-14, JacobiGL(0, 0, 3), []float64{-1, -1 / math.Sqrt(5), 1 / math.Sqrt(5), 1})
}

func TestScheme_Kronecker(t *testing.T) {
	for _, s := range allSchemes(t) {
		p := s.Properties()
		t.Run(p.Name, func(t *testing.T) {
			nodes := s.Nodes()
			require.Len(t, nodes, p.Np)
			N := make([]float64, p.Np)
			for j, r := range nodes {
				s.Eval(r, N, nil)
				for i := range N {
					want := 0.
					if i == j {
						want = 1
					}
					assert.InDelta(t, want, N[i], 1e-12, "N_%d(node %d)", i, j)
				}
			}
		})
	}
}

func TestScheme_PartitionOfUnityAndDerivatives(t *testing.T) {
	for _, s := range allSchemes(t) {
		p := s.Properties()
		dim := int(p.Dimensions)
		t.Run(p.Name, func(t *testing.T) {
			rule := DefaultRule(s)
			N := make([]float64, p.Np)
			dN := newRows(p.Np, dim)
			Np := make([]float64, p.Np)
			for _, r := range rule.Points {
				s.Eval(r, N, dN)
				assert.InDelta(t, 1, sum(N), 1e-12)
				for d := 0; d < dim; d++ {
					var g float64
					for a := range dN {
						g += dN[a][d]
					}
					assert.InDelta(t, 0, g, 1e-11)

					// central difference in direction d
					h := 1e-6
					rp := append([]float64(nil), r...)
					rp[d] += h
					s.Eval(rp, Np, nil)
					rm := append([]float64(nil), r...)
					rm[d] -= h
					Nm := make([]float64, p.Np)
					s.Eval(rm, Nm, nil)
					for a := range N {
						assert.InDelta(t, dN[a][d], (Np[a]-Nm[a])/(2*h), 1e-6)
					}
				}
			}
		})
	}
}

func TestScheme_FacesAreOutward(t *testing.T) {
	for _, s := range allSchemes(t) {
		p := s.Properties()
		dim := int(p.Dimensions)
		if dim < 2 {
			continue
		}
		t.Run(p.Name, func(t *testing.T) {
			nodes := s.Nodes()
			centroid := make([]float64, dim)
			for _, r := range nodes {
				for d := range centroid {
					centroid[d] += r[d] / float64(len(nodes))
				}
			}
			fs := s.FaceScheme()
			fp := fs.Properties()
			require.Len(t, s.Faces(), p.NFaces)
			for f, face := range s.Faces() {
				require.Len(t, face, fp.Np)
				// tangents of the facet parametrization at its first quadrature point
				rule := DefaultRule(fs)
				N := make([]float64, fp.Np)
				dN := newRows(fp.Np, dim-1)
				fs.Eval(rule.Points[0], N, dN)
				tang := newRows(dim-1, dim)
				x := make([]float64, dim)
				for a, node := range face {
					for d := 0; d < dim; d++ {
						x[d] += N[a] * nodes[node][d]
						for k := 0; k < dim-1; k++ {
							tang[k][d] += dN[a][k] * nodes[node][d]
						}
					}
				}
				var n []float64
				if dim == 2 {
					n = []float64{tang[0][1], -tang[0][0]}
				} else {
					a, b := tang[0], tang[1]
					n = []float64{a[1]*b[2] - a[2]*b[1], a[2]*b[0] - a[0]*b[2], a[0]*b[1] - a[1]*b[0]}
				}
				var dot float64
				for d := range n {
					dot += n[d] * (x[d] - centroid[d])
				}
				assert.Greater(t, dot, 0., "face %d %v", f, face)
			}
		})
	}
}

func TestGaussRule_Volumes(t *testing.T) {
	volumes := map[ElementGeometry]float64{Line: 2, Rectangle: 4, Hex: 8, Tri: 0.5, Tet: 1. / 6}
	for _, s := range allSchemes(t) {
		p := s.Properties()
		for _, n := range []int{1, 2} {
			r, err := GaussRule(s, n)
			require.NoError(t, err)
			assert.InDelta(t, volumes[p.Type], sum(r.Weights), 1e-14, "%s n=%d", p.Name, n)
		}
	}
	_, err := GaussRule(Tri3{}, 3)
	assert.Error(t, err)
	_, err = New(Tet, 2)
	assert.Error(t, err)
}

func TestTabulate(t *testing.T) {
	s := NewLagrange(Rectangle, 1)
	N, dN := Tabulate(s, s.Nodes())
	r, c := N.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 4, c)
	require.Len(t, dN, 2)
	// dN_0/dr at node 0 of the bilinear quad
	assert.InDelta(t, -0.5, dN[0].At(0, 0), 1e-14)
	assert.InDelta(t, 0.5, dN[0].At(0, 1), 1e-14)
}

func sum(v []float64) (s float64) {
	for _, x := range v {
		s += x
	}
	return
}
