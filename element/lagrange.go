package element

import "fmt"

// Lagrange is a tensor-product nodal cell (line, rectangle or hexahedron) on
// [-1,1]^d with Gauss-Lobatto-Legendre nodes. Nodes are numbered
// lexicographically with the first coordinate running fastest.
type Lagrange struct {
	props ElementProperties
	x     []float64 // 1D nodes
	nodes [][]float64
	faces [][]int
	face  Scheme
}

func NewLagrange(g ElementGeometry, order int) *Lagrange {
	dim := int(g.Dimensions())
	if dim < 1 {
		panic(fmt.Sprintf("lagrange cell needs a line, rectangle or hexahedron, got %s", g))
	}
	n1 := order + 1
	np := 1
	for d := 0; d < dim; d++ {
		np *= n1
	}
	l := &Lagrange{x: JacobiGL(0, 0, order)}
	l.props = ElementProperties{
		Name:       fmt.Sprintf("Lagrange %s order %d", g, order),
		ShortName:  fmt.Sprintf("%c%d", g.String()[0], np),
		Type:       g,
		Order:      order,
		Np:         np,
		NVp:        1 << dim,
		NFp:        np / n1,
		NFaces:     2 * dim,
		Dimensions: g.Dimensions(),
	}
	l.nodes = newRows(np, dim)
	for a := 0; a < np; a++ {
		for d, i := range l.multi(a) {
			l.nodes[a][d] = l.x[i]
		}
	}
	l.buildFaces()
	return l
}

// multi splits a node number into its per-axis 1D node numbers.
func (l *Lagrange) multi(a int) []int {
	dim := int(l.props.Dimensions)
	n1 := len(l.x)
	out := make([]int, dim)
	for d := 0; d < dim; d++ {
		out[d] = a % n1
		a /= n1
	}
	return out
}

func (l *Lagrange) flat(idx []int) int {
	a, stride := 0, 1
	for _, i := range idx {
		a += i * stride
		stride *= len(l.x)
	}
	return a
}

// buildFaces orders faces (axis 0 low, axis 0 high, axis 1 low, ...). Each
// face is enumerated over its remaining axes with the first one fastest; the
// axis order (or, for edges, the direction) is flipped where that would give
// an inward normal.
func (l *Lagrange) buildFaces() {
	dim := int(l.props.Dimensions)
	n1 := len(l.x)
	switch dim {
	case 1:
		l.faces = [][]int{{0}, {n1 - 1}}
		l.face = PointScheme{}
		return
	case 2:
		l.face = NewLagrange(Line, l.props.Order)
	case 3:
		l.face = NewLagrange(Rectangle, l.props.Order)
	}
	for d := 0; d < dim; d++ {
		var rest []int
		for e := 0; e < dim; e++ {
			if e != d {
				rest = append(rest, e)
			}
		}
		for _, side := range []int{-1, 1} {
			fixed := 0
			if side > 0 {
				fixed = n1 - 1
			}
			flip := side*permSign(append([]int{d}, rest...)) < 0
			axes := rest
			if flip && dim == 3 {
				axes = []int{rest[1], rest[0]}
			}
			nf := l.props.NFp
			face := make([]int, nf)
			idx := make([]int, dim)
			for k := 0; k < nf; k++ {
				idx[d] = fixed
				m := k
				for _, ax := range axes {
					idx[ax] = m % n1
					m /= n1
				}
				if flip && dim == 2 {
					idx[axes[0]] = n1 - 1 - idx[axes[0]]
				}
				face[k] = l.flat(idx)
			}
			l.faces = append(l.faces, face)
		}
	}
}

func permSign(p []int) int {
	s := 1
	for i := range p {
		for j := i + 1; j < len(p); j++ {
			if p[i] > p[j] {
				s = -s
			}
		}
	}
	return s
}

func (l *Lagrange) Properties() ElementProperties { return l.props }
func (l *Lagrange) Nodes() [][]float64            { return l.nodes }
func (l *Lagrange) Faces() [][]int                { return l.faces }
func (l *Lagrange) FaceScheme() Scheme            { return l.face }

func (l *Lagrange) Eval(r []float64, N []float64, dN [][]float64) {
	dim := int(l.props.Dimensions)
	n1 := len(l.x)
	val := newRows(dim, n1)
	der := newRows(dim, n1)
	for d := 0; d < dim; d++ {
		lagrange1D(l.x, r[d], val[d], der[d])
	}
	for a := 0; a < l.props.Np; a++ {
		idx := l.multi(a)
		v := 1.
		for d, i := range idx {
			v *= val[d][i]
		}
		N[a] = v
		if dN == nil {
			continue
		}
		for d := 0; d < dim; d++ {
			g := der[d][idx[d]]
			for e, i := range idx {
				if e != d {
					g *= val[e][i]
				}
			}
			dN[a][d] = g
		}
	}
}

// lagrange1D evaluates the cardinal polynomials of nodes x at r and their
// derivatives.
func lagrange1D(x []float64, r float64, val, der []float64) {
	n := len(x)
	for i := 0; i < n; i++ {
		v := 1.
		for m := 0; m < n; m++ {
			if m != i {
				v *= (r - x[m]) / (x[i] - x[m])
			}
		}
		val[i] = v

		var d float64
		for k := 0; k < n; k++ {
			if k == i {
				continue
			}
			p := 1 / (x[i] - x[k])
			for m := 0; m < n; m++ {
				if m != i && m != k {
					p *= (r - x[m]) / (x[i] - x[m])
				}
			}
			d += p
		}
		der[i] = d
	}
}
