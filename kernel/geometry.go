package kernel

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// CellError reports a cell whose mapping from the reference cell is
// degenerate or inverted at some quadrature point.
type CellError struct {
	Kernel string
	Cell   int
	Det    float64
}

func (e *CellError) Error() string {
	return fmt.Sprintf("kernel %s: cell %d has non-positive Jacobian determinant %g", e.Kernel, e.Cell, e.Det)
}

// geometry holds the mapping at one quadrature point. J(d, r) = ∂x_d/∂r_r.
type geometry struct {
	dim, refDim int
	J           *mat.Dense // dim x refDim, nil for point facets
	Inv         *mat.Dense // Inv(r, d) = ∂r_r/∂x_d, volume cells only
	Det         float64    // |J| for cells, facet measure for facets
	Normal      [3]float64
}

func newGeometry(dim, refDim int) geometry {
	g := geometry{dim: dim, refDim: refDim}
	if refDim > 0 {
		g.J = mat.NewDense(dim, refDim, nil)
	}
	if refDim == dim {
		g.Inv = mat.NewDense(dim, dim, nil)
	}
	return g
}

// jacobian accumulates J from node coordinates x (node-major, dim per node)
// and the reference derivatives dn[r][a] at one point.
func (g *geometry) jacobian(x []float64, dn [][]float64, np int) {
	if g.J == nil {
		return
	}
	for d := 0; d < g.dim; d++ {
		for r := 0; r < g.refDim; r++ {
			var s float64
			for a := 0; a < np; a++ {
				s += x[a*g.dim+d] * dn[r][a]
			}
			g.J.Set(d, r, s)
		}
	}
}

// volume computes the determinant and inverse of a square Jacobian. A
// singular Jacobian leaves Det at zero.
func (g *geometry) volume() {
	g.Det = mat.Det(g.J)
	if !(g.Det > 0) {
		return
	}
	if err := g.Inv.Inverse(g.J); err != nil {
		var c mat.Condition
		if !errors.As(err, &c) || c > 1e15 {
			g.Det = 0
		}
	}
}

// facet computes the measure and unit outward normal of a facet.
func (g *geometry) facet() {
	var n r3.Vec
	switch g.dim {
	case 1:
		g.Det = 1
		return
	case 2:
		n = r3.Vec{X: g.J.At(1, 0), Y: -g.J.At(0, 0)}
	case 3:
		n = r3.Cross(
			r3.Vec{X: g.J.At(0, 0), Y: g.J.At(1, 0), Z: g.J.At(2, 0)},
			r3.Vec{X: g.J.At(0, 1), Y: g.J.At(1, 1), Z: g.J.At(2, 1)},
		)
	}
	g.Det = r3.Norm(n)
	g.Normal = [3]float64{}
	if g.Det > 0 {
		n = r3.Scale(1/g.Det, n)
		g.Normal = [3]float64{n.X, n.Y, n.Z}
	}
}
