package element

import (
	"fmt"

	"gonum.org/v1/gonum/integrate/quad"
)

// Rule is a quadrature rule on a reference cell.
type Rule struct {
	Points  [][]float64
	Weights []float64
}

func (r Rule) Len() int { return len(r.Weights) }

// GaussRule returns an n-point-per-direction Gauss-Legendre rule for tensor
// cells. Simplices accept n=1 (centroid) or n=2 (degree-2 exact).
func GaussRule(s Scheme, n int) (Rule, error) {
	if n < 1 {
		return Rule{}, fmt.Errorf("quadrature needs at least one point, got %d", n)
	}
	p := s.Properties()
	switch p.Type {
	case Point:
		return Rule{Points: [][]float64{{}}, Weights: []float64{1}}, nil
	case Line, Rectangle, Hex:
		return tensorRule(int(p.Dimensions), n), nil
	case Tri:
		switch n {
		case 1:
			return Rule{Points: [][]float64{{1. / 3, 1. / 3}}, Weights: []float64{0.5}}, nil
		case 2:
			return Rule{
				Points:  [][]float64{{1. / 6, 1. / 6}, {2. / 3, 1. / 6}, {1. / 6, 2. / 3}},
				Weights: []float64{1. / 6, 1. / 6, 1. / 6},
			}, nil
		}
	case Tet:
		switch n {
		case 1:
			return Rule{Points: [][]float64{{.25, .25, .25}}, Weights: []float64{1. / 6}}, nil
		case 2:
			a, b := 0.5854101966249685, 0.1381966011250105
			return Rule{
				Points:  [][]float64{{b, b, b}, {a, b, b}, {b, a, b}, {b, b, a}},
				Weights: []float64{1. / 24, 1. / 24, 1. / 24, 1. / 24},
			}, nil
		}
	}
	return Rule{}, fmt.Errorf("no %d-point rule for %s", n, p.Type)
}

// DefaultRule integrates the product of two shape functions exactly on
// affine cells.
func DefaultRule(s Scheme) Rule {
	p := s.Properties()
	n := p.Order + 1
	if p.Type == Tri || p.Type == Tet {
		n = 2
	}
	r, err := GaussRule(s, n)
	if err != nil {
		panic(err)
	}
	return r
}

func tensorRule(dim, n int) Rule {
	x := make([]float64, n)
	w := make([]float64, n)
	quad.Legendre{}.FixedLocations(x, w, -1, 1)
	total := 1
	for d := 0; d < dim; d++ {
		total *= n
	}
	r := Rule{Points: newRows(total, dim), Weights: make([]float64, total)}
	for q := 0; q < total; q++ {
		m, wt := q, 1.
		for d := 0; d < dim; d++ {
			r.Points[q][d] = x[m%n]
			wt *= w[m%n]
			m /= n
		}
		r.Weights[q] = wt
	}
	return r
}
