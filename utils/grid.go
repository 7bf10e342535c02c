package utils

import (
	"fmt"

	"github.com/notargets/FEMKernel/element"
)

// Grid builds a structured grid of Lagrange cells of the given order over
// the box [0, L[0]] x ... with N[d] cells along axis d. Cell nodes sit at
// the GLL positions of the scheme and are shared between neighbours.
func Grid(N []int, L []float64, order int) (pos [][]float64, elements [][]int, s element.Scheme) {
	dim := len(N)
	if dim < 1 || dim > 3 || len(L) != dim {
		panic(fmt.Sprintf("grid needs 1 to 3 axes with matching lengths, got %d and %d", len(N), len(L)))
	}
	if order < 1 {
		panic(fmt.Sprintf("grid order %d must be positive", order))
	}
	geom := []element.ElementGeometry{element.Line, element.Rectangle, element.Hex}[dim-1]
	s = element.NewLagrange(geom, order)
	r := element.JacobiGL(0, 0, order)

	// 1D coordinates and point strides
	coords := make([][]float64, dim)
	stride := make([]int, dim)
	total := 1
	for d := 0; d < dim; d++ {
		if N[d] < 1 {
			panic(fmt.Sprintf("grid axis %d has %d cells", d, N[d]))
		}
		h := L[d] / float64(N[d])
		coords[d] = make([]float64, N[d]*order+1)
		for e := 0; e < N[d]; e++ {
			for i := 0; i <= order; i++ {
				coords[d][e*order+i] = (float64(e) + (r[i]+1)/2) * h
			}
		}
		stride[d] = total
		total *= len(coords[d])
	}

	pos = make([][]float64, total)
	for p := range pos {
		pos[p] = make([]float64, dim)
		m := p
		for d := 0; d < dim; d++ {
			pos[p][d] = coords[d][m%len(coords[d])]
			m /= len(coords[d])
		}
	}

	np := s.Properties().Np
	ncells := 1
	for _, n := range N {
		ncells *= n
	}
	elements = make([][]int, ncells)
	for c := range elements {
		cell := make([]int, dim)
		m := c
		for d := 0; d < dim; d++ {
			cell[d] = m % N[d]
			m /= N[d]
		}
		el := make([]int, np)
		for a := 0; a < np; a++ {
			k, p := a, 0
			for d := 0; d < dim; d++ {
				p += (cell[d]*order + k%(order+1)) * stride[d]
				k /= order + 1
			}
			el[a] = p
		}
		elements[c] = el
	}
	return
}

// Brick is Grid in three dimensions.
func Brick(nx, ny, nz int, lx, ly, lz float64, order int) ([][]float64, [][]int, element.Scheme) {
	return Grid([]int{nx, ny, nz}, []float64{lx, ly, lz}, order)
}
