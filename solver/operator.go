package solver

import (
	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// Operator is a square linear map with an accessible diagonal.
type Operator interface {
	Dims() (r, c int)
	MulVec(dst, x []float64) // dst = A x
	Diagonal(dst []float64)
}

// CSR adapts a compressed sparse row matrix.
type CSR struct {
	*sparse.CSR
}

func (a CSR) MulVec(dst, x []float64) {
	for i := range dst {
		dst[i] = 0
	}
	a.MulVecTo(dst, false, x)
}

func (a CSR) Diagonal(dst []float64) {
	for i := range dst {
		dst[i] = 0
		a.DoRowNonZero(i, func(i, j int, v float64) {
			if j == i {
				dst[i] += v
			}
		})
	}
}

// Dense adapts a gonum dense matrix.
type Dense struct {
	*mat.Dense
}

func (a Dense) MulVec(dst, x []float64) {
	r, _ := a.Dims()
	out := mat.NewVecDense(r, dst)
	out.MulVec(a.Dense, mat.NewVecDense(len(x), x))
}

func (a Dense) Diagonal(dst []float64) {
	for i := range dst {
		dst[i] = a.At(i, i)
	}
}
