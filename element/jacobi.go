package element

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// JacobiGQ returns the N+1 point Gauss-Jacobi rule for weight
// (1-x)^alpha (1+x)^beta on [-1,1], via the eigenvalues of the Jacobi matrix.
func JacobiGQ(alpha, beta float64, N int) (x, w []float64) {
	if N == 0 {
		return []float64{-(alpha - beta) / (alpha + beta + 2)}, []float64{gamma0(alpha, beta)}
	}
	n := N + 1
	J := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		h := 2*float64(i) + alpha + beta
		if h+2 != 0 && h != 0 {
			J.SetSym(i, i, (beta*beta-alpha*alpha)/(h*(h+2)))
		}
		if i < N {
			ip := float64(i + 1)
			J.SetSym(i, i+1, 2/(h+2)*math.Sqrt(
				ip*(ip+alpha+beta)*(ip+alpha)*(ip+beta)/((h+1)*(h+3))))
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(J, true) {
		panic("eigenvalue decomposition failed")
	}
	x = eig.Values(nil)
	var V mat.Dense
	eig.VectorsTo(&V)
	w = make([]float64, n)
	g := gamma0(alpha, beta)
	for i := range w {
		v := V.At(0, i)
		w[i] = v * v * g
	}
	return x, w
}

// JacobiGL returns the N+1 Gauss-Lobatto points: ±1 plus the zeros of
// P'_N^{alpha,beta}.
func JacobiGL(alpha, beta float64, N int) []float64 {
	switch N {
	case 0:
		return []float64{0}
	case 1:
		return []float64{-1, 1}
	}
	inner, _ := JacobiGQ(alpha+1, beta+1, N-2)
	x := make([]float64, N+1)
	x[0], x[N] = -1, 1
	copy(x[1:N], inner)
	return x
}

func gamma0(alpha, beta float64) float64 {
	ab1 := alpha + beta + 1
	return math.Pow(2, ab1) / ab1 * math.Gamma(alpha+1) * math.Gamma(beta+1) / math.Gamma(ab1)
}
