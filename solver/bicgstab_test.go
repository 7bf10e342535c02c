package solver

import (
	"errors"
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/james-bowman/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func spd() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		4, 1, 0,
		1, 3, 1,
		0, 1, 2,
	})
}

func toCSR(a mat.Matrix) CSR {
	r, c := a.Dims()
	dok := sparse.NewDOK(r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := a.At(i, j); v != 0 {
				dok.Set(i, j, v)
			}
		}
	}
	return CSR{dok.ToCSR()}
}

func defaults() Config {
	var cfg Config
	cfg.SetDefault()
	return cfg
}

func TestBiCGStab_KnownSolution(t *testing.T) {
	b := []float64{6, 10, 8} // A [1 2 3]
	for _, op := range []Operator{Dense{spd()}, toCSR(spd())} {
		for _, jacobi := range []bool{true, false} {
			cfg := defaults()
			cfg.Jacobi = jacobi
			x := make([]float64, 3)
			res, err := BiCGStab(op, b, x, cfg)
			require.NoError(t, err)
			assert.True(t, res.Converged)
			assert.LessOrEqual(t, res.Residual, cfg.Tol)
			chk.Array(t, "x", 1e-9, x, []float64{1, 2, 3})
		}
	}
}

func TestBiCGStab_ZeroRHS(t *testing.T) {
	x := []float64{5, 5, 5}
	res, err := BiCGStab(Dense{spd()}, make([]float64, 3), x, defaults())
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, []float64{0, 0, 0}, x)
}

func TestBiCGStab_Singular(t *testing.T) {
	// b is outside the range of A
	a := mat.NewDense(2, 2, []float64{1, 1, 1, 1})
	cfg := defaults()
	cfg.MaxPasses = 3
	_, err := BiCGStab(Dense{a}, []float64{1, -1}, make([]float64, 2), cfg)
	var nc *NonConvergenceError
	require.True(t, errors.As(err, &nc), "got %v", err)
	assert.False(t, nc.Converged)
	assert.Equal(t, 3, nc.Passes)
	assert.InDelta(t, 1., nc.Residual, 1e-12)
}

func TestBiCGStab_Restart(t *testing.T) {
	n := 30
	a := mat.NewDense(n, n, nil)
	b := make([]float64, n)
	for i := 0; i < n; i++ {
		a.Set(i, i, 2+float64(i%3))
		if i > 0 {
			a.Set(i, i-1, -1)
		}
		if i < n-1 {
			a.Set(i, i+1, -0.5)
		}
		b[i] = 1
	}
	cfg := defaults()
	cfg.Restart = 2
	cfg.MaxPasses = 500
	x := make([]float64, n)
	res, err := BiCGStab(toCSR(a), b, x, cfg)
	require.NoError(t, err)
	assert.Greater(t, res.Passes, 1)

	ax := make([]float64, n)
	Dense{a}.MulVec(ax, x)
	chk.Array(t, "Ax", 1e-8, ax, b)
}

func TestBiCGStab_DimensionMismatch(t *testing.T) {
	_, err := BiCGStab(Dense{spd()}, []float64{1, 2}, make([]float64, 2), defaults())
	assert.Error(t, err)
}

func TestCSR_MulVecOverwrites(t *testing.T) {
	x := []float64{1, -2, 3}
	want := make([]float64, 3)
	Dense{spd()}.MulVec(want, x)

	got := []float64{99, 99, 99}
	toCSR(spd()).MulVec(got, x)
	chk.Array(t, "Ax", 1e-15, got, want)
	chk.Array(t, "Ax", 1e-15, got, []float64{2, -2, 4})
}

func TestCSR_Diagonal(t *testing.T) {
	d := make([]float64, 3)
	toCSR(spd()).Diagonal(d)
	assert.Equal(t, []float64{4, 3, 2}, d)
}
