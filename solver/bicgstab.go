// Package solver solves the linear systems of one Newton iteration with a
// restarted, Jacobi-preconditioned BiCGStab method.
package solver

import (
	"fmt"
	"math"

	"github.com/cpmech/gosl/io"
	"gonum.org/v1/gonum/floats"
)

// Config bounds the iteration. Tol is relative to |b|.
type Config struct {
	Tol       float64 `json:"tol"`
	MaxIter   int     `json:"maxit"`     // iterations over all passes
	Restart   int     `json:"restart"`   // iterations per pass
	MaxPasses int     `json:"maxpasses"` // restarts allowed
	Jacobi    bool    `json:"jacobi"`    // right diagonal preconditioning
	Verbose   bool    `json:"verbose"`
}

// SetDefault sets default values
func (o *Config) SetDefault() {
	o.Tol = 1e-10
	o.MaxIter = 2000
	o.Restart = 200
	o.MaxPasses = 20
	o.Jacobi = true
}

// Result describes a finished solve
type Result struct {
	Iterations int
	Passes     int
	Residual   float64 // final |b - A x| / |b|
	Converged  bool
}

// NonConvergenceError reports an exhausted iteration or pass budget.
type NonConvergenceError struct {
	Result
	Tol float64
}

func (e *NonConvergenceError) Error() string {
	return fmt.Sprintf("bicgstab: no convergence after %d iterations in %d passes (residual %g, tolerance %g)",
		e.Iterations, e.Passes, e.Residual, e.Tol)
}

// breakdown is the relative size below which an inner product is treated as zero
const breakdown = 1e-30

// BiCGStab solves A x = b starting from x. A pass ends at convergence,
// after Restart iterations or at a breakdown; each pass restarts from the
// true residual. Convergence is always confirmed on the true residual.
func BiCGStab(op Operator, b, x []float64, cfg Config) (Result, error) {
	n := len(b)
	if r, c := op.Dims(); r != n || c != n || len(x) != n {
		return Result{}, fmt.Errorf("bicgstab: operator is %dx%d, b has %d and x %d entries", r, c, n, len(x))
	}
	var res Result
	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		for i := range x {
			x[i] = 0
		}
		res.Converged = true
		return res, nil
	}

	minv := make([]float64, n)
	for i := range minv {
		minv[i] = 1
	}
	if cfg.Jacobi {
		op.Diagonal(minv)
		for i, d := range minv {
			if d == 0 {
				minv[i] = 1
			} else {
				minv[i] = 1 / d
			}
		}
	}
	precond := func(dst, src []float64) { floats.MulTo(dst, minv, src) }

	r := make([]float64, n)
	rhat := make([]float64, n)
	p := make([]float64, n)
	v := make([]float64, n)
	s := make([]float64, n)
	t := make([]float64, n)
	phat := make([]float64, n)
	shat := make([]float64, n)

	trueResidual := func() float64 {
		op.MulVec(r, x)
		floats.SubTo(r, b, r)
		return floats.Norm(r, 2) / bnorm
	}

	for res.Passes < cfg.MaxPasses && res.Iterations < cfg.MaxIter {
		res.Residual = trueResidual()
		if res.Residual <= cfg.Tol {
			res.Converged = true
			return res, nil
		}
		res.Passes++
		if cfg.Verbose {
			io.Pforan("bicgstab: pass %d, residual %23.15e\n", res.Passes, res.Residual)
		}
		copy(rhat, r)
		for i := range p {
			p[i], v[i] = 0, 0
		}
		rho, alpha, omega := 1.0, 1.0, 1.0
		for k := 0; k < cfg.Restart && res.Iterations < cfg.MaxIter; k++ {
			rhoNew := floats.Dot(rhat, r)
			if math.Abs(rhoNew) <= breakdown*floats.Norm(rhat, 2)*floats.Norm(r, 2) {
				break
			}
			beta := (rhoNew / rho) * (alpha / omega)
			for i := range p {
				p[i] = r[i] + beta*(p[i]-omega*v[i])
			}
			precond(phat, p)
			op.MulVec(v, phat)
			den := floats.Dot(rhat, v)
			if math.Abs(den) <= breakdown*floats.Norm(rhat, 2)*floats.Norm(v, 2) {
				break
			}
			alpha = rhoNew / den
			floats.AddScaledTo(s, r, -alpha, v)
			res.Iterations++
			if floats.Norm(s, 2)/bnorm <= cfg.Tol {
				floats.AddScaled(x, alpha, phat)
				break
			}
			precond(shat, s)
			op.MulVec(t, shat)
			tt := floats.Dot(t, t)
			if tt == 0 {
				floats.AddScaled(x, alpha, phat)
				break
			}
			omega = floats.Dot(t, s) / tt
			floats.AddScaled(x, alpha, phat)
			floats.AddScaled(x, omega, shat)
			floats.AddScaledTo(r, s, -omega, t)
			rn := floats.Norm(r, 2) / bnorm
			if cfg.Verbose {
				io.Pf("%6d%23.15e\n", res.Iterations, rn)
			}
			if rn <= cfg.Tol || omega == 0 {
				break
			}
			rho = rhoNew
		}
	}

	res.Residual = trueResidual()
	if res.Residual <= cfg.Tol {
		res.Converged = true
		return res, nil
	}
	if cfg.Verbose {
		io.Pfred("bicgstab: residual %g after %d iterations\n", res.Residual, res.Iterations)
	}
	return res, &NonConvergenceError{Result: res, Tol: cfg.Tol}
}
