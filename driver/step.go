package driver

import (
	"errors"
	"fmt"
	"math"

	"github.com/cpmech/gosl/io"
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/FEMKernel/solver"
)

// advance commits one step. A failed attempt restores the committed state
// and retries with a shrunk step until MaxRetries or DtMin is hit.
func (d *Driver) advance() error {
	st, pol := d.ctx.State, d.cfg.Step
	step := d.summary.Steps + 1
	for retry := 0; ; retry++ {
		dt := d.dt
		last := false
		if d.cfg.Stop.Time > 0 && st.Told+dt >= d.cfg.Stop.Time {
			dt, last = d.cfg.Stop.Time-st.Told, true
		}
		iters, err := d.attempt(step, dt, last)
		if err == nil {
			st.Commit()
			d.summary.Steps = step
			d.summary.NewtonIterations += iters
			d.set(Converged)
			d.set(Idle)
			if !last {
				d.dt = math.Min(d.dt*pol.Grow, pol.Dt)
			}
			if d.cfg.Verbose {
				io.Pf("step %4d  t = %-12g dt = %-12g it = %d\n", step, st.T, dt, iters)
			}
			return d.publish(step, dt, iters)
		}

		st.Restore()
		d.set(Diverged)
		d.set(Idle)
		if !recoverable(err) {
			return err
		}
		d.dt = dt * pol.Shrink
		if d.cfg.Verbose {
			io.Pfred("step %4d  attempt %d failed: %v\n", step, retry+1, err)
		}
		switch {
		case retry+1 > pol.MaxRetries:
			return fmt.Errorf("step %d: %d retries exhausted: %w", step, pol.MaxRetries, err)
		case d.dt < pol.DtMin:
			return fmt.Errorf("step %d: %w (dt = %g): %w", step, ErrStepTooSmall, d.dt, err)
		}
		d.summary.Retries++
	}
}

// recoverable errors are retried with a smaller step.
func recoverable(err error) bool {
	var ne *NewtonError
	var nc *solver.NonConvergenceError
	return errors.As(err, &ne) || errors.As(err, &nc)
}

// attempt runs the Newton iterations of one step of size dt and returns the
// number of linear solves.
func (d *Driver) attempt(step int, dt float64, last bool) (int, error) {
	st, cfg := d.ctx.State, d.cfg
	th := cfg.Theta
	beta1, beta2 := 1/(th*dt), (1-th)/th

	st.T = st.Told + dt
	if last {
		st.T = cfg.Stop.Time
	}
	d.ctx.ApplySchedules(st.T)
	st.Predict(beta1, beta2)

	dx := make([]float64, len(st.X))
	b := make([]float64, len(st.X))
	var r0 float64
	for it := 0; ; it++ {
		d.set(Assembling)
		sys, err := d.asm.Assemble(beta1)
		if err != nil {
			return it, fmt.Errorf("step %d: %w", step, err)
		}
		rmax := floats.Norm(sys.Residual, math.Inf(1))
		if it == 0 {
			r0 = rmax
		}
		if rmax <= cfg.Newton.FbMin || (it > 0 && rmax <= cfg.Newton.FbTol*r0) {
			return it, nil
		}
		if it == cfg.Newton.MaxIt {
			return it, &NewtonError{Step: step, Time: st.T, Dt: dt, Iterations: it, Residual: rmax}
		}

		d.set(Solving)
		floats.ScaleTo(b, -1, sys.Residual)
		for i := range dx {
			dx[i] = 0
		}
		res, err := solver.BiCGStab(solver.CSR{CSR: sys.Tangent}, b, dx, cfg.Linear)
		d.summary.LinearIterations += res.Iterations
		if err != nil {
			return it, fmt.Errorf("step %d iteration %d: %w", step, it+1, err)
		}

		d.set(Updating)
		floats.Add(st.X, dx)
		st.Rates(beta1)
	}
}

// publish hands the committed state to the observers.
func (d *Driver) publish(step int, dt float64, iters int) error {
	if len(d.observers) == 0 {
		return nil
	}
	raw := snapshot(d.ctx, step, dt, iters)
	for _, ob := range d.observers {
		s, err := ob.tr.Apply(raw, d.Displacement)
		if err != nil {
			return err
		}
		if err = ob.o.Observe(s); err != nil {
			return fmt.Errorf("step %d observer: %w", step, err)
		}
	}
	return nil
}
