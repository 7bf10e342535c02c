// Package driver advances a problem in time with the θ-method, solving each
// step by Newton iterations on the assembled system.
package driver

import (
	"errors"
	"fmt"
	"math"

	"github.com/cpmech/gosl/io"

	"github.com/notargets/FEMKernel/assembly"
	"github.com/notargets/FEMKernel/problem"
)

// Status is the phase of the driver state machine.
type Status uint8

const (
	Idle Status = iota
	Assembling
	Solving
	Updating
	Converged
	Diverged
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Assembling:
		return "assembling"
	case Solving:
		return "solving"
	case Updating:
		return "updating"
	case Converged:
		return "converged"
	case Diverged:
		return "diverged"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

var (
	ErrStepLimit    = errors.New("step limit reached before the stopping criterion held")
	ErrStepTooSmall = errors.New("time step fell below the minimum")
)

// NewtonError reports a step whose residual did not meet the tolerance
// within the iteration bound.
type NewtonError struct {
	Step       int
	Time       float64
	Dt         float64
	Iterations int
	Residual   float64 // last max|R|
}

func (e *NewtonError) Error() string {
	return fmt.Sprintf("newton: step %d (t=%g, dt=%g) not converged after %d iterations, max|R| = %g",
		e.Step, e.Time, e.Dt, e.Iterations, e.Residual)
}

// Summary describes a finished run.
type Summary struct {
	Status           Status // Converged or Diverged
	Steps            int
	Retries          int
	NewtonIterations int
	LinearIterations int
	Time             float64
	Stopped          bool               // a stopping criterion held
	MaxRates         map[string]float64 // after the last committed step
}

type observer struct {
	o  Observer
	tr Transform
}

type Driver struct {
	ctx   *problem.Context
	asm   *assembly.Assembler
	cfg   *problem.Config
	dt    float64
	state Status

	observers []observer
	rateDOFs  map[string][]int
	summary   Summary

	// Displacement names the field moved by the Displaced transform.
	Displacement string
	// Notify, when set, is called on every status change.
	Notify func(Status)
}

// New checks the stopping criterion against the problem fields.
func New(ctx *problem.Context, asm *assembly.Assembler) (*Driver, error) {
	d := &Driver{ctx: ctx, asm: asm, cfg: ctx.Config, rateDOFs: map[string][]int{}}
	for _, f := range ctx.Fields {
		d.rateDOFs[f.Name] = ctx.FieldDOFs(f.Name)
		if f.Rank == 1 && d.Displacement == "" {
			d.Displacement = f.Name
		}
	}
	for name := range d.cfg.Stop.Rates {
		if _, ok := d.rateDOFs[name]; !ok {
			return nil, fmt.Errorf("stopping criterion names unknown field %s", name)
		}
	}
	return d, nil
}

// Observe registers an observer fed with snapshots under transform tr.
func (d *Driver) Observe(o Observer, tr Transform) {
	d.observers = append(d.observers, observer{o, tr})
}

// Status returns the current phase.
func (d *Driver) Status() Status { return d.state }

func (d *Driver) set(s Status) {
	d.state = s
	if d.Notify != nil {
		d.Notify(s)
	}
}

// MaxRates returns max |ẋ| per field at the current iterate.
func (d *Driver) MaxRates() map[string]float64 {
	out := make(map[string]float64, len(d.rateDOFs))
	xdot := d.ctx.State.Xdot
	for name, dofs := range d.rateDOFs {
		var m float64
		for _, i := range dofs {
			m = math.Max(m, math.Abs(xdot[i]))
		}
		out[name] = m
	}
	return out
}

// Run commits the initial state and advances until a stopping criterion
// holds. The summary is returned also on error.
func (d *Driver) Run() (*Summary, error) {
	d.ctx.State.Commit()
	d.dt = d.cfg.Step.Dt
	d.summary = Summary{Time: d.ctx.State.T}
	_, err := loop(d, d.cfg.Stop, d.cfg.Step.MaxSteps)
	d.summary.Time = d.ctx.State.T
	d.summary.MaxRates = d.MaxRates()
	switch {
	case err == nil:
		d.summary.Stopped = true
		d.summary.Status = Converged
	case errors.Is(err, ErrStepLimit):
		d.summary.Status = Converged
	default:
		d.summary.Status = Diverged
	}
	if d.cfg.Verbose {
		io.Pf("%d steps, %d retries, %d newton and %d linear iterations, t = %g\n", d.summary.Steps,
			d.summary.Retries, d.summary.NewtonIterations, d.summary.LinearIterations, d.summary.Time)
	}
	return &d.summary, err
}

// stepper is one committed step at a time, as seen by the outer loop.
type stepper interface {
	advance() error
	MaxRates() map[string]float64
	time() float64
}

func (d *Driver) time() float64 { return d.ctx.State.T }

// loop runs steps until the stop data holds after a committed step.
func loop(s stepper, stop problem.StopData, maxSteps int) (int, error) {
	for n := 1; n <= maxSteps; n++ {
		if err := s.advance(); err != nil {
			return n - 1, err
		}
		if done(stop, s.MaxRates(), s.time()) {
			return n, nil
		}
	}
	return maxSteps, ErrStepLimit
}

// done reports whether every rate is below its threshold, or the final
// time is reached.
func done(stop problem.StopData, rates map[string]float64, t float64) bool {
	if stop.Time > 0 && t >= stop.Time {
		return true
	}
	if len(stop.Rates) == 0 {
		return false
	}
	for name, th := range stop.Rates {
		if !(rates[name] < th) {
			return false
		}
	}
	return true
}
