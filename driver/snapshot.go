package driver

import (
	"fmt"
	"math"

	"github.com/notargets/FEMKernel/problem"
)

// Snapshot is the state of every control point after a committed step.
// Values and Rates hold [point][component]; a point without the field has
// a nil row.
type Snapshot struct {
	Step       int
	Time       float64
	Dt         float64
	Iterations int
	Transform  Transform
	Positions  [][]float64
	Values     map[string][][]float64
	Rates      map[string][][]float64
}

// Observer receives a snapshot after every committed step. An error stops
// the run.
type Observer interface {
	Observe(s *Snapshot) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(s *Snapshot) error

func (f ObserverFunc) Observe(s *Snapshot) error { return f(s) }

// Transform is an export-time rewrite of a snapshot.
type Transform uint8

const (
	// Identity exports positions, values and rates as they are.
	Identity Transform = iota
	// Displaced moves every position by the displacement field.
	Displaced
	// RateMagnitude replaces every rate by the Euclidean norm of its
	// components.
	RateMagnitude
)

func (tr Transform) String() string {
	switch tr {
	case Identity:
		return "identity"
	case Displaced:
		return "displaced"
	case RateMagnitude:
		return "rate-magnitude"
	}
	return fmt.Sprintf("Transform(%d)", uint8(tr))
}

// Apply returns a transformed copy of s; s is not modified. disp names the
// displacement field used by Displaced.
func (tr Transform) Apply(s *Snapshot, disp string) (*Snapshot, error) {
	out := *s
	out.Transform = tr
	switch tr {
	case Identity:
	case Displaced:
		u, ok := s.Values[disp]
		if !ok {
			return nil, fmt.Errorf("displaced export: no field %s", disp)
		}
		out.Positions = make([][]float64, len(s.Positions))
		for p, x := range s.Positions {
			out.Positions[p] = append([]float64(nil), x...)
			if u[p] == nil {
				continue
			}
			if len(u[p]) != len(x) {
				return nil, fmt.Errorf("displaced export: field %s has %d components in %d dimensions", disp, len(u[p]), len(x))
			}
			for d := range x {
				out.Positions[p][d] += u[p][d]
			}
		}
	case RateMagnitude:
		out.Rates = make(map[string][][]float64, len(s.Rates))
		for name, rows := range s.Rates {
			mag := make([][]float64, len(rows))
			for p, r := range rows {
				if r == nil {
					continue
				}
				var sum float64
				for _, v := range r {
					sum += v * v
				}
				mag[p] = []float64{math.Sqrt(sum)}
			}
			out.Rates[name] = mag
		}
	default:
		return nil, fmt.Errorf("unknown transform %s", tr)
	}
	return &out, nil
}

// snapshot collects the committed state of ctx.
func snapshot(ctx *problem.Context, step int, dt float64, iterations int) *Snapshot {
	m, st, dofs := ctx.Mesh, ctx.State, ctx.DOFs
	s := &Snapshot{
		Step:       step,
		Time:       st.T,
		Dt:         dt,
		Iterations: iterations,
		Positions:  make([][]float64, len(m.Points)),
		Values:     map[string][][]float64{},
		Rates:      map[string][][]float64{},
	}
	for p := range m.Points {
		s.Positions[p] = append([]float64(nil), m.Points[p].X...)
	}
	for _, f := range ctx.Fields {
		nc := f.Components(m.Dim)
		vals := make([][]float64, len(m.Points))
		rates := make([][]float64, len(m.Points))
		for p := range m.Points {
			first, ok := dofs.Index(p, f.Name, 0)
			if !ok {
				continue
			}
			vals[p] = append([]float64(nil), st.X[first:first+nc]...)
			rates[p] = append([]float64(nil), st.Xdot[first:first+nc]...)
		}
		s.Values[f.Name] = vals
		s.Rates[f.Name] = rates
	}
	return s
}
