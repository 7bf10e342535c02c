package problem

import (
	"fmt"
	"math"

	"github.com/cpmech/gosl/utl"

	"github.com/notargets/FEMKernel/mesh"
)

// TimeFunc is a scalar function of time.
type TimeFunc func(t float64) float64

// timeFuncs lists the known kinds with their required parameters.
var timeFuncs = map[string][]string{
	"cte": {"c"},
	"rmp": {"ca", "cb", "ta", "tb"},
	"lin": {"m", "ts"},
	"sin": {"a", "b", "c"},
}

// NewTimeFunc builds a time function by kind:
//
//	cte: c
//	rmp: ca before ta, cb after tb, linear in between
//	lin: m·(t - ts)
//	sin: a·sin(b·t) + c
func NewTimeFunc(kind string, prms utl.Params) (TimeFunc, error) {
	names, ok := timeFuncs[kind]
	if !ok {
		return nil, fmt.Errorf("unknown time function %q", kind)
	}
	v, found := prms.GetValues(names)
	for i, f := range found {
		if !f {
			return nil, fmt.Errorf("time function %q needs parameter %q", kind, names[i])
		}
	}
	switch kind {
	case "cte":
		c := v[0]
		return func(float64) float64 { return c }, nil
	case "rmp":
		ca, cb, ta, tb := v[0], v[1], v[2], v[3]
		if tb <= ta {
			return nil, fmt.Errorf("time function rmp needs ta < tb, got %g and %g", ta, tb)
		}
		return func(t float64) float64 {
			switch {
			case t <= ta:
				return ca
			case t >= tb:
				return cb
			}
			return ca + (cb-ca)*(t-ta)/(tb-ta)
		}, nil
	case "lin":
		m, ts := v[0], v[1]
		return func(t float64) float64 { return m * (t - ts) }, nil
	}
	a, b, c := v[0], v[1], v[2]
	return func(t float64) float64 { return a*math.Sin(b*t) + c }, nil
}

// Schedule drives one external field component at a set of points with a
// function of time.
type Schedule struct {
	Field  string
	Comp   int
	Points []int
	Fcn    TimeFunc
}

// NewSchedule builds the time function from its kind and parameters,
// e.g. "cte" with c, or "rmp" with ca, cb, ta, tb.
func NewSchedule(field string, comp int, points []int, kind string, prms utl.Params) (*Schedule, error) {
	fcn, err := NewTimeFunc(kind, prms)
	if err != nil {
		return nil, fmt.Errorf("schedule of %s: %w", field, err)
	}
	return &Schedule{Field: field, Comp: comp, Points: points, Fcn: fcn}, nil
}

// Apply writes the value at time t into the external slots.
func (s *Schedule) Apply(m *mesh.Mesh, t float64) {
	v := s.Fcn(t)
	for _, p := range s.Points {
		m.SetExternal(p, s.Field, s.Comp, v)
	}
}
