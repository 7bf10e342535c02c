// Package kernel lowers canonical residual/tangent pairs into a
// backend-agnostic description of an element kernel and evaluates it.
package kernel

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/FEMKernel/element"
	"github.com/notargets/FEMKernel/tensor"
	"github.com/notargets/FEMKernel/weakform"
)

var ErrUnknownParam = errors.New("unknown parameter")

// Source says where an interpolated quantity comes from.
type Source uint8

const (
	Values Source = iota
	Rates
	Externals
	Normals
)

// Slot is one quantity interpolated (or computed) at every quadrature point.
type Slot struct {
	Source Source
	Comp   int // local component (field offset included), or normal direction
	Deriv  int // physical direction for Values and Rates, -1 otherwise
	Atom   tensor.Atom
}

// Term is Coef * Π slot[Slots[k]]^Exps[k].
type Term struct {
	Coef  float64
	Slots []int
	Exps  []int
}

// Program is a folded polynomial over slots.
type Program []Term

func (p Program) Eval(v []float64) float64 {
	var sum float64
	for _, t := range p {
		x := t.Coef
		for k, s := range t.Slots {
			for e := 0; e < t.Exps[k]; e++ {
				x *= v[s]
			}
		}
		sum += x
	}
	return sum
}

// ResidualOp adds ∫ coef * shape(Deriv) into the rows of component Comp.
type ResidualOp struct {
	Comp  int
	Deriv int
	Coef  Program
}

// TangentOp adds ∫ coef * testShape * trialShape into the (TestComp,
// TrialComp) block, scaled by the time weight when TimeWeighted.
type TangentOp struct {
	TestComp, TestDeriv   int
	TrialComp, TrialDeriv int
	TimeWeighted          bool
	Coef                  Program
}

// Kernel is the compiled description consumed by backends.
type Kernel struct {
	Name    string
	Target  weakform.Target
	Layout  Layout
	Scheme  element.Scheme
	Np      int
	RefDim  int
	Nq      int
	Weights []float64
	N       *mat.Dense   // [Nq x Np] shape values
	DN      []*mat.Dense // [RefDim][Nq x Np] reference derivatives

	Slots    []Slot
	Residual []ResidualOp
	Tangent  []TangentOp
}

// NDOF is the number of local unknowns of one cell.
func (k *Kernel) NDOF() int { return k.Np * k.Layout.NComp }

// Compile binds params, resolves every atom against the layout and tabulates
// the scheme at the rule's points.
func Compile(res *weakform.Residual, tan *weakform.Tangent, layout Layout,
	s element.Scheme, rule element.Rule, params map[string]float64) (*Kernel, error) {
	p := s.Properties()
	refDim := int(p.Dimensions)
	switch {
	case res.Dim != layout.Dim:
		return nil, fmt.Errorf("kernel %s: form expanded in %d dimensions, layout has %d", res.Name, res.Dim, layout.Dim)
	case res.Target == weakform.Domain && refDim != layout.Dim:
		return nil, fmt.Errorf("kernel %s: domain form needs a %d-dimensional cell, got %s", res.Name, layout.Dim, p.Name)
	case res.Target == weakform.Boundary && refDim != layout.Dim-1:
		return nil, fmt.Errorf("kernel %s: boundary form needs a %d-dimensional facet, got %s", res.Name, layout.Dim-1, p.Name)
	case rule.Len() == 0:
		return nil, fmt.Errorf("kernel %s: empty quadrature rule", res.Name)
	}

	c := &compiler{layout: layout, params: params, index: map[string]int{}, name: res.Name}
	k := &Kernel{
		Name:    res.Name,
		Target:  res.Target,
		Layout:  layout,
		Scheme:  s,
		Np:      p.Np,
		RefDim:  refDim,
		Nq:      rule.Len(),
		Weights: append([]float64(nil), rule.Weights...),
	}
	k.N, k.DN = element.Tabulate(s, rule.Points)

	// slots are numbered in canonical atom order so that the IR is deterministic
	var atoms []tensor.Atom
	for _, t := range res.Terms {
		atoms = append(atoms, t.Coef.Atoms()...)
	}
	if tan != nil {
		for _, t := range tan.Terms {
			atoms = append(atoms, t.Coef.Atoms()...)
		}
	}
	sort.Slice(atoms, func(i, j int) bool { return atoms[i].Key() < atoms[j].Key() })
	for _, a := range atoms {
		if a.Kind == tensor.ParamAtom {
			continue
		}
		if _, err := c.slot(a); err != nil {
			return nil, err
		}
	}
	k.Slots = c.slots

	for _, t := range res.Terms {
		comp, err := c.unknown(t.Test)
		if err != nil {
			return nil, err
		}
		prog, err := c.program(t.Coef)
		if err != nil {
			return nil, err
		}
		if len(prog) == 0 {
			continue
		}
		k.Residual = append(k.Residual, ResidualOp{Comp: comp, Deriv: t.Test.Deriv, Coef: prog})
	}
	if tan == nil {
		return k, nil
	}
	for _, t := range tan.Terms {
		tc, err := c.unknown(t.Test)
		if err != nil {
			return nil, err
		}
		bc, err := c.unknown(t.Trial)
		if err != nil {
			return nil, err
		}
		prog, err := c.program(t.Coef)
		if err != nil {
			return nil, err
		}
		if len(prog) == 0 {
			continue
		}
		k.Tangent = append(k.Tangent, TangentOp{
			TestComp: tc, TestDeriv: t.Test.Deriv,
			TrialComp: bc, TrialDeriv: t.Trial.Deriv,
			TimeWeighted: t.TimeWeighted,
			Coef:         prog,
		})
	}
	return k, nil
}

type compiler struct {
	name   string
	layout Layout
	params map[string]float64
	index  map[string]int
	slots  []Slot
}

func (c *compiler) field(a tensor.Atom) (FieldSlot, error) {
	f, ok := c.layout.Find(a.Name, a.External)
	if !ok {
		kind := "internal"
		if a.External {
			kind = "external"
		}
		return f, fmt.Errorf("kernel %s: %s field %s is not in the layout", c.name, kind, a.Name)
	}
	if a.Comp >= f.NComp {
		return f, fmt.Errorf("kernel %s: component %d of %s out of range", c.name, a.Comp, a.Name)
	}
	return f, nil
}

// unknown maps a test or trial atom to its local component.
func (c *compiler) unknown(a tensor.Atom) (int, error) {
	if a.External {
		return 0, fmt.Errorf("kernel %s: external field %s cannot be an unknown", c.name, a.Name)
	}
	f, err := c.field(a)
	if err != nil {
		return 0, err
	}
	return f.Offset + a.Comp, nil
}

func (c *compiler) slot(a tensor.Atom) (int, error) {
	a.Test = false
	if i, ok := c.index[a.Key()]; ok {
		return i, nil
	}
	s := Slot{Atom: a, Deriv: -1}
	switch {
	case a.Kind == tensor.NormalAtom:
		if c.layout.Dim < 2 {
			return 0, fmt.Errorf("kernel %s: facet normals need at least two dimensions", c.name)
		}
		s.Source, s.Comp = Normals, a.Comp
	case a.External:
		f, err := c.field(a)
		if err != nil {
			return 0, err
		}
		s.Source, s.Comp = Externals, f.Offset+a.Comp
	default:
		f, err := c.field(a)
		if err != nil {
			return 0, err
		}
		s.Source, s.Comp, s.Deriv = Values, f.Offset+a.Comp, a.Deriv
		if a.Rate {
			s.Source = Rates
		}
	}
	c.index[a.Key()] = len(c.slots)
	c.slots = append(c.slots, s)
	return len(c.slots) - 1, nil
}

func (c *compiler) program(p *tensor.Poly) (Program, error) {
	var missing error
	folded := p.Fold(func(a tensor.Atom) (float64, bool) {
		if a.Kind != tensor.ParamAtom {
			return 0, false
		}
		v, ok := c.params[a.Name]
		if !ok && missing == nil {
			missing = fmt.Errorf("kernel %s: %w %q", c.name, ErrUnknownParam, a.Name)
		}
		return v, ok
	})
	if missing != nil {
		return nil, missing
	}
	var prog Program
	for _, m := range folded.Terms() {
		t := Term{Coef: m.Coef}
		for k, a := range m.Atoms {
			i, err := c.slot(a)
			if err != nil {
				return nil, err
			}
			t.Slots = append(t.Slots, i)
			t.Exps = append(t.Exps, m.Exps[k])
		}
		prog = append(prog, t)
	}
	return prog, nil
}
