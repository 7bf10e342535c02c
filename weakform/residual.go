package weakform

import (
	"sort"

	"github.com/notargets/FEMKernel/tensor"
)

// Term is the coefficient multiplying one test atom.
type Term struct {
	Test tensor.Atom
	Coef *tensor.Poly
}

// Residual is an expanded integrand written as Σ test_atom * coefficient.
type Residual struct {
	Name   string
	Target Target
	Dim    int
	Terms  []Term
}

// Canonicalize expands e and groups it by test atom. Every monomial must be
// linear in exactly one test atom.
func Canonicalize(name string, e tensor.Expr, dim int, target Target) (*Residual, error) {
	p, err := tensor.Expand(e, dim)
	if err != nil {
		return nil, named(name, err)
	}
	groups := map[string]*Term{}
	for _, m := range p.Terms() {
		var test *tensor.Atom
		for k, a := range m.Atoms {
			if err := checkAtom(name, a, target); err != nil {
				return nil, err
			}
			if !a.Test {
				continue
			}
			if test != nil || m.Exps[k] != 1 {
				return nil, &tensor.MalformedFormError{Form: name,
					Reason: "term " + m.String() + " is not linear in the test functions"}
			}
			a := a
			test = &a
		}
		if test == nil {
			return nil, &tensor.MalformedFormError{Form: name,
				Reason: "term " + m.String() + " has no test function"}
		}
		g, ok := groups[test.Key()]
		if !ok {
			g = &Term{Test: *test, Coef: tensor.NewPoly()}
			groups[test.Key()] = g
		}
		g.Coef = g.Coef.Add(tensor.FromMonomial(m.Without(*test)))
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	r := &Residual{Name: name, Target: target, Dim: dim}
	for _, k := range keys {
		if groups[k].Coef.IsZero() {
			continue
		}
		r.Terms = append(r.Terms, *groups[k])
	}
	return r, nil
}

func checkAtom(form string, a tensor.Atom, target Target) error {
	switch {
	case target == Boundary && a.Kind == tensor.FieldAtom && a.Deriv >= 0:
		return &tensor.MalformedFormError{Form: form,
			Reason: "spatial derivative " + a.String() + " in a boundary form"}
	case target == Domain && a.Kind == tensor.NormalAtom:
		return &tensor.MalformedFormError{Form: form,
			Reason: "facet normal used in a domain form"}
	}
	return nil
}

// Atoms returns every distinct non-test atom referenced by the residual.
func (r *Residual) Atoms() []tensor.Atom {
	all := tensor.NewPoly()
	for _, t := range r.Terms {
		all = all.Add(t.Coef)
	}
	return all.Atoms()
}

// Eval returns the pointwise residual component for each term.
func (r *Residual) Eval(value func(tensor.Atom) float64) []float64 {
	out := make([]float64, len(r.Terms))
	for k, t := range r.Terms {
		out[k] = t.Coef.Eval(value)
	}
	return out
}
