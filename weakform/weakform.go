// Package weakform turns variational statements into canonical residuals
// grouped by test function and derives their tangents.
package weakform

import (
	"errors"
	"fmt"
	"sort"

	"github.com/notargets/FEMKernel/tensor"
)

// Target selects where a form is integrated.
type Target uint8

const (
	Domain Target = iota
	Boundary
)

func (t Target) String() string {
	if t == Boundary {
		return "boundary"
	}
	return "domain"
}

// WeakForm is one domain integrand plus boundary integrands keyed by region.
type WeakForm struct {
	Name     string
	Domain   tensor.Expr
	Boundary map[string]tensor.Expr
}

// New creates a weak form with the given domain integrand.
func New(name string, domain tensor.Expr) *WeakForm {
	return &WeakForm{Name: name, Domain: domain, Boundary: map[string]tensor.Expr{}}
}

// OnBoundary adds (or replaces) the integrand of a boundary region.
func (w *WeakForm) OnBoundary(region string, e tensor.Expr) *WeakForm {
	w.Boundary[region] = e
	return w
}

// Regions returns the boundary region names in sorted order.
func (w *WeakForm) Regions() []string {
	out := make([]string, 0, len(w.Boundary))
	for r := range w.Boundary {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Pair is a canonical residual with its tangent.
type Pair struct {
	Residual *Residual
	Tangent  *Tangent
}

// Compiled holds the linearized domain form and boundary forms.
type Compiled struct {
	Name     string
	Dim      int
	Domain   Pair
	Boundary map[string]Pair
}

// Compile canonicalises and linearizes every integrand of the form. The first
// malformed integrand stops compilation.
func (w *WeakForm) Compile(dim int) (*Compiled, error) {
	if w.Domain == nil {
		return nil, fmt.Errorf("weak form %s has no domain integrand", w.Name)
	}
	out := &Compiled{Name: w.Name, Dim: dim, Boundary: map[string]Pair{}}
	res, err := Canonicalize(w.Name, w.Domain, dim, Domain)
	if err != nil {
		return nil, err
	}
	out.Domain = Pair{Residual: res, Tangent: Linearize(res)}
	for _, region := range w.Regions() {
		res, err := Canonicalize(w.Name+"/"+region, w.Boundary[region], dim, Boundary)
		if err != nil {
			return nil, err
		}
		out.Boundary[region] = Pair{Residual: res, Tangent: Linearize(res)}
	}
	return out, nil
}

func named(form string, err error) error {
	var mf *tensor.MalformedFormError
	if errors.As(err, &mf) && mf.Form == "" {
		mf.Form = form
	}
	return err
}
