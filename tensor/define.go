package tensor

import (
	"fmt"
	"strconv"
	"sync/atomic"
)

var freshCounter atomic.Uint64

// fresh returns an index name that cannot collide with user indices.
func fresh() Index {
	return Index("_" + strconv.FormatUint(freshCounter.Add(1), 10))
}

// Tensor is a named tensor definition t_{idx} = body. Instantiating it with At
// renames the declared indices to the arguments and every bound index of the
// body to a fresh name.
type Tensor struct {
	Name    string
	Indices []Index
	Body    Expr
}

// Define checks that the free indices of body are exactly idx.
func Define(name string, idx []Index, body Expr) (*Tensor, error) {
	seen := map[Index]int{}
	for _, ix := range idx {
		if _, ok := ix.Fixed(); ok {
			return nil, &MalformedFormError{Form: name, Index: ix, Reason: "fixed component in definition indices"}
		}
		if seen[ix] > 0 {
			return nil, &MalformedFormError{Form: name, Index: ix, Reason: "repeated definition index"}
		}
		seen[ix] = 1
	}
	v, err := body.visible()
	if err != nil {
		if mf, ok := err.(*MalformedFormError); ok && mf.Form == "" {
			mf.Form = name
		}
		return nil, err
	}
	if ix, bad := mismatch(seen, freeOf(v)); bad {
		return nil, &MalformedFormError{Form: name, Index: ix,
			Reason: fmt.Sprintf("unmatched free index between %s_%v and %s", name, idx, body)}
	}
	return &Tensor{Name: name, Indices: append([]Index(nil), idx...), Body: body}, nil
}

// MustDefine is Define that panics on error; for package-level helpers.
func MustDefine(name string, idx []Index, body Expr) *Tensor {
	t, err := Define(name, idx, body)
	if err != nil {
		panic(err)
	}
	return t
}

// At instantiates the definition with the given indices.
func (t *Tensor) At(idx ...Index) Expr {
	if len(idx) != len(t.Indices) {
		return &invalid{err: &MalformedFormError{Form: t.Name,
			Reason: fmt.Sprintf("%s takes %d indices, got %d", t.Name, len(t.Indices), len(idx))}}
	}
	names := make(map[Index]Index, len(idx))
	for k, ix := range t.Indices {
		names[ix] = idx[k]
	}
	return rename(t.Body, names)
}

// rename substitutes indices; unmapped non-fixed indices get fresh names,
// consistently within one call.
func rename(e Expr, names map[Index]Index) Expr {
	sub := func(ix Index) Index {
		if _, ok := ix.Fixed(); ok {
			return ix
		}
		if to, ok := names[ix]; ok {
			return to
		}
		to := fresh()
		names[ix] = to
		return to
	}
	switch n := e.(type) {
	case *Ref:
		c := n.clone()
		for k := range c.Slots {
			c.Slots[k] = sub(c.Slots[k])
		}
		for k := range c.Deriv {
			c.Deriv[k] = sub(c.Deriv[k])
		}
		return c
	case *KroneckerDelta:
		return &KroneckerDelta{I: sub(n.I), J: sub(n.J)}
	case *NormalComp:
		return &NormalComp{I: sub(n.I)}
	case *Sum:
		terms := make([]Expr, len(n.Terms))
		for k, t := range n.Terms {
			terms[k] = rename(t, names)
		}
		return &Sum{Terms: terms}
	case *Product:
		factors := make([]Expr, len(n.Factors))
		for k, f := range n.Factors {
			factors[k] = rename(f, names)
		}
		return &Product{Factors: factors}
	case *Power:
		return &Power{Base: rename(n.Base, names), Exp: n.Exp}
	case *BilinearForm:
		return &BilinearForm{TestSide: rename(n.TestSide, names), TrialSide: rename(n.TrialSide, names)}
	}
	return e
}

// SymGrad defines the symmetric gradient ε_ij = (u_i,j + u_j,i)/2 of a vector
// field, of its test function when test is set.
func SymGrad(name string, u *Field, test bool) *Tensor {
	ref := u.At
	if test {
		ref = u.Test
	}
	return MustDefine(name, []Index{I, J},
		Scale(0.5, Add(ref(I).D(J), ref(J).D(I))))
}

// Trace returns t_kk for a rank-2 definition.
func Trace(t *Tensor) Expr {
	k := fresh()
	return t.At(k, k)
}
