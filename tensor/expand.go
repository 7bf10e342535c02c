package tensor

// Expand sums every repeated index over 0..dim-1, enumerates all tensor
// components and returns the canonical polynomial of a scalar expression.
func Expand(e Expr, dim int) (*Poly, error) {
	if dim < 1 || dim > 3 {
		return nil, malformed("", "spatial dimension %d out of range", dim)
	}
	v, err := e.visible()
	if err != nil {
		return nil, err
	}
	if free := sortedIndices(freeOf(v)); len(free) > 0 {
		return nil, malformed(free[0], "free index %s left in scalar expression %s", free[0], e)
	}
	x := &expander{dim: dim}
	return x.expand(e, map[Index]int{})
}

type expander struct {
	dim int
}

// expand sums over the indices contracted at e that the enclosing scopes
// have not already bound, then evaluates the node for each assignment.
func (x *expander) expand(e Expr, env map[Index]int) (*Poly, error) {
	v, err := e.visible()
	if err != nil {
		return nil, err
	}
	var summed []Index
	for _, ix := range sortedIndices(v) {
		if _, bound := env[ix]; bound {
			continue
		}
		if v[ix] == 2 {
			summed = append(summed, ix)
			continue
		}
		return nil, malformed(ix, "index %s is not bound in %s", ix, e)
	}
	if len(summed) == 0 {
		return x.node(e, env)
	}
	total := NewPoly()
	inner := make(map[Index]int, len(env)+len(summed))
	for k, val := range env {
		inner[k] = val
	}
	var walk func(n int) error
	walk = func(n int) error {
		if n == len(summed) {
			p, err := x.node(e, inner)
			if err != nil {
				return err
			}
			total = total.Add(p)
			return nil
		}
		for c := 0; c < x.dim; c++ {
			inner[summed[n]] = c
			if err := walk(n + 1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(0); err != nil {
		return nil, err
	}
	return total, nil
}

func (x *expander) node(e Expr, env map[Index]int) (*Poly, error) {
	switch n := e.(type) {
	case *Number:
		return Constant(n.Value), nil
	case *Parameter:
		return FromAtom(Atom{Kind: ParamAtom, Name: n.Name, Deriv: -1}), nil
	case *KroneckerDelta:
		i, err := x.resolve(n.I, env)
		if err != nil {
			return nil, err
		}
		j, err := x.resolve(n.J, env)
		if err != nil {
			return nil, err
		}
		if i == j {
			return Constant(1), nil
		}
		return NewPoly(), nil
	case *NormalComp:
		i, err := x.resolve(n.I, env)
		if err != nil {
			return nil, err
		}
		return FromAtom(Atom{Kind: NormalAtom, Comp: i, Deriv: -1}), nil
	case *Ref:
		return x.ref(n, env)
	case *Sum:
		out := NewPoly()
		for _, t := range n.Terms {
			p, err := x.scoped(t, env)
			if err != nil {
				return nil, err
			}
			out = out.Add(p)
		}
		return out, nil
	case *Product:
		return x.product(n.Factors, env)
	case *BilinearForm:
		return x.product([]Expr{n.TestSide, n.TrialSide}, env)
	case *Power:
		p, err := x.scoped(n.Base, env)
		if err != nil {
			return nil, err
		}
		return p.Pow(n.Exp), nil
	case *invalid:
		return nil, n.err
	}
	return nil, malformed("", "unsupported expression node %T", e)
}

// scoped expands e in a fresh summation scope: indices contracted inside e
// shadow any outer binding of the same name.
func (x *expander) scoped(e Expr, env map[Index]int) (*Poly, error) {
	v, err := e.visible()
	if err != nil {
		return nil, err
	}
	inner := make(map[Index]int, len(env))
	for k, val := range env {
		if v[k] == 2 {
			continue
		}
		inner[k] = val
	}
	return x.expand(e, inner)
}

func (x *expander) product(factors []Expr, env map[Index]int) (*Poly, error) {
	out := Constant(1)
	for _, f := range factors {
		p, err := x.expand(f, env)
		if err != nil {
			return nil, err
		}
		out = out.Mul(p)
		if out.IsZero() {
			break
		}
	}
	return out, nil
}

func (x *expander) ref(r *Ref, env map[Index]int) (*Poly, error) {
	comps := make([]int, len(r.Slots))
	for k, ix := range r.Slots {
		c, err := x.resolve(ix, env)
		if err != nil {
			return nil, err
		}
		comps[k] = c
	}
	a := Atom{
		Kind:     FieldAtom,
		Name:     r.Field.Name,
		Comp:     flatten(comps, x.dim),
		Deriv:    -1,
		Rate:     r.Rate,
		Test:     r.IsTest,
		External: r.Field.Kind == External,
	}
	if len(r.Deriv) == 1 {
		d, err := x.resolve(r.Deriv[0], env)
		if err != nil {
			return nil, err
		}
		a.Deriv = d
	}
	return FromAtom(a), nil
}

func (x *expander) resolve(ix Index, env map[Index]int) (int, error) {
	if c, ok := ix.Fixed(); ok {
		if c >= x.dim {
			return 0, malformed(ix, "component %d out of range for dimension %d", c, x.dim)
		}
		return c, nil
	}
	c, ok := env[ix]
	if !ok {
		return 0, malformed(ix, "index %s is not bound", ix)
	}
	return c, nil
}
