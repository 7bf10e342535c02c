package tensor

import (
	"fmt"
	"strconv"
	"strings"
)

// Expr is an immutable node of an indicial expression tree.
type Expr interface {
	String() string
	// visible returns the occurrence count of every non-fixed index as seen
	// by the enclosing product. Sums and powers open a new summation scope
	// and only expose their free indices.
	visible() (map[Index]int, error)
}

// Number is a numeric constant.
type Number struct{ Value float64 }

// Parameter is a named scalar coefficient bound when a kernel is compiled.
type Parameter struct{ Name string }

// Ref references a field component, optionally differentiated in space or
// time, as a trial quantity or as a test function.
type Ref struct {
	Field  *Field
	Slots  []Index
	Deriv  []Index
	Rate   bool
	IsTest bool
}

// KroneckerDelta is δ_ij.
type KroneckerDelta struct{ I, J Index }

// NormalComp is the i-th component of the outward unit normal of a facet.
type NormalComp struct{ I Index }

// Sum adds terms that share the same free indices.
type Sum struct{ Terms []Expr }

// Product multiplies factors with Einstein summation over repeated indices.
type Product struct{ Factors []Expr }

// Power raises a scalar base to a non-negative integer exponent.
type Power struct {
	Base Expr
	Exp  int
}

// BilinearForm pairs a test quantity with a trial quantity; repeated indices
// between the two sides are contracted.
type BilinearForm struct{ TestSide, TrialSide Expr }

// invalid carries a construction error to expansion time.
type invalid struct{ err error }

// Num returns a numeric constant.
func Num(v float64) Expr { return &Number{Value: v} }

// Param returns a named coefficient.
func Param(name string) Expr { return &Parameter{Name: name} }

// Delta returns the Kronecker delta δ_ij.
func Delta(i, j Index) Expr { return &KroneckerDelta{I: i, J: j} }

// Normal returns n_i on a boundary facet.
func Normal(i Index) Expr { return &NormalComp{I: i} }

// Add sums its arguments.
func Add(terms ...Expr) Expr {
	flat := make([]Expr, 0, len(terms))
	for _, t := range terms {
		if s, ok := t.(*Sum); ok {
			flat = append(flat, s.Terms...)
			continue
		}
		flat = append(flat, t)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return &Sum{Terms: flat}
}

// Sub returns a - b.
func Sub(a, b Expr) Expr { return Add(a, Neg(b)) }

// Neg returns -a.
func Neg(a Expr) Expr { return Mul(Num(-1), a) }

// Mul multiplies its arguments.
func Mul(factors ...Expr) Expr {
	flat := make([]Expr, 0, len(factors))
	for _, f := range factors {
		if p, ok := f.(*Product); ok {
			flat = append(flat, p.Factors...)
			continue
		}
		flat = append(flat, f)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return &Product{Factors: flat}
}

// Scale returns c*a.
func Scale(c float64, a Expr) Expr { return Mul(Num(c), a) }

// Pow returns base^n.
func Pow(base Expr, n int) Expr { return &Power{Base: base, Exp: n} }

// Bilinear returns the integrand contribution of test quantity a against
// trial quantity b.
func Bilinear(a, b Expr) Expr { return &BilinearForm{TestSide: a, TrialSide: b} }

// D returns a copy of the reference differentiated with respect to x_j.
func (r *Ref) D(j Index) *Ref {
	c := r.clone()
	c.Deriv = append(c.Deriv, j)
	return c
}

// Dt returns a copy of the reference marked as a time rate.
func (r *Ref) Dt() *Ref {
	c := r.clone()
	c.Rate = true
	return c
}

func (r *Ref) clone() *Ref {
	return &Ref{
		Field:  r.Field,
		Slots:  append([]Index(nil), r.Slots...),
		Deriv:  append([]Index(nil), r.Deriv...),
		Rate:   r.Rate,
		IsTest: r.IsTest,
	}
}

func (n *Number) String() string { return strconv.FormatFloat(n.Value, 'g', -1, 64) }

func (p *Parameter) String() string { return p.Name }

func (r *Ref) String() string {
	var sb strings.Builder
	if r.IsTest {
		sb.WriteString("δ")
	}
	sb.WriteString(r.Field.Name)
	if len(r.Slots) > 0 {
		sb.WriteString("_")
		for _, s := range r.Slots {
			sb.WriteString(string(s))
		}
	}
	if r.Rate {
		sb.WriteString("_t")
	}
	if len(r.Deriv) > 0 {
		sb.WriteString(",")
		for _, d := range r.Deriv {
			sb.WriteString(string(d))
		}
	}
	return sb.String()
}

func (d *KroneckerDelta) String() string { return "δ_" + string(d.I) + string(d.J) }

func (n *NormalComp) String() string { return "n_" + string(n.I) }

func (s *Sum) String() string {
	parts := make([]string, len(s.Terms))
	for i, t := range s.Terms {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, " + ") + ")"
}

func (p *Product) String() string {
	parts := make([]string, len(p.Factors))
	for i, f := range p.Factors {
		parts[i] = f.String()
	}
	return strings.Join(parts, "*")
}

func (p *Power) String() string { return fmt.Sprintf("(%s)^%d", p.Base, p.Exp) }

func (b *BilinearForm) String() string {
	return fmt.Sprintf("<%s, %s>", b.TestSide, b.TrialSide)
}

func (e *invalid) String() string { return "<invalid: " + e.err.Error() + ">" }

func (n *Number) visible() (map[Index]int, error) { return map[Index]int{}, nil }

func (p *Parameter) visible() (map[Index]int, error) { return map[Index]int{}, nil }

func (e *invalid) visible() (map[Index]int, error) { return nil, e.err }

func (r *Ref) visible() (map[Index]int, error) {
	if r.Field == nil {
		return nil, malformed("", "reference without a field")
	}
	if len(r.Slots) != r.Field.Rank {
		return nil, malformed("", "field %s has rank %d but %d indices were given",
			r.Field.Name, r.Field.Rank, len(r.Slots))
	}
	if len(r.Deriv) > 1 {
		return nil, malformed(r.Deriv[1], "second spatial derivative of %s is not supported", r.Field.Name)
	}
	if r.Field.Kind == External {
		if r.IsTest {
			return nil, malformed("", "external field %s cannot be a test function", r.Field.Name)
		}
		if r.Rate || len(r.Deriv) > 0 {
			return nil, malformed("", "external field %s cannot be differentiated", r.Field.Name)
		}
	}
	if r.IsTest && r.Rate {
		return nil, malformed("", "test function %s cannot carry a time rate", r.Field.Name)
	}
	counts := map[Index]int{}
	for _, ix := range append(append([]Index(nil), r.Slots...), r.Deriv...) {
		if _, ok := ix.Fixed(); ok {
			continue
		}
		counts[ix]++
	}
	return counts, checkCounts(counts)
}

func (d *KroneckerDelta) visible() (map[Index]int, error) {
	counts := map[Index]int{}
	for _, ix := range []Index{d.I, d.J} {
		if _, ok := ix.Fixed(); !ok {
			counts[ix]++
		}
	}
	return counts, nil
}

func (n *NormalComp) visible() (map[Index]int, error) {
	counts := map[Index]int{}
	if _, ok := n.I.Fixed(); !ok {
		counts[n.I] = 1
	}
	return counts, nil
}

func (s *Sum) visible() (map[Index]int, error) {
	var first map[Index]int
	for k, t := range s.Terms {
		v, err := t.visible()
		if err != nil {
			return nil, err
		}
		f := freeOf(v)
		if k == 0 {
			first = f
			continue
		}
		if ix, ok := mismatch(first, f); ok {
			return nil, malformed(ix, "unmatched free index between %s and %s", s.Terms[0], t)
		}
	}
	if first == nil {
		first = map[Index]int{}
	}
	return first, nil
}

func (p *Product) visible() (map[Index]int, error) {
	return mergeFactors(p.Factors...)
}

func (p *Power) visible() (map[Index]int, error) {
	if p.Exp < 0 {
		return nil, malformed("", "negative exponent %d", p.Exp)
	}
	v, err := p.Base.visible()
	if err != nil {
		return nil, err
	}
	for ix, c := range v {
		if c == 1 {
			return nil, malformed(ix, "free index inside power %s", p)
		}
	}
	if p.Exp > 1 && containsTest(p.Base) {
		return nil, malformed("", "test function raised to a power in %s", p)
	}
	return map[Index]int{}, nil
}

func (b *BilinearForm) visible() (map[Index]int, error) {
	if !containsTest(b.TestSide) {
		return nil, malformed("", "test side of %s has no test function", b)
	}
	if containsTest(b.TrialSide) {
		return nil, malformed("", "trial side of %s contains a test function", b)
	}
	return mergeFactors(b.TestSide, b.TrialSide)
}

func mergeFactors(factors ...Expr) (map[Index]int, error) {
	counts := map[Index]int{}
	for _, f := range factors {
		v, err := f.visible()
		if err != nil {
			return nil, err
		}
		for ix, c := range v {
			counts[ix] += c
		}
	}
	return counts, checkCounts(counts)
}

func checkCounts(counts map[Index]int) error {
	for _, ix := range sortedIndices(counts) {
		if counts[ix] >= 3 {
			return malformed(ix, "index %s appears %d times in one term", ix, counts[ix])
		}
	}
	return nil
}

// freeOf keeps the indices that occur exactly once.
func freeOf(v map[Index]int) map[Index]int {
	free := map[Index]int{}
	for ix, c := range v {
		if c == 1 {
			free[ix] = 1
		}
	}
	return free
}

func mismatch(a, b map[Index]int) (Index, bool) {
	for _, ix := range sortedIndices(a) {
		if _, ok := b[ix]; !ok {
			return ix, true
		}
	}
	for _, ix := range sortedIndices(b) {
		if _, ok := a[ix]; !ok {
			return ix, true
		}
	}
	return "", false
}

func containsTest(e Expr) bool {
	switch n := e.(type) {
	case *Ref:
		return n.IsTest
	case *Sum:
		for _, t := range n.Terms {
			if containsTest(t) {
				return true
			}
		}
	case *Product:
		for _, f := range n.Factors {
			if containsTest(f) {
				return true
			}
		}
	case *Power:
		return containsTest(n.Base)
	case *BilinearForm:
		return containsTest(n.TestSide) || containsTest(n.TrialSide)
	}
	return false
}

// FreeIndices returns the sorted free indices of e.
func FreeIndices(e Expr) ([]Index, error) {
	v, err := e.visible()
	if err != nil {
		return nil, err
	}
	return sortedIndices(freeOf(v)), nil
}
