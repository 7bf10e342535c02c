package tensor

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// AtomKind classifies the leaves of a canonical polynomial.
type AtomKind uint8

const (
	FieldAtom AtomKind = iota
	ParamAtom
	NormalAtom
)

// Atom is one scalar leaf after expansion: a single field component (value,
// spatial derivative or rate; trial or test), a named parameter, or a normal
// component.
type Atom struct {
	Kind     AtomKind
	Name     string
	Comp     int
	Deriv    int // spatial direction, -1 when not differentiated
	Rate     bool
	Test     bool
	External bool
}

// Trial returns the trial atom of the same field component.
func (a Atom) Trial() Atom {
	a.Test = false
	return a
}

func (a Atom) key() string {
	return fmt.Sprintf("%d:%s:%03d:%02d:%t:%t:%t", a.Kind, a.Name, a.Comp, a.Deriv+1, a.Rate, a.Test, a.External)
}

func (a Atom) String() string {
	switch a.Kind {
	case ParamAtom:
		return a.Name
	case NormalAtom:
		return "n[" + strconv.Itoa(a.Comp) + "]"
	}
	var sb strings.Builder
	if a.Test {
		sb.WriteString("δ")
	}
	sb.WriteString(a.Name)
	sb.WriteString("[" + strconv.Itoa(a.Comp) + "]")
	if a.Rate {
		sb.WriteString("_t")
	}
	if a.Deriv >= 0 {
		sb.WriteString("," + strconv.Itoa(a.Deriv))
	}
	return sb.String()
}

// Monomial is Coef * Π Atoms[k]^Exps[k] with atoms in canonical order.
type Monomial struct {
	Coef  float64
	Atoms []Atom
	Exps  []int
}

func (m Monomial) key() string {
	var sb strings.Builder
	for k, a := range m.Atoms {
		sb.WriteString(a.key())
		sb.WriteString("^")
		sb.WriteString(strconv.Itoa(m.Exps[k]))
		sb.WriteString(";")
	}
	return sb.String()
}

// Degree returns the exponent of a in m.
func (m Monomial) Degree(a Atom) int {
	for k, b := range m.Atoms {
		if b == a {
			return m.Exps[k]
		}
	}
	return 0
}

func (m Monomial) String() string {
	parts := []string{strconv.FormatFloat(m.Coef, 'g', -1, 64)}
	for k, a := range m.Atoms {
		if m.Exps[k] == 1 {
			parts = append(parts, a.String())
			continue
		}
		parts = append(parts, fmt.Sprintf("%s^%d", a, m.Exps[k]))
	}
	return strings.Join(parts, "*")
}

func mulMonomials(a, b Monomial) Monomial {
	out := Monomial{Coef: a.Coef * b.Coef}
	i, j := 0, 0
	for i < len(a.Atoms) || j < len(b.Atoms) {
		switch {
		case j == len(b.Atoms) || (i < len(a.Atoms) && a.Atoms[i].key() < b.Atoms[j].key()):
			out.Atoms = append(out.Atoms, a.Atoms[i])
			out.Exps = append(out.Exps, a.Exps[i])
			i++
		case i == len(a.Atoms) || b.Atoms[j].key() < a.Atoms[i].key():
			out.Atoms = append(out.Atoms, b.Atoms[j])
			out.Exps = append(out.Exps, b.Exps[j])
			j++
		default:
			out.Atoms = append(out.Atoms, a.Atoms[i])
			out.Exps = append(out.Exps, a.Exps[i]+b.Exps[j])
			i++
			j++
		}
	}
	return out
}

// Poly is the canonical form of an expanded scalar expression: a sum of
// monomials keyed by their atom signature.
type Poly struct {
	terms map[string]Monomial
}

// NewPoly returns the zero polynomial.
func NewPoly() *Poly { return &Poly{terms: map[string]Monomial{}} }

// Constant returns the polynomial c.
func Constant(c float64) *Poly {
	p := NewPoly()
	p.accumulate(Monomial{Coef: c})
	return p
}

// FromAtom returns the polynomial a.
func FromAtom(a Atom) *Poly {
	p := NewPoly()
	p.accumulate(Monomial{Coef: 1, Atoms: []Atom{a}, Exps: []int{1}})
	return p
}

func (p *Poly) accumulate(m Monomial) {
	if m.Coef == 0 {
		return
	}
	k := m.key()
	if old, ok := p.terms[k]; ok {
		old.Coef += m.Coef
		if old.Coef == 0 {
			delete(p.terms, k)
			return
		}
		p.terms[k] = old
		return
	}
	p.terms[k] = m
}

// Add returns p + q.
func (p *Poly) Add(q *Poly) *Poly {
	out := p.clone()
	for _, m := range q.terms {
		out.accumulate(m)
	}
	return out
}

// Scale returns c*p.
func (p *Poly) Scale(c float64) *Poly {
	out := NewPoly()
	for _, m := range p.terms {
		m.Coef *= c
		out.accumulate(m)
	}
	return out
}

// Mul returns p*q.
func (p *Poly) Mul(q *Poly) *Poly {
	out := NewPoly()
	for _, a := range p.terms {
		for _, b := range q.terms {
			out.accumulate(mulMonomials(a, b))
		}
	}
	return out
}

// Pow returns p^n for n >= 0.
func (p *Poly) Pow(n int) *Poly {
	out := Constant(1)
	for k := 0; k < n; k++ {
		out = out.Mul(p)
	}
	return out
}

// Diff returns ∂p/∂a treating every other atom as independent.
func (p *Poly) Diff(a Atom) *Poly {
	out := NewPoly()
	for _, m := range p.terms {
		for k, b := range m.Atoms {
			if b != a {
				continue
			}
			d := Monomial{Coef: m.Coef * float64(m.Exps[k])}
			for kk, c := range m.Atoms {
				e := m.Exps[kk]
				if kk == k {
					e--
				}
				if e > 0 {
					d.Atoms = append(d.Atoms, c)
					d.Exps = append(d.Exps, e)
				}
			}
			out.accumulate(d)
		}
	}
	return out
}

// Fold replaces every atom for which value reports ok by its numeric value.
func (p *Poly) Fold(value func(Atom) (float64, bool)) *Poly {
	out := NewPoly()
	for _, m := range p.terms {
		f := Monomial{Coef: m.Coef}
		for k, a := range m.Atoms {
			if v, ok := value(a); ok {
				f.Coef *= math.Pow(v, float64(m.Exps[k]))
				continue
			}
			f.Atoms = append(f.Atoms, a)
			f.Exps = append(f.Exps, m.Exps[k])
		}
		out.accumulate(f)
	}
	return out
}

// Eval evaluates p with atom values supplied by value.
func (p *Poly) Eval(value func(Atom) float64) float64 {
	var sum float64
	for _, m := range p.Terms() {
		t := m.Coef
		for k, a := range m.Atoms {
			v := value(a)
			for e := 0; e < m.Exps[k]; e++ {
				t *= v
			}
		}
		sum += t
	}
	return sum
}

// Terms returns the monomials in canonical order.
func (p *Poly) Terms() []Monomial {
	keys := make([]string, 0, len(p.terms))
	for k := range p.terms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Monomial, len(keys))
	for i, k := range keys {
		out[i] = p.terms[k]
	}
	return out
}

// Atoms returns the distinct atoms of p in canonical order.
func (p *Poly) Atoms() []Atom {
	seen := map[string]Atom{}
	for _, m := range p.terms {
		for _, a := range m.Atoms {
			seen[a.key()] = a
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Atom, len(keys))
	for i, k := range keys {
		out[i] = seen[k]
	}
	return out
}

// Len returns the number of monomials.
func (p *Poly) Len() int { return len(p.terms) }

// IsZero reports whether p has no terms.
func (p *Poly) IsZero() bool { return len(p.terms) == 0 }

// Equal compares coefficients with a relative tolerance.
func (p *Poly) Equal(q *Poly, tol float64) bool {
	for k, m := range p.terms {
		n, ok := q.terms[k]
		if !ok {
			n = Monomial{}
		}
		if !nearlyEqual(m.Coef, n.Coef, tol) {
			return false
		}
	}
	for k, n := range q.terms {
		if _, ok := p.terms[k]; !ok && !nearlyEqual(0, n.Coef, tol) {
			return false
		}
	}
	return true
}

func nearlyEqual(a, b, tol float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= tol*scale
}

func (p *Poly) String() string {
	if p.IsZero() {
		return "0"
	}
	terms := p.Terms()
	parts := make([]string, len(terms))
	for i, m := range terms {
		parts[i] = m.String()
	}
	return strings.Join(parts, " + ")
}

func (p *Poly) clone() *Poly {
	out := NewPoly()
	for k, m := range p.terms {
		out.terms[k] = m
	}
	return out
}

// Key returns the canonical ordering key of the atom.
func (a Atom) Key() string { return a.key() }

// FromMonomial returns the single-term polynomial m.
func FromMonomial(m Monomial) *Poly {
	p := NewPoly()
	p.accumulate(Monomial{Coef: m.Coef, Atoms: append([]Atom(nil), m.Atoms...), Exps: append([]int(nil), m.Exps...)})
	return p
}

// Without returns m with atom a removed.
func (m Monomial) Without(a Atom) Monomial {
	out := Monomial{Coef: m.Coef}
	for k, b := range m.Atoms {
		if b == a {
			continue
		}
		out.Atoms = append(out.Atoms, b)
		out.Exps = append(out.Exps, m.Exps[k])
	}
	return out
}
