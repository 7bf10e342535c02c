// Package tensor builds indicial tensor expressions over field variables and
// expands them into canonical scalar polynomials.
package tensor

import (
	"fmt"
	"strconv"
)

// FieldKind tells whether a field is solved for or prescribed.
type FieldKind uint8

const (
	Internal FieldKind = iota
	External
)

func (k FieldKind) String() string {
	if k == External {
		return "external"
	}
	return "internal"
}

// Field is a named tensor-valued variable. Fields are declared once and never
// mutated afterwards.
type Field struct {
	Name string
	Rank int
	Kind FieldKind
}

// NewField declares an internal (solved) field of the given tensor rank.
func NewField(name string, rank int) *Field {
	if rank < 0 {
		panic(fmt.Sprintf("field %s: negative rank %d", name, rank))
	}
	return &Field{Name: name, Rank: rank, Kind: Internal}
}

// NewExternalField declares a prescribed field whose values live in
// control-point slots outside the DOF space.
func NewExternalField(name string, rank int) *Field {
	f := NewField(name, rank)
	f.Kind = External
	return f
}

// Components returns dim^rank.
func (f *Field) Components(dim int) int {
	n := 1
	for r := 0; r < f.Rank; r++ {
		n *= dim
	}
	return n
}

// At references the trial value of the field with the given component indices.
func (f *Field) At(idx ...Index) *Ref {
	return &Ref{Field: f, Slots: append([]Index(nil), idx...)}
}

// Test references the test function paired with the field.
func (f *Field) Test(idx ...Index) *Ref {
	return &Ref{Field: f, Slots: append([]Index(nil), idx...), IsTest: true}
}

func (f *Field) String() string { return f.Name }

// Index is a tensor index symbol. Purely numeric names denote a fixed
// component, see Comp.
type Index string

const (
	I Index = "i"
	J Index = "j"
	K Index = "k"
	L Index = "l"
	M Index = "m"
	N Index = "n"
)

// Comp returns the index naming the fixed component n.
func Comp(n int) Index {
	if n < 0 {
		panic("tensor: negative component")
	}
	return Index(strconv.Itoa(n))
}

// Fixed reports the component value of a fixed index.
func (ix Index) Fixed() (int, bool) {
	n, err := strconv.Atoi(string(ix))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// flatten maps a component multi-index to its row-major position.
func flatten(comps []int, dim int) int {
	pos := 0
	for _, c := range comps {
		pos = pos*dim + c
	}
	return pos
}
