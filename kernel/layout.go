package kernel

import "github.com/notargets/FEMKernel/tensor"

// FieldSlot places one field's components inside a node's local block.
type FieldSlot struct {
	Name   string
	Rank   int
	Offset int
	NComp  int
}

// Layout is the per-node arrangement of unknowns and external values. Local
// unknown a*NComp + Offset + c belongs to node a, component c of the field.
type Layout struct {
	Dim      int
	Internal []FieldSlot
	External []FieldSlot
	NComp    int // internal components per node
	NExt     int // external components per node
}

// NewLayout orders internal fields and external fields separately, each in
// the order given.
func NewLayout(dim int, fields ...*tensor.Field) Layout {
	l := Layout{Dim: dim}
	for _, f := range fields {
		n := f.Components(dim)
		if f.Kind == tensor.External {
			l.External = append(l.External, FieldSlot{Name: f.Name, Rank: f.Rank, Offset: l.NExt, NComp: n})
			l.NExt += n
			continue
		}
		l.Internal = append(l.Internal, FieldSlot{Name: f.Name, Rank: f.Rank, Offset: l.NComp, NComp: n})
		l.NComp += n
	}
	return l
}

// Find looks a field up by name among the internal or external slots.
func (l Layout) Find(name string, external bool) (FieldSlot, bool) {
	slots := l.Internal
	if external {
		slots = l.External
	}
	for _, s := range slots {
		if s.Name == name {
			return s, true
		}
	}
	return FieldSlot{}, false
}
