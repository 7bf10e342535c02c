package kernel

import (
	"fmt"

	"github.com/notargets/FEMKernel/weakform"
)

// Batch is the gathered input of a set of cells sharing one kernel.
type Batch struct {
	Cells     int
	IDs       []int     // cell identities used in errors, optional
	Coords    []float64 // [Cells][Np][Dim]
	Values    []float64 // [Cells][Np][NComp]
	Rates     []float64 // [Cells][Np][NComp]
	Externals []float64 // [Cells][Np][NExt]
	Beta      float64   // time weight applied to rate trial terms
}

// NewBatch allocates a zeroed batch for k.
func NewBatch(k *Kernel, cells int) *Batch {
	np := k.Np
	return &Batch{
		Cells:     cells,
		Coords:    make([]float64, cells*np*k.Layout.Dim),
		Values:    make([]float64, cells*np*k.Layout.NComp),
		Rates:     make([]float64, cells*np*k.Layout.NComp),
		Externals: make([]float64, cells*np*k.Layout.NExt),
	}
}

// ID returns the reported identity of batch cell c.
func (b *Batch) ID(c int) int {
	if b.IDs == nil {
		return c
	}
	return b.IDs[c]
}

// Result holds per-cell residual vectors and row-major tangent matrices.
type Result struct {
	NDOF     int
	Residual []float64 // [Cells][NDOF]
	Tangent  []float64 // [Cells][NDOF][NDOF]
}

func NewResult(k *Kernel, cells int) *Result {
	n := k.NDOF()
	return &Result{NDOF: n, Residual: make([]float64, cells*n), Tangent: make([]float64, cells*n*n)}
}

// Backend evaluates compiled kernels over batches of cells. Implementations
// must overwrite (not accumulate into) the result of every cell in the batch.
type Backend interface {
	Name() string
	Evaluate(k *Kernel, b *Batch, r *Result) error
	Free()
}

// Sequential evaluates cells one after another on the host.
type Sequential struct{}

func NewSequential() *Sequential { return &Sequential{} }

func (*Sequential) Name() string { return "sequential" }
func (*Sequential) Free()        {}

func (*Sequential) Evaluate(k *Kernel, b *Batch, r *Result) error {
	if len(r.Residual) < b.Cells*k.NDOF() {
		return fmt.Errorf("kernel %s: result holds %d residual entries, batch needs %d",
			k.Name, len(r.Residual), b.Cells*k.NDOF())
	}
	ev := newEvaluator(k)
	for c := 0; c < b.Cells; c++ {
		if err := ev.cell(b, r, c); err != nil {
			return err
		}
	}
	return nil
}

// evaluator owns the scratch space of one cell evaluation.
type evaluator struct {
	k     *Kernel
	geo   geometry
	dn    [][]float64 // [RefDim][Np] reference derivatives at the point
	n     []float64   // [Np]
	grad  [][]float64 // [Np][Dim] physical derivatives
	slots []float64
}

func newEvaluator(k *Kernel) *evaluator {
	ev := &evaluator{
		k:     k,
		geo:   newGeometry(k.Layout.Dim, k.RefDim),
		n:     make([]float64, k.Np),
		slots: make([]float64, len(k.Slots)),
	}
	ev.dn = make([][]float64, k.RefDim)
	for r := range ev.dn {
		ev.dn[r] = make([]float64, k.Np)
	}
	ev.grad = make([][]float64, k.Np)
	for a := range ev.grad {
		ev.grad[a] = make([]float64, k.Layout.Dim)
	}
	return ev
}

func (ev *evaluator) cell(b *Batch, r *Result, c int) error {
	k := ev.k
	dim, np := k.Layout.Dim, k.Np
	nc, ne := k.Layout.NComp, k.Layout.NExt
	ndof := k.NDOF()
	x := b.Coords[c*np*dim : (c+1)*np*dim]
	u := b.Values[c*np*nc : (c+1)*np*nc]
	v := b.Rates[c*np*nc : (c+1)*np*nc]
	var ext []float64
	if ne > 0 {
		ext = b.Externals[c*np*ne : (c+1)*np*ne]
	}
	R := r.Residual[c*ndof : (c+1)*ndof]
	K := r.Tangent[c*ndof*ndof : (c+1)*ndof*ndof]
	for i := range R {
		R[i] = 0
	}
	for i := range K {
		K[i] = 0
	}

	for q := 0; q < k.Nq; q++ {
		for a := 0; a < np; a++ {
			ev.n[a] = k.N.At(q, a)
			for rd := 0; rd < k.RefDim; rd++ {
				ev.dn[rd][a] = k.DN[rd].At(q, a)
			}
		}
		ev.geo.jacobian(x, ev.dn, np)
		if k.Target == weakform.Domain {
			ev.geo.volume()
		} else {
			ev.geo.facet()
		}
		if !(ev.geo.Det > 0) {
			return &CellError{Kernel: k.Name, Cell: b.ID(c), Det: ev.geo.Det}
		}
		if k.Target == weakform.Domain {
			for a := 0; a < np; a++ {
				for d := 0; d < dim; d++ {
					var g float64
					for rd := 0; rd < dim; rd++ {
						g += ev.dn[rd][a] * ev.geo.Inv.At(rd, d)
					}
					ev.grad[a][d] = g
				}
			}
		}
		ev.interpolate(u, v, ext)
		wdet := k.Weights[q] * ev.geo.Det

		for _, op := range k.Residual {
			val := op.Coef.Eval(ev.slots) * wdet
			for a := 0; a < np; a++ {
				R[a*nc+op.Comp] += val * ev.shape(a, op.Deriv)
			}
		}
		for _, op := range k.Tangent {
			val := op.Coef.Eval(ev.slots) * wdet
			if op.TimeWeighted {
				val *= b.Beta
			}
			for a := 0; a < np; a++ {
				row := (a*nc + op.TestComp) * ndof
				ta := val * ev.shape(a, op.TestDeriv)
				for bn := 0; bn < np; bn++ {
					K[row+bn*nc+op.TrialComp] += ta * ev.shape(bn, op.TrialDeriv)
				}
			}
		}
	}
	return nil
}

func (ev *evaluator) shape(a, deriv int) float64 {
	if deriv < 0 {
		return ev.n[a]
	}
	return ev.grad[a][deriv]
}

func (ev *evaluator) interpolate(u, v, ext []float64) {
	k := ev.k
	nc, ne := k.Layout.NComp, k.Layout.NExt
	for i, s := range k.Slots {
		var sum float64
		switch s.Source {
		case Values:
			for a := 0; a < k.Np; a++ {
				sum += ev.shape(a, s.Deriv) * u[a*nc+s.Comp]
			}
		case Rates:
			for a := 0; a < k.Np; a++ {
				sum += ev.shape(a, s.Deriv) * v[a*nc+s.Comp]
			}
		case Externals:
			for a := 0; a < k.Np; a++ {
				sum += ev.n[a] * ext[a*ne+s.Comp]
			}
		case Normals:
			sum = ev.geo.Normal[s.Comp]
		}
		ev.slots[i] = sum
	}
}
