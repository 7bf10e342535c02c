// Package assembly builds the global residual vector and sparse tangent
// from element and facet kernels evaluated by a kernel backend.
package assembly

import (
	"fmt"

	"github.com/james-bowman/sparse"

	"github.com/notargets/FEMKernel/kernel"
	"github.com/notargets/FEMKernel/problem"
)

// Options tunes how cells are fed to the backend.
type Options struct {
	BatchSize int // cells per backend call, 0 for whole groups

	// Order returns the evaluation order of the n cells of a group, named
	// by body or "body/region"; nil keeps the mesh order.
	Order func(group string, n int) []int
}

// System is the linearized problem at the current iterate.
type System struct {
	Residual []float64
	Tangent  *sparse.CSR
}

// group is every cell of one body (or body region) sharing one kernel.
type group struct {
	name   string
	kernel *kernel.Kernel
	cells  [][]int // control points per cell
	dofs   [][]int // global DOF per local unknown
	order  []int
	batch  *kernel.Batch
	result *kernel.Result
}

type Assembler struct {
	ctx     *problem.Context
	backend kernel.Backend
	opts    Options
	groups  []*group
}

// New compiles the kernels of every work-piece and builds the gather maps.
func New(ctx *problem.Context, backend kernel.Backend, opts ...Options) (*Assembler, error) {
	as := &Assembler{ctx: ctx, backend: backend}
	if len(opts) > 0 {
		as.opts = opts[0]
	}
	m := ctx.Mesh
	for _, w := range ctx.Pieces {
		form, err := w.Form.Compile(m.Dim)
		if err != nil {
			return nil, fmt.Errorf("work-piece %s: %w", w.Body.Name, err)
		}
		layout := m.Layout(w.Body)

		rule, err := w.Rule(w.Body.Scheme)
		if err != nil {
			return nil, fmt.Errorf("work-piece %s: %w", w.Body.Name, err)
		}
		k, err := kernel.Compile(form.Domain.Residual, form.Domain.Tangent, layout, w.Body.Scheme, rule, w.Params)
		if err != nil {
			return nil, err
		}
		dofs, err := m.ElementDOFs(w.Body)
		if err != nil {
			return nil, err
		}
		if err = as.add(w.Body.Name, k, w.Body.Elements, dofs); err != nil {
			return nil, err
		}

		for _, name := range w.Form.Regions() {
			r := w.Body.Region(name)
			pair := form.Boundary[name]
			if rule, err = w.Rule(r.Scheme); err != nil {
				return nil, fmt.Errorf("region %s: %w", name, err)
			}
			if k, err = kernel.Compile(pair.Residual, pair.Tangent, layout, r.Scheme, rule, w.Params); err != nil {
				return nil, err
			}
			if dofs, err = m.FacetDOFs(w.Body, r); err != nil {
				return nil, err
			}
			if err = as.add(w.Body.Name+"/"+name, k, r.Facets, dofs); err != nil {
				return nil, err
			}
		}
	}
	return as, nil
}

func (as *Assembler) add(name string, k *kernel.Kernel, cells, dofs [][]int) error {
	n := len(cells)
	if n == 0 {
		return nil
	}
	g := &group{name: name, kernel: k, cells: cells, dofs: dofs}
	if as.opts.Order != nil {
		g.order = as.opts.Order(name, n)
		if !isPermutation(g.order, n) {
			return fmt.Errorf("group %s: cell order is not a permutation of %d cells", name, n)
		}
	} else {
		g.order = make([]int, n)
		for i := range g.order {
			g.order[i] = i
		}
	}
	bs := as.opts.BatchSize
	if bs <= 0 || bs > n {
		bs = n
	}
	g.batch = kernel.NewBatch(k, bs)
	g.batch.IDs = make([]int, bs)
	g.result = kernel.NewResult(k, bs)
	as.groups = append(as.groups, g)
	return nil
}

func isPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, c := range order {
		if c < 0 || c >= n || seen[c] {
			return false
		}
		seen[c] = true
	}
	return true
}

// NumDOF is the size of the assembled system.
func (as *Assembler) NumDOF() int { return as.ctx.DOFs.NumDOF }

// Assemble evaluates every cell at the current state. beta weights the
// rate trial terms of the tangent.
func (as *Assembler) Assemble(beta float64) (*System, error) {
	n := as.NumDOF()
	res := make([]float64, n)
	dok := sparse.NewDOK(n, n)
	for _, g := range as.groups {
		if err := as.assembleGroup(g, beta, res, dok); err != nil {
			return nil, fmt.Errorf("assembling %s: %w", g.name, err)
		}
	}
	return &System{Residual: res, Tangent: dok.ToCSR()}, nil
}

func (as *Assembler) assembleGroup(g *group, beta float64, res []float64, dok *sparse.DOK) error {
	bs := len(g.batch.IDs)
	for start := 0; start < len(g.order); start += bs {
		end := start + bs
		if end > len(g.order) {
			end = len(g.order)
		}
		cells := g.order[start:end]
		as.gather(g, cells, beta)
		if err := as.backend.Evaluate(g.kernel, g.batch, g.result); err != nil {
			return err
		}
		scatter(g, cells, res, dok)
	}
	return nil
}

// gather copies coordinates, values, rates and externals of cells into the batch.
func (as *Assembler) gather(g *group, cells []int, beta float64) {
	k, b := g.kernel, g.batch
	st, pts := as.ctx.State, as.ctx.Mesh.Points
	np, dim, ne := k.Np, k.Layout.Dim, k.Layout.NExt
	ndof := k.NDOF()
	b.Cells, b.Beta = len(cells), beta
	for i, c := range cells {
		b.IDs[i] = c
		for a, p := range g.cells[c] {
			copy(b.Coords[(i*np+a)*dim:], pts[p].X)
			if ne > 0 {
				copy(b.Externals[(i*np+a)*ne:(i*np+a+1)*ne], pts[p].External)
			}
		}
		for l, gi := range g.dofs[c] {
			b.Values[i*ndof+l] = st.X[gi]
			b.Rates[i*ndof+l] = st.Xdot[gi]
		}
	}
}

// scatter adds the local results into the global system. It runs on a
// single goroutine.
func scatter(g *group, cells []int, res []float64, dok *sparse.DOK) {
	r := g.result
	nd := r.NDOF
	for i, c := range cells {
		dofs := g.dofs[c]
		for a, ga := range dofs {
			res[ga] += r.Residual[i*nd+a]
			row := r.Tangent[(i*nd+a)*nd : (i*nd+a+1)*nd]
			for b, gb := range dofs {
				if v := row[b]; v != 0 {
					dok.Set(ga, gb, dok.At(ga, gb)+v)
				}
			}
		}
	}
}

// Cells reports the cell count of every kernel group, keyed by body or
// "body/region".
func (as *Assembler) Cells() map[string]int {
	out := map[string]int{}
	for _, g := range as.groups {
		out[g.name] = len(g.cells)
	}
	return out
}
