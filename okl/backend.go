// Package okl evaluates compiled element kernels on an OCCA device. Each
// kernel is lowered to OCCA kernel language with one @outer iteration per
// partition of cells and one @inner iteration per cell.
package okl

import (
	"fmt"

	"github.com/notargets/gocca"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/FEMKernel/kernel"
	"github.com/notargets/FEMKernel/partitions"
	"github.com/notargets/FEMKernel/runner"
	"github.com/notargets/FEMKernel/runner/builder"
)

// Config selects how batches are split and the device precision.
type Config struct {
	PartitionSize int // target cells per partition, 0 keeps a batch whole
	Strategy      partitions.PartitionStrategy
	FloatType     builder.DataType
	IntType       builder.DataType
}

// Backend implements kernel.Backend on an OCCA device. Programs are built once
// per (kernel, cell count) and reused.
type Backend struct {
	Device   *gocca.OCCADevice
	cfg      Config
	programs map[programKey]*program
}

type programKey struct {
	k     *kernel.Kernel
	cells int
}

// program is one built kernel with its device arrays and host bindings
type program struct {
	name   string
	runner *runner.Runner
	layout *partitions.PartitionLayout

	x, u, v, e   [][]float64
	res, tan, st [][]float64
}

func NewBackend(device *gocca.OCCADevice, cfg Config) *Backend {
	if device == nil {
		panic("okl backend needs a device")
	}
	return &Backend{Device: device, cfg: cfg, programs: make(map[programKey]*program)}
}

func (be *Backend) Name() string { return "okl/" + be.Device.Mode() }

func (be *Backend) Evaluate(k *kernel.Kernel, b *kernel.Batch, r *kernel.Result) error {
	if b.Cells == 0 {
		return nil
	}
	ndof := k.NDOF()
	if len(r.Residual) < b.Cells*ndof {
		return fmt.Errorf("kernel %s: result holds %d residual entries, batch needs %d",
			k.Name, len(r.Residual), b.Cells*ndof)
	}
	key := programKey{k: k, cells: b.Cells}
	p, ok := be.programs[key]
	if !ok {
		var err error
		if p, err = be.build(k, b.Cells); err != nil {
			return err
		}
		be.programs[key] = p
	}

	np, l := k.Np, k.Layout
	p.layout.GatherInto(b.Coords, np*l.Dim, p.x)
	p.layout.GatherInto(b.Values, np*l.NComp, p.u)
	p.layout.GatherInto(b.Rates, np*l.NComp, p.v)
	if l.NExt > 0 {
		p.layout.GatherInto(b.Externals, np*l.NExt, p.e)
	}
	if err := p.runner.RunKernel(p.name, b.Beta); err != nil {
		return fmt.Errorf("kernel %s: %w", k.Name, err)
	}

	for i, part := range p.layout.Partitions {
		for j, c := range part.Elements {
			if p.st[i][2*j] != 0 {
				return &kernel.CellError{Kernel: k.Name, Cell: b.ID(c), Det: p.st[i][2*j+1]}
			}
		}
	}
	p.layout.Scatter(p.res, ndof, r.Residual)
	p.layout.Scatter(p.tan, ndof*ndof, r.Tangent)
	return nil
}

func (be *Backend) build(k *kernel.Kernel, cells int) (*program, error) {
	pb := &partitions.PartitionBuilder{
		NumElements:         cells,
		TargetPartitionSize: be.cfg.PartitionSize,
		Strategy:            be.cfg.Strategy,
	}
	layout, err := pb.BuildPartitions()
	if err != nil {
		return nil, fmt.Errorf("kernel %s: %w", k.Name, err)
	}
	kr := runner.NewRunner(be.Device, builder.Config{
		K:         layout.K(),
		FloatType: be.cfg.FloatType,
		IntType:   be.cfg.IntType,
	})

	np, l, ndof := k.Np, k.Layout, k.NDOF()
	kr.AddDefine("NP", np)
	kr.AddDefine("NQ", k.Nq)
	kr.AddDefine("DIM", l.Dim)
	kr.AddDefine("NCOMP", l.NComp)
	kr.AddDefine("NEXT", l.NExt)
	kr.AddDefine("NDOF", ndof)
	kr.AddDefine("NSLOT", len(k.Slots))
	kr.AddStaticMatrix("N", k.N)
	for rd, dn := range k.DN {
		kr.AddStaticMatrix(fmt.Sprintf("DN%d", rd), dn)
	}
	kr.AddStaticMatrix("W", mat.NewDense(k.Nq, 1, k.Weights))

	p := &program{
		name:   KernelName(k),
		runner: kr,
		layout: layout,
		x:      layout.Alloc(np * l.Dim),
		u:      layout.Alloc(np * l.NComp),
		v:      layout.Alloc(np * l.NComp),
		res:    layout.Alloc(ndof),
		tan:    layout.Alloc(ndof * ndof),
		st:     layout.Alloc(2),
	}
	params := []*builder.ParamBuilder{
		builder.Input("X").Bind(p.x).CopyTo().Align(builder.CacheLineAlign),
		builder.Input("U").Bind(p.u).CopyTo().Align(builder.CacheLineAlign),
		builder.Input("V").Bind(p.v).CopyTo().Align(builder.CacheLineAlign),
	}
	if l.NExt > 0 {
		p.e = layout.Alloc(np * l.NExt)
		params = append(params, builder.Input("E").Bind(p.e).CopyTo().Align(builder.CacheLineAlign))
	}
	params = append(params,
		builder.Output("RES").Bind(p.res).CopyBack().Align(builder.CacheLineAlign),
		builder.Output("TAN").Bind(p.tan).CopyBack().Align(builder.CacheLineAlign),
		builder.Output("STATUS").Bind(p.st).CopyBack(),
		builder.Scalar("beta").Bind(0.0),
	)
	if err := kr.DefineKernel(p.name, params...); err != nil {
		kr.Free()
		return nil, err
	}
	signature, err := kr.GetKernelSignature(p.name)
	if err != nil {
		kr.Free()
		return nil, err
	}
	if _, err := kr.BuildKernel(Source(k, signature), p.name); err != nil {
		kr.Free()
		return nil, err
	}
	return p, nil
}

// Free releases every built program. The device stays with its owner.
func (be *Backend) Free() {
	for key, p := range be.programs {
		p.runner.Free()
		delete(be.programs, key)
	}
}

var _ kernel.Backend = (*Backend)(nil)
