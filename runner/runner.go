package runner

import (
	"fmt"
	"unsafe"

	"github.com/notargets/FEMKernel/runner/builder"
	"github.com/notargets/gocca"
)

// KernelDefinition holds all information about a defined kernel
type KernelDefinition struct {
	Name       string
	Parameters []builder.ParamSpec
	Signature  string
}

// Runner orchestrates kernel compilation and execution over partitioned arrays
type Runner struct {
	*builder.Builder
	Device       *gocca.OCCADevice
	Kernels      map[string]*gocca.OCCAKernel
	PooledMemory map[string]*gocca.OCCAMemory

	kernelDefinitions map[string]*KernelDefinition
	hostOffsets       map[string][]int64
	arrayTypes        map[string]builder.DataType // device value type per array
}

// NewRunner creates a new Runner instance and places K on the device
func NewRunner(device *gocca.OCCADevice, cfg builder.Config) *Runner {
	if device == nil {
		panic("runner needs a device")
	}
	bld := builder.NewBuilder(cfg)
	if bld.KpartMax > 1048576 { // 2^20 elements
		panic(fmt.Sprintf("KpartMax exceeds 2^20 (1048576), usually caused by unbalanced workloads.\n"+
			"Found KpartMax=%d. Please balance K values or increase partition count.\n"+
			"Current K values: %v", bld.KpartMax, bld.K))
	}
	kr := &Runner{
		Builder:           bld,
		Device:            device,
		Kernels:           make(map[string]*gocca.OCCAKernel),
		PooledMemory:      make(map[string]*gocca.OCCAMemory),
		kernelDefinitions: make(map[string]*KernelDefinition),
		hostOffsets:       make(map[string][]int64),
		arrayTypes:        make(map[string]builder.DataType),
	}
	kr.PooledMemory["K"] = kr.mallocInts(toInt64(bld.K))
	return kr
}

// DefineKernel validates parameters, allocates any arrays not yet on the
// device and records the kernel's argument order.
func (kr *Runner) DefineKernel(kernelName string, params ...*builder.ParamBuilder) error {
	specs := make([]builder.ParamSpec, len(params))
	for i, p := range params {
		specs[i] = p.Spec
		if err := specs[i].Validate(); err != nil {
			return fmt.Errorf("kernel %s parameter %d: %w", kernelName, i, err)
		}
	}
	for i := range specs {
		if specs[i].Direction == builder.DirectionScalar {
			continue
		}
		if err := kr.allocateArray(&specs[i]); err != nil {
			return fmt.Errorf("kernel %s: %w", kernelName, err)
		}
	}
	kr.kernelDefinitions[kernelName] = &KernelDefinition{
		Name:       kernelName,
		Parameters: specs,
		Signature:  kr.GenerateKernelSignature(specs),
	}
	return nil
}

// GetKernelSignature returns the parameter list kernel source must declare
func (kr *Runner) GetKernelSignature(kernelName string) (string, error) {
	def, exists := kr.kernelDefinitions[kernelName]
	if !exists {
		return "", fmt.Errorf("kernel %s not defined", kernelName)
	}
	return def.Signature, nil
}

// BuildKernel compiles and registers a kernel with the generated preamble
func (kr *Runner) BuildKernel(kernelSource, kernelName string) (*gocca.OCCAKernel, error) {
	kr.GeneratePreamble()
	fullSource := kr.KernelPreamble + "\n" + kernelSource

	var kernel *gocca.OCCAKernel
	var err error
	if kr.Device.Mode() == "OpenMP" {
		// Workaround for OCCA bug: OpenMP doesn't get default -O3 flag
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		kernel, err = kr.Device.BuildKernelFromString(fullSource, kernelName, props)
	} else {
		kernel, err = kr.Device.BuildKernelFromString(fullSource, kernelName, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build kernel %s: %w", kernelName, err)
	}
	if kernel == nil {
		return nil, fmt.Errorf("kernel build returned nil for %s", kernelName)
	}
	kr.Kernels[kernelName] = kernel
	return kernel, nil
}

// RunKernel copies inputs to the device, runs the kernel and copies outputs
// back. scalarValues override bound scalars in declaration order.
func (kr *Runner) RunKernel(kernelName string, scalarValues ...interface{}) error {
	def, exists := kr.kernelDefinitions[kernelName]
	if !exists {
		return fmt.Errorf("kernel %s not defined - use DefineKernel first", kernelName)
	}
	kernel, exists := kr.Kernels[kernelName]
	if !exists {
		return fmt.Errorf("kernel %s not compiled", kernelName)
	}

	for i := range def.Parameters {
		if p := &def.Parameters[i]; p.Direction != builder.DirectionScalar && p.NeedsCopyTo() {
			if err := kr.copyToDevice(p); err != nil {
				return fmt.Errorf("pre-kernel copy failed: %w", err)
			}
		}
	}
	args, err := kr.buildKernelArguments(def, scalarValues)
	if err != nil {
		return fmt.Errorf("failed to build arguments: %w", err)
	}
	if err := kernel.RunWithArgs(args...); err != nil {
		return fmt.Errorf("kernel execution failed: %w", err)
	}
	kr.Device.Finish()
	for i := range def.Parameters {
		if p := &def.Parameters[i]; p.Direction != builder.DirectionScalar && p.NeedsCopyBack() {
			if err := kr.copyFromDevice(p); err != nil {
				return fmt.Errorf("post-kernel copy failed: %w", err)
			}
		}
	}
	return nil
}

func (kr *Runner) buildKernelArguments(def *KernelDefinition, scalarValues []interface{}) ([]interface{}, error) {
	args := []interface{}{kr.PooledMemory["K"]}
	for _, p := range def.Parameters {
		if p.Direction == builder.DirectionScalar {
			continue
		}
		args = append(args, kr.PooledMemory[p.Name+"_global"], kr.PooledMemory[p.Name+"_offsets"])
	}
	scalarIdx := 0
	for _, p := range def.Parameters {
		if p.Direction != builder.DirectionScalar {
			continue
		}
		v := p.HostBinding
		if scalarIdx < len(scalarValues) {
			v = scalarValues[scalarIdx]
			scalarIdx++
		}
		if v == nil {
			return nil, fmt.Errorf("no value provided for scalar %s", p.Name)
		}
		arg, err := kr.scalarArg(v)
		if err != nil {
			return nil, fmt.Errorf("scalar %s: %w", p.Name, err)
		}
		args = append(args, arg)
	}
	return args, nil
}

// scalarArg converts v to the device width of its kind
func (kr *Runner) scalarArg(v interface{}) (interface{}, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		return kr.intArg(int64(x)), nil
	case int32:
		return kr.intArg(int64(x)), nil
	case int64:
		return kr.intArg(x), nil
	default:
		return nil, fmt.Errorf("unsupported scalar type %T", v)
	}
	if kr.FloatType == builder.Float32 {
		return float32(f), nil
	}
	return f, nil
}

func (kr *Runner) intArg(n int64) interface{} {
	if kr.IntType == builder.INT32 {
		return int32(n)
	}
	return n
}

// Free releases all kernels and device memory owned by the runner
func (kr *Runner) Free() {
	for _, kernel := range kr.Kernels {
		kernel.Free()
	}
	for _, mem := range kr.PooledMemory {
		mem.Free()
	}
	kr.Kernels = make(map[string]*gocca.OCCAKernel)
	kr.PooledMemory = make(map[string]*gocca.OCCAMemory)
}

// deviceType is the on-device type for host data of type t
func (kr *Runner) deviceType(t builder.DataType) builder.DataType {
	switch t {
	case builder.INT32, builder.INT64:
		return kr.IntType
	default:
		return kr.FloatType
	}
}

func (kr *Runner) allocateArray(p *builder.ParamSpec) error {
	devType := kr.deviceType(p.DataType)
	total := int64(kr.GetTotalElements())
	if p.Size%total != 0 {
		return fmt.Errorf("array %s: %d values do not split evenly over %d elements", p.Name, p.Size, total)
	}
	if err := kr.checkPartitionLengths(p, p.Size/total); err != nil {
		return err
	}
	if _, exists := kr.PooledMemory[p.Name+"_global"]; exists {
		if kr.arrayTypes[p.Name] != devType {
			return fmt.Errorf("array %s already allocated with a different type", p.Name)
		}
		return nil
	}

	spec := builder.ArraySpec{
		Name:      p.Name,
		Size:      p.Size * builder.SizeOfType(devType),
		Alignment: p.Alignment,
		DataType:  devType,
		IsOutput:  !p.IsConst(),
	}
	offsets, totalSize := kr.CalculateAlignedOffsetsAndSize(spec)
	kr.PooledMemory[p.Name+"_global"] = kr.Device.Malloc(totalSize, nil, nil)
	kr.PooledMemory[p.Name+"_offsets"] = kr.mallocInts(offsets)
	kr.hostOffsets[p.Name] = offsets
	kr.arrayTypes[p.Name] = devType
	kr.AllocatedArrays = append(kr.AllocatedArrays, p.Name)
	return nil
}

func (kr *Runner) checkPartitionLengths(p *builder.ParamSpec, perElement int64) error {
	n := partitionCount(p.HostBinding)
	if n < 0 {
		return fmt.Errorf("array %s: binding %T is not partitioned", p.Name, p.HostBinding)
	}
	if n != kr.NumPartitions {
		return fmt.Errorf("array %s: %d partitions bound, runner has %d", p.Name, n, kr.NumPartitions)
	}
	for i, k := range kr.K {
		if got := partitionLen(p.HostBinding, i); int64(got) != int64(k)*perElement {
			return fmt.Errorf("array %s partition %d: %d values, want %d", p.Name, i, got, int64(k)*perElement)
		}
	}
	return nil
}

// mallocInts places integer data on the device at the runner's int width
func (kr *Runner) mallocInts(v []int64) *gocca.OCCAMemory {
	if kr.IntType == builder.INT32 {
		v32 := convert[int32](v)
		return kr.Device.Malloc(int64(len(v32)*4), unsafe.Pointer(&v32[0]), nil)
	}
	return kr.Device.Malloc(int64(len(v)*8), unsafe.Pointer(&v[0]), nil)
}

func toInt64(k []int) []int64 {
	out := make([]int64, len(k))
	for i, v := range k {
		out[i] = int64(v)
	}
	return out
}
