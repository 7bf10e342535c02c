package runner

import (
	"fmt"
	"unsafe"

	"github.com/notargets/FEMKernel/runner/builder"
	"github.com/notargets/gocca"
)

type number interface {
	~float32 | ~float64 | ~int32 | ~int64
}

func convert[D, S number](src []S) []D {
	out := make([]D, len(src))
	for i, v := range src {
		out[i] = D(v)
	}
	return out
}

// copyToDevice writes each host partition at its aligned device offset,
// converting to the device precision on the way.
func (kr *Runner) copyToDevice(p *builder.ParamSpec) error {
	mem := kr.PooledMemory[p.Name+"_global"]
	offsets, t := kr.hostOffsets[p.Name], kr.arrayTypes[p.Name]
	switch data := p.HostBinding.(type) {
	case [][]float64:
		upload(mem, data, offsets, t)
	case [][]float32:
		upload(mem, data, offsets, t)
	case [][]int64:
		upload(mem, data, offsets, t)
	case [][]int32:
		upload(mem, data, offsets, t)
	default:
		return fmt.Errorf("unsupported binding %T for %s", p.HostBinding, p.Name)
	}
	return nil
}

// copyFromDevice reads each device partition back into its host slice
func (kr *Runner) copyFromDevice(p *builder.ParamSpec) error {
	mem := kr.PooledMemory[p.Name+"_global"]
	offsets, t := kr.hostOffsets[p.Name], kr.arrayTypes[p.Name]
	switch data := p.HostBinding.(type) {
	case [][]float64:
		download(mem, data, offsets, t)
	case [][]float32:
		download(mem, data, offsets, t)
	case [][]int64:
		download(mem, data, offsets, t)
	case [][]int32:
		download(mem, data, offsets, t)
	default:
		return fmt.Errorf("unsupported binding %T for %s", p.HostBinding, p.Name)
	}
	return nil
}

func upload[S number](mem *gocca.OCCAMemory, parts [][]S, offsets []int64, t builder.DataType) {
	for i, part := range parts {
		if len(part) == 0 {
			continue
		}
		off := offsets[i] * builder.SizeOfType(t)
		switch t {
		case builder.Float32:
			putAt(mem, convert[float32](part), off)
		case builder.Float64:
			putAt(mem, convert[float64](part), off)
		case builder.INT32:
			putAt(mem, convert[int32](part), off)
		default:
			putAt(mem, convert[int64](part), off)
		}
	}
}

func download[S number](mem *gocca.OCCAMemory, parts [][]S, offsets []int64, t builder.DataType) {
	for i, part := range parts {
		if len(part) == 0 {
			continue
		}
		off := offsets[i] * builder.SizeOfType(t)
		switch t {
		case builder.Float32:
			getAt[float32](mem, part, off)
		case builder.Float64:
			getAt[float64](mem, part, off)
		case builder.INT32:
			getAt[int32](mem, part, off)
		default:
			getAt[int64](mem, part, off)
		}
	}
}

func putAt[D number](mem *gocca.OCCAMemory, buf []D, offsetBytes int64) {
	bytes := int64(len(buf)) * int64(unsafe.Sizeof(buf[0]))
	mem.CopyFromWithOffset(unsafe.Pointer(&buf[0]), bytes, offsetBytes)
}

func getAt[D, S number](mem *gocca.OCCAMemory, part []S, offsetBytes int64) {
	buf := make([]D, len(part))
	bytes := int64(len(buf)) * int64(unsafe.Sizeof(buf[0]))
	mem.CopyToWithOffset(unsafe.Pointer(&buf[0]), bytes, offsetBytes)
	for j := range part {
		part[j] = S(buf[j])
	}
}

// partitionCount returns the number of partitions in a binding, or -1 when
// the binding is not partitioned data.
func partitionCount(binding interface{}) int {
	switch data := binding.(type) {
	case [][]float64:
		return len(data)
	case [][]float32:
		return len(data)
	case [][]int64:
		return len(data)
	case [][]int32:
		return len(data)
	}
	return -1
}

func partitionLen(binding interface{}, i int) int {
	switch data := binding.(type) {
	case [][]float64:
		return len(data[i])
	case [][]float32:
		return len(data[i])
	case [][]int64:
		return len(data[i])
	case [][]int32:
		return len(data[i])
	}
	return 0
}
