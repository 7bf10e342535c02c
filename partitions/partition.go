package partitions

import (
	"fmt"
)

// Partition represents a collection of elements that execute together
// as one @outer iteration of a device kernel
type Partition struct {
	ID int

	Elements    []int // Batch element indices in this partition, in device order
	NumElements int   // Actual number of active elements
	MaxElements int   // Padded size for OCCA @inner loop uniformity
}

// PartitionLayout is the decomposition of one batch of elements
type PartitionLayout struct {
	Partitions []Partition

	KpartMax      int // max(NumElements) across all partitions for OCCA
	TotalElements int
	NumPartitions int

	// Element to partition mapping
	EToP []int // Length TotalElements: element k belongs to partition EToP[k]
}

// K returns the per-partition element counts passed to kernels
func (pl *PartitionLayout) K() []int {
	k := make([]int, pl.NumPartitions)
	for i, p := range pl.Partitions {
		k[i] = p.NumElements
	}
	return k
}

// GetPartition returns the partition containing element k
func (pl *PartitionLayout) GetPartition(elementID int) int {
	if elementID < 0 || elementID >= len(pl.EToP) {
		return -1
	}
	return pl.EToP[elementID]
}

// ValidateLayout checks partition consistency
func (pl *PartitionLayout) ValidateLayout() error {
	actualMax, total := 0, 0
	seen := make([]bool, pl.TotalElements)
	for _, p := range pl.Partitions {
		if p.NumElements > actualMax {
			actualMax = p.NumElements
		}
		if p.MaxElements != pl.KpartMax {
			return fmt.Errorf("partition %d: MaxElements %d != KpartMax %d",
				p.ID, p.MaxElements, pl.KpartMax)
		}
		if len(p.Elements) != p.NumElements {
			return fmt.Errorf("partition %d: %d elements listed, NumElements %d",
				p.ID, len(p.Elements), p.NumElements)
		}
		for _, e := range p.Elements {
			if e < 0 || e >= pl.TotalElements || seen[e] {
				return fmt.Errorf("partition %d: element %d missing or repeated", p.ID, e)
			}
			seen[e] = true
		}
		total += p.NumElements
	}
	if actualMax != pl.KpartMax {
		return fmt.Errorf("computed KpartMax %d != stored KpartMax %d",
			actualMax, pl.KpartMax)
	}
	if total != pl.TotalElements {
		return fmt.Errorf("partitions hold %d elements, layout has %d", total, pl.TotalElements)
	}
	return nil
}

// Gather reorders element-major host data (stride values per element) into
// partition order: all elements of partition 0, then partition 1, ...
func (pl *PartitionLayout) Gather(src []float64, stride int) [][]float64 {
	out := pl.Alloc(stride)
	pl.GatherInto(src, stride, out)
	return out
}

// Alloc returns zeroed partition-ordered storage for stride values per element
func (pl *PartitionLayout) Alloc(stride int) [][]float64 {
	out := make([][]float64, pl.NumPartitions)
	for i, p := range pl.Partitions {
		out[i] = make([]float64, p.NumElements*stride)
	}
	return out
}

// GatherInto is Gather into storage from Alloc, so device bindings keep
// their slices between calls.
func (pl *PartitionLayout) GatherInto(src []float64, stride int, dst [][]float64) {
	for i, p := range pl.Partitions {
		for j, e := range p.Elements {
			copy(dst[i][j*stride:(j+1)*stride], src[e*stride:(e+1)*stride])
		}
	}
}

// Scatter is the inverse of Gather.
func (pl *PartitionLayout) Scatter(parts [][]float64, stride int, dst []float64) {
	for i, p := range pl.Partitions {
		for j, e := range p.Elements {
			copy(dst[e*stride:(e+1)*stride], parts[i][j*stride:(j+1)*stride])
		}
	}
}
