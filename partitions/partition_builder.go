package partitions

import (
	"fmt"
	"math"
)

// PartitionBuilder splits a batch of elements into device partitions
type PartitionBuilder struct {
	NumElements int

	TargetPartitionSize int // Desired elements per partition
	Strategy            PartitionStrategy
}

// PartitionStrategy defines how elements are grouped
type PartitionStrategy int

const (
	BlockPartition PartitionStrategy = iota // Consecutive elements
	RoundRobin                              // Distribute cyclically
)

func (s PartitionStrategy) String() string {
	if s == RoundRobin {
		return "RoundRobin"
	}
	return "Block"
}

// BuildPartitions creates a partition layout
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.NumElements < 1 {
		return nil, fmt.Errorf("cannot partition %d elements", pb.NumElements)
	}
	numPartitions := pb.calculateNumPartitions()
	eToP := pb.partitionElements(numPartitions)
	partitions := pb.createPartitions(eToP, numPartitions)
	numPartitions = len(partitions)

	kpartMax := 0
	for _, p := range partitions {
		if p.NumElements > kpartMax {
			kpartMax = p.NumElements
		}
	}
	for i := range partitions {
		partitions[i].MaxElements = kpartMax
	}

	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      kpartMax,
		TotalElements: pb.NumElements,
		NumPartitions: numPartitions,
		EToP:          eToP,
	}
	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}
	return layout, nil
}

// calculateNumPartitions determines the partition count from the target size
func (pb *PartitionBuilder) calculateNumPartitions() int {
	size := pb.TargetPartitionSize
	if size < 1 {
		size = pb.NumElements
	}
	numPartitions := int(math.Ceil(float64(pb.NumElements) / float64(size)))
	if numPartitions < 1 {
		numPartitions = 1
	}
	return numPartitions
}

// partitionElements assigns elements to partitions
func (pb *PartitionBuilder) partitionElements(numPartitions int) []int {
	eToP := make([]int, pb.NumElements)
	switch pb.Strategy {
	case RoundRobin:
		for i := range eToP {
			eToP[i] = i % numPartitions
		}
	default:
		elementsPerPartition := int(math.Ceil(float64(pb.NumElements) / float64(numPartitions)))
		for i := range eToP {
			eToP[i] = i / elementsPerPartition
			if eToP[i] >= numPartitions {
				eToP[i] = numPartitions - 1
			}
		}
	}
	return eToP
}

// createPartitions builds partition structures from element assignments.
// Block division can leave trailing partitions empty; they are dropped.
func (pb *PartitionBuilder) createPartitions(eToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)
	for i := range partitions {
		partitions[i].ID = i
	}
	for elem, part := range eToP {
		partitions[part].Elements = append(partitions[part].Elements, elem)
		partitions[part].NumElements++
	}
	out := partitions[:0]
	for _, p := range partitions {
		if p.NumElements > 0 {
			p.ID = len(out)
			out = append(out, p)
		}
	}
	for i, p := range out {
		for _, e := range p.Elements {
			eToP[e] = i
		}
	}
	return out
}
