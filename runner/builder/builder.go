package builder

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// DataType represents the precision of numerical data
type DataType int

const (
	Float32 DataType = iota + 1
	Float64
	INT32
	INT64
)

// SizeOfType returns the byte width of one value of t
func SizeOfType(t DataType) int64 {
	switch t {
	case Float32, INT32:
		return 4
	default:
		return 8
	}
}

// AlignmentType specifies memory alignment requirements
type AlignmentType int

const (
	NoAlignment    AlignmentType = 1
	CacheLineAlign AlignmentType = 64
)

// ArraySpec defines user requirements for array allocation
type ArraySpec struct {
	Name      string
	Size      int64 // total bytes across all partitions
	Alignment AlignmentType
	DataType  DataType
	IsOutput  bool
}

// Builder manages code generation for partition-parallel kernels
type Builder struct {
	// Partition configuration
	NumPartitions int
	K             []int
	KpartMax      int // Maximum K value across all partitions

	// Type configuration
	FloatType DataType
	IntType   DataType

	// Static data to embed
	StaticMatrices map[string]mat.Matrix
	Defines        map[string]string

	// Array tracking for macro generation
	AllocatedArrays []string

	// Generated code
	KernelPreamble string
}

// Config holds configuration for creating a Builder
type Config struct {
	K         []int
	FloatType DataType
	IntType   DataType
}

// NewBuilder creates a new Builder instance
func NewBuilder(cfg Config) *Builder {
	if len(cfg.K) == 0 {
		panic("K array cannot be empty")
	}
	kpartMax := 0
	for _, k := range cfg.K {
		if k > kpartMax {
			kpartMax = k
		}
	}
	floatType := cfg.FloatType
	if floatType == 0 {
		floatType = Float64
	}
	intType := cfg.IntType
	if intType == 0 {
		intType = INT64
	}
	kb := &Builder{
		NumPartitions:  len(cfg.K),
		K:              make([]int, len(cfg.K)),
		KpartMax:       kpartMax,
		FloatType:      floatType,
		IntType:        intType,
		StaticMatrices: make(map[string]mat.Matrix),
		Defines:        make(map[string]string),
	}
	copy(kb.K, cfg.K)
	return kb
}

// AddStaticMatrix adds a matrix to be embedded as static const in kernels
func (kb *Builder) AddStaticMatrix(name string, m mat.Matrix) {
	kb.StaticMatrices[name] = m
}

// AddDefine adds a preprocessor constant to the preamble
func (kb *Builder) AddDefine(name string, value interface{}) {
	kb.Defines[name] = fmt.Sprint(value)
}

// GetTotalElements returns sum of all K values
func (kb *Builder) GetTotalElements() int {
	total := 0
	for _, k := range kb.K {
		total += k
	}
	return total
}

// CalculateAlignedOffsetsAndSize computes partition offsets with alignment.
// Offsets are in units of values so kernels can use ptr + offset directly.
func (kb *Builder) CalculateAlignedOffsetsAndSize(spec ArraySpec) ([]int64, int64) {
	offsets := make([]int64, kb.NumPartitions+1)
	valueSize := SizeOfType(spec.DataType)
	valuesPerElement := spec.Size / int64(kb.GetTotalElements()) / valueSize

	alignment := int64(spec.Alignment)
	if alignment == 0 {
		alignment = int64(NoAlignment)
	}
	align := func(b int64) int64 {
		if b%alignment != 0 {
			b = ((b + alignment - 1) / alignment) * alignment
		}
		return b
	}

	currentByteOffset := int64(0)
	for i := 0; i < kb.NumPartitions; i++ {
		currentByteOffset = align(currentByteOffset)
		offsets[i] = currentByteOffset / valueSize
		currentByteOffset += int64(kb.K[i]) * valuesPerElement * valueSize
	}
	currentByteOffset = align(currentByteOffset)
	offsets[kb.NumPartitions] = currentByteOffset / valueSize
	return offsets, offsets[kb.NumPartitions] * valueSize
}

// GeneratePreamble generates the kernel preamble with static data and utilities
func (kb *Builder) GeneratePreamble() string {
	var sb strings.Builder
	sb.WriteString(kb.generateTypeDefinitions())
	sb.WriteString(kb.generateStaticMatrices())
	sb.WriteString(kb.generatePartitionMacros())
	kb.KernelPreamble = sb.String()
	return kb.KernelPreamble
}

func (kb *Builder) generateTypeDefinitions() string {
	var sb strings.Builder

	floatTypeStr := "double"
	floatSuffix := ""
	if kb.FloatType == Float32 {
		floatTypeStr = "float"
		floatSuffix = "f"
	}
	intTypeStr := "long"
	if kb.IntType == INT32 {
		intTypeStr = "int"
	}

	sb.WriteString(fmt.Sprintf("typedef %s real_t;\n", floatTypeStr))
	sb.WriteString(fmt.Sprintf("typedef %s int_t;\n", intTypeStr))
	sb.WriteString(fmt.Sprintf("#define REAL_ZERO 0.0%s\n", floatSuffix))
	sb.WriteString(fmt.Sprintf("#define REAL_ONE 1.0%s\n", floatSuffix))
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("#define NPART %d\n", kb.NumPartitions))
	sb.WriteString(fmt.Sprintf("#define KpartMax %d\n", kb.KpartMax))
	for _, name := range sortedKeys(kb.Defines) {
		sb.WriteString(fmt.Sprintf("#define %s %s\n", name, kb.Defines[name]))
	}
	sb.WriteString("\n")
	return sb.String()
}

func (kb *Builder) generateStaticMatrices() string {
	if len(kb.StaticMatrices) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("// Static matrices\n")
	names := make([]string, 0, len(kb.StaticMatrices))
	for name := range kb.StaticMatrices {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sb.WriteString(kb.formatStaticMatrix(name, kb.StaticMatrices[name]))
	}
	return sb.String()
}

// formatStaticMatrix writes m transposed, as const real[cols][rows], so that
// name[j][i] reads row i, column j and the first index varies slowest.
func (kb *Builder) formatStaticMatrix(name string, m mat.Matrix) string {
	rows, cols := m.Dims()
	var sb strings.Builder

	typeStr := "double"
	if kb.FloatType == Float32 {
		typeStr = "float"
	}
	sb.WriteString(fmt.Sprintf("// Matrix %s stored in column-major format\n", name))
	sb.WriteString(fmt.Sprintf("const %s %s[%d][%d] = {\n", typeStr, name, cols, rows))
	for j := 0; j < cols; j++ {
		sb.WriteString("    {")
		for i := 0; i < rows; i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			if kb.FloatType == Float32 {
				sb.WriteString(fmt.Sprintf("%.7ef", m.At(i, j)))
			} else {
				sb.WriteString(fmt.Sprintf("%.15e", m.At(i, j)))
			}
		}
		sb.WriteString("}")
		if j < cols-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("};\n\n")
	return sb.String()
}

func (kb *Builder) generatePartitionMacros() string {
	if len(kb.AllocatedArrays) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("// Partition access macros\n")
	for _, arrayName := range kb.AllocatedArrays {
		sb.WriteString(fmt.Sprintf("#define %s_PART(part) (%s_global + %s_offsets[part])\n",
			arrayName, arrayName, arrayName))
	}
	sb.WriteString("\n")
	return sb.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
