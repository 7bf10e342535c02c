package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestAlignedOffsets(t *testing.T) {
	kb := NewBuilder(Config{K: []int{3, 5, 2}})
	spec := ArraySpec{Name: "x", Size: 10 * 2 * 8, DataType: Float64, Alignment: CacheLineAlign}
	offsets, total := kb.CalculateAlignedOffsetsAndSize(spec)
	// partitions of 6, 10 and 4 values each start on a 64 byte boundary
	assert.Equal(t, []int64{0, 8, 24, 32}, offsets)
	assert.Equal(t, int64(256), total)

	spec.Alignment = NoAlignment
	offsets, total = kb.CalculateAlignedOffsetsAndSize(spec)
	assert.Equal(t, []int64{0, 6, 16, 20}, offsets)
	assert.Equal(t, int64(160), total)
}

func TestPreamble(t *testing.T) {
	kb := NewBuilder(Config{K: []int{4, 2}, FloatType: Float32, IntType: INT32})
	kb.AddStaticMatrix("N", mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}))
	kb.AddDefine("NP", 3)
	kb.AllocatedArrays = append(kb.AllocatedArrays, "U")
	src := kb.GeneratePreamble()

	assert.Contains(t, src, "typedef float real_t;")
	assert.Contains(t, src, "typedef int int_t;")
	assert.Contains(t, src, "#define NPART 2")
	assert.Contains(t, src, "#define KpartMax 4")
	assert.Contains(t, src, "#define NP 3")
	assert.Contains(t, src, "const float N[3][2]")
	// first column of N
	assert.Contains(t, src, "{1.0000000e+00f, 4.0000000e+00f}")
	assert.Contains(t, src, "#define U_PART(part) (U_global + U_offsets[part])")
}

func TestSignature(t *testing.T) {
	kb := NewBuilder(Config{K: []int{1}})
	params := []ParamSpec{
		Scalar("beta").Bind(1.0).Spec,
		Input("X").Bind([][]float64{{1, 2}}).Spec,
		Output("STATUS").Bind([][]int64{{0}}).Spec,
	}
	for i := range params {
		assert.NoError(t, params[i].Validate())
	}
	assert.Equal(t, int64(2), params[1].Size)
	assert.Equal(t, INT64, params[2].DataType)
	assert.Equal(t,
		"const int_t* K,\n\tconst real_t* X_global,\n\tconst int_t* X_offsets,\n\t"+
			"int_t* STATUS_global,\n\tconst int_t* STATUS_offsets,\n\tconst real_t beta",
		kb.GenerateKernelSignature(params))

	bad := Input("X").Bind([][]float64{{1}}).CopyBack().Spec
	assert.Error(t, bad.Validate())
	unbound := Scalar("s").Spec
	assert.Error(t, unbound.Validate())
}
