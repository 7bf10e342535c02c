package runner

import (
	"fmt"
	"testing"

	"github.com/notargets/FEMKernel/runner/builder"
	"github.com/notargets/FEMKernel/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestRunner_Creation(t *testing.T) {
	t.Run("NilDevice", func(t *testing.T) {
		assert.Panics(t, func() { NewRunner(nil, builder.Config{K: []int{10}}) })
	})

	t.Run("EmptyKArray", func(t *testing.T) {
		device := utils.CreateTestDevice()
		defer device.Free()
		assert.Panics(t, func() { NewRunner(device, builder.Config{K: []int{}}) })
	})
}

func TestRunner_KpartMaxComputation(t *testing.T) {
	device := utils.CreateTestDevice()
	defer device.Free()

	testCases := []struct {
		name         string
		k            []int
		expectedKMax int
	}{
		{"uniform", []int{10, 10, 10}, 10},
		{"ascending", []int{5, 10, 15, 20}, 20},
		{"mixed", []int{10, 25, 15, 30, 20}, 30},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			kp := NewRunner(device, builder.Config{K: tc.k})
			defer kp.Free()
			assert.Equal(t, tc.expectedKMax, kp.KpartMax)
			assert.Equal(t, len(tc.k), kp.NumPartitions)
		})
	}
}

const scaleBody = `
	for (int part = 0; part < NPART; ++part; @outer) {
		const real_t* x = x_PART(part);
		real_t* y = y_PART(part);
		for (int elem = 0; elem < KpartMax; ++elem; @inner) {
			if (elem < K[part]) {
				for (int i = 0; i < STRIDE; ++i) {
					y[elem*STRIDE + i] = alpha * x[elem*STRIDE + i] + W[0][i];
				}
			}
		}
	}
`

func partitioned(k []int, stride int, f func(part, i int) float64) [][]float64 {
	out := make([][]float64, len(k))
	for p, n := range k {
		out[p] = make([]float64, n*stride)
		for i := range out[p] {
			out[p][i] = f(p, i)
		}
	}
	return out
}

func runScale(t *testing.T, cfg builder.Config, tol float64) {
	device := utils.CreateTestDevice()
	defer device.Free()

	kp := NewRunner(device, cfg)
	defer kp.Free()

	const stride = 2
	x := partitioned(cfg.K, stride, func(p, i int) float64 { return float64(100*p + i) })
	y := partitioned(cfg.K, stride, func(int, int) float64 { return -1 })

	kp.AddDefine("STRIDE", stride)
	// W[0][i] is row i, column 0
	kp.AddStaticMatrix("W", mat.NewDense(stride, 1, []float64{0.25, 0.5}))

	err := kp.DefineKernel("scale",
		builder.Input("x").Bind(x).CopyTo().Align(builder.CacheLineAlign),
		builder.Output("y").Bind(y).CopyBack(),
		builder.Scalar("alpha").Bind(2.0),
	)
	require.NoError(t, err)

	signature, err := kp.GetKernelSignature("scale")
	require.NoError(t, err)
	assert.Contains(t, signature, "const real_t* x_global")
	assert.Contains(t, signature, "real_t* y_global")

	src := fmt.Sprintf("@kernel void scale(\n\t%s\n) {%s}\n", signature, scaleBody)
	_, err = kp.BuildKernel(src, "scale")
	require.NoError(t, err)

	require.NoError(t, kp.RunKernel("scale"))
	for p := range y {
		for i, v := range y[p] {
			want := 2*x[p][i] + []float64{0.25, 0.5}[i%stride]
			assert.InDelta(t, want, v, tol, "partition %d value %d", p, i)
		}
	}

	// scalars passed to RunKernel override the binding
	require.NoError(t, kp.RunKernel("scale", 3.0))
	assert.InDelta(t, 3*x[1][0]+0.25, y[1][0], tol)
}

func TestRunner_PartitionedKernel(t *testing.T) {
	runScale(t, builder.Config{K: []int{3, 5, 2}}, 1e-12)
}

func TestRunner_Float32Device(t *testing.T) {
	runScale(t, builder.Config{K: []int{4, 1}, FloatType: builder.Float32, IntType: builder.INT32}, 1e-4)
}

func TestRunner_DefineKernelErrors(t *testing.T) {
	device := utils.CreateTestDevice()
	defer device.Free()

	kp := NewRunner(device, builder.Config{K: []int{2, 2}})
	defer kp.Free()

	ragged := [][]float64{make([]float64, 4), make([]float64, 6)}
	assert.Error(t, kp.DefineKernel("bad", builder.Input("x").Bind(ragged)))

	flat := make([]float64, 8)
	assert.Error(t, kp.DefineKernel("bad", builder.Input("x").Bind(flat)))

	assert.Error(t, kp.DefineKernel("bad", builder.Scalar("s")))

	_, err := kp.GetKernelSignature("bad")
	assert.Error(t, err)
	assert.Error(t, kp.RunKernel("bad"))
}
