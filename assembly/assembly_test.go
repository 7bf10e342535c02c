package assembly

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/FEMKernel/element"
	"github.com/notargets/FEMKernel/kernel"
	"github.com/notargets/FEMKernel/mesh"
	"github.com/notargets/FEMKernel/problem"
	"github.com/notargets/FEMKernel/tensor"
	"github.com/notargets/FEMKernel/weakform"
)

var (
	u    = tensor.NewField("u", 1)
	T    = tensor.NewField("T", 0)
	text = tensor.NewExternalField("Text", 0)
)

var material = map[string]float64{
	weakform.Lambda: 2, weakform.Mu: 1, weakform.Alpha: 0.1, weakform.RefTemp: 0.5,
	weakform.Capacity: 3, weakform.Conductivity: 1.5, weakform.Film: 0.8,
}

// plate builds an nx by ny grid of unit bilinear quads solving the
// thermo-elastic form, with a convective right edge.
func plate(t *testing.T, nx, ny int) *problem.Context {
	var pos [][]float64
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			pos = append(pos, []float64{float64(i), float64(j) + 0.1*float64(i*j)})
		}
	}
	id := func(i, j int) int { return j*(nx+1) + i }
	var els, right [][]int
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			els = append(els, []int{id(i, j), id(i+1, j), id(i, j+1), id(i+1, j+1)})
		}
		right = append(right, []int{id(nx, j), id(nx, j+1)})
	}
	m, err := mesh.New(2, pos, text)
	require.NoError(t, err)
	body := &mesh.Body{
		Name: "plate", Scheme: element.NewLagrange(element.Rectangle, 1), Elements: els,
		Fields:  []*tensor.Field{u, T},
		Regions: []*mesh.Region{{Name: "right", Scheme: element.NewLagrange(element.Line, 1), Facets: right}},
	}
	form := weakform.New("plate", weakform.ThermoElasticity(u, T)).
		OnBoundary("right", weakform.Convection(T, text))
	ctx, err := problem.NewContext(m, nil, &problem.WorkPiece{Body: body, Form: form, Params: material})
	require.NoError(t, err)

	rnd := rand.New(rand.NewSource(3))
	for i := range ctx.State.X {
		ctx.State.X[i] = rnd.Float64() - 0.5
		ctx.State.Xdot[i] = rnd.Float64() - 0.5
	}
	for p := range m.Points {
		m.SetExternal(p, "Text", 0, rnd.Float64())
	}
	return ctx
}

func TestAssemble_TwoLineElements(t *testing.T) {
	m, err := mesh.New(1, [][]float64{{0}, {1}, {2}})
	require.NoError(t, err)
	body := &mesh.Body{Name: "bar", Scheme: element.NewLagrange(element.Line, 1),
		Elements: [][]int{{0, 1}, {1, 2}}, Fields: []*tensor.Field{T}}
	ctx, err := problem.NewContext(m, nil, &problem.WorkPiece{Body: body, Form: weakform.New("bar", weakform.Heat(T)),
		Params: map[string]float64{weakform.Capacity: 0, weakform.Conductivity: 1}})
	require.NoError(t, err)
	copy(ctx.State.X, []float64{0, 1, 2})

	as, err := New(ctx, kernel.NewSequential())
	require.NoError(t, err)
	sys, err := as.Assemble(1)
	require.NoError(t, err)
	chk.Array(t, "R", 1e-13, sys.Residual, []float64{-1, 0, 1})
	want := [][]float64{{1, -1, 0}, {-1, 2, -1}, {0, -1, 1}}
	for i := range want {
		for j := range want[i] {
			chk.Float64(t, "K", 1e-13, sys.Tangent.At(i, j), want[i][j])
		}
	}
	assert.Equal(t, map[string]int{"bar": 2}, as.Cells())
}

// Two bodies share point 1 and a form name; each keeps its own group.
func TestAssemble_TwoBodiesSharingPoint(t *testing.T) {
	m, err := mesh.New(1, [][]float64{{0}, {1}, {2}})
	require.NoError(t, err)
	line := element.NewLagrange(element.Line, 1)
	heat := weakform.New("heat", weakform.Heat(T))
	a := &mesh.Body{Name: "a", Scheme: line, Elements: [][]int{{0, 1}}, Fields: []*tensor.Field{T}}
	b := &mesh.Body{Name: "b", Scheme: line, Elements: [][]int{{1, 2}}, Fields: []*tensor.Field{T}}
	ctx, err := problem.NewContext(m, nil,
		&problem.WorkPiece{Body: a, Form: heat, Params: map[string]float64{weakform.Capacity: 0, weakform.Conductivity: 1}},
		&problem.WorkPiece{Body: b, Form: heat, Params: map[string]float64{weakform.Capacity: 0, weakform.Conductivity: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, ctx.DOFs.NumDOF)
	copy(ctx.State.X, []float64{0, 1, 3})

	var groups []string
	as, err := New(ctx, kernel.NewSequential(), Options{Order: func(g string, n int) []int {
		groups = append(groups, g)
		return []int{0}
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, groups)
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, as.Cells())

	sys, err := as.Assemble(1)
	require.NoError(t, err)
	chk.Array(t, "R", 1e-13, sys.Residual, []float64{-1, -3, 4})
	want := [][]float64{{1, -1, 0}, {-1, 3, -2}, {0, -2, 2}}
	for i := range want {
		for j := range want[i] {
			chk.Float64(t, "K", 1e-13, sys.Tangent.At(i, j), want[i][j])
		}
	}
}

func TestAssemble_PermutationInvariance(t *testing.T) {
	ctx := plate(t, 3, 2)
	ref, err := New(ctx, kernel.NewSequential())
	require.NoError(t, err)
	want, err := ref.Assemble(0.7)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"plate": 6, "plate/right": 2}, ref.Cells())

	rnd := rand.New(rand.NewSource(11))
	orders := map[string]func(string, int) []int{
		"reversed": func(_ string, n int) []int {
			out := make([]int, n)
			for i := range out {
				out[i] = n - 1 - i
			}
			return out
		},
		"shuffled": func(_ string, n int) []int { return rnd.Perm(n) },
	}
	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			as, err := New(ctx, kernel.NewSequential(), Options{BatchSize: 4, Order: order})
			require.NoError(t, err)
			got, err := as.Assemble(0.7)
			require.NoError(t, err)
			chk.Array(t, "R", 1e-12, got.Residual, want.Residual)
			n := as.NumDOF()
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					assert.InDelta(t, want.Tangent.At(i, j), got.Tangent.At(i, j), 1e-12, "K[%d][%d]", i, j)
				}
			}
		})
	}
}

func TestAssemble_TangentMatchesFiniteDifferences(t *testing.T) {
	ctx := plate(t, 2, 2)
	as, err := New(ctx, kernel.NewSequential())
	require.NoError(t, err)
	beta := 2.
	sys, err := as.Assemble(beta)
	require.NoError(t, err)

	st := ctx.State
	h := 1e-6
	for j := 0; j < as.NumDOF(); j++ {
		x0, v0 := st.X[j], st.Xdot[j]
		st.X[j], st.Xdot[j] = x0+h, v0+beta*h
		plus, err := as.Assemble(beta)
		require.NoError(t, err)
		st.X[j], st.Xdot[j] = x0-h, v0-beta*h
		minus, err := as.Assemble(beta)
		require.NoError(t, err)
		st.X[j], st.Xdot[j] = x0, v0
		for i := range plus.Residual {
			fd := (plus.Residual[i] - minus.Residual[i]) / (2 * h)
			k := sys.Tangent.At(i, j)
			assert.InDelta(t, fd, k, 1e-6*math.Max(1, math.Abs(fd)), "K[%d][%d]", i, j)
		}
	}
}

func TestAssemble_Errors(t *testing.T) {
	ctx := plate(t, 2, 1)
	_, err := New(ctx, kernel.NewSequential(), Options{Order: func(string, int) []int { return []int{0, 0} }})
	assert.Error(t, err)

	// fold the second cell over the first
	ctx.Mesh.Points[5].X[0] = -3
	as, err := New(ctx, kernel.NewSequential())
	require.NoError(t, err)
	_, err = as.Assemble(1)
	var ce *kernel.CellError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, 1, ce.Cell)
}
