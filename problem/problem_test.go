package problem

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/utl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/FEMKernel/element"
	"github.com/notargets/FEMKernel/mesh"
	"github.com/notargets/FEMKernel/tensor"
	"github.com/notargets/FEMKernel/weakform"
)

var (
	u    = tensor.NewField("u", 1)
	T    = tensor.NewField("T", 0)
	text = tensor.NewExternalField("Text", 0)
	quad = element.NewLagrange(element.Rectangle, 1)
)

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.SetDefault()
	require.NoError(t, cfg.PostProcess())
	chk.Float64(t, "theta", 1e-15, cfg.Theta, 1)
	assert.Equal(t, 20, cfg.Newton.MaxIt)
	chk.Float64(t, "shrink", 1e-15, cfg.Step.Shrink, 0.5)

	cfg.ThGalerkin = true
	require.NoError(t, cfg.PostProcess())
	chk.Float64(t, "theta", 1e-15, cfg.Theta, 2.0/3.0)

	cfg.ThGalerkin, cfg.ThLiniger = false, true
	require.NoError(t, cfg.PostProcess())
	chk.Float64(t, "theta", 1e-15, cfg.Theta, 0.878)

	for _, bad := range []func(c *Config){
		func(c *Config) { c.Theta = 0 },
		func(c *Config) { c.Step.DtMin = 2 },
		func(c *Config) { c.Step.Shrink = 1 },
		func(c *Config) { c.Step.Grow = 0.5 },
		func(c *Config) { c.Stop.Rates = map[string]float64{"T": -1} },
	} {
		var c Config
		c.SetDefault()
		bad(&c)
		assert.Error(t, c.PostProcess())
	}
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"theta": 0.5,
		"newton": {"maxit": 7},
		"step": {"dt": 0.1, "dtmin": 0.001},
		"stop": {"rates": {"T": 1e-3}}
	}`), 0o644))
	cfg, err := ReadConfig(path)
	require.NoError(t, err)
	chk.Float64(t, "theta", 1e-15, cfg.Theta, 0.5)
	assert.Equal(t, 7, cfg.Newton.MaxIt)
	chk.Float64(t, "fbtol", 1e-20, cfg.Newton.FbTol, 1e-8) // default kept
	chk.Float64(t, "dt", 1e-15, cfg.Step.Dt, 0.1)
	assert.Equal(t, map[string]float64{"T": 1e-3}, cfg.Stop.Rates)
	assert.True(t, cfg.Linear.Jacobi)

	require.NoError(t, os.WriteFile(path, []byte(`{"step": {"dt": -1}}`), 0o644))
	_, err = ReadConfig(path)
	assert.Error(t, err)
	_, err = ReadConfig(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestState_Theta(t *testing.T) {
	s := NewState(2)
	s.X[0], s.X[1] = 1, 2
	s.Xdot[0] = 4
	s.T = 1
	s.Commit()

	// θ = 1/2, Δt = 0.5: β1 = 4, β2 = 1
	s.Predict(4, 1)
	assert.Equal(t, []float64{8, 8}, s.Psi)
	assert.Equal(t, []float64{-4, 0}, s.Xdot)

	s.X[0] = 3
	s.T = 1.5
	s.Rates(4)
	assert.Equal(t, []float64{4, 0}, s.Xdot)

	s.Restore()
	assert.Equal(t, []float64{1, 2}, s.X)
	assert.Equal(t, []float64{4, 0}, s.Xdot)
	assert.Equal(t, 1., s.T)
}

// two unit squares side by side sharing points 1 and 4
func twoSquares(t *testing.T) *mesh.Mesh {
	m, err := mesh.New(2, [][]float64{{0, 0}, {1, 0}, {2, 0}, {0, 1}, {1, 1}, {2, 1}}, text)
	require.NoError(t, err)
	return m
}

func TestNewContext(t *testing.T) {
	m := twoSquares(t)
	hot := &mesh.Region{Name: "hot", Scheme: element.NewLagrange(element.Line, 1), Facets: [][]int{{2, 5}}}
	solid := &WorkPiece{
		Body: &mesh.Body{Name: "solid", Scheme: quad, Elements: [][]int{{0, 1, 3, 4}}, Fields: []*tensor.Field{u, T}},
		Form: weakform.New("solid", weakform.ThermoElasticity(u, T)),
	}
	gas := &WorkPiece{
		Body: &mesh.Body{Name: "gas", Scheme: quad, Elements: [][]int{{1, 2, 4, 5}}, Fields: []*tensor.Field{T},
			Regions: []*mesh.Region{hot}},
		Form:  weakform.New("gas", weakform.Heat(T)).OnBoundary("hot", weakform.Convection(T, text)),
		Order: 3,
	}
	ctx, err := NewContext(m, nil, solid, gas)
	require.NoError(t, err)
	assert.Equal(t, []*tensor.Field{u, T}, ctx.Fields)
	// 4 solid points with 3 unknowns, 2 gas-only points with 1
	assert.Equal(t, 14, ctx.DOFs.NumDOF)
	assert.Len(t, ctx.State.X, 14)
	assert.Len(t, ctx.FieldDOFs("u"), 8)
	assert.Len(t, ctx.FieldDOFs("T"), 6)
	chk.Float64(t, "theta", 1e-15, ctx.Config.Theta, 1)

	ctx.Fill("T", 0, func(x []float64) float64 { return 10 * x[0] })
	v, ok := ctx.DOFs.Value(ctx.State.X, 5, "T", 0)
	assert.True(t, ok)
	assert.Equal(t, 20., v)

	rule, err := gas.Rule(quad)
	require.NoError(t, err)
	assert.Equal(t, 9, rule.Len())

	sch, err := NewSchedule("Text", 0, []int{2, 5}, "rmp", utl.Params{
		&utl.P{N: "ca", V: 0}, &utl.P{N: "cb", V: 100}, &utl.P{N: "ta", V: 0}, &utl.P{N: "tb", V: 2},
	})
	require.NoError(t, err)
	ctx.AddSchedule(sch)
	ctx.ApplySchedules(0.5)
	chk.Float64(t, "Text", 1e-12, m.External(5, "Text", 0), 25)
	ctx.ApplySchedules(3)
	chk.Float64(t, "Text", 1e-12, m.External(2, "Text", 0), 100)
	assert.Equal(t, 0., m.External(0, "Text", 0))
}

func TestNewContext_Errors(t *testing.T) {
	body := func() *mesh.Body {
		return &mesh.Body{Name: "b", Scheme: quad, Elements: [][]int{{0, 1, 3, 4}}, Fields: []*tensor.Field{T}}
	}
	_, err := NewContext(twoSquares(t), nil)
	assert.Error(t, err)
	_, err = NewContext(twoSquares(t), nil, &WorkPiece{Body: body()})
	assert.Error(t, err)
	_, err = NewContext(twoSquares(t), nil, &WorkPiece{Body: body(),
		Form: weakform.New("f", weakform.Heat(T)).OnBoundary("nowhere", weakform.Convection(T, text))})
	assert.Error(t, err)

	_, err = NewSchedule("Text", 0, nil, "no-such-function", nil)
	assert.Error(t, err)
}

func TestNewTimeFunc(t *testing.T) {
	rmp, err := NewTimeFunc("rmp", utl.Params{
		&utl.P{N: "ca", V: 10}, &utl.P{N: "cb", V: 20}, &utl.P{N: "ta", V: 1}, &utl.P{N: "tb", V: 3},
	})
	require.NoError(t, err)
	chk.Float64(t, "before", 1e-15, rmp(0), 10)
	chk.Float64(t, "middle", 1e-15, rmp(2), 15)
	chk.Float64(t, "after", 1e-15, rmp(5), 20)

	lin, err := NewTimeFunc("lin", utl.Params{&utl.P{N: "m", V: 2}, &utl.P{N: "ts", V: 1}})
	require.NoError(t, err)
	chk.Float64(t, "lin", 1e-15, lin(4), 6)

	sin, err := NewTimeFunc("sin", utl.Params{&utl.P{N: "a", V: 2}, &utl.P{N: "b", V: math.Pi}, &utl.P{N: "c", V: 1}})
	require.NoError(t, err)
	chk.Float64(t, "sin", 1e-12, sin(0.5), 3)

	_, err = NewTimeFunc("rmp", utl.Params{&utl.P{N: "ca", V: 0}})
	assert.ErrorContains(t, err, `"cb"`)
	_, err = NewTimeFunc("rmp", utl.Params{
		&utl.P{N: "ca", V: 0}, &utl.P{N: "cb", V: 1}, &utl.P{N: "ta", V: 2}, &utl.P{N: "tb", V: 2},
	})
	assert.Error(t, err)
	_, err = NewSchedule("Text", 0, nil, "cte", nil)
	assert.ErrorContains(t, err, "schedule of Text")
}
