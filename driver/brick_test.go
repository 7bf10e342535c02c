package driver

import (
	"testing"

	"github.com/cpmech/gosl/utl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/FEMKernel/assembly"
	"github.com/notargets/FEMKernel/kernel"
	"github.com/notargets/FEMKernel/mesh"
	"github.com/notargets/FEMKernel/problem"
	"github.com/notargets/FEMKernel/tensor"
	"github.com/notargets/FEMKernel/utils"
	"github.com/notargets/FEMKernel/weakform"
)

// A 10x1x1 bar of unit hexahedra, clamped at x = 0 by a penalty, cooled
// through y = 0 towards 0 and heated through y = 1 towards 300.
func TestRun_ThermoElasticBrick(t *testing.T) {
	if testing.Short() {
		t.Skip("end-to-end run")
	}
	pos, els, s := utils.Brick(10, 1, 1, 10, 1, 1, 1)
	require.Len(t, pos, 44)
	m, err := mesh.New(3, pos, text)
	require.NoError(t, err)

	body := &mesh.Body{Name: "bar", Scheme: s, Elements: els, Fields: []*tensor.Field{u, T}}
	facets, err := utils.BoundaryFacets(body)
	require.NoError(t, err)
	on := func(d int, v float64) [][]int {
		return utils.SelectFacets(m, facets, func(x []float64) bool { return x[d] == v })
	}
	left, front, back := on(0, 0), on(1, 0), on(1, 1)
	require.Len(t, left, 1)
	require.Len(t, front, 10)
	require.Len(t, back, 10)
	body.Regions = []*mesh.Region{
		{Name: "left", Scheme: s.FaceScheme(), Facets: left},
		{Name: "front", Scheme: s.FaceScheme(), Facets: front},
		{Name: "back", Scheme: s.FaceScheme(), Facets: back},
	}
	form := weakform.New("bar", weakform.ThermoElasticity(u, T)).
		OnBoundary("left", weakform.Penalty(u)).
		OnBoundary("front", weakform.Convection(T, text)).
		OnBoundary("back", weakform.Convection(T, text))

	cfg := config()
	cfg.Step.Dt = 1
	cfg.Step.MaxSteps = 200
	cfg.Linear.MaxIter = 20000
	cfg.Linear.MaxPasses = 100
	cfg.Stop.Rates = map[string]float64{"T": 1e-2, "u": 1e-4}
	ctx, err := problem.NewContext(m, cfg, &problem.WorkPiece{Body: body, Form: form, Params: map[string]float64{
		weakform.Lambda: 1, weakform.Mu: 1, weakform.Alpha: 1e-3, weakform.RefTemp: 0,
		weakform.Capacity: 1, weakform.Conductivity: 1, weakform.Film: 1, weakform.PenaltyCoef: 1e3,
	}})
	require.NoError(t, err)
	assert.Equal(t, 44*4, ctx.DOFs.NumDOF)

	hot, err := problem.NewSchedule("Text", 0, utils.FacetPoints(back), "cte", utl.Params{&utl.P{N: "c", V: 300}})
	require.NoError(t, err)
	ctx.AddSchedule(hot)

	as, err := assembly.New(ctx, kernel.NewSequential())
	require.NoError(t, err)
	d, err := New(ctx, as)
	require.NoError(t, err)
	var last *Snapshot
	d.Observe(ObserverFunc(func(s *Snapshot) error {
		last = s
		return nil
	}), Displaced)

	sum, err := d.Run()
	require.NoError(t, err)
	assert.True(t, sum.Stopped)
	assert.Less(t, sum.Steps, 200)
	assert.Less(t, sum.MaxRates["T"], 1e-2)
	assert.Less(t, sum.MaxRates["u"], 1e-4)

	// steady conduction across the bar: film, wall and film in series
	var tip float64
	for p, x := range pos {
		temp, ok := ctx.DOFs.Value(ctx.State.X, p, "T", 0)
		require.True(t, ok)
		want := 100 + 100*x[1]
		assert.InDelta(t, want, temp, 0.5, "point %d", p)

		ux, _ := ctx.DOFs.Value(ctx.State.X, p, "u", 0)
		switch x[0] {
		case 0:
			assert.InDelta(t, 0, ux, 1e-2, "clamped point %d", p)
		case 10:
			tip += ux / 4
		}
	}
	// mean axial growth α T̄ L
	assert.InDelta(t, 1.5, tip, 0.3)

	require.NotNil(t, last)
	assert.Equal(t, sum.Steps, last.Step)
	assert.Equal(t, Displaced, last.Transform)
	assert.InDelta(t, 10+last.Values["u"][43][0], last.Positions[43][0], 1e-12)
}
