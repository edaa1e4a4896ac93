package solver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"hydro-dispatch/internal/config"
	"hydro-dispatch/internal/lp"
	"hydro-dispatch/internal/model"
	"hydro-dispatch/internal/subproblem"
)

func TestSolveBasisRedundantRows(t *testing.T) {
	// Second row is twice the first.
	sf := standardForm{
		c: []float64{1, 2, 3},
		a: mat.NewDense(2, 3, []float64{1, 1, 1, 2, 2, 2}),
		b: []float64{4, 8},
	}
	bs, err := solveBasis(context.Background(), sf)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, bs.obj, 1e-9)
	assert.InDelta(t, 4.0, bs.z[0], 1e-9)
	require.NoError(t, sf.checkDuals(bs.y, bs.obj))
	assert.InDelta(t, 1.0, bs.y[0]+2*bs.y[1], 1e-9)
}

func TestSolveBasisNegativeRHS(t *testing.T) {
	// -z0 + z1 = -3 forces z0 >= 3.
	sf := standardForm{
		c: []float64{2, 1},
		a: mat.NewDense(1, 2, []float64{-1, 1}),
		b: []float64{-3},
	}
	bs, err := solveBasis(context.Background(), sf)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, bs.obj, 1e-9)
	assert.InDelta(t, -2.0, bs.y[0], 1e-9)
	assert.NoError(t, sf.checkDuals(bs.y, bs.obj))
}

func TestSolveBasisStatus(t *testing.T) {
	infeasible := standardForm{
		c: []float64{1},
		a: mat.NewDense(2, 1, []float64{1, 1}),
		b: []float64{1, 2},
	}
	_, err := solveBasis(context.Background(), infeasible)
	assert.Equal(t, lp.StatusInfeasible, statusOf(err).Status)

	unbounded := standardForm{
		c: []float64{-1, 0},
		a: mat.NewDense(1, 2, []float64{1, -1}),
		b: []float64{1},
	}
	_, err = solveBasis(context.Background(), unbounded)
	assert.Equal(t, lp.StatusUnbounded, statusOf(err).Status)
}

func TestSolveBasisStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sf := standardForm{
		c: []float64{1},
		a: mat.NewDense(1, 1, []float64{1}),
		b: []float64{1},
	}
	_, err := solveBasis(ctx, sf)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckDualsRejectsGap(t *testing.T) {
	sf := standardForm{
		c: []float64{1},
		a: mat.NewDense(1, 1, []float64{1}),
		b: []float64{2},
	}
	assert.NoError(t, sf.checkDuals([]float64{1}, 2))
	assert.Error(t, sf.checkDuals([]float64{0.5}, 2))
	assert.Error(t, sf.checkDuals([]float64{3}, 6))
}

func TestSimplexDualsOnRankDeficientModel(t *testing.T) {
	m := lp.New("twice")
	x := m.AddVar(lp.Key{Family: "x", Period: 1}, 0, inf, 1)
	y := m.AddVar(lp.Key{Family: "y", Period: 1}, 0, inf, 2)
	m.AddConstraint("once", []lp.Term{{Var: x, Coef: 1}, {Var: y, Coef: 1}}, lp.EQ, 4)
	m.AddConstraint("twice", []lp.Term{{Var: x, Coef: 2}, {Var: y, Coef: 2}}, lp.EQ, 8)

	sol, err := Run(context.Background(), NewSimplex(), m, Options{WantDuals: true})
	require.NoError(t, err)
	assert.InDelta(t, 4.0, sol.Objective, 1e-7)
	once, _ := sol.Dual("once")
	twice, _ := sol.Dual("twice")
	assert.InDelta(t, 1.0, once+2*twice, 1e-7)
}

// Every stage of the multi-unit case, with and without a cut, must come back
// with duals that close the duality gap.
func TestSimplexDualsOnMultiUnitStages(t *testing.T) {
	c, err := config.Load("../../examples/cases/system.yaml")
	require.NoError(t, err)

	cut := model.Cut{Stage: 0, RHS: 2000, Coefs: map[string]float64{}}
	for _, h := range c.HydroUnits() {
		cut.Coefs[h.Name] = -40
	}
	for _, s := range c.StorageUnits() {
		cut.Coefs[s.Name] = -25
	}

	for stage := 0; stage < c.Meta.Horizon; stage++ {
		for _, cuts := range [][]model.Cut{nil, {withStage(cut, stage)}} {
			m, err := subproblem.Build(c, c.StateAt(stage), cuts)
			require.NoError(t, err)

			sol, err := Run(context.Background(), NewSimplex(), m, Options{WantDuals: true})
			require.NoError(t, err, "stage %d, %d cuts", stage, len(cuts))
			require.Equal(t, lp.StatusOptimal, sol.Status)
			_, ok := sol.Dual(subproblem.BalanceRow(1))
			assert.True(t, ok)
			for _, h := range c.HydroUnits() {
				_, ok := sol.Dual(subproblem.VolumeRow(h.Name, 1))
				assert.True(t, ok, h.Name)
			}

			sf := toStandardForm(m)
			require.Empty(t, sf.decided)
			bs, err := solveBasis(context.Background(), sf)
			require.NoError(t, err)
			assert.NoError(t, sf.checkDuals(bs.y, bs.obj))
			assert.InDelta(t, sol.Objective, bs.obj+sf.offset, 1e-6*(1+sol.Objective))
		}
	}
}

func withStage(c model.Cut, stage int) model.Cut {
	c.Stage = stage
	return c
}
