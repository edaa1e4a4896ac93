package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydro-dispatch/internal/model"
	"hydro-dispatch/internal/pddd"
	"hydro-dispatch/internal/subproblem"
)

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{40, 10, 30, 20, 50})
	assert.Equal(t, 5, s.Count)
	assert.Equal(t, 10.0, s.Min)
	assert.Equal(t, 50.0, s.Max)
	assert.Equal(t, 30.0, s.Mean)
	assert.InDelta(t, 12.0, s.P05, 1e-12)
	assert.InDelta(t, 48.0, s.P95, 1e-12)
	assert.InDelta(t, 36.0, s.SpreadP95P05, 1e-12)

	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestPercentileSorted(t *testing.T) {
	vals := []float64{1, 2, 3, 4}
	assert.Equal(t, 1.0, percentileSorted(vals, 0))
	assert.Equal(t, 4.0, percentileSorted(vals, 1))
	assert.InDelta(t, 2.5, percentileSorted(vals, 0.5), 1e-12)
	assert.Zero(t, percentileSorted(nil, 0.5))
}

func TestArbitrageCanonical(t *testing.T) {
	// Starts half full (rounded to the top step with one step): sell at 50.
	assert.InDelta(t, 50, arbitrageCanonical([]float64{10, 50}, 1), 1e-12)
	// Half-hour steps from half full: top up once at 10, then empty at 90.
	assert.InDelta(t, 2*0.5*90-0.5*10, arbitrageCanonical([]float64{10, 10, 90, 90, 90}, 0.5), 1e-9)
	assert.Zero(t, arbitrageCanonical(nil, 1))
}

func TestSummarizeCMOPerMWh(t *testing.T) {
	f := &pddd.FixedModel{CMO: []float64{200, 400}}
	mc := SummarizeCMO(f, 2)
	assert.Equal(t, 100.0, mc.Min)
	assert.Equal(t, 200.0, mc.Max)
	assert.Greater(t, mc.ArbitrageValue, 0.0)
}

func TestRankByStoredValue(t *testing.T) {
	c := &model.Case{
		Meta: model.Meta{Name: "r", Horizon: 2, PeriodHours: 1, Demand: []float64{1, 1}},
		Hydro: &model.HydroSection{Units: []model.HydroUnit{{
			Name: "H1", VMax: 10, VIni: 5, QMax: 5, Productivity: 1, Inflow: []float64{0, 0},
		}}},
		Thermal: &model.ThermalSection{Units: []model.ThermalUnit{{Name: "T1", GMax: 10, Cost: 1}}},
		Storage: &model.StorageSection{Units: []model.StorageUnit{{
			Name: "B1", EMax: 10, EIni: 5, PChargeMax: 1, PDischargeMax: 1, EffCharge: 1, EffDischarge: 1,
		}}},
	}
	m, err := subproblem.BuildHorizon(c)
	require.NoError(t, err)
	require.NoError(t, m.Fix(subproblem.Key(subproblem.Volume, "H1", 2), 4))
	require.NoError(t, m.Fix(subproblem.Key(subproblem.Energy, "B1", 2), 2))

	f := &pddd.FixedModel{
		Model: m,
		CMA:   map[string][]float64{"H1": {100, 50}},
		CME:   map[string][]float64{"B1": {200, 300}},
	}
	ranked := RankByStoredValue(f, c)
	require.Len(t, ranked, 2)
	assert.Equal(t, "B1", ranked[0].Unit)
	assert.Equal(t, "storage", ranked[0].Technology)
	assert.Equal(t, 250.0, ranked[0].Mean)
	assert.Equal(t, 500.0, ranked[0].StoredValue)
	assert.Equal(t, "H1", ranked[1].Unit)
	assert.Equal(t, 300.0, ranked[1].StoredValue)
}
