package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCase() *Case {
	return &Case{
		Meta: Meta{
			Name:        "t",
			Horizon:     2,
			PeriodHours: 0.5,
			Start:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Demand:      []float64{10, 20},
		},
		Hydro: &HydroSection{Units: []HydroUnit{
			{Name: "H2", VMax: 10, VIni: 4, QMax: 5, Productivity: 1, Inflow: []float64{1, 2}},
			{Name: "H1", VMax: 10, VIni: 3, QMax: 5, Productivity: 1, Inflow: []float64{0, 0}},
		}},
		Thermal:   &ThermalSection{Units: []ThermalUnit{{Name: "T1", GMax: 50, Cost: 10}}},
		Renewable: &RenewableSection{Units: []RenewableUnit{{Name: "W1", GMax: 20, Profile: []float64{0.5, 1}}}},
		Storage: &StorageSection{Units: []StorageUnit{{
			Name: "B1", EMax: 8, EIni: 2, PChargeMax: 1, PDischargeMax: 1, EffCharge: 1, EffDischarge: 1,
		}}},
	}
}

func TestValidateAcceptsConsistentCase(t *testing.T) {
	require.NoError(t, testCase().Validate())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Case)
		want   string
	}{
		{"missing hydro", func(c *Case) { c.Hydro = nil }, "hydro"},
		{"missing thermal", func(c *Case) { c.Thermal = nil }, "thermal"},
		{"demand length", func(c *Case) { c.Meta.Demand = []float64{1} }, "meta.demand"},
		{"negative demand", func(c *Case) { c.Meta.Demand[1] = -1 }, "meta.demand[1]"},
		{"v_ini above v_max", func(c *Case) { c.Hydro.Units[0].VIni = 11 }, "v_ini"},
		{"inflow length", func(c *Case) { c.Hydro.Units[1].Inflow = nil }, "inflow"},
		{"thermal bounds", func(c *Case) { c.Thermal.Units[0].GMin = 60 }, "g_min"},
		{"profile range", func(c *Case) { c.Renewable.Units[0].Profile[0] = 2 }, "profile[0]"},
		{"storage efficiency", func(c *Case) { c.Storage.Units[0].EffCharge = 0 }, "eff_charge"},
		{"duplicate name", func(c *Case) { c.Thermal.Units[0].Name = "H1" }, "used by both"},
		{"period hours", func(c *Case) { c.Meta.PeriodHours = 0 }, "period_hours"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testCase()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRequireSectionsSentinel(t *testing.T) {
	c := testCase()
	c.Thermal = nil
	assert.ErrorIs(t, c.RequireSections(), ErrMissingSection)
}

func TestStateAtProjectsStage(t *testing.T) {
	c := testCase()
	c.Sort()
	assert.Equal(t, "H1", c.Hydro.Units[0].Name)

	st := c.StateAt(1)
	assert.Equal(t, 1, st.Stage)
	assert.Equal(t, 20.0, st.Demand)
	assert.Equal(t, map[string]float64{"H1": 3, "H2": 4}, st.Volume)
	assert.Equal(t, map[string]float64{"H1": 0, "H2": 2}, st.Inflow)
	assert.Equal(t, map[string]float64{"B1": 2}, st.Energy)
	assert.Equal(t, map[string]float64{"W1": 20}, st.Availability)

	states := c.InitialStates()
	require.Len(t, states, 2)
	assert.Equal(t, 10.0, states[0].Demand)
	assert.Equal(t, 10.0, states[0].Availability["W1"])
}

func TestCloneIsDeep(t *testing.T) {
	st := testCase().StateAt(0)
	cp := st.Clone()
	cp.Volume["H1"] = 99
	cp.Energy["B1"] = 99
	assert.Equal(t, 3.0, st.Volume["H1"])
	assert.Equal(t, 2.0, st.Energy["B1"])

	assert.Equal(t, map[string]float64{"H1": 3, "H2": 4, "B1": 2}, st.StateVector())
}

func TestCutEval(t *testing.T) {
	cut := Cut{Stage: 0, RHS: 1000, Coefs: map[string]float64{"H1": -100, "B1": -5}}
	assert.Equal(t, []string{"B1", "H1"}, cut.Units())
	assert.InDelta(t, 1000-100*2-5*4, cut.Eval(map[string]float64{"H1": 2, "B1": 4}), 1e-12)
	assert.InDelta(t, 1000, cut.Eval(nil), 1e-12)
}

func TestPeriods(t *testing.T) {
	m := testCase().Meta
	ps := m.Periods()
	require.Len(t, ps, 2)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC), ps[1].Start)
	assert.Equal(t, 30*time.Minute, ps[1].Duration())

	m.Start = time.Time{}
	assert.True(t, m.Periods()[0].Start.IsZero())
}

func TestStorageAction(t *testing.T) {
	assert.Equal(t, ActionCharging, StorageAction(1, 0))
	assert.Equal(t, ActionDischarging, StorageAction(0, 1))
	assert.Equal(t, ActionIdle, StorageAction(0.5, 0.5))
	assert.Equal(t, ActionIdle, StorageAction(1e-12, 0))
}
