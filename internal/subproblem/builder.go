// Package subproblem projects a case onto linear dispatch models: a single
// period for one decomposition stage, or the whole horizon at once.
//
// Every model has one bus. Per period p (1-based):
//
//	balance[p]:    Σ p + Σ prod·q + Σ r + Σ dis − Σ ch + deficit = demand
//	volume[h,p]:   v_f + q + s − v_f[p−1] = inflow   (v_ini on the right at p = 1)
//	energy[b,p]:   e_f − H·eff_c·ch + H·dis/eff_d − e_f[p−1] = 0   (e_ini at p = 1)
//
// minimizing H·(Σ cost·p + Σ cost·r + deficit_cost·deficit) + Σ spill_cost·s + alpha.
package subproblem

import (
	"fmt"
	"math"

	"hydro-dispatch/internal/lp"
	"hydro-dispatch/internal/model"
)

// Variable families.
const (
	Thermal   = "p"
	Turbine   = "q"
	Spill     = "s"
	Volume    = "v_f"
	Renewable = "r"
	Charge    = "ch"
	Discharge = "dis"
	Energy    = "e_f"
	Deficit   = "deficit"
	Alpha     = "alpha"
)

// AlphaKey is the cost-to-go beyond the model's last period.
var AlphaKey = lp.Key{Family: Alpha}

func Key(family, unit string, period int) lp.Key {
	return lp.Key{Family: family, Unit: unit, Period: period}
}

func BalanceRow(period int) string { return fmt.Sprintf("balance[%d]", period) }

func VolumeRow(unit string, period int) string { return fmt.Sprintf("volume[%s,%d]", unit, period) }

func EnergyRow(unit string, period int) string { return fmt.Sprintf("energy[%s,%d]", unit, period) }

func CutRow(index int) string { return fmt.Sprintf("cut[%d]", index) }

// period is the exogenous data of one modeled period.
type period struct {
	demand       float64
	inflow       map[string]float64
	availability map[string]float64
}

// Build returns the single-period model of state.Stage. Cuts whose Stage
// matches are added as alpha − Σ coef·terminal_state >= rhs, so the
// cost-to-go stays a function of the model's own terminal variables.
func Build(c *model.Case, state model.StageState, cuts []model.Cut) (*lp.Model, error) {
	if err := c.RequireSections(); err != nil {
		return nil, err
	}
	m := lp.New(fmt.Sprintf("%s/stage-%d", c.Meta.Name, state.Stage))
	build(m, c, []period{{
		demand:       state.Demand,
		inflow:       state.Inflow,
		availability: state.Availability,
	}}, state.Volume, state.Energy)

	alpha, _ := m.Var(AlphaKey)
	for k, cut := range cuts {
		if cut.Stage != state.Stage {
			continue
		}
		terms := []lp.Term{{Var: alpha, Coef: 1}}
		for _, unit := range cut.Units() {
			j, ok := terminalVar(m, unit, 1)
			if !ok {
				return nil, fmt.Errorf("cut %d references unit %q with no state in case %q", k, unit, c.Meta.Name)
			}
			terms = append(terms, lp.Term{Var: j, Coef: -cut.Coefs[unit]})
		}
		m.AddConstraint(CutRow(k), terms, lp.GE, cut.RHS)
	}
	return m, nil
}

// BuildHorizon returns the full multi-period model of the case.
func BuildHorizon(c *model.Case) (*lp.Model, error) {
	if err := c.RequireSections(); err != nil {
		return nil, err
	}
	periods := make([]period, c.Meta.Horizon)
	for t := range periods {
		st := c.StateAt(t)
		periods[t] = period{demand: st.Demand, inflow: st.Inflow, availability: st.Availability}
	}
	init := c.StateAt(0)
	m := lp.New(c.Meta.Name)
	build(m, c, periods, init.Volume, init.Energy)
	return m, nil
}

func terminalVar(m *lp.Model, unit string, last int) (int, bool) {
	if j, ok := m.Var(Key(Volume, unit, last)); ok {
		return j, true
	}
	return m.Var(Key(Energy, unit, last))
}

func build(m *lp.Model, c *model.Case, periods []period, volume, energy map[string]float64) {
	hours := c.Meta.PeriodHours
	inf := math.Inf(1)

	for i, per := range periods {
		p := i + 1
		balance := make([]lp.Term, 0, 8)

		for _, g := range c.ThermalUnits() {
			j := m.AddVar(Key(Thermal, g.Name, p), g.GMin, g.GMax, hours*g.Cost)
			balance = append(balance, lp.Term{Var: j, Coef: 1})
		}

		for _, h := range c.HydroUnits() {
			q := m.AddVar(Key(Turbine, h.Name, p), 0, h.QMax, 0)
			s := m.AddVar(Key(Spill, h.Name, p), 0, inf, h.SpillCost)
			v := m.AddVar(Key(Volume, h.Name, p), h.VMin, h.VMax, 0)
			balance = append(balance, lp.Term{Var: q, Coef: h.Productivity})

			terms := []lp.Term{{Var: v, Coef: 1}, {Var: q, Coef: 1}, {Var: s, Coef: 1}}
			rhs := per.inflow[h.Name]
			if p == 1 {
				rhs += volume[h.Name]
			} else {
				prev, _ := m.Var(Key(Volume, h.Name, p-1))
				terms = append(terms, lp.Term{Var: prev, Coef: -1})
			}
			m.AddConstraint(VolumeRow(h.Name, p), terms, lp.EQ, rhs)
		}

		for _, r := range c.RenewableUnits() {
			j := m.AddVar(Key(Renewable, r.Name, p), 0, per.availability[r.Name], hours*r.Cost)
			balance = append(balance, lp.Term{Var: j, Coef: 1})
		}

		for _, b := range c.StorageUnits() {
			ch := m.AddVar(Key(Charge, b.Name, p), 0, b.PChargeMax, 0)
			dis := m.AddVar(Key(Discharge, b.Name, p), 0, b.PDischargeMax, 0)
			e := m.AddVar(Key(Energy, b.Name, p), b.EMin, b.EMax, 0)
			balance = append(balance, lp.Term{Var: dis, Coef: 1}, lp.Term{Var: ch, Coef: -1})

			terms := []lp.Term{
				{Var: e, Coef: 1},
				{Var: ch, Coef: -hours * b.EffCharge},
				{Var: dis, Coef: hours / b.EffDischarge},
			}
			rhs := 0.0
			if p == 1 {
				rhs = energy[b.Name]
			} else {
				prev, _ := m.Var(Key(Energy, b.Name, p-1))
				terms = append(terms, lp.Term{Var: prev, Coef: -1})
			}
			m.AddConstraint(EnergyRow(b.Name, p), terms, lp.EQ, rhs)
		}

		d := m.AddVar(Key(Deficit, "", p), 0, c.Meta.MaxDeficit, hours*c.Meta.DeficitCost)
		balance = append(balance, lp.Term{Var: d, Coef: 1})
		m.AddConstraint(BalanceRow(p), balance, lp.EQ, per.demand)
	}

	m.AddVar(AlphaKey, 0, inf, 1)
}

// OperatingCost is the solved objective without the cost-to-go term.
func OperatingCost(sol *lp.Solution) float64 {
	alpha, _ := sol.Value(AlphaKey)
	return sol.Objective - alpha
}
