package report

import (
	"fmt"
	"time"

	"hydro-dispatch/internal/model"
	"hydro-dispatch/internal/pddd"
	"hydro-dispatch/internal/subproblem"
)

// Technology labels used in the ledger.
const (
	TechHydro     = "hydro"
	TechThermal   = "thermal"
	TechRenewable = "renewable"
	TechStorage   = "storage"
	TechDeficit   = "deficit"
)

// LedgerRow is one unit in one stage of the final trajectory.
// This is the primary artifact for "what happened" in a run.
type LedgerRow struct {
	Stage int `json:"stage"`

	PeriodStart time.Time `json:"period_start,omitempty"`
	PeriodEnd   time.Time `json:"period_end,omitempty"`

	Technology string       `json:"technology"`
	Unit       string       `json:"unit"`
	Action     model.Action `json:"action,omitempty"`

	// GenerationMW is net injection: storage discharge minus charge, unserved
	// load for the deficit row.
	GenerationMW float64 `json:"generation_mw"`

	TurbinedVolume float64 `json:"turbined_volume,omitempty"`
	SpilledVolume  float64 `json:"spilled_volume,omitempty"`

	// Volume (hydro) or energy (storage) at the start and end of the stage.
	StateStart float64 `json:"state_start,omitempty"`
	StateEnd   float64 `json:"state_end,omitempty"`

	Cost float64 `json:"cost"`

	CMO float64 `json:"cmo"`
	// MarginalValue is the water value (hydro) or stored energy value (storage).
	MarginalValue float64 `json:"marginal_value,omitempty"`
}

type Report struct {
	Ledger    []LedgerRow `json:"ledger"`
	TotalCost float64     `json:"total_cost"`
	// CumCost is the running operating cost at the end of each stage.
	CumCost []float64 `json:"cum_cost"`
}

// Build reads the materialized trajectory of a run into ledger rows.
func Build(out *pddd.Outcome) (*Report, error) {
	if out == nil || out.Final == nil || out.Case == nil {
		return nil, fmt.Errorf("outcome has no materialized trajectory")
	}
	c := out.Case
	f := out.Final
	hours := c.Meta.PeriodHours
	periods := c.Meta.Periods()

	value := func(family, unit string, p int) (float64, error) {
		v, ok := f.Value(subproblem.Key(family, unit, p))
		if !ok {
			return 0, fmt.Errorf("%w: %s", pddd.ErrMissingUnit, subproblem.Key(family, unit, p))
		}
		return v, nil
	}

	rep := &Report{CumCost: make([]float64, c.Meta.Horizon)}
	cum := 0.0
	for t := 0; t < c.Meta.Horizon; t++ {
		p := t + 1
		base := LedgerRow{
			Stage:       t,
			PeriodStart: periods[t].Start,
			PeriodEnd:   periods[t].End,
			CMO:         f.CMO[t],
		}
		stageCost := 0.0
		add := func(r LedgerRow) {
			stageCost += r.Cost
			rep.Ledger = append(rep.Ledger, r)
		}

		for _, h := range c.HydroUnits() {
			q, err := value(subproblem.Turbine, h.Name, p)
			if err != nil {
				return nil, err
			}
			s, err := value(subproblem.Spill, h.Name, p)
			if err != nil {
				return nil, err
			}
			end, err := value(subproblem.Volume, h.Name, p)
			if err != nil {
				return nil, err
			}
			start := h.VIni
			if p > 1 {
				if start, err = value(subproblem.Volume, h.Name, p-1); err != nil {
					return nil, err
				}
			}
			r := base
			r.Technology, r.Unit = TechHydro, h.Name
			r.GenerationMW = h.Productivity * q
			r.TurbinedVolume, r.SpilledVolume = q, s
			r.StateStart, r.StateEnd = start, end
			r.Cost = h.SpillCost * s
			r.MarginalValue = f.CMA[h.Name][t]
			add(r)
		}

		for _, g := range c.ThermalUnits() {
			v, err := value(subproblem.Thermal, g.Name, p)
			if err != nil {
				return nil, err
			}
			r := base
			r.Technology, r.Unit = TechThermal, g.Name
			r.GenerationMW = v
			r.Cost = hours * g.Cost * v
			add(r)
		}

		for _, w := range c.RenewableUnits() {
			v, err := value(subproblem.Renewable, w.Name, p)
			if err != nil {
				return nil, err
			}
			r := base
			r.Technology, r.Unit = TechRenewable, w.Name
			r.GenerationMW = v
			r.Cost = hours * w.Cost * v
			add(r)
		}

		for _, b := range c.StorageUnits() {
			ch, err := value(subproblem.Charge, b.Name, p)
			if err != nil {
				return nil, err
			}
			dis, err := value(subproblem.Discharge, b.Name, p)
			if err != nil {
				return nil, err
			}
			end, err := value(subproblem.Energy, b.Name, p)
			if err != nil {
				return nil, err
			}
			start := b.EIni
			if p > 1 {
				if start, err = value(subproblem.Energy, b.Name, p-1); err != nil {
					return nil, err
				}
			}
			r := base
			r.Technology, r.Unit = TechStorage, b.Name
			r.Action = model.StorageAction(ch, dis)
			r.GenerationMW = dis - ch
			r.StateStart, r.StateEnd = start, end
			r.MarginalValue = f.CME[b.Name][t]
			add(r)
		}

		d, err := value(subproblem.Deficit, "", p)
		if err != nil {
			return nil, err
		}
		r := base
		r.Technology, r.Unit = TechDeficit, TechDeficit
		r.GenerationMW = d
		r.Cost = hours * c.Meta.DeficitCost * d
		add(r)

		cum += stageCost
		rep.CumCost[t] = cum
	}
	rep.TotalCost = cum
	return rep, nil
}
