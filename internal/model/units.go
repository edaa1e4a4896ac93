package model

import (
	"errors"
	"fmt"
)

// HydroUnit defines a reservoir plant.
// Units:
// - volumes (VMin, VMax, VIni, Inflow, QMax): volume units per period (e.g. hm3)
// - Productivity: MW produced per unit of turbined volume
// - SpillCost: $ per unit of spilled volume
type HydroUnit struct {
	Name         string
	VMin         float64
	VMax         float64
	VIni         float64
	QMax         float64
	Productivity float64
	SpillCost    float64
	Inflow       []float64
}

// ThermalUnit defines a dispatchable thermal plant with a linear cost in $/MWh.
type ThermalUnit struct {
	Name string
	GMin float64
	GMax float64
	Cost float64
}

// RenewableUnit is a non-dispatchable plant whose output is capped by
// GMax*Profile[t] for each period. Curtailment is free.
type RenewableUnit struct {
	Name    string
	GMax    float64
	Cost    float64
	Profile []float64
}

// StorageUnit defines a battery-like store.
// Units:
// - energies (EMin, EMax, EIni): MWh
// - power limits: MW
// - efficiencies: (0, 1]
type StorageUnit struct {
	Name          string
	EMin          float64
	EMax          float64
	EIni          float64
	PChargeMax    float64
	PDischargeMax float64
	EffCharge     float64
	EffDischarge  float64
}

func (h HydroUnit) Validate(horizon int) error {
	if h.VMin < 0 || h.VMin > h.VMax {
		return errors.New("v_min/v_max must satisfy 0<=v_min<=v_max")
	}
	if h.VIni < h.VMin || h.VIni > h.VMax {
		return errors.New("v_ini must be within [v_min, v_max]")
	}
	if h.QMax <= 0 {
		return errors.New("q_max must be > 0")
	}
	if h.Productivity <= 0 {
		return errors.New("productivity must be > 0")
	}
	if h.SpillCost < 0 {
		return errors.New("spill_cost must be >= 0")
	}
	if len(h.Inflow) != horizon {
		return fmt.Errorf("inflow has %d values, horizon is %d", len(h.Inflow), horizon)
	}
	for t, v := range h.Inflow {
		if v < 0 {
			return fmt.Errorf("inflow[%d] must be >= 0", t)
		}
	}
	return nil
}

func (g ThermalUnit) Validate() error {
	if g.GMin < 0 || g.GMin > g.GMax {
		return errors.New("g_min/g_max must satisfy 0<=g_min<=g_max")
	}
	if g.Cost < 0 {
		return errors.New("cost must be >= 0")
	}
	return nil
}

func (r RenewableUnit) Validate(horizon int) error {
	if r.GMax < 0 {
		return errors.New("g_max must be >= 0")
	}
	if r.Cost < 0 {
		return errors.New("cost must be >= 0")
	}
	if len(r.Profile) != horizon {
		return fmt.Errorf("profile has %d values, horizon is %d", len(r.Profile), horizon)
	}
	for t, f := range r.Profile {
		if f < 0 || f > 1 {
			return fmt.Errorf("profile[%d] must be in [0, 1]", t)
		}
	}
	return nil
}

func (s StorageUnit) Validate() error {
	if s.EMin < 0 || s.EMin > s.EMax {
		return errors.New("e_min/e_max must satisfy 0<=e_min<=e_max")
	}
	if s.EIni < s.EMin || s.EIni > s.EMax {
		return errors.New("e_ini must be within [e_min, e_max]")
	}
	if s.PChargeMax < 0 || s.PDischargeMax < 0 {
		return errors.New("power limits must be >= 0")
	}
	if s.EffCharge <= 0 || s.EffCharge > 1 {
		return errors.New("eff_charge must be in (0, 1]")
	}
	if s.EffDischarge <= 0 || s.EffDischarge > 1 {
		return errors.New("eff_discharge must be in (0, 1]")
	}
	return nil
}

// AvailableMW is the renewable output cap for period t.
func (r RenewableUnit) AvailableMW(t int) float64 {
	if t < 0 || t >= len(r.Profile) {
		return 0
	}
	return r.GMax * r.Profile[t]
}
