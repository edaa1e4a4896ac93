package model

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrMissingSection is returned when a case lacks a technology section the
// decomposition cannot run without (hydro and thermal).
var ErrMissingSection = errors.New("missing required technology section")

// Meta holds the case-wide settings.
type Meta struct {
	Name        string
	Horizon     int
	PeriodHours float64
	Start       time.Time

	// Demand is the per-stage load in MW, len == Horizon.
	Demand []float64

	// DeficitCost is the $/MWh price of unserved load; MaxDeficit caps it (0 disables shedding).
	DeficitCost float64
	MaxDeficit  float64

	Solver        string
	SolverOptions map[string]any
}

type HydroSection struct{ Units []HydroUnit }
type ThermalSection struct{ Units []ThermalUnit }
type RenewableSection struct{ Units []RenewableUnit }
type StorageSection struct{ Units []StorageUnit }

// Case is the immutable template every stage subproblem is projected from.
// A nil section means the technology is absent from the case.
// Unit slices are sorted by name so every model built from a case is ordered the same way.
type Case struct {
	Meta      Meta
	Hydro     *HydroSection
	Thermal   *ThermalSection
	Renewable *RenewableSection
	Storage   *StorageSection
}

// RequireSections checks the sections the decomposition depends on.
func (c *Case) RequireSections() error {
	if c == nil {
		return errors.New("case is nil")
	}
	if c.Hydro == nil {
		return fmt.Errorf("%w: hydro", ErrMissingSection)
	}
	if c.Thermal == nil {
		return fmt.Errorf("%w: thermal", ErrMissingSection)
	}
	return nil
}

// Validate checks the case for internal consistency.
func (c *Case) Validate() error {
	if err := c.RequireSections(); err != nil {
		return err
	}
	m := c.Meta
	if m.Horizon < 1 {
		return errors.New("meta.horizon must be >= 1")
	}
	if m.PeriodHours <= 0 {
		return errors.New("meta.period_hours must be > 0")
	}
	if len(m.Demand) != m.Horizon {
		return fmt.Errorf("meta.demand has %d values, horizon is %d", len(m.Demand), m.Horizon)
	}
	for t, d := range m.Demand {
		if d < 0 {
			return fmt.Errorf("meta.demand[%d] must be >= 0", t)
		}
	}
	if m.DeficitCost < 0 || m.MaxDeficit < 0 {
		return errors.New("meta.deficit_cost and meta.max_deficit must be >= 0")
	}

	seen := map[string]string{}
	claim := func(name, tech string) error {
		if name == "" {
			return fmt.Errorf("%s unit with empty name", tech)
		}
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("unit name %q used by both %s and %s", name, prev, tech)
		}
		seen[name] = tech
		return nil
	}
	for _, h := range c.HydroUnits() {
		if err := claim(h.Name, "hydro"); err != nil {
			return err
		}
		if err := h.Validate(m.Horizon); err != nil {
			return fmt.Errorf("hydro unit %q: %w", h.Name, err)
		}
	}
	for _, g := range c.ThermalUnits() {
		if err := claim(g.Name, "thermal"); err != nil {
			return err
		}
		if err := g.Validate(); err != nil {
			return fmt.Errorf("thermal unit %q: %w", g.Name, err)
		}
	}
	for _, r := range c.RenewableUnits() {
		if err := claim(r.Name, "renewable"); err != nil {
			return err
		}
		if err := r.Validate(m.Horizon); err != nil {
			return fmt.Errorf("renewable unit %q: %w", r.Name, err)
		}
	}
	for _, s := range c.StorageUnits() {
		if err := claim(s.Name, "storage"); err != nil {
			return err
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("storage unit %q: %w", s.Name, err)
		}
	}
	return nil
}

func (c *Case) HydroUnits() []HydroUnit {
	if c.Hydro == nil {
		return nil
	}
	return c.Hydro.Units
}

func (c *Case) ThermalUnits() []ThermalUnit {
	if c.Thermal == nil {
		return nil
	}
	return c.Thermal.Units
}

func (c *Case) RenewableUnits() []RenewableUnit {
	if c.Renewable == nil {
		return nil
	}
	return c.Renewable.Units
}

func (c *Case) StorageUnits() []StorageUnit {
	if c.Storage == nil {
		return nil
	}
	return c.Storage.Units
}

// Sort orders every section's units by name.
func (c *Case) Sort() {
	if c.Hydro != nil {
		sort.Slice(c.Hydro.Units, func(i, j int) bool { return c.Hydro.Units[i].Name < c.Hydro.Units[j].Name })
	}
	if c.Thermal != nil {
		sort.Slice(c.Thermal.Units, func(i, j int) bool { return c.Thermal.Units[i].Name < c.Thermal.Units[j].Name })
	}
	if c.Renewable != nil {
		sort.Slice(c.Renewable.Units, func(i, j int) bool { return c.Renewable.Units[i].Name < c.Renewable.Units[j].Name })
	}
	if c.Storage != nil {
		sort.Slice(c.Storage.Units, func(i, j int) bool { return c.Storage.Units[i].Name < c.Storage.Units[j].Name })
	}
}

// InitialStates builds one StageState per stage from the nominal unit template.
// Every stage starts from the case's initial volumes and energies; the driver
// overwrites them as the forward pass propagates.
func (c *Case) InitialStates() []StageState {
	states := make([]StageState, c.Meta.Horizon)
	for t := range states {
		states[t] = c.StateAt(t)
	}
	return states
}

// StateAt projects the case onto stage t.
func (c *Case) StateAt(t int) StageState {
	st := StageState{
		Stage:        t,
		Volume:       map[string]float64{},
		Inflow:       map[string]float64{},
		Energy:       map[string]float64{},
		Availability: map[string]float64{},
	}
	if t >= 0 && t < len(c.Meta.Demand) {
		st.Demand = c.Meta.Demand[t]
	}
	for _, h := range c.HydroUnits() {
		st.Volume[h.Name] = h.VIni
		if t >= 0 && t < len(h.Inflow) {
			st.Inflow[h.Name] = h.Inflow[t]
		}
	}
	for _, s := range c.StorageUnits() {
		st.Energy[s.Name] = s.EIni
	}
	for _, r := range c.RenewableUnits() {
		st.Availability[r.Name] = r.AvailableMW(t)
	}
	return st
}
