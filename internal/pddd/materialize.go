package pddd

import (
	"errors"
	"fmt"

	"hydro-dispatch/internal/lp"
	"hydro-dispatch/internal/model"
	"hydro-dispatch/internal/subproblem"
)

// ErrMissingUnit is returned when a stage result lacks a unit the case defines.
var ErrMissingUnit = errors.New("stage result missing unit")

// FixedModel is the full-horizon model with every constraint off and every
// variable fixed to the trajectory. It is a container and is never solved.
type FixedModel struct {
	Model *lp.Model

	// Marginal values per stage, index t is period t+1.
	CMO []float64
	CMA map[string][]float64
	CME map[string][]float64
	// FC is the cost-to-go (alpha) per stage.
	FC []float64
}

// Value returns the fixed value of a variable.
func (f *FixedModel) Value(k lp.Key) (float64, bool) {
	j, ok := f.Model.Var(k)
	if !ok {
		return 0, false
	}
	v := f.Model.Variable(j)
	return v.Value, v.Fixed
}

// Materialize lays stage results out on the case's full-horizon model.
// Stage t's period-1 value becomes period t+1's value.
func Materialize(results []*StageResult, c *model.Case) (*FixedModel, error) {
	if len(results) == 0 {
		return nil, errors.New("materialize: no stage results")
	}
	if len(results) != c.Meta.Horizon {
		return nil, fmt.Errorf("materialize: %d stage results for horizon %d", len(results), c.Meta.Horizon)
	}
	for t, r := range results {
		if r == nil || r.Solution == nil {
			return nil, fmt.Errorf("materialize: stage %d has no result", t)
		}
	}
	m, err := subproblem.BuildHorizon(c)
	if err != nil {
		return nil, err
	}
	m.DeactivateAll()

	last := results[len(results)-1]
	for _, v := range m.Variables() {
		if v.Key == subproblem.AlphaKey {
			if err := m.Fix(v.Key, last.Alpha); err != nil {
				return nil, err
			}
			continue
		}
		r := results[v.Key.Period-1]
		val, ok := r.Solution.Value(subproblem.Key(v.Key.Family, v.Key.Unit, 1))
		if !ok {
			return nil, fmt.Errorf("%w: stage %d has no value for %s", ErrMissingUnit, v.Key.Period-1, v.Key)
		}
		if err := m.Fix(v.Key, val); err != nil {
			return nil, err
		}
	}

	fm := &FixedModel{
		Model: m,
		CMO:   make([]float64, len(results)),
		CMA:   map[string][]float64{},
		CME:   map[string][]float64{},
		FC:    make([]float64, len(results)),
	}
	for _, h := range c.HydroUnits() {
		fm.CMA[h.Name] = make([]float64, len(results))
	}
	for _, b := range c.StorageUnits() {
		fm.CME[b.Name] = make([]float64, len(results))
	}
	for t, r := range results {
		fm.CMO[t] = r.CMO
		fm.FC[t] = r.Alpha
		for _, h := range c.HydroUnits() {
			v, ok := r.CMA[h.Name]
			if !ok {
				return nil, fmt.Errorf("%w: stage %d has no water value for %q", ErrMissingUnit, t, h.Name)
			}
			fm.CMA[h.Name][t] = v
		}
		for _, b := range c.StorageUnits() {
			v, ok := r.CME[b.Name]
			if !ok {
				return nil, fmt.Errorf("%w: stage %d has no energy value for %q", ErrMissingUnit, t, b.Name)
			}
			fm.CME[b.Name][t] = v
		}
	}
	return fm, nil
}
