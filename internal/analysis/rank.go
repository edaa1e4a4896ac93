package analysis

import (
	"sort"

	"hydro-dispatch/internal/model"
	"hydro-dispatch/internal/pddd"
	"hydro-dispatch/internal/subproblem"
)

// UnitValue ranks one stateful unit by the marginal value of what it stores.
type UnitValue struct {
	Unit       string `json:"unit"`
	Technology string `json:"technology"`
	Summary
	// StoredValue is the mean marginal value times the unit's final state:
	// what the water or energy left at the end is worth at the margin.
	StoredValue float64 `json:"stored_value"`
}

// RankByStoredValue summarizes CMA per hydro unit and CME per storage unit,
// sorted descending by mean marginal value.
func RankByStoredValue(f *pddd.FixedModel, c *model.Case) []UnitValue {
	last := c.Meta.Horizon
	out := make([]UnitValue, 0, len(f.CMA)+len(f.CME))
	for _, h := range c.HydroUnits() {
		u := UnitValue{Unit: h.Name, Technology: "hydro", Summary: Summarize(f.CMA[h.Name])}
		if v, ok := f.Value(subproblem.Key(subproblem.Volume, h.Name, last)); ok {
			u.StoredValue = u.Mean * v
		}
		out = append(out, u)
	}
	for _, b := range c.StorageUnits() {
		u := UnitValue{Unit: b.Name, Technology: "storage", Summary: Summarize(f.CME[b.Name])}
		if v, ok := f.Value(subproblem.Key(subproblem.Energy, b.Name, last)); ok {
			u.StoredValue = u.Mean * v
		}
		out = append(out, u)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Mean > out[j].Mean
	})
	return out
}
