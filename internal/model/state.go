package model

import "sort"

// StageState is what an isolated single-period subproblem needs to know about
// the world: the stage's exogenous data and the initial condition of every
// stateful unit. Only Volume and Energy change between forward-pass solves.
type StageState struct {
	Stage  int
	Demand float64

	// Volume is the initial reservoir volume per hydro unit.
	Volume map[string]float64
	// Inflow is the natural inflow per hydro unit for this stage.
	Inflow map[string]float64
	// Energy is the initial stored energy per storage unit.
	Energy map[string]float64
	// Availability is the renewable output cap (MW) for this stage.
	Availability map[string]float64
}

// Clone returns a deep copy.
func (s StageState) Clone() StageState {
	out := s
	out.Volume = cloneMap(s.Volume)
	out.Inflow = cloneMap(s.Inflow)
	out.Energy = cloneMap(s.Energy)
	out.Availability = cloneMap(s.Availability)
	return out
}

// StateVector merges the inter-temporal state (volumes and energies) keyed by unit name.
func (s StageState) StateVector() map[string]float64 {
	out := make(map[string]float64, len(s.Volume)+len(s.Energy))
	for k, v := range s.Volume {
		out[k] = v
	}
	for k, v := range s.Energy {
		out[k] = v
	}
	return out
}

// Cut is a Benders cut bounding the future cost seen from the end of Stage:
//
//	alpha[Stage] >= RHS + sum_k Coefs[k] * x_k
//
// where x_k is the terminal volume (hydro) or energy (storage) of unit k.
// Cuts are never modified after creation.
type Cut struct {
	Stage int                `json:"stage"`
	RHS   float64            `json:"rhs"`
	Coefs map[string]float64 `json:"coefs"`
}

// Eval returns RHS + sum coef*x over the cut's units. Units absent from x count as zero.
func (c Cut) Eval(x map[string]float64) float64 {
	v := c.RHS
	for _, k := range c.Units() {
		v += c.Coefs[k] * x[k]
	}
	return v
}

// Units returns the cut's unit names in a stable order.
func (c Cut) Units() []string {
	keys := make([]string, 0, len(c.Coefs))
	for k := range c.Coefs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
