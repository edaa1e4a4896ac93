package reference

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"hydro-dispatch/internal/model"
)

// ErrUnsupported is returned for cases the dynamic program cannot represent.
var ErrUnsupported = errors.New("case not supported by dynamic program")

// DPParams controls the volume discretization.
type DPParams struct {
	// VolumeSteps splits [v_min, v_max] into this many intervals.
	// Higher = more accurate, slower.
	VolumeSteps int
}

// DPResult is the dispatch recovered from the dynamic program.
type DPResult struct {
	Cost float64
	// Per stage: end volume, turbined volume, spilled volume, unserved load.
	Volume  []float64
	Turbine []float64
	Spill   []float64
	Deficit []float64
}

type meritBlock struct {
	capMW float64
	cost  float64
}

// SolveDP solves a one-reservoir case by backward recursion on the volume
// grid. Thermal and renewable units are dispatched in merit order for the
// residual load left by the hydro release. Storage is not represented.
func SolveDP(c *model.Case, params DPParams) (*DPResult, error) {
	if err := c.RequireSections(); err != nil {
		return nil, err
	}
	if len(c.HydroUnits()) != 1 {
		return nil, fmt.Errorf("%w: needs exactly one hydro unit, got %d", ErrUnsupported, len(c.HydroUnits()))
	}
	if len(c.StorageUnits()) > 0 {
		return nil, fmt.Errorf("%w: storage units", ErrUnsupported)
	}
	if params.VolumeSteps <= 0 {
		params.VolumeSteps = 200
	}
	h := c.HydroUnits()[0]
	steps := params.VolumeSteps
	nStates := steps + 1
	n := c.Meta.Horizon

	idxToVol := func(idx int) float64 {
		if idx <= 0 {
			return h.VMin
		}
		if idx >= steps {
			return h.VMax
		}
		return h.VMin + float64(idx)/float64(steps)*(h.VMax-h.VMin)
	}
	volToIdx := func(v float64) int {
		if h.VMax <= h.VMin || v <= h.VMin {
			return 0
		}
		if v >= h.VMax {
			return steps
		}
		return int(math.Round((v - h.VMin) / (h.VMax - h.VMin) * float64(steps)))
	}

	inf := math.Inf(1)
	// value[t][s]: cheapest cost of stages t..n-1 entering stage t at grid point s.
	value := make([][]float64, n+1)
	choice := make([][]int, n)
	value[n] = make([]float64, nStates)
	for t := n - 1; t >= 0; t-- {
		value[t] = make([]float64, nStates)
		choice[t] = make([]int, nStates)
		merit, base, baseCost := meritOrder(c, t)
		for s := 0; s < nStates; s++ {
			value[t][s] = inf
			choice[t][s] = -1
			for ns := 0; ns < nStates; ns++ {
				if math.IsInf(value[t+1][ns], 1) {
					continue
				}
				st, ok := stageCost(c, h, t, idxToVol(s), idxToVol(ns), merit, base, baseCost)
				if !ok {
					continue
				}
				if v := st.cost + value[t+1][ns]; v < value[t][s] {
					value[t][s] = v
					choice[t][s] = ns
				}
			}
		}
	}

	cur := volToIdx(h.VIni)
	if math.IsInf(value[0][cur], 1) {
		return nil, errors.New("dynamic program found no feasible trajectory")
	}
	res := &DPResult{
		Cost:    value[0][cur],
		Volume:  make([]float64, n),
		Turbine: make([]float64, n),
		Spill:   make([]float64, n),
		Deficit: make([]float64, n),
	}
	for t := 0; t < n; t++ {
		ns := choice[t][cur]
		merit, base, baseCost := meritOrder(c, t)
		st, _ := stageCost(c, h, t, idxToVol(cur), idxToVol(ns), merit, base, baseCost)
		res.Volume[t] = idxToVol(ns)
		res.Turbine[t] = st.turbine
		res.Spill[t] = st.spill
		res.Deficit[t] = st.deficit
		cur = ns
	}
	return res, nil
}

// meritOrder returns the dispatchable blocks above must-run, sorted by
// cost, with the must-run output and its cost.
func meritOrder(c *model.Case, t int) (blocks []meritBlock, base, baseCost float64) {
	for _, g := range c.ThermalUnits() {
		base += g.GMin
		baseCost += g.GMin * g.Cost
		if g.GMax > g.GMin {
			blocks = append(blocks, meritBlock{capMW: g.GMax - g.GMin, cost: g.Cost})
		}
	}
	for _, r := range c.RenewableUnits() {
		if avail := r.AvailableMW(t); avail > 0 {
			blocks = append(blocks, meritBlock{capMW: avail, cost: r.Cost})
		}
	}
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].cost < blocks[j].cost })
	return blocks, base, baseCost
}

type stageOutcome struct {
	cost    float64
	turbine float64
	spill   float64
	deficit float64
}

// stageCost prices the move from volume v to next within stage t.
func stageCost(c *model.Case, h model.HydroUnit, t int, v, next float64, merit []meritBlock, base, baseCost float64) (stageOutcome, bool) {
	hours := c.Meta.PeriodHours
	inflow := 0.0
	if t < len(h.Inflow) {
		inflow = h.Inflow[t]
	}
	outflow := v + inflow - next
	if outflow < -1e-9 {
		return stageOutcome{}, false
	}
	outflow = math.Max(0, outflow)
	demand := c.Meta.Demand[t]
	if demand < base-1e-9 {
		return stageOutcome{}, false
	}

	// Turbine only what the load can absorb; the rest spills.
	useful := (demand - base) / h.Productivity
	q := math.Min(math.Min(outflow, h.QMax), useful)
	out := stageOutcome{turbine: q, spill: outflow - q}

	residual := demand - base - h.Productivity*q
	energyCost := baseCost
	for _, b := range merit {
		if residual <= 1e-12 {
			break
		}
		take := math.Min(residual, b.capMW)
		energyCost += take * b.cost
		residual -= take
	}
	if residual > 1e-9 {
		if residual > c.Meta.MaxDeficit+1e-9 {
			return stageOutcome{}, false
		}
		out.deficit = residual
		energyCost += residual * c.Meta.DeficitCost
	}
	out.cost = hours*energyCost + h.SpillCost*out.spill
	return out, true
}
