// Package reference holds benchmark solutions the decomposition is checked
// against: the deterministic equivalent LP over the whole horizon, and a
// dynamic program on a discretized volume grid for single-reservoir cases.
package reference

import (
	"context"
	"fmt"
	"time"

	"hydro-dispatch/internal/lp"
	"hydro-dispatch/internal/model"
	"hydro-dispatch/internal/solver"
	"hydro-dispatch/internal/subproblem"
)

// Monolithic is the full-horizon LP solution.
type Monolithic struct {
	Cost     float64
	Solution *lp.Solution
	Elapsed  time.Duration
}

// Volume returns the end-of-period volumes of a hydro unit.
func (m *Monolithic) Volume(unit string, horizon int) []float64 {
	out := make([]float64, horizon)
	for t := range out {
		out[t], _ = m.Solution.Value(subproblem.Key(subproblem.Volume, unit, t+1))
	}
	return out
}

// SolveMonolithic solves every period at once with the case's solver.
// Its cost is the optimum the decomposition bounds converge to.
func SolveMonolithic(ctx context.Context, c *model.Case, reg *solver.Registry) (*Monolithic, error) {
	if reg == nil {
		reg = solver.DefaultRegistry()
	}
	m, err := subproblem.BuildHorizon(c)
	if err != nil {
		return nil, err
	}
	name := c.Meta.Solver
	if name == "" {
		name = "simplex"
	}
	o, err := reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	opts, err := solver.OptionsFrom(c.Meta.SolverOptions)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	sol, err := solver.Run(ctx, o, m, opts)
	if err != nil {
		return nil, fmt.Errorf("monolithic: %w", err)
	}
	return &Monolithic{Cost: sol.Objective, Solution: sol, Elapsed: time.Since(started)}, nil
}
