// Package pddd runs the deterministic multi-stage Benders decomposition:
// stage subproblems solved forward in time to build a trajectory and an
// upper bound, then backward to add cuts approximating each stage's
// cost-to-go, until the bounds meet.
package pddd

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"hydro-dispatch/internal/logging"
	"hydro-dispatch/internal/lp"
	"hydro-dispatch/internal/metrics"
	"hydro-dispatch/internal/model"
	"hydro-dispatch/internal/solver"
	"hydro-dispatch/internal/subproblem"
)

// Passes label stage solves in logs and metrics.
const (
	PassForward  = "forward"
	PassBackward = "backward"
)

// StageResult is the outcome of one stage solve.
type StageResult struct {
	Stage    int
	Solution *lp.Solution
	// State is the input the stage was solved from.
	State model.StageState

	// TotalCost is the objective: operating cost plus Alpha.
	TotalCost float64
	Alpha     float64

	// Terminal volume per hydro unit and energy per storage unit.
	Volume map[string]float64
	Energy map[string]float64

	// CMO is the dual of the energy balance.
	CMO float64
	// CMA is the water value per hydro unit: the negated volume-balance dual,
	// so a scarcer reservoir has a larger CMA.
	CMA map[string]float64
	// CME is the same quantity for storage energy.
	CME map[string]float64
}

// OperatingCost is the stage's own cost without the cost-to-go.
func (r *StageResult) OperatingCost() float64 {
	return r.TotalCost - r.Alpha
}

// Terminal merges the end-of-stage volumes and energies.
func (r *StageResult) Terminal() map[string]float64 {
	out := make(map[string]float64, len(r.Volume)+len(r.Energy))
	for k, v := range r.Volume {
		out[k] = v
	}
	for k, v := range r.Energy {
		out[k] = v
	}
	return out
}

// StageSolver builds and solves single-stage subproblems with the oracle
// named in the case metadata.
type StageSolver struct {
	oracle solver.Oracle
	opts   solver.Options
	log    *slog.Logger
}

// NewStageSolver resolves meta.solver in reg. An unknown solver fails here,
// before anything is solved.
func NewStageSolver(reg *solver.Registry, meta model.Meta, log *slog.Logger) (*StageSolver, error) {
	if reg == nil {
		reg = solver.DefaultRegistry()
	}
	if log == nil {
		log = logging.Discard()
	}
	name := meta.Solver
	if name == "" {
		name = "simplex"
	}
	o, err := reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	opts, err := solver.OptionsFrom(meta.SolverOptions)
	if err != nil {
		return nil, err
	}
	opts.WantDuals = true
	return &StageSolver{oracle: o, opts: opts, log: log}, nil
}

// SolveStage solves stage with the default registry.
func SolveStage(ctx context.Context, c *model.Case, state model.StageState, cuts []model.Cut, stage int) (*StageResult, error) {
	s, err := NewStageSolver(nil, c.Meta, nil)
	if err != nil {
		return nil, err
	}
	return s.Solve(ctx, c, state, cuts, stage)
}

func (s *StageSolver) Solve(ctx context.Context, c *model.Case, state model.StageState, cuts []model.Cut, stage int) (*StageResult, error) {
	return s.solve(ctx, c, state, cuts, stage, "")
}

func (s *StageSolver) solve(ctx context.Context, c *model.Case, state model.StageState, cuts []model.Cut, stage int, pass string) (*StageResult, error) {
	in := state.Clone()
	in.Stage = stage
	m, err := subproblem.Build(c, in, cuts)
	if err != nil {
		return nil, fmt.Errorf("stage %d: %w", stage, err)
	}

	started := time.Now()
	sol, err := solver.Run(ctx, s.oracle, m, s.opts)
	elapsed := time.Since(started)
	if pass != "" {
		metrics.StageSolveSeconds.WithLabelValues(pass).Observe(elapsed.Seconds())
		outcome := metrics.OutcomeOK
		if err != nil {
			outcome = metrics.OutcomeError
		}
		metrics.StageSolves.WithLabelValues(pass, outcome).Inc()
	}
	if err != nil {
		return nil, fmt.Errorf("stage %d: %w", stage, err)
	}

	res, err := extract(c, in, sol)
	if err != nil {
		return nil, fmt.Errorf("stage %d: %w", stage, err)
	}
	s.log.Debug("stage solved",
		"stage", stage,
		"pass", pass,
		"cost", res.TotalCost,
		"alpha", res.Alpha,
		"cmo", res.CMO,
		"elapsed", elapsed,
	)
	return res, nil
}

func extract(c *model.Case, in model.StageState, sol *lp.Solution) (*StageResult, error) {
	res := &StageResult{
		Stage:     in.Stage,
		Solution:  sol,
		State:     in,
		TotalCost: sol.Objective,
		Volume:    map[string]float64{},
		Energy:    map[string]float64{},
		CMA:       map[string]float64{},
		CME:       map[string]float64{},
	}
	res.Alpha, _ = sol.Value(subproblem.AlphaKey)

	var ok bool
	if res.CMO, ok = sol.Dual(subproblem.BalanceRow(1)); !ok {
		return nil, fmt.Errorf("solver returned no dual for %s", subproblem.BalanceRow(1))
	}
	for _, h := range c.HydroUnits() {
		v, ok := sol.Value(subproblem.Key(subproblem.Volume, h.Name, 1))
		if !ok {
			return nil, fmt.Errorf("%w: no terminal volume for %q", ErrMissingUnit, h.Name)
		}
		d, ok := sol.Dual(subproblem.VolumeRow(h.Name, 1))
		if !ok {
			return nil, fmt.Errorf("solver returned no dual for %s", subproblem.VolumeRow(h.Name, 1))
		}
		res.Volume[h.Name] = v
		res.CMA[h.Name] = -d
	}
	for _, b := range c.StorageUnits() {
		e, ok := sol.Value(subproblem.Key(subproblem.Energy, b.Name, 1))
		if !ok {
			return nil, fmt.Errorf("%w: no terminal energy for %q", ErrMissingUnit, b.Name)
		}
		d, ok := sol.Dual(subproblem.EnergyRow(b.Name, 1))
		if !ok {
			return nil, fmt.Errorf("solver returned no dual for %s", subproblem.EnergyRow(b.Name, 1))
		}
		res.Energy[b.Name] = e
		res.CME[b.Name] = -d
	}
	return res, nil
}

// MakeCut turns a stage result into a cut on the previous stage's terminal
// state. Coefficients are d(cost)/d(initial state) = -CMA (or -CME); the rhs
// makes the cut pass through the solved cost at stateUsed.
func MakeCut(r *StageResult, stateUsed model.StageState, stage int) model.Cut {
	cut := model.Cut{
		Stage: stage - 1,
		RHS:   r.TotalCost,
		Coefs: make(map[string]float64, len(r.CMA)+len(r.CME)),
	}
	for _, h := range sortedKeys(r.CMA) {
		coef := -r.CMA[h]
		cut.Coefs[h] = coef
		cut.RHS -= coef * stateUsed.Volume[h]
	}
	for _, b := range sortedKeys(r.CME) {
		coef := -r.CME[b]
		cut.Coefs[b] = coef
		cut.RHS -= coef * stateUsed.Energy[b]
	}
	return cut
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
