package pddd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"hydro-dispatch/internal/config"
	"hydro-dispatch/internal/logging"
	"hydro-dispatch/internal/metrics"
	"hydro-dispatch/internal/model"
	"hydro-dispatch/internal/solver"
)

type Phase string

const (
	PhaseInit       Phase = "INIT"
	PhaseForward    Phase = "FORWARD"
	PhaseBoundCheck Phase = "BOUND_CHECK"
	PhaseConverged  Phase = "CONVERGED"
	PhaseBackward   Phase = "BACKWARD"
)

const (
	DefaultMaxIter = 500
	DefaultTol     = 0.01
)

// Options controls a decomposition run. Zero values take the defaults.
type Options struct {
	MaxIter int
	Tol     float64
	// Verbose logs every bound check at info level.
	Verbose bool
	// Quiet turns off the verbose default of SolveMultistage.
	Quiet    bool
	Logger   *slog.Logger
	Registry *solver.Registry
	// Observer, when set, is called after every bound check.
	Observer func(Iteration)
}

func (o Options) withDefaults() Options {
	if o.MaxIter <= 0 {
		o.MaxIter = DefaultMaxIter
	}
	if o.Tol <= 0 {
		o.Tol = DefaultTol
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	if o.Registry == nil {
		o.Registry = solver.DefaultRegistry()
	}
	return o
}

// Iteration is reported after each bound check.
type Iteration struct {
	Number  int           `json:"iteration"`
	ZINF    float64       `json:"zinf"`
	ZSUP    float64       `json:"zsup"`
	Gap     float64       `json:"gap"`
	Cuts    int           `json:"cuts"`
	Next    Phase         `json:"next"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// Bounds are the lower (ZINF) and upper (ZSUP) bound trajectories, one entry per iteration.
type Bounds struct {
	ZINF []float64 `json:"zinf"`
	ZSUP []float64 `json:"zsup"`
}

// Gap is |ZSUP-ZINF| of the last iteration, +Inf before the first.
func (b Bounds) Gap() float64 {
	n := len(b.ZSUP)
	if n == 0 || len(b.ZINF) != n {
		return math.Inf(1)
	}
	return math.Abs(b.ZSUP[n-1] - b.ZINF[n-1])
}

// Outcome is what a run hands back. Hitting MaxIter is not an error:
// Converged is false and the last forward trajectory is returned.
type Outcome struct {
	Final      *FixedModel
	Case       *model.Case
	Alpha      []float64
	Bounds     Bounds
	Cuts       []model.Cut
	Iterations int
	Converged  bool
	Memory     []*StageResult
}

// Driver owns the state of one run: per-stage input states, the forward
// trajectory, the cut pool and the bound history. It is single-use and
// not safe for concurrent use.
type Driver struct {
	c     *model.Case
	opts  Options
	stage *StageSolver

	phase  Phase
	states []model.StageState
	memory []*StageResult
	cuts   []model.Cut
	bounds Bounds
}

// NewDriver performs INIT: required sections, case consistency and solver
// availability are checked here, before any solve.
func NewDriver(c *model.Case, opts Options) (*Driver, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	ss, err := NewStageSolver(opts.Registry, c.Meta, opts.Logger)
	if err != nil {
		return nil, err
	}
	return &Driver{
		c:      c,
		opts:   opts,
		stage:  ss,
		phase:  PhaseInit,
		states: c.InitialStates(),
		memory: make([]*StageResult, c.Meta.Horizon),
	}, nil
}

func (d *Driver) Phase() Phase { return d.phase }

func (d *Driver) Cuts() []model.Cut { return append([]model.Cut(nil), d.cuts...) }

// Run iterates until the bounds meet or MaxIter bound checks have been made.
func (d *Driver) Run(ctx context.Context) (*Outcome, error) {
	if d.phase != PhaseInit {
		return nil, errors.New("pddd: driver already ran")
	}
	log := d.opts.Logger
	started := time.Now()
	converged := false
	iter := 0

	for iter < d.opts.MaxIter {
		iter++
		d.phase = PhaseForward
		zinf, zsup, err := d.forward(ctx)
		if err != nil {
			metrics.Runs.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("iteration %d forward: %w", iter, err)
		}

		d.phase = PhaseBoundCheck
		d.bounds.ZINF = append(d.bounds.ZINF, zinf)
		d.bounds.ZSUP = append(d.bounds.ZSUP, zsup)
		gap := d.bounds.Gap()
		converged = gap <= d.opts.Tol

		next := PhaseBackward
		switch {
		case converged:
			next = PhaseConverged
		case iter == d.opts.MaxIter:
			next = PhaseBoundCheck
		}
		d.report(Iteration{
			Number:  iter,
			ZINF:    zinf,
			ZSUP:    zsup,
			Gap:     gap,
			Cuts:    len(d.cuts),
			Next:    next,
			Elapsed: time.Since(started),
		})
		if next != PhaseBackward {
			break
		}

		d.phase = PhaseBackward
		if err := d.backward(ctx); err != nil {
			metrics.Runs.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("iteration %d backward: %w", iter, err)
		}
	}
	if converged {
		d.phase = PhaseConverged
		metrics.Runs.WithLabelValues("converged").Inc()
	} else {
		metrics.Runs.WithLabelValues("max_iter").Inc()
		log.Warn("iteration limit reached without convergence",
			"max_iter", d.opts.MaxIter,
			"gap", d.bounds.Gap(),
			"tol", d.opts.Tol,
		)
	}

	final, err := Materialize(d.memory, d.c)
	if err != nil {
		return nil, err
	}
	alpha := make([]float64, len(d.memory))
	for t, r := range d.memory {
		alpha[t] = r.Alpha
	}
	return &Outcome{
		Final:      final,
		Case:       d.c,
		Alpha:      alpha,
		Bounds:     d.bounds,
		Cuts:       d.Cuts(),
		Iterations: iter,
		Converged:  converged,
		Memory:     append([]*StageResult(nil), d.memory...),
	}, nil
}

// forward solves t = 0..N-1 in order, feeding each terminal state into the
// next stage. ZSUP sums the operating costs; ZINF is stage 0's total cost.
func (d *Driver) forward(ctx context.Context) (zinf, zsup float64, err error) {
	n := len(d.states)
	for t := 0; t < n; t++ {
		res, err := d.stage.solve(ctx, d.c, d.states[t], d.cuts, t, PassForward)
		if err != nil {
			return 0, 0, err
		}
		d.memory[t] = res
		if t+1 < n {
			for h, v := range res.Volume {
				d.states[t+1].Volume[h] = v
			}
			for b, e := range res.Energy {
				d.states[t+1].Energy[b] = e
			}
		}
		zsup += res.TotalCost - res.Alpha
		if t == 0 {
			zinf = res.TotalCost
		}
	}
	return zinf, zsup, nil
}

// backward re-solves t = N-1..1 from the forward states, appending one cut
// per stage. Cuts added for later stages are visible to earlier ones.
func (d *Driver) backward(ctx context.Context) error {
	for t := len(d.states) - 1; t >= 1; t-- {
		res, err := d.stage.solve(ctx, d.c, d.states[t], d.cuts, t, PassBackward)
		if err != nil {
			return err
		}
		d.cuts = append(d.cuts, MakeCut(res, d.states[t], t))
	}
	return nil
}

func (d *Driver) report(it Iteration) {
	metrics.Iterations.Inc()
	metrics.Gap.Set(it.Gap)
	metrics.CutPool.Set(float64(it.Cuts))
	if d.opts.Verbose {
		d.opts.Logger.Info("bound check",
			"iteration", it.Number,
			"zinf", it.ZINF,
			"zsup", it.ZSUP,
			"gap", it.Gap,
			"cuts", it.Cuts,
			"next", it.Next,
		)
	}
	if d.opts.Observer != nil {
		d.opts.Observer(it)
	}
}

// Solve runs the decomposition on a loaded case.
func Solve(ctx context.Context, c *model.Case, opts Options) (*Outcome, error) {
	d, err := NewDriver(c, opts)
	if err != nil {
		return nil, err
	}
	return d.Run(ctx)
}

// SolveMultistage loads the case file at path and solves it. Bound checks
// are logged unless opts.Quiet is set.
func SolveMultistage(ctx context.Context, path string, opts Options) (*Outcome, error) {
	c, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if !opts.Quiet {
		opts.Verbose = true
	}
	return Solve(ctx, c, opts)
}
