// Package solver exposes the numerical solver as a black-box oracle: a model
// goes in, a termination status with primal and dual values comes out.
package solver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"hydro-dispatch/internal/lp"
)

// ErrUnavailable is returned when the requested solver is not installed.
var ErrUnavailable = errors.New("solver unavailable")

const defaultTol = 1e-9

// Options are the named solver options of a case (meta.solver_options).
type Options struct {
	Tol float64
	// TimeLimit bounds one solve; zero means no limit.
	TimeLimit time.Duration
	// WantDuals asks for constraint duals in the solution.
	WantDuals bool
	// Params keeps every raw option, including ones only some oracles read.
	Params map[string]any
}

// Oracle solves one model.
type Oracle interface {
	Name() string
	Solve(ctx context.Context, m *lp.Model, opts Options) (*lp.Solution, error)
}

// StatusError reports a solve that terminated without a usable solution.
type StatusError struct {
	Solver string
	Status lp.Status
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("solver %s terminated with status %s", e.Solver, e.Status)
	}
	return fmt.Sprintf("solver %s terminated with status %s: %s", e.Solver, e.Status, e.Detail)
}

// OptionsFrom reads the recognized keys out of a raw option map.
// time_limit is in seconds. Run returns as soon as it expires; the simplex
// oracle also stops its basis pivots then, but a gonum primal run already in
// progress finishes in the background.
func OptionsFrom(params map[string]any) (Options, error) {
	opts := Options{Tol: defaultTol, Params: params}
	if v, ok := params["tol"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return Options{}, fmt.Errorf("solver option tol: %w", err)
		}
		if f <= 0 {
			return Options{}, errors.New("solver option tol must be > 0")
		}
		opts.Tol = f
	}
	if v, ok := params["time_limit"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return Options{}, fmt.Errorf("solver option time_limit: %w", err)
		}
		if f < 0 {
			return Options{}, errors.New("solver option time_limit must be >= 0")
		}
		opts.TimeLimit = time.Duration(f * float64(time.Second))
	}
	return opts, nil
}

// StringParam returns a string option or def.
func (o Options) StringParam(key, def string) string {
	if v, ok := o.Params[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

// Run invokes the oracle and turns every non-OK termination into a *StatusError.
// A time limit, when set, bounds the call through the context; the oracle call
// itself keeps running in the background until it returns.
func Run(ctx context.Context, o Oracle, m *lp.Model, opts Options) (*lp.Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		sol *lp.Solution
		err error
	)
	if opts.TimeLimit > 0 {
		sol, err = runWithTimeout(ctx, o, m, opts)
	} else {
		sol, err = o.Solve(ctx, m, opts)
	}
	if err != nil {
		return nil, err
	}
	if !sol.Status.OK() {
		return nil, &StatusError{Solver: o.Name(), Status: sol.Status, Detail: sol.Detail}
	}
	return sol, nil
}

func runWithTimeout(ctx context.Context, o Oracle, m *lp.Model, opts Options) (*lp.Solution, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.TimeLimit)
	defer cancel()

	type result struct {
		sol *lp.Solution
		err error
	}
	done := make(chan result, 1)
	go func() {
		sol, err := o.Solve(ctx, m, opts)
		done <- result{sol, err}
	}()
	select {
	case r := <-done:
		return r.sol, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("solver %s: %w", o.Name(), ctx.Err())
	}
}

// Registry maps solver names to oracles.
type Registry struct {
	mu      sync.RWMutex
	oracles map[string]Oracle
}

func NewRegistry() *Registry {
	return &Registry{oracles: map[string]Oracle{}}
}

// DefaultRegistry holds every oracle this build ships with.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewSimplex())
	r.Register(NewDecomposition(r))
	return r
}

func (r *Registry) Register(o Oracle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.oracles[o.Name()] = o
}

// Lookup returns the named oracle or ErrUnavailable.
func (r *Registry) Lookup(name string) (Oracle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.oracles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnavailable, name)
	}
	return o, nil
}

// Names lists registered solvers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.oracles))
	for k := range r.oracles {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(x, 64)
	default:
		return 0, fmt.Errorf("unsupported value %v (%T)", v, v)
	}
}
