package solver

import (
	"context"
	"fmt"

	"hydro-dispatch/internal/lp"
)

// Decomposition is the outer-approximation path: a MIP leg for the master
// and an NLP leg for the fixed subproblems, both picked from the registry via
// the mip_solver / nlp_solver options (default: simplex). Models here are
// continuous, so the NLP leg carries the solve once both legs resolve. The MIP
// leg is looked up only so an unknown mip_solver fails at INIT; it never solves.
type Decomposition struct {
	registry *Registry
}

func NewDecomposition(r *Registry) *Decomposition {
	return &Decomposition{registry: r}
}

func (d *Decomposition) Name() string { return "mindtpy" }

func (d *Decomposition) Solve(ctx context.Context, m *lp.Model, opts Options) (*lp.Solution, error) {
	mipName := opts.StringParam("mip_solver", "simplex")
	nlpName := opts.StringParam("nlp_solver", "simplex")
	if mipName == d.Name() || nlpName == d.Name() {
		return nil, fmt.Errorf("%s: sub-solver cannot be %s itself", d.Name(), d.Name())
	}
	// Lookup only: there is no integer master to hand it.
	if _, err := d.registry.Lookup(mipName); err != nil {
		return nil, fmt.Errorf("%s mip leg: %w", d.Name(), err)
	}
	nlp, err := d.registry.Lookup(nlpName)
	if err != nil {
		return nil, fmt.Errorf("%s nlp leg: %w", d.Name(), err)
	}
	return nlp.Solve(ctx, m, opts)
}
