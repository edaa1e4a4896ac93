package solver

import (
	"context"
	"errors"
	"fmt"

	convexlp "gonum.org/v1/gonum/optimize/convex/lp"

	"hydro-dispatch/internal/lp"
)

// Simplex is the pure-Go oracle backed by gonum's simplex implementation.
// Duals are read off the optimal basis (Bᵀy = c_B) and accepted only when
// they are dual feasible and close the duality gap.
type Simplex struct{}

func NewSimplex() *Simplex { return &Simplex{} }

func (s *Simplex) Name() string { return "simplex" }

func (s *Simplex) Solve(ctx context.Context, m *lp.Model, opts Options) (*lp.Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tol := opts.Tol
	if tol <= 0 {
		tol = defaultTol
	}

	sf := toStandardForm(m)
	switch sf.decided {
	case "":
	case lp.StatusOptimal:
		return s.solution(m, sf, nil, 0, make([]float64, 0), opts.WantDuals), nil
	default:
		return &lp.Solution{Status: sf.decided, Detail: sf.detail}, nil
	}

	var basis *basisSolution
	optF, z, err := convexlp.Simplex(sf.c, sf.a, sf.b, tol, nil)
	if err != nil {
		// gonum's phase one gives up on rank-deficient rows and wraps its
		// causes as text; the tableau settles the status and the vertex.
		basis, err = solveBasis(ctx, sf)
		if err != nil {
			return s.failed(ctx, err)
		}
		optF, z = basis.obj, basis.z
	}

	var y []float64
	if opts.WantDuals {
		if basis == nil {
			if basis, err = solveBasis(ctx, sf); err != nil {
				return s.failed(ctx, err)
			}
		}
		if err := sf.checkDuals(basis.y, optF); err != nil {
			return &lp.Solution{Status: lp.StatusError, Detail: fmt.Sprintf("duals rejected: %v", err)}, nil
		}
		y = basis.y
	}
	return s.solution(m, sf, z, optF, y, opts.WantDuals), nil
}

// failed passes context errors through and maps the rest to a status.
func (s *Simplex) failed(ctx context.Context, err error) (*lp.Solution, error) {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return nil, err
	}
	return statusOf(err), nil
}

func (s *Simplex) solution(m *lp.Model, sf standardForm, z []float64, optF float64, y []float64, wantDuals bool) *lp.Solution {
	x := sf.values(z)
	sol := &lp.Solution{
		Status:    lp.StatusOptimal,
		Objective: optF + sf.offset,
		Values:    make(map[lp.Key]float64, len(x)),
	}
	for j, v := range x {
		sol.Values[m.Variable(j).Key] = v
	}
	if !wantDuals {
		return sol
	}
	cons := m.Constraints()
	sol.Duals = make(map[string]float64, len(cons))
	for i, c := range cons {
		d := 0.0
		if r := sf.row[i]; r >= 0 && r < len(y) {
			d = y[r]
			if sf.flip[i] {
				d = -d
			}
		}
		sol.Duals[c.Name] = d
	}
	return sol
}

func statusOf(err error) *lp.Solution {
	switch {
	case errors.Is(err, convexlp.ErrInfeasible):
		return &lp.Solution{Status: lp.StatusInfeasible, Detail: err.Error()}
	case errors.Is(err, convexlp.ErrUnbounded):
		return &lp.Solution{Status: lp.StatusUnbounded, Detail: err.Error()}
	default:
		return &lp.Solution{Status: lp.StatusError, Detail: err.Error()}
	}
}
