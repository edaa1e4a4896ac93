package solver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	convexlp "gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	pivotEps = 1e-9
	// ctxEvery is how many pivots run between context checks.
	ctxEvery = 64
)

// tableau is a dense two-phase simplex tableau over a standard form
// (minimize c·z, A z = b, z >= 0). Columns 0..n-1 are structural, n..n+m-1
// are the phase-1 artificials, the last column is the right-hand side.
// Row m is the reduced-cost row; its rhs entry holds -objective.
type tableau struct {
	t     [][]float64
	basis []int
	m, n  int
	// sign is -1 for rows negated so the phase-1 rhs is non-negative.
	sign []float64
}

func newTableau(a *mat.Dense, b []float64) *tableau {
	m, n := a.Dims()
	tb := &tableau{
		t:     make([][]float64, m+1),
		basis: make([]int, m),
		m:     m,
		n:     n,
		sign:  make([]float64, m),
	}
	rhs := n + m
	for i := 0; i <= m; i++ {
		tb.t[i] = make([]float64, n+m+1)
	}
	for i := 0; i < m; i++ {
		s := 1.0
		if b[i] < 0 {
			s = -1
		}
		tb.sign[i] = s
		for k := 0; k < n; k++ {
			tb.t[i][k] = s * a.At(i, k)
		}
		tb.t[i][n+i] = 1
		tb.t[i][rhs] = s * b[i]
		tb.basis[i] = n + i
	}
	// Phase 1 minimizes the sum of artificials.
	obj := tb.t[m]
	for i := 0; i < m; i++ {
		for k := 0; k < n; k++ {
			obj[k] -= tb.t[i][k]
		}
		obj[rhs] -= tb.t[i][rhs]
	}
	return tb
}

func (tb *tableau) rhs() int { return tb.n + tb.m }

func (tb *tableau) pivot(r, k int) {
	row := tb.t[r]
	p := row[k]
	for j := range row {
		row[j] /= p
	}
	row[k] = 1
	for i, other := range tb.t {
		if i == r {
			continue
		}
		f := other[k]
		if f == 0 {
			continue
		}
		for j := range other {
			other[j] -= f * row[j]
		}
		other[k] = 0
	}
	tb.basis[r] = k
}

// iterate pivots under Bland's rule until no allowed column has a negative
// reduced cost. Bland's rule cannot cycle on degenerate vertices.
func (tb *tableau) iterate(ctx context.Context, cols int) error {
	obj := tb.t[tb.m]
	rhs := tb.rhs()
	limit := 50*(tb.m+tb.n) + 1000
	for it := 0; ; it++ {
		if it%ctxEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if it > limit {
			return fmt.Errorf("simplex: no convergence after %d pivots", limit)
		}
		enter := -1
		for k := 0; k < cols; k++ {
			if obj[k] < -pivotEps {
				enter = k
				break
			}
		}
		if enter < 0 {
			return nil
		}
		leave := -1
		best := 0.0
		for i := 0; i < tb.m; i++ {
			a := tb.t[i][enter]
			if a <= pivotEps {
				continue
			}
			ratio := math.Max(0, tb.t[i][rhs]) / a
			switch {
			case leave < 0, ratio < best-pivotEps:
				leave, best = i, ratio
			case ratio <= best+pivotEps && tb.basis[i] < tb.basis[leave]:
				leave, best = i, math.Min(best, ratio)
			}
		}
		if leave < 0 {
			return convexlp.ErrUnbounded
		}
		tb.pivot(leave, enter)
	}
}

// basisSolution is an optimal vertex together with its row duals.
type basisSolution struct {
	z   []float64
	y   []float64
	obj float64
}

// solveBasis solves the standard form to an optimal basis and reads the duals
// off it: y solves Bᵀy = c_B, so y is d(objective)/d(b) at that vertex.
// Artificials left basic on redundant rows keep those rows' duals at zero.
func solveBasis(ctx context.Context, sf standardForm) (*basisSolution, error) {
	tb := newTableau(sf.a, sf.b)
	m, n := tb.m, tb.n
	rhs := tb.rhs()

	if err := tb.iterate(ctx, n+m); err != nil {
		return nil, err
	}
	scale := 1.0
	for _, v := range sf.b {
		scale = math.Max(scale, math.Abs(v))
	}
	if -tb.t[m][rhs] > 1e-7*scale {
		return nil, convexlp.ErrInfeasible
	}

	// Drive the remaining artificials out where a structural pivot exists.
	for i := 0; i < m; i++ {
		if tb.basis[i] < n {
			continue
		}
		k, big := -1, 1e-7
		for j := 0; j < n; j++ {
			if v := math.Abs(tb.t[i][j]); v > big {
				k, big = j, v
			}
		}
		if k >= 0 {
			tb.pivot(i, k)
		}
	}

	// Phase 2: true costs, artificials barred from entering.
	obj := tb.t[m]
	for j := range obj {
		obj[j] = 0
	}
	copy(obj, sf.c)
	for i, b := range tb.basis {
		f := obj[b]
		if f == 0 {
			continue
		}
		for j := range obj {
			obj[j] -= f * tb.t[i][j]
		}
	}
	if err := tb.iterate(ctx, n); err != nil {
		return nil, err
	}

	out := &basisSolution{z: make([]float64, n), obj: -obj[rhs]}
	for i, b := range tb.basis {
		if b < n {
			out.z[b] = math.Max(0, tb.t[i][rhs])
		}
	}

	basis := mat.NewDense(m, m, nil)
	cb := mat.NewVecDense(m, nil)
	for i, b := range tb.basis {
		if b >= n {
			basis.Set(b-n, i, 1)
			continue
		}
		for r := 0; r < m; r++ {
			basis.Set(r, i, tb.sign[r]*sf.a.At(r, b))
		}
		cb.SetVec(i, sf.c[b])
	}
	var yv mat.VecDense
	if err := yv.SolveVec(basis.T(), cb); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("basis solve: %w", err)
		}
	}
	out.y = make([]float64, m)
	for i := range out.y {
		out.y[i] = tb.sign[i] * yv.AtVec(i)
	}
	return out, nil
}

// checkDuals verifies dual feasibility (Aᵀy <= c) and strong duality
// (b·y = objective) for a standard form.
func (sf standardForm) checkDuals(y []float64, objective float64) error {
	m, n := sf.a.Dims()
	by := 0.0
	for i := 0; i < m; i++ {
		by += sf.b[i] * y[i]
	}
	if math.Abs(by-objective) > 1e-6*(1+math.Abs(objective)) {
		return fmt.Errorf("duality gap: b·y=%g, objective=%g", by, objective)
	}
	for k := 0; k < n; k++ {
		ay := 0.0
		for i := 0; i < m; i++ {
			ay += sf.a.At(i, k) * y[i]
		}
		if ay > sf.c[k]+1e-6*(1+math.Abs(sf.c[k])) {
			return fmt.Errorf("dual infeasible at column %d: %g > %g", k, ay, sf.c[k])
		}
	}
	return nil
}
