package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"hydro-dispatch/internal/lp"
)

// standardForm is
//
//	minimize  c·z + offset
//	s.t.      A z = b,  z >= 0
//
// built from an lp.Model by shifting every column by its lower bound and
// adding one slack per inequality and per finite upper bound.
type standardForm struct {
	c      []float64
	a      *mat.Dense
	b      []float64
	offset float64

	// col maps a model column to its standard column, -1 when the column is
	// fixed or touches no row, and so sits at its lower bound.
	col   []int
	lower []float64

	// row maps a model constraint to its standard row, -1 when inactive or empty.
	row []int
	// flip marks >= constraints that were negated into <= rows.
	flip []bool

	// decided is set when the conversion alone settles the outcome.
	decided lp.Status
	detail  string
}

type stdRow struct {
	terms []lp.Term
	rhs   float64
	eq    bool
	con   int
}

func emptyRowFeasible(sense lp.Sense, rhs float64) bool {
	eps := 1e-9 * (1 + math.Abs(rhs))
	switch sense {
	case lp.LE:
		return rhs >= -eps
	case lp.GE:
		return rhs <= eps
	default:
		return math.Abs(rhs) <= eps
	}
}

func toStandardForm(m *lp.Model) standardForm {
	vars := m.Variables()
	cons := m.Constraints()
	n := len(vars)

	sf := standardForm{
		col:   make([]int, n),
		lower: make([]float64, n),
		row:   make([]int, len(cons)),
		flip:  make([]bool, len(cons)),
	}
	width := make([]float64, n)
	for j := range vars {
		lo, hi := m.Bounds(j)
		if hi < lo-1e-9*(1+math.Abs(lo)) {
			sf.decided = lp.StatusInfeasible
			sf.detail = fmt.Sprintf("variable %s has empty domain [%g, %g]", vars[j].Key, lo, hi)
			return sf
		}
		sf.lower[j] = lo
		width[j] = math.Max(0, hi-lo)
		sf.offset += vars[j].Cost * lo
	}

	var rows []stdRow
	for i, c := range cons {
		sf.row[i] = -1
		if !c.Active {
			continue
		}
		rhs := c.RHS
		terms := make([]lp.Term, 0, len(c.Terms))
		for _, t := range c.Terms {
			if t.Coef == 0 {
				continue
			}
			rhs -= t.Coef * sf.lower[t.Var]
			// Fixed columns are constants folded into the rhs.
			if width[t.Var] == 0 {
				continue
			}
			terms = append(terms, t)
		}
		if len(terms) == 0 {
			if !emptyRowFeasible(c.Sense, rhs) {
				sf.decided = lp.StatusInfeasible
				sf.detail = fmt.Sprintf("constraint %s has no terms and cannot hold", c.Name)
				return sf
			}
			continue
		}
		r := stdRow{terms: terms, rhs: rhs, con: i}
		switch c.Sense {
		case lp.EQ:
			r.eq = true
		case lp.GE:
			for k := range r.terms {
				r.terms[k].Coef = -r.terms[k].Coef
			}
			r.rhs = -r.rhs
			sf.flip[i] = true
		}
		rows = append(rows, r)
	}
	for j := range vars {
		if width[j] > 0 && !math.IsInf(width[j], 1) {
			rows = append(rows, stdRow{terms: []lp.Term{{Var: j, Coef: 1}}, rhs: width[j], con: -1})
		}
	}

	used := make([]bool, n)
	for _, r := range rows {
		for _, t := range r.terms {
			used[t.Var] = true
		}
	}
	nx := 0
	for j := range vars {
		sf.col[j] = -1
		if used[j] {
			sf.col[j] = nx
			nx++
			continue
		}
		// Unconstrained above and untouched: any negative cost runs off to -inf.
		if vars[j].Cost < 0 && math.IsInf(width[j], 1) {
			sf.decided = lp.StatusUnbounded
			sf.detail = fmt.Sprintf("variable %s has negative cost and no upper limit", vars[j].Key)
			return sf
		}
	}

	slacks := 0
	for _, r := range rows {
		if !r.eq {
			slacks++
		}
	}
	nRows, nCols := len(rows), nx+slacks
	if nRows == 0 {
		sf.decided = lp.StatusOptimal
		return sf
	}
	if nRows > nCols {
		sf.decided = lp.StatusError
		sf.detail = fmt.Sprintf("%d equality rows exceed %d columns", nRows, nCols)
		return sf
	}

	sf.a = mat.NewDense(nRows, nCols, nil)
	sf.b = make([]float64, nRows)
	sf.c = make([]float64, nCols)
	for j := range vars {
		if sf.col[j] >= 0 {
			sf.c[sf.col[j]] = vars[j].Cost
		}
	}
	slack := nx
	for i, r := range rows {
		for _, t := range r.terms {
			k := sf.col[t.Var]
			sf.a.Set(i, k, sf.a.At(i, k)+t.Coef)
		}
		if !r.eq {
			sf.a.Set(i, slack, 1)
			slack++
		}
		sf.b[i] = r.rhs
		if r.con >= 0 {
			sf.row[r.con] = i
		}
	}
	return sf
}

// values maps a standard-form point back to model columns.
func (sf standardForm) values(z []float64) []float64 {
	x := make([]float64, len(sf.col))
	for j, k := range sf.col {
		x[j] = sf.lower[j]
		if k >= 0 && z != nil {
			x[j] += z[k]
		}
	}
	return x
}
