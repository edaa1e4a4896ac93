package lp

// Status is the termination condition reported by a solver.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusFeasible   Status = "feasible"
	StatusInfeasible Status = "infeasible"
	StatusUnbounded  Status = "unbounded"
	StatusError      Status = "error"
)

// OK reports whether the status carries a usable primal solution.
func (s Status) OK() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// Solution is what a solver hands back for one model.
//
// Duals follow a single convention for every constraint sense:
// the dual is d(objective)/d(rhs).
type Solution struct {
	Status    Status
	Objective float64
	Values    map[Key]float64
	Duals     map[string]float64

	// Detail carries the solver's message for non-OK statuses.
	Detail string
}

func (s *Solution) Value(k Key) (float64, bool) {
	if s == nil || s.Values == nil {
		return 0, false
	}
	v, ok := s.Values[k]
	return v, ok
}

func (s *Solution) Dual(name string) (float64, bool) {
	if s == nil || s.Duals == nil {
		return 0, false
	}
	v, ok := s.Duals[name]
	return v, ok
}
