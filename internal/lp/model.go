// Package lp holds a small algebraic container for linear programs: named
// continuous variables with bounds, a minimization objective and named linear
// constraints. Solving is left to the solver package.
package lp

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Sense is the direction of a linear constraint.
type Sense int

const (
	LE Sense = iota
	GE
	EQ
)

func (s Sense) String() string {
	switch s {
	case LE:
		return "<="
	case GE:
		return ">="
	case EQ:
		return "="
	default:
		return "?"
	}
}

// Key addresses a variable: family[unit,period], or family[period] when Unit is empty.
type Key struct {
	Family string
	Unit   string
	Period int
}

func (k Key) String() string {
	if k.Unit == "" {
		return fmt.Sprintf("%s[%d]", k.Family, k.Period)
	}
	return fmt.Sprintf("%s[%s,%d]", k.Family, k.Unit, k.Period)
}

// MarshalText lets Key be used as a JSON map key.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the String form back.
func (k *Key) UnmarshalText(b []byte) error {
	s := string(b)
	open := strings.IndexByte(s, '[')
	if open <= 0 || !strings.HasSuffix(s, "]") {
		return fmt.Errorf("lp: malformed key %q", s)
	}
	inner := s[open+1 : len(s)-1]
	parts := strings.Split(inner, ",")
	var unit, period string
	switch len(parts) {
	case 1:
		period = parts[0]
	case 2:
		unit, period = parts[0], parts[1]
	default:
		return fmt.Errorf("lp: malformed key %q", s)
	}
	p, err := strconv.Atoi(period)
	if err != nil {
		return fmt.Errorf("lp: malformed key %q: %w", s, err)
	}
	*k = Key{Family: s[:open], Unit: unit, Period: p}
	return nil
}

// Variable is a continuous decision variable. Lower must be finite.
type Variable struct {
	Key   Key
	Lower float64
	Upper float64
	Cost  float64

	// Fixed variables are pinned at Value.
	Fixed bool
	Value float64
}

// Term is one coefficient of a constraint row.
type Term struct {
	Var  int
	Coef float64
}

type Constraint struct {
	Name   string
	Terms  []Term
	Sense  Sense
	RHS    float64
	Active bool
}

// Model is a minimization LP. It is not safe for concurrent mutation.
type Model struct {
	Name string

	vars     []Variable
	varIndex map[Key]int
	cons     []Constraint
	conIndex map[string]int
}

func New(name string) *Model {
	return &Model{
		Name:     name,
		varIndex: map[Key]int{},
		conIndex: map[string]int{},
	}
}

// AddVar declares a variable and returns its column index.
// Declaring the same key twice is a programming error and panics.
func (m *Model) AddVar(k Key, lower, upper, cost float64) int {
	if _, dup := m.varIndex[k]; dup {
		panic(fmt.Sprintf("lp: duplicate variable %s", k))
	}
	if math.IsInf(lower, 0) || math.IsNaN(lower) {
		panic(fmt.Sprintf("lp: variable %s needs a finite lower bound", k))
	}
	m.vars = append(m.vars, Variable{Key: k, Lower: lower, Upper: upper, Cost: cost})
	idx := len(m.vars) - 1
	m.varIndex[k] = idx
	return idx
}

// AddConstraint declares an active constraint and returns its row index.
// Terms on the same column are summed.
func (m *Model) AddConstraint(name string, terms []Term, sense Sense, rhs float64) int {
	if _, dup := m.conIndex[name]; dup {
		panic(fmt.Sprintf("lp: duplicate constraint %s", name))
	}
	merged := make([]Term, 0, len(terms))
	pos := map[int]int{}
	for _, t := range terms {
		if t.Var < 0 || t.Var >= len(m.vars) {
			panic(fmt.Sprintf("lp: constraint %s references unknown column %d", name, t.Var))
		}
		if i, ok := pos[t.Var]; ok {
			merged[i].Coef += t.Coef
			continue
		}
		pos[t.Var] = len(merged)
		merged = append(merged, t)
	}
	m.cons = append(m.cons, Constraint{Name: name, Terms: merged, Sense: sense, RHS: rhs, Active: true})
	idx := len(m.cons) - 1
	m.conIndex[name] = idx
	return idx
}

// Var returns the column index for k.
func (m *Model) Var(k Key) (int, bool) {
	i, ok := m.varIndex[k]
	return i, ok
}

// Variable returns a copy of column i.
func (m *Model) Variable(i int) Variable { return m.vars[i] }

// Constraint returns a copy of the named row.
func (m *Model) Constraint(name string) (Constraint, bool) {
	i, ok := m.conIndex[name]
	if !ok {
		return Constraint{}, false
	}
	return m.cons[i], true
}

func (m *Model) NumVars() int        { return len(m.vars) }
func (m *Model) NumConstraints() int { return len(m.cons) }

// Variables returns a copy of every column in declaration order.
func (m *Model) Variables() []Variable {
	out := make([]Variable, len(m.vars))
	copy(out, m.vars)
	return out
}

// Constraints returns a copy of every row in declaration order.
func (m *Model) Constraints() []Constraint {
	out := make([]Constraint, len(m.cons))
	for i, c := range m.cons {
		out[i] = c
		out[i].Terms = append([]Term(nil), c.Terms...)
	}
	return out
}

// Fix pins variable k at v.
func (m *Model) Fix(k Key, v float64) error {
	i, ok := m.varIndex[k]
	if !ok {
		return fmt.Errorf("lp: unknown variable %s", k)
	}
	m.vars[i].Fixed = true
	m.vars[i].Value = v
	return nil
}

// DeactivateAll turns every constraint off. The model then only carries values.
func (m *Model) DeactivateAll() {
	for i := range m.cons {
		m.cons[i].Active = false
	}
}

// Bounds returns the effective bounds of column i (fixed columns collapse to their value).
func (m *Model) Bounds(i int) (lower, upper float64) {
	v := m.vars[i]
	if v.Fixed {
		return v.Value, v.Value
	}
	return v.Lower, v.Upper
}

// ObjectiveAt evaluates the objective at x (indexed by column).
func (m *Model) ObjectiveAt(x []float64) float64 {
	total := 0.0
	for i, v := range m.vars {
		total += v.Cost * x[i]
	}
	return total
}

// FixedValues returns the value of every fixed variable.
func (m *Model) FixedValues() map[Key]float64 {
	out := map[Key]float64{}
	for _, v := range m.vars {
		if v.Fixed {
			out[v.Key] = v.Value
		}
	}
	return out
}
