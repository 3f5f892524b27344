// Package solver finds assignments for small integer, real and boolean
// constraint problems. Domains are narrowed by interval propagation and
// the remaining space is searched depth first with randomized value
// choices. Every solution returned satisfies every posted constraint when
// evaluated exactly.
package solver

import (
	"math"

	"github.com/pkg/errors"
)

// VarKind is the domain type of a variable.
type VarKind int

const (
	KindInt VarKind = iota
	KindReal
	KindBool
)

func (k VarKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindReal:
		return "real"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Var is a decision variable. Real variables are stored on a grid whose
// step is their precision.
type Var struct {
	name  string
	kind  VarKind
	idx   int
	scale float64
}

func (v *Var) Name() string  { return v.name }
func (v *Var) Kind() VarKind { return v.kind }

type bound struct {
	lo, hi int64
}

type domains []bound

func (d domains) clone() domains {
	out := make(domains, len(d))
	copy(out, d)
	return out
}

func (d domains) equal(o domains) bool {
	for i := range d {
		if d[i] != o[i] {
			return false
		}
	}
	return true
}

// Model holds variables and constraints. It is not safe for concurrent
// use; build one per request.
type Model struct {
	vars        []*Var
	initial     domains
	constraints []Expr
}

func NewModel() *Model { return &Model{} }

func (m *Model) add(name string, kind VarKind, scale float64, lo, hi int64) (*Var, error) {
	if lo > hi {
		return nil, errors.Errorf("variable '%s' has empty domain [%d, %d]", name, lo, hi)
	}
	v := &Var{name: name, kind: kind, idx: len(m.vars), scale: scale}
	m.vars = append(m.vars, v)
	m.initial = append(m.initial, bound{lo: lo, hi: hi})
	return v, nil
}

// IntVar declares an integer variable on [lo, hi].
func (m *Model) IntVar(name string, lo, hi int64) (*Var, error) {
	return m.add(name, KindInt, 1, lo, hi)
}

// RealVar declares a real variable on [lo, hi] whose values are multiples
// of precision.
func (m *Model) RealVar(name string, lo, hi, precision float64) (*Var, error) {
	if precision <= 0 || math.IsNaN(precision) {
		return nil, errors.Errorf("variable '%s' has invalid precision %g", name, precision)
	}
	scale := math.Round(1 / precision)
	if scale < 1 {
		scale = 1
	}
	return m.add(name, KindReal, scale, int64(math.Ceil(lo*scale)), int64(math.Floor(hi*scale)))
}

// BoolVar declares a boolean variable taking 0 or 1.
func (m *Model) BoolVar(name string) (*Var, error) {
	return m.add(name, KindBool, 1, 0, 1)
}

// Vars returns the variables in declaration order.
func (m *Model) Vars() []*Var { return m.vars }

// Post adds a constraint that must evaluate to true.
func (m *Model) Post(e Expr) error {
	if e == nil {
		return errors.New("cannot post nil constraint")
	}
	if !e.boolean() {
		return errors.Errorf("constraint %s is not a boolean expression", e)
	}
	m.constraints = append(m.constraints, e)
	return nil
}

// Constraints returns the number of posted constraints.
func (m *Model) Constraints() int { return len(m.constraints) }

// propagate narrows d to a fixpoint. The round limit bounds the slow
// convergence of real domains.
func (m *Model) propagate(d domains) bool {
	for round := 0; round < maxPropagationRounds; round++ {
		before := d.clone()
		for _, c := range m.constraints {
			if !c.narrow(d, truth) {
				return false
			}
		}
		if before.equal(d) {
			break
		}
	}
	return true
}

func (m *Model) satisfied(vals []int64) bool {
	for _, c := range m.constraints {
		v, ok := c.eval(vals)
		if !ok || v == 0 {
			return false
		}
	}
	return true
}

const maxPropagationRounds = 64
