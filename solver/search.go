package solver

import (
	"context"
	"math/rand/v2"

	"github.com/pkg/errors"
)

// DefaultNodeLimit caps the search tree explored by a single solver.
const DefaultNodeLimit = 200000

// ErrSearchLimit is returned when the node limit is exhausted before the
// search space is.
var ErrSearchLimit = errors.New("constraint search limit reached")

// Solution is a complete assignment.
type Solution struct {
	values []int64
	vars   []*Var
}

// Value returns the value of v as a float.
func (s *Solution) Value(v *Var) float64 { return float64(s.values[v.idx]) / v.scale }

// Int returns the value of an integer variable.
func (s *Solution) Int(v *Var) int64 { return s.values[v.idx] }

// Bool returns the value of a boolean variable.
func (s *Solution) Bool(v *Var) bool { return s.values[v.idx] != 0 }

// Map returns the values keyed by variable name. Integers are int64,
// reals float64 and booleans bool.
func (s *Solution) Map() map[string]any {
	out := make(map[string]any, len(s.vars))
	for _, v := range s.vars {
		switch v.kind {
		case KindInt:
			out[v.name] = s.Int(v)
		case KindReal:
			out[v.name] = s.Value(v)
		case KindBool:
			out[v.name] = s.Bool(v)
		}
	}
	return out
}

// Solver enumerates the distinct solutions of a model. The sequence is
// determined by the seed, so two solvers with the same seed over the same
// model agree.
type Solver struct {
	model *Model
	seed  uint64
	limit int
	order []int

	rng   *rand.Rand
	stack []domains
	nodes int
}

// Solver creates a search over the model. The model must not be changed
// afterwards.
func (m *Model) Solver(seed uint64) *Solver {
	s := &Solver{model: m, seed: seed, limit: DefaultNodeLimit}

	// integral variables are branched on before reals
	for _, v := range m.vars {
		if v.kind != KindReal {
			s.order = append(s.order, v.idx)
		}
	}
	for _, v := range m.vars {
		if v.kind == KindReal {
			s.order = append(s.order, v.idx)
		}
	}

	s.Reset()
	return s
}

// SetNodeLimit changes the number of search nodes allowed between resets.
func (s *Solver) SetNodeLimit(n int) {
	if n > 0 {
		s.limit = n
	}
}

// Reset restarts the enumeration from the first solution.
func (s *Solver) Reset() {
	s.rng = rand.New(rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15))
	s.stack = []domains{s.model.initial.clone()}
	s.nodes = 0
}

// FindSolution returns the next solution, or nil when the space is
// exhausted. Successive calls never repeat a solution.
func (s *Solver) FindSolution(ctx context.Context) (*Solution, error) {
	for len(s.stack) > 0 {
		if s.nodes%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.WithStack(err)
			}
		}
		if s.nodes >= s.limit {
			return nil, ErrSearchLimit
		}
		s.nodes++

		d := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]

		if !s.model.propagate(d) {
			continue
		}

		idx := s.unfixed(d)
		if idx < 0 {
			vals := make([]int64, len(d))
			for i, b := range d {
				vals[i] = b.lo
			}
			if s.model.satisfied(vals) {
				return &Solution{values: vals, vars: s.model.vars}, nil
			}
			continue
		}

		b := d[idx]
		pick := b.lo + s.rng.Int64N(b.hi-b.lo+1)

		// popped in reverse: the picked value, then below it, then above
		if pick < b.hi {
			above := d.clone()
			above[idx] = bound{lo: pick + 1, hi: b.hi}
			s.stack = append(s.stack, above)
		}
		if pick > b.lo {
			below := d.clone()
			below[idx] = bound{lo: b.lo, hi: pick - 1}
			s.stack = append(s.stack, below)
		}
		d[idx] = bound{lo: pick, hi: pick}
		s.stack = append(s.stack, d)
	}

	return nil, nil
}

func (s *Solver) unfixed(d domains) int {
	for _, idx := range s.order {
		if d[idx].lo != d[idx].hi {
			return idx
		}
	}
	return -1
}
