package solver

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBinary(t *testing.T, op Op, x, y Expr) Expr {
	e, err := Binary(op, x, y)
	require.NoError(t, err)
	return e
}

func collect(t *testing.T, s *Solver) []*Solution {
	var out []*Solution
	for {
		sol, err := s.FindSolution(context.Background())
		require.NoError(t, err)
		if sol == nil {
			return out
		}
		out = append(out, sol)
	}
}

func TestIntegerBounds(t *testing.T) {
	m := NewModel()
	x, err := m.IntVar("x", 0, 10)
	require.NoError(t, err)
	require.NoError(t, m.Post(mustBinary(t, OpGt, x, IntConst(3))))
	require.NoError(t, m.Post(mustBinary(t, OpLt, x, IntConst(6))))

	solutions := collect(t, m.Solver(1))
	require.Len(t, solutions, 2)

	seen := map[int64]bool{}
	for _, sol := range solutions {
		seen[sol.Int(x)] = true
	}
	assert.Equal(t, map[int64]bool{4: true, 5: true}, seen)
}

func TestRealPrecision(t *testing.T) {
	m := NewModel()
	price, err := m.RealVar("price", -1e6, 1e6, 0.01)
	require.NoError(t, err)
	require.NoError(t, m.Post(mustBinary(t, OpGe, price, Const(1.5))))
	require.NoError(t, m.Post(mustBinary(t, OpLe, price, Const(10.0))))

	s := m.Solver(42)
	for i := 0; i < 20; i++ {
		sol, err := s.FindSolution(context.Background())
		require.NoError(t, err)
		require.NotNil(t, sol)
		v := sol.Value(price)
		assert.True(t, v >= 1.5 && v <= 10.0, "value %g out of range", v)
		assert.InDelta(t, math.Round(v*100)/100, v, 1e-9)
	}
}

func TestLinearEquality(t *testing.T) {
	m := NewModel()
	x, err := m.IntVar("x", 0, 100)
	require.NoError(t, err)
	y, err := m.IntVar("y", 0, 5)
	require.NoError(t, err)

	rhs := mustBinary(t, OpAdd, mustBinary(t, OpMul, IntConst(2), y), IntConst(1))
	require.NoError(t, m.Post(mustBinary(t, OpEq, x, rhs)))

	solutions := collect(t, m.Solver(7))
	require.Len(t, solutions, 6)
	for _, sol := range solutions {
		assert.Equal(t, 2*sol.Int(y)+1, sol.Int(x))
	}
}

func TestUnsatisfiable(t *testing.T) {
	m := NewModel()
	x, err := m.IntVar("x", -1000000, 1000000)
	require.NoError(t, err)
	require.NoError(t, m.Post(mustBinary(t, OpAnd,
		mustBinary(t, OpGt, x, IntConst(5)),
		mustBinary(t, OpLt, x, IntConst(3)))))

	sol, err := m.Solver(1).FindSolution(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sol)
}

func TestNotEqual(t *testing.T) {
	m := NewModel()
	x, err := m.IntVar("x", 0, 1)
	require.NoError(t, err)
	require.NoError(t, m.Post(mustBinary(t, OpNe, x, IntConst(0))))

	solutions := collect(t, m.Solver(3))
	require.Len(t, solutions, 1)
	assert.EqualValues(t, 1, solutions[0].Int(x))
}

func TestBooleans(t *testing.T) {
	m := NewModel()
	flag, err := m.BoolVar("flag")
	require.NoError(t, err)
	n, err := m.IntVar("n", 0, 3)
	require.NoError(t, err)

	notFlag, err := Not(flag)
	require.NoError(t, err)
	require.NoError(t, m.Post(mustBinary(t, OpOr, notFlag, mustBinary(t, OpEq, n, IntConst(2)))))
	require.NoError(t, m.Post(flag))

	solutions := collect(t, m.Solver(9))
	require.Len(t, solutions, 1)
	assert.True(t, solutions[0].Bool(flag))
	assert.EqualValues(t, 2, solutions[0].Int(n))
	assert.Equal(t, map[string]any{"flag": true, "n": int64(2)}, solutions[0].Map())
}

func TestDeterministicEnumeration(t *testing.T) {
	build := func() (*Model, *Var) {
		m := NewModel()
		x, err := m.IntVar("x", 0, 1000)
		require.NoError(t, err)
		require.NoError(t, m.Post(mustBinary(t, OpEq, mustBinary(t, OpMod, x, IntConst(2)), IntConst(0))))
		return m, x
	}

	m1, x1 := build()
	m2, x2 := build()
	s1, s2 := m1.Solver(11), m2.Solver(11)

	var first []int64
	for i := 0; i < 5; i++ {
		a, err := s1.FindSolution(context.Background())
		require.NoError(t, err)
		b, err := s2.FindSolution(context.Background())
		require.NoError(t, err)
		require.NotNil(t, a)
		require.NotNil(t, b)
		assert.Equal(t, a.Int(x1), b.Int(x2))
		assert.Zero(t, a.Int(x1)%2)
		first = append(first, a.Int(x1))
	}

	s1.Reset()
	sol, err := s1.FindSolution(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sol)
	assert.Equal(t, first[0], sol.Int(x1))
}

func TestSearchLimit(t *testing.T) {
	m := NewModel()
	x, err := m.IntVar("x", -1000000, 1000000)
	require.NoError(t, err)
	// squares are never 3 mod 7 and modulo does not narrow its operands
	square := mustBinary(t, OpMul, x, x)
	require.NoError(t, m.Post(mustBinary(t, OpEq, mustBinary(t, OpMod, square, IntConst(7)), IntConst(3))))

	s := m.Solver(5)
	s.SetNodeLimit(100)
	sol, err := s.FindSolution(context.Background())
	assert.Nil(t, sol)
	assert.Equal(t, ErrSearchLimit, err)
}

func TestCanceledContext(t *testing.T) {
	m := NewModel()
	_, err := m.IntVar("x", 0, 10)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Solver(1).FindSolution(ctx)
	assert.Error(t, err)
}

func TestDivision(t *testing.T) {
	m := NewModel()
	x, err := m.IntVar("x", 0, 20)
	require.NoError(t, err)
	require.NoError(t, m.Post(mustBinary(t, OpEq, mustBinary(t, OpDiv, x, IntConst(7)), IntConst(2))))

	solutions := collect(t, m.Solver(2))
	require.Len(t, solutions, 7)
	for _, sol := range solutions {
		assert.EqualValues(t, 2, sol.Int(x)/7)
	}
}

func TestModelErrors(t *testing.T) {
	m := NewModel()
	_, err := m.IntVar("x", 5, 1)
	assert.Error(t, err)
	_, err = m.RealVar("r", 0, 1, 0)
	assert.Error(t, err)

	x, err := m.IntVar("y", 0, 1)
	require.NoError(t, err)
	assert.Error(t, m.Post(mustBinary(t, OpAdd, x, IntConst(1))))
	assert.Error(t, m.Post(nil))

	_, err = Binary(OpAnd, x, IntConst(1))
	assert.Error(t, err)
	_, err = Not(IntConst(1))
	assert.Error(t, err)
	_, err = Binary(Op("^"), x, x)
	assert.Error(t, err)
}
