package solver

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// Op is an arithmetic, relational or logical operator.
type Op string

const (
	OpAdd Op = "+"
	OpSub Op = "-"
	OpMul Op = "*"
	OpDiv Op = "/"
	OpMod Op = "%"
	OpLt  Op = "<"
	OpLe  Op = "<="
	OpGt  Op = ">"
	OpGe  Op = ">="
	OpEq  Op = "=="
	OpNe  Op = "!="
	OpAnd Op = "&&"
	OpOr  Op = "||"
)

func (op Op) arithmetic() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return true
	}
	return false
}

func (op Op) relational() bool {
	switch op {
	case OpLt, OpLe, OpGt, OpGe, OpEq, OpNe:
		return true
	}
	return false
}

func (op Op) logical() bool { return op == OpAnd || op == OpOr }

var negated = map[Op]Op{
	OpLt: OpGe,
	OpLe: OpGt,
	OpGt: OpLe,
	OpGe: OpLt,
	OpEq: OpNe,
	OpNe: OpEq,
}

// Expr is a node of a constraint expression. Boolean expressions take the
// values 0 and 1.
type Expr interface {
	fmt.Stringer

	// bounds over-approximates the value range under the domains.
	bounds(d domains) interval
	// narrow shrinks the domains so the value can lie in iv and reports
	// false when it cannot.
	narrow(d domains, iv interval) bool
	// eval computes the exact value; false means undefined.
	eval(vals []int64) (float64, bool)
	integral() bool
	boolean() bool
}

////////////////////////////////////////////////////////////////////////
//
// Constants

type constant struct {
	value  float64
	isInt  bool
	isBool bool
}

// Const is a real constant.
func Const(v float64) Expr {
	return &constant{value: v, isInt: v == math.Trunc(v) && math.Abs(v) < 1<<53}
}

// IntConst is an integer constant.
func IntConst(v int64) Expr {
	return &constant{value: float64(v), isInt: true}
}

// BoolConst is 1 for true and 0 for false.
func BoolConst(v bool) Expr {
	if v {
		return &constant{value: 1, isInt: true, isBool: true}
	}
	return &constant{value: 0, isInt: true, isBool: true}
}

func (c *constant) String() string {
	if c.isBool {
		return fmt.Sprint(c.value != 0)
	}
	if c.isInt {
		return fmt.Sprintf("%d", int64(c.value))
	}
	return fmt.Sprintf("%g", c.value)
}

func (c *constant) bounds(domains) interval {
	return point(c.value)
}

func (c *constant) narrow(_ domains, iv interval) bool {
	return c.value >= iv.lo-epsilon*math.Max(1, math.Abs(iv.lo)) && c.value <= iv.hi+epsilon*math.Max(1, math.Abs(iv.hi))
}

func (c *constant) eval([]int64) (float64, bool) {
	return c.value, true
}

func (c *constant) integral() bool {
	return c.isInt
}

func (c *constant) boolean() bool {
	return c.isBool
}

////////////////////////////////////////////////////////////////////////
//
// Variables

func (v *Var) String() string {
	return v.name
}

func (v *Var) bounds(d domains) interval {
	b := d[v.idx]
	return interval{float64(b.lo) / v.scale, float64(b.hi) / v.scale}
}

func (v *Var) narrow(d domains, iv interval) bool {
	b := d[v.idx]
	lo, hi := b.lo, b.hi
	if !math.IsInf(iv.lo, -1) {
		if g := math.Ceil(iv.lo*v.scale - epsilon*math.Max(1, math.Abs(iv.lo*v.scale))); g > float64(lo) {
			if g > float64(hi) {
				return false
			}
			lo = int64(g)
		}
	}
	if !math.IsInf(iv.hi, 1) {
		if g := math.Floor(iv.hi*v.scale + epsilon*math.Max(1, math.Abs(iv.hi*v.scale))); g < float64(hi) {
			if g < float64(lo) {
				return false
			}
			hi = int64(g)
		}
	}
	if lo > hi {
		return false
	}
	d[v.idx] = bound{lo: lo, hi: hi}
	return true
}

func (v *Var) eval(vals []int64) (float64, bool) {
	return float64(vals[v.idx]) / v.scale, true
}

func (v *Var) integral() bool {
	return v.kind != KindReal
}

func (v *Var) boolean() bool {
	return v.kind == KindBool
}

////////////////////////////////////////////////////////////////////////
//
// Unary operators

type negation struct{ x Expr }

type not struct{ x Expr }

// Neg is arithmetic negation.
func Neg(x Expr) Expr {
	return &negation{x: x}
}

// Not is logical negation of a boolean expression.
func Not(x Expr) (Expr, error) {
	if !x.boolean() {
		return nil, errors.Errorf("cannot negate non-boolean expression %s", x)
	}
	return &not{x: x}, nil
}

func (n *negation) String() string {
	return "-(" + n.x.String() + ")"
}

func (n *negation) bounds(d domains) interval {
	return n.x.bounds(d).neg()
}

func (n *negation) narrow(d domains, iv interval) bool {
	return n.x.narrow(d, iv.neg())
}

func (n *negation) integral() bool {
	return n.x.integral()
}

func (n *negation) boolean() bool {
	return false
}

func (n *negation) eval(vals []int64) (float64, bool) {
	v, ok := n.x.eval(vals)
	return -v, ok
}

func (n *not) String() string {
	return "!(" + n.x.String() + ")"
}

func (n *not) bounds(d domains) interval {
	b := n.x.bounds(d)
	return interval{1 - b.hi, 1 - b.lo}
}

func (n *not) narrow(d domains, iv interval) bool {
	return n.x.narrow(d, interval{1 - iv.hi, 1 - iv.lo})
}

func (n *not) integral() bool {
	return true
}

func (n *not) boolean() bool {
	return true
}

func (n *not) eval(vals []int64) (float64, bool) {
	v, ok := n.x.eval(vals)
	if !ok {
		return 0, false
	}
	if v != 0 {
		return 0, true
	}
	return 1, true
}

////////////////////////////////////////////////////////////////////////
//
// Binary operators

type binary struct {
	op   Op
	x, y Expr
}

// Binary combines two expressions. Logical operators need boolean
// operands.
func Binary(op Op, x, y Expr) (Expr, error) {
	switch {
	case op.arithmetic(), op.relational():
	case op.logical():
		if !x.boolean() || !y.boolean() {
			return nil, errors.Errorf("operator %s needs boolean operands, found %s and %s", op, x, y)
		}
	default:
		return nil, errors.Errorf("unsupported operator '%s'", op)
	}
	return &binary{op: op, x: x, y: y}, nil
}

func (b *binary) String() string {
	return "(" + b.x.String() + " " + string(b.op) + " " + b.y.String() + ")"
}

func (b *binary) integral() bool {
	if b.op.arithmetic() {
		return b.x.integral() && b.y.integral()
	}
	return true
}

func (b *binary) boolean() bool {
	return !b.op.arithmetic()
}

func (b *binary) bounds(d domains) interval {
	x, y := b.x.bounds(d), b.y.bounds(d)

	switch b.op {
	case OpAdd:
		return x.add(y)
	case OpSub:
		return x.sub(y)
	case OpMul:
		return x.mul(y)
	case OpDiv:
		q := x.div(y)
		if b.integral() {
			// truncation moves the quotient toward zero by less than one
			return q.widen(1)
		}
		return q
	case OpMod:
		m := math.Max(math.Abs(y.lo), math.Abs(y.hi))
		if math.IsInf(m, 0) {
			return whole
		}
		r := interval{-m, m}
		if x.lo >= 0 {
			r.lo = 0
		}
		if x.hi <= 0 {
			r.hi = 0
		}
		return r
	case OpAnd:
		return interval{math.Min(x.lo, y.lo), math.Min(x.hi, y.hi)}
	case OpOr:
		return interval{math.Max(x.lo, y.lo), math.Max(x.hi, y.hi)}
	}

	return relationBounds(b.op, x, y)
}

func relationBounds(op Op, x, y interval) interval {
	switch op {
	case OpLt:
		if x.hi < y.lo && !approxEqual(x.hi, y.lo) {
			return truth
		}
		if x.lo >= y.hi || approxEqual(x.lo, y.hi) {
			return falsity
		}
	case OpLe:
		if x.hi <= y.lo || approxEqual(x.hi, y.lo) {
			return truth
		}
		if x.lo > y.hi && !approxEqual(x.lo, y.hi) {
			return falsity
		}
	case OpGt:
		return relationBounds(OpLt, y, x)
	case OpGe:
		return relationBounds(OpLe, y, x)
	case OpEq:
		if x.singleton() && y.singleton() && approxEqual(x.lo, y.lo) {
			return truth
		}
		if x.intersect(y).empty() {
			return falsity
		}
	case OpNe:
		eq := relationBounds(OpEq, x, y)
		return interval{1 - eq.hi, 1 - eq.lo}
	}
	return unknown
}

func (b *binary) narrow(d domains, iv interval) bool {
	if b.bounds(d).intersect(iv).empty() {
		return false
	}

	if b.op.relational() {
		switch {
		case iv.lo > 0:
			return enforce(d, b.op, b.x, b.y)
		case iv.hi < 1:
			return enforce(d, negated[b.op], b.x, b.y)
		}
		return true
	}

	x, y := b.x.bounds(d), b.y.bounds(d)
	switch b.op {
	case OpAnd:
		switch {
		case iv.lo > 0:
			return b.x.narrow(d, truth) && b.y.narrow(d, truth)
		case iv.hi < 1 && x.lo > 0:
			return b.y.narrow(d, falsity)
		case iv.hi < 1 && y.lo > 0:
			return b.x.narrow(d, falsity)
		}
		return true
	case OpOr:
		switch {
		case iv.hi < 1:
			return b.x.narrow(d, falsity) && b.y.narrow(d, falsity)
		case iv.lo > 0 && x.hi < 1:
			return b.y.narrow(d, truth)
		case iv.lo > 0 && y.hi < 1:
			return b.x.narrow(d, truth)
		}
		return true
	case OpAdd:
		if !b.x.narrow(d, iv.sub(y)) {
			return false
		}
		return b.y.narrow(d, iv.sub(b.x.bounds(d)))
	case OpSub:
		if !b.x.narrow(d, iv.add(y)) {
			return false
		}
		return b.y.narrow(d, b.x.bounds(d).sub(iv))
	case OpMul:
		if !y.containsZero() {
			if !b.x.narrow(d, iv.div(y)) {
				return false
			}
		}
		if x = b.x.bounds(d); !x.containsZero() {
			return b.y.narrow(d, iv.div(x))
		}
		return true
	case OpDiv:
		if b.integral() {
			return true
		}
		if !b.x.narrow(d, iv.mul(y)) {
			return false
		}
		if !iv.containsZero() {
			return b.y.narrow(d, b.x.bounds(d).div(iv))
		}
		return true
	}

	return true
}

// enforce narrows both sides so that "x op y" can hold.
func enforce(d domains, op Op, x, y Expr) bool {
	strict := 0.0
	if x.integral() && y.integral() {
		strict = 1
	}

	switch op {
	case OpLt, OpLe:
		gap := 0.0
		if op == OpLt {
			gap = strict
		}
		yb := y.bounds(d)
		if !x.narrow(d, interval{math.Inf(-1), yb.hi - gap}) {
			return false
		}
		xb := x.bounds(d)
		return y.narrow(d, interval{xb.lo + gap, math.Inf(1)})
	case OpGt:
		return enforce(d, OpLt, y, x)
	case OpGe:
		return enforce(d, OpLe, y, x)
	case OpEq:
		if !x.narrow(d, y.bounds(d)) {
			return false
		}
		return y.narrow(d, x.bounds(d))
	case OpNe:
		xb, yb := x.bounds(d), y.bounds(d)
		if xb.singleton() && yb.singleton() {
			return !approxEqual(xb.lo, yb.lo)
		}
		if strict == 0 {
			return true
		}
		if yb.singleton() {
			return excludePoint(d, x, xb, yb.lo)
		}
		if xb.singleton() {
			return excludePoint(d, y, yb, xb.lo)
		}
	}
	return true
}

func excludePoint(d domains, e Expr, b interval, c float64) bool {
	switch {
	case approxEqual(b.lo, c):
		return e.narrow(d, interval{c + 1, math.Inf(1)})
	case approxEqual(b.hi, c):
		return e.narrow(d, interval{math.Inf(-1), c - 1})
	}
	return true
}

func (b *binary) eval(vals []int64) (float64, bool) {
	x, ok := b.x.eval(vals)
	if !ok {
		return 0, false
	}

	// short circuit keeps undefined right-hand sides harmless
	switch b.op {
	case OpAnd:
		if x == 0 {
			return 0, true
		}
	case OpOr:
		if x != 0 {
			return 1, true
		}
	}

	y, ok := b.y.eval(vals)
	if !ok {
		return 0, false
	}

	switch b.op {
	case OpAdd:
		return x + y, true
	case OpSub:
		return x - y, true
	case OpMul:
		return x * y, true
	case OpDiv:
		if y == 0 {
			return 0, false
		}
		if b.integral() {
			return math.Trunc(x / y), true
		}
		return x / y, true
	case OpMod:
		if y == 0 {
			return 0, false
		}
		return math.Mod(x, y), true
	case OpAnd, OpOr:
		return boolValue(y != 0), true
	case OpLt:
		return boolValue(x < y && !approxEqual(x, y)), true
	case OpLe:
		return boolValue(x < y || approxEqual(x, y)), true
	case OpGt:
		return boolValue(x > y && !approxEqual(x, y)), true
	case OpGe:
		return boolValue(x > y || approxEqual(x, y)), true
	case OpEq:
		return boolValue(approxEqual(x, y)), true
	case OpNe:
		return boolValue(!approxEqual(x, y)), true
	}
	return 0, false
}

func boolValue(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
