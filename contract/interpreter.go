package contract

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Nikpro200125/orchestrator/libsl"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/pkg/errors"
)

const (
	// ResultName is the variable holding a function's answer.
	ResultName = "result"
	// SumAction adds every element of its first argument to its second.
	SumAction = "ADD_ACTION"

	maxCallDepth = 64
)

type scope struct {
	vars   map[string]any
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: map[string]any{}, parent: parent}
}

func (s *scope) declare(name string, v any) { s.vars[name] = v }

func (s *scope) get(name string) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (s *scope) set(name string, v any) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.vars[name]; ok {
			cur.vars[name] = v
			return true
		}
	}
	return false
}

// interpreter runs function and procedure bodies. The state scope holds
// automaton variables and outlives a single call.
type interpreter struct {
	lib       *libsl.Library
	automaton *libsl.Automaton
	state     *scope
	faker     *gofakeit.Faker
	depth     int
}

func (in *interpreter) exec(stmts []libsl.Stmt, sc *scope) error {
	for _, stmt := range stmts {
		if err := in.execOne(stmt, sc); err != nil {
			return err
		}
	}
	return nil
}

func (in *interpreter) execOne(stmt libsl.Stmt, sc *scope) error {
	switch s := stmt.(type) {
	case *libsl.VarDecl:
		var v any
		if s.Init != nil {
			var err error
			if v, err = in.eval(s.Init, sc); err != nil {
				return errors.Wrapf(err, "declaring '%s' at %d:%d", s.Name, s.Pos.Line, s.Pos.Column)
			}
		} else if !s.Type.IsZero() {
			if r, err := in.lib.ResolveType(s.Type); err == nil {
				v = zeroValue(r)
			}
		}
		sc.declare(s.Name, v)
	case *libsl.Assign:
		v, err := in.eval(s.Value, sc)
		if err != nil {
			return errors.Wrapf(err, "assignment at %d:%d", s.Pos.Line, s.Pos.Column)
		}
		if err = in.assign(s.Target, v, sc); err != nil {
			return errors.Wrapf(err, "assignment at %d:%d", s.Pos.Line, s.Pos.Column)
		}
	case *libsl.ExprStmt:
		if _, err := in.eval(s.X, sc); err != nil {
			return errors.Wrapf(err, "statement at %d:%d", s.Pos.Line, s.Pos.Column)
		}
	case *libsl.If:
		v, err := in.eval(s.Cond, sc)
		if err != nil {
			return errors.Wrapf(err, "condition at %d:%d", s.Pos.Line, s.Pos.Column)
		}
		cond, err := toBool(v)
		if err != nil {
			return errors.Wrapf(err, "condition at %d:%d", s.Pos.Line, s.Pos.Column)
		}
		if cond {
			return in.exec(s.Then, newScope(sc))
		}
		return in.exec(s.Else, newScope(sc))
	case *libsl.Action:
		return errors.Wrapf(in.action(s, sc), "action at %d:%d", s.Pos.Line, s.Pos.Column)
	default:
		return errors.Errorf("unknown statement type %T", stmt)
	}
	return nil
}

func (in *interpreter) action(a *libsl.Action, sc *scope) error {
	if a.Name != SumAction {
		return errors.Errorf("Unknown action: %s", a.Name)
	}
	if len(a.Args) != 2 {
		return errors.Errorf("Incompatible argument types for action %s", a.Name)
	}

	arr, err := in.eval(a.Args[0], sc)
	if err != nil {
		return err
	}
	items, ok := arr.([]any)
	if !ok {
		return errors.Errorf("action %s needs a list, found %s", a.Name, describe(arr))
	}
	acc, err := in.eval(a.Args[1], sc)
	if err != nil {
		return err
	}
	for _, item := range items {
		if acc, err = arithmetic(libsl.OpAdd, acc, item); err != nil {
			return err
		}
	}
	return in.assign(a.Args[1], acc, sc)
}

func (in *interpreter) assign(target libsl.Expr, v any, sc *scope) error {
	switch t := target.(type) {
	case *libsl.Ident:
		root := t.Path[0]
		current, ok := sc.get(root)
		if !ok {
			return errors.Errorf("undefined variable '%s'", root)
		}
		sc.set(root, setPath(current, t.Path[1:], v))
		return nil
	case *libsl.Selector:
		x, err := in.eval(t.X, sc)
		if err != nil {
			return err
		}
		m, ok := x.(map[string]any)
		if !ok {
			return errors.Errorf("cannot set field '%s' on %s", t.Name, describe(x))
		}
		m[t.Name] = v
		return nil
	case *libsl.Index:
		x, err := in.eval(t.X, sc)
		if err != nil {
			return err
		}
		idx, err := in.eval(t.Index, sc)
		if err != nil {
			return err
		}
		switch c := x.(type) {
		case []any:
			i, ok := toInt(idx)
			if !ok || i < 0 || i >= int64(len(c)) {
				return errors.Errorf("index %v out of range [0, %d)", idx, len(c))
			}
			c[i] = v
			return nil
		case map[string]any:
			c[fmt.Sprint(idx)] = v
			return nil
		}
		return errors.Errorf("cannot index %s", describe(x))
	}
	return errors.Errorf("cannot assign to %T", target)
}

func (in *interpreter) eval(e libsl.Expr, sc *scope) (any, error) {
	switch n := e.(type) {
	case *libsl.IntLit:
		return n.Value, nil
	case *libsl.FloatLit:
		return n.Value, nil
	case *libsl.StringLit:
		return n.Value, nil
	case *libsl.BoolLit:
		return n.Value, nil
	case *libsl.NullLit:
		return nil, nil
	case *libsl.ArrayLit:
		out := make([]any, 0, len(n.Elems))
		for _, elem := range n.Elems {
			v, err := in.eval(elem, sc)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case *libsl.Ident:
		return in.ident(n, sc)
	case *libsl.Selector:
		x, err := in.eval(n.X, sc)
		if err != nil {
			return nil, err
		}
		return getPath(x, []string{n.Name}), nil
	case *libsl.Index:
		x, err := in.eval(n.X, sc)
		if err != nil {
			return nil, err
		}
		idx, err := in.eval(n.Index, sc)
		if err != nil {
			return nil, err
		}
		return index(x, idx)
	case *libsl.Unary:
		x, err := in.eval(n.X, sc)
		if err != nil {
			return nil, err
		}
		return unary(n.Op, x)
	case *libsl.Binary:
		return in.binary(n, sc)
	case *libsl.Call:
		return in.call(n, sc)
	}
	return nil, errors.Errorf("unknown expression type %T", e)
}

func (in *interpreter) ident(n *libsl.Ident, sc *scope) (any, error) {
	root, ok := sc.get(n.Path[0])
	if ok {
		return getPath(root, n.Path[1:]), nil
	}

	// Status.ACTIVE
	if len(n.Path) == 2 {
		if t, ok := in.lib.LookupType(n.Path[0]); ok {
			if enum, ok := t.(*libsl.EnumType); ok {
				for _, c := range enum.Constants {
					if c.Name == n.Path[1] {
						return c.Name, nil
					}
				}
			}
		}
	}
	return nil, errors.Errorf("undefined variable '%s'", n.Name())
}

func (in *interpreter) binary(n *libsl.Binary, sc *scope) (any, error) {
	left, err := in.eval(n.Left, sc)
	if err != nil {
		return nil, err
	}

	if n.Op == libsl.OpAnd || n.Op == libsl.OpOr {
		l, err := toBool(left)
		if err != nil {
			return nil, errors.Wrapf(err, "left operand of %s", n.Op)
		}
		if (n.Op == libsl.OpAnd && !l) || (n.Op == libsl.OpOr && l) {
			return l, nil
		}
		right, err := in.eval(n.Right, sc)
		if err != nil {
			return nil, err
		}
		r, err := toBool(right)
		return r, errors.Wrapf(err, "right operand of %s", n.Op)
	}

	right, err := in.eval(n.Right, sc)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case libsl.OpEq:
		return equal(left, right), nil
	case libsl.OpNe:
		return !equal(left, right), nil
	case libsl.OpLt, libsl.OpLe, libsl.OpGt, libsl.OpGe:
		return compare(n.Op, left, right)
	}
	return arithmetic(n.Op, left, right)
}

func compare(op libsl.Op, left, right any) (bool, error) {
	var cmp int
	if ls, ok := left.(string); ok {
		rs, ok := right.(string)
		if !ok {
			return false, errors.Errorf("cannot compare %s with %s", describe(left), describe(right))
		}
		cmp = strings.Compare(ls, rs)
	} else {
		l, okL := toFloat(left)
		r, okR := toFloat(right)
		if !okL || !okR {
			return false, errors.Errorf("cannot compare %s with %s", describe(left), describe(right))
		}
		switch {
		case l < r:
			cmp = -1
		case l > r:
			cmp = 1
		}
	}

	switch op {
	case libsl.OpLt:
		return cmp < 0, nil
	case libsl.OpLe:
		return cmp <= 0, nil
	case libsl.OpGt:
		return cmp > 0, nil
	default:
		return cmp >= 0, nil
	}
}

func arithmetic(op libsl.Op, left, right any) (any, error) {
	if op == libsl.OpAdd {
		ls, lStr := left.(string)
		rs, rStr := right.(string)
		switch {
		case lStr && rStr:
			return ls + rs, nil
		case lStr:
			return ls + format(right), nil
		case rStr:
			return format(left) + rs, nil
		}
	}

	li, lInt := left.(int64)
	ri, rInt := right.(int64)
	if lInt && rInt {
		switch op {
		case libsl.OpAdd:
			return li + ri, nil
		case libsl.OpSub:
			return li - ri, nil
		case libsl.OpMul:
			return li * ri, nil
		case libsl.OpDiv:
			if ri == 0 {
				return nil, errors.New("division by zero")
			}
			return li / ri, nil
		case libsl.OpMod:
			if ri == 0 {
				return nil, errors.New("division by zero")
			}
			return li % ri, nil
		}
		return nil, errors.Errorf("unsupported operator '%s'", op)
	}

	l, okL := toFloat(left)
	r, okR := toFloat(right)
	if !okL || !okR {
		return nil, errors.Errorf("operator %s cannot combine %s and %s", op, describe(left), describe(right))
	}
	switch op {
	case libsl.OpAdd:
		return l + r, nil
	case libsl.OpSub:
		return l - r, nil
	case libsl.OpMul:
		return l * r, nil
	case libsl.OpDiv:
		if r == 0 {
			return nil, errors.New("division by zero")
		}
		return l / r, nil
	case libsl.OpMod:
		if r == 0 {
			return nil, errors.New("division by zero")
		}
		return math.Mod(l, r), nil
	}
	return nil, errors.Errorf("unsupported operator '%s'", op)
}

func unary(op libsl.Op, x any) (any, error) {
	switch op {
	case libsl.OpNot:
		b, err := toBool(x)
		return !b, err
	case libsl.OpNeg:
		switch t := x.(type) {
		case int64:
			return -t, nil
		case float64:
			return -t, nil
		}
		return nil, errors.Errorf("cannot negate %s", describe(x))
	}
	return nil, errors.Errorf("unsupported unary operator '%s'", op)
}

func index(x, idx any) (any, error) {
	switch c := x.(type) {
	case []any:
		i, ok := toInt(idx)
		if !ok || i < 0 || i >= int64(len(c)) {
			return nil, errors.Errorf("index %v out of range [0, %d)", idx, len(c))
		}
		return c[i], nil
	case map[string]any:
		return c[fmt.Sprint(idx)], nil
	}
	return nil, errors.Errorf("cannot index %s", describe(x))
}

func format(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

////////////////////////////////////////////////////////////////////////
//
// Calls

func (in *interpreter) call(c *libsl.Call, sc *scope) (any, error) {
	if c.New {
		return in.construct(c, sc)
	}

	switch c.Name {
	case "nextInt":
		return in.nextInt(c, sc)
	case "nextDouble":
		return in.nextDouble(c, sc)
	case "nextBoolean":
		return in.faker.Bool(), nil
	case "equals":
		args, err := in.receiverArgs(c, sc)
		if err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, errors.Errorf("equals needs two values, found %d", len(args))
		}
		return equal(args[0], args[1]), nil
	case "add":
		return in.add(c, sc)
	case "len", "size":
		args, err := in.receiverArgs(c, sc)
		if err != nil {
			return nil, err
		}
		if len(args) != 1 {
			return nil, errors.Errorf("%s needs one value, found %d", c.Name, len(args))
		}
		switch t := args[0].(type) {
		case []any:
			return int64(len(t)), nil
		case map[string]any:
			return int64(len(t)), nil
		case string:
			return int64(len(t)), nil
		}
		return nil, errors.Errorf("%s of %s", c.Name, describe(args[0]))
	case "get":
		args, err := in.receiverArgs(c, sc)
		if err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, errors.Errorf("get needs a container and a key, found %d values", len(args))
		}
		return index(args[0], args[1])
	}

	if proc := in.proc(c.Name); proc != nil {
		return in.invoke(proc, c, sc)
	}
	if _, ok := in.lib.LookupType(c.Name); ok {
		return in.construct(c, sc)
	}
	return nil, errors.Errorf("Function not found: %s", c.Name)
}

// receiverArgs evaluates "recv.f(a)" and "f(recv, a)" to the same list.
func (in *interpreter) receiverArgs(c *libsl.Call, sc *scope) ([]any, error) {
	exprs := c.Args
	if c.Recv != nil {
		exprs = append([]libsl.Expr{c.Recv}, c.Args...)
	}
	out := make([]any, 0, len(exprs))
	for _, e := range exprs {
		v, err := in.eval(e, sc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (in *interpreter) add(c *libsl.Call, sc *scope) (any, error) {
	target := c.Recv
	rest := c.Args
	if target == nil {
		if len(c.Args) == 0 {
			return nil, errors.New("add needs a list")
		}
		target, rest = c.Args[0], c.Args[1:]
	}
	if len(rest) != 1 {
		return nil, errors.Errorf("add needs one element, found %d", len(rest))
	}

	list, err := in.eval(target, sc)
	if err != nil {
		return nil, err
	}
	items, ok := list.([]any)
	if !ok && list != nil {
		return nil, errors.Errorf("add needs a list, found %s", describe(list))
	}
	elem, err := in.eval(rest[0], sc)
	if err != nil {
		return nil, err
	}
	if err = in.assign(target, append(items, elem), sc); err != nil {
		return nil, err
	}
	return true, nil
}

func (in *interpreter) nextInt(c *libsl.Call, sc *scope) (any, error) {
	args, err := in.receiverArgs(&libsl.Call{Args: c.Args}, sc)
	if err != nil {
		return nil, err
	}
	switch len(args) {
	case 0:
		return int64(in.faker.IntRange(math.MinInt32, math.MaxInt32)), nil
	case 1:
		n, ok := toInt(args[0])
		if !ok || n <= 0 {
			return nil, errors.Errorf("bound must be a positive integer, found %s", describe(args[0]))
		}
		return int64(in.faker.IntRange(0, int(n-1))), nil
	case 2:
		lo, okLo := toInt(args[0])
		hi, okHi := toInt(args[1])
		if !okLo || !okHi || lo >= hi {
			return nil, errors.Errorf("invalid range [%v, %v)", args[0], args[1])
		}
		return int64(in.faker.IntRange(int(lo), int(hi-1))), nil
	}
	return nil, errors.Errorf("nextInt takes at most two values, found %d", len(args))
}

func (in *interpreter) nextDouble(c *libsl.Call, sc *scope) (any, error) {
	args, err := in.receiverArgs(&libsl.Call{Args: c.Args}, sc)
	if err != nil {
		return nil, err
	}
	switch len(args) {
	case 0:
		return in.faker.Float64(), nil
	case 2:
		lo, okLo := toFloat(args[0])
		hi, okHi := toFloat(args[1])
		if !okLo || !okHi || lo >= hi {
			return nil, errors.Errorf("invalid range [%v, %v)", args[0], args[1])
		}
		return in.faker.Float64Range(lo, hi), nil
	}
	return nil, errors.Errorf("nextDouble takes zero or two values, found %d", len(args))
}

func (in *interpreter) proc(name string) *libsl.Proc {
	if in.automaton != nil {
		if p := in.automaton.Proc(name); p != nil {
			return p
		}
	}
	for _, a := range in.lib.Automata {
		if p := a.Proc(name); p != nil {
			return p
		}
	}
	return nil
}

func (in *interpreter) invoke(proc *libsl.Proc, c *libsl.Call, sc *scope) (any, error) {
	if len(c.Args) != len(proc.Args) {
		return nil, errors.Errorf("Argument count mismatch for function: %s", proc.Name)
	}
	if in.depth >= maxCallDepth {
		return nil, errors.Errorf("call depth limit reached in '%s'", proc.Name)
	}

	local := newScope(in.state)
	for i, arg := range proc.Args {
		v, err := in.eval(c.Args[i], sc)
		if err != nil {
			return nil, errors.Wrapf(err, "argument '%s' of '%s'", arg.Name, proc.Name)
		}
		local.declare(arg.Name, v)
	}
	local.declare(ResultName, nil)

	in.depth++
	defer func() { in.depth-- }()
	if err := in.exec(proc.Body, local); err != nil {
		return nil, errors.Wrapf(err, "in procedure '%s'", proc.Name)
	}

	result, _ := local.get(ResultName)
	return result, nil
}

// construct builds an object of a declared type. Positional arguments
// fill fields in declaration order.
func (in *interpreter) construct(c *libsl.Call, sc *scope) (any, error) {
	r, err := in.lib.ResolveType(libsl.TypeRef{Name: c.Name})
	if err != nil {
		return nil, errors.Wrapf(err, "constructing '%s'", c.Name)
	}

	args, err := in.receiverArgs(&libsl.Call{Args: c.Args}, sc)
	if err != nil {
		return nil, err
	}

	switch r.Kind {
	case libsl.KindStruct:
		if len(args) > len(r.Struct.Fields) {
			return nil, errors.Errorf("type '%s' has %d fields, found %d values", c.Name, len(r.Struct.Fields), len(args))
		}
		obj := make(map[string]any, len(r.Struct.Fields))
		for i, f := range r.Struct.Fields {
			if i < len(args) {
				obj[f.Name] = args[i]
				continue
			}
			fr, err := in.lib.ResolveType(f.Type)
			if err != nil {
				return nil, errors.Wrapf(err, "field '%s' of '%s'", f.Name, c.Name)
			}
			obj[f.Name] = zeroValue(fr)
		}
		return obj, nil
	case libsl.KindArray:
		return args, nil
	case libsl.KindMap:
		return map[string]any{}, nil
	}

	if len(args) == 1 {
		return args[0], nil
	}
	if len(args) == 0 {
		return zeroValue(r), nil
	}
	return nil, errors.Errorf("cannot construct '%s' from %d values", c.Name, len(args))
}
