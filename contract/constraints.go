package contract

import (
	"strings"

	"github.com/Nikpro200125/orchestrator/libsl"
	"github.com/Nikpro200125/orchestrator/solver"
	"github.com/pkg/errors"
)

const (
	// RegexEnsure names ensures whose right-hand side is a pattern for
	// the left-hand field.
	RegexEnsure = "rex"

	resultBound    = 1000000
	realPrecision  = 0.01
	pathSeparator  = "."
	resultPrefix   = ResultName + pathSeparator
	solverVarLimit = 64
)

// ensureKind is how an ensures clause is satisfied.
type ensureKind int

const (
	ensureSolved ensureKind = iota
	ensureRegex
	ensureAssign
)

type ensure struct {
	kind     ensureKind
	contract *libsl.Contract
	// target and value split "target = value" for regex and assignment
	// ensures.
	target *libsl.Ident
	value  libsl.Expr
}

// variable is a dotted access in a solved ensures clause.
type variable struct {
	name   string
	path   []string
	class  string
	result bool
}

// plan is the compiled form of a function's ensures.
type plan struct {
	solved    []*ensure
	regex     []*ensure
	assign    []*ensure
	variables []*variable
}

func isResultPath(name string) bool {
	return name == ResultName || strings.HasPrefix(name, resultPrefix)
}

// compileEnsures classifies every ensures clause of fn. Clauses whose
// variables are all int, real or bool go to the solver; clauses named
// "rex" generate regex matches; everything else is a direct assignment.
func compileEnsures(lib *libsl.Library, fn *libsl.Function) (*plan, error) {
	p := &plan{}
	seen := map[string]bool{}

	for _, c := range fn.ContractsOf(libsl.Ensures) {
		if c.Name == RegexEnsure {
			target, value, err := splitAssignment(c)
			if err != nil {
				return nil, err
			}
			p.regex = append(p.regex, &ensure{kind: ensureRegex, contract: c, target: target, value: value})
			continue
		}

		vars, primitive, err := classify(lib, fn, c.Expr)
		if err != nil {
			return nil, errors.Wrapf(err, "ensures at %d:%d", c.Pos.Line, c.Pos.Column)
		}
		if primitive && solvable(c.Expr) {
			p.solved = append(p.solved, &ensure{kind: ensureSolved, contract: c})
			for _, v := range vars {
				if !seen[v.name] {
					seen[v.name] = true
					p.variables = append(p.variables, v)
				}
			}
			continue
		}

		target, value, err := splitAssignment(c)
		if err != nil {
			return nil, err
		}
		p.assign = append(p.assign, &ensure{kind: ensureAssign, contract: c, target: target, value: value})
	}

	if len(p.variables) > solverVarLimit {
		return nil, errors.Errorf("function '%s' has %d constrained fields, at most %d are supported", fn.Name, len(p.variables), solverVarLimit)
	}
	return p, nil
}

func splitAssignment(c *libsl.Contract) (*libsl.Ident, libsl.Expr, error) {
	b, ok := c.Expr.(*libsl.Binary)
	if !ok || b.Op != libsl.OpEq {
		return nil, nil, errors.Errorf("ensures at %d:%d must have the form 'field = value'", c.Pos.Line, c.Pos.Column)
	}
	target, ok := b.Left.(*libsl.Ident)
	if !ok {
		return nil, nil, errors.Errorf("ensures at %d:%d must assign to a variable", c.Pos.Line, c.Pos.Column)
	}
	return target, b.Right, nil
}

// classify resolves the type of every variable of e and reports whether
// all of them are numeric or boolean.
func classify(lib *libsl.Library, fn *libsl.Function, e libsl.Expr) ([]*variable, bool, error) {
	var out []*variable
	primitive := true

	for _, name := range libsl.Variables(e) {
		path := strings.Split(name, pathSeparator)
		v := &variable{name: name, path: path, result: path[0] == ResultName}

		var root libsl.TypeRef
		if v.result {
			root = fn.ReturnType
		} else {
			for _, arg := range fn.Args {
				if arg.Name == path[0] {
					root = arg.Type
				}
			}
		}
		if root.IsZero() {
			return nil, false, errors.Errorf("unknown variable '%s'", name)
		}

		r, err := fieldType(lib, root, path[1:])
		if err != nil {
			return nil, false, errors.Wrapf(err, "variable '%s'", name)
		}
		if r.Kind == libsl.KindPrimitive {
			v.class = libsl.PrimitiveClass(r.Name)
		}
		switch v.class {
		case libsl.PrimitiveInt, libsl.PrimitiveReal, libsl.PrimitiveBool:
		default:
			primitive = false
		}
		out = append(out, v)
	}

	return out, primitive, nil
}

func fieldType(lib *libsl.Library, root libsl.TypeRef, fields []string) (*libsl.Resolved, error) {
	r, err := lib.ResolveType(root)
	if err != nil {
		return nil, err
	}
	for _, name := range fields {
		if r.Kind != libsl.KindStruct {
			return nil, errors.Errorf("'%s' is not a field of non-object type '%s'", name, r.Name)
		}
		f := r.Struct.Field(name)
		if f == nil {
			return nil, errors.Errorf("type '%s' has no field '%s'", r.Name, name)
		}
		if r, err = lib.ResolveType(f.Type); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// solvable reports whether e only uses constructs the solver models.
func solvable(e libsl.Expr) bool {
	switch n := e.(type) {
	case *libsl.Ident, *libsl.IntLit, *libsl.FloatLit, *libsl.BoolLit:
		return true
	case *libsl.Unary:
		return solvable(n.X)
	case *libsl.Binary:
		return solvable(n.Left) && solvable(n.Right)
	}
	return false
}

var solverOps = map[libsl.Op]solver.Op{
	libsl.OpAdd: solver.OpAdd,
	libsl.OpSub: solver.OpSub,
	libsl.OpMul: solver.OpMul,
	libsl.OpDiv: solver.OpDiv,
	libsl.OpMod: solver.OpMod,
	libsl.OpLt:  solver.OpLt,
	libsl.OpLe:  solver.OpLe,
	libsl.OpGt:  solver.OpGt,
	libsl.OpGe:  solver.OpGe,
	libsl.OpEq:  solver.OpEq,
	libsl.OpNe:  solver.OpNe,
	libsl.OpAnd: solver.OpAnd,
	libsl.OpOr:  solver.OpOr,
}

// model builds the solver model for one request. Result fields become
// decision variables and arguments become constants.
func (p *plan) model(args map[string]any) (*solver.Model, map[string]*solver.Var, error) {
	m := solver.NewModel()
	vars := make(map[string]*solver.Var, len(p.variables))
	consts := map[string]solver.Expr{}

	for _, v := range p.variables {
		if !v.result {
			value := getPath(args[v.path[0]], v.path[1:])
			c, err := constant(v, value)
			if err != nil {
				return nil, nil, err
			}
			consts[v.name] = c
			continue
		}

		var sv *solver.Var
		var err error
		switch v.class {
		case libsl.PrimitiveInt:
			sv, err = m.IntVar(v.name, -resultBound, resultBound)
		case libsl.PrimitiveReal:
			sv, err = m.RealVar(v.name, -resultBound, resultBound, realPrecision)
		default:
			sv, err = m.BoolVar(v.name)
		}
		if err != nil {
			return nil, nil, err
		}
		vars[v.name] = sv
	}

	for _, e := range p.solved {
		expr, err := toSolver(e.contract.Expr, vars, consts)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "ensures at %d:%d", e.contract.Pos.Line, e.contract.Pos.Column)
		}
		if err = m.Post(expr); err != nil {
			return nil, nil, errors.Wrapf(err, "ensures at %d:%d", e.contract.Pos.Line, e.contract.Pos.Column)
		}
	}

	return m, vars, nil
}

func constant(v *variable, value any) (solver.Expr, error) {
	switch t := value.(type) {
	case int64:
		return solver.IntConst(t), nil
	case float64:
		return solver.Const(t), nil
	case bool:
		return solver.BoolConst(t), nil
	case nil:
		return nil, &ArgumentError{Name: v.name, Err: errors.New("value is required by the postconditions")}
	}
	return nil, &ArgumentError{Name: v.name, Err: errors.Errorf("expected a %s, found %s", v.class, describe(value))}
}

func toSolver(e libsl.Expr, vars map[string]*solver.Var, consts map[string]solver.Expr) (solver.Expr, error) {
	switch n := e.(type) {
	case *libsl.Ident:
		if v, ok := vars[n.Name()]; ok {
			return v, nil
		}
		if c, ok := consts[n.Name()]; ok {
			return c, nil
		}
		return nil, errors.Errorf("unknown variable '%s'", n.Name())
	case *libsl.IntLit:
		return solver.IntConst(n.Value), nil
	case *libsl.FloatLit:
		return solver.Const(n.Value), nil
	case *libsl.BoolLit:
		return solver.BoolConst(n.Value), nil
	case *libsl.Unary:
		x, err := toSolver(n.X, vars, consts)
		if err != nil {
			return nil, err
		}
		if n.Op == libsl.OpNeg {
			return solver.Neg(x), nil
		}
		return solver.Not(x)
	case *libsl.Binary:
		op, ok := solverOps[n.Op]
		if !ok {
			return nil, errors.Errorf("unsupported operator '%s'", n.Op)
		}
		x, err := toSolver(n.Left, vars, consts)
		if err != nil {
			return nil, err
		}
		y, err := toSolver(n.Right, vars, consts)
		if err != nil {
			return nil, err
		}
		return solver.Binary(op, x, y)
	}
	return nil, errors.Errorf("unsupported expression %T in postcondition", e)
}
