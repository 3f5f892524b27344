// Package contract answers requests to generated services from LibSL
// contracts and function bodies.
package contract

import (
	"context"
	"hash/fnv"
	"net/url"
	"sync"

	"github.com/Nikpro200125/orchestrator/datagen"
	"github.com/Nikpro200125/orchestrator/libsl"
	"github.com/Nikpro200125/orchestrator/openapi"
	"github.com/Nikpro200125/orchestrator/solver"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// Request carries the decoded inputs of one call. Body is JSON decoded
// with UseNumber.
type Request struct {
	Path  map[string]string
	Query url.Values
	Body  any
}

// Evaluator produces responses for the operations of one document.
type Evaluator struct {
	lib      *libsl.Library
	gen      *datagen.Generator
	seed     uint64
	bindings map[string]*Binding
}

// Binding ties an operation to the LibSL function it was generated from.
// Calls to one binding are serialized; they share the solution counter
// and the automaton state.
type Binding struct {
	Automaton *libsl.Automaton
	Function  *libsl.Function
	Operation openapi.Operation

	response *openapi3.SchemaRef
	plan     *plan
	seed     uint64

	mu      sync.Mutex
	counter int
	interp  *interpreter
}

// NewEvaluator binds every operation of doc that names a function of lib.
// Operations without a function are answered with random data. The seed
// makes solution order and random values reproducible; zero picks a
// random seed.
func NewEvaluator(lib *libsl.Library, doc *openapi3.T, seed uint64) (*Evaluator, error) {
	if lib == nil || doc == nil {
		return nil, errors.New("library and document are required")
	}
	if seed == 0 {
		seed = gofakeit.Uint64()
	}

	e := &Evaluator{
		lib:      lib,
		gen:      datagen.New(seed),
		seed:     seed,
		bindings: map[string]*Binding{},
	}

	for _, op := range openapi.Operations(doc) {
		a, fn := lookupFunction(lib, op.Operation)
		if fn == nil {
			continue
		}
		b, err := e.bind(a, fn, op)
		if err != nil {
			return nil, &openapi.ConversionError{Automaton: a.Name, Function: fn.Name, Err: err}
		}
		e.bindings[op.Key()] = b
	}

	return e, nil
}

func lookupFunction(lib *libsl.Library, op *openapi3.Operation) (*libsl.Automaton, *libsl.Function) {
	automaton, _ := op.Extensions[openapi.AutomatonExtension].(string)
	function, _ := op.Extensions[openapi.FunctionExtension].(string)
	if automaton == "" || function == "" {
		return nil, nil
	}
	a := lib.Automaton(automaton)
	if a == nil {
		return nil, nil
	}
	return a, a.Function(function)
}

func (e *Evaluator) bind(a *libsl.Automaton, fn *libsl.Function, op openapi.Operation) (*Binding, error) {
	p, err := compileEnsures(e.lib, fn)
	if err != nil {
		return nil, err
	}

	seed := e.seed ^ hashKey(op.Key())
	_, response := op.SuccessResponse()
	b := &Binding{
		Automaton: a,
		Function:  fn,
		Operation: op,
		response:  response,
		plan:      p,
		seed:      seed,
		counter:   1,
		interp: &interpreter{
			lib:       e.lib,
			automaton: a,
			state:     newScope(nil),
			faker:     gofakeit.New(seed),
		},
	}

	for _, v := range a.Vars {
		if err = b.interp.execOne(v, b.interp.state); err != nil {
			return nil, errors.Wrapf(err, "initialising automaton variable '%s'", v.Name)
		}
	}
	return b, nil
}

func hashKey(key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}

// Binding returns the binding of an operation, or nil.
func (e *Evaluator) Binding(op openapi.Operation) *Binding { return e.bindings[op.Key()] }

// Respond answers one request. Operations without a LibSL function get
// random data for their success schema. The returned value is nil when
// the operation has no response body.
func (e *Evaluator) Respond(ctx context.Context, op openapi.Operation, req Request) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	b := e.bindings[op.Key()]
	if b == nil {
		_, schema := op.SuccessResponse()
		return e.gen.Generate(schema), nil
	}

	out, err := b.respond(ctx, e.gen, req)
	grip.DebugWhen(err == nil, message.Fields{
		"message":   "answered from contracts",
		"operation": op.Key(),
		"function":  b.Function.Name,
	})
	return out, err
}

func (b *Binding) respond(ctx context.Context, gen *datagen.Generator, req Request) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	args, err := b.arguments(req)
	if err != nil {
		return nil, err
	}

	call := newScope(b.interp.state)
	for name, v := range args {
		call.declare(name, v)
	}

	for _, c := range b.Function.ContractsOf(libsl.Requires) {
		v, err := b.interp.eval(c.Expr, call)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluating precondition at %d:%d", c.Pos.Line, c.Pos.Column)
		}
		if ok, err := toBool(v); err != nil || !ok {
			return nil, &PreconditionError{Name: c.Name}
		}
	}

	if b.Function.HasBody {
		call.declare(ResultName, nil)
		if err = b.interp.exec(b.Function.Body, call); err != nil {
			return nil, errors.Wrapf(err, "executing body of '%s'", b.Function.Name)
		}
		result, _ := call.get(ResultName)
		return result, nil
	}

	answer := gen.Generate(b.response)

	if len(b.plan.solved) > 0 {
		if answer, err = b.solve(ctx, args, answer); err != nil {
			return nil, err
		}
	}

	call.declare(ResultName, answer)
	for _, e := range b.plan.assign {
		if !isResultPath(e.target.Name()) {
			continue
		}
		v, err := b.interp.eval(e.value, call)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluating postcondition at %d:%d", e.contract.Pos.Line, e.contract.Pos.Column)
		}
		answer = setPath(answer, e.target.Path[1:], v)
		call.set(ResultName, answer)
	}

	for _, e := range b.plan.regex {
		pattern, err := b.interp.eval(e.value, call)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluating pattern at %d:%d", e.contract.Pos.Line, e.contract.Pos.Column)
		}
		text, ok := pattern.(string)
		if !ok {
			return nil, errors.Errorf("pattern at %d:%d is %s, not a string", e.contract.Pos.Line, e.contract.Pos.Column, describe(pattern))
		}
		v, err := gen.Regex(text)
		if err != nil {
			return nil, err
		}
		answer = setPath(answer, e.target.Path[1:], v)
	}

	return answer, nil
}

// solve picks the counter-th solution of the ensures and writes it into
// answer. An exhausted enumeration restarts from the first solution.
func (b *Binding) solve(ctx context.Context, args map[string]any, answer any) (any, error) {
	m, vars, err := b.plan.model(args)
	if err != nil {
		return nil, err
	}

	s := m.Solver(b.seed)
	var sol *solver.Solution
	for i := 0; i < b.counter; i++ {
		if sol, err = next(ctx, s); err != nil {
			return nil, err
		}
		if sol == nil {
			break
		}
	}
	b.counter++

	if sol == nil {
		s.Reset()
		if sol, err = next(ctx, s); err != nil {
			return nil, err
		}
		b.counter = 2
	}
	if sol == nil {
		return nil, &UnsatisfiableError{}
	}

	for _, v := range b.plan.variables {
		sv, ok := vars[v.name]
		if !ok {
			continue
		}
		var value any
		switch v.class {
		case libsl.PrimitiveInt:
			value = sol.Int(sv)
		case libsl.PrimitiveReal:
			value = round2(sol.Value(sv))
		default:
			value = sol.Bool(sv)
		}
		answer = setPath(answer, v.path[1:], value)
	}
	return answer, nil
}

// next treats a search that ran out of nodes as an exhausted one.
func next(ctx context.Context, s *solver.Solver) (*solver.Solution, error) {
	sol, err := s.FindSolution(ctx)
	if err == solver.ErrSearchLimit {
		return nil, nil
	}
	return sol, err
}

// arguments converts the request into values keyed by argument name.
func (b *Binding) arguments(req Request) (map[string]any, error) {
	out := make(map[string]any, len(b.Function.Args))
	for _, arg := range b.Function.Args {
		var raw string
		var present bool
		switch openapi.LocationOf(arg) {
		case openapi.InPath:
			raw, present = req.Path[arg.Name]
		case openapi.InQuery:
			present = req.Query.Has(arg.Name)
			raw = req.Query.Get(arg.Name)
		case openapi.InBody:
			out[arg.Name] = normalize(req.Body)
			continue
		default:
			out[arg.Name] = nil
			continue
		}

		if !present {
			out[arg.Name] = nil
			continue
		}

		class := ""
		if r, err := b.interp.lib.ResolveType(arg.Type); err == nil && r.Kind == libsl.KindPrimitive {
			class = libsl.PrimitiveClass(r.Name)
		}
		v, err := parseScalar(raw, class)
		if err != nil {
			return nil, &ArgumentError{Name: arg.Name, Err: err}
		}
		out[arg.Name] = v
	}
	return out, nil
}
