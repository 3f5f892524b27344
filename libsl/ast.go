package libsl

import "strings"

// Library is the root of a parsed LibSL file.
type Library struct {
	Header   Header
	Imports  []string
	Includes []string
	Types    []Type
	Automata []*Automaton

	types map[string]Type
}

// Header carries the metadata declared at the top of a file.
type Header struct {
	LibSL    string
	Name     string
	Version  string
	Language string
	URL      string
}

// Automaton returns the automaton with the given name, or nil.
func (l *Library) Automaton(name string) *Automaton {
	for _, a := range l.Automata {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// LookupType returns the declared type with the given name.
func (l *Library) LookupType(name string) (Type, bool) {
	t, ok := l.types[name]
	return t, ok
}

////////////////////////////////////////////////////////////////////////
//
// Types

// Type is a named type declaration.
type Type interface {
	TypeName() string
}

// TypeRef is a use of a type: a possibly qualified name with optional
// generic arguments, as in map<string, list<int>>.
type TypeRef struct {
	Name     string
	Generics []TypeRef
}

func (r TypeRef) IsZero() bool { return r.Name == "" }

func (r TypeRef) String() string {
	if len(r.Generics) == 0 {
		return r.Name
	}
	args := make([]string, 0, len(r.Generics))
	for _, g := range r.Generics {
		args = append(args, g.String())
	}
	return r.Name + "<" + strings.Join(args, ", ") + ">"
}

// TypeAlias is "typealias Name = Original;".
type TypeAlias struct {
	Name     string
	Original TypeRef
}

// StructuredType is "type Name { field: T; }".
type StructuredType struct {
	Name   string
	Fields []*Field
}

// Field is a member of a structured type.
type Field struct {
	Name        string
	Type        TypeRef
	Annotations []*Annotation
}

// SimpleType binds a name to a real, usually host-language, type: either
// "type Name is java.lang.String;" or an entry of a "types { }" block.
type SimpleType struct {
	Name string
	Real string
}

// EnumType is "enum Name { A = 0; B = 1; }".
type EnumType struct {
	Name      string
	Constants []EnumConstant
}

// EnumConstant is a single enum member.
type EnumConstant struct {
	Name  string
	Value int64
}

func (t *TypeAlias) TypeName() string      { return t.Name }
func (t *StructuredType) TypeName() string { return t.Name }
func (t *SimpleType) TypeName() string     { return t.Name }
func (t *EnumType) TypeName() string       { return t.Name }

// Field returns the named field, or nil.
func (t *StructuredType) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

////////////////////////////////////////////////////////////////////////
//
// Automata

// Automaton groups the functions, procedures and state of one API
// surface.
type Automaton struct {
	Name      string
	Type      TypeRef
	Vars      []*VarDecl
	States    []*State
	Shifts    []*Shift
	Functions []*Function
	Procs     []*Proc
}

// Function returns the function with the given name, or nil.
func (a *Automaton) Function(name string) *Function {
	for _, f := range a.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Proc returns the procedure with the given name, or nil.
func (a *Automaton) Proc(name string) *Proc {
	for _, p := range a.Procs {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// StateKind is one of "initstate", "state" or "finishstate".
type StateKind string

const (
	StateInit   StateKind = "initstate"
	StateNormal StateKind = "state"
	StateFinish StateKind = "finishstate"
)

type State struct {
	Name string
	Kind StateKind
}

// Shift is a transition between states triggered by functions.
type Shift struct {
	From      []string
	To        string
	Functions []string
}

// Annotation is "@Name" or "@Name(args)".
type Annotation struct {
	Name string
	Args []Expr
}

// Arg is a function or procedure argument.
type Arg struct {
	Name        string
	Type        TypeRef
	Annotations []*Annotation
}

// HasAnnotation reports whether the argument carries the named
// annotation, ignoring case.
func (a *Arg) HasAnnotation(name string) bool { return hasAnnotation(a.Annotations, name) }

// ContractKind separates preconditions from postconditions.
type ContractKind string

const (
	Requires ContractKind = "requires"
	Ensures  ContractKind = "ensures"
	Assigns  ContractKind = "assigns"
)

// Contract is "requires [name:] expr;" or "ensures [name:] expr;".
type Contract struct {
	Kind ContractKind
	Name string
	Expr Expr
	Pos  Position
}

// Function is an automaton function. Functions with an HTTP method
// annotation become API operations.
type Function struct {
	Name        string
	Annotations []*Annotation
	Args        []*Arg
	ReturnType  TypeRef
	Contracts   []*Contract
	Body        []Stmt
	HasBody     bool
	Static      bool
}

// HasAnnotation reports whether the function carries the named
// annotation, ignoring case.
func (f *Function) HasAnnotation(name string) bool { return hasAnnotation(f.Annotations, name) }

// ContractsOf returns the contracts of the given kind in source order.
func (f *Function) ContractsOf(kind ContractKind) []*Contract {
	var out []*Contract
	for _, c := range f.Contracts {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Proc is a helper procedure callable from function bodies.
type Proc struct {
	Name       string
	Args       []*Arg
	ReturnType TypeRef
	Body       []Stmt
}

func hasAnnotation(anns []*Annotation, name string) bool {
	for _, a := range anns {
		if strings.EqualFold(a.Name, name) {
			return true
		}
	}
	return false
}

////////////////////////////////////////////////////////////////////////
//
// Statements

// Stmt is a statement of a function or procedure body.
type Stmt interface {
	stmtNode()
}

// VarDecl is "val x: T = e;" or "var x = e;".
type VarDecl struct {
	Name    string
	Type    TypeRef
	Init    Expr
	Mutable bool
	Pos     Position
}

// Assign is "target = value;". Compound assignments are expanded into a
// binary value.
type Assign struct {
	Target Expr
	Value  Expr
	Pos    Position
}

// ExprStmt evaluates an expression for its side effects.
type ExprStmt struct {
	X   Expr
	Pos Position
}

// If is "if (cond) { ... } else { ... }".
type If struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
	Pos  Position
}

// Action is "action NAME(args);".
type Action struct {
	Name string
	Args []Expr
	Pos  Position
}

func (*VarDecl) stmtNode()  {}
func (*Assign) stmtNode()   {}
func (*ExprStmt) stmtNode() {}
func (*If) stmtNode()       {}
func (*Action) stmtNode()   {}

////////////////////////////////////////////////////////////////////////
//
// Expressions

// Expr is an expression node.
type Expr interface {
	exprNode()
}

// Op is a unary or binary operator.
type Op string

const (
	OpAnd Op = "&&"
	OpOr  Op = "||"
	OpEq  Op = "=="
	OpNe  Op = "!="
	OpLt  Op = "<"
	OpLe  Op = "<="
	OpGt  Op = ">"
	OpGe  Op = ">="
	OpAdd Op = "+"
	OpSub Op = "-"
	OpMul Op = "*"
	OpDiv Op = "/"
	OpMod Op = "%"
	OpNot Op = "!"
	OpNeg Op = "neg"
)

// Ident is a variable access, possibly through fields: result.owner.id.
type Ident struct {
	Path []string
	Pos  Position
}

// Name returns the dotted form of the access.
func (i *Ident) Name() string { return strings.Join(i.Path, ".") }

// Selector is a field access on a non-variable expression: xs[0].id.
type Selector struct {
	X    Expr
	Name string
}

// Index is "x[i]".
type Index struct {
	X     Expr
	Index Expr
}

type Unary struct {
	Op Op
	X  Expr
}

type Binary struct {
	Op    Op
	Left  Expr
	Right Expr
}

// Call invokes a builtin, a procedure or a type constructor. Calls of the
// form "recv.name(args)" carry the receiver.
type Call struct {
	Name string
	Recv Expr
	Args []Expr
	New  bool
	Pos  Position
}

type IntLit struct{ Value int64 }
type FloatLit struct{ Value float64 }
type StringLit struct{ Value string }
type BoolLit struct{ Value bool }
type NullLit struct{}

// ArrayLit is "[a, b, c]".
type ArrayLit struct{ Elems []Expr }

func (*Ident) exprNode()     {}
func (*Selector) exprNode()  {}
func (*Index) exprNode()     {}
func (*Unary) exprNode()     {}
func (*Binary) exprNode()    {}
func (*Call) exprNode()      {}
func (*IntLit) exprNode()    {}
func (*FloatLit) exprNode()  {}
func (*StringLit) exprNode() {}
func (*BoolLit) exprNode()   {}
func (*NullLit) exprNode()   {}
func (*ArrayLit) exprNode()  {}

// Variables returns the dotted names of every variable referenced by e,
// in first-use order. Call names are not variables.
func Variables(e Expr) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case *Ident:
			if name := n.Name(); !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		case *Selector:
			walk(n.X)
		case *Index:
			walk(n.X)
			walk(n.Index)
		case *Unary:
			walk(n.X)
		case *Binary:
			walk(n.Left)
			walk(n.Right)
		case *Call:
			if n.Recv != nil {
				walk(n.Recv)
			}
			for _, a := range n.Args {
				walk(a)
			}
		case *ArrayLit:
			for _, el := range n.Elems {
				walk(el)
			}
		}
	}
	walk(e)
	return out
}
