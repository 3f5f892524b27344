package libsl

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type parser struct {
	file string
	toks []Token
	pos  int
	errs ParseErrors
}

// Parse reads a LibSL source file. All syntax errors found in the file are
// returned together as ParseErrors.
func Parse(name string, src []byte) (*Library, error) {
	toks, err := Tokenize(src)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.File = name
			return nil, ParseErrors{pe}
		}
		return nil, errors.WithStack(err)
	}

	p := &parser{file: name, toks: toks}
	lib := p.parseLibrary()
	if len(p.errs) > 0 {
		return nil, p.errs
	}

	if err := lib.index(name); err != nil {
		return nil, err
	}

	return lib, nil
}

////////////////////////////////////////////////////////////////////////
//
// Token helpers

func (p *parser) peek() Token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() Token {
	tok := p.toks[p.pos]
	if tok.Kind != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) is(kind TokenKind) bool { return p.peek().Kind == kind }

func (p *parser) isKeyword(words ...string) bool {
	tok := p.peek()
	if tok.Kind != TokenIdent {
		return false
	}
	for _, w := range words {
		if tok.Text == w {
			return true
		}
	}
	return false
}

func (p *parser) accept(kind TokenKind) bool {
	if p.is(kind) {
		p.next()
		return true
	}
	return false
}

func (p *parser) errorf(pos Position, format string, args ...interface{}) error {
	return &ParseError{File: p.file, Pos: pos, Message: errors.Errorf(format, args...).Error()}
}

func (p *parser) expect(kind TokenKind) (Token, error) {
	tok := p.peek()
	if tok.Kind != kind {
		return tok, p.errorf(tok.Pos, "expected %s, found %s", kind, tok)
	}
	return p.next(), nil
}

func (p *parser) ident() (string, error) {
	tok, err := p.expect(TokenIdent)
	return tok.Text, err
}

func (p *parser) qualifiedName() (string, error) {
	name, err := p.ident()
	if err != nil {
		return "", err
	}
	parts := []string{name}
	for p.is(TokenDot) && p.peekAt(1).Kind == TokenIdent {
		p.next()
		parts = append(parts, p.next().Text)
	}
	return strings.Join(parts, "."), nil
}

func (p *parser) record(err error) {
	if pe, ok := err.(*ParseError); ok {
		p.errs = append(p.errs, pe)
		return
	}
	p.errs = append(p.errs, &ParseError{File: p.file, Pos: p.peek().Pos, Message: err.Error()})
}

// skipDeclaration rewinds to the start of a declaration that failed to parse and
// skips past it, honoring nested braces, so that one bad declaration does
// not hide errors in the rest of the file.
func (p *parser) skipDeclaration(start int, err error) {
	p.record(err)
	p.pos = start

	depth := 0
	for !p.is(TokenEOF) {
		switch p.peek().Kind {
		case TokenLBrace:
			depth++
		case TokenRBrace:
			if depth == 0 {
				if p.pos == start {
					p.next()
				}
				return
			}
			depth--
			if depth == 0 {
				p.next()
				p.accept(TokenSemicolon)
				return
			}
		case TokenSemicolon:
			if depth == 0 {
				p.next()
				return
			}
		}
		p.next()
	}
}

////////////////////////////////////////////////////////////////////////
//
// Declarations

func (p *parser) parseLibrary() *Library {
	lib := &Library{}

	for !p.is(TokenEOF) {
		start := p.pos
		if err := p.parseTopLevel(lib); err != nil {
			p.skipDeclaration(start, err)
		}
	}

	return lib
}

func (p *parser) parseTopLevel(lib *Library) error {
	anns, err := p.parseAnnotations()
	if err != nil {
		return err
	}

	tok := p.peek()
	if tok.Kind != TokenIdent {
		return p.errorf(tok.Pos, "expected declaration, found %s", tok)
	}

	switch tok.Text {
	case "libsl":
		p.next()
		s, err := p.expect(TokenString)
		if err != nil {
			return err
		}
		lib.Header.LibSL = s.Text
		_, err = p.expect(TokenSemicolon)
		return err
	case "library":
		return p.parseLibraryHeader(lib)
	case "import", "include":
		p.next()
		text, err := p.parseRawUntilSemicolon()
		if err != nil {
			return err
		}
		if tok.Text == "import" {
			lib.Imports = append(lib.Imports, text)
		} else {
			lib.Includes = append(lib.Includes, text)
		}
		return nil
	case "typealias":
		t, err := p.parseTypeAlias()
		if err != nil {
			return err
		}
		lib.Types = append(lib.Types, t)
		return nil
	case "type":
		t, err := p.parseTypeDecl()
		if err != nil {
			return err
		}
		lib.Types = append(lib.Types, t)
		return nil
	case "types":
		ts, err := p.parseTypesBlock()
		lib.Types = append(lib.Types, ts...)
		return err
	case "enum":
		t, err := p.parseEnum()
		if err != nil {
			return err
		}
		lib.Types = append(lib.Types, t)
		return nil
	case "automaton":
		a, err := p.parseAutomaton()
		if err != nil {
			return err
		}
		lib.Automata = append(lib.Automata, a)
		return nil
	}

	if len(anns) > 0 {
		return p.errorf(tok.Pos, "annotations must precede an automaton or function")
	}
	return p.errorf(tok.Pos, "unexpected %s at top level", tok)
}

func (p *parser) parseLibraryHeader(lib *Library) error {
	p.next()
	name, err := p.qualifiedName()
	if err != nil {
		return err
	}
	lib.Header.Name = name

	for !p.is(TokenSemicolon) {
		key := p.peek()
		if key.Kind != TokenIdent {
			return p.errorf(key.Pos, "expected library property, found %s", key)
		}
		p.next()
		val, err := p.expect(TokenString)
		if err != nil {
			return err
		}
		switch key.Text {
		case "version":
			lib.Header.Version = val.Text
		case "language":
			lib.Header.Language = val.Text
		case "url":
			lib.Header.URL = val.Text
		default:
			return p.errorf(key.Pos, "unknown library property '%s'", key.Text)
		}
	}
	p.next()
	return nil
}

func (p *parser) parseRawUntilSemicolon() (string, error) {
	var sb strings.Builder
	for !p.is(TokenSemicolon) {
		tok := p.next()
		if tok.Kind == TokenEOF {
			return "", p.errorf(tok.Pos, "expected ';', found end of file")
		}
		sb.WriteString(tok.Text)
	}
	p.next()
	return sb.String(), nil
}

func (p *parser) parseTypeAlias() (*TypeAlias, error) {
	p.next()
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	if _, err = p.expect(TokenAssign); err != nil {
		return nil, err
	}
	ref, err := p.parseTypeRef()
	if err != nil {
		return nil, err
	}
	if _, err = p.expect(TokenSemicolon); err != nil {
		return nil, err
	}
	return &TypeAlias{Name: name, Original: ref}, nil
}

func (p *parser) parseTypeDecl() (Type, error) {
	p.next()
	name, err := p.qualifiedName()
	if err != nil {
		return nil, err
	}

	if p.isKeyword("is") {
		p.next()
		hostName, err := p.qualifiedName()
		if err != nil {
			return nil, err
		}
		if p.is(TokenLBrace) {
			fields, err := p.parseFields()
			if err != nil {
				return nil, err
			}
			return &StructuredType{Name: name, Fields: fields}, nil
		}
		if _, err = p.expect(TokenSemicolon); err != nil {
			return nil, err
		}
		return &SimpleType{Name: name, Real: hostName}, nil
	}

	fields, err := p.parseFields()
	if err != nil {
		return nil, err
	}
	return &StructuredType{Name: name, Fields: fields}, nil
}

func (p *parser) parseFields() ([]*Field, error) {
	if _, err := p.expect(TokenLBrace); err != nil {
		return nil, err
	}

	var fields []*Field
	for !p.accept(TokenRBrace) {
		if p.is(TokenEOF) {
			return nil, p.errorf(p.peek().Pos, "unterminated type body")
		}
		anns, err := p.parseAnnotations()
		if err != nil {
			return nil, err
		}
		if p.isKeyword("var", "val") {
			p.next()
		}
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		if _, err = p.expect(TokenColon); err != nil {
			return nil, err
		}
		ref, err := p.parseTypeRef()
		if err != nil {
			return nil, err
		}
		if _, err = p.expect(TokenSemicolon); err != nil {
			return nil, err
		}
		fields = append(fields, &Field{Name: name, Type: ref, Annotations: anns})
	}
	return fields, nil
}

// parseTypesBlock reads "types { Name(real.Type); Name(real.Type) { f: T; } }".
func (p *parser) parseTypesBlock() ([]Type, error) {
	p.next()
	if _, err := p.expect(TokenLBrace); err != nil {
		return nil, err
	}

	var out []Type
	for !p.accept(TokenRBrace) {
		if p.is(TokenEOF) {
			return out, p.errorf(p.peek().Pos, "unterminated types block")
		}
		name, err := p.ident()
		if err != nil {
			return out, err
		}
		if _, err = p.expect(TokenLParen); err != nil {
			return out, err
		}
		hostName, err := p.qualifiedName()
		if err != nil {
			return out, err
		}
		if _, err = p.expect(TokenRParen); err != nil {
			return out, err
		}
		if p.is(TokenLBrace) {
			fields, err := p.parseFields()
			if err != nil {
				return out, err
			}
			out = append(out, &StructuredType{Name: name, Fields: fields})
			p.accept(TokenSemicolon)
			continue
		}
		if _, err = p.expect(TokenSemicolon); err != nil {
			return out, err
		}
		out = append(out, &SimpleType{Name: name, Real: hostName})
	}
	return out, nil
}

func (p *parser) parseEnum() (*EnumType, error) {
	p.next()
	name, err := p.qualifiedName()
	if err != nil {
		return nil, err
	}
	if _, err = p.expect(TokenLBrace); err != nil {
		return nil, err
	}

	enum := &EnumType{Name: name}
	var next int64
	for !p.accept(TokenRBrace) {
		cname, err := p.ident()
		if err != nil {
			return nil, err
		}
		value := next
		if p.accept(TokenAssign) {
			neg := p.accept(TokenMinus)
			tok, err := p.expect(TokenInt)
			if err != nil {
				return nil, err
			}
			value, err = strconv.ParseInt(tok.Text, 10, 64)
			if err != nil {
				return nil, p.errorf(tok.Pos, "invalid enum value '%s'", tok.Text)
			}
			if neg {
				value = -value
			}
		}
		enum.Constants = append(enum.Constants, EnumConstant{Name: cname, Value: value})
		next = value + 1
		if !p.accept(TokenSemicolon) && !p.accept(TokenComma) && !p.is(TokenRBrace) {
			return nil, p.errorf(p.peek().Pos, "expected ';' after enum constant, found %s", p.peek())
		}
	}
	return enum, nil
}

// parseTypeRef reads "a.b.C", "list<T>", "map<K, V>" and "T[]".
func (p *parser) parseTypeRef() (TypeRef, error) {
	name, err := p.qualifiedName()
	if err != nil {
		return TypeRef{}, err
	}
	ref := TypeRef{Name: name}

	if p.accept(TokenLess) {
		for {
			g, err := p.parseTypeRef()
			if err != nil {
				return TypeRef{}, err
			}
			ref.Generics = append(ref.Generics, g)
			if p.accept(TokenComma) {
				continue
			}
			if _, err := p.expect(TokenGreater); err != nil {
				return TypeRef{}, err
			}
			break
		}
	}

	for p.is(TokenLBracket) && p.peekAt(1).Kind == TokenRBracket {
		p.next()
		p.next()
		ref = TypeRef{Name: "array", Generics: []TypeRef{ref}}
	}

	return ref, nil
}

func (p *parser) parseAnnotations() ([]*Annotation, error) {
	var out []*Annotation
	for p.accept(TokenAt) {
		name, err := p.qualifiedName()
		if err != nil {
			return nil, err
		}
		ann := &Annotation{Name: name}
		if p.accept(TokenLParen) {
			args, err := p.parseExprList(TokenRParen, false)
			if err != nil {
				return nil, err
			}
			ann.Args = args
		}
		out = append(out, ann)
	}
	return out, nil
}

////////////////////////////////////////////////////////////////////////
//
// Automata

func (p *parser) parseAutomaton() (*Automaton, error) {
	p.next()
	if p.isKeyword("concept") {
		p.next()
	}
	name, err := p.qualifiedName()
	if err != nil {
		return nil, err
	}
	a := &Automaton{Name: name}

	// constructor variables are accepted but carry no API meaning
	if p.accept(TokenLParen) {
		if _, err = p.parseArgs(); err != nil {
			return nil, err
		}
	}

	if p.accept(TokenColon) {
		if a.Type, err = p.parseTypeRef(); err != nil {
			return nil, err
		}
	}

	if _, err = p.expect(TokenLBrace); err != nil {
		return nil, err
	}

	for !p.accept(TokenRBrace) {
		if p.is(TokenEOF) {
			return nil, p.errorf(p.peek().Pos, "unterminated automaton '%s'", name)
		}
		start := p.pos
		if err := p.parseAutomatonMember(a); err != nil {
			p.skipDeclaration(start, err)
		}
	}

	return a, nil
}

func (p *parser) parseAutomatonMember(a *Automaton) error {
	anns, err := p.parseAnnotations()
	if err != nil {
		return err
	}

	tok := p.peek()
	if tok.Kind != TokenIdent {
		return p.errorf(tok.Pos, "expected automaton member, found %s", tok)
	}

	switch tok.Text {
	case "var", "val":
		decl, err := p.parseVarDecl()
		if err != nil {
			return err
		}
		a.Vars = append(a.Vars, decl)
	case "initstate", "state", "finishstate":
		p.next()
		for {
			name, err := p.ident()
			if err != nil {
				return err
			}
			a.States = append(a.States, &State{Name: name, Kind: StateKind(tok.Text)})
			if !p.accept(TokenComma) {
				break
			}
		}
		_, err = p.expect(TokenSemicolon)
		return err
	case "shift":
		shift, err := p.parseShift()
		if err != nil {
			return err
		}
		a.Shifts = append(a.Shifts, shift)
	case "static", "fun", "constructor", "destructor":
		fn, err := p.parseFunction(anns)
		if err != nil {
			return err
		}
		a.Functions = append(a.Functions, fn)
	case "proc":
		proc, err := p.parseProc()
		if err != nil {
			return err
		}
		a.Procs = append(a.Procs, proc)
	default:
		return p.errorf(tok.Pos, "unexpected %s in automaton '%s'", tok, a.Name)
	}
	return nil
}

// parseShift reads "shift a -> b (f, g(int));" and "shift (a, b) -> c by f;".
func (p *parser) parseShift() (*Shift, error) {
	p.next()
	shift := &Shift{}

	if p.accept(TokenLParen) {
		for !p.accept(TokenRParen) {
			name, err := p.ident()
			if err != nil {
				return nil, err
			}
			shift.From = append(shift.From, name)
			p.accept(TokenComma)
		}
	} else {
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		shift.From = append(shift.From, name)
	}

	if _, err := p.expect(TokenArrow); err != nil {
		return nil, err
	}
	to, err := p.ident()
	if err != nil {
		return nil, err
	}
	shift.To = to

	if p.isKeyword("by") {
		p.next()
	}

	if p.accept(TokenLParen) {
		depth := 1
		for depth > 0 {
			tok := p.next()
			switch tok.Kind {
			case TokenEOF:
				return nil, p.errorf(tok.Pos, "unterminated shift function list")
			case TokenLParen:
				depth++
			case TokenRParen:
				depth--
			case TokenIdent:
				if depth == 1 {
					shift.Functions = append(shift.Functions, tok.Text)
				}
			}
		}
	} else if p.is(TokenIdent) {
		shift.Functions = append(shift.Functions, p.next().Text)
	}

	_, err = p.expect(TokenSemicolon)
	return shift, err
}

func (p *parser) parseArgs() ([]*Arg, error) {
	var args []*Arg
	for !p.accept(TokenRParen) {
		if p.is(TokenEOF) {
			return nil, p.errorf(p.peek().Pos, "unterminated argument list")
		}
		anns, err := p.parseAnnotations()
		if err != nil {
			return nil, err
		}
		if p.isKeyword("var", "val") {
			p.next()
		}
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		if _, err = p.expect(TokenColon); err != nil {
			return nil, err
		}
		ref, err := p.parseTypeRef()
		if err != nil {
			return nil, err
		}
		args = append(args, &Arg{Name: name, Type: ref, Annotations: anns})
		if !p.accept(TokenComma) && !p.is(TokenRParen) {
			return nil, p.errorf(p.peek().Pos, "expected ',' or ')', found %s", p.peek())
		}
	}
	return args, nil
}

func (p *parser) parseFunction(anns []*Annotation) (*Function, error) {
	fn := &Function{Annotations: anns}
	if p.isKeyword("static") {
		p.next()
		fn.Static = true
	}

	kw := p.next()
	if kw.Text != "fun" {
		// constructors and destructors are named by their keyword
		fn.Name = kw.Text
		if p.is(TokenIdent) {
			fn.Name = p.next().Text
		}
	} else {
		name, err := p.qualifiedName()
		if err != nil {
			return nil, err
		}
		// "fun Automaton.name" declares a function on another automaton
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			name = name[idx+1:]
		}
		fn.Name = name
	}

	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	fn.Args = args

	if p.accept(TokenColon) {
		if fn.ReturnType, err = p.parseTypeRef(); err != nil {
			return nil, err
		}
	}

	for {
		switch {
		case p.isKeyword(string(Requires), string(Ensures), string(Assigns)):
			c, err := p.parseContract()
			if err != nil {
				return nil, err
			}
			fn.Contracts = append(fn.Contracts, c)
		case p.is(TokenLBrace):
			fn.HasBody = true
			body, contracts, err := p.parseBlock(true)
			if err != nil {
				return nil, err
			}
			fn.Contracts = append(fn.Contracts, contracts...)
			fn.Body = body
			return fn, nil
		case p.accept(TokenSemicolon):
			return fn, nil
		default:
			return fn, nil
		}
	}
}

func (p *parser) parseContract() (*Contract, error) {
	tok := p.next()
	c := &Contract{Kind: ContractKind(tok.Text), Pos: tok.Pos}

	if p.is(TokenIdent) && p.peekAt(1).Kind == TokenColon {
		c.Name = p.next().Text
		p.next()
	}

	expr, err := p.parseExpr(true)
	if err != nil {
		return nil, err
	}
	c.Expr = expr

	_, err = p.expect(TokenSemicolon)
	return c, err
}

func (p *parser) parseProc() (*Proc, error) {
	p.next()
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	if _, err = p.expect(TokenLParen); err != nil {
		return nil, err
	}
	proc := &Proc{Name: name}
	if proc.Args, err = p.parseArgs(); err != nil {
		return nil, err
	}
	if p.accept(TokenColon) {
		if proc.ReturnType, err = p.parseTypeRef(); err != nil {
			return nil, err
		}
	}
	if p.accept(TokenSemicolon) {
		return proc, nil
	}
	if proc.Body, _, err = p.parseBlock(false); err != nil {
		return nil, err
	}
	return proc, nil
}

func (p *parser) parseVarDecl() (*VarDecl, error) {
	kw := p.next()
	decl := &VarDecl{Mutable: kw.Text == "var", Pos: kw.Pos}

	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	decl.Name = name

	if p.accept(TokenColon) {
		if decl.Type, err = p.parseTypeRef(); err != nil {
			return nil, err
		}
	}
	if p.accept(TokenAssign) {
		if decl.Init, err = p.parseExpr(false); err != nil {
			return nil, err
		}
	}
	_, err = p.expect(TokenSemicolon)
	return decl, err
}

////////////////////////////////////////////////////////////////////////
//
// Statements

// parseBlock reads "{ stmts }". When contracts is set, requires/ensures
// clauses inside the block are collected instead of rejected.
func (p *parser) parseBlock(contracts bool) ([]Stmt, []*Contract, error) {
	if _, err := p.expect(TokenLBrace); err != nil {
		return nil, nil, err
	}

	var stmts []Stmt
	var found []*Contract
	for !p.accept(TokenRBrace) {
		if p.is(TokenEOF) {
			return nil, nil, p.errorf(p.peek().Pos, "unterminated block")
		}
		if contracts && p.isKeyword(string(Requires), string(Ensures), string(Assigns)) {
			c, err := p.parseContract()
			if err != nil {
				return nil, nil, err
			}
			found = append(found, c)
			continue
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, nil, err
		}
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, found, nil
}

func (p *parser) parseBranch() ([]Stmt, error) {
	if p.is(TokenLBrace) {
		stmts, _, err := p.parseBlock(false)
		return stmts, err
	}
	stmt, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	return []Stmt{stmt}, nil
}

var compoundOps = map[TokenKind]Op{
	TokenPlusAssign:  OpAdd,
	TokenMinusAssign: OpSub,
	TokenStarAssign:  OpMul,
	TokenSlashAssign: OpDiv,
}

func (p *parser) parseStmt() (Stmt, error) {
	tok := p.peek()

	switch {
	case tok.Kind == TokenSemicolon:
		p.next()
		return nil, nil
	case p.isKeyword("val", "var"):
		return p.parseVarDecl()
	case p.isKeyword("if"):
		p.next()
		cond, err := p.parseExpr(false)
		if err != nil {
			return nil, err
		}
		stmt := &If{Cond: cond, Pos: tok.Pos}
		if stmt.Then, err = p.parseBranch(); err != nil {
			return nil, err
		}
		if p.isKeyword("else") {
			p.next()
			if stmt.Else, err = p.parseBranch(); err != nil {
				return nil, err
			}
		}
		return stmt, nil
	case p.isKeyword("action"):
		p.next()
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		if _, err = p.expect(TokenLParen); err != nil {
			return nil, err
		}
		args, err := p.parseExprList(TokenRParen, false)
		if err != nil {
			return nil, err
		}
		_, err = p.expect(TokenSemicolon)
		return &Action{Name: name, Args: args, Pos: tok.Pos}, err
	}

	x, err := p.parseExpr(false)
	if err != nil {
		return nil, err
	}

	next := p.peek()
	if next.Kind == TokenAssign || compoundOps[next.Kind] != "" {
		p.next()
		switch x.(type) {
		case *Ident, *Index, *Selector:
		default:
			return nil, p.errorf(next.Pos, "cannot assign to expression")
		}
		value, err := p.parseExpr(false)
		if err != nil {
			return nil, err
		}
		if op, ok := compoundOps[next.Kind]; ok {
			value = &Binary{Op: op, Left: x, Right: value}
		}
		_, err = p.expect(TokenSemicolon)
		return &Assign{Target: x, Value: value, Pos: tok.Pos}, err
	}

	_, err = p.expect(TokenSemicolon)
	return &ExprStmt{X: x, Pos: tok.Pos}, err
}
