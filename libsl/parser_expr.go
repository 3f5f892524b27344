package libsl

import (
	"strconv"
)

// parseExpr reads an expression. In contract clauses a single '=' is an
// equality test rather than an assignment.
func (p *parser) parseExpr(contract bool) (Expr, error) {
	return p.parseOr(contract)
}

func (p *parser) parseExprList(end TokenKind, contract bool) ([]Expr, error) {
	var out []Expr
	for !p.accept(end) {
		if p.is(TokenEOF) {
			return nil, p.errorf(p.peek().Pos, "expected %s, found end of file", end)
		}
		x, err := p.parseExpr(contract)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
		if !p.accept(TokenComma) && !p.is(end) {
			return nil, p.errorf(p.peek().Pos, "expected ',' or %s, found %s", end, p.peek())
		}
	}
	return out, nil
}

func (p *parser) parseLevel(contract bool, ops map[TokenKind]Op, next func(*parser, bool) (Expr, error)) (Expr, error) {
	left, err := next(p, contract)
	if err != nil {
		return nil, err
	}
	for {
		kind := p.peek().Kind
		op, ok := ops[kind]
		if !ok && contract && kind == TokenAssign && ops[TokenEq] == OpEq {
			op, ok = OpEq, true
		}
		if !ok {
			return left, nil
		}
		p.next()
		right, err := next(p, contract)
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
}

var (
	orOps         = map[TokenKind]Op{TokenOr: OpOr, TokenOrOr: OpOr}
	andOps        = map[TokenKind]Op{TokenAnd: OpAnd, TokenAndAnd: OpAnd}
	equalityOps   = map[TokenKind]Op{TokenEq: OpEq, TokenNotEq: OpNe}
	relationalOps = map[TokenKind]Op{TokenLess: OpLt, TokenLessEq: OpLe, TokenGreater: OpGt, TokenGreaterEq: OpGe}
	additiveOps   = map[TokenKind]Op{TokenPlus: OpAdd, TokenMinus: OpSub}
	multOps       = map[TokenKind]Op{TokenStar: OpMul, TokenSlash: OpDiv, TokenPercent: OpMod}
)

func (p *parser) parseOr(contract bool) (Expr, error) {
	return p.parseLevel(contract, orOps, (*parser).parseAnd)
}

func (p *parser) parseAnd(contract bool) (Expr, error) {
	return p.parseLevel(contract, andOps, (*parser).parseEquality)
}

func (p *parser) parseEquality(contract bool) (Expr, error) {
	return p.parseLevel(contract, equalityOps, (*parser).parseRelational)
}

func (p *parser) parseRelational(contract bool) (Expr, error) {
	return p.parseLevel(contract, relationalOps, (*parser).parseAdditive)
}

func (p *parser) parseAdditive(contract bool) (Expr, error) {
	return p.parseLevel(contract, additiveOps, (*parser).parseMultiplicative)
}

func (p *parser) parseMultiplicative(contract bool) (Expr, error) {
	return p.parseLevel(contract, multOps, (*parser).parseUnary)
}

func (p *parser) parseUnary(contract bool) (Expr, error) {
	switch {
	case p.accept(TokenNot):
		x, err := p.parseUnary(contract)
		if err != nil {
			return nil, err
		}
		return &Unary{Op: OpNot, X: x}, nil
	case p.accept(TokenMinus):
		x, err := p.parseUnary(contract)
		if err != nil {
			return nil, err
		}
		switch lit := x.(type) {
		case *IntLit:
			return &IntLit{Value: -lit.Value}, nil
		case *FloatLit:
			return &FloatLit{Value: -lit.Value}, nil
		}
		return &Unary{Op: OpNeg, X: x}, nil
	}
	return p.parsePostfix(contract)
}

func (p *parser) parsePostfix(contract bool) (Expr, error) {
	x, err := p.parsePrimary(contract)
	if err != nil {
		return nil, err
	}

	for {
		switch p.peek().Kind {
		case TokenDot:
			p.next()
			name, err := p.ident()
			if err != nil {
				return nil, err
			}
			if p.is(TokenLParen) {
				pos := p.next().Pos
				args, err := p.parseExprList(TokenRParen, contract)
				if err != nil {
					return nil, err
				}
				x = &Call{Name: name, Recv: x, Args: args, Pos: pos}
				continue
			}
			if id, ok := x.(*Ident); ok {
				x = &Ident{Path: append(append([]string{}, id.Path...), name), Pos: id.Pos}
				continue
			}
			x = &Selector{X: x, Name: name}
		case TokenLBracket:
			p.next()
			idx, err := p.parseExpr(contract)
			if err != nil {
				return nil, err
			}
			if _, err = p.expect(TokenRBracket); err != nil {
				return nil, err
			}
			x = &Index{X: x, Index: idx}
		case TokenLParen:
			id, ok := x.(*Ident)
			if !ok {
				return x, nil
			}
			p.next()
			args, err := p.parseExprList(TokenRParen, contract)
			if err != nil {
				return nil, err
			}
			call := &Call{Name: id.Path[len(id.Path)-1], Args: args, Pos: id.Pos}
			if len(id.Path) > 1 {
				call.Recv = &Ident{Path: id.Path[:len(id.Path)-1], Pos: id.Pos}
			}
			x = call
		default:
			return x, nil
		}
	}
}

func (p *parser) parsePrimary(contract bool) (Expr, error) {
	tok := p.peek()

	switch tok.Kind {
	case TokenInt:
		p.next()
		v, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			return nil, p.errorf(tok.Pos, "invalid integer literal '%s'", tok.Text)
		}
		return &IntLit{Value: v}, nil
	case TokenFloat:
		p.next()
		v, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return nil, p.errorf(tok.Pos, "invalid float literal '%s'", tok.Text)
		}
		return &FloatLit{Value: v}, nil
	case TokenString:
		p.next()
		return &StringLit{Value: tok.Text}, nil
	case TokenLParen:
		p.next()
		x, err := p.parseExpr(contract)
		if err != nil {
			return nil, err
		}
		_, err = p.expect(TokenRParen)
		return x, err
	case TokenLBracket:
		p.next()
		elems, err := p.parseExprList(TokenRBracket, contract)
		if err != nil {
			return nil, err
		}
		return &ArrayLit{Elems: elems}, nil
	case TokenIdent:
		switch tok.Text {
		case "true", "false":
			p.next()
			return &BoolLit{Value: tok.Text == "true"}, nil
		case "null":
			p.next()
			return &NullLit{}, nil
		case "new":
			p.next()
			ref, err := p.parseTypeRef()
			if err != nil {
				return nil, err
			}
			if _, err = p.expect(TokenLParen); err != nil {
				return nil, err
			}
			args, err := p.parseExprList(TokenRParen, contract)
			if err != nil {
				return nil, err
			}
			return &Call{Name: ref.Name, Args: args, New: true, Pos: tok.Pos}, nil
		}
		p.next()
		return &Ident{Path: []string{tok.Text}, Pos: tok.Pos}, nil
	}

	return nil, p.errorf(tok.Pos, "expected expression, found %s", tok)
}
