package libsl

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
)

type lexer struct {
	src  []byte
	off  int
	line int
	col  int
}

// Tokenize splits src into tokens, dropping whitespace and comments. The
// returned slice always ends with a TokenEOF.
func Tokenize(src []byte) ([]Token, error) {
	lx := &lexer{src: src, line: 1, col: 1}

	var out []Token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.Kind == TokenEOF {
			return out, nil
		}
	}
}

func (lx *lexer) peekRune(ahead int) rune {
	off := lx.off
	for i := 0; i < ahead; i++ {
		if off >= len(lx.src) {
			return 0
		}
		_, size := utf8.DecodeRune(lx.src[off:])
		off += size
	}
	if off >= len(lx.src) {
		return 0
	}
	r, _ := utf8.DecodeRune(lx.src[off:])
	return r
}

func (lx *lexer) advance() rune {
	r, size := utf8.DecodeRune(lx.src[lx.off:])
	lx.off += size
	if r == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return r
}

func (lx *lexer) pos() Position { return Position{Line: lx.line, Column: lx.col} }

func (lx *lexer) errorf(pos Position, format string, args ...interface{}) error {
	return &ParseError{Pos: pos, Message: errors.Errorf(format, args...).Error()}
}

func (lx *lexer) skipSpaceAndComments() error {
	for lx.off < len(lx.src) {
		r := lx.peekRune(0)
		switch {
		case unicode.IsSpace(r):
			lx.advance()
		case r == '/' && lx.peekRune(1) == '/':
			for lx.off < len(lx.src) && lx.peekRune(0) != '\n' {
				lx.advance()
			}
		case r == '/' && lx.peekRune(1) == '*':
			start := lx.pos()
			lx.advance()
			lx.advance()
			closed := false
			for lx.off < len(lx.src) {
				if lx.peekRune(0) == '*' && lx.peekRune(1) == '/' {
					lx.advance()
					lx.advance()
					closed = true
					break
				}
				lx.advance()
			}
			if !closed {
				return lx.errorf(start, "unterminated block comment")
			}
		default:
			return nil
		}
	}
	return nil
}

func (lx *lexer) next() (Token, error) {
	if err := lx.skipSpaceAndComments(); err != nil {
		return Token{}, err
	}

	start := lx.pos()
	if lx.off >= len(lx.src) {
		return Token{Kind: TokenEOF, Pos: start}, nil
	}

	r := lx.peekRune(0)
	switch {
	case r == '_' || r == '$' || unicode.IsLetter(r):
		return lx.ident(start), nil
	case r == '`':
		return lx.quotedIdent(start)
	case unicode.IsDigit(r):
		return lx.number(start), nil
	case r == '"':
		return lx.str(start)
	}

	lx.advance()
	two := func(next rune, double, single TokenKind) Token {
		if lx.peekRune(0) == next {
			lx.advance()
			return Token{Kind: double, Text: string([]rune{r, next}), Pos: start}
		}
		return Token{Kind: single, Text: string(r), Pos: start}
	}

	switch r {
	case '{':
		return Token{Kind: TokenLBrace, Text: "{", Pos: start}, nil
	case '}':
		return Token{Kind: TokenRBrace, Text: "}", Pos: start}, nil
	case '(':
		return Token{Kind: TokenLParen, Text: "(", Pos: start}, nil
	case ')':
		return Token{Kind: TokenRParen, Text: ")", Pos: start}, nil
	case '[':
		return Token{Kind: TokenLBracket, Text: "[", Pos: start}, nil
	case ']':
		return Token{Kind: TokenRBracket, Text: "]", Pos: start}, nil
	case ',':
		return Token{Kind: TokenComma, Text: ",", Pos: start}, nil
	case ';':
		return Token{Kind: TokenSemicolon, Text: ";", Pos: start}, nil
	case ':':
		return Token{Kind: TokenColon, Text: ":", Pos: start}, nil
	case '.':
		return Token{Kind: TokenDot, Text: ".", Pos: start}, nil
	case '@':
		return Token{Kind: TokenAt, Text: "@", Pos: start}, nil
	case '%':
		return Token{Kind: TokenPercent, Text: "%", Pos: start}, nil
	case '=':
		return two('=', TokenEq, TokenAssign), nil
	case '!':
		return two('=', TokenNotEq, TokenNot), nil
	case '<':
		return two('=', TokenLessEq, TokenLess), nil
	case '>':
		return two('=', TokenGreaterEq, TokenGreater), nil
	case '&':
		return two('&', TokenAndAnd, TokenAnd), nil
	case '|':
		return two('|', TokenOrOr, TokenOr), nil
	case '+':
		return two('=', TokenPlusAssign, TokenPlus), nil
	case '*':
		return two('=', TokenStarAssign, TokenStar), nil
	case '/':
		return two('=', TokenSlashAssign, TokenSlash), nil
	case '-':
		switch lx.peekRune(0) {
		case '>':
			lx.advance()
			return Token{Kind: TokenArrow, Text: "->", Pos: start}, nil
		case '=':
			lx.advance()
			return Token{Kind: TokenMinusAssign, Text: "-=", Pos: start}, nil
		}
		return Token{Kind: TokenMinus, Text: "-", Pos: start}, nil
	}

	return Token{}, lx.errorf(start, "unexpected character %q", r)
}

func (lx *lexer) ident(start Position) Token {
	var sb strings.Builder
	for lx.off < len(lx.src) {
		r := lx.peekRune(0)
		if r != '_' && r != '$' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		sb.WriteRune(lx.advance())
	}
	return Token{Kind: TokenIdent, Text: sb.String(), Pos: start}
}

func (lx *lexer) quotedIdent(start Position) (Token, error) {
	lx.advance()
	var sb strings.Builder
	for {
		if lx.off >= len(lx.src) || lx.peekRune(0) == '\n' {
			return Token{}, lx.errorf(start, "unterminated quoted identifier")
		}
		r := lx.advance()
		if r == '`' {
			return Token{Kind: TokenIdent, Text: sb.String(), Pos: start}, nil
		}
		sb.WriteRune(r)
	}
}

func (lx *lexer) number(start Position) Token {
	var sb strings.Builder
	kind := TokenInt
	for lx.off < len(lx.src) {
		r := lx.peekRune(0)
		if unicode.IsDigit(r) || r == '_' {
			if r != '_' {
				sb.WriteRune(r)
			}
			lx.advance()
			continue
		}
		if r == '.' && kind == TokenInt && unicode.IsDigit(lx.peekRune(1)) {
			kind = TokenFloat
			sb.WriteRune(lx.advance())
			continue
		}
		break
	}

	// type suffixes carry no meaning for the model
	switch lx.peekRune(0) {
	case 'l', 'L':
		lx.advance()
	case 'f', 'F', 'd', 'D':
		lx.advance()
		kind = TokenFloat
	}

	return Token{Kind: kind, Text: sb.String(), Pos: start}
}

func (lx *lexer) str(start Position) (Token, error) {
	lx.advance()
	var sb strings.Builder
	for {
		if lx.off >= len(lx.src) {
			return Token{}, lx.errorf(start, "unterminated string literal")
		}
		r := lx.advance()
		switch r {
		case '"':
			return Token{Kind: TokenString, Text: sb.String(), Pos: start}, nil
		case '\n':
			return Token{}, lx.errorf(start, "unterminated string literal")
		case '\\':
			if lx.off >= len(lx.src) {
				return Token{}, lx.errorf(start, "unterminated string literal")
			}
			esc := lx.advance()
			switch esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case '"', '\\', '\'':
				sb.WriteRune(esc)
			default:
				// regular expressions rely on escapes surviving verbatim
				sb.WriteRune('\\')
				sb.WriteRune(esc)
			}
		default:
			sb.WriteRune(r)
		}
	}
}
