package libsl

import "fmt"

// TokenKind identifies the lexical class of a token.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenInt
	TokenFloat
	TokenString

	TokenLBrace
	TokenRBrace
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenComma
	TokenSemicolon
	TokenColon
	TokenDot
	TokenAt
	TokenArrow

	TokenAssign
	TokenPlusAssign
	TokenMinusAssign
	TokenStarAssign
	TokenSlashAssign
	TokenEq
	TokenNotEq
	TokenNot
	TokenLess
	TokenLessEq
	TokenGreater
	TokenGreaterEq
	TokenAnd
	TokenAndAnd
	TokenOr
	TokenOrOr
	TokenPlus
	TokenMinus
	TokenStar
	TokenSlash
	TokenPercent
)

var tokenNames = map[TokenKind]string{
	TokenEOF:         "end of file",
	TokenIdent:       "identifier",
	TokenInt:         "integer",
	TokenFloat:       "float",
	TokenString:      "string",
	TokenLBrace:      "'{'",
	TokenRBrace:      "'}'",
	TokenLParen:      "'('",
	TokenRParen:      "')'",
	TokenLBracket:    "'['",
	TokenRBracket:    "']'",
	TokenComma:       "','",
	TokenSemicolon:   "';'",
	TokenColon:       "':'",
	TokenDot:         "'.'",
	TokenAt:          "'@'",
	TokenArrow:       "'->'",
	TokenAssign:      "'='",
	TokenPlusAssign:  "'+='",
	TokenMinusAssign: "'-='",
	TokenStarAssign:  "'*='",
	TokenSlashAssign: "'/='",
	TokenEq:          "'=='",
	TokenNotEq:       "'!='",
	TokenNot:         "'!'",
	TokenLess:        "'<'",
	TokenLessEq:      "'<='",
	TokenGreater:     "'>'",
	TokenGreaterEq:   "'>='",
	TokenAnd:         "'&'",
	TokenAndAnd:      "'&&'",
	TokenOr:          "'|'",
	TokenOrOr:        "'||'",
	TokenPlus:        "'+'",
	TokenMinus:       "'-'",
	TokenStar:        "'*'",
	TokenSlash:       "'/'",
	TokenPercent:     "'%'",
}

func (k TokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(k))
}

// Position is a 1-based line and column in a source file.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Column) }

// Token is a single lexeme. Text holds the decoded value for strings.
type Token struct {
	Kind TokenKind
	Text string
	Pos  Position
}

func (t Token) String() string {
	switch t.Kind {
	case TokenIdent, TokenInt, TokenFloat:
		return fmt.Sprintf("%s '%s'", t.Kind, t.Text)
	case TokenString:
		return fmt.Sprintf("string %q", t.Text)
	default:
		return t.Kind.String()
	}
}
