package libsl

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseShop(t *testing.T) *Library {
	src, err := os.ReadFile("testdata/shop.lsl")
	require.NoError(t, err)

	lib, err := Parse("shop.lsl", src)
	require.NoError(t, err)
	require.NotNil(t, lib)
	return lib
}

func TestTokenize(t *testing.T) {
	for name, test := range map[string]struct {
		src   string
		kinds []TokenKind
		texts []string
	}{
		"Operators": {
			src:   "a && b || !c != d <= e >= f -> g += 1",
			kinds: []TokenKind{TokenIdent, TokenAndAnd, TokenIdent, TokenOrOr, TokenNot, TokenIdent, TokenNotEq, TokenIdent, TokenLessEq, TokenIdent, TokenGreaterEq, TokenIdent, TokenArrow, TokenIdent, TokenPlusAssign, TokenInt, TokenEOF},
		},
		"Comments": {
			src:   "a // line\n/* block\n comment */ b",
			kinds: []TokenKind{TokenIdent, TokenIdent, TokenEOF},
			texts: []string{"a", "b", ""},
		},
		"Numbers": {
			src:   "12 1.5 7L 2f",
			kinds: []TokenKind{TokenInt, TokenFloat, TokenInt, TokenFloat, TokenEOF},
			texts: []string{"12", "1.5", "7", "2", ""},
		},
		"Strings": {
			src:   `"a\"b" "\d+"`,
			kinds: []TokenKind{TokenString, TokenString, TokenEOF},
			texts: []string{`a"b`, `\d+`, ""},
		},
		"QuotedIdent": {
			src:   "`fun`",
			kinds: []TokenKind{TokenIdent, TokenEOF},
			texts: []string{"fun", ""},
		},
	} {
		t.Run(name, func(t *testing.T) {
			toks, err := Tokenize([]byte(test.src))
			require.NoError(t, err)
			require.Len(t, toks, len(test.kinds))
			for i, tok := range toks {
				assert.Equal(t, test.kinds[i], tok.Kind, "token %d", i)
				if test.texts != nil {
					assert.Equal(t, test.texts[i], tok.Text, "token %d", i)
				}
			}
		})
	}
}

func TestTokenizeErrors(t *testing.T) {
	for name, src := range map[string]string{
		"UnterminatedString":  `"abc`,
		"UnterminatedComment": "/* abc",
		"UnexpectedCharacter": "a # b",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Tokenize([]byte(src))
			require.Error(t, err)
			assert.True(t, IsParseError(err))
		})
	}
}

func TestTokenPositions(t *testing.T) {
	toks, err := Tokenize([]byte("a\n  bc"))
	require.NoError(t, err)
	assert.Equal(t, Position{Line: 1, Column: 1}, toks[0].Pos)
	assert.Equal(t, Position{Line: 2, Column: 3}, toks[1].Pos)
}

func TestParseHeader(t *testing.T) {
	lib := parseShop(t)
	assert.Equal(t, "1.0.0", lib.Header.LibSL)
	assert.Equal(t, "Shop", lib.Header.Name)
	assert.Equal(t, "1.0", lib.Header.Version)
	assert.Equal(t, "java", lib.Header.Language)
	assert.Equal(t, "https://example.com/shop", lib.Header.URL)
	assert.Equal(t, []string{"java.util"}, lib.Imports)
}

func TestParseTypes(t *testing.T) {
	lib := parseShop(t)
	require.Len(t, lib.Types, 6)

	alias, ok := lib.Types[0].(*TypeAlias)
	require.True(t, ok)
	assert.Equal(t, "Id", alias.Name)
	assert.Equal(t, "int64", alias.Original.Name)

	simple, ok := lib.Types[1].(*SimpleType)
	require.True(t, ok)
	assert.Equal(t, "java.lang.String", simple.Real)

	enum, ok := lib.Types[2].(*EnumType)
	require.True(t, ok)
	assert.Equal(t, []EnumConstant{{Name: "ACTIVE", Value: 0}, {Name: "BLOCKED", Value: 1}}, enum.Constants)

	product, ok := lib.Types[3].(*StructuredType)
	require.True(t, ok)
	require.Len(t, product.Fields, 6)
	tags := product.Field("tags")
	require.NotNil(t, tags)
	assert.Equal(t, "list<string>", tags.Type.String())

	order, ok := lib.LookupType("Order")
	require.True(t, ok)
	assert.Equal(t, "map<string, int32>", order.(*StructuredType).Field("meta").Type.String())
}

func TestParseAutomaton(t *testing.T) {
	lib := parseShop(t)
	a := lib.Automaton("ShopApi")
	require.NotNil(t, a)

	assert.Equal(t, "int", a.Type.Name)
	require.Len(t, a.Vars, 1)
	assert.Equal(t, "calls", a.Vars[0].Name)
	assert.True(t, a.Vars[0].Mutable)
	require.Len(t, a.States, 2)
	assert.Equal(t, StateInit, a.States[0].Kind)
	require.Len(t, a.Shifts, 1)
	assert.Equal(t, []string{"close"}, a.Shifts[0].Functions)
	assert.Len(t, a.Functions, 6)
	require.NotNil(t, a.Proc("twice"))

	get := a.Function("getProduct")
	require.NotNil(t, get)
	assert.True(t, get.HasAnnotation("get"))
	require.Len(t, get.Args, 1)
	assert.True(t, get.Args[0].HasAnnotation("PathParameter"))
	assert.Equal(t, "Product", get.ReturnType.Name)
	assert.False(t, get.HasBody)

	requires := get.ContractsOf(Requires)
	require.Len(t, requires, 1)
	assert.Equal(t, "positiveId", requires[0].Name)

	ensures := get.ContractsOf(Ensures)
	require.Len(t, ensures, 4)
	eq, ok := ensures[0].Expr.(*Binary)
	require.True(t, ok)
	assert.Equal(t, OpEq, eq.Op)
	assert.Equal(t, "rex", ensures[3].Name)
	assert.Equal(t, []string{"result.price"}, Variables(ensures[1].Expr))

	remove := a.Function("removeProduct")
	require.NotNil(t, remove)
	assert.True(t, remove.ReturnType.IsZero())
}

func TestParseBody(t *testing.T) {
	lib := parseShop(t)
	a := lib.Automaton("ShopApi")

	count := a.Function("count")
	require.NotNil(t, count)
	require.True(t, count.HasBody)
	require.Len(t, count.Body, 2)

	assign, ok := count.Body[0].(*Assign)
	require.True(t, ok)
	call, ok := assign.Value.(*Call)
	require.True(t, ok)
	assert.True(t, call.New)
	assert.Equal(t, "Counter", call.Name)
	require.Len(t, call.Args, 2)
	assert.Equal(t, "twice", call.Args[1].(*Call).Name)

	ifStmt, ok := count.Body[1].(*If)
	require.True(t, ok)
	require.Len(t, ifStmt.Then, 1)
	require.Len(t, ifStmt.Else, 1)
	compound := ifStmt.Else[0].(*Assign)
	assert.Equal(t, OpAdd, compound.Value.(*Binary).Op)

	sum := a.Function("sum")
	require.Len(t, sum.Body, 4)
	decl := sum.Body[0].(*VarDecl)
	assert.False(t, decl.Mutable)
	assert.IsType(t, &ArrayLit{}, decl.Init)
	action := sum.Body[2].(*Action)
	assert.Equal(t, "ADD_ACTION", action.Name)
	assert.Len(t, action.Args, 2)
}

func TestParseExpressionPrecedence(t *testing.T) {
	src := `automaton A : int { fun f(x: int32): int32 ensures result = x + 2 * 3 & !(x < 0) | x == 5; }`
	lib, err := Parse("a.lsl", []byte(src))
	require.NoError(t, err)

	expr := lib.Automaton("A").Function("f").Contracts[0].Expr
	or, ok := expr.(*Binary)
	require.True(t, ok)
	assert.Equal(t, OpOr, or.Op)

	and := or.Left.(*Binary)
	assert.Equal(t, OpAnd, and.Op)
	eq := and.Left.(*Binary)
	assert.Equal(t, OpEq, eq.Op)
	add := eq.Right.(*Binary)
	assert.Equal(t, OpAdd, add.Op)
	assert.Equal(t, OpMul, add.Right.(*Binary).Op)
	assert.Equal(t, OpNot, and.Right.(*Unary).Op)
}

func TestParseContractsInsideBody(t *testing.T) {
	src := `automaton A : int { fun f(x: int32): int32 { requires x > 1; result = x; } }`
	lib, err := Parse("a.lsl", []byte(src))
	require.NoError(t, err)

	f := lib.Automaton("A").Function("f")
	require.Len(t, f.Contracts, 1)
	assert.Equal(t, Requires, f.Contracts[0].Kind)
	assert.Len(t, f.Body, 1)
}

func TestParseErrors(t *testing.T) {
	t.Run("ReportsPosition", func(t *testing.T) {
		_, err := Parse("bad.lsl", []byte("libsl \"1\";\ntype A { x int; }"))
		require.Error(t, err)
		errs, ok := err.(ParseErrors)
		require.True(t, ok)
		require.NotEmpty(t, errs)
		assert.Equal(t, 2, errs[0].Pos.Line)
		assert.Contains(t, err.Error(), "Failed to parse LibSL file:")
		assert.Contains(t, err.Error(), "bad.lsl:2:")
	})
	t.Run("CollectsMultipleErrors", func(t *testing.T) {
		_, err := Parse("bad.lsl", []byte("type A { x int; }\ntypealias B C;\nautomaton X : int { }"))
		require.Error(t, err)
		errs, ok := err.(ParseErrors)
		require.True(t, ok)
		assert.Len(t, errs, 2)
	})
	t.Run("DuplicateType", func(t *testing.T) {
		_, err := Parse("dup.lsl", []byte("typealias A = int32; typealias A = int64;"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate type 'A'")
	})
	t.Run("AssignToLiteral", func(t *testing.T) {
		_, err := Parse("a.lsl", []byte("automaton A : int { fun f() { 1 = 2; } }"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot assign")
	})
}

func TestResolveType(t *testing.T) {
	lib := parseShop(t)

	for name, test := range map[string]struct {
		ref  TypeRef
		kind Kind
		prim string
	}{
		"Alias":          {ref: TypeRef{Name: "Id"}, kind: KindPrimitive, prim: "int64"},
		"SimpleType":     {ref: TypeRef{Name: "Name"}, kind: KindPrimitive, prim: "string"},
		"Struct":         {ref: TypeRef{Name: "Product"}, kind: KindStruct},
		"Enum":           {ref: TypeRef{Name: "Status"}, kind: KindEnum},
		"List":           {ref: TypeRef{Name: "list", Generics: []TypeRef{{Name: "Id"}}}, kind: KindArray},
		"UndeclaredName": {ref: TypeRef{Name: "int32"}, kind: KindPrimitive, prim: "int32"},
	} {
		t.Run(name, func(t *testing.T) {
			res, err := lib.ResolveType(test.ref)
			require.NoError(t, err)
			assert.Equal(t, test.kind, res.Kind)
			if test.prim != "" {
				assert.Equal(t, test.prim, res.Name)
			}
		})
	}

	t.Run("MapNeedsTwoGenerics", func(t *testing.T) {
		_, err := lib.ResolveType(TypeRef{Name: "map", Generics: []TypeRef{{Name: "string"}}})
		require.Error(t, err)
	})
	t.Run("AliasCycle", func(t *testing.T) {
		cyclic, err := Parse("c.lsl", []byte("typealias A = B; typealias B = A;"))
		require.NoError(t, err)
		_, err = cyclic.ResolveType(TypeRef{Name: "A"})
		require.Error(t, err)
	})
}

func TestPrimitiveClass(t *testing.T) {
	assert.Equal(t, PrimitiveInt, PrimitiveClass("int64"))
	assert.Equal(t, PrimitiveInt, PrimitiveClass("Integer"))
	assert.Equal(t, PrimitiveReal, PrimitiveClass("float64"))
	assert.Equal(t, PrimitiveBool, PrimitiveClass("boolean"))
	assert.Equal(t, PrimitiveString, PrimitiveClass("string"))
	assert.Equal(t, "", PrimitiveClass("Product"))
}
