package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deeplakee/aria/pkg/ast"
)

func parseOne(t *testing.T, src string) ast.Statement {
	t.Helper()
	p := New(src)
	program, err := p.Parse()
	require.NoError(t, err)
	require.Len(t, program.Statements, 1)
	return program.Statements[0]
}

func TestParseVarDeclWithInitializer(t *testing.T) {
	stmt := parseOne(t, `var x = 1;`)
	decl, ok := stmt.(*ast.VarDecl)
	require.True(t, ok)
	require.Equal(t, "x", decl.Name)
	num, ok := decl.Value.(*ast.NumberLiteral)
	require.True(t, ok)
	require.Equal(t, float64(1), num.Value)
}

func TestParseVarDeclWithoutInitializer(t *testing.T) {
	stmt := parseOne(t, `var x;`)
	decl, ok := stmt.(*ast.VarDecl)
	require.True(t, ok)
	require.Nil(t, decl.Value)
}

func TestParseFunDeclWithVarargs(t *testing.T) {
	stmt := parseOne(t, `fun f(a, b, ...rest) { return a; }`)
	fn, ok := stmt.(*ast.FunDecl)
	require.True(t, ok)
	require.Equal(t, "f", fn.Name)
	require.Equal(t, []string{"a", "b", "rest"}, fn.Params)
	require.True(t, fn.Varargs)
	require.Len(t, fn.Body, 1)
}

func TestParseClassDeclWithInitAndSuper(t *testing.T) {
	stmt := parseOne(t, `
		class Dog < Animal {
			init(name) { this.name = name; }
			bark() { print this.name; }
		}
	`)
	cls, ok := stmt.(*ast.ClassDecl)
	require.True(t, ok)
	require.Equal(t, "Dog", cls.Name)
	require.Equal(t, "Animal", cls.SuperName)
	require.NotNil(t, cls.InitMethod)
	require.Len(t, cls.Methods, 1)
	require.Equal(t, "bark", cls.Methods[0].Name)
}

func TestParseClassDeclWithoutSuper(t *testing.T) {
	stmt := parseOne(t, `class Point { init(x, y) { this.x = x; this.y = y; } }`)
	cls, ok := stmt.(*ast.ClassDecl)
	require.True(t, ok)
	require.Equal(t, "", cls.SuperName)
}

func TestParseIfElse(t *testing.T) {
	stmt := parseOne(t, `if (x > 0) { print "pos"; } else { print "neg"; }`)
	ifStmt, ok := stmt.(*ast.If)
	require.True(t, ok)
	require.NotNil(t, ifStmt.Cond)
	require.NotNil(t, ifStmt.Then)
	require.NotNil(t, ifStmt.Else)
}

func TestParseIfWithoutElse(t *testing.T) {
	stmt := parseOne(t, `if (true) { print "hi"; }`)
	ifStmt, ok := stmt.(*ast.If)
	require.True(t, ok)
	require.Nil(t, ifStmt.Else)
}

func TestParseClassicForLoop(t *testing.T) {
	stmt := parseOne(t, `for (var i = 0; i < 10; i = i + 1) { print i; }`)
	forStmt, ok := stmt.(*ast.For)
	require.True(t, ok)
	require.NotNil(t, forStmt.Init)
	require.NotNil(t, forStmt.Cond)
	require.NotNil(t, forStmt.Step)
}

func TestParseForInLoop(t *testing.T) {
	stmt := parseOne(t, `for (var x in [1, 2, 3]) { print x; }`)
	forIn, ok := stmt.(*ast.ForIn)
	require.True(t, ok)
	require.Equal(t, "x", forIn.Name)
	list, ok := forIn.Iter.(*ast.ListLiteral)
	require.True(t, ok)
	require.Len(t, list.Elements, 3)
}

func TestParseForInVsClassicForDisambiguation(t *testing.T) {
	// `var x in xs` and `var x = 0;` start identically (var IDENT) and
	// must be disambiguated by peeking for 'in' after the identifier.
	stmt := parseOne(t, `for (var x = 0; x < 1; x = x + 1) {}`)
	_, isFor := stmt.(*ast.For)
	require.True(t, isFor)
}

func TestParseTryCatch(t *testing.T) {
	stmt := parseOne(t, `try { throw "boom"; } catch (e) { print e; }`)
	tryStmt, ok := stmt.(*ast.Try)
	require.True(t, ok)
	require.Equal(t, "e", tryStmt.CatchName)
	require.Len(t, tryStmt.Body.Statements, 1)
	require.Len(t, tryStmt.Catch.Statements, 1)
}

func TestParseBreakAndContinue(t *testing.T) {
	p := New(`while (true) { break; continue; }`)
	program, err := p.Parse()
	require.NoError(t, err)
	while, ok := program.Statements[0].(*ast.While)
	require.True(t, ok)
	block, ok := while.Body.(*ast.Block)
	require.True(t, ok)
	require.IsType(t, &ast.Break{}, block.Statements[0])
	require.IsType(t, &ast.Continue{}, block.Statements[1])
}

func TestParseImportBareIdentifierAliasDefaultsToName(t *testing.T) {
	stmt := parseOne(t, `import util;`)
	imp, ok := stmt.(*ast.Import)
	require.True(t, ok)
	require.Equal(t, "util", imp.Path)
	require.Equal(t, "util", imp.Alias)
}

func TestParseImportWithExplicitAlias(t *testing.T) {
	stmt := parseOne(t, `import util as u;`)
	imp, ok := stmt.(*ast.Import)
	require.True(t, ok)
	require.Equal(t, "util", imp.Path)
	require.Equal(t, "u", imp.Alias)
}

func TestParseImportPathStyleRequiresAlias(t *testing.T) {
	p := New(`import "./util";`)
	_, err := p.Parse()
	require.Error(t, err)
}

func TestParseImportPathStyleWithAlias(t *testing.T) {
	stmt := parseOne(t, `import "./util" as u;`)
	imp, ok := stmt.(*ast.Import)
	require.True(t, ok)
	require.Equal(t, "./util", imp.Path)
	require.Equal(t, "u", imp.Alias)
}

func TestParseCompoundAssignDesugarsToBinaryAssign(t *testing.T) {
	stmt := parseOne(t, `x += 1;`)
	exprStmt, ok := stmt.(*ast.ExprStmt)
	require.True(t, ok)
	assign, ok := exprStmt.Expr.(*ast.Assign)
	require.True(t, ok)
	bin, ok := assign.Value.(*ast.Binary)
	require.True(t, ok)
	require.Equal(t, "+", bin.Op)
	require.IsType(t, &ast.Identifier{}, bin.Left)
}

func TestParsePostfixIncrementDesugarsToAssign(t *testing.T) {
	stmt := parseOne(t, `x++;`)
	exprStmt, ok := stmt.(*ast.ExprStmt)
	require.True(t, ok)
	assign, ok := exprStmt.Expr.(*ast.Assign)
	require.True(t, ok)
	bin, ok := assign.Value.(*ast.Binary)
	require.True(t, ok)
	require.Equal(t, "+", bin.Op)
	num, ok := bin.Right.(*ast.NumberLiteral)
	require.True(t, ok)
	require.Equal(t, float64(1), num.Value)
}

func TestParsePostfixDecrement(t *testing.T) {
	stmt := parseOne(t, `x--;`)
	exprStmt := stmt.(*ast.ExprStmt)
	assign := exprStmt.Expr.(*ast.Assign)
	bin := assign.Value.(*ast.Binary)
	require.Equal(t, "-", bin.Op)
}

func TestParseInvalidAssignmentTargetIsError(t *testing.T) {
	p := New(`1 = 2;`)
	_, err := p.Parse()
	require.Error(t, err)
}

func TestParseArithmeticPrecedence(t *testing.T) {
	stmt := parseOne(t, `1 + 2 * 3;`)
	exprStmt := stmt.(*ast.ExprStmt)
	bin, ok := exprStmt.Expr.(*ast.Binary)
	require.True(t, ok)
	require.Equal(t, "+", bin.Op)
	require.IsType(t, &ast.NumberLiteral{}, bin.Left)
	rhs, ok := bin.Right.(*ast.Binary)
	require.True(t, ok)
	require.Equal(t, "*", rhs.Op)
}

func TestParseLogicalAndOrPrecedence(t *testing.T) {
	stmt := parseOne(t, `true or false and true;`)
	exprStmt := stmt.(*ast.ExprStmt)
	logical, ok := exprStmt.Expr.(*ast.Logical)
	require.True(t, ok)
	require.Equal(t, "or", logical.Op)
	rhs, ok := logical.Right.(*ast.Logical)
	require.True(t, ok)
	require.Equal(t, "and", rhs.Op)
}

func TestParseUnaryBang(t *testing.T) {
	stmt := parseOne(t, `!x;`)
	exprStmt := stmt.(*ast.ExprStmt)
	unary, ok := exprStmt.Expr.(*ast.Unary)
	require.True(t, ok)
	require.Equal(t, "!", unary.Op)
}

func TestParseNotKeywordSameAsBang(t *testing.T) {
	stmt := parseOne(t, `not x;`)
	exprStmt := stmt.(*ast.ExprStmt)
	unary, ok := exprStmt.Expr.(*ast.Unary)
	require.True(t, ok)
	require.Equal(t, "!", unary.Op)
}

func TestParseCallChainAndPropertyAndSubscript(t *testing.T) {
	stmt := parseOne(t, `a.b(1, 2)[0];`)
	exprStmt := stmt.(*ast.ExprStmt)
	sub, ok := exprStmt.Expr.(*ast.LoadSubscript)
	require.True(t, ok)
	call, ok := sub.Object.(*ast.Call)
	require.True(t, ok)
	require.Len(t, call.Args, 2)
	prop, ok := call.Callee.(*ast.LoadProperty)
	require.True(t, ok)
	require.Equal(t, "b", prop.Name)
}

func TestParseSuperMethodReference(t *testing.T) {
	stmt := parseOne(t, `super.speak();`)
	exprStmt := stmt.(*ast.ExprStmt)
	call, ok := exprStmt.Expr.(*ast.Call)
	require.True(t, ok)
	super, ok := call.Callee.(*ast.SuperMethod)
	require.True(t, ok)
	require.Equal(t, "speak", super.Method)
}

func TestParseListLiteral(t *testing.T) {
	stmt := parseOne(t, `[1, "two", true];`)
	exprStmt := stmt.(*ast.ExprStmt)
	list, ok := exprStmt.Expr.(*ast.ListLiteral)
	require.True(t, ok)
	require.Len(t, list.Elements, 3)
}

func TestParseMapLiteral(t *testing.T) {
	stmt := parseOne(t, `{"a": 1, "b": 2};`)
	exprStmt := stmt.(*ast.ExprStmt)
	m, ok := exprStmt.Expr.(*ast.MapLiteral)
	require.True(t, ok)
	require.Len(t, m.Entries, 2)
}

func TestParseNegativeNumberLiteral(t *testing.T) {
	stmt := parseOne(t, `-5;`)
	exprStmt := stmt.(*ast.ExprStmt)
	num, ok := exprStmt.Expr.(*ast.NumberLiteral)
	require.True(t, ok)
	require.Equal(t, float64(-5), num.Value)
}

func TestParseErrorRecoverySynchronizesAtSemicolon(t *testing.T) {
	// A malformed first statement shouldn't prevent the second valid
	// statement from being recovered via synchronize().
	p := New(`var = ; var y = 2;`)
	program, err := p.Parse()
	require.Error(t, err)
	require.NotEmpty(t, p.Errors())
	found := false
	for _, stmt := range program.Statements {
		if decl, ok := stmt.(*ast.VarDecl); ok && decl.Name == "y" {
			found = true
		}
	}
	require.True(t, found)
}

func TestParseAccumulatesMultipleErrorsWithoutStoppingAtFirst(t *testing.T) {
	p := New(`var = 1; var = 2;`)
	_, err := p.Parse()
	require.Error(t, err)
	require.Len(t, p.Errors(), 2)
}
