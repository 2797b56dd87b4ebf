// Package parser implements aria's recursive-descent parser.
//
// Parser Architecture:
//
// The parser uses the classic two-token lookahead recursive-descent
// style (curTok/peekTok), the same shape as the teacher's Smalltalk
// parser, but the grammar itself is a conventional C-family expression
// grammar (spec section 4.2) rather than Smalltalk message sends:
// statements are parsed top-down by keyword, expressions by a
// precedence-climbing chain of mutually-recursive parseX functions, one
// level per precedence tier (assignment, or, and, equality, comparison,
// term, factor, unary, call/postfix, primary).
//
// Error Handling:
//
// Like the teacher, the parser does not stop at the first syntax error:
// it records each one and enters panic mode, discarding tokens until it
// finds a statement boundary (just past a ';', or before a keyword that
// starts a new declaration or statement) before resuming — so one mistake is reported
// once instead of cascading into dozens of follow-on errors.
package parser

import (
	"fmt"
	"strconv"

	"github.com/deeplakee/aria/pkg/ast"
	"github.com/deeplakee/aria/pkg/lexer"
)

// Parser turns a token stream into an *ast.Program. It is stateful and
// single-use: construct a new Parser per source unit.
type Parser struct {
	s       *lexer.Scanner
	prevTok lexer.Token
	curTok  lexer.Token
	peekTok lexer.Token

	errors    []string
	panicMode bool
}

// New creates a Parser over src.
func New(src string) *Parser {
	p := &Parser{s: lexer.New(src)}
	p.advance()
	p.advance()
	return p
}

// Errors returns every syntax error accumulated during Parse.
func (p *Parser) Errors() []string { return p.errors }

// Parse parses a complete source unit.
func (p *Parser) Parse() (*ast.Program, error) {
	prog := ast.NewProgram(1)
	for p.curTok.Type != lexer.TokenEOF {
		stmt := p.declaration()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
	}
	if len(p.errors) > 0 {
		return prog, fmt.Errorf("parse errors:\n%s", joinErrors(p.errors))
	}
	return prog, nil
}

func joinErrors(errs []string) string {
	out := ""
	for _, e := range errs {
		out += "  " + e + "\n"
	}
	return out
}

// ---- token plumbing ----

func (p *Parser) advance() {
	p.prevTok = p.curTok
	p.curTok = p.peekTok
	for {
		p.peekTok = p.s.Next()
		if p.peekTok.Type != lexer.TokenError {
			break
		}
		p.errorAtPeek(p.peekTok.Lexeme)
	}
}

func (p *Parser) check(tt lexer.TokenType) bool { return p.curTok.Type == tt }

func (p *Parser) match(tt lexer.TokenType) bool {
	if !p.check(tt) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(tt lexer.TokenType, msg string) {
	if p.curTok.Type == tt {
		p.advance()
		return
	}
	p.errorAtCurrent(msg)
}

func (p *Parser) errorAtCurrent(msg string) { p.errorAt(p.curTok, msg) }
func (p *Parser) errorAtPeek(msg string)    { p.errorAt(p.peekTok, msg) }

func (p *Parser) errorAt(tok lexer.Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.errors = append(p.errors, fmt.Sprintf("line %d: %s (at %q)", tok.Line, msg, tok.Lexeme))
}

// synchronize discards tokens until a likely statement boundary, so one
// syntax error doesn't cascade into a wall of follow-on errors.
func (p *Parser) synchronize() {
	p.panicMode = false
	for p.curTok.Type != lexer.TokenEOF {
		if p.curTok.Type == lexer.TokenSemicolon {
			p.advance()
			return
		}
		switch p.curTok.Type {
		case lexer.TokenClass, lexer.TokenFun, lexer.TokenVar, lexer.TokenFor,
			lexer.TokenIf, lexer.TokenWhile, lexer.TokenPrint, lexer.TokenReturn,
			lexer.TokenTry, lexer.TokenThrow, lexer.TokenImport:
			return
		}
		p.advance()
	}
}

// ---- declarations & statements ----

func (p *Parser) declaration() ast.Statement {
	var stmt ast.Statement
	switch {
	case p.match(lexer.TokenVar):
		stmt = p.varDecl()
	case p.match(lexer.TokenFun):
		stmt = p.funDecl()
	case p.match(lexer.TokenClass):
		stmt = p.classDecl()
	default:
		stmt = p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
	return stmt
}

func (p *Parser) varDecl() ast.Statement {
	line := p.curTok.Line
	p.consume(lexer.TokenIdentifier, "expected variable name")
	name := p.prevLexeme()
	var value ast.Expression
	if p.match(lexer.TokenAssign) {
		value = p.expression()
	}
	p.consume(lexer.TokenSemicolon, "expected ';' after variable declaration")
	return &ast.VarDecl{Name: name, Value: value, Base: ast.NewBase(line)}
}

// prevLexeme returns the lexeme of the token just consumed by the most
// recent consume()/match() call that advanced past it. Since advance()
// already moved curTok forward, we track it via a one-token trail.
func (p *Parser) prevLexeme() string { return p.prevTok.Lexeme }

// funDecl parses `fun name(params) { body }`, including the varargs
// trailing `...name` parameter (spec 4.2/9: only the last parameter may
// collect extra positional arguments into a list).
func (p *Parser) funDecl() ast.Statement {
	line := p.curTok.Line
	p.consume(lexer.TokenIdentifier, "expected function name")
	name := p.prevLexeme()
	fn := p.functionBody(name, line)
	return fn
}

func (p *Parser) functionBody(name string, line int) *ast.FunDecl {
	p.consume(lexer.TokenLParen, "expected '(' after function name")
	var params []string
	varargs := false
	if !p.check(lexer.TokenRParen) {
		for {
			if p.match(lexer.TokenEllipsis) {
				p.consume(lexer.TokenIdentifier, "expected parameter name after '...'")
				params = append(params, p.prevLexeme())
				varargs = true
				break
			}
			p.consume(lexer.TokenIdentifier, "expected parameter name")
			params = append(params, p.prevLexeme())
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRParen, "expected ')' after parameters")
	p.consume(lexer.TokenLBrace, "expected '{' before function body")
	body := p.blockStatements()
	return &ast.FunDecl{Name: name, Params: params, Varargs: varargs, Body: body, Base: ast.NewBase(line)}
}

func (p *Parser) classDecl() ast.Statement {
	line := p.curTok.Line
	p.consume(lexer.TokenIdentifier, "expected class name")
	name := p.prevLexeme()
	super := ""
	if p.match(lexer.TokenLess) {
		p.consume(lexer.TokenIdentifier, "expected superclass name after '<'")
		super = p.prevLexeme()
	}
	p.consume(lexer.TokenLBrace, "expected '{' before class body")
	var methods []*ast.FunDecl
	var initMethod *ast.FunDecl
	for !p.check(lexer.TokenRBrace) && !p.check(lexer.TokenEOF) {
		mLine := p.curTok.Line
		p.consume(lexer.TokenIdentifier, "expected method name")
		mName := p.prevLexeme()
		m := p.functionBody(mName, mLine)
		if mName == "init" {
			initMethod = m
		} else {
			methods = append(methods, m)
		}
	}
	p.consume(lexer.TokenRBrace, "expected '}' after class body")
	return &ast.ClassDecl{Name: name, SuperName: super, Methods: methods, InitMethod: initMethod, Base: ast.NewBase(line)}
}

func (p *Parser) statement() ast.Statement {
	switch {
	case p.match(lexer.TokenLBrace):
		line := p.prevTok.Line
		return &ast.Block{Statements: p.blockStatements(), Base: ast.NewBase(line)}
	case p.match(lexer.TokenIf):
		return p.ifStatement()
	case p.match(lexer.TokenWhile):
		return p.whileStatement()
	case p.match(lexer.TokenFor):
		return p.forStatement()
	case p.match(lexer.TokenTry):
		return p.tryStatement()
	case p.match(lexer.TokenThrow):
		return p.throwStatement()
	case p.match(lexer.TokenBreak):
		line := p.prevTok.Line
		p.consume(lexer.TokenSemicolon, "expected ';' after 'break'")
		return &ast.Break{Base: ast.NewBase(line)}
	case p.match(lexer.TokenContinue):
		line := p.prevTok.Line
		p.consume(lexer.TokenSemicolon, "expected ';' after 'continue'")
		return &ast.Continue{Base: ast.NewBase(line)}
	case p.match(lexer.TokenReturn):
		return p.returnStatement()
	case p.match(lexer.TokenPrint):
		return p.printStatement()
	case p.match(lexer.TokenImport):
		return p.importStatement()
	default:
		return p.exprStatement()
	}
}

// blockStatements parses statements up to (and consuming) the closing
// '}'; the opening '{' has already been consumed by the caller.
func (p *Parser) blockStatements() []ast.Statement {
	var out []ast.Statement
	for !p.check(lexer.TokenRBrace) && !p.check(lexer.TokenEOF) {
		if stmt := p.declaration(); stmt != nil {
			out = append(out, stmt)
		}
	}
	p.consume(lexer.TokenRBrace, "expected '}' after block")
	return out
}

func (p *Parser) ifStatement() ast.Statement {
	line := p.prevTok.Line
	p.consume(lexer.TokenLParen, "expected '(' after 'if'")
	cond := p.expression()
	p.consume(lexer.TokenRParen, "expected ')' after condition")
	then := p.statement()
	var els ast.Statement
	if p.match(lexer.TokenElse) {
		els = p.statement()
	}
	return &ast.If{Cond: cond, Then: then, Else: els, Base: ast.NewBase(line)}
}

func (p *Parser) whileStatement() ast.Statement {
	line := p.prevTok.Line
	p.consume(lexer.TokenLParen, "expected '(' after 'while'")
	cond := p.expression()
	p.consume(lexer.TokenRParen, "expected ')' after condition")
	body := p.statement()
	return &ast.While{Cond: cond, Body: body, Base: ast.NewBase(line)}
}

// forStatement parses both the C-style three-clause for and the
// for-in form, distinguishing them by looking for `var IDENT in` right
// after the opening paren (spec 9's resolved open question: this must be
// driven by shared token-consuming logic rather than a fixed
// lookahead-by-three-tokens hack, since `var x in xs` and `var x = 0;`
// otherwise start identically).
func (p *Parser) forStatement() ast.Statement {
	line := p.prevTok.Line
	p.consume(lexer.TokenLParen, "expected '(' after 'for'")

	if p.match(lexer.TokenVar) {
		p.consume(lexer.TokenIdentifier, "expected variable name")
		name := p.prevLexeme()
		if p.match(lexer.TokenIn) {
			iter := p.expression()
			p.consume(lexer.TokenRParen, "expected ')' after for-in clause")
			body := p.statement()
			return &ast.ForIn{Name: name, Iter: iter, Body: body, Base: ast.NewBase(line)}
		}
		// Not for-in: finish parsing it as the init clause of a classic for.
		var value ast.Expression
		if p.match(lexer.TokenAssign) {
			value = p.expression()
		}
		p.consume(lexer.TokenSemicolon, "expected ';' after loop initializer")
		init := ast.Statement(&ast.VarDecl{Name: name, Value: value, Base: ast.NewBase(line)})
		return p.finishClassicFor(line, init)
	}

	var init ast.Statement
	if p.match(lexer.TokenSemicolon) {
		init = nil
	} else {
		init = p.exprStatement()
	}
	return p.finishClassicFor(line, init)
}

func (p *Parser) finishClassicFor(line int, init ast.Statement) ast.Statement {
	var cond ast.Expression
	if !p.check(lexer.TokenSemicolon) {
		cond = p.expression()
	}
	p.consume(lexer.TokenSemicolon, "expected ';' after loop condition")

	var step ast.Expression
	if !p.check(lexer.TokenRParen) {
		step = p.expression()
	}
	p.consume(lexer.TokenRParen, "expected ')' after for clauses")

	body := p.statement()
	return &ast.For{Init: init, Cond: cond, Step: step, Body: body, Base: ast.NewBase(line)}
}

func (p *Parser) tryStatement() ast.Statement {
	line := p.prevTok.Line
	p.consume(lexer.TokenLBrace, "expected '{' after 'try'")
	bodyLine := p.prevTok.Line
	body := &ast.Block{Statements: p.blockStatements(), Base: ast.NewBase(bodyLine)}
	p.consume(lexer.TokenCatch, "expected 'catch' after try block")
	p.consume(lexer.TokenLParen, "expected '(' after 'catch'")
	p.consume(lexer.TokenIdentifier, "expected exception variable name")
	catchName := p.prevLexeme()
	p.consume(lexer.TokenRParen, "expected ')' after catch variable")
	p.consume(lexer.TokenLBrace, "expected '{' before catch block")
	catchLine := p.prevTok.Line
	catch := &ast.Block{Statements: p.blockStatements(), Base: ast.NewBase(catchLine)}
	return &ast.Try{Body: body, CatchName: catchName, Catch: catch, Base: ast.NewBase(line)}
}

func (p *Parser) throwStatement() ast.Statement {
	line := p.prevTok.Line
	value := p.expression()
	p.consume(lexer.TokenSemicolon, "expected ';' after thrown value")
	return &ast.Throw{Value: value, Base: ast.NewBase(line)}
}

func (p *Parser) returnStatement() ast.Statement {
	line := p.prevTok.Line
	var value ast.Expression
	if !p.check(lexer.TokenSemicolon) {
		value = p.expression()
	}
	p.consume(lexer.TokenSemicolon, "expected ';' after return value")
	return &ast.Return{Value: value, Base: ast.NewBase(line)}
}

func (p *Parser) printStatement() ast.Statement {
	line := p.prevTok.Line
	value := p.expression()
	p.consume(lexer.TokenSemicolon, "expected ';' after value")
	return &ast.Print{Value: value, Base: ast.NewBase(line)}
}

// importStatement parses `import Name;`, `import Name as Alias;` and
// `import "path" as Alias;` (spec 4.9: a string-literal designator
// requires an explicit alias since it has no bare identifier to fall
// back on).
func (p *Parser) importStatement() ast.Statement {
	line := p.prevTok.Line
	var path, alias string
	switch {
	case p.match(lexer.TokenIdentifier):
		path = p.prevLexeme()
		alias = path
	case p.match(lexer.TokenString):
		path = p.prevTok.Lexeme
	default:
		p.errorAtCurrent("expected module name after 'import'")
	}
	if p.match(lexer.TokenAs) {
		p.consume(lexer.TokenIdentifier, "expected alias name after 'as'")
		alias = p.prevLexeme()
	} else if alias == "" {
		p.errorAtCurrent("string-literal import requires an explicit 'as' alias")
	}
	p.consume(lexer.TokenSemicolon, "expected ';' after import")
	return &ast.Import{Path: path, Alias: alias, Base: ast.NewBase(line)}
}

func (p *Parser) exprStatement() ast.Statement {
	line := p.curTok.Line
	expr := p.expression()
	p.consume(lexer.TokenSemicolon, "expected ';' after expression")
	return &ast.ExprStmt{Expr: expr, Base: ast.NewBase(line)}
}

// ---- expressions: precedence-climbing chain ----
//
// assignment -> or -> and -> equality -> comparison -> term -> factor
// -> unary -> postfix(call/property/subscript) -> primary

func (p *Parser) expression() ast.Expression { return p.assignment() }

func (p *Parser) assignment() ast.Expression {
	expr := p.or()

	if op, isCompound := p.compoundAssignOp(); isCompound {
		line := p.curTok.Line
		p.advance()
		rhs := p.assignment()
		return p.desugarAssign(expr, op, rhs, line)
	}
	if p.match(lexer.TokenAssign) {
		line := p.prevTok.Line
		value := p.assignment()
		if !isAssignable(expr) {
			p.errorAt(p.prevTok, "invalid assignment target")
			return expr
		}
		return &ast.Assign{Target: expr, Value: value, Base: ast.NewBase(line)}
	}
	if p.check(lexer.TokenPlusPlus) || p.check(lexer.TokenMinusMinus) {
		op := "+"
		if p.curTok.Type == lexer.TokenMinusMinus {
			op = "-"
		}
		line := p.curTok.Line
		p.advance()
		if !isAssignable(expr) {
			p.errorAt(p.prevTok, "invalid increment/decrement target")
			return expr
		}
		one := &ast.NumberLiteral{Value: 1, Base: ast.NewBase(line)}
		rhs := &ast.Binary{Op: op, Left: expr, Right: one, Base: ast.NewBase(line)}
		return &ast.Assign{Target: expr, Value: rhs, Base: ast.NewBase(line)}
	}
	return expr
}

// compoundAssignOp reports whether curTok is a compound-assignment
// operator and which arithmetic op it desugars to.
func (p *Parser) compoundAssignOp() (string, bool) {
	switch p.curTok.Type {
	case lexer.TokenPlusEqual:
		return "+", true
	case lexer.TokenMinusEqual:
		return "-", true
	case lexer.TokenStarEqual:
		return "*", true
	case lexer.TokenSlashEqual:
		return "/", true
	case lexer.TokenPercentEqual:
		return "%", true
	default:
		return "", false
	}
}

// desugarAssign rewrites `target op= value` into `target = target op
// value` (spec 9: the left side is re-evaluated, not shared — a
// property/subscript target's receiver expression is evaluated twice).
func (p *Parser) desugarAssign(target ast.Expression, op string, value ast.Expression, line int) ast.Expression {
	if !isAssignable(target) {
		p.errorAt(p.prevTok, "invalid assignment target")
		return target
	}
	rhs := &ast.Binary{Op: op, Left: target, Right: value, Base: ast.NewBase(line)}
	return &ast.Assign{Target: target, Value: rhs, Base: ast.NewBase(line)}
}

func isAssignable(e ast.Expression) bool {
	switch e.(type) {
	case *ast.Identifier, *ast.LoadProperty, *ast.LoadSubscript:
		return true
	default:
		return false
	}
}

func (p *Parser) or() ast.Expression {
	expr := p.and()
	for p.match(lexer.TokenOr) || p.match(lexer.TokenPipePipe) {
		line := p.prevTok.Line
		right := p.and()
		expr = &ast.Logical{Op: "or", Left: expr, Right: right, Base: ast.NewBase(line)}
	}
	return expr
}

func (p *Parser) and() ast.Expression {
	expr := p.equality()
	for p.match(lexer.TokenAnd) || p.match(lexer.TokenAmpAmp) {
		line := p.prevTok.Line
		right := p.equality()
		expr = &ast.Logical{Op: "and", Left: expr, Right: right, Base: ast.NewBase(line)}
	}
	return expr
}

func (p *Parser) equality() ast.Expression {
	expr := p.comparison()
	for p.check(lexer.TokenEqual) || p.check(lexer.TokenBangEqual) {
		op := p.tokenOp()
		line := p.curTok.Line
		p.advance()
		right := p.comparison()
		expr = &ast.Binary{Op: op, Left: expr, Right: right, Base: ast.NewBase(line)}
	}
	return expr
}

func (p *Parser) comparison() ast.Expression {
	expr := p.term()
	for p.check(lexer.TokenLess) || p.check(lexer.TokenLessEqual) ||
		p.check(lexer.TokenGreater) || p.check(lexer.TokenGreaterEqual) {
		op := p.tokenOp()
		line := p.curTok.Line
		p.advance()
		right := p.term()
		expr = &ast.Binary{Op: op, Left: expr, Right: right, Base: ast.NewBase(line)}
	}
	return expr
}

func (p *Parser) term() ast.Expression {
	expr := p.factor()
	for p.check(lexer.TokenPlus) || p.check(lexer.TokenMinus) {
		op := p.tokenOp()
		line := p.curTok.Line
		p.advance()
		right := p.factor()
		expr = &ast.Binary{Op: op, Left: expr, Right: right, Base: ast.NewBase(line)}
	}
	return expr
}

func (p *Parser) factor() ast.Expression {
	expr := p.unary()
	for p.check(lexer.TokenStar) || p.check(lexer.TokenSlash) || p.check(lexer.TokenPercent) {
		op := p.tokenOp()
		line := p.curTok.Line
		p.advance()
		right := p.unary()
		expr = &ast.Binary{Op: op, Left: expr, Right: right, Base: ast.NewBase(line)}
	}
	return expr
}

func (p *Parser) unary() ast.Expression {
	if p.check(lexer.TokenBang) || p.check(lexer.TokenNot) || p.check(lexer.TokenMinus) {
		op := "!"
		if p.curTok.Type == lexer.TokenMinus {
			op = "-"
		}
		line := p.curTok.Line
		p.advance()
		operand := p.unary()
		return &ast.Unary{Op: op, Operand: operand, Base: ast.NewBase(line)}
	}
	return p.callOrPostfix()
}

func (p *Parser) callOrPostfix() ast.Expression {
	expr := p.primary()
	for {
		switch {
		case p.match(lexer.TokenLParen):
			expr = p.finishCall(expr)
		case p.match(lexer.TokenDot):
			line := p.prevTok.Line
			if p.match(lexer.TokenLParen) {
				// unreachable in this grammar; kept defensive.
				p.errorAtCurrent("expected property name after '.'")
				return expr
			}
			p.consume(lexer.TokenIdentifier, "expected property name after '.'")
			expr = &ast.LoadProperty{Object: expr, Name: p.prevLexeme(), Base: ast.NewBase(line)}
		case p.match(lexer.TokenLBracket):
			line := p.prevTok.Line
			idx := p.expression()
			p.consume(lexer.TokenRBracket, "expected ']' after subscript")
			expr = &ast.LoadSubscript{Object: expr, Index: idx, Base: ast.NewBase(line)}
		default:
			return expr
		}
	}
}

func (p *Parser) finishCall(callee ast.Expression) ast.Expression {
	line := p.prevTok.Line
	var args []ast.Expression
	if !p.check(lexer.TokenRParen) {
		for {
			args = append(args, p.expression())
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRParen, "expected ')' after arguments")
	return &ast.Call{Callee: callee, Args: args, Base: ast.NewBase(line)}
}

func (p *Parser) primary() ast.Expression {
	line := p.curTok.Line
	switch {
	case p.match(lexer.TokenNumber):
		return p.numberLiteral(line)
	case p.match(lexer.TokenString):
		return &ast.StringLiteral{Value: p.prevTok.Lexeme, Base: ast.NewBase(line)}
	case p.match(lexer.TokenTrue):
		return &ast.BoolLiteral{Value: true, Base: ast.NewBase(line)}
	case p.match(lexer.TokenFalse):
		return &ast.BoolLiteral{Value: false, Base: ast.NewBase(line)}
	case p.match(lexer.TokenNil):
		return &ast.NilLiteral{Base: ast.NewBase(line)}
	case p.match(lexer.TokenThis):
		return &ast.This{Base: ast.NewBase(line)}
	case p.match(lexer.TokenSuper):
		p.consume(lexer.TokenDot, "expected '.' after 'super'")
		p.consume(lexer.TokenIdentifier, "expected superclass method name")
		return &ast.SuperMethod{Method: p.prevLexeme(), Base: ast.NewBase(line)}
	case p.match(lexer.TokenIdentifier):
		return &ast.Identifier{Name: p.prevTok.Lexeme, Base: ast.NewBase(line)}
	case p.match(lexer.TokenLParen):
		expr := p.expression()
		p.consume(lexer.TokenRParen, "expected ')' after expression")
		return expr
	case p.match(lexer.TokenLBracket):
		return p.listLiteral(line)
	case p.match(lexer.TokenLBrace):
		return p.mapLiteral(line)
	default:
		p.errorAtCurrent(fmt.Sprintf("unexpected token %s", p.curTok.Type))
		p.advance()
		return &ast.NilLiteral{Base: ast.NewBase(line)}
	}
}

func (p *Parser) numberLiteral(line int) ast.Expression {
	n, err := strconv.ParseFloat(p.prevTok.Lexeme, 64)
	if err != nil {
		p.errorAt(p.prevTok, fmt.Sprintf("invalid number literal %q", p.prevTok.Lexeme))
		n = 0
	}
	return &ast.NumberLiteral{Value: n, Base: ast.NewBase(line)}
}

func (p *Parser) listLiteral(line int) ast.Expression {
	var elems []ast.Expression
	if !p.check(lexer.TokenRBracket) {
		for {
			elems = append(elems, p.expression())
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRBracket, "expected ']' after list elements")
	return &ast.ListLiteral{Elements: elems, Base: ast.NewBase(line)}
}

func (p *Parser) mapLiteral(line int) ast.Expression {
	var entries []ast.MapEntry
	if !p.check(lexer.TokenRBrace) {
		for {
			key := p.expression()
			p.consume(lexer.TokenColon, "expected ':' after map key")
			val := p.expression()
			entries = append(entries, ast.MapEntry{Key: key, Value: val})
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRBrace, "expected '}' after map entries")
	return &ast.MapLiteral{Entries: entries, Base: ast.NewBase(line)}
}

func (p *Parser) tokenOp() string {
	switch p.curTok.Type {
	case lexer.TokenEqual:
		return "=="
	case lexer.TokenBangEqual:
		return "!="
	case lexer.TokenLess:
		return "<"
	case lexer.TokenLessEqual:
		return "<="
	case lexer.TokenGreater:
		return ">"
	case lexer.TokenGreaterEqual:
		return ">="
	case lexer.TokenPlus:
		return "+"
	case lexer.TokenMinus:
		return "-"
	case lexer.TokenStar:
		return "*"
	case lexer.TokenSlash:
		return "/"
	case lexer.TokenPercent:
		return "%"
	default:
		return "?"
	}
}
