package compiler

import (
	"strings"

	"github.com/deeplakee/aria/pkg/ast"
	"github.com/deeplakee/aria/pkg/bytecode"
)

func (c *Compiler) compileStatement(ctx *funcCtx, stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		c.compileVarDecl(ctx, s)
	case *ast.FunDecl:
		c.compileFunDecl(ctx, s)
	case *ast.ClassDecl:
		c.compileClassDecl(ctx, s)
	case *ast.Block:
		c.compileBlockStmt(ctx, s)
	case *ast.If:
		c.compileIf(ctx, s)
	case *ast.While:
		c.compileWhile(ctx, s)
	case *ast.For:
		c.compileFor(ctx, s)
	case *ast.ForIn:
		c.compileForIn(ctx, s)
	case *ast.Try:
		c.compileTry(ctx, s)
	case *ast.Throw:
		c.compileExpression(ctx, s.Value)
		ctx.chunk.WriteOp(bytecode.OpThrow, s.Line())
	case *ast.Break:
		c.compileBreak(ctx, s)
	case *ast.Continue:
		c.compileContinue(ctx, s)
	case *ast.Return:
		c.compileReturn(ctx, s)
	case *ast.Print:
		c.compileExpression(ctx, s.Value)
		ctx.chunk.WriteOp(bytecode.OpPrint, s.Line())
	case *ast.Import:
		c.compileImport(ctx, s)
	case *ast.ExprStmt:
		c.compileExpression(ctx, s.Expr)
		ctx.chunk.WriteOp(bytecode.OpPop, s.Line())
	default:
		c.errorAt(stmt.Line(), "compiler: unhandled statement %T", stmt)
	}
}

func lastStatementLine(stmts []ast.Statement, fallback int) int {
	if len(stmts) == 0 {
		return fallback
	}
	return stmts[len(stmts)-1].Line()
}

func (c *Compiler) compileBlockStmt(ctx *funcCtx, b *ast.Block) {
	ctx.beginScope()
	for _, st := range b.Statements {
		c.compileStatement(ctx, st)
	}
	ops := ctx.endScope()
	emitOps(ctx.chunk, ops, lastStatementLine(b.Statements, b.Line()))
}

// compileVarDecl mirrors VarDeclNode::generateByteCode: at local scope
// the slot is reserved (depth -1) BEFORE the initializer compiles, so
// `var a = a;` resolves its own right-hand reference to the
// own-initializer sentinel and is rejected; at depth 0 it's a plain
// DEF_GLOBAL after the initializer.
func (c *Compiler) compileVarDecl(ctx *funcCtx, s *ast.VarDecl) {
	line := s.Line()
	if ctx.scopeDepth > 0 {
		if ctx.findVariableInSameDepth(s.Name) {
			c.errorAt(line, "variable '%s' already declared in this scope", s.Name)
		}
		if !ctx.addLocal(s.Name) {
			c.errorAt(line, "too many local variables in function")
		}
		c.compileInitializer(ctx, s.Value, line)
		ctx.markInitialized()
		return
	}
	c.compileInitializer(ctx, s.Value, line)
	nameConst := c.addConstant(ctx, bytecode.FromObj(c.heap.InternString(s.Name)), line)
	ctx.chunk.WriteOp(bytecode.OpDefGlobal, line)
	ctx.chunk.WriteU16(nameConst, line)
}

func (c *Compiler) compileInitializer(ctx *funcCtx, value ast.Expression, line int) {
	if value != nil {
		c.compileExpression(ctx, value)
		return
	}
	ctx.chunk.WriteOp(bytecode.OpLoadNil, line)
}

// compileFunDecl binds the function's name before compiling its body
// (for a local declaration) so the body can reference its own name for
// recursion, then compiles the body into its own Function/Chunk and
// emits exactly one CLOSURE in the enclosing chunk — see compileFunction.
func (c *Compiler) compileFunDecl(ctx *funcCtx, s *ast.FunDecl) {
	line := s.Line()
	isLocal := ctx.scopeDepth > 0
	if isLocal {
		if ctx.findVariableInSameDepth(s.Name) {
			c.errorAt(line, "variable '%s' already declared in this scope", s.Name)
		}
		if !ctx.addLocal(s.Name) {
			c.errorAt(line, "too many local variables in function")
		}
		ctx.markInitialized()
	}
	c.compileFunction(ctx, s, funcFunction, s.Name)
	if !isLocal {
		nameConst := c.addConstant(ctx, bytecode.FromObj(c.heap.InternString(s.Name)), line)
		ctx.chunk.WriteOp(bytecode.OpDefGlobal, line)
		ctx.chunk.WriteU16(nameConst, line)
	}
}

// compileFunction compiles fd's body into a fresh funcCtx and emits the
// single CLOSURE instruction that produces it onto ctx's own chunk,
// with one (isLocal u8, index u16) pair per resolved upvalue trailing
// the instruction.
func (c *Compiler) compileFunction(ctx *funcCtx, fd *ast.FunDecl, kind funcType, name string) {
	fctx := newFuncCtx(ctx, kind, c.heap, ctx.chunk.Globals, name, len(fd.Params), fd.Varargs)

	for _, p := range fd.Params {
		if !fctx.addLocal(p) {
			c.errorAt(fd.Line(), "too many parameters")
		}
		fctx.markInitialized()
	}
	for _, st := range fd.Body {
		c.compileStatement(fctx, st)
	}

	endLine := lastStatementLine(fd.Body, fd.Line())
	if kind == funcInitMethod {
		fctx.chunk.WriteOp(bytecode.OpLoadLocal, endLine)
		fctx.chunk.WriteU16(0, endLine)
	} else {
		fctx.chunk.WriteOp(bytecode.OpLoadNil, endLine)
	}
	fctx.chunk.WriteOp(bytecode.OpReturn, endLine)

	fctx.fn.UpvalueInfo = fctx.upvalues
	fctx.fn.UpvalueCnt = len(fctx.upvalues)

	idx := c.addConstant(ctx, bytecode.FromObj(fctx.fn), fd.Line())
	ctx.chunk.WriteOp(bytecode.OpClosure, fd.Line())
	ctx.chunk.WriteU16(idx, fd.Line())
	for _, uv := range fctx.upvalues {
		var isLocalByte byte
		if uv.FromParentLocal {
			isLocalByte = 1
		}
		ctx.chunk.WriteByte(isLocalByte, fd.Line())
		ctx.chunk.WriteU16(uint16(uv.Index), fd.Line())
	}
}

// compileClassDecl follows ClassDeclNode::generateByteCode's emission
// order: MAKE_CLASS, optional superclass load + INHERIT, bind the name
// (local or global), reload the class value, attach each method/init,
// then discard the now-unneeded class value from the stack.
func (c *Compiler) compileClassDecl(ctx *funcCtx, s *ast.ClassDecl) {
	line := s.Line()
	isLocal := ctx.scopeDepth > 0
	if isLocal {
		if ctx.findVariableInSameDepth(s.Name) {
			c.errorAt(line, "variable '%s' already declared in this scope", s.Name)
		}
		if !ctx.addLocal(s.Name) {
			c.errorAt(line, "too many local variables in function")
		}
	}

	nameConst := c.addConstant(ctx, bytecode.FromObj(c.heap.InternString(s.Name)), line)
	ctx.chunk.WriteOp(bytecode.OpMakeClass, line)
	ctx.chunk.WriteU16(nameConst, line)

	hasSuper := s.SuperName != ""
	if hasSuper {
		if s.SuperName == s.Name {
			c.errorAt(line, "a class can't inherit from itself")
		}
		c.compileVariableLoad(ctx, s.SuperName, line)
		ctx.chunk.WriteOp(bytecode.OpInherit, line)
	}

	cctx := &classContext{enclosing: ctx.class, hasSuperClass: hasSuper}
	ctx.class = cctx

	if isLocal {
		ctx.markInitialized()
	} else {
		ctx.chunk.WriteOp(bytecode.OpDefGlobal, line)
		ctx.chunk.WriteU16(nameConst, line)
	}
	c.compileVariableLoad(ctx, s.Name, line)

	for _, m := range s.Methods {
		c.compileFunction(ctx, m, funcMethod, m.Name)
		methodNameConst := c.addConstant(ctx, bytecode.FromObj(c.heap.InternString(m.Name)), m.Line())
		ctx.chunk.WriteOp(bytecode.OpMakeMethod, m.Line())
		ctx.chunk.WriteU16(methodNameConst, m.Line())
	}
	if s.InitMethod != nil {
		c.compileFunction(ctx, s.InitMethod, funcInitMethod, "init")
		ctx.chunk.WriteOp(bytecode.OpMakeInitMethod, s.InitMethod.Line())
	}

	ctx.chunk.WriteOp(bytecode.OpPop, line)
	ctx.class = cctx.enclosing
}

func (c *Compiler) compileIf(ctx *funcCtx, s *ast.If) {
	line := s.Line()
	c.compileExpression(ctx, s.Cond)
	elseJump := ctx.chunk.EmitJump(bytecode.OpJumpFalse, line)
	c.compileStatement(ctx, s.Then)
	if s.Else != nil {
		endJump := ctx.chunk.EmitJump(bytecode.OpJumpFwd, s.Then.Line())
		c.patchJump(ctx, elseJump, line)
		c.compileStatement(ctx, s.Else)
		c.patchJump(ctx, endJump, line)
		return
	}
	c.patchJump(ctx, elseJump, line)
}

func (c *Compiler) compileWhile(ctx *funcCtx, s *ast.While) {
	line := s.Line()
	loopStart := ctx.chunk.Len()
	c.compileExpression(ctx, s.Cond)
	exitJump := ctx.chunk.EmitJump(bytecode.OpJumpFalse, line)

	lc := &loopContext{popDepth: ctx.scopeDepth, continueTarget: loopStart}
	ctx.loops = append(ctx.loops, lc)
	c.compileStatement(ctx, s.Body)
	ctx.loops = ctx.loops[:len(ctx.loops)-1]

	c.emitLoop(ctx, loopStart, line)
	c.patchJump(ctx, exitJump, line)
	for _, bj := range lc.breakJumps {
		c.patchJump(ctx, bj, line)
	}
}

// compileFor follows the usual loop-and-patch shape for a three-clause
// loop: the increment, when present, is compiled right after the
// condition check (reached only via the loop-back edge, never by
// falling through) so its start position is already fixed before the
// body compiles — `continue` can target it directly with no deferred
// patch, unlike the original's loopStart/jumpOffset dual-purpose
// backPatch overload.
func (c *Compiler) compileFor(ctx *funcCtx, s *ast.For) {
	line := s.Line()
	ctx.beginScope()
	if s.Init != nil {
		c.compileStatement(ctx, s.Init)
	}

	loopStart := ctx.chunk.Len()
	exitJump := -1
	if s.Cond != nil {
		c.compileExpression(ctx, s.Cond)
		exitJump = ctx.chunk.EmitJump(bytecode.OpJumpFalse, line)
	}

	continueTarget := loopStart
	if s.Step != nil {
		bodyJump := ctx.chunk.EmitJump(bytecode.OpJumpFwd, line)
		continueTarget = ctx.chunk.Len()
		c.compileExpression(ctx, s.Step)
		ctx.chunk.WriteOp(bytecode.OpPop, line)
		c.emitLoop(ctx, loopStart, line)
		c.patchJump(ctx, bodyJump, line)
	}

	lc := &loopContext{popDepth: ctx.scopeDepth, continueTarget: continueTarget}
	ctx.loops = append(ctx.loops, lc)
	c.compileStatement(ctx, s.Body)
	ctx.loops = ctx.loops[:len(ctx.loops)-1]

	c.emitLoop(ctx, continueTarget, line)
	if exitJump >= 0 {
		c.patchJump(ctx, exitJump, line)
	}
	for _, bj := range lc.breakJumps {
		c.patchJump(ctx, bj, line)
	}

	ops := ctx.endScope()
	emitOps(ctx.chunk, ops, line)
}

// compileForIn stores the iterator in a hidden local (GET_ITER pushes
// it once; ITER_HAS_NEXT/ITER_GET_NEXT each pop their operand, so the
// iterator must be reloaded from its slot on every check) — ported
// from ForInStmtNode::generateByteCode.
func (c *Compiler) compileForIn(ctx *funcCtx, s *ast.ForIn) {
	line := s.Line()
	ctx.beginScope()

	c.compileExpression(ctx, s.Iter)
	ctx.chunk.WriteOp(bytecode.OpGetIter, line)
	ctx.addLocal("")
	ctx.markInitialized()
	iterSlot := len(ctx.locals) - 1

	loopStart := ctx.chunk.Len()
	ctx.chunk.WriteOp(bytecode.OpLoadLocal, line)
	ctx.chunk.WriteU16(uint16(iterSlot), line)
	ctx.chunk.WriteOp(bytecode.OpIterHasNext, line)
	exitJump := ctx.chunk.EmitJump(bytecode.OpJumpFalse, line)

	// popDepth is captured outside the per-iteration scope so
	// break/continue pop the loop variable itself, not just whatever
	// the body's own nested blocks introduce.
	popDepth := ctx.scopeDepth
	ctx.beginScope()
	ctx.chunk.WriteOp(bytecode.OpLoadLocal, line)
	ctx.chunk.WriteU16(uint16(iterSlot), line)
	ctx.chunk.WriteOp(bytecode.OpIterGetNext, line)
	ctx.addLocal(s.Name)
	ctx.markInitialized()

	lc := &loopContext{popDepth: popDepth, continueTarget: loopStart}
	ctx.loops = append(ctx.loops, lc)
	c.compileStatement(ctx, s.Body)
	ctx.loops = ctx.loops[:len(ctx.loops)-1]

	ops := ctx.endScope()
	emitOps(ctx.chunk, ops, line)
	c.emitLoop(ctx, loopStart, line)
	c.patchJump(ctx, exitJump, line)
	for _, bj := range lc.breakJumps {
		c.patchJump(ctx, bj, line)
	}

	outerOps := ctx.endScope()
	emitOps(ctx.chunk, outerOps, line)
}

// compileTry follows TryCatchStmtNode: BEGIN_TRY records the handler
// offset and the stack depth to unwind to on throw; the VM resets sp to
// that depth and pushes the thrown value before jumping to the handler,
// so the catch clause's bound name is declared in a scope starting at
// exactly that depth.
func (c *Compiler) compileTry(ctx *funcCtx, s *ast.Try) {
	line := s.Line()
	beginTry := ctx.chunk.EmitJump(bytecode.OpBeginTry, line)

	ctx.beginScope()
	for _, st := range s.Body.Statements {
		c.compileStatement(ctx, st)
	}
	ops := ctx.endScope()
	emitOps(ctx.chunk, ops, lastStatementLine(s.Body.Statements, line))
	ctx.chunk.WriteOp(bytecode.OpEndTry, line)
	endJump := ctx.chunk.EmitJump(bytecode.OpJumpFwd, line)

	c.patchJump(ctx, beginTry, line)
	ctx.beginScope()
	ctx.addLocal(s.CatchName)
	ctx.markInitialized()
	for _, st := range s.Catch.Statements {
		c.compileStatement(ctx, st)
	}
	catchOps := ctx.endScope()
	emitOps(ctx.chunk, catchOps, lastStatementLine(s.Catch.Statements, line))

	c.patchJump(ctx, endJump, line)
}

func (c *Compiler) compileBreak(ctx *funcCtx, s *ast.Break) {
	if len(ctx.loops) == 0 {
		c.errorAt(s.Line(), "'break' used outside a loop")
		return
	}
	lc := ctx.loops[len(ctx.loops)-1]
	ops := ctx.popForControlFlow(lc.popDepth)
	emitOps(ctx.chunk, ops, s.Line())
	j := ctx.chunk.EmitJump(bytecode.OpJumpFwd, s.Line())
	lc.breakJumps = append(lc.breakJumps, j)
}

func (c *Compiler) compileContinue(ctx *funcCtx, s *ast.Continue) {
	if len(ctx.loops) == 0 {
		c.errorAt(s.Line(), "'continue' used outside a loop")
		return
	}
	lc := ctx.loops[len(ctx.loops)-1]
	ops := ctx.popForControlFlow(lc.popDepth)
	emitOps(ctx.chunk, ops, s.Line())
	c.emitLoop(ctx, lc.continueTarget, s.Line())
}

func (c *Compiler) compileReturn(ctx *funcCtx, s *ast.Return) {
	line := s.Line()
	if ctx.kind == funcScript {
		c.errorAt(line, "can't return from top-level code")
	}
	if s.Value == nil {
		if ctx.kind == funcInitMethod {
			ctx.chunk.WriteOp(bytecode.OpLoadLocal, line)
			ctx.chunk.WriteU16(0, line)
		} else {
			ctx.chunk.WriteOp(bytecode.OpLoadNil, line)
		}
	} else {
		if ctx.kind == funcInitMethod {
			c.errorAt(line, "can't return a value from an initializer")
		}
		c.compileExpression(ctx, s.Value)
	}
	ctx.chunk.WriteOp(bytecode.OpReturn, line)
}

// compileImport deviates from ImportStmtNode's literal pattern: the
// original's IMPORT opcode pushes a value and the statement form
// follows it with a POP, but this VM's IMPORT mutates the importing
// chunk's globals directly and leaves the stack untouched, so no
// trailing POP is emitted.
func (c *Compiler) compileImport(ctx *funcCtx, s *ast.Import) {
	line := s.Line()
	if strings.ContainsAny(s.Path, `/\`) && s.Alias == "" {
		c.errorAt(line, "import of a path-style module requires an explicit alias")
	}
	bindName := s.Alias
	if bindName == "" {
		bindName = s.Path
	}
	inputConst := c.addConstant(ctx, bytecode.FromObj(c.heap.InternString(s.Path)), line)
	moduleConst := c.addConstant(ctx, bytecode.FromObj(c.heap.InternString(bindName)), line)
	ctx.chunk.WriteOp(bytecode.OpImport, line)
	ctx.chunk.WriteU16(inputConst, line)
	ctx.chunk.WriteU16(moduleConst, line)
}
