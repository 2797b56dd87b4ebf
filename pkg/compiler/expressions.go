package compiler

import (
	"github.com/deeplakee/aria/pkg/ast"
	"github.com/deeplakee/aria/pkg/bytecode"
)

func (c *Compiler) compileExpression(ctx *funcCtx, expr ast.Expression) {
	switch e := expr.(type) {
	case *ast.NumberLiteral:
		c.writeConstant(ctx, bytecode.Number(e.Value), e.Line())
	case *ast.StringLiteral:
		c.writeConstant(ctx, bytecode.FromObj(c.heap.InternString(e.Value)), e.Line())
	case *ast.BoolLiteral:
		if e.Value {
			ctx.chunk.WriteOp(bytecode.OpLoadTrue, e.Line())
		} else {
			ctx.chunk.WriteOp(bytecode.OpLoadFalse, e.Line())
		}
	case *ast.NilLiteral:
		ctx.chunk.WriteOp(bytecode.OpLoadNil, e.Line())
	case *ast.ListLiteral:
		for _, el := range e.Elements {
			c.compileExpression(ctx, el)
		}
		ctx.chunk.WriteOp(bytecode.OpMakeList, e.Line())
		ctx.chunk.WriteU16(uint16(len(e.Elements)), e.Line())
	case *ast.MapLiteral:
		for _, ent := range e.Entries {
			c.compileExpression(ctx, ent.Key)
			c.compileExpression(ctx, ent.Value)
		}
		ctx.chunk.WriteOp(bytecode.OpMakeMap, e.Line())
		ctx.chunk.WriteU16(uint16(len(e.Entries)), e.Line())
	case *ast.Identifier:
		c.compileVariableLoad(ctx, e.Name, e.Line())
	case *ast.This:
		c.compileThis(ctx, e.Line())
	case *ast.SuperMethod:
		c.compileSuperMethod(ctx, e)
	case *ast.Unary:
		c.compileUnary(ctx, e)
	case *ast.Binary:
		c.compileBinary(ctx, e)
	case *ast.Logical:
		c.compileLogical(ctx, e)
	case *ast.Call:
		c.compileCall(ctx, e)
	case *ast.Invoke:
		c.compileExpression(ctx, e.Receiver)
		for _, a := range e.Args {
			c.compileExpression(ctx, a)
		}
		c.emitInvoke(ctx, e.Method, len(e.Args), e.Line())
	case *ast.LoadProperty:
		c.compileExpression(ctx, e.Object)
		nameConst := c.addConstant(ctx, bytecode.FromObj(c.heap.InternString(e.Name)), e.Line())
		ctx.chunk.WriteOp(bytecode.OpLoadProperty, e.Line())
		ctx.chunk.WriteU16(nameConst, e.Line())
	case *ast.LoadSubscript:
		c.compileExpression(ctx, e.Object)
		c.compileExpression(ctx, e.Index)
		ctx.chunk.WriteOp(bytecode.OpLoadSubscr, e.Line())
	case *ast.Assign:
		c.compileAssign(ctx, e)
	default:
		c.errorAt(expr.Line(), "compiler: unhandled expression %T", expr)
	}
}

// compileVariableLoad resolves name against locals, then enclosing
// upvalues, then falls back to a dynamic global lookup — ported from
// LoadVarNode::generateByteCode's three-tier resolution.
func (c *Compiler) compileVariableLoad(ctx *funcCtx, name string, line int) {
	if local := ctx.findLocalVariable(name); local != notFound {
		if local == ownInitializer {
			c.errorAt(line, "can't read local variable '%s' in its own initializer", name)
			return
		}
		ctx.chunk.WriteOp(bytecode.OpLoadLocal, line)
		ctx.chunk.WriteU16(uint16(local), line)
		return
	}
	if up := ctx.findUpvalueVariable(c, name, line); up >= 0 {
		ctx.chunk.WriteOp(bytecode.OpLoadUpvalue, line)
		ctx.chunk.WriteU16(uint16(up), line)
		return
	}
	nameConst := c.addConstant(ctx, bytecode.FromObj(c.heap.InternString(name)), line)
	ctx.chunk.WriteOp(bytecode.OpLoadGlobal, line)
	ctx.chunk.WriteU16(nameConst, line)
}

func (c *Compiler) compileThis(ctx *funcCtx, line int) {
	if local := ctx.findLocalVariable("this"); local >= 0 {
		ctx.chunk.WriteOp(bytecode.OpLoadLocal, line)
		ctx.chunk.WriteU16(uint16(local), line)
		return
	}
	if up := ctx.findUpvalueVariable(c, "this", line); up >= 0 {
		ctx.chunk.WriteOp(bytecode.OpLoadUpvalue, line)
		ctx.chunk.WriteU16(uint16(up), line)
		return
	}
	c.errorAt(line, "'this' used outside a method")
}

// compileSuperMethod pushes `this` and emits LOAD_SUPER_METHOD, which
// resolves the superclass from the receiving Instance's own Class.Super
// at runtime — no separate "super" binding is needed at compile time,
// unlike the closed-over-upvalue scheme this pattern commonly uses
// elsewhere, since the VM already carries the class chain on the
// instance itself.
func (c *Compiler) compileSuperMethod(ctx *funcCtx, e *ast.SuperMethod) {
	if ctx.class == nil {
		c.errorAt(e.Line(), "'super' used outside a class")
		return
	}
	if !ctx.class.hasSuperClass {
		c.errorAt(e.Line(), "'super' used in a class with no superclass")
		return
	}
	c.compileThis(ctx, e.Line())
	nameConst := c.addConstant(ctx, bytecode.FromObj(c.heap.InternString(e.Method)), e.Line())
	ctx.chunk.WriteOp(bytecode.OpLoadSuperMethod, e.Line())
	ctx.chunk.WriteU16(nameConst, e.Line())
}

func (c *Compiler) compileUnary(ctx *funcCtx, e *ast.Unary) {
	c.compileExpression(ctx, e.Operand)
	switch e.Op {
	case "-":
		ctx.chunk.WriteOp(bytecode.OpNegate, e.Line())
	case "!":
		ctx.chunk.WriteOp(bytecode.OpNot, e.Line())
	default:
		c.errorAt(e.Line(), "compiler: unknown unary operator '%s'", e.Op)
	}
}

func binaryOpcode(op string) (bytecode.Opcode, bool) {
	switch op {
	case "==":
		return bytecode.OpEqual, true
	case "!=":
		return bytecode.OpNotEqual, true
	case ">":
		return bytecode.OpGreater, true
	case ">=":
		return bytecode.OpGreaterEqual, true
	case "<":
		return bytecode.OpLess, true
	case "<=":
		return bytecode.OpLessEqual, true
	case "+":
		return bytecode.OpAdd, true
	case "-":
		return bytecode.OpSubtract, true
	case "*":
		return bytecode.OpMultiply, true
	case "/":
		return bytecode.OpDivide, true
	case "%":
		return bytecode.OpMod, true
	}
	return 0, false
}

func (c *Compiler) compileBinary(ctx *funcCtx, e *ast.Binary) {
	c.compileExpression(ctx, e.Left)
	c.compileExpression(ctx, e.Right)
	op, ok := binaryOpcode(e.Op)
	if !ok {
		c.errorAt(e.Line(), "compiler: unknown binary operator '%s'", e.Op)
		return
	}
	ctx.chunk.WriteOp(op, e.Line())
}

// compileLogical emits short-circuiting jumps rather than a plain
// opcode: `and` skips the right operand (leaving the falsy left value
// as the result) and `or` skips it when the left is truthy.
func (c *Compiler) compileLogical(ctx *funcCtx, e *ast.Logical) {
	line := e.Line()
	c.compileExpression(ctx, e.Left)
	switch e.Op {
	case "and":
		j := ctx.chunk.EmitJump(bytecode.OpJumpFalseNoPop, line)
		ctx.chunk.WriteOp(bytecode.OpPop, line)
		c.compileExpression(ctx, e.Right)
		c.patchJump(ctx, j, line)
	case "or":
		j := ctx.chunk.EmitJump(bytecode.OpJumpTrueNoPop, line)
		ctx.chunk.WriteOp(bytecode.OpPop, line)
		c.compileExpression(ctx, e.Right)
		c.patchJump(ctx, j, line)
	default:
		c.errorAt(line, "compiler: unknown logical operator '%s'", e.Op)
	}
}

// compileCall recognizes `receiver.method(args)` (a Call whose Callee
// is a LoadProperty) and lowers it straight to INVOKE_METHOD, skipping
// the BoundMethod allocation a generic LOAD_PROPERTY + CALL would need
// — the parser never produces an Invoke node itself (see ast.Invoke's
// doc comment), so this rewrite is the only place one is synthesized.
func (c *Compiler) compileCall(ctx *funcCtx, e *ast.Call) {
	if len(e.Args) > 255 {
		c.errorAt(e.Line(), "too many arguments")
	}
	if lp, ok := e.Callee.(*ast.LoadProperty); ok {
		c.compileExpression(ctx, lp.Object)
		for _, a := range e.Args {
			c.compileExpression(ctx, a)
		}
		c.emitInvoke(ctx, lp.Name, len(e.Args), e.Line())
		return
	}
	c.compileExpression(ctx, e.Callee)
	for _, a := range e.Args {
		c.compileExpression(ctx, a)
	}
	ctx.chunk.WriteOp(bytecode.OpCall, e.Line())
	ctx.chunk.WriteByte(byte(len(e.Args)), e.Line())
}

func (c *Compiler) emitInvoke(ctx *funcCtx, method string, argc int, line int) {
	nameConst := c.addConstant(ctx, bytecode.FromObj(c.heap.InternString(method)), line)
	ctx.chunk.WriteOp(bytecode.OpInvokeMethod, line)
	ctx.chunk.WriteU16(nameConst, line)
	ctx.chunk.WriteByte(byte(argc), line)
}

// compileAssign compiles each target kind in the exact operand order
// its store opcode expects: STORE_PROPERTY pops (receiver, value) and
// STORE_SUBSCR pops (container, index, value) — both leave the
// receiver/container compiled first and the assigned value compiled
// last, so both opcodes can push the same value back as the
// expression's result.
func (c *Compiler) compileAssign(ctx *funcCtx, e *ast.Assign) {
	line := e.Line()
	switch t := e.Target.(type) {
	case *ast.Identifier:
		if local := ctx.findLocalVariable(t.Name); local >= 0 {
			c.compileExpression(ctx, e.Value)
			ctx.chunk.WriteOp(bytecode.OpStoreLocal, line)
			ctx.chunk.WriteU16(uint16(local), line)
			return
		}
		if up := ctx.findUpvalueVariable(c, t.Name, line); up >= 0 {
			c.compileExpression(ctx, e.Value)
			ctx.chunk.WriteOp(bytecode.OpStoreUpvalue, line)
			ctx.chunk.WriteU16(uint16(up), line)
			return
		}
		nameConst := c.addConstant(ctx, bytecode.FromObj(c.heap.InternString(t.Name)), line)
		c.compileExpression(ctx, e.Value)
		ctx.chunk.WriteOp(bytecode.OpStoreGlobal, line)
		ctx.chunk.WriteU16(nameConst, line)
	case *ast.LoadProperty:
		c.compileExpression(ctx, t.Object)
		c.compileExpression(ctx, e.Value)
		nameConst := c.addConstant(ctx, bytecode.FromObj(c.heap.InternString(t.Name)), line)
		ctx.chunk.WriteOp(bytecode.OpStoreProperty, line)
		ctx.chunk.WriteU16(nameConst, line)
	case *ast.LoadSubscript:
		c.compileExpression(ctx, t.Object)
		c.compileExpression(ctx, t.Index)
		c.compileExpression(ctx, e.Value)
		ctx.chunk.WriteOp(bytecode.OpStoreSubscr, line)
	default:
		c.errorAt(line, "invalid assignment target")
	}
}
