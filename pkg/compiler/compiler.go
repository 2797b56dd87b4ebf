// Package compiler walks an aria AST (pkg/ast, produced by pkg/parser)
// and emits a Function/Chunk tree for pkg/vm to run — a single
// bottom-up pass with no separate optimisation stage, the same split
// the original implementation draws between its parser (builds the
// AST) and its generateByteCode.cpp visitor (walks the tree once,
// emitting bytecode directly with no intermediate IR).
package compiler

import (
	"fmt"
	"math"

	"github.com/deeplakee/aria/pkg/ast"
	"github.com/deeplakee/aria/pkg/bytecode"
	"github.com/deeplakee/aria/pkg/vm"
)

// funcType distinguishes the few compile-time behaviors that differ by
// what kind of function is being compiled: top-level script code can't
// `return` a value, `this`/`super` only resolve inside a method, and an
// initializer implicitly returns the instance rather than nil.
type funcType int

const (
	funcScript funcType = iota
	funcFunction
	funcMethod
	funcInitMethod
)

// maxLocals mirrors the original's UINT16_MAX-slot local variable limit
// (a local's stack slot is addressed by a u16 operand, so the highest
// valid slot index is math.MaxUint16 and the count is capped there too).
const maxLocals = math.MaxUint16

// local is one entry of a funcCtx's compile-time scope stack, tracking
// exactly enough to resolve names to stack slots: depth -1 means
// "declared but its initializer hasn't run yet" (catches `var a = a;`).
type local struct {
	name       string
	depth      int
	isCaptured bool
}

// classContext threads `this`/`super` validity and superclass presence
// through a class body's nested method compilations.
type classContext struct {
	enclosing     *classContext
	hasSuperClass bool
}

// loopContext backs break/continue: popDepth is the scope depth a
// break/continue must unwind locals back to; continueTarget is the
// backward jump target for `continue` — the condition re-check for a
// while/for-in loop, or the increment step for a for loop, both fixed
// before the body compiles so continue needs no deferred patch.
// breakJumps are forward jumps collected during the body and patched
// once the whole loop's exit point is known.
type loopContext struct {
	popDepth       int
	breakJumps     []int
	continueTarget int
}

// funcCtx is one function's (or the top-level script's) compilation
// state: its locals/upvalues lists, enclosing function (for upvalue
// resolution) and enclosing class (for this/super validation) — ported
// from the original's FunctionContext, generalized from its manual
// new/delete lifecycle to a plain Go value chained by pointer.
type funcCtx struct {
	enclosing  *funcCtx
	class      *classContext
	fn         *vm.Function
	chunk      *bytecode.Chunk
	kind       funcType
	locals     []local
	upvalues   []vm.UpvalueRef
	scopeDepth int
	loops      []*loopContext
}

func newFuncCtx(enclosing *funcCtx, kind funcType, heap *vm.Heap, globals *bytecode.ValueHashTable, name string, arity int, varargs bool) *funcCtx {
	chunk := bytecode.NewChunk(globals)
	fn := heap.AllocateFunction(name, chunk, arity, varargs, nil)
	ctx := &funcCtx{fn: fn, chunk: chunk, kind: kind}
	if enclosing != nil {
		ctx.enclosing = enclosing
		ctx.class = enclosing.class
	}
	slot0 := ""
	if kind == funcMethod || kind == funcInitMethod {
		slot0 = "this"
	}
	ctx.locals = append(ctx.locals, local{name: slot0, depth: 0})
	if kind != funcScript {
		// Only the outermost script body runs at depth 0 (where
		// variables are true globals, DEF_GLOBAL-bound by name); a
		// function's own top-level statements are already one scope
		// in, so its params and body locals resolve to stack slots
		// like any block-local variable.
		ctx.beginScope()
	}
	return ctx
}

func (c *funcCtx) beginScope() { c.scopeDepth++ }

type exitOp struct{ closeUpvalue bool }

// endScope pops every local declared deeper than the scope just
// exited, permanently removing them from the compile-time locals list.
// The caller turns the returned ops into runtime cleanup bytecode —
// ported from FunctionContext::endScope's RLEList<opCode> exit-ops
// encoding (POP/POP_N for plain locals, CLOSE_UPVALUE for one captured
// by a closure).
func (c *funcCtx) endScope() []exitOp {
	c.scopeDepth--
	var ops []exitOp
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		last := c.locals[len(c.locals)-1]
		c.locals = c.locals[:len(c.locals)-1]
		ops = append(ops, exitOp{closeUpvalue: last.isCaptured})
	}
	return ops
}

// popForControlFlow reports the exit ops needed for a break/continue
// jumping out of every scope deeper than popDepth, WITHOUT removing
// those locals from the compile-time list — the loop's own block scope
// is still live and keeps running after the jump executes.
func (c *funcCtx) popForControlFlow(popDepth int) []exitOp {
	var ops []exitOp
	for i := len(c.locals) - 1; i >= 0 && c.locals[i].depth > popDepth; i-- {
		ops = append(ops, exitOp{closeUpvalue: c.locals[i].isCaptured})
	}
	return ops
}

func (c *funcCtx) addLocal(name string) bool {
	if len(c.locals) >= maxLocals {
		return false
	}
	c.locals = append(c.locals, local{name: name, depth: -1})
	return true
}

func (c *funcCtx) markInitialized() {
	if c.scopeDepth == 0 {
		return
	}
	c.locals[len(c.locals)-1].depth = c.scopeDepth
}

// findVariableInSameDepth reports whether name is already declared in
// the current (innermost) scope — the "already a variable with this
// name in this scope" check.
func (c *funcCtx) findVariableInSameDepth(name string) bool {
	for i := len(c.locals) - 1; i >= 0; i-- {
		l := c.locals[i]
		if l.depth != -1 && l.depth < c.scopeDepth {
			return false
		}
		if l.name == name {
			return true
		}
	}
	return false
}

const (
	notFound       = -2
	ownInitializer = -1
)

// findLocalVariable returns the local's stack slot, ownInitializer if
// name resolves to a local whose own initializer is still running, or
// notFound if no local in this function matches.
func (c *funcCtx) findLocalVariable(name string) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			if c.locals[i].depth == -1 {
				return ownInitializer
			}
			return i
		}
	}
	return notFound
}

// findUpvalueVariable resolves name to an upvalue slot by walking the
// enclosing function's locals, then its own upvalues, recursively —
// marking every enclosing local it passes through as captured so
// scope-exit code knows to CLOSE_UPVALUE it instead of popping it.
// Returns -1 if name isn't found anywhere in the enclosing chain. comp
// and line are threaded through only to report a too-many-upvalues
// compile error (spec 7(iii)); they play no part in resolution.
func (c *funcCtx) findUpvalueVariable(comp *Compiler, name string, line int) int {
	if c.enclosing == nil {
		return -1
	}
	if localIdx := c.enclosing.findLocalVariable(name); localIdx >= 0 {
		c.enclosing.locals[localIdx].isCaptured = true
		return c.addUpvalue(comp, localIdx, true, line)
	}
	if upIdx := c.enclosing.findUpvalueVariable(comp, name, line); upIdx >= 0 {
		return c.addUpvalue(comp, upIdx, false, line)
	}
	return -1
}

// addUpvalue reuses an existing upvalue slot referring to the same
// enclosing index if one was already resolved for this function. A
// function's upvalue table is addressed the same way its constant pool
// is (a u16 operand trailing CLOSURE), so it's bounded the same way.
func (c *funcCtx) addUpvalue(comp *Compiler, index int, isLocal bool, line int) int {
	for i, uv := range c.upvalues {
		if uv.Index == index && uv.FromParentLocal == isLocal {
			return i
		}
	}
	if len(c.upvalues) > math.MaxUint16 {
		comp.errorAt(line, "too many upvalues captured by one function")
		return 0
	}
	c.upvalues = append(c.upvalues, vm.UpvalueRef{FromParentLocal: isLocal, Index: index})
	return len(c.upvalues) - 1
}

// Compiler compiles aria source (already parsed into an AST) into a
// callable Closure. One Compiler compiles one compilation unit — a
// script or a module — sharing a single Globals table across every
// function nested in it (spec 4.8).
type Compiler struct {
	heap   *vm.Heap
	errors []*vm.CompileError
}

// New returns a Compiler allocating objects on heap.
func New(heap *vm.Heap) *Compiler {
	return &Compiler{heap: heap}
}

func (c *Compiler) errorAt(line int, format string, args ...interface{}) {
	c.errors = append(c.errors, &vm.CompileError{Message: fmt.Sprintf(format, args...), Line: line})
}

// addConstant adds v to ctx's constant pool, reporting a compile error
// instead of returning a wrapped index once the pool outgrows what a
// u16 operand can address (spec 7(iii)).
func (c *Compiler) addConstant(ctx *funcCtx, v bytecode.Value, line int) uint16 {
	idx, ok := ctx.chunk.AddConstant(v)
	if !ok {
		c.errorAt(line, "too many constants in one chunk")
	}
	return idx
}

// writeConstant emits LOAD_CONST for v, reporting the same
// too-many-constants error as addConstant on overflow.
func (c *Compiler) writeConstant(ctx *funcCtx, v bytecode.Value, line int) {
	if !ctx.chunk.WriteConstant(v, line) {
		c.errorAt(line, "too many constants in one chunk")
	}
}

// patchJump patches the forward jump placeholder at at, reporting a
// compile error instead of leaving a corrupt offset once the jump
// distance outgrows a u16 operand.
func (c *Compiler) patchJump(ctx *funcCtx, at int, line int) {
	if !ctx.chunk.PatchJump(at) {
		c.errorAt(line, "jump too far to encode")
	}
}

// emitLoop emits a backward jump to loopStart, reporting a compile
// error instead of encoding a corrupt offset once the loop body
// outgrows a u16 operand.
func (c *Compiler) emitLoop(ctx *funcCtx, loopStart int, line int) {
	if !ctx.chunk.EmitLoop(loopStart, line) {
		c.errorAt(line, "loop body too large to encode")
	}
}

// Compile compiles program as a top-level script, sourcePath resolved
// for relative imports. Returns every collected CompileError at once
// (spec 6 exit code 65) rather than stopping at the first.
func (c *Compiler) Compile(program *ast.Program, sourcePath string) (*vm.Closure, error) {
	return c.compileUnit(program, "", sourcePath)
}

// CompileModule compiles program as the top-level script of the module
// resolved to sourcePath — otherwise identical to Compile, differing
// only in the name stamped on the resulting script Function (used in
// stack traces for code running as an imported module rather than the
// entry script).
func (c *Compiler) CompileModule(program *ast.Program, sourcePath string) (*vm.Closure, error) {
	return c.compileUnit(program, sourcePath, sourcePath)
}

func (c *Compiler) compileUnit(program *ast.Program, name string, sourcePath string) (*vm.Closure, error) {
	globals := bytecode.NewValueHashTable()
	root := newFuncCtx(nil, funcScript, c.heap, globals, name, 0, false)
	root.fn.SourcePath = sourcePath

	lastLine := program.Line()
	for _, stmt := range program.Statements {
		c.compileStatement(root, stmt)
		lastLine = stmt.Line()
	}
	root.chunk.WriteOp(bytecode.OpLoadNil, lastLine)
	root.chunk.WriteOp(bytecode.OpReturn, lastLine)

	root.fn.UpvalueInfo = root.upvalues
	root.fn.UpvalueCnt = len(root.upvalues)

	if len(c.errors) > 0 {
		return nil, &vm.CompileErrors{Errors: c.errors}
	}
	return c.heap.AllocateClosure(root.fn), nil
}

// emitOps turns exit ops gathered by endScope/popForControlFlow into
// runtime cleanup bytecode: consecutive plain pops are coalesced into
// POP_N (capped at 255, its operand width) rather than one POP per
// local, and each CLOSE_UPVALUE is emitted on its own since it closes
// exactly one stack slot.
func emitOps(chunk *bytecode.Chunk, ops []exitOp, line int) {
	run := 0
	flush := func() {
		for run > 0 {
			n := run
			if n > 255 {
				n = 255
			}
			if n == 1 {
				chunk.WriteOp(bytecode.OpPop, line)
			} else {
				chunk.WriteOp(bytecode.OpPopN, line)
				chunk.WriteByte(byte(n), line)
			}
			run -= n
		}
	}
	for _, op := range ops {
		if op.closeUpvalue {
			flush()
			chunk.WriteOp(bytecode.OpCloseUpvalue, line)
		} else {
			run++
		}
	}
	flush()
}
