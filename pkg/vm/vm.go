// Package vm implements aria's heap objects, mark-sweep collector and
// bytecode execution loop.
//
// The design mirrors the teacher's stack-based Smalltalk VM shape —
// one flat Value stack shared by every call frame, a frame array for
// activation records, sequential ip-driven dispatch over a single
// instruction array — generalised from message-send dispatch to a
// conventional jump-table bytecode interpreter (spec section 4.4/4.6).
// Design goals carried over unchanged: Simple (one dispatch loop, no
// hidden control flow), Efficient (fixed-capacity stack/frame arrays,
// no per-instruction allocation on the fast paths), Safe (every
// fallible operation returns a *RuntimeError with a stack trace rather
// than panicking), Extensible (native functions and built-in method
// tables plug in without touching the dispatch loop).
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/deeplakee/aria/pkg/bytecode"
)

const (
	// StackMax bounds the value stack. It is a fixed-capacity array
	// (not an append-grown slice) so that Upvalue.Location pointers
	// taken into it stay valid for the life of the VM — letting a Go
	// slice grow would reallocate its backing array and dangle every
	// open upvalue pointing into it.
	StackMax = 1 << 16
	// FramesMax matches the original runtime's FRAMES_MAX: the call
	// depth at which the VM reports a stack-overflow runtime error.
	FramesMax = 256
)

// VM executes compiled aria bytecode. One VM is created per `aria run`
// invocation, or once for the life of a REPL session (in which case
// ReplGlobals persists top-level variables across lines).
type VM struct {
	heap *Heap

	stack [StackMax]bytecode.Value
	sp    int

	frames     [FramesMax]CallFrame
	frameCount int

	tryFrames     [FramesMax]TryFrame
	tryFrameCount int

	openUpvalues *Upvalue // sorted by descending stack slot

	// NativeGlobals holds every native installed through DefineNative
	// (pkg/builtins' clock, type, len, str and num) —
	// visible from every module without an explicit import, consulted
	// as the fallback when LOAD_GLOBAL misses the current chunk's own
	// module-scoped Globals table.
	NativeGlobals *bytecode.ValueHashTable

	// ReplGlobals, when non-nil, is the Globals table the REPL reuses
	// across successive lines so a variable declared on one line is
	// visible on the next. It is marked as an extra GC root whenever
	// set (mirroring the original's globalVarTableForRepl, a root only
	// "if in repl mode").
	ReplGlobals *bytecode.ValueHashTable

	// ModuleCache maps a resolved module path to its already-executed
	// Module object, so importing the same path twice runs its
	// top-level script only once (spec 4.8).
	ModuleCache map[string]*Module

	// methodTables holds the built-in method table for each ObjKind
	// that supports dot-method calls without being a Class instance
	// (string/list/map/iterator) — installed by pkg/builtins via
	// InstallMethodTable, consulted by INVOKE_METHOD/LOAD_PROPERTY.
	methodTables map[bytecode.ObjKind]*bytecode.ValueHashTable

	Trace    bool // --trace: disassemble each instruction before executing it
	GCTrace  bool // --gc-trace: log each collection's before/after byte counts
	StdOut   io.Writer
	Importer ModuleLoader
}

// ModuleLoader resolves and compiles an import target. pkg/modresolve
// supplies the path resolution; the VM only needs the compiled result.
type ModuleLoader interface {
	Load(vm *VM, fromPath, spec string) (*Closure, string, error)
}

// NewVM returns a VM ready to run compiled chunks. heap must be the
// same Heap the compiler used to allocate string/function constants.
func NewVM(heap *Heap) *VM {
	return &VM{
		heap:          heap,
		NativeGlobals: bytecode.NewValueHashTable(),
		ModuleCache:   make(map[string]*Module),
		methodTables:  make(map[bytecode.ObjKind]*bytecode.ValueHashTable),
		StdOut:        os.Stdout,
	}
}

// Heap exposes the VM's heap, e.g. for a REPL host to intern a source
// line's compiled string constants before calling Interpret.
func (vm *VM) Heap() *Heap { return vm.heap }

// InstallMethodTable registers the built-in method table for objects
// of kind k (pkg/builtins calls this once per supported kind at
// startup), avoiding an import cycle between pkg/builtins and pkg/vm.
func (vm *VM) InstallMethodTable(k bytecode.ObjKind, table *bytecode.ValueHashTable) {
	vm.methodTables[k] = table
}

// DefineNative installs a native function as a global, callable from
// any module without an import — the VM-level equivalent of the
// original's defineNativeFn.
func (vm *VM) DefineNative(name string, fn func(vm *VM, args []bytecode.Value) (bytecode.Value, error)) {
	native := vm.heap.AllocateNative(name, fn)
	nameStr := vm.heap.InternString(name)
	vm.NativeGlobals.Insert(bytecode.FromObj(nameStr), bytecode.FromObj(native))
}

func (vm *VM) push(v bytecode.Value) {
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() bytecode.Value {
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek(distance int) bytecode.Value {
	return vm.stack[vm.sp-1-distance]
}

func (vm *VM) currentFrame() *CallFrame { return &vm.frames[vm.frameCount-1] }

// Interpret runs closure (normally the compiled top-level script of a
// file or REPL line) to completion, returning either the RuntimeError
// of an uncaught fault, an *AriaThrow for a value thrown past every
// try/catch, or nil on success.
func (vm *VM) Interpret(closure *Closure) error {
	vm.push(bytecode.FromObj(closure))
	if _, err := vm.callValue(bytecode.FromObj(closure), 0); err != nil {
		return err
	}
	_, err := vm.run()
	return err
}

func (vm *VM) runtimeError(format string, a ...interface{}) error {
	msg := fmt.Sprintf(format, a...)
	trace := make([]StackFrame, 0, vm.frameCount)
	for i := 0; i < vm.frameCount; i++ {
		f := &vm.frames[i]
		trace = append(trace, StackFrame{FuncName: f.Closure.Fn.Name, SourceLine: f.chunk().GetLine(f.IP)})
	}
	return newRuntimeError(msg, trace)
}

// run is the main fetch-decode-execute loop. It returns once the
// initial call frame (the one Interpret pushed) returns, or once an
// unhandled error/throw propagates out of it.
func (vm *VM) run() (bytecode.Value, error) {
	baseFrame := vm.frameCount - 1
	frame := vm.currentFrame()
	chunk := frame.chunk()

	readByte := func() byte {
		b := chunk.Code[frame.IP]
		frame.IP++
		return b
	}
	readU16 := func() uint16 {
		v := chunk.ReadU16(frame.IP)
		frame.IP += 2
		return v
	}
	readConstant := func() bytecode.Value { return chunk.Constants[readU16()] }
	readString := func() *String { return readConstant().AsObj().(*String) }

	for {
		if vm.Trace {
			vm.traceInstruction(chunk, frame.IP)
		}
		if vm.heap.CollectionDue() {
			vm.collectGarbage()
		}

		op := bytecode.Opcode(readByte())
		switch op {
		case bytecode.OpLoadConst:
			vm.push(readConstant())

		case bytecode.OpLoadNil:
			vm.push(bytecode.Nil)
		case bytecode.OpLoadTrue:
			vm.push(bytecode.True)
		case bytecode.OpLoadFalse:
			vm.push(bytecode.False)

		case bytecode.OpPop:
			vm.pop()
		case bytecode.OpPopN:
			n := int(readByte())
			vm.sp -= n

		case bytecode.OpLoadLocal:
			slot := readU16()
			vm.push(vm.stack[frame.StackBase+int(slot)])
		case bytecode.OpStoreLocal:
			slot := readU16()
			vm.stack[frame.StackBase+int(slot)] = vm.peek(0)

		case bytecode.OpLoadUpvalue:
			slot := readU16()
			vm.push(*frame.Closure.Upvalues[slot].Location)
		case bytecode.OpStoreUpvalue:
			slot := readU16()
			*frame.Closure.Upvalues[slot].Location = vm.peek(0)
		case bytecode.OpCloseUpvalue:
			vm.closeUpvalues(vm.sp - 1)
			vm.pop()

		case bytecode.OpDefGlobal:
			name := readString()
			chunk.Globals.Insert(bytecode.FromObj(name), vm.peek(0))
			vm.pop()
		case bytecode.OpLoadGlobal:
			name := readString()
			if v, ok := chunk.Globals.Get(bytecode.FromObj(name)); ok {
				vm.push(v)
			} else if v, ok := vm.NativeGlobals.Get(bytecode.FromObj(name)); ok {
				vm.push(v)
			} else {
				return bytecode.Nil, vm.runtimeError("undefined variable '%s'", name.Chars)
			}
		case bytecode.OpStoreGlobal:
			name := readString()
			if isNew := chunk.Globals.Insert(bytecode.FromObj(name), vm.peek(0)); isNew {
				chunk.Globals.Remove(bytecode.FromObj(name))
				return bytecode.Nil, vm.runtimeError("undefined variable '%s'", name.Chars)
			}

		case bytecode.OpLoadProperty:
			name := readString()
			v, err := vm.loadProperty(vm.peek(0), name)
			if err != nil {
				return bytecode.Nil, err
			}
			vm.pop()
			vm.push(v)
		case bytecode.OpStoreProperty:
			name := readString()
			value := vm.peek(0)
			receiver := vm.peek(1)
			if err := vm.storeProperty(receiver, name, value); err != nil {
				return bytecode.Nil, err
			}
			vm.pop()
			vm.pop()
			vm.push(value)

		case bytecode.OpLoadSubscr:
			index := vm.pop()
			container := vm.pop()
			v, err := vm.loadSubscript(container, index)
			if err != nil {
				return bytecode.Nil, err
			}
			vm.push(v)
		case bytecode.OpStoreSubscr:
			value := vm.pop()
			index := vm.pop()
			container := vm.pop()
			if err := vm.storeSubscript(container, index, value); err != nil {
				return bytecode.Nil, err
			}
			vm.push(value)

		case bytecode.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(bytecode.Bool(bytecode.Equal(a, b)))
		case bytecode.OpNotEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(bytecode.Bool(!bytecode.Equal(a, b)))

		case bytecode.OpGreater, bytecode.OpGreaterEqual, bytecode.OpLess, bytecode.OpLessEqual:
			if err := vm.compareOp(op); err != nil {
				return bytecode.Nil, err
			}

		case bytecode.OpAdd:
			if err := vm.addOp(); err != nil {
				return bytecode.Nil, err
			}
		case bytecode.OpSubtract, bytecode.OpMultiply, bytecode.OpDivide, bytecode.OpMod:
			if err := vm.arithOp(op); err != nil {
				return bytecode.Nil, err
			}

		case bytecode.OpNegate:
			v := vm.peek(0)
			if !v.IsNumber() {
				return bytecode.Nil, vm.runtimeError("operand of '-' must be a number")
			}
			vm.pop()
			vm.push(bytecode.Number(-v.AsNumber()))
		case bytecode.OpNot:
			v := vm.pop()
			vm.push(bytecode.Bool(!v.Truthy()))

		case bytecode.OpInc, bytecode.OpDec:
			v := vm.pop()
			if !v.IsNumber() {
				return bytecode.Nil, vm.runtimeError("operand of '++'/'--' must be a number")
			}
			delta := 1.0
			if op == bytecode.OpDec {
				delta = -1.0
			}
			vm.push(bytecode.Number(v.AsNumber() + delta))

		case bytecode.OpJumpFwd:
			offset := readU16()
			frame.IP += int(offset)
		case bytecode.OpJumpBwd:
			offset := readU16()
			frame.IP -= int(offset)
		case bytecode.OpJumpTrue:
			offset := readU16()
			if vm.pop().Truthy() {
				frame.IP += int(offset)
			}
		case bytecode.OpJumpTrueNoPop:
			offset := readU16()
			if vm.peek(0).Truthy() {
				frame.IP += int(offset)
			}
		case bytecode.OpJumpFalse:
			offset := readU16()
			if !vm.pop().Truthy() {
				frame.IP += int(offset)
			}
		case bytecode.OpJumpFalseNoPop:
			offset := readU16()
			if !vm.peek(0).Truthy() {
				frame.IP += int(offset)
			}

		case bytecode.OpCall:
			argc := int(readByte())
			callee := vm.peek(argc)
			newFrame, err := vm.callValue(callee, argc)
			if err != nil {
				return bytecode.Nil, err
			}
			if newFrame {
				frame = vm.currentFrame()
				chunk = frame.chunk()
			}

		case bytecode.OpInvokeMethod:
			name := readString()
			argc := int(readByte())
			newFrame, err := vm.invoke(name, argc)
			if err != nil {
				return bytecode.Nil, err
			}
			if newFrame {
				frame = vm.currentFrame()
				chunk = frame.chunk()
			}

		case bytecode.OpLoadSuperMethod:
			name := readString()
			receiver := vm.pop()
			inst, ok := receiver.AsObj().(*Instance)
			if !ok || inst.Class.Super == nil {
				return bytecode.Nil, vm.runtimeError("'super' used outside a subclass")
			}
			super := inst.Class.Super
			method, ok := super.FindMethod(name)
			if !ok && name.Chars == "init" {
				method, ok = super.InitMethod, !super.InitMethod.IsNil()
			}
			if !ok {
				return bytecode.Nil, vm.runtimeError("superclass '%s' has no method '%s'", super.Name, name.Chars)
			}
			bound := vm.heap.AllocateBoundMethod(receiver, method)
			vm.push(bytecode.FromObj(bound))

		case bytecode.OpClosure:
			fnVal := readConstant()
			fn := fnVal.AsObj().(*Function)
			closure := vm.heap.AllocateClosure(fn)
			for i := 0; i < fn.UpvalueCnt; i++ {
				isLocal := readByte() != 0
				index := int(readU16())
				if isLocal {
					closure.Upvalues[i] = vm.captureUpvalue(frame.StackBase + index)
				} else {
					closure.Upvalues[i] = frame.Closure.Upvalues[index]
				}
			}
			vm.push(bytecode.FromObj(closure))

		case bytecode.OpMakeClass:
			name := readString()
			class := vm.heap.AllocateClass(name.Chars, nil)
			vm.push(bytecode.FromObj(class))
		case bytecode.OpInherit:
			superVal := vm.peek(0)
			superClass, ok := superVal.AsObj().(*Class)
			if !ok {
				return bytecode.Nil, vm.runtimeError("superclass must be a class")
			}
			subClass := vm.peek(1).AsObj().(*Class)
			subClass.Super = superClass
			subClass.Methods.CopyFrom(superClass.Methods)
			subClass.InitMethod = superClass.InitMethod
			vm.pop() // pop superclass, subclass (now on top) stays
		case bytecode.OpMakeMethod:
			name := readString()
			method := vm.pop()
			class := vm.peek(0).AsObj().(*Class)
			class.Methods.Insert(bytecode.FromObj(name), method)
		case bytecode.OpMakeInitMethod:
			method := vm.pop()
			class := vm.peek(0).AsObj().(*Class)
			class.InitMethod = method

		case bytecode.OpMakeList:
			count := int(readU16())
			elems := make([]bytecode.Value, count)
			copy(elems, vm.stack[vm.sp-count:vm.sp])
			vm.sp -= count
			vm.push(bytecode.FromObj(vm.heap.AllocateList(elems)))
		case bytecode.OpMakeMap:
			pairCount := int(readU16())
			m := vm.heap.AllocateMap()
			base := vm.sp - pairCount*2
			for i := 0; i < pairCount; i++ {
				k := vm.stack[base+i*2]
				v := vm.stack[base+i*2+1]
				m.Table.Insert(k, v)
			}
			vm.sp = base
			vm.push(bytecode.FromObj(m))

		case bytecode.OpImport:
			inputName := readConstant().AsObj().(*String)
			moduleName := readConstant().AsObj().(*String)
			if err := vm.doImport(inputName.Chars, moduleName.Chars); err != nil {
				return bytecode.Nil, err
			}

		case bytecode.OpGetIter:
			v := vm.pop()
			it, err := vm.getIterator(v)
			if err != nil {
				return bytecode.Nil, err
			}
			vm.push(bytecode.FromObj(it))
		case bytecode.OpIterHasNext:
			it := vm.pop().AsObj().(*Iterator)
			vm.push(bytecode.Bool(it.HasNext()))
		case bytecode.OpIterGetNext:
			it := vm.pop().AsObj().(*Iterator)
			vm.push(it.Next(vm.heap))

		case bytecode.OpBeginTry:
			offset := readU16()
			vm.tryFrames[vm.tryFrameCount] = TryFrame{
				HandlerIP:  frame.IP + int(offset),
				StackSize:  vm.sp,
				FrameIndex: vm.frameCount - 1,
			}
			vm.tryFrameCount++
		case bytecode.OpEndTry:
			vm.tryFrameCount--

		case bytecode.OpThrow:
			thrown := vm.pop()
			handled, err := vm.throwValue(thrown)
			if err != nil {
				return bytecode.Nil, err
			}
			if handled {
				frame = vm.currentFrame()
				chunk = frame.chunk()
			}

		case bytecode.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.StackBase)
			vm.frameCount--
			vm.sp = frame.StackBase
			if vm.frameCount <= baseFrame {
				return result, nil
			}
			vm.push(result) // overwrites the callee's slot, already discarded by resetting sp above
			frame = vm.currentFrame()
			chunk = frame.chunk()

		case bytecode.OpPrint:
			v := vm.pop()
			fmt.Fprintln(vm.StdOut, vm.stringify(v))

		case bytecode.OpNop:
			// no-op

		default:
			return bytecode.Nil, vm.runtimeError("unknown opcode %d", op)
		}
	}
}

// Stringify renders a value the way PRINT does: strings render bare (no
// surrounding quotes), everything else via its String() method or
// numeric formatting. Exported for pkg/builtins' str()/string-coercing
// natives so they format values identically to PRINT rather than
// duplicating the rules.
func (vm *VM) Stringify(v bytecode.Value) string { return vm.stringify(v) }

func (vm *VM) stringify(v bytecode.Value) string {
	switch {
	case v.IsNil():
		return "nil"
	case v.IsBool():
		return fmt.Sprint(v.AsBool())
	case v.IsNumber():
		return formatNumber(v.AsNumber())
	case v.IsObj():
		if s, ok := v.AsObj().(*String); ok {
			return s.Chars
		}
		return fmt.Sprint(v.AsObj())
	default:
		return "nil"
	}
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
