package vm

import (
	"fmt"
	"math"

	"github.com/deeplakee/aria/pkg/bytecode"
)

// callValue dispatches a CALL: callee sits at vm.peek(argc), its argc
// arguments above it. Reports whether a new CallFrame was pushed (a
// native call or class instantiation without `init` completes inline
// and pushes none).
func (vm *VM) callValue(callee bytecode.Value, argc int) (bool, error) {
	if !callee.IsObj() {
		return false, vm.runtimeError("value is not callable")
	}
	switch obj := callee.AsObj().(type) {
	case *Closure:
		return true, vm.callClosure(obj, argc)
	case *NativeFunction:
		return false, vm.callNative(obj, argc)
	case *Class:
		return vm.instantiate(obj, argc)
	case *BoundMethod:
		calleeIndex := vm.sp - argc - 1
		vm.stack[calleeIndex] = obj.Receiver
		switch m := obj.Method.AsObj().(type) {
		case *Closure:
			return true, vm.callClosure(m, argc)
		case *NativeFunction:
			return false, vm.callNativeMethod(m, argc)
		default:
			return false, vm.runtimeError("bound method wraps a non-callable value")
		}
	default:
		return false, vm.runtimeError("value is not callable")
	}
}

func (vm *VM) callClosure(closure *Closure, argc int) error {
	if vm.frameCount == FramesMax {
		return vm.runtimeError("stack overflow")
	}
	fn := closure.Fn
	calleeIndex := vm.sp - argc - 1

	// fn.Arity counts every declared formal, including the trailing rest
	// parameter itself, so a vararg call must supply at least fn.Arity
	// arguments — the rest parameter always receives one or more values,
	// never zero (ported from the original's callFunction arity check).
	if fn.Varargs && argc >= fn.Arity {
		restCount := argc - fn.Arity + 1
		elems := make([]bytecode.Value, restCount)
		copy(elems, vm.stack[vm.sp-restCount:vm.sp])
		vm.sp -= restCount
		vm.push(bytecode.FromObj(vm.heap.AllocateList(elems)))
	} else if argc != fn.Arity {
		return vm.runtimeError("expected %d arguments but got %d", fn.Arity, argc)
	}

	frame := &vm.frames[vm.frameCount]
	frame.Closure = closure
	frame.IP = 0
	frame.StackBase = calleeIndex
	vm.frameCount++
	return nil
}

func (vm *VM) callNative(native *NativeFunction, argc int) error {
	calleeIndex := vm.sp - argc - 1
	args := make([]bytecode.Value, argc)
	copy(args, vm.stack[calleeIndex+1:vm.sp])
	result, err := native.Fn(vm, args)
	if err != nil {
		return vm.runtimeError("%s", err.Error())
	}
	vm.sp = calleeIndex
	vm.push(result)
	return nil
}

// callNativeMethod dispatches a native built-in-type method (pkg/builtins'
// string/list/map/iterator tables): unlike callNative, the receiver
// occupies the callee's own stack slot rather than being absent from
// args, so it's passed through as args[0] with the real call arguments
// following it — the native function takes on the role an implicit
// `this` local slot plays for a user-defined method's Closure.
func (vm *VM) callNativeMethod(native *NativeFunction, argc int) error {
	calleeIndex := vm.sp - argc - 1
	args := make([]bytecode.Value, argc+1)
	copy(args, vm.stack[calleeIndex:vm.sp])
	result, err := native.Fn(vm, args)
	if err != nil {
		return vm.runtimeError("%s", err.Error())
	}
	vm.sp = calleeIndex
	vm.push(result)
	return nil
}

// instantiate handles calling a Class as a constructor: allocates the
// Instance, binds it in place of the class at the call site, then
// dispatches to `init` if the class defines one.
func (vm *VM) instantiate(class *Class, argc int) (bool, error) {
	calleeIndex := vm.sp - argc - 1
	instance := vm.heap.AllocateInstance(class)
	vm.stack[calleeIndex] = bytecode.FromObj(instance)

	if class.InitMethod.IsNil() {
		if argc != 0 {
			return false, vm.runtimeError("expected 0 arguments but got %d", argc)
		}
		return false, nil
	}
	switch m := class.InitMethod.AsObj().(type) {
	case *Closure:
		return true, vm.callClosure(m, argc)
	case *NativeFunction:
		return false, vm.callNative(m, argc)
	default:
		return false, vm.runtimeError("init is not callable")
	}
}

// invoke implements the INVOKE_METHOD fast path: receiver.name(args)
// compiled as one opcode instead of LOAD_PROPERTY followed by CALL, to
// avoid allocating a BoundMethod for the (overwhelmingly common) case
// where the method is called immediately.
func (vm *VM) invoke(name *String, argc int) (bool, error) {
	receiver := vm.peek(argc)
	if !receiver.IsObj() {
		return false, vm.runtimeError("cannot invoke method '%s' on this value", name.Chars)
	}
	switch obj := receiver.AsObj().(type) {
	case *Instance:
		if field, ok := obj.Fields.Get(bytecode.FromObj(name)); ok {
			calleeIndex := vm.sp - argc - 1
			vm.stack[calleeIndex] = field
			return vm.callValue(field, argc)
		}
		method, ok := obj.Class.FindMethod(name)
		if !ok {
			return false, vm.runtimeError("undefined method '%s'", name.Chars)
		}
		switch m := method.AsObj().(type) {
		case *Closure:
			return true, vm.callClosure(m, argc)
		case *NativeFunction:
			return false, vm.callNative(m, argc)
		default:
			return false, vm.runtimeError("'%s' is not callable", name.Chars)
		}
	case *Module:
		fn, ok := obj.Globals.Get(bytecode.FromObj(name))
		if !ok {
			return false, vm.runtimeError("undefined name '%s' in module %s", name.Chars, obj.Path)
		}
		calleeIndex := vm.sp - argc - 1
		vm.stack[calleeIndex] = fn
		return vm.callValue(fn, argc)
	default:
		table, ok := vm.methodTables[receiver.AsObj().ObjKind()]
		if !ok {
			return false, vm.runtimeError("undefined method '%s'", name.Chars)
		}
		method, ok := table.Get(bytecode.FromObj(name))
		if !ok {
			return false, vm.runtimeError("undefined method '%s'", name.Chars)
		}
		native, ok := method.AsObj().(*NativeFunction)
		if !ok {
			return false, vm.runtimeError("'%s' is not callable", name.Chars)
		}
		return false, vm.callNativeMethod(native, argc)
	}
}

// loadProperty implements LOAD_PROPERTY: instance fields shadow
// methods; a method not called immediately is wrapped in a BoundMethod
// so it can be stored and called later.
func (vm *VM) loadProperty(receiver bytecode.Value, name *String) (bytecode.Value, error) {
	if !receiver.IsObj() {
		return bytecode.Nil, vm.runtimeError("only instances and modules have properties")
	}
	switch obj := receiver.AsObj().(type) {
	case *Instance:
		if field, ok := obj.Fields.Get(bytecode.FromObj(name)); ok {
			return field, nil
		}
		if method, ok := obj.Class.FindMethod(name); ok {
			return bytecode.FromObj(vm.heap.AllocateBoundMethod(receiver, method)), nil
		}
		return bytecode.Nil, vm.runtimeError("undefined property '%s'", name.Chars)
	case *Module:
		if v, ok := obj.Globals.Get(bytecode.FromObj(name)); ok {
			return v, nil
		}
		return bytecode.Nil, vm.runtimeError("undefined name '%s' in module %s", name.Chars, obj.Path)
	default:
		table, ok := vm.methodTables[receiver.AsObj().ObjKind()]
		if !ok {
			return bytecode.Nil, vm.runtimeError("undefined property '%s'", name.Chars)
		}
		method, ok := table.Get(bytecode.FromObj(name))
		if !ok {
			return bytecode.Nil, vm.runtimeError("undefined property '%s'", name.Chars)
		}
		return bytecode.FromObj(vm.heap.AllocateBoundMethod(receiver, method)), nil
	}
}

func (vm *VM) storeProperty(receiver bytecode.Value, name *String, value bytecode.Value) error {
	inst, ok := receiver.AsObj().(*Instance)
	if !receiver.IsObj() || !ok {
		return vm.runtimeError("only instances have settable properties")
	}
	inst.Fields.Insert(bytecode.FromObj(name), value)
	return nil
}

func (vm *VM) loadSubscript(container, index bytecode.Value) (bytecode.Value, error) {
	if !container.IsObj() {
		return bytecode.Nil, vm.runtimeError("value is not subscriptable")
	}
	switch obj := container.AsObj().(type) {
	case *List:
		i, err := indexOf(index, len(obj.Elems))
		if err != nil {
			return bytecode.Nil, vm.runtimeError("%s", err.Error())
		}
		return obj.Elems[i], nil
	case *Map:
		v, ok := obj.Table.Get(index)
		if !ok {
			return bytecode.Nil, vm.runtimeError("key not found")
		}
		return v, nil
	case *String:
		runes := []rune(obj.Chars)
		i, err := indexOf(index, len(runes))
		if err != nil {
			return bytecode.Nil, vm.runtimeError("%s", err.Error())
		}
		return bytecode.FromObj(vm.heap.InternString(string(runes[i]))), nil
	default:
		return bytecode.Nil, vm.runtimeError("value is not subscriptable")
	}
}

func (vm *VM) storeSubscript(container, index, value bytecode.Value) error {
	if !container.IsObj() {
		return vm.runtimeError("value does not support subscript assignment")
	}
	switch obj := container.AsObj().(type) {
	case *List:
		i, err := indexOf(index, len(obj.Elems))
		if err != nil {
			return vm.runtimeError("%s", err.Error())
		}
		obj.Elems[i] = value
		return nil
	case *Map:
		obj.Table.Insert(index, value)
		return nil
	default:
		return vm.runtimeError("value does not support subscript assignment")
	}
}

func indexOf(index bytecode.Value, length int) (int, error) {
	if !index.IsNumber() {
		return 0, fmt.Errorf("index must be a number")
	}
	f := index.AsNumber()
	i := int(f)
	if float64(i) != f {
		return 0, fmt.Errorf("index must be an integer")
	}
	if i < 0 || i >= length {
		return 0, fmt.Errorf("index out of range")
	}
	return i, nil
}

func (vm *VM) compareOp(op bytecode.Opcode) error {
	b := vm.pop()
	a := vm.pop()
	if !a.IsNumber() || !b.IsNumber() {
		return vm.runtimeError("operands of comparison must be numbers")
	}
	x, y := a.AsNumber(), b.AsNumber()
	var result bool
	switch op {
	case bytecode.OpGreater:
		result = x > y
	case bytecode.OpGreaterEqual:
		result = x >= y
	case bytecode.OpLess:
		result = x < y
	case bytecode.OpLessEqual:
		result = x <= y
	}
	vm.push(bytecode.Bool(result))
	return nil
}

func (vm *VM) addOp() error {
	b := vm.pop()
	a := vm.pop()
	if a.IsNumber() && b.IsNumber() {
		vm.push(bytecode.Number(a.AsNumber() + b.AsNumber()))
		return nil
	}
	aStr, aok := stringOf(a)
	bStr, bok := stringOf(b)
	if aok && bok {
		vm.push(bytecode.FromObj(vm.heap.InternString(aStr + bStr)))
		return nil
	}
	return vm.runtimeError("'+' requires two numbers or two strings")
}

func stringOf(v bytecode.Value) (string, bool) {
	if s, ok := v.AsObj().(*String); v.IsObj() && ok {
		return s.Chars, true
	}
	return "", false
}

func (vm *VM) arithOp(op bytecode.Opcode) error {
	b := vm.pop()
	a := vm.pop()
	if !a.IsNumber() || !b.IsNumber() {
		return vm.runtimeError("operands must be numbers")
	}
	x, y := a.AsNumber(), b.AsNumber()
	switch op {
	case bytecode.OpSubtract:
		vm.push(bytecode.Number(x - y))
	case bytecode.OpMultiply:
		vm.push(bytecode.Number(x * y))
	case bytecode.OpDivide:
		if y == 0 {
			return vm.runtimeError("division by zero")
		}
		vm.push(bytecode.Number(x / y))
	case bytecode.OpMod:
		if y == 0 {
			return vm.runtimeError("division by zero")
		}
		vm.push(bytecode.Number(math.Mod(x, y)))
	}
	return nil
}

// captureUpvalue returns the open Upvalue over vm.stack[stackIndex],
// reusing one already open over that slot (e.g. two nested closures
// capturing the same local) rather than allocating a duplicate.
func (vm *VM) captureUpvalue(stackIndex int) *Upvalue {
	var prev *Upvalue
	cur := vm.openUpvalues
	for cur != nil && cur.StackIndex > stackIndex {
		prev = cur
		cur = cur.Next
	}
	if cur != nil && cur.StackIndex == stackIndex {
		return cur
	}
	created := vm.heap.AllocateUpvalue(&vm.stack[stackIndex])
	created.StackIndex = stackIndex
	created.Next = cur
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above fromIndex,
// copying the stack value into the upvalue's own storage and
// repointing Location there — called on RETURN, CLOSE_UPVALUE and when
// unwinding the stack for a thrown exception (spec 9: the latter is a
// deliberate addition the original runtime omits).
func (vm *VM) closeUpvalues(fromIndex int) {
	for vm.openUpvalues != nil && vm.openUpvalues.StackIndex >= fromIndex {
		uv := vm.openUpvalues
		uv.Closed = *uv.Location
		uv.Location = &uv.Closed
		vm.openUpvalues = uv.Next
	}
}
