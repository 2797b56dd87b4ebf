// Package builtins installs aria's ambient global functions (clock,
// type, len, str, num) and the native method tables INVOKE_METHOD and
// LOAD_PROPERTY fall back to for strings, lists, maps and iterators —
// values that aren't Instances of a user Class and so have no
// Class.FindMethod chain of their own (spec 4.3/4.9). Kept as its own
// package, one-directionally importing pkg/vm, so the VM's dispatch
// loop never needs to know these methods exist (pkg/vm/vm.go's
// InstallMethodTable doc comment).
package builtins

import (
	"fmt"
	"strconv"
	"time"

	"github.com/deeplakee/aria/pkg/bytecode"
	"github.com/deeplakee/aria/pkg/vm"
)

// Install registers every ambient native global and built-in-type
// method table on v. cmd/aria calls this once per VM — a fresh one per
// script file run, or once for the life of a REPL session.
func Install(v *vm.VM) {
	v.DefineNative("clock", nativeClock)
	v.DefineNative("type", nativeType)
	v.DefineNative("len", nativeLen)
	v.DefineNative("str", nativeStr)
	v.DefineNative("num", nativeNum)

	h := v.Heap()
	v.InstallMethodTable(bytecode.KindString, stringMethods(h))
	v.InstallMethodTable(bytecode.KindList, listMethods(h))
	v.InstallMethodTable(bytecode.KindMap, mapMethods(h))
	v.InstallMethodTable(bytecode.KindIterator, iteratorMethods(h))
}

// method builds a one-entry table registration: name -> a NativeFunction
// wrapping fn, installed under name in table.
func method(h *vm.Heap, table *bytecode.ValueHashTable, name string, fn func(v *vm.VM, args []bytecode.Value) (bytecode.Value, error)) {
	native := h.AllocateNative(name, fn)
	table.Insert(bytecode.FromObj(h.InternString(name)), bytecode.FromObj(native))
}

func typeName(val bytecode.Value) string {
	switch {
	case val.IsNil():
		return "nil"
	case val.IsBool():
		return "bool"
	case val.IsNumber():
		return "number"
	case val.IsObj():
		return val.AsObj().ObjKind().String()
	default:
		return "unknown"
	}
}

func nativeClock(_ *vm.VM, _ []bytecode.Value) (bytecode.Value, error) {
	return bytecode.Number(float64(time.Now().UnixNano()) / 1e9), nil
}

func nativeType(v *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
	if len(args) != 1 {
		return bytecode.Nil, fmt.Errorf("type() expects 1 argument, got %d", len(args))
	}
	return bytecode.FromObj(v.Heap().InternString(typeName(args[0]))), nil
}

func nativeLen(_ *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
	if len(args) != 1 {
		return bytecode.Nil, fmt.Errorf("len() expects 1 argument, got %d", len(args))
	}
	if !args[0].IsObj() {
		return bytecode.Nil, fmt.Errorf("len() expects a string, list or map")
	}
	switch o := args[0].AsObj().(type) {
	case *vm.String:
		return bytecode.Number(float64(len([]rune(o.Chars)))), nil
	case *vm.List:
		return bytecode.Number(float64(len(o.Elems))), nil
	case *vm.Map:
		return bytecode.Number(float64(o.Table.Len())), nil
	default:
		return bytecode.Nil, fmt.Errorf("len() expects a string, list or map, got %s", typeName(args[0]))
	}
}

func nativeStr(v *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
	if len(args) != 1 {
		return bytecode.Nil, fmt.Errorf("str() expects 1 argument, got %d", len(args))
	}
	return bytecode.FromObj(v.Heap().InternString(v.Stringify(args[0]))), nil
}

func nativeNum(_ *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
	if len(args) != 1 {
		return bytecode.Nil, fmt.Errorf("num() expects 1 argument, got %d", len(args))
	}
	if args[0].IsNumber() {
		return args[0], nil
	}
	s, ok := args[0].AsObj().(*vm.String)
	if !args[0].IsObj() || !ok {
		return bytecode.Nil, fmt.Errorf("num() expects a string or number")
	}
	f, err := strconv.ParseFloat(s.Chars, 64)
	if err != nil {
		return bytecode.Nil, fmt.Errorf("'%s' is not a valid number", s.Chars)
	}
	return bytecode.Number(f), nil
}
