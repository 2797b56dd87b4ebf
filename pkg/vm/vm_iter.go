package vm

import "github.com/deeplakee/aria/pkg/bytecode"

// getIterator implements GET_ITER for the three built-in iterable
// kinds (spec 4.5's `for (var x in ...)` desugars to GET_ITER /
// ITER_HAS_NEXT / ITER_GET_NEXT around a loop).
func (vm *VM) getIterator(v bytecode.Value) (*Iterator, error) {
	if !v.IsObj() {
		return nil, vm.runtimeError("value is not iterable")
	}
	switch obj := v.AsObj().(type) {
	case *List:
		return vm.heap.AllocateListIterator(obj), nil
	case *Map:
		return vm.heap.AllocateMapIterator(obj), nil
	case *String:
		return vm.heap.AllocateStringIterator(obj.Chars), nil
	default:
		return nil, vm.runtimeError("value is not iterable")
	}
}
