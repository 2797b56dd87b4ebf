package vm

import "github.com/deeplakee/aria/pkg/bytecode"

// throwValue implements THROW: unwinds call frames until a try handler
// covers the current depth, restoring that handler's stack size and
// frame index and pushing thrown back onto the stack for the catch
// block's STORE_LOCAL. Reports whether a handler caught it; if not,
// the VM surfaces the thrown value as an *AriaThrow to its caller.
//
// Closing upvalues opened above the restored stack size during this
// unwind is a correction over the original runtime's vm.cpp, which
// pops frames without doing so — leaving closures created inside a
// try block referencing stale stack slots after a throw escapes it.
func (vm *VM) throwValue(thrown bytecode.Value) (bool, error) {
	if vm.tryFrameCount == 0 {
		return false, &AriaThrow{Value: stringerOf(thrown), Message: vm.stringify(thrown)}
	}
	vm.tryFrameCount--
	handler := vm.tryFrames[vm.tryFrameCount]

	vm.closeUpvalues(handler.StackSize)
	vm.frameCount = handler.FrameIndex + 1
	vm.sp = handler.StackSize
	vm.currentFrame().IP = handler.HandlerIP
	vm.push(thrown)
	return true, nil
}

// stringerOf adapts a bytecode.Value's object (if any) to the
// fmt.Stringer-shaped interface AriaThrow carries, so the REPL/CLI can
// render an uncaught thrown value without pkg/vm/errors.go importing
// pkg/bytecode's Value type directly.
func stringerOf(v bytecode.Value) interface{ String() string } {
	if v.IsObj() {
		if s, ok := v.AsObj().(interface{ String() string }); ok {
			return s
		}
	}
	return nil
}
