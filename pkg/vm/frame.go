package vm

import "github.com/deeplakee/aria/pkg/bytecode"

// CallFrame is one activation record: the closure being executed, the
// instruction pointer into its chunk, and the base of its window onto
// the shared value stack (locals live at stackBase+0, stackBase+1, ...).
type CallFrame struct {
	Closure   *Closure
	IP        int
	StackBase int
}

func (f *CallFrame) chunk() *bytecode.Chunk { return f.Closure.Fn.Chunk }

// TryFrame records one active try/catch handler: where to resume on a
// THROW (the catch block's bytecode offset), and the stack/call-frame
// depth to restore to before resuming there (spec 4.5/9: any upvalues
// open above the restored stack size must be closed during unwind — a
// correction over the original implementation, which omits this). The
// thrown value is pushed back onto the restored stack at HandlerIP, so
// the catch block's own STORE_LOCAL (emitted by the compiler for the
// catch variable) binds it like any other local.
type TryFrame struct {
	HandlerIP  int
	StackSize  int
	FrameIndex int
}
