package vm

import (
	"fmt"
	"strings"

	"github.com/deeplakee/aria/pkg/bytecode"
)

// traceInstruction prints the single instruction at ip plus the
// current value-stack contents, the `--trace` diagnostic named in
// spec section 6 — adapted from the teacher's per-instruction stack
// dump to this opcode set and Value type.
func (vm *VM) traceInstruction(chunk *bytecode.Chunk, ip int) {
	var stackDump strings.Builder
	stackDump.WriteString("          ")
	for i := 0; i < vm.sp; i++ {
		fmt.Fprintf(&stackDump, "[ %s ]", vm.stringify(vm.stack[i]))
	}
	fmt.Fprintln(vm.StdOut, stackDump.String())

	var b strings.Builder
	lastLine := -1
	disassembleOneInto(&b, chunk, ip, &lastLine)
	fmt.Fprint(vm.StdOut, b.String())
}

// disassembleOneInto renders exactly one instruction starting at
// offset using bytecode.Disassemble's full-chunk output, trimmed to
// the one line the trace needs — Disassemble has no single-instruction
// entry point of its own since the compiled-file disassembler (`aria
// disassemble`) always wants the whole chunk.
func disassembleOneInto(b *strings.Builder, chunk *bytecode.Chunk, offset int, lastLine *int) {
	full := bytecode.Disassemble(chunk, "")
	lines := strings.Split(full, "\n")
	prefix := fmt.Sprintf("%04d ", offset)
	for _, line := range lines {
		if strings.HasPrefix(line, prefix) {
			b.WriteString(line)
			b.WriteByte('\n')
			return
		}
	}
}
