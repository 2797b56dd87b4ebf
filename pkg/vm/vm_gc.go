package vm

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// collectGarbage runs one mark-sweep cycle: the VM is the only party
// that knows the full root set (value stack, call frames and each
// frame's chunk-level globals table, open upvalues, native/REPL
// globals, cached modules), so it marks roots itself and hands off to
// Heap for tracing and sweeping — mirroring the original
// collectGarbage()'s markRoots/traceReferences/sweep split between VM
// and GC. A running script's own top-level globals live on its entry
// chunk (not ReplGlobals, which only the REPL session populates), so
// every active frame's Globals table must be marked too, not just the
// closures.
func (vm *VM) collectGarbage() {
	vm.heap.Lock()
	before := vm.heap.BytesAllocated()

	for i := 0; i < vm.sp; i++ {
		vm.heap.MarkValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		vm.heap.MarkObject(vm.frames[i].Closure)
		vm.frames[i].chunk().Globals.Mark(vm.heap.MarkValue)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.Next {
		vm.heap.MarkObject(uv)
	}
	vm.NativeGlobals.Mark(vm.heap.MarkValue)
	if vm.ReplGlobals != nil {
		vm.ReplGlobals.Mark(vm.heap.MarkValue)
	}
	for _, mod := range vm.ModuleCache {
		vm.heap.MarkObject(mod)
	}
	for _, table := range vm.methodTables {
		table.Mark(vm.heap.MarkValue)
	}

	vm.heap.Unlock()
	vm.heap.TraceReferences()
	vm.heap.Sweep()

	if vm.GCTrace {
		fmt.Fprintf(vm.StdOut, "-- gc collected %s (%s -> %s), next at %s\n",
			humanize.Bytes(uint64(before-vm.heap.BytesAllocated())),
			humanize.Bytes(uint64(before)),
			humanize.Bytes(uint64(vm.heap.BytesAllocated())),
			humanize.Bytes(uint64(vm.heap.NextGC())))
	}
}
