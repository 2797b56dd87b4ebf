package vm

import "github.com/deeplakee/aria/pkg/bytecode"

// doImport implements IMPORT (spec 4.8): resolve inputName (via
// vm.Importer, which knows the bare-identifier vs relative-path rules)
// relative to the currently executing file, run its top-level script
// once if this is the first time the resolved path is imported, and
// bind the resulting Module under moduleName in the importing chunk's
// globals.
func (vm *VM) doImport(inputName, moduleName string) error {
	if vm.Importer == nil {
		return vm.runtimeError("imports are not supported in this environment")
	}
	fromPath := vm.currentFrame().Closure.Fn.SourcePath

	closure, resolvedPath, err := vm.Importer.Load(vm, fromPath, inputName)
	if err != nil {
		return vm.runtimeError("%s", err.Error())
	}

	mod, cached := vm.ModuleCache[resolvedPath]
	if !cached {
		if err := vm.Interpret(closure); err != nil {
			return err
		}
		mod = vm.heap.AllocateModule(resolvedPath, closure.Fn.Chunk.Globals)
		vm.ModuleCache[resolvedPath] = mod
	}

	nameStr := vm.heap.InternString(moduleName)
	vm.currentFrame().chunk().Globals.Insert(bytecode.FromObj(nameStr), bytecode.FromObj(mod))
	return nil
}
