package builtins

import (
	"fmt"

	"github.com/deeplakee/aria/pkg/bytecode"
	"github.com/deeplakee/aria/pkg/vm"
)

// iteratorMethods exposes the manual iteration protocol GET_ITER/
// ITER_HAS_NEXT/ITER_GET_NEXT already give `for (var x in iterable)`
// (spec 4.7), as ordinary dot methods too — for code that wants to walk
// an iterator by hand rather than with a for-in loop.
func iteratorMethods(h *vm.Heap) *bytecode.ValueHashTable {
	table := bytecode.NewValueHashTable()

	method(h, table, "hasNext", func(_ *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asIterator(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		return bytecode.Bool(self.HasNext()), nil
	})

	method(h, table, "next", func(v *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asIterator(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		if !self.HasNext() {
			return bytecode.Nil, fmt.Errorf("next() called past the end of the iterator")
		}
		return self.Next(v.Heap()), nil
	})

	return table
}

func asIterator(v bytecode.Value) (*vm.Iterator, error) {
	it, ok := v.AsObj().(*vm.Iterator)
	if !v.IsObj() || !ok {
		return nil, fmt.Errorf("method called on a non-iterator receiver")
	}
	return it, nil
}
