package builtins

import (
	"fmt"

	"github.com/deeplakee/aria/pkg/bytecode"
	"github.com/deeplakee/aria/pkg/vm"
)

// listMethods backs dot-method calls on a List value (args[0] is
// always the receiving list itself — see vm.VM's callNativeMethod doc
// comment). Subscript indexing (list[i]) is its own opcode pair
// (LOAD_SUBSCR/STORE_SUBSCR, spec 4.3) and isn't duplicated here.
func listMethods(h *vm.Heap) *bytecode.ValueHashTable {
	table := bytecode.NewValueHashTable()

	method(h, table, "length", func(_ *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asList(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		return bytecode.Number(float64(len(self.Elems))), nil
	})

	method(h, table, "push", func(_ *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asList(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		if len(args) != 2 {
			return bytecode.Nil, fmt.Errorf("push() expects 1 argument, got %d", len(args)-1)
		}
		self.Elems = append(self.Elems, args[1])
		return bytecode.Nil, nil
	})

	method(h, table, "pop", func(_ *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asList(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		if len(self.Elems) == 0 {
			return bytecode.Nil, fmt.Errorf("pop() on an empty list")
		}
		last := self.Elems[len(self.Elems)-1]
		self.Elems = self.Elems[:len(self.Elems)-1]
		return last, nil
	})

	method(h, table, "contains", func(_ *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asList(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		if len(args) != 2 {
			return bytecode.Nil, fmt.Errorf("contains() expects 1 argument, got %d", len(args)-1)
		}
		for _, e := range self.Elems {
			if bytecode.Equal(e, args[1]) {
				return bytecode.True, nil
			}
		}
		return bytecode.False, nil
	})

	method(h, table, "indexOf", func(_ *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asList(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		if len(args) != 2 {
			return bytecode.Nil, fmt.Errorf("indexOf() expects 1 argument, got %d", len(args)-1)
		}
		for i, e := range self.Elems {
			if bytecode.Equal(e, args[1]) {
				return bytecode.Number(float64(i)), nil
			}
		}
		return bytecode.Number(-1), nil
	})

	method(h, table, "clear", func(_ *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asList(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		self.Elems = nil
		return bytecode.Nil, nil
	})

	method(h, table, "reverse", func(_ *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asList(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		for i, j := 0, len(self.Elems)-1; i < j; i, j = i+1, j-1 {
			self.Elems[i], self.Elems[j] = self.Elems[j], self.Elems[i]
		}
		return bytecode.Nil, nil
	})

	method(h, table, "join", func(v *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asList(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		sep := ""
		if len(args) == 2 {
			s, ok := args[1].AsObj().(*vm.String)
			if !args[1].IsObj() || !ok {
				return bytecode.Nil, fmt.Errorf("join() expects a string separator")
			}
			sep = s.Chars
		}
		var b []byte
		for i, e := range self.Elems {
			if i > 0 {
				b = append(b, sep...)
			}
			b = append(b, v.Stringify(e)...)
		}
		return bytecode.FromObj(v.Heap().InternString(string(b))), nil
	})

	return table
}

func asList(v bytecode.Value) (*vm.List, error) {
	l, ok := v.AsObj().(*vm.List)
	if !v.IsObj() || !ok {
		return nil, fmt.Errorf("method called on a non-list receiver")
	}
	return l, nil
}
