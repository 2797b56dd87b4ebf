package builtins

import (
	"fmt"

	"github.com/deeplakee/aria/pkg/bytecode"
	"github.com/deeplakee/aria/pkg/vm"
)

// mapMethods backs dot-method calls on a Map value. Subscript access
// (map[key]) is its own opcode pair and isn't duplicated here.
func mapMethods(h *vm.Heap) *bytecode.ValueHashTable {
	table := bytecode.NewValueHashTable()

	method(h, table, "length", func(_ *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asMap(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		return bytecode.Number(float64(self.Table.Len())), nil
	})

	method(h, table, "has", func(_ *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asMap(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		if len(args) != 2 {
			return bytecode.Nil, fmt.Errorf("has() expects 1 argument, got %d", len(args)-1)
		}
		return bytecode.Bool(self.Table.Has(args[1])), nil
	})

	method(h, table, "remove", func(_ *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asMap(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		if len(args) != 2 {
			return bytecode.Nil, fmt.Errorf("remove() expects 1 argument, got %d", len(args)-1)
		}
		return bytecode.Bool(self.Table.Remove(args[1])), nil
	})

	method(h, table, "clear", func(v *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asMap(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		self.Table = bytecode.NewValueHashTable()
		return bytecode.Nil, nil
	})

	method(h, table, "keys", func(v *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asMap(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		keys := make([]bytecode.Value, 0, self.Table.Len())
		self.Table.Each(func(k, _ bytecode.Value) { keys = append(keys, k) })
		return bytecode.FromObj(v.Heap().AllocateList(keys)), nil
	})

	method(h, table, "values", func(v *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asMap(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		values := make([]bytecode.Value, 0, self.Table.Len())
		self.Table.Each(func(_, val bytecode.Value) { values = append(values, val) })
		return bytecode.FromObj(v.Heap().AllocateList(values)), nil
	})

	return table
}

func asMap(v bytecode.Value) (*vm.Map, error) {
	m, ok := v.AsObj().(*vm.Map)
	if !v.IsObj() || !ok {
		return nil, fmt.Errorf("method called on a non-map receiver")
	}
	return m, nil
}
