package builtins

import (
	"fmt"
	"strings"

	"github.com/deeplakee/aria/pkg/bytecode"
	"github.com/deeplakee/aria/pkg/vm"
)

// stringMethods backs dot-method calls on a String value. Strings are
// immutable and interned (pkg/vm/heap.go's InternString), so every
// method here returns a new string rather than mutating the receiver.
// Subscript indexing (str[i]) is its own opcode and isn't duplicated.
func stringMethods(h *vm.Heap) *bytecode.ValueHashTable {
	table := bytecode.NewValueHashTable()

	method(h, table, "length", func(_ *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asString(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		return bytecode.Number(float64(len([]rune(self.Chars)))), nil
	})

	method(h, table, "upper", func(v *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asString(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		return bytecode.FromObj(v.Heap().InternString(strings.ToUpper(self.Chars))), nil
	})

	method(h, table, "lower", func(v *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asString(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		return bytecode.FromObj(v.Heap().InternString(strings.ToLower(self.Chars))), nil
	})

	method(h, table, "trim", func(v *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asString(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		return bytecode.FromObj(v.Heap().InternString(strings.TrimSpace(self.Chars))), nil
	})

	method(h, table, "contains", func(_ *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asString(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		sub, err := stringArg(args, 1, "contains")
		if err != nil {
			return bytecode.Nil, err
		}
		return bytecode.Bool(strings.Contains(self.Chars, sub)), nil
	})

	method(h, table, "indexOf", func(_ *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asString(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		sub, err := stringArg(args, 1, "indexOf")
		if err != nil {
			return bytecode.Nil, err
		}
		return bytecode.Number(float64(strings.Index(self.Chars, sub))), nil
	})

	method(h, table, "replace", func(v *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asString(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		old, err := stringArg(args, 1, "replace")
		if err != nil {
			return bytecode.Nil, err
		}
		repl, err := stringArg(args, 2, "replace")
		if err != nil {
			return bytecode.Nil, err
		}
		return bytecode.FromObj(v.Heap().InternString(strings.ReplaceAll(self.Chars, old, repl))), nil
	})

	method(h, table, "split", func(v *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asString(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		sep, err := stringArg(args, 1, "split")
		if err != nil {
			return bytecode.Nil, err
		}
		var parts []string
		if sep == "" {
			parts = strings.Split(self.Chars, "")
		} else {
			parts = strings.Split(self.Chars, sep)
		}
		elems := make([]bytecode.Value, len(parts))
		for i, p := range parts {
			elems[i] = bytecode.FromObj(v.Heap().InternString(p))
		}
		return bytecode.FromObj(v.Heap().AllocateList(elems)), nil
	})

	method(h, table, "substring", func(v *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asString(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		if len(args) != 3 {
			return bytecode.Nil, fmt.Errorf("substring() expects 2 arguments, got %d", len(args)-1)
		}
		runes := []rune(self.Chars)
		start, err := intArg(args[1], "substring")
		if err != nil {
			return bytecode.Nil, err
		}
		end, err := intArg(args[2], "substring")
		if err != nil {
			return bytecode.Nil, err
		}
		if start < 0 || end > len(runes) || start > end {
			return bytecode.Nil, fmt.Errorf("substring() range out of bounds")
		}
		return bytecode.FromObj(v.Heap().InternString(string(runes[start:end]))), nil
	})

	method(h, table, "charAt", func(v *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		self, err := asString(args[0])
		if err != nil {
			return bytecode.Nil, err
		}
		if len(args) != 2 {
			return bytecode.Nil, fmt.Errorf("charAt() expects 1 argument, got %d", len(args)-1)
		}
		runes := []rune(self.Chars)
		i, err := intArg(args[1], "charAt")
		if err != nil {
			return bytecode.Nil, err
		}
		if i < 0 || i >= len(runes) {
			return bytecode.Nil, fmt.Errorf("charAt() index out of range")
		}
		return bytecode.FromObj(v.Heap().InternString(string(runes[i]))), nil
	})

	return table
}

func asString(v bytecode.Value) (*vm.String, error) {
	s, ok := v.AsObj().(*vm.String)
	if !v.IsObj() || !ok {
		return nil, fmt.Errorf("method called on a non-string receiver")
	}
	return s, nil
}

func stringArg(args []bytecode.Value, i int, method string) (string, error) {
	if len(args) <= i {
		return "", fmt.Errorf("%s() expects a string argument", method)
	}
	s, ok := args[i].AsObj().(*vm.String)
	if !args[i].IsObj() || !ok {
		return "", fmt.Errorf("%s() expects a string argument", method)
	}
	return s.Chars, nil
}

func intArg(v bytecode.Value, method string) (int, error) {
	if !v.IsNumber() {
		return 0, fmt.Errorf("%s() expects a number argument", method)
	}
	f := v.AsNumber()
	i := int(f)
	if float64(i) != f {
		return 0, fmt.Errorf("%s() expects an integer argument", method)
	}
	return i, nil
}
