package vm_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deeplakee/aria/pkg/builtins"
	"github.com/deeplakee/aria/pkg/bytecode"
	"github.com/deeplakee/aria/pkg/compiler"
	"github.com/deeplakee/aria/pkg/parser"
	"github.com/deeplakee/aria/pkg/vm"
)

func interpret(t *testing.T, heap *vm.Heap, v *vm.VM, src string) error {
	t.Helper()
	p := parser.New(src)
	program, err := p.Parse()
	require.NoError(t, err)

	c := compiler.New(heap)
	closure, err := c.Compile(program, "<test>")
	require.NoError(t, err)

	return v.Interpret(closure)
}

func TestUncaughtThrowSurfacesAsAriaThrow(t *testing.T) {
	heap := vm.NewHeap()
	v := vm.NewVM(heap)
	var out bytes.Buffer
	v.StdOut = &out

	err := interpret(t, heap, v, `throw "boom";`)
	require.Error(t, err)
	var thrown *vm.AriaThrow
	require.True(t, errors.As(err, &thrown))
	require.Equal(t, "boom", thrown.Message)
}

func TestCaughtThrowDoesNotPropagate(t *testing.T) {
	heap := vm.NewHeap()
	v := vm.NewVM(heap)
	var out bytes.Buffer
	v.StdOut = &out

	err := interpret(t, heap, v, `
		try {
			throw "boom";
		} catch (e) {
			print e;
		}
		print "after";
	`)
	require.NoError(t, err)
	require.Equal(t, "boom\nafter\n", out.String())
}

func TestUndefinedGlobalIsRuntimeError(t *testing.T) {
	heap := vm.NewHeap()
	v := vm.NewVM(heap)
	var out bytes.Buffer
	v.StdOut = &out

	err := interpret(t, heap, v, `print undefined_name;`)
	require.Error(t, err)
	var rerr *vm.RuntimeError
	require.True(t, errors.As(err, &rerr))
}

func TestDivisionByZeroIsRuntimeError(t *testing.T) {
	heap := vm.NewHeap()
	v := vm.NewVM(heap)
	var out bytes.Buffer
	v.StdOut = &out

	err := interpret(t, heap, v, `print 1 / 0;`)
	require.Error(t, err)
}

func TestStressGCDoesNotCorruptLiveData(t *testing.T) {
	heap := vm.NewHeap()
	heap.StressGC = true
	v := vm.NewVM(heap)
	var out bytes.Buffer
	v.StdOut = &out
	builtins.Install(v)

	err := interpret(t, heap, v, `
		var total = 0;
		for (var i = 0; i < 200; i = i + 1) {
			var s = "item-" + str(i);
			var xs = [s, i, i * 2];
			total = total + xs[2];
		}
		print total;
	`)
	require.NoError(t, err)
	require.Equal(t, "39800\n", out.String())
}

func TestGCTraceReportsCollection(t *testing.T) {
	heap := vm.NewHeap()
	v := vm.NewVM(heap)
	v.GCTrace = true
	var out bytes.Buffer
	v.StdOut = &out

	// Force a collection deterministically rather than waiting on the
	// byte threshold: directly mark the heap as due.
	heap.StressGC = true
	err := interpret(t, heap, v, `var x = "trigger";`)
	require.NoError(t, err)
	require.Contains(t, out.String(), "gc collected")
}

func TestDefineNativeIsCallableFromScript(t *testing.T) {
	heap := vm.NewHeap()
	v := vm.NewVM(heap)
	var out bytes.Buffer
	v.StdOut = &out

	v.DefineNative("double", func(_ *vm.VM, args []bytecode.Value) (bytecode.Value, error) {
		return bytecode.Number(args[0].AsNumber() * 2), nil
	})

	err := interpret(t, heap, v, `print double(21);`)
	require.NoError(t, err)
	require.Equal(t, "42\n", out.String())
}

func TestClosuresInLoopCapturePerCallArgument(t *testing.T) {
	heap := vm.NewHeap()
	v := vm.NewVM(heap)
	var out bytes.Buffer
	v.StdOut = &out
	builtins.Install(v)

	err := interpret(t, heap, v, `
		var fns = [];
		for (var i = 0; i < 3; i = i + 1) {
			fun makeFn(n) {
				fun inner() { return n; }
				return inner;
			}
			fns.push(makeFn(i));
		}
		for (var f in fns) {
			print f();
		}
	`)
	require.NoError(t, err)
	require.Equal(t, "0\n1\n2\n", out.String())
}
