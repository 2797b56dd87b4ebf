package builtins

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deeplakee/aria/pkg/bytecode"
	"github.com/deeplakee/aria/pkg/vm"
)

// aria's surface syntax has no way to obtain an Iterator value directly
// (for-in drives GET_ITER/ITER_HAS_NEXT/ITER_GET_NEXT itself, never going
// through INVOKE_METHOD), so iteratorMethods is exercised at the Go level
// by calling the installed native functions directly.
func TestIteratorMethodsHasNextAndNext(t *testing.T) {
	heap := vm.NewHeap()
	v := vm.NewVM(heap)
	Install(v)

	list := heap.AllocateList([]bytecode.Value{bytecode.Number(1), bytecode.Number(2)})
	it := heap.AllocateListIterator(list)

	table := iteratorMethods(heap)
	hasNext, _ := table.Get(bytecode.FromObj(heap.InternString("hasNext")))
	next, _ := table.Get(bytecode.FromObj(heap.InternString("next")))

	hasNextFn := hasNext.AsObj().(*vm.NativeFunction)
	nextFn := next.AsObj().(*vm.NativeFunction)

	ok, err := hasNextFn.Fn(v, []bytecode.Value{bytecode.FromObj(it)})
	require.NoError(t, err)
	require.True(t, ok.AsBool())

	val, err := nextFn.Fn(v, []bytecode.Value{bytecode.FromObj(it)})
	require.NoError(t, err)
	require.Equal(t, float64(1), val.AsNumber())

	val, err = nextFn.Fn(v, []bytecode.Value{bytecode.FromObj(it)})
	require.NoError(t, err)
	require.Equal(t, float64(2), val.AsNumber())

	ok, err = hasNextFn.Fn(v, []bytecode.Value{bytecode.FromObj(it)})
	require.NoError(t, err)
	require.False(t, ok.AsBool())

	_, err = nextFn.Fn(v, []bytecode.Value{bytecode.FromObj(it)})
	require.Error(t, err)
}
