package builtins

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deeplakee/aria/pkg/compiler"
	"github.com/deeplakee/aria/pkg/parser"
	"github.com/deeplakee/aria/pkg/vm"
)

// run compiles and executes src against a fresh VM with Install already
// applied, returning stdout.
func run(t *testing.T, src string) string {
	t.Helper()
	p := parser.New(src)
	program, err := p.Parse()
	require.NoError(t, err)

	heap := vm.NewHeap()
	v := vm.NewVM(heap)
	var out bytes.Buffer
	v.StdOut = &out
	Install(v)

	c := compiler.New(heap)
	closure, err := c.Compile(program, "<test>")
	require.NoError(t, err)

	require.NoError(t, v.Interpret(closure))
	return out.String()
}

func TestNativeType(t *testing.T) {
	out := run(t, `
		print type(1);
		print type("s");
		print type(true);
		print type(nil);
		print type([1]);
		print type({"a": 1});
	`)
	require.Equal(t, "number\nstring\nbool\nnil\nlist\nmap\n", out)
}

func TestNativeLen(t *testing.T) {
	out := run(t, `
		print len("hello");
		print len([1, 2, 3]);
		print len({"a": 1, "b": 2});
	`)
	require.Equal(t, "5\n3\n2\n", out)
}

func TestNativeStrAndNum(t *testing.T) {
	out := run(t, `
		print str(42);
		print num("3.5") + 1;
	`)
	require.Equal(t, "42\n4.5\n", out)
}

func TestListPushPopContainsIndexOf(t *testing.T) {
	out := run(t, `
		var xs = [1, 2, 3];
		xs.push(4);
		print xs.length();
		print xs.pop();
		print xs.contains(2);
		print xs.indexOf(2);
		print xs.indexOf(99);
	`)
	require.Equal(t, "4\n4\ntrue\n1\n-1\n", out)
}

func TestListReverseAndClear(t *testing.T) {
	out := run(t, `
		var xs = [1, 2, 3];
		xs.reverse();
		print xs.join(",");
		xs.clear();
		print xs.length();
	`)
	require.Equal(t, "3,2,1\n0\n", out)
}

func TestListJoinWithDefaultSeparator(t *testing.T) {
	out := run(t, `print [1, 2, 3].join();`)
	require.Equal(t, "123\n", out)
}

func TestMapHasRemoveLength(t *testing.T) {
	out := run(t, `
		var m = {"a": 1, "b": 2};
		print m.has("a");
		print m.has("z");
		print m.remove("a");
		print m.length();
	`)
	require.Equal(t, "true\nfalse\ntrue\n1\n", out)
}

func TestStringMethods(t *testing.T) {
	out := run(t, `
		var s = "  Hello World  ";
		print s.trim();
		print s.trim().upper();
		print s.trim().lower();
		print s.contains("World");
		print s.trim().indexOf("World");
		print s.trim().replace("World", "aria");
		print s.trim().charAt(0);
		print s.trim().substring(0, 5);
	`)
	require.Equal(t, "Hello World\nHELLO WORLD\nhello world\ntrue\n6\nHello aria\nH\nHello\n", out)
}

func TestStringSplit(t *testing.T) {
	out := run(t, `
		var parts = "a,b,c".split(",");
		print parts.length();
		print parts.join("-");
	`)
	require.Equal(t, "3\na-b-c\n", out)
}

func TestForInUsesIteratorUnderTheHood(t *testing.T) {
	out := run(t, `
		var total = 0;
		for (var x in [1, 2, 3]) {
			total = total + x;
		}
		print total;
	`)
	require.Equal(t, "6\n", out)
}
