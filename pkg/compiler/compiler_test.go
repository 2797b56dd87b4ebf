package compiler

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deeplakee/aria/pkg/parser"
	"github.com/deeplakee/aria/pkg/vm"
)

// run compiles and executes src against a fresh heap/VM, returning stdout
// and any error Interpret reported.
func run(t *testing.T, src string) (string, error) {
	t.Helper()
	p := parser.New(src)
	program, err := p.Parse()
	require.NoError(t, err)

	heap := vm.NewHeap()
	v := vm.NewVM(heap)
	var out bytes.Buffer
	v.StdOut = &out

	c := New(heap)
	closure, err := c.Compile(program, "<test>")
	require.NoError(t, err)

	return out.String(), v.Interpret(closure)
}

func TestNumberAndStringLiterals(t *testing.T) {
	out, err := run(t, `print 42; print "hello";`)
	require.NoError(t, err)
	require.Equal(t, "42\nhello\n", out)
}

func TestArithmeticPrecedence(t *testing.T) {
	out, err := run(t, `print 2 + 3 * 4;`)
	require.NoError(t, err)
	require.Equal(t, "14\n", out)
}

func TestGlobalVarDeclAndAssignment(t *testing.T) {
	out, err := run(t, `
		var x = 1;
		x = x + 41;
		print x;
	`)
	require.NoError(t, err)
	require.Equal(t, "42\n", out)
}

func TestLocalScoping(t *testing.T) {
	out, err := run(t, `
		var x = "outer";
		{
			var x = "inner";
			print x;
		}
		print x;
	`)
	require.NoError(t, err)
	require.Equal(t, "inner\nouter\n", out)
}

func TestUndefinedGlobalIsRuntimeError(t *testing.T) {
	_, err := run(t, `print nope;`)
	require.Error(t, err)
}

func TestClosureCapturesUpvalue(t *testing.T) {
	out, err := run(t, `
		fun makeCounter() {
			var count = 0;
			fun increment() {
				count = count + 1;
				return count;
			}
			return increment;
		}
		var counter = makeCounter();
		print counter();
		print counter();
		print counter();
	`)
	require.NoError(t, err)
	require.Equal(t, "1\n2\n3\n", out)
}

func TestIfElse(t *testing.T) {
	out, err := run(t, `
		fun classify(n) {
			if (n < 0) {
				print "negative";
			} else if (n == 0) {
				print "zero";
			} else {
				print "positive";
			}
		}
		classify(-1);
		classify(0);
		classify(1);
	`)
	require.NoError(t, err)
	require.Equal(t, "negative\nzero\npositive\n", out)
}

func TestWhileLoopWithBreakAndContinue(t *testing.T) {
	out, err := run(t, `
		var i = 0;
		while (true) {
			i = i + 1;
			if (i == 2) {
				continue;
			}
			if (i > 4) {
				break;
			}
			print i;
		}
	`)
	require.NoError(t, err)
	require.Equal(t, "1\n3\n4\n", out)
}

func TestClassicForLoop(t *testing.T) {
	out, err := run(t, `
		for (var i = 0; i < 3; i = i + 1) {
			print i;
		}
	`)
	require.NoError(t, err)
	require.Equal(t, "0\n1\n2\n", out)
}

func TestForInOverList(t *testing.T) {
	out, err := run(t, `
		for (var x in [10, 20, 30]) {
			print x;
		}
	`)
	require.NoError(t, err)
	require.Equal(t, "10\n20\n30\n", out)
}

func TestClassInitAndMethods(t *testing.T) {
	out, err := run(t, `
		class Point {
			init(x, y) {
				this.x = x;
				this.y = y;
			}
			sum() {
				return this.x + this.y;
			}
		}
		var p = Point(3, 4);
		print p.sum();
	`)
	require.NoError(t, err)
	require.Equal(t, "7\n", out)
}

func TestInheritanceAndSuper(t *testing.T) {
	out, err := run(t, `
		class Animal {
			speak() {
				return "...";
			}
		}
		class Dog < Animal {
			speak() {
				return "woof (" + super.speak() + ")";
			}
		}
		print Dog().speak();
	`)
	require.NoError(t, err)
	require.Equal(t, "woof (...)\n", out)
}

func TestTryCatchHandlesThrownValue(t *testing.T) {
	out, err := run(t, `
		try {
			throw "boom";
		} catch (e) {
			print "caught: " + e;
		}
		print "after";
	`)
	require.NoError(t, err)
	require.Equal(t, "caught: boom\nafter\n", out)
}

func TestUncaughtThrowPropagatesAsError(t *testing.T) {
	_, err := run(t, `throw "oops";`)
	require.Error(t, err)
}

func TestVarargsCollectIntoList(t *testing.T) {
	out, err := run(t, `
		fun sum(...xs) {
			var total = 0;
			for (var x in xs) {
				total = total + x;
			}
			return total;
		}
		print sum(1, 2, 3, 4);
	`)
	require.NoError(t, err)
	require.Equal(t, "10\n", out)
}

func TestPathStyleImportWithoutAliasIsParseError(t *testing.T) {
	// The parser already rejects a string-literal import with no
	// explicit alias; compileImport's own check is a second line of
	// defense for any path-style Import node that reaches the compiler.
	p := parser.New(`import "./util" ;`)
	_, err := p.Parse()
	require.Error(t, err)
}

func TestPathStyleImportWithAliasCompiles(t *testing.T) {
	p := parser.New(`import "./util" as util;`)
	program, err := p.Parse()
	require.NoError(t, err)

	heap := vm.NewHeap()
	c := New(heap)
	_, err = c.Compile(program, "<test>")
	require.NoError(t, err)
}
