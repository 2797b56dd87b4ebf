// Command aria is the language's CLI entry point and REPL (spec §6):
// zero arguments starts an interactive session; one file argument runs
// it. Structured the way the teacher's cmd/smog/main.go lays out its
// run/REPL split, generalized to aria's compile-to-Closure pipeline and
// the spec's exact exit-code contract (0 normal, 64 usage, 65 compile
// error, 70 runtime error, 74 file-read failure) in place of the
// teacher's single blanket os.Exit(1) on every failure path.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	"github.com/deeplakee/aria/pkg/builtins"
	"github.com/deeplakee/aria/pkg/compiler"
	"github.com/deeplakee/aria/pkg/modresolve"
	"github.com/deeplakee/aria/pkg/parser"
	"github.com/deeplakee/aria/pkg/vm"
)

const (
	exitOK           = 0
	exitUsageError   = 64
	exitCompileError = 65
	exitRuntimeError = 70
	exitFileError    = 74
)

func main() {
	trace := flag.Bool("trace", false, "disassemble each instruction before executing it")
	stressGC := flag.Bool("stress-gc", false, "collect at every instruction boundary that follows an allocation, not before the allocation itself (exercises the collector harder)")
	gcTrace := flag.Bool("gc-trace", false, "log each collection's before/after byte counts")
	flag.Parse()

	args := flag.Args()
	switch len(args) {
	case 0:
		runREPL(*trace, *stressGC, *gcTrace)
	case 1:
		os.Exit(runFile(args[0], *trace, *stressGC, *gcTrace))
	default:
		fmt.Fprintln(os.Stderr, "usage: aria [--trace] [--stress-gc] [--gc-trace] [script.aria]")
		os.Exit(exitUsageError)
	}
}

func newVM(trace, stressGC, gcTrace bool) (*vm.VM, string) {
	heap := vm.NewHeap()
	heap.StressGC = stressGC
	v := vm.NewVM(heap)
	v.Trace = trace
	v.GCTrace = gcTrace
	builtins.Install(v)

	libDir := filepath.Join(filepath.Dir(execPath()), "lib")
	v.Importer = modresolve.NewLoader(libDir)
	return v, libDir
}

func execPath() string {
	p, err := os.Executable()
	if err != nil {
		return "."
	}
	return p
}

// runFile reads, parses, compiles and runs a single .aria source file,
// returning the process exit code per spec §6.
func runFile(path string, trace, stressGC, gcTrace bool) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "aria: cannot read %s: %v\n", path, err)
		return exitFileError
	}

	p := parser.New(string(data))
	program, err := p.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCompileError
	}

	v, _ := newVM(trace, stressGC, gcTrace)
	c := compiler.New(v.Heap())
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	closure, err := c.Compile(program, abs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCompileError
	}

	if err := v.Interpret(closure); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitRuntimeError
	}
	return exitOK
}

// runREPL starts an interactive read-eval-print loop over stdin. A
// session-wide ReplGlobals table persists variables across lines, the
// way the teacher's runREPL keeps one persistent Compiler/VM pair for
// the life of the session.
//
// Line editing only makes sense talking to a real terminal: piped
// input (aria < script.aria, or a test harness feeding stdin) gets the
// teacher's plain bufio.Scanner loop instead, since liner's raw-mode
// terminal handling has nothing to attach to over a pipe.
func runREPL(trace, stressGC, gcTrace bool) {
	fmt.Println("aria REPL — :quit or :exit to leave")

	v, _ := newVM(trace, stressGC, gcTrace)
	v.ReplGlobals = nil // set lazily once the first line compiles, below

	if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		runLinerREPL(v)
		return
	}
	runPlainREPL(v)
}

func runLinerREPL(v *vm.VM) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath := historyFilePath()
	if f, err := os.Open(historyPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	for {
		input, err := line.Prompt("aria> ")
		if err != nil {
			if err != liner.ErrPromptAborted && err != io.EOF {
				fmt.Fprintf(os.Stderr, "aria: error reading input: %v\n", err)
			}
			break
		}
		switch input {
		case ":quit", ":exit":
			writeHistory(line, historyPath)
			return
		case "":
			continue
		}
		line.AppendHistory(input)
		evalLine(v, input)
	}
	writeHistory(line, historyPath)
}

func writeHistory(line *liner.State, path string) {
	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer f.Close()
	line.WriteHistory(f)
}

func historyFilePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".aria_history"
	}
	return filepath.Join(dir, "aria_history")
}

func runPlainREPL(v *vm.VM) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("aria> ")
		if !scanner.Scan() {
			break
		}
		input := scanner.Text()
		switch input {
		case ":quit", ":exit":
			return
		case "":
			continue
		}
		evalLine(v, input)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "aria: error reading input: %v\n", err)
	}
}

func evalLine(v *vm.VM, line string) {
	p := parser.New(line)
	program, err := p.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}

	c := compiler.New(v.Heap())
	closure, err := c.Compile(program, "<repl>")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}

	// Every REPL line compiles as its own script-level chunk with its
	// own fresh Globals table (pkg/compiler's compileUnit), so the
	// persistent-variables illusion is carried by copying the previous
	// line's globals forward rather than literally sharing one table —
	// simpler than threading one funcCtx across Parser/Compiler calls,
	// and sufficient since the REPL only ever runs top-level statements.
	if v.ReplGlobals != nil {
		closure.Fn.Chunk.Globals.CopyFrom(v.ReplGlobals)
	}
	v.ReplGlobals = closure.Fn.Chunk.Globals

	if err := v.Interpret(closure); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
