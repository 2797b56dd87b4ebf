// Error handling with stack traces, adapted from the teacher's
// StackFrame/RuntimeError shape.
package vm

import (
	"fmt"
	"strings"
)

// StackFrame captures where execution was at one level of the call
// stack at the time an error was raised.
type StackFrame struct {
	FuncName   string
	SourceLine int
}

// RuntimeError is a non-recoverable aria runtime error (one that
// unwound past every try/catch) or a CompileError's sibling at
// execution time: a message plus the call stack at the point it
// occurred, rendered the way the teacher's RuntimeError does.
type RuntimeError struct {
	Message    string
	StackTrace []StackFrame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.StackTrace) > 0 {
		b.WriteString("\n\nStack trace:")
		for i := len(e.StackTrace) - 1; i >= 0; i-- {
			f := e.StackTrace[i]
			name := f.FuncName
			if name == "" {
				name = "<script>"
			}
			b.WriteString(fmt.Sprintf("\n  at %s [line %d]", name, f.SourceLine))
		}
	}
	return b.String()
}

func newRuntimeError(message string, stack []StackFrame) *RuntimeError {
	return &RuntimeError{Message: message, StackTrace: stack}
}

// CompileError is a single diagnostic raised during compilation — aria
// never runs code with compile errors (spec section 6's exit code 65).
type CompileError struct {
	Message string
	Line    int
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// CompileErrors aggregates every CompileError the compiler collected in
// one pass, matching the parser's "accumulate, don't stop at the first"
// philosophy.
type CompileErrors struct {
	Errors []*CompileError
}

func (e *CompileErrors) Error() string {
	var b strings.Builder
	for i, ce := range e.Errors {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(ce.Error())
	}
	return b.String()
}

// AriaThrow is the Go-level carrier for a value thrown by aria's `throw`
// statement that unwound past every try/catch in the running program —
// the VM surfaces it to its caller (the REPL or `aria run`) instead of a
// RuntimeError, since thrown values aren't necessarily strings.
type AriaThrow struct {
	Value   interface{ String() string }
	Message string
}

func (e *AriaThrow) Error() string {
	if e.Value != nil {
		return "uncaught exception: " + e.Value.String()
	}
	return "uncaught exception: " + e.Message
}
