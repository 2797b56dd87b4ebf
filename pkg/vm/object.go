// Package vm implements aria's heap objects, mark-sweep collector and
// the bytecode execution loop.
//
// Every heap object embeds bytecode.Header by value, which supplies the
// Kind/Marked/Hash/NextObj bookkeeping and satisfies bytecode.Obj via Go's
// method promotion — so pkg/bytecode's Value can hold any of these
// without importing this package (see pkg/bytecode/value.go's package
// doc for why).
package vm

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/deeplakee/aria/pkg/bytecode"
)

// String is an interned, immutable string object. Its hash is computed
// once at construction (FNV-1a over the bytes) so table lookups and
// interning comparisons never re-hash.
type String struct {
	bytecode.Header
	Chars string
}

func (s *String) GoString() string { return s.Chars }
func (s *String) String() string   { return s.Chars }

// Function is a compiled, not-yet-closed-over function: its chunk,
// arity, name (for stack traces) and upvalue count. CLOSURE wraps one in
// a Closure at the call site that captures it; Function itself carries
// no captured state.
type Function struct {
	bytecode.Header
	Name        string // "" for the implicit top-level script function
	Arity       int
	Varargs     bool
	UpvalueCnt  int
	Chunk       *bytecode.Chunk
	UpvalueInfo []UpvalueRef // parallel to the CLOSURE operand's per-upvalue pairs
	SourcePath  string       // resolved path of the file this function was compiled from, for relative imports
}

// UpvalueRef records, for one upvalue slot of a Function, whether the
// compiler resolved it to a local of the immediately enclosing function
// or to that function's own upvalue list.
type UpvalueRef struct {
	FromParentLocal bool
	Index           int
}

func (f *Function) UpvalueCount() int { return f.UpvalueCnt }

func (f *Function) String() string {
	if f.Name == "" {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name)
}

// Closure pairs a Function with its captured upvalues — the value that
// actually gets called, pushed onto the stack and stored in variables.
type Closure struct {
	bytecode.Header
	Fn       *Function
	Upvalues []*Upvalue
}

func (c *Closure) String() string { return c.Fn.String() }

// NativeFunction wraps a Go function as a callable aria value (built-ins
// such as `clock` and the built-in-type methods, all installed by
// pkg/builtins). The VM treats it exactly like Closure at a call site except
// it invokes Fn directly instead of pushing a CallFrame.
type NativeFunction struct {
	bytecode.Header
	Name string
	Fn   func(vm *VM, args []bytecode.Value) (bytecode.Value, error)
}

func (n *NativeFunction) String() string { return fmt.Sprintf("<native fn %s>", n.Name) }

// Upvalue is either open (Location points into a live stack frame) or
// closed (Location points at Closed, a copy owned by the Upvalue itself,
// made when the frame that declared the local returns or the enclosing
// block scope exits).
type Upvalue struct {
	bytecode.Header
	Location   *bytecode.Value
	Closed     bytecode.Value
	StackIndex int // index into VM.stack this upvalue is open over; unused once closed
	Next       *Upvalue
}

func (u *Upvalue) String() string { return "<upvalue>" }

// Class is a class object: its name, optional superclass, and a method
// table (name -> Closure/NativeFunction, as Values) populated by
// MAKE_METHOD/MAKE_INIT_METHOD and, for a subclass, pre-seeded by
// INHERIT copying every entry of the superclass's table.
type Class struct {
	bytecode.Header
	Name       string
	Super      *Class
	Methods    *bytecode.ValueHashTable
	InitMethod bytecode.Value // Nil if the class defines no init
}

func (c *Class) String() string { return fmt.Sprintf("<class %s>", c.Name) }

// FindMethod looks up name on c, then walks the superclass chain.
func (c *Class) FindMethod(name *String) (bytecode.Value, bool) {
	for cls := c; cls != nil; cls = cls.Super {
		if v, ok := cls.Methods.Get(bytecode.FromObj(name)); ok {
			return v, true
		}
	}
	return bytecode.Nil, false
}

// Instance is an instance of a Class with its own field table.
type Instance struct {
	bytecode.Header
	Class  *Class
	Fields *bytecode.ValueHashTable
}

func (i *Instance) String() string { return fmt.Sprintf("<%s instance>", i.Class.Name) }

// BoundMethod pairs a receiver with a method closure, produced when a
// method is loaded (not invoked) off an instance — `list.append` without
// a trailing call, stored and called later.
type BoundMethod struct {
	bytecode.Header
	Receiver bytecode.Value
	Method   bytecode.Value // Closure or NativeFunction
}

func (b *BoundMethod) String() string { return "<bound method>" }

// List is aria's mutable array type.
type List struct {
	bytecode.Header
	Elems []bytecode.Value
}

func (l *List) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, e := range l.Elems {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(fmt.Sprint(e))
	}
	b.WriteByte(']')
	return b.String()
}

// Map is aria's hash-map type, backed directly by a ValueHashTable.
type Map struct {
	bytecode.Header
	Table *bytecode.ValueHashTable
}

func (m *Map) String() string { return "<map>" }

// Module is the result of a successful IMPORT: the module's top-level
// function already executed once, and the global-variable namespace it
// (and every function nested in it) shares. ID is a process-local
// identity independent of Path; String() prints its first eight hex
// digits after the path, so a module is identifiable in --trace stack
// dumps.
type Module struct {
	bytecode.Header
	Path    string
	Globals *bytecode.ValueHashTable
	ID      uuid.UUID
}

func (m *Module) String() string { return fmt.Sprintf("<module %s %s>", m.Path, m.ID.String()[:8]) }

// IteratorKind distinguishes the built-in iteration sources.
type IteratorKind uint8

const (
	IterList IteratorKind = iota
	IterMap
	IterString
)

// Iterator backs GET_ITER/ITER_HAS_NEXT/ITER_GET_NEXT. A List iterator
// walks by index; a Map iterator snapshots the live key/value pairs at
// creation time (spec 4.5: mutating a map during iteration over it is
// unspecified, so a snapshot is as valid a choice as any and is simplest
// to implement correctly); a String iterator walks runes.
type Iterator struct {
	bytecode.Header
	Kind    IteratorKind
	List    *List
	Pairs   []mapPair
	Runes   []rune
	Index   int
}

type mapPair struct {
	Key, Value bytecode.Value
}

func (it *Iterator) String() string { return "<iterator>" }

func (it *Iterator) HasNext() bool {
	switch it.Kind {
	case IterList:
		return it.Index < len(it.List.Elems)
	case IterMap:
		return it.Index < len(it.Pairs)
	case IterString:
		return it.Index < len(it.Runes)
	default:
		return false
	}
}

// Next returns the next iteration value: for a list/string iterator this
// is the element/rune itself; for a map iterator it's a 2-element List
// [key, value], matching aria's `for (var pair in map)` idiom.
func (it *Iterator) Next(h *Heap) bytecode.Value {
	switch it.Kind {
	case IterList:
		v := it.List.Elems[it.Index]
		it.Index++
		return v
	case IterMap:
		p := it.Pairs[it.Index]
		it.Index++
		pair := h.AllocateList([]bytecode.Value{p.Key, p.Value})
		return bytecode.FromObj(pair)
	case IterString:
		r := it.Runes[it.Index]
		it.Index++
		s := h.InternString(string(r))
		return bytecode.FromObj(s)
	default:
		return bytecode.Nil
	}
}
