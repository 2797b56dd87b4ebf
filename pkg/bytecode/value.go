// Package bytecode defines aria's value representation and compiled
// bytecode unit (Chunk), the layer the scanner/parser/compiler and the
// VM both sit on top of.
//
// Value representation:
//
// The original aria runtime (the C++ implementation this package's
// semantics are ported from) represents every value as a single 64-bit
// NaN-boxed word: any non-canonical-NaN bit pattern is a float64, and a
// canonical quiet-NaN with the sign bit set holds a 48-bit object
// pointer, while a clear sign bit and one of three low tag bits holds
// nil/true/false (see the design note in the language spec, section 9:
// "the NaN-tagging representation is an optional optimisation and must
// be documented as one"). Packing a live Go pointer into the bit pattern
// of a uint64 is exactly the kind of unsafe trick Go's own garbage
// collector cannot see through — it would hide the pointer from Go's
// scanner, and our own collector (pkg/vm) relies on Go's allocator and
// GC to back it, not on raw memory. Value here is therefore the safe
// rendition of the same idea: a small tagged struct carrying either the
// bit pattern of a float64/bool or a plain Go pointer to a heap object.
// It keeps the NaN-boxed design's spirit (one value type passed by value,
// one fast path for numbers, no boxing of primitives) without its
// unsafety, at the cost of spanning several machine words instead of one.
package bytecode

import "math"

// ValueTag identifies which alternative of the Value union is populated.
type ValueTag uint8

const (
	TagNil ValueTag = iota
	TagBool
	TagNumber
	TagObj
)

// ObjKind identifies the concrete heap object kind behind an Obj.
type ObjKind uint8

const (
	KindString ObjKind = iota
	KindFunction
	KindNative
	KindUpvalue
	KindClass
	KindInstance
	KindBoundMethod
	KindList
	KindMap
	KindModule
	KindIterator
)

func (k ObjKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindFunction:
		return "function"
	case KindNative:
		return "native function"
	case KindUpvalue:
		return "upvalue"
	case KindClass:
		return "class"
	case KindInstance:
		return "instance"
	case KindBoundMethod:
		return "bound method"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindModule:
		return "module"
	case KindIterator:
		return "iterator"
	default:
		return "object"
	}
}

// Obj is implemented by every heap object kind (pkg/vm's String,
// Function, NativeFunction, Upvalue, Class, Instance, BoundMethod, List,
// Map, Module, Iterator). Header, embedded by every concrete type,
// supplies the implementation.
type Obj interface {
	ObjKind() ObjKind
	ObjHash() uint32
}

// Header is the common heap-object prologue: kind tag, mark bit (used by
// the mark-sweep collector), a hash computed once at construction, and
// the intrusive next-object link the collector's sweep list threads
// through. Every concrete object type embeds Header by value.
type Header struct {
	Kind    ObjKind
	Marked  bool
	Hash    uint32
	NextObj Obj
}

func (h *Header) ObjKind() ObjKind { return h.Kind }
func (h *Header) ObjHash() uint32  { return h.Hash }

// IsMarked, SetMarked, NextObjPtr and SetNextObj are promoted by every
// concrete object type (vm package) so the collector can walk and mark
// the sweep chain through nothing but the bytecode.Obj interface plus a
// small local interface asserting these methods — see pkg/vm/heap.go.
func (h *Header) IsMarked() bool          { return h.Marked }
func (h *Header) SetMarked(m bool)        { h.Marked = m }
func (h *Header) NextObjPtr() Obj         { return h.NextObj }
func (h *Header) SetNextObj(o Obj)        { h.NextObj = o }

// MarkIfUnmarked marks h and reports whether it was previously unmarked
// — the collector's "add to grey worklist only once" check.
func (h *Header) MarkIfUnmarked() bool {
	if h.Marked {
		return false
	}
	h.Marked = true
	return true
}

// Value is aria's uniform value type: number, boolean, nil, or a pointer
// to a heap object.
type Value struct {
	tag ValueTag
	num uint64 // float64 bits, or 0/1 for a boolean
	obj Obj
}

var Nil = Value{tag: TagNil}
var True = Value{tag: TagBool, num: 1}
var False = Value{tag: TagBool, num: 0}

func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

func Number(f float64) Value {
	return Value{tag: TagNumber, num: math.Float64bits(f)}
}

func FromObj(o Obj) Value {
	return Value{tag: TagObj, obj: o}
}

func (v Value) IsNil() bool    { return v.tag == TagNil }
func (v Value) IsBool() bool   { return v.tag == TagBool }
func (v Value) IsNumber() bool { return v.tag == TagNumber }
func (v Value) IsObj() bool    { return v.tag == TagObj }

func (v Value) AsBool() bool      { return v.num != 0 }
func (v Value) AsNumber() float64 { return math.Float64frombits(v.num) }
func (v Value) AsObj() Obj        { return v.obj }

// IsObjKind reports whether v holds an object of the given kind.
func (v Value) IsObjKind(k ObjKind) bool {
	return v.tag == TagObj && v.obj != nil && v.obj.ObjKind() == k
}

// Truthy implements aria's truthiness: nil and false are falsey,
// everything else — including 0 and the empty string — is truthy.
func (v Value) Truthy() bool {
	switch v.tag {
	case TagNil:
		return false
	case TagBool:
		return v.num != 0
	default:
		return true
	}
}

// Equal implements the EQUAL opcode: numeric equality for numbers
// (including -0 == +0, which falls out of float equality directly) and
// identity otherwise. Deep equality for list/map/instance is a separate
// built-in ("equals"), not this operator — see spec section 4.4/9.
func Equal(a, b Value) bool {
	if a.tag != b.tag {
		return false
	}
	switch a.tag {
	case TagNil:
		return true
	case TagBool:
		return a.num == b.num
	case TagNumber:
		return a.AsNumber() == b.AsNumber()
	case TagObj:
		return a.obj == b.obj
	default:
		return false
	}
}

// Hash mixes a value to a 32-bit hash for use as a ValueHashTable key.
// Numbers hash by bit pattern; booleans and nil get fixed hashes;
// objects reuse their precomputed Header.Hash.
func Hash(v Value) uint32 {
	switch v.tag {
	case TagNil:
		return 0x9e3779b1
	case TagBool:
		if v.num != 0 {
			return 0x9e3779b9
		}
		return 0x85ebca6b
	case TagNumber:
		return mixHash64(v.num)
	case TagObj:
		if v.obj == nil {
			return 0
		}
		return v.obj.ObjHash()
	default:
		return 0
	}
}

// mixHash64 is a 64->32 bit avalanche mix (MurmurHash3's fmix64 finalizer),
// used to hash raw number bit patterns.
func mixHash64(x uint64) uint32 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return uint32(x) ^ uint32(x>>32)
}

// HashBytes implements FNV-1a, used to hash string contents once at
// string-construction time (so interning can compare by hash before
// comparing bytes).
func HashBytes(b []byte) uint32 {
	var h uint32 = 2166136261
	for _, c := range b {
		h ^= uint32(c)
		h *= 16777619
	}
	return h
}
