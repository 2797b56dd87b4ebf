package vm

import (
	"github.com/google/uuid"

	"github.com/deeplakee/aria/pkg/bytecode"
)

// gcObj is the subset of methods every concrete heap object promotes
// from its embedded bytecode.Header, letting the collector walk and
// mark the sweep chain through the bytecode.Obj interface alone.
type gcObj interface {
	bytecode.Obj
	IsMarked() bool
	SetMarked(bool)
	NextObjPtr() bytecode.Obj
	SetNextObj(bytecode.Obj)
	MarkIfUnmarked() bool
}

// approxSize estimates an object's Go-side footprint for the
// bytesAllocated/nextGC accounting (spec 4.6). It doesn't need to be
// exact — Go's own allocator and GC do the real memory management; this
// number only drives when our logical mark-sweep pass runs and what
// --gc-trace reports, mirroring the original's sizeof(T) bookkeeping.
func approxSize(k bytecode.ObjKind) int {
	switch k {
	case bytecode.KindString:
		return 32
	case bytecode.KindList, bytecode.KindMap, bytecode.KindInstance:
		return 48
	default:
		return 40
	}
}

const initialNextGC = 1024 * 1024

// GCHeapGrowFactor matches the original runtime's GC_HEAP_GROW_FACTOR:
// after a collection, the next one is due once live bytes double.
const GCHeapGrowFactor = 2

// Heap owns every live aria object: allocation, the string intern pool,
// the mark-sweep collector's bookkeeping (grey worklist, objList sweep
// chain, byte accounting) and the GC's own re-entrancy lock. Root
// discovery — what counts as reachable — is the VM's job (vm_gc.go);
// Heap only knows how to walk from a root once handed one.
type Heap struct {
	objList       bytecode.Obj
	bytesAllocated int
	nextGC        int
	grey          []bytecode.Obj
	strings       map[string]*String
	cache         []bytecode.Value // unused: see Cache's doc comment
	locked        bool
	nextIdentityID uint32
	collectNeeded bool
	StressGC      bool
}

// NewHeap returns an empty heap.
func NewHeap() *Heap {
	return &Heap{
		nextGC:  initialNextGC,
		strings: make(map[string]*String),
	}
}

func (h *Heap) nextIdentity() uint32 {
	h.nextIdentityID++
	return h.nextIdentityID
}

// Cache and ReleaseCache mirror the original collector's temporary-cache
// stack, which protected an in-construction object from being swept if a
// nested allocation triggered a collection mid-construction. That hazard
// doesn't exist here: maybeCollect only ever sets collectNeeded, and an
// actual collectGarbage only runs when the VM polls CollectionDue at an
// opcode boundary (vm.go), never synchronously inside an Allocate* call.
// No allocation site is ever re-entered by a collection, so nothing
// currently needs caching; the stack itself stays unused and unmarked by
// collectGarbage.
func (h *Heap) Cache(v bytecode.Value) { h.cache = append(h.cache, v) }

// ReleaseCache pops n entries pushed by Cache.
func (h *Heap) ReleaseCache(n int) { h.cache = h.cache[:len(h.cache)-n] }

// ---- allocation ----

// InternString returns the canonical String object for s, allocating one
// the first time s is seen. Every aria string value used as a map key or
// compared with == goes through here, so identity comparison is
// equivalent to content comparison for strings.
func (h *Heap) InternString(s string) *String {
	if existing, ok := h.strings[s]; ok {
		return existing
	}
	str := &String{Chars: s}
	str.Header.Kind = bytecode.KindString
	str.Header.Hash = bytecode.HashBytes([]byte(s))
	str.Header.NextObj = h.objList
	h.objList = str
	h.bytesAllocated += approxSize(bytecode.KindString) + len(s)
	h.strings[s] = str
	h.maybeCollect()
	return str
}

func (h *Heap) AllocateFunction(name string, chunk *bytecode.Chunk, arity int, varargs bool, upvalues []UpvalueRef) *Function {
	fn := &Function{Name: name, Chunk: chunk, Arity: arity, Varargs: varargs, UpvalueCnt: len(upvalues), UpvalueInfo: upvalues}
	fn.Header.Kind = bytecode.KindFunction
	fn.Header.Hash = h.nextIdentity()
	fn.Header.NextObj = h.objList
	h.objList = fn
	h.bytesAllocated += approxSize(bytecode.KindFunction)
	h.maybeCollect()
	return fn
}

func (h *Heap) AllocateClosure(fn *Function) *Closure {
	cl := &Closure{Fn: fn, Upvalues: make([]*Upvalue, fn.UpvalueCnt)}
	cl.Header.Kind = bytecode.KindFunction
	cl.Header.Hash = h.nextIdentity()
	cl.Header.NextObj = h.objList
	h.objList = cl
	h.bytesAllocated += approxSize(bytecode.KindFunction)
	h.maybeCollect()
	return cl
}

func (h *Heap) AllocateNative(name string, fn func(vm *VM, args []bytecode.Value) (bytecode.Value, error)) *NativeFunction {
	n := &NativeFunction{Name: name, Fn: fn}
	n.Header.Kind = bytecode.KindNative
	n.Header.Hash = h.nextIdentity()
	n.Header.NextObj = h.objList
	h.objList = n
	h.bytesAllocated += approxSize(bytecode.KindNative)
	return n
}

func (h *Heap) AllocateUpvalue(loc *bytecode.Value) *Upvalue {
	uv := &Upvalue{Location: loc}
	uv.Header.Kind = bytecode.KindUpvalue
	uv.Header.Hash = h.nextIdentity()
	uv.Header.NextObj = h.objList
	h.objList = uv
	h.bytesAllocated += approxSize(bytecode.KindUpvalue)
	h.maybeCollect()
	return uv
}

func (h *Heap) AllocateClass(name string, super *Class) *Class {
	c := &Class{Name: name, Super: super, Methods: bytecode.NewValueHashTable()}
	c.InitMethod = bytecode.Nil
	if super != nil {
		c.Methods.CopyFrom(super.Methods)
	}
	c.Header.Kind = bytecode.KindClass
	c.Header.Hash = h.nextIdentity()
	c.Header.NextObj = h.objList
	h.objList = c
	h.bytesAllocated += approxSize(bytecode.KindClass)
	h.maybeCollect()
	return c
}

func (h *Heap) AllocateInstance(class *Class) *Instance {
	inst := &Instance{Class: class, Fields: bytecode.NewValueHashTable()}
	inst.Header.Kind = bytecode.KindInstance
	inst.Header.Hash = h.nextIdentity()
	inst.Header.NextObj = h.objList
	h.objList = inst
	h.bytesAllocated += approxSize(bytecode.KindInstance)
	h.maybeCollect()
	return inst
}

func (h *Heap) AllocateBoundMethod(receiver, method bytecode.Value) *BoundMethod {
	b := &BoundMethod{Receiver: receiver, Method: method}
	b.Header.Kind = bytecode.KindBoundMethod
	b.Header.Hash = h.nextIdentity()
	b.Header.NextObj = h.objList
	h.objList = b
	h.bytesAllocated += approxSize(bytecode.KindBoundMethod)
	h.maybeCollect()
	return b
}

func (h *Heap) AllocateList(elems []bytecode.Value) *List {
	l := &List{Elems: elems}
	l.Header.Kind = bytecode.KindList
	l.Header.Hash = h.nextIdentity()
	l.Header.NextObj = h.objList
	h.objList = l
	h.bytesAllocated += approxSize(bytecode.KindList)
	h.maybeCollect()
	return l
}

func (h *Heap) AllocateMap() *Map {
	m := &Map{Table: bytecode.NewValueHashTable()}
	m.Header.Kind = bytecode.KindMap
	m.Header.Hash = h.nextIdentity()
	m.Header.NextObj = h.objList
	h.objList = m
	h.bytesAllocated += approxSize(bytecode.KindMap)
	h.maybeCollect()
	return m
}

func (h *Heap) AllocateModule(path string, globals *bytecode.ValueHashTable) *Module {
	m := &Module{Path: path, Globals: globals, ID: uuid.New()}
	m.Header.Kind = bytecode.KindModule
	m.Header.Hash = h.nextIdentity()
	m.Header.NextObj = h.objList
	h.objList = m
	h.bytesAllocated += approxSize(bytecode.KindModule)
	h.maybeCollect()
	return m
}

func (h *Heap) AllocateListIterator(l *List) *Iterator {
	it := &Iterator{Kind: IterList, List: l}
	it.Header.Kind = bytecode.KindIterator
	it.Header.Hash = h.nextIdentity()
	it.Header.NextObj = h.objList
	h.objList = it
	return it
}

func (h *Heap) AllocateMapIterator(m *Map) *Iterator {
	pairs := make([]mapPair, 0, m.Table.Len())
	m.Table.Each(func(k, v bytecode.Value) { pairs = append(pairs, mapPair{k, v}) })
	it := &Iterator{Kind: IterMap, Pairs: pairs}
	it.Header.Kind = bytecode.KindIterator
	it.Header.Hash = h.nextIdentity()
	it.Header.NextObj = h.objList
	h.objList = it
	return it
}

func (h *Heap) AllocateStringIterator(s string) *Iterator {
	it := &Iterator{Kind: IterString, Runes: []rune(s)}
	it.Header.Kind = bytecode.KindIterator
	it.Header.Hash = h.nextIdentity()
	it.Header.NextObj = h.objList
	h.objList = it
	return it
}

// ---- mark-sweep mechanics ----

func (h *Heap) maybeCollect() {
	if h.locked {
		return
	}
	if h.StressGC || h.bytesAllocated > h.nextGC {
		h.collectNeeded = true
	}
}

// CollectionDue reports (and clears) whether an allocation since the
// last check crossed the GC threshold. The VM polls this before
// dispatching each opcode and runs collectGarbage (vm_gc.go) itself,
// since only the VM knows the full root set.
func (h *Heap) CollectionDue() bool {
	due := h.collectNeeded
	h.collectNeeded = false
	return due
}

// Lock/Unlock implement the GC re-entrancy guard (spec 4.6): a
// collection triggered while marking roots must not recurse.
func (h *Heap) Lock()        { h.locked = true }
func (h *Heap) Unlock()      { h.locked = false }
func (h *Heap) Locked() bool { return h.locked }

// MarkValue marks v's object, if it holds one, adding it to the grey
// worklist the first time it's seen.
func (h *Heap) MarkValue(v bytecode.Value) {
	if v.IsObj() && v.AsObj() != nil {
		h.MarkObject(v.AsObj())
	}
}

// MarkObject marks o grey (enqueues it for reference tracing) the first
// time it's reached; already-marked objects are skipped, so cycles
// terminate.
func (h *Heap) MarkObject(o bytecode.Obj) {
	if o == nil {
		return
	}
	gco, ok := o.(gcObj)
	if !ok {
		return
	}
	if gco.MarkIfUnmarked() {
		h.grey = append(h.grey, o)
	}
}

// TraceReferences drains the grey worklist, blackening each object by
// marking everything it points to.
func (h *Heap) TraceReferences() {
	for len(h.grey) > 0 {
		o := h.grey[len(h.grey)-1]
		h.grey = h.grey[:len(h.grey)-1]
		h.blacken(o)
	}
}

func (h *Heap) blacken(o bytecode.Obj) {
	switch obj := o.(type) {
	case *Closure:
		h.MarkObject(obj.Fn)
		for _, uv := range obj.Upvalues {
			if uv != nil {
				h.MarkObject(uv)
			}
		}
	case *Function:
		for _, v := range obj.Chunk.Constants {
			h.MarkValue(v)
		}
	case *Upvalue:
		h.MarkValue(*obj.Location)
		h.MarkValue(obj.Closed)
	case *Class:
		obj.Methods.Mark(h.MarkValue)
		h.MarkValue(obj.InitMethod)
		if obj.Super != nil {
			h.MarkObject(obj.Super)
		}
	case *Instance:
		h.MarkObject(obj.Class)
		obj.Fields.Mark(h.MarkValue)
	case *BoundMethod:
		h.MarkValue(obj.Receiver)
		h.MarkValue(obj.Method)
	case *List:
		for _, v := range obj.Elems {
			h.MarkValue(v)
		}
	case *Map:
		obj.Table.Mark(h.MarkValue)
	case *Module:
		obj.Globals.Mark(h.MarkValue)
	case *Iterator:
		if obj.List != nil {
			h.MarkObject(obj.List)
		}
		for _, p := range obj.Pairs {
			h.MarkValue(p.Key)
			h.MarkValue(p.Value)
		}
	case *String, *NativeFunction:
		// no outgoing references
	}
}

// Sweep walks the intrusive object chain, unlinking and "freeing" (Go's
// own GC reclaims the memory once nothing references it — Sweep only
// drops our bookkeeping) every object that wasn't marked, and purges
// dead entries from the string intern pool. Must run after
// TraceReferences has blackened every reachable object.
func (h *Heap) Sweep() {
	var prev gcObj
	cur, _ := h.objList.(gcObj)
	for cur != nil {
		nextObj := cur.NextObjPtr()
		next, _ := nextObj.(gcObj)
		if cur.IsMarked() {
			cur.SetMarked(false)
			prev = cur
		} else {
			if prev != nil {
				prev.SetNextObj(nextObj)
			} else {
				h.objList = nextObj
			}
			h.bytesAllocated -= approxSize(cur.ObjKind())
		}
		cur = next
	}
	for k, s := range h.strings {
		if !s.Header.Marked {
			delete(h.strings, k)
		} else {
			s.Header.Marked = false
		}
	}
	if h.bytesAllocated < 0 {
		h.bytesAllocated = 0
	}
	h.nextGC = h.bytesAllocated * GCHeapGrowFactor
	if h.nextGC < initialNextGC {
		h.nextGC = initialNextGC
	}
}

// BytesAllocated and NextGC expose the collector's current bookkeeping
// for --gc-trace diagnostics.
func (h *Heap) BytesAllocated() int { return h.bytesAllocated }
func (h *Heap) NextGC() int         { return h.nextGC }
