// Package value implements nua's data model: the tagged Value union,
// heap object headers the collector walks, interned strings, tables, and
// functions, per spec.md §3.
package value

import (
	"math"
	"unsafe"

	"nua/internal/bytecode"
	"nua/internal/container"
)

// Kind tags a Value's payload, matching spec.md §3's value set.
type Kind byte

const (
	KNil Kind = iota
	KNumber
	KString
	KFunction
	KTable
)

func (k Kind) String() string {
	switch k {
	case KNil:
		return "nil"
	case KNumber:
		return "number"
	case KString:
		return "string"
	case KFunction:
		return "function"
	case KTable:
		return "table"
	default:
		return "?unknown?"
	}
}

// Value is nua's tagged union. A zero Value is Nil, per spec.md §3's
// zero-initialization invariant.
type Value struct {
	Kind Kind
	Num  float64
	Str  *String
	Func *Function
	Tab  *Table
}

func Nil() Value                     { return Value{} }
func Number(n float64) Value         { return Value{Kind: KNumber, Num: n} }
func FromString(s *String) Value     { return Value{Kind: KString, Str: s} }
func FromFunction(f *Function) Value { return Value{Kind: KFunction, Func: f} }
func FromTable(t *Table) Value       { return Value{Kind: KTable, Tab: t} }

func (v Value) IsNil() bool { return v.Kind == KNil }

// Truthy implements spec.md §4.3's COVER semantics: only Nil is false,
// every other value (including the number 0) is truthy.
func (v Value) Truthy() bool { return v.Kind != KNil }

// nilHashSentinel is the nonzero hash spec.md §3 requires for Nil and
// untagged slots ("Nil ... hash to a nonzero sentinel").
const nilHashSentinel = 0x9e3779b97f4a7c15

// Hash implements spec.md §3's hashing rule: identity for reference
// kinds, numeric equality for Number, a fixed nonzero sentinel for Nil.
func Hash(v Value) uint64 {
	var h uint64
	switch v.Kind {
	case KNumber:
		h = math.Float64bits(v.Num)
	case KString:
		h = uint64(uintptr(unsafe.Pointer(v.Str)))
	case KTable:
		h = uint64(uintptr(unsafe.Pointer(v.Tab)))
	case KFunction:
		h = uint64(uintptr(unsafe.Pointer(v.Func)))
	default:
		return nilHashSentinel
	}
	if h == 0 {
		return 1
	}
	return h
}

// Equal implements spec.md §3's equality rule: identity for reference
// kinds, numeric equality for Number.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KNumber:
		return a.Num == b.Num
	case KString:
		return a.Str == b.Str
	case KTable:
		return a.Tab == b.Tab
	case KFunction:
		return a.Func == b.Func
	default:
		return true // both Nil
	}
}

// Header is the intrusive GC link every heap object embeds: next pointer
// in the single global object list, a type tag, and a mark colour.
// Grounded on original_source/gc_types.h's mem_block.
type Header struct {
	Next   *Header
	Tag    ObjKind
	Colour byte
}

// ObjKind tags what kind of heap object a Header belongs to, mirroring
// original_source/gc_types.h's gc_mem_type enum (GC_FLAT/GC_TAB/GC_FUNC/GC_FUNCDEF).
type ObjKind byte

const (
	ObjString ObjKind = iota
	ObjTable
	ObjFunction
	ObjFuncDef
)

// String is an interned, immutable byte sequence.
type String struct {
	Header
	Bytes []byte
}

func (s *String) String() string { return string(s.Bytes) }

// Table is spec.md §3/§4.5's dual array+hash table.
type Table struct {
	Header
	Seq  *container.Array[Value]
	Hash *container.HashMap[Value, Value]
}

func NewTable() *Table {
	return &Table{
		Seq:  container.NewArray[Value](0),
		Hash: container.NewHashMap[Value, Value](Hash, Equal),
	}
}

// NewTableSized presizes the hash part to hold hashHint entries and the
// sequence part to a power-of-two capacity derived from seqHint, per
// spec.md §4.3's TAB instruction semantics.
func NewTableSized(hashHint, seqHint int) *Table {
	t := NewTable()
	if hashHint > 0 {
		t.Hash.Reserve(hashHint)
	}
	if seqHint > 0 {
		cap := nextPowerOfTwo(seqHint)
		t.Seq = container.NewArray[Value](cap)
	}
	return t
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func isPositiveInt(v Value) (int, bool) {
	if v.Kind != KNumber {
		return 0, false
	}
	if v.Num != math.Trunc(v.Num) || v.Num <= 0 {
		return 0, false
	}
	return int(v.Num), true
}

// Get implements spec.md §4.5's tab_get: sequence fast path for a
// positive-integer key within range, hash lookup otherwise.
func (t *Table) Get(k Value) Value {
	if n, ok := isPositiveInt(k); ok && n <= t.Seq.Len() {
		return t.Seq.Get(n - 1)
	}
	if v, ok := t.Hash.Get(k); ok {
		return v
	}
	return Nil()
}

// Set implements spec.md §4.5's tab_set: append when the key equals
// len(sequence)+1, overwrite in place when already within the sequence,
// hash-store otherwise.
func (t *Table) Set(k Value, v Value) {
	if n, ok := isPositiveInt(k); ok {
		if n == t.Seq.Len()+1 {
			t.Seq.Push(v)
			return
		}
		if n <= t.Seq.Len() {
			t.Seq.Set(n-1, v)
			return
		}
	}
	t.Hash.Set(k, v)
}

// Push implements tab_push: unconditional sequence append.
func (t *Table) Push(v Value) {
	t.Seq.Push(v)
}

// Len reports the sequence length (spec.md's `len(sequence)`), used by
// the standard environment's len() builtin.
func (t *Table) Len() int {
	return t.Seq.Len()
}

// Clone copies both parts of a table into a new Table. The copy is not
// linked onto a collector's object list.
func (t *Table) Clone() *Table {
	return &Table{
		Seq:  t.Seq.Clone(),
		Hash: t.Hash.Clone(),
	}
}

// FuncKind distinguishes a bytecode function from a native (host) one.
type FuncKind byte

const (
	FuncNua FuncKind = iota
	FuncNative
)

// NativeFunc is a host-callable function bound into the environment
// table (spec.md §6's "native function that writes ... to standard
// output" and friends). It receives the call's arguments and returns the
// call's results; the VM pads/truncates to the requested arity.
type NativeFunc func(args []Value) []Value

// Function is either a bytecode closure (a FuncDef plus a captured
// environment table) or a native function, per spec.md §3.
type Function struct {
	Header
	Kind   FuncKind
	Def    *FuncDef
	Env    *Table
	Native NativeFunc
}

// FuncDef is an immutable-after-compilation function definition, per
// spec.md §3: instructions, literal pool, register/parameter counts,
// and per-instruction debug metadata.
type FuncDef struct {
	Header
	Instructions *container.Array[bytecode.Instruction]
	Literals     *container.Array[Value]
	Lines        *container.Array[int]
	GCHeight     *container.Array[int]
	MaxReg       int
	NumParams    int
	File         string
}

func NewFuncDef(file string) *FuncDef {
	return &FuncDef{
		Instructions: container.NewArray[bytecode.Instruction](16),
		Literals:     container.NewArray[Value](4),
		Lines:        container.NewArray[int](16),
		GCHeight:     container.NewArray[int](16),
		File:         file,
	}
}
