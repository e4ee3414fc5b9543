package value

import (
	"encoding/binary"
	"math"

	"github.com/dynvm-project/dynvm/heap"
)

// ValueType enumerates the internal heap-value kinds (§3.4, §4.G). User code
// never observes this enum directly; it drives layout and tracing.
type ValueType uint8

const (
	TypeInvalid ValueType = iota
	TypeInternalType
	TypeHeapInteger
	TypeHeapFloat
	TypeStringObj
	TypeSymbolObj
	TypeArray
	TypeTuple
	TypeSet
	TypeMap
	TypeRecord
	TypeClosureEnv
	TypeFunction
	TypeCoroutine
	TypeException
	numValueTypes
)

// PublicType enumerates the type identities visible to user code via
// type_of(Value) (§4.G). Several ValueTypes collapse onto one PublicType
// (e.g. TypeArray/TypeTuple both expose container-ish public types, but are
// kept distinct here since they differ), while Null and embedded integers
// are never heap-resident ValueTypes at all — type_of dispatches on Value's
// category before ever consulting a Layout.
type PublicType uint8

const (
	PublicInvalid PublicType = iota
	PublicNull
	PublicBool
	PublicInteger
	PublicFloat
	PublicString
	PublicSymbol
	PublicArray
	PublicTuple
	PublicSet
	PublicMap
	PublicRecord
	PublicFunction
	PublicCoroutine
	PublicException
	numPublicTypes
)

func (p PublicType) String() string {
	names := [...]string{
		PublicInvalid:   "invalid",
		PublicNull:      "Null",
		PublicBool:      "Bool",
		PublicInteger:   "Integer",
		PublicFloat:     "Float",
		PublicString:    "String",
		PublicSymbol:    "Symbol",
		PublicArray:     "Array",
		PublicTuple:     "Tuple",
		PublicSet:       "Set",
		PublicMap:       "Map",
		PublicRecord:    "Record",
		PublicFunction:  "Function",
		PublicCoroutine: "Coroutine",
		PublicException: "Exception",
	}
	if int(p) < len(names) {
		return names[p]
	}
	return "unknown"
}

// Layout describes one ValueType's heap representation (§3.3, §4.G): a
// fixed run of Value-typed fields right after the header, an optional
// trailing dynamic array of Value (e.g. Array/Tuple elements), and an
// optional finalizer.
//
// This intentionally does not model InternalType as a literal self-hosted
// heap object pointed to by every header (the spec's "bootstrap by
// special-casing" footnote). A typeID ->
// Layout table gives the same observable behavior (type_of, field
// tracing, finalization) without a second bootstrap-only heap kind.
type Layout struct {
	Public PublicType
	Name   string

	// FixedFields is the number of Value-sized fields stored right after
	// the header, each traced unconditionally.
	FixedFields int

	// Dynamic, when true, means a Value-count field immediately follows
	// the fixed fields, followed by that many more traced Value fields
	// (e.g. Array/Tuple/Set/Map backing storage).
	Dynamic bool

	// Finalizer, if non-nil, runs exactly once on an object's raw bytes
	// (sans header) before its storage is reclaimed (§4.E.6).
	Finalizer func(body []byte)
}

const valueSize = 8 // bytes per Value slot, matches heap cell word width

func (l *Layout) fixedBytes() int { return l.FixedFields * valueSize }

// field reads the i'th fixed Value field from obj (including header).
func (l *Layout) field(obj []byte, i int) Value {
	off := heap.HeaderBytes + i*valueSize
	return Value(binary.LittleEndian.Uint64(obj[off : off+valueSize]))
}

func (l *Layout) setField(obj []byte, i int, v Value) {
	off := heap.HeaderBytes + i*valueSize
	binary.LittleEndian.PutUint64(obj[off:off+valueSize], uint64(v))
}

// dynLen reads the dynamic element count, valid only when l.Dynamic.
func (l *Layout) dynLen(obj []byte) int {
	off := heap.HeaderBytes + l.fixedBytes()
	return int(binary.LittleEndian.Uint64(obj[off : off+valueSize]))
}

func (l *Layout) setDynLen(obj []byte, n int) {
	off := heap.HeaderBytes + l.fixedBytes()
	binary.LittleEndian.PutUint64(obj[off:off+valueSize], uint64(n))
}

// dynField reads the i'th dynamic Value element, valid only when l.Dynamic.
func (l *Layout) dynField(obj []byte, i int) Value {
	off := heap.HeaderBytes + l.fixedBytes() + valueSize + i*valueSize
	return Value(binary.LittleEndian.Uint64(obj[off : off+valueSize]))
}

func (l *Layout) setDynField(obj []byte, i int, v Value) {
	off := heap.HeaderBytes + l.fixedBytes() + valueSize + i*valueSize
	binary.LittleEndian.PutUint64(obj[off:off+valueSize], uint64(v))
}

// BodySize returns the number of bytes (excluding the header) a value of
// this layout occupies given dynCount dynamic elements (ignored if the
// layout is not Dynamic).
func (l *Layout) BodySize(dynCount int) int {
	n := l.fixedBytes()
	if l.Dynamic {
		n += valueSize + dynCount*valueSize
	}
	return n
}

// TypeRegistry owns the ValueType -> Layout table and the parallel
// PublicType -> internal-back-pointer table described in §4.G, and
// implements heap.ObjectModel so the heap can trace/finalize through it
// without knowing concrete layouts.
type TypeRegistry struct {
	h       *heap.Heap
	layouts []*Layout // indexed by ValueType
}

// NewTypeRegistry builds the registry with the built-in layouts installed,
// and wires it into h as the heap's ObjectModel.
func NewTypeRegistry(h *heap.Heap) *TypeRegistry {
	r := &TypeRegistry{h: h, layouts: make([]*Layout, numValueTypes)}
	r.layouts[TypeInternalType] = &Layout{Public: PublicInvalid, Name: "InternalType", FixedFields: 0}
	r.layouts[TypeHeapInteger] = &Layout{Public: PublicInteger, Name: "HeapInteger", FixedFields: 0}
	r.layouts[TypeHeapFloat] = &Layout{Public: PublicFloat, Name: "HeapFloat", FixedFields: 0}
	r.layouts[TypeStringObj] = &Layout{Public: PublicString, Name: "String", FixedFields: 0}
	r.layouts[TypeSymbolObj] = &Layout{Public: PublicSymbol, Name: "Symbol", FixedFields: 0}
	r.layouts[TypeArray] = &Layout{Public: PublicArray, Name: "Array", Dynamic: true}
	r.layouts[TypeTuple] = &Layout{Public: PublicTuple, Name: "Tuple", Dynamic: true}
	r.layouts[TypeSet] = &Layout{Public: PublicSet, Name: "Set", Dynamic: true}
	r.layouts[TypeMap] = &Layout{Public: PublicMap, Name: "Map", Dynamic: true}
	r.layouts[TypeRecord] = &Layout{Public: PublicRecord, Name: "Record", Dynamic: true}
	r.layouts[TypeClosureEnv] = &Layout{Public: PublicInvalid, Name: "ClosureEnv", FixedFields: 1, Dynamic: true}
	r.layouts[TypeFunction] = &Layout{Public: PublicFunction, Name: "Function", FixedFields: 2}
	r.layouts[TypeCoroutine] = &Layout{Public: PublicCoroutine, Name: "Coroutine", FixedFields: 2}
	r.layouts[TypeException] = &Layout{Public: PublicException, Name: "Exception", FixedFields: 2}
	h.SetModel(r)
	return r
}

// SetFinalizer installs a finalizer for vt, to be run exactly once before
// storage reclaim (§4.E.6).
func (r *TypeRegistry) SetFinalizer(vt ValueType, fn func(body []byte)) {
	r.layouts[vt].Finalizer = fn
}

// Layout returns the layout registered for vt.
func (r *TypeRegistry) Layout(vt ValueType) *Layout { return r.layouts[vt] }

// Alloc allocates a heap value of kind vt with the given dynamic element
// count (0 for non-dynamic layouts) and returns its Value.
func (r *TypeRegistry) Alloc(vt ValueType, dynCount int) Value {
	l := r.layouts[vt]
	hasFinalizer := l.Finalizer != nil
	addr := r.h.Alloc(l.BodySize(dynCount), uint32(vt), hasFinalizer)
	if l.Dynamic {
		l.setDynLen(r.h.Object(addr), dynCount)
	}
	return FromAddr(addr)
}

// Field reads the i'th fixed field of a heap value.
func (r *TypeRegistry) Field(v Value, i int) Value {
	addr := v.Addr()
	vt := ValueType(r.h.TypeID(addr))
	return r.layouts[vt].field(r.h.Object(addr), i)
}

// SetField writes the i'th fixed field of a heap value.
func (r *TypeRegistry) SetField(v Value, i int, field Value) {
	addr := v.Addr()
	vt := ValueType(r.h.TypeID(addr))
	r.layouts[vt].setField(r.h.Object(addr), i, field)
}

// Len returns the dynamic element count of a dynamic-layout heap value.
func (r *TypeRegistry) Len(v Value) int {
	addr := v.Addr()
	vt := ValueType(r.h.TypeID(addr))
	return r.layouts[vt].dynLen(r.h.Object(addr))
}

// Elem reads the i'th dynamic element of a dynamic-layout heap value.
func (r *TypeRegistry) Elem(v Value, i int) Value {
	addr := v.Addr()
	vt := ValueType(r.h.TypeID(addr))
	return r.layouts[vt].dynField(r.h.Object(addr), i)
}

// SetElem writes the i'th dynamic element of a dynamic-layout heap value.
func (r *TypeRegistry) SetElem(v Value, i int, elem Value) {
	addr := v.Addr()
	vt := ValueType(r.h.TypeID(addr))
	r.layouts[vt].setDynField(r.h.Object(addr), i, elem)
}

// TypeOf implements §4.G's type_of(Value): dispatch on category first,
// only consulting the registry for heap values.
func (r *TypeRegistry) TypeOf(v Value) PublicType {
	switch {
	case v.IsNull():
		return PublicNull
	case v.IsInt():
		return PublicInteger
	default:
		vt := ValueType(r.h.TypeID(v.Addr()))
		return r.layouts[vt].Public
	}
}

// Trace implements heap.ObjectModel.
func (r *TypeRegistry) Trace(obj []byte, typeID uint32, visit func(heap.Addr)) {
	l := r.layouts[ValueType(typeID)]
	for i := 0; i < l.FixedFields; i++ {
		visitField(l.field(obj, i), visit)
	}
	if l.Dynamic {
		n := l.dynLen(obj)
		for i := 0; i < n; i++ {
			visitField(l.dynField(obj, i), visit)
		}
	}
}

func visitField(v Value, visit func(heap.Addr)) {
	if v.IsHeap() {
		visit(v.Addr())
	}
}

// AllocInt64 allocates a HeapInteger for an int64 that doesn't fit the
// embedded representation (§4.G: "Arithmetic on Integer ... allocates a
// HeapInteger" when it overflows the embedded range).
func (r *TypeRegistry) AllocInt64(i int64) Value {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(i))
	return r.allocRaw(TypeHeapInteger, buf[:])
}

// Int64Value reads back a HeapInteger's value.
func (r *TypeRegistry) Int64Value(v Value) int64 {
	return int64(binary.LittleEndian.Uint64(r.rawBody(v)))
}

// AllocFloat64 allocates a HeapFloat.
func (r *TypeRegistry) AllocFloat64(f float64) Value {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
	return r.allocRaw(TypeHeapFloat, buf[:])
}

// Float64Value reads back a HeapFloat's value.
func (r *TypeRegistry) Float64Value(v Value) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(r.rawBody(v)))
}

// AllocStringBytes allocates a String object holding a copy of data,
// length-prefixed the same way Layout.dynLen length-prefixes dynamic
// Value arrays, but over raw bytes instead of Value-sized slots.
func (r *TypeRegistry) AllocStringBytes(data []byte) Value {
	return r.allocLengthPrefixed(TypeStringObj, data)
}

// StringBytes reads back a String object's bytes.
func (r *TypeRegistry) StringBytes(v Value) []byte {
	return r.readLengthPrefixed(v)
}

// AllocSymbolBytes allocates a Symbol object holding a copy of data.
// Symbols are storage-identical to Strings (raw length-prefixed bytes);
// they stay a distinct ValueType because the language distinguishes their
// identity/interning semantics at a layer above this package.
func (r *TypeRegistry) AllocSymbolBytes(data []byte) Value {
	return r.allocLengthPrefixed(TypeSymbolObj, data)
}

// SymbolBytes reads back a Symbol object's bytes.
func (r *TypeRegistry) SymbolBytes(v Value) []byte {
	return r.readLengthPrefixed(v)
}

func (r *TypeRegistry) allocRaw(vt ValueType, raw []byte) Value {
	l := r.layouts[vt]
	addr := r.h.Alloc(len(raw), uint32(vt), l.Finalizer != nil)
	copy(r.h.Object(addr)[heap.HeaderBytes:], raw)
	return FromAddr(addr)
}

func (r *TypeRegistry) rawBody(v Value) []byte {
	return r.h.Object(v.Addr())[heap.HeaderBytes:]
}

func (r *TypeRegistry) allocLengthPrefixed(vt ValueType, data []byte) Value {
	l := r.layouts[vt]
	addr := r.h.Alloc(8+len(data), uint32(vt), l.Finalizer != nil)
	body := r.h.Object(addr)[heap.HeaderBytes:]
	binary.LittleEndian.PutUint64(body[:8], uint64(len(data)))
	copy(body[8:], data)
	return FromAddr(addr)
}

func (r *TypeRegistry) readLengthPrefixed(v Value) []byte {
	body := r.rawBody(v)
	n := binary.LittleEndian.Uint64(body[:8])
	return body[8 : 8+n]
}

// HasFinalizer implements heap.ObjectModel.
func (r *TypeRegistry) HasFinalizer(typeID uint32) bool {
	return r.layouts[ValueType(typeID)].Finalizer != nil
}

// Finalize implements heap.ObjectModel.
func (r *TypeRegistry) Finalize(obj []byte, typeID uint32) {
	l := r.layouts[ValueType(typeID)]
	if l.Finalizer != nil {
		l.Finalizer(obj[heap.HeaderBytes:])
	}
}
