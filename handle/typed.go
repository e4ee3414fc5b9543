package handle

import "github.com/dynvm-project/dynvm/value"

// Kind is implemented by the marker types used to parameterize the typed
// handle variants below (§4.F: "Handle<T>", "MutHandle<T>", ...). Each
// marker names the PublicType its handles are checked against.
type Kind interface {
	PublicType() value.PublicType
}

// Marker kinds for the built-in public types. Native code parameterizes
// Handle[T]/MutHandle[T]/etc. with one of these (or its own Kind) to get a
// checked, typed view over a Value.
type (
	AnyKind       struct{}
	StringKind    struct{}
	SymbolKind    struct{}
	ArrayKind     struct{}
	TupleKind     struct{}
	SetKind       struct{}
	MapKind       struct{}
	RecordKind    struct{}
	FunctionKind  struct{}
	CoroutineKind struct{}
	ExceptionKind struct{}
)

// AnyKind accepts any PublicType; try_cast to it never fails (§4.F:
// "Upcast conversions are permitted (T -> parent)").
func (AnyKind) PublicType() value.PublicType { return value.PublicInvalid }

func (StringKind) PublicType() value.PublicType    { return value.PublicString }
func (SymbolKind) PublicType() value.PublicType    { return value.PublicSymbol }
func (ArrayKind) PublicType() value.PublicType     { return value.PublicArray }
func (TupleKind) PublicType() value.PublicType     { return value.PublicTuple }
func (SetKind) PublicType() value.PublicType       { return value.PublicSet }
func (MapKind) PublicType() value.PublicType       { return value.PublicMap }
func (RecordKind) PublicType() value.PublicType    { return value.PublicRecord }
func (FunctionKind) PublicType() value.PublicType  { return value.PublicFunction }
func (CoroutineKind) PublicType() value.PublicType { return value.PublicCoroutine }
func (ExceptionKind) PublicType() value.PublicType { return value.PublicException }

func kindMatches[T Kind](reg *value.TypeRegistry, v value.Value) bool {
	var k T
	want := k.PublicType()
	if want == value.PublicInvalid {
		return true // AnyKind: upcast always permitted
	}
	return reg.TypeOf(v) == want
}

// Handle is a read-only typed view over a Value, backed by some underlying
// untyped handle (Local, *Global, ExternalHandle, or a raw Value).
type Handle[T Kind] struct {
	v value.Value
}

// TryCast attempts a checked downcast of v to Handle[T], per §4.F's
// try_cast.
func TryCast[T Kind](reg *value.TypeRegistry, v value.Value) (Handle[T], bool) {
	if !kindMatches[T](reg, v) {
		return Handle[T]{}, false
	}
	return Handle[T]{v: v}, true
}

// MustCast is TryCast but panics on mismatch, per §4.F's must_cast.
func MustCast[T Kind](reg *value.TypeRegistry, v value.Value) Handle[T] {
	h, ok := TryCast[T](reg, v)
	if !ok {
		panic("handle: must_cast type mismatch")
	}
	return h
}

// Get reads the underlying Value.
func (h Handle[T]) Get() value.Value { return h.v }

// Upcast reinterprets h as a handle to a less specific kind U; always
// succeeds (§4.F).
func Upcast[U Kind, T Kind](h Handle[T]) Handle[U] {
	return Handle[U]{v: h.v}
}

// MutHandle is a read/write typed view over a Value slot.
type MutHandle[T Kind] struct {
	slot *value.Value
}

// NewMutHandle wraps a slot pointer (typically &Local-backed storage) as a
// typed read/write handle, after checking its current contents.
func NewMutHandle[T Kind](reg *value.TypeRegistry, slot *value.Value) (MutHandle[T], bool) {
	if !kindMatches[T](reg, *slot) {
		return MutHandle[T]{}, false
	}
	return MutHandle[T]{slot: slot}, true
}

// Get reads the slot.
func (h MutHandle[T]) Get() value.Value { return *h.slot }

// Set writes the slot, after checking v matches T.
func (h MutHandle[T]) Set(reg *value.TypeRegistry, v value.Value) bool {
	if !kindMatches[T](reg, v) {
		return false
	}
	*h.slot = v
	return true
}

// OutHandle is a write-only typed view over a Value slot, used for output
// parameters native code fills in without reading the prior contents.
type OutHandle[T Kind] struct {
	slot *value.Value
}

// NewOutHandle wraps a slot pointer as a write-only typed handle.
func NewOutHandle[T Kind](slot *value.Value) OutHandle[T] {
	return OutHandle[T]{slot: slot}
}

// Set writes the slot, after checking v matches T.
func (h OutHandle[T]) Set(reg *value.TypeRegistry, v value.Value) bool {
	if !kindMatches[T](reg, v) {
		return false
	}
	*h.slot = v
	return true
}

// MaybeHandle is a nullable typed view: it additionally accepts Null.
type MaybeHandle[T Kind] struct {
	v     value.Value
	valid bool
}

// TryCastMaybe is TryCast but also accepts Null.
func TryCastMaybe[T Kind](reg *value.TypeRegistry, v value.Value) (MaybeHandle[T], bool) {
	if v.IsNull() {
		return MaybeHandle[T]{v: v, valid: true}, true
	}
	if !kindMatches[T](reg, v) {
		return MaybeHandle[T]{}, false
	}
	return MaybeHandle[T]{v: v, valid: true}, true
}

// IsNull reports whether the handle holds Null.
func (h MaybeHandle[T]) IsNull() bool { return h.v.IsNull() }

// Get reads the underlying Value (Null if IsNull()).
func (h MaybeHandle[T]) Get() value.Value { return h.v }
