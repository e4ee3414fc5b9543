// Package value implements the runtime value model (spec component G): a
// tagged, pointer-sized Value, the embedded small-integer representation,
// and the internal/public type split that sits on top of package heap.
package value

import "github.com/dynvm-project/dynvm/heap"

// Value is a single pointer-sized tagged word (§3.4).
//
// Bit 0 set means an embedded 63-bit signed integer, shifted left by one.
// Bit 0 clear means either Null (the all-zero value) or a heap reference,
// encoded via heap.Addr.Raw/AddrFromRaw.
type Value uint64

// Null is the value representing the language's null.
const Null Value = 0

// MinEmbeddedInt and MaxEmbeddedInt bound the 63-bit signed range that fits
// in an embedded integer without heap allocation.
const (
	MinEmbeddedInt = -(int64(1) << 62)
	MaxEmbeddedInt = int64(1)<<62 - 1
)

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v == Null }

// IsInt reports whether v is an embedded integer.
func (v Value) IsInt() bool { return v&1 == 1 }

// IsHeap reports whether v is a non-null heap reference.
func (v Value) IsHeap() bool { return v != Null && v&1 == 0 }

// FitsEmbedded reports whether i can be represented without heap
// allocation.
func FitsEmbedded(i int64) bool {
	return i >= MinEmbeddedInt && i <= MaxEmbeddedInt
}

// FromInt64 embeds i directly into a Value. Callers must check
// FitsEmbedded first (or allocate a HeapInteger via the type registry when
// it does not fit) — mirrors §3.4/§4.G: "Arithmetic on Integer either uses
// the embedded representation if it fits, or allocates a HeapInteger."
func FromInt64(i int64) Value {
	return Value(uint64(i)<<1 | 1)
}

// Int64 extracts the embedded integer. Only valid when IsInt() is true.
func (v Value) Int64() int64 {
	return int64(v) >> 1
}

// FromAddr wraps a heap reference as a Value. Passing heap.Nil yields Null.
func FromAddr(a heap.Addr) Value {
	return Value(a.Raw())
}

// Addr extracts the heap reference from v. Only valid when IsHeap() is
// true (or v is Null, in which case it returns heap.Nil).
func (v Value) Addr() heap.Addr {
	return heap.AddrFromRaw(uint64(v))
}

// Booleans have no Value encoding of their own: true and false are the
// embedded integers 1 and 0, so TypeOf reports them as PublicInteger and
// never as PublicBool. Null is the zero Value.
