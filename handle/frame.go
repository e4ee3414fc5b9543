package handle

import (
	"github.com/dynvm-project/dynvm/heap"
	"github.com/dynvm-project/dynvm/value"
)

// FrameCollection hands out variable-sized, dynamically-lifetime slot
// arrays to native code that needs a slot count unknown until call time
// (§4.F). Unlike Scope, a Frame's lifetime is independent of any Go stack
// discipline: callers Release it explicitly once done.
type FrameCollection struct {
	live map[*Frame]struct{}
}

// NewFrameCollection creates an empty collection.
func NewFrameCollection() *FrameCollection {
	return &FrameCollection{live: make(map[*Frame]struct{})}
}

// Frame is a dynamically sized span of rooted slots.
type Frame struct {
	owner *FrameCollection
	slots []value.Value
}

// New allocates a Frame of n slots, all initialized to value.Null.
func (c *FrameCollection) New(n int) *Frame {
	f := &Frame{owner: c, slots: make([]value.Value, n)}
	c.live[f] = struct{}{}
	return f
}

// Release returns the frame's storage; it must not be used afterward.
func (f *Frame) Release() {
	delete(f.owner.live, f)
}

// Len returns the number of slots in the frame.
func (f *Frame) Len() int { return len(f.slots) }

// Get reads slot i.
func (f *Frame) Get(i int) value.Value { return f.slots[i] }

// Set writes slot i.
func (f *Frame) Set(i int, v value.Value) { f.slots[i] = v }

// Span returns the frame's slots as a span handle ([]value.Value-backed
// read/write view), mirroring the source's span handle variants.
func (f *Frame) Span() Span { return Span{slots: f.slots} }

// WalkRoots implements heap.RootSource.
func (c *FrameCollection) WalkRoots(visit func(heap.Addr)) {
	for f := range c.live {
		for _, v := range f.slots {
			if v.IsHeap() {
				visit(v.Addr())
			}
		}
	}
}

// Span is a read/write view over a contiguous run of slots, used by native
// code that wants slice-like access without knowing the backing store.
type Span struct {
	slots []value.Value
}

// Len returns the span's length.
func (s Span) Len() int { return len(s.slots) }

// Get reads element i.
func (s Span) Get(i int) value.Value { return s.slots[i] }

// Set writes element i.
func (s Span) Set(i int, v value.Value) { s.slots[i] = v }

// Sub returns the sub-span [lo:hi).
func (s Span) Sub(lo, hi int) Span { return Span{slots: s.slots[lo:hi]} }
