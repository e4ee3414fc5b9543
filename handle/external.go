package handle

import (
	"math/bits"

	"github.com/dynvm-project/dynvm/heap"
	"github.com/dynvm-project/dynvm/value"
)

const externalPageSlots = 64 // one bit per slot fits a single uint64 liveness word

// externalPage is a fixed-size page of slots plus a liveness bitmap, the
// External-store analogue of a Page's block bitmap in package heap.
type externalPage struct {
	slots [externalPageSlots]value.Value
	live  uint64 // bit i set -> slots[i] is allocated
}

func (p *externalPage) full() bool {
	return p.live == ^uint64(0)
}

// alloc finds a clear bit, sets it, and returns the slot index, or -1 if
// the page is full.
func (p *externalPage) alloc() int {
	free := ^p.live
	if free == 0 {
		return -1
	}
	i := bits.TrailingZeros64(free)
	p.live |= uint64(1) << uint(i)
	return i
}

func (p *externalPage) free(i int) {
	p.live &^= uint64(1) << uint(i)
}

// External is an allocator-backed slot store with per-slot allocate/free,
// used to back C-API-style handles whose lifetime is managed explicitly by
// host code rather than scoped to a Go stack frame (§4.F).
type External struct {
	pages []*externalPage
}

// NewExternal creates an empty external slot store.
func NewExternal() *External {
	return &External{}
}

// ExternalHandle identifies one allocated slot.
type ExternalHandle struct {
	store *External
	page  int
	idx   int
}

// Alloc reserves a slot initialized to v and returns a handle to it.
func (e *External) Alloc(v value.Value) ExternalHandle {
	for pi, p := range e.pages {
		if i := p.alloc(); i >= 0 {
			p.slots[i] = v
			return ExternalHandle{store: e, page: pi, idx: i}
		}
	}
	p := &externalPage{}
	i := p.alloc()
	e.pages = append(e.pages, p)
	p.slots[i] = v
	return ExternalHandle{store: e, page: len(e.pages) - 1, idx: i}
}

// Free releases the slot; the handle must not be used afterward.
func (h ExternalHandle) Free() {
	h.store.pages[h.page].free(h.idx)
}

// Get reads the slot's current value.
func (h ExternalHandle) Get() value.Value {
	return h.store.pages[h.page].slots[h.idx]
}

// Set writes the slot.
func (h ExternalHandle) Set(v value.Value) {
	h.store.pages[h.page].slots[h.idx] = v
}

// WalkRoots implements heap.RootSource by visiting every live slot across
// every page.
func (e *External) WalkRoots(visit func(heap.Addr)) {
	for _, p := range e.pages {
		live := p.live
		for live != 0 {
			i := bits.TrailingZeros64(live)
			live &^= uint64(1) << uint(i)
			if v := p.slots[i]; v.IsHeap() {
				visit(v.Addr())
			}
		}
	}
}
