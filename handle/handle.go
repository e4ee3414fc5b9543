// Package handle implements the handle/rooting system described in spec
// component F: scope-local handles, pinned globals, externally managed
// slots, and frame-collection spans, each of which the GC root-scans via
// heap.RootSource.
package handle

import (
	"github.com/dynvm-project/dynvm/heap"
	"github.com/dynvm-project/dynvm/value"
)

const scopePageSlots = 256

// scopePage is one link in a Scope's backing chain of Value slots, sized
// the way vm's slab arena grows storage for the symbol table: fixed-size
// pages linked on demand rather than one reallocating slice.
type scopePage struct {
	slots [scopePageSlots]value.Value
	next  *scopePage
}

// Scope is a stack-allocated rooted slot store (§4.F). Handles returned by
// Local borrow a slot inside the scope; destroying the scope (Close)
// invalidates every handle it produced. Scope itself is the root source
// registered with the heap — it walks its own page chain, not its parent's
// (the parent, if still open, is registered separately).
type Scope struct {
	head *scopePage
	top  int // number of live slots within head
}

// NewScope opens a fresh scope. parent is accepted to mirror the source's
// nested-scope construction shape but is not walked by this scope's
// WalkRoots — the caller is expected to keep the parent Scope itself
// registered with the heap for as long as it is open.
func NewScope(parent *Scope) *Scope {
	return &Scope{head: &scopePage{}}
}

// Local allocates a new rooted slot initialized to v and returns a handle
// that borrows it.
func (s *Scope) Local(v value.Value) Local {
	if s.top == scopePageSlots {
		s.head = &scopePage{next: s.head}
		s.top = 0
	}
	s.head.slots[s.top] = v
	h := Local{page: s.head, idx: s.top}
	s.top++
	return h
}

// Close resets the scope's rooted stack; handles it produced must not be
// used afterward. Mirrors the source's scope-destructor semantics — Go has
// no destructors, so callers invoke Close explicitly (typically via
// defer).
func (s *Scope) Close() {
	s.head = &scopePage{}
	s.top = 0
}

// WalkRoots implements heap.RootSource by visiting every slot this scope
// currently has live, across its full page chain.
func (s *Scope) WalkRoots(visit func(heap.Addr)) {
	n := s.top
	for p := s.head; p != nil; p = p.next {
		for i := 0; i < n; i++ {
			if v := p.slots[i]; v.IsHeap() {
				visit(v.Addr())
			}
		}
		n = scopePageSlots
	}
}

// Local is a read/write handle borrowed from a Scope.
type Local struct {
	page *scopePage
	idx  int
}

// Get reads the handle's current value.
func (h Local) Get() value.Value { return h.page.slots[h.idx] }

// Set writes the handle's slot.
func (h Local) Set(v value.Value) { h.page.slots[h.idx] = v }
