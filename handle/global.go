package handle

import (
	"github.com/dynvm-project/dynvm/heap"
	"github.com/dynvm-project/dynvm/value"
)

// GlobalSet is the context-owned registry of pinned single-slot globals
// (§4.F). Registration happens on New, deregistration on Release — the
// source's constructor/destructor pairing translated to explicit calls
// since Go values have no destructors.
type GlobalSet struct {
	slots map[*Global]struct{}
}

// NewGlobalSet creates an empty registry; one is expected to live on the
// runtime Context and be registered with the heap as a RootSource.
func NewGlobalSet() *GlobalSet {
	return &GlobalSet{slots: make(map[*Global]struct{})}
}

// Global is a single rooted slot with process-context lifetime, used for
// VM-wide singletons (the interned-symbol cache, well-known exception
// types, and similar).
type Global struct {
	set *GlobalSet
	v   value.Value
}

// New registers and returns a new Global slot initialized to v.
func (g *GlobalSet) New(v value.Value) *Global {
	h := &Global{set: g, v: v}
	g.slots[h] = struct{}{}
	return h
}

// Release deregisters the slot; it must not be used afterward.
func (h *Global) Release() {
	delete(h.set.slots, h)
}

// Get reads the slot's current value.
func (h *Global) Get() value.Value { return h.v }

// Set writes the slot.
func (h *Global) Set(v value.Value) { h.v = v }

// WalkRoots implements heap.RootSource.
func (g *GlobalSet) WalkRoots(visit func(heap.Addr)) {
	for h := range g.slots {
		if h.v.IsHeap() {
			visit(h.v.Addr())
		}
	}
}
