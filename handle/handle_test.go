package handle

import (
	"testing"

	"github.com/dynvm-project/dynvm/heap"
	"github.com/dynvm-project/dynvm/value"
)

func newTestRegistry() *value.TypeRegistry {
	h := heap.New(heap.Config{PageSize: heap.DefaultPageSize, InitThreshold: 1 << 40}, nil)
	return value.NewTypeRegistry(h)
}

func TestScopeLocalReadWrite(t *testing.T) {
	s := NewScope(nil)
	l := s.Local(value.FromInt64(5))
	if l.Get().Int64() != 5 {
		t.Fatalf("expected 5, got %v", l.Get())
	}
	l.Set(value.FromInt64(9))
	if l.Get().Int64() != 9 {
		t.Fatalf("expected 9 after set, got %v", l.Get())
	}
}

func TestScopeWalkRootsAcrossPages(t *testing.T) {
	reg := newTestRegistry()
	s := NewScope(nil)
	var heapVals []value.Value
	for i := 0; i < scopePageSlots*2+3; i++ {
		v := reg.Alloc(value.TypeStringObj, 0) // placeholder heap value
		heapVals = append(heapVals, v)
		s.Local(v)
	}
	seen := map[heap.Addr]bool{}
	s.WalkRoots(func(a heap.Addr) { seen[a] = true })
	if len(seen) != len(heapVals) {
		t.Fatalf("expected %d roots, saw %d", len(heapVals), len(seen))
	}
}

func TestScopeCloseResets(t *testing.T) {
	s := NewScope(nil)
	s.Local(value.FromInt64(1))
	s.Close()
	seen := 0
	s.WalkRoots(func(heap.Addr) { seen++ })
	if seen != 0 {
		t.Fatalf("expected no roots after Close, saw %d", seen)
	}
}

func TestGlobalRegisterRelease(t *testing.T) {
	reg := newTestRegistry()
	g := NewGlobalSet()
	v := reg.Alloc(value.TypeStringObj, 0)
	h := g.New(v)

	seen := 0
	g.WalkRoots(func(heap.Addr) { seen++ })
	if seen != 1 {
		t.Fatalf("expected 1 root, saw %d", seen)
	}

	h.Release()
	seen = 0
	g.WalkRoots(func(heap.Addr) { seen++ })
	if seen != 0 {
		t.Fatalf("expected 0 roots after release, saw %d", seen)
	}
}

func TestExternalAllocFreeReusesSlot(t *testing.T) {
	e := NewExternal()
	h1 := e.Alloc(value.FromInt64(1))
	h1.Free()
	h2 := e.Alloc(value.FromInt64(2))
	if h2.page != h1.page || h2.idx != h1.idx {
		t.Fatalf("expected freed slot to be reused: h1=%+v h2=%+v", h1, h2)
	}
}

func TestExternalWalkRootsSkipsFreedSlots(t *testing.T) {
	reg := newTestRegistry()
	e := NewExternal()
	a := e.Alloc(reg.Alloc(value.TypeStringObj, 0))
	_ = e.Alloc(reg.Alloc(value.TypeStringObj, 0))
	a.Free()

	seen := 0
	e.WalkRoots(func(heap.Addr) { seen++ })
	if seen != 1 {
		t.Fatalf("expected 1 live root after freeing one slot, saw %d", seen)
	}
}

func TestFrameCollectionLifecycle(t *testing.T) {
	reg := newTestRegistry()
	c := NewFrameCollection()
	f := c.New(4)
	f.Set(0, reg.Alloc(value.TypeStringObj, 0))

	seen := 0
	c.WalkRoots(func(heap.Addr) { seen++ })
	if seen != 1 {
		t.Fatalf("expected 1 root, saw %d", seen)
	}

	f.Release()
	seen = 0
	c.WalkRoots(func(heap.Addr) { seen++ })
	if seen != 0 {
		t.Fatalf("expected 0 roots after release, saw %d", seen)
	}
}

func TestSpanSub(t *testing.T) {
	c := NewFrameCollection()
	f := c.New(5)
	for i := 0; i < 5; i++ {
		f.Set(i, value.FromInt64(int64(i)))
	}
	sp := f.Span().Sub(1, 4)
	if sp.Len() != 3 {
		t.Fatalf("expected length 3, got %d", sp.Len())
	}
	if sp.Get(0).Int64() != 1 {
		t.Fatalf("expected sub-span to start at original index 1, got %v", sp.Get(0))
	}
}

func TestTypedHandleCastAndUpcast(t *testing.T) {
	reg := newTestRegistry()
	s := reg.Alloc(value.TypeStringObj, 0)

	h, ok := TryCast[StringKind](reg, s)
	if !ok {
		t.Fatalf("expected String value to cast to StringKind")
	}
	if h.Get() != s {
		t.Fatalf("cast handle lost identity")
	}

	if _, ok := TryCast[ArrayKind](reg, s); ok {
		t.Fatalf("expected String value to fail casting to ArrayKind")
	}

	any := Upcast[AnyKind](h)
	if any.Get() != s {
		t.Fatalf("upcast lost identity")
	}
}

func TestMutHandleSetTypeChecked(t *testing.T) {
	reg := newTestRegistry()
	slot := reg.Alloc(value.TypeStringObj, 0)
	mh, ok := NewMutHandle[StringKind](reg, &slot)
	if !ok {
		t.Fatalf("expected initial String slot to accept MutHandle[StringKind]")
	}
	other := reg.Alloc(value.TypeArray, 0)
	if mh.Set(reg, other) {
		t.Fatalf("expected Set to reject a value of the wrong kind")
	}
	sameKind := reg.Alloc(value.TypeStringObj, 0)
	if !mh.Set(reg, sameKind) {
		t.Fatalf("expected Set to accept a same-kind value")
	}
}

func TestMaybeHandleAcceptsNull(t *testing.T) {
	reg := newTestRegistry()
	mh, ok := TryCastMaybe[StringKind](reg, value.Null)
	if !ok || !mh.IsNull() {
		t.Fatalf("expected MaybeHandle to accept Null")
	}
}
