package heap

import "testing"

func TestAddrRawRoundTrip(t *testing.T) {
	cases := []Addr{
		Nil,
		{page: 0, idx: 0},
		{page: 3, idx: 1234},
		{page: -1, idx: 9},
	}
	for _, a := range cases {
		got := AddrFromRaw(a.Raw())
		if got != a {
			t.Fatalf("round trip mismatch: %+v -> raw %x -> %+v", a, a.Raw(), got)
		}
	}
	if Nil.Raw() != 0 {
		t.Fatalf("Nil must encode to 0")
	}
	for _, a := range cases[1:] {
		if a.Raw()&1 != 0 {
			t.Fatalf("heap addr encoding must leave bit 0 clear: %+v", a)
		}
	}
}

func TestClassSizeCoversRequest(t *testing.T) {
	for n := 1; n <= 1<<20; n *= 2 {
		for _, d := range []int{-3, -1, 0, 1, 3, 17} {
			req := n + d
			if req <= 0 {
				continue
			}
			sz := classSize(classIndex(req))
			if sz < req {
				t.Fatalf("classSize(classIndex(%d)) = %d, want >= %d", req, sz, req)
			}
		}
	}
}

func TestClassSizeExactSmall(t *testing.T) {
	for n := 1; n <= 31; n++ {
		if classSize(classIndex(n)) != n {
			t.Fatalf("expected exact class for n=%d, got %d", n, classSize(classIndex(n)))
		}
	}
}

func TestLayoutCellsFit(t *testing.T) {
	lo := computeLayout(DefaultPageSize)
	used := pageHeaderBytes
	used = roundUp(used, cellSize)
	used += 2 * lo.bitmapBytes
	used += lo.cells * cellSize
	if used > DefaultPageSize {
		t.Fatalf("layout overflows page: used=%d pageSize=%d", used, DefaultPageSize)
	}
	if lo.largeObjectCells != lo.cells/4 {
		t.Fatalf("large object threshold mismatch")
	}
}

// fakeModel is a trivial ObjectModel for tests: objects are plain byte
// blobs with no embedded references, optionally recording finalization.
type fakeModel struct {
	finalized []uint32
}

func (m *fakeModel) Trace([]byte, uint32, func(Addr)) {}
func (m *fakeModel) HasFinalizer(uint32) bool          { return false }
func (m *fakeModel) Finalize(obj []byte, typeID uint32) {
	m.finalized = append(m.finalized, typeID)
}

func TestAllocBasic(t *testing.T) {
	m := &fakeModel{}
	h := New(Config{PageSize: DefaultPageSize, InitThreshold: 1 << 62}, m)
	a := h.Alloc(32, 7, false)
	if a.IsNil() {
		t.Fatalf("alloc returned nil addr")
	}
	if h.TypeID(a) != 7 {
		t.Fatalf("typeID mismatch: got %d", h.TypeID(a))
	}
	obj := h.Object(a)
	if len(obj) < 32+headerSize {
		t.Fatalf("object too small: %d", len(obj))
	}
}

func TestAllocLargeObjectPath(t *testing.T) {
	m := &fakeModel{}
	h := New(Config{PageSize: DefaultPageSize, InitThreshold: 1 << 62}, m)
	cells := h.LargeObjectCells()
	// allocating exactly large_object_cells worth of bytes must take the
	// large-object path (§8 boundary behavior).
	a := h.Alloc(cells*cellSize-headerSize, 1, false)
	if !a.isLarge() {
		t.Fatalf("expected large object allocation at the boundary")
	}
	stats := h.Stats()
	if stats.LargeObjects != 1 {
		t.Fatalf("expected 1 large object, got %d", stats.LargeObjects)
	}
}

// noRoots is a RootSource with nothing live, used to exercise full reclaim.
type noRoots struct{}

func (noRoots) WalkRoots(func(Addr)) {}

func TestGCReclaimsUnreachable(t *testing.T) {
	m := &fakeModel{}
	h := New(Config{PageSize: DefaultPageSize, InitThreshold: 1 << 62}, m)
	h.AddRoot(noRoots{})

	baseline := h.Stats().AllocatedBytes
	for i := 0; i < 10000; i++ {
		h.Alloc(24, 1, false)
	}
	if h.Stats().AllocatedBytes <= baseline {
		t.Fatalf("expected allocations to grow heap usage")
	}
	h.Collect()
	after := h.Stats().AllocatedBytes
	if after != baseline {
		t.Fatalf("expected heap to return to baseline after collecting unreachable objects: got %d want %d", after, baseline)
	}
}

func TestFinalizerRunsOnce(t *testing.T) {
	m := &fakeModel{}
	h := New(Config{PageSize: DefaultPageSize, InitThreshold: 1 << 62}, m)
	h.AddRoot(noRoots{})
	h.Alloc(16, 42, true)
	h.Collect()
	if len(m.finalized) != 1 || m.finalized[0] != 42 {
		t.Fatalf("expected exactly one finalizer run for type 42, got %v", m.finalized)
	}
	h.Collect()
	if len(m.finalized) != 1 {
		t.Fatalf("finalizer ran more than once: %v", m.finalized)
	}
}

func TestBlockBitmapInvariant(t *testing.T) {
	m := &fakeModel{}
	h := New(Config{PageSize: DefaultPageSize, InitThreshold: 1 << 62}, m)
	a := h.Alloc(40, 1, false)
	p := h.pages[a.page]
	start := int(a.idx)
	n := p.blockLen(start)
	if !p.block.get(start) || !p.mark.get(start) {
		t.Fatalf("allocated block start must be (block=1,mark=1)")
	}
	for i := start + 1; i < start+n; i++ {
		if p.block.get(i) || p.mark.get(i) {
			t.Fatalf("interior cell %d must be (0,0)", i)
		}
	}
}

func TestPageTailDoesNotOverlapNextPage(t *testing.T) {
	m := &fakeModel{}
	h := New(Config{PageSize: DefaultPageSize, InitThreshold: 1 << 62}, m)
	p1 := h.growPage()
	p2 := h.growPage()
	last := p1.n - 1
	p1.markAllocated(last, 1)
	if p1.blockLen(last) != 1 {
		t.Fatalf("tail block must not read past its own page, got len %d", p1.blockLen(last))
	}
	_ = p2
}
