// Package heap implements the managed heap described in spec component E: a
// paged, mark-sweep collector with segregated free lists, per-page
// block/mark bitmaps, large-object chunks, and finalizer tracking.
//
// The type system (component G) layers on top of this package via the
// ObjectModel interface so that heap stays ignorant of concrete value
// layouts — it only needs to trace and finalize objects through callbacks
// supplied by the layer that defines them.
package heap

import (
	"encoding/binary"
	"math"

	"github.com/dynvm-project/dynvm/runtime/rtlog"
)

// Addr is an opaque reference to a heap-resident object: either a
// page-resident block (page index + start cell) or a large-object chunk.
// The zero value is not a valid Addr — use Nil.
type Addr struct {
	page int32 // >=0: index into Heap.pages; -1: large object; -2: nil
	idx  int32 // cell index (page-resident) or large-object index
}

// Nil is the "no object" Addr, analogous to the language's null heap value.
var Nil = Addr{page: -2}

// IsNil reports whether a is Nil.
func (a Addr) IsNil() bool { return a.page == -2 }

func (a Addr) isLarge() bool { return a.page == -1 }

// IsLarge reports whether a refers to a LargeObject chunk rather than a
// page-resident block.
func (a Addr) IsLarge() bool { return a.isLarge() }

const addrIdxBits = 24
const addrIdxMask = uint64(1)<<addrIdxBits - 1

// Raw packs addr into a pointer-sized word with bit 0 always clear, so that
// package value can embed it directly in its tagged Value representation
// alongside the embedded-integer encoding (bit 0 set). Bit 1 distinguishes
// a large-object reference from a page-resident one; this stands in for
// the "trailing cell-alignment bits are zero" property a real flat address
// space gets for free, since this heap addresses objects by (page, cell)
// pairs rather than by raw pointer.
func (a Addr) Raw() uint64 {
	if a.IsNil() {
		return 0
	}
	large := uint64(0)
	if a.isLarge() {
		large = 1
	}
	pageField := uint64(uint32(a.page + 1))
	idxField := uint64(uint32(a.idx)) & addrIdxMask
	return (pageField << (2 + addrIdxBits)) | (idxField << 2) | (large << 1)
}

// AddrFromRaw inverts Raw.
func AddrFromRaw(bits uint64) Addr {
	if bits == 0 {
		return Nil
	}
	large := (bits>>1)&1 != 0
	idxField := int32((bits >> 2) & addrIdxMask)
	if large {
		return Addr{page: -1, idx: idxField}
	}
	pageField := int32(bits >> (2 + addrIdxBits))
	return Addr{page: pageField - 1, idx: idxField}
}

// HeaderBytes is the size, in bytes, of the header word at the start of
// every heap object (§3.3).
const HeaderBytes = headerSize

// ObjectModel lets the type layer (component G) participate in GC without
// heap needing to know concrete object layouts.
type ObjectModel interface {
	// Trace visits every Addr embedded in obj's fields for the given type.
	Trace(obj []byte, typeID uint32, visit func(Addr))
	// HasFinalizer reports whether typeID declares a finalizer.
	HasFinalizer(typeID uint32) bool
	// Finalize runs typeID's finalizer over obj, exactly once, before its
	// storage is reclaimed.
	Finalize(obj []byte, typeID uint32)
}

// RootSource is implemented by handle stores (package handle) so the
// collector's mark phase can enumerate the root set (§4.F).
type RootSource interface {
	WalkRoots(visit func(Addr))
}

// Config tunes the heap's page size and growth behavior (§4.E.1, §4.E.3).
type Config struct {
	PageSize       int     // power of two, default 1 MiB
	GrowthFactor   float64 // unused placeholder for future tuning; threshold doubles
	InitThreshold  int64   // bytes; collector runs once allocated_bytes reaches this
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{PageSize: DefaultPageSize, InitThreshold: DefaultPageSize}
}

// Heap is a single managed heap instance. Heap is not safe for concurrent
// use — the VM's cooperative single-thread model (§5) makes this a
// non-issue in practice.
type Heap struct {
	lo    layout
	pages []*Page
	large []*LargeObject
	free  *FreeSpace
	model ObjectModel
	roots []RootSource
	log   *rtlog.Logger

	allocatedBytes int64
	nextThreshold  int64
	collections    int
}

// New creates a Heap. model may be nil until SetModel is called, but must
// be set before the first Collect.
func New(cfg Config, model ObjectModel) *Heap {
	if cfg.PageSize == 0 {
		cfg = DefaultConfig()
	}
	h := &Heap{
		lo:            computeLayout(cfg.PageSize),
		free:          newFreeSpace(),
		model:         model,
		nextThreshold: cfg.InitThreshold,
		log:           rtlog.New(nil, rtlog.LevelWarn),
	}
	if h.nextThreshold <= 0 {
		h.nextThreshold = int64(cfg.PageSize)
	}
	return h
}

// SetModel installs the object model used for tracing/finalizing.
func (h *Heap) SetModel(m ObjectModel) { h.model = m }

// AddRoot registers a root source that the mark phase will scan.
func (h *Heap) AddRoot(r RootSource) { h.roots = append(h.roots, r) }

// SetLogger overrides the heap's diagnostic logger.
func (h *Heap) SetLogger(l *rtlog.Logger) { h.log = l }

// LargeObjectCells returns the page-cell-count threshold at or above which
// an allocation is placed in its own LargeObject chunk (page_cells/4).
func (h *Heap) LargeObjectCells() int { return h.lo.largeObjectCells }

func ceilCells(nbytes int) int {
	return (nbytes + cellSize - 1) / cellSize
}

// Alloc allocates nbytes of zeroed managed storage tagged with typeID and
// returns its address (§4.E.2). hasFinalizer registers the object for
// finalization tracking (§3.3, §4.E.6).
func (h *Heap) Alloc(nbytes int, typeID uint32, hasFinalizer bool) Addr {
	cells := ceilCells(nbytes + headerSize)
	if cells < 1 {
		cells = 1
	}

	if cells >= h.lo.largeObjectCells {
		return h.allocLarge(cells, typeID, hasFinalizer)
	}

	collected := false
	if h.allocatedBytes >= h.nextThreshold {
		h.Collect()
		collected = true
	}

	page, start, ok := h.free.allocateExact(cells)
	if !ok && !collected {
		// collector has not run for this request yet: run it and retry.
		h.Collect()
		page, start, ok = h.free.allocateExact(cells)
	}
	if !ok {
		// still unsatisfiable: grow the heap and retry once more.
		h.growPage()
		page, start, ok = h.free.allocateExact(cells)
		if !ok {
			panic("heap: allocation failed after growing the heap (fatal)")
		}
	}

	obj := page.object(start, cells)
	writeHeader(obj, typeID)
	if hasFinalizer {
		page.finalize[start] = true
	}

	h.allocatedBytes += int64(cells * cellSize)
	h.maybeGrowThreshold()
	return Addr{page: int32(h.pageIndex(page)), idx: int32(start)}
}

func (h *Heap) pageIndex(p *Page) int {
	for i, pg := range h.pages {
		if pg == p {
			return i
		}
	}
	panic("heap: page not registered")
}

func (h *Heap) growPage() *Page {
	p := newPage(h.lo)
	h.pages = append(h.pages, p)
	h.free.insert(p, 0, h.lo.cells)
	return p
}

func (h *Heap) allocLarge(cells int, typeID uint32, hasFinalizer bool) Addr {
	lo := newLargeObject(cells)
	writeHeader(lo.data, typeID)
	lo.hasFinalizer = hasFinalizer
	h.large = append(h.large, lo)
	h.allocatedBytes += int64(len(lo.data))
	h.maybeGrowThreshold()
	return Addr{page: -1, idx: int32(len(h.large) - 1)}
}

// maybeGrowThreshold implements §4.E.3's threshold growth rule, applied
// after both ordinary and large-object allocations so the trigger reacts to
// total heap growth either way.
func (h *Heap) maybeGrowThreshold() {
	if h.nextThreshold > math.MaxInt64/2 {
		return // doubling would overflow
	}
	if h.allocatedBytes*3 > h.nextThreshold*2 {
		nt := h.nextThreshold * 2
		if nt == 0 {
			nt = int64(h.lo.pageSize)
		}
		h.nextThreshold = nextPow2(nt)
	}
}

func nextPow2(n int64) int64 {
	if n <= 1 {
		return 1
	}
	p := int64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// Object returns the byte slice backing the object at addr, for use by the
// type layer (component G) when reading/writing fields.
func (h *Heap) Object(addr Addr) []byte {
	if addr.isLarge() {
		return h.large[addr.idx].data
	}
	p := h.pages[addr.page]
	return p.object(int(addr.idx), p.blockLen(int(addr.idx)))
}

// TypeID returns the typeID recorded in addr's header.
func (h *Heap) TypeID(addr Addr) uint32 {
	return readHeader(h.Object(addr))
}

// Stats reports current heap occupancy for diagnostics and tests (§4bis).
type Stats struct {
	AllocatedBytes int64
	Pages          int
	LargeObjects   int
	Collections    int
}

func (h *Heap) Stats() Stats {
	live := 0
	for _, l := range h.large {
		if !l.free {
			live++
		}
	}
	return Stats{
		AllocatedBytes: h.allocatedBytes,
		Pages:          len(h.pages),
		LargeObjects:   live,
		Collections:    h.collections,
	}
}

const headerSize = 8

func writeHeader(obj []byte, typeID uint32) {
	binary.LittleEndian.PutUint64(obj[:headerSize], uint64(typeID)<<2)
}

func readHeader(obj []byte) uint32 {
	return uint32(binary.LittleEndian.Uint64(obj[:headerSize]) >> 2)
}

// Collect runs a full stop-the-world mark-sweep collection (§4.E.4,
// §4.E.5).
func (h *Heap) Collect() {
	if h.model == nil {
		panic("heap: Collect called before SetModel")
	}
	h.collections++
	h.mark()
	h.sweep()
	h.log.Debugf("gc cycle %d: allocated=%d threshold=%d", h.collections, h.allocatedBytes, h.nextThreshold)
}

func (h *Heap) mark() {
	var worklist []Addr
	visit := func(a Addr) { worklist = append(worklist, a) }
	for _, r := range h.roots {
		r.WalkRoots(visit)
	}
	for len(worklist) > 0 {
		a := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if a.IsNil() {
			continue
		}
		if h.isMarked(a) {
			continue
		}
		h.setMarked(a, true)
		obj := h.Object(a)
		typeID := readHeader(obj)
		h.model.Trace(obj, typeID, visit)
	}
}

func (h *Heap) isMarked(a Addr) bool {
	if a.isLarge() {
		return h.large[a.idx].marked
	}
	return h.pages[a.page].isMarked(int(a.idx))
}

func (h *Heap) setMarked(a Addr, v bool) {
	if a.isLarge() {
		h.large[a.idx].marked = v
		return
	}
	h.pages[a.page].setMarked(int(a.idx), v)
}

func (h *Heap) sweep() {
	// every page rebuilds its free runs from scratch below, so the global
	// free list must not still hold blockRefs from before this cycle —
	// otherwise already-free regions get reinserted as duplicates and two
	// later allocations can be handed the same cells.
	h.free.reset()

	for _, lo := range h.large {
		if lo.free {
			continue
		}
		if lo.marked {
			lo.marked = false
			continue
		}
		if lo.hasFinalizer {
			h.model.Finalize(lo.data, readHeader(lo.data))
		}
		h.allocatedBytes -= int64(len(lo.data))
		lo.free = true
		lo.data = nil
	}

	for _, p := range h.pages {
		h.sweepPage(p)
	}
}

func (h *Heap) sweepPage(p *Page) {
	// finalize unmarked allocated blocks first, while the original (B,M)
	// bitmaps are still intact.
	for cell, has := range p.finalize {
		if !has {
			continue
		}
		if p.isBlockStart(cell) && !p.isMarked(cell) {
			obj := p.object(cell, p.blockLen(cell))
			h.model.Finalize(obj, readHeader(obj))
			delete(p.finalize, cell)
		}
	}

	// tally cells dying this cycle (block bit set, mark bit clear) before
	// the fused transition scrambles that distinction — needed only to
	// keep h.allocatedBytes accurate; already-free cells never hit this
	// branch, so they don't get double-subtracted.
	reclaimed := 0
	for i := 0; i < p.n; {
		if p.block.get(i) {
			length := p.blockLen(i)
			if !p.mark.get(i) {
				reclaimed += length
			}
			i += length
			continue
		}
		i++
	}

	// fused bitmap transition (§4.E.5):
	//   new_block = block & mark
	//   new_mark  = block ^ mark
	newBlock := newBitset(p.n)
	newMark := newBitset(p.n)
	bitsetAnd(&newBlock, &p.block, &p.mark)
	bitsetXor(&newMark, &p.block, &p.mark)
	p.block = newBlock
	p.mark = newMark

	// rebuild this page's free runs and cell-count stats from scratch
	// (matching the original's SweepStats): h.free was reset for the whole
	// heap before sweep began, so every free run here — whether newly dead
	// or already free from before this cycle — must be reinserted exactly
	// once, and p.allocatedCells/freeCells must reflect the page's actual
	// post-sweep state rather than an incremental (and here, over-counted)
	// adjustment.
	allocated := 0
	free := 0
	i := 0
	for i < p.n {
		if p.block.get(i) {
			// still-live allocated block; skip over it.
			length := p.blockLen(i)
			allocated += length
			i += length
			continue
		}
		if !p.mark.get(i) {
			// plain extent cell not (yet) claimed by a head scan; this can
			// only happen for interior cells of a live block, already
			// skipped above, so treat defensively as a 1-cell gap.
			i++
			continue
		}
		// free-block head: coalesce forward runs of extents and any
		// immediately following (now-redundant) free-block heads.
		length := 1 + p.block.runLen(i+1)
		for j := i + 1; j < i+length; j++ {
			if p.mark.get(j) {
				p.mark.set(j, false)
			}
		}
		h.free.insert(p, i, length)
		free += length
		i += length
	}

	p.allocatedCells = allocated
	p.freeCells = free
	h.allocatedBytes -= int64(reclaimed * cellSize)
}
