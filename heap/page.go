package heap

// Page is an aligned, fixed-size block of managed memory (§3.3): a
// block-start bitmap and a mark bitmap (one bit per cell each), followed by
// the cell array itself. Allocated objects never straddle pages.
type Page struct {
	cells    []byte // N*cellSize bytes
	block    bitset // bit set iff a cell starts an allocated block
	mark     bitset // with block: (1,0) allocated, (0,1) free-block head, (0,0) extent
	n        int    // cell count N
	finalize map[int]bool // cell index (block start) -> has a pending finalizer

	allocatedCells int
	freeCells      int
}

func newPage(lo layout) *Page {
	p := &Page{
		cells:    allocArena(lo.cells * cellSize),
		block:    newBitset(lo.cells),
		mark:     newBitset(lo.cells),
		n:        lo.cells,
		finalize: make(map[int]bool),
	}
	// the whole page starts as one free block: (B=0, M=1) at cell 0.
	p.mark.set(0, true)
	p.freeCells = lo.cells
	return p
}

// cellOffset returns the byte offset of cell i within the page's data.
func cellOffset(i int) int { return i * cellSize }

// object returns the byte slice backing the block starting at cell i,
// spanning n cells.
func (p *Page) object(start, n int) []byte {
	off := cellOffset(start)
	return p.cells[off : off+n*cellSize]
}

// markAllocated records cells [start, start+n) as a single allocated block:
// block bit set at start, mark bit clear throughout (matches the
// allocated-but-not-yet-marked encoding used between sweeps).
func (p *Page) markAllocated(start, n int) {
	p.block.set(start, true)
	p.mark.set(start, false)
	for i := start + 1; i < start+n; i++ {
		p.block.set(i, false)
		p.mark.set(i, false)
	}
	p.allocatedCells += n
	p.freeCells -= n
}

// markFree records cells [start, start+n) as a single free block: a
// free-block head (B=0, M=1) at start, extents elsewhere.
func (p *Page) markFree(start, n int) {
	p.block.set(start, false)
	p.mark.set(start, true)
	for i := start + 1; i < start+n; i++ {
		p.block.set(i, false)
		p.mark.set(i, false)
	}
}

// blockLen returns the length, in cells, of the block or free run that
// starts at cell i (§4.E.5): interior cells are extents (B=0, M=0), so the
// extent ends at the next cell with either bit set — the next allocated
// block start or free-block head — or at the page end.
func (p *Page) blockLen(i int) int {
	return min(p.block.nextSet(i+1), p.mark.nextSet(i+1)) - i
}

// isBlockStart reports whether cell i is the first cell of an allocated
// block.
func (p *Page) isBlockStart(i int) bool { return p.block.get(i) }

// isMarked reports the mark bit of cell i.
func (p *Page) isMarked(i int) bool { return p.mark.get(i) }

func (p *Page) setMarked(i int, v bool) { p.mark.set(i, v) }
