package heap

// classSize and classIndex implement the segregated-fit size classes of
// §4.E.2: exact cell counts 1..31 (classes 0..30), then two classes per
// power of two from 32 upward (the exact power, and 1.5x it), with the
// final class acting as a catch-all for anything larger than the largest
// page-local block.
const exactClasses = 31 // counts 1..31

func classSize(idx int) int {
	if idx < exactClasses {
		return idx + 1
	}
	idx -= exactClasses
	power := idx / 2
	p := 32 << power
	if idx%2 == 0 {
		return p
	}
	return p + p/2
}

// classIndex returns the smallest class index whose size is >= n.
func classIndex(n int) int {
	if n <= 0 {
		n = 1
	}
	if n <= exactClasses {
		return n - 1
	}
	idx := exactClasses
	p := 32
	for {
		if n <= p {
			return idx
		}
		idx++
		half := p + p/2
		if n <= half {
			return idx
		}
		idx++
		p *= 2
	}
}

// blockRef identifies one free block registered with FreeSpace.
type blockRef struct {
	page  *Page
	start int
	size  int
}

// FreeSpace is the heap-global segregated-fit free list (§3.3, §4.E.2).
type FreeSpace struct {
	classes [][]blockRef
}

func newFreeSpace() *FreeSpace {
	return &FreeSpace{}
}

// reset drops every registered free block. Called at the top of each sweep
// (mirroring the original implementation's Heap::sweep() calling
// free_.reset() before walking pages): sweep rebuilds every page's free
// runs from scratch, so stale blockRefs from before the collection must
// not survive alongside the freshly reinserted ones.
func (f *FreeSpace) reset() {
	for i := range f.classes {
		f.classes[i] = nil
	}
	f.classes = f.classes[:0]
}

func (f *FreeSpace) classAt(idx int) []blockRef {
	if idx >= len(f.classes) {
		return nil
	}
	return f.classes[idx]
}

func (f *FreeSpace) ensure(idx int) {
	for len(f.classes) <= idx {
		f.classes = append(f.classes, nil)
	}
}

// insert registers a free block of the given size (in cells) found on page
// at cell index start.
func (f *FreeSpace) insert(page *Page, start, size int) {
	idx := classIndex(size)
	f.ensure(idx)
	f.classes[idx] = append(f.classes[idx], blockRef{page: page, start: start, size: size})
}

// removeAt removes the block at position j within class idx (order within
// a class is not meaningful, so this is an O(1) swap-remove).
func (f *FreeSpace) removeAt(idx, j int) {
	lst := f.classes[idx]
	lst[j] = lst[len(lst)-1]
	f.classes[idx] = lst[:len(lst)-1]
}

// allocateExact finds and removes a block of at least n cells, splitting
// off and reinserting any leftover tail, and returns the page and start
// cell of the n-cell block. ok is false if no block is available anywhere.
func (f *FreeSpace) allocateExact(n int) (page *Page, start int, ok bool) {
	c0 := classIndex(n)
	for idx := c0; idx < len(f.classes); idx++ {
		lst := f.classes[idx]
		if len(lst) == 0 {
			continue
		}
		// first-fit within the class
		for j, blk := range lst {
			if blk.size < n {
				continue
			}
			f.removeAt(idx, j)
			blk.page.markAllocated(blk.start, n)
			if blk.size > n {
				tailStart := blk.start + n
				tailSize := blk.size - n
				blk.page.markFree(tailStart, tailSize)
				f.insert(blk.page, tailStart, tailSize)
			}
			return blk.page, blk.start, true
		}
	}
	return nil, 0, false
}
