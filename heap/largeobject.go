package heap

// LargeObject is a standalone chunk holding a single object larger than a
// page's large_object_cells threshold (§3.3, §4.E.2).
type LargeObject struct {
	data         []byte
	marked       bool
	hasFinalizer bool
	free         bool // tombstoned once swept as unreachable, index kept to avoid renumbering live Addrs
}

func newLargeObject(cells int) *LargeObject {
	return &LargeObject{data: allocArena(cells * cellSize)}
}
