package heap

// allocArena returns zeroed memory backing one page's cell array, obtained
// directly from the OS rather than through the Go allocator (§3.3: pages
// are large, long-lived, and GC-managed themselves, so there is no benefit
// to routing them through runtime.mallocgc). Platform implementations live
// in arena_unix.go/arena_windows.go, mirroring the teacher's mapVM split
// across malloc_linux.go/malloc_darwin.go/malloc_windows.go — the
// difference here is per-page commit instead of one reserved 4GiB region,
// since this heap grows by adding pages rather than bump-allocating a flat
// address space.
var allocArena = osAllocArena
