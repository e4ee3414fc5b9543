//go:build windows

package heap

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// osAllocArena commits n bytes of fresh, zeroed page memory via
// VirtualAlloc, matching the teacher's malloc_windows.go mapVM.
func osAllocArena(n int) []byte {
	addr, err := windows.VirtualAlloc(0, uintptr(n), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		panic("heap: VirtualAlloc page arena: " + err.Error())
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}
