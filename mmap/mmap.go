// Package mmap supplies the default OS mapping collaborator for the
// page allocator, for linux, mac and windows. Address ranges are dealt
// in raw base addresses so the allocator can split, merge, advise and
// unmap arbitrary page aligned sub-ranges of earlier mappings.
package mmap

import "unsafe"

var zeroblk = make([]byte, 4096)

func zerorange(base uintptr, size int64) {
	for size > 0 {
		n := int64(len(zeroblk))
		if size < n {
			n = size
		}
		copy(unsafe.Slice((*byte)(unsafe.Pointer(base)), n), zeroblk)
		base, size = base+uintptr(n), size-n
	}
}
