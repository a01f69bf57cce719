//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd
// +build darwin dragonfly freebsd linux netbsd openbsd

package mmap

import "unsafe"

import "golang.org/x/sys/unix"

// Mapper implement api.Mapper over the mmap(2) family of system calls.
// Thread safe.
type Mapper struct{}

// New return the default OS mapping collaborator.
func New() *Mapper {
	return &Mapper{}
}

// Map implement api.Mapper interface. Alignment beyond what the kernel
// grants is honoured by over-mapping and trimming the misaligned head
// and tail.
func (m *Mapper) Map(size, alignment int64) (uintptr, error) {
	base, err := anonmmap(uintptr(size))
	if err != nil {
		return 0, err
	}
	if (base & uintptr(alignment-1)) == 0 {
		return base, nil
	}
	munmap(base, uintptr(size))

	base, err = anonmmap(uintptr(size + alignment))
	if err != nil {
		return 0, err
	}
	aligned := (base + uintptr(alignment-1)) &^ uintptr(alignment-1)
	if head := aligned - base; head > 0 {
		munmap(base, head)
	}
	end, mapend := aligned+uintptr(size), base+uintptr(size+alignment)
	if tail := mapend - end; tail > 0 {
		munmap(end, tail)
	}
	return aligned, nil
}

// Unmap implement api.Mapper interface. The range can be any page
// aligned sub-range of an earlier mapping.
func (m *Mapper) Unmap(base uintptr, size int64) error {
	return munmap(base, uintptr(size))
}

// Advise implement api.Mapper interface, lazy discard hint. The kernel
// reclaims the pages under memory pressure; until then reads see the
// old content.
func (m *Mapper) Advise(base uintptr, size int64) error {
	return unix.Madvise(slice(base, size), unix.MADV_FREE)
}

// Commit implement api.Mapper interface.
func (m *Mapper) Commit(base uintptr, size int64) error {
	return unix.Mprotect(slice(base, size), unix.PROT_READ|unix.PROT_WRITE)
}

// Decommit implement api.Mapper interface. Gives up the backing memory
// and protects the range; after a Commit the pages read back zero
// filled.
func (m *Mapper) Decommit(base uintptr, size int64) error {
	if err := unix.Madvise(slice(base, size), unix.MADV_DONTNEED); err != nil {
		return err
	}
	return unix.Mprotect(slice(base, size), unix.PROT_NONE)
}

// Zero implement api.Mapper interface.
func (m *Mapper) Zero(base uintptr, size int64) {
	zerorange(base, size)
}

//---- local functions

func slice(base uintptr, size int64) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(base)), size)
}

func anonmmap(size uintptr) (uintptr, error) {
	prot := uintptr(unix.PROT_READ | unix.PROT_WRITE)
	flags := uintptr(unix.MAP_PRIVATE | unix.MAP_ANON)
	r0, _, e1 := unix.Syscall6(
		unix.SYS_MMAP, 0, size, prot, flags, ^uintptr(0), 0)
	if e1 != 0 {
		return 0, e1
	}
	return r0, nil
}

func munmap(base, size uintptr) error {
	if _, _, e1 := unix.Syscall(unix.SYS_MUNMAP, base, size, 0); e1 != 0 {
		return e1
	}
	return nil
}
