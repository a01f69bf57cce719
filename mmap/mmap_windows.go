//go:build windows
// +build windows

package mmap

import "sync"

import "golang.org/x/sys/windows"

// Mapper implement api.Mapper over VirtualAlloc/VirtualFree. Windows
// cannot release a sub-range of an allocation, so unmapping anything
// other than a full earlier mapping fails and the caller is expected
// to abandon the range.
type Mapper struct {
	mu     sync.Mutex
	allocs map[uintptr]allocation // aligned base -> raw reservation
}

type allocation struct {
	raw     uintptr
	rawsize int64
	size    int64
}

// New return the default OS mapping collaborator.
func New() *Mapper {
	return &Mapper{allocs: make(map[uintptr]allocation)}
}

// Map implement api.Mapper interface.
func (m *Mapper) Map(size, alignment int64) (uintptr, error) {
	rawsize := size + alignment
	raw, err := windows.VirtualAlloc(
		0, uintptr(rawsize),
		windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return 0, err
	}
	base := (raw + uintptr(alignment-1)) &^ uintptr(alignment-1)

	m.mu.Lock()
	m.allocs[base] = allocation{raw: raw, rawsize: rawsize, size: size}
	m.mu.Unlock()
	return base, nil
}

// Unmap implement api.Mapper interface.
func (m *Mapper) Unmap(base uintptr, size int64) error {
	m.mu.Lock()
	a, ok := m.allocs[base]
	if ok && a.size == size {
		delete(m.allocs, base)
	}
	m.mu.Unlock()

	if ok == false || a.size != size {
		return windows.ERROR_INVALID_ADDRESS
	}
	return windows.VirtualFree(a.raw, 0, windows.MEM_RELEASE)
}

// Advise implement api.Mapper interface. MEM_RESET drops the content
// while keeping the range committed.
func (m *Mapper) Advise(base uintptr, size int64) error {
	_, err := windows.VirtualAlloc(
		base, uintptr(size), windows.MEM_RESET, windows.PAGE_READWRITE)
	return err
}

// Commit implement api.Mapper interface.
func (m *Mapper) Commit(base uintptr, size int64) error {
	_, err := windows.VirtualAlloc(
		base, uintptr(size), windows.MEM_COMMIT, windows.PAGE_READWRITE)
	return err
}

// Decommit implement api.Mapper interface.
func (m *Mapper) Decommit(base uintptr, size int64) error {
	return windows.VirtualFree(base, uintptr(size), windows.MEM_DECOMMIT)
}

// Zero implement api.Mapper interface.
func (m *Mapper) Zero(base uintptr, size int64) {
	zerorange(base, size)
}
