// Package api define types and interfaces common to all allocator
// components implemented by this package.
package api

// Mapper interface abstracts the OS mapping primitives consumed by the
// page allocator. Implementations deal in raw address ranges, all of
// them page aligned. The default implementation is supplied by the
// mmap package; applications embedding the allocator in a simulated or
// instrumented environment can supply their own.
type Mapper interface {
	// Map acquire a fresh mapping of `size` bytes aligned to
	// `alignment`. Returns the base address of the range, zeroed and
	// committed. Failure means address-space exhaustion.
	Map(size, alignment int64) (base uintptr, err error)

	// Unmap release the address range back to the OS. The range can be
	// any page aligned sub-range of an earlier mapping. Failure is
	// reported to the caller, who may decide to abandon the range.
	Unmap(base uintptr, size int64) error

	// Advise hint the OS that the range's content is no longer needed,
	// while keeping the mapping intact. Best effort, failure is
	// non-fatal.
	Advise(base uintptr, size int64) error

	// Commit make the range usable. On platforms without a
	// reserve/commit distinction this is a no-op.
	Commit(base uintptr, size int64) error

	// Decommit give up the range's backing memory while retaining the
	// address space.
	Decommit(base uintptr, size int64) error

	// Zero overwrite the range with zero bytes.
	Zero(base uintptr, size int64)
}

// Clock interface for a monotonic time source, consumed by the decay
// controllers. Wall clock implementations shall use a monotonic reading
// so that decay epochs never move backward.
type Clock interface {
	// Nanotime return monotonic time in nanoseconds.
	Nanotime() int64
}
