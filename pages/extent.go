package pages

// Extent lifecycle states. An extent is active while handed out to a
// caller, and otherwise lives in exactly one of the three shard caches.
const (
	StateActive uint32 = iota
	StateDirty
	StateMuzzy
	StateRetained
)

// Extent is the metadata record for one contiguous page aligned region.
// The address range of an extent never overlaps another active or
// cached extent of the same shard. Descriptors are recycled through the
// shard's descriptor pool and mutated in place as the region moves
// between caches.
type Extent struct {
	base      uintptr
	size      int64
	sn        uint64 // assigned at creation, cache ordering tie-break
	szind     uint32
	state     uint32
	slab      bool
	zeroed    bool
	committed bool

	// intrusive links, owned by whichever list currently holds the
	// descriptor. prev/next chain a size bin, lprev/lnext chain the
	// cache wide FIFO used for purge selection.
	prev, next   *Extent
	lprev, lnext *Extent
}

func (ext *Extent) init(
	base uintptr, size int64, sn uint64, szind uint32,
	slab bool, state uint32, zeroed, committed bool) *Extent {

	ext.base, ext.size, ext.sn = base, size, sn
	ext.szind, ext.state, ext.slab = szind, state, slab
	ext.zeroed, ext.committed = zeroed, committed
	ext.prev, ext.next, ext.lprev, ext.lnext = nil, nil, nil, nil
	return ext
}

// Base return the start address of the region.
func (ext *Extent) Base() uintptr {
	return ext.base
}

// Size return the region size in bytes, always a page multiple.
func (ext *Extent) Size() int64 {
	return ext.size
}

// End return the address one past the region.
func (ext *Extent) End() uintptr {
	return ext.base + uintptr(ext.size)
}

// Sn return the extent serial number.
func (ext *Extent) Sn() uint64 {
	return ext.sn
}

// State return the lifecycle state.
func (ext *Extent) State() uint32 {
	return ext.state
}

// Szind return the size-class index stamped by the caller.
func (ext *Extent) Szind() uint32 {
	return ext.szind
}

// Slab return whether the extent is subdivided for small objects.
func (ext *Extent) Slab() bool {
	return ext.slab
}

// Zeroed return whether the region content is known to be zero.
func (ext *Extent) Zeroed() bool {
	return ext.zeroed
}

// Committed return whether the region has committed backing memory.
func (ext *Extent) Committed() bool {
	return ext.committed
}
