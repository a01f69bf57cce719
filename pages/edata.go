package pages

import "sync"
import "unsafe"

// Metadata interface for the allocator backing fresh extent
// descriptors. The descriptor pool falls through to it on a freelist
// miss; its failure is the only failure source of descriptor
// acquisition.
type Metadata interface {
	// Allocextents return storage for n fresh descriptors, nil when
	// the allocator is exhausted.
	Allocextents(n int64) []Extent

	// Info return memory accounting for this allocator.
	Info() (capacity, heap, alloc, overhead int64)

	// Release the allocator and its resources.
	Release()
}

// number of descriptors fetched from the metadata allocator per
// freelist miss.
const edatabatch = int64(64)

// metapool default Metadata implementation, slab batches of descriptor
// storage with a configurable bound on the descriptor population.
type metapool struct {
	mu       sync.Mutex
	capacity int64 // maximum number of descriptors, 0 for unbounded
	created  int64
	nslabs   int64
}

func newmetapool(capacity int64) *metapool {
	return &metapool{capacity: capacity}
}

// Allocextents implement Metadata interface.
func (pool *metapool) Allocextents(n int64) []Extent {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	if pool.capacity > 0 && (pool.created+n) > pool.capacity {
		return nil
	}
	pool.created += n
	pool.nslabs++
	return make([]Extent, n)
}

// Info implement Metadata interface.
func (pool *metapool) Info() (capacity, heap, alloc, overhead int64) {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	extsize := int64(unsafe.Sizeof(Extent{}))
	self := int64(unsafe.Sizeof(*pool))
	return pool.capacity * extsize, pool.created * extsize,
		pool.created * extsize, self
}

// Release implement Metadata interface.
func (pool *metapool) Release() {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	pool.created, pool.nslabs = 0, 0
}

// edatacache recycles extent descriptors to bound the cost of
// descriptor creation, falling through to the metadata allocator when
// the freelist runs dry. All methods are thread safe.
type edatacache struct {
	mu    sync.Mutex
	free  *Extent
	nfree int64
	ntotal int64
	meta  Metadata
}

func newedatacache(meta Metadata) *edatacache {
	return &edatacache{meta: meta}
}

func (ec *edatacache) acquire() (*Extent, error) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if ec.free == nil {
		slab := ec.meta.Allocextents(edatabatch)
		if slab == nil {
			return nil, ErrorOutofMemory
		}
		for i := range slab {
			slab[i].next = ec.free
			ec.free = &slab[i]
		}
		ec.nfree += int64(len(slab))
		ec.ntotal += int64(len(slab))
	}
	ext := ec.free
	ec.free, ext.next = ext.next, nil
	ec.nfree--
	return ext, nil
}

func (ec *edatacache) release(ext *Extent) {
	if ext == nil {
		panicerr("edatacache.release(): nil descriptor")
	}
	ext.init(0, 0, 0, 0, false, StateActive, false, false)

	ec.mu.Lock()
	defer ec.mu.Unlock()
	ext.next, ec.free = ec.free, ext
	ec.nfree++
}

//---- statistics

func (ec *edatacache) count() (nfree, ntotal int64) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.nfree, ec.ntotal
}
