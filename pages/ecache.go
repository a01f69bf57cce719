package pages

import "sync"
import "sync/atomic"

// extentlist chains one size bin through the prev/next links, in
// insertion order.
type extentlist struct {
	head, tail *Extent
	n          int64
}

func (el *extentlist) pushback(ext *Extent) {
	ext.prev, ext.next = el.tail, nil
	if el.tail != nil {
		el.tail.next = ext
	} else {
		el.head = ext
	}
	el.tail = ext
	el.n++
}

func (el *extentlist) remove(ext *Extent) {
	if ext.prev != nil {
		ext.prev.next = ext.next
	} else {
		el.head = ext.next
	}
	if ext.next != nil {
		ext.next.prev = ext.prev
	} else {
		el.tail = ext.prev
	}
	ext.prev, ext.next = nil, nil
	el.n--
}

// lrulist chains the whole cache through the lprev/lnext links, in
// insertion order, for FIFO purge selection.
type lrulist struct {
	head, tail *Extent
}

func (ll *lrulist) pushback(ext *Extent) {
	ext.lprev, ext.lnext = ll.tail, nil
	if ll.tail != nil {
		ll.tail.lnext = ext
	} else {
		ll.head = ext
	}
	ll.tail = ext
}

func (ll *lrulist) remove(ext *Extent) {
	if ext.lprev != nil {
		ext.lprev.lnext = ext.lnext
	} else {
		ll.head = ext.lnext
	}
	if ext.lnext != nil {
		ext.lnext.lprev = ext.lprev
	} else {
		ll.tail = ext.lprev
	}
	ext.lprev, ext.lnext = nil, nil
}

// Ecache holds extents in one lifecycle state, indexed by size-class
// for best-fit lookup and by address for coalescing. Both indices are
// kept consistent under the cache's single lock. All methods are
// thread safe.
type Ecache struct {
	// 64-bit aligned, atomic reads allowed outside the lock.
	nbytes   int64
	nextents int64

	mu       sync.Mutex
	state    uint32
	pagesize int64
	psizes   []int64
	bins     []extentlist
	lru      lrulist
	bybase   map[uintptr]*Extent
	byend    map[uintptr]*Extent
}

func newecache(state uint32, pagesize int64, psizes []int64) *Ecache {
	return &Ecache{
		state:    state,
		pagesize: pagesize,
		psizes:   psizes,
		bins:     make([]extentlist, len(psizes)),
		bybase:   make(map[uintptr]*Extent),
		byend:    make(map[uintptr]*Extent),
	}
}

// Bytes return total bytes held by this cache. Thread safe, lock free.
func (ec *Ecache) Bytes() int64 {
	return atomic.LoadInt64(&ec.nbytes)
}

// Count return the number of extents held by this cache.
func (ec *Ecache) Count() int64 {
	return atomic.LoadInt64(&ec.nextents)
}

// Pages return total pages held by this cache.
func (ec *Ecache) Pages() int64 {
	return atomic.LoadInt64(&ec.nbytes) / ec.pagesize
}

// insert ext into the cache, coalescing with address adjacent entries
// already present. Coalescing retires one of the two descriptors back
// to the descriptor pool and keeps the smaller serial number, so FIFO
// purge ordering stays stable.
func (ec *Ecache) insert(ext *Extent, edata *edatacache) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if _, ok := ec.bybase[ext.base]; ok {
		panicerr("ecache.insert(): extent %x already cached", ext.base)
	}

	// merge with the left neighbour, then the right, when the commit
	// state matches.
	if left, ok := ec.byend[ext.base]; ok && left.committed == ext.committed {
		ec.unlink(left)
		left.size += ext.size
		left.zeroed = left.zeroed && ext.zeroed
		if ext.sn < left.sn {
			left.sn = ext.sn
		}
		edata.release(ext)
		ext = left
	}
	if right, ok := ec.bybase[ext.End()]; ok && right.committed == ext.committed {
		ec.unlink(right)
		ext.size += right.size
		ext.zeroed = ext.zeroed && right.zeroed
		if right.sn < ext.sn {
			ext.sn = right.sn
		}
		edata.release(right)
	}

	ext.state = ec.state
	ec.link(ext)
}

// removefit extract the best fitting extent for (size, alignment):
// exact or smallest sufficient within the first candidate bin, oldest
// inserted in any larger bin. Returns nil on a miss.
func (ec *Ecache) removefit(size, alignment int64) *Extent {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	fits := func(ext *Extent) bool {
		return alignup(ext.base, alignment)+uintptr(size) <= ext.End()
	}

	from := pszceil(ec.psizes, size)
	// first candidate bin holds mixed sizes, pick the smallest fit
	// with the lower serial number breaking ties.
	var best *Extent
	for ext := ec.bins[from].head; ext != nil; ext = ext.next {
		if fits(ext) == false {
			continue
		}
		if best == nil || ext.size < best.size ||
			(ext.size == best.size && ext.sn < best.sn) {
			best = ext
		}
	}
	if best != nil {
		ec.unlink(best)
		return best
	}
	// every extent in larger bins fits by size, take the oldest entry
	// that satisfies alignment.
	for b := from + 1; b < len(ec.bins); b++ {
		for ext := ec.bins[b].head; ext != nil; ext = ext.next {
			if fits(ext) {
				ec.unlink(ext)
				return ext
			}
		}
	}
	return nil
}

// claimneighbor extract `need` bytes starting exactly at address `at`,
// for in-place expansion. If the donor extent is larger than needed it
// is shrunk in place rather than removed. Returns nil when no donor
// covers the range, or ErrorOutofMemory when a descriptor for the
// claimed head cannot be acquired.
func (ec *Ecache) claimneighbor(
	at uintptr, need int64, edata *edatacache) (*Extent, error) {

	ec.mu.Lock()
	defer ec.mu.Unlock()

	donor, ok := ec.bybase[at]
	if ok == false || donor.size < need {
		return nil, nil
	}
	if donor.size == need {
		ec.unlink(donor)
		return donor, nil
	}
	claimed, err := edata.acquire()
	if err != nil {
		return nil, err
	}
	claimed.init(
		at, need, donor.sn, donor.szind, false, donor.state,
		donor.zeroed, donor.committed)
	// shrink the donor in place, rebucketing both indices.
	ec.unlink(donor)
	donor.base, donor.size = at+uintptr(need), donor.size-need
	ec.link(donor)
	return claimed, nil
}

// evictoldest pop the oldest inserted extent, FIFO by insertion with
// serial numbers kept stable across coalescing. Returns nil when the
// cache is empty.
func (ec *Ecache) evictoldest() *Extent {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	ext := ec.lru.head
	if ext == nil {
		return nil
	}
	ec.unlink(ext)
	return ext
}

// spans append the (base, size) pairs held by this cache, for
// validation.
func (ec *Ecache) spans(spans [][2]uint64) [][2]uint64 {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	for ext := ec.lru.head; ext != nil; ext = ext.lnext {
		spans = append(spans, [2]uint64{uint64(ext.base), uint64(ext.size)})
	}
	return spans
}

// binstats fill per size-class extent count and byte totals.
func (ec *Ecache) binstats(counts, bytes []int64) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	for b := range ec.bins {
		for ext := ec.bins[b].head; ext != nil; ext = ext.next {
			counts[b]++
			bytes[b] += ext.size
		}
	}
}

//---- local functions, caller holds ec.mu.

func (ec *Ecache) link(ext *Extent) {
	ec.bins[pszfloor(ec.psizes, ext.size)].pushback(ext)
	ec.lru.pushback(ext)
	ec.bybase[ext.base] = ext
	ec.byend[ext.End()] = ext
	atomic.AddInt64(&ec.nbytes, ext.size)
	atomic.AddInt64(&ec.nextents, 1)
}

func (ec *Ecache) unlink(ext *Extent) {
	ec.bins[pszfloor(ec.psizes, ext.size)].remove(ext)
	ec.lru.remove(ext)
	delete(ec.bybase, ext.base)
	delete(ec.byend, ext.End())
	atomic.AddInt64(&ec.nbytes, -ext.size)
	atomic.AddInt64(&ec.nextents, -1)
}
