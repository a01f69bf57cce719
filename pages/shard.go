package pages

import "fmt"
import "sort"
import "sync"
import "sync/atomic"
import "time"

import s "github.com/bnclabs/gosettings"

import "github.com/gurumnet/jemalloc/api"

// Shard is the local page allocator handle, composing the three extent
// caches, the descriptor pool, the growth tracker and the two decay
// controllers. All exported operations are thread safe; higher layers
// may call them from many threads concurrently.
//
// While the shard decides what and how to purge, the layer above it
// decides when and where. The decay controllers' narrow query surface,
// PurgeInProgress and EligibleNow, exists for that caller.
type Shard struct {
	// 64-bit aligned atomics
	nactive   int64  // pages in active extents
	snnext    uint64 // extent serial number source
	nroutines int64

	name       string
	mapper     api.Mapper
	clock      api.Clock
	dirty      *Ecache
	muzzy      *Ecache
	retained   *Ecache
	edata      *edatacache
	meta       Metadata
	grow       *grower
	decaydirty *Decay // dirty --> muzzy
	decaymuzzy *Decay // muzzy --> retained
	statsmu    *sync.Mutex
	stats      *Shardstats
	finch      chan struct{}

	// settings
	pagesize  int64
	maxsize   int64
	retain    bool
	psizes    []int64
	setts     s.Settings
	logprefix string
}

// NewShard create a new page allocator shard. `mapper` is the OS
// mapping collaborator, mmap.New() for real memory. `clock` can be nil
// for the system monotonic clock. `stats` and `statsmu` can be nil for
// a private statistics block, or shared so an arena layer can merge
// counters across shards.
func NewShard(
	name string, mapper api.Mapper, clock api.Clock,
	stats *Shardstats, statsmu *sync.Mutex, setts s.Settings) *Shard {

	if mapper == nil {
		panicerr("NewShard: nil mapper")
	}
	shard := &Shard{name: name, mapper: mapper, clock: clock}
	shard.logprefix = fmt.Sprintf("PAGES [%s]", name)
	if clock == nil {
		shard.clock = Systemclock()
	}

	setts = make(s.Settings).Mixin(Defaultsettings(), setts)
	shard.readsettings(setts)
	shard.psizes = Pagesizes(shard.pagesize, shard.maxsize)

	shard.dirty = newecache(StateDirty, shard.pagesize, shard.psizes)
	shard.muzzy = newecache(StateMuzzy, shard.pagesize, shard.psizes)
	shard.retained = newecache(StateRetained, shard.pagesize, shard.psizes)
	shard.meta = newmetapool(setts.Int64("meta.capacity"))
	shard.edata = newedatacache(shard.meta)
	shard.grow = newgrower(
		setts.Int64("grow.initial"), setts.Int64("grow.limit"),
		setts.Bool("grow.reset"))

	now := shard.clock.Nanotime()
	shard.decaydirty = newdecay(setts.Int64("dirty.decayms"), now)
	shard.decaymuzzy = newdecay(setts.Int64("muzzy.decayms"), now)

	if stats == nil {
		stats, statsmu = NewShardstats(), &sync.Mutex{}
	}
	shard.stats, shard.statsmu = stats, statsmu

	shard.finch = make(chan struct{})
	if tick := setts.Int64("purge.tick"); tick > 0 {
		// registered here so a Close right after construction waits
		// for the purger.
		atomic.AddInt64(&shard.nroutines, 1)
		go purger(shard, tick)
	}
	infof("%v started ...", shard.logprefix)
	return shard
}

//---- operations

// Alloc get an extent of `size` bytes aligned to `alignment`, trying
// the dirty, muzzy and retained caches in order before growing a fresh
// OS mapping. `size` must be a page multiple. When `zero` points to
// true the memory is zeroed before return if its state does not
// already guarantee zero content; in either case *zero reports whether
// the memory is zeroed. Fails only when the OS collaborator or the
// metadata allocator is exhausted.
func (shard *Shard) Alloc(
	size, alignment int64, slab bool, szind uint32,
	zero *bool) (*Extent, error) {

	if size <= 0 || (size%shard.pagesize) != 0 {
		panicerr("Alloc size %v not a multiple of %v", size, shard.pagesize)
	}
	if alignment < shard.pagesize {
		alignment = shard.pagesize
	} else if (alignment & (alignment - 1)) != 0 {
		panicerr("Alloc alignment %v not a power of 2", alignment)
	}

	ext, err := shard.recycle(shard.dirty, size, alignment)
	if ext == nil && err == nil {
		ext, err = shard.recycle(shard.muzzy, size, alignment)
	}
	fromretained := false
	if ext == nil && err == nil {
		ext, err = shard.allocretained(size, alignment)
		fromretained = true
	}
	if err != nil {
		return nil, err
	}

	if ext.committed == false {
		if cerr := shard.mapper.Commit(ext.base, ext.size); cerr != nil {
			shard.retained.insert(ext, shard.edata)
			return nil, ErrorExhausted
		}
		// recommitted pages read back as zero fill
		ext.committed, ext.zeroed = true, true
	}
	ext.state, ext.szind, ext.slab = StateActive, szind, slab
	if zero != nil {
		if *zero && ext.zeroed == false {
			shard.mapper.Zero(ext.base, ext.size)
			ext.zeroed = true
		}
		*zero = ext.zeroed
	}

	atomic.AddInt64(&shard.nactive, size/shard.pagesize)
	shard.statsmu.Lock()
	shard.stats.Sizes.Add(size / shard.pagesize)
	if fromretained {
		shard.stats.Mapped += size
	}
	shard.statsmu.Unlock()
	return ext, nil
}

// Expand grow an active extent in place from `oldsize` to `newsize`
// by claiming adjacent free space, preferring the retained then muzzy
// then dirty cache since reusing address space avoids new mappings.
// All or nothing: on failure nothing is mutated.
func (shard *Shard) Expand(
	ext *Extent, oldsize, newsize int64, szind uint32, slab bool,
	zero *bool) error {

	if ext.state != StateActive {
		panicerr("Expand: extent %x not active", ext.base)
	} else if ext.size != oldsize {
		panicerr("Expand: extent size %v != oldsize %v", ext.size, oldsize)
	} else if newsize <= oldsize || (newsize%shard.pagesize) != 0 {
		panicerr("Expand: bad newsize %v", newsize)
	}

	need, end := newsize-oldsize, ext.End()
	var claimed *Extent
	var err error
	for _, cache := range []*Ecache{shard.retained, shard.muzzy, shard.dirty} {
		claimed, err = cache.claimneighbor(end, need, shard.edata)
		if claimed != nil || err != nil {
			break
		}
	}
	if err != nil {
		return err
	} else if claimed == nil {
		return ErrorExhausted
	}

	wasretained := claimed.state == StateRetained
	if claimed.committed == false {
		if cerr := shard.mapper.Commit(claimed.base, claimed.size); cerr != nil {
			shard.retained.insert(claimed, shard.edata)
			return ErrorExhausted
		}
		claimed.committed, claimed.zeroed = true, true
	}
	if zero != nil {
		if *zero && claimed.zeroed == false {
			shard.mapper.Zero(claimed.base, claimed.size)
			claimed.zeroed = true
		}
		*zero = claimed.zeroed
	}

	ext.size, ext.szind, ext.slab = newsize, szind, slab
	ext.zeroed = ext.zeroed && claimed.zeroed
	shard.edata.release(claimed)

	atomic.AddInt64(&shard.nactive, need/shard.pagesize)
	if wasretained {
		shard.statsmu.Lock()
		shard.stats.Mapped += need
		shard.statsmu.Unlock()
	}
	return nil
}

// Shrink split an active extent down to `newsize`, returning the freed
// tail to the dirty cache. *dirtied reports that new dirty pages were
// produced, callers use it to trigger a decay check. On failure
// nothing is mutated.
func (shard *Shard) Shrink(
	ext *Extent, oldsize, newsize int64, szind uint32, slab bool,
	dirtied *bool) error {

	if ext.state != StateActive {
		panicerr("Shrink: extent %x not active", ext.base)
	} else if ext.size != oldsize {
		panicerr("Shrink: extent size %v != oldsize %v", ext.size, oldsize)
	} else if newsize <= 0 || newsize >= oldsize ||
		(newsize%shard.pagesize) != 0 {
		panicerr("Shrink: bad newsize %v", newsize)
	}

	tail, err := shard.splitoff(ext, newsize)
	if err != nil {
		return err
	}
	ext.szind, ext.slab = szind, slab
	tail.zeroed = false

	atomic.AddInt64(&shard.nactive, -(oldsize-newsize)/shard.pagesize)
	shard.dirty.insert(tail, shard.edata)
	if dirtied != nil {
		*dirtied = true
	}
	return nil
}

// Dalloc free the extent back to the shard, coalescing with address
// adjacent dirty entries. *dirtied is always set on a full deallocate.
func (shard *Shard) Dalloc(ext *Extent, dirtied *bool) {
	if ext.state != StateActive {
		panicerr("Dalloc: extent %x not active", ext.base)
	}
	atomic.AddInt64(&shard.nactive, -ext.size/shard.pagesize)
	ext.zeroed = false
	shard.dirty.insert(ext, shard.edata)
	if dirtied != nil {
		*dirtied = true
	}
}

// DecayAll force every extent in `ec` to the next lifecycle state
// regardless of elapsed time, dirty->muzzy or muzzy->released; `fully`
// forces unconditional release to the OS instead of demotion. Waits
// for an in-flight sweep on the same tier before sweeping. The cache
// might not end up empty if other threads insert concurrently.
func (shard *Shard) DecayAll(
	d *Decay, ds *Decaystats, ec *Ecache, fully bool) {

	d.mu.Lock()
	for d.purging {
		d.mu.Unlock()
		time.Sleep(time.Millisecond)
		d.mu.Lock()
	}
	d.purging = true
	d.mu.Unlock()

	shard.purgeto(ds, ec, 0, fully)

	d.mu.Lock()
	d.flush()
	d.purging = false
	d.mu.Unlock()
}

// MaybeDecayPurge recompute the decay epoch against the clock and, if
// it advanced, apply the purge policy for `setting`. Returns whether
// the epoch advanced, so callers can coordinate cross shard decisions.
// A decay time of -1 never purges from here regardless of setting.
func (shard *Shard) MaybeDecayPurge(
	d *Decay, ds *Decaystats, ec *Ecache, setting PurgeSetting) bool {

	now := shard.clock.Nanotime()

	d.mu.Lock()
	advanced := d.advance(now, ec.Pages())
	dopurge := false
	switch setting {
	case PurgeAlways:
		dopurge = d.Decayms() >= 0
	case PurgeNever:
		dopurge = false
	case PurgeOnEpochAdvance:
		dopurge = advanced
	}
	if dopurge && d.purging == false && ec.Pages() > d.limit {
		limit := d.limit
		d.purging = true
		d.mu.Unlock()

		shard.purgeto(ds, ec, limit, false)

		d.mu.Lock()
		d.purging = false
	}
	d.mu.Unlock()
	return advanced
}

//---- accessors

// Nactive return the number of pages in active extents.
func (shard *Shard) Nactive() int64 {
	return atomic.LoadInt64(&shard.nactive)
}

// DirtyDecayms return the dirty tier's decay interval.
func (shard *Shard) DirtyDecayms() int64 {
	return shard.decaydirty.Decayms()
}

// MuzzyDecayms return the muzzy tier's decay interval.
func (shard *Shard) MuzzyDecayms() int64 {
	return shard.decaymuzzy.Decayms()
}

// MayForceDecay report whether unconditional decay is permitted, true
// unless either decay interval is configured as never.
func (shard *Shard) MayForceDecay() bool {
	return !(shard.DirtyDecayms() == -1 || shard.MuzzyDecayms() == -1)
}

// ExtentSnNext return the next extent serial number to be issued.
func (shard *Shard) ExtentSnNext() uint64 {
	return atomic.LoadUint64(&shard.snnext)
}

// DecayDirty return the dirty->muzzy decay controller.
func (shard *Shard) DecayDirty() *Decay {
	return shard.decaydirty
}

// DecayMuzzy return the muzzy->retained decay controller.
func (shard *Shard) DecayMuzzy() *Decay {
	return shard.decaymuzzy
}

// CacheDirty return the dirty extent cache.
func (shard *Shard) CacheDirty() *Ecache {
	return shard.dirty
}

// CacheMuzzy return the muzzy extent cache.
func (shard *Shard) CacheMuzzy() *Ecache {
	return shard.muzzy
}

// CacheRetained return the retained extent cache.
func (shard *Shard) CacheRetained() *Ecache {
	return shard.retained
}

// Pagesize return the configured page size.
func (shard *Shard) Pagesize() int64 {
	return shard.pagesize
}

//---- statistics and maintenance

// Logstats dump the statistics block through the logger.
func (shard *Shard) Logstats() {
	shard.statsmu.Lock()
	text := shard.stats.Logtext()
	shard.statsmu.Unlock()
	infof("%v %v", shard.logprefix, text)
}

// Validate check shard invariants on a quiescent shard: cached extents
// are pairwise disjoint and the mapped counter equals active bytes
// plus dirty and muzzy cache bytes. Panics on violation, continuing
// could hand out overlapping memory.
func (shard *Shard) Validate() {
	spans := make([][2]uint64, 0, 128)
	// fixed tier order, dirty before muzzy before retained.
	spans = shard.dirty.spans(spans)
	spans = shard.muzzy.spans(spans)
	spans = shard.retained.spans(spans)
	sort.Slice(spans, func(i, j int) bool {
		return spans[i][0] < spans[j][0]
	})
	for i := 1; i < len(spans); i++ {
		prev, this := spans[i-1], spans[i]
		if prev[0]+prev[1] > this[0] {
			fmsg := "%v overlapping extents %x+%v and %x+%v"
			panicerr(
				fmsg, shard.logprefix, prev[0], prev[1], this[0], this[1])
		}
	}

	activebytes := shard.Nactive() * shard.pagesize
	cached := shard.dirty.Bytes() + shard.muzzy.Bytes()
	shard.statsmu.Lock()
	mapped := shard.stats.Mapped
	shard.statsmu.Unlock()
	if mapped != activebytes+cached {
		fmsg := "%v mapped %v != active %v + cached %v"
		panicerr(fmsg, shard.logprefix, mapped, activebytes, cached)
	}
	infof("%v validated %v extents", shard.logprefix, len(spans))
}

// Close stop the background purger, decay both tiers fully, release
// retained address space back to the OS and release the shard's pools.
func (shard *Shard) Close() {
	close(shard.finch)
	for atomic.LoadInt64(&shard.nroutines) > 0 {
		time.Sleep(time.Millisecond)
	}

	shard.DecayAll(shard.decaydirty, &shard.stats.Dirty, shard.dirty, true)
	shard.DecayAll(shard.decaymuzzy, &shard.stats.Muzzy, shard.muzzy, true)
	for {
		ext := shard.retained.evictoldest()
		if ext == nil {
			break
		}
		if err := shard.mapper.Unmap(ext.base, ext.size); err != nil {
			atomic.AddInt64(&shard.stats.Abandonedvm, ext.size)
			errorf(
				"%v unmap %x+%v abandoned: %v",
				shard.logprefix, ext.base, ext.size, err)
		}
		shard.edata.release(ext)
	}
	shard.meta.Release()
	infof("%v stopped", shard.logprefix)
}

//---- local functions

// recycle try to satisfy (size, alignment) from one cache, splitting a
// misaligned head or an oversized tail back into the same cache.
func (shard *Shard) recycle(
	ec *Ecache, size, alignment int64) (*Extent, error) {

	ext := ec.removefit(size, alignment)
	if ext == nil {
		return nil, nil
	}
	if head := int64(alignup(ext.base, alignment) - ext.base); head > 0 {
		rest, err := shard.splitoff(ext, head)
		if err != nil {
			ec.insert(ext, shard.edata)
			return nil, err
		}
		ec.insert(ext, shard.edata)
		ext = rest
	}
	if ext.size > size {
		tail, err := shard.splitoff(ext, size)
		if err != nil {
			ec.insert(ext, shard.edata)
			return nil, err
		}
		ec.insert(tail, shard.edata)
	}
	return ext, nil
}

// allocretained satisfy the request from the retained cache, else grow
// a fresh OS mapping sized by the growth cursor; the remainder of an
// oversized mapping lands in the retained cache.
func (shard *Shard) allocretained(size, alignment int64) (*Extent, error) {
	ext, err := shard.recycle(shard.retained, size, alignment)
	if ext != nil || err != nil {
		return ext, err
	}

	growsize := shard.grow.grab(size)
	base, merr := shard.mapper.Map(growsize, alignment)
	if merr != nil && growsize > size {
		// retreat to the exact request before giving up
		growsize = size
		base, merr = shard.mapper.Map(growsize, alignment)
	}
	if merr != nil {
		return nil, ErrorExhausted
	}

	ext, err = shard.edata.acquire()
	if err != nil {
		shard.unmaprange(base, growsize)
		return nil, err
	}
	sn := atomic.AddUint64(&shard.snnext, 1) - 1
	ext.init(base, growsize, sn, 0, false, StateActive, true, true)
	if growsize > size {
		trail, terr := shard.splitoff(ext, size)
		if terr != nil {
			// cannot keep the remainder without a descriptor
			shard.unmaprange(ext.base+uintptr(size), growsize-size)
			ext.size = size
		} else {
			shard.retained.insert(trail, shard.edata)
		}
	}
	return ext, nil
}

// splitoff carve the tail beyond `keep` bytes off the extent into a
// fresh descriptor; the tail inherits the serial number so cache
// ordering stays stable. On failure the extent is unchanged.
func (shard *Shard) splitoff(ext *Extent, keep int64) (*Extent, error) {
	tail, err := shard.edata.acquire()
	if err != nil {
		return nil, err
	}
	tail.init(
		ext.base+uintptr(keep), ext.size-keep, ext.sn, ext.szind,
		false, ext.state, ext.zeroed, ext.committed)
	ext.size = keep
	return tail, nil
}

// purgeto demote extents from `ec` oldest first until at most `limit`
// pages remain. Dirty extents demote to muzzy through an OS advise
// call; muzzy extents, and dirty extents under `fully`, release to the
// OS.
func (shard *Shard) purgeto(
	ds *Decaystats, ec *Ecache, limit int64, fully bool) {

	var stash []*Extent
	for ec.Pages() > limit {
		ext := ec.evictoldest()
		if ext == nil {
			if ec.Pages() > 0 {
				panicerr("%v purge: cache believed non-empty", shard.logprefix)
			}
			break
		}
		stash = append(stash, ext)
	}
	if len(stash) == 0 {
		return
	}

	demote := ec == shard.dirty && fully == false
	nmadvise, nfail, npurged, released := int64(0), int64(0), int64(0), int64(0)
	for _, ext := range stash {
		npurged += ext.size / shard.pagesize
		if demote {
			nmadvise++
			if err := shard.mapper.Advise(ext.base, ext.size); err != nil {
				nfail++
				warnf(
					"%v advise %x+%v: %v",
					shard.logprefix, ext.base, ext.size, err)
			}
			ext.zeroed = false
			shard.muzzy.insert(ext, shard.edata)
			continue
		}
		n, failed := shard.release(ext)
		released += n
		if failed {
			nfail++
		}
	}

	shard.statsmu.Lock()
	ds.Npurge++
	ds.Nmadvise += nmadvise
	ds.Nfail += nfail
	ds.Purged += npurged
	shard.stats.Mapped -= released
	shard.statsmu.Unlock()
	debugf(
		"%v purged %v pages over %v extents",
		shard.logprefix, npurged, len(stash))
}

// release extent memory to the OS: decommit into the retained cache
// when the retain policy is on, unmap otherwise. Unmappable ranges are
// abandoned, counted, and never revisited. Returns the bytes that left
// the mapped counter and whether a best effort OS call was rejected.
func (shard *Shard) release(ext *Extent) (int64, bool) {
	size := ext.size
	if shard.retain {
		if err := shard.mapper.Decommit(ext.base, size); err != nil {
			// the transition completes regardless, the extent stays
			// committed and its content is garbage until reuse.
			warnf(
				"%v decommit %x+%v: %v",
				shard.logprefix, ext.base, size, err)
			ext.zeroed = false
			shard.retained.insert(ext, shard.edata)
			return size, true
		}
		ext.committed, ext.zeroed = false, true
		shard.retained.insert(ext, shard.edata)
		return size, false
	}
	if err := shard.mapper.Unmap(ext.base, size); err != nil {
		atomic.AddInt64(&shard.stats.Abandonedvm, size)
		errorf(
			"%v unmap %x+%v abandoned: %v",
			shard.logprefix, ext.base, size, err)
	} else {
		shard.grow.released(size)
	}
	shard.edata.release(ext)
	return size, false
}

func (shard *Shard) unmaprange(base uintptr, size int64) {
	if err := shard.mapper.Unmap(base, size); err != nil {
		atomic.AddInt64(&shard.stats.Abandonedvm, size)
		errorf(
			"%v unmap %x+%v abandoned: %v",
			shard.logprefix, base, size, err)
	}
}

// Systemclock return the default monotonic clock source.
func Systemclock() api.Clock {
	return sysclock{}
}

type sysclock struct{}

var bootedat = time.Now()

func (c sysclock) Nanotime() int64 {
	return int64(time.Since(bootedat))
}
