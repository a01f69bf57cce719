package pages

import "fmt"
import "strings"
import "sync/atomic"

import humanize "github.com/dustin/go-humanize"

import "github.com/gurumnet/jemalloc/lib"

// Decaystats counters for one decay tier, guarded by the stats mutex.
type Decaystats struct {
	Npurge   int64 // purge sweeps
	Nmadvise int64 // advise calls made to the OS
	Nfail    int64 // advise or decommit calls the OS rejected, non fatal
	Purged   int64 // pages purged
}

// Extentstats resident counts for one size-class across the three
// caches. Bytes are tracked separately from counts, two extents in the
// same class can differ in size.
type Extentstats struct {
	Psize         int64
	Ndirty        int64
	Dirtybytes    int64
	Nmuzzy        int64
	Muzzybytes    int64
	Nretained     int64
	Retainedbytes int64
}

// Shardstats counters for one shard, mergeable across shards. All
// fields except Abandonedvm are guarded by the stats mutex handed to
// NewShard, distinct from the cache locks so monitoring callers never
// perturb the allocation path.
type Shardstats struct {
	Dirty Decaystats
	Muzzy Decaystats

	// bytes currently mapped, excluding retained address space.
	Mapped int64

	// address space that could not be released back to the OS and was
	// intentionally leaked. Normally 0. Updated atomically.
	Abandonedvm int64

	// distribution of allocation request sizes, in pages.
	Sizes *lib.HistogramInt64
}

// NewShardstats return a stats block ready to be shared by one or more
// shards.
func NewShardstats() *Shardstats {
	return &Shardstats{Sizes: lib.NewhistorgramInt64(1, 1024, 8)}
}

// Merge fold `other` into this block. Caller serializes against
// writers of both blocks.
func (stats *Shardstats) Merge(other *Shardstats) {
	stats.Dirty.merge(&other.Dirty)
	stats.Muzzy.merge(&other.Muzzy)
	stats.Mapped += other.Mapped
	atomic.AddInt64(&stats.Abandonedvm, atomic.LoadInt64(&other.Abandonedvm))
}

func (ds *Decaystats) merge(other *Decaystats) {
	ds.Npurge += other.Npurge
	ds.Nmadvise += other.Nmadvise
	ds.Nfail += other.Nfail
	ds.Purged += other.Purged
}

// Logtext return the counters as a loggable string, sizes in human
// readable form. Caller holds the stats mutex.
func (stats *Shardstats) Logtext() string {
	ss := []string{
		fmt.Sprintf("mapped: %v", humanize.IBytes(uint64(stats.Mapped))),
		fmt.Sprintf("dirty: %v", stats.Dirty.logtext()),
		fmt.Sprintf("muzzy: %v", stats.Muzzy.logtext()),
	}
	if vm := atomic.LoadInt64(&stats.Abandonedvm); vm > 0 {
		ss = append(
			ss, fmt.Sprintf("abandonedvm: %v", humanize.IBytes(uint64(vm))))
	}
	ss = append(ss, fmt.Sprintf("sizes: %v", stats.Sizes.Logstring()))
	return strings.Join(ss, ", ")
}

func (ds *Decaystats) logtext() string {
	fmsg := "{npurge: %v, nmadvise: %v, nfail: %v, purged: %v}"
	return fmt.Sprintf(fmsg, ds.Npurge, ds.Nmadvise, ds.Nfail, ds.Purged)
}

// Extentstats snapshot the per size-class resident counts across the
// shard's three caches. Thread safe.
func (shard *Shard) Extentstats() []Extentstats {
	n := len(shard.psizes)
	out := make([]Extentstats, n)
	counts, bytes := make([]int64, n), make([]int64, n)

	fill := func(ec *Ecache, setc func(i int, count, bytes int64)) {
		for i := range counts {
			counts[i], bytes[i] = 0, 0
		}
		ec.binstats(counts, bytes)
		for i := 0; i < n; i++ {
			setc(i, counts[i], bytes[i])
		}
	}
	for i := 0; i < n; i++ {
		out[i].Psize = shard.psizes[i]
	}
	fill(shard.dirty, func(i int, c, b int64) {
		out[i].Ndirty, out[i].Dirtybytes = c, b
	})
	fill(shard.muzzy, func(i int, c, b int64) {
		out[i].Nmuzzy, out[i].Muzzybytes = c, b
	})
	fill(shard.retained, func(i int, c, b int64) {
		out[i].Nretained, out[i].Retainedbytes = c, b
	})
	return out
}
