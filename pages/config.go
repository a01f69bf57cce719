package pages

import s "github.com/bnclabs/gosettings"
import sigar "github.com/cloudfoundry/gosigar"

// Defaultsettings for a page allocator shard.
//
// "pagesize" (int64, default: 4096)
//		Granularity of all extent sizes, must be a power of 2.
//
// "maxsize" (int64, default: 4MB)
//		Largest size-class tracked by the caches. Larger extents are
//		still allocatable and get binned with the largest class.
//
// "dirty.decayms" (int64, default: 10000)
//		Time in milliseconds an unused dirty extent may stay resident
//		before demotion to muzzy. -1 to never decay, 0 to decay
//		immediately.
//
// "muzzy.decayms" (int64, default: 0)
//		Time in milliseconds an unused muzzy extent may stay resident
//		before release to the OS. -1 to never decay, 0 to decay
//		immediately.
//
// "grow.initial" (int64, default: 2MB)
//		Size of the first OS mapping requested on a full cache miss.
//		Consecutive misses double the request up to "grow.limit".
//
// "grow.limit" (int64, default: free-RAM/4, at least 64MB)
//		Upper bound on a single OS mapping request.
//
// "grow.reset" (bool, default: true)
//		Reset the growth cursor to "grow.initial" whenever a retained
//		extent at least as large as the cursor is released to the OS.
//
// "retain" (bool, default: true)
//		Keep released address space in the retained cache, decommitted,
//		instead of unmapping it.
//
// "meta.capacity" (int64, default: 0)
//		Maximum number of extent descriptors the metadata allocator
//		will back, 0 for unbounded.
//
// "purge.tick" (int64, default: 0)
//		Interval in milliseconds for the background purger goroutine,
//		0 to disable it.
func Defaultsettings() s.Settings {
	_, _, free := getsysmem()
	growlimit := int64(free / 4)
	if growlimit < 64*1024*1024 {
		growlimit = 64 * 1024 * 1024
	}
	return s.Settings{
		"pagesize":      int64(4096),
		"maxsize":       int64(4 * 1024 * 1024),
		"dirty.decayms": int64(10000),
		"muzzy.decayms": int64(0),
		"grow.initial":  int64(2 * 1024 * 1024),
		"grow.limit":    growlimit,
		"grow.reset":    true,
		"retain":        true,
		"meta.capacity": int64(0),
		"purge.tick":    int64(0),
	}
}

func getsysmem() (total, used, free uint64) {
	mem := sigar.Mem{}
	mem.Get()
	return mem.Total, mem.Used, mem.Free
}

func (shard *Shard) readsettings(setts s.Settings) s.Settings {
	shard.pagesize = setts.Int64("pagesize")
	shard.maxsize = setts.Int64("maxsize")
	shard.retain = setts.Bool("retain")
	shard.setts = setts
	return setts
}
