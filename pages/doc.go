// Package pages supplies the shard local page allocator that acquires,
// caches, resizes and releases page aligned extents on behalf of the
// size-class allocators above it. Note that unless a method is
// documented as thread safe, it is not.
//
// A shard keeps three caches of previously allocated extents, dirty,
// muzzy and retained, each holding extents in one lifecycle state.
// Allocation tries the caches in that order before growing a fresh OS
// mapping. Frees land in the dirty cache; two decay controllers demote
// idle extents dirty -> muzzy -> retained gradually over a configured
// decay interval, so that resident memory follows load without
// release-then-reallocate thrash. Shards can be created with following
// parameters:
//
//   pagesize      : granularity of all extent sizes.
//   maxsize       : largest size-class tracked by the caches.
//   dirty.decayms : decay interval for dirty extents.
//   muzzy.decayms : decay interval for muzzy extents.
//   grow.initial  : first mapping size requested from the OS.
//   grow.limit    : upper bound on a single mapping request.
//   retain        : keep released address space in the retained cache.
package pages
