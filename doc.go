// Package jemalloc implement the page granularity extent allocator at
// the heart of a general purpose memory allocator, along with necessary
// tools and libraries.
//
// api:
//
// Interface specification for collaborators consumed by the allocator,
// OS mapping hooks and monotonic clock source.
//
// lib:
//
// Convinience functions that can be used by other packages. Package shall
// not import packages other than golang's standard packages.
//
// mmap:
//
// Default OS mapping collaborator for linux, mac and windows, built on
// mmap/munmap/madvise and VirtualAlloc/VirtualFree.
//
// pages:
//
// Shard local page allocator. Acquires, caches, resizes and releases
// page aligned extents on behalf of size-class allocators above it, and
// decides, via decay based purging, when idle memory goes back to the
// operating system.
package jemalloc
