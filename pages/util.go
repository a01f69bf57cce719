package pages

import "fmt"
import "sort"

// Pagesizes generate the extent size-classes between pagesize and
// maxsize. Classes grow one page at a time till four pages and by about
// a quarter of the running size after that, each step rounded down to a
// page multiple, which keeps cache fragmentation within ~25% of the
// requested size.
func Pagesizes(pagesize, maxsize int64) []int64 {
	if pagesize <= 0 || (pagesize&(pagesize-1)) != 0 {
		panicerr("pagesize %v is not a power of 2", pagesize)
	} else if maxsize < pagesize {
		panicerr("maxsize %v less than pagesize %v", maxsize, pagesize)
	} else if (maxsize % pagesize) != 0 {
		panicerr("maxsize %v is not multiple of %v", maxsize, pagesize)
	}

	nextsize := func(from int64) int64 {
		addby := ((from >> 2) / pagesize) * pagesize
		if addby < pagesize {
			addby = pagesize
		}
		return from + addby
	}

	sizes := make([]int64, 0, 64)
	for size := pagesize; size < maxsize; {
		sizes = append(sizes, size)
		size = nextsize(size)
	}
	sizes = append(sizes, maxsize)
	return sizes
}

// Suitablesize pick the smallest size-class that can hold `size`.
// Sizes greater than the largest class are served by the largest class.
func Suitablesize(psizes []int64, size int64) int64 {
	return psizes[pszceil(psizes, size)]
}

// index of the smallest class >= size, clamped to the last class.
func pszceil(psizes []int64, size int64) int {
	n := sort.Search(len(psizes), func(i int) bool {
		return psizes[i] >= size
	})
	if n == len(psizes) {
		return n - 1
	}
	return n
}

// index of the largest class <= size. An extent binned here is always
// at least as large as the class lower bound.
func pszfloor(psizes []int64, size int64) int {
	n := sort.Search(len(psizes), func(i int) bool {
		return psizes[i] > size
	})
	if n == 0 {
		panicerr("size %v below smallest class %v", size, psizes[0])
	}
	return n - 1
}

//---- local functions

func roundup(n, multiple int64) int64 {
	if (n % multiple) == 0 {
		return n
	}
	return ((n / multiple) + 1) * multiple
}

// smallest power of 2 >= n.
func exp2ceil(n int64) int64 {
	sz := int64(1)
	for sz < n {
		sz <<= 1
	}
	return sz
}

func alignup(base uintptr, alignment int64) uintptr {
	mask := uintptr(alignment - 1)
	return (base + mask) &^ mask
}

func panicerr(fmsg string, args ...interface{}) {
	panic(fmt.Errorf(fmsg, args...))
}
