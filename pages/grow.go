package pages

import "sync"

// grower tracks the size to request from the OS on the next mapping
// miss. The cursor doubles across consecutive misses so steady growth
// amortizes mapping calls, stays clamped to the configured limit, and
// optionally resets when a comparably large retained extent is released
// back to the OS.
type grower struct {
	mu      sync.Mutex
	initial int64
	next    int64
	limit   int64
	reset   bool
}

func newgrower(initial, limit int64, reset bool) *grower {
	if initial <= 0 || limit < initial {
		panicerr("grower: bad initial %v / limit %v", initial, limit)
	}
	return &grower{
		initial: exp2ceil(initial), next: exp2ceil(initial),
		limit: limit, reset: reset,
	}
}

// grab the size for the next OS mapping, at least `atleast` bytes.
// The cursor never shrinks from here, only doubles, so consecutive
// misses map monotonically larger ranges. Requests beyond the limit
// are still granted at their own size.
func (g *grower) grab(atleast int64) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	size := g.next
	for size < atleast {
		size <<= 1
	}
	if size > g.limit {
		if atleast > g.limit {
			size = atleast
		} else {
			size = g.limit
		}
	}
	if next := size << 1; next <= g.limit && next > g.next {
		g.next = next
	}
	return size
}

// released note that `size` bytes of retained address space went back
// to the OS. A release at least as large as the current cursor resets
// the cursor to its initial value, when the reset policy is on.
func (g *grower) released(size int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.reset && size >= g.next {
		g.next = g.initial
	}
}

func (g *grower) cursor() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.next
}
