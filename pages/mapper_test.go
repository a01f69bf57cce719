package pages

import "fmt"
import "sync"
import "sync/atomic"

import s "github.com/bnclabs/gosettings"

// testmapper simulates a flat 64-bit address space so extent arithmetic
// can be verified without touching real memory. Failure switches let
// tests exercise the degraded paths.
type testmapper struct {
	mu        sync.Mutex
	cursor    uintptr
	nmap      int64
	nunmap    int64
	nadvise   int64
	ncommit   int64
	ndecommit int64
	nzero     int64

	failmap      bool
	failcommit   bool
	faildecommit bool
	failadvise   bool
	failunmap    bool
}

func newtestmapper() *testmapper {
	return &testmapper{cursor: 1 << 30}
}

func (m *testmapper) Map(size, alignment int64) (uintptr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failmap {
		return 0, fmt.Errorf("testmapper: map failed")
	}
	base := (m.cursor + uintptr(alignment-1)) &^ uintptr(alignment-1)
	m.cursor = base + uintptr(size)
	m.nmap++
	return base, nil
}

func (m *testmapper) Unmap(base uintptr, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failunmap {
		return fmt.Errorf("testmapper: unmap failed")
	}
	m.nunmap++
	return nil
}

func (m *testmapper) Advise(base uintptr, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failadvise {
		return fmt.Errorf("testmapper: advise failed")
	}
	m.nadvise++
	return nil
}

func (m *testmapper) Commit(base uintptr, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failcommit {
		return fmt.Errorf("testmapper: commit failed")
	}
	m.ncommit++
	return nil
}

func (m *testmapper) Decommit(base uintptr, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.faildecommit {
		return fmt.Errorf("testmapper: decommit failed")
	}
	m.ndecommit++
	return nil
}

func (m *testmapper) Zero(base uintptr, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nzero++
}

// testclock is a manually advanced monotonic clock.
type testclock struct {
	now int64
}

func (c *testclock) Nanotime() int64 {
	return atomic.LoadInt64(&c.now)
}

func (c *testclock) advanceby(ns int64) {
	atomic.AddInt64(&c.now, ns)
}

func testsettings() s.Settings {
	return s.Settings{
		"pagesize":      int64(4096),
		"maxsize":       int64(64 * 4096),
		"grow.initial":  int64(16 * 4096),
		"grow.limit":    int64(1024 * 4096),
		"dirty.decayms": int64(10000),
		"muzzy.decayms": int64(-1),
		"purge.tick":    int64(0),
	}
}
