package pages

import "sync"
import "sync/atomic"

// PurgeSetting selects how MaybeDecayPurge applies the purge policy.
type PurgeSetting int

const (
	// PurgeAlways purge down to the smoothed limit on every check.
	PurgeAlways PurgeSetting = iota

	// PurgeNever never purge from this call site.
	PurgeNever

	// PurgeOnEpochAdvance purge only the newly eligible fraction, and
	// only when the epoch advanced.
	PurgeOnEpochAdvance
)

// a decay interval is divided into this many sub intervals, so a full
// decay-time window releases the cache gradually instead of as a
// single cliff.
const decaynsteps = 200

// Decay schedules lifecycle demotion for one cache tier, dirty->muzzy
// or muzzy->retained. The controller is idle until wall-clock time
// crosses the next epoch boundary, pending until the purge policy is
// applied, and purging while a sweep runs; sweeps on one cache are
// mutually excluded through the purging flag. A decay time of -1 pins
// the controller idle permanently, 0 collapses the sub interval
// smoothing and purges everything newly dirtied on the next check.
type Decay struct {
	decayms int64 // atomic reads allowed

	mu       sync.Mutex
	epoch    int64              // clock reading at the last advance
	interval int64              // sub interval length in nanoseconds
	deadline int64              // epoch + interval
	backlog  [decaynsteps]int64 // pages dirtied per sub interval, newest first
	tracked  int64              // sum of backlog
	limit    int64              // smoothed pages allowed to stay resident
	purging  bool
}

func newdecay(decayms, now int64) *Decay {
	d := &Decay{}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reinit(decayms, now)
	return d
}

// Decayms return the configured decay time in milliseconds, -1 for
// never, 0 for immediate. Thread safe, lock free.
func (d *Decay) Decayms() int64 {
	return atomic.LoadInt64(&d.decayms)
}

// SetDecayms reconfigure the decay time and restart epoch bookkeeping
// from `now`.
func (d *Decay) SetDecayms(decayms, now int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reinit(decayms, now)
}

// PurgeInProgress report whether a purge sweep is running on the
// associated cache. Background maintenance is expected to consult this
// before scheduling a sweep of its own, the when and where of purge
// scheduling is decided above this layer.
func (d *Decay) PurgeInProgress() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.purging
}

// EligibleNow report whether a time check at `now` would advance the
// epoch.
func (d *Decay) EligibleNow(now int64) bool {
	ms := d.Decayms()
	if ms < 0 {
		return false
	} else if ms == 0 {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return now >= d.deadline
}

//---- local functions, caller holds d.mu.

func (d *Decay) reinit(decayms, now int64) {
	atomic.StoreInt64(&d.decayms, decayms)
	d.epoch, d.interval, d.deadline = now, 0, 0
	if decayms > 0 {
		d.interval = (decayms * 1000000) / decaynsteps
		if d.interval == 0 {
			d.interval = 1
		}
		d.deadline = now + d.interval
	}
	d.backlog = [decaynsteps]int64{}
	d.tracked, d.limit = 0, 0
}

// advance recompute the epoch against `now`, with `current` pages in
// the associated cache. An epoch advance is the only trigger that
// recomputes the purge limit. Returns whether the epoch advanced.
func (d *Decay) advance(now, current int64) bool {
	ms := atomic.LoadInt64(&d.decayms)
	if ms < 0 {
		return false
	} else if ms == 0 {
		d.epoch, d.limit, d.tracked = now, 0, current
		return true
	}

	if now < d.deadline {
		// between boundaries, account fresh pages into the newest
		// slot so they age from the next boundary onward.
		if current > d.tracked {
			d.backlog[0] += current - d.tracked
			d.tracked = current
		}
		return false
	}

	nadv := (now - d.epoch) / d.interval
	if nadv >= decaynsteps {
		d.backlog = [decaynsteps]int64{}
	} else {
		copy(d.backlog[nadv:], d.backlog[:decaynsteps-int(nadv)])
		for i := int64(0); i < nadv; i++ {
			d.backlog[i] = 0
		}
	}
	d.tracked = 0
	for _, pages := range d.backlog {
		d.tracked += pages
	}
	if current > d.tracked {
		d.backlog[0] += current - d.tracked
		d.tracked = current
	} else if current < d.tracked {
		// pages left the cache between checks, drain oldest first.
		deficit := d.tracked - current
		for i := decaynsteps - 1; i >= 0 && deficit > 0; i-- {
			if d.backlog[i] >= deficit {
				d.backlog[i] -= deficit
				deficit = 0
			} else {
				deficit -= d.backlog[i]
				d.backlog[i] = 0
			}
		}
		d.tracked = current
	}

	d.epoch += nadv * d.interval
	d.deadline = d.epoch + d.interval
	d.limit = d.npageslimit()
	return true
}

// npageslimit smoothed number of pages that may remain resident, the
// backlog weighted by the smoothstep curve so that fully aged pages
// carry zero weight.
func (d *Decay) npageslimit() int64 {
	limit := int64(0)
	for i, pages := range d.backlog {
		if pages == 0 {
			continue
		}
		x := 1 - (float64(i+1) / decaynsteps)
		limit += int64(float64(pages) * (x * x * (3 - 2*x)))
	}
	return limit
}

// flush drop epoch bookkeeping after a forced full purge.
func (d *Decay) flush() {
	d.backlog = [decaynsteps]int64{}
	d.tracked, d.limit = 0, 0
}
