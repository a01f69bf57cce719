package pages

import "testing"

func testadvance(d *Decay, now, current int64) (bool, int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	advanced := d.advance(now, current)
	return advanced, d.limit
}

func TestDecayNever(t *testing.T) {
	d := newdecay(-1, 0)
	if x := d.Decayms(); x != -1 {
		t.Errorf("expected %v, got %v", -1, x)
	}
	if d.EligibleNow(1 << 50) {
		t.Errorf("unexpected eligibility")
	}
	if advanced, _ := testadvance(d, 1<<50, 100); advanced {
		t.Errorf("unexpected advance")
	}
}

func TestDecayImmediate(t *testing.T) {
	d := newdecay(0, 0)
	if d.EligibleNow(0) == false {
		t.Errorf("expected eligibility")
	}
	advanced, limit := testadvance(d, 5, 100)
	if advanced == false {
		t.Errorf("expected advance")
	} else if limit != 0 {
		t.Errorf("expected %v, got %v", 0, limit)
	}
}

func TestDecaySmoothing(t *testing.T) {
	d := newdecay(200, 0) // sub interval of 1ms
	interval := d.interval
	if interval != 1000000 {
		t.Fatalf("expected %v, got %v", 1000000, interval)
	}

	// within the first sub interval fresh pages accrue, no advance.
	advanced, limit := testadvance(d, interval/2, 100)
	if advanced {
		t.Errorf("unexpected advance")
	} else if d.backlog[0] != 100 {
		t.Errorf("expected %v, got %v", 100, d.backlog[0])
	}

	// the first boundary ages the cohort one step, nearly everything
	// may still stay resident.
	advanced, limit = testadvance(d, interval, 100)
	if advanced == false {
		t.Errorf("expected advance")
	} else if limit < 90 || limit >= 100 {
		t.Errorf("limit %v out of range", limit)
	}

	// the limit falls monotonically as the cohort ages, down to zero
	// by the end of the decay window.
	prev := limit
	for now := 2 * interval; now < decaynsteps*interval; now += interval {
		if _, limit = testadvance(d, now, 100); limit > prev {
			t.Fatalf("limit %v grew past %v at %v", limit, prev, now)
		}
		prev = limit
	}
	// a purge down to the limit at the window's end leaves nothing.
	if _, limit = testadvance(d, decaynsteps*interval, 0); limit != 0 {
		t.Errorf("expected %v, got %v", 0, limit)
	}
}

func TestDecayDrain(t *testing.T) {
	d := newdecay(200, 0)
	interval := d.interval

	testadvance(d, interval/2, 100)
	// pages left the cache between checks, the backlog drains to match.
	_, limit := testadvance(d, interval, 40)
	if d.tracked != 40 {
		t.Errorf("expected %v, got %v", 40, d.tracked)
	} else if limit >= 40 {
		t.Errorf("limit %v not below current", limit)
	}
}

func TestDecaySkippedEpochs(t *testing.T) {
	d := newdecay(200, 0)
	interval := d.interval

	testadvance(d, interval/2, 100)
	// a long quiet gap ages the whole backlog out in one advance.
	advanced, limit := testadvance(d, 2*decaynsteps*interval, 0)
	if advanced == false {
		t.Errorf("expected advance")
	} else if limit != 0 {
		t.Errorf("expected %v, got %v", 0, limit)
	} else if d.tracked != 0 {
		t.Errorf("expected %v, got %v", 0, d.tracked)
	}
}

func TestDecayReconfigure(t *testing.T) {
	d := newdecay(200, 0)
	testadvance(d, d.interval/2, 100)

	d.SetDecayms(-1, 1000)
	if advanced, _ := testadvance(d, 1<<50, 100); advanced {
		t.Errorf("unexpected advance")
	}
	d.SetDecayms(100, 2000)
	if x := d.interval; x != 500000 {
		t.Errorf("expected %v, got %v", 500000, x)
	}
	if d.EligibleNow(2000 + 400000) {
		t.Errorf("unexpected eligibility")
	}
	if d.EligibleNow(2000+500000) == false {
		t.Errorf("expected eligibility")
	}
}
