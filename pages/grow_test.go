package pages

import "testing"

func TestGrowerDoubling(t *testing.T) {
	g := newgrower(16*4096, 1024*4096, true)

	if size := g.grab(4096); size != 16*4096 {
		t.Errorf("expected %v, got %v", 16*4096, size)
	}
	if x := g.cursor(); x != 32*4096 {
		t.Errorf("expected %v, got %v", 32*4096, x)
	}
	if size := g.grab(4096); size != 32*4096 {
		t.Errorf("expected %v, got %v", 32*4096, size)
	}
	if x := g.cursor(); x != 64*4096 {
		t.Errorf("expected %v, got %v", 64*4096, x)
	}
}

func TestGrowerLimit(t *testing.T) {
	g := newgrower(16*4096, 1024*4096, true)
	g.grab(4096)

	// doubling stops at the limit.
	if size := g.grab(600 * 4096); size != 1024*4096 {
		t.Errorf("expected %v, got %v", 1024*4096, size)
	}
	// requests beyond the limit are granted at their own size.
	if size := g.grab(2048 * 4096); size != 2048*4096 {
		t.Errorf("expected %v, got %v", 2048*4096, size)
	}
	if x := g.cursor(); x > 1024*4096 {
		t.Errorf("cursor %v crossed the limit", x)
	}
}

func TestGrowerReset(t *testing.T) {
	g := newgrower(16*4096, 1024*4096, true)
	g.grab(4096)
	g.grab(4096)
	cursor := g.cursor()

	g.released(4096) // too small to matter
	if x := g.cursor(); x != cursor {
		t.Errorf("expected %v, got %v", cursor, x)
	}
	g.released(cursor)
	if x := g.cursor(); x != 16*4096 {
		t.Errorf("expected %v, got %v", 16*4096, x)
	}

	g = newgrower(16*4096, 1024*4096, false)
	g.grab(4096)
	cursor = g.cursor()
	g.released(1024 * 4096)
	if x := g.cursor(); x != cursor {
		t.Errorf("expected %v, got %v", cursor, x)
	}
}

func TestGrowerInitial(t *testing.T) {
	// initial rounds up to a power of 2.
	g := newgrower(3*4096, 1024*4096, true)
	if size := g.grab(1); size != 4*4096 {
		t.Errorf("expected %v, got %v", 4*4096, size)
	}

	fn := func(initial, limit int64) {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic for %v/%v", initial, limit)
			}
		}()
		newgrower(initial, limit, true)
	}
	fn(0, 1024*4096)
	fn(64*4096, 4096)
}
