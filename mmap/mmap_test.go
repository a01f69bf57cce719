package mmap

import "testing"
import "unsafe"

func TestMapper(t *testing.T) {
	m := New()
	size, alignment := int64(1<<16), int64(1<<16)
	base, err := m.Map(size, alignment)
	if err != nil {
		t.Fatal(err)
	}
	if (base & uintptr(alignment-1)) != 0 {
		t.Errorf("base %x not %v aligned", base, alignment)
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(base)), size)
	data[0], data[size-1] = 0xAB, 0xCD
	m.Zero(base, size)
	if data[0] != 0 || data[size-1] != 0 {
		t.Errorf("expected zeroed range, got %x %x", data[0], data[size-1])
	}

	if err := m.Unmap(base, size); err != nil {
		t.Fatal(err)
	}
}

func TestMapperCommit(t *testing.T) {
	m := New()
	size := int64(1 << 16)
	base, err := m.Map(size, 4096)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Unmap(base, size)

	data := unsafe.Slice((*byte)(unsafe.Pointer(base)), size)
	data[0] = 0xAB
	if err := m.Decommit(base, size); err != nil {
		t.Fatal(err)
	}
	if err := m.Commit(base, size); err != nil {
		t.Fatal(err)
	}
	// decommitted pages come back zero filled.
	if data[0] != 0 {
		t.Errorf("expected zero fill, got %x", data[0])
	}
	data[0] = 0xCD
}

func TestMapperAdvise(t *testing.T) {
	m := New()
	size := int64(1 << 16)
	base, err := m.Map(size, 4096)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Unmap(base, size)

	if err := m.Advise(base, size); err != nil {
		t.Fatal(err)
	}
}
