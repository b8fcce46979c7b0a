package gdt_test

import (
	"testing"

	"github.com/kvmroot/vtx/gdt"
)

func TestNewFlatTableLayout(t *testing.T) {
	t.Parallel()

	table := gdt.NewFlatTable()
	if len(table) != 3 {
		t.Fatalf("len(table) = %d, want 3", len(table))
	}

	if table[gdt.Null] != 0 {
		t.Fatalf("null descriptor must be zero, got %#x", table[gdt.Null])
	}
}

func TestWriteToPlacesBytesAtAddr(t *testing.T) {
	t.Parallel()

	table := gdt.NewFlatTable()
	mem := make([]byte, 8192)

	const addr = 0x1000
	table.WriteTo(mem, addr)

	want := table.Bytes()
	got := mem[addr : addr+len(want)]

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %#x, want %#x", i, got[i], want[i])
		}
	}
}

func TestSelector(t *testing.T) {
	t.Parallel()

	if s := gdt.Selector(gdt.Code, 0); s != 0x08 {
		t.Fatalf("Selector(Code, 0) = %#x, want 0x08", s)
	}

	if s := gdt.Selector(gdt.Data, 0); s != 0x10 {
		t.Fatalf("Selector(Data, 0) = %#x, want 0x10", s)
	}
}
