package ept_test

import (
	"testing"

	"github.com/kvmroot/vtx/ept"
)

func TestPointerEncodesMemTypeAndWalkLength(t *testing.T) {
	t.Parallel()

	const hostPhysBase = 0x7f0000000000

	p := ept.Pointer(hostPhysBase)

	if p&0x7 != 6 {
		t.Fatalf("EPTP memory type = %d, want 6 (write-back)", p&0x7)
	}

	if (p>>3)&0x7 != 3 {
		t.Fatalf("EPTP page-walk length field = %d, want 3 (4 levels)", (p>>3)&0x7)
	}

	if p&(1<<6) == 0 {
		t.Fatal("EPTP accessed/dirty flag must be set")
	}

	if p&^uint64(0xfff) != hostPhysBase&^uint64(0xfff) {
		t.Fatalf("EPTP address bits = %#x, want %#x", p&^uint64(0xfff), hostPhysBase&^uint64(0xfff))
	}
}

func TestPointerMasksLowAddressBits(t *testing.T) {
	t.Parallel()

	p := ept.Pointer(0x1000 | 0xabc)

	if p&^uint64(0xfff) != 0x1000 {
		t.Fatalf("EPTP address bits = %#x, want 0x1000 with the low bits masked off", p&^uint64(0xfff))
	}
}
