package vcpu_test

import (
	"testing"

	"github.com/kvmroot/vtx/kvm"
	"github.com/kvmroot/vtx/vcpu"
)

func TestRightsRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []kvm.Segment{
		{Typ: 0x0b, S: 1, DPL: 0, Present: 1, DB: 1, G: 1},
		{Typ: 0x03, S: 1, DPL: 3, Present: 1, L: 1},
		{Typ: 0x02, S: 0, Present: 1, AVL: 1},
		{Unusable: 1},
	}

	for _, want := range cases {
		r := vcpu.ToRights(want)
		got := vcpu.FromRights(r, want.Base, want.Limit, want.Selector)

		if got.Typ != want.Typ || got.S != want.S || got.DPL != want.DPL ||
			got.Present != want.Present || got.AVL != want.AVL || got.L != want.L ||
			got.DB != want.DB || got.G != want.G || got.Unusable != want.Unusable {
			t.Fatalf("round trip mismatch: want %+v, got %+v (rights %#x)", want, got, r)
		}
	}
}

func TestToRightsPackedBits(t *testing.T) {
	t.Parallel()

	s := kvm.Segment{Typ: 0x0b, S: 1, DPL: 3, Present: 1, AVL: 1, L: 1, DB: 1, G: 1, Unusable: 1}

	r := vcpu.ToRights(s)

	want := vcpu.SegmentRights(0x0b | 1<<4 | 3<<5 | 1<<7 | 1<<12 | 1<<13 | 1<<14 | 1<<15 | 1<<16)
	if r != want {
		t.Fatalf("ToRights = %#x, want %#x", r, want)
	}
}
