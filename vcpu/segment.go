package vcpu

import "github.com/kvmroot/vtx/kvm"

// SegmentRights is the packed 32-bit VMX access-rights byte layout spec §6
// describes, bits [0:3] Type, [4] S, [5:6] DPL, [7] Present, [12] AVL,
// [13] L, [14] DB, [15] G, [16] Unusable.
type SegmentRights uint32

const (
	rightsTypeMask    = 0xf
	rightsSShift      = 4
	rightsDPLShift    = 5
	rightsDPLMask     = 0x3
	rightsPresentBit  = 1 << 7
	rightsAVLBit      = 1 << 12
	rightsLBit        = 1 << 13
	rightsDBBit       = 1 << 14
	rightsGBit        = 1 << 15
	rightsUnusableBit = 1 << 16
)

// ToRights packs a kvm.Segment's scattered bitfields into the access
// -rights byte layout spec §6 names.
func ToRights(s kvm.Segment) SegmentRights {
	r := SegmentRights(s.Typ & rightsTypeMask)

	if s.S != 0 {
		r |= 1 << rightsSShift
	}

	r |= SegmentRights(s.DPL&rightsDPLMask) << rightsDPLShift

	if s.Present != 0 {
		r |= rightsPresentBit
	}

	if s.AVL != 0 {
		r |= rightsAVLBit
	}

	if s.L != 0 {
		r |= rightsLBit
	}

	if s.DB != 0 {
		r |= rightsDBBit
	}

	if s.G != 0 {
		r |= rightsGBit
	}

	if s.Unusable != 0 {
		r |= rightsUnusableBit
	}

	return r
}

// FromRights is ToRights's inverse, applying a packed access-rights value
// onto an existing Segment's Base/Limit/Selector.
func FromRights(r SegmentRights, base uint64, limit uint32, selector uint16) kvm.Segment {
	s := kvm.Segment{Base: base, Limit: limit, Selector: selector}

	s.Typ = uint8(r & rightsTypeMask)
	if r&(1<<rightsSShift) != 0 {
		s.S = 1
	}

	s.DPL = uint8((r >> rightsDPLShift) & rightsDPLMask)

	if r&rightsPresentBit != 0 {
		s.Present = 1
	}

	if r&rightsAVLBit != 0 {
		s.AVL = 1
	}

	if r&rightsLBit != 0 {
		s.L = 1
	}

	if r&rightsDBBit != 0 {
		s.DB = 1
	}

	if r&rightsGBit != 0 {
		s.G = 1
	}

	if r&rightsUnusableBit != 0 {
		s.Unusable = 1
	}

	return s
}
