package cpuid

import (
	"errors"

	"github.com/kvmroot/vtx/kvm"
)

func cpuid_low(arg1, arg2 uint32) (eax, ebx, ecx, edx uint32) // implemented in cpuid.s

func CPUID(leaf uint32) (uint32, uint32, uint32, uint32) {
	return cpuid_low(leaf, 0)
}

type CPUIDPatch struct {
	Function uint32
	Index    uint32
	Flags    uint32
	EAXBit   uint8
	EBXBit   uint8
	ECXBit   uint8
	EDXBit   uint8
}

var errInvalidPatchset = errors.New("invalid patch. Only 1 bit allowed")

// Patch patches CPUID leaves before vcpu generation, indexing into
// ids.Entries directly so a match mutates the array KVM will read rather
// than a range variable's copy.
func Patch(ids *kvm.CPUID, patches []*CPUIDPatch) error {
	for i := 0; i < int(ids.Nent); i++ {
		id := &ids.Entries[i]

		for _, patch := range patches {
			targets := 0
			for _, set := range []bool{patch.EAXBit != 0, patch.EBXBit != 0, patch.ECXBit != 0, patch.EDXBit != 0, patch.Flags != 0} {
				if set {
					targets++
				}
			}

			if targets != 1 {
				return errInvalidPatchset
			}

			if id.Function == patch.Function && id.Index == patch.Index {
				if patch.Flags != 0 {
					id.Flags |= 1 << patch.Flags
				}
				if patch.EAXBit != 0 {
					id.Eax |= 1 << patch.EAXBit
				}
				if patch.EBXBit != 0 {
					id.Ebx |= 1 << patch.EBXBit
				}
				if patch.ECXBit != 0 {
					id.Ecx |= 1 << patch.ECXBit
				}
				if patch.EDXBit != 0 {
					id.Edx |= 1 << patch.EDXBit
				}
			}
		}
	}

	return nil
}
