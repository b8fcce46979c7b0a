// Package bootinfo is the handoff record cmd/vtxloader hands to vtx.Main
// in place of the bare-metal naked-function boot-info argument a firmware
// stub would pass a kernel entry point: a magic handshake, a synthesized
// memory map, the guest image and initrd slices, and a pointer to the
// ACPI tables this loader built or discovered.
package bootinfo

import "github.com/kvmroot/vtx/panichandler"

// Magic is the handshake constant carried in Info.Magic. cmd/vtxloader
// always sets it; Validate panics if any other value arrives.
const Magic uint64 = 0x1BAD1BAD1BAD1BAD

// MemoryMapEntry is this loader's rendition of a UEFI memory descriptor:
// a guest-physical range plus a coarse type tag.
type MemoryMapEntry struct {
	PhysStart uint64
	NumPages  uint64
	Type      MemoryType
}

// MemoryType mirrors the handful of UEFI memory types this loader's
// synthesized map actually uses.
type MemoryType uint32

const (
	MemoryTypeConventional MemoryType = iota
	MemoryTypeReserved
	MemoryTypeACPIReclaim
	MemoryTypeACPINVS
)

// GuestInfo is the guest_info sub-record from spec §6: the kernel image
// and initrd slices this loader read off disk.
type GuestInfo struct {
	Image  []byte
	Initrd []byte
}

// Info is the full boot-info record. MapKey is carried for symmetry with
// the UEFI GetMemoryMap/ExitBootServices protocol this loader doesn't
// actually need to call (there's no firmware here to hand the map back
// to), but is kept because spec §6 names it explicitly.
type Info struct {
	Magic     uint64
	MemoryMap []MemoryMapEntry
	MapKey    uint64
	Guest     GuestInfo
	RSDP      uintptr
}

// Validate panics via panichandler.Fatal when Info.Magic does not match
// the agreed handshake constant -- the KVM-mediated rendition of spec §8
// scenario 1, run before any vCPU setup begins.
func Validate(info *Info) {
	if info.Magic != Magic {
		panichandler.Fatal("InvalidMagic")
	}
}
