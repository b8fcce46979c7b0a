// Package ept is the guest-physical-to-host-physical mapping this build's
// single vCPU translates every memory access through. Once RegisterSlot's
// KVM_SET_USER_MEMORY_REGION call succeeds, the actual second-level
// (EPT) page tables a hardware EPT walk uses are built and owned entirely
// inside the host kernel's KVM module -- there is no ioctl in the stable
// KVM UAPI that hands the real EPTP or the underlying table pages back to
// userspace, so this package never constructs or inspects page-table
// entries of its own. Pointer computes the EPTP value the VMCS's
// EPT_POINTER field carries for that mapping, built the way the SDM
// defines the field, so callers that need to reason about or log which
// translation is in effect (see vcpu.Vcpu.Dump) have something concrete
// to look at.
package ept

import "github.com/kvmroot/vtx/kvm"

// EPTP bit layout (SDM Vol. 3C, 25.6.11, Table 25-9): bits 2:0 are the EPT
// paging-structure memory type, bits 5:3 are (page-walk length - 1), bit 6
// enables accessed/dirty flags, and bits 63:12 hold the host-physical
// address of the EPT PML4 table.
const (
	memTypeWriteBack   = 6
	pageWalkLength4    = 3 << 3
	accessedDirtyFlags = 1 << 6

	physAddrMask = ^uint64(0xfff)
)

// Pointer builds the EPTP value describing an identity mapping rooted at
// hostPhysBase, the host-physical address KVM_SET_USER_MEMORY_REGION was
// given for guest-physical address 0. KVM always walks 4 levels and
// treats EPT-backed RAM as write-back, so those fields are fixed; only
// the address varies per registration.
func Pointer(hostPhysBase uint64) uint64 {
	return (hostPhysBase & physAddrMask) | memTypeWriteBack | pageWalkLength4 | accessedDirtyFlags
}

// RegisterSlot hands hostBuf to KVM as guest-physical memory starting at
// guestPhysStart, backed by the host-virtual buffer whose physical page
// frames begin at hostAddr. This is the one and only mechanism by which
// this build's guest-physical-to-host-physical translation -- what a
// bare-metal hypervisor would instead express as EPT leaf entries -- gets
// installed.
func RegisterSlot(vmFd uintptr, hostBuf []byte, guestPhysStart uint64, hostAddr uint64) error {
	region := &kvm.UserspaceMemoryRegion{
		Slot:          0,
		Flags:         0,
		GuestPhysAddr: guestPhysStart,
		MemorySize:    uint64(len(hostBuf)),
		UserspaceAddr: hostAddr,
	}

	return kvm.SetUserMemoryRegion(vmFd, region)
}
