package kvm

import (
	"unsafe"
)

type MSRList struct {
	NMSRs    uint32
	Indicies [100]uint32
}

// GetMSRIndexList returns the guest msrs that are supported.
// The list varies by kvm version and host processor, but does not change otherwise.
func GetMSRIndexList(kvmFd uintptr, list *MSRList) error {
	list.NMSRs = 100

	_, err := Ioctl(kvmFd, kvmGetMSRIndexList, uintptr(unsafe.Pointer(list)))

	return err
}

// maxMSREntries bounds MSRs.Entries the way kvm.CPUID bounds its own
// fixed-size Entries array: the real kernel struct ends in a flexible
// array member, which Go has no equivalent for, so this package allocates
// more room than any caller in this build needs and only reads back the
// first NMSRs of them.
const maxMSREntries = 8

// MSREntry is one struct kvm_msr_entry: an MSR index and its 64-bit value.
type MSREntry struct {
	Index    uint32
	Reserved uint32
	Data     uint64
}

// MSRs is struct kvm_msrs. Callers fill in NMSRs and the leading NMSRs
// entries' Index fields before GetMSRs, which overwrites each entry's
// Data in place.
type MSRs struct {
	NMSRs   uint32
	Padding uint32
	Entries [maxMSREntries]MSREntry
}

// GetMSRs reads the current value of each MSR index already populated in
// msrs.Entries[:msrs.NMSRs].
func GetMSRs(vcpuFd uintptr, msrs *MSRs) error {
	_, err := Ioctl(vcpuFd, kvmGetMSRs, uintptr(unsafe.Pointer(msrs)))

	return err
}
