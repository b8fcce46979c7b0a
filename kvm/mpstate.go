package kvm

import "unsafe"

// MPState is struct kvm_mp_state: the activity state a VMCS's
// GUEST_ACTIVITY_STATE field would otherwise carry (running, halted,
// waiting for SIPI, and so on).
type MPState struct {
	MPState uint32
}

// MPStateRunnable is KVM_MP_STATE_RUNNABLE, the only activity state this
// build's guest-state gate considers legal before a Run.
const MPStateRunnable = 0

// GetMPState reads the vcpu's current activity state.
func GetMPState(vcpuFd uintptr, state *MPState) error {
	_, err := Ioctl(vcpuFd, kvmGetMPState, uintptr(unsafe.Pointer(state)))

	return err
}
