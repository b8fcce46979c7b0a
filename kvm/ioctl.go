// Package kvm wraps the Linux /dev/kvm ioctl ABI used by the vcpu package
// to drive VMX root operation on the caller's behalf.
package kvm

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux ioctl direction/size encoding (include/uapi/asm-generic/ioctl.h).
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14
	iocDirBits  = 2

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	kvmIOCType = 0xAE
)

func ioc(dir, nr, size uintptr) uintptr {
	return (dir << iocDirShift) | (kvmIOCType << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift)
}

// IIO encodes a no-argument ioctl request number.
func IIO(nr uintptr) uintptr {
	return ioc(iocNone, nr, 0)
}

// IIOW encodes a write (userspace -> kernel) ioctl request number.
func IIOW(nr, size uintptr) uintptr {
	return ioc(iocWrite, nr, size)
}

// IIOR encodes a read (kernel -> userspace) ioctl request number.
func IIOR(nr, size uintptr) uintptr {
	return ioc(iocRead, nr, size)
}

// IIOWR encodes a read/write ioctl request number.
func IIOWR(nr, size uintptr) uintptr {
	return ioc(iocWrite|iocRead, nr, size)
}

// Ioctl issues a single ioctl(2), retrying transparently on EINTR the way
// every KVM vcpu ioctl is documented to require.
func Ioctl(fd, op, arg uintptr) (uintptr, error) {
	for {
		res, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, op, arg)
		if errno == unix.EINTR {
			continue
		}

		if errno != 0 {
			return res, errno
		}

		return res, nil
	}
}

const (
	kvmGetAPIVersion      = 44544
	kvmCreateVM           = 44545
	kvmGetMSRIndexList    = 0xC004AE02
	kvmCheckExtension     = 44547
	kvmGetVCPUMMapSize    = 44548
	kvmCreateVCPU         = 44609
	kvmGetSupportedCPUID  = 0xC008AE05
	kvmSetCPUID2          = 0x4008AE90
	kvmGetRegs            = 0x8090AE81
	kvmSetRegs            = 0x4090AE82
	kvmGetSregs           = 0x8138AE83
	kvmSetSregs           = 0x4138AE84
	kvmGetDebugRegs       = 0x8080AE8E
	kvmSetDebugRegs       = 0x4080AE8F
	kvmRun                = 44672
	kvmSetTSSAddr         = 0xAE47
	kvmSetIdentityMapAddr = 0x4008AE48
	kvmCreateIRQChip      = 0xAE60
	kvmCreatePIT2         = 0x4040AE77
	kvmIRQLine            = 0xC008AE67

	kvmSetUserMemoryRegion = 0x4020AE46

	kvmGetMSRs    = 0xC008AE88
	kvmGetMPState = 0x8004AE98
)

// GetAPIVersion returns the KVM UAPI version exposed by /dev/kvm. Callers
// must check it equals the version this package was written against before
// relying on any other ioctl's layout.
func GetAPIVersion(kvmFd uintptr) (uintptr, error) {
	return Ioctl(kvmFd, IIO(kvmGetAPIVersion), 0)
}

// CreateVM is the KVM-mediated analogue of executing VMXON: it allocates
// the per-VM state a VMXON region would otherwise describe.
func CreateVM(kvmFd uintptr) (uintptr, error) {
	return Ioctl(kvmFd, IIO(kvmCreateVM), 0)
}

// CreateVCPU is the KVM-mediated analogue of allocating and activating a
// VMCS region: the returned fd is "current" for every following ioctl.
func CreateVCPU(vmFd uintptr, vcpuID int) (uintptr, error) {
	return Ioctl(vmFd, IIO(kvmCreateVCPU), uintptr(vcpuID))
}

// Run is the KVM-mediated analogue of VMLAUNCH/VMRESUME: it performs one
// VM-entry, blocks until the corresponding VM-exit, and returns.
func Run(vcpuFd uintptr) error {
	_, err := Ioctl(vcpuFd, IIO(kvmRun), 0)

	return err
}

// GetVCPUMMmapSize reports the size of the kvm_run page to mmap per vcpu fd.
func GetVCPUMMmapSize(kvmFd uintptr) (uintptr, error) {
	return Ioctl(kvmFd, IIO(kvmGetVCPUMMapSize), 0)
}

// SetTSSAddr sets the guest-physical address KVM uses to emulate the task
// switch segment required for big real-mode/protected-mode transitions.
func SetTSSAddr(vmFd uintptr, addr uint32) error {
	_, err := Ioctl(vmFd, IIO(kvmSetTSSAddr), uintptr(addr))

	return err
}

// SetIdentityMapAddr sets the guest-physical page KVM borrows to emulate
// legacy real-mode virtual-8086 transitions.
func SetIdentityMapAddr(vmFd uintptr, addr uint32) error {
	a := addr

	_, err := Ioctl(vmFd, IIOW(kvmSetIdentityMapAddr, 8), uintptr(unsafe.Pointer(&a)))

	return err
}
