// Package vcpu is the core of this hypervisor: the vCPU lifecycle, guest
// memory population, guest-state validation, and the VM-entry/VM-exit
// loop. Every ioctl it issues goes through the kvm package; every
// SDM-level guarantee it relies on (VMXON/VMCS/VM-entry semantics) is
// produced by the host kernel's KVM module on this process's behalf.
package vcpu

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"unsafe"

	"github.com/kvmroot/vtx/cpuid"
	"github.com/kvmroot/vtx/device"
	"github.com/kvmroot/vtx/ept"
	"github.com/kvmroot/vtx/i8259"
	"github.com/kvmroot/vtx/iodev"
	"github.com/kvmroot/vtx/kvm"
	"github.com/kvmroot/vtx/memory"
	"github.com/kvmroot/vtx/panichandler"
	"github.com/kvmroot/vtx/serial"
	"github.com/kvmroot/vtx/vtxlog"
)

// Guest-physical layout, kept from the teacher's machine/constants.go.
const (
	bootParamAddr = 0x10000
	cmdlineAddr   = 0x20000
	kernelBase    = 0x100000
	initrdAddr    = 0xf000000

	MinMemSize = 1 << 25

	serialIRQ = 4
)

var (
	// ErrNoVCPUID reports an ioctl failure creating the single vCPU this
	// build supports.
	ErrNoVCPUID = errors.New("vcpu: failed to create vcpu")

	// ErrMissingCapability reports a required KVM extension the host
	// kernel does not support -- the KVM-mediated analogue of a firmware
	// policy rejecting VMXON.
	ErrMissingCapability = errors.New("vcpu: required KVM capability missing")

	// ErrUnsupportedSMP is returned when more than one vCPU is requested;
	// this build is pinned to exactly one (spec's single-LP non-goal).
	ErrUnsupportedSMP = errors.New("vcpu: only one vCPU is supported in this build")
)

// active holds the single vCPU this build ever creates, so panichandler
// can dump its state without a parameter -- the KVM-mediated rendition of
// spec's per-LP slot array, collapsed to one slot because NCPUs is pinned
// to 1.
var active [1]*Vcpu

// Active returns the currently registered vCPU, or nil if none has been
// created yet.
func Active() *Vcpu { return active[0] }

// Vcpu owns every fd and piece of guest-visible state one logical vCPU
// needs. kvmFD/vmFD/fd replace the VMXON region, the VM-wide allocation,
// and the VMCS region respectively; run is the mmap'd kvm_run page KVM
// and userspace exchange state through on every VM-entry/exit.
type Vcpu struct {
	log *vtxlog.Logger

	kvmFD, vmFD, fd uintptr
	run             *kvm.RunData

	mem      *memory.Memory
	guestMem []byte

	launchDone bool
	eptp       uint64

	pic          *i8259.PIC
	serial       *serial.Serial
	postcode     *device.PostCodeDevice
	acpiShutdown *iodev.ACPIShutDownDevice
}

// EnableVMX is the userspace-visible half of VMX enablement: the kernel
// performs the CR0/CR4 fixed-bit adjustment and IA32_FEATURE_CONTROL
// handling itself once KVM_CREATE_VM/KVM_CREATE_VCPU succeed, so this
// function's job is to fail hard, before either ioctl runs, if the host
// cannot support what this build needs.
func EnableVMX(kvmFD uintptr) error {
	ver, err := kvm.GetAPIVersion(kvmFD)
	if err != nil {
		return fmt.Errorf("vcpu: KVM_GET_API_VERSION: %w", err)
	}

	if ver != 12 {
		return fmt.Errorf("%w: KVM_GET_API_VERSION = %d, want 12", ErrMissingCapability, ver)
	}

	for _, cap := range []kvm.Capability{kvm.CapUserMemory, kvm.CapSetTSSAddr, kvm.CapEXTCPUID} {
		ok, err := kvm.CheckExtension(kvmFD, cap)
		if err != nil {
			return fmt.Errorf("vcpu: KVM_CHECK_EXTENSION(%s): %w", cap, err)
		}

		if ok <= 0 {
			return fmt.Errorf("%w: %s", ErrMissingCapability, cap)
		}
	}

	return nil
}

// New opens /dev/kvm, creates the VM and the single vCPU this build
// supports, and mmaps the shared kvm_run page. A request for more than one
// vCPU is rejected with a nil *Vcpu before anything is opened; on any later
// error it still returns the partially constructed *Vcpu so the caller can
// inspect what was allocated, the way the teacher's machine.New does.
func New(devPath string, ncpus int, memSize int) (*Vcpu, error) {
	if ncpus != 1 {
		return nil, fmt.Errorf("%w: requested %d", ErrUnsupportedSMP, ncpus)
	}

	v := &Vcpu{log: vtxlog.Default("vcpu")}

	devKVM, err := os.OpenFile(devPath, os.O_RDWR, 0o644)
	if err != nil {
		return v, fmt.Errorf("vcpu: open %s: %w", devPath, err)
	}

	v.kvmFD = devKVM.Fd()

	if err := EnableVMX(v.kvmFD); err != nil {
		return v, err
	}

	vmFD, err := kvm.CreateVM(v.kvmFD)
	if err != nil {
		return v, fmt.Errorf("vcpu: KVM_CREATE_VM: %w", err)
	}

	v.vmFD = vmFD

	if err := kvm.SetTSSAddr(v.vmFD, 0xffffd000); err != nil {
		return v, fmt.Errorf("vcpu: SetTSSAddr: %w", err)
	}

	if err := kvm.SetIdentityMapAddr(v.vmFD, 0xffffc000); err != nil {
		return v, fmt.Errorf("vcpu: SetIdentityMapAddr: %w", err)
	}

	if err := kvm.CreateIRQChip(v.vmFD); err != nil {
		return v, fmt.Errorf("vcpu: CreateIRQChip: %w", err)
	}

	if err := kvm.CreatePIT2(v.vmFD); err != nil {
		return v, fmt.Errorf("vcpu: CreatePIT2: %w", err)
	}

	fd, err := kvm.CreateVCPU(v.vmFD, 0)
	if err != nil {
		return v, fmt.Errorf("%w: %v", ErrNoVCPUID, err)
	}

	v.fd = fd

	if err := v.initCPUID(); err != nil {
		return v, err
	}

	mem, err := memory.New(v.kvmFD, memSize)
	if err != nil {
		return v, fmt.Errorf("vcpu: memory.New: %w", err)
	}

	v.mem = mem
	v.guestMem = mem.Slots[0].Buf

	mmapSize, err := kvm.GetVCPUMMmapSize(v.kvmFD)
	if err != nil {
		return v, fmt.Errorf("vcpu: GetVCPUMMmapSize: %w", err)
	}

	runPage, err := syscall.Mmap(int(v.fd), 0, int(mmapSize), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return v, fmt.Errorf("vcpu: mmap kvm_run page: %w", err)
	}

	v.run = (*kvm.RunData)(unsafe.Pointer(&runPage[0]))

	if err := ept.RegisterSlot(v.vmFD, v.guestMem, 0, v.mem.Slots[0].PhysAddr); err != nil {
		return v, fmt.Errorf("vcpu: RegisterSlot: %w", err)
	}

	v.eptp = ept.Pointer(v.mem.Slots[0].PhysAddr)

	v.pic = i8259.New()

	ser, err := serial.New(v)
	if err != nil {
		return v, fmt.Errorf("vcpu: serial.New: %w", err)
	}

	v.serial = ser
	v.postcode = &device.PostCodeDevice{}
	v.acpiShutdown = iodev.NewACPIShutDownEvent()

	active[0] = v
	panichandler.SetActive(v)

	return v, nil
}

// InjectSerialIRQ satisfies serial.IRQInjector by routing through
// kvm.IRQLine, the KVM-mediated equivalent of asserting the guest's
// interrupt pin directly.
func (v *Vcpu) InjectSerialIRQ() error {
	return kvm.IRQLine(v.vmFD, serialIRQ, 1)
}

// GuestMem exposes the backing buffer for callers staging boot data
// before the first Run.
func (v *Vcpu) GuestMem() []byte { return v.guestMem }

// Memory returns the slot-tracked allocation GuestMem is backed by, poisoned
// above the 1MiB mark with an undefined-instruction pattern so a guest that
// wanders into memory this loader never populated traps immediately instead
// of executing zero bytes as a valid instruction stream.
func (v *Vcpu) Memory() *memory.Memory { return v.mem }

// Serial returns the emulated COM1 UART.
func (v *Vcpu) Serial() *serial.Serial { return v.serial }

// PIC returns the emulated cascaded 8259 pair.
func (v *Vcpu) PIC() *i8259.PIC { return v.pic }

// hypervisorPresentBit is CPUID.1:ECX[31], the bit real hypervisors set so
// a guest OS can tell it isn't running on bare metal without probing for a
// KVM-specific leaf.
const hypervisorPresentBit = 31

func (v *Vcpu) initCPUID() error {
	ids := kvm.CPUID{Nent: 100}

	if err := kvm.GetSupportedCPUID(v.kvmFD, &ids); err != nil {
		return fmt.Errorf("vcpu: GetSupportedCPUID: %w", err)
	}

	for i := 0; i < int(ids.Nent); i++ {
		if ids.Entries[i].Function != kvm.CPUIDSignature {
			continue
		}

		ids.Entries[i].Eax = kvm.CPUIDFeatures
		ids.Entries[i].Ebx = 0x4b4d564b // "KVMK"
		ids.Entries[i].Ecx = 0x564b4d56 // "VMKV"
		ids.Entries[i].Edx = 0x4d       // "M"
	}

	if err := cpuid.Patch(&ids, []*cpuid.CPUIDPatch{
		{Function: 1, Index: 0, ECXBit: hypervisorPresentBit},
	}); err != nil {
		return fmt.Errorf("vcpu: cpuid.Patch: %w", err)
	}

	if err := kvm.SetCPUID2(v.fd, &ids); err != nil {
		return fmt.Errorf("vcpu: SetCPUID2: %w", err)
	}

	return nil
}
