// Package vtx is the KVM-mediated kernel entry both cmd/vtxloader and
// cmd/vtxhv call into: the point where a boot-info record turns into a
// running guest. Everything a bare-metal type-1 hypervisor's naked-function
// entry point would do -- enable VMX, build the vCPU, populate guest
// memory, validate guest state, and loop on VM-exits -- happens here.
package vtx

import (
	"bytes"
	"fmt"
	"runtime"

	"github.com/kvmroot/vtx/acpi"
	"github.com/kvmroot/vtx/bootinfo"
	"github.com/kvmroot/vtx/bootparam"
	"github.com/kvmroot/vtx/ebda"
	"github.com/kvmroot/vtx/gdt"
	"github.com/kvmroot/vtx/vcpu"
	"github.com/kvmroot/vtx/vtxlog"
)

var log = vtxlog.Default("vtx")

// guest-physical layout this package stages before the first Run,
// matching vcpu's own constants.
const (
	kernelBase    = 0x100000
	bootParamAddr = 0x10000
	gdtAddr       = 0x1000
	acpiAddr      = 0x200000
)

// Config carries the loader-resolved settings vtx.Main needs beyond what
// lives in bootinfo.Info: the device path and memory size a hosted
// process must supply itself since there is no firmware here to have
// negotiated them already.
type Config struct {
	DevPath string
	MemSize int
	NCPUs   int
	Cmdline string
}

// Main opens /dev/kvm, creates the VM and single vCPU, builds the
// EPT-equivalent memory layout, stages the Linux boot parameters and ACPI
// tables, validates guest state, and runs the vCPU until it halts or
// shuts down.
func Main(cfg Config, info *bootinfo.Info) error {
	bootinfo.Validate(info)

	if cfg.MemSize < vcpu.MinMemSize {
		cfg.MemSize = vcpu.MinMemSize
	}

	runtime.LockOSThread()

	v, err := vcpu.New(cfg.DevPath, cfg.NCPUs, cfg.MemSize)
	if err != nil {
		return fmt.Errorf("vtx: vcpu.New: %w", err)
	}

	if err := stageGuestMemory(v, cfg, info); err != nil {
		return fmt.Errorf("vtx: staging guest memory: %w", err)
	}

	if err := v.SetupSregs(gdtAddr); err != nil {
		return fmt.Errorf("vtx: SetupSregs: %w", err)
	}

	if err := v.SetupRegs(kernelBase); err != nil {
		return fmt.Errorf("vtx: SetupRegs: %w", err)
	}

	return runLoop(v)
}

func stageGuestMemory(v *vcpu.Vcpu, cfg Config, info *bootinfo.Info) error {
	mem := v.GuestMem()

	if len(info.Guest.Image) == 0 {
		return fmt.Errorf("vtx: empty guest image")
	}

	bp, err := bootparam.New(bytes.NewReader(info.Guest.Image))
	if err != nil {
		return err
	}

	bp.AddE820Entry(0, kernelBase, bootparam.E820Ram)
	bp.AddE820Entry(kernelBase, uint64(len(mem))-kernelBase, bootparam.E820Ram)

	protectedModeOff := 512 * (int(bp.SetupSects) + 1)
	if protectedModeOff >= len(info.Guest.Image) {
		return fmt.Errorf("vtx: bzImage too small: setup took %d of %d bytes",
			protectedModeOff, len(info.Guest.Image))
	}

	copy(mem[kernelBase:], info.Guest.Image[protectedModeOff:])

	const cmdlineAddr = 0x20000

	bp.TypeOfLoader = 0xff
	bp.LoadFlags |= bootparam.LoadedHigh | bootparam.CanUseHeap | bootparam.KeepSegments
	bp.HeapEndPtr = uint16(bootParamAddr - 0x200)
	bp.CmdlinePtr = cmdlineAddr
	bp.VidMode = 0xffff

	cmdline := cfg.Cmdline
	if cmdline == "" {
		cmdline = "console=ttyS0"
	}

	cmdlineBuf := make([]byte, bp.CmdlineSize)
	copy(cmdlineBuf, cmdline)
	copy(mem[cmdlineAddr:], cmdlineBuf)

	if len(info.Guest.Initrd) > 0 {
		const initrdAddr = 0xf000000

		copy(mem[initrdAddr:], info.Guest.Initrd)
		bp.RamdiskImage = initrdAddr
		bp.RamdiskSize = uint32(len(info.Guest.Initrd))
	}

	raw, err := bp.Bytes()
	if err != nil {
		return err
	}

	copy(mem[bootParamAddr:], raw)

	gdt.NewFlatTable().WriteTo(mem, gdtAddr)

	e, err := ebda.New(cfg.NCPUs)
	if err != nil {
		return err
	}

	ebdaBytes, err := e.Bytes()
	if err != nil {
		return err
	}

	copy(mem[bootparam.EBDAStart:], ebdaBytes)

	rsdpAddr, err := acpi.BuildGuestTables(mem, acpiAddr, 0)
	if err != nil {
		return err
	}

	info.RSDP = uintptr(rsdpAddr)

	return nil
}

func runLoop(v *vcpu.Vcpu) error {
	for {
		if err := v.ValidateGuestState(); err != nil {
			return err
		}

		reason, err := v.Run()
		if err != nil {
			return fmt.Errorf("vtx: Run: %w", err)
		}

		done, err := v.Dispatch(reason)
		if err != nil {
			return fmt.Errorf("vtx: Dispatch: %w", err)
		}

		if done {
			log.Infof("guest run loop exiting")

			return nil
		}
	}
}
