package vcpu

import "github.com/kvmroot/vtx/kvm"

// CR0/CR4/EFER bits this build ever touches, recovered from the teacher's
// machine/constants.go.
const (
	cr0xPE = 1 << 0
	cr0xNE = 1 << 5
	cr0xWP = 1 << 16

	cr4xVMXE = 1 << 13
	cr4xCET  = 1 << 23

	eferxLME = 1 << 8
	eferxLMA = 1 << 10
)

// ldtSentinelBase marks an LDTR the guest never loads: this build never
// constructs an LDT, so LDTR.Base carries a recognizable poison value.
// ValidateGuestState does not check it.
const ldtSentinelBase = 0xDEAD00

// flatSegment builds a Segment.Typ/S/DPL/P/DB/G/L bundle for a 32-bit flat
// code or data segment covering the full 4GiB linear space.
func flatSegment(selector uint16, typ uint8, base uint64, limit uint32) kvm.Segment {
	return kvm.Segment{
		Base:     base,
		Limit:    limit,
		Selector: selector,
		Typ:      typ,
		Present:  1,
		DPL:      0,
		DB:       1,
		S:        1,
		L:        0,
		G:        1,
		AVL:      0,
		Unusable: 0,
	}
}

// gdtEntries is the number of descriptors gdt.NewFlatTable writes; this
// build's GDTR.limit always covers exactly that table.
const gdtEntries = 3

// SetupSregs puts the vCPU into 32-bit protected mode with flat,
// full-range code/data/stack segments and paging left off: this build
// never turns CR0.PG on, since the EPT-equivalent memory slot already
// gives the guest an identity-mapped linear address space without it.
// gdtBase is the guest-physical address the caller has already written a
// gdt.NewFlatTable() into -- CS/DS/ES/FS/GS/SS's selectors only resolve to
// real segments if GDTR actually points at the table backing them.
func (v *Vcpu) SetupSregs(gdtBase uint64) error {
	sregs, err := kvm.GetSregs(v.fd)
	if err != nil {
		return err
	}

	sregs.CR0 = cr0xPE | cr0xNE | 1<<4 // ET
	sregs.CR3 = 0
	sregs.CR4 = cr4xVMXE
	sregs.EFER = 0

	sregs.CS = flatSegment(0x08, 0x0b, 0, 0xffffffff) // execute/read, accessed
	sregs.DS = flatSegment(0x10, 0x03, 0, 0xffffffff) // read/write, accessed
	sregs.ES = sregs.DS
	sregs.FS = sregs.DS
	sregs.GS = sregs.DS
	sregs.SS = sregs.DS

	sregs.TR = kvm.Segment{
		Base: 0, Limit: 0xffff, Selector: 0x18,
		Typ: 0x0b, Present: 1, DPL: 0, DB: 0, S: 0, L: 0, G: 0, AVL: 0,
	}
	sregs.LDT = kvm.Segment{
		Base: ldtSentinelBase, Limit: 0, Selector: 0,
		Typ: 0x02, Present: 1, DPL: 0, DB: 0, S: 0, L: 0, G: 0, AVL: 0,
	}

	sregs.GDT = kvm.Descriptor{Base: gdtBase, Limit: gdtEntries*8 - 1}
	sregs.IDT = kvm.Descriptor{Base: 0, Limit: 0}

	return kvm.SetSregs(v.fd, sregs)
}

// SetupRegs places RIP at the guest image's entry point with RSI pointing
// at the staged Linux boot_params block (bootParamAddr), as the Linux
// 32-bit boot protocol expects.
func (v *Vcpu) SetupRegs(entry uint64) error {
	regs, err := kvm.GetRegs(v.fd)
	if err != nil {
		return err
	}

	regs.RFLAGS = 0x2
	regs.RIP = entry
	regs.RSP = 0
	regs.RBP = 0
	regs.RSI = bootParamAddr

	return kvm.SetRegs(v.fd, regs)
}
