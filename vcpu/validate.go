package vcpu

import (
	"github.com/kvmroot/vtx/kvm"
	"github.com/kvmroot/vtx/panichandler"
)

// canonical reports whether addr is a canonical 64-bit address: bits
// 63:47 all equal. Every bare-metal-derived base/pointer check in this
// build still runs this test even though the guest never leaves 32-bit
// mode, matching the letter of the ported validation rules.
func canonical(addr uint64) bool {
	top := addr >> 47

	return top == 0 || top == (1<<17)-1
}

// legalPATEntry reports whether b is one of the six memory types
// IA32_PAT permits per byte (SDM Table 11-10): UC, WC, WT, WP, WB, UC-.
func legalPATEntry(b byte) bool {
	switch b {
	case 0, 1, 4, 5, 6, 7:
		return true
	default:
		return false
	}
}

const (
	msrIA32SysenterESP = 0x175
	msrIA32SysenterEIP = 0x176
	msrIA32PAT         = 0x277
)

// ValidateGuestState runs the full guest-state gate before every Run,
// panicking via panichandler.Fatal on the first violation found. It is
// never compiled out: this is the one check spec insists survives in
// release builds.
func (v *Vcpu) ValidateGuestState() error {
	sregs, err := kvm.GetSregs(v.fd)
	if err != nil {
		return err
	}

	regs, err := kvm.GetRegs(v.fd)
	if err != nil {
		return err
	}

	validateControlRegs(sregs)
	validateSegments(sregs)
	validateDescriptorTables(sregs)
	validateRIPAndFlags(regs)

	if err := v.validateMSRs(); err != nil {
		return err
	}

	return v.validateActivityState()
}

func validateControlRegs(sregs *kvm.Sregs) {
	if sregs.CR0&cr0xPE == 0 {
		panichandler.Fatal("CR0.PE must be 1")
	}

	if sregs.CR0&(1<<31) != 0 { // PG
		panichandler.Fatal("CR0.PG must be 0")
	}

	if sregs.CR4&cr4xVMXE == 0 {
		panichandler.Fatal("CR4.VMXE must be 1")
	}

	if sregs.CR4&(1<<5) != 0 { // PAE
		panichandler.Fatal("CR4.PAE must be 0")
	}

	if sregs.CR4&cr4xCET != 0 && sregs.CR0&cr0xWP == 0 {
		panichandler.Fatal("CR4.CET requires CR0.WP")
	}

	if sregs.CR3>>52 != 0 {
		panichandler.Fatal("CR3 upper bits must be zero")
	}

	lma := sregs.EFER&eferxLMA != 0
	lme := sregs.EFER&eferxLME != 0

	if lma || lme {
		panichandler.Fatal("EFER.LMA/LME must be 0 in this build")
	}
}

func validateOneSegment(name string, s kvm.Segment, requireS bool) {
	if s.Unusable != 0 {
		return
	}

	if !canonical(s.Base) {
		panichandler.Fatal(name + ".Base must be canonical")
	}

	if requireS && s.S == 0 {
		panichandler.Fatal(name + ".S must be 1")
	}

	if s.Present == 0 {
		panichandler.Fatal(name + ".Present must be 1")
	}

	if s.L != 0 {
		panichandler.Fatal(name + ".L must be 0 outside long mode")
	}

	if s.G == 0 && s.Limit > 0xfffff {
		panichandler.Fatal(name + ": byte-granular limit exceeds 0xFFFFF")
	}

	if s.G != 0 && s.Limit&0xfff != 0xfff {
		panichandler.Fatal(name + ": 4KiB-granular limit must have bits 11:0 set")
	}

	// Every code/data segment this build loads is a flat 32-bit segment
	// (setup.flatSegment); a default operand size of 16 bits would mean
	// something set up a segment this guest-state gate doesn't expect.
	if requireS && s.S != 0 && s.DB == 0 {
		panichandler.Fatal(name + ".DB must be 1 in 32-bit protected mode")
	}
}

func validateSegments(sregs *kvm.Sregs) {
	validateOneSegment("CS", sregs.CS, true)
	validateOneSegment("DS", sregs.DS, true)
	validateOneSegment("ES", sregs.ES, true)
	validateOneSegment("FS", sregs.FS, true)
	validateOneSegment("GS", sregs.GS, true)
	validateOneSegment("SS", sregs.SS, true)
	validateOneSegment("TR", sregs.TR, false)
	validateOneSegment("LDT", sregs.LDT, false)

	if sregs.TR.Selector&0x4 != 0 {
		panichandler.Fatal("TR selector TI must be 0")
	}

	if sregs.LDT.Selector&0x4 != 0 {
		panichandler.Fatal("LDTR selector TI must be 0")
	}

	if sregs.CS.DPL != sregs.SS.DPL {
		panichandler.Fatal("CS.rights: Invalid value (DPL)")
	}
}

func validateDescriptorTables(sregs *kvm.Sregs) {
	if !canonical(sregs.GDT.Base) {
		panichandler.Fatal("GDTR.Base must be canonical")
	}

	if !canonical(sregs.IDT.Base) {
		panichandler.Fatal("IDTR.Base must be canonical")
	}

	// The VMCS link pointer is meant to read all-ones outside nested
	// virtualization, but it is internal VMCS state the stable KVM UAPI
	// never surfaces to userspace under any ioctl -- there is nothing to
	// read here, so this build cannot check it and does not pretend to.
}

func validateRIPAndFlags(regs *kvm.Regs) {
	if regs.RIP>>32 != 0 {
		panichandler.Fatal("RIP upper half must be zero outside long mode")
	}

	const (
		rflagsBit1 = 1 << 1
		rflagsVM   = 1 << 17
	)

	if regs.RFLAGS&rflagsBit1 == 0 {
		panichandler.Fatal("RFLAGS bit 1 must be set")
	}

	if regs.RFLAGS&rflagsVM != 0 {
		panichandler.Fatal("RFLAGS.VM must be clear")
	}
}

// validateMSRs checks the two remaining pieces of non-register guest
// state the VMX entry checks cover that live in MSRs rather than Sregs:
// SYSENTER_ESP/EIP must be canonical, and every byte of IA32_PAT must
// encode one of the six legal memory types.
func (v *Vcpu) validateMSRs() error {
	msrs := &kvm.MSRs{NMSRs: 3}
	msrs.Entries[0].Index = msrIA32SysenterESP
	msrs.Entries[1].Index = msrIA32SysenterEIP
	msrs.Entries[2].Index = msrIA32PAT

	if err := kvm.GetMSRs(v.fd, msrs); err != nil {
		return err
	}

	if !canonical(msrs.Entries[0].Data) {
		panichandler.Fatal("IA32_SYSENTER_ESP must be canonical")
	}

	if !canonical(msrs.Entries[1].Data) {
		panichandler.Fatal("IA32_SYSENTER_EIP must be canonical")
	}

	pat := msrs.Entries[2].Data
	for i := 0; i < 8; i++ {
		if !legalPATEntry(byte(pat >> (8 * i))) {
			panichandler.Fatal("IA32_PAT contains an illegal memory-type encoding")
		}
	}

	return nil
}

// validateActivityState checks the one piece of non-register guest state
// the stable KVM UAPI does expose: the vcpu's MP state, the userspace
// analogue of the VMCS's GUEST_ACTIVITY_STATE field. This build never
// puts the guest to sleep or waits for a startup IPI, so anything but
// runnable means a Run would not do what the caller expects.
func (v *Vcpu) validateActivityState() error {
	state := &kvm.MPState{}
	if err := kvm.GetMPState(v.fd, state); err != nil {
		return err
	}

	if state.MPState != kvm.MPStateRunnable {
		panichandler.Fatal("vcpu activity state must be runnable")
	}

	return nil
}
