package vcpu

import (
	"fmt"
	"strings"

	"github.com/kvmroot/vtx/kvm"
)

// Dump satisfies panichandler.Dumper, giving a fatal-path diagnostic
// snapshot of general and special register state without requiring the
// caller to already have fresh kvm.Regs/Sregs in hand.
func (v *Vcpu) Dump() string {
	var b strings.Builder

	regs, err := kvm.GetRegs(v.fd)
	if err != nil {
		fmt.Fprintf(&b, "vcpu: GetRegs failed: %v\n", err)
	} else {
		fmt.Fprintf(&b, "RIP=%#016x RSP=%#016x RFLAGS=%#016x\n", regs.RIP, regs.RSP, regs.RFLAGS)
		fmt.Fprintf(&b, "RAX=%#016x RBX=%#016x RCX=%#016x RDX=%#016x\n", regs.RAX, regs.RBX, regs.RCX, regs.RDX)
		fmt.Fprintf(&b, "RSI=%#016x RDI=%#016x RBP=%#016x\n", regs.RSI, regs.RDI, regs.RBP)
	}

	sregs, err := kvm.GetSregs(v.fd)
	if err != nil {
		fmt.Fprintf(&b, "vcpu: GetSregs failed: %v\n", err)
	} else {
		fmt.Fprintf(&b, "CR0=%#x CR2=%#x CR3=%#x CR4=%#x EFER=%#x\n",
			sregs.CR0, sregs.CR2, sregs.CR3, sregs.CR4, sregs.EFER)
		fmt.Fprintf(&b, "CS={base=%#x limit=%#x sel=%#x} SS={base=%#x limit=%#x sel=%#x}\n",
			sregs.CS.Base, sregs.CS.Limit, sregs.CS.Selector,
			sregs.SS.Base, sregs.SS.Limit, sregs.SS.Selector)
	}

	fmt.Fprintf(&b, "guestMem: %d bytes, eptp=%#x, launchDone=%v\n", len(v.guestMem), v.eptp, v.launchDone)

	return b.String()
}
