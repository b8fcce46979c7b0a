package kvm

// numInterrupts is KVM_NR_INTERRUPTS, the width of Sregs.InterruptBitmap.
const numInterrupts = 0x100

// RunData mirrors struct kvm_run, the mmap'd page KVM and the caller
// exchange on every VM-entry/exit. Only the union members this package
// decodes are given fields; the rest lands in the Data padding.
type RunData struct {
	RequestInterruptWindow     uint8
	_                          [7]uint8
	ExitReason                 uint32
	ReadyForInterruptInjection uint8
	IfFlag                     uint8
	_                          [2]uint8
	CR8                        uint64
	ApicBase                   uint64
	Data                       [32]uint64
}

// IO decodes the kvm_run.io union for an EXITIO exit: direction, operand
// size in bytes, port number, repeat count, and the byte offset of the
// transfer buffer within the RunData page.
func (r *RunData) IO() (direction, size, port, count, offset uint64) {
	direction = r.Data[0] & 0xFF
	size = (r.Data[0] >> 8) & 0xFF
	port = (r.Data[0] >> 16) & 0xFFFF
	count = (r.Data[0] >> 32) & 0xFFFFFFFF
	offset = r.Data[1]

	return direction, size, port, count, offset
}

// MSR decodes the kvm_run.msr union shared by EXITX86RDMSR/EXITX86WRMSR.
func (r *RunData) MSR() (index uint32, data uint64) {
	// error u8, pad[7], reason u32, index u32, data u64
	index = uint32(r.Data[1] >> 32)
	data = r.Data[2]

	return index, data
}

// SetMSRData stores the value KVM should return for an EXITX86RDMSR exit.
func (r *RunData) SetMSRData(data uint64) {
	r.Data[2] = data
}
