package acpi

import (
	"encoding/binary"
	"errors"
)

var (
	// ErrBadRSDPSignature reports an RSDP whose 8-byte signature is not
	// "RSD PTR ", and is also what ValidateHeader returns when a table's
	// 4-byte signature is not the one asked for.
	ErrBadRSDPSignature = errors.New("acpi: bad RSDP signature")

	// ErrBadChecksum reports a checksum mismatch in the legacy 20-byte
	// region every RSDP revision carries.
	ErrBadChecksum = errors.New("acpi: checksum mismatch")

	// ErrInvalidExtendedChecksum reports a checksum mismatch confined to
	// the ACPI 2.0+ extended region (bytes 20:36): the legacy checksum
	// still validates, so an ACPI 1.0 parser reading only the first 20
	// bytes would accept this table while a 2.0+ parser must not.
	ErrInvalidExtendedChecksum = errors.New("acpi: invalid extended checksum")

	// ErrTruncated reports an ACPI structure too short for its own
	// declared length.
	ErrTruncated = errors.New("acpi: truncated table")
)

// RSDP is the Root System Description Pointer, the structure a firmware
// hands a kernel the guest-physical address of via EFI configuration
// tables; here it is what this loader, standing in for firmware, builds
// for the guest and what ParseRSDP checks if handed an existing one
// (e.g. when re-parsing what was just written, or chain-loading a guest
// image that already carries ACPI tables of its own).
type RSDP struct {
	Signature   [8]byte
	Checksum    uint8
	OEMID       [6]byte
	Revision    uint8
	RSDTAddress uint32
	Length      uint32
	XSDTAddress uint64
	ExtChecksum uint8
	_           [3]byte
}

const rsdpSignature = "RSD PTR "

// ParseRSDP validates and decodes an RSDP out of raw bytes. ACPI 1.0
// tables (20 bytes, Revision 0) are accepted with XSDTAddress left zero;
// ACPI 2.0+ tables (36 bytes, Revision >= 2) get the extended checksum
// checked too.
func ParseRSDP(b []byte) (*RSDP, error) {
	if len(b) < 20 {
		return nil, ErrTruncated
	}

	if string(b[0:8]) != rsdpSignature {
		return nil, ErrBadRSDPSignature
	}

	if sum8(b[0:20]) != 0 {
		return nil, ErrBadChecksum
	}

	r := &RSDP{}
	copy(r.Signature[:], b[0:8])
	r.Checksum = b[8]
	copy(r.OEMID[:], b[9:15])
	r.Revision = b[15]
	r.RSDTAddress = binary.LittleEndian.Uint32(b[16:20])

	if r.Revision < 2 || len(b) < 36 {
		return r, nil
	}

	if sum8(b[0:36]) != 0 {
		return nil, ErrInvalidExtendedChecksum
	}

	r.Length = binary.LittleEndian.Uint32(b[20:24])
	r.XSDTAddress = binary.LittleEndian.Uint64(b[24:32])
	r.ExtChecksum = b[32]

	return r, nil
}

// ValidateHeader checksums a full ACPI table (its Header plus whatever
// payload follows), the same byte-sum-to-zero rule every ACPI table uses.
func ValidateHeader(signature Signature, raw []byte) error {
	if len(raw) < 36 {
		return ErrTruncated
	}

	sigBytes := signature.ToBytes()
	if string(raw[0:4]) != string(sigBytes[:]) {
		return ErrBadRSDPSignature
	}

	if sum8(raw) != 0 {
		return ErrBadChecksum
	}

	return nil
}

// setHeaderChecksum patches byte offset 9 (Header.Checksum) of an
// already-serialized ACPI table in place, for tables like MADT that
// expose no Checksum method of their own.
func setHeaderChecksum(raw []byte) {
	if len(raw) < 10 {
		return
	}

	raw[9] = 0
	raw[9] = twosComplementSum8(raw)
}

func sum8(b []byte) uint8 {
	var s uint8
	for _, c := range b {
		s += c
	}

	return s
}

// BuildRSDP packs an ACPI 2.0 RSDP pointing at an XSDT already written at
// xsdtAddr, matching the byte layout ParseRSDP decodes.
func BuildRSDP(oemid string, xsdtAddr uint64) []byte {
	b := make([]byte, 36)
	copy(b[0:8], rsdpSignature)
	oemID := convertOEMID(oemid)
	copy(b[9:15], oemID[:])
	b[15] = 2 // ACPI 2.0+
	binary.LittleEndian.PutUint32(b[20:24], 36)
	binary.LittleEndian.PutUint64(b[24:32], xsdtAddr)

	b[8] = twosComplementSum8(b[0:20])
	b[32] = twosComplementSum8(b[0:36])

	return b
}

func twosComplementSum8(b []byte) uint8 {
	return uint8(0) - sum8(b)
}

// BuildGuestTables constructs a minimal XSDT/FADT/MADT chain describing
// this build's single vCPU and writes it into guestMem starting at addr,
// returning the guest-physical address of the RSDP cmd/vtxloader should
// carry in bootinfo.Info.RSDP.
func BuildGuestTables(guestMem []byte, addr uint64, lapicID uint8) (rsdpAddr uint64, err error) {
	const oemID, oemTableID, creatorID = "KVMROOT", "VTXTABLE", "KVMR"

	madt := MADT{}
	madt.AddAPIC(&LocalAPIC{
		Type: TypeLocalAPIC, Length: 8,
		ProcessorID: lapicID, APICId: lapicID, Flags: 1,
	})

	madtBytes, err := madt.ToBytes()
	if err != nil {
		return 0, err
	}

	setHeaderChecksum(madtBytes)

	fadt := NewFADT(oemID, oemTableID, creatorID)
	if err := fadt.Checksum(); err != nil {
		return 0, err
	}

	fadtBytes, err := fadt.ToBytes()
	if err != nil {
		return 0, err
	}

	fadtAddr := addr
	madtAddr := fadtAddr + uint64(len(fadtBytes))
	xsdtAddr := madtAddr + uint64(len(madtBytes))

	xsdt := NewXSDT(oemID, oemTableID, creatorID)
	xsdt.AddEntry(fadtAddr)
	xsdt.AddEntry(madtAddr)

	if err := xsdt.Checksum(); err != nil {
		return 0, err
	}

	xsdtBytes, err := xsdt.ToBytes()
	if err != nil {
		return 0, err
	}

	copy(guestMem[fadtAddr:], fadtBytes)
	copy(guestMem[madtAddr:], madtBytes)
	copy(guestMem[xsdtAddr:], xsdtBytes)

	rsdpAddr = xsdtAddr + uint64(len(xsdtBytes))
	copy(guestMem[rsdpAddr:], BuildRSDP(oemID, xsdtAddr))

	return rsdpAddr, nil
}
