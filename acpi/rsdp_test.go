package acpi_test

import (
	"errors"
	"testing"

	"github.com/kvmroot/vtx/acpi"
)

func TestBuildAndParseRSDPRoundTrips(t *testing.T) {
	t.Parallel()

	raw := acpi.BuildRSDP("KVMROOT", 0x2000)

	r, err := acpi.ParseRSDP(raw)
	if err != nil {
		t.Fatalf("ParseRSDP: %v", err)
	}

	if string(r.Signature[:]) != "RSD PTR " {
		t.Fatalf("Signature = %q, want %q", r.Signature, "RSD PTR ")
	}

	if r.Revision != 2 {
		t.Fatalf("Revision = %d, want 2", r.Revision)
	}

	if r.XSDTAddress != 0x2000 {
		t.Fatalf("XSDTAddress = %#x, want 0x2000", r.XSDTAddress)
	}
}

func TestParseRSDPRejectsBadSignature(t *testing.T) {
	t.Parallel()

	raw := acpi.BuildRSDP("KVMROOT", 0x2000)
	raw[0] = 'X'

	if _, err := acpi.ParseRSDP(raw); err == nil {
		t.Fatal("expected an error parsing an RSDP with a corrupted signature")
	}
}

func TestParseRSDPRejectsBadChecksum(t *testing.T) {
	t.Parallel()

	raw := acpi.BuildRSDP("KVMROOT", 0x2000)
	raw[8] ^= 0xff

	_, err := acpi.ParseRSDP(raw)
	if !errors.Is(err, acpi.ErrBadChecksum) {
		t.Fatalf("ParseRSDP with corrupted legacy checksum: err = %v, want %v", err, acpi.ErrBadChecksum)
	}
}

func TestParseRSDPRejectsBadExtendedChecksum(t *testing.T) {
	t.Parallel()

	raw := acpi.BuildRSDP("KVMROOT", 0x2000)
	raw[32] ^= 0xff

	_, err := acpi.ParseRSDP(raw)
	if !errors.Is(err, acpi.ErrInvalidExtendedChecksum) {
		t.Fatalf("ParseRSDP with corrupted extended checksum: err = %v, want %v", err, acpi.ErrInvalidExtendedChecksum)
	}

	if errors.Is(err, acpi.ErrBadChecksum) {
		t.Fatal("corrupted extended checksum must not also compare equal to ErrBadChecksum")
	}
}

func TestParseRSDPRejectsTruncatedInput(t *testing.T) {
	t.Parallel()

	if _, err := acpi.ParseRSDP([]byte("short")); err == nil {
		t.Fatal("expected an error parsing fewer than 20 bytes")
	}
}

func TestParseRSDPAcceptsLegacyACPI1Table(t *testing.T) {
	t.Parallel()

	raw := acpi.BuildRSDP("KVMROOT", 0x2000)[:20]
	raw[15] = 0 // Revision 0, legacy ACPI 1.0.

	sum := uint8(0)
	for _, b := range raw {
		sum += b
	}
	raw[8] -= sum

	r, err := acpi.ParseRSDP(raw)
	if err != nil {
		t.Fatalf("ParseRSDP: %v", err)
	}

	if r.XSDTAddress != 0 {
		t.Fatalf("XSDTAddress = %#x, want 0 for an ACPI 1.0 table", r.XSDTAddress)
	}
}

func TestBuildGuestTablesProducesValidatableChain(t *testing.T) {
	t.Parallel()

	mem := make([]byte, 0x10000)

	rsdpAddr, err := acpi.BuildGuestTables(mem, 0x1000, 0)
	if err != nil {
		t.Fatalf("BuildGuestTables: %v", err)
	}

	r, err := acpi.ParseRSDP(mem[rsdpAddr:])
	if err != nil {
		t.Fatalf("ParseRSDP on built RSDP: %v", err)
	}

	if err := acpi.ValidateHeader(acpi.SigXSDT, mem[r.XSDTAddress:]); err != nil {
		t.Fatalf("ValidateHeader(XSDT): %v", err)
	}
}

func TestValidateHeaderRejectsWrongSignature(t *testing.T) {
	t.Parallel()

	fadt := acpi.NewFADT("KVMROOT", "VTXTABLE", "KVMR")
	if err := fadt.Checksum(); err != nil {
		t.Fatalf("Checksum: %v", err)
	}

	raw, err := fadt.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}

	if err := acpi.ValidateHeader(acpi.SigXSDT, raw); err == nil {
		t.Fatal("expected an error validating a FACP table against the XSDT signature")
	}
}
