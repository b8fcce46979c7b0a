package i8259_test

import (
	"testing"

	"github.com/kvmroot/vtx/i8259"
)

func TestMaskRoundTrip(t *testing.T) {
	t.Parallel()

	p := i8259.New()
	// New leaves every line masked; start from an unmasked Timer so the
	// set/unset pair has a state to return to.
	p.UnsetMask(i8259.Timer)

	before := p.ReadDataPort(i8259.PrimaryDataPort)

	p.SetMask(i8259.Timer)
	p.UnsetMask(i8259.Timer)

	after := p.ReadDataPort(i8259.PrimaryDataPort)
	if before != after {
		t.Fatalf("mask register not restored: before=%#x after=%#x", before, after)
	}
}

func TestInitSequenceSetsVectorOffset(t *testing.T) {
	t.Parallel()

	p := i8259.New()

	// ICW1: init + ICW4 needed.
	if err := p.WriteCommandPort(i8259.PrimaryCommandPort, 0x11); err != nil {
		t.Fatal(err)
	}

	// ICW2: vector offset.
	if err := p.WriteDataPort(i8259.PrimaryDataPort, 32); err != nil {
		t.Fatal(err)
	}

	// ICW3: cascade topology (ignored by a leaf test, still consumed).
	if err := p.WriteDataPort(i8259.PrimaryDataPort, 0x04); err != nil {
		t.Fatal(err)
	}

	// ICW4: 8086 mode.
	if err := p.WriteDataPort(i8259.PrimaryDataPort, 0x01); err != nil {
		t.Fatal(err)
	}

	if v := p.Vector(i8259.Timer); v != 32 {
		t.Fatalf("Vector(Timer) = %d, want 32", v)
	}

	if v := p.Vector(i8259.Keyboard); v != 33 {
		t.Fatalf("Vector(Keyboard) = %d, want 33", v)
	}
}

func TestSecondaryVectorOffset(t *testing.T) {
	t.Parallel()

	p := i8259.New()

	if v := p.Vector(i8259.SecondaryATA); v != 40+7 {
		t.Fatalf("Vector(SecondaryATA) = %d, want %d", v, 40+7)
	}
}

func TestMaskedDefaultsToAllMasked(t *testing.T) {
	t.Parallel()

	p := i8259.New()

	if !p.Masked(i8259.Timer) {
		t.Fatal("Timer should start masked")
	}

	p.UnsetMask(i8259.Timer)

	if p.Masked(i8259.Timer) {
		t.Fatal("Timer should be unmasked after UnsetMask")
	}
}
