package iodev_test

import (
	"testing"

	"github.com/kvmroot/vtx/iodev"
)

func TestNewACPIShutDownEventDefaultPort(t *testing.T) {
	t.Parallel()

	a := iodev.NewACPIShutDownEvent()

	if a.IOPort() != 0x600 {
		t.Fatalf("IOPort() = %#x, want 0x600", a.IOPort())
	}

	if a.Shutdown || a.Reboot {
		t.Fatal("a freshly created device must not report shutdown/reboot")
	}
}

func TestACPIShutDownDeviceWriteS5ValueSetsShutdown(t *testing.T) {
	t.Parallel()

	a := iodev.NewACPIShutDownEvent()

	// S5SleepVal(5)<<SleepValBit(2) | 1<<SleepStatusENBit(5) = 0x34.
	if err := a.Write(a.IOPort(), []byte{0x34}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if !a.Shutdown {
		t.Fatal("expected Shutdown to be set after writing the S5 sleep value")
	}

	if a.Reboot {
		t.Fatal("Reboot must not be set by the S5 sleep value")
	}
}

func TestACPIShutDownDeviceWriteOneSetsReboot(t *testing.T) {
	t.Parallel()

	a := iodev.NewACPIShutDownEvent()

	if err := a.Write(a.IOPort(), []byte{1}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if !a.Reboot {
		t.Fatal("expected Reboot to be set after writing 1")
	}

	if a.Shutdown {
		t.Fatal("Shutdown must not be set by the reboot value")
	}
}

func TestACPIShutDownDeviceWriteUnrelatedValueIsNoop(t *testing.T) {
	t.Parallel()

	a := iodev.NewACPIShutDownEvent()

	if err := a.Write(a.IOPort(), []byte{0xff}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if a.Shutdown || a.Reboot {
		t.Fatal("an unrelated value must not set Shutdown or Reboot")
	}
}

func TestACPIShutDownDeviceReadAlwaysZero(t *testing.T) {
	t.Parallel()

	a := iodev.NewACPIShutDownEvent()
	buf := []byte{0xaa}

	if err := a.Read(a.IOPort(), buf); err != nil {
		t.Fatalf("Read: %v", err)
	}

	if buf[0] != 0 {
		t.Fatalf("Read() = %#x, want 0", buf[0])
	}
}
