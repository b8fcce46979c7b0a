package iodev

import "log"

// This device is used by EDK2/CloudHv to let the host know about a shutdown.
// On the host side, the vcpu run loop stops once Shutdown is set.
// See: https://github.com/cloud-hypervisor/edk2/blob/ch/OvmfPkg/Include/IndustryStandard/CloudHv.h

const (
	ACPIShutDownDevPort = uint64(0x600)
)

// ACPIShutDownDevice models the guest-facing side of the ACPI S5 control
// port: the run loop polls Shutdown after each port access (Reboot is
// recorded but nothing reads it) instead of
// the channel fan-out a full VMM would use, since this build has exactly
// one vCPU and no separate device-manager goroutine to signal.
type ACPIShutDownDevice struct {
	Port     uint64
	Shutdown bool
	Reboot   bool
}

func NewACPIShutDownEvent() *ACPIShutDownDevice {
	return &ACPIShutDownDevice{
		Port: ACPIShutDownDevPort,
	}
}

func (a *ACPIShutDownDevice) Read(base uint64, data []byte) error {
	data[0] = 0

	return nil
}

func (a *ACPIShutDownDevice) Write(base uint64, data []byte) error {
	if data[0] == 1 {
		a.Reboot = true
		log.Println("ACPI Reboot signaled")
	}
	// The ACPI DSDT table specifies the S5 sleep state (shutdown) as value 5
	S5SleepVal := uint8(5)
	SleepStatusENBit := uint8(5)
	SleepValBit := uint8(2)

	if data[0] == (S5SleepVal<<SleepValBit)|(1<<SleepStatusENBit) {
		a.Shutdown = true
		log.Println("ACPI Shutdown signalled")
	}

	return nil
}

func (a *ACPIShutDownDevice) IOPort() uint64 {
	return a.Port
}

func (a *ACPIShutDownDevice) Size() uint64 {
	return 0x8
}
