package kvm

import "fmt"

// Capability is a KVM_CAP_* extension identifier, as queried through
// CheckExtension.
type Capability uint

const (
	CapIRQChip                  Capability = 0
	CapHLT                      Capability = 1
	CapMMUShadowCacheControl    Capability = 2
	CapUserMemory               Capability = 3
	CapSetTSSAddr               Capability = 4
	CapVAPIC                    Capability = 6
	CapEXTCPUID                 Capability = 7
	CapClockSource              Capability = 8
	CapNRVCPUs                  Capability = 9
	CapNRMemSlots               Capability = 10
	CapPIT                      Capability = 11
	CapNOPIODelay               Capability = 12
	CapPVMMU                    Capability = 13
	CapMPState                  Capability = 14
	CapCoalescedMMIO            Capability = 15
	CapSyncMMU                  Capability = 16
	CapIOMMU                    Capability = 18
	CapDestroyMemoryRegionWorks Capability = 21
	CapUserNMI                  Capability = 22
	CapSetGuestDebug            Capability = 23
	CapReinjectControl          Capability = 24
	CapIRQRouting               Capability = 25
	CapIRQInjectStatus          Capability = 26
	CapAssignDevIRQ             Capability = 29
	CapJoinMemoryRegionsWorks   Capability = 30
	CapMCE                      Capability = 31
	CapIRQFD                    Capability = 32
	CapPIT2                     Capability = 33
	CapSetBootCPUID             Capability = 34
	CapPITState2                Capability = 35
	CapIOEventFD                Capability = 36
	CapSetIdentityMapAddr       Capability = 37
	CapXENHVM                   Capability = 38
	CapAdjustClock              Capability = 39
	CapInternalErrorData        Capability = 40
	CapVCPUEvents               Capability = 41
	CapS390PSW                  Capability = 42
	CapPPCSegstate              Capability = 43
	CapHyperv                   Capability = 44
	CapHypervVapic              Capability = 45
	CapHypervSpin               Capability = 46
	CapPCIsegment               Capability = 47
	CapPPCPairedSingles         Capability = 48
	CapDebugRegs                Capability = 50
	CapX86RobustSinglestep      Capability = 51
	CapPPCOSI                   Capability = 52
	CapPPCUnsetIRQ              Capability = 53
	CapEnableCap                Capability = 54
	CapXSave                    Capability = 55
	CapXCRS                     Capability = 56
	CapPPCGetPVInfo             Capability = 57
	CapPPCIRQLevel              Capability = 58
	CapAsyncPF                  Capability = 59
	CapTscControl               Capability = 60
	CapGetTscKHz                Capability = 61
	CapPPCBookeSregs            Capability = 62
	CapSPAPRTCE                 Capability = 63
	CapPPCSmt                   Capability = 64
	CapPPCRma                   Capability = 65
	CapMaxVCPUs                 Capability = 66
	CapPPCHior                  Capability = 67
	CapPPCPapr                  Capability = 68
	CapSWTLB                    Capability = 69
	CapOneReg                   Capability = 70
	CapS390GmapCap              Capability = 71
	CapTscDeadlineTimer         Capability = 72
	CapS390UControl             Capability = 73
	CapPPCSmtPossible           Capability = 75
	CapKVMClockCtrl             Capability = 76
)

var capabilityNames = map[Capability]string{
	CapIRQChip:                  "CapIRQChip",
	CapHLT:                      "CapHLT",
	CapMMUShadowCacheControl:    "CapMMUShadowCacheControl",
	CapUserMemory:               "CapUserMemory",
	CapSetTSSAddr:               "CapSetTSSAddr",
	CapVAPIC:                    "CapVAPIC",
	CapEXTCPUID:                 "CapEXTCPUID",
	CapClockSource:              "CapClockSource",
	CapNRVCPUs:                  "CapNRVCPUs",
	CapNRMemSlots:               "CapNRMemSlots",
	CapPIT:                      "CapPIT",
	CapNOPIODelay:               "CapNOPIODelay",
	CapPVMMU:                    "CapPVMMU",
	CapMPState:                  "CapMPState",
	CapCoalescedMMIO:            "CapCoalescedMMIO",
	CapSyncMMU:                  "CapSyncMMU",
	CapIOMMU:                    "CapIOMMU",
	CapDestroyMemoryRegionWorks: "CapDestroyMemoryRegionWorks",
	CapUserNMI:                  "CapUserNMI",
	CapSetGuestDebug:            "CapSetGuestDebug",
	CapReinjectControl:          "CapReinjectControl",
	CapIRQRouting:               "CapIRQRouting",
	CapIRQInjectStatus:          "CapIRQInjectStatus",
	CapAssignDevIRQ:             "CapAssignDevIRQ",
	CapJoinMemoryRegionsWorks:   "CapJoinMemoryRegionsWorks",
	CapMCE:                      "CapMCE",
	CapIRQFD:                    "CapIRQFD",
	CapPIT2:                     "CapPIT2",
	CapSetBootCPUID:             "CapSetBootCPUID",
	CapPITState2:                "CapPITState2",
	CapIOEventFD:                "CapIOEventFD",
	CapSetIdentityMapAddr:       "CapSetIdentityMapAddr",
	CapXENHVM:                   "CapXENHVM",
	CapAdjustClock:              "CapAdjustClock",
	CapInternalErrorData:        "CapInternalErrorData",
	CapVCPUEvents:               "CapVCPUEvents",
	CapS390PSW:                  "CapS390PSW",
	CapPPCSegstate:              "CapPPCSegstate",
	CapHyperv:                   "CapHyperv",
	CapHypervVapic:              "CapHypervVapic",
	CapHypervSpin:               "CapHypervSpin",
	CapPCIsegment:               "CapPCIsegment",
	CapPPCPairedSingles:         "CapPPCPairedSingles",
	CapDebugRegs:                "CapDebugRegs",
	CapX86RobustSinglestep:      "CapX86RobustSinglestep",
	CapPPCOSI:                   "CapPPCOSI",
	CapPPCUnsetIRQ:              "CapPPCUnsetIRQ",
	CapEnableCap:                "CapEnableCap",
	CapXSave:                    "CapXSave",
	CapXCRS:                     "CapXCRS",
	CapPPCGetPVInfo:             "CapPPCGetPVInfo",
	CapPPCIRQLevel:              "CapPPCIRQLevel",
	CapAsyncPF:                  "CapAsyncPF",
	CapTscControl:               "CapTscControl",
	CapGetTscKHz:                "CapGetTscKHz",
	CapPPCBookeSregs:            "CapPPCBookeSregs",
	CapSPAPRTCE:                 "CapSPAPRTCE",
	CapPPCSmt:                   "CapPPCSmt",
	CapPPCRma:                   "CapPPCRma",
	CapMaxVCPUs:                 "CapMaxVCPUs",
	CapPPCHior:                  "CapPPCHior",
	CapPPCPapr:                  "CapPPCPapr",
	CapSWTLB:                    "CapSWTLB",
	CapOneReg:                   "CapOneReg",
	CapS390GmapCap:              "CapS390GmapCap",
	CapTscDeadlineTimer:         "CapTscDeadlineTimer",
	CapS390UControl:             "CapS390UControl",
	CapPPCSmtPossible:           "CapPPCSmtPossible",
	CapKVMClockCtrl:             "CapKVMClockCtrl",
}

// String renders the constant's name, or "Capability(n)" for a value KVM
// defines but this package does not yet name.
func (c Capability) String() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}

	return fmt.Sprintf("Capability(%d)", uint(c))
}

// CheckExtension is the KVM-mediated query for whether a given host
// kernel/CPU combination supports a capability before a vcpu depends on it.
func CheckExtension(kvmFd uintptr, cap Capability) (int, error) {
	ret, err := Ioctl(kvmFd, IIO(kvmCheckExtension), uintptr(cap))

	return int(ret), err
}
