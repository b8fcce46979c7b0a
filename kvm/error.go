package kvm

import "errors"

var (
	// ErrUnexpectedExitReason is any error that we do not understand.
	ErrUnexpectedExitReason = errors.New("unexpected kvm exit reason")

	// ErrDebug is a debug exit, caused by single step or breakpoint.
	ErrDebug = errors.New("debug exit")
)

// ExitType is a virtual machine exit type.
//
//go:generate stringer -type=ExitType
type ExitType uint

const (
	EXITUNKNOWN       ExitType = 0
	EXITEXCEPTION     ExitType = 1
	EXITIO            ExitType = 2
	EXITHYPERCALL     ExitType = 3
	EXITDEBUG         ExitType = 4
	EXITHLT           ExitType = 5
	EXITMMIO          ExitType = 6
	EXITIRQWINDOWOPEN ExitType = 7
	EXITSHUTDOWN      ExitType = 8
	EXITFAILENTRY     ExitType = 9
	EXITINTR          ExitType = 10
	EXITSETTPR        ExitType = 11
	EXITTPRACCESS     ExitType = 12
	EXITS390SIEIC     ExitType = 13
	EXITS390RESET     ExitType = 14
	EXITDCR           ExitType = 15
	EXITNMI           ExitType = 16
	EXITINTERNALERROR ExitType = 17
	EXITOSI           ExitType = 18
	EXITPAPRHCALL     ExitType = 19
	EXITS390UCONTROL  ExitType = 20
	EXITWATCHDOG      ExitType = 21
	EXITS390TSCH      ExitType = 22
	EXITEPR           ExitType = 23
	EXITSYSTEMEVENT   ExitType = 24
	EXITS390STSI      ExitType = 25
	EXITIOAPICEOI     ExitType = 26
	EXITHYPERV        ExitType = 27
	EXITARMNISV       ExitType = 28
	EXITX86RDMSR      ExitType = 29
	EXITX86WRMSR      ExitType = 30

	EXITIOIN  = 0
	EXITIOOUT = 1
)
