// Package panichandler centralizes how this hypervisor dies: a guarded
// panic that dumps whatever vCPU is currently active, and an endless halt
// for the "we are fatally wedged but must not exit the process" case a
// real type-1 hypervisor would reach by spinning with interrupts off.
package panichandler

import (
	"sync/atomic"
	"time"

	"github.com/kvmroot/vtx/vtxlog"
)

var (
	log      = vtxlog.Default("panichandler")
	panicked atomic.Bool
)

// Dumper is satisfied by vcpu.Vcpu so this package can log vCPU state
// without importing vcpu (which would import this package back).
type Dumper interface {
	Dump() string
}

var active atomic.Value // holds Dumper

// SetActive registers the vCPU panichandler should dump on a fatal error.
func SetActive(d Dumper) {
	active.Store(d)
}

// Fatal logs rule, dumps the active vCPU if one is registered, and panics.
// A second call while the first is still unwinding is reported and the
// process is halted immediately rather than re-entering panic(), since a
// panic during panic-handling already means something is badly wrong.
func Fatal(rule string) {
	if !panicked.CompareAndSwap(false, true) {
		log.Errorf("double fault while handling %q, halting", rule)
		EndlessHalt()
	}

	log.Errorf("fatal: %s", rule)

	if d, ok := active.Load().(Dumper); ok && d != nil {
		log.Errorf("vcpu state:\n%s", d.Dump())
	}

	panic(rule)
}

// EndlessHalt parks the calling goroutine forever. Fatal calls it when a
// second fatal error arrives while the first is still being handled:
// there is nowhere safe left to return to.
func EndlessHalt() {
	for {
		time.Sleep(time.Hour)
	}
}

// ResetForTest clears the latched panic state. A real process only ever
// calls Fatal once before exiting, so the latch never needs clearing
// outside of a test binary exercising multiple failure cases back to back.
func ResetForTest() {
	panicked.Store(false)
}
