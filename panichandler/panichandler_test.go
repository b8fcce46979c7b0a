package panichandler_test

import (
	"strings"
	"testing"

	"github.com/kvmroot/vtx/panichandler"
)

type stubDumper struct{ state string }

func (s stubDumper) Dump() string { return s.state }

func expectPanic(t *testing.T, fn func()) (recovered any) {
	t.Helper()

	defer func() {
		recovered = recover()
	}()

	fn()

	return recovered
}

func TestFatalPanicsWithRule(t *testing.T) {
	panichandler.ResetForTest()

	r := expectPanic(t, func() {
		panichandler.Fatal("bad guest state")
	})

	if r != "bad guest state" {
		t.Fatalf("recover() = %v, want %q", r, "bad guest state")
	}
}

func TestFatalDumpsActiveVcpu(t *testing.T) {
	panichandler.ResetForTest()
	panichandler.SetActive(stubDumper{state: "RIP=0xdead"})

	r := expectPanic(t, func() {
		panichandler.Fatal("dump check")
	})

	if r != "dump check" {
		t.Fatalf("recover() = %v, want %q", r, "dump check")
	}
}

func TestResetForTestClearsLatch(t *testing.T) {
	panichandler.ResetForTest()

	expectPanic(t, func() {
		panichandler.Fatal("first")
	})

	panichandler.ResetForTest()

	r := expectPanic(t, func() {
		panichandler.Fatal("second")
	})

	if r != "second" {
		t.Fatalf("recover() = %v, want %q after ResetForTest", r, "second")
	}
}

func TestDumperInterfaceSatisfiedByString(t *testing.T) {
	d := stubDumper{state: "CR0=0x11 CR4=0x2000"}

	if !strings.Contains(d.Dump(), "CR0") {
		t.Fatal("stub dumper did not return its state")
	}
}
