package bootinfo_test

import (
	"testing"

	"github.com/kvmroot/vtx/bootinfo"
)

func TestValidateAcceptsMagic(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("unexpected panic: %v", r)
		}
	}()

	bootinfo.Validate(&bootinfo.Info{Magic: bootinfo.Magic})
}

func TestValidateRejectsBadMagic(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on magic mismatch")
		}
	}()

	bootinfo.Validate(&bootinfo.Info{Magic: 0})
}
