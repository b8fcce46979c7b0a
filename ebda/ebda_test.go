package ebda_test

import (
	"testing"

	"github.com/kvmroot/vtx/ebda"
)

func TestNew(t *testing.T) {
	t.Parallel()

	m, err := ebda.New(1)
	if err != nil {
		t.Fatal(err)
	}

	bytes, err := m.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	if len(bytes) < 64 {
		t.Fatalf("suspiciously small EBDA: %d bytes", len(bytes))
	}
}

func TestNewRejectsSMP(t *testing.T) {
	t.Parallel()

	if _, err := ebda.New(2); err == nil {
		t.Fatal("expected error requesting 2 vCPUs")
	}
}
