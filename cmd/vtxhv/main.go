// Command vtxhv is the KVM-mediated kernel entry point itself: given a
// bare kernel path it enables VMX, builds the single vCPU, populates
// guest memory, and runs the VM-entry/VM-exit loop directly, with none
// of vtxloader's ACPI/initrd/flag-parsing machinery. Useful for driving
// the vCPU core directly against a minimal kernel image.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kvmroot/vtx/bootinfo"
	"github.com/kvmroot/vtx/vcpu"
	"github.com/kvmroot/vtx/vtx"
)

func main() {
	dev := flag.String("d", "/dev/kvm", "path of kvm device")
	kernel := flag.String("k", "./bzImage", "kernel image path")
	memSize := flag.Int("m", vcpu.MinMemSize, "guest memory size in bytes")
	cmdline := flag.String("p", "console=ttyS0", "kernel command line")
	flag.Parse()

	if err := run(*dev, *kernel, *memSize, *cmdline); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(dev, kernel string, memSize int, cmdline string) error {
	image, err := os.ReadFile(kernel)
	if err != nil {
		return fmt.Errorf("vtxhv: reading kernel: %w", err)
	}

	info := &bootinfo.Info{
		Magic: bootinfo.Magic,
		Guest: bootinfo.GuestInfo{Image: image},
	}

	cfg := vtx.Config{
		DevPath: dev,
		MemSize: memSize,
		NCPUs:   1,
		Cmdline: cmdline,
	}

	return vtx.Main(cfg, info)
}
