package flag

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/pkg/profile"

	"github.com/kvmroot/vtx/bootinfo"
	"github.com/kvmroot/vtx/kvm"
	"github.com/kvmroot/vtx/vcpu"
	"github.com/kvmroot/vtx/vtx"
)

// Parse builds the kong CLI, parses os.Args, and runs whichever
// subcommand was selected.
func Parse() error {
	c := CLI{}

	ctx := kong.Parse(&c,
		kong.Name("vtxloader"),
		kong.Description("vtxloader boots a Linux kernel under KVM-mediated VMX"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	return ctx.Run()
}

// Run probes /dev/kvm for the capabilities this build requires and
// reports the result without creating a VM.
func (p *ProbeCMD) Run() error {
	f, err := os.OpenFile("/dev/kvm", os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("probe: open /dev/kvm: %w", err)
	}
	defer f.Close()

	if err := vcpu.EnableVMX(f.Fd()); err != nil {
		return err
	}

	for _, cap := range []kvm.Capability{
		kvm.CapUserMemory, kvm.CapSetTSSAddr, kvm.CapEXTCPUID, kvm.CapIRQChip, kvm.CapNRMemSlots,
	} {
		ok, err := kvm.CheckExtension(f.Fd(), cap)
		if err != nil {
			return err
		}

		fmt.Printf("%s: %d\n", cap, ok)
	}

	return nil
}

// Run reads the kernel and optional initrd, assembles a boot-info
// record, and hands off into vtx.Main.
func (s *BootCMD) Run() error {
	if s.NCPUs != 1 {
		return fmt.Errorf("%w: requested %d", vcpu.ErrUnsupportedSMP, s.NCPUs)
	}

	if s.CPUProfile != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(s.CPUProfile)).Stop()
	}

	memSize, err := ParseSize(s.MemSize, "g")
	if err != nil {
		return err
	}

	image, err := os.ReadFile(s.Kernel)
	if err != nil {
		return fmt.Errorf("boot: reading kernel: %w", err)
	}

	var initrd []byte

	if s.Initrd != "" {
		initrd, err = os.ReadFile(s.Initrd)
		if err != nil {
			return fmt.Errorf("boot: reading initrd: %w", err)
		}
	}

	info := &bootinfo.Info{
		Magic: bootinfo.Magic,
		Guest: bootinfo.GuestInfo{Image: image, Initrd: initrd},
	}

	cfg := vtx.Config{
		DevPath: s.Dev,
		MemSize: memSize,
		NCPUs:   s.NCPUs,
		Cmdline: s.Params,
	}

	return vtx.Main(cfg, info)
}
