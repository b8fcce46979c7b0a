// Package flag defines this hypervisor's command-line surface: a kong CLI
// with "boot" and "probe" subcommands, plus the free-standing size-string
// parser that boot's -m flag goes through.
package flag

import (
	"fmt"
	"strconv"
	"strings"
)

// CLI is the top-level kong command tree.
type CLI struct {
	Boot  BootCMD  `cmd:"" help:"Boot a Linux kernel under KVM."`
	Probe ProbeCMD `cmd:"" help:"Probe /dev/kvm for required capabilities and exit."`
}

// BootCMD boots a kernel. NCPUs is accepted for compatibility with the
// teacher's flag shape but is rejected at Run time unless it is 1 — this
// build supports exactly one vCPU.
type BootCMD struct {
	Dev        string `short:"D" default:"/dev/kvm" help:"path of kvm device"`
	Kernel     string `short:"k" default:"./bzImage" help:"kernel image path"`
	Initrd     string `short:"i" default:"" help:"initrd path"`
	Params     string `short:"p" default:"" help:"kernel command-line parameters"`
	TapIfName  string `short:"t" default:"" help:"name of tap interface (unused, kept for CLI compatibility)"`
	Disk       string `short:"d" default:"" help:"path of disk file (unused, kept for CLI compatibility)"`
	NCPUs      int    `short:"c" default:"1" help:"number of vCPUs; this build only supports 1"`
	MemSize    string `short:"m" default:"1G" help:"memory size: number[gGmMkK], defaults to G"`
	TraceCount string `short:"T" default:"0" help:"instructions to skip between trace prints; 0 disables tracing"`
	CPUProfile string `help:"write a pprof CPU profile of the run loop to this directory, if set"`
}

// ProbeCMD reports whether the host's /dev/kvm exposes the capabilities
// this build requires, without booting anything.
type ProbeCMD struct{}

// ParseSize parses a size string as number[gGmMkK]. The multiplier is
// optional; if not present in s, unit is used instead.
func ParseSize(s, unit string) (int, error) {
	sz := strings.TrimRight(s, "gGmMkK")
	if len(sz) == 0 {
		return -1, fmt.Errorf("%q: can't parse as num[gGmMkK]: %w", s, strconv.ErrSyntax)
	}

	amt, err := strconv.ParseUint(sz, 0, 0)
	if err != nil {
		return -1, err
	}

	if len(s) > len(sz) {
		unit = s[len(sz):]
	}

	switch unit {
	case "G", "g":
		return int(amt) << 30, nil
	case "M", "m":
		return int(amt) << 20, nil
	case "K", "k":
		return int(amt) << 10, nil
	case "":
		return int(amt), nil
	}

	return -1, fmt.Errorf("can not parse %q as num[gGmMkK]: %w", s, strconv.ErrSyntax)
}
