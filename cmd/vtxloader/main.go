// Command vtxloader is the "bootloader" half of this hypervisor: it
// parses CLI flags in place of UEFI, reads the kernel and optional
// initrd off disk, and hands off into the vtx package that plays the
// KVM-mediated kernel's role.
package main

import (
	"fmt"
	"os"

	"github.com/kvmroot/vtx/flag"
)

func main() {
	if err := flag.Parse(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
