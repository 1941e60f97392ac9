package kfmt

import (
	"memcore/kernel"
	"memcore/kernel/cpu"
)

// cpuHaltFn is replaced by tests.
var cpuHaltFn = cpu.Halt

// Panic reports err on the active output sink and halts the CPU. It is how
// the memory subsystems surface conditions they cannot recover from, such as
// running out of frames while the kernel builds its page tables. A nil err
// only prints the banner.
func Panic(err *kernel.Error) {
	Printf("\n*** kernel panic ***\n")
	if err != nil {
		Printf("[%s] %s\n", err.Module, err.Message)
	}
	Printf("system halted\n")

	cpuHaltFn()
}
