// Package cpu exposes the privileged amd64 instructions used by the memory
// subsystems. These functions fault when invoked in user mode; packages that
// call them keep a function variable that tests can override.
package cpu

// Halt disables interrupts and stops instruction execution.
func Halt()

// FlushTLBEntry flushes a TLB entry for a particular virtual address.
func FlushTLBEntry(virtAddr uintptr)

// ActivePDT returns the physical address of the currently active page table.
func ActivePDT() uintptr
