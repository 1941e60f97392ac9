package kmain

import (
	"memcore/kernel"
	"memcore/kernel/driver/console"
	"memcore/kernel/kfmt"
	"memcore/kernel/mm"
	"memcore/kernel/mm/pmm"
	"memcore/kernel/mm/vmm"
	"memcore/multiboot"
)

const (
	// The VGA text mode buffer (2 bytes per cell).
	vgaTextAddr   = uintptr(0xb8000)
	vgaTextWidth  = 80
	vgaTextHeight = 25
	vgaTextSize   = mm.Size(vgaTextWidth * vgaTextHeight * 2)
)

// pageDirectory is the subset of vmm.ActiveDirectory used during bring-up.
type pageDirectory interface {
	IdentityMapRegion(frame mm.Frame, size mm.Size, flags vmm.PageTableEntryFlag, alloc mm.FrameAllocator) (mm.Page, *kernel.Error)
}

var (
	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	pmmInitFn = func() (mm.FrameAllocator, *kernel.Error) {
		return pmm.Init()
	}
	activeDirectoryFn = func() (pageDirectory, *kernel.Error) {
		return vmm.Current()
	}
	infoRegionFn    = multiboot.InfoRegion
	attachConsoleFn = attachConsole
	panicFn         = kfmt.Panic

	vgaConsole  console.Ega
	vgaTerminal console.Terminal
)

// Kmain is the only Go symbol that is visible (exported) from the rt0 initialization
// code. This function is invoked by the rt0 assembly code after setting up the GDT,
// the recursive mapping in the last entry of the active P4 table and a minimal g0
// struct that allows Go code using the 4K stack allocated by the assembly code.
//
// The rt0 code passes the address of the multiboot info payload provided by the
// bootloader.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(multibootInfoPtr uintptr) {
	multiboot.SetInfoPtr(multibootInfoPtr)

	var err *kernel.Error
	if err = initMemory(); err != nil {
		panicFn(err)
	}

	// Use panicFn instead of panic to prevent the compiler from
	// treating kfmt.Panic as dead-code and eliminating it.
	panicFn(errKmainReturned)
}

// initMemory sets up the physical frame allocator and makes sure that the
// boot information structure and the VGA text buffer are identity-mapped
// in the active page directory. Running out of frames at this stage is
// fatal for the caller.
func initMemory() *kernel.Error {
	frameAlloc, err := pmmInitFn()
	if err != nil {
		return err
	}

	pdt, err := activeDirectoryFn()
	if err != nil {
		return err
	}

	infoAddr, infoSize := infoRegionFn()
	if err = identityMapSpan(pdt, infoAddr, mm.Size(infoSize), 0, frameAlloc); err != nil {
		return err
	}

	if err = identityMapSpan(pdt, vgaTextAddr, vgaTextSize, vmm.FlagRW, frameAlloc); err != nil {
		return err
	}

	// Replays the output buffered so far, including the memory map.
	attachConsoleFn()

	kfmt.Printf("[kmain] boot info and VGA text buffer identity-mapped\n")
	return nil
}

// attachConsole sets up a terminal on the VGA text buffer and uses it as the
// kfmt output sink.
func attachConsole() {
	vgaConsole.Init(vgaTextWidth, vgaTextHeight, vgaTextAddr)
	vgaTerminal.AttachTo(&vgaConsole)
	vgaTerminal.Clear()
	kfmt.SetOutputSink(&vgaTerminal)
}

// identityMapSpan identity-maps the pages that contain [addr, addr+size).
// Pages mapped by the rt0 code, including those covered by huge pages, are
// left intact.
func identityMapSpan(pdt pageDirectory, addr uintptr, size mm.Size, flags vmm.PageTableEntryFlag, alloc mm.FrameAllocator) *kernel.Error {
	_, err := pdt.IdentityMapRegion(mm.FrameFromAddress(addr), mm.Size(vmm.PageOffset(addr))+size, flags, alloc)
	return err
}
