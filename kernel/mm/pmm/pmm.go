package pmm

import (
	"memcore/kernel"
	"memcore/kernel/mm"
	"memcore/multiboot"
	"unsafe"
)

var (
	// bootMemAllocator is the frame allocator used by the kernel. It lives
	// in a global so Init does not need the Go allocator.
	bootMemAllocator BumpAllocator

	// the following functions are mocked by tests and are automatically
	// inlined by the compiler.
	visitMemRegionsFn  = multiboot.VisitMemRegions
	visitElfSectionsFn = multiboot.VisitElfSections
	infoRegionFn       = multiboot.InfoRegion

	errNoUsableMemory = &kernel.Error{Module: "pmm", Message: "bootloader reported no usable memory"}
)

// Init sets up the kernel physical memory allocator using the memory map,
// the kernel image layout and the boot information footprint reported by
// the bootloader, and returns it. The multiboot info pointer must be set
// before calling Init.
func Init() (*BumpAllocator, *kernel.Error) {
	bootMemAllocator.Init(
		visitMemRegionsFn,
		KernelImageRegion(visitElfSectionsFn),
		BootInfoRegion(infoRegionFn()),
	)
	bootMemAllocator.printMemoryMap()

	if bootMemAllocator.curRegion.Empty() {
		return nil, errNoUsableMemory
	}

	return &bootMemAllocator, nil
}

// KernelImageRegion returns the smallest region that covers every allocated
// section of the loaded kernel image. Sections that are not loaded in
// memory (e.g. symbol tables) are ignored. If the image has no allocated
// sections the returned region is empty.
func KernelImageRegion(visitElfSections func(multiboot.ElfSectionVisitor)) mm.Region {
	region := mm.EmptyRegion

	var visitor = func(flags multiboot.ElfSectionFlag, address uintptr, size uint64) {
		if flags&multiboot.ElfSectionAllocated == 0 {
			return
		}

		region = region.Extend(mm.RegionForSpan(address, size))
	}

	visitElfSections(
		*(*multiboot.ElfSectionVisitor)(noEscape(unsafe.Pointer(&visitor))),
	)

	return region
}

// BootInfoRegion returns the region occupied by the boot information
// structure that starts at infoAddr and spans infoSize bytes.
func BootInfoRegion(infoAddr uintptr, infoSize uint32) mm.Region {
	return mm.RegionForSpan(infoAddr, uint64(infoSize))
}
