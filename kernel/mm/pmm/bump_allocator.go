package pmm

import (
	"memcore/kernel"
	"memcore/kernel/kfmt"
	"memcore/kernel/mm"
	"memcore/multiboot"
	"unsafe"
)

var (
	// ErrOutOfMemory is returned by AllocFrame once every usable frame has
	// been handed out. The condition is permanent for a given allocator.
	ErrOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of memory"}
)

// MemRegionIterator invokes a visitor for each memory region reported by the
// bootloader. multiboot.VisitMemRegions satisfies it.
type MemRegionIterator func(multiboot.MemRegionVisitor)

// BumpAllocator is a forward-only physical frame allocator which is used to
// bootstrap the kernel.
//
// The allocator uses the memory region information provided by the
// bootloader to detect usable memory and hands out frames in strictly
// increasing order, skipping the frames occupied by the kernel image, by
// the boot information structure and by any non-usable memory map entry.
// Regions reported by the bootloader do not need to be sorted or merged and
// reserved entries may overlap usable ones.
//
// Frames returned by AllocFrame are never reused. BumpAllocator deliberately
// does not implement mm.FrameDeallocator.
type BumpAllocator struct {
	// nextFreeFrame is the frame that will be examined by the next call
	// to AllocFrame. It never moves backwards.
	nextFreeFrame mm.Frame

	// curRegion is the usable region frames are currently handed out
	// from. It is set to mm.EmptyRegion once all regions are consumed.
	curRegion mm.Region

	// Regions that must never be handed out.
	kernelRegion, bootInfoRegion mm.Region

	visitMemRegionsFn MemRegionIterator

	// allocCount tracks the total number of allocated frames.
	allocCount uint64
}

// Init sets up the allocator internal state and selects the usable memory
// region with the lowest address.
func (alloc *BumpAllocator) Init(visitMemRegions MemRegionIterator, kernelRegion, bootInfoRegion mm.Region) {
	alloc.visitMemRegionsFn = visitMemRegions
	alloc.kernelRegion = kernelRegion
	alloc.bootInfoRegion = bootInfoRegion
	alloc.nextFreeFrame = 0
	alloc.allocCount = 0
	alloc.selectNextRegion()
}

// AllocFrame reserves the next available free frame. It returns
// mm.InvalidFrame and ErrOutOfMemory if no more memory can be allocated.
func (alloc *BumpAllocator) AllocFrame() (mm.Frame, *kernel.Error) {
	// Every iteration either returns, moves nextFreeFrame forward or
	// selects a region that ends at or after nextFreeFrame.
	for {
		switch {
		case alloc.curRegion.Empty():
			return mm.InvalidFrame, ErrOutOfMemory
		case alloc.nextFreeFrame > alloc.curRegion.EndFrame:
			alloc.selectNextRegion()
		case alloc.kernelRegion.Contains(alloc.nextFreeFrame):
			alloc.nextFreeFrame = alloc.kernelRegion.EndFrame + 1
		case alloc.bootInfoRegion.Contains(alloc.nextFreeFrame):
			alloc.nextFreeFrame = alloc.bootInfoRegion.EndFrame + 1
		default:
			if reserved := alloc.unusableRegionAt(alloc.nextFreeFrame); !reserved.Empty() {
				alloc.nextFreeFrame = reserved.EndFrame + 1
				continue
			}

			frame := alloc.nextFreeFrame
			alloc.nextFreeFrame++
			alloc.allocCount++
			return frame, nil
		}
	}
}

// AllocCount returns the number of frames handed out so far.
func (alloc *BumpAllocator) AllocCount() uint64 {
	return alloc.allocCount
}

// selectNextRegion picks the usable region with the lowest start frame that
// still contains frames at or after nextFreeFrame. If no such region exists
// curRegion is set to mm.EmptyRegion.
func (alloc *BumpAllocator) selectNextRegion() {
	next := mm.EmptyRegion

	var visitor = func(entry *multiboot.MemoryMapEntry) bool {
		region := usableRegion(entry)
		if region.Empty() || region.EndFrame < alloc.nextFreeFrame {
			return true
		}

		if next.Empty() || region.StartFrame < next.StartFrame {
			next = region
		}
		return true
	}

	// Use the noescape hack to prevent the compiler from leaking the visitor
	// function literal to the heap.
	alloc.visitMemRegionsFn(
		*(*multiboot.MemRegionVisitor)(noEscape(unsafe.Pointer(&visitor))),
	)

	alloc.curRegion = next
	if !next.Empty() && alloc.nextFreeFrame < next.StartFrame {
		alloc.nextFreeFrame = next.StartFrame
	}
}

// unusableRegionAt returns the frames covered by the first non-usable memory
// map entry that contains frame or mm.EmptyRegion if no such entry exists.
// Entry bounds are rounded outward so that partially reserved frames are
// included.
func (alloc *BumpAllocator) unusableRegionAt(frame mm.Frame) mm.Region {
	found := mm.EmptyRegion

	var visitor = func(entry *multiboot.MemoryMapEntry) bool {
		if entry.Usable() {
			return true
		}

		if region := mm.RegionForSpan(uintptr(entry.PhysAddress), entry.Length); region.Contains(frame) {
			found = region
			return false
		}
		return true
	}

	alloc.visitMemRegionsFn(
		*(*multiboot.MemRegionVisitor)(noEscape(unsafe.Pointer(&visitor))),
	)

	return found
}

// usableRegion returns the frames of a memory map entry that can be handed
// out. Reported addresses may not be page-aligned; the start is rounded up
// and the end rounded down so that partially usable frames are excluded.
func usableRegion(entry *multiboot.MemoryMapEntry) mm.Region {
	if !entry.Usable() || entry.Length < uint64(mm.PageSize) {
		return mm.EmptyRegion
	}

	pageSizeMinus1 := uint64(mm.PageSize - 1)
	startFrame := mm.Frame(((entry.PhysAddress + pageSizeMinus1) & ^pageSizeMinus1) >> mm.PageShift)
	endFrame := mm.Frame(((entry.PhysAddress+entry.Length) & ^pageSizeMinus1)>>mm.PageShift) - 1
	if endFrame < startFrame {
		return mm.EmptyRegion
	}

	return mm.Region{StartFrame: startFrame, EndFrame: endFrame}
}

// memLog tags the lines of the memory map report.
var memLog = kfmt.PrefixWriter{Prefix: []byte("[pmm] ")}

// printMemoryMap scans the memory region information provided by the
// bootloader and prints out the system's memory map and reserved regions.
func (alloc *BumpAllocator) printMemoryMap() {
	memLog.Sink = kfmt.GetOutputSink()

	kfmt.Fprintf(&memLog, "system memory map:\n")
	var totalFree mm.Size
	var visitor = func(region *multiboot.MemoryMapEntry) bool {
		kfmt.Fprintf(&memLog, "\t[0x%10x - 0x%10x], size: %10d, type: %s\n", region.PhysAddress, region.PhysAddress+region.Length, region.Length, region.Type.String())

		if region.Usable() {
			totalFree += mm.Size(region.Length)
		}
		return true
	}
	alloc.visitMemRegionsFn(
		*(*multiboot.MemRegionVisitor)(noEscape(unsafe.Pointer(&visitor))),
	)

	kfmt.Fprintf(&memLog, "available memory: %dKb\n", uint64(totalFree/mm.Kb))
	printRegion("kernel image", alloc.kernelRegion)
	printRegion("boot info", alloc.bootInfoRegion)
}

func printRegion(name string, region mm.Region) {
	if region.Empty() {
		kfmt.Fprintf(&memLog, "reserved %s: none\n", name)
		return
	}

	kfmt.Fprintf(&memLog, "reserved %s: frames %d - %d (%d frames)\n",
		name,
		uint64(region.StartFrame),
		uint64(region.EndFrame),
		region.Frames(),
	)
}

// noEscape hides a pointer from escape analysis. This function is copied over
// from runtime/stubs.go
//
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
