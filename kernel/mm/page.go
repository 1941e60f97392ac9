package mm

import (
	"math"
	"memcore/kernel"
)

// Frame describes a physical memory page index.
type Frame uintptr

const (
	// InvalidFrame is returned by frame allocators when they fail to
	// reserve the requested frame.
	InvalidFrame = Frame(math.MaxUint64)
)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns a pointer to the physical memory address pointed to by this Frame.
func (f Frame) Address() uintptr {
	return uintptr(f << PageShift)
}

// FrameFromAddress returns a Frame that corresponds to the given physical
// address. This function can handle both page-aligned and not aligned
// addresses. In the latter case, the input address will be rounded down to
// the frame that contains it.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame((physAddr & ^(PageSize - 1)) >> PageShift)
}

// FrameAllocator is implemented by physical frame allocators. AllocFrame
// returns InvalidFrame together with an error when no frame can be reserved;
// running out of frames is reported to the caller and is never fatal by
// itself.
type FrameAllocator interface {
	AllocFrame() (Frame, *kernel.Error)
}

// FrameDeallocator is implemented by allocators that can take back frames
// previously returned by AllocFrame. Allocators that never reuse frames do
// not implement it.
type FrameDeallocator interface {
	FreeFrame(Frame) *kernel.Error
}

// Page describes a virtual memory page index.
type Page uintptr

// Address returns a pointer to the virtual memory address pointed to by this Page.
func (p Page) Address() uintptr {
	return uintptr(p << PageShift)
}

// TableIndex returns the index of the entry that translates this page in
// the page table at the given level. Levels are numbered from 1 (P1, the
// table whose entries point to frames) to PageLevels (P4).
func (p Page) TableIndex(level uint8) uintptr {
	return (uintptr(p) >> (uintptr(level-1) * PageLevelBits)) & ((1 << PageLevelBits) - 1)
}

// PageFromAddress returns a Page that corresponds to the given virtual
// address. This function can handle both page-aligned and not aligned virtual
// addresses. in the latter case, the input address will be rounded down to the
// page that contains it.
func PageFromAddress(virtAddr uintptr) Page {
	return Page((virtAddr & ^(PageSize - 1)) >> PageShift)
}
