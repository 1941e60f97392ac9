package vmm

import (
	"memcore/kernel"
	"memcore/kernel/cpu"
	"memcore/kernel/mm"
)

var (
	// activePDTFn is used by tests to override calls to cpu.ActivePDT
	// which will cause a fault if called in user-mode.
	activePDTFn = cpu.ActivePDT

	// flushTLBEntryFn is used by tests to override calls to
	// cpu.FlushTLBEntry which will cause a fault if called in user-mode.
	flushTLBEntryFn = cpu.FlushTLBEntry

	// ErrInvalidMapping is returned when trying to lookup a virtual memory address that is not yet mapped.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

	// ErrPageAlreadyMapped is returned by Map when the page is already
	// mapped to a different frame.
	ErrPageAlreadyMapped = &kernel.Error{Module: "vmm", Message: "virtual page is already mapped to a different frame"}

	// ErrHugePageConflict is returned when a 4K page walk encounters an
	// entry that maps a huge page.
	ErrHugePageConflict = &kernel.Error{Module: "vmm", Message: "virtual address is covered by a huge page mapping"}

	// ErrRecursiveSlotMissing is returned by Current when the last entry
	// of the active P4 table does not point back to the table itself.
	ErrRecursiveSlotMissing = &kernel.Error{Module: "vmm", Message: "active page directory has no recursive mapping"}

	// ErrRecursiveRange is returned when trying to map or unmap a page that
	// lies in the virtual address range used by the recursive mapping.
	ErrRecursiveRange = &kernel.Error{Module: "vmm", Message: "virtual address is reserved for the recursive page table mapping"}

	// activeDirectory is returned by Current. It lives in a global so that
	// obtaining the handle does not require the Go allocator.
	activeDirectory ActiveDirectory
)

// ActiveDirectory provides access to the page directory table that is
// currently loaded in the CR3 register. The table is accessed, not owned:
// its frame was set up by the rt0 code together with the recursive mapping
// in its last entry.
//
// ActiveDirectory performs no locking; callers must ensure that only one
// execution context mutates the page tables at any time.
type ActiveDirectory struct {
	pdtFrame mm.Frame
	p4       Table[Level4]
}

// Current returns a handle to the active page directory table. The
// recursive mapping is validated once and ErrRecursiveSlotMissing is
// returned if the last P4 entry does not point to the active table.
//
// The P4 table is only reachable through the recursive mapping itself, so
// the check reads the slot through pdtVirtualAddr. It catches a slot that
// points to another frame or maps a huge page. If the slot is not present at
// all, the read faults before Current can return.
func Current() (*ActiveDirectory, *kernel.Error) {
	pdtFrame := mm.FrameFromAddress(activePDTFn())
	p4 := viewTable[Level4](pdtVirtualAddr)

	slot := *p4.Entry(recursiveSlot)
	if frame, ok := slot.PointedFrame(); !ok || slot.IsHuge() || frame != pdtFrame {
		return nil, ErrRecursiveSlotMissing
	}

	activeDirectory.pdtFrame = pdtFrame
	activeDirectory.p4 = p4
	return &activeDirectory, nil
}

// Frame returns the physical frame that holds the P4 table.
func (ad *ActiveDirectory) Frame() mm.Frame {
	return ad.pdtFrame
}

// P4 returns a view onto the P4 table.
func (ad *ActiveDirectory) P4() Table[Level4] {
	return ad.p4
}

// Map establishes a mapping between a virtual page and a physical memory
// frame. Missing P3, P2 and P1 tables are created using alloc. FlagPresent
// is always added to flags.
//
// If the page is already mapped to a different frame, Map returns
// ErrPageAlreadyMapped and leaves the mapping intact. Mapping a page to the
// frame it already points to updates the entry flags. If alloc runs out of
// frames, the tables created so far are kept and the allocator error is
// returned.
func (ad *ActiveDirectory) Map(page mm.Page, frame mm.Frame, flags PageTableEntryFlag, alloc mm.FrameAllocator) *kernel.Error {
	entry, err := ad.createLeafEntry(page, alloc)
	if err != nil {
		return err
	}

	if curFrame, ok := entry.PointedFrame(); ok && curFrame != frame {
		return ErrPageAlreadyMapped
	}

	entry.Set(frame, flags|FlagPresent)
	flushTLBEntryFn(page.Address())
	return nil
}

// MapToAny maps page to a frame reserved using alloc and returns the frame.
// The leaf frame is reserved after any missing tables have been created.
func (ad *ActiveDirectory) MapToAny(page mm.Page, flags PageTableEntryFlag, alloc mm.FrameAllocator) (mm.Frame, *kernel.Error) {
	entry, err := ad.createLeafEntry(page, alloc)
	if err != nil {
		return mm.InvalidFrame, err
	}

	if entry.IsPresent() {
		return mm.InvalidFrame, ErrPageAlreadyMapped
	}

	frame, err := alloc.AllocFrame()
	if err != nil {
		return mm.InvalidFrame, err
	}

	entry.Set(frame, flags|FlagPresent)
	flushTLBEntryFn(page.Address())
	return frame, nil
}

// IdentityMap maps frame to the page with the same address.
func (ad *ActiveDirectory) IdentityMap(frame mm.Frame, flags PageTableEntryFlag, alloc mm.FrameAllocator) *kernel.Error {
	return ad.Map(mm.Page(frame), frame, flags, alloc)
}

// IdentityMapRegion identity-maps the size bytes of physical memory starting
// at frame. The size is rounded up to a multiple of the page size. Pages that
// already translate to their own address, including pages covered by huge
// pages, are skipped and keep their flags. The function returns the page that
// corresponds to frame.
//
// Mapping stops at the first error. Pages mapped before the failing one stay
// mapped, so a later call with the same arguments resumes at the failing page.
func (ad *ActiveDirectory) IdentityMapRegion(frame mm.Frame, size mm.Size, flags PageTableEntryFlag, alloc mm.FrameAllocator) (mm.Page, *kernel.Error) {
	for pageCount, index := size.Pages(), uintptr(0); index < pageCount; index++ {
		curFrame := frame + mm.Frame(index)
		if physAddr, err := ad.Translate(curFrame.Address()); err == nil && physAddr == curFrame.Address() {
			continue
		}

		if err := ad.IdentityMap(curFrame, flags, alloc); err != nil {
			return 0, err
		}
	}

	return mm.Page(frame), nil
}

// Unmap removes the mapping for page. The intermediate tables are never
// released even if they no longer contain any entries. If alloc also
// implements mm.FrameDeallocator, the frame that page was mapped to is
// handed back to it.
//
// Unmap returns ErrInvalidMapping without modifying any table if page is
// not mapped.
func (ad *ActiveDirectory) Unmap(page mm.Page, alloc mm.FrameAllocator) *kernel.Error {
	if ad.p4.indexOf(page) == recursiveSlot {
		return ErrRecursiveRange
	}

	p1, err := ad.lookupP1(page)
	if err != nil {
		return err
	}

	entry := p1.Entry(p1.indexOf(page))
	frame, ok := entry.PointedFrame()
	if !ok {
		return ErrInvalidMapping
	}

	entry.SetUnused()
	flushTLBEntryFn(page.Address())

	if dealloc, ok := alloc.(mm.FrameDeallocator); ok {
		return dealloc.FreeFrame(frame)
	}
	return nil
}

// Translate returns the physical address that corresponds to the supplied
// virtual address or ErrInvalidMapping if the virtual address does not
// correspond to a mapped physical address. Addresses covered by 1G and 2M
// huge pages are also resolved.
func (ad *ActiveDirectory) Translate(virtAddr uintptr) (uintptr, *kernel.Error) {
	page := mm.PageFromAddress(virtAddr)

	p3, ok := NextTable[Level4, Level3](ad.p4, ad.p4.indexOf(page))
	if !ok {
		return 0, ErrInvalidMapping
	}

	if entry := *p3.Entry(p3.indexOf(page)); entry.IsPresent() && entry.IsHuge() {
		return hugePageAddr(entry, virtAddr, hugePageSize1G), nil
	}

	p2, ok := NextTable[Level3, Level2](p3, p3.indexOf(page))
	if !ok {
		return 0, ErrInvalidMapping
	}

	if entry := *p2.Entry(p2.indexOf(page)); entry.IsPresent() && entry.IsHuge() {
		return hugePageAddr(entry, virtAddr, hugePageSize2M), nil
	}

	p1, ok := NextTable[Level2, Level1](p2, p2.indexOf(page))
	if !ok {
		return 0, ErrInvalidMapping
	}

	frame, ok := p1.Entry(p1.indexOf(page)).PointedFrame()
	if !ok {
		return 0, ErrInvalidMapping
	}

	return frame.Address() + PageOffset(virtAddr), nil
}

// PageOffset returns the offset within the page specified by a virtual
// address.
func PageOffset(virtAddr uintptr) uintptr {
	return virtAddr & (mm.PageSize - 1)
}

// hugePageAddr returns the physical address of virtAddr inside the huge page
// of pageSize bytes mapped by entry.
func hugePageAddr(entry PageTableEntry, virtAddr, pageSize uintptr) uintptr {
	return (entry.Frame().Address() &^ (pageSize - 1)) | (virtAddr & (pageSize - 1))
}

// createLeafEntry returns the P1 entry for page, creating any missing tables
// on the way.
func (ad *ActiveDirectory) createLeafEntry(page mm.Page, alloc mm.FrameAllocator) (*PageTableEntry, *kernel.Error) {
	if ad.p4.indexOf(page) == recursiveSlot {
		return nil, ErrRecursiveRange
	}

	p3, err := CreateNextTable[Level4, Level3](ad.p4, ad.p4.indexOf(page), alloc)
	if err != nil {
		return nil, err
	}

	p2, err := CreateNextTable[Level3, Level2](p3, p3.indexOf(page), alloc)
	if err != nil {
		return nil, err
	}

	p1, err := CreateNextTable[Level2, Level1](p2, p2.indexOf(page), alloc)
	if err != nil {
		return nil, err
	}

	return p1.Entry(p1.indexOf(page)), nil
}

// lookupP1 returns the P1 table that translates page without creating any
// tables.
func (ad *ActiveDirectory) lookupP1(page mm.Page) (Table[Level1], *kernel.Error) {
	p3, err := descend[Level4, Level3](ad.p4, page)
	if err != nil {
		return Table[Level1]{}, err
	}

	p2, err := descend[Level3, Level2](p3, page)
	if err != nil {
		return Table[Level1]{}, err
	}

	return descend[Level2, Level1](p2, page)
}

// descend returns the table below t on the path to page.
func descend[L HierarchicalLevel[N], N Level](t Table[L], page mm.Page) (Table[N], *kernel.Error) {
	index := t.indexOf(page)
	if next, ok := NextTable[L, N](t, index); ok {
		return next, nil
	}

	if entry := t.Entry(index); entry.IsPresent() && entry.IsHuge() {
		return Table[N]{}, ErrHugePageConflict
	}
	return Table[N]{}, ErrInvalidMapping
}
