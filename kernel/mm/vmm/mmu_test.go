package vmm

import (
	"memcore/kernel"
	"memcore/kernel/mm"
	"memcore/kernel/mm/pmm"
	"testing"
	"unsafe"
)

// garbageEntry is written to every entry of freshly allocated frames so
// tests can detect tables that were not cleared.
const garbageEntry = PageTableEntry(0xbad000) | PageTableEntry(FlagPresent|FlagRW)

// softMMU simulates physical memory and the translation of the recursive
// table addresses generated by this package. The simulated P4 table lives
// in pdtFrame and its last entry points back to it.
type softMMU struct {
	t        *testing.T
	pdtFrame mm.Frame
	frames   map[mm.Frame]*[entriesPerTable]PageTableEntry
	flushed  []uintptr
}

func newSoftMMU(t *testing.T) *softMMU {
	mmu := &softMMU{
		t:        t,
		pdtFrame: mm.Frame(0x100),
		frames:   make(map[mm.Frame]*[entriesPerTable]PageTableEntry),
	}
	mmu.table(mmu.pdtFrame)[recursiveSlot].Set(mmu.pdtFrame, FlagPresent|FlagRW)
	return mmu
}

// table returns the contents of a simulated physical frame.
func (mmu *softMMU) table(frame mm.Frame) *[entriesPerTable]PageTableEntry {
	tbl, ok := mmu.frames[frame]
	if !ok {
		tbl = new([entriesPerTable]PageTableEntry)
		mmu.frames[frame] = tbl
	}
	return tbl
}

// resolve translates virtAddr the way the MMU would, starting at the active
// P4 table, and returns a pointer to the simulated frame it lands on.
func (mmu *softMMU) resolve(virtAddr uintptr) unsafe.Pointer {
	page := mm.PageFromAddress(virtAddr)
	frame := mmu.pdtFrame
	for level := uint8(mm.PageLevels); level > 0; level-- {
		entry := mmu.table(frame)[page.TableIndex(level)]
		if !entry.IsPresent() || entry.IsHuge() {
			mmu.t.Fatalf("page fault while accessing 0x%x: no table at level %d", virtAddr, level)
		}
		frame = entry.Frame()
	}

	return unsafe.Pointer(mmu.table(frame))
}

// leaf walks the simulated tables for virtAddr and returns its P1 entry.
func (mmu *softMMU) leaf(virtAddr uintptr) PageTableEntry {
	page := mm.PageFromAddress(virtAddr)
	frame := mmu.pdtFrame
	for level := uint8(mm.PageLevels); level > 1; level-- {
		entry := mmu.table(frame)[page.TableIndex(level)]
		if !entry.IsPresent() {
			mmu.t.Fatalf("expected the P%d entry for 0x%x to be present", level, virtAddr)
		}
		frame = entry.Frame()
	}

	return mmu.table(frame)[page.TableIndex(1)]
}

// install points the package hooks to the simulated hardware and returns a
// function that restores them.
func (mmu *softMMU) install() func() {
	origTablePtr, origFlush, origActivePDT := tablePtrFn, flushTLBEntryFn, activePDTFn

	tablePtrFn = mmu.resolve
	flushTLBEntryFn = func(virtAddr uintptr) { mmu.flushed = append(mmu.flushed, virtAddr) }
	activePDTFn = func() uintptr { return mmu.pdtFrame.Address() }

	return func() {
		tablePtrFn, flushTLBEntryFn, activePDTFn = origTablePtr, origFlush, origActivePDT
	}
}

// current returns the active directory for the simulated hardware.
func (mmu *softMMU) current() *ActiveDirectory {
	ad, err := Current()
	if err != nil {
		mmu.t.Fatal(err)
	}
	return ad
}

// allocator returns a frame allocator backed by the simulated memory that
// hands out at most limit frames. A negative limit means no limit.
func (mmu *softMMU) allocator(limit int) *frameAllocator {
	return &frameAllocator{mmu: mmu, nextFrame: mm.Frame(0x1000), remaining: limit}
}

type frameAllocator struct {
	mmu       *softMMU
	nextFrame mm.Frame
	remaining int
	allocated []mm.Frame
}

func (alloc *frameAllocator) AllocFrame() (mm.Frame, *kernel.Error) {
	if alloc.remaining == 0 {
		return mm.InvalidFrame, pmm.ErrOutOfMemory
	}
	alloc.remaining--

	frame := alloc.nextFrame
	alloc.nextFrame++
	alloc.allocated = append(alloc.allocated, frame)

	tbl := alloc.mmu.table(frame)
	for index := range tbl {
		tbl[index] = garbageEntry
	}

	return frame, nil
}

// reclaimingAllocator is a frame allocator that also implements
// mm.FrameDeallocator.
type reclaimingAllocator struct {
	*frameAllocator
	freed []mm.Frame
}

func (alloc *reclaimingAllocator) FreeFrame(frame mm.Frame) *kernel.Error {
	alloc.freed = append(alloc.freed, frame)
	return nil
}

// usedEntries returns the number of entries that are not unused.
func usedEntries(tbl *[entriesPerTable]PageTableEntry) int {
	var count int
	for _, entry := range tbl {
		if !entry.IsUnused() {
			count++
		}
	}
	return count
}
