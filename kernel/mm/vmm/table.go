package vmm

import (
	"memcore/kernel"
	"memcore/kernel/mm"
	"unsafe"
)

var (
	// tablePtrFn returns a pointer to the page table that is reachable at
	// the supplied virtual address. It is used by tests to redirect table
	// accesses to simulated physical memory. When compiling the kernel this
	// function will be automatically inlined.
	tablePtrFn = func(tableAddr uintptr) unsafe.Pointer {
		return unsafe.Pointer(tableAddr)
	}
)

// Level identifies one of the page table levels. Levels are numbered from
// 1 (P1) to 4 (P4).
type Level interface {
	Number() uint8
}

// HierarchicalLevel is implemented by the levels whose entries point to
// tables at level N. P1 entries point to frames so Level1 does not
// implement it.
type HierarchicalLevel[N Level] interface {
	Level
	Next() N
}

type (
	// Level4 tags the top-most table (PML4).
	Level4 struct{}

	// Level3 tags a page directory pointer table.
	Level3 struct{}

	// Level2 tags a page directory.
	Level2 struct{}

	// Level1 tags a page table whose entries point to frames.
	Level1 struct{}
)

func (Level4) Number() uint8 { return 4 }
func (Level3) Number() uint8 { return 3 }
func (Level2) Number() uint8 { return 2 }
func (Level1) Number() uint8 { return 1 }

func (Level4) Next() Level3 { return Level3{} }
func (Level3) Next() Level2 { return Level2{} }
func (Level2) Next() Level1 { return Level1{} }

// Table is a view onto a page table at level L. Tables are not owned by the
// view; they live in physical frames that are reached through the recursive
// P4 mapping.
type Table[L Level] struct {
	addr    uintptr
	entries *[entriesPerTable]PageTableEntry
}

// viewTable returns a view onto the level L table accessible at tableAddr.
// It is the only place where recursive addresses are turned into pointers
// and assumes that the recursive P4 slot is installed and that tableAddr
// was derived from pdtVirtualAddr via nextTableAddr.
func viewTable[L Level](tableAddr uintptr) Table[L] {
	return Table[L]{
		addr:    tableAddr,
		entries: (*[entriesPerTable]PageTableEntry)(tablePtrFn(tableAddr)),
	}
}

// nextTableAddr returns the virtual address of the table pointed to by the
// entry at index of the table accessible at tableAddr. Shifting the table
// address left by 9 bits adds one more pass through the recursive slot to
// the translation; the entry index becomes the last table index.
func nextTableAddr(tableAddr, index uintptr) uintptr {
	return (tableAddr << mm.PageLevelBits) | (index << mm.PageShift)
}

// Level returns the level number of the table.
func (t Table[L]) Level() uint8 {
	var level L
	return level.Number()
}

// Address returns the virtual address where the table can be accessed.
func (t Table[L]) Address() uintptr {
	return t.addr
}

// Entry returns a pointer to the table entry at index.
func (t Table[L]) Entry(index uintptr) *PageTableEntry {
	return &t.entries[index]
}

// SetAllUnused clears every entry in the table.
func (t Table[L]) SetAllUnused() {
	for index := range t.entries {
		t.entries[index].SetUnused()
	}
}

// indexOf returns the index of the entry in this table that translates page.
func (t Table[L]) indexOf(page mm.Page) uintptr {
	return page.TableIndex(t.Level())
}

// NextTable returns the level N table pointed to by the entry at index. It
// returns false if the entry is not present or maps a huge page.
func NextTable[L HierarchicalLevel[N], N Level](t Table[L], index uintptr) (Table[N], bool) {
	if entry := t.entries[index]; !entry.IsPresent() || entry.IsHuge() {
		return Table[N]{}, false
	}

	return viewTable[N](nextTableAddr(t.addr, index)), true
}

// CreateNextTable returns the level N table pointed to by the entry at
// index. If the entry is unused, a frame is reserved using alloc, the entry
// is pointed to it with FlagPresent and FlagRW set and the new table is
// cleared. Entries that map huge pages cannot be descended into and cause
// ErrHugePageConflict to be returned.
func CreateNextTable[L HierarchicalLevel[N], N Level](t Table[L], index uintptr, alloc mm.FrameAllocator) (Table[N], *kernel.Error) {
	entry := t.Entry(index)
	if entry.IsPresent() {
		if entry.IsHuge() {
			return Table[N]{}, ErrHugePageConflict
		}

		return viewTable[N](nextTableAddr(t.addr, index)), nil
	}

	frame, err := alloc.AllocFrame()
	if err != nil {
		return Table[N]{}, err
	}

	entry.Set(frame, FlagPresent|FlagRW)

	// The recursive address of the new table may still be cached from a
	// previous mapping.
	next := viewTable[N](nextTableAddr(t.addr, index))
	flushTLBEntryFn(next.addr)
	next.SetAllUnused()

	return next, nil
}
