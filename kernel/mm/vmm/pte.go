package vmm

import "memcore/kernel/mm"

// PageTableEntryFlag describes a flag that can be applied to a page table entry.
type PageTableEntryFlag uintptr

// PageTableEntry describes a page table entry. These entries encode
// a physical frame address and a set of flags. An entry with all bits
// cleared is unused.
type PageTableEntry uintptr

// IsUnused returns true if no bits are set for this entry.
func (pte PageTableEntry) IsUnused() bool {
	return pte == 0
}

// SetUnused clears all entry bits.
func (pte *PageTableEntry) SetUnused() {
	*pte = 0
}

// HasFlags returns true if this entry has all the input flags set.
func (pte PageTableEntry) HasFlags(flags PageTableEntryFlag) bool {
	return (uintptr(pte) & uintptr(flags)) == uintptr(flags)
}

// IsPresent returns true if FlagPresent is set.
func (pte PageTableEntry) IsPresent() bool {
	return pte.HasFlags(FlagPresent)
}

// IsHuge returns true if FlagHugePage is set.
func (pte PageTableEntry) IsHuge() bool {
	return pte.HasFlags(FlagHugePage)
}

// Flags returns the flag bits of this entry.
func (pte PageTableEntry) Flags() PageTableEntryFlag {
	return PageTableEntryFlag(uintptr(pte) &^ ptePhysPageMask)
}

// Frame returns the physical page frame encoded in this entry regardless of
// whether the entry is present.
func (pte PageTableEntry) Frame() mm.Frame {
	return mm.Frame((uintptr(pte) & ptePhysPageMask) >> mm.PageShift)
}

// PointedFrame returns the physical frame this entry points to. If the entry
// is not present, PointedFrame returns mm.InvalidFrame and false. The huge
// flag is not inspected; callers decide if the frame is a leaf or a table.
func (pte PageTableEntry) PointedFrame() (mm.Frame, bool) {
	if !pte.IsPresent() {
		return mm.InvalidFrame, false
	}

	return pte.Frame(), true
}

// Set overwrites the entry so it points to frame with the given flags. The
// caller must include FlagPresent for the entry to be used by the MMU.
func (pte *PageTableEntry) Set(frame mm.Frame, flags PageTableEntryFlag) {
	*pte = PageTableEntry((frame.Address() & ptePhysPageMask) | (uintptr(flags) &^ ptePhysPageMask))
}
