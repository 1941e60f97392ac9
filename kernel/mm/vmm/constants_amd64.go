package vmm

const (
	// entriesPerTable is the number of entries in a page table at any
	// level. A table occupies exactly one frame.
	entriesPerTable = 512

	// recursiveSlot is the P4 entry that points back to the P4 table
	// itself. It is installed by the rt0 code before the kernel starts.
	recursiveSlot = entriesPerTable - 1

	// ptePhysPageMask is a mask that allows us to extract the physical memory
	// address pointed to by a page table entry. For this particular architecture,
	// bits 12-51 contain the physical memory address.
	ptePhysPageMask = uintptr(0x000ffffffffff000)

	// pdtVirtualAddr is a special virtual address that exploits the
	// recursive mapping used in the last PDT entry to allow accessing the
	// PDT (P4) table using the system's MMU address translation mechanism.
	// By setting all page level bits to 1 the MMU keeps following the
	// last P4 entry for all page levels landing on the P4.
	pdtVirtualAddr = uintptr(0xfffffffffffff000)

	// Sizes of the pages mapped by huge P3 and P2 entries.
	hugePageSize1G = uintptr(1 << 30)
	hugePageSize2M = uintptr(1 << 21)
)

const (
	// FlagPresent is set when the page is available in memory and not swapped out.
	FlagPresent PageTableEntryFlag = 1 << iota

	// FlagRW is set if the page can be written to.
	FlagRW

	// FlagUserAccessible is set if user-mode processes can access this page. If
	// not set only kernel code can access this page.
	FlagUserAccessible

	// FlagWriteThroughCaching implies write-through caching when set and write-back
	// caching if cleared.
	FlagWriteThroughCaching

	// FlagDoNotCache prevents this page from being cached if set.
	FlagDoNotCache

	// FlagAccessed is set by the CPU when this page is accessed.
	FlagAccessed

	// FlagDirty is set by the CPU when this page is modified.
	FlagDirty

	// FlagHugePage is set on P3 (1G) and P2 (2M) entries that map a page
	// directly instead of pointing to a lower level table.
	FlagHugePage

	// FlagGlobal if set, prevents the TLB from flushing the cached memory address
	// for this page when the swapping page tables by updating the CR3 register.
	FlagGlobal

	// FlagNoExecute if set, indicates that a page contains non-executable code.
	FlagNoExecute PageTableEntryFlag = 1 << 63
)
