package mm

const (
	// PointerShift is equal to log2(unsafe.Sizeof(uintptr)). The pointer
	// size for this architecture is defined as (1 << PointerShift).
	PointerShift = uintptr(3)

	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a frame number (shift right
	// by PageShift) and vice-versa.
	PageShift = uintptr(12)

	// PageSize defines the system's page size in bytes. Frames and pages
	// share the same size.
	PageSize = uintptr(1 << PageShift)

	// PageLevels is the number of paging levels used by the long mode MMU.
	PageLevels = 4

	// PageLevelBits is the number of virtual address bits consumed by each
	// paging level (2^9 = 512 entries per table).
	PageLevelBits = uintptr(9)
)
