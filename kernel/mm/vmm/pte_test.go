package vmm

import (
	"memcore/kernel/mm"
	"testing"
)

func TestPageTableEntryFlags(t *testing.T) {
	var (
		pte   PageTableEntry
		flag1 = PageTableEntryFlag(1 << 10)
		flag2 = PageTableEntryFlag(1 << 21)
	)

	if pte.HasFlags(flag1) || !pte.IsUnused() {
		t.Fatalf("expected a zero entry to be unused and to have no flags set")
	}

	pte = PageTableEntry(flag1 | flag2)

	if !pte.HasFlags(flag1 | flag2) {
		t.Fatalf("expected HasFlags to return true")
	}

	pte = PageTableEntry(flag1)

	if pte.HasFlags(flag1 | flag2) {
		t.Fatalf("expected HasFlags to return false when only some of the flags are set")
	}

	if pte.IsPresent() || pte.IsHuge() {
		t.Fatalf("expected IsPresent and IsHuge to return false")
	}
}

func TestPageTableEntrySetRoundTrip(t *testing.T) {
	specs := []struct {
		frame mm.Frame
		flags PageTableEntryFlag
	}{
		{mm.Frame(0), FlagPresent},
		{mm.Frame(0xb8), FlagPresent | FlagRW},
		{mm.Frame(0x123456), FlagPresent | FlagRW | FlagNoExecute},
		{mm.Frame(0xffffffffff), FlagPresent | FlagGlobal | FlagDoNotCache | FlagWriteThroughCaching},
		{mm.Frame(0x40000), FlagPresent | FlagRW | FlagHugePage},
	}

	for specIndex, spec := range specs {
		// Start from a dirty entry; Set must overwrite everything
		pte := PageTableEntry(0xfffffffffffffffe)
		pte.Set(spec.frame, spec.flags)

		if !pte.IsPresent() {
			t.Errorf("[spec %d] expected entry to be present", specIndex)
		}

		frame, ok := pte.PointedFrame()
		if !ok || frame != spec.frame {
			t.Errorf("[spec %d] expected PointedFrame to return (%d, true); got (%d, %t)", specIndex, spec.frame, frame, ok)
		}

		if got := pte.Flags(); got != spec.flags {
			t.Errorf("[spec %d] expected entry flags to be 0x%x; got 0x%x", specIndex, spec.flags, got)
		}

		if exp := spec.flags&FlagHugePage != 0; pte.IsHuge() != exp {
			t.Errorf("[spec %d] expected IsHuge to return %t", specIndex, exp)
		}
	}
}

func TestPageTableEntrySetUnused(t *testing.T) {
	specs := []PageTableEntry{
		0,
		PageTableEntry(FlagPresent),
		garbageEntry,
		PageTableEntry(0xffffffffffffffff),
	}

	for specIndex, pte := range specs {
		pte.SetUnused()
		if !pte.IsUnused() {
			t.Errorf("[spec %d] expected IsUnused to return true after calling SetUnused", specIndex)
		}
	}
}

func TestPageTableEntryPointedFrameNotPresent(t *testing.T) {
	var pte PageTableEntry
	pte.Set(mm.Frame(0xb8), FlagRW)

	if frame, ok := pte.PointedFrame(); ok || frame != mm.InvalidFrame {
		t.Fatalf("expected PointedFrame to return (InvalidFrame, false) for a non-present entry; got (%d, %t)", frame, ok)
	}

	if exp := mm.Frame(0xb8); pte.Frame() != exp {
		t.Fatalf("expected Frame to return %d; got %d", exp, pte.Frame())
	}
}

func TestPageTableEntrySetMasksFlagBits(t *testing.T) {
	var pte PageTableEntry
	pte.Set(mm.Frame(0xb8), FlagPresent|PageTableEntryFlag(0xabc000))

	if frame, _ := pte.PointedFrame(); frame != mm.Frame(0xb8) {
		t.Fatalf("expected flags not to modify the frame address; got frame %d", frame)
	}
}
