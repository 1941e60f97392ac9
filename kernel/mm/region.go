package mm

// Region describes the closed interval [StartFrame, EndFrame] of physical
// frames. A region whose start lies after its end is empty.
type Region struct {
	StartFrame Frame
	EndFrame   Frame
}

// EmptyRegion contains no frames.
var EmptyRegion = Region{StartFrame: InvalidFrame, EndFrame: 0}

// RegionForSpan returns the smallest region that covers every byte in
// [start, start+size). A zero size yields EmptyRegion.
func RegionForSpan(start uintptr, size uint64) Region {
	if size == 0 {
		return EmptyRegion
	}

	return Region{
		StartFrame: FrameFromAddress(start),
		EndFrame:   FrameFromAddress(start + uintptr(size-1)),
	}
}

// Empty returns true if the region contains no frames.
func (r Region) Empty() bool {
	return r.StartFrame > r.EndFrame
}

// Contains returns true if f lies inside the region bounds (inclusive).
func (r Region) Contains(f Frame) bool {
	return r.StartFrame <= f && f <= r.EndFrame
}

// Frames returns the number of frames in the region.
func (r Region) Frames() uint64 {
	if r.Empty() {
		return 0
	}
	return uint64(r.EndFrame-r.StartFrame) + 1
}

// Extend returns the smallest region that covers both r and other.
func (r Region) Extend(other Region) Region {
	switch {
	case other.Empty():
		return r
	case r.Empty():
		return other
	}

	if other.StartFrame < r.StartFrame {
		r.StartFrame = other.StartFrame
	}
	if other.EndFrame > r.EndFrame {
		r.EndFrame = other.EndFrame
	}
	return r
}
