package upbeat

import "fmt"

const (
	PageShift = 12
	PageSize  = 1 << PageShift
)

// PhysAddr is a physical memory address.
type PhysAddr uint64

// Frame is the index of a physical page frame.  Frame n covers the
// physical addresses [n*PageSize, (n+1)*PageSize).
type Frame uint64

// InvalidFrame is returned alongside an error by the allocator.
const InvalidFrame = Frame(^uint64(0))

func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical address of the first byte of the frame.
func (f Frame) Address() PhysAddr {
	return PhysAddr(f << PageShift)
}

func (f Frame) String() string {
	if !f.Valid() {
		return "frame(invalid)"
	}
	return fmt.Sprintf("frame(%#x)", uint64(f.Address()))
}

// FrameFromAddress returns the frame that contains p.
func FrameFromAddress(p PhysAddr) Frame {
	return Frame(p >> PageShift)
}

func (p PhysAddr) PageAligned() bool {
	return p&(PageSize-1) == 0
}

// PageDown rounds v down to a page boundary.
func PageDown(v uint64) uint64 {
	return v &^ (PageSize - 1)
}

// PageUp rounds v up to a page boundary.  Values within a page of the top of
// the address space saturate at the last page boundary.
func PageUp(v uint64) uint64 {
	if v > ^uint64(0)-(PageSize-1) {
		return PageDown(v)
	}
	return (v + PageSize - 1) &^ (PageSize - 1)
}

// PagesFor returns the number of whole pages needed to hold n bytes.
func PagesFor(n uint64) uint64 {
	return (n + PageSize - 1) >> PageShift
}
