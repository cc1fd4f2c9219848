package upbeat

import "fmt"

// RegionKind says what the boot environment reported about a region.
type RegionKind int

const (
	RegionUsable RegionKind = iota
	RegionReserved
	RegionACPIReclaimable
	RegionBootloader
)

func (k RegionKind) String() string {
	switch k {
	case RegionUsable:
		return "usable"
	case RegionReserved:
		return "reserved"
	case RegionACPIReclaimable:
		return "acpi"
	case RegionBootloader:
		return "bootloader"
	}
	return fmt.Sprintf("RegionKind(%d)", int(k))
}

// Region is one entry of the platform memory map.
type Region struct {
	Start  PhysAddr
	Length uint64
	Kind   RegionKind
}

func (r Region) End() PhysAddr {
	return r.Start + PhysAddr(r.Length)
}

func (r Region) String() string {
	return fmt.Sprintf("[%#x-%#x) %s", uint64(r.Start), uint64(r.End()), r.Kind)
}

// frameRange is a run of whole usable frames, [first, limit).
type frameRange struct {
	first Frame
	limit Frame
}

// usableRanges shrinks every usable region inward to page boundaries and
// returns the runs that still hold at least one frame, in map order.
func usableRanges(regions []Region) []frameRange {
	var result []frameRange
	for _, r := range regions {
		if r.Kind != RegionUsable || r.Length == 0 {
			continue
		}
		start := PageUp(uint64(r.Start))
		end := PageDown(uint64(r.Start) + r.Length)
		if end < uint64(r.Start) { //wrapped
			end = PageDown(^uint64(0))
		}
		if end <= start {
			continue
		}
		result = append(result, frameRange{
			first: FrameFromAddress(PhysAddr(start)),
			limit: FrameFromAddress(PhysAddr(end)),
		})
	}
	return result
}
