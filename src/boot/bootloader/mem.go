package bootloader

import "waemom/src/lib/upbeat"

// the legacy PC hole: low memory ends at 0x9f000 and the BIOS/VGA area
// runs up to the 1MB line
const (
	lowMemoryStart = 0x1000
	lowMemoryEnd   = 0x9_f000
	highMemory     = 0x10_0000
)

// DefaultMemoryMap is what firmware hands a machine with mib megabytes of
// RAM: conventional memory below 640K (minus page zero), the reserved hole,
// then everything above 1MB.
func DefaultMemoryMap(mib uint64) []upbeat.Region {
	result := []upbeat.Region{
		{Start: lowMemoryStart, Length: lowMemoryEnd - lowMemoryStart, Kind: upbeat.RegionUsable},
		{Start: lowMemoryEnd, Length: highMemory - lowMemoryEnd, Kind: upbeat.RegionReserved},
	}
	total := upbeat.PhysAddr(mib << 20)
	if total > highMemory {
		result = append(result, upbeat.Region{Start: highMemory, Length: uint64(total - highMemory), Kind: upbeat.RegionUsable})
	}
	return result
}
