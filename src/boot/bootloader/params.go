package bootloader

import (
	"time"

	"waemom/src/lib/upbeat"
)

// ParamsDef is what the bootloader hands the kernel.
type ParamsDef struct {
	UnixTime   uint64
	MemoryMap  []upbeat.Region
	PageCounts uint64 // one byte each
}

const KernelImagePagesMask = (uint64(0xff << 0))
const KernelStackPagesMask = (uint64(0xff << 8))

const defaultKernelImagePages = 16
const defaultKernelStackPages = 4

// NewParams describes a machine with mib megabytes of RAM, booted now.
func NewParams(mib uint64) *ParamsDef {
	p := &ParamsDef{
		UnixTime:  uint64(time.Now().Unix()),
		MemoryMap: DefaultMemoryMap(mib),
	}
	p.SetKernelImagePages(defaultKernelImagePages)
	p.SetKernelStackPages(defaultKernelStackPages)
	return p
}

func (b *ParamsDef) KernelImagePages() uint8 {
	v := b.PageCounts & KernelImagePagesMask
	return uint8(v)
}

func (b *ParamsDef) KernelStackPages() uint8 {
	v := (b.PageCounts & KernelStackPagesMask) >> 8
	return uint8(v)
}

func (b *ParamsDef) SetKernelImagePages(p uint8) {
	v := b.PageCounts & (^(KernelImagePagesMask))
	v |= uint64(p)
	b.PageCounts = v
}

func (b *ParamsDef) SetKernelStackPages(p uint8) {
	v := b.PageCounts & (^(KernelStackPagesMask))
	v |= (uint64(p) << 8)
	b.PageCounts = v
}

// UsableBytes totals the usable regions of the memory map.
func (b *ParamsDef) UsableBytes() uint64 {
	var total uint64
	for _, r := range b.MemoryMap {
		if r.Kind == upbeat.RegionUsable {
			total += r.Length
		}
	}
	return total
}
