package vm

import (
	"encoding/binary"
	"fmt"

	"waemom/src/lib/upbeat"
)

// Page table entry bits.  Only the ones this kernel sets are named.
const (
	Present  uint64 = 1 << 0
	Writable uint64 = 1 << 1
	User     uint64 = 1 << 2

	flagMask uint64 = Present | Writable | User
	addrMask uint64 = 0x000F_FFFF_FFFF_F000
)

const (
	entriesPerTable = 512
	entrySize       = 8
	levels          = 4

	// PML4 slots at and above this index are the kernel half.
	kernelHalfFirstSlot = 256

	// KernelBase is the first address of the kernel half.
	KernelBase uint64 = 0xFFFF_8000_0000_0000
	// UserLimit is one past the last canonical lower half address.
	UserLimit uint64 = 0x0000_8000_0000_0000
)

// pte is one decoded page table entry.
type pte uint64

func (e pte) present() bool {
	return uint64(e)&Present != 0
}

func (e pte) flags() uint64 {
	return uint64(e) & flagMask
}

func (e pte) addr() upbeat.PhysAddr {
	return upbeat.PhysAddr(uint64(e) & addrMask)
}

func makePTE(addr upbeat.PhysAddr, flags uint64) pte {
	return pte(uint64(addr)&addrMask | flags&flagMask)
}

func (e pte) String() string {
	s := fmt.Sprintf("%#x", uint64(e.addr()))
	if uint64(e)&Present != 0 {
		s += " P"
	}
	if uint64(e)&Writable != 0 {
		s += " W"
	}
	if uint64(e)&User != 0 {
		s += " U"
	}
	return s
}

// table is a view of one page table frame.
type table []byte

func (t table) get(i int) pte {
	return pte(binary.LittleEndian.Uint64(t[i*entrySize:]))
}

func (t table) set(i int, e pte) {
	binary.LittleEndian.PutUint64(t[i*entrySize:], uint64(e))
}

// index returns the table slot used for vaddr at the given level; level 3 is
// the PML4, level 0 the last level table.
func index(vaddr uint64, level int) int {
	return int((vaddr >> (upbeat.PageShift + 9*uint(level))) & (entriesPerTable - 1))
}

func canonical(vaddr uint64) bool {
	return vaddr < UserLimit || vaddr >= KernelBase
}
