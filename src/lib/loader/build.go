package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// Build returns a minimal x86_64 ELF64 executable with one PT_LOAD entry per
// segment, in the order given.  A segment with a zero Vaddr is placed at
// UserProcessLinkAddr, one page after the segment before it.
func Build(entry uint64, segs ...Segment) []byte {
	var buf bytes.Buffer
	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     entry,
		Phoff:     headerSize,
		Ehsize:    headerSize,
		Phentsize: progHdrSize,
		Phnum:     uint16(len(segs)),
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	hdr.Ident[elf.EI_OSABI] = byte(elf.ELFOSABI_NONE)
	_ = binary.Write(&buf, binary.LittleEndian, &hdr)

	dataOff := uint64(headerSize + progHdrSize*len(segs))
	next := uint64(UserProcessLinkAddr)
	for _, s := range segs {
		vaddr := s.Vaddr
		if vaddr == 0 {
			vaddr = next
		}
		next = (vaddr + uint64(len(s.Data)) + 2*0x1000 - 1) &^ 0xfff
		ph := elf.Prog64{
			Type:   uint32(elf.PT_LOAD),
			Flags:  uint32(elf.PF_R | elf.PF_W | elf.PF_X),
			Off:    dataOff,
			Vaddr:  vaddr,
			Paddr:  vaddr,
			Filesz: uint64(len(s.Data)),
			Memsz:  uint64(len(s.Data)),
			Align:  0x1000,
		}
		_ = binary.Write(&buf, binary.LittleEndian, &ph)
		dataOff += uint64(len(s.Data))
	}
	for _, s := range segs {
		buf.Write(s.Data)
	}
	return buf.Bytes()
}
