package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"strings"
)

// Inspect describes the ELF64 header of b in a few lines of text, for
// showing to a person.  It never fails; problems are part of the text.
func Inspect(b []byte) string {
	var out strings.Builder
	if len(b) < headerSize {
		out.WriteString("Not ELF64: too small\n")
		return out.String()
	}
	var hdr elf.Header64
	_ = binary.Read(bytes.NewReader(b[:headerSize]), binary.LittleEndian, &hdr)
	if !bytes.Equal(hdr.Ident[:4], []byte(elf.ELFMAG)) {
		out.WriteString("Not ELF magic\n")
		return out.String()
	}
	if elf.Class(hdr.Ident[elf.EI_CLASS]) != elf.ELFCLASS64 {
		out.WriteString("Not 64-bit ELF\n")
		return out.String()
	}
	out.WriteString("ELF64 detected\n")
	switch abi := elf.OSABI(hdr.Ident[elf.EI_OSABI]); abi {
	case elf.ELFOSABI_NONE:
		out.WriteString("OSABI: System V (often Linux)\n")
	case elf.ELFOSABI_LINUX:
		out.WriteString("OSABI: Linux\n")
	default:
		fmt.Fprintf(&out, "OSABI: other 0x%02x\n", uint8(abi))
	}
	fmt.Fprintf(&out, "Type: 0x%x (%s), Machine: 0x%x (%s)\n",
		hdr.Type, elf.Type(hdr.Type), hdr.Machine, elf.Machine(hdr.Machine))
	fmt.Fprintf(&out, "Entry: 0x%016x\n", hdr.Entry)
	fmt.Fprintf(&out, "PH num: %d size: %d off: %d\n", hdr.Phnum, hdr.Phentsize, hdr.Phoff)
	return out.String()
}
