package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"

	"waemom/src/lib/trust"
	"waemom/src/lib/upbeat"
)

type LoaderError int

const LoaderNoError LoaderError = 0
const LoaderTooShort LoaderError = -1
const LoaderBadMagic LoaderError = -2
const LoaderNotClass64 LoaderError = -3
const LoaderBadProgramHeaders LoaderError = -4
const LoaderSegmentOutOfRange LoaderError = -5

func (e LoaderError) Error() string {
	return e.String()
}

func (e LoaderError) String() string {
	switch e {
	case 0:
		return "LoaderNoError"
	case -1:
		return "LoaderTooShort"
	case -2:
		return "LoaderBadMagic"
	case -3:
		return "LoaderNotClass64"
	case -4:
		return "LoaderBadProgramHeaders"
	case -5:
		return "LoaderSegmentOutOfRange"
	default:
		return "unknown loader error code"
	}
}

// Segment is one loadable piece of an image: a view of the file bytes and
// the virtual address they belong at.
type Segment struct {
	Data  []byte
	Vaddr uint64
}

// Image is the parsed form of an executable.  Segments are the PT_LOAD
// entries in program header order.
type Image struct {
	Entry    uint64
	Segments []Segment
	Dropped  int // PT_LOAD entries past MaxSegments
}

// Mapper is the part of the address space manager the loader needs.
type Mapper interface {
	MapRegion(root upbeat.PhysAddr, vaddr, length uint64, writable bool) ([]upbeat.Frame, error)
	FrameBytes(f upbeat.Frame) []byte
}

// Parse checks the ELF64 header of b and collects its loadable segments.
// Nothing outside b is ever read; a header or segment that points past the
// end of b is an error.  Segments keep referring to b.
func Parse(logger *trust.Logger, b []byte) (*Image, error) {
	if logger == nil {
		logger = trust.Default()
	}
	if len(b) < headerSize {
		return nil, LoaderTooShort
	}
	var hdr elf.Header64
	if err := binary.Read(bytes.NewReader(b[:headerSize]), binary.LittleEndian, &hdr); err != nil {
		return nil, LoaderTooShort
	}
	if !bytes.Equal(hdr.Ident[:4], []byte(elf.ELFMAG)) {
		return nil, LoaderBadMagic
	}
	if elf.Class(hdr.Ident[elf.EI_CLASS]) != elf.ELFCLASS64 {
		return nil, LoaderNotClass64
	}
	img := &Image{Entry: hdr.Entry}
	if hdr.Phnum == 0 {
		return img, nil
	}
	if hdr.Phentsize < progHdrSize {
		logger.Debugf("program header entry size %d too small", hdr.Phentsize)
		return nil, LoaderBadProgramHeaders
	}
	size := uint64(len(b))
	for i := uint64(0); i < uint64(hdr.Phnum); i++ {
		off := hdr.Phoff + i*uint64(hdr.Phentsize)
		if off < hdr.Phoff || off > size || size-off < progHdrSize {
			logger.Debugf("program header %d at %#x is past the end (%d bytes)", i, off, size)
			return nil, LoaderBadProgramHeaders
		}
		var ph elf.Prog64
		if err := binary.Read(bytes.NewReader(b[off:off+progHdrSize]), binary.LittleEndian, &ph); err != nil {
			return nil, LoaderBadProgramHeaders
		}
		if elf.ProgType(ph.Type) != elf.PT_LOAD {
			continue
		}
		if ph.Off > size || size-ph.Off < ph.Filesz {
			logger.Debugf("segment %d [%#x+%#x] is past the end (%d bytes)", i, ph.Off, ph.Filesz, size)
			return nil, LoaderSegmentOutOfRange
		}
		if len(img.Segments) == MaxSegments {
			img.Dropped++
			continue
		}
		img.Segments = append(img.Segments, Segment{
			Data:  b[ph.Off : ph.Off+ph.Filesz],
			Vaddr: ph.Vaddr,
		})
	}
	if img.Dropped > 0 {
		logger.Warnf("image has %d loadable segments, only the first %d are used",
			len(img.Segments)+img.Dropped, MaxSegments)
	}
	logger.Debugf("parsed image: entry %#x, %d segments", img.Entry, len(img.Segments))
	return img, nil
}

// MapInto maps every segment of img into root, writable and user
// accessible, and copies the segment bytes in.  The bytes start at the
// segment's offset within its first page; the rest of each page is zero.
// On failure, pages already mapped are left in place.
func MapInto(m Mapper, root upbeat.PhysAddr, img *Image) error {
	for _, seg := range img.Segments {
		frames, err := m.MapRegion(root, seg.Vaddr, uint64(len(seg.Data)), true)
		if err != nil {
			return err
		}
		data := seg.Data
		off := seg.Vaddr & (upbeat.PageSize - 1)
		for _, f := range frames {
			page := m.FrameBytes(f)
			n := copy(page[off:], data)
			data = data[n:]
			zero(page[:off])
			zero(page[off+uint64(n):])
			off = 0
		}
	}
	return nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
