package loader

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"waemom/src/lib/trust"
	"waemom/src/lib/upbeat"
	"waemom/src/lib/vm"
)

func quietLogger() *trust.Logger {
	l := trust.New("loader", &bytes.Buffer{})
	l.Restrict(trust.Nothing)
	return l
}

func expectLoaderError(t *testing.T, b []byte, want LoaderError) {
	t.Helper()
	img, err := Parse(quietLogger(), b)
	if img != nil {
		t.Errorf("expected no image for %s", want)
	}
	if !errors.Is(err, want) {
		t.Errorf("expected %s, got %v", want, err)
	}
}

func TestParseRejectsShortInput(t *testing.T) {
	for _, n := range []int{0, 4, 63} {
		b := Build(0x401000, Segment{Data: []byte("x")})
		expectLoaderError(t, b[:n], LoaderTooShort)
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	b := Build(0x401000, Segment{Data: []byte("x")})
	b[1] = 'X'
	expectLoaderError(t, b, LoaderBadMagic)
}

func TestParseRejects32BitClass(t *testing.T) {
	b := Build(0x401000, Segment{Data: []byte("x")})
	b[4] = 1 // ELFCLASS32
	expectLoaderError(t, b, LoaderNotClass64)
}

func TestParseHeaderOnlyIsNotOutOfBounds(t *testing.T) {
	// a bare 64 byte header that claims program headers it doesn't have
	b := Build(0x401000, Segment{Data: []byte("x")})[:headerSize]
	expectLoaderError(t, b, LoaderBadProgramHeaders)
}

func TestParseSegmentOutOfRange(t *testing.T) {
	b := Build(0x401000, Segment{Data: []byte("abcdef")})
	expectLoaderError(t, b[:len(b)-1], LoaderSegmentOutOfRange)
}

func TestParseSmallPhentsize(t *testing.T) {
	b := Build(0x401000, Segment{Data: []byte("x")})
	binary.LittleEndian.PutUint16(b[54:], 40)
	expectLoaderError(t, b, LoaderBadProgramHeaders)
}

func TestParseKeepsLoadSegmentsInOrder(t *testing.T) {
	b := Build(0x400100,
		Segment{Data: []byte("text"), Vaddr: 0x400000},
		Segment{Data: []byte("note")},
		Segment{Data: []byte("data"), Vaddr: 0x600000},
	)
	// turn the middle entry into a PT_NOTE
	binary.LittleEndian.PutUint32(b[headerSize+progHdrSize:], 4)
	img, err := Parse(quietLogger(), b)
	if err != nil {
		t.Fatal(err)
	}
	if img.Entry != 0x400100 {
		t.Errorf("wrong entry %#x", img.Entry)
	}
	if len(img.Segments) != 2 {
		t.Fatalf("expected 2 loadable segments, got %d", len(img.Segments))
	}
	if string(img.Segments[0].Data) != "text" || img.Segments[0].Vaddr != 0x400000 {
		t.Errorf("first segment wrong: %q at %#x", img.Segments[0].Data, img.Segments[0].Vaddr)
	}
	if string(img.Segments[1].Data) != "data" || img.Segments[1].Vaddr != 0x600000 {
		t.Errorf("second segment wrong: %q at %#x", img.Segments[1].Data, img.Segments[1].Vaddr)
	}
}

func TestParseTruncatesAtMaxSegments(t *testing.T) {
	segs := make([]Segment, MaxSegments+3)
	for i := range segs {
		segs[i] = Segment{Data: []byte{byte(i)}}
	}
	img, err := Parse(quietLogger(), Build(UserProcessLinkAddr, segs...))
	if err != nil {
		t.Fatalf("extra segments should not be an error: %v", err)
	}
	if len(img.Segments) != MaxSegments || img.Dropped != 3 {
		t.Errorf("expected %d kept and 3 dropped, got %d and %d", MaxSegments, len(img.Segments), img.Dropped)
	}
	if img.Segments[MaxSegments-1].Data[0] != MaxSegments-1 {
		t.Errorf("the first %d segments should be the ones kept", MaxSegments)
	}
}

func newMapper(t *testing.T) (*vm.Manager, upbeat.PhysAddr) {
	t.Helper()
	alloc := upbeat.NewFrameAllocator([]upbeat.Region{
		{Start: 0x100000, Length: 1024 * upbeat.PageSize, Kind: upbeat.RegionUsable},
	}, quietLogger())
	m, err := vm.NewManager(alloc, 1, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	root, err := m.CreateRoot()
	if err != nil {
		t.Fatal(err)
	}
	return m, root
}

func TestMapIntoOneSmallSegment(t *testing.T) {
	m, root := newMapper(t)
	const v = 0x400000
	seg := []byte("0123456789")
	img, err := Parse(quietLogger(), Build(v, Segment{Data: seg, Vaddr: v}))
	if err != nil {
		t.Fatal(err)
	}

	counter := &countingMapper{Manager: m}
	if err := MapInto(counter, root, img); err != nil {
		t.Fatal(err)
	}
	if counter.pages != 1 {
		t.Errorf("expected exactly 1 page mapped, got %d", counter.pages)
	}
	page, err := m.CopyIn(root, v, upbeat.PageSize)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(page[:10], seg) {
		t.Errorf("segment bytes wrong: %q", page[:10])
	}
	if !bytes.Equal(page[10:], make([]byte, 4086)) {
		t.Errorf("remainder of the page is not zero")
	}
	if _, _, err := m.Translate(root, v+upbeat.PageSize); !errors.Is(err, vm.ErrNotMapped) {
		t.Errorf("second page should not be mapped: %v", err)
	}
}

func TestMapIntoMultiPageUnaligned(t *testing.T) {
	m, root := newMapper(t)
	data := bytes.Repeat([]byte{0xab}, 5000)
	const v = 0x400ff0
	img, err := Parse(quietLogger(), Build(v, Segment{Data: data, Vaddr: v}))
	if err != nil {
		t.Fatal(err)
	}
	counter := &countingMapper{Manager: m}
	if err := MapInto(counter, root, img); err != nil {
		t.Fatal(err)
	}
	// 0x400ff0 through 0x402377 touches three pages
	if counter.pages != 3 {
		t.Errorf("expected 3 pages, got %d", counter.pages)
	}
	got, err := m.CopyIn(root, v, uint64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("segment bytes not copied at their in-page offset")
	}
	head, _ := m.CopyIn(root, 0x400000, 0xff0)
	if !bytes.Equal(head, make([]byte, 0xff0)) {
		t.Errorf("bytes before the segment start are not zero")
	}
}

func TestMapIntoPropagatesFailure(t *testing.T) {
	m, root := newMapper(t)
	img := &Image{Segments: []Segment{{Data: []byte("a"), Vaddr: 0x400000}, {Data: []byte("b"), Vaddr: 0x400000}}}
	if err := MapInto(m, root, img); !errors.Is(err, vm.ErrAlreadyMapped) {
		t.Errorf("expected the mapping error to come back, got %v", err)
	}
}

func TestInspect(t *testing.T) {
	b := Build(0x401000, Segment{Data: []byte("x")})
	out := Inspect(b)
	for _, want := range []string{"ELF64 detected", "OSABI: System V", "Machine: 0x3e", "Entry: 0x0000000000401000", "PH num: 1 size: 56 off: 64"} {
		if !strings.Contains(out, want) {
			t.Errorf("inspector text missing %q:\n%s", want, out)
		}
	}
	if got := Inspect(b[:10]); got != "Not ELF64: too small\n" {
		t.Errorf("short input: %q", got)
	}
	b[4] = 1
	if got := Inspect(b); got != "Not 64-bit ELF\n" {
		t.Errorf("32 bit input: %q", got)
	}
	b[0] = 0
	if got := Inspect(b); got != "Not ELF magic\n" {
		t.Errorf("bad magic: %q", got)
	}
}

type countingMapper struct {
	*vm.Manager
	pages int
}

func (c *countingMapper) MapRegion(root upbeat.PhysAddr, vaddr, length uint64, writable bool) ([]upbeat.Frame, error) {
	frames, err := c.Manager.MapRegion(root, vaddr, length, writable)
	c.pages += len(frames)
	return frames, err
}
