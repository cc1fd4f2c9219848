package upbeat

import (
	"bytes"
	"errors"
	"testing"

	"waemom/src/lib/trust"
)

func quietLogger() *trust.Logger {
	l := trust.New("upbeat", &bytes.Buffer{})
	l.Restrict(trust.Nothing)
	return l
}

func TestUsableRangesAreShrunkToPages(t *testing.T) {
	regions := []Region{
		{Start: 0x0, Length: 0x1000, Kind: RegionReserved},
		{Start: 0x1800, Length: 0x3000, Kind: RegionUsable}, // only 0x2000-0x4000 is whole
		{Start: 0x10000, Length: 0x800, Kind: RegionUsable}, // no whole page
		{Start: 0x20000, Length: 0x2000, Kind: RegionUsable},
	}
	got := usableRanges(regions)
	if len(got) != 2 {
		t.Fatalf("expected 2 ranges, got %d", len(got))
	}
	if got[0].first != 2 || got[0].limit != 4 {
		t.Errorf("first range wrong: %+v", got[0])
	}
	if got[1].first != 0x20 || got[1].limit != 0x22 {
		t.Errorf("second range wrong: %+v", got[1])
	}
}

func TestAllocateNeverRepeatsAndExhausts(t *testing.T) {
	regions := []Region{
		{Start: 0x1000, Length: 0x3000, Kind: RegionUsable},
		{Start: 0x4000, Length: 0x4000, Kind: RegionReserved},
		{Start: 0x100000, Length: 0x2000, Kind: RegionUsable},
	}
	a := NewFrameAllocator(regions, quietLogger())
	seen := map[Frame]bool{}
	for i := 0; i < 5; i++ {
		f, err := a.Allocate()
		if err != nil {
			t.Fatalf("allocation %d failed: %v", i, err)
		}
		if seen[f] {
			t.Fatalf("frame %s handed out twice", f)
		}
		seen[f] = true
		addr := uint64(f.Address())
		inFirst := addr >= 0x1000 && addr < 0x4000
		inSecond := addr >= 0x100000 && addr < 0x102000
		if !inFirst && !inSecond {
			t.Errorf("frame %s is outside the usable regions", f)
		}
	}
	for i := 0; i < 3; i++ {
		f, err := a.Allocate()
		if !errors.Is(err, ErrFramesExhausted) {
			t.Fatalf("expected ErrFramesExhausted, got %v", err)
		}
		if f.Valid() {
			t.Errorf("exhausted allocator returned a usable looking frame %s", f)
		}
	}
	used, total := a.Stats()
	if used != 5 || total != 5 {
		t.Errorf("expected 5/5 frames, got %d/%d", used, total)
	}
}

func TestAllocateInMapOrder(t *testing.T) {
	a := NewFrameAllocator([]Region{{Start: 0x5000, Length: 0x2000, Kind: RegionUsable}}, quietLogger())
	f1, _ := a.Allocate()
	f2, _ := a.Allocate()
	if f1.Address() != 0x5000 || f2.Address() != 0x6000 {
		t.Errorf("expected forward cursor, got %s then %s", f1, f2)
	}
}

func TestBytesAreZeroAndPrivate(t *testing.T) {
	a := NewFrameAllocator([]Region{{Start: 0x1000, Length: 0x2000, Kind: RegionUsable}}, quietLogger())
	f1, _ := a.Allocate()
	f2, _ := a.Allocate()
	b1 := a.Bytes(f1)
	if len(b1) != PageSize {
		t.Fatalf("frame should be a page long, got %d", len(b1))
	}
	for _, v := range b1 {
		if v != 0 {
			t.Fatalf("new frame not zeroed")
		}
	}
	b1[10] = 0xaa
	if a.Bytes(f1)[10] != 0xaa {
		t.Errorf("writes through Bytes are not visible on the next translation")
	}
	if a.Bytes(f2)[10] != 0 {
		t.Errorf("frames share storage")
	}
	a.Zero(f1)
	if a.Bytes(f1)[10] != 0 {
		t.Errorf("Zero did not clear the frame")
	}
}

func TestBytesOfUnallocatedFramePanics(t *testing.T) {
	a := NewFrameAllocator([]Region{{Start: 0x1000, Length: 0x1000, Kind: RegionUsable}}, quietLogger())
	defer func() {
		if recover() == nil {
			t.Errorf("expected a panic translating a frame that was never handed out")
		}
	}()
	a.Bytes(Frame(1))
}

func TestPageRounding(t *testing.T) {
	cases := []struct {
		in, down, up, pages uint64
	}{
		{0, 0, 0, 0},
		{1, 0, 0x1000, 1},
		{0x1000, 0x1000, 0x1000, 1},
		{0x1001, 0x1000, 0x2000, 2},
		{^uint64(0), ^uint64(0) &^ 0xfff, ^uint64(0) &^ 0xfff, 1 << 52},
	}
	for _, c := range cases {
		if got := PageDown(c.in); got != c.down {
			t.Errorf("PageDown(%#x) = %#x, want %#x", c.in, got, c.down)
		}
		if got := PageUp(c.in); got != c.up {
			t.Errorf("PageUp(%#x) = %#x, want %#x", c.in, got, c.up)
		}
		if c.in != ^uint64(0) {
			if got := PagesFor(c.in); got != c.pages {
				t.Errorf("PagesFor(%#x) = %d, want %d", c.in, got, c.pages)
			}
		}
	}
}

func TestBitSet(t *testing.T) {
	b := NewBitSet(70)
	if b.Size() != 128 {
		t.Errorf("expected size rounded to 128, got %d", b.Size())
	}
	b.Set(69)
	if !b.On(69) || b.On(68) {
		t.Errorf("set/on mismatch")
	}
	b.Clear(69)
	if b.On(69) {
		t.Errorf("clear failed")
	}
	if b.On(500) {
		t.Errorf("bits past the end should read as off")
	}
}
