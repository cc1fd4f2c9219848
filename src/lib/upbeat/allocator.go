package upbeat

import (
	"errors"
	"fmt"
	"sync"

	"waemom/src/lib/trust"
)

// ErrFramesExhausted is returned by Allocate once every usable frame has
// been handed out.
var ErrFramesExhausted = errors.New("physical frames exhausted")

// FrameAllocator hands out each usable frame of the memory map exactly once,
// in map order.  There is no free.  It also owns the arena that backs the
// frames it has handed out; Bytes is the only way to reach frame contents.
type FrameAllocator struct {
	lock    sync.Mutex
	ranges  []frameRange
	current int   // index into ranges
	next    Frame // next frame to hand out from ranges[current]
	issued  *BitSet
	ordinal uint32 // frames handed out before ranges[current]
	total   uint64
	arena   map[Frame]*[PageSize]byte
	log     *trust.Logger
}

// NewFrameAllocator builds the free list once from the memory map.  Usable
// regions are shrunk to whole pages; everything else is ignored.
func NewFrameAllocator(regions []Region, log *trust.Logger) *FrameAllocator {
	if log == nil {
		log = trust.Default().Named("upbeat")
	}
	ranges := usableRanges(regions)
	total := uint64(0)
	for _, r := range ranges {
		total += uint64(r.limit - r.first)
	}
	a := &FrameAllocator{
		ranges: ranges,
		issued: NewBitSet(uint32(total)),
		total:  total,
		arena:  make(map[Frame]*[PageSize]byte),
		log:    log,
	}
	if len(ranges) > 0 {
		a.next = ranges[0].first
	}
	log.Infof("frame allocator: %d usable frames in %d ranges", total, len(ranges))
	return a
}

// Allocate returns the next unused frame, zero filled.  When the list is
// empty it returns InvalidFrame and ErrFramesExhausted.
func (a *FrameAllocator) Allocate() (Frame, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	for a.current < len(a.ranges) && a.next >= a.ranges[a.current].limit {
		r := a.ranges[a.current]
		a.ordinal += uint32(r.limit - r.first)
		a.current++
		if a.current < len(a.ranges) {
			a.next = a.ranges[a.current].first
		}
	}
	if a.current >= len(a.ranges) {
		return InvalidFrame, ErrFramesExhausted
	}
	f := a.next
	a.next++

	bit := BitIndex(a.ordinal + uint32(f-a.ranges[a.current].first))
	if a.issued.On(bit) {
		panic(fmt.Sprintf("frame allocator: %s handed out twice", f))
	}
	a.issued.Set(bit)
	a.arena[f] = new([PageSize]byte)
	return f, nil
}

// Bytes returns the contents of a frame that this allocator handed out.
// Asking for any other frame is a kernel bug and panics.
func (a *FrameAllocator) Bytes(f Frame) []byte {
	a.lock.Lock()
	page, ok := a.arena[f]
	a.lock.Unlock()
	if !ok {
		panic(fmt.Sprintf("frame allocator: %s was never allocated", f))
	}
	return page[:]
}

// Owns reports whether f has been handed out by this allocator.
func (a *FrameAllocator) Owns(f Frame) bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	_, ok := a.arena[f]
	return ok
}

// Zero clears the contents of an allocated frame.
func (a *FrameAllocator) Zero(f Frame) {
	b := a.Bytes(f)
	for i := range b {
		b[i] = 0
	}
}

// Stats returns the number of frames handed out and the total.
func (a *FrameAllocator) Stats() (used uint64, total uint64) {
	a.lock.Lock()
	defer a.lock.Unlock()
	return uint64(len(a.arena)), a.total
}

func (a *FrameAllocator) LogStats() {
	used, total := a.Stats()
	a.log.Statsf("frames", "%d of %d frames in use (%d KiB free)", used, total, (total-used)*PageSize/1024)
}
