package upbeat

import "fmt"

// BitSet is a fixed size set of bits, rounded up to a multiple of 64.
type BitSet struct {
	size uint32
	data []uint64
}

type BitIndex uint32

func NewBitSet(size uint32) *BitSet {
	words := (size + 63) >> 6
	return &BitSet{size: words << 6, data: make([]uint64, words)}
}

func (b *BitSet) Size() uint32 {
	return b.size
}

func (b *BitSet) check(bit BitIndex) {
	if uint32(bit) >= b.size {
		panic(fmt.Sprintf("bit %d out of range for bitset of size %d", bit, b.size))
	}
}

// On returns false for bits past the end of the set.
func (b *BitSet) On(bit BitIndex) bool {
	if uint32(bit) >= b.size {
		return false
	}
	return b.data[bit>>6]&(1<<(bit%64)) != 0
}

func (b *BitSet) Set(bit BitIndex) {
	b.check(bit)
	b.data[bit>>6] |= 1 << (bit % 64)
}

func (b *BitSet) Clear(bit BitIndex) {
	b.check(bit)
	b.data[bit>>6] &^= 1 << (bit % 64)
}

func (b *BitSet) ClearAll() {
	for i := range b.data {
		b.data[i] = 0
	}
}
