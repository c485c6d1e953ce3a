package engine

import "math/bits"

// BitSet is a compact set of uint32 values using a bitmap.
// Liveness uses one bit per local followed by one per stack position.
type BitSet struct {
	bits []uint64
}

// NewBitSet creates a BitSet that can hold values up to maxVal (inclusive).
func NewBitSet(maxVal int) *BitSet {
	words := (maxVal + 64) / 64
	return &BitSet{bits: make([]uint64, words)}
}

// Set adds val to the set.
func (b *BitSet) Set(val uint32) {
	word := val / 64
	if int(word) >= len(b.bits) {
		b.grow(int(word) + 1)
	}
	b.bits[word] |= 1 << (val % 64)
}

// Clear removes val from the set.
func (b *BitSet) Clear(val uint32) {
	word := val / 64
	if int(word) < len(b.bits) {
		b.bits[word] &^= 1 << (val % 64)
	}
}

// ClearFrom removes every value >= val.
func (b *BitSet) ClearFrom(val uint32) {
	word := int(val / 64)
	if word >= len(b.bits) {
		return
	}
	b.bits[word] &= (1 << (val % 64)) - 1
	for i := word + 1; i < len(b.bits); i++ {
		b.bits[i] = 0
	}
}

// Has returns true if val is in the set.
func (b *BitSet) Has(val uint32) bool {
	word := val / 64
	if int(word) >= len(b.bits) {
		return false
	}
	return b.bits[word]&(1<<(val%64)) != 0
}

// Union adds all elements from other into this set and reports whether
// the set grew.
func (b *BitSet) Union(other *BitSet) bool {
	if len(other.bits) > len(b.bits) {
		b.grow(len(other.bits))
	}
	changed := false
	for i := range other.bits {
		if next := b.bits[i] | other.bits[i]; next != b.bits[i] {
			b.bits[i] = next
			changed = true
		}
	}
	return changed
}

// ToSlice returns the values in increasing order, nil when empty.
func (b *BitSet) ToSlice() []uint32 {
	var result []uint32
	for i, word := range b.bits {
		for word != 0 {
			result = append(result, uint32(i*64+bits.TrailingZeros64(word)))
			word &= word - 1
		}
	}
	return result
}

// grow expands the bitset to n words.
// Callers guarantee n > len(b.bits).
func (b *BitSet) grow(n int) {
	newBits := make([]uint64, n)
	copy(newBits, b.bits)
	b.bits = newBits
}
