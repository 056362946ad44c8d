// Package bloom implements a fixed-capacity, set-only Bloom filter over
// 64-bit words with a single hash function (identity modulo bit count).
// It is used by the nodeid package as an observed-node-ID tombstone set,
// not as a general-purpose probabilistic membership structure: its
// popcount is an exact count of set bits, not an estimate, which is why
// it uses a single trivial hash rather than the k-hash scheme a generic
// Bloom filter library provides (see DESIGN.md for why
// holiman/bloomfilter/v2 does not fit here).
package bloom

import (
	"math/bits"

	"github.com/cynet/meshcore/errs"
)

// Filter is a fixed-capacity Bloom filter over a bit array whose length
// is a multiple of 64.
type Filter struct {
	words    []uint64
	nBits    int
	popcount int
}

// New creates a Filter with nBits bits. nBits must be a positive multiple
// of 64.
func New(nBits int) (*Filter, error) {
	if nBits <= 0 || nBits%64 != 0 {
		return nil, errs.Argument("bloom: nBits %d must be a positive multiple of 64", nBits)
	}
	return &Filter{
		words: make([]uint64, nBits/64),
		nBits: nBits,
	}, nil
}

// NBits returns the filter's bit capacity.
func (f *Filter) NBits() int { return f.nBits }

// Popcount returns the exact number of set bits.
func (f *Filter) Popcount() int { return f.popcount }

// bitIndex maps v onto [0, nBits) via the filter's single hash function:
// identity modulo bit count.
func (f *Filter) bitIndex(v uint64) int {
	return int(v % uint64(f.nBits))
}

// Set marks the bit for v. If the bit was not already set, Popcount is
// incremented.
func (f *Filter) Set(v uint64) {
	idx := f.bitIndex(v)
	word, bit := idx/64, uint(idx%64)
	mask := uint64(1) << bit
	if f.words[word]&mask == 0 {
		f.words[word] |= mask
		f.popcount++
	}
}

// Get reports whether the bit for v is set.
func (f *Filter) Get(v uint64) bool {
	idx := f.bitIndex(v)
	word, bit := idx/64, uint(idx%64)
	return f.words[word]&(uint64(1)<<bit) != 0
}

// NumWords returns the number of 64-bit words backing the filter.
func (f *Filter) NumWords() int { return len(f.words) }

// WordAt returns the raw backing word at index i, for callers that scan
// for a clear bit word-at-a-time rather than probing one value at a time.
func (f *Filter) WordAt(i int) uint64 { return f.words[i] }

// Purge clears every bit and resets Popcount to 0. Callers purge when
// occupancy exceeds roughly 31/32 of capacity, to evict stale entries
// (e.g. node-IDs of peers that have since left the network) rather than
// let the filter saturate permanently.
func (f *Filter) Purge() {
	for i := range f.words {
		f.words[i] = 0
	}
	f.popcount = 0
}

// Saturated reports whether Popcount exceeds the 31/32 occupancy
// threshold past which false positives become likely enough that callers
// should Purge.
func (f *Filter) Saturated() bool {
	return f.popcount*32 > f.nBits*31
}

// exactPopcount recomputes the popcount directly from the bit array; used
// by tests to check the invariant bloom.popcount == popcount(bloom.storage).
func (f *Filter) exactPopcount() int {
	n := 0
	for _, w := range f.words {
		n += bits.OnesCount64(w)
	}
	return n
}
