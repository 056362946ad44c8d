// Package nodeid implements the node-ID auto-allocator: a Bloom filter
// of observed peer node-IDs, scanned with randomized back-off to pick
// an unclaimed ID (spec.md §4.G).
package nodeid

import (
	"github.com/cynet/meshcore/bloom"
)

// mixer constant for whitening a PRNG sample with the local UID
// (splitmix64's constant; any good odd multiplier works here, this one
// is a well-known choice).
const mixConst = 0x9E3779B97F4A7C15

// Allocator picks and tracks node-IDs using a Bloom filter supplied by
// the embedder (spec.md §6's node_id_bloom hook) whose lifetime it does
// not own.
type Allocator struct {
	filter    *bloom.Filter
	nodeIDMax uint64

	haveID           bool
	id               uint64
	collisionPending bool
}

// NewAllocator wraps filter for node-ID allocation against the
// inclusive range [0, nodeIDMax].
func NewAllocator(filter *bloom.Filter, nodeIDMax uint64) *Allocator {
	return &Allocator{filter: filter, nodeIDMax: nodeIDMax}
}

// HaveID reports whether a node-ID is currently claimed.
func (a *Allocator) HaveID() bool { return a.haveID }

// ID returns the currently claimed node-ID; only meaningful if HaveID.
func (a *Allocator) ID() uint64 { return a.id }

// SetID records an externally-claimed node-ID (e.g. one provided at
// construction rather than picked by Pick).
func (a *Allocator) SetID(id uint64) {
	a.haveID = true
	a.id = id
	a.filter.Set(id)
}

// Clear forgets the currently claimed node-ID, e.g. after a collision.
func (a *Allocator) Clear() {
	a.haveID = false
	a.id = 0
}

func whiten(prngSample, uid uint64) uint64 {
	return (prngSample ^ uid) * mixConst
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// Pick implements the allocation procedure of spec.md §4.G: it scans
// the Bloom filter from a randomized starting point for a clear bit
// within [0, nodeIDMax], optionally spreading the candidate by a
// random multiple of the filter's bit count to de-correlate picks
// across successive filter periods, then marks and returns it.
func (a *Allocator) Pick(prng func() uint64, uid uint64) uint64 {
	nBits := a.filter.NBits()
	rangeLimit := min(int(a.nodeIDMax), nBits)
	numWords := ceilDiv(rangeLimit, 64)
	if numWords > a.filter.NumWords() {
		numWords = a.filter.NumWords()
	}
	if numWords == 0 {
		numWords = 1
	}

	start := int(whiten(prng(), uid) % uint64(numWords))

	wordIdx := -1
	for i := 0; i < numWords; i++ {
		w := (start + i) % numWords
		word := a.filter.WordAt(w)
		validBits := 64
		if w == numWords-1 {
			if rem := rangeLimit - w*64; rem < 64 {
				validBits = rem
			}
		}
		mask := uint64(1)<<uint(validBits) - 1
		if validBits == 64 {
			mask = ^uint64(0)
		}
		if word&mask != mask {
			wordIdx = w
			break
		}
	}

	if wordIdx == -1 {
		// Filter saturated within range: fall back to a uniformly random
		// node-ID and accept the (now likely) risk of collision.
		candidate := prng() % uint64(a.nodeIDMax+1)
		a.filter.Set(candidate)
		return candidate
	}

	validBits := 64
	if wordIdx == numWords-1 {
		if rem := rangeLimit - wordIdx*64; rem < 64 {
			validBits = rem
		}
	}
	bitStart := int(whiten(prng(), uid^uint64(wordIdx)) % uint64(validBits))
	bitIdx := -1
	word := a.filter.WordAt(wordIdx)
	for i := 0; i < validBits; i++ {
		b := (bitStart + i) % validBits
		if word&(uint64(1)<<uint(b)) == 0 {
			bitIdx = b
			break
		}
	}
	if bitIdx == -1 {
		candidate := prng() % uint64(a.nodeIDMax+1)
		a.filter.Set(candidate)
		return candidate
	}

	candidate := uint64(wordIdx*64 + bitIdx)

	// Spread the pick by a random multiple of nBits, backing off (per
	// the reference's acknowledged open question) by decrementing the
	// multiplier until the result fits, discarding the spread entirely
	// if none fits.
	if nBits > 0 {
		multiple := whiten(prng(), uid) % 8
		for multiple > 0 {
			spread := candidate + multiple*uint64(nBits)
			if spread <= a.nodeIDMax {
				candidate = spread
				break
			}
			multiple--
		}
	}

	a.filter.Set(candidate)
	return candidate
}

// MarkNeighbor records an inbound transfer from sender (spec.md §4.G):
// it purges the filter if saturated, applies CSMA/CD-style back-off
// when we have no node-ID yet and the sender is newly observed, and
// marks the sender's bit. backoff is invoked with the observed
// back-off delay only when de-synchronization is warranted; it is the
// caller's job to actually slide the next heartbeat deadline.
func (a *Allocator) MarkNeighbor(sender uint64, prng func() uint64, backoff func(delayMicros int64)) {
	if a.filter.Saturated() {
		a.filter.Purge()
	}
	isNew := !a.filter.Get(sender)
	if !a.haveID && isNew && backoff != nil {
		delay := int64(prng() % 2_000_000) // uniform [0, 2s) microseconds
		backoff(delay)
	}
	a.filter.Set(sender)
}

// CollisionPending reports whether a collision with our own node-ID
// has been observed and not yet handled.
func (a *Allocator) CollisionPending() bool { return a.collisionPending }

// ReportCollision flags a pending collision, to be resolved on the
// next driver tick.
func (a *Allocator) ReportCollision() { a.collisionPending = true }

// ResolveCollision clears the pending collision flag and relinquishes
// the current node-ID, returning the ID it held.
func (a *Allocator) ResolveCollision() uint64 {
	a.collisionPending = false
	id := a.id
	a.Clear()
	return id
}
