// Package topic implements the subject-id allocator: the bijection
// between canonicalized topic names and the numeric subject-ids a
// transport understands, its CRDT arbitration rule, and the indexed
// store that keeps every local topic simultaneously reachable by name
// hash, by subject-id, and by next-gossip-time (spec.md §4.D, §4.B).
package topic

import (
	"math/bits"

	"github.com/cynet/meshcore/canon"
	"github.com/cynet/meshcore/index"
)

// futureIndex is a topic's per-topic index of outstanding futures,
// keyed by masked transfer-id.
type futureIndex = index.Tree[uint64, *Future]

// MaxDynamicSlots is the size of the dynamic subject-id pool [0,
// MaxDynamicSlots). Pinned names take the subject-id equal to their
// integer value, anywhere in [1, 8192).
const MaxDynamicSlots = 6144

// MaxTopics bounds the local topic table so allocation recursion is
// always acyclic and bounded.
const MaxTopics = MaxDynamicSlots

// FutureState is the lifecycle state of a Future.
type FutureState uint8

const (
	FuturePending FutureState = iota
	FutureSuccess
	FutureFailure
)

// Future is an application-owned record expecting a peer-to-peer
// response to a message published through a Topic. It lives in the
// topic package rather than alongside the registry logic that manages
// it (see the future package) because Topic must hold a borrowed,
// per-topic index of its own outstanding futures — a cyclic reference
// the design notes call for resolving with back-indices rather than
// cross-package owning pointers.
type Future struct {
	Topic            *Topic
	TransferIDMasked uint64
	Deadline         int64
	State            FutureState
	Response         []byte
	Callback         func(*Future)
	UserData         any

	deadlineSeq uint64
}

// Topic is one locally known named data stream (spec.md §3).
type Topic struct {
	Name string
	Hash uint64

	Evictions uint64
	Age       uint64
	AgedAt    int64

	LastGossip       int64
	LastEventTS      int64
	LastLocalEventTS int64

	SubjectID uint32

	TransferIDCounter uint64
	Priority          uint8
	Publishing        bool

	LastReceivedTransfer uint64
	Subscribed           bool
	ReassemblyTimeout    int64
	ReassemblyExtent     int

	Futures *futureIndex

	UserData any

	gossipSeq uint64
}

// Pinned reports whether this topic's subject-id is the fixed integer
// equal to its hash rather than the dynamic (hash+evictions) mod 6144
// formula. Per spec.md §3 invariant 6, this is fully determined by the
// hash value: a non-pinned hash landing below canon.PinnedLimit is
// treated as impossible.
func (t *Topic) Pinned() bool { return PinnedHash(t.Hash) }

// PinnedHash reports whether hash falls in the pinned subject-id range.
func PinnedHash(hash uint64) bool { return hash < canon.PinnedLimit }

// SubjectIDFor computes the subject-id a topic with the given hash and
// eviction count should occupy.
func SubjectIDFor(hash, evictions uint64) uint32 {
	if PinnedHash(hash) {
		return uint32(hash)
	}
	return uint32((hash + evictions) % MaxDynamicSlots)
}

// Rank is the (hash, age) pair the CRDT arbitration rule compares.
type Rank struct {
	Hash uint64
	Age  uint64
}

// LeftWins implements the left_wins arbitration rule (spec.md §4.D),
// applicable only when left.Hash != right.Hash: a pinned rank beats a
// dynamic one; otherwise the larger floor(log2(age)) band wins; ties
// break toward the numerically smaller hash.
func LeftWins(left, right Rank) bool {
	lp, rp := PinnedHash(left.Hash), PinnedHash(right.Hash)
	if lp != rp {
		return lp
	}
	lb, rb := logBand(left.Age), logBand(right.Age)
	if lb != rb {
		return lb > rb
	}
	return left.Hash < right.Hash
}

// logBand returns floor(log2(age)), or -1 for age == 0 so that any
// positive age outranks it.
func logBand(age uint64) int {
	if age == 0 {
		return -1
	}
	return bits.Len64(age) - 1
}

// GrowAge applies the once-per-second age bump rule on publish
// (spec.md §4.E): at most one increment per call, however long the
// gap, to avoid leaps.
func (t *Topic) GrowAge(now int64) {
	elapsedSec := (now - t.AgedAt) / 1_000_000
	if elapsedSec > 0 {
		t.Age++
		t.AgedAt += elapsedSec * 1_000_000
	}
}

// MergeAge folds in an observed remote age with merge-by-max semantics.
func (t *Topic) MergeAge(other uint64) {
	if other > t.Age {
		t.Age = other
	}
}
