package index

// SeqKey composes a primary ordering key with a monotonically increasing
// insertion sequence number, for the two indices spec.md §4.B calls out
// as "anti-symmetric only": the gossip-time index and the future-deadline
// index. Because Seq is unique per insertion, SeqCmp never reports two
// distinct insertions as equal, so InsertAbsent always succeeds and
// duplicates with an equal Primary are preserved in FIFO order (the one
// inserted first has the smaller Seq and sorts first).
type SeqKey[T any] struct {
	Primary T
	Seq     uint64
}

// SeqCmp builds a comparator over SeqKey[T] from a comparator over T:
// primary order first, insertion sequence as the tiebreaker.
func SeqCmp[T any](cmp func(a, b T) int) func(a, b SeqKey[T]) int {
	return func(a, b SeqKey[T]) int {
		if c := cmp(a.Primary, b.Primary); c != 0 {
			return c
		}
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		default:
			return 0
		}
	}
}

// Sequencer hands out strictly increasing sequence numbers for use with
// SeqKey, scoped to a single Tree (e.g. one per node.Node).
type Sequencer struct{ next uint64 }

// Next returns the next sequence number, starting at 0.
func (s *Sequencer) Next() uint64 {
	v := s.next
	s.next++
	return v
}
