package topic

// Gossip is a remote topic descriptor extracted from a received
// heartbeat, independent of wire encoding.
type Gossip struct {
	Hash      uint64
	Evictions uint64
	Age       uint64
}

// Cause classifies why an Outcome has Concern set.
type Cause uint8

const (
	// CauseNone means nothing noteworthy happened (unknown gossip with
	// no slot occupant, or known gossip in perfect consensus).
	CauseNone Cause = iota
	// CauseCollision means two distinct hashes competed for one slot.
	CauseCollision
	// CauseDivergence means the same hash disagreed on eviction count.
	CauseDivergence
)

// Outcome records what HandleGossip did, so the caller can decide
// whether to log or surface the event.
type Outcome struct {
	Concern    bool // a collision or divergence was found
	LocalMoved bool // the local topic's subject-id changed
	Cause      Cause
	Local      *Topic
}

// HandleGossip applies spec.md §4.E's reception rules for a single
// gossiped topic against the local store: unknown topics are checked
// for a subject-id collision against the slot their hash would claim;
// known topics (matching hash) are checked for an eviction-count
// divergence. now stamps last_event_ts / last_local_event_ts.
func (s *Store) HandleGossip(now int64, g Gossip, hooks Hooks) Outcome {
	if local, ok := s.byHash.Find(g.Hash); ok {
		return s.handleKnown(now, local, g, hooks)
	}
	return s.handleUnknown(now, g, hooks)
}

func (s *Store) handleUnknown(now int64, g Gossip, hooks Hooks) Outcome {
	sid := SubjectIDFor(g.Hash, g.Evictions)
	local, ok := s.bySubjectID.Find(sid)
	if !ok {
		return Outcome{}
	}
	// Collision: two distinct hashes compete for the same subject-id.
	local.LastEventTS = now
	if LeftWins(Rank{local.Hash, local.Age}, Rank{g.Hash, g.Age}) {
		s.ScheduleASAP(local)
		return Outcome{Concern: true, Cause: CauseCollision, Local: local}
	}
	s.Allocate(local, local.Evictions+1, false, hooks)
	local.LastLocalEventTS = now
	return Outcome{Concern: true, Cause: CauseCollision, LocalMoved: true, Local: local}
}

func (s *Store) handleKnown(now int64, local *Topic, g Gossip, hooks Hooks) Outcome {
	// Rule (b): age is incremented on every received transfer for this
	// topic, independent of the once-per-second publish-side bump and
	// independent of the merge-by-max below.
	local.Age++

	if local.Evictions == g.Evictions {
		local.MergeAge(g.Age)
		return Outcome{Local: local}
	}

	// Divergence: same hash, different eviction counts.
	local.LastEventTS = now
	mineBand, otherBand := logBand(local.Age), logBand(g.Age)
	localWins := mineBand > otherBand || (mineBand == otherBand && local.Evictions > g.Evictions)
	if localWins {
		s.ScheduleASAP(local)
		return Outcome{Concern: true, Cause: CauseDivergence, Local: local}
	}

	local.MergeAge(g.Age)
	prevGossip := local.LastGossip
	s.Allocate(local, g.Evictions, false, hooks)
	if local.SubjectID == SubjectIDFor(g.Hash, g.Evictions) {
		// We just synchronized with the remote; no need to re-announce.
		s.byGossipTime.Remove(s.seqKeyFor(local))
		local.LastGossip = prevGossip
		local.gossipSeq = s.gossipSeq.Next()
		s.byGossipTime.InsertAbsent(s.seqKeyFor(local), func() *Topic { return local })
	}
	local.LastLocalEventTS = now
	return Outcome{Concern: true, Cause: CauseDivergence, LocalMoved: true, Local: local}
}
