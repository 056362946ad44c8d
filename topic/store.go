package topic

import (
	"github.com/cynet/meshcore/canon"
	"github.com/cynet/meshcore/errs"
	"github.com/cynet/meshcore/index"
)

func cmpUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpUint32(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Hooks is the subset of transport.Hooks the allocator needs to tear
// down and re-establish transport-level subscriptions around a
// reallocation.
type Hooks struct {
	Subscribe             func(*Topic) error
	Unsubscribe           func(*Topic)
	OnResubscriptionError func(*Topic, error)
}

// Store holds every local topic, indexed three ways (spec.md §4.B):
// by name hash, by subject-id, and by next-gossip-time.
type Store struct {
	byHash       *index.Tree[uint64, *Topic]
	bySubjectID  *index.Tree[uint32, *Topic]
	byGossipTime *index.Tree[index.SeqKey[int64], *Topic]
	gossipSeq    index.Sequencer

	preferredOverride *uint32
}

// SetPreferredOverride installs the preferred_topic_override stress-
// test knob (spec.md §6): while set, every non-pinned topic's first
// allocation attempt targets sid instead of its hash-derived slot,
// forcing collisions for testing. Eviction retries past the first
// attempt, and every already-evicted reallocation, fall back to the
// normal hash+evictions formula regardless of this setting.
func (s *Store) SetPreferredOverride(sid *uint32) { s.preferredOverride = sid }

// localSubjectIDFor is SubjectIDFor, adjusted for the local stress-
// test override on a topic's virgin (evictions == 0) placement.
func (s *Store) localSubjectIDFor(t *Topic) uint32 {
	if s.preferredOverride != nil && t.Evictions == 0 && !t.Pinned() {
		return *s.preferredOverride
	}
	return SubjectIDFor(t.Hash, t.Evictions)
}

// NewStore returns an empty topic store.
func NewStore() *Store {
	return &Store{
		byHash:       index.New[uint64, *Topic](cmpUint64),
		bySubjectID:  index.New[uint32, *Topic](cmpUint32),
		byGossipTime: index.New[index.SeqKey[int64], *Topic](index.SeqCmp(cmpInt64)),
	}
}

// Len returns the number of live local topics.
func (s *Store) Len() int { return s.byHash.Len() }

// ByHash looks up a topic by its name hash.
func (s *Store) ByHash(hash uint64) (*Topic, bool) { return s.byHash.Find(hash) }

// BySubjectID looks up a topic by its currently held subject-id.
func (s *Store) BySubjectID(sid uint32) (*Topic, bool) { return s.bySubjectID.Find(sid) }

// NextGossip returns the topic least recently gossiped, if any.
func (s *Store) NextGossip() (*Topic, bool) {
	_, t, ok := s.byGossipTime.Min()
	return t, ok
}

// Create canonicalizes raw against namespace/user, assigns it a hash,
// and allocates it a subject-id slot, displacing lower-ranked topics
// as needed.
func (s *Store) Create(now int64, namespace, user, raw string, priority uint8, hooks Hooks) (*Topic, error) {
	name, err := canon.Canonicalize(namespace, user, raw)
	if err != nil {
		return nil, err
	}
	hash := canon.Hash(name)
	if _, exists := s.byHash.Find(hash); exists {
		return nil, errs.Name("topic: name %q already registered", name)
	}
	if s.Len() >= MaxTopics {
		return nil, errs.Capacity("topic: local topic table full (%d topics)", MaxTopics)
	}

	t := &Topic{
		Name:     name,
		Hash:     hash,
		AgedAt:   now,
		Priority: priority,
		Futures:  index.New[uint64, *Future](cmpUint64),
	}
	s.byHash.InsertAbsent(hash, func() *Topic { return t })
	s.Allocate(t, 0, true, hooks)
	return t, nil
}

// Allocate is the displacement procedure of spec.md §4.D: it places t
// into its subject-id slot, recursively displacing any lower-ranked
// occupant, then schedules t for immediate gossip and re-attempts any
// transport subscription t previously held.
func (s *Store) Allocate(t *Topic, newEvictions uint64, virgin bool, hooks Hooks) {
	wasSubscribed := t.Subscribed
	if t.Subscribed && hooks.Unsubscribe != nil {
		hooks.Unsubscribe(t)
	}
	t.Subscribed = false

	if !virgin {
		s.bySubjectID.Remove(t.SubjectID)
	}
	t.Evictions = newEvictions

	for {
		sid := s.localSubjectIDFor(t)
		existing, inserted := s.bySubjectID.InsertAbsent(sid, func() *Topic { return t })
		if inserted {
			t.SubjectID = sid
			break
		}
		if existing == t {
			break
		}
		if LeftWins(Rank{t.Hash, t.Age}, Rank{existing.Hash, existing.Age}) {
			s.Allocate(existing, existing.Evictions+1, false, hooks)
			continue
		}
		t.Evictions++
	}

	s.ScheduleASAP(t)

	if wasSubscribed && hooks.Subscribe != nil {
		if err := hooks.Subscribe(t); err != nil {
			t.Subscribed = false
			if hooks.OnResubscriptionError != nil {
				hooks.OnResubscriptionError(t, err)
			}
		} else {
			t.Subscribed = true
		}
	}
}

// ScheduleASAP sets last_gossip to 0 (or 1 for pinned topics, a
// rank-lowering tiebreak so "we also hold this slot" announcements
// never preempt a genuine conflict report) and reinserts t into the
// gossip-time index.
func (s *Store) ScheduleASAP(t *Topic) {
	s.byGossipTime.Remove(index.SeqKey[int64]{Primary: t.LastGossip, Seq: t.gossipSeq})
	if t.Pinned() {
		t.LastGossip = 1
	} else {
		t.LastGossip = 0
	}
	t.gossipSeq = s.gossipSeq.Next()
	s.byGossipTime.InsertAbsent(index.SeqKey[int64]{Primary: t.LastGossip, Seq: t.gossipSeq}, func() *Topic { return t })
}

func (s *Store) seqKeyFor(t *Topic) index.SeqKey[int64] {
	return index.SeqKey[int64]{Primary: t.LastGossip, Seq: t.gossipSeq}
}

// MarkGossiped records that t was just gossiped at now, preserving
// FIFO order among topics that share a timestamp.
func (s *Store) MarkGossiped(t *Topic, now int64) {
	s.byGossipTime.Remove(index.SeqKey[int64]{Primary: t.LastGossip, Seq: t.gossipSeq})
	t.LastGossip = now
	t.gossipSeq = s.gossipSeq.Next()
	s.byGossipTime.InsertAbsent(index.SeqKey[int64]{Primary: now, Seq: t.gossipSeq}, func() *Topic { return t })
}

// Destroy removes t from all three indices, tears down its transport
// subscription, and cancels every future bound to it — resolving the
// topic_destroy hook the reference left unimplemented. onFutureCancel
// is invoked once per bound future so the caller can also drop it from
// the global future-deadline index, which this package does not own.
func (s *Store) Destroy(t *Topic, hooks Hooks, onFutureCancel func(*Future)) {
	s.byHash.Remove(t.Hash)
	s.bySubjectID.Remove(t.SubjectID)
	s.byGossipTime.Remove(index.SeqKey[int64]{Primary: t.LastGossip, Seq: t.gossipSeq})

	if t.Subscribed && hooks.Unsubscribe != nil {
		hooks.Unsubscribe(t)
	}
	t.Subscribed = false

	if onFutureCancel != nil {
		for _, f := range t.Futures.Values() {
			onFutureCancel(f)
		}
	}
	t.Futures = nil
}

// Subscribe activates the transport-level subscription for t, if not
// already active.
func (s *Store) Subscribe(t *Topic, hooks Hooks) error {
	if t.Subscribed || hooks.Subscribe == nil {
		return nil
	}
	if err := hooks.Subscribe(t); err != nil {
		return err
	}
	t.Subscribed = true
	return nil
}

// Unsubscribe deactivates t's transport-level subscription, if active.
func (s *Store) Unsubscribe(t *Topic, hooks Hooks) {
	if !t.Subscribed {
		return
	}
	if hooks.Unsubscribe != nil {
		hooks.Unsubscribe(t)
	}
	t.Subscribed = false
}
