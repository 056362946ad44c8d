// Package future implements the request/response future registry:
// publish-with-future, response delivery, deadline sweep, and explicit
// cancellation (spec.md §4.H). The Future type itself lives in the
// topic package (see its doc comment for why); this package owns the
// global deadline index and the operations that keep it and each
// topic's per-topic transfer-id index in lockstep.
package future

import (
	"github.com/cynet/meshcore/errs"
	"github.com/cynet/meshcore/index"
	"github.com/cynet/meshcore/topic"
)

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

// Registry tracks every pending future across all topics, indexed by
// deadline for the sweep in spec.md §4.H.
type Registry struct {
	byDeadline *index.Tree[index.SeqKey[int64], *topic.Future]
	seq        index.Sequencer
	keys       map[*topic.Future]index.SeqKey[int64]
}

// NewRegistry returns an empty future registry.
func NewRegistry() *Registry {
	return &Registry{
		byDeadline: index.New[index.SeqKey[int64], *topic.Future](index.SeqCmp(cmpInt64)),
		keys:       make(map[*topic.Future]index.SeqKey[int64]),
	}
}

// Len returns the number of currently pending futures.
func (r *Registry) Len() int { return r.byDeadline.Len() }

// Publisher is the transport capability PublishWithFuture needs: a
// single outbound publish call that may fail.
type Publisher func(t *topic.Topic, deadline int64, payload []byte) error

// PublishWithFuture inserts f into t's transfer-id index, publishes
// payload via publish, and — only on success — inserts f into the
// global deadline index. If the transfer-id is already in flight, no
// publish is attempted. If publish fails, the transfer-id reservation
// is rolled back.
func PublishWithFuture(t *topic.Topic, f *topic.Future, deadline int64, payload []byte, publish Publisher, r *Registry) error {
	f.Topic = t
	f.Deadline = deadline
	f.State = topic.FuturePending

	_, inserted := t.Futures.InsertAbsent(f.TransferIDMasked, func() *topic.Future { return f })
	if !inserted {
		return errs.Capacity("future: transfer-id %#x already in flight for topic %q", f.TransferIDMasked, t.Name)
	}

	if err := publish(t, deadline, payload); err != nil {
		t.Futures.Remove(f.TransferIDMasked)
		return errs.Transport(err, "future: publish failed for topic %q", t.Name)
	}

	r.insertDeadline(f)
	return nil
}

func (r *Registry) insertDeadline(f *topic.Future) {
	key := index.SeqKey[int64]{Primary: f.Deadline, Seq: r.seq.Next()}
	r.byDeadline.InsertAbsent(key, func() *topic.Future { return f })
	r.keys[f] = key
}

func (r *Registry) removeDeadline(f *topic.Future) {
	if key, ok := r.keys[f]; ok {
		r.byDeadline.Remove(key)
		delete(r.keys, f)
	}
}

// DeliverResponse looks up the topic by hash and the future within it
// by masked transfer-id, marks it successful, and invokes its
// callback. It reports whether a matching future was found.
func DeliverResponse(topics *topic.Store, r *Registry, topicHash uint64, transferIDMasked uint64, payload []byte) bool {
	t, ok := topics.ByHash(topicHash)
	if !ok {
		return false
	}
	f, ok := t.Futures.Find(transferIDMasked)
	if !ok {
		return false
	}

	f.State = topic.FutureSuccess
	f.Response = payload
	t.Futures.Remove(transferIDMasked)
	r.removeDeadline(f)
	if f.Callback != nil {
		f.Callback(f)
	}
	return true
}

// SweepDeadlines fails and retires every future whose deadline has
// passed now, re-reading the minimum after each callback since a
// callback may mutate the tree (spec.md §5's reentrancy rule).
func SweepDeadlines(r *Registry, now int64) int {
	n := 0
	for {
		key, f, ok := r.byDeadline.Min()
		if !ok || key.Primary >= now {
			return n
		}
		f.State = topic.FutureFailure
		r.byDeadline.Remove(key)
		delete(r.keys, f)
		if f.Topic != nil {
			f.Topic.Futures.Remove(f.TransferIDMasked)
		}
		if f.Callback != nil {
			f.Callback(f)
		}
		n++
	}
}

// Cancel removes f from both indices without invoking its callback.
func Cancel(r *Registry, f *topic.Future) {
	r.removeDeadline(f)
	if f.Topic != nil {
		f.Topic.Futures.Remove(f.TransferIDMasked)
	}
}
