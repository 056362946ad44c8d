// Package node ties the topic allocator, node-ID allocator, and future
// registry together behind the three entry points spec.md §5 grants
// the embedder: Update (tick), IngestTopicTransfer (inbound data), and
// IngestTopicResponseTransfer (inbound response). There are no
// internal goroutines or locks; the embedder owns the thread of
// control.
package node

import (
	"encoding/binary"

	"github.com/cynet/meshcore/errs"
	"github.com/cynet/meshcore/future"
	"github.com/cynet/meshcore/log"
	"github.com/cynet/meshcore/metrics"
	"github.com/cynet/meshcore/nodeid"
	"github.com/cynet/meshcore/topic"
	"github.com/cynet/meshcore/transport"
	"github.com/cynet/meshcore/wire"
)

// Node is one participant in the coordination layer.
type Node struct {
	uid         uint64
	namespace   string
	displayName string
	startTS     int64

	maxHeartbeatPeriod       int64
	maxFullGossipCyclePeriod int64
	nextHeartbeat            int64

	lastEventTS      int64
	lastLocalEventTS int64

	hooks     transport.Hooks
	constants transport.Constants
	tcfg      transport.Config

	topics  *topic.Store
	futures *future.Registry
	nodeIDs *nodeid.Allocator

	heartbeatTopic *topic.Topic

	log     *log.Logger
	metrics *metrics.Standard

	UserData any
}

// New validates cfg and constructs a Node, creating its pinned
// heartbeat topic. If cfg.NodeID is set, it is claimed immediately;
// otherwise the first heartbeat is deferred by a uniform random delay
// in [1s, 3s] to listen before speaking.
func New(cfg Config) (*Node, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	filter := cfg.Hooks.NodeIDBloom()
	if filter == nil {
		return nil, errs.Argument("node: Hooks.NodeIDBloom returned nil")
	}

	now := cfg.Hooks.Now()
	n := &Node{
		uid:                      cfg.UID,
		namespace:                cfg.Namespace,
		displayName:              cfg.DisplayName,
		startTS:                  now,
		maxHeartbeatPeriod:       cfg.MaxHeartbeatPeriod,
		maxFullGossipCyclePeriod: cfg.MaxFullGossipCyclePeriod,
		hooks:                    cfg.Hooks,
		constants:                cfg.Constants,
		tcfg:                     cfg.Transport,
		topics:                   topic.NewStore(),
		futures:                  future.NewRegistry(),
		nodeIDs:                  nodeid.NewAllocator(filter, cfg.Constants.NodeIDMax),
		log:                      log.Module("node"),
		metrics:                  metrics.NewStandard(),
	}
	n.topics.SetPreferredOverride(cfg.Transport.PreferredTopicOverride)

	hbName := cfg.Transport.HeartbeatTopicName
	if hbName == "" {
		hbName = transport.DefaultHeartbeatTopicName
	}
	hb, err := n.topics.Create(now, n.namespace, n.displayName, hbName, 0, n.topicHooks())
	if err != nil {
		return nil, err
	}
	hb.Publishing = true
	n.heartbeatTopic = hb
	if hookErr := n.topics.Subscribe(hb, n.topicHooks()); hookErr != nil {
		n.log.Warn("heartbeat topic subscribe failed", "error", hookErr)
	}

	if cfg.NodeID != nil {
		if err := cfg.Hooks.NodeIDSet(*cfg.NodeID); err != nil {
			return nil, errs.Transport(err, "node: claim initial node-id %d", *cfg.NodeID)
		}
		n.nodeIDs.SetID(*cfg.NodeID)
		n.metrics.NodeIDClaims.Inc()
		n.nextHeartbeat = now
	} else {
		delay := int64(cfg.Hooks.PRNG()%2_000_001) + 1_000_000
		n.nextHeartbeat = now + delay
	}

	n.metrics.TopicCount.Set(int64(n.topics.Len()))
	return n, nil
}

// UID returns the node's vendor/product/instance identifier.
func (n *Node) UID() uint64 { return n.uid }

// NodeID returns the currently claimed node-ID, if any.
func (n *Node) NodeID() (uint64, bool) { return n.nodeIDs.ID(), n.nodeIDs.HaveID() }

// TopicCount returns the number of locally known topics.
func (n *Node) TopicCount() int { return n.topics.Len() }

// Topics returns the node's topic store, for direct lookups.
func (n *Node) Topics() *topic.Store { return n.topics }

// Futures returns the node's future registry.
func (n *Node) Futures() *future.Registry { return n.futures }

// Metrics returns the node's standard metric set for embedders wanting
// to export it (spec.md §1 Non-goals keep the exporter itself out of
// scope, but not the counters).
func (n *Node) Metrics() *metrics.Standard { return n.metrics }

func (n *Node) topicHooks() topic.Hooks {
	return topic.Hooks{
		Subscribe: func(t *topic.Topic) error {
			if n.hooks.TopicSubscribe == nil {
				return nil
			}
			return n.hooks.TopicSubscribe(t)
		},
		Unsubscribe: func(t *topic.Topic) {
			if n.hooks.TopicUnsubscribe != nil {
				n.hooks.TopicUnsubscribe(t)
			}
		},
		OnResubscriptionError: func(t *topic.Topic, err error) {
			if n.hooks.TopicHandleResubscriptionError != nil {
				n.hooks.TopicHandleResubscriptionError(t, err)
			}
		},
	}
}

// CreateTopic canonicalizes and allocates a new local topic.
func (n *Node) CreateTopic(now int64, raw string, priority uint8) (*topic.Topic, error) {
	t, err := n.topics.Create(now, n.namespace, n.displayName, raw, priority, n.topicHooks())
	if err != nil {
		return nil, err
	}
	if n.hooks.TopicNew != nil {
		if err := n.hooks.TopicNew(t); err != nil {
			n.topics.Destroy(t, n.topicHooks(), n.cancelBoundFuture)
			n.metrics.TopicCount.Set(int64(n.topics.Len()))
			return nil, errs.Transport(err, "node: transport topic_new failed for %q", t.Name)
		}
	}
	n.metrics.TopicCount.Set(int64(n.topics.Len()))
	return t, nil
}

// SubscribeTopic activates t's transport-level subscription and
// records the subscriber-state reassembly parameters (spec.md §3) a
// transport consults while defragmenting multi-packet transfers on
// it. reassemblyExtent <= 0 means no size cap.
func (n *Node) SubscribeTopic(t *topic.Topic, reassemblyTimeout int64, reassemblyExtent int) error {
	t.ReassemblyTimeout = reassemblyTimeout
	t.ReassemblyExtent = reassemblyExtent
	return n.topics.Subscribe(t, n.topicHooks())
}

// DestroyTopic implements the topic_destroy hook's required semantics
// (spec.md §9): remove t from every index, unsubscribe, cancel every
// future bound to it, and free transport state.
func (n *Node) DestroyTopic(t *topic.Topic) {
	n.topics.Destroy(t, n.topicHooks(), n.cancelBoundFuture)
	n.metrics.TopicCount.Set(int64(n.topics.Len()))
	if n.hooks.TopicDestroy != nil {
		n.hooks.TopicDestroy(t)
	}
}

func (n *Node) cancelBoundFuture(f *topic.Future) {
	f.State = topic.FutureFailure
	future.Cancel(n.futures, f)
	n.metrics.FuturesPending.Set(int64(n.futures.Len()))
	if f.Callback != nil {
		f.Callback(f)
	}
}

// Publish sends payload on t without expecting a response.
func (n *Node) Publish(t *topic.Topic, now int64, payload []byte) error {
	t.GrowAge(now)
	if err := n.hooks.TopicPublish(t, now, payload); err != nil {
		return errs.Transport(err, "node: publish failed for topic %q", t.Name)
	}
	return nil
}

// PublishWithFuture sends payload on t and registers f to receive its
// response.
func (n *Node) PublishWithFuture(t *topic.Topic, f *topic.Future, deadline int64, payload []byte) error {
	t.GrowAge(deadline)
	if err := future.PublishWithFuture(t, f, deadline, payload, n.hooks.TopicPublish, n.futures); err != nil {
		return err
	}
	n.metrics.FuturesPublished.Inc()
	n.metrics.FuturesPending.Set(int64(n.futures.Len()))
	return nil
}

func (n *Node) markNeighbor(sender uint64) {
	n.nodeIDs.MarkNeighbor(sender, n.hooks.PRNG, func(delay int64) {
		n.nextHeartbeat += delay
	})
}

// IngestTopicTransfer processes an inbound transfer received on
// subjectID: every inbound transfer marks its sender as an observed
// neighbor; transfers carrying our own node-ID as sender flag a
// pending collision; a transfer on the heartbeat topic's subject-id is
// decoded and merged via the CRDT reception rules, while a transfer on
// any other known subject-id is ordinary subscriber traffic, delivered
// to that topic's subscriber-state bookkeeping (spec.md §3).
func (n *Node) IngestTopicTransfer(subjectID uint32, senderNodeID uint64, payload []byte) error {
	n.markNeighbor(senderNodeID)

	if id, have := n.NodeID(); have && senderNodeID == id {
		n.nodeIDs.ReportCollision()
		n.metrics.NodeIDCollisions.Inc()
		return nil
	}

	t, ok := n.topics.BySubjectID(subjectID)
	if !ok {
		return nil
	}
	if n.heartbeatTopic != nil && t.Hash == n.heartbeatTopic.Hash {
		return n.ingestHeartbeatTransfer(payload)
	}
	return n.ingestOrdinaryTransfer(t, payload)
}

func (n *Node) ingestHeartbeatTransfer(payload []byte) error {
	hb, err := wire.Decode(payload)
	if err != nil {
		n.metrics.HeartbeatsRejected.Inc()
		return err
	}
	n.metrics.HeartbeatsReceived.Inc()

	now := n.hooks.Now()
	out := n.topics.HandleGossip(now, topic.Gossip{Hash: hb.TopicHash, Evictions: hb.Evictions, Age: hb.Age}, n.topicHooks())
	if out.Concern {
		n.lastEventTS = now
		switch out.Cause {
		case topic.CauseCollision:
			n.metrics.TopicCollisions.Inc()
		case topic.CauseDivergence:
			n.metrics.TopicDivergences.Inc()
		}
		if out.LocalMoved {
			n.lastLocalEventTS = now
			n.metrics.TopicReallocations.Inc()
		}
	}
	return nil
}

// ingestOrdinaryTransfer delivers payload to t's subscriber state:
// it records the reception by bumping LastReceivedTransfer and rejects
// a transfer that would overflow the subscription's reassembly
// extent. Reassembling a multi-packet message from its fragments is
// the transport's job (spec.md §1 scopes payload formats beyond the
// heartbeat itself to the transport); ReassemblyTimeout is carried on
// Topic purely as configuration the transport's own reassembly logic
// reads back via the *topic.Topic it already holds from the
// TopicSubscribe hook, never interpreted by the core itself.
func (n *Node) ingestOrdinaryTransfer(t *topic.Topic, payload []byte) error {
	if t.ReassemblyExtent > 0 && len(payload) > t.ReassemblyExtent {
		return errs.Capacity("node: transfer for topic %q exceeds reassembly extent %d", t.Name, t.ReassemblyExtent)
	}
	t.LastReceivedTransfer++
	return nil
}

// IngestTopicResponseTransfer processes an inbound response transfer
// on the reserved RPC service-id: the first 8 bytes of payload are the
// responding topic's hash, the remainder is the response body.
func (n *Node) IngestTopicResponseTransfer(transferIDMasked uint64, payload []byte) bool {
	if len(payload) < 8 {
		return false
	}
	hash := binary.BigEndian.Uint64(payload[:8])
	delivered := future.DeliverResponse(n.topics, n.futures, hash, transferIDMasked, payload[8:])
	if delivered {
		n.metrics.FuturesSucceeded.Inc()
		n.metrics.FuturesPending.Set(int64(n.futures.Len()))
	}
	return delivered
}

func (n *Node) publishHeartbeat(now int64) error {
	t, ok := n.topics.NextGossip()
	if !ok {
		return nil
	}
	t.GrowAge(now)

	var flags uint8
	if t.Publishing {
		flags |= wire.FlagPublishing
	}
	if t.Subscribed {
		flags |= wire.FlagSubscribed
	}

	hb := &wire.Heartbeat{
		UptimeSeconds: uint32((now - n.startTS) / 1_000_000),
		UID:           n.uid,
		TopicHash:     t.Hash,
		Flags:         flags,
		Age:           t.Age,
		Evictions:     t.Evictions,
		TopicName:     t.Name,
	}
	buf, err := wire.Encode(hb)
	if err != nil {
		return err
	}
	if err := n.hooks.TopicPublish(n.heartbeatTopic, now, buf); err != nil {
		return errs.Transport(err, "node: heartbeat publish failed")
	}
	n.topics.MarkGossiped(t, now)
	n.metrics.HeartbeatsSent.Inc()
	return nil
}

// Update is the driver loop (spec.md §4.I): it sweeps timed-out
// futures, resolves any pending node-ID collision, and — once due —
// allocates a node-ID if needed and publishes the oldest-gossip
// topic's heartbeat, then advances the next heartbeat deadline by
// min(max_period, max_full_cycle_period/topic_count) with no
// phase-slip accumulation.
func (n *Node) Update(now int64) error {
	timedOut := future.SweepDeadlines(n.futures, now)
	if timedOut > 0 {
		n.metrics.FuturesTimedOut.Add(int64(timedOut))
		n.metrics.FuturesPending.Set(int64(n.futures.Len()))
	}

	if n.nodeIDs.CollisionPending() {
		n.nodeIDs.ResolveCollision()
		n.hooks.NodeIDClear()
		n.nextHeartbeat = now
	}

	if now < n.nextHeartbeat {
		return nil
	}

	if !n.nodeIDs.HaveID() {
		id := n.nodeIDs.Pick(n.hooks.PRNG, n.uid)
		if err := n.hooks.NodeIDSet(id); err != nil {
			return errs.Transport(err, "node: claim node-id %d", id)
		}
		n.nodeIDs.SetID(id)
		n.metrics.NodeIDClaims.Inc()
	}

	if err := n.publishHeartbeat(now); err != nil {
		return err
	}

	topicCount := int64(n.topics.Len())
	if topicCount < 1 {
		topicCount = 1
	}
	period := n.maxFullGossipCyclePeriod / topicCount
	if period > n.maxHeartbeatPeriod || period <= 0 {
		period = n.maxHeartbeatPeriod
	}
	n.nextHeartbeat += period
	return nil
}
