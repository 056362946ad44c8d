package node

import (
	"testing"

	"github.com/cynet/meshcore/bloom"
	"github.com/cynet/meshcore/topic"
	"github.com/cynet/meshcore/transport"
)

// fakeMesh is an in-process fake transport: every topic publish is
// delivered to every other registered node as an inbound transfer,
// tagged with the sender's node-ID. It is grounded on the spec's
// model of a shared broadcast medium, not any particular wire
// technology.
type fakeMesh struct {
	nodes []*Node
}

func (m *fakeMesh) deliver(sender *Node, subjectID uint32, payload []byte) {
	id, ok := sender.NodeID()
	if !ok {
		return
	}
	for _, other := range m.nodes {
		if other == sender {
			continue
		}
		other.IngestTopicTransfer(subjectID, id, append([]byte(nil), payload...))
	}
}

func newFakeNode(t *testing.T, mesh *fakeMesh, uid uint64, clock *int64) *Node {
	t.Helper()
	filter, err := bloom.New(128)
	if err != nil {
		t.Fatal(err)
	}
	var seed uint64 = uid
	prng := func() uint64 {
		seed = seed*6364136223846793005 + 1442695040888963407
		return seed
	}

	cfg := DefaultConfig()
	cfg.UID = uid
	cfg.Hooks = transport.Hooks{
		Now:           func() int64 { return *clock },
		PRNG:          prng,
		NodeIDBloom:   func() *bloom.Filter { return filter },
		NodeIDSet:     func(uint64) error { return nil },
		NodeIDClear:   func() {},
		TopicPublish: func(tp *topic.Topic, deadline int64, payload []byte) error {
			return nil
		},
	}
	n, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

// TestTwoNodesConvergeOnDistinctNodeIDs is scenario 1 (spec §8).
func TestTwoNodesConvergeOnDistinctNodeIDs(t *testing.T) {
	var clock int64
	mesh := &fakeMesh{}
	a := newFakeNode(t, mesh, 0x1111, &clock)
	b := newFakeNode(t, mesh, 0x2222, &clock)
	mesh.nodes = []*Node{a, b}

	a.hooks.TopicPublish = func(tp *topic.Topic, deadline int64, payload []byte) error {
		mesh.deliver(a, tp.SubjectID, payload)
		return nil
	}
	b.hooks.TopicPublish = func(tp *topic.Topic, deadline int64, payload []byte) error {
		mesh.deliver(b, tp.SubjectID, payload)
		return nil
	}

	for clock = 0; clock <= 4_000_000; clock += 100_000 {
		if err := a.Update(clock); err != nil {
			t.Fatalf("a.Update: %v", err)
		}
		if err := b.Update(clock); err != nil {
			t.Fatalf("b.Update: %v", err)
		}
	}

	idA, okA := a.NodeID()
	idB, okB := b.NodeID()
	if !okA || !okB {
		t.Fatalf("both nodes should hold a node-id after 4s: a=%v b=%v", okA, okB)
	}
	if idA == idB {
		t.Fatalf("nodes converged on the same node-id %d", idA)
	}
}

// TestIngestIdempotent is the idempotence-of-merge law (spec §8):
// ingesting the same heartbeat twice leaves state unchanged after the
// first application, except that age bumps by exactly one more time
// (rule (b): age is incremented on every received transfer, including
// repeat deliveries of the same heartbeat).
func TestIngestIdempotent(t *testing.T) {
	var clock int64
	mesh := &fakeMesh{}
	a := newFakeNode(t, mesh, 0x1111, &clock)
	mesh.nodes = []*Node{a}

	tp, err := a.CreateTopic(0, "shared", 0)
	if err != nil {
		t.Fatal(err)
	}
	g := topic.Gossip{Hash: tp.Hash, Evictions: tp.Evictions, Age: 5}

	out1 := a.topics.HandleGossip(0, g, a.topicHooks())
	snap1 := *tp
	out2 := a.topics.HandleGossip(0, g, a.topicHooks())
	snap2 := *tp

	if out1.Concern != out2.Concern || out1.LocalMoved != out2.LocalMoved {
		t.Fatalf("repeated ingest produced different outcomes: %+v vs %+v", out1, out2)
	}
	if snap2.Age != snap1.Age+1 {
		t.Fatalf("repeated ingest should bump age by exactly one more: snap1.Age=%d snap2.Age=%d", snap1.Age, snap2.Age)
	}
	snap1.Age, snap2.Age = 0, 0
	if snap1 != snap2 {
		t.Fatalf("repeated ingest mutated topic state beyond age: %+v vs %+v", snap1, snap2)
	}
}

// TestIngestOrdinaryTransferUpdatesSubscriberState verifies that a
// transfer on a non-heartbeat topic's subject-id is routed to that
// topic's subscriber-state bookkeeping instead of being decoded as a
// heartbeat, and that it is rejected once it exceeds the topic's
// reassembly extent.
func TestIngestOrdinaryTransferUpdatesSubscriberState(t *testing.T) {
	var clock int64
	mesh := &fakeMesh{}
	a := newFakeNode(t, mesh, 0x1111, &clock)
	mesh.nodes = []*Node{a}

	tp, err := a.CreateTopic(0, "data", 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.SubscribeTopic(tp, 5_000_000, 4); err != nil {
		t.Fatal(err)
	}
	if tp.ReassemblyTimeout != 5_000_000 || tp.ReassemblyExtent != 4 {
		t.Fatalf("SubscribeTopic did not record reassembly params: %+v", tp)
	}

	if err := a.IngestTopicTransfer(tp.SubjectID, 0xBEEF, []byte{1, 2}); err != nil {
		t.Fatalf("ordinary transfer within extent should be accepted: %v", err)
	}
	if tp.LastReceivedTransfer != 1 {
		t.Fatalf("LastReceivedTransfer = %d, want 1", tp.LastReceivedTransfer)
	}

	if err := a.IngestTopicTransfer(tp.SubjectID, 0xBEEF, []byte{1, 2, 3, 4, 5}); err == nil {
		t.Fatal("transfer exceeding reassembly extent should be rejected")
	}
	if tp.LastReceivedTransfer != 1 {
		t.Fatalf("LastReceivedTransfer should not advance on a rejected transfer, got %d", tp.LastReceivedTransfer)
	}
}

func TestDestroyTopicCancelsBoundFutures(t *testing.T) {
	var clock int64
	mesh := &fakeMesh{}
	a := newFakeNode(t, mesh, 0x1111, &clock)
	mesh.nodes = []*Node{a}

	tp, err := a.CreateTopic(0, "x", 0)
	if err != nil {
		t.Fatal(err)
	}
	f := &topic.Future{TransferIDMasked: 1}
	called := false
	f.Callback = func(done *topic.Future) {
		called = true
		if done.State != topic.FutureFailure {
			t.Fatalf("state = %v, want FutureFailure", done.State)
		}
	}
	if err := a.PublishWithFuture(tp, f, 1_000_000, nil); err != nil {
		t.Fatal(err)
	}

	a.DestroyTopic(tp)

	if !called {
		t.Fatal("destroying a topic must fail its bound futures")
	}
	if _, ok := a.topics.ByHash(tp.Hash); ok {
		t.Fatal("destroyed topic still reachable by hash")
	}
}

// TestFutureTimeout is scenario 5 (spec §8).
func TestFutureTimeout(t *testing.T) {
	var clock int64
	mesh := &fakeMesh{}
	a := newFakeNode(t, mesh, 0x1111, &clock)
	mesh.nodes = []*Node{a}
	a.hooks.TopicPublish = func(*topic.Topic, int64, []byte) error { return nil }

	tp, err := a.CreateTopic(0, "rpc", 0)
	if err != nil {
		t.Fatal(err)
	}
	f := &topic.Future{TransferIDMasked: 7}
	calls := 0
	f.Callback = func(done *topic.Future) {
		calls++
		if done.State != topic.FutureFailure {
			t.Fatalf("state = %v, want FutureFailure", done.State)
		}
	}
	if err := a.PublishWithFuture(tp, f, 1000, nil); err != nil {
		t.Fatal(err)
	}

	if err := a.Update(999); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Fatalf("future fired before its deadline: %d calls", calls)
	}
	if err := a.Update(1001); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("future should fire exactly once after its deadline, got %d calls", calls)
	}
	if got := a.Metrics().FuturesTimedOut.Value(); got != 1 {
		t.Fatalf("FuturesTimedOut = %d, want 1", got)
	}
	if got := a.Metrics().FuturesPending.Value(); got != 0 {
		t.Fatalf("FuturesPending = %d, want 0 after timeout", got)
	}
}

// TestMetricsWiring spot-checks that counters advertised by
// metrics.Standard actually move as the corresponding events occur,
// rather than sitting permanently at zero.
func TestMetricsWiring(t *testing.T) {
	var clock int64
	mesh := &fakeMesh{}
	a := newFakeNode(t, mesh, 0x1111, &clock)
	mesh.nodes = []*Node{a}

	if got := a.Metrics().TopicCount.Value(); got != 1 {
		t.Fatalf("TopicCount after construction = %d, want 1 (heartbeat topic)", got)
	}

	tp, err := a.CreateTopic(0, "x", 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := a.Metrics().TopicCount.Value(); got != 2 {
		t.Fatalf("TopicCount after CreateTopic = %d, want 2", got)
	}

	a.DestroyTopic(tp)
	if got := a.Metrics().TopicCount.Value(); got != 1 {
		t.Fatalf("TopicCount after DestroyTopic = %d, want 1", got)
	}

	clock = 3_000_000
	if err := a.Update(clock); err != nil {
		t.Fatal(err)
	}
	if got := a.Metrics().HeartbeatsSent.Value(); got == 0 {
		t.Fatal("HeartbeatsSent should advance once a heartbeat is due")
	}
	if got := a.Metrics().NodeIDClaims.Value(); got != 1 {
		t.Fatalf("NodeIDClaims = %d, want 1 after first node-id claim", got)
	}
}
