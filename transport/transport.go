// Package transport defines the capability set a node embeds in place
// of a concrete datagram/CAN/serial driver: the thirteen platform hooks
// spec.md §6 requires, bundled as a single dispatch table value rather
// than an interface hierarchy, per the design notes' explicit
// preference for that shape.
package transport

import (
	"github.com/cynet/meshcore/bloom"
	"github.com/cynet/meshcore/topic"
)

// Buffer is an owned payload buffer. Release zeroes the pointer after
// freeing so a double-release is a safe no-op, matching spec.md §5's
// ownership discipline.
type Buffer struct {
	Data    []byte
	release func([]byte)
}

// NewBuffer wraps data with the release function the embedder supplied
// via Hooks.BufferRelease.
func NewBuffer(data []byte, release func([]byte)) *Buffer {
	return &Buffer{Data: data, release: release}
}

// Release returns the buffer's memory to the embedder. Safe to call
// more than once.
func (b *Buffer) Release() {
	if b == nil || b.release == nil || b.Data == nil {
		return
	}
	b.release(b.Data)
	b.Data = nil
}

// Hooks is the capability set the embedder provides (spec.md §6).
type Hooks struct {
	// Now returns monotonic microseconds, non-negative at start.
	Now func() int64
	// PRNG returns a 64-bit value. The node-ID allocator mixes the
	// samples it uses for its scan position and spread multiplier with
	// the local UID; the start-up delay, the neighbor back-off and the
	// saturated-filter fallback use the sample unmixed.
	PRNG func() uint64
	// BufferRelease releases owned payload memory.
	BufferRelease func(buf []byte)

	// NodeIDSet binds the local node-ID at the transport level.
	NodeIDSet func(id uint64) error
	// NodeIDClear unbinds the local node-ID.
	NodeIDClear func()
	// NodeIDBloom returns the Bloom filter of observed node-IDs, whose
	// lifetime outlives the core.
	NodeIDBloom func() *bloom.Filter

	// Request sends an RPC request transfer.
	Request func(serviceID uint16, metadata []byte, deadline int64, payload []byte) error

	// TopicNew allocates transport-side topic state.
	TopicNew func(t *topic.Topic) error
	// TopicDestroy frees transport-side topic state.
	TopicDestroy func(t *topic.Topic)
	// TopicPublish publishes payload on t's current subject-id.
	TopicPublish func(t *topic.Topic, deadline int64, payload []byte) error
	// TopicSubscribe activates t's transport-level subscription.
	TopicSubscribe func(t *topic.Topic) error
	// TopicUnsubscribe deactivates t's transport-level subscription.
	TopicUnsubscribe func(t *topic.Topic)
	// TopicHandleResubscriptionError reports a failed resubscription
	// attempt after a reallocation; there are no internal retries.
	TopicHandleResubscriptionError func(t *topic.Topic, err error)
}

// Constants are the transport-specific limits spec.md §6 calls out.
type Constants struct {
	// NodeIDMax is the inclusive upper bound of the node-ID range (127
	// for CAN, 65534 elsewhere).
	NodeIDMax uint64
	// TransferIDMask is 2^n - 1 (31 for CAN, 2^64-1 elsewhere).
	TransferIDMask uint64
}

// ReservedResponseServiceID is the RPC service-id reserved for
// "topic response" delivery (spec.md §6).
const ReservedResponseServiceID = 510

// Config holds the build/test-time options spec.md §6 lists.
type Config struct {
	// HeartbeatTopicName overrides the pinned heartbeat topic name;
	// testing only.
	HeartbeatTopicName string
	// PreferredTopicOverride forces every non-pinned topic to prefer
	// one subject-id; stress-test only.
	PreferredTopicOverride *uint32
	// Trace is the diagnostic emission hook. It is carried in the
	// configuration only; no code in this module calls it.
	Trace func(format string, args ...any)
}

// DefaultHeartbeatTopicName is the pinned decimal name new nodes
// publish their heartbeat under unless Config.HeartbeatTopicName
// overrides it.
const DefaultHeartbeatTopicName = "/7509"
