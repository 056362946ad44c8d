package metrics

// Standard is the fixed set of metrics a node.Node updates as it runs.
// Embedders wanting a Prometheus-style export can walk this struct's
// fields; meshcore itself does not ship an exporter (the observability
// surface is explicitly out of scope — spec §1 Non-goals — beyond the
// raw counters themselves).
type Standard struct {
	// HeartbeatsSent counts published heartbeats.
	HeartbeatsSent *Counter
	// HeartbeatsReceived counts accepted inbound heartbeats (version ok, size ok).
	HeartbeatsReceived *Counter
	// HeartbeatsRejected counts inbound heartbeats rejected (bad size/version).
	HeartbeatsRejected *Counter

	// TopicCollisions counts subject-id collisions resolved by arbitration.
	TopicCollisions *Counter
	// TopicDivergences counts same-hash eviction-count divergences resolved.
	TopicDivergences *Counter
	// TopicReallocations counts local topics that moved subject-id slots.
	TopicReallocations *Counter
	// TopicCount tracks the live local topic count.
	TopicCount *Gauge

	// NodeIDClaims counts successful node-ID claims.
	NodeIDClaims *Counter
	// NodeIDCollisions counts observed node-ID collisions reacted to.
	NodeIDCollisions *Counter

	// FuturesPublished counts futures registered via PublishWithFuture.
	FuturesPublished *Counter
	// FuturesSucceeded counts futures resolved by a matching response.
	FuturesSucceeded *Counter
	// FuturesTimedOut counts futures retired by the deadline sweep.
	FuturesTimedOut *Counter
	// FuturesPending tracks the current number of outstanding futures.
	FuturesPending *Gauge
}

// NewStandard returns a freshly zeroed Standard metric set.
func NewStandard() *Standard {
	return &Standard{
		HeartbeatsSent:     NewCounter("meshcore.heartbeats.sent"),
		HeartbeatsReceived: NewCounter("meshcore.heartbeats.received"),
		HeartbeatsRejected: NewCounter("meshcore.heartbeats.rejected"),

		TopicCollisions:    NewCounter("meshcore.topic.collisions"),
		TopicDivergences:   NewCounter("meshcore.topic.divergences"),
		TopicReallocations: NewCounter("meshcore.topic.reallocations"),
		TopicCount:         NewGauge("meshcore.topic.count"),

		NodeIDClaims:     NewCounter("meshcore.nodeid.claims"),
		NodeIDCollisions: NewCounter("meshcore.nodeid.collisions"),

		FuturesPublished: NewCounter("meshcore.future.published"),
		FuturesSucceeded: NewCounter("meshcore.future.succeeded"),
		FuturesTimedOut:  NewCounter("meshcore.future.timed_out"),
		FuturesPending:   NewGauge("meshcore.future.pending"),
	}
}
