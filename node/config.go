package node

import (
	"github.com/cynet/meshcore/errs"
	"github.com/cynet/meshcore/transport"
)

// Config configures a Node. See DefaultConfig for the values a bare
// construction gets if left unset.
type Config struct {
	// UID is the node's non-zero 64-bit vendor/product/instance
	// identifier.
	UID uint64
	// NodeID, if non-nil, is claimed immediately at construction
	// instead of being picked by the allocator.
	NodeID *uint64

	Namespace   string
	DisplayName string

	// MaxHeartbeatPeriod bounds the gossip interval, in microseconds.
	MaxHeartbeatPeriod int64
	// MaxFullGossipCyclePeriod bounds how long every local topic may
	// wait between gossips, in microseconds.
	MaxFullGossipCyclePeriod int64

	Hooks     transport.Hooks
	Constants transport.Constants
	Transport transport.Config
}

// DefaultConfig returns a Config with the transport-agnostic defaults
// spec.md §6 suggests (the "elsewhere" column, not the CAN column):
// a 65534-node range, a full 64-bit transfer-id space, a 1-second
// heartbeat period capped at a 10-second full gossip cycle.
func DefaultConfig() Config {
	return Config{
		MaxHeartbeatPeriod:       1_000_000,
		MaxFullGossipCyclePeriod: 10_000_000,
		Constants: transport.Constants{
			NodeIDMax:      65534,
			TransferIDMask: ^uint64(0),
		},
	}
}

func (c Config) validate() error {
	if c.UID == 0 {
		return errs.Argument("node: UID must be non-zero")
	}
	if c.MaxHeartbeatPeriod <= 0 {
		return errs.Argument("node: MaxHeartbeatPeriod must be positive")
	}
	if c.MaxFullGossipCyclePeriod <= 0 {
		return errs.Argument("node: MaxFullGossipCyclePeriod must be positive")
	}
	h := c.Hooks
	if h.Now == nil || h.PRNG == nil || h.NodeIDBloom == nil || h.NodeIDSet == nil ||
		h.NodeIDClear == nil || h.TopicPublish == nil {
		return errs.Argument("node: Hooks is missing a required function")
	}
	return nil
}
