// Package wire encodes and decodes the fixed-width heartbeat frame
// that carries one local topic's allocation state to the rest of the
// network (spec.md §4.E).
package wire

import (
	"encoding/binary"

	"github.com/cynet/meshcore/errs"
)

// Version is the only wire version this codec accepts.
const Version = 1

// HeaderSize is the fixed portion of the frame, before the variable
// (up to MaxNameLen) topic_name tail.
const HeaderSize = 40

// MaxNameLen is the maximum length of the topic_name tail.
const MaxNameLen = 96

// MaxFrameSize is HeaderSize + MaxNameLen, the nominal 136-byte frame.
const MaxFrameSize = HeaderSize + MaxNameLen

// Flag bits within the heartbeat's flags byte.
const (
	FlagPublishing = 1 << 0
	FlagSubscribed = 1 << 1
)

// Heartbeat is the decoded form of one heartbeat frame.
type Heartbeat struct {
	UptimeSeconds uint32
	UserWord      [3]byte
	UID           uint64
	TopicHash     uint64
	Flags         uint8
	Age           uint64 // 56 bits on the wire
	NameLen       uint8
	Evictions     uint64 // 40 bits on the wire
	TopicName     string
}

// Publishing reports whether the publishing flag bit is set.
func (h *Heartbeat) Publishing() bool { return h.Flags&FlagPublishing != 0 }

// Subscribed reports whether the subscribed flag bit is set.
func (h *Heartbeat) Subscribed() bool { return h.Flags&FlagSubscribed != 0 }

// Encode serializes h into its wire frame. It returns an error if
// TopicName exceeds MaxNameLen or Age/Evictions exceed their wire
// field widths (56 and 40 bits respectively).
func Encode(h *Heartbeat) ([]byte, error) {
	if len(h.TopicName) > MaxNameLen {
		return nil, errs.Argument("wire: topic name %d bytes exceeds %d", len(h.TopicName), MaxNameLen)
	}
	if h.Age >= 1<<56 {
		return nil, errs.Argument("wire: age %d exceeds 56 bits", h.Age)
	}
	if h.Evictions >= 1<<40 {
		return nil, errs.Argument("wire: evictions %d exceeds 40 bits", h.Evictions)
	}

	buf := make([]byte, HeaderSize+len(h.TopicName))
	binary.BigEndian.PutUint32(buf[0:4], h.UptimeSeconds)
	copy(buf[4:7], h.UserWord[:])
	buf[7] = Version
	binary.BigEndian.PutUint64(buf[8:16], h.UID)
	binary.BigEndian.PutUint64(buf[16:24], h.TopicHash)
	binary.BigEndian.PutUint64(buf[24:32], uint64(h.Flags)<<56|h.Age)
	binary.BigEndian.PutUint64(buf[32:40], uint64(len(h.TopicName))<<56|h.Evictions)
	copy(buf[40:], h.TopicName)
	return buf, nil
}

// Decode parses a wire frame, rejecting anything shorter than
// HeaderSize or carrying an unsupported version.
func Decode(buf []byte) (*Heartbeat, error) {
	if len(buf) < HeaderSize {
		return nil, errs.Argument("wire: frame of %d bytes shorter than header (%d)", len(buf), HeaderSize)
	}
	if buf[7] != Version {
		return nil, errs.Argument("wire: unsupported version %d", buf[7])
	}

	h := &Heartbeat{
		UptimeSeconds: binary.BigEndian.Uint32(buf[0:4]),
		UID:           binary.BigEndian.Uint64(buf[8:16]),
		TopicHash:     binary.BigEndian.Uint64(buf[16:24]),
	}
	copy(h.UserWord[:], buf[4:7])

	word24 := binary.BigEndian.Uint64(buf[24:32])
	h.Flags = uint8(word24 >> 56)
	h.Age = word24 & (1<<56 - 1)

	word32 := binary.BigEndian.Uint64(buf[32:40])
	nameLen := uint8(word32 >> 56)
	h.NameLen = nameLen
	h.Evictions = word32 & (1<<40 - 1)

	tail := buf[HeaderSize:]
	if int(nameLen) > len(tail) {
		return nil, errs.Argument("wire: declared name length %d exceeds available tail (%d)", nameLen, len(tail))
	}
	h.TopicName = string(tail[:nameLen])
	return h, nil
}
