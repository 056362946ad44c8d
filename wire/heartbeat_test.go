package wire

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := &Heartbeat{
		UptimeSeconds: 12345,
		UserWord:      [3]byte{1, 2, 3},
		UID:           0xdeadbeefcafef00d,
		TopicHash:     4242,
		Flags:         FlagPublishing | FlagSubscribed,
		Age:           987654321,
		Evictions:     17,
		TopicName:     "/sensors/imu/accel",
	}

	buf, err := Encode(h)
	if err != nil {
		t.Fatal(err)
	}
	if len(buf) != HeaderSize+len(h.TopicName) {
		t.Fatalf("encoded length = %d, want %d", len(buf), HeaderSize+len(h.TopicName))
	}

	got, err := Decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.UptimeSeconds != h.UptimeSeconds || got.UID != h.UID || got.TopicHash != h.TopicHash ||
		got.Age != h.Age || got.Evictions != h.Evictions || got.TopicName != h.TopicName {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
	if !got.Publishing() || !got.Subscribed() {
		t.Fatal("flags lost in round trip")
	}
}

func TestDecodeRejectsShortFrame(t *testing.T) {
	if _, err := Decode(make([]byte, HeaderSize-1)); err == nil {
		t.Fatal("expected rejection of undersized frame")
	}
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	buf := make([]byte, HeaderSize)
	buf[7] = 2
	if _, err := Decode(buf); err == nil {
		t.Fatal("expected rejection of unsupported version")
	}
}

func TestEncodeRejectsOversizedName(t *testing.T) {
	h := &Heartbeat{TopicName: string(make([]byte, MaxNameLen+1))}
	if _, err := Encode(h); err == nil {
		t.Fatal("expected rejection of over-long topic name")
	}
}

func TestEncodeRejectsOversizedFields(t *testing.T) {
	if _, err := Encode(&Heartbeat{Age: 1 << 56}); err == nil {
		t.Fatal("expected rejection of age overflowing 56 bits")
	}
	if _, err := Encode(&Heartbeat{Evictions: 1 << 40}); err == nil {
		t.Fatal("expected rejection of evictions overflowing 40 bits")
	}
}

func TestDecodeRejectsTruncatedName(t *testing.T) {
	h := &Heartbeat{TopicName: "short"}
	buf, err := Encode(h)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(buf[:len(buf)-2]); err == nil {
		t.Fatal("expected rejection of a frame truncated within the name tail")
	}
}
