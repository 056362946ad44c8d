package transport

import "testing"

func TestBufferReleaseIdempotent(t *testing.T) {
	releases := 0
	b := NewBuffer([]byte("payload"), func([]byte) { releases++ })
	b.Release()
	b.Release()
	if releases != 1 {
		t.Fatalf("release invoked %d times, want 1 (double-release must be a no-op)", releases)
	}
	if b.Data != nil {
		t.Fatal("Data should be nil after Release")
	}
}

func TestBufferReleaseNilSafe(t *testing.T) {
	var b *Buffer
	b.Release() // must not panic
}
