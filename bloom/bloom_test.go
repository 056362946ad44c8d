package bloom

import (
	"math/rand"
	"testing"
)

func TestNewRejectsBadSize(t *testing.T) {
	tests := []int{0, -1, 63, 100}
	for _, n := range tests {
		if _, err := New(n); err == nil {
			t.Errorf("New(%d) should fail (not a positive multiple of 64)", n)
		}
	}
}

func TestSetGetPopcount(t *testing.T) {
	f, err := New(128)
	if err != nil {
		t.Fatal(err)
	}
	if f.Get(5) {
		t.Fatal("bit should start clear")
	}
	f.Set(5)
	if !f.Get(5) {
		t.Fatal("bit should be set")
	}
	if f.Popcount() != 1 {
		t.Fatalf("Popcount() = %d, want 1", f.Popcount())
	}
	// Setting the same bit again must not double-count.
	f.Set(5)
	if f.Popcount() != 1 {
		t.Fatalf("Popcount() after re-Set = %d, want 1", f.Popcount())
	}
	// Setting a value that wraps (identity mod nBits) onto the same bit.
	f.Set(5 + 128)
	if f.Popcount() != 1 {
		t.Fatalf("Popcount() after wrapping Set = %d, want 1", f.Popcount())
	}
}

// TestPopcountInvariant is invariant 4 (spec §8): bloom.popcount ==
// popcount(bloom.storage).
func TestPopcountInvariant(t *testing.T) {
	f, err := New(256)
	if err != nil {
		t.Fatal(err)
	}
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		f.Set(r.Uint64())
		if f.Popcount() != f.exactPopcount() {
			t.Fatalf("popcount invariant broken: tracked=%d exact=%d", f.Popcount(), f.exactPopcount())
		}
	}
}

func TestPurge(t *testing.T) {
	f, err := New(64)
	if err != nil {
		t.Fatal(err)
	}
	for i := uint64(0); i < 10; i++ {
		f.Set(i)
	}
	if f.Popcount() != 10 {
		t.Fatalf("Popcount() = %d, want 10", f.Popcount())
	}
	f.Purge()
	if f.Popcount() != 0 {
		t.Fatalf("Popcount() after Purge = %d, want 0", f.Popcount())
	}
	for i := uint64(0); i < 10; i++ {
		if f.Get(i) {
			t.Fatalf("bit %d should be clear after Purge", i)
		}
	}
}

// TestBloomCongestion is scenario 6 (spec §8): repeatedly mark neighbors
// with random IDs until popcount exceeds 31/32 of capacity; the next mark
// triggers a purge leaving popcount == 1.
func TestBloomCongestion(t *testing.T) {
	f, err := New(128)
	if err != nil {
		t.Fatal(err)
	}
	r := rand.New(rand.NewSource(42))
	for !f.Saturated() {
		f.Set(r.Uint64())
	}
	if f.Saturated() {
		f.Purge()
	}
	f.Set(r.Uint64())
	if f.Popcount() != 1 {
		t.Fatalf("Popcount() after congestion purge+remark = %d, want 1", f.Popcount())
	}
}
