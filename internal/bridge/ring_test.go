package bridge

import (
	"bytes"
	"testing"
	"time"
)

// drain reads until n bytes were collected. The ring only returns the
// contiguous run per call, so wrapped regions take multiple reads.
func drain(r *Ring, n int) []byte {
	out := make([]byte, 0, n)
	for len(out) < n {
		out = append(out, r.Read(n-len(out))...)
	}
	return out
}

func seq(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestRingRoundTrip(t *testing.T) {
	t.Parallel()
	r := NewRing(64)

	want := seq(40)
	r.Write(want[:13])
	r.Write(want[13:29])
	r.Write(want[29:])

	got := drain(r, 40)
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch:\n got %v\nwant %v", got, want)
	}
}

func TestRingOverwritesOldest(t *testing.T) {
	t.Parallel()
	r := NewRing(8)

	// 20 bytes through an 8-byte ring. The overwrite policy advances start
	// on every collision, so the ring retains the most recent 7 bytes
	// (start == end must still mean empty).
	r.Write(seq(20))

	got := drain(r, 7)
	want := seq(20)[13:]
	if !bytes.Equal(got, want) {
		t.Fatalf("after overflow:\n got %v\nwant %v", got, want)
	}
}

func TestRingReadStopsAtWrap(t *testing.T) {
	t.Parallel()
	r := NewRing(8)

	// Advance start to 5, then write 6 bytes so the region wraps: 3 bytes
	// at the top, 3 at the bottom.
	r.Write(seq(5))
	drain(r, 5)
	want := []byte{10, 11, 12, 13, 14, 15}
	r.Write(want)

	first := r.Read(100)
	if len(first) != 3 {
		t.Fatalf("first read crossed the wrap: got %d bytes, want 3", len(first))
	}
	second := r.Read(100)
	if len(second) != 3 {
		t.Fatalf("second read: got %d bytes, want 3", len(second))
	}
	if got := append(first, second...); !bytes.Equal(got, want) {
		t.Fatalf("wrapped read mismatch: got %v want %v", got, want)
	}
}

func TestRingReadCapsAtMax(t *testing.T) {
	t.Parallel()
	r := NewRing(64)
	r.Write(seq(30))

	got := r.Read(10)
	if len(got) != 10 {
		t.Fatalf("got %d bytes, want 10", len(got))
	}
	if rest := r.Read(100); len(rest) != 20 {
		t.Fatalf("remaining: got %d bytes, want 20", len(rest))
	}
}

func TestRingReadBlocksUntilWrite(t *testing.T) {
	t.Parallel()
	r := NewRing(64)

	done := make(chan []byte)
	go func() {
		done <- r.Read(16)
	}()

	select {
	case got := <-done:
		t.Fatalf("read returned %v from an empty ring", got)
	case <-time.After(20 * time.Millisecond):
	}

	r.Write([]byte{1, 2, 3})
	select {
	case got := <-done:
		if !bytes.Equal(got, []byte{1, 2, 3}) {
			t.Fatalf("woken read got %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("read did not wake after write")
	}
}

func TestRingNeverBlocksWithPartialData(t *testing.T) {
	t.Parallel()
	r := NewRing(64)
	r.Write([]byte{9})

	done := make(chan []byte, 1)
	go func() {
		done <- r.Read(1000)
	}()

	select {
	case got := <-done:
		if len(got) != 1 || got[0] != 9 {
			t.Fatalf("got %v, want [9]", got)
		}
	case <-time.After(time.Second):
		t.Fatal("read blocked even though data was available")
	}
}
