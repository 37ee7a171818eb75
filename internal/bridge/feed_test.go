package bridge

import (
	"bytes"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestFeedWritesInputFramesToRing(t *testing.T) {
	t.Parallel()
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	ring := NewRing(1024)
	feed := NewFeed(NewChannel(b), ring, zap.NewNop())
	go feed.Run()

	payload := seq(100)
	frame := append([]byte{TagInput}, payload...)
	if _, err := a.Write(frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := drain(ring, 100)
	if !bytes.Equal(got, payload) {
		t.Fatalf("ring content mismatch:\n got %v\nwant %v", got, payload)
	}
}

func TestFeedDiscardsWrongDirectionFrames(t *testing.T) {
	t.Parallel()
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	ring := NewRing(1024)
	feed := NewFeed(NewChannel(b), ring, zap.NewNop())
	go feed.Run()

	// An OUTPUT-tagged frame arriving inbound is dropped; the INPUT frame
	// after it is the first thing to reach the ring.
	if _, err := a.Write(append([]byte{TagOutput}, seq(50)...)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := a.Write([]byte{TagInput, 0xaa, 0xbb}); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := drain(ring, 2)
	if !bytes.Equal(got, []byte{0xaa, 0xbb}) {
		t.Fatalf("ring content = %v, want [aa bb]", got)
	}
}

func TestFeedDiscardsUnknownTags(t *testing.T) {
	t.Parallel()
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	ring := NewRing(1024)
	feed := NewFeed(NewChannel(b), ring, zap.NewNop())
	go feed.Run()

	if _, err := a.Write([]byte{0x55, 1, 2, 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := a.Write([]byte{TagInput, 7}); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := drain(ring, 1)
	if got[0] != 7 {
		t.Fatalf("ring content = %v, want [7]", got)
	}
}

func TestFeedStopsWhenSocketCloses(t *testing.T) {
	t.Parallel()
	a, b := net.Pipe()

	feed := NewFeed(NewChannel(b), NewRing(1024), zap.NewNop())
	done := make(chan struct{})
	go func() {
		feed.Run()
		close(done)
	}()

	a.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("feed loop did not stop after socket close")
	}
}
