package bridge

import (
	"bytes"
	"errors"
	"net"
	"testing"
)

func pipeChannels(t *testing.T) (*Channel, *Channel) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return NewChannel(a), NewChannel(b)
}

func TestFrameRoundTrip(t *testing.T) {
	t.Parallel()
	local, peer := pipeChannels(t)

	for _, size := range []int{1, 57, 1920, MaxPayload} {
		payload := seq(size)

		errCh := make(chan error, 1)
		go func() {
			errCh <- local.SendFrame(TagOutput, payload)
		}()

		tag, got, err := peer.ReceiveFrame()
		if err != nil {
			t.Fatalf("size %d: receive: %v", size, err)
		}
		if err := <-errCh; err != nil {
			t.Fatalf("size %d: send: %v", size, err)
		}
		if tag != TagOutput {
			t.Errorf("size %d: tag = 0x%02x, want 0x%02x", size, tag, TagOutput)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("size %d: payload mismatch", size)
		}
	}
}

func TestSendFrameRejectsOversize(t *testing.T) {
	t.Parallel()
	local, _ := pipeChannels(t)

	err := local.SendFrame(TagOutput, make([]byte, MaxPayload+1))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("err = %v, want ErrFrameTooLarge", err)
	}
}

func TestReceiveFrameRejectsBadTag(t *testing.T) {
	t.Parallel()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	ch := NewChannel(b)

	go a.Write([]byte{0x7f, 1, 2, 3})

	_, _, err := ch.ReceiveFrame()
	if !errors.Is(err, ErrBadTag) {
		t.Fatalf("err = %v, want ErrBadTag", err)
	}

	// The bad frame must be fully discarded; the next frame comes through.
	go a.Write([]byte{TagInput, 9})
	tag, payload, err := ch.ReceiveFrame()
	if err != nil {
		t.Fatalf("receive after bad tag: %v", err)
	}
	if tag != TagInput || len(payload) != 1 || payload[0] != 9 {
		t.Fatalf("got tag 0x%02x payload %v", tag, payload)
	}
}

func TestReceiveFrameClosedConn(t *testing.T) {
	t.Parallel()
	a, b := net.Pipe()
	ch := NewChannel(b)
	a.Close()
	b.Close()

	if _, _, err := ch.ReceiveFrame(); err == nil {
		t.Fatal("expected error from closed conn")
	}
}
