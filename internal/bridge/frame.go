package bridge

import (
	"errors"
	"fmt"
	"net"
)

// Wire tags. Every message on the socket is one tag byte followed by raw
// S16LE interleaved PCM.
const (
	TagOutput byte = 0x01 // locally rendered audio, bridge -> peer
	TagInput  byte = 0x02 // peer-captured audio, peer -> bridge
)

const (
	// MaxPayload is the largest PCM payload carried in a single frame.
	MaxPayload = 10239

	// recvScratchSize fits a maximum frame (tag + payload) with one spare
	// byte, matching the transmit-side limit.
	recvScratchSize = 10241
)

var (
	// ErrFrameTooLarge is returned when a payload exceeds MaxPayload.
	ErrFrameTooLarge = errors.New("frame payload too large")

	// ErrBadTag is returned when a received frame does not start with a
	// recognized tag byte. The rest of that read is discarded.
	ErrBadTag = errors.New("unrecognized frame tag")
)

// Channel is a connected stream socket carrying tagged PCM frames. Sends and
// receives may run on different goroutines; the kernel serializes them, so no
// locking is applied here. There is no length prefix — message boundaries are
// the underlying transport's read boundaries, one read per frame.
type Channel struct {
	conn    net.Conn
	scratch [recvScratchSize]byte
	send    [MaxPayload + 1]byte
}

// Dial connects to the peer's stream socket. A missing or refusing endpoint
// is fatal to bridge startup; there is no retry.
func Dial(path string) (*Channel, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("connect audio socket %q: %w", path, err)
	}
	return &Channel{conn: conn}, nil
}

// NewChannel wraps an already-connected conn. Used by the peer harness and
// by tests over net.Pipe.
func NewChannel(conn net.Conn) *Channel {
	return &Channel{conn: conn}
}

// SendFrame writes one tagged frame as a single message. Failures are
// reported to the caller, which logs and drops the frame; nothing is retried.
func (c *Channel) SendFrame(tag byte, payload []byte) error {
	if len(payload) > MaxPayload {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(payload), MaxPayload)
	}
	c.send[0] = tag
	n := copy(c.send[1:], payload)
	if _, err := c.conn.Write(c.send[:n+1]); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	return nil
}

// ReceiveFrame performs one blocking read and interprets it as exactly one
// frame. The returned payload aliases the channel's scratch buffer and is
// only valid until the next call.
func (c *Channel) ReceiveFrame() (byte, []byte, error) {
	n, err := c.conn.Read(c.scratch[:])
	if err != nil {
		return 0, nil, fmt.Errorf("receive frame: %w", err)
	}
	if n <= 0 {
		return 0, nil, errors.New("receive frame: empty read")
	}
	tag := c.scratch[0]
	if tag != TagOutput && tag != TagInput {
		return 0, nil, fmt.Errorf("%w: 0x%02x", ErrBadTag, tag)
	}
	return tag, c.scratch[1:n], nil
}

// Close closes the underlying socket. A feed loop blocked in ReceiveFrame
// observes net.ErrClosed and exits.
func (c *Channel) Close() error {
	return c.conn.Close()
}
