package bridge

import (
	"go.uber.org/zap"

	"soundbridge/internal/graph"
)

// Fixed stream formats. The peer speaks exactly this layout; there is no
// negotiation on the wire.
const (
	SampleRate = 48000

	PlaybackChannels   = 2
	PlaybackFrameBytes = PlaybackChannels * 2 // S16LE stereo

	CaptureChannels   = 1
	CaptureFrameBytes = CaptureChannels * 2 // S16LE mono
)

// Bridge carries rendered playback audio from the host graph to the peer and
// peer-captured audio from the ring into the graph's capture stream. Both
// Process methods are invoked once per real-time cycle by the graph binding.
type Bridge struct {
	ch     *Channel
	ring   *Ring
	logger *zap.Logger
}

// New creates a bridge over an established channel and ring.
func New(ch *Channel, ring *Ring, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &Bridge{ch: ch, ring: ring, logger: logger}
}

// Ring returns the capture ring fed by the socket receive loop.
func (b *Bridge) Ring() *Ring {
	return b.ring
}

// ProcessPlayback ships one cycle of rendered audio to the peer. A cycle too
// large for a single frame is dropped whole; send failures are logged and
// the audio for that cycle is lost. The graph buffer is always returned.
func (b *Bridge) ProcessPlayback(s graph.Stream) {
	buf, err := s.Dequeue()
	if err != nil {
		b.logger.Debug("out of playback buffers", zap.Error(err))
		return
	}
	defer s.Queue(buf)

	offs := min(buf.Offset, buf.MaxSize)
	size := min(buf.Size, buf.MaxSize-offs)
	pcm := buf.Data[offs : offs+size]

	if size > MaxPayload {
		b.logger.Error("playback cycle exceeds max frame payload, dropping",
			zap.Int("size", size), zap.Int("max", MaxPayload))
		return
	}

	if err := b.ch.SendFrame(TagOutput, pcm); err != nil {
		b.logger.Error("failed to send audio data", zap.Error(err))
		return
	}
	b.logger.Debug("sent audio data", zap.Int("bytes", size+1))
}

// ProcessCapture fills one cycle of the graph's capture stream from the
// ring. The ring read blocks until the peer has produced data; a silent peer
// stalls this cycle, which is the accepted cost of never emitting
// fabricated samples.
func (b *Bridge) ProcessCapture(s graph.Stream) {
	buf, err := s.Dequeue()
	if err != nil {
		b.logger.Debug("out of capture buffers", zap.Error(err))
		return
	}
	defer s.Queue(buf)

	buf.Offset = 0
	buf.Stride = CaptureFrameBytes
	buf.Size = 0

	want := min(buf.Requested*CaptureFrameBytes, buf.MaxSize)
	if want <= 0 {
		return
	}

	got := b.ring.Read(want)
	copy(buf.Data, got)
	buf.Size = len(got)
	buf.Frames = len(got) / CaptureFrameBytes
}
