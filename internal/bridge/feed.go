package bridge

import (
	"errors"
	"io"
	"net"

	"go.uber.org/zap"
)

// Feed is the blocking receive loop: the sole producer into the ring and the
// sole consumer of INPUT frames from the channel.
type Feed struct {
	ch     *Channel
	ring   *Ring
	logger *zap.Logger
}

// NewFeed creates a feed loop over an established channel.
func NewFeed(ch *Channel, ring *Ring, logger *zap.Logger) *Feed {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &Feed{ch: ch, ring: ring, logger: logger}
}

// Run receives frames until the channel is closed. Transport faults and
// malformed frames are logged and the loop retries immediately; peer audio
// is lossy by design, so nothing is buffered or retried at this layer.
func (f *Feed) Run() {
	for {
		tag, payload, err := f.ch.ReceiveFrame()
		if err != nil {
			// EOF or a closed socket cannot recover; anything else is
			// retried immediately.
			if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) ||
				errors.Is(err, io.ErrClosedPipe) {
				f.logger.Info("audio socket closed, stopping feed")
				return
			}
			f.logger.Error("failed to receive audio data", zap.Error(err))
			continue
		}
		if tag != TagInput {
			f.logger.Error("dropping frame with wrong direction tag",
				zap.Uint8("tag", tag))
			continue
		}
		if len(payload) == 0 {
			continue
		}
		f.ring.Write(payload)
	}
}
