//go:build linux

// Package pulsegraph binds the bridge to a PulseAudio (or pipewire-pulse)
// server. The high-level pulse client supplies the two stream paths: the
// bridge sink's monitor is recorded to obtain rendered playback audio, and a
// playback stream into the virtual-mic sink emits peer-captured audio. A
// second, low-level proto connection carries the registry side: sink
// subscribe events, synchronization barriers, and fallback sink
// load/unload.
package pulsegraph

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
	"go.uber.org/zap"

	"soundbridge/internal/bridge"
	"soundbridge/internal/config"
	"soundbridge/internal/graph"
)

// renderFragmentBytes is 20 ms of stereo S16LE at 48 kHz, comfortably under
// the channel's max frame payload.
const renderFragmentBytes = bridge.SampleRate / 50 * bridge.PlaybackFrameBytes

// invalidModule marks a module slot that was never loaded. 0 is a valid
// server module index, so it cannot serve as the sentinel.
const invalidModule = ^uint32(0)

type event interface{}

type sinkAdded struct{ index uint32 }
type sinkRemoved struct{ index uint32 }
type fallbackBound struct{ index uint32 }
type syncDone struct{ seq int }
type graphFault struct{ err error }

// Graph is a connected host-graph binding.
type Graph struct {
	cfg    *config.Config
	logger *zap.Logger
	br     *bridge.Bridge

	client *pulse.Client
	record *pulse.RecordStream
	play   *pulse.PlaybackStream

	ctl     *proto.Client
	ctlConn net.Conn

	outModule uint32
	micModule uint32

	events chan event
	fatal  chan error
	rec    *graph.Reconciler

	captureBuf graph.Buffer
}

// Connect establishes both server connections, loads the bridge's own sink
// and virtual-mic sink, wires the stream callbacks to the bridge paths and
// starts the registry event loop.
func Connect(cfg *config.Config, br *bridge.Bridge, logger *zap.Logger) (*Graph, error) {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	g := &Graph{
		cfg:       cfg,
		logger:    logger,
		br:        br,
		outModule: invalidModule,
		micModule: invalidModule,
		events:    make(chan event, 128),
		fatal:     make(chan error, 1),
	}

	ctl, conn, err := proto.Connect(cfg.PulseServer)
	if err != nil {
		return nil, fmt.Errorf("pulse control connect: %w", err)
	}
	g.ctl = ctl
	g.ctlConn = conn

	props := proto.PropList{}
	if err := ctl.Request(&proto.SetClientName{Props: props}, &proto.SetClientNameReply{}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pulse set client name: %w", err)
	}

	ctl.Callback = func(msg interface{}) {
		ev, ok := msg.(*proto.SubscribeEvent)
		if !ok {
			return
		}
		if ev.Event&proto.EventFacilityMask != proto.EventSink {
			return
		}
		switch ev.Event & proto.EventTypeMask {
		case proto.EventNew, proto.EventChange:
			g.post(sinkAdded{index: ev.Index})
		case proto.EventRemove:
			g.post(sinkRemoved{index: ev.Index})
		}
	}
	if err := ctl.Request(&proto.Subscribe{Mask: proto.SubscriptionMaskSink}, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pulse subscribe: %w", err)
	}

	opts := []pulse.ClientOption{pulse.ClientApplicationName("soundbridge")}
	if cfg.PulseServer != "" {
		opts = append(opts, pulse.ClientServerString(cfg.PulseServer))
	}
	client, err := pulse.NewClient(opts...)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("pulse connect: %w", err)
	}
	g.client = client

	if err := g.loadOwnSinks(); err != nil {
		g.Close()
		return nil, err
	}
	if err := g.createStreams(); err != nil {
		g.Close()
		return nil, err
	}

	g.rec = graph.NewReconciler(&core{g: g}, logger)
	go g.run()

	return g, nil
}

// Fatal delivers graph-connection faults that should tear the bridge down.
func (g *Graph) Fatal() <-chan error {
	return g.fatal
}

func (g *Graph) post(ev event) {
	select {
	case g.events <- ev:
	default:
		g.logger.Warn("dropping graph event, event loop backlogged")
	}
}

func (g *Graph) loadOwnSinks() error {
	var err error
	g.outModule, err = g.loadNullSink(g.cfg.SinkName, bridge.SampleRate, bridge.PlaybackChannels)
	if err != nil {
		return fmt.Errorf("load bridge sink: %w", err)
	}
	g.micModule, err = g.loadNullSink(g.cfg.SourceName, bridge.SampleRate, bridge.CaptureChannels)
	if err != nil {
		return fmt.Errorf("load mic sink: %w", err)
	}
	return nil
}

func (g *Graph) loadNullSink(name string, rate, channels int) (uint32, error) {
	args := fmt.Sprintf("sink_name=%s rate=%d channels=%d", name, rate, channels)
	reply := proto.LoadModuleReply{}
	if err := g.ctl.Request(&proto.LoadModule{Name: "module-null-sink", Args: args}, &reply); err != nil {
		return invalidModule, err
	}
	return reply.ModuleIndex, nil
}

func (g *Graph) createStreams() error {
	outSink, err := g.sinkByName(g.cfg.SinkName)
	if err != nil {
		return err
	}
	micSink, err := g.sinkByName(g.cfg.SourceName)
	if err != nil {
		return err
	}

	record, err := g.client.NewRecord(
		&renderWriter{br: g.br},
		pulse.RecordMonitor(outSink),
		pulse.RecordStereo,
		pulse.RecordSampleRate(bridge.SampleRate),
		pulse.RecordBufferFragmentSize(renderFragmentBytes),
	)
	if err != nil {
		return fmt.Errorf("create playback bridge stream: %w", err)
	}
	g.record = record
	record.Start()

	play, err := g.client.NewPlayback(
		pulse.Int16Reader(g.captureRead),
		pulse.PlaybackSink(micSink),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(bridge.SampleRate),
	)
	if err != nil {
		return fmt.Errorf("create capture bridge stream: %w", err)
	}
	g.play = play
	play.Start()

	return nil
}

func (g *Graph) sinkByName(name string) (*pulse.Sink, error) {
	sinks, err := g.client.ListSinks()
	if err != nil {
		return nil, fmt.Errorf("list sinks: %w", err)
	}
	for _, s := range sinks {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("sink %q not found after load", name)
}

// captureRead is the capture bridge path's per-cycle callback: the graph
// pulls audio for the virtual mic and the bridge drains the ring into it.
func (g *Graph) captureRead(out []int16) (int, error) {
	need := len(out) * 2
	if cap(g.captureBuf.Data) < need {
		g.captureBuf.Data = make([]byte, need)
	}
	g.captureBuf.Data = g.captureBuf.Data[:need]
	g.captureBuf.MaxSize = need
	g.captureBuf.Requested = len(out) // mono: one sample per frame
	g.captureBuf.Size = 0
	g.captureBuf.Frames = 0

	g.br.ProcessCapture(&cycleStream{buf: &g.captureBuf})

	n := g.captureBuf.Size / 2
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(g.captureBuf.Data[i*2:]))
	}
	return n, nil
}

// run is the single-threaded event loop: only this goroutine touches the
// reconciler. Existing sinks are primed first since subscribe events do not
// replay them.
func (g *Graph) run() {
	existing, err := g.listSinks()
	if err != nil {
		g.fail(fmt.Errorf("list sinks: %w", err))
		return
	}
	for _, idx := range existing {
		g.rec.GlobalAdded(idx, graph.TypeNode, map[string]string{
			graph.KeyMediaClass: graph.MediaClassSink,
		})
	}
	g.rec.Schedule()

	for ev := range g.events {
		switch e := ev.(type) {
		case sinkAdded:
			g.rec.GlobalAdded(e.index, graph.TypeNode, map[string]string{
				graph.KeyMediaClass: graph.MediaClassSink,
			})
		case sinkRemoved:
			g.rec.GlobalRemoved(e.index)
		case fallbackBound:
			g.rec.FallbackBound(e.index)
		case syncDone:
			g.rec.Done(e.seq)
		case graphFault:
			g.fail(e.err)
			return
		}
	}
}

func (g *Graph) fail(err error) {
	g.logger.Error("host graph fault", zap.Error(err))
	select {
	case g.fatal <- err:
	default:
	}
}

func (g *Graph) listSinks() ([]uint32, error) {
	var reply proto.GetSinkInfoListReply
	if err := g.ctl.Request(&proto.GetSinkInfoList{}, &reply); err != nil {
		return nil, err
	}
	out := make([]uint32, 0, len(reply))
	for _, info := range reply {
		out = append(out, info.SinkIndex)
	}
	return out, nil
}

// Close stops the streams and unloads the sinks this module created so a
// daemon restart does not stack null sinks on the server.
func (g *Graph) Close() {
	if g.record != nil {
		g.record.Stop()
	}
	if g.play != nil {
		g.play.Stop()
	}
	if g.ctl != nil {
		for _, idx := range []uint32{g.outModule, g.micModule} {
			if idx == invalidModule {
				continue
			}
			if err := g.ctl.Request(&proto.UnloadModule{ModuleIndex: idx}, nil); err != nil {
				g.logger.Warn("unload module", zap.Uint32("index", idx), zap.Error(err))
			}
		}
	}
	if g.client != nil {
		g.client.Close()
	}
	if g.ctlConn != nil {
		g.ctlConn.Close()
	}
}

// core adapts the proto connection to the reconciler's graph.Core.
type core struct {
	g *Graph
}

// Sync issues a barrier as an asynchronous server round-trip: the protocol
// is ordered, so the reply arrives only after everything queued before it
// was processed. Completion is posted back onto the event loop.
func (c *core) Sync(seq int) int {
	seq++
	g := c.g
	go func(s int) {
		if err := g.ctl.Request(&proto.GetServerInfo{}, &proto.GetServerInfoReply{}); err != nil {
			g.post(graphFault{err: fmt.Errorf("sync barrier: %w", err)})
			return
		}
		g.post(syncDone{seq: s})
	}(seq)
	return seq
}

// CreateFallbackSink loads a null sink and resolves the resulting sink
// index in the background; the reconciler learns it via FallbackBound.
func (c *core) CreateFallbackSink() (graph.Proxy, error) {
	g := c.g
	idx, err := g.loadNullSink(g.cfg.FallbackName, bridge.SampleRate, bridge.PlaybackChannels)
	if err != nil {
		return nil, err
	}
	go func() {
		var reply proto.GetSinkInfoListReply
		if err := g.ctl.Request(&proto.GetSinkInfoList{}, &reply); err != nil {
			g.logger.Error("resolve fallback sink", zap.Error(err))
			return
		}
		for _, info := range reply {
			if info.ModuleIndex == idx {
				g.post(fallbackBound{index: info.SinkIndex})
				return
			}
		}
		g.logger.Error("fallback sink not found after load")
	}()
	return &moduleProxy{g: g, index: idx}, nil
}

// moduleProxy is the handle to a loaded fallback sink module.
type moduleProxy struct {
	g     *Graph
	index uint32
}

func (p *moduleProxy) Destroy() {
	g := p.g
	go func() {
		if err := g.ctl.Request(&proto.UnloadModule{ModuleIndex: p.index}, nil); err != nil {
			g.logger.Error("unload fallback sink", zap.Error(err))
		}
	}()
}

// renderWriter implements pulse.Writer: each chunk of rendered audio from
// the bridge sink's monitor is one playback bridge cycle.
type renderWriter struct {
	br *bridge.Bridge
}

func (w *renderWriter) Write(data []byte) (int, error) {
	buf := graph.Buffer{
		Data:    data,
		MaxSize: len(data),
		Size:    len(data),
		Stride:  bridge.PlaybackFrameBytes,
	}
	w.br.ProcessPlayback(&cycleStream{buf: &buf})
	return len(data), nil
}

func (w *renderWriter) Format() byte {
	return proto.FormatInt16LE
}

// cycleStream hands a single buffer through the graph.Stream contract.
type cycleStream struct {
	buf *graph.Buffer
}

func (s *cycleStream) Dequeue() (*graph.Buffer, error) {
	if s.buf == nil {
		return nil, fmt.Errorf("no buffer available")
	}
	b := s.buf
	s.buf = nil
	return b, nil
}

func (s *cycleStream) Queue(*graph.Buffer) {}
