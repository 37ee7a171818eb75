// Package graph defines the boundary to the host audio graph: the stream
// primitives the bridge paths are driven by, and the core primitives the
// sink reconciler needs (synchronization barriers and fallback sink
// creation). Production bindings live in internal/pulsegraph; tests use
// in-memory fakes.
package graph

// Buffer is one real-time cycle's worth of stream data exchanged with the
// host graph. For playback cycles the graph fills Data and sets Offset/Size;
// for capture cycles the graph sets Requested and the bridge fills Data.
type Buffer struct {
	Data      []byte
	MaxSize   int
	Offset    int
	Size      int
	Stride    int
	Requested int // sample-frames wanted by the graph (capture direction)
	Frames    int // sample-frames produced by the bridge (capture direction)
}

// Stream dequeues and requeues cycle buffers. A dequeued buffer must always
// be queued back, regardless of what the cycle did with it.
type Stream interface {
	Dequeue() (*Buffer, error)
	Queue(*Buffer)
}

// Proxy is a handle to an object this module created in the graph.
type Proxy interface {
	Destroy()
}

// Core exposes the host graph operations the reconciler drives. Sync
// requests a synchronization barrier covering all work queued so far; the
// returned sequence number is echoed back through Reconciler.Done once the
// barrier resolves. CreateFallbackSink asynchronously creates the dummy
// sink; its object id arrives later via Reconciler.FallbackBound.
type Core interface {
	Sync(seq int) int
	CreateFallbackSink() (Proxy, error)
}
