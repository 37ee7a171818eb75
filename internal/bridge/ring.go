package bridge

import "sync"

// RingCapacity is the fixed byte capacity of the capture ring.
const RingCapacity = 102400

// Ring is a fixed-capacity circular byte buffer with a single producer (the
// socket feed loop) and a single consumer (the capture path). Writes never
// block: once the buffer is full the oldest unread bytes are silently
// overwritten, so the buffer always holds at most the most recent capacity
// bytes ever written. Reads block while the buffer is empty.
//
// The buffer is empty iff start == end; fullness is implicit in the
// overwrite policy, so one byte of slack is never reserved.
type Ring struct {
	mu    sync.Mutex
	cond  *sync.Cond
	buf   []byte
	start int
	end   int
}

// NewRing creates a ring with the given capacity in bytes.
func NewRing(capacity int) *Ring {
	r := &Ring{buf: make([]byte, capacity)}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Write copies p into the ring, advancing end byte by byte and pushing start
// ahead whenever end catches up to it (oldest-byte discard). The consumer is
// signaled once after the batch. Callers must not write empty batches.
func (r *Ring) Write(p []byte) {
	r.mu.Lock()
	for _, b := range p {
		r.buf[r.end] = b
		r.end = (r.end + 1) % len(r.buf)
		if r.end == r.start {
			r.start = (r.start + 1) % len(r.buf)
		}
	}
	r.cond.Signal()
	r.mu.Unlock()
}

// Read blocks until data is available, then returns up to max bytes from the
// contiguous run starting at start. It never crosses the wrap boundary in one
// call; draining a wrapped region takes two calls. It never blocks once any
// data exists, even if less than max.
func (r *Ring) Read(max int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.start == r.end {
		r.cond.Wait()
	}

	var run int
	if r.end > r.start {
		run = r.end - r.start
	} else {
		run = len(r.buf) - r.start
	}
	if run > max {
		run = max
	}

	out := make([]byte, run)
	copy(out, r.buf[r.start:r.start+run])
	r.start = (r.start + run) % len(r.buf)
	return out
}
