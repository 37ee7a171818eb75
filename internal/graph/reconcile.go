package graph

import "go.uber.org/zap"

// Object types and property keys used by registry events.
const (
	TypeNode = "node"

	KeyMediaClass = "media.class"

	MediaClassSink        = "Audio/Sink"
	MediaClassVirtualSink = "Audio/Sink/Virtual"
)

// Reconciler keeps the graph supplied with at least one playback sink: when
// registry events show no sink beyond the module's own fallback, a dummy
// sink is created; as soon as a real sink exists the fallback is destroyed.
//
// Checks do not run directly from registry events. Events arrive in bursts,
// so the reconciler requests a synchronization barrier and runs one check
// when it resolves, observing a fully delivered registry view instead of
// churning create/destroy per event. All methods must be called from the
// host event-loop goroutine; nothing here is locked.
type Reconciler struct {
	core   Core
	logger *zap.Logger

	sinks     IDSet
	fallbacks IDSet

	sink      Proxy
	checkSeq  int
	scheduled bool
}

// NewReconciler creates a reconciler driving core.
func NewReconciler(core Core, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &Reconciler{core: core, logger: logger}
}

// Schedule requests a barrier check if one is not already pending. Safe to
// call at startup to bootstrap the first check.
func (r *Reconciler) Schedule() {
	if r.scheduled {
		return
	}
	r.scheduled = true
	r.checkSeq = r.core.Sync(r.checkSeq)
}

// reschedule pushes an in-flight barrier further out so the eventual check
// still covers the event that just arrived.
func (r *Reconciler) reschedule() {
	if !r.scheduled {
		return
	}
	r.checkSeq = r.core.Sync(r.checkSeq)
}

// GlobalAdded handles a registry "object appeared" event.
func (r *Reconciler) GlobalAdded(id uint32, objType string, props map[string]string) {
	r.reschedule()

	if objType != TypeNode {
		return
	}
	mc := props[KeyMediaClass]
	if mc != MediaClassSink && mc != MediaClassVirtualSink {
		return
	}
	if r.sinks.Add(id) {
		r.Schedule()
	}
}

// GlobalRemoved handles a registry "object removed" event.
func (r *Reconciler) GlobalRemoved(id uint32) {
	r.reschedule()

	r.fallbacks.Remove(id)
	if r.sinks.Remove(id) {
		r.Schedule()
	}
}

// FallbackBound records that the module's own fallback sink finished
// creation and was assigned id.
func (r *Reconciler) FallbackBound(id uint32) {
	r.sinks.Add(id)
	r.fallbacks.Add(id)

	r.reschedule()
	r.Schedule()
}

// Done handles barrier resolution. Sequence numbers from superseded barriers
// are ignored; only the most recently issued one triggers the check.
func (r *Reconciler) Done(seq int) {
	if seq != r.checkSeq {
		return
	}
	r.scheduled = false
	r.check()
}

func (r *Reconciler) check() {
	r.logger.Debug("checking sinks",
		zap.Int("sinks", r.sinks.Len()),
		zap.Int("fallback_sinks", r.fallbacks.Len()))

	if r.sinks.Len() > r.fallbacks.Len() {
		r.destroyFallback()
		return
	}
	if err := r.createFallback(); err != nil {
		r.logger.Error("error creating fallback sink", zap.Error(err))
	}
}

func (r *Reconciler) createFallback() error {
	if r.sink != nil {
		return nil
	}
	r.logger.Info("creating fallback dummy sink")

	sink, err := r.core.CreateFallbackSink()
	if err != nil {
		return err
	}
	r.sink = sink
	return nil
}

func (r *Reconciler) destroyFallback() {
	if r.sink == nil {
		return
	}
	r.logger.Info("removing fallback dummy sink")
	r.sink.Destroy()
	r.sink = nil
}

// Sinks reports the number of known sinks. Fallbacks reports how many of
// them this module created.
func (r *Reconciler) Sinks() int     { return r.sinks.Len() }
func (r *Reconciler) Fallbacks() int { return r.fallbacks.Len() }
