package rpcsocket

import "sync"

// CancelHook is the nested-cancel primitive shared by every layer of the
// connect pipeline and by the active session's phase boundaries. A layer
// installs a closure describing how to abort whatever it is currently
// awaiting; Cancel invokes that closure if one is installed, or latches the
// error for replay against the next Install if a cancel arrives between two
// layers (e.g. after TCPConnectOp returns but before TLSConnectOp installs
// its own hook).
type CancelHook struct {
	mu  sync.Mutex
	fn  func(error)
	err error
}

// Install sets fn as the current cancel action. If the hook has already been
// canceled — by this or any earlier layer in the same pipeline — fn is
// invoked immediately with the latched error instead of being stored, so a
// cancel arriving in the gap between two layers is never lost.
func (h *CancelHook) Install(fn func(error)) {
	h.mu.Lock()
	if h.err != nil {
		err := h.err
		h.mu.Unlock()
		fn(err)
		return
	}
	h.fn = fn
	h.mu.Unlock()
}

// Clear removes the current cancel action without invoking it, used when a
// layer finishes normally and the hook is about to be reinstalled for the
// next layer.
func (h *CancelHook) Clear() {
	h.mu.Lock()
	h.fn = nil
	h.mu.Unlock()
}

// Cancel invokes the installed cancel action with err and latches err
// permanently: the pipeline only ever aborts once, and every later Install
// on this hook fires immediately with the same error.
func (h *CancelHook) Cancel(err error) {
	h.mu.Lock()
	if h.err != nil {
		h.mu.Unlock()
		return
	}
	h.err = err
	fn := h.fn
	h.fn = nil
	h.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}
