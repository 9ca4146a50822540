package rpcsocket

import "sync"

type eventState int

const (
	eventIdle eventState = iota
	eventComplete
)

// AsyncEvent is a one-shot signal: it starts idle, transitions exactly once
// to either a success or an error completion, and an AsyncWait registered
// before or after that transition observes it. At most one wait may be
// outstanding before the transition: a second AsyncWait replaces the first.
type AsyncEvent struct {
	mu     sync.Mutex
	state  eventState
	err    error
	waiter *PolyHandler[func(error)]
}

// NewAsyncEvent returns an idle event dispatching completions on exec.
func NewAsyncEvent(exec *Executor) *AsyncEvent {
	return &AsyncEvent{waiter: NewPolyHandler[func(error)](exec)}
}

// AsyncWait registers fn to run once the event completes. If the event has
// already completed, fn is posted immediately.
func (e *AsyncEvent) AsyncWait(fn func(error)) {
	e.mu.Lock()
	if e.state == eventComplete {
		err := e.err
		e.mu.Unlock()
		e.waiter.GetExecutor().Post(func() { fn(err) })
		return
	}
	e.waiter.Set(fn)
	e.mu.Unlock()
}

// SetEvent completes the event successfully. It panics if the event has
// already completed; callers own ensuring SetEvent/Cancel each fire once.
func (e *AsyncEvent) SetEvent() {
	e.complete(nil)
}

// Cancel completes the event with err if it hasn't already completed. Unlike
// SetEvent, Cancel is idempotent: a second Cancel (or a Cancel racing a
// SetEvent) on an already-terminal event is a silent no-op.
func (e *AsyncEvent) Cancel(err error) {
	e.mu.Lock()
	if e.state == eventComplete {
		e.mu.Unlock()
		return
	}
	e.state = eventComplete
	e.err = err
	waiter := e.waiter
	e.mu.Unlock()
	waiter.PostCompletion(func(fn func(error)) { fn(err) })
}

func (e *AsyncEvent) complete(err error) {
	e.mu.Lock()
	if e.state == eventComplete {
		e.mu.Unlock()
		panic("rpcsocket: AsyncEvent completed twice")
	}
	e.state = eventComplete
	e.err = err
	waiter := e.waiter
	e.mu.Unlock()
	waiter.PostCompletion(func(fn func(error)) { fn(err) })
}
