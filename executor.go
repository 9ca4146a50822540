package rpcsocket

import (
	"context"
	"sync"
	"sync/atomic"
)

// Executor runs posted closures one at a time on a single internal goroutine,
// giving every completion handler in a session a consistent, non-reentrant
// dispatch point to run on.
type Executor struct {
	tasks    chan func()
	stopped  chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewExecutor starts the executor's drain goroutine and returns it ready to
// accept work.
func NewExecutor() *Executor {
	e := &Executor{
		tasks:   make(chan func(), 256),
		stopped: make(chan struct{}),
	}
	e.wg.Add(1)
	go e.loop()
	return e
}

func (e *Executor) loop() {
	defer e.wg.Done()
	for {
		select {
		case fn := <-e.tasks:
			fn()
		case <-e.stopped:
			// Drain whatever is already queued before exiting so that
			// outstanding completions still fire.
			for {
				select {
				case fn := <-e.tasks:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Post schedules fn to run on the executor's goroutine. Post never blocks the
// caller on fn's execution.
func (e *Executor) Post(fn func()) {
	select {
	case e.tasks <- fn:
	case <-e.stopped:
	}
}

// Acquire pins the executor's outstanding-work count while an async operation
// is in flight. Callers must Release the returned guard exactly once.
func (e *Executor) Acquire() *WorkGuard {
	e.wg.Add(1)
	return &WorkGuard{exec: e}
}

// Shutdown stops accepting new work and waits for the drain goroutine and any
// outstanding work guards to finish, or for ctx to expire first.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.stopOnce.Do(func() { close(e.stopped) })

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WorkGuard keeps its owning Executor's outstanding-work count pinned until
// Release is called.
type WorkGuard struct {
	exec     *Executor
	released atomic.Bool
}

// Release drops the work guard's hold on the executor. Release is idempotent;
// only the first call has any effect.
func (g *WorkGuard) Release() {
	if g == nil {
		return
	}
	if g.released.CompareAndSwap(false, true) {
		g.exec.wg.Done()
	}
}
