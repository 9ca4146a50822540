package rpcsocket

import "sync"

// AsyncQueue is a single-consumer FIFO queue of values of type T. Producers
// Push from any goroutine; a single consumer at a time calls AsyncPop to
// await the next value. Once Stop is called the queue becomes sticky: every
// subsequent AsyncPop, whether or not values remain buffered, returns the
// stop error. This differs deliberately from a drain-then-clear queue: once
// stopped, a queue never un-stops.
type AsyncQueue[T any] struct {
	mu     sync.Mutex
	values []T
	err    error
	waiter *PolyHandler[func(error, T)]
}

// NewAsyncQueue returns an empty, running queue dispatching completions on exec.
func NewAsyncQueue[T any](exec *Executor) *AsyncQueue[T] {
	return &AsyncQueue[T]{waiter: NewPolyHandler[func(error, T)](exec)}
}

// Push appends v to the queue. Push after Stop is a silent no-op.
func (q *AsyncQueue[T]) Push(v T) {
	q.mu.Lock()
	if q.err != nil {
		q.mu.Unlock()
		return
	}
	q.values = append(q.values, v)
	q.maybeComplete()
}

// AsyncPop registers fn to run with the next available value, or with the
// queue's error once Push can no longer satisfy it. Only one AsyncPop may be
// outstanding at a time.
func (q *AsyncQueue[T]) AsyncPop(fn func(error, T)) {
	q.mu.Lock()
	q.waiter.Set(fn)
	q.maybeComplete()
}

// maybeComplete must be called with mu held; it unlocks before returning.
// The head value is dequeued only when a waiter actually takes it, so a Push
// with no AsyncPop outstanding leaves the value buffered.
func (q *AsyncQueue[T]) maybeComplete() {
	defer q.mu.Unlock()
	if q.err != nil {
		err := q.err
		var zero T
		q.waiter.PostCompletion(func(fn func(error, T)) { fn(err, zero) })
		return
	}
	if len(q.values) > 0 {
		v := q.values[0]
		if q.waiter.PostCompletion(func(fn func(error, T)) { fn(nil, v) }) {
			q.values = q.values[1:]
		}
	}
}

// Stop fails the queue with ErrOperationAborted. Any outstanding AsyncPop is
// completed immediately; every AsyncPop after this point returns the same
// error, forever, even if values remain buffered.
func (q *AsyncQueue[T]) Stop() {
	q.mu.Lock()
	if q.err != nil {
		q.mu.Unlock()
		return
	}
	q.err = ErrOperationAborted
	q.maybeComplete()
}
