package rpcsocket

import "sync"

type latchState int

const (
	latchPending latchState = iota
	latchComplete
)

// JoinLatch1 completes once its single slot has been filled, or is canceled
// first. The call that fills the slot is the one that transitions the latch
// to complete (not the next AsyncWait), matching the tie-break rule used
// throughout this package's join primitives.
type JoinLatch1[A any] struct {
	mu      sync.Mutex
	state   latchState
	haveA   bool
	a       A
	err     error
	waiter  *PolyHandler[func(error)]
}

// NewJoinLatch1 returns a pending latch dispatching completions on exec.
func NewJoinLatch1[A any](exec *Executor) *JoinLatch1[A] {
	return &JoinLatch1[A]{waiter: NewPolyHandler[func(error)](exec)}
}

// SetEventA fills the slot. If the latch is still pending this completes it;
// if the latch was already canceled or completed this is a no-op.
func (j *JoinLatch1[A]) SetEventA(v A) {
	j.mu.Lock()
	if j.state != latchPending {
		j.mu.Unlock()
		return
	}
	j.a = v
	j.haveA = true
	j.state = latchComplete
	j.err = nil
	waiter := j.waiter
	j.mu.Unlock()
	waiter.PostCompletion(func(fn func(error)) { fn(nil) })
}

// UnsetEventA clears the slot. A latch that completed through SetEventA
// returns to pending; a canceled latch stays canceled. A completion already
// posted to a waiter is not withdrawn.
func (j *JoinLatch1[A]) UnsetEventA() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.haveA = false
	var zero A
	j.a = zero
	if j.state == latchComplete && j.err == nil {
		j.state = latchPending
	}
}

// Cancel completes the latch with err if it hasn't already completed.
func (j *JoinLatch1[A]) Cancel(err error) {
	j.mu.Lock()
	if j.state != latchPending {
		j.mu.Unlock()
		return
	}
	j.state = latchComplete
	j.err = err
	waiter := j.waiter
	j.mu.Unlock()
	waiter.PostCompletion(func(fn func(error)) { fn(err) })
}

// EventA returns the value placed by SetEventA. It is only meaningful after
// AsyncWait has reported a nil error.
func (j *JoinLatch1[A]) EventA() A {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.a
}

// AsyncWait registers fn to run once the latch completes.
func (j *JoinLatch1[A]) AsyncWait(fn func(error)) {
	j.mu.Lock()
	if j.state == latchComplete {
		err := j.err
		j.mu.Unlock()
		j.waiter.GetExecutor().Post(func() { fn(err) })
		return
	}
	j.waiter.Set(fn)
	j.mu.Unlock()
}

// JoinLatch2 completes once both of its slots have been filled, or is
// canceled first.
type JoinLatch2[A, B any] struct {
	mu     sync.Mutex
	state  latchState
	haveA  bool
	haveB  bool
	a      A
	b      B
	err    error
	waiter *PolyHandler[func(error)]
}

// NewJoinLatch2 returns a pending latch dispatching completions on exec.
func NewJoinLatch2[A, B any](exec *Executor) *JoinLatch2[A, B] {
	return &JoinLatch2[A, B]{waiter: NewPolyHandler[func(error)](exec)}
}

// SetEventA fills slot A. The call that fills the final remaining slot
// transitions the latch to complete.
func (j *JoinLatch2[A, B]) SetEventA(v A) {
	j.mu.Lock()
	if j.state != latchPending {
		j.mu.Unlock()
		return
	}
	j.a = v
	j.haveA = true
	j.maybeComplete()
}

// SetEventB fills slot B. See SetEventA.
func (j *JoinLatch2[A, B]) SetEventB(v B) {
	j.mu.Lock()
	if j.state != latchPending {
		j.mu.Unlock()
		return
	}
	j.b = v
	j.haveB = true
	j.maybeComplete()
}

// maybeComplete must be called with mu held; it unlocks before returning.
func (j *JoinLatch2[A, B]) maybeComplete() {
	if !(j.haveA && j.haveB) {
		j.mu.Unlock()
		return
	}
	j.state = latchComplete
	j.err = nil
	waiter := j.waiter
	j.mu.Unlock()
	waiter.PostCompletion(func(fn func(error)) { fn(nil) })
}

// UnsetEventA clears slot A, returning the latch to pending if it had
// completed successfully.
func (j *JoinLatch2[A, B]) UnsetEventA() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.haveA = false
	var zero A
	j.a = zero
	if j.state == latchComplete && j.err == nil {
		j.state = latchPending
	}
}

// UnsetEventB clears slot B. See UnsetEventA.
func (j *JoinLatch2[A, B]) UnsetEventB() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.haveB = false
	var zero B
	j.b = zero
	if j.state == latchComplete && j.err == nil {
		j.state = latchPending
	}
}

// Cancel completes the latch with err if it hasn't already completed.
func (j *JoinLatch2[A, B]) Cancel(err error) {
	j.mu.Lock()
	if j.state != latchPending {
		j.mu.Unlock()
		return
	}
	j.state = latchComplete
	j.err = err
	waiter := j.waiter
	j.mu.Unlock()
	waiter.PostCompletion(func(fn func(error)) { fn(err) })
}

// EventA returns the value placed by SetEventA.
func (j *JoinLatch2[A, B]) EventA() A {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.a
}

// EventB returns the value placed by SetEventB.
func (j *JoinLatch2[A, B]) EventB() B {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.b
}

// AsyncWait registers fn to run once the latch completes.
func (j *JoinLatch2[A, B]) AsyncWait(fn func(error)) {
	j.mu.Lock()
	if j.state == latchComplete {
		err := j.err
		j.mu.Unlock()
		j.waiter.GetExecutor().Post(func() { fn(err) })
		return
	}
	j.waiter.Set(fn)
	j.mu.Unlock()
}
