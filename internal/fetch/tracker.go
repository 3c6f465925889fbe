package fetch

import (
	"context"
	"sync"
)

// Tracker owns the State of one logical resource. Every Run gets a fresh sequence
// number and cancels the request it supersedes, so only the latest request commits.
type Tracker[T any] struct {
	mu        sync.Mutex
	state     State[T]
	seq       uint64
	cancel    context.CancelFunc
	listeners []func(State[T])
}

func NewTracker[T any]() *Tracker[T] {
	return &Tracker[T]{state: State[T]{Status: Idle}}
}

func (t *Tracker[T]) State() State[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// OnChange registers fn to observe every committed state. fn runs with the tracker
// locked and must not call back into it.
func (t *Tracker[T]) OnChange(fn func(State[T])) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Run moves to Loading, calls fn and commits its outcome unless a later Run, Set or
// Close happened in the meantime. It returns the state after the attempt.
func (t *Tracker[T]) Run(ctx context.Context, fn func(ctx context.Context) (T, error)) State[T] {
	t.mu.Lock()
	seq := t.next()
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.apply(Start[T](seq))
	t.mu.Unlock()

	value, err := fn(runCtx)

	t.mu.Lock()
	defer t.mu.Unlock()
	cancel()

	if seq != t.seq {
		return t.state
	}
	t.cancel = nil

	if err != nil {
		t.apply(Fail[T](seq, err))
	} else {
		t.apply(Resolve(seq, value))
	}
	return t.state
}

// Set commits value as a Success without a request, superseding anything in flight.
func (t *Tracker[T]) Set(value T) State[T] {
	t.mu.Lock()
	defer t.mu.Unlock()

	seq := t.next()
	t.apply(Start[T](seq))
	t.apply(Resolve(seq, value))
	return t.state
}

// Close cancels the in-flight request, if any, and discards its outcome.
func (t *Tracker[T]) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next()
}

// next must be called with mu held.
func (t *Tracker[T]) next() uint64 {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.seq++
	return t.seq
}

func (t *Tracker[T]) apply(e Event[T]) {
	next, changed := Transition(t.state, e)
	if !changed {
		return
	}
	t.state = next
	for _, fn := range t.listeners {
		fn(next)
	}
}
