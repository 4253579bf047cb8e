// Package deferred provides cancellable delayed callbacks.
//
// A Task owns one callback and at most one pending activation. The callback
// is not run on the timer goroutine: when the delay elapses it is handed to
// the dispatch function supplied at construction, which places it in the
// desired execution context (here, the button service's single-worker
// queue). Cancellation races safely against an in-flight activation: a
// callback that has not started executing is fully suppressed, and Cancel
// reports whether it won that race.
package deferred

import (
	"sync"
	"time"
)

type Task struct {
	mu       sync.Mutex
	timer    *time.Timer
	gen      uint64 // bumped on every schedule/cancel; stale activations no-op
	pending  bool
	fn       func()
	dispatch func(func())
}

// New creates a task running fn via dispatch. A nil dispatch runs fn
// directly in the timer goroutine.
func New(fn func(), dispatch func(func())) *Task {
	if dispatch == nil {
		dispatch = func(f func()) { f() }
	}
	return &Task{fn: fn, dispatch: dispatch}
}

// Schedule arms the task to fire after d. A previously pending activation is
// replaced, never accumulated.
func (t *Task) Schedule(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	g := t.gen
	t.pending = true
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(d, func() { t.fire(g) })
}

// Reschedule restarts the delay. Identical to Schedule; named for call sites
// that re-arm an already armed task.
func (t *Task) Reschedule(d time.Duration) { t.Schedule(d) }

// Cancel suppresses a pending activation. It returns true when cancellation
// won the race; false when the task was idle or the callback had already
// started executing.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.pending {
		return false
	}
	t.gen++
	t.pending = false
	if t.timer != nil {
		t.timer.Stop()
	}
	return true
}

// Pending reports whether an activation is armed and not yet executed.
func (t *Task) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

func (t *Task) fire(g uint64) {
	t.dispatch(func() {
		t.mu.Lock()
		if g != t.gen || !t.pending {
			t.mu.Unlock()
			return // cancelled or superseded before execution
		}
		t.pending = false
		t.mu.Unlock()
		t.fn()
	})
}
