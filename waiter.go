package loadable

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Condition selects what a Waiter waits for.
type Condition int

const (
	// ConditionContentsAvailable is met while the target reports
	// available contents.
	ConditionContentsAvailable Condition = iota

	// ConditionSucceededOnce is met once the waiter has seen the target
	// in StateSucceeded at least once since the waiter attached, even if
	// the target fails afterwards.
	ConditionSucceededOnce
)

// Waiter resolves any number of pending requests against one target's
// condition, each with its own deadline, optionally driving the target's
// syncing while requests are pending.
//
// Requests are resolved in FIFO order when the condition is met; a
// request whose deadline elapses first is resolved with ErrWaitTimeout.
// There is no other fairness guarantee.
type Waiter struct {
	sched      Scheduler
	target     Pure
	cond       Condition
	timeout    time.Duration
	shouldSync bool
	guard      Guard

	requests      []*waitRequest
	observer      *Observer
	cancelTimer   func()
	syncer        *Syncer
	succeededOnce bool
	syncingSeen   int
	lastState     State
	closed        bool
}

type waitRequest struct {
	completion func(error)
	deadline   time.Time
	retries    int
}

// NewWaiter creates a waiter for the given condition on target. Every
// request enqueued by Wait times out after the given timeout, which must
// be positive.
func NewWaiter(sched Scheduler, target Pure, cond Condition, timeout time.Duration) *Waiter {
	if timeout <= 0 {
		panic("loadable: waiter timeout must be positive")
	}
	w := &Waiter{
		sched:     sched,
		target:    target,
		cond:      cond,
		timeout:   timeout,
		lastState: target.State(),
	}
	if w.lastState == StateSucceeded {
		w.succeededOnce = true
	}
	w.observer = target.AddObserver(func(Pure) { w.targetDidChange() })
	return w
}

// SyncIfPossible makes the waiter drive the target's syncing while
// requests are pending, provided the target supports triggered syncing: a
// lazily created syncer retries with a backoff window derived from the
// timeout, and is discarded once the queue empties.
func (w *Waiter) SyncIfPossible() *Waiter {
	w.shouldSync = true
	return w
}

// Confine installs a confinement guard checked by Wait and Close.
func (w *Waiter) Confine(g Guard) *Waiter {
	w.guard = g
	return w
}

// Wait enqueues a completion. It is invoked exactly once: with nil when
// the condition is met (possibly synchronously, if it already holds), or
// with ErrWaitTimeout when the deadline elapses first. After Close,
// enqueued completions are abandoned and Wait must not be called.
func (w *Waiter) Wait(completion func(error)) {
	w.guard.check()
	if w.closed {
		panic("loadable: Wait on a closed waiter")
	}
	w.requests = append(w.requests, &waitRequest{
		completion: completion,
		deadline:   w.sched.Now().Add(w.timeout),
	})
	w.update()
}

// Pending returns the number of unresolved requests.
func (w *Waiter) Pending() int {
	return len(w.requests)
}

// Close detaches the waiter from the target and discards its timer and
// owned syncer. In-flight requests are abandoned without a completion
// call. Close is idempotent.
func (w *Waiter) Close() {
	w.guard.check()
	if w.closed {
		return
	}
	w.closed = true
	w.observer.Remove()
	w.stopTimer()
	w.dropSyncer()
	w.requests = nil
}

func (w *Waiter) targetDidChange() {
	st := w.target.State()
	if st == StateSyncing && w.lastState != StateSyncing {
		w.syncingSeen++
	}
	if st == StateSucceeded {
		w.succeededOnce = true
	}
	w.lastState = st
	w.update()
}

func (w *Waiter) conditionMet() bool {
	switch w.cond {
	case ConditionSucceededOnce:
		return w.succeededOnce || w.target.State() == StateSucceeded
	default:
		return w.target.ContentsAvailable()
	}
}

func (w *Waiter) update() {
	w.stopTimer()
	if len(w.requests) == 0 {
		w.dropSyncer()
		return
	}

	if w.conditionMet() {
		resolved := w.requests
		w.requests = nil
		capitan.Emit(context.Background(), WaitSatisfied,
			KeyRequests.Field(len(resolved)),
		)
		for _, r := range resolved {
			r.completion(nil)
		}
		w.dropSyncer()
		return
	}

	// Each sync attempt observed since the last update counts as a retry
	// against every pending request.
	if w.syncingSeen > 0 {
		for _, r := range w.requests {
			r.retries += w.syncingSeen
		}
		w.syncingSeen = 0
	}

	now := w.sched.Now()
	live := w.requests[:0]
	var expired []*waitRequest
	for _, r := range w.requests {
		if r.deadline.After(now) {
			live = append(live, r)
		} else {
			expired = append(expired, r)
		}
	}
	w.requests = live
	for _, r := range expired {
		capitan.Emit(context.Background(), WaitTimedOut,
			KeyRetries.Field(r.retries),
		)
		r.completion(ErrWaitTimeout)
	}
	if len(w.requests) == 0 {
		w.dropSyncer()
		return
	}

	earliest := w.requests[0].deadline
	for _, r := range w.requests[1:] {
		if r.deadline.Before(earliest) {
			earliest = r.deadline
		}
	}
	w.cancelTimer = w.sched.PostDelayed(earliest.Sub(now), func() {
		w.cancelTimer = nil
		w.update()
	})

	if w.shouldSync && w.syncer == nil {
		if target, ok := w.target.(Syncable); ok {
			w.syncer = NewSyncer(w.sched, target, SyncPolicyIfNeeded, w.retryBackoff())
			target.SyncIfNeeded()
		}
	}
}

// retryBackoff derives the owned syncer's backoff window from the wait
// timeout: retries start at an eighth of the timeout (at least a second)
// and grow no further than half of it, with periodic resync disabled.
func (w *Waiter) retryBackoff() *BackoffPolicy {
	min := w.timeout / 8
	if min < time.Second {
		min = time.Second
	}
	max := w.timeout / 2
	if max < min {
		max = min
	}
	return NewBackoffPolicy(min, max, 2, 0)
}

func (w *Waiter) stopTimer() {
	if w.cancelTimer != nil {
		w.cancelTimer()
		w.cancelTimer = nil
	}
}

func (w *Waiter) dropSyncer() {
	if w.syncer != nil {
		w.syncer.Close()
		w.syncer = nil
	}
}

// SimpleWaiter is the lightweight single-shot variant: one completion, no
// timeout, no retry driving. The completion fires exactly once, the first
// time the target's state is observed to be anything other than
// StateSyncing. The initial check is deferred by one turn so the caller
// can store the returned waiter before the completion can possibly run.
//
// A SimpleWaiter never triggers syncing itself; the caller does that.
type SimpleWaiter struct {
	sched      Scheduler
	target     Pure
	completion func(Pure)
	observer   *Observer
	done       bool
}

// NewSimpleWaiter creates a waiter that calls completion once the target
// is not syncing.
func NewSimpleWaiter(sched Scheduler, target Pure, completion func(Pure)) *SimpleWaiter {
	w := &SimpleWaiter{sched: sched, target: target, completion: completion}
	w.observer = target.AddObserver(func(Pure) { w.check() })
	sched.Post(w.check)
	return w
}

// Cancel detaches the waiter without invoking the completion. Idempotent
// and safe to call after the completion has fired.
func (w *SimpleWaiter) Cancel() {
	if w.done {
		return
	}
	w.done = true
	w.observer.Remove()
}

func (w *SimpleWaiter) check() {
	if w.done || w.target.State() == StateSyncing {
		return
	}
	w.done = true
	w.observer.Remove()
	w.completion(w.target)
}
