package loadable

import (
	"context"

	"github.com/zoobzio/capitan"
)

// Pure is the read-only loadable capability: state, error and contents can
// be observed but syncing cannot be triggered. Data sources that are fed
// from elsewhere (pushed or streamed) expose this and nothing more.
type Pure interface {
	// State returns the current lifecycle state.
	State() State

	// Error returns the error recorded by the last failure, or nil.
	// It is set only while the state is StateFailed.
	Error() error

	// ContentsAvailable reports whether a usable payload currently
	// exists. This is independent of the current sync outcome: contents
	// from an earlier success may survive a later failure.
	ContentsAvailable() bool

	// AddObserver registers fn to be called on every change.
	AddObserver(fn ObserverFunc) *Observer
}

// Syncable is a loadable whose syncing can be triggered by consumers.
type Syncable interface {
	Pure

	// Sync starts a sync. Calling it while already syncing is a no-op.
	Sync()

	// SyncIfNeeded calls Sync iff NeedsSync reports true.
	SyncIfNeeded()

	// NeedsSync reports whether a sync would be worthwhile.
	NeedsSync() bool
}

// Core is the base state machine implementing Pure. Producers whose state
// is driven from the outside (push-style sources) embed it directly;
// producers that perform work on demand embed Loadable instead.
//
// A Core is created idle with no error. It is mutated exclusively through
// SetSyncing, SetSucceeded and SetFailed, each of which notifies observers
// unconditionally, even when the state does not change: that is how a
// payload change without a state transition reaches consumers.
type Core struct {
	hub      *ObserverHub
	state    State
	err      error
	hasValue bool
	contents func() bool
	history  *errorRing
	guard    Guard
}

var _ Pure = (*Core)(nil)

// NewCore creates an idle Core.
func NewCore() *Core {
	c := &Core{}
	c.hub = NewObserverHub(c)
	return c
}

// Contents sets the predicate deciding whether a usable payload exists.
// Without it, contents become available on the first success and stay
// available from then on. The predicate must return true whenever the
// state is StateSucceeded; callers publish their payload before calling
// SetSucceeded so that contents and state change atomically from an
// observer's point of view.
func (c *Core) Contents(fn func() bool) *Core {
	c.contents = fn
	return c
}

// Owner sets the value observers receive as the changed loadable. Types
// embedding Core pass themselves so subscribers see the outer type.
func (c *Core) Owner(p Pure) *Core {
	c.hub.owner = p
	return c
}

// Confine installs a confinement guard checked by every mutating call.
// See RunLoop.Guard. A nil guard (the default) disables checking.
func (c *Core) Confine(g Guard) *Core {
	c.guard = g
	return c
}

// ErrorHistorySize retains up to n recent sync failures, oldest first via
// ErrorHistory. Zero (the default) retains only the current error.
func (c *Core) ErrorHistorySize(n int) *Core {
	c.history = newErrorRing(n)
	return c
}

// State returns the current lifecycle state.
func (c *Core) State() State {
	return c.state
}

// Error returns the recorded failure, or nil.
func (c *Core) Error() error {
	return c.err
}

// ErrorHistory returns retained failures, oldest first. Nil unless
// ErrorHistorySize was set.
func (c *Core) ErrorHistory() []error {
	return c.history.all()
}

// ContentsAvailable reports whether a usable payload exists.
func (c *Core) ContentsAvailable() bool {
	if c.contents != nil {
		return c.contents()
	}
	return c.hasValue
}

// AddObserver registers fn to be called on every change.
func (c *Core) AddObserver(fn ObserverFunc) *Observer {
	c.guard.check()
	return c.hub.Add(fn)
}

// Hub exposes the observer hub so embedding types can use the first/last
// observer hooks or extend notification.
func (c *Core) Hub() *ObserverHub {
	return c.hub
}

// SetSyncing clears the error, transitions to StateSyncing and notifies.
func (c *Core) SetSyncing() {
	c.guard.check()
	c.err = nil
	c.transition(StateSyncing)
}

// SetSucceeded clears the error, transitions to StateSucceeded and
// notifies. The payload must already be published by the caller.
func (c *Core) SetSucceeded() {
	c.guard.check()
	c.err = nil
	c.hasValue = true
	c.transition(StateSucceeded)
}

// SetFailed records err, transitions to StateFailed and notifies. If the
// state is already StateFailed the stored error is kept: the first failure
// wins until the next sync attempt clears it, so a meaningful error is not
// clobbered by a spurious secondary failure signal. Observers are still
// notified.
func (c *Core) SetFailed(err error) {
	c.guard.check()
	if c.state != StateFailed {
		c.err = err
		c.history.push(err)
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		capitan.Emit(context.Background(), SyncFailed,
			KeyError.Field(msg),
		)
	}
	c.transition(StateFailed)
}

// NotifyDidChange notifies observers about a change that is not a state
// transition, e.g. an updated payload while already succeeded.
func (c *Core) NotifyDidChange() {
	c.guard.check()
	c.hub.Notify()
}

func (c *Core) transition(next State) {
	old := c.state
	c.state = next
	if old != next {
		capitan.Emit(context.Background(), StateChanged,
			KeyOldState.Field(old.String()),
			KeyNewState.Field(next.String()),
		)
	}
	c.hub.Notify()
}

// Loadable is the base for producers that perform work on demand. The
// work function is invoked by Sync after the transition to StateSyncing;
// it must eventually call SetSucceeded or SetFailed (possibly from a later
// turn of the confinement context), otherwise the loadable stays stuck in
// StateSyncing. That is a caller contract, not something the core
// enforces.
type Loadable struct {
	Core
	work  func()
	needs func() bool
}

var _ Syncable = (*Loadable)(nil)

// New creates an idle Loadable around the given work function.
func New(work func()) *Loadable {
	if work == nil {
		panic("loadable: New requires a work function")
	}
	l := &Loadable{work: work}
	l.hub = NewObserverHub(l)
	return l
}

// Contents sets the contents predicate. See Core.Contents.
func (l *Loadable) Contents(fn func() bool) *Loadable {
	l.Core.Contents(fn)
	return l
}

// Owner sets the value observers receive. See Core.Owner.
func (l *Loadable) Owner(p Pure) *Loadable {
	l.Core.Owner(p)
	return l
}

// Confine installs a confinement guard. See Core.Confine.
func (l *Loadable) Confine(g Guard) *Loadable {
	l.Core.Confine(g)
	return l
}

// ErrorHistorySize retains recent failures. See Core.ErrorHistorySize.
func (l *Loadable) ErrorHistorySize(n int) *Loadable {
	l.Core.ErrorHistorySize(n)
	return l
}

// NeedsSyncFunc overrides the default needs-sync policy.
func (l *Loadable) NeedsSyncFunc(fn func() bool) *Loadable {
	l.needs = fn
	return l
}

// Sync starts the work function unless a sync is already in progress.
func (l *Loadable) Sync() {
	l.guard.check()
	if l.state == StateSyncing {
		return
	}
	l.SetSyncing()
	l.work()
}

// NeedsSync reports whether a sync would be worthwhile: by default, when
// no contents are available or the last outcome was idle or failed.
func (l *Loadable) NeedsSync() bool {
	if l.needs != nil {
		return l.needs()
	}
	return !l.ContentsAvailable() || l.state == StateIdle || l.state == StateFailed
}

// SyncIfNeeded calls Sync iff NeedsSync reports true.
func (l *Loadable) SyncIfNeeded() {
	if l.NeedsSync() {
		l.Sync()
	}
}
