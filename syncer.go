package loadable

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// SyncPolicy selects what a syncer's timer does when it fires.
type SyncPolicy int

const (
	// SyncPolicyAlways triggers a full sync on every fire.
	SyncPolicyAlways SyncPolicy = iota

	// SyncPolicyIfNeeded triggers a sync only when the target reports
	// needing one.
	SyncPolicyIfNeeded
)

// Syncer periodically re-syncs a target: after failures with growing
// backoff, after successes with the policy's steady-state period. It
// never performs the initial sync; that stays the caller's
// responsibility, and an in-flight sync is always left to finish on its
// own.
//
// The syncer holds the target only to drive it. Call Close to detach;
// the target's absence is then treated as a normal skip condition.
type Syncer struct {
	sched   Scheduler
	target  Syncable
	policy  SyncPolicy
	backoff *BackoffPolicy

	observer    *Observer
	cancelTimer func()
	closed      bool
}

// NewSyncer creates a syncer observing target. The syncer reacts to every
// target notification by rescheduling, and schedules immediately in case
// the target is already in a terminal state.
func NewSyncer(sched Scheduler, target Syncable, policy SyncPolicy, backoff *BackoffPolicy) *Syncer {
	s := &Syncer{
		sched:   sched,
		target:  target,
		policy:  policy,
		backoff: backoff,
	}
	s.observer = target.AddObserver(func(Pure) { s.reschedule(false) })
	s.reschedule(false)
	return s
}

// Resume tells the syncer the hosting application became active again.
// Consumed from an external lifecycle-notification collaborator; without
// one, the fast-recovery path is simply never taken. A resumed syncer
// shrinks its backoff window and, when the target is in a terminal state,
// retries on the short failure timeout.
func (s *Syncer) Resume() {
	s.reschedule(true)
}

// Close cancels the pending timer and stops observing the target.
// Idempotent.
func (s *Syncer) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.stopTimer()
	s.observer.Remove()
	s.target = nil
}

func (s *Syncer) reschedule(afterForegroundReentry bool) {
	if s.closed || s.target == nil {
		return
	}
	s.stopTimer()

	switch s.target.State() {
	case StateIdle, StateSyncing:
		// Nothing to schedule: the initial sync belongs to the caller
		// and an in-flight sync must finish first.

	case StateFailed:
		if afterForegroundReentry {
			s.backoff.Reset()
		}
		s.arm(s.backoff.NextTimeout(true))

	case StateSucceeded:
		// Resets the backoff window as a side effect.
		t := s.backoff.NextTimeout(false)
		if t == 0 {
			return // periodic resync disabled
		}
		if afterForegroundReentry {
			s.backoff.Reset()
			t = s.backoff.NextTimeout(true)
		}
		s.arm(t)
	}
}

func (s *Syncer) arm(d time.Duration) {
	capitan.Emit(context.Background(), SyncerScheduled,
		KeyDelay.Field(d),
	)
	s.cancelTimer = s.sched.PostDelayed(d, s.fire)
}

func (s *Syncer) fire() {
	s.cancelTimer = nil
	if s.closed || s.target == nil {
		return
	}
	switch s.policy {
	case SyncPolicyAlways:
		s.target.Sync()
	case SyncPolicyIfNeeded:
		needed := s.target.NeedsSync()
		s.target.SyncIfNeeded()
		if !needed {
			// The target was already satisfied, so no notification will
			// arrive to drive the next schedule.
			s.reschedule(false)
		}
	}
}

func (s *Syncer) stopTimer() {
	if s.cancelTimer != nil {
		s.cancelTimer()
		s.cancelTimer = nil
	}
}
