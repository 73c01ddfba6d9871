package loadable

import "github.com/zoobzio/capitan"

// Lifecycle signals.
var (
	// StateChanged is emitted on every loadable state transition.
	StateChanged = capitan.NewSignal(
		"loadable.state.changed",
		"Loadable state transition",
	)

	// SyncFailed is emitted when a loadable records a sync failure.
	SyncFailed = capitan.NewSignal(
		"loadable.sync.failed",
		"Sync attempt failed",
	)
)

// Composition signals.
var (
	// GroupRecomputed is emitted when a group derives a new composite state.
	GroupRecomputed = capitan.NewSignal(
		"loadable.group.recomputed",
		"Group composite state recomputed",
	)

	// ChainStepFailed is emitted when a chain stops at a failing step.
	ChainStepFailed = capitan.NewSignal(
		"loadable.chain.step.failed",
		"Chain step failed",
	)
)

// Coordination signals.
var (
	// WaitSatisfied is emitted when a waiter resolves its queued requests
	// because the condition was met.
	WaitSatisfied = capitan.NewSignal(
		"loadable.wait.satisfied",
		"Waiter condition met",
	)

	// WaitTimedOut is emitted when a wait request's deadline elapses.
	WaitTimedOut = capitan.NewSignal(
		"loadable.wait.timeout",
		"Wait request timed out",
	)

	// SyncerScheduled is emitted when a syncer arms its resync timer.
	SyncerScheduled = capitan.NewSignal(
		"loadable.syncer.scheduled",
		"Syncer armed resync timer",
	)
)
