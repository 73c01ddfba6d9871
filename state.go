package loadable

// State represents the sync lifecycle state of a loadable.
type State int32

const (
	// StateIdle indicates the loadable has never been synced and no sync
	// is in progress.
	StateIdle State = iota

	// StateSyncing indicates a sync is currently in progress.
	StateSyncing

	// StateSucceeded indicates the last sync completed successfully.
	// Contents are available whenever the state is StateSucceeded.
	StateSucceeded

	// StateFailed indicates the last sync failed. Contents from an earlier
	// successful sync may still be available.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSyncing:
		return "syncing"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
