package loadable

import (
	"context"
	"fmt"

	"github.com/zoobzio/capitan"
)

// GroupMode selects how a group aggregates member states.
type GroupMode int

const (
	// GroupAll succeeds only when every member succeeded; any failed
	// member fails the whole group.
	GroupAll GroupMode = iota

	// GroupAny succeeds as soon as one member succeeded; it fails only
	// when every member failed.
	GroupAny

	// GroupLegacyAll reproduces an older aggregation rule in which failed
	// and succeeded members count the same for the "is anything still
	// syncing" distinction. The group can therefore report StateSucceeded
	// while ContentsAvailable is false.
	//
	// Deprecated: kept for backward compatibility only; use GroupAll.
	GroupLegacyAll
)

// Group composes several loadables into one. Its state, error and
// contents availability are derived from the members on every member
// change; the only state of its own is the last state it notified about,
// used to suppress redundant notifications.
//
// Members can mix read-only and syncable loadables. Sync and SyncIfNeeded
// forward only to the members that support triggered syncing; the rest
// still participate in aggregation.
type Group struct {
	hub          *ObserverHub
	mode         GroupMode
	members      []Pure
	subs         []*Observer
	state        State
	lastNotified State
	onChange     func()
	guard        Guard
}

var _ Syncable = (*Group)(nil)

// NewGroup creates a group over the given members.
func NewGroup(mode GroupMode, members ...Pure) *Group {
	g := &Group{mode: mode}
	g.hub = NewObserverHub(g)
	g.subscribe(members)
	g.state = g.derivedState()
	g.lastNotified = g.state
	return g
}

// OnChange sets a hook invoked after the group recomputes, just before
// its own observers are notified.
func (g *Group) OnChange(fn func()) *Group {
	g.onChange = fn
	return g
}

// Confine installs a confinement guard checked by every mutating call.
func (g *Group) Confine(guard Guard) *Group {
	g.guard = guard
	return g
}

// Loadables returns the current members.
func (g *Group) Loadables() []Pure {
	return g.members
}

// SetLoadables replaces the member set as a whole. The group recomputes
// and notifies under the usual deduplication rule.
func (g *Group) SetLoadables(members []Pure) {
	g.guard.check()
	for _, sub := range g.subs {
		sub.Remove()
	}
	g.subs = nil
	g.subscribe(members)
	g.update()
}

func (g *Group) subscribe(members []Pure) {
	g.members = members
	for _, m := range members {
		g.subs = append(g.subs, m.AddObserver(func(Pure) {
			g.update()
		}))
	}
}

// Close detaches the group from its members. The group keeps its last
// derived state but no longer reacts to member changes.
func (g *Group) Close() {
	for _, sub := range g.subs {
		sub.Remove()
	}
	g.subs = nil
}

// State returns the aggregated state.
func (g *Group) State() State {
	return g.state
}

// Error returns the first failed member's error wrapped with the member's
// identity, or nil when no member failed. The member's own error remains
// reachable through errors.Unwrap.
func (g *Group) Error() error {
	for i, m := range g.members {
		if m.State() != StateFailed {
			continue
		}
		if err := m.Error(); err != nil {
			return fmt.Errorf("group member #%d: %w", i, err)
		}
		return fmt.Errorf("group member #%d failed", i)
	}
	return nil
}

// ContentsAvailable reports member contents availability combined per
// mode: AND for GroupAll and GroupLegacyAll, OR for GroupAny. An empty
// group has no contents in any mode.
func (g *Group) ContentsAvailable() bool {
	if len(g.members) == 0 {
		return false
	}
	switch g.mode {
	case GroupAny:
		for _, m := range g.members {
			if m.ContentsAvailable() {
				return true
			}
		}
		return false
	default:
		for _, m := range g.members {
			if !m.ContentsAvailable() {
				return false
			}
		}
		return true
	}
}

// AddObserver registers fn to be called when the group changes.
func (g *Group) AddObserver(fn ObserverFunc) *Observer {
	g.guard.check()
	return g.hub.Add(fn)
}

// Sync forwards to every member that supports triggered syncing.
func (g *Group) Sync() {
	g.guard.check()
	for _, m := range g.members {
		if s, ok := m.(Syncable); ok {
			s.Sync()
		}
	}
}

// SyncIfNeeded forwards to every member that supports triggered syncing.
func (g *Group) SyncIfNeeded() {
	g.guard.check()
	for _, m := range g.members {
		if s, ok := m.(Syncable); ok {
			s.SyncIfNeeded()
		}
	}
}

// NeedsSync reports whether any syncable member needs a sync.
func (g *Group) NeedsSync() bool {
	for _, m := range g.members {
		if s, ok := m.(Syncable); ok && s.NeedsSync() {
			return true
		}
	}
	return false
}

// update recomputes the derived state and re-notifies iff the state
// changed, or the old and new state is StateSucceeded: while everything
// is done, member payload changes must still reach consumers.
func (g *Group) update() {
	g.state = g.derivedState()
	if g.state == g.lastNotified && g.state != StateSucceeded {
		return
	}
	if g.state != g.lastNotified {
		capitan.Emit(context.Background(), GroupRecomputed,
			KeyOldState.Field(g.lastNotified.String()),
			KeyNewState.Field(g.state.String()),
		)
	}
	g.lastNotified = g.state
	if g.onChange != nil {
		g.onChange()
	}
	g.hub.Notify()
}

// derivedState recomputes the composite state in a single pass over the
// members.
func (g *Group) derivedState() State {
	var failed, succeeded, syncing, done int
	n := len(g.members)
	for _, m := range g.members {
		switch m.State() {
		case StateFailed:
			failed++
			done++
		case StateSucceeded:
			succeeded++
			done++
		case StateSyncing:
			syncing++
		}
	}

	switch g.mode {
	case GroupAny:
		switch {
		case syncing > 0:
			return StateSyncing
		case succeeded > 0:
			return StateSucceeded
		case failed == n && n > 0:
			return StateFailed
		default:
			return StateIdle
		}
	case GroupLegacyAll:
		// Failed members are indistinguishable from succeeded ones here;
		// only the syncing-vs-done distinction is kept.
		switch {
		case syncing > 0:
			return StateSyncing
		case done == n && n > 0:
			return StateSucceeded
		default:
			return StateIdle
		}
	default: // GroupAll
		switch {
		case failed > 0:
			return StateFailed
		case syncing > 0:
			return StateSyncing
		case succeeded == n && n > 0:
			return StateSucceeded
		default:
			return StateIdle
		}
	}
}
