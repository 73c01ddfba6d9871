package loadable

// Proxy stands in for a loadable that is created later than its consumers
// would like a reference to it. Consumers observe the proxy (or request a
// sync) right away; once the real loadable is supplied via SetLoadable
// the proxy mirrors its state and replays a pending sync request.
//
// Without a target the proxy reports StateIdle and needs a sync.
type Proxy struct {
	Core
	target      Pure
	sub         *Observer
	syncPending bool
}

var _ Syncable = (*Proxy)(nil)

// NewProxy creates a proxy with no target.
func NewProxy() *Proxy {
	p := &Proxy{}
	p.hub = NewObserverHub(p)
	p.Core.Contents(func() bool {
		return p.target != nil && p.target.ContentsAvailable()
	})
	return p
}

// Confine installs a confinement guard. See Core.Confine.
func (p *Proxy) Confine(g Guard) *Proxy {
	p.Core.Confine(g)
	return p
}

// Loadable returns the proxied loadable, or nil.
func (p *Proxy) Loadable() Pure {
	return p.target
}

// SetLoadable supplies (or replaces, or clears with nil) the proxied
// loadable. A sync requested while no target was set is forwarded to the
// new target. Observers are notified about the mirrored state.
func (p *Proxy) SetLoadable(target Pure) {
	p.guard.check()
	if p.sub != nil {
		p.sub.Remove()
		p.sub = nil
	}
	p.target = target
	if target != nil {
		p.sub = target.AddObserver(func(Pure) { p.mirror() })
		if p.syncPending {
			p.syncPending = false
			if s, ok := target.(Syncable); ok {
				s.SyncIfNeeded()
			}
		}
	}
	p.mirror()
}

// Sync forwards to the target, or remembers the request until a target
// arrives.
func (p *Proxy) Sync() {
	p.guard.check()
	if s, ok := p.target.(Syncable); ok {
		s.Sync()
		return
	}
	if p.target == nil {
		p.syncPending = true
	}
}

// SyncIfNeeded calls Sync iff NeedsSync reports true.
func (p *Proxy) SyncIfNeeded() {
	if p.NeedsSync() {
		p.Sync()
	}
}

// NeedsSync reports the target's own policy when it is syncable, true
// while no target is set, and false for a read-only target.
func (p *Proxy) NeedsSync() bool {
	if s, ok := p.target.(Syncable); ok {
		return s.NeedsSync()
	}
	return p.target == nil
}

// mirror copies the target's state into the proxy and notifies.
func (p *Proxy) mirror() {
	if p.target == nil {
		p.state = StateIdle
		p.err = nil
	} else {
		p.state = p.target.State()
		p.err = p.target.Error()
	}
	p.hub.Notify()
}
