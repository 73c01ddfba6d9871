package loadable

// ObserverFunc is invoked when the observed loadable changes in any way:
// a state transition, or a payload change signaled while the state stays
// the same.
type ObserverFunc func(Pure)

// Observer is a subscription handle returned by AddObserver. The handle
// controls the subscription lifetime: call Remove to unsubscribe.
type Observer struct {
	hub *ObserverHub
	fn  ObserverFunc
}

// Remove unsubscribes the observer. It is idempotent and safe to call
// from within a notification callback.
func (o *Observer) Remove() {
	if o == nil || o.hub == nil {
		return
	}
	o.hub.remove(o)
	o.hub = nil
}

// ObserverHub is a multicast subscription registry. It is kept separate
// from the loadable bases so composite loadables can subscribe to their
// members without inheriting anything.
//
// Like everything else in this package, a hub is confined to a single
// logical execution context and is not safe for concurrent use.
type ObserverHub struct {
	owner         Pure
	observers     []*Observer
	onFirstAdded  func()
	onLastRemoved func()
}

// NewObserverHub creates a hub whose notifications carry owner as the
// changed loadable.
func NewObserverHub(owner Pure) *ObserverHub {
	return &ObserverHub{owner: owner}
}

// OnFirstObserverAdded sets a hook invoked right after the very first
// observer is added, i.e. when HasObservers switches from false to true.
// This is an extension point for lazily starting background activity.
func (h *ObserverHub) OnFirstObserverAdded(fn func()) *ObserverHub {
	h.onFirstAdded = fn
	return h
}

// OnLastObserverRemoved sets a hook invoked right after the last observer
// is removed, i.e. when HasObservers switches from true to false.
func (h *ObserverHub) OnLastObserverRemoved(fn func()) *ObserverHub {
	h.onLastRemoved = fn
	return h
}

// HasObservers reports whether at least one observer is registered.
func (h *ObserverHub) HasObservers() bool {
	return len(h.observers) > 0
}

// Add registers an observer and returns its handle.
func (h *ObserverHub) Add(fn ObserverFunc) *Observer {
	o := &Observer{hub: h, fn: fn}
	h.observers = append(h.observers, o)
	if len(h.observers) == 1 && h.onFirstAdded != nil {
		h.onFirstAdded()
	}
	return o
}

func (h *ObserverHub) remove(o *Observer) {
	for i, existing := range h.observers {
		if existing == o {
			h.observers = append(h.observers[:i], h.observers[i+1:]...)
			break
		}
	}
	if len(h.observers) == 0 && h.onLastRemoved != nil {
		h.onLastRemoved()
	}
}

// Notify invokes every currently registered observer exactly once, in
// registration order. Iteration runs over a snapshot, so observers may
// unregister themselves (or others) from within their callback; observers
// removed mid-notification are not invoked, observers added
// mid-notification are picked up on the next Notify.
func (h *ObserverHub) Notify() {
	if len(h.observers) == 0 {
		return
	}
	snapshot := make([]*Observer, len(h.observers))
	copy(snapshot, h.observers)
	for _, o := range snapshot {
		if o.hub != h {
			continue // removed during this notification
		}
		o.fn(h.owner)
	}
}
