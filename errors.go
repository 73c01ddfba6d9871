package loadable

import "errors"

// ErrWaitTimeout is returned by a Waiter completion when the request's
// deadline elapses before the condition is met. It is a distinct kind from
// any sync failure: a timed-out wait says nothing about whether the target
// itself failed.
var ErrWaitTimeout = errors.New("timed out waiting for loadable")

// errorRing is a fixed-size ring buffer of recent errors. Access is
// confined to the owning loadable's execution context, so no locking.
type errorRing struct {
	errors []error
	head   int
	count  int
}

// newErrorRing creates a ring with the given capacity; size <= 0 disables
// history and returns nil, on which all methods are no-ops.
func newErrorRing(size int) *errorRing {
	if size <= 0 {
		return nil
	}
	return &errorRing{errors: make([]error, size)}
}

func (r *errorRing) push(err error) {
	if r == nil {
		return
	}
	r.errors[r.head] = err
	r.head = (r.head + 1) % len(r.errors)
	if r.count < len(r.errors) {
		r.count++
	}
}

// all returns the retained errors, oldest first.
func (r *errorRing) all() []error {
	if r == nil || r.count == 0 {
		return nil
	}
	out := make([]error, r.count)
	start := (r.head - r.count + len(r.errors)) % len(r.errors)
	for i := 0; i < r.count; i++ {
		out[i] = r.errors[(start+i)%len(r.errors)]
	}
	return out
}
