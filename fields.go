package loadable

import "github.com/zoobzio/capitan"

// Field keys for loadable events.
var (
	// KeyOldState is the state before a transition.
	KeyOldState = capitan.NewStringKey("old_state")

	// KeyNewState is the state after a transition.
	KeyNewState = capitan.NewStringKey("new_state")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyMember is the index of the member a composite event refers to.
	KeyMember = capitan.NewIntKey("member")

	// KeyRequests is the number of requests a waiter resolved.
	KeyRequests = capitan.NewIntKey("requests")

	// KeyRetries is the number of sync attempts a wait request observed
	// before timing out.
	KeyRetries = capitan.NewIntKey("retries")

	// KeyDelay is the duration until an armed timer fires.
	KeyDelay = capitan.NewDurationKey("delay")
)
