/*
Package loadable provides a promise-like state model for values that are
fetched, computed or persisted asynchronously, plus the coordination
machinery to compose such values: groups, chains, waiters and periodic
syncers.

A loadable tracks the lifecycle of its sync operation through four states
(idle, syncing, succeeded, failed) while keeping the last known payload
available across failures and re-syncs. Observers are notified on every
change, including payload changes that leave the state untouched.

# Core

Producers that perform work on demand build on Loadable:

	type user struct {
	    *loadable.Loadable
	    profile *Profile
	}

	func newUser(sched loadable.Scheduler, client *Client) *user {
	    u := &user{}
	    u.Loadable = loadable.New(func() {
	        go func() {
	            p, err := client.FetchProfile()
	            sched.Post(func() {
	                if err != nil {
	                    u.SetFailed(err)
	                    return
	                }
	                u.profile = p
	                u.SetSucceeded()
	            })
	        }()
	    }).Contents(func() bool { return u.profile != nil }).Owner(u)
	    return u
	}

Push-style sources whose state is driven from the outside embed Core
directly and expose only the read-only Pure capability.

# Composition

Group aggregates members under a mode (all, any):

	g := loadable.NewGroup(loadable.GroupAll, user, avatar)
	g.SyncIfNeeded()

Chain sequences steps with branching:

	c := loadable.NewChain(sched,
	    loadable.ChainStep{Loadable: session},
	    loadable.ChainStep{Loadable: profile, OnSucceeded: func(loadable.Syncable) loadable.StepDecision {
	        if profile.IsGuest() {
	            return loadable.Complete()
	        }
	        return loadable.Proceed()
	    }},
	    loadable.ChainStep{Loadable: subscriptions},
	)

Waiter blocks any number of consumers on a condition with per-request
timeouts, optionally driving retries; Syncer re-syncs a target
periodically with deterministic exponential backoff and a fast-recovery
path for application foreground reentry.

# Confinement

The model substitutes single-context confinement for locking: all state
access for one loadable tree happens on the turns of one Scheduler.
RunLoop is the production scheduler; StepScheduler runs trees
deterministically in tests with virtual time. Work triggered by a sync
may run anywhere but must post its terminal setters back through the
scheduler, as in the example above.

# Concrete producers

FileLoadable is a complete producer reading, decoding (JSON/YAML via
Codec) and validating a file payload, with optional fsnotify-driven
re-sync.
*/
package loadable
