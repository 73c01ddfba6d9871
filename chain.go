package loadable

import (
	"context"
	"fmt"

	"github.com/zoobzio/capitan"
)

// StepDecision tells a chain what to do after a step finished with its
// contents available. The zero value proceeds to the next step.
type StepDecision struct {
	kind stepKind
	err  error
}

type stepKind int

const (
	stepProceed stepKind = iota
	stepFail
	stepComplete
)

// Proceed continues with the next step; if the finished step was the last
// one, the chain succeeds.
func Proceed() StepDecision {
	return StepDecision{kind: stepProceed}
}

// Fail stops the chain with exactly err, leaving later steps untouched.
func Fail(err error) StepDecision {
	return StepDecision{kind: stepFail, err: err}
}

// Complete finishes the chain successfully, leaving later steps
// untouched.
func Complete() StepDecision {
	return StepDecision{kind: stepComplete}
}

// ChainStep is one item of a chain: a syncable loadable plus an optional
// branching callback consulted after the step finishes with contents
// available. A nil callback proceeds.
type ChainStep struct {
	Loadable    Syncable
	OnSucceeded func(Syncable) StepDecision
}

// Chain sequences loadables: each step is synced if needed and awaited
// before the next one starts. The cursor resets to the first step on
// every Sync, but steps that already succeeded are not re-synced, so
// re-running a failed chain effectively resumes at the first unsynced
// step.
//
// The chain's own contents are defined as "the chain succeeded": partial
// progress has no externally meaningful payload.
type Chain struct {
	Core
	sched  Scheduler
	steps  []ChainStep
	index  int
	waiter *SimpleWaiter
	epoch  int
}

var _ Syncable = (*Chain)(nil)

// NewChain creates an idle chain over the given steps.
func NewChain(sched Scheduler, steps ...ChainStep) *Chain {
	c := &Chain{sched: sched, steps: steps}
	c.hub = NewObserverHub(c)
	c.Core.Contents(func() bool { return c.state == StateSucceeded })
	return c
}

// Confine installs a confinement guard. See Core.Confine.
func (c *Chain) Confine(g Guard) *Chain {
	c.Core.Confine(g)
	return c
}

// Sync restarts the chain from the first step. The first advance happens
// on the next turn of the scheduler, never synchronously, so the caller
// can finish storing the chain before any callback fires.
func (c *Chain) Sync() {
	c.guard.check()
	if c.state == StateSyncing {
		return
	}
	c.SetSyncing()
	if c.waiter != nil {
		c.waiter.Cancel()
		c.waiter = nil
	}
	c.epoch++
	c.index = 0
	epoch := c.epoch
	c.sched.Post(func() {
		if c.epoch == epoch && c.state == StateSyncing {
			c.advance()
		}
	})
}

// NeedsSync reports whether any step's loadable needs a sync.
func (c *Chain) NeedsSync() bool {
	for _, step := range c.steps {
		if step.Loadable.NeedsSync() {
			return true
		}
	}
	return false
}

// SyncIfNeeded calls Sync iff NeedsSync reports true.
func (c *Chain) SyncIfNeeded() {
	if c.NeedsSync() {
		c.Sync()
	}
}

// Close cancels the current step's waiter. A closed chain stops
// advancing but keeps its state.
func (c *Chain) Close() {
	c.epoch++
	if c.waiter != nil {
		c.waiter.Cancel()
		c.waiter = nil
	}
}

func (c *Chain) advance() {
	if c.index >= len(c.steps) {
		c.SetSucceeded()
		return
	}
	step := c.steps[c.index]
	step.Loadable.SyncIfNeeded()
	epoch := c.epoch
	c.waiter = NewSimpleWaiter(c.sched, step.Loadable, func(Pure) {
		c.waiter = nil
		if c.epoch == epoch {
			c.stepFinished()
		}
	})
}

func (c *Chain) stepFinished() {
	step := c.steps[c.index]

	if !step.Loadable.ContentsAvailable() {
		cause := step.Loadable.Error()
		msg := ""
		if cause != nil {
			msg = cause.Error()
		}
		capitan.Emit(context.Background(), ChainStepFailed,
			KeyMember.Field(c.index),
			KeyError.Field(msg),
		)
		if cause != nil {
			c.SetFailed(fmt.Errorf("chain step #%d: %w", c.index, cause))
		} else {
			c.SetFailed(fmt.Errorf("chain step #%d failed", c.index))
		}
		return
	}

	decision := Proceed()
	if step.OnSucceeded != nil {
		decision = step.OnSucceeded(step.Loadable)
	}
	switch decision.kind {
	case stepComplete:
		c.SetSucceeded()
	case stepFail:
		c.SetFailed(decision.err)
	default:
		c.index++
		if c.index >= len(c.steps) {
			c.SetSucceeded()
			return
		}
		c.advance()
	}
}
