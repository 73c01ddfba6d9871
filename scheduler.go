package loadable

import (
	"context"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
)

// Scheduler is the confinement context of a loadable tree. All state
// mutations, observer registrations and notifications for a tree are
// expected to happen on the turns of a single scheduler. Work triggered by
// a sync may run anywhere, but must post its terminal setters back through
// the scheduler.
type Scheduler interface {
	// Post schedules fn to run on a subsequent turn of the context, never
	// synchronously within the calling turn.
	Post(fn func())

	// PostDelayed schedules fn to run on a turn after d has elapsed. The
	// returned cancel function prevents the call if it has not run yet and
	// is safe to invoke more than once.
	PostDelayed(d time.Duration, fn func()) (cancel func())

	// Now returns the scheduler's notion of the current time. Deadlines
	// are computed against this clock so virtual-time schedulers stay
	// consistent with their own timers.
	Now() time.Time
}

// RunLoop is the production Scheduler: a single-goroutine run loop.
// Post is safe to call from any goroutine, including from within a turn;
// the internal queue is unbounded so a turn can never deadlock by
// scheduling more work.
//
// Timers are driven by a clockz.Clock, so loops can be tested against
// clockz.NewFakeClock.
type RunLoop struct {
	clock clockz.Clock

	mu    sync.Mutex
	queue []func()
	wake  chan struct{}

	goroutine atomic.Uint64
}

// NewRunLoop creates a run loop using the real clock. The loop does
// nothing until Run is called.
func NewRunLoop() *RunLoop {
	return &RunLoop{
		clock: clockz.RealClock,
		wake:  make(chan struct{}, 1),
	}
}

// Clock sets a custom clock for timers. Must be called before Run.
func (l *RunLoop) Clock(clock clockz.Clock) *RunLoop {
	l.clock = clock
	return l
}

// Run processes posted functions until ctx is canceled. It must be called
// from exactly one goroutine; that goroutine becomes the confinement
// context.
func (l *RunLoop) Run(ctx context.Context) {
	l.goroutine.Store(currentGoroutineID())
	defer l.goroutine.Store(0)

	for {
		for {
			fn := l.pop()
			if fn == nil {
				break
			}
			fn()
		}
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
	}
}

func (l *RunLoop) pop() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	fn := l.queue[0]
	l.queue = l.queue[1:]
	return fn
}

// Post schedules fn on the loop. Safe from any goroutine.
func (l *RunLoop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// PostDelayed schedules fn on the loop after d.
func (l *RunLoop) PostDelayed(d time.Duration, fn func()) (cancel func()) {
	var canceled atomic.Bool
	timer := l.clock.NewTimer(d)
	stop := make(chan struct{})

	go func() {
		select {
		case <-timer.C():
			l.Post(func() {
				if !canceled.Load() {
					fn()
				}
			})
		case <-stop:
		}
	}()

	var once sync.Once
	return func() {
		canceled.Store(true)
		once.Do(func() {
			timer.Stop()
			close(stop)
		})
	}
}

// Now returns the loop clock's current time.
func (l *RunLoop) Now() time.Time {
	return l.clock.Now()
}

// Guard returns a confinement check bound to this loop. The check panics
// when invoked from any goroutine other than the one running the loop.
// While the loop is not running the check passes, which permits
// construction on a setup goroutine before handing the tree to the loop.
func (l *RunLoop) Guard() Guard {
	return func() {
		running := l.goroutine.Load()
		if running != 0 && running != currentGoroutineID() {
			panic("loadable: call from outside the confinement run loop")
		}
	}
}

// Guard asserts that the caller is on the designated confinement context.
// A nil Guard disables checking, which matches callers that manage
// exclusive access themselves.
type Guard func()

func (g Guard) check() {
	if g != nil {
		g()
	}
}

// currentGoroutineID extracts the running goroutine's id from the stack
// header. Used only for the debug confinement guard.
func currentGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := strings.Fields(string(buf[:n]))
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// StepScheduler is a deterministic Scheduler for tests. It runs everything
// on the calling goroutine with a virtual clock: RunUntilIdle drains
// posted work, Advance moves virtual time forward and fires due timers in
// deadline order. This is the equivalent of running a loadable tree in a
// synchronous mode.
type StepScheduler struct {
	now    time.Time
	queue  []func()
	timers []*stepTimer
	seq    int
}

type stepTimer struct {
	at       time.Time
	seq      int
	fn       func()
	canceled bool
}

// NewStepScheduler creates a step scheduler. Virtual time starts at the
// Unix epoch; only differences matter.
func NewStepScheduler() *StepScheduler {
	return &StepScheduler{now: time.Unix(0, 0)}
}

// Post schedules fn for the next RunUntilIdle (or Advance) drain.
func (s *StepScheduler) Post(fn func()) {
	s.queue = append(s.queue, fn)
}

// PostDelayed schedules fn to fire once virtual time has advanced by d.
func (s *StepScheduler) PostDelayed(d time.Duration, fn func()) (cancel func()) {
	t := &stepTimer{at: s.now.Add(d), seq: s.seq, fn: fn}
	s.seq++
	s.timers = append(s.timers, t)
	return func() { t.canceled = true }
}

// Now returns the current virtual time.
func (s *StepScheduler) Now() time.Time {
	return s.now
}

// RunUntilIdle runs posted functions, including ones they post in turn,
// until the queue is empty. Timers are not fired; use Advance.
func (s *StepScheduler) RunUntilIdle() {
	for len(s.queue) > 0 {
		fn := s.queue[0]
		s.queue = s.queue[1:]
		fn()
	}
}

// Advance moves virtual time forward by d, firing due timers in deadline
// order and draining posted work after each fire.
func (s *StepScheduler) Advance(d time.Duration) {
	target := s.now.Add(d)
	for {
		t := s.nextTimerBefore(target)
		if t == nil {
			break
		}
		s.now = t.at
		t.fn()
		s.RunUntilIdle()
	}
	s.now = target
	s.RunUntilIdle()
}

func (s *StepScheduler) nextTimerBefore(deadline time.Time) *stepTimer {
	var best *stepTimer
	bestIdx := -1
	for i, t := range s.timers {
		if t.canceled {
			continue
		}
		if t.at.After(deadline) {
			continue
		}
		if best == nil || t.at.Before(best.at) || (t.at.Equal(best.at) && t.seq < best.seq) {
			best = t
			bestIdx = i
		}
	}
	if best == nil {
		// Drop canceled timers eagerly so long tests don't accumulate them.
		live := s.timers[:0]
		for _, t := range s.timers {
			if !t.canceled {
				live = append(live, t)
			}
		}
		s.timers = live
		return nil
	}
	s.timers = append(s.timers[:bestIdx], s.timers[bestIdx+1:]...)
	return best
}
