// Package sched implements the host tick scheduler the vehicles run on.
//
// There is exactly one logical thread of control: the scheduler loop.
// Every registered entry point runs on it, so entries never race with
// each other and need no locks for state they own. External callers
// (the TUI, shutdown paths) reach that state through Do, which executes
// a closure on the loop.
//
// An entry is invoked for one of four reasons: a periodic tick, an
// external trigger carrying a textual argument, a message-arrival
// wakeup, or a continuation the entry re-armed itself because it has
// bounded work left. Continuations run one at a time between channel
// waits, so a long backlog is spread over many invocations instead of
// draining in one.
package sched

import (
	"sync"
	"time"
)

// Reason tells an entry point why it is being invoked.
type Reason int

const (
	// ReasonPeriodic is the scheduled tick.
	ReasonPeriodic Reason = iota
	// ReasonTriggered is an external invocation; the argument carries
	// the trigger text (a grid:// URI for manual sends).
	ReasonTriggered
	// ReasonMessage is a wakeup because an envelope arrived.
	ReasonMessage
	// ReasonContinue resumes an entry that re-armed itself.
	ReasonContinue
)

func (r Reason) String() string {
	switch r {
	case ReasonPeriodic:
		return "periodic"
	case ReasonTriggered:
		return "triggered"
	case ReasonMessage:
		return "message"
	case ReasonContinue:
		return "continue"
	}
	return "unknown"
}

// Entry is a vehicle's single entry point. arg is empty except for
// triggered invocations.
type Entry func(arg string, reason Reason)

type invocation struct {
	task   *Task
	arg    string
	reason Reason
}

// Task is one registered entry point and its schedule.
type Task struct {
	s     *Scheduler
	name  string
	entry Entry

	// mu guards the schedule fields; SetPeriodic and RequestContinue may
	// be called off the loop while the loop reads them.
	mu              sync.Mutex
	periodTicks     int
	continuePending bool

	// Loop-owned fields.
	sincePeriodic int
	removed       bool
}

// Scheduler drives all registered tasks from a single goroutine.
type Scheduler struct {
	tick time.Duration

	invocations chan invocation
	do          chan func()
	stopCh      chan struct{}
	doneCh      chan struct{}

	mu      sync.Mutex
	started bool
	tasks   []*Task // loop-owned once started
}

// New creates a scheduler ticking at the given interval.
func New(tick time.Duration) *Scheduler {
	return &Scheduler{
		tick:        tick,
		invocations: make(chan invocation, 256),
		do:          make(chan func()),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Register adds an entry point. Safe before or after Start.
func (s *Scheduler) Register(name string, entry Entry) *Task {
	t := &Task{s: s, name: name, entry: entry}
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		s.tasks = append(s.tasks, t)
		return t
	}
	s.Do(func() {
		s.tasks = append(s.tasks, t)
	})
	return t
}

// Unregister removes a task; it is never invoked again.
func (s *Scheduler) Unregister(t *Task) {
	s.Do(func() {
		t.removed = true
		for i, other := range s.tasks {
			if other == t {
				s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
				break
			}
		}
	})
}

// Start launches the loop goroutine.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()
	go s.loop()
}

// Stop halts the loop. Pending invocations are discarded; drain cursors
// simply stop being advanced, which is the cancellation model.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()
	close(s.stopCh)
	<-s.doneCh
}

// Do runs fn on the scheduler loop and waits for it. It is the only way
// code outside the loop may touch loop-owned state. Falls back to
// running fn inline when the loop is not up.
func (s *Scheduler) Do(fn func()) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		fn()
		return
	}
	done := make(chan struct{})
	select {
	case s.do <- func() { fn(); close(done) }:
		<-done
	case <-s.stopCh:
	}
}

func (s *Scheduler) loop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		// Run at most one continuation per pass so a backlog shares the
		// loop with fresh wakeups.
		if s.runOneContinue() {
			select {
			case <-s.stopCh:
				return
			case fn := <-s.do:
				fn()
			case inv := <-s.invocations:
				s.dispatch(inv)
			case <-ticker.C:
				s.tickPass()
			default:
			}
			continue
		}

		select {
		case <-s.stopCh:
			return
		case fn := <-s.do:
			fn()
		case inv := <-s.invocations:
			s.dispatch(inv)
		case <-ticker.C:
			s.tickPass()
		}
	}
}

func (s *Scheduler) dispatch(inv invocation) {
	if inv.task.removed {
		return
	}
	inv.task.entry(inv.arg, inv.reason)
}

func (s *Scheduler) tickPass() {
	for _, t := range s.tasks {
		t.mu.Lock()
		period := t.periodTicks
		t.mu.Unlock()
		if period <= 0 {
			continue
		}
		t.sincePeriodic++
		if t.sincePeriodic >= period {
			t.sincePeriodic = 0
			t.entry("", ReasonPeriodic)
		}
	}
}

func (s *Scheduler) runOneContinue() bool {
	for _, t := range s.tasks {
		t.mu.Lock()
		pending := t.continuePending
		t.continuePending = false
		t.mu.Unlock()
		if pending {
			t.entry("", ReasonContinue)
			return true
		}
	}
	return false
}

// SetPeriodic schedules the task every n ticks. Zero disables the
// periodic schedule; a pending continuation still resumes.
func (t *Task) SetPeriodic(n int) {
	t.mu.Lock()
	t.periodTicks = n
	t.mu.Unlock()
}

// RequestContinue re-arms the task for one more invocation as soon as
// possible. Only meaningful from inside the entry itself.
func (t *Task) RequestContinue() {
	t.mu.Lock()
	t.continuePending = true
	t.mu.Unlock()
}

// Trigger queues an external invocation carrying arg. Non-blocking: if
// the scheduler's queue is full the trigger is lost, like any other
// unacknowledged traffic in this system.
func (t *Task) Trigger(arg string) {
	select {
	case t.s.invocations <- invocation{task: t, arg: arg, reason: ReasonTriggered}:
	default:
	}
}

// Wake queues a message-arrival invocation. Non-blocking; a lost wakeup
// is recovered by the next one, since the backlog itself is not lost.
func (t *Task) Wake() {
	select {
	case t.s.invocations <- invocation{task: t, reason: ReasonMessage}:
	default:
	}
}

// Name returns the task's diagnostic name.
func (t *Task) Name() string { return t.name }
